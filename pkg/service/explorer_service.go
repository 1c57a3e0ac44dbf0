package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/choraleia/explorer/pkg/event"
	"github.com/choraleia/explorer/pkg/explorer"
	"github.com/choraleia/explorer/pkg/metrics"
	"github.com/choraleia/explorer/pkg/utils"
	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("explorer session not found")
	ErrPlanNotFound    = errors.New("deletion plan not found")
	ErrNothingMarked   = errors.New("nothing is marked")
)

// Session is one mounted explorer: its state store, its upload queue and
// the deletion plans staged from its dialogs.
type Session struct {
	ID        string
	User      string
	CreatedAt time.Time

	Store   *explorer.Store
	Uploads *explorer.UploadQueue

	mu    sync.Mutex
	plans map[string]*explorer.DeletionPlan

	stopWatch func()
	logger    *slog.Logger
}

// SessionInfo is the JSON view of a session.
type SessionInfo struct {
	ID        string                 `json:"id"`
	User      string                 `json:"user,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	State     explorer.StateSnapshot `json:"state"`
	Uploads   []explorer.Upload      `json:"uploads"`
}

func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ID:        s.ID,
		User:      s.User,
		CreatedAt: s.CreatedAt,
		State:     s.Store.Snapshot(),
		Uploads:   s.Uploads.Snapshot(),
	}
}

// ListingView is the current directory as displayed: filtered by the search
// text and sorted. A listing failure is reported in Error, not as a call
// failure, so the rest of the view still renders.
type ListingView struct {
	DirectoryID string                   `json:"directory_id"`
	Path        string                   `json:"path"`
	CanEdit     bool                     `json:"can_edit"`
	Files       []explorer.FileItem      `json:"files"`
	Directories []explorer.DirectoryItem `json:"directories"`
	Error       string                   `json:"error,omitempty"`
}

type ExplorerOption func(*ExplorerService)

func WithAuthorizer(a Authorizer) ExplorerOption {
	return func(s *ExplorerService) {
		if a != nil {
			s.auth = a
		}
	}
}

func WithUploadHistory(h *UploadHistoryService) ExplorerOption {
	return func(s *ExplorerService) { s.history = h }
}

func WithEmitter(e *event.Emitter) ExplorerOption {
	return func(s *ExplorerService) {
		if e != nil {
			s.emitter = e
		}
	}
}

func WithUploadGracePeriod(d time.Duration) ExplorerOption {
	return func(s *ExplorerService) { s.grace = d }
}

// WithTransferer replaces the filesystem transfer used by upload queues.
func WithTransferer(t explorer.Transferer) ExplorerOption {
	return func(s *ExplorerService) {
		if t != nil {
			s.transfer = t
		}
	}
}

// ExplorerService owns every explorer session of the process.
type ExplorerService struct {
	catalog  *CatalogService
	transfer explorer.Transferer
	planner  *explorer.DeletionPlanner
	auth     Authorizer
	history  *UploadHistoryService
	emitter  *event.Emitter
	grace    time.Duration
	logger   *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewExplorerService(catalog *CatalogService, opts ...ExplorerOption) *ExplorerService {
	s := &ExplorerService{
		catalog:  catalog,
		transfer: NewFSTransferer(catalog, false),
		planner:  explorer.NewDeletionPlanner(catalog, catalog),
		auth:     AuthorizerFunc(func(explorer.DirectoryRef, string) bool { return true }),
		emitter:  event.Global(),
		grace:    explorer.DefaultGracePeriod,
		logger:   utils.GetLogger(),
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession mounts a new explorer at the root.
func (s *ExplorerService) CreateSession(user string, mode explorer.Mode) (*Session, error) {
	if mode == "" {
		mode = explorer.ModeViewAndEdit
	}
	if _, err := explorer.ParseMode(string(mode)); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	sess := &Session{
		ID:        id,
		User:      user,
		CreatedAt: time.Now(),
		Store:     explorer.NewStore(explorer.NewState(mode)),
		plans:     make(map[string]*explorer.DeletionPlan),
		logger:    s.logger.With("sessionID", id),
	}
	sess.Uploads = explorer.NewUploadQueue(s.transfer,
		explorer.WithGracePeriod(s.grace),
		explorer.WithQueueLogger(sess.logger),
		explorer.WithTerminalHook(func(u explorer.Upload) { s.uploadFinished(sess, u) }),
	)
	sess.stopWatch = s.watchUploads(sess)

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	metrics.SessionOpened()

	sess.logger.Info("Explorer session created", "user", user, "mode", mode)
	return sess, nil
}

// watchUploads turns queue snapshots into upload.changed notifications.
func (s *ExplorerService) watchUploads(sess *Session) func() {
	ch, cancel := sess.Uploads.Subscribe()
	go func() {
		for snap := range ch {
			s.emitter.Emit(event.UploadChangedEvent{SessionID: sess.ID, Count: len(snap)})
		}
	}()
	return cancel
}

func (s *ExplorerService) uploadFinished(sess *Session, u explorer.Upload) {
	metrics.RecordUpload(u.Size, u.Status == explorer.UploadDone)
	if s.history != nil {
		if err := s.history.Record(sess.ID, sess.User, u); err != nil {
			sess.logger.Error("Failed to record upload", "uploadId", u.ID, "error", err)
		}
	}
	s.emitter.Emit(event.UploadFinishedEvent{SessionID: sess.ID, UploadID: u.ID, Status: string(u.Status), Error: u.Error})
	if u.Status == explorer.UploadDone {
		s.emitter.Emit(event.FSChangedEvent{DirectoryIDs: []string{u.ParentDirectory.ID}})
	}
}

// CloseSession unmounts a session. Running uploads are cancelled.
func (s *ExplorerService) CloseSession(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	sess.stopWatch()
	sess.Uploads.Close()
	metrics.SessionClosed()
	s.emitter.Emit(event.ExplorerSessionClosedEvent{SessionID: id})
	sess.logger.Info("Explorer session closed")
	return nil
}

// Close unmounts every session.
func (s *ExplorerService) Close() {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	for _, id := range ids {
		_ = s.CloseSession(id)
	}
}

func (s *ExplorerService) Session(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Sessions lists the mounted sessions, oldest first.
func (s *ExplorerService) Sessions() []SessionInfo {
	s.mu.RLock()
	list := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		list = append(list, sess)
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	out := make([]SessionInfo, 0, len(list))
	for _, sess := range list {
		out = append(out, sess.Info())
	}
	return out
}

// Dispatch applies a to the session state.
func (s *ExplorerService) Dispatch(id string, a explorer.Action) (explorer.StateSnapshot, error) {
	sess, err := s.Session(id)
	if err != nil {
		return explorer.StateSnapshot{}, err
	}
	return s.dispatch(sess, a), nil
}

func (s *ExplorerService) dispatch(sess *Session, a explorer.Action) explorer.StateSnapshot {
	snap := sess.Store.Dispatch(a)
	s.emitter.Emit(event.ExplorerStateChangedEvent{SessionID: sess.ID, Version: snap.Version})
	return snap
}

// Listing reads the current directory of the session.
func (s *ExplorerService) Listing(ctx context.Context, id string) (ListingView, error) {
	sess, err := s.Session(id)
	if err != nil {
		return ListingView{}, err
	}
	state := sess.Store.Snapshot().State
	dir := state.CurrentDirectory()

	view := ListingView{
		DirectoryID: dir.ID,
		Path:        state.CurrentPath.String(),
		CanEdit:     s.auth.CanEditDirectory(dir, sess.User),
		Files:       []explorer.FileItem{},
		Directories: []explorer.DirectoryItem{},
	}

	listing, err := s.catalog.ListChildren(ctx, dir.ID)
	if err != nil {
		sess.logger.Warn("Failed to list directory", "directoryId", dir.ID, "error", err)
		view.Error = err.Error()
		return view, nil
	}
	visible := explorer.VisibleListing(listing, state.SearchText)
	view.Files = visible.Files
	view.Directories = visible.Directories
	return view, nil
}

// Upload enqueues p into the session's current directory.
func (s *ExplorerService) Upload(id string, p explorer.Payload) (explorer.Upload, error) {
	sess, err := s.Session(id)
	if err != nil {
		return explorer.Upload{}, err
	}
	dir := sess.Store.Snapshot().State.CurrentDirectory()
	if !s.auth.CanEditDirectory(dir, sess.User) {
		return explorer.Upload{}, ErrForbidden
	}
	if err := validName(p.Filename); err != nil {
		return explorer.Upload{}, err
	}

	u := sess.Uploads.UploadFile(p, dir)
	sess.logger.Info("Upload enqueued", "uploadId", u.ID, "filename", u.Filename, "directoryId", dir.ID)
	return u, nil
}

func (s *ExplorerService) Uploads(id string) ([]explorer.Upload, error) {
	sess, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	return sess.Uploads.Snapshot(), nil
}

// PlanDeletion discovers the content of a marked directory.
func (s *ExplorerService) PlanDeletion(ctx context.Context, id, directoryID string) (explorer.DeletionPlanView, error) {
	sess, err := s.Session(id)
	if err != nil {
		return explorer.DeletionPlanView{}, err
	}
	state := sess.Store.Snapshot().State
	if !s.auth.CanEditDirectory(state.CurrentDirectory(), sess.User) {
		return explorer.DeletionPlanView{}, ErrForbidden
	}

	target, err := s.markedDirectory(state, directoryID)
	if err != nil {
		return explorer.DeletionPlanView{}, err
	}

	plan, err := s.planner.Discover(ctx, target)
	if err != nil {
		return explorer.DeletionPlanView{}, err
	}

	sess.mu.Lock()
	sess.plans[plan.ID] = plan
	sess.mu.Unlock()

	view := plan.View()
	s.emitter.Emit(event.DeletionPlannedEvent{
		SessionID:      sess.ID,
		PlanID:         plan.ID,
		FileCount:      view.FileCount,
		DirectoryCount: view.DirectoryCount,
	})
	sess.logger.Info("Deletion planned", "planId", plan.ID, "directoryId", target.ID,
		"files", view.FileCount, "directories", view.DirectoryCount)
	return view, nil
}

// markedDirectory picks directoryID out of the marked directories, or the
// only marked directory when directoryID is empty.
func (s *ExplorerService) markedDirectory(state explorer.State, directoryID string) (explorer.DirectoryItem, error) {
	if len(state.MarkedDirectories) == 0 {
		return explorer.DirectoryItem{}, ErrNothingMarked
	}
	if directoryID == "" {
		return state.MarkedDirectories[0], nil
	}
	for _, d := range state.MarkedDirectories {
		if d.ID == directoryID {
			return d, nil
		}
	}
	return explorer.DirectoryItem{}, fmt.Errorf("directory %s: %w", directoryID, explorer.ErrNotInListing)
}

func (s *ExplorerService) plan(sess *Session, planID string) (*explorer.DeletionPlan, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	plan, ok := sess.plans[planID]
	if !ok {
		return nil, ErrPlanNotFound
	}
	return plan, nil
}

func (s *ExplorerService) Plan(id, planID string) (explorer.DeletionPlanView, error) {
	sess, err := s.Session(id)
	if err != nil {
		return explorer.DeletionPlanView{}, err
	}
	plan, err := s.plan(sess, planID)
	if err != nil {
		return explorer.DeletionPlanView{}, err
	}
	return plan.View(), nil
}

// ExecutePlan deletes everything in the plan. On failure the plan keeps the
// items that were not deleted and can be executed again. A started run is
// not cancelled with ctx; it ends on completion or on the first error.
func (s *ExplorerService) ExecutePlan(ctx context.Context, id, planID string) (explorer.DeletionPlanView, error) {
	ctx = context.WithoutCancel(ctx)
	sess, err := s.Session(id)
	if err != nil {
		return explorer.DeletionPlanView{}, err
	}
	plan, err := s.plan(sess, planID)
	if err != nil {
		return explorer.DeletionPlanView{}, err
	}

	var files, dirs int
	err = s.planner.Execute(ctx, plan, func(p explorer.DeletionProgress) {
		if p.IsDir {
			dirs++
		} else {
			files++
		}
		s.emitter.Emit(event.DeletionProgressEvent{
			SessionID:            sess.ID,
			PlanID:               p.PlanID,
			DeletedID:            p.DeletedID,
			IsDir:                p.IsDir,
			RemainingFiles:       p.RemainingFiles,
			RemainingDirectories: p.RemainingDirectories,
		})
	})
	metrics.RecordDeletion(files, dirs, err == nil)
	if err != nil {
		sess.logger.Error("Deletion failed", "planId", planID, "error", err)
		s.emitter.Emit(event.DeletionFailedEvent{SessionID: sess.ID, PlanID: planID, Error: err.Error()})
		s.emitter.Emit(event.FSChangedEvent{DirectoryIDs: []string{plan.Root.ParentID}})
		return plan.View(), err
	}

	sess.mu.Lock()
	delete(sess.plans, planID)
	sess.mu.Unlock()

	state := sess.Store.Snapshot().State
	s.dispatch(sess, explorer.SetMarkedDirectories{Directories: withoutDirectory(state.MarkedDirectories, plan.Root.ID)})
	s.dispatch(sess, explorer.HideDialog{Dialog: explorer.DialogDeleteDirectory})

	s.emitter.Emit(event.DeletionCompletedEvent{SessionID: sess.ID, PlanID: planID})
	s.emitter.Emit(event.FSDeletedEvent{ID: plan.Root.ID, IsDir: true})
	s.emitter.Emit(event.FSChangedEvent{DirectoryIDs: []string{plan.Root.ParentID}})
	sess.logger.Info("Deletion completed", "planId", planID, "directoryId", plan.Root.ID)
	return plan.View(), nil
}

// DiscardPlan drops a staged plan without deleting anything.
func (s *ExplorerService) DiscardPlan(id, planID string) error {
	sess, err := s.Session(id)
	if err != nil {
		return err
	}
	plan, err := s.plan(sess, planID)
	if err != nil {
		return err
	}
	if plan.View().Running {
		return explorer.ErrPlanInProgress
	}
	sess.mu.Lock()
	delete(sess.plans, planID)
	sess.mu.Unlock()
	return nil
}

// DeleteMarkedFiles deletes the marked files one by one. The files that
// were not deleted stay marked.
func (s *ExplorerService) DeleteMarkedFiles(ctx context.Context, id string) ([]explorer.FileItem, error) {
	ctx = context.WithoutCancel(ctx)
	sess, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	state := sess.Store.Snapshot().State
	if len(state.MarkedFiles) == 0 {
		return nil, ErrNothingMarked
	}
	if !s.auth.CanEditDirectory(state.CurrentDirectory(), sess.User) {
		return nil, ErrForbidden
	}

	remaining, err := s.planner.DeleteFiles(ctx, state.MarkedFiles, func(p explorer.DeletionProgress) {
		s.emitter.Emit(event.DeletionProgressEvent{
			SessionID:      sess.ID,
			DeletedID:      p.DeletedID,
			RemainingFiles: p.RemainingFiles,
		})
		s.emitter.Emit(event.FSDeletedEvent{ID: p.DeletedID})
	})

	metrics.RecordDeletion(len(state.MarkedFiles)-len(remaining), 0, err == nil)
	s.dispatch(sess, explorer.SetMarkedFiles{Files: remaining})
	s.emitter.Emit(event.FSChangedEvent{DirectoryIDs: []string{state.CurrentDirectory().ID}})
	if err != nil {
		sess.logger.Error("Deleting marked files failed", "remaining", len(remaining), "error", err)
		s.emitter.Emit(event.DeletionFailedEvent{SessionID: sess.ID, Error: err.Error()})
		return remaining, err
	}

	s.dispatch(sess, explorer.HideDialog{Dialog: explorer.DialogDeleteFiles})
	s.emitter.Emit(event.DeletionCompletedEvent{SessionID: sess.ID})
	return remaining, nil
}

// CreateFolder creates name in the current directory.
func (s *ExplorerService) CreateFolder(ctx context.Context, id, name string) (explorer.DirectoryItem, error) {
	sess, err := s.Session(id)
	if err != nil {
		return explorer.DirectoryItem{}, err
	}
	dir := sess.Store.Snapshot().State.CurrentDirectory()
	if !s.auth.CanEditDirectory(dir, sess.User) {
		return explorer.DirectoryItem{}, ErrForbidden
	}

	created, err := s.catalog.CreateFolder(ctx, dir.ID, name)
	if err != nil {
		return explorer.DirectoryItem{}, err
	}
	s.dispatch(sess, explorer.HideDialog{Dialog: explorer.DialogCreateFolder})
	s.emitter.Emit(event.FSCreatedEvent{ID: created.ID, ParentID: created.ParentID, IsDir: true})
	sess.logger.Info("Folder created", "directoryId", created.ID)
	return created, nil
}

// MoveTarget selects what MoveMarked moves.
type MoveTarget string

const (
	MoveFiles     MoveTarget = "files"
	MoveDirectory MoveTarget = "directory"
)

// MoveMarked moves the marked files (or marked directories) into
// targetDirectoryID, one at a time, stopping at the first failure.
func (s *ExplorerService) MoveMarked(ctx context.Context, id string, what MoveTarget, targetDirectoryID string) ([]string, error) {
	sess, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	state := sess.Store.Snapshot().State

	target, err := s.catalog.Directory(ctx, targetDirectoryID)
	if err != nil {
		return nil, err
	}
	if !s.auth.CanEditDirectory(state.CurrentDirectory(), sess.User) || !s.auth.CanEditDirectory(target.Ref(), sess.User) {
		return nil, ErrForbidden
	}

	var ids []string
	var dialog explorer.Dialog
	switch what {
	case MoveFiles:
		dialog = explorer.DialogMoveFiles
		for _, f := range state.MarkedFiles {
			ids = append(ids, f.ID)
		}
	case MoveDirectory:
		dialog = explorer.DialogMoveDirectory
		for _, d := range state.MarkedDirectories {
			ids = append(ids, d.ID)
		}
	default:
		return nil, fmt.Errorf("unknown move target %q", what)
	}
	if len(ids) == 0 {
		return nil, ErrNothingMarked
	}

	moved := make([]string, 0, len(ids))
	for _, itemID := range ids {
		newID, err := s.catalog.Move(ctx, itemID, target.ID)
		if err != nil {
			s.emitter.Emit(event.FSChangedEvent{DirectoryIDs: []string{state.CurrentDirectory().ID, target.ID}})
			return moved, fmt.Errorf("move %s: %w", itemID, err)
		}
		moved = append(moved, newID)
		s.emitter.Emit(event.FSRenamedEvent{OldID: itemID, NewID: newID})
	}

	if what == MoveFiles {
		s.dispatch(sess, explorer.SetMarkedFiles{})
	} else {
		s.dispatch(sess, explorer.SetMarkedDirectories{})
	}
	s.dispatch(sess, explorer.HideDialog{Dialog: dialog})
	s.emitter.Emit(event.FSChangedEvent{DirectoryIDs: []string{state.CurrentDirectory().ID, target.ID}})
	return moved, nil
}

func withoutDirectory(dirs []explorer.DirectoryItem, id string) []explorer.DirectoryItem {
	out := make([]explorer.DirectoryItem, 0, len(dirs))
	for _, d := range dirs {
		if d.ID != id {
			out = append(out, d)
		}
	}
	return out
}
