package explorer

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/choraleia/explorer/pkg/utils"
	"github.com/google/uuid"
)

// DefaultGracePeriod is how long the queue waits after a completion before
// deciding whether the whole batch can be cleared.
const DefaultGracePeriod = 250 * time.Millisecond

type UploadStatus string

const (
	UploadPending   UploadStatus = "pending"
	UploadUploading UploadStatus = "uploading"
	UploadDone      UploadStatus = "done"
	UploadError     UploadStatus = "error"
)

// Payload is the file handed to UploadFile. Body is read exactly once by the
// Transferer.
type Payload struct {
	Filename string
	Size     int64
	Mimetype string
	Body     io.Reader
}

// Upload is the read-only view of one upload.
type Upload struct {
	ID              string       `json:"id"`
	Filename        string       `json:"filename"`
	ParentDirectory DirectoryRef `json:"parent_directory"`
	Size            int64        `json:"size"`
	Mimetype        string       `json:"mimetype,omitempty"`
	UploadProgress  int          `json:"upload_progress"`
	Status          UploadStatus `json:"status"`
	Error           string       `json:"error,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	FinishedAt      *time.Time   `json:"finished_at,omitempty"`
}

func (u Upload) terminal() bool {
	return u.Status == UploadDone || u.Status == UploadError
}

// TransferCallbacks are the only way a transfer reports back to the queue.
type TransferCallbacks struct {
	OnProgress func(pct int)
	OnComplete func()
	OnError    func(err error)
}

// Transferer moves a payload into parent. It runs on its own goroutine and
// must end by calling exactly one of OnComplete or OnError.
type Transferer interface {
	Transfer(ctx context.Context, p Payload, parent DirectoryRef, cb TransferCallbacks)
}

// TransferFunc adapts a function to Transferer.
type TransferFunc func(ctx context.Context, p Payload, parent DirectoryRef, cb TransferCallbacks)

func (f TransferFunc) Transfer(ctx context.Context, p Payload, parent DirectoryRef, cb TransferCallbacks) {
	f(ctx, p, parent, cb)
}

type UploadQueueOption func(*UploadQueue)

func WithGracePeriod(d time.Duration) UploadQueueOption {
	return func(q *UploadQueue) {
		if d >= 0 {
			q.grace = d
		}
	}
}

// WithTerminalHook registers fn to run after an upload finishes or fails.
func WithTerminalHook(fn func(Upload)) UploadQueueOption {
	return func(q *UploadQueue) { q.onTerminal = fn }
}

func WithQueueLogger(logger *slog.Logger) UploadQueueOption {
	return func(q *UploadQueue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// UploadQueue tracks concurrent uploads of one explorer session.
//
// Only the queue's own callbacks mutate it. Readers get copies via Snapshot
// and Subscribe. Once every upload in the queue has completed, the queue
// empties itself a grace period after the last completion; an errored or
// still running upload keeps the queue from being cleared.
type UploadQueue struct {
	mu sync.Mutex

	transfer   Transferer
	grace      time.Duration
	onTerminal func(Upload)
	logger     *slog.Logger

	uploads     []*Upload
	subscribers map[chan []Upload]struct{}

	timers    map[uint64]*time.Timer
	nextTimer uint64

	ctx    context.Context
	cancel context.CancelFunc
	closed bool
}

func NewUploadQueue(transfer Transferer, opts ...UploadQueueOption) *UploadQueue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &UploadQueue{
		transfer:    transfer,
		grace:       DefaultGracePeriod,
		logger:      utils.GetLogger(),
		subscribers: make(map[chan []Upload]struct{}),
		timers:      make(map[uint64]*time.Timer),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// UploadFile enqueues p for parent and starts the transfer immediately.
func (q *UploadQueue) UploadFile(p Payload, parent DirectoryRef) Upload {
	q.mu.Lock()
	u := &Upload{
		ID:              uuid.NewString(),
		Filename:        p.Filename,
		ParentDirectory: parent,
		Size:            p.Size,
		Mimetype:        p.Mimetype,
		Status:          UploadPending,
		CreatedAt:       time.Now(),
	}
	q.uploads = append(q.uploads, u)
	q.publishLocked()
	view := *u
	closed := q.closed
	q.mu.Unlock()

	if closed {
		if c, ok := p.Body.(io.Closer); ok {
			_ = c.Close()
		}
		q.fail(u.ID, context.Canceled)
		return view
	}

	go q.run(u.ID, p, parent)
	return view
}

func (q *UploadQueue) run(id string, p Payload, parent DirectoryRef) {
	q.mu.Lock()
	if u := q.findLocked(id); u != nil && u.Status == UploadPending {
		u.Status = UploadUploading
		q.publishLocked()
	}
	q.mu.Unlock()

	q.transfer.Transfer(q.ctx, p, parent, TransferCallbacks{
		OnProgress: func(pct int) { q.progress(id, pct) },
		OnComplete: func() { q.complete(id) },
		OnError:    func(err error) { q.fail(id, err) },
	})
}

func (q *UploadQueue) progress(id string, pct int) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	u := q.findLocked(id)
	if u == nil || u.terminal() || pct < u.UploadProgress {
		return
	}
	u.UploadProgress = pct
	u.Status = UploadUploading
	q.publishLocked()
}

func (q *UploadQueue) complete(id string) {
	q.mu.Lock()
	u := q.findLocked(id)
	if u == nil || u.terminal() {
		q.mu.Unlock()
		return
	}
	now := time.Now()
	u.UploadProgress = 100
	u.Status = UploadDone
	u.FinishedAt = &now
	q.publishLocked()
	view := *u

	if !q.closed {
		timerID := q.nextTimer
		q.nextTimer++
		q.timers[timerID] = time.AfterFunc(q.grace, func() { q.collect(timerID) })
	}
	q.mu.Unlock()

	q.logger.Debug("Upload completed", "uploadId", view.ID, "filename", view.Filename)
	if q.onTerminal != nil {
		q.onTerminal(view)
	}
}

func (q *UploadQueue) fail(id string, err error) {
	q.mu.Lock()
	u := q.findLocked(id)
	if u == nil || u.terminal() {
		q.mu.Unlock()
		return
	}
	now := time.Now()
	u.Status = UploadError
	u.Error = "upload failed"
	if err != nil {
		u.Error = err.Error()
	}
	u.FinishedAt = &now
	q.publishLocked()
	view := *u
	q.mu.Unlock()

	q.logger.Warn("Upload failed", "uploadId", view.ID, "filename", view.Filename, "error", err)
	if q.onTerminal != nil {
		q.onTerminal(view)
	}
}

// collect empties the queue when every upload is done. Uploads still in
// flight keep it, even at 100%, since they may yet fail.
func (q *UploadQueue) collect(timerID uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.timers, timerID)
	if q.closed || len(q.uploads) == 0 {
		return
	}
	for _, u := range q.uploads {
		if u.Status != UploadDone {
			return
		}
	}
	q.uploads = nil
	q.publishLocked()
}

// Snapshot returns a copy of every upload currently in the queue.
func (q *UploadQueue) Snapshot() []Upload {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

// Subscribe streams a snapshot after every change.
func (q *UploadQueue) Subscribe() (ch <-chan []Upload, cancel func()) {
	c := make(chan []Upload, 64)

	q.mu.Lock()
	q.subscribers[c] = struct{}{}
	q.mu.Unlock()

	var once sync.Once
	cancelFn := func() {
		once.Do(func() {
			q.mu.Lock()
			delete(q.subscribers, c)
			close(c)
			q.mu.Unlock()
		})
	}
	return c, cancelFn
}

// Close stops pending grace timers and cancels the context handed to
// running transfers. It is meant for shutdown only.
func (q *UploadQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
	q.cancel()
}

func (q *UploadQueue) findLocked(id string) *Upload {
	for _, u := range q.uploads {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (q *UploadQueue) snapshotLocked() []Upload {
	out := make([]Upload, 0, len(q.uploads))
	for _, u := range q.uploads {
		out = append(out, *u)
	}
	return out
}

func (q *UploadQueue) publishLocked() {
	if len(q.subscribers) == 0 {
		return
	}
	for ch := range q.subscribers {
		select {
		case ch <- q.snapshotLocked():
		default:
			// drop
		}
	}
}
