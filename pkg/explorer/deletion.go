package explorer

import (
	"context"
	"log/slog"
	"path"
	"sync"

	"github.com/choraleia/explorer/pkg/utils"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var ErrPlanInProgress = errors.New("deletion plan is already running")

// DirectoryLister lists the direct children of a directory. An empty
// directoryID lists the root.
type DirectoryLister interface {
	ListChildren(ctx context.Context, directoryID string) (Listing, error)
}

// Remover deletes single items. DeleteDirectory is only called on
// directories whose content was deleted first.
type Remover interface {
	DeleteFile(ctx context.Context, id string) error
	DeleteDirectory(ctx context.Context, id string) error
}

// PlannedFile is a file scheduled for deletion. Path holds the names of its
// parent directories relative to the plan root, joined by "/".
type PlannedFile struct {
	File FileItem `json:"file"`
	Path string   `json:"path"`
}

// DisplayPath is Path plus the filename.
func (f PlannedFile) DisplayPath() string {
	if f.Path == "" {
		return f.File.Filename
	}
	return f.Path + "/" + f.File.Filename
}

// DeletionPlan is the discovered closure of a directory. Items leave the
// plan as soon as they are deleted, so the remaining lists are always live.
type DeletionPlan struct {
	ID   string
	Root DirectoryItem

	mu          sync.Mutex
	files       []PlannedFile
	directories []DirectoryItem
	running     bool
}

// DeletionPlanView is the JSON form of a plan.
type DeletionPlanView struct {
	ID             string          `json:"id"`
	Root           DirectoryItem   `json:"root"`
	FileCount      int             `json:"file_count"`
	DirectoryCount int             `json:"directory_count"`
	Files          []PlannedFile   `json:"files"`
	Directories    []DirectoryItem `json:"directories"`
	Running        bool            `json:"running"`
}

func (p *DeletionPlan) View() DeletionPlanView {
	p.mu.Lock()
	defer p.mu.Unlock()
	files := make([]PlannedFile, len(p.files))
	copy(files, p.files)
	return DeletionPlanView{
		ID:             p.ID,
		Root:           p.Root,
		FileCount:      len(p.files),
		DirectoryCount: len(p.directories),
		Files:          files,
		Directories:    cloneDirectories(p.directories),
		Running:        p.running,
	}
}

func (p *DeletionPlan) FileCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.files)
}

func (p *DeletionPlan) DirectoryCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.directories)
}

// Files returns the files not deleted yet, in discovery order.
func (p *DeletionPlan) Files() []PlannedFile {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PlannedFile, len(p.files))
	copy(out, p.files)
	return out
}

// Directories returns the directories not deleted yet, root first.
func (p *DeletionPlan) Directories() []DirectoryItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneDirectories(p.directories)
}

// DeletionProgress is reported after every deleted item.
type DeletionProgress struct {
	PlanID               string `json:"plan_id,omitempty"`
	DeletedID            string `json:"deleted_id"`
	DeletedName          string `json:"deleted_name"`
	IsDir                bool   `json:"is_dir"`
	RemainingFiles       int    `json:"remaining_files"`
	RemainingDirectories int    `json:"remaining_directories"`
}

// DeletionPlanner discovers and deletes directory trees through the
// injected lister and remover.
type DeletionPlanner struct {
	lister  DirectoryLister
	remover Remover
	logger  *slog.Logger
}

func NewDeletionPlanner(lister DirectoryLister, remover Remover) *DeletionPlanner {
	return &DeletionPlanner{lister: lister, remover: remover, logger: utils.GetLogger()}
}

type discoveryFrame struct {
	dir DirectoryItem
	rel string
}

// Discover walks root with an explicit stack, one listing call at a time.
// Directories are recorded in depth-first pre-order with the root first.
// Any listing error aborts discovery.
func (p *DeletionPlanner) Discover(ctx context.Context, root DirectoryItem) (*DeletionPlan, error) {
	plan := &DeletionPlan{ID: uuid.NewString(), Root: root}
	seen := make(map[string]struct{})

	stack := []discoveryFrame{{dir: root}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[frame.dir.ID]; ok {
			continue
		}
		seen[frame.dir.ID] = struct{}{}
		plan.directories = append(plan.directories, frame.dir)

		listing, err := p.lister.ListChildren(ctx, frame.dir.ID)
		if err != nil {
			name := frame.rel
			if name == "" {
				name = root.Name
			}
			return nil, errors.Wrapf(err, "list directory %s", name)
		}

		for _, f := range SortFiles(listing.Files) {
			plan.files = append(plan.files, PlannedFile{File: f, Path: frame.rel})
		}
		subdirs := SortDirectories(listing.Directories)
		for i := len(subdirs) - 1; i >= 0; i-- {
			stack = append(stack, discoveryFrame{dir: subdirs[i], rel: path.Join(frame.rel, subdirs[i].Name)})
		}
	}

	p.logger.Debug("Deletion plan discovered", "planId", plan.ID, "root", root.ID,
		"files", len(plan.files), "directories", len(plan.directories))
	return plan, nil
}

// Execute deletes every file of plan, then every directory, children before
// their parents. Directories go in reverse discovery order, not discovery
// order, since DeleteDirectory removes only empty directories and the root
// is discovered first. Each call is awaited before the next one starts. The first
// failure stops the run and is returned; what was deleted stays deleted and
// the plan keeps the remaining items.
func (p *DeletionPlanner) Execute(ctx context.Context, plan *DeletionPlan, onProgress func(DeletionProgress)) error {
	plan.mu.Lock()
	if plan.running {
		plan.mu.Unlock()
		return ErrPlanInProgress
	}
	plan.running = true
	plan.mu.Unlock()

	defer func() {
		plan.mu.Lock()
		plan.running = false
		plan.mu.Unlock()
	}()

	for {
		plan.mu.Lock()
		if len(plan.files) == 0 {
			plan.mu.Unlock()
			break
		}
		next := plan.files[0]
		plan.mu.Unlock()

		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.remover.DeleteFile(ctx, next.File.ID); err != nil {
			return errors.Wrapf(err, "delete file %s", next.DisplayPath())
		}

		plan.mu.Lock()
		plan.files = plan.files[1:]
		progress := plan.progressLocked(next.File.ID, next.DisplayPath(), false)
		plan.mu.Unlock()
		report(onProgress, progress)
	}

	for {
		plan.mu.Lock()
		if len(plan.directories) == 0 {
			plan.mu.Unlock()
			break
		}
		next := plan.directories[len(plan.directories)-1]
		plan.mu.Unlock()

		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.remover.DeleteDirectory(ctx, next.ID); err != nil {
			return errors.Wrapf(err, "delete directory %s", next.Name)
		}

		plan.mu.Lock()
		plan.directories = plan.directories[:len(plan.directories)-1]
		progress := plan.progressLocked(next.ID, next.Name, true)
		plan.mu.Unlock()
		report(onProgress, progress)
	}

	p.logger.Info("Deletion plan executed", "planId", plan.ID, "root", plan.Root.ID)
	return nil
}

// DeleteFiles deletes files one by one with the same abort-on-first-error
// rule as Execute. It returns the files that were not deleted.
func (p *DeletionPlanner) DeleteFiles(ctx context.Context, files []FileItem, onProgress func(DeletionProgress)) ([]FileItem, error) {
	remaining := cloneFiles(files)
	for len(remaining) > 0 {
		if err := ctx.Err(); err != nil {
			return remaining, err
		}
		next := remaining[0]
		if err := p.remover.DeleteFile(ctx, next.ID); err != nil {
			return remaining, errors.Wrapf(err, "delete file %s", next.Filename)
		}
		remaining = remaining[1:]
		report(onProgress, DeletionProgress{
			DeletedID:      next.ID,
			DeletedName:    next.Filename,
			RemainingFiles: len(remaining),
		})
	}
	return remaining, nil
}

func (p *DeletionPlan) progressLocked(id, name string, isDir bool) DeletionProgress {
	return DeletionProgress{
		PlanID:               p.ID,
		DeletedID:            id,
		DeletedName:          name,
		IsDir:                isDir,
		RemainingFiles:       len(p.files),
		RemainingDirectories: len(p.directories),
	}
}

func report(fn func(DeletionProgress), p DeletionProgress) {
	if fn != nil {
		fn(p)
	}
}
