package event

// ============================================================================
// Event Names (constants)
// ============================================================================

const (
	FSChanged           = "fs.changed"
	FSCreated           = "fs.created"
	FSDeleted           = "fs.deleted"
	FSRenamed           = "fs.renamed"
	ExplorerStateChange = "explorer.stateChanged"
	ExplorerSessionEnd  = "explorer.sessionClosed"
	UploadChanged       = "upload.changed"
	UploadFinished      = "upload.finished"
	DeletionPlanned     = "deletion.planned"
	DeletionProgress    = "deletion.progress"
	DeletionCompleted   = "deletion.completed"
	DeletionFailed      = "deletion.failed"
)

// ============================================================================
// Filesystem Events
// ============================================================================

// FSChangedEvent is emitted when the content of directories changed.
type FSChangedEvent struct {
	DirectoryIDs []string `json:"directoryIds,omitempty"` // empty means "check everything"
}

func (e FSChangedEvent) EventName() string { return FSChanged }

// FSCreatedEvent is emitted when a file/directory is created.
type FSCreatedEvent struct {
	ID       string `json:"id"`
	ParentID string `json:"parentId"`
	IsDir    bool   `json:"isDir"`
}

func (e FSCreatedEvent) EventName() string { return FSCreated }

// FSDeletedEvent is emitted when a file/directory is deleted.
type FSDeletedEvent struct {
	ID    string `json:"id"`
	IsDir bool   `json:"isDir"`
}

func (e FSDeletedEvent) EventName() string { return FSDeleted }

// FSRenamedEvent is emitted when a file/directory is renamed/moved.
type FSRenamedEvent struct {
	OldID string `json:"oldId"`
	NewID string `json:"newId"`
}

func (e FSRenamedEvent) EventName() string { return FSRenamed }

// ============================================================================
// Explorer Session Events
// ============================================================================

// ExplorerStateChangedEvent is emitted after every dispatched action.
type ExplorerStateChangedEvent struct {
	SessionID string `json:"sessionId"`
	Version   uint64 `json:"version"`
}

func (e ExplorerStateChangedEvent) EventName() string { return ExplorerStateChange }

type ExplorerSessionClosedEvent struct {
	SessionID string `json:"sessionId"`
}

func (e ExplorerSessionClosedEvent) EventName() string { return ExplorerSessionEnd }

// ============================================================================
// Upload Events
// ============================================================================

// UploadChangedEvent is emitted whenever the upload queue of a session is
// republished. Count is the number of uploads left in the queue.
type UploadChangedEvent struct {
	SessionID string `json:"sessionId"`
	Count     int    `json:"count"`
}

func (e UploadChangedEvent) EventName() string { return UploadChanged }

// UploadFinishedEvent is emitted when a single upload reaches a terminal state.
type UploadFinishedEvent struct {
	SessionID string `json:"sessionId"`
	UploadID  string `json:"uploadId"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

func (e UploadFinishedEvent) EventName() string { return UploadFinished }

// ============================================================================
// Deletion Events
// ============================================================================

type DeletionPlannedEvent struct {
	SessionID      string `json:"sessionId"`
	PlanID         string `json:"planId"`
	FileCount      int    `json:"fileCount"`
	DirectoryCount int    `json:"directoryCount"`
}

func (e DeletionPlannedEvent) EventName() string { return DeletionPlanned }

// DeletionProgressEvent is emitted after each deleted item.
type DeletionProgressEvent struct {
	SessionID            string `json:"sessionId"`
	PlanID               string `json:"planId,omitempty"`
	DeletedID            string `json:"deletedId"`
	IsDir                bool   `json:"isDir"`
	RemainingFiles       int    `json:"remainingFiles"`
	RemainingDirectories int    `json:"remainingDirectories"`
}

func (e DeletionProgressEvent) EventName() string { return DeletionProgress }

type DeletionCompletedEvent struct {
	SessionID string `json:"sessionId"`
	PlanID    string `json:"planId,omitempty"`
}

func (e DeletionCompletedEvent) EventName() string { return DeletionCompleted }

type DeletionFailedEvent struct {
	SessionID string `json:"sessionId"`
	PlanID    string `json:"planId,omitempty"`
	Error     string `json:"error"`
}

func (e DeletionFailedEvent) EventName() string { return DeletionFailed }
