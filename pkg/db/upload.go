// Database models for the upload history
package db

import "time"

// UploadStatus mirrors the terminal states of an upload.
type UploadStatus string

const (
	UploadStatusDone  UploadStatus = "done"
	UploadStatusError UploadStatus = "error"
)

// UploadRecord is one finished upload, kept after the queue forgot it.
type UploadRecord struct {
	ID          string       `json:"id" gorm:"primaryKey;size:36"`
	SessionID   string       `json:"session_id" gorm:"index;size:36;not null"`
	User        string       `json:"user,omitempty" gorm:"index;size:100"`
	Filename    string       `json:"filename" gorm:"size:255;not null"`
	DirectoryID string       `json:"directory_id" gorm:"index;size:1024"`
	Size        int64        `json:"size"`
	Mimetype    string       `json:"mimetype,omitempty" gorm:"size:100"`
	Status      UploadStatus `json:"status" gorm:"index;size:20;not null"`
	Error       string       `json:"error,omitempty" gorm:"type:text"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at" gorm:"index"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the table name for UploadRecord
func (UploadRecord) TableName() string {
	return "upload_records"
}
