package service

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/choraleia/explorer/pkg/db"
	"github.com/choraleia/explorer/pkg/explorer"
	"github.com/choraleia/explorer/pkg/utils"
	"gorm.io/gorm"
)

// UploadHistoryService persists finished uploads.
type UploadHistoryService struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewUploadHistoryService(gdb *gorm.DB) *UploadHistoryService {
	return &UploadHistoryService{db: gdb, logger: utils.GetLogger()}
}

// AutoMigrate creates database tables
func (s *UploadHistoryService) AutoMigrate() error {
	return s.db.AutoMigrate(&db.UploadRecord{})
}

// Record stores a terminal upload. Non-terminal uploads are ignored.
func (s *UploadHistoryService) Record(sessionID, user string, u explorer.Upload) error {
	var status db.UploadStatus
	switch u.Status {
	case explorer.UploadDone:
		status = db.UploadStatusDone
	case explorer.UploadError:
		status = db.UploadStatusError
	default:
		return nil
	}

	finished := time.Now()
	if u.FinishedAt != nil {
		finished = *u.FinishedAt
	}

	rec := &db.UploadRecord{
		ID:          u.ID,
		SessionID:   sessionID,
		User:        user,
		Filename:    u.Filename,
		DirectoryID: u.ParentDirectory.ID,
		Size:        u.Size,
		Mimetype:    u.Mimetype,
		Status:      status,
		Error:       u.Error,
		StartedAt:   u.CreatedAt,
		FinishedAt:  finished,
	}
	if err := s.db.Create(rec).Error; err != nil {
		return fmt.Errorf("failed to record upload: %w", err)
	}
	return nil
}

// HistoryQuery filters List. Zero values mean "any".
type HistoryQuery struct {
	SessionID   string
	DirectoryID *string
	Status      string
	Limit       int
	Offset      int
}

// List returns recorded uploads, newest first, and whether more exist.
func (s *UploadHistoryService) List(q HistoryQuery) ([]db.UploadRecord, bool, error) {
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	query := s.db.Model(&db.UploadRecord{})
	if q.SessionID != "" {
		query = query.Where("session_id = ?", q.SessionID)
	}
	if q.DirectoryID != nil {
		query = query.Where("directory_id = ?", *q.DirectoryID)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}

	var records []db.UploadRecord
	// Fetch one more to check if there are more results
	if err := query.Order("finished_at DESC").Limit(limit + 1).Offset(q.Offset).Find(&records).Error; err != nil {
		return nil, false, err
	}

	hasMore := len(records) > limit
	if hasMore {
		records = records[:limit]
	}
	return records, hasMore, nil
}
