package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ChadR23/sentry-six/internal/models"
)

// JobRepository stores export job history rows.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a repository on an open database.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job record. The record's ULID is generated on
// insert when unset.
func (r *JobRepository) Create(ctx context.Context, rec *models.ExportJobRecord) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("creating job record: %w", err)
	}
	return nil
}

// Update saves a job record in place.
func (r *JobRepository) Update(ctx context.Context, rec *models.ExportJobRecord) error {
	if err := r.db.WithContext(ctx).Save(rec).Error; err != nil {
		return fmt.Errorf("updating job record: %w", err)
	}
	return nil
}

// GetByID returns a record by ULID, or nil when absent.
func (r *JobRepository) GetByID(ctx context.Context, id models.ULID) (*models.ExportJobRecord, error) {
	var rec models.ExportJobRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting job record: %w", err)
	}
	return &rec, nil
}

// List returns records newest first with the total count for pagination.
func (r *JobRepository) List(ctx context.Context, offset, limit int) ([]*models.ExportJobRecord, int64, error) {
	var total int64
	q := r.db.WithContext(ctx).Model(&models.ExportJobRecord{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting job records: %w", err)
	}

	var recs []*models.ExportJobRecord
	if err := q.Order("started_at DESC").Offset(offset).Limit(limit).Find(&recs).Error; err != nil {
		return nil, 0, fmt.Errorf("listing job records: %w", err)
	}
	return recs, total, nil
}

// ListByCollection returns every record for one collection, newest first.
func (r *JobRepository) ListByCollection(ctx context.Context, collectionID string) ([]*models.ExportJobRecord, error) {
	var recs []*models.ExportJobRecord
	if err := r.db.WithContext(ctx).
		Where("collection_id = ?", collectionID).
		Order("started_at DESC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("listing job records by collection: %w", err)
	}
	return recs, nil
}

// DeleteFinishedBefore removes terminal records completed before the
// cutoff and reports how many were deleted.
func (r *JobRepository) DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("state IN (?, ?, ?) AND completed_at < ?",
			models.JobSucceeded, models.JobFailed, models.JobCancelled, before).
		Delete(&models.ExportJobRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("deleting finished job records: %w", result.Error)
	}
	return result.RowsAffected, nil
}
