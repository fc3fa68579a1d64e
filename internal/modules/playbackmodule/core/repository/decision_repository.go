// Package repository provides data access layer for the playback module
package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	perrors "github.com/mantonx/viewra-playback/internal/modules/playbackmodule/errors"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/models"
)

// MaxListLimit caps a single history page.
const MaxListLimit = 500

// DecisionFilter narrows a history listing.
type DecisionFilter struct {
	ProfileName string
	Kind        string
	Since       time.Time
	Limit       int
	Offset      int
}

// DecisionRepository handles decision history data access
type DecisionRepository struct {
	db *gorm.DB
}

// NewDecisionRepository creates a new decision repository
func NewDecisionRepository(db *gorm.DB) *DecisionRepository {
	return &DecisionRepository{db: db}
}

// Migrate creates or updates the history tables.
func (r *DecisionRepository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(models.AllModels()...); err != nil {
		return perrors.InternalError("migrate_history", err)
	}
	return nil
}

// Create stores a decision record
func (r *DecisionRepository) Create(ctx context.Context, record *models.DecisionRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return perrors.InternalError("record_decision", err)
	}
	return nil
}

// GetByID retrieves a record by ID
func (r *DecisionRepository) GetByID(ctx context.Context, id string) (*models.DecisionRecord, error) {
	var record models.DecisionRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, perrors.New(perrors.ErrorTypeValidation, "get_decision", err).WithDetail("id", id)
	}
	if err != nil {
		return nil, perrors.InternalError("get_decision", err)
	}
	return &record, nil
}

// List retrieves records newest first
func (r *DecisionRepository) List(ctx context.Context, filter DecisionFilter) ([]*models.DecisionRecord, error) {
	query := r.db.WithContext(ctx)

	if filter.ProfileName != "" {
		query = query.Where("profile_name = ?", filter.ProfileName)
	}
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if !filter.Since.IsZero() {
		query = query.Where("created_at >= ?", filter.Since)
	}

	limit := filter.Limit
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}

	var records []*models.DecisionRecord
	err := query.Order("created_at DESC").Limit(limit).Offset(filter.Offset).Find(&records).Error
	if err != nil {
		return nil, perrors.InternalError("list_decisions", err)
	}
	return records, nil
}

// CountByKind returns how many decisions of each kind are stored.
func (r *DecisionRepository) CountByKind(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Kind  string
		Count int64
	}
	err := r.db.WithContext(ctx).Model(&models.DecisionRecord{}).
		Select("kind, COUNT(*) AS count").
		Group("kind").
		Scan(&rows).Error
	if err != nil {
		return nil, perrors.InternalError("count_decisions", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Kind] = row.Count
	}
	return counts, nil
}

// DeleteOlderThan prunes records created before cutoff.
func (r *DecisionRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.DecisionRecord{})
	if result.Error != nil {
		return 0, perrors.InternalError("prune_decisions", result.Error)
	}
	return result.RowsAffected, nil
}
