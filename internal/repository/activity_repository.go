package repository

import (
	"fmt"

	"gorm.io/gorm"

	"kbhub/internal/model"
)

type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) Create(a *model.Activity) error {
	if err := r.db.Create(a).Error; err != nil {
		return fmt.Errorf("create activity failed: %w", err)
	}
	return nil
}

// ListRecent returns the newest activities first. When userID is non-zero
// only that user's activities are returned.
func (r *ActivityRepository) ListRecent(userID uint, limit int) ([]model.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.Order("created_at DESC").Limit(limit)
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	var activities []model.Activity
	if err := q.Find(&activities).Error; err != nil {
		return nil, fmt.Errorf("list activities failed: %w", err)
	}
	return activities, nil
}
