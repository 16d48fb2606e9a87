package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"kbhub/internal/model"
)

type MemoryRepository struct {
	db *gorm.DB
}

func NewMemoryRepository(db *gorm.DB) *MemoryRepository {
	return &MemoryRepository{db: db}
}

func (r *MemoryRepository) Create(item *model.MemoryItem) error {
	if err := r.db.Create(item).Error; err != nil {
		return fmt.Errorf("create memory item failed: %w", err)
	}
	return nil
}

// ListActive returns the knowledge base's memory items that have not
// expired as of now.
func (r *MemoryRepository) ListActive(kbID uint, now time.Time) ([]model.MemoryItem, error) {
	var items []model.MemoryItem
	if err := r.db.
		Where("knowledge_base_id = ?", kbID).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list memory items failed: %w", err)
	}
	return items, nil
}

// DeleteExpired removes up to limit expired items of the knowledge base
// and returns the number deleted. Ids are selected first so the limit
// stays portable across drivers.
func (r *MemoryRepository) DeleteExpired(kbID uint, now time.Time, limit int) (int64, error) {
	var ids []uint
	if err := r.db.
		Model(&model.MemoryItem{}).
		Where("knowledge_base_id = ? AND expires_at IS NOT NULL AND expires_at <= ?", kbID, now).
		Order("expires_at").
		Limit(limit).
		Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("select expired memory items failed: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	result := r.db.Where("id IN ?", ids).Delete(&model.MemoryItem{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete expired memory items failed: %w", result.Error)
	}
	return result.RowsAffected, nil
}
