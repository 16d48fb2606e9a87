package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"kbhub/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(doc *model.Document) error {
	if err := r.db.Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(id uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.First(&doc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query document by id failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) ListByKnowledgeBase(kbID uint) ([]model.Document, error) {
	var docs []model.Document
	if err := r.db.
		Where("knowledge_base_id = ?", kbID).
		Order("created_at DESC").
		Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return docs, nil
}

func (r *DocumentRepository) CountByKnowledgeBase(kbID uint) (int64, error) {
	var count int64
	if err := r.db.
		Model(&model.Document{}).
		Where("knowledge_base_id = ?", kbID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count documents failed: %w", err)
	}
	return count, nil
}

func (r *DocumentRepository) UpdateChunkCount(id uint, chunkCount int) error {
	if err := r.db.
		Model(&model.Document{}).
		Where("id = ?", id).
		Update("chunk_count", chunkCount).Error; err != nil {
		return fmt.Errorf("update document chunk count failed: %w", err)
	}
	return nil
}
