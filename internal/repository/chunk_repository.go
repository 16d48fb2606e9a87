package repository

import (
	"fmt"

	"gorm.io/gorm"

	"kbhub/internal/model"
)

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

func (r *ChunkRepository) CreateBatch(chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := r.db.CreateInBatches(chunks, 100).Error; err != nil {
		return fmt.Errorf("create chunks failed: %w", err)
	}
	return nil
}

func (r *ChunkRepository) ListByKnowledgeBases(kbIDs []uint) ([]model.Chunk, error) {
	if len(kbIDs) == 0 {
		return nil, nil
	}
	var chunks []model.Chunk
	if err := r.db.
		Where("knowledge_base_id IN ?", kbIDs).
		Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list chunks failed: %w", err)
	}
	return chunks, nil
}

func (r *ChunkRepository) DeleteByDocumentID(documentID uint) error {
	if err := r.db.
		Where("document_id = ?", documentID).
		Delete(&model.Chunk{}).Error; err != nil {
		return fmt.Errorf("delete chunks by document failed: %w", err)
	}
	return nil
}
