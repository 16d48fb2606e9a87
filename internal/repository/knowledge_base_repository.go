package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"kbhub/internal/model"
)

type KnowledgeBaseRepository struct {
	db *gorm.DB
}

func NewKnowledgeBaseRepository(db *gorm.DB) *KnowledgeBaseRepository {
	return &KnowledgeBaseRepository{db: db}
}

func (r *KnowledgeBaseRepository) Create(kb *model.KnowledgeBase) error {
	if err := r.db.Create(kb).Error; err != nil {
		return fmt.Errorf("create knowledge base failed: %w", err)
	}
	return nil
}

func (r *KnowledgeBaseRepository) GetByID(id uint) (*model.KnowledgeBase, error) {
	var kb model.KnowledgeBase
	if err := r.db.First(&kb, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query knowledge base by id failed: %w", err)
	}
	return &kb, nil
}

func (r *KnowledgeBaseRepository) Update(kb *model.KnowledgeBase) error {
	if err := r.db.Save(kb).Error; err != nil {
		return fmt.Errorf("update knowledge base failed: %w", err)
	}
	return nil
}

// ListVisibleTo returns knowledge bases the user owns or is a member of,
// deduplicated, newest first.
func (r *KnowledgeBaseRepository) ListVisibleTo(userID uint) ([]model.KnowledgeBase, error) {
	var kbs []model.KnowledgeBase
	if err := r.db.
		Distinct("knowledge_bases.*").
		Joins("LEFT JOIN memberships ON memberships.knowledge_base_id = knowledge_bases.id").
		Where("knowledge_bases.owner_id = ? OR memberships.user_id = ?", userID, userID).
		Order("knowledge_bases.created_at DESC").
		Find(&kbs).Error; err != nil {
		return nil, fmt.Errorf("list knowledge bases failed: %w", err)
	}
	return kbs, nil
}

// ListPublicIDs returns the ids of all public knowledge bases.
func (r *KnowledgeBaseRepository) ListPublicIDs() ([]uint, error) {
	var ids []uint
	if err := r.db.
		Model(&model.KnowledgeBase{}).
		Where("visibility = ?", model.VisibilityPublic).
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list public knowledge base ids failed: %w", err)
	}
	return ids, nil
}

// Delete removes the knowledge base and cascades to memberships, documents,
// chunks and memory items in one transaction.
func (r *KnowledgeBaseRepository) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("knowledge_base_id = ?", id).Delete(&model.Chunk{}).Error; err != nil {
			return fmt.Errorf("delete chunks failed: %w", err)
		}
		if err := tx.Where("knowledge_base_id = ?", id).Delete(&model.MemoryItem{}).Error; err != nil {
			return fmt.Errorf("delete memory items failed: %w", err)
		}
		if err := tx.Where("knowledge_base_id = ?", id).Delete(&model.Document{}).Error; err != nil {
			return fmt.Errorf("delete documents failed: %w", err)
		}
		if err := tx.Where("knowledge_base_id = ?", id).Delete(&model.Membership{}).Error; err != nil {
			return fmt.Errorf("delete memberships failed: %w", err)
		}
		if err := tx.Delete(&model.KnowledgeBase{}, id).Error; err != nil {
			return fmt.Errorf("delete knowledge base failed: %w", err)
		}
		return nil
	})
}
