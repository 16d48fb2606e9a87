package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"kbhub/internal/model"
)

type MembershipRepository struct {
	db *gorm.DB
}

func NewMembershipRepository(db *gorm.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

func (r *MembershipRepository) Create(m *model.Membership) error {
	if err := r.db.Create(m).Error; err != nil {
		return fmt.Errorf("create membership failed: %w", err)
	}
	return nil
}

func (r *MembershipRepository) Get(kbID, userID uint) (*model.Membership, error) {
	var m model.Membership
	if err := r.db.
		Where("knowledge_base_id = ? AND user_id = ?", kbID, userID).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query membership failed: %w", err)
	}
	return &m, nil
}

func (r *MembershipRepository) ListByKnowledgeBase(kbID uint) ([]model.Membership, error) {
	var members []model.Membership
	if err := r.db.
		Where("knowledge_base_id = ?", kbID).
		Order("created_at ASC").
		Find(&members).Error; err != nil {
		return nil, fmt.Errorf("list memberships failed: %w", err)
	}
	return members, nil
}

func (r *MembershipRepository) ListKnowledgeBaseIDsByUser(userID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.
		Model(&model.Membership{}).
		Where("user_id = ?", userID).
		Pluck("knowledge_base_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list membership kb ids failed: %w", err)
	}
	return ids, nil
}

func (r *MembershipRepository) UpdateRole(kbID, userID uint, role string) error {
	res := r.db.
		Model(&model.Membership{}).
		Where("knowledge_base_id = ? AND user_id = ?", kbID, userID).
		Update("role", role)
	if res.Error != nil {
		return fmt.Errorf("update membership role failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *MembershipRepository) Delete(kbID, userID uint) error {
	res := r.db.
		Where("knowledge_base_id = ? AND user_id = ?", kbID, userID).
		Delete(&model.Membership{})
	if res.Error != nil {
		return fmt.Errorf("delete membership failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
