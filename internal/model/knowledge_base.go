package model

import "time"

const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// Member roles, highest first. The owner role is implicit from
// KnowledgeBase.OwnerID and is never stored in a Membership row.
const (
	RoleOwner = "owner"
	RoleAdmin = "admin"
	RoleWrite = "write"
	RoleRead  = "read"
)

type KnowledgeBase struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:128;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Visibility  string    `gorm:"size:16;not null;default:private" json:"visibility"`
	OwnerID     uint      `gorm:"not null;index" json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Membership relates a non-owner user to a knowledge base.
// Exactly one row per (knowledge_base, user) pair.
type Membership struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	KnowledgeBaseID uint      `gorm:"not null;uniqueIndex:idx_kb_user" json:"knowledge_base_id"`
	UserID          uint      `gorm:"not null;uniqueIndex:idx_kb_user" json:"user_id"`
	Role            string    `gorm:"size:16;not null" json:"role"`
	CreatedAt       time.Time `json:"created_at"`
}
