package model

import "time"

// Activity actions recorded for the feed.
const (
	ActionCreateKB   = "create_kb"
	ActionUploadDoc  = "upload_doc"
	ActionAddMember  = "add_member"
	ActionCreateNote = "create_note"
)

// ActionLabels maps each known action to its display label. Unknown actions
// fall back to the raw action string so new event kinds degrade gracefully.
var ActionLabels = map[string]string{
	ActionCreateKB:   "created knowledge base",
	ActionUploadDoc:  "uploaded document",
	ActionAddMember:  "added member",
	ActionCreateNote: "created note",
}

// Activity is an append-only event for the activity feed.
// Extra holds action-specific detail (filename, member_username, role...)
// serialized as JSON.
type Activity struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"not null;index" json:"user_id"`
	Action          string    `gorm:"size:32;not null" json:"action"`
	KnowledgeBaseID uint      `gorm:"index" json:"knowledge_base_id"` // 0 = not KB-scoped
	Extra           string    `gorm:"type:text" json:"extra,omitempty"`
	CreatedAt       time.Time `gorm:"index" json:"created_at"`
}
