package model

import "time"

// Document belongs to exactly one knowledge base.
// ChunkCount == 0 means the file has not been parsed yet.
type Document struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	KnowledgeBaseID uint      `gorm:"not null;index" json:"knowledge_base_id"`
	Filename        string    `gorm:"size:256;not null" json:"filename"`
	ContentType     string    `gorm:"size:128" json:"content_type"`
	FileSize        int64     `json:"file_size"`
	ChunkCount      int       `json:"chunk_count"`
	CreatedAt       time.Time `json:"created_at"`
}
