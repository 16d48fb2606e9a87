package model

import (
	"encoding/json"
	"time"
)

// MemoryItem is a shared memory entry scoped to one knowledge base.
// Agents on the same knowledge base read and write it alongside the
// document chunks. TTLSeconds -1 means permanent.
type MemoryItem struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	KnowledgeBaseID uint       `gorm:"not null;index:idx_memory_kb_created,priority:1;index:idx_memory_kb_expires,priority:1" json:"knowledge_base_id"`
	UserID          uint       `gorm:"not null" json:"user_id"`
	Content         string     `gorm:"type:text;not null" json:"content"`
	Metadata        string     `gorm:"type:text" json:"-"` // JSON object
	Embedding       string     `gorm:"type:text" json:"-"` // JSON array of float32
	TTLSeconds      int        `gorm:"default:-1" json:"ttl_seconds"`
	ExpiresAt       *time.Time `gorm:"index:idx_memory_kb_expires,priority:2" json:"expires_at,omitempty"`
	CreatedAt       time.Time  `gorm:"index:idx_memory_kb_created,priority:2" json:"created_at"`
}

// Expired reports whether the item's TTL has elapsed.
func (m *MemoryItem) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && m.ExpiresAt.Before(now)
}

// MetadataMap returns the parsed metadata; nil on parse error.
func (m *MemoryItem) MetadataMap() map[string]interface{} {
	if m.Metadata == "" {
		return nil
	}
	var meta map[string]interface{}
	if err := json.Unmarshal([]byte(m.Metadata), &meta); err != nil {
		return nil
	}
	return meta
}

func (m *MemoryItem) SetMetadata(meta map[string]interface{}) {
	if len(meta) == 0 {
		m.Metadata = ""
		return
	}
	b, _ := json.Marshal(meta)
	m.Metadata = string(b)
}

// EmbeddingVector returns the parsed embedding slice; empty on parse error.
func (m *MemoryItem) EmbeddingVector() []float32 {
	if m.Embedding == "" {
		return nil
	}
	var v []float32
	_ = json.Unmarshal([]byte(m.Embedding), &v)
	return v
}

// SetEmbedding stores the embedding as JSON.
func (m *MemoryItem) SetEmbedding(vec []float32) {
	if len(vec) == 0 {
		m.Embedding = "[]"
		return
	}
	b, _ := json.Marshal(vec)
	m.Embedding = string(b)
}
