package api

import "time"

type User struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type KnowledgeBase struct {
	ID            uint   `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Visibility    string `json:"visibility"`
	OwnerID       uint   `json:"owner_id"`
	OwnerUsername string `json:"owner_username"`
	CreatedAt     string `json:"created_at"`
	DocumentCount int64  `json:"document_count"`
}

type Member struct {
	ID        uint   `json:"id"`
	UserID    uint   `json:"user_id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

type Document struct {
	ID            uint   `json:"id"`
	KnowledgeBase uint   `json:"knowledge_base_id"`
	Filename      string `json:"filename"`
	ContentType   string `json:"content_type"`
	FileSize      int64  `json:"file_size"`
	ChunkCount    int    `json:"chunk_count"`
	CreatedAt     string `json:"created_at"`
}

type QuerySource struct {
	Content string `json:"content"`
}

type QueryResult struct {
	Answer  string        `json:"answer"`
	Sources []QuerySource `json:"sources"`
}

type Activity struct {
	ID                 uint                   `json:"id"`
	UserID             uint                   `json:"user_id"`
	Username           string                 `json:"username"`
	Action             string                 `json:"action"`
	ActionLabel        string                 `json:"action_label"`
	KnowledgeBaseID    uint                   `json:"knowledge_base_id,omitempty"`
	KnowledgeBaseName  string                 `json:"knowledge_base_name,omitempty"`
	KnowledgeBaseOwner string                 `json:"knowledge_base_owner,omitempty"`
	Extra              map[string]interface{} `json:"extra,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
}

type LoginResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}
