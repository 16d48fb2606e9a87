package app

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"kbhub/internal/ai"
	"kbhub/internal/model"
	"kbhub/internal/repository"
)

const (
	memoryMaxContentRunes = 5000
	memoryMaxQueryRunes   = 1000
	defaultMemoryTopK     = 5
	maxMemoryTopK         = 50
	defaultCleanupLimit   = 100
	maxCleanupLimit       = 1000

	// TTLPermanent marks a memory item that never expires.
	TTLPermanent = -1
)

var ErrReservedMetadataKey = errors.New("metadata contains reserved keys")

// reservedMetadataKeys are managed by the service itself and may not be
// supplied or filtered on by callers.
var reservedMetadataKeys = map[string]struct{}{
	"knowledge_base_id": {},
	"type":              {},
	"memory_id":         {},
	"expires_at":        {},
}

// Embedder produces an embedding vector for free text.
type Embedder interface {
	Embed(ctx context.Context, cfg ai.EmbeddingConfig, text string) ([]float32, error)
}

// MemoryService stores shared memory entries per knowledge base: write
// access to the knowledge base gates writes, read access gates queries.
type MemoryService struct {
	kbService  *KBService
	memoryRepo *repository.MemoryRepository
	embedder   Embedder
	embConfig  ai.EmbeddingConfig
}

func NewMemoryService(
	kbService *KBService,
	memoryRepo *repository.MemoryRepository,
	embedder Embedder,
	embConfig ai.EmbeddingConfig,
) *MemoryService {
	return &MemoryService{
		kbService:  kbService,
		memoryRepo: memoryRepo,
		embedder:   embedder,
		embConfig:  embConfig,
	}
}

// MemoryView is the API shape of one memory item.
type MemoryView struct {
	ID              uint                   `json:"id"`
	KnowledgeBaseID uint                   `json:"knowledge_base_id"`
	UserID          uint                   `json:"user_id"`
	Content         string                 `json:"content"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	TTLSeconds      int                    `json:"ttl_seconds"`
	ExpiresAt       string                 `json:"expires_at,omitempty"`
	CreatedAt       string                 `json:"created_at"`
}

type AddMemoryInput struct {
	UserID     uint
	KBID       uint
	Content    string
	Metadata   map[string]interface{}
	TTLSeconds int
}

// Add writes one memory item; requires write role on the knowledge base.
// A positive TTL derives an absolute expiry, anything else is permanent.
func (s *MemoryService) Add(ctx context.Context, input AddMemoryInput) (*MemoryView, error) {
	kb, err := s.kbService.requireKB(input.KBID)
	if err != nil {
		return nil, err
	}
	ok, err := s.kbService.roleAtLeast(kb, input.UserID, model.RoleWrite)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPermissionDenied
	}

	content := strings.TrimSpace(input.Content)
	if content == "" || len([]rune(content)) > memoryMaxContentRunes {
		return nil, ErrInvalidInput
	}
	if err := validateMetadataKeys(input.Metadata); err != nil {
		return nil, err
	}

	ttl := input.TTLSeconds
	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(time.Duration(ttl) * time.Second)
		expiresAt = &t
	} else {
		ttl = TTLPermanent
	}

	vector, err := s.embedder.Embed(ctx, s.embConfig, content)
	if err != nil {
		return nil, fmt.Errorf("embed memory content failed: %w", err)
	}

	item := &model.MemoryItem{
		KnowledgeBaseID: input.KBID,
		UserID:          input.UserID,
		Content:         content,
		TTLSeconds:      ttl,
		ExpiresAt:       expiresAt,
		CreatedAt:       time.Now(),
	}
	item.SetMetadata(input.Metadata)
	item.SetEmbedding(vector)

	if err := s.memoryRepo.Create(item); err != nil {
		return nil, err
	}
	return memoryView(item), nil
}

type QueryMemoryInput struct {
	UserID         uint
	KBID           uint
	Query          string
	TopK           int
	MetadataFilter map[string]interface{}
}

// Query returns the top-k non-expired memory items of the knowledge base
// by similarity, restricted to items whose metadata matches the filter.
// Read access suffices.
func (s *MemoryService) Query(ctx context.Context, input QueryMemoryInput) ([]MemoryView, error) {
	kb, err := s.kbService.requireKB(input.KBID)
	if err != nil {
		return nil, err
	}
	ok, err := s.kbService.HasAccess(kb, input.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPermissionDenied
	}

	query := strings.TrimSpace(input.Query)
	if query == "" || len([]rune(query)) > memoryMaxQueryRunes {
		return nil, ErrInvalidInput
	}
	if err := validateMetadataKeys(input.MetadataFilter); err != nil {
		return nil, err
	}
	topK := input.TopK
	if topK <= 0 {
		topK = defaultMemoryTopK
	}
	if topK > maxMemoryTopK {
		topK = maxMemoryTopK
	}

	queryVector, err := s.embedder.Embed(ctx, s.embConfig, query)
	if err != nil {
		return nil, fmt.Errorf("embed memory query failed: %w", err)
	}

	items, err := s.memoryRepo.ListActive(input.KBID, time.Now())
	if err != nil {
		return nil, err
	}

	type scored struct {
		item  *model.MemoryItem
		score float32
	}
	candidates := make([]scored, 0, len(items))
	for i := range items {
		item := &items[i]
		if !metadataMatches(item.MetadataMap(), input.MetadataFilter) {
			continue
		}
		candidates = append(candidates, scored{
			item:  item,
			score: cosineSimilarity(queryVector, item.EmbeddingVector()),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	views := make([]MemoryView, 0, len(candidates))
	for _, c := range candidates {
		views = append(views, *memoryView(c.item))
	}
	return views, nil
}

// CleanupExpired deletes up to limit expired items of the knowledge base;
// requires admin role. It returns the number of rows removed.
func (s *MemoryService) CleanupExpired(userID, kbID uint, limit int) (int64, error) {
	kb, err := s.kbService.requireKB(kbID)
	if err != nil {
		return 0, err
	}
	ok, err := s.kbService.roleAtLeast(kb, userID, model.RoleAdmin)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrPermissionDenied
	}

	if limit <= 0 {
		limit = defaultCleanupLimit
	}
	if limit > maxCleanupLimit {
		limit = maxCleanupLimit
	}
	return s.memoryRepo.DeleteExpired(kbID, time.Now(), limit)
}

func validateMetadataKeys(meta map[string]interface{}) error {
	var reserved []string
	for key := range meta {
		if _, ok := reservedMetadataKeys[key]; ok {
			reserved = append(reserved, key)
		}
	}
	if len(reserved) == 0 {
		return nil
	}
	sort.Strings(reserved)
	return fmt.Errorf("%w: %s", ErrReservedMetadataKey, strings.Join(reserved, ", "))
}

// metadataMatches requires every filter key to be present with an equal
// value. Values come from decoded JSON on both sides.
func metadataMatches(meta, filter map[string]interface{}) bool {
	if len(filter) == 0 {
		return true
	}
	for key, want := range filter {
		got, ok := meta[key]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func memoryView(item *model.MemoryItem) *MemoryView {
	view := &MemoryView{
		ID:              item.ID,
		KnowledgeBaseID: item.KnowledgeBaseID,
		UserID:          item.UserID,
		Content:         item.Content,
		Metadata:        item.MetadataMap(),
		TTLSeconds:      item.TTLSeconds,
		CreatedAt:       item.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if item.ExpiresAt != nil {
		view.ExpiresAt = item.ExpiresAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return view
}
