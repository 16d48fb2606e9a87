package app

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"

	"kbhub/internal/ai"
	"kbhub/internal/model"
	"kbhub/internal/pkg/docparse"
	"kbhub/internal/repository"
)

const (
	defaultChunkSize    = 500
	defaultChunkOverlap = 50
	defaultTopK         = 5
	embeddingBatchSize  = 10 // many embedding APIs limit batch size

	sourceExcerptRunes = 200
)

var (
	ErrNoKnowledgeBase = errors.New("no knowledge base available")
	ErrEmptyDocument   = errors.New("document has no extractable text")
)

type RAGService struct {
	kbService  *KBService
	docRepo    *repository.DocumentRepository
	chunkRepo  *repository.ChunkRepository
	llmClient  *ai.OpenAICompatibleClient
	embConfig  ai.EmbeddingConfig
	chatConfig ai.ChatConfig

	chunkSize    int
	chunkOverlap int
	activities   *ActivityService
}

func NewRAGService(
	kbService *KBService,
	docRepo *repository.DocumentRepository,
	chunkRepo *repository.ChunkRepository,
	llmClient *ai.OpenAICompatibleClient,
	embConfig ai.EmbeddingConfig,
	chatConfig ai.ChatConfig,
	chunkSize, chunkOverlap int,
	activities *ActivityService,
) *RAGService {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if chunkOverlap <= 0 {
		chunkOverlap = defaultChunkOverlap
	}
	return &RAGService{
		kbService:    kbService,
		docRepo:      docRepo,
		chunkRepo:    chunkRepo,
		llmClient:    llmClient,
		embConfig:    embConfig,
		chatConfig:   chatConfig,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		activities:   activities,
	}
}

// IngestInput is one uploaded file bound for a knowledge base.
type IngestInput struct {
	UserID      uint
	KBID        uint
	Filename    string
	ContentType string
	Raw         []byte
}

// IngestResult reports the stored document and how many chunks it produced.
type IngestResult struct {
	DocumentID uint `json:"document_id"`
	ChunkCount int  `json:"chunk_count"`
}

// Ingest parses the file, chunks the text, embeds each chunk and persists
// document plus chunks. Requires write role on the knowledge base.
func (s *RAGService) Ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	if input.UserID == 0 || input.KBID == 0 || len(input.Raw) == 0 {
		return nil, ErrInvalidInput
	}

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

	content, err := docparse.Parse(input.Raw, input.Filename, input.ContentType)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyDocument
	}

	filename := strings.TrimSpace(input.Filename)
	if filename == "" {
		filename = "unknown"
	}
	doc := &model.Document{
		KnowledgeBaseID: input.KBID,
		Filename:        filename,
		ContentType:     input.ContentType,
		FileSize:        int64(len(input.Raw)),
	}
	if err := s.docRepo.Create(doc); err != nil {
		return nil, err
	}

	chunks := chunkText(content, s.chunkSize, s.chunkOverlap)

	var embeddings [][]float32
	for i := 0; i < len(chunks); i += embeddingBatchSize {
		end := i + embeddingBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batched, err := s.llmClient.EmbedBatch(ctx, s.embConfig, chunks[i:end])
		if err != nil {
			return nil, err
		}
		embeddings = append(embeddings, batched...)
	}
	if len(embeddings) != len(chunks) {
		return nil, errors.New("embedding count mismatch")
	}

	records := make([]model.Chunk, len(chunks))
	for i := range chunks {
		records[i] = model.Chunk{
			DocumentID:      doc.ID,
			KnowledgeBaseID: input.KBID,
			Content:         chunks[i],
		}
		records[i].SetEmbedding(embeddings[i])
	}
	if err := s.chunkRepo.CreateBatch(records); err != nil {
		return nil, err
	}
	if err := s.docRepo.UpdateChunkCount(doc.ID, len(records)); err != nil {
		return nil, err
	}

	s.activities.Record(ctx, input.UserID, model.ActionUploadDoc, input.KBID, map[string]interface{}{
		"filename":    filename,
		"document_id": doc.ID,
	})
	return &IngestResult{
		DocumentID: doc.ID,
		ChunkCount: len(records),
	}, nil
}

// QueryInput targets one question at a set of knowledge bases.
// Empty KBIDs means every knowledge base the user can access.
type QueryInput struct {
	UserID   uint
	Question string
	KBIDs    []uint
	TopK     int
}

// QuerySource is one cited excerpt backing the answer.
type QuerySource struct {
	Content string `json:"content"`
}

// QueryResult is the aggregated answer with cited excerpts.
type QueryResult struct {
	Answer  string        `json:"answer"`
	Sources []QuerySource `json:"sources"`
}

// Query retrieves the top-k most similar chunks across the targeted
// knowledge bases and asks the LLM to answer from them.
func (s *RAGService) Query(ctx context.Context, input QueryInput) (*QueryResult, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, ErrInvalidInput
	}
	topK := input.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	kbIDs := input.KBIDs
	if len(kbIDs) == 0 {
		var err error
		kbIDs, err = s.kbService.AccessibleKBIDs(input.UserID)
		if err != nil {
			return nil, err
		}
	} else {
		for _, id := range kbIDs {
			kb, err := s.kbService.requireKB(id)
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
		}
	}
	if len(kbIDs) == 0 {
		return nil, ErrNoKnowledgeBase
	}

	allChunks, err := s.chunkRepo.ListByKnowledgeBases(kbIDs)
	if err != nil {
		return nil, err
	}
	if len(allChunks) == 0 {
		return &QueryResult{
			Answer:  "The targeted knowledge bases have no documents yet. Upload documents first.",
			Sources: []QuerySource{},
		}, nil
	}

	queryEmb, err := s.llmClient.Embed(ctx, s.embConfig, question)
	if err != nil {
		return nil, err
	}

	type scoredChunk struct {
		chunk *model.Chunk
		score float32
	}
	scored := make([]scoredChunk, len(allChunks))
	for i := range allChunks {
		scored[i] = scoredChunk{
			chunk: &allChunks[i],
			score: cosineSimilarity(queryEmb, allChunks[i].EmbeddingVector()),
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if topK > len(scored) {
		topK = len(scored)
	}
	selected := scored[:topK]

	var contextBlock strings.Builder
	for _, sc := range selected {
		contextBlock.WriteString("\n---\n")
		contextBlock.WriteString(sc.chunk.Content)
	}
	contextBlock.WriteString("\n---")

	messages := []ai.ChatMessage{
		{
			Role: "system",
			Content: "You are a knowledge-base assistant. Answer the user's question based only on the " +
				"following context. If the context does not contain enough information, say so. " +
				"Be accurate and concise.",
		},
		{
			Role:    "user",
			Content: "Context:" + contextBlock.String() + "\n\nQuestion: " + question + "\n\nAnswer:",
		},
	}
	answer, err := s.llmClient.Complete(ctx, s.chatConfig, messages)
	if err != nil {
		return nil, err
	}

	sources := make([]QuerySource, len(selected))
	for i, sc := range selected {
		sources[i] = QuerySource{Content: excerpt(sc.chunk.Content, sourceExcerptRunes)}
	}
	return &QueryResult{
		Answer:  strings.TrimSpace(answer),
		Sources: sources,
	}, nil
}

// ListDocuments returns the documents of one knowledge base; read access
// is enough.
func (s *RAGService) ListDocuments(userID, kbID uint) ([]model.Document, error) {
	kb, err := s.kbService.requireKB(kbID)
	if err != nil {
		return nil, err
	}
	ok, err := s.kbService.HasAccess(kb, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPermissionDenied
	}
	return s.docRepo.ListByKnowledgeBase(kbID)
}

// chunkText splits text into overlapping chunks by rune count.
func chunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap >= size {
		overlap = size / 2
	}
	var chunks []string
	runes := []rune(text)
	for i := 0; i < len(runes); {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		i += size - overlap
		if i >= len(runes) {
			break
		}
	}
	return chunks
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

func excerpt(content string, maxRunes int) string {
	runes := []rune(content)
	if len(runes) <= maxRunes {
		return content
	}
	return string(runes[:maxRunes]) + "..."
}
