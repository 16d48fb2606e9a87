package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"kbhub/internal/app"
	"kbhub/internal/transport/http/middleware"
	"kbhub/internal/transport/http/response"
)

type MemoryHandler struct {
	memoryService *app.MemoryService
}

func NewMemoryHandler(memoryService *app.MemoryService) *MemoryHandler {
	return &MemoryHandler{memoryService: memoryService}
}

type AddMemoryRequest struct {
	Content    string                 `json:"content" binding:"required"`
	Metadata   map[string]interface{} `json:"metadata"`
	TTLSeconds int                    `json:"ttl_seconds"`
}

func (h *MemoryHandler) Add(c *gin.Context) {
	userID, kbID, ok := h.idsFromContext(c)
	if !ok {
		return
	}

	var req AddMemoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	view, err := h.memoryService.Add(c.Request.Context(), app.AddMemoryInput{
		UserID:     userID,
		KBID:       kbID,
		Content:    req.Content,
		Metadata:   req.Metadata,
		TTLSeconds: req.TTLSeconds,
	})
	if err != nil {
		h.writeServiceError(c, err, "add memory failed")
		return
	}
	response.OK(c, view)
}

type QueryMemoryRequest struct {
	Query          string                 `json:"query" binding:"required"`
	TopK           int                    `json:"top_k"`
	MetadataFilter map[string]interface{} `json:"metadata_filter"`
}

func (h *MemoryHandler) Query(c *gin.Context) {
	userID, kbID, ok := h.idsFromContext(c)
	if !ok {
		return
	}

	var req QueryMemoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	views, err := h.memoryService.Query(c.Request.Context(), app.QueryMemoryInput{
		UserID:         userID,
		KBID:           kbID,
		Query:          req.Query,
		TopK:           req.TopK,
		MetadataFilter: req.MetadataFilter,
	})
	if err != nil {
		h.writeServiceError(c, err, "query memory failed")
		return
	}
	response.OK(c, views)
}

type CleanupMemoryRequest struct {
	Limit int `json:"limit"`
}

// Cleanup deletes expired memory items in bulk, admin-only.
func (h *MemoryHandler) Cleanup(c *gin.Context) {
	userID, kbID, ok := h.idsFromContext(c)
	if !ok {
		return
	}

	var req CleanupMemoryRequest
	// The body is optional; an absent one keeps the default limit.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	deleted, err := h.memoryService.CleanupExpired(userID, kbID, req.Limit)
	if err != nil {
		h.writeServiceError(c, err, "cleanup memory failed")
		return
	}
	response.OK(c, gin.H{"deleted_rows": deleted})
}

func (h *MemoryHandler) idsFromContext(c *gin.Context) (userID, kbID uint, ok bool) {
	userID, hasUser := middleware.CurrentUserID(c)
	if !hasUser {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "unauthorized")
		return 0, 0, false
	}
	raw := c.Param("id")
	parsed, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || parsed == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid id")
		return 0, 0, false
	}
	return userID, uint(parsed), true
}

func (h *MemoryHandler) writeServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput), errors.Is(err, app.ErrReservedMetadataKey):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrKBNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
	case errors.Is(err, app.ErrPermissionDenied):
		response.Error(c, http.StatusForbidden, response.CodeForbidden, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}
