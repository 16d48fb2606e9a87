package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"kbhub/internal/app"
	"kbhub/internal/transport/http/middleware"
	"kbhub/internal/transport/http/response"
)

type QueryHandler struct {
	ragService *app.RAGService
}

func NewQueryHandler(ragService *app.RAGService) *QueryHandler {
	return &QueryHandler{ragService: ragService}
}

type QueryRequest struct {
	Question string `json:"question" binding:"required"`
	TopK     int    `json:"top_k"`
	KBIDs    []uint `json:"kb_ids"`
}

// BatchQuery answers one question across many knowledge bases.
// Empty kb_ids means every knowledge base the caller can access.
func (h *QueryHandler) BatchQuery(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "unauthorized")
		return
	}

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.ragService.Query(c.Request.Context(), app.QueryInput{
		UserID:   userID,
		Question: req.Question,
		KBIDs:    req.KBIDs,
		TopK:     req.TopK,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrNoKnowledgeBase):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrKBNotFound):
			response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
		case errors.Is(err, app.ErrPermissionDenied):
			response.Error(c, http.StatusForbidden, response.CodeForbidden, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "query failed")
		}
		return
	}
	response.OK(c, result)
}
