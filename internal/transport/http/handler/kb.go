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

type KBHandler struct {
	kbService  *app.KBService
	ragService *app.RAGService
}

func NewKBHandler(kbService *app.KBService, ragService *app.RAGService) *KBHandler {
	return &KBHandler{kbService: kbService, ragService: ragService}
}

type CreateKBRequest struct {
	Name        string `json:"name" binding:"required,max=128"`
	Description string `json:"description" binding:"max=2048"`
	Visibility  string `json:"visibility" binding:"omitempty,oneof=public private"`
}

type UpdateKBRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Visibility  *string `json:"visibility" binding:"omitempty,oneof=public private"`
}

type AddMemberRequest struct {
	UserID uint   `json:"user_id" binding:"required"`
	Role   string `json:"role" binding:"required,oneof=admin write read"`
}

type UpdateMemberRequest struct {
	Role string `json:"role" binding:"required,oneof=admin write read"`
}

func (h *KBHandler) Create(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "unauthorized")
		return
	}

	var req CreateKBRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	view, err := h.kbService.Create(c.Request.Context(), app.CreateKBInput{
		OwnerID:     userID,
		Name:        req.Name,
		Description: req.Description,
		Visibility:  req.Visibility,
	})
	if err != nil {
		h.writeServiceError(c, err, "create knowledge base failed")
		return
	}
	response.OK(c, view)
}

func (h *KBHandler) List(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "unauthorized")
		return
	}

	views, err := h.kbService.List(userID)
	if err != nil {
		h.writeServiceError(c, err, "list knowledge bases failed")
		return
	}
	response.OK(c, views)
}

func (h *KBHandler) Get(c *gin.Context) {
	userID, kbID, ok := h.idsFromContext(c)
	if !ok {
		return
	}

	view, err := h.kbService.Get(userID, kbID)
	if err != nil {
		h.writeServiceError(c, err, "fetch knowledge base failed")
		return
	}
	response.OK(c, view)
}

func (h *KBHandler) Update(c *gin.Context) {
	userID, kbID, ok := h.idsFromContext(c)
	if !ok {
		return
	}

	var req UpdateKBRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	view, err := h.kbService.Update(userID, kbID, app.UpdateKBInput{
		Name:        req.Name,
		Description: req.Description,
		Visibility:  req.Visibility,
	})
	if err != nil {
		h.writeServiceError(c, err, "update knowledge base failed")
		return
	}
	response.OK(c, view)
}

func (h *KBHandler) Delete(c *gin.Context) {
	userID, kbID, ok := h.idsFromContext(c)
	if !ok {
		return
	}

	if err := h.kbService.Delete(userID, kbID); err != nil {
		h.writeServiceError(c, err, "delete knowledge base failed")
		return
	}
	response.OK(c, gin.H{"deleted": true})
}

func (h *KBHandler) ListMembers(c *gin.Context) {
	userID, kbID, ok := h.idsFromContext(c)
	if !ok {
		return
	}

	members, err := h.kbService.ListMembers(userID, kbID)
	if err != nil {
		h.writeServiceError(c, err, "list members failed")
		return
	}
	response.OK(c, members)
}

func (h *KBHandler) AddMember(c *gin.Context) {
	userID, kbID, ok := h.idsFromContext(c)
	if !ok {
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	member, err := h.kbService.AddMember(c.Request.Context(), app.AddMemberInput{
		ActorID: userID,
		KBID:    kbID,
		UserID:  req.UserID,
		Role:    req.Role,
	})
	if err != nil {
		h.writeServiceError(c, err, "add member failed")
		return
	}
	response.OK(c, member)
}

func (h *KBHandler) UpdateMember(c *gin.Context) {
	userID, kbID, ok := h.idsFromContext(c)
	if !ok {
		return
	}
	targetID, ok := h.uintParam(c, "user_id")
	if !ok {
		return
	}

	var req UpdateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	if err := h.kbService.UpdateMemberRole(userID, kbID, targetID, req.Role); err != nil {
		h.writeServiceError(c, err, "update member role failed")
		return
	}
	response.OK(c, gin.H{"updated": true})
}

func (h *KBHandler) RemoveMember(c *gin.Context) {
	userID, kbID, ok := h.idsFromContext(c)
	if !ok {
		return
	}
	targetID, ok := h.uintParam(c, "user_id")
	if !ok {
		return
	}

	if err := h.kbService.RemoveMember(userID, kbID, targetID); err != nil {
		h.writeServiceError(c, err, "remove member failed")
		return
	}
	response.OK(c, gin.H{"removed": true})
}

func (h *KBHandler) UploadDocument(c *gin.Context) {
	userID, kbID, ok := h.idsFromContext(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "open uploaded file failed")
		return
	}
	defer file.Close()
	raw, err := io.ReadAll(file)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "read uploaded file failed")
		return
	}

	result, err := h.ragService.Ingest(c.Request.Context(), app.IngestInput{
		UserID:      userID,
		KBID:        kbID,
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Raw:         raw,
	})
	if err != nil {
		h.writeServiceError(c, err, "upload document failed")
		return
	}
	response.OK(c, result)
}

func (h *KBHandler) ListDocuments(c *gin.Context) {
	userID, kbID, ok := h.idsFromContext(c)
	if !ok {
		return
	}

	docs, err := h.ragService.ListDocuments(userID, kbID)
	if err != nil {
		h.writeServiceError(c, err, "list documents failed")
		return
	}
	response.OK(c, docs)
}

func (h *KBHandler) idsFromContext(c *gin.Context) (userID, kbID uint, ok bool) {
	userID, hasUser := middleware.CurrentUserID(c)
	if !hasUser {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "unauthorized")
		return 0, 0, false
	}
	kbID, ok = h.uintParam(c, "id")
	if !ok {
		return 0, 0, false
	}
	return userID, kbID, true
}

func (h *KBHandler) uintParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	parsed, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || parsed == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid "+name)
		return 0, false
	}
	return uint(parsed), true
}

func (h *KBHandler) writeServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrKBNotFound), errors.Is(err, app.ErrUserNotFound), errors.Is(err, app.ErrMemberNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
	case errors.Is(err, app.ErrPermissionDenied):
		response.Error(c, http.StatusForbidden, response.CodeForbidden, err.Error())
	case errors.Is(err, app.ErrOwnerImmutable):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrAlreadyMember):
		response.Error(c, http.StatusBadRequest, response.CodeAlreadyMember, err.Error())
	case errors.Is(err, app.ErrEmptyDocument):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}
