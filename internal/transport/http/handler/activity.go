package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"kbhub/internal/app"
	"kbhub/internal/transport/http/middleware"
	"kbhub/internal/transport/http/response"
)

type ActivityHandler struct {
	activityService *app.ActivityService
}

func NewActivityHandler(activityService *app.ActivityService) *ActivityHandler {
	return &ActivityHandler{activityService: activityService}
}

func (h *ActivityHandler) List(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "unauthorized")
		return
	}

	scope := c.DefaultQuery("scope", app.FeedScopeAll)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	views, err := h.activityService.List(c.Request.Context(), userID, scope, limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list activities failed")
		return
	}
	response.OK(c, views)
}
