package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"kbhub/internal/app"
	"kbhub/internal/transport/http/response"
)

type UserHandler struct {
	authService *app.AuthService
}

func NewUserHandler(authService *app.AuthService) *UserHandler {
	return &UserHandler{authService: authService}
}

// Search finds users by username or email substring, for the invite flow.
func (h *UserHandler) Search(c *gin.Context) {
	query := c.Query("q")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	users, err := h.authService.SearchUsers(query, limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "search users failed")
		return
	}

	results := make([]gin.H, 0, len(users))
	for _, u := range users {
		results = append(results, gin.H{
			"id":       u.ID,
			"username": u.Username,
			"email":    u.Email,
		})
	}
	response.OK(c, results)
}
