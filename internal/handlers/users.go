package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/qa"
)

type UserHandler struct {
	board *qa.Board
}

func NewUserHandler(board *qa.Board) *UserHandler {
	return &UserHandler{board: board}
}

// GetUserProfile returns a user's profile and the questions they asked
func (h *UserHandler) GetUserProfile(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	profile, err := h.board.Profile(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if profile.Questions == nil {
		profile.Questions = []models.QuestionSummary{}
	}
	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"id":         profile.User.ID,
			"username":   profile.User.Username,
			"role":       profile.User.Role,
			"created_at": profile.User.CreatedAt,
		},
		"questions":      profile.Questions,
		"question_count": len(profile.Questions),
	})
}
