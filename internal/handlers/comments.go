package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/stackit/backend/internal/middleware"
	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/qa"
)

type CommentHandler struct {
	board *qa.Board
}

func NewCommentHandler(board *qa.Board) *CommentHandler {
	return &CommentHandler{board: board}
}

// GetComments returns all comments on an answer, oldest first
func (h *CommentHandler) GetComments(c *gin.Context) {
	answerID, ok := pathID(c, "id")
	if !ok {
		return
	}
	comments, err := h.board.ListComments(c.Request.Context(), answerID)
	if err != nil {
		respondError(c, err)
		return
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	c.JSON(http.StatusOK, comments)
}

// CreateComment comments on an answer (PROTECTED)
func (h *CommentHandler) CreateComment(c *gin.Context) {
	answerID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input models.CreateCommentRequest
	if !bindJSON(c, &input) {
		return
	}
	comment, err := h.board.AddComment(c.Request.Context(), middleware.Identity(c), answerID, input.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// DeleteComment removes a comment (PROTECTED - author or admin)
func (h *CommentHandler) DeleteComment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.board.DeleteComment(c.Request.Context(), middleware.Identity(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted successfully"})
}
