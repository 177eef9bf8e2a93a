package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/stackit/backend/internal/middleware"
	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/qa"
)

type AnswerHandler struct {
	board *qa.Board
	votes *qa.VoteLedger
}

func NewAnswerHandler(board *qa.Board, votes *qa.VoteLedger) *AnswerHandler {
	return &AnswerHandler{board: board, votes: votes}
}

// CreateAnswer posts an answer to a question (PROTECTED)
func (h *AnswerHandler) CreateAnswer(c *gin.Context) {
	questionID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input models.CreateAnswerRequest
	if !bindJSON(c, &input) {
		return
	}
	answer, err := h.board.PostAnswer(c.Request.Context(), middleware.Identity(c), questionID, input.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, answer)
}

// DeleteAnswer removes an answer (PROTECTED - author or admin)
func (h *AnswerHandler) DeleteAnswer(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.board.DeleteAnswer(c.Request.Context(), middleware.Identity(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Answer deleted successfully"})
}

// VoteAnswer casts, switches or retracts the caller's vote (PROTECTED)
func (h *AnswerHandler) VoteAnswer(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input models.VoteRequest
	if !bindJSON(c, &input) {
		return
	}
	res, err := h.votes.CastVote(c.Request.Context(), middleware.Identity(c), id, input.Value)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
