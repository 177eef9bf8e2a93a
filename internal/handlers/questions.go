package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/stackit/backend/internal/middleware"
	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/qa"
)

type QuestionHandler struct {
	board  *qa.Board
	accept *qa.AcceptanceController
}

func NewQuestionHandler(board *qa.Board, accept *qa.AcceptanceController) *QuestionHandler {
	return &QuestionHandler{board: board, accept: accept}
}

// GetQuestions lists questions; supports ?q=&tag=&sort=recent|top&author=&limit=
func (h *QuestionHandler) GetQuestions(c *gin.Context) {
	query := qa.ListQuery{
		Search: c.Query("q"),
		Tag:    c.Query("tag"),
		Sort:   c.Query("sort"),
	}
	for name, dst := range map[string]*int{"author": &query.AuthorID, "limit": &query.Limit} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
			return
		}
		*dst = n
	}

	questions, err := h.board.ListQuestions(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	if questions == nil {
		questions = []models.QuestionSummary{}
	}
	c.JSON(http.StatusOK, questions)
}

// GetQuestion returns a question with its answers as the caller sees them
func (h *QuestionHandler) GetQuestion(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	detail, err := h.board.Question(c.Request.Context(), middleware.Identity(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if detail.AnswerViews == nil {
		detail.AnswerViews = []models.AnswerView{}
	}
	c.JSON(http.StatusOK, detail)
}

// CreateQuestion asks a new question (PROTECTED)
func (h *QuestionHandler) CreateQuestion(c *gin.Context) {
	var input models.CreateQuestionRequest
	if !bindJSON(c, &input) {
		return
	}
	question, err := h.board.Ask(c.Request.Context(), middleware.Identity(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, question)
}

// DeleteQuestion removes a question and everything under it (PROTECTED - admin only)
func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.board.DeleteQuestion(c.Request.Context(), middleware.Identity(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Question deleted successfully"})
}

// AcceptAnswer marks one answer of the question as accepted (PROTECTED - question author only)
func (h *QuestionHandler) AcceptAnswer(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var input models.AcceptAnswerRequest
	if !bindJSON(c, &input) {
		return
	}
	answer, err := h.accept.AcceptAnswer(c.Request.Context(), middleware.Identity(c), id, input.AnswerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, answer)
}
