package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/stackit/backend/internal/auth"
	domainerrors "github.com/emilythestrangee/stackit/backend/internal/domain/errors"
	"github.com/emilythestrangee/stackit/backend/internal/qa"
)

// Handler combines all handler types
type Handler struct {
	Auth         *AuthHandler
	Question     *QuestionHandler
	Answer       *AnswerHandler
	Comment      *CommentHandler
	Notification *NotificationHandler
	User         *UserHandler
}

// Services are the application services the handlers call into.
type Services struct {
	Accounts      *auth.Accounts
	Board         *qa.Board
	Votes         *qa.VoteLedger
	Acceptance    *qa.AcceptanceController
	Notifications *qa.NotificationEmitter
}

// NewHandler creates a unified handler with all sub-handlers
func NewHandler(svc Services) *Handler {
	return &Handler{
		Auth:         NewAuthHandler(svc.Accounts),
		Question:     NewQuestionHandler(svc.Board, svc.Acceptance),
		Answer:       NewAnswerHandler(svc.Board, svc.Votes),
		Comment:      NewCommentHandler(svc.Board),
		Notification: NewNotificationHandler(svc.Notifications),
		User:         NewUserHandler(svc.Board),
	}
}

// respondError writes the status and message err maps to.
func respondError(c *gin.Context, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "Internal server error"
	}
	if status == http.StatusServiceUnavailable {
		msg = "Service temporarily unavailable, please retry"
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": msg})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domainerrors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domainerrors.ErrUnauthenticated),
		errors.Is(err, domainerrors.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, domainerrors.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domainerrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domainerrors.ErrConstraintViolation):
		return http.StatusConflict
	case errors.Is(err, domainerrors.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// pathID parses a positive integer path parameter, answering 400 when it is
// not one.
func pathID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}
