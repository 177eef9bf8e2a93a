package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/stackit/backend/internal/middleware"
	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/qa"
)

type NotificationHandler struct {
	emitter *qa.NotificationEmitter
}

func NewNotificationHandler(emitter *qa.NotificationEmitter) *NotificationHandler {
	return &NotificationHandler{emitter: emitter}
}

// GetNotifications returns the caller's notifications and unread count (PROTECTED)
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = n
	}

	id := middleware.Identity(c)
	list, err := h.emitter.List(c.Request.Context(), id, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	unread, err := h.emitter.UnreadCount(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []models.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list, "unread": unread})
}

// MarkRead marks one of the caller's notifications read (PROTECTED - recipient only)
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	n, err := h.emitter.MarkRead(c.Request.Context(), middleware.Identity(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}
