package qa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/emilythestrangee/stackit/backend/internal/auth"
	domainerrors "github.com/emilythestrangee/stackit/backend/internal/domain/errors"
	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/notify"
	"github.com/emilythestrangee/stackit/backend/internal/store"
)

// ErrOutboxFull is reported when an event is dropped because the outbox
// queue has no room.
var ErrOutboxFull = errors.New("notification outbox full")

// ErrOutboxClosed is reported when an event arrives after Close.
var ErrOutboxClosed = errors.New("notification outbox closed")

const defaultNotificationLimit = 50

// NotificationEmitter writes notification rows and serves them back to their
// recipients.
type NotificationEmitter struct {
	store      store.Store
	dispatcher notify.Dispatcher
	retry      Retry
	logger     *slog.Logger

	mu      sync.RWMutex
	onError func(error)
}

func NewNotificationEmitter(st store.Store, dispatcher notify.Dispatcher, retry Retry, logger *slog.Logger) *NotificationEmitter {
	if dispatcher == nil {
		dispatcher = notify.Nop{}
	}
	return &NotificationEmitter{store: st, dispatcher: dispatcher, retry: retry, logger: ResolveLogger(logger)}
}

// OnError replaces the hook that receives best-effort failures. The default
// logs them.
func (e *NotificationEmitter) OnError(fn func(error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onError = fn
}

func (e *NotificationEmitter) report(err error) {
	e.mu.RLock()
	hook := e.onError
	e.mu.RUnlock()
	if hook != nil {
		hook(err)
		return
	}
	e.logger.Error("notification side effect failed",
		"event", "qa_notification_failed",
		"module", module,
		"error", err.Error(),
	)
}

// NotifyAnswerPosted tells the author of question that answerer answered it.
// Self-answers produce nothing and return a nil notification. Once the row
// is stored it is handed to the dispatcher; dispatch failures are logged.
func (e *NotificationEmitter) NotifyAnswerPosted(ctx context.Context, question models.Question, answerer auth.Identity) (*models.Notification, error) {
	if question.AuthorID == answerer.UserID {
		return nil, nil
	}

	n := models.Notification{
		UserID:  question.AuthorID,
		Type:    models.NotificationTypeAnswer,
		Message: fmt.Sprintf("%s answered your question.", answerer.Email),
		Link:    fmt.Sprintf("/questions/%d", question.ID),
	}
	if err := e.store.CreateNotification(ctx, &n); err != nil {
		return nil, fmt.Errorf("notify author of question %d: %w", question.ID, err)
	}
	e.logger.Info("notification created",
		"event", "qa_notification_created",
		"module", module,
		"notification_id", n.ID,
		"user_id", n.UserID,
		"question_id", question.ID,
	)

	e.dispatch(ctx, n)
	return &n, nil
}

func (e *NotificationEmitter) dispatch(ctx context.Context, n models.Notification) {
	if _, ok := e.dispatcher.(notify.Nop); ok {
		return
	}
	recipient, err := e.store.GetUser(ctx, n.UserID)
	if err == nil {
		err = e.dispatcher.Dispatch(ctx, recipient, n)
	}
	switch {
	case errors.Is(err, notify.ErrNoRecipient):
		e.logger.Debug("notification not dispatched",
			"event", "qa_notification_no_recipient",
			"module", module,
			"notification_id", n.ID,
		)
	case err != nil:
		e.logger.Warn("notification dispatch failed",
			"event", "qa_notification_dispatch_failed",
			"module", module,
			"notification_id", n.ID,
			"error", err.Error(),
		)
	}
}

// MarkRead marks a notification read. Only its recipient may do so; marking
// an already read notification succeeds without a write.
func (e *NotificationEmitter) MarkRead(ctx context.Context, id *auth.Identity, notificationID int) (models.Notification, error) {
	if id == nil {
		return models.Notification{}, fmt.Errorf("mark notification read: %w", domainerrors.ErrUnauthenticated)
	}
	n, err := e.store.GetNotification(ctx, notificationID)
	if err != nil {
		return models.Notification{}, err
	}
	if !auth.CanReadNotification(id, n) {
		return models.Notification{}, fmt.Errorf("notification %d belongs to another user: %w", notificationID, domainerrors.ErrUnauthorized)
	}
	if n.Read {
		return n, nil
	}
	if _, err := e.store.MarkNotificationRead(ctx, notificationID); err != nil {
		return models.Notification{}, err
	}
	n.Read = true
	return n, nil
}

// List returns id's notifications, newest first. limit <= 0 uses a default.
func (e *NotificationEmitter) List(ctx context.Context, id *auth.Identity, limit int) ([]models.Notification, error) {
	if id == nil {
		return nil, fmt.Errorf("list notifications: %w", domainerrors.ErrUnauthenticated)
	}
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	return read(ctx, e.retry, e.logger, "list notifications", func(ctx context.Context) ([]models.Notification, error) {
		return e.store.ListNotifications(ctx, id.UserID, limit)
	})
}

func (e *NotificationEmitter) UnreadCount(ctx context.Context, id *auth.Identity) (int, error) {
	if id == nil {
		return 0, fmt.Errorf("count notifications: %w", domainerrors.ErrUnauthenticated)
	}
	return read(ctx, e.retry, e.logger, "count unread", func(ctx context.Context) (int, error) {
		return e.store.CountUnread(ctx, id.UserID)
	})
}
