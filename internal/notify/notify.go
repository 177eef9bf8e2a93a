// Package notify forwards persisted notifications to channels outside the
// application.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/emilythestrangee/stackit/backend/internal/config"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

// ErrNoRecipient is returned when the recipient has no address on the channel.
var ErrNoRecipient = errors.New("recipient has no address for this channel")

// Dispatcher delivers a stored notification to its recipient.
type Dispatcher interface {
	Dispatch(ctx context.Context, recipient models.User, n models.Notification) error
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Dispatch(context.Context, models.User, models.Notification) error { return nil }

type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// SMS sends notifications as text messages through Twilio.
type SMS struct {
	api     messageCreator
	from    string
	baseURL string
	logger  *slog.Logger
}

// NewSMS builds a Twilio dispatcher. baseURL prefixes notification links in
// the message body; it may be empty.
func NewSMS(cfg config.Twilio, baseURL string, logger *slog.Logger) *SMS {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return newSMS(client.Api, cfg.FromNumber, baseURL, logger)
}

func newSMS(api messageCreator, from, baseURL string, logger *slog.Logger) *SMS {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMS{api: api, from: from, baseURL: baseURL, logger: logger}
}

// FromConfig returns the SMS dispatcher when Twilio is configured and Nop
// otherwise.
func FromConfig(cfg config.Twilio, baseURL string, logger *slog.Logger) Dispatcher {
	if !cfg.Enabled() {
		return Nop{}
	}
	return NewSMS(cfg, baseURL, logger)
}

func (s *SMS) Dispatch(ctx context.Context, recipient models.User, n models.Notification) error {
	if recipient.Phone == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body := n.Message
	if n.Link != "" {
		body += " " + s.baseURL + n.Link
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(recipient.Phone)
	params.SetFrom(s.from)
	params.SetBody(body)

	msg, err := s.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("send sms for notification %d: %w", n.ID, err)
	}

	sid := ""
	if msg != nil && msg.Sid != nil {
		sid = *msg.Sid
	}
	s.logger.Info("notification sent by sms", "event", "notification_sms_sent",
		"notification_id", n.ID, "user_id", recipient.ID, "sid", sid)
	return nil
}
