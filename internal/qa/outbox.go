package qa

import (
	"context"
	"log/slog"
	"sync"

	"github.com/emilythestrangee/stackit/backend/internal/auth"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

// AnswerPosted is the event the board emits after an answer commits.
type AnswerPosted struct {
	Question models.Question
	Answerer auth.Identity
}

// Outbox decouples notification writes from the request that triggered them.
// Events wait in a bounded queue that a single worker drains into the
// emitter; the poster of an answer never waits on, or sees, the outcome.
type Outbox struct {
	emitter *NotificationEmitter
	events  chan AnswerPosted
	logger  *slog.Logger

	mu      sync.RWMutex
	closed  bool
	started bool
	done    chan struct{}
}

func NewOutbox(emitter *NotificationEmitter, size int, logger *slog.Logger) *Outbox {
	if size <= 0 {
		size = 1
	}
	return &Outbox{
		emitter: emitter,
		events:  make(chan AnswerPosted, size),
		logger:  ResolveLogger(logger),
		done:    make(chan struct{}),
	}
}

// Start launches the worker. Events are delivered with ctx's values but not
// its cancellation, so queued events still land during shutdown.
func (o *Outbox) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started || o.closed {
		return
	}
	o.started = true

	ctx = context.WithoutCancel(ctx)
	go func() {
		defer close(o.done)
		for ev := range o.events {
			o.deliver(ctx, ev)
		}
	}()
}

func (o *Outbox) deliver(ctx context.Context, ev AnswerPosted) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("notification worker recovered from panic",
				"event", "qa_outbox_panic",
				"module", module,
				"question_id", ev.Question.ID,
				"panic", r,
			)
		}
	}()
	if _, err := o.emitter.NotifyAnswerPosted(ctx, ev.Question, ev.Answerer); err != nil {
		o.emitter.report(err)
	}
}

// Enqueue hands ev to the worker without blocking. It reports false, and
// the emitter's error hook gets the reason, when the event is dropped.
func (o *Outbox) Enqueue(ev AnswerPosted) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		o.emitter.report(ErrOutboxClosed)
		return false
	}
	select {
	case o.events <- ev:
		return true
	default:
		o.logger.Warn("notification outbox full, dropping event",
			"event", "qa_outbox_dropped",
			"module", module,
			"question_id", ev.Question.ID,
			"user_id", ev.Answerer.UserID,
		)
		o.emitter.report(ErrOutboxFull)
		return false
	}
}

// Close stops accepting events and waits until the queued ones are
// delivered. It is safe to call more than once.
func (o *Outbox) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		<-o.done
		return
	}
	o.closed = true
	close(o.events)
	started := o.started
	o.mu.Unlock()

	if !started {
		// drain inline so nothing queued before Start is lost
		for ev := range o.events {
			o.deliver(context.Background(), ev)
		}
		close(o.done)
	}
	<-o.done
	o.logger.Info("notification outbox closed", "event", "qa_outbox_closed", "module", module)
}
