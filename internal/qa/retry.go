package qa

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	domainerrors "github.com/emilythestrangee/stackit/backend/internal/domain/errors"
)

// Retry bounds how reads are retried when the store is unavailable. Writes
// are never retried here; their errors reach the caller.
type Retry struct {
	Attempts int           // retries after the first try
	Initial  time.Duration // first backoff interval
	Max      time.Duration // cap on a single interval
}

func DefaultRetry(attempts int) Retry {
	return Retry{Attempts: attempts, Initial: 50 * time.Millisecond, Max: time.Second}
}

func (r Retry) policy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if r.Initial > 0 {
		exp.InitialInterval = r.Initial
	}
	if r.Max > 0 {
		exp.MaxInterval = r.Max
	}
	exp.MaxElapsedTime = 0
	attempts := r.Attempts
	if attempts < 0 {
		attempts = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts)), ctx)
}

// read runs fn, retrying with exponential backoff while it fails with
// ErrStoreUnavailable. Any other error is returned at once.
func read[T any](ctx context.Context, r Retry, logger *slog.Logger, op string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		v, err := fn(ctx)
		if err == nil {
			out = v
			return nil
		}
		if !domainerrors.Retryable(err) {
			return backoff.Permanent(err)
		}
		logger.Warn("store read failed, retrying",
			"event", "qa_read_retry",
			"module", module,
			"op", op,
			"attempt", attempt,
			"error", err.Error(),
		)
		return err
	}, r.policy(ctx))
	return out, err
}
