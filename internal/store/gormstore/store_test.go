package gormstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	domainerrors "github.com/emilythestrangee/stackit/backend/internal/domain/errors"
	"github.com/emilythestrangee/stackit/backend/internal/store"
	"github.com/emilythestrangee/stackit/backend/internal/store/storetest"
	"github.com/emilythestrangee/stackit/backend/internal/testutil"
)

func TestStoreSQLite(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return New(testutil.SQLite(t), 5*time.Second, slog.New(slog.DiscardHandler))
	})
}

func TestStorePostgres(t *testing.T) {
	db := testutil.Postgres(t)
	storetest.Run(t, func(t *testing.T) store.Store {
		testutil.Truncate(t, db)
		return New(db, 5*time.Second, slog.New(slog.DiscardHandler))
	})
}

func TestTranslate(t *testing.T) {
	s := New(nil, 0, slog.New(slog.DiscardHandler))

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"record not found", gorm.ErrRecordNotFound, domainerrors.ErrNotFound},
		{"gorm duplicate", gorm.ErrDuplicatedKey, domainerrors.ErrConstraintViolation},
		{"pg unique", &pgconn.PgError{Code: "23505"}, domainerrors.ErrConstraintViolation},
		{"sqlite unique", errors.New("constraint failed: UNIQUE constraint failed: votes.user_id, votes.answer_id (2067)"), domainerrors.ErrConstraintViolation},
		{"pg serialization", &pgconn.PgError{Code: "40001"}, domainerrors.ErrStoreUnavailable},
		{"pg connection", &pgconn.PgError{Code: "08006"}, domainerrors.ErrStoreUnavailable},
		{"deadline", context.DeadlineExceeded, domainerrors.ErrStoreUnavailable},
		{"sqlite busy", errors.New("database is locked (5) (SQLITE_BUSY)"), domainerrors.ErrStoreUnavailable},
		{"domain passthrough", fmt.Errorf("wrapped: %w", domainerrors.ErrUnauthorized), domainerrors.ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, s.translate(tt.err, "op"), tt.want)
		})
	}

	assert.NoError(t, s.translate(nil, "op"))

	other := errors.New("syntax error at or near")
	got := s.translate(other, "op")
	assert.ErrorIs(t, got, other)
	assert.False(t, domainerrors.Retryable(got))
}
