// Package testutil opens throwaway databases for tests.
package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/gorm"

	"github.com/emilythestrangee/stackit/backend/internal/config"
	"github.com/emilythestrangee/stackit/backend/internal/database"
)

var sqliteSeq atomic.Int64

// SQLite returns a migrated, private in-memory sqlite database.
func SQLite(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, sqliteSeq.Add(1))
	return open(t, config.Database{Driver: "sqlite", DSN: dsn})
}

// Postgres starts a postgres container and returns a migrated database on it.
// The test is skipped when no container runtime is available.
func Postgres(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container tests skipped in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("stackit"),
		tcpostgres.WithUsername("stackit"),
		tcpostgres.WithPassword("stackit"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres connection string: %v", err)
	}
	return open(t, config.Database{Driver: "postgres", DSN: dsn, MaxOpenConns: 20, MaxIdleConns: 5})
}

func open(t *testing.T, cfg config.Database) *gorm.DB {
	t.Helper()

	svc, err := database.New(cfg, slog.LevelError, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("open %s: %v", cfg.Driver, err)
	}
	t.Cleanup(func() { _ = svc.Close() })

	if err := database.Migrate(svc.GetDB()); err != nil {
		t.Fatalf("migrate %s: %v", cfg.Driver, err)
	}
	return svc.GetDB()
}

// Truncate empties every table and resets the id sequences of a postgres
// database.
func Truncate(t *testing.T, db *gorm.DB) {
	t.Helper()
	err := db.Exec("TRUNCATE users, questions, answers, votes, comments, notifications RESTART IDENTITY").Error
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
}
