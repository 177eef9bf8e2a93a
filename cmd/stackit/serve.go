package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/emilythestrangee/stackit/backend/internal/database"
	"github.com/emilythestrangee/stackit/backend/internal/notify"
	"github.com/emilythestrangee/stackit/backend/internal/server"
	"github.com/emilythestrangee/stackit/backend/internal/store/gormstore"
)

var (
	skipMigrate     bool
	shutdownTimeout time.Duration
	publicURL       string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "Do not migrate the schema on startup")
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 15*time.Second, "Grace period for in-flight requests on shutdown")
	serveCmd.Flags().StringVar(&publicURL, "public-url", "", "Base URL prefixed to notification links sent by SMS")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, db, logger, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	if !skipMigrate {
		if err := database.Migrate(db.GetDB()); err != nil {
			return err
		}
	}
	gin.SetMode(cfg.GinMode)

	srv := server.New(cfg, server.Deps{
		Store:      gormstore.New(db.GetDB(), cfg.Database.Timeout, logger),
		Health:     db,
		Dispatcher: notify.FromConfig(cfg.Twilio, publicURL, logger),
		Logger:     logger,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv.Start(ctx)
	httpServer := srv.HTTPServer()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "event", "server_started", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		srv.Close()
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down", "event", "server_stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "event", "server_shutdown_failed", "error", err.Error())
	}
	srv.Close()
	logger.Info("server stopped", "event", "server_stopped")
	return nil
}
