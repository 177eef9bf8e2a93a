package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/emilythestrangee/stackit/backend/internal/config"
	"github.com/emilythestrangee/stackit/backend/internal/database"
)

var logFormat string

var rootCmd = &cobra.Command{
	Use:           "stackit",
	Short:         "StackIt Q&A backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "Log output format: json or text")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func newLogger(level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if logFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler).With("service", "stackit")
	slog.SetDefault(logger)
	return logger
}

// setup loads the configuration and opens the database.
func setup() (config.Config, database.Service, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.LogLevel)

	db, err := database.New(cfg.Database, cfg.LogLevel, logger)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	return cfg, db, logger, nil
}
