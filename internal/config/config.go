// Package config loads process configuration from the environment (and a
// local .env file, when present) into a typed Config.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	Port        string
	GinMode     string
	LogLevel    slog.Level
	CORSOrigins []string

	Database Database
	Auth     Auth
	QA       QA
	Twilio   Twilio
}

type Database struct {
	Driver       string // "postgres" or "sqlite"
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	Timeout      time.Duration // applied to every store call
}

type Auth struct {
	JWTSecret   []byte
	TokenTTL    time.Duration
	AdminEmails []string
}

type QA struct {
	ReadRetries     int
	NotifyQueueSize int
}

type Twilio struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// Enabled reports whether SMS forwarding has credentials to work with.
func (t Twilio) Enabled() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.FromNumber != ""
}

// Load reads the configuration. Missing optional keys fall back to defaults;
// malformed values are errors.
func Load() (Config, error) {
	var cfg Config
	var errs []error

	cfg.Port = getEnv("PORT", "8080")
	cfg.GinMode = getEnv("GIN_MODE", "release")
	cfg.CORSOrigins = splitList(getEnv("CORS_ORIGINS", "*"))

	level, err := parseLevel(getEnv("LOG_LEVEL", "info"))
	errs = append(errs, err)
	cfg.LogLevel = level

	cfg.Database.Driver = strings.ToLower(getEnv("DB_DRIVER", "postgres"))
	switch cfg.Database.Driver {
	case "postgres":
		cfg.Database.DSN = os.Getenv("DATABASE_URL")
		if cfg.Database.DSN == "" {
			cfg.Database.DSN = fmt.Sprintf(
				"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
				getEnv("DB_HOST", "localhost"),
				getEnv("DB_PORT", "5432"),
				os.Getenv("DB_USER"),
				os.Getenv("DB_PASSWORD"),
				os.Getenv("DB_NAME"),
				getEnv("DB_SSLMODE", "disable"),
			)
		}
	case "sqlite":
		cfg.Database.DSN = getEnv("SQLITE_PATH", "stackit.db")
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER: unsupported driver %q", cfg.Database.Driver))
	}
	cfg.Database.MaxOpenConns, err = envInt("DB_MAX_OPEN_CONNS", 100)
	errs = append(errs, err)
	cfg.Database.MaxIdleConns, err = envInt("DB_MAX_IDLE_CONNS", 10)
	errs = append(errs, err)
	cfg.Database.Timeout, err = envDuration("STORE_TIMEOUT", 5*time.Second)
	errs = append(errs, err)

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	cfg.Auth.JWTSecret = []byte(secret)
	cfg.Auth.TokenTTL, err = envDuration("TOKEN_TTL", 72*time.Hour)
	errs = append(errs, err)
	for _, email := range splitList(os.Getenv("ADMIN_EMAILS")) {
		cfg.Auth.AdminEmails = append(cfg.Auth.AdminEmails, strings.ToLower(email))
	}

	cfg.QA.ReadRetries, err = envInt("READ_RETRIES", 3)
	errs = append(errs, err)
	cfg.QA.NotifyQueueSize, err = envInt("NOTIFY_QUEUE_SIZE", 256)
	errs = append(errs, err)

	cfg.Twilio = Twilio{
		AccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		FromNumber: os.Getenv("TWILIO_FROM_NUMBER"),
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s: invalid non-negative integer %q", key, raw)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func parseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}

func splitList(raw string) []string {
	var out []string
	for _, value := range strings.Split(raw, ",") {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}
	return out
}
