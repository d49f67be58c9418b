// Package worker wires the watcher's host surface: configuration loading
// and the health/admin HTTP server that sits beside the scheduled checks.
package worker

import (
	"fmt"
	"time"

	"relwatch/internal/domain/entity"
	"relwatch/pkg/config"
)

// Storage backends for the watch state.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config holds the runtime configuration for the watcher process.
// Optional settings fall back to defaults; required settings fail the
// load with an entity.ConfigError so the process exits instead of
// running half-configured.
type Config struct {
	// ChangelogURL is the document to poll. Required.
	ChangelogURL string

	// FetchTimeout bounds a single changelog request.
	FetchTimeout time.Duration

	// MaxBodySize caps the changelog body in bytes.
	MaxBodySize int64

	// MinNotes is the minimum note count for a release heading to count
	// as published. Zero keeps the parser default, negative disables
	// the filter.
	MinNotes int

	// CronSchedule drives the periodic check ("*/15 * * * *",
	// "@every 5m", ...).
	CronSchedule string

	// Timezone is the IANA zone the schedule is evaluated in.
	Timezone string

	// CheckTimeout bounds one full check-and-notify run.
	CheckTimeout time.Duration

	// HealthPort is the listen port for the health/admin server.
	HealthPort int

	// StateBackend selects memory, sqlite or postgres.
	StateBackend string

	// SQLitePath is the database file when StateBackend is sqlite.
	SQLitePath string

	// PostgresDSN is the connection string when StateBackend is postgres.
	PostgresDSN string

	// Telegram configures the notification channel.
	Telegram TelegramSettings
}

// TelegramSettings is the Telegram half of the configuration. When
// Enabled is false the watcher runs with a no-op notifier, which is
// useful for dry runs and local development.
type TelegramSettings struct {
	Enabled    bool
	BotToken   string
	ChatID     string
	ThreadID   int
	APIBaseURL string
	MaxNotes   int
}

// DefaultConfig returns the configuration used when no environment
// overrides are present. ChangelogURL has no default and must be set.
func DefaultConfig() Config {
	return Config{
		FetchTimeout: 10 * time.Second,
		MaxBodySize:  1 << 20,
		CronSchedule: "*/15 * * * *",
		Timezone:     "UTC",
		CheckTimeout: 2 * time.Minute,
		HealthPort:   9091,
		StateBackend: BackendMemory,
		Telegram: TelegramSettings{
			Enabled: true,
		},
	}
}

// LoadFromEnv builds the configuration from environment variables on top
// of the defaults and validates the result.
//
// Variables:
//
//	CHANGELOG_URL         document to poll (required)
//	FETCH_TIMEOUT         e.g. "10s"
//	FETCH_MAX_BODY_BYTES  body size cap
//	CHANGELOG_MIN_NOTES   placeholder filter threshold
//	CRON_SCHEDULE         cron expression or descriptor
//	WORKER_TIMEZONE       IANA zone for the schedule
//	CHECK_TIMEOUT         per-run deadline
//	WORKER_HEALTH_PORT    health server port
//	STATE_BACKEND         memory | sqlite | postgres
//	STATE_SQLITE_PATH     sqlite database file
//	STATE_POSTGRES_DSN    postgres connection string
//	TELEGRAM_ENABLED      set "false" for a dry run
//	TELEGRAM_BOT_TOKEN    bot credential (required when enabled)
//	TELEGRAM_CHAT_ID      destination chat (required when enabled)
//	TELEGRAM_THREAD_ID    optional forum topic id
//	TELEGRAM_API_BASE_URL API endpoint override
//	NOTIFY_MAX_NOTES      note lines per message
func LoadFromEnv() (*Config, error) {
	cfg := DefaultConfig()

	cfg.ChangelogURL = config.GetEnvString("CHANGELOG_URL", cfg.ChangelogURL)
	cfg.FetchTimeout = config.GetEnvDuration("FETCH_TIMEOUT", cfg.FetchTimeout)
	cfg.MaxBodySize = int64(config.GetEnvInt("FETCH_MAX_BODY_BYTES", int(cfg.MaxBodySize)))
	cfg.MinNotes = config.GetEnvInt("CHANGELOG_MIN_NOTES", cfg.MinNotes)
	cfg.CronSchedule = config.GetEnvString("CRON_SCHEDULE", cfg.CronSchedule)
	cfg.Timezone = config.GetEnvString("WORKER_TIMEZONE", cfg.Timezone)
	cfg.CheckTimeout = config.GetEnvDuration("CHECK_TIMEOUT", cfg.CheckTimeout)
	cfg.HealthPort = config.GetEnvInt("WORKER_HEALTH_PORT", cfg.HealthPort)
	cfg.StateBackend = config.GetEnvString("STATE_BACKEND", cfg.StateBackend)
	cfg.SQLitePath = config.GetEnvString("STATE_SQLITE_PATH", cfg.SQLitePath)
	cfg.PostgresDSN = config.GetEnvString("STATE_POSTGRES_DSN", cfg.PostgresDSN)

	cfg.Telegram.Enabled = config.GetEnvBool("TELEGRAM_ENABLED", cfg.Telegram.Enabled)
	cfg.Telegram.BotToken = config.GetEnvString("TELEGRAM_BOT_TOKEN", cfg.Telegram.BotToken)
	cfg.Telegram.ChatID = config.GetEnvString("TELEGRAM_CHAT_ID", cfg.Telegram.ChatID)
	cfg.Telegram.ThreadID = config.GetEnvInt("TELEGRAM_THREAD_ID", cfg.Telegram.ThreadID)
	cfg.Telegram.APIBaseURL = config.GetEnvString("TELEGRAM_API_BASE_URL", cfg.Telegram.APIBaseURL)
	cfg.Telegram.MaxNotes = config.GetEnvInt("NOTIFY_MAX_NOTES", cfg.Telegram.MaxNotes)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required settings and value ranges. The first problem
// found is returned as an *entity.ConfigError.
func (c *Config) Validate() error {
	if c.ChangelogURL == "" {
		return &entity.ConfigError{Key: "CHANGELOG_URL", Message: "changelog URL is required"}
	}
	if err := config.ValidateHTTPURL(c.ChangelogURL); err != nil {
		return &entity.ConfigError{Key: "CHANGELOG_URL", Message: err.Error()}
	}
	if err := config.ValidatePositiveDuration(c.FetchTimeout); err != nil {
		return &entity.ConfigError{Key: "FETCH_TIMEOUT", Message: err.Error()}
	}
	if c.MaxBodySize <= 0 {
		return &entity.ConfigError{Key: "FETCH_MAX_BODY_BYTES", Message: fmt.Sprintf("must be positive, got %d", c.MaxBodySize)}
	}
	if err := config.ValidateCronSchedule(c.CronSchedule); err != nil {
		return &entity.ConfigError{Key: "CRON_SCHEDULE", Message: err.Error()}
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		return &entity.ConfigError{Key: "WORKER_TIMEZONE", Message: err.Error()}
	}
	if err := config.ValidatePositiveDuration(c.CheckTimeout); err != nil {
		return &entity.ConfigError{Key: "CHECK_TIMEOUT", Message: err.Error()}
	}
	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		return &entity.ConfigError{Key: "WORKER_HEALTH_PORT", Message: err.Error()}
	}

	switch c.StateBackend {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLitePath == "" {
			return &entity.ConfigError{Key: "STATE_SQLITE_PATH", Message: "required for the sqlite backend"}
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return &entity.ConfigError{Key: "STATE_POSTGRES_DSN", Message: "required for the postgres backend"}
		}
	default:
		return &entity.ConfigError{
			Key:     "STATE_BACKEND",
			Message: fmt.Sprintf("unknown backend %q, want memory, sqlite or postgres", c.StateBackend),
		}
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return &entity.ConfigError{Key: "TELEGRAM_BOT_TOKEN", Message: "required when Telegram is enabled"}
		}
		if c.Telegram.ChatID == "" {
			return &entity.ConfigError{Key: "TELEGRAM_CHAT_ID", Message: "required when Telegram is enabled"}
		}
	}
	return nil
}
