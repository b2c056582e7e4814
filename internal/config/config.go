// Package config loads the notification engine's runtime configuration
// from the environment, following the teacher's pattern of
// LoadXConfig()/DefaultXConfig() pairs with fail-fast validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the top-level engine configuration.
type Config struct {
	DatabaseURL    string
	RedisURL       string
	TelegramToken  string
	TelegramUseWebhook bool
	WebhookURL     string
	HTTPAddr       string
	Environment    string

	TickInterval       time.Duration
	SenderInterval     time.Duration
	TelegramPollBackoff time.Duration

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	SentryDSN string
}

func Default() Config {
	return Config{
		HTTPAddr:            ":8080",
		Environment:         "development",
		TickInterval:        60 * time.Second,
		SenderInterval:      15 * time.Second,
		TelegramPollBackoff: 10 * time.Second,
		SMTPPort:            587,
	}
}

// Load reads NOTIFYENGINE_* environment variables over Default().
func Load() Config {
	cfg := Default()

	cfg.DatabaseURL = envOr("NOTIFYENGINE_DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = envOr("NOTIFYENGINE_REDIS_URL", cfg.RedisURL)
	cfg.TelegramToken = envOr("NOTIFYENGINE_TELEGRAM_TOKEN", cfg.TelegramToken)
	cfg.TelegramUseWebhook = envBool("NOTIFYENGINE_TELEGRAM_USE_WEBHOOK", false)
	cfg.WebhookURL = envOr("NOTIFYENGINE_WEBHOOK_URL", cfg.WebhookURL)
	cfg.HTTPAddr = envOr("NOTIFYENGINE_HTTP_ADDR", cfg.HTTPAddr)
	cfg.Environment = envOr("NOTIFYENGINE_ENV", cfg.Environment)

	cfg.TickInterval = envDuration("NOTIFYENGINE_TICK_INTERVAL", cfg.TickInterval)
	cfg.SenderInterval = envDuration("NOTIFYENGINE_SENDER_INTERVAL", cfg.SenderInterval)
	cfg.TelegramPollBackoff = envDuration("NOTIFYENGINE_TELEGRAM_BACKOFF", cfg.TelegramPollBackoff)

	cfg.SMTPHost = envOr("NOTIFYENGINE_SMTP_HOST", cfg.SMTPHost)
	cfg.SMTPPort = envInt("NOTIFYENGINE_SMTP_PORT", cfg.SMTPPort)
	cfg.SMTPUser = envOr("NOTIFYENGINE_SMTP_USER", cfg.SMTPUser)
	cfg.SMTPPass = envOr("NOTIFYENGINE_SMTP_PASSWORD", cfg.SMTPPass)
	cfg.SMTPFrom = envOr("NOTIFYENGINE_SMTP_FROM", cfg.SMTPFrom)

	cfg.SentryDSN = envOr("NOTIFYENGINE_SENTRY_DSN", cfg.SentryDSN)

	return cfg
}

// Validate fails fast on configuration that would make the engine
// non-functional, following the teacher's Config.Validate() convention.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("NOTIFYENGINE_DATABASE_URL is required")
	}
	if c.TelegramToken == "" {
		return fmt.Errorf("NOTIFYENGINE_TELEGRAM_TOKEN is required")
	}
	if c.TelegramUseWebhook && c.WebhookURL == "" {
		return fmt.Errorf("NOTIFYENGINE_WEBHOOK_URL is required when using webhook mode")
	}
	return nil
}

func (c Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
