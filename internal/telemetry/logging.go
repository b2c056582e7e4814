// Package telemetry provides the engine's structured logging: a logrus
// logger configured from environment, a correlation-id context helper, and
// a contextual logger that carries per-component fields through the
// tick/processor/sender call chain.
package telemetry

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// LogConfig configures the global logger. Mirrors the environment knobs the
// rest of the engine's config structs use (plain env vars, sane defaults).
type LogConfig struct {
	Level      string
	JSON       bool
	FilePath   string // empty = stderr only
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		JSON:       true,
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 28,
	}
}

// LoadLogConfig reads NOTIFYENGINE_LOG_* environment variables, falling
// back to DefaultLogConfig for anything unset.
func LoadLogConfig() LogConfig {
	cfg := DefaultLogConfig()
	if v := os.Getenv("NOTIFYENGINE_LOG_LEVEL"); v != "" {
		cfg.Level = v
	}
	if v := os.Getenv("NOTIFYENGINE_LOG_JSON"); v != "" {
		cfg.JSON = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("NOTIFYENGINE_LOG_FILE"); v != "" {
		cfg.FilePath = v
	}
	return cfg
}

var global *logrus.Logger

// Init builds the process-wide logger from cfg. Safe to call once at
// startup; subsequent calls replace the global logger.
func Init(cfg LogConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetReportCaller(false)

	if cfg.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	var out io.Writer = os.Stderr
	if cfg.FilePath != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
	}
	logger.SetOutput(out)

	global = logger
	return logger
}

// Global returns the process-wide logger, lazily initializing it from
// LoadLogConfig() if Init was never called.
func Global() *logrus.Logger {
	if global == nil {
		return Init(LoadLogConfig())
	}
	return global
}

// WithCorrelationID attaches a correlation id to ctx.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationID returns the correlation id stored in ctx, or "".
func CorrelationID(ctx context.Context) string {
	if v, ok := ctx.Value(correlationIDKey).(string); ok {
		return v
	}
	return ""
}

// ForComponent returns a field-scoped entry for a given engine component
// (e.g. "coldchain_processor", "sender_loop"), carrying the correlation id
// from ctx when present.
func ForComponent(ctx context.Context, component string) *logrus.Entry {
	entry := Global().WithField("component", component)
	if id := CorrelationID(ctx); id != "" {
		entry = entry.WithField("correlation_id", id)
	}
	return entry
}

// NewCorrelationID generates a fresh correlation id for a tick or request.
func NewCorrelationID() string {
	return uuid.NewString()
}
