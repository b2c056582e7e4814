// Package alerting wraps getsentry/sentry-go initialization and capture
// helpers, following the teacher's use of Sentry for worker/DLQ errors
// (services/api/internal/notification/worker.go).
package alerting

import (
	"time"

	"github.com/getsentry/sentry-go"
)

type Config struct {
	DSN         string
	Environment string
}

// Init configures the process-wide Sentry client. A no-op (DSN-less)
// client is installed when cfg.DSN is empty, so Capture calls are always
// safe to make.
func Init(cfg Config) error {
	return sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		AttachStacktrace: true,
	})
}

// Flush blocks up to timeout waiting for buffered events to send, intended
// to be deferred around process shutdown.
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}

// Capture reports err with the given component/extra tags. Safe to call
// with a nil err (no-op).
func Capture(component string, err error, extra map[string]interface{}) {
	if err == nil {
		return
	}
	hub := sentry.CurrentHub().Clone()
	scope := hub.Scope()
	scope.SetTag("component", component)
	for k, v := range extra {
		scope.SetExtra(k, v)
	}
	hub.CaptureException(err)
}
