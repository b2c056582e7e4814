// Package sender implements component K (spec §4.K): drains the unsent
// event queue on a fixed interval and dispatches each event to its
// transport, applying the engine's retry and circuit-breaking policy.
// The stop-channel/waitgroup loop shape and Sentry error reporting follow
// the teacher's services/api/internal/notification/worker.go.
package sender

import (
	"context"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jpillora/backoff"
	"github.com/meetsmatch/notifyengine/internal/apperr"
	"github.com/meetsmatch/notifyengine/internal/metrics"
	"github.com/meetsmatch/notifyengine/internal/models"
	"github.com/meetsmatch/notifyengine/internal/telemetry"
)

// Queue is the read/update side of the notification event queue.
// Satisfied by *eventqueue.Queue.
type Queue interface {
	Unsent(ctx context.Context) ([]models.NotificationEvent, error)
	Update(ctx context.Context, e models.NotificationEvent) error
}

// Transport delivers one event over its channel (Email or Telegram).
type Transport interface {
	Send(ctx context.Context, event models.NotificationEvent) error
}

// Loop drains the unsent queue on Interval and dispatches by
// NotificationType, applying MAX_RETRIES-bounded backoff (spec §4.K, §7).
type Loop struct {
	Interval   time.Duration
	queue      Queue
	transports map[models.NotificationType]Transport
	backoffTpl backoff.Backoff

	stopCh chan struct{}
	wg     sync.WaitGroup
	now    func() time.Time
}

func New(interval time.Duration, queue Queue, transports map[models.NotificationType]Transport) *Loop {
	return &Loop{
		Interval:   interval,
		queue:      queue,
		transports: transports,
		backoffTpl: backoff.Backoff{Min: 10 * time.Second, Max: 5 * time.Minute, Factor: 2, Jitter: true},
		stopCh:     make(chan struct{}),
		now:        time.Now,
	}
}

// retryDelay computes the backoff delay for the given retry attempt
// (1-indexed), without mutating shared backoff state across events.
func (l *Loop) retryDelay(attempt int) time.Duration {
	b := l.backoffTpl
	b.Attempt = float64(attempt - 1)
	return b.Duration()
}

// Run blocks, firing a drain pass every Interval until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	logger := telemetry.ForComponent(ctx, "sender_loop")
	ticker := time.NewTicker(l.Interval)
	defer ticker.Stop()

	logger.WithField("interval", l.Interval).Info("sender loop started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("sender loop stopping")
			return
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.drainOnce(ctx)
		}
	}
}

func (l *Loop) Stop() {
	close(l.stopCh)
	l.wg.Wait()
}

// drainOnce implements spec §4.K: read unsent events in insertion order
// and dispatch each by type, updating status per the §7 taxonomy.
func (l *Loop) drainOnce(ctx context.Context) {
	logger := telemetry.ForComponent(ctx, "sender_loop")

	events, err := l.queue.Unsent(ctx)
	if err != nil {
		logger.WithError(err).Error("failed to read unsent events")
		return
	}

	metrics.QueueUnsentGauge.Set(float64(len(events)))
	for _, event := range events {
		l.deliver(ctx, event)
	}
}

func (l *Loop) deliver(ctx context.Context, event models.NotificationEvent) {
	logger := telemetry.ForComponent(ctx, "sender_loop").WithField("event_id", event.ID)

	transport, ok := l.transports[event.Type]
	if !ok {
		logger.WithField("type", event.Type).Error("no transport registered for notification type")
		return
	}

	err := transport.Send(ctx, event)
	now := l.now().UTC()

	switch {
	case err == nil:
		event.Status = models.EventSent
		event.SentAt = &now
		event.ErrorMessage = nil

	case isPermanent(err):
		msg := err.Error()
		event.Status = models.EventFailed
		event.ErrorMessage = &msg
		logger.WithError(err).Warn("permanent delivery failure")

	default:
		msg := err.Error()
		event.Retries++
		event.ErrorMessage = &msg
		if event.Retries >= models.MaxRetries {
			event.Status = models.EventFailed
			logger.WithError(err).Warn("delivery failed, retries exhausted")
		} else {
			event.Status = models.EventErrored
			retryAt := now.Add(l.retryDelay(event.Retries))
			event.RetryAt = &retryAt
			logger.WithError(err).Info("delivery failed, scheduled for retry")
		}
	}

	event.UpdatedAt = now
	if updateErr := l.queue.Update(ctx, event); updateErr != nil {
		logger.WithError(updateErr).Error("failed to persist event status")
	}
	metrics.EventsDeliveredTotal.WithLabelValues(string(event.Type), string(event.Status)).Inc()

	if err != nil {
		captureDeliveryError(event, err)
	}
}

// isPermanent reports whether err should fail the event immediately rather
// than being retried (spec §7: bad address, rejected message).
func isPermanent(err error) bool {
	ae, ok := apperr.As(err)
	if !ok {
		return false
	}
	return !ae.Retryable
}

func captureDeliveryError(event models.NotificationEvent, err error) {
	hub := sentry.CurrentHub().Clone()
	scope := hub.Scope()
	scope.SetTag("component", "sender_loop")
	scope.SetTag("notification_type", string(event.Type))
	scope.SetExtra("event_id", event.ID)
	scope.SetExtra("to_address", event.ToAddress)
	hub.CaptureException(err)
}
