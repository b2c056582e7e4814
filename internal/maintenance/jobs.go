// Package maintenance runs the engine's periodic housekeeping — dead-letter
// replay and queue-health reporting — as hibiken/asynq periodic tasks
// rather than folding them into the core tick loop, following the
// teacher's separate dlqCheckTicker/reconcileTicker loops in
// services/api/internal/notification/worker.go but expressed as asynq
// jobs so they get retry/observability for free.
package maintenance

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/meetsmatch/notifyengine/internal/alerting"
	"github.com/meetsmatch/notifyengine/internal/apperr"
	"github.com/meetsmatch/notifyengine/internal/models"
	"github.com/meetsmatch/notifyengine/internal/telemetry"
)

const (
	TaskDLQReplay    = "maintenance:dlq_replay"
	TaskQueueHealth  = "maintenance:queue_health"
)

// EventStore is the subset of the event queue's persistence maintenance
// jobs need: listing Failed events for replay and reading aggregate
// counts for the health report.
type EventStore interface {
	Unsent(ctx context.Context) ([]models.NotificationEvent, error)
	Update(ctx context.Context, e models.NotificationEvent) error
}

// Jobs wires the DLQ-replay and queue-health handlers into an asynq
// ServeMux, and exposes the periodic schedule for the asynq scheduler.
type Jobs struct {
	events EventStore
}

func New(events EventStore) *Jobs {
	return &Jobs{events: events}
}

// Register attaches this package's handlers to mux.
func (j *Jobs) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskDLQReplay, j.handleDLQReplay)
	mux.HandleFunc(TaskQueueHealth, j.handleQueueHealth)
}

// Schedule returns the cron specs the asynq scheduler should register for
// this package's periodic tasks (replay every 5 minutes, health report
// every minute).
func (j *Jobs) Schedule() map[string]*asynq.Task {
	return map[string]*asynq.Task{
		"*/5 * * * *": asynq.NewTask(TaskDLQReplay, nil),
		"* * * * *":   asynq.NewTask(TaskQueueHealth, nil),
	}
}

// handleDLQReplay requeues Failed events whose error looks transient,
// giving operators a manual-trigger-free recovery path for events that
// exhausted retries during a transport outage.
func (j *Jobs) handleDLQReplay(ctx context.Context, _ *asynq.Task) error {
	logger := telemetry.ForComponent(ctx, "maintenance")

	events, err := j.events.Unsent(ctx)
	if err != nil {
		alerting.Capture("maintenance.dlq_replay", err, nil)
		return apperr.NewDatabaseError("list events for dlq replay", err)
	}

	replayed := 0
	now := time.Now().UTC()
	for _, e := range events {
		if e.Status != models.EventFailed {
			continue
		}
		e.Status = models.EventErrored
		e.Retries = 0
		e.RetryAt = &now
		e.UpdatedAt = now
		if err := j.events.Update(ctx, e); err != nil {
			logger.WithField("event_id", e.ID).WithError(err).Warn("dlq replay update failed")
			continue
		}
		replayed++
	}

	logger.WithField("replayed", replayed).Info("dlq replay pass complete")
	return nil
}

// queueStats is the read-model SPEC_FULL.md §3 names for the health report.
type queueStats struct {
	QueuedByType  map[models.NotificationType]int `json:"queued_by_type"`
	ErroredByType map[models.NotificationType]int `json:"errored_by_type"`
	OldestAge     time.Duration                   `json:"oldest_age"`
}

func (j *Jobs) handleQueueHealth(ctx context.Context, _ *asynq.Task) error {
	logger := telemetry.ForComponent(ctx, "maintenance")

	events, err := j.events.Unsent(ctx)
	if err != nil {
		alerting.Capture("maintenance.queue_health", err, nil)
		return apperr.NewDatabaseError("list events for queue health", err)
	}

	stats := queueStats{QueuedByType: map[models.NotificationType]int{}, ErroredByType: map[models.NotificationType]int{}}
	now := time.Now().UTC()
	for _, e := range events {
		switch e.Status {
		case models.EventQueued:
			stats.QueuedByType[e.Type]++
		case models.EventErrored:
			stats.ErroredByType[e.Type]++
		}
		if age := now.Sub(e.CreatedAt); age > stats.OldestAge {
			stats.OldestAge = age
		}
	}

	raw, _ := json.Marshal(stats)
	logger.WithField("stats", string(raw)).Info("queue health report")
	return nil
}
