// Package eventqueue implements component C (spec §4.C): the notification
// event queue. enqueue renders one event per target and records render
// failures as Failed events rather than raising; unsent lists events ready
// for the sender loop; update persists status changes.
package eventqueue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/meetsmatch/notifyengine/internal/apperr"
	"github.com/meetsmatch/notifyengine/internal/metrics"
	"github.com/meetsmatch/notifyengine/internal/models"
	"github.com/meetsmatch/notifyengine/internal/telemetry"
	"github.com/meetsmatch/notifyengine/internal/templaterender"
)

// Store is the persistence side of the queue. Satisfied by
// *store.EventStore.
type Store interface {
	Enqueue(ctx context.Context, e models.NotificationEvent) error
	Unsent(ctx context.Context) ([]models.NotificationEvent, error)
	Update(ctx context.Context, e models.NotificationEvent) error
}

// Renderer renders title/body templates against a context. Satisfied by
// *templaterender.Renderer.
type Renderer interface {
	Render(def templaterender.Definition, context map[string]interface{}) (string, error)
}

type Queue struct {
	store    Store
	renderer Renderer
	now      func() time.Time
}

func New(store Store, renderer Renderer) *Queue {
	return &Queue{store: store, renderer: renderer, now: time.Now}
}

// EnqueueInput bundles a render job for a set of targets (spec §4.C).
type EnqueueInput struct {
	NotificationConfigID *string
	TitleTemplate        *templaterender.Definition
	BodyTemplate         templaterender.Definition
	Targets              []models.Target
	Context              map[string]interface{}
}

// Enqueue renders title (if present) and body once per target, augmenting
// the context with a "recipient" object per target, and inserts one
// NotificationEvent per target. A body render failure is recorded as a
// Failed event rather than propagated (spec §4.C).
func (q *Queue) Enqueue(ctx context.Context, in EnqueueInput) error {
	logger := telemetry.ForComponent(ctx, "eventqueue")
	now := q.now().UTC()

	for _, target := range in.Targets {
		perTarget := cloneContext(in.Context)
		perTarget["recipient"] = map[string]interface{}{
			"name":              target.Name,
			"to_address":        target.ToAddress,
			"notification_type": string(target.NotificationType),
		}

		event := models.NotificationEvent{
			ID:                   uuid.NewString(),
			NotificationConfigID: in.NotificationConfigID,
			Type:                 target.NotificationType,
			ToAddress:            target.ToAddress,
			Status:               models.EventQueued,
			CreatedAt:            now,
			UpdatedAt:            now,
		}

		if in.TitleTemplate != nil {
			title, err := q.renderer.Render(*in.TitleTemplate, perTarget)
			if err != nil {
				logger.WithError(err).Warn("title render failed, proceeding without title")
			} else {
				event.Title = &title
			}
		}

		body, err := q.renderer.Render(in.BodyTemplate, perTarget)
		if err != nil {
			msg := err.Error()
			event.Status = models.EventFailed
			event.ErrorMessage = &msg
			logger.WithError(err).WithField("to_address", target.ToAddress).
				Error("body render failed, recording failed event")
		} else {
			event.Body = body
		}

		if err := q.store.Enqueue(ctx, event); err != nil {
			return apperr.NewDatabaseError("insert notification event", err)
		}
		metrics.EventsEnqueuedTotal.WithLabelValues(string(event.Type), string(event.Status)).Inc()
	}
	return nil
}

func (q *Queue) Unsent(ctx context.Context) ([]models.NotificationEvent, error) {
	return q.store.Unsent(ctx)
}

func (q *Queue) Update(ctx context.Context, e models.NotificationEvent) error {
	return q.store.Update(ctx, e)
}

func cloneContext(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
