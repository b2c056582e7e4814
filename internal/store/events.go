package store

import (
	"context"

	"github.com/meetsmatch/notifyengine/internal/apperr"
	"github.com/meetsmatch/notifyengine/internal/models"
)

// EventStore is the persistence side of the notification event queue
// (component C, spec §4.C): enqueue, list unsent, and update.
type EventStore struct {
	db *DB
}

func NewEventStore(db *DB) *EventStore { return &EventStore{db: db} }

func (s *EventStore) Enqueue(ctx context.Context, e models.NotificationEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_events
			(id, notification_config_id, type, to_address, title, body, status,
			 created_at, updated_at, retries)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.NotificationConfigID, e.Type, e.ToAddress, e.Title, e.Body, e.Status,
		e.CreatedAt, e.UpdatedAt, e.Retries)
	if err != nil {
		return apperr.NewDatabaseError("enqueue notification event", err)
	}
	return nil
}

// Unsent returns every event whose status is Queued, plus every Errored
// event whose RetryAt has elapsed, oldest first (spec §4.C/§4.K: events
// eligible for the next sender pass). Sent and Failed events are never
// returned.
func (s *EventStore) Unsent(ctx context.Context) ([]models.NotificationEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, notification_config_id, type, to_address, title, body, status,
		       created_at, updated_at, sent_at, retry_at, retries, error_message
		FROM notification_events
		WHERE status = $1
		   OR (status = $2 AND retry_at IS NOT NULL AND retry_at <= now())
		ORDER BY created_at ASC`, models.EventQueued, models.EventErrored)
	if err != nil {
		return nil, apperr.NewDatabaseError("query unsent notification events", err)
	}
	defer rows.Close()

	var out []models.NotificationEvent
	for rows.Next() {
		var e models.NotificationEvent
		if err := rows.Scan(&e.ID, &e.NotificationConfigID, &e.Type, &e.ToAddress, &e.Title, &e.Body, &e.Status,
			&e.CreatedAt, &e.UpdatedAt, &e.SentAt, &e.RetryAt, &e.Retries, &e.ErrorMessage); err != nil {
			return nil, apperr.NewDatabaseError("scan notification event row", err)
		}
		out = append(out, e)
	}
	return out, apperr.WrapIfErr(apperr.TypeDatabase, "iterate notification event rows", rows.Err())
}

func (s *EventStore) Update(ctx context.Context, e models.NotificationEvent) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notification_events
		SET status = $2, updated_at = $3, sent_at = $4, retry_at = $5,
		    retries = $6, error_message = $7
		WHERE id = $1`,
		e.ID, e.Status, e.UpdatedAt, e.SentAt, e.RetryAt, e.Retries, e.ErrorMessage)
	if err != nil {
		return apperr.NewDatabaseError("update notification event", err)
	}
	return nil
}
