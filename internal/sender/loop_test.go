package sender

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/meetsmatch/notifyengine/internal/apperr"
	"github.com/meetsmatch/notifyengine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	events  []models.NotificationEvent
	updated []models.NotificationEvent
}

func (f *fakeQueue) Unsent(ctx context.Context) ([]models.NotificationEvent, error) {
	return f.events, nil
}
func (f *fakeQueue) Update(ctx context.Context, e models.NotificationEvent) error {
	f.updated = append(f.updated, e)
	return nil
}

type fakeTransport struct {
	err error
}

func (f *fakeTransport) Send(ctx context.Context, event models.NotificationEvent) error {
	return f.err
}

func TestDrainOnce_SuccessMarksSent(t *testing.T) {
	q := &fakeQueue{events: []models.NotificationEvent{{ID: "e1", Type: models.NotificationEmail, Status: models.EventQueued}}}
	loop := New(time.Minute, q, map[models.NotificationType]Transport{
		models.NotificationEmail: &fakeTransport{},
	})
	loop.drainOnce(context.Background())
	require.Len(t, q.updated, 1)
	assert.Equal(t, models.EventSent, q.updated[0].Status)
	assert.NotNil(t, q.updated[0].SentAt)
}

func TestDrainOnce_PermanentFailureMarksFailed(t *testing.T) {
	q := &fakeQueue{events: []models.NotificationEvent{{ID: "e1", Type: models.NotificationEmail, Status: models.EventQueued}}}
	loop := New(time.Minute, q, map[models.NotificationType]Transport{
		models.NotificationEmail: &fakeTransport{err: apperr.NewDeliveryError("bad address", errors.New("x"), false)},
	})
	loop.drainOnce(context.Background())
	require.Len(t, q.updated, 1)
	assert.Equal(t, models.EventFailed, q.updated[0].Status)
}

func TestDrainOnce_TransientFailureIncrementsRetriesThenFails(t *testing.T) {
	transport := &fakeTransport{err: apperr.NewDeliveryError("timeout", errors.New("x"), true)}
	transports := map[models.NotificationType]Transport{models.NotificationEmail: transport}

	event := models.NotificationEvent{ID: "e1", Type: models.NotificationEmail, Status: models.EventQueued, Retries: models.MaxRetries - 1}
	q := &fakeQueue{events: []models.NotificationEvent{event}}
	loop := New(time.Minute, q, transports)
	loop.drainOnce(context.Background())

	require.Len(t, q.updated, 1)
	assert.Equal(t, models.EventFailed, q.updated[0].Status)
	assert.Equal(t, models.MaxRetries, q.updated[0].Retries)
}

func TestDrainOnce_TransientFailureBelowMaxRetriesSchedulesRetry(t *testing.T) {
	transport := &fakeTransport{err: apperr.NewDeliveryError("timeout", errors.New("x"), true)}
	transports := map[models.NotificationType]Transport{models.NotificationEmail: transport}

	event := models.NotificationEvent{ID: "e1", Type: models.NotificationEmail, Status: models.EventQueued, Retries: 0}
	q := &fakeQueue{events: []models.NotificationEvent{event}}
	loop := New(time.Minute, q, transports)
	loop.drainOnce(context.Background())

	require.Len(t, q.updated, 1)
	assert.Equal(t, models.EventErrored, q.updated[0].Status)
	assert.Equal(t, 1, q.updated[0].Retries)
	assert.NotNil(t, q.updated[0].RetryAt)
}
