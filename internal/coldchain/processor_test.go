package coldchain

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/meetsmatch/notifyengine/internal/eventqueue"
	"github.com/meetsmatch/notifyengine/internal/models"
	"github.com/meetsmatch/notifyengine/internal/recipientresolver"
	"github.com/meetsmatch/notifyengine/internal/templaterender"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConfigs struct{ list []models.NotificationConfig }

func (f *fakeConfigs) EnabledByKind(ctx context.Context, kind models.ConfigKind) ([]models.NotificationConfig, error) {
	return f.list, nil
}

type fakeSensors struct {
	sensor models.Sensor
	log    *models.TemperatureLog
}

func (f *fakeSensors) Get(ctx context.Context, id string) (models.Sensor, error) { return f.sensor, nil }
func (f *fakeSensors) LatestLog(ctx context.Context, sensorID string) (*models.TemperatureLog, error) {
	return f.log, nil
}

type fakeStates struct {
	prev  *models.SensorState
	saved models.SensorState
}

func (f *fakeStates) Get(ctx context.Context, configID, sensorID string) (*models.SensorState, error) {
	return f.prev, nil
}
func (f *fakeStates) Put(ctx context.Context, tx *sql.Tx, configID, sensorID string, state models.SensorState) error {
	f.saved = state
	return nil
}

type fakeDB struct{}

func (f *fakeDB) WithTransaction(ctx context.Context, fn func(*sql.Tx) error) error { return fn(nil) }

type fakeRecipients struct{}

func (f *fakeRecipients) ByIDs(ctx context.Context, ids []string) ([]models.Recipient, error) {
	return []models.Recipient{{ID: "r1", Name: "Alice", NotificationType: models.NotificationEmail, ToAddress: "a@example.com"}}, nil
}
func (f *fakeRecipients) MemberIDs(ctx context.Context, listIDs []string) ([]string, error) { return nil, nil }

type fakeSQLLists struct{}

func (f *fakeSQLLists) RecipientListsByIDs(ctx context.Context, ids []string) ([]models.SqlRecipientList, error) {
	return nil, nil
}

type fakeExecutor struct{}

func (f *fakeExecutor) Execute(ctx context.Context, query string, requiredParameters []string, params map[string]interface{}) ([]map[string]interface{}, error) {
	return nil, nil
}

type fakeEventStore struct{ inserted []models.NotificationEvent }

func (f *fakeEventStore) Enqueue(ctx context.Context, e models.NotificationEvent) error {
	f.inserted = append(f.inserted, e)
	return nil
}
func (f *fakeEventStore) Unsent(ctx context.Context) ([]models.NotificationEvent, error) { return nil, nil }
func (f *fakeEventStore) Update(ctx context.Context, e models.NotificationEvent) error   { return nil }

type stubRenderer struct{}

func (stubRenderer) Render(def templaterender.Definition, context map[string]interface{}) (string, error) {
	return "rendered body", nil
}

func TestRun_TransitionToHighEnqueuesAlert(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	temp := 12.0
	cfg := models.NotificationConfig{
		ID: "c1",
		Payload: models.JSONPayload(`{"highTemp":true,"highTempThreshold":8,"lowTempThreshold":2,"sensorIds":["s1"]}`),
	}
	configs := &fakeConfigs{list: []models.NotificationConfig{cfg}}
	sensors := &fakeSensors{
		sensor: models.Sensor{ID: "s1", Name: "Fridge 1"},
		log:    &models.TemperatureLog{ID: "l1", SensorID: "s1", LogDatetime: now, Temperature: &temp},
	}
	states := &fakeStates{prev: &models.SensorState{SensorID: "s1", Status: models.StatusOk, StatusStartUTC: now.Add(-time.Hour)}}
	events := &fakeEventStore{}
	resolver := recipientresolver.New(&fakeRecipients{}, &fakeSQLLists{}, &fakeExecutor{})
	queue := eventqueue.New(events, stubRenderer{})
	p := New(configs, sensors, states, &fakeDB{}, resolver, queue)

	processed, err := p.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Equal(t, models.StatusHighTemp, states.saved.Status)
	require.Len(t, events.inserted, 1)
	assert.Equal(t, "a@example.com", events.inserted[0].ToAddress)
}

func TestRun_NoTargetsSkipsEnqueue(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	temp := 12.0
	cfg := models.NotificationConfig{
		ID:      "c1",
		Payload: models.JSONPayload(`{"highTemp":true,"highTempThreshold":8,"sensorIds":["s1"]}`),
	}
	configs := &fakeConfigs{list: []models.NotificationConfig{cfg}}
	sensors := &fakeSensors{
		sensor: models.Sensor{ID: "s1", Name: "Fridge 1"},
		log:    &models.TemperatureLog{ID: "l1", SensorID: "s1", LogDatetime: now, Temperature: &temp},
	}
	states := &fakeStates{prev: &models.SensorState{SensorID: "s1", Status: models.StatusOk, StatusStartUTC: now.Add(-time.Hour)}}
	events := &fakeEventStore{}
	resolver := recipientresolver.New(&noRecipients{}, &fakeSQLLists{}, &fakeExecutor{})
	queue := eventqueue.New(events, stubRenderer{})
	p := New(configs, sensors, states, &fakeDB{}, resolver, queue)

	_, err := p.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, events.inserted)
}

type noRecipients struct{}

func (n *noRecipients) ByIDs(ctx context.Context, ids []string) ([]models.Recipient, error) { return nil, nil }
func (n *noRecipients) MemberIDs(ctx context.Context, listIDs []string) ([]string, error)    { return nil, nil }
