package scheduledproc

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

type fakeConfigs struct {
	list    []models.NotificationConfig
	updated map[string]bool
}

func (f *fakeConfigs) EnabledByKind(ctx context.Context, kind models.ConfigKind) ([]models.NotificationConfig, error) {
	return f.list, nil
}
func (f *fakeConfigs) UpdateRun(ctx context.Context, tx *sql.Tx, id string, lastRunUTC interface{}, nextDueUTC interface{}) error {
	if f.updated == nil {
		f.updated = map[string]bool{}
	}
	f.updated[id] = true
	return nil
}

type fakeQueries struct{}

func (f *fakeQueries) NotificationQueriesByIDs(ctx context.Context, ids []string) ([]models.NotificationQuery, error) {
	return nil, nil
}

type fakeExecutor struct{}

func (f *fakeExecutor) Execute(ctx context.Context, query string, requiredParameters []string, params map[string]interface{}) ([]map[string]interface{}, error) {
	return nil, nil
}

type fakeDB struct{}

func (f *fakeDB) WithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	return fn(nil)
}

type fakeRecipients struct{}

func (f *fakeRecipients) ByIDs(ctx context.Context, ids []string) ([]models.Recipient, error) {
	return []models.Recipient{{ID: "r1", Name: "Alice", NotificationType: models.NotificationEmail, ToAddress: "a@example.com"}}, nil
}
func (f *fakeRecipients) MemberIDs(ctx context.Context, listIDs []string) ([]string, error) {
	return nil, nil
}

type fakeSQLLists struct{}

func (f *fakeSQLLists) RecipientListsByIDs(ctx context.Context, ids []string) ([]models.SqlRecipientList, error) {
	return nil, nil
}

type fakeEventStore struct {
	inserted []models.NotificationEvent
}

func (f *fakeEventStore) Enqueue(ctx context.Context, e models.NotificationEvent) error {
	f.inserted = append(f.inserted, e)
	return nil
}
func (f *fakeEventStore) Unsent(ctx context.Context) ([]models.NotificationEvent, error) {
	return nil, nil
}
func (f *fakeEventStore) Update(ctx context.Context, e models.NotificationEvent) error { return nil }

func TestRun_NullNextDueIsSkippedButAdvanced(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := models.NotificationConfig{
		ID:         "c1",
		RecipientIDs: []string{"r1"},
		Payload: models.JSONPayload(`{"bodyTemplate":"hi","scheduleFrequency":"daily","scheduleStartTime":"2024-01-01T00:00:00Z","notificationQueryIds":[]}`),
	}
	configs := &fakeConfigs{list: []models.NotificationConfig{cfg}}
	events := &fakeEventStore{}
	resolver := recipientresolver.New(&fakeRecipients{}, &fakeSQLLists{}, &fakeExecutor{})
	queue := eventqueue.New(events, stubRenderer{})
	p := New(configs, &fakeQueries{}, &fakeExecutor{}, &fakeDB{}, resolver, queue)

	now := start.Add(48 * time.Hour)
	result, err := p.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, events.inserted)
	assert.True(t, configs.updated["c1"])
}

type stubRenderer struct{}

func (stubRenderer) Render(def templaterender.Definition, context map[string]interface{}) (string, error) {
	return "rendered", nil
}
