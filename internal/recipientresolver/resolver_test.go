package recipientresolver

import (
	"context"
	"errors"
	"testing"

	"github.com/meetsmatch/notifyengine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecipients struct {
	byIDs     map[string]models.Recipient
	members   map[string][]string
	membersErr error
}

func (f *fakeRecipients) ByIDs(ctx context.Context, ids []string) ([]models.Recipient, error) {
	var out []models.Recipient
	for _, id := range ids {
		if r, ok := f.byIDs[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRecipients) MemberIDs(ctx context.Context, listIDs []string) ([]string, error) {
	if f.membersErr != nil {
		return nil, f.membersErr
	}
	var out []string
	for _, id := range listIDs {
		out = append(out, f.members[id]...)
	}
	return out, nil
}

type fakeSQLLists struct {
	lists map[string]models.SqlRecipientList
}

func (f *fakeSQLLists) RecipientListsByIDs(ctx context.Context, ids []string) ([]models.SqlRecipientList, error) {
	var out []models.SqlRecipientList
	for _, id := range ids {
		if l, ok := f.lists[id]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

type fakeExecutor struct {
	rows map[string][]map[string]interface{}
	errs map[string]error
}

func (f *fakeExecutor) Execute(ctx context.Context, query string, requiredParameters []string, params map[string]interface{}) ([]map[string]interface{}, error) {
	if err, ok := f.errs[query]; ok {
		return nil, err
	}
	return f.rows[query], nil
}

func TestResolve_DedupesDirectAndListMembers(t *testing.T) {
	recipients := &fakeRecipients{
		byIDs: map[string]models.Recipient{
			"r1": {ID: "r1", Name: "Alice", NotificationType: models.NotificationEmail, ToAddress: "alice@example.com"},
			"r2": {ID: "r2", Name: "Bob", NotificationType: models.NotificationTelegram, ToAddress: "123456"},
		},
		members: map[string][]string{"l1": {"r1", "r2"}},
	}
	sqlLists := &fakeSQLLists{}
	resolver := New(recipients, sqlLists, &fakeExecutor{})

	cfg := models.NotificationConfig{RecipientIDs: []string{"r1"}, RecipientListIDs: []string{"l1"}}
	targets, err := resolver.Resolve(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Len(t, targets, 2)
}

func TestResolve_SkipsFailingSQLList(t *testing.T) {
	recipients := &fakeRecipients{byIDs: map[string]models.Recipient{}}
	sqlLists := &fakeSQLLists{lists: map[string]models.SqlRecipientList{
		"sl1": {ID: "sl1", SQL: "SELECT 1"},
	}}
	executor := &fakeExecutor{errs: map[string]error{"SELECT 1": errors.New("boom")}}
	resolver := New(recipients, sqlLists, executor)

	cfg := models.NotificationConfig{SQLRecipientListIDs: []string{"sl1"}}
	targets, err := resolver.Resolve(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Empty(t, targets)
}

func TestResolve_SQLListProducesTargets(t *testing.T) {
	recipients := &fakeRecipients{byIDs: map[string]models.Recipient{}}
	sqlLists := &fakeSQLLists{lists: map[string]models.SqlRecipientList{
		"sl1": {ID: "sl1", SQL: "SELECT to_address FROM managers"},
	}}
	executor := &fakeExecutor{rows: map[string][]map[string]interface{}{
		"SELECT to_address FROM managers": {
			{"name": "Carol", "to_address": "carol@example.com", "notification_type": "EMAIL"},
		},
	}}
	resolver := New(recipients, sqlLists, executor)

	cfg := models.NotificationConfig{SQLRecipientListIDs: []string{"sl1"}}
	targets, err := resolver.Resolve(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "carol@example.com", targets[0].ToAddress)
	assert.Equal(t, models.NotificationEmail, targets[0].NotificationType)
}
