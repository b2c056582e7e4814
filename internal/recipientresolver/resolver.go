// Package recipientresolver implements component B (spec §4.B): turning a
// NotificationConfig's recipient references — direct ids, recipient lists,
// and SQL recipient lists — into a deduplicated set of delivery Targets.
package recipientresolver

import (
	"context"

	"github.com/meetsmatch/notifyengine/internal/apperr"
	"github.com/meetsmatch/notifyengine/internal/models"
	"github.com/meetsmatch/notifyengine/internal/telemetry"
)

// RecipientSource collects direct recipients and recipient-list membership.
// Satisfied by *store.RecipientStore.
type RecipientSource interface {
	ByIDs(ctx context.Context, ids []string) ([]models.Recipient, error)
	MemberIDs(ctx context.Context, listIDs []string) ([]string, error)
}

// SQLListSource fetches SqlRecipientList definitions. Satisfied by
// *store.SQLListStore.
type SQLListSource interface {
	RecipientListsByIDs(ctx context.Context, ids []string) ([]models.SqlRecipientList, error)
}

// QueryExecutor runs a SqlRecipientList's SQL and returns generic rows.
// Satisfied by *store.DataSource.
type QueryExecutor interface {
	Execute(ctx context.Context, query string, requiredParameters []string, params map[string]interface{}) ([]map[string]interface{}, error)
}

type Resolver struct {
	recipients RecipientSource
	sqlLists   SQLListSource
	executor   QueryExecutor
}

func New(recipients RecipientSource, sqlLists SQLListSource, executor QueryExecutor) *Resolver {
	return &Resolver{recipients: recipients, sqlLists: sqlLists, executor: executor}
}

// Resolve implements spec §4.B steps 1-5: union recipient-list membership
// with the config's direct recipient ids, fetch the concrete recipients,
// evaluate each SQL recipient list (skipping — not failing — on a single
// list's query error), and dedupe the combined targets by (type, address).
func (r *Resolver) Resolve(ctx context.Context, cfg models.NotificationConfig, queryParams map[string]interface{}) ([]models.Target, error) {
	logger := telemetry.ForComponent(ctx, "recipientresolver")

	memberIDs, err := r.recipients.MemberIDs(ctx, cfg.RecipientListIDs)
	if err != nil {
		return nil, apperr.NewRecipientError("resolving recipient list membership", err)
	}

	allIDs := append(append([]string{}, cfg.RecipientIDs...), memberIDs...)
	allIDs = dedupeStrings(allIDs)

	directs, err := r.recipients.ByIDs(ctx, allIDs)
	if err != nil {
		return nil, apperr.NewRecipientError("fetching direct recipients", err)
	}

	seen := make(map[string]struct{})
	var targets []models.Target
	for _, rec := range directs {
		t := models.Target{Name: rec.Name, ToAddress: rec.ToAddress, NotificationType: rec.NotificationType}
		if _, dup := seen[t.Key()]; dup {
			continue
		}
		seen[t.Key()] = struct{}{}
		targets = append(targets, t)
	}

	sqlLists, err := r.sqlLists.RecipientListsByIDs(ctx, cfg.SQLRecipientListIDs)
	if err != nil {
		return nil, apperr.NewRecipientError("fetching sql recipient list definitions", err)
	}

	for _, list := range sqlLists {
		rows, err := r.executor.Execute(ctx, list.SQL, list.RequiredParameters, queryParams)
		if err != nil {
			// A single sql recipient list failing never aborts the whole
			// resolution (spec §4.B step 4) — it only loses its own targets.
			logger.WithField("sql_recipient_list_id", list.ID).WithError(err).
				Warn("sql recipient list query failed, skipping")
			continue
		}
		for _, row := range rows {
			t, ok := targetFromRow(row)
			if !ok {
				continue
			}
			if _, dup := seen[t.Key()]; dup {
				continue
			}
			seen[t.Key()] = struct{}{}
			targets = append(targets, t)
		}
	}

	return targets, nil
}

// targetFromRow extracts a Target from a sql recipient list row, expecting
// name/to_address/notification_type columns (spec §6). The notification
// type defaults to Email when absent or unrecognized.
func targetFromRow(row map[string]interface{}) (models.Target, bool) {
	address, ok := row["to_address"].(string)
	if !ok || address == "" {
		return models.Target{}, false
	}
	name, _ := row["name"].(string)
	typeStr, _ := row["notification_type"].(string)
	return models.Target{
		Name:             name,
		ToAddress:        address,
		NotificationType: models.ParseNotificationType(typeStr),
	}, true
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
