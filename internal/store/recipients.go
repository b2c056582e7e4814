package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/meetsmatch/notifyengine/internal/apperr"
	"github.com/meetsmatch/notifyengine/internal/models"
)

// RecipientStore resolves direct recipients and recipient-list membership
// for component B (spec §4.B).
type RecipientStore struct {
	db *DB
}

func NewRecipientStore(db *DB) *RecipientStore { return &RecipientStore{db: db} }

// ByIDs fetches concrete recipients for the given ids, skipping any id that
// no longer resolves (spec §4.B tolerates stale references).
func (s *RecipientStore) ByIDs(ctx context.Context, ids []string) ([]models.Recipient, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, notification_type, to_address
		FROM recipients WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, apperr.NewDatabaseError("query recipients by id", err)
	}
	defer rows.Close()

	var out []models.Recipient
	for rows.Next() {
		var r models.Recipient
		if err := rows.Scan(&r.ID, &r.Name, &r.NotificationType, &r.ToAddress); err != nil {
			return nil, apperr.NewDatabaseError("scan recipient row", err)
		}
		out = append(out, r)
	}
	return out, apperr.WrapIfErr(apperr.TypeDatabase, "iterate recipient rows", rows.Err())
}

// MemberIDs returns the recipient ids belonging to the given recipient
// lists (spec §4.B step 1).
func (s *RecipientStore) MemberIDs(ctx context.Context, listIDs []string) ([]string, error) {
	if len(listIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT recipient_id FROM recipient_list_members
		WHERE recipient_list_id = ANY($1)`, pq.Array(listIDs))
	if err != nil {
		return nil, apperr.NewDatabaseError("query recipient list members", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperr.NewDatabaseError("scan recipient list member row", err)
		}
		out = append(out, id)
	}
	return out, apperr.WrapIfErr(apperr.TypeDatabase, "iterate recipient list member rows", rows.Err())
}

// ByAddress looks up the recipient uniquely identified by
// (notificationType, toAddress), or (nil, nil) if none exists.
func (s *RecipientStore) ByAddress(ctx context.Context, notificationType models.NotificationType, toAddress string) (*models.Recipient, error) {
	var r models.Recipient
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, notification_type, to_address
		FROM recipients WHERE notification_type = $1 AND to_address = $2`,
		notificationType, toAddress).Scan(&r.ID, &r.Name, &r.NotificationType, &r.ToAddress)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.NewDatabaseError("query recipient by address", err)
	}
	return &r, nil
}

// Upsert creates or updates a recipient, used by the Telegram intake to
// register a chat id the first time a user interacts with the bot
// (spec §4.J).
func (s *RecipientStore) Upsert(ctx context.Context, r models.Recipient) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recipients (id, name, notification_type, to_address)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (notification_type, to_address) DO UPDATE SET name = EXCLUDED.name`,
		r.ID, r.Name, r.NotificationType, r.ToAddress)
	if err != nil {
		return apperr.NewDatabaseError("upsert recipient", err)
	}
	return nil
}

// SQLListStore fetches the SqlRecipientList and NotificationQuery
// definitions referenced by a config (spec §3/§6).
type SQLListStore struct {
	db *DB
}

func NewSQLListStore(db *DB) *SQLListStore { return &SQLListStore{db: db} }

func (s *SQLListStore) RecipientListsByIDs(ctx context.Context, ids []string) ([]models.SqlRecipientList, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, sql, required_parameters
		FROM sql_recipient_lists WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, apperr.NewDatabaseError("query sql recipient lists", err)
	}
	defer rows.Close()

	var out []models.SqlRecipientList
	for rows.Next() {
		var l models.SqlRecipientList
		if err := rows.Scan(&l.ID, &l.Name, &l.SQL, pq.Array(&l.RequiredParameters)); err != nil {
			return nil, apperr.NewDatabaseError("scan sql recipient list row", err)
		}
		out = append(out, l)
	}
	return out, apperr.WrapIfErr(apperr.TypeDatabase, "iterate sql recipient list rows", rows.Err())
}

func (s *SQLListStore) NotificationQueriesByIDs(ctx context.Context, ids []string) ([]models.NotificationQuery, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, reference_name, sql, required_parameters
		FROM notification_queries WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, apperr.NewDatabaseError("query notification queries", err)
	}
	defer rows.Close()

	var out []models.NotificationQuery
	for rows.Next() {
		var q models.NotificationQuery
		if err := rows.Scan(&q.ID, &q.ReferenceName, &q.SQL, pq.Array(&q.RequiredParameters)); err != nil {
			return nil, apperr.NewDatabaseError("scan notification query row", err)
		}
		out = append(out, q)
	}
	return out, apperr.WrapIfErr(apperr.TypeDatabase, "iterate notification query rows", rows.Err())
}
