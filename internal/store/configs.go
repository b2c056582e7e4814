package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/meetsmatch/notifyengine/internal/apperr"
	"github.com/meetsmatch/notifyengine/internal/models"
)

// ConfigStore persists NotificationConfig rows (spec §3).
type ConfigStore struct {
	db *DB
}

func NewConfigStore(db *DB) *ConfigStore { return &ConfigStore{db: db} }

// EnabledByKind returns every enabled NotificationConfig of the given kind,
// the set component F/H iterate each tick (spec §4.F step 1, §4.H step 1).
func (s *ConfigStore) EnabledByKind(ctx context.Context, kind models.ConfigKind) ([]models.NotificationConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, kind, status, payload, parameters,
		       recipient_ids, recipient_list_ids, sql_recipient_list_ids,
		       last_run_utc, next_due_utc, remind
		FROM notification_configs
		WHERE kind = $1 AND status = $2`, kind, models.ConfigEnabled)
	if err != nil {
		return nil, apperr.NewDatabaseError("query enabled configs", err)
	}
	defer rows.Close()

	var out []models.NotificationConfig
	for rows.Next() {
		var c models.NotificationConfig
		if err := rows.Scan(&c.ID, &c.Title, &c.Kind, &c.Status, &c.Payload, &c.Parameters,
			pq.Array(&c.RecipientIDs), pq.Array(&c.RecipientListIDs), pq.Array(&c.SQLRecipientListIDs),
			&c.LastRunUTC, &c.NextDueUTC, &c.Remind); err != nil {
			return nil, apperr.NewDatabaseError("scan config row", err)
		}
		out = append(out, c)
	}
	return out, apperr.WrapIfErr(apperr.TypeDatabase, "iterate config rows", rows.Err())
}

// UpdateRun persists a config's last-run/next-due bookkeeping after a tick
// processes it (spec §4.H step 2.a).
func (s *ConfigStore) UpdateRun(ctx context.Context, tx *sql.Tx, id string, lastRunUTC interface{}, nextDueUTC interface{}) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE notification_configs SET last_run_utc = $2, next_due_utc = $3 WHERE id = $1`,
		id, lastRunUTC, nextDueUTC)
	if err != nil {
		return apperr.NewDatabaseError("update config run bookkeeping", err)
	}
	return nil
}

// SensorStore reads externally-owned sensor metadata and temperature logs
// (spec §3's "external, read-only" entities).
type SensorStore struct {
	db *DB
}

func NewSensorStore(db *DB) *SensorStore { return &SensorStore{db: db} }

func (s *SensorStore) Get(ctx context.Context, id string) (models.Sensor, error) {
	var sensor models.Sensor
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, store_name, location_name, battery_level
		FROM sensors WHERE id = $1`, id).
		Scan(&sensor.ID, &sensor.Name, &sensor.StoreName, &sensor.LocationName, &sensor.BatteryLevel)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Sensor{}, apperr.NewNotFoundError(fmt.Sprintf("sensor %s not found", id), err)
	}
	if err != nil {
		return models.Sensor{}, apperr.NewDatabaseError("query sensor", err)
	}
	return sensor, nil
}

// LatestLog returns the most recent TemperatureLog for sensorID, or
// (nil, nil) when the sensor has never reported (spec §4.D step 1).
func (s *SensorStore) LatestLog(ctx context.Context, sensorID string) (*models.TemperatureLog, error) {
	var log models.TemperatureLog
	err := s.db.QueryRowContext(ctx, `
		SELECT id, sensor_id, log_datetime, temperature
		FROM temperature_logs WHERE sensor_id = $1
		ORDER BY log_datetime DESC LIMIT 1`, sensorID).
		Scan(&log.ID, &log.SensorID, &log.LogDatetime, &log.Temperature)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.NewDatabaseError("query latest temperature log", err)
	}
	return &log, nil
}

// SensorStateStore is the plugin KV store keyed by (config_id, sensor_id)
// holding each sensor's SensorState JSON (spec §4.E, §9 plugin-store note).
type SensorStateStore struct {
	db *DB
}

func NewSensorStateStore(db *DB) *SensorStateStore { return &SensorStateStore{db: db} }

func (s *SensorStateStore) Get(ctx context.Context, configID, sensorID string) (*models.SensorState, error) {
	var raw models.JSONPayload
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM plugin_kv_store WHERE config_id = $1 AND sensor_id = $2`,
		configID, sensorID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.NewDatabaseError("query sensor state", err)
	}
	var state models.SensorState
	if err := raw.Unmarshal(&state); err != nil {
		return nil, apperr.NewDatabaseError("unmarshal sensor state", err)
	}
	return &state, nil
}

func (s *SensorStateStore) Put(ctx context.Context, tx *sql.Tx, configID, sensorID string, state models.SensorState) error {
	payload, err := marshalState(state)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO plugin_kv_store (config_id, sensor_id, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (config_id, sensor_id) DO UPDATE SET value = EXCLUDED.value`,
		configID, sensorID, payload)
	if err != nil {
		return apperr.NewDatabaseError("upsert sensor state", err)
	}
	return nil
}
