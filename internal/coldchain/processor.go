// Package coldchain implements component F (spec §4.F): for every enabled
// ColdChain NotificationConfig, steps each configured sensor through the
// evaluator and state machine, and enqueues notifications on alert.
package coldchain

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/meetsmatch/notifyengine/internal/apperr"
	"github.com/meetsmatch/notifyengine/internal/eventqueue"
	"github.com/meetsmatch/notifyengine/internal/metrics"
	"github.com/meetsmatch/notifyengine/internal/models"
	"github.com/meetsmatch/notifyengine/internal/recipientresolver"
	"github.com/meetsmatch/notifyengine/internal/sensorstate"
	"github.com/meetsmatch/notifyengine/internal/telemetry"
	"github.com/meetsmatch/notifyengine/internal/templaterender"
)

// ConfigSource enumerates enabled ColdChain configs. Satisfied by
// *store.ConfigStore.
type ConfigSource interface {
	EnabledByKind(ctx context.Context, kind models.ConfigKind) ([]models.NotificationConfig, error)
}

// SensorSource reads sensor metadata and the latest reading. Satisfied by
// *store.SensorStore.
type SensorSource interface {
	Get(ctx context.Context, id string) (models.Sensor, error)
	LatestLog(ctx context.Context, sensorID string) (*models.TemperatureLog, error)
}

// StateStore reads and persists per-(config,sensor) SensorState. Satisfied
// by *store.SensorStateStore.
type StateStore interface {
	Get(ctx context.Context, configID, sensorID string) (*models.SensorState, error)
	Put(ctx context.Context, tx *sql.Tx, configID, sensorID string, state models.SensorState) error
}

// TxRunner runs fn inside a transaction. Satisfied by *store.DB.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(*sql.Tx) error) error
}

const (
	templateTitleAlert   = "coldchain/temperature_title"
	templateBodyAlert    = "coldchain/temperature"
	templateBodyRecovery = "coldchain/recovered"
	templateBodyNoData   = "coldchain/no_data"
)

type Processor struct {
	configs  ConfigSource
	sensors  SensorSource
	states   StateStore
	db       TxRunner
	resolver *recipientresolver.Resolver
	queue    *eventqueue.Queue
}

func New(configs ConfigSource, sensors SensorSource, states StateStore, db TxRunner, resolver *recipientresolver.Resolver, queue *eventqueue.Queue) *Processor {
	return &Processor{configs: configs, sensors: sensors, states: states, db: db, resolver: resolver, queue: queue}
}

// Run implements spec §4.F: returns the number of configurations processed.
// Per-sensor errors are logged and do not abort the batch.
func (p *Processor) Run(ctx context.Context, now time.Time) (int, error) {
	logger := telemetry.ForComponent(ctx, "coldchain_processor")
	now = now.UTC()

	configs, err := p.configs.EnabledByKind(ctx, models.ConfigKindColdChain)
	if err != nil {
		return 0, apperr.NewDatabaseError("list enabled cold-chain configs", err)
	}

	for _, cfg := range configs {
		metrics.ConfigsProcessedTotal.WithLabelValues(string(models.ConfigKindColdChain)).Inc()
		payload, err := models.ParseColdChainPayload(cfg.Payload)
		if err != nil {
			logger.WithField("config_id", cfg.ID).WithError(err).Error("parse cold-chain payload failed, skipping config")
			continue
		}

		for _, sensorID := range payload.SensorIDs {
			if err := p.processSensor(ctx, cfg, payload, sensorID, now); err != nil {
				logger.WithField("config_id", cfg.ID).WithField("sensor_id", sensorID).
					WithError(err).Error("processing sensor failed, continuing batch")
			}
		}
	}

	return len(configs), nil
}

func (p *Processor) processSensor(ctx context.Context, cfg models.NotificationConfig, payload models.ColdChainPayload, sensorID string, now time.Time) error {
	sensor, err := p.sensors.Get(ctx, sensorID)
	if err != nil {
		return apperr.Wrap(apperr.TypeNotFound, "load sensor metadata", err)
	}

	latest, err := p.sensors.LatestLog(ctx, sensorID)
	if err != nil {
		return apperr.NewDatabaseError("load latest temperature log", err)
	}

	prev, err := p.states.Get(ctx, cfg.ID, sensorID)
	if err != nil {
		return apperr.NewDatabaseError("load prior sensor state", err)
	}
	if prev == nil {
		def := models.DefaultSensorState(sensorID, now)
		prev = &def
	}

	next, alert := sensorstate.Step(payload, *prev, sensor, now, latest)

	if err := p.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		return p.states.Put(ctx, tx, cfg.ID, sensorID, next)
	}); err != nil {
		return apperr.NewDatabaseError("persist sensor state", err)
	}

	if alert == nil {
		return nil
	}

	return p.enqueueAlert(ctx, cfg, *alert)
}

func (p *Processor) enqueueAlert(ctx context.Context, cfg models.NotificationConfig, alert models.Alert) error {
	targets, err := p.resolver.Resolve(ctx, cfg, nil)
	if err != nil {
		return apperr.NewRecipientError("resolve cold-chain alert recipients", err)
	}
	if len(targets) == 0 {
		return nil
	}

	raw, err := json.Marshal(alert)
	if err != nil {
		return apperr.NewInternalError("marshal alert context", err)
	}
	var alertCtx map[string]interface{}
	if err := json.Unmarshal(raw, &alertCtx); err != nil {
		return apperr.NewInternalError("unmarshal alert context", err)
	}

	bodyTemplate := templaterender.Named(bodyTemplateFor(alert.Type))
	in := eventqueue.EnqueueInput{
		NotificationConfigID: &cfg.ID,
		BodyTemplate:         bodyTemplate,
		Targets:              targets,
		Context:              alertCtx,
	}
	if alert.Type == models.AlertHigh || alert.Type == models.AlertLow {
		title := templaterender.Named(templateTitleAlert)
		in.TitleTemplate = &title
	}

	return p.queue.Enqueue(ctx, in)
}

func bodyTemplateFor(t models.AlertType) string {
	switch t {
	case models.AlertOk:
		return templateBodyRecovery
	case models.AlertNoData:
		return templateBodyNoData
	default:
		return templateBodyAlert
	}
}
