// Package scheduledproc implements component H (spec §4.H): for every
// enabled Scheduled NotificationConfig whose due time has arrived, it
// advances the schedule pointer, runs the configured notification queries,
// evaluates an optional condition template, and enqueues the rendered
// report.
package scheduledproc

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/meetsmatch/notifyengine/internal/apperr"
	"github.com/meetsmatch/notifyengine/internal/eventqueue"
	"github.com/meetsmatch/notifyengine/internal/metrics"
	"github.com/meetsmatch/notifyengine/internal/models"
	"github.com/meetsmatch/notifyengine/internal/recipientresolver"
	"github.com/meetsmatch/notifyengine/internal/schedule"
	"github.com/meetsmatch/notifyengine/internal/telemetry"
	"github.com/meetsmatch/notifyengine/internal/templaterender"
	"github.com/sirupsen/logrus"
)

// ConfigSource enumerates enabled Scheduled configs and persists their
// run/due bookkeeping. Satisfied by *store.ConfigStore.
type ConfigSource interface {
	EnabledByKind(ctx context.Context, kind models.ConfigKind) ([]models.NotificationConfig, error)
	UpdateRun(ctx context.Context, tx *sql.Tx, id string, lastRunUTC interface{}, nextDueUTC interface{}) error
}

// QueryLookup resolves NotificationQuery definitions by id. Satisfied by
// *store.SQLListStore.
type QueryLookup interface {
	NotificationQueriesByIDs(ctx context.Context, ids []string) ([]models.NotificationQuery, error)
}

// QueryExecutor runs a NotificationQuery's SQL. Satisfied by
// *store.DataSource.
type QueryExecutor interface {
	Execute(ctx context.Context, query string, requiredParameters []string, params map[string]interface{}) ([]map[string]interface{}, error)
}

// TxRunner runs fn inside a transaction. Satisfied by *store.DB.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(*sql.Tx) error) error
}

// Result is the per-tick summary spec §4.H step 3 asks this operation to
// return, for logging.
type Result struct {
	Processed int
	Successful int
	Skipped   int
	Errored   int
}

type Processor struct {
	configs  ConfigSource
	queries  QueryLookup
	executor QueryExecutor
	db       TxRunner
	resolver *recipientresolver.Resolver
	queue    *eventqueue.Queue
}

func New(configs ConfigSource, queries QueryLookup, executor QueryExecutor, db TxRunner, resolver *recipientresolver.Resolver, queue *eventqueue.Queue) *Processor {
	return &Processor{configs: configs, queries: queries, executor: executor, db: db, resolver: resolver, queue: queue}
}

func (p *Processor) Run(ctx context.Context, now time.Time) (Result, error) {
	logger := telemetry.ForComponent(ctx, "scheduled_processor")
	now = now.UTC()
	var result Result

	configs, err := p.configs.EnabledByKind(ctx, models.ConfigKindScheduled)
	if err != nil {
		return result, apperr.NewDatabaseError("list enabled scheduled configs", err)
	}

	for _, cfg := range configs {
		if cfg.NextDueUTC != nil && cfg.NextDueUTC.After(now) {
			continue // not yet due, not even counted as processed
		}
		result.Processed++
		metrics.ConfigsProcessedTotal.WithLabelValues(string(models.ConfigKindScheduled)).Inc()

		outcome := p.processConfig(ctx, logger, cfg, now)
		switch outcome {
		case outcomeSkipped:
			result.Skipped++
		case outcomeErrored:
			result.Errored++
		default:
			result.Successful++
		}
	}

	return result, nil
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeSkipped
	outcomeErrored
)

func (p *Processor) processConfig(ctx context.Context, logger *logrus.Entry, cfg models.NotificationConfig, now time.Time) outcome {
	payload, err := models.ParseScheduledPayload(cfg.Payload)
	if err != nil {
		logger.WithField("config_id", cfg.ID).WithError(err).Error("parse scheduled payload failed")
		return outcomeErrored
	}

	newNextDue, err := schedule.NextDueDate(payload.ScheduleStartTimeUTC, payload.ScheduleFrequency, now)
	if err != nil {
		logger.WithField("config_id", cfg.ID).WithError(err).Error("compute next due date failed")
		return outcomeErrored
	}

	prevNextDue := cfg.NextDueUTC

	// Step 2.a: advance the schedule pointer before deciding whether to run,
	// so a skipped or failed run still moves the pointer forward.
	if err := p.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		return p.configs.UpdateRun(ctx, tx, cfg.ID, now, newNextDue)
	}); err != nil {
		logger.WithField("config_id", cfg.ID).WithError(err).Error("update config run bookkeeping failed")
		return outcomeErrored
	}

	if prevNextDue == nil {
		return outcomeSkipped // newly initialized, record only
	}
	if prevNextDue.After(now) {
		return outcomeSkipped
	}

	paramMaps, err := parseParameters(cfg.Parameters)
	if err != nil {
		logger.WithField("config_id", cfg.ID).WithError(err).Error("parse config parameters failed")
		return outcomeErrored
	}

	anyErrored := false
	for _, params := range paramMaps {
		if err := p.runOnce(ctx, cfg, payload, params); err != nil {
			logger.WithField("config_id", cfg.ID).WithError(err).Error("scheduled run failed for parameter map")
			anyErrored = true
		}
	}
	if anyErrored {
		return outcomeErrored
	}
	return outcomeSuccess
}

func (p *Processor) runOnce(ctx context.Context, cfg models.NotificationConfig, payload models.ScheduledPayload, params map[string]interface{}) error {
	logger := telemetry.ForComponent(ctx, "scheduled_processor")

	targets, err := p.resolver.Resolve(ctx, cfg, params)
	if err != nil {
		return apperr.NewRecipientError("resolve scheduled recipients", err)
	}
	if len(targets) == 0 {
		logger.WithField("config_id", cfg.ID).Info("no targets resolved, skipping parameter map")
		return nil
	}

	queries, err := p.queries.NotificationQueriesByIDs(ctx, payload.NotificationQueryIDs)
	if err != nil {
		return apperr.NewDatabaseError("fetch notification query definitions", err)
	}

	renderCtx := make(map[string]interface{}, len(params)+len(queries))
	for k, v := range params {
		renderCtx[k] = v
	}
	for _, q := range queries {
		rows, err := p.executor.Execute(ctx, q.SQL, q.RequiredParameters, params)
		if err != nil {
			// spec §4.H step 2.e.ii: substitute a degraded-message slot
			// rather than failing the whole run.
			renderCtx[q.ReferenceName] = []map[string]interface{}{
				{"error": err.Error(), "query": q.SQL, "parameters": params},
			}
			continue
		}
		renderCtx[q.ReferenceName] = rows
	}

	if payload.Conditional {
		rendered, err := templaterender.RenderString(payload.ConditionTemplate, renderCtx)
		if err != nil {
			return apperr.NewTemplateError("render condition template", err)
		}
		if !strings.Contains(rendered, "true") || strings.Contains(rendered, "false") {
			return nil
		}
	}

	in := eventqueue.EnqueueInput{
		NotificationConfigID: &cfg.ID,
		BodyTemplate:         templaterender.Inline(payload.BodyTemplate),
		Targets:              targets,
		Context:              renderCtx,
	}
	if payload.SubjectTemplate != "" {
		subject := templaterender.Inline(payload.SubjectTemplate)
		in.TitleTemplate = &subject
	}

	return p.queue.Enqueue(ctx, in)
}

func parseParameters(raw models.JSONPayload) ([]map[string]interface{}, error) {
	if len(raw) == 0 {
		return []map[string]interface{}{{}}, nil
	}
	var maps []map[string]interface{}
	if err := json.Unmarshal(raw, &maps); err != nil {
		return nil, err
	}
	if len(maps) == 0 {
		return []map[string]interface{}{{}}, nil
	}
	return maps, nil
}
