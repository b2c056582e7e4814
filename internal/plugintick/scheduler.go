// Package plugintick implements the tick scheduler (spec §4.I / §9): a
// process-level periodic loop that invokes every registered plugin's
// tick(now) in registration order. No dynamic loading — plugins are
// registered once at startup.
package plugintick

import (
	"context"
	"time"

	"github.com/meetsmatch/notifyengine/internal/metrics"
	"github.com/meetsmatch/notifyengine/internal/telemetry"
)

// Plugin is the capability set the scheduler drives. tick must return
// quickly; processors internally iterate all due items.
type Plugin interface {
	Name() string
	Tick(ctx context.Context, now time.Time) error
}

// Scheduler holds plugins behind the capability set described in spec §9
// and drives them on a fixed interval.
type Scheduler struct {
	interval time.Duration
	plugins  []Plugin
	now      func() time.Time
}

func New(interval time.Duration, plugins ...Plugin) *Scheduler {
	return &Scheduler{interval: interval, plugins: plugins, now: time.Now}
}

// Register adds a plugin to the scheduler, at the end of the invocation
// order.
func (s *Scheduler) Register(p Plugin) {
	s.plugins = append(s.plugins, p)
}

// Run blocks, firing a tick every interval until ctx is cancelled. Each
// plugin's error is logged and swallowed — the scheduler has no retry
// semantics of its own; the next tick is the retry (spec §4.I).
func (s *Scheduler) Run(ctx context.Context) {
	logger := telemetry.ForComponent(ctx, "tick_scheduler")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.WithField("interval", s.interval).Info("tick scheduler started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("tick scheduler stopping")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	logger := telemetry.ForComponent(ctx, "tick_scheduler")
	now := s.now().UTC()
	correlationID := telemetry.NewCorrelationID()
	ctx = telemetry.WithCorrelationID(ctx, correlationID)

	for _, p := range s.plugins {
		metrics.TicksTotal.WithLabelValues(p.Name()).Inc()
		if err := p.Tick(ctx, now); err != nil {
			metrics.TickErrorsTotal.WithLabelValues(p.Name()).Inc()
			logger.WithField("plugin", p.Name()).WithError(err).Error("plugin tick failed")
		}
	}
}
