// Package metrics exposes the engine's Prometheus gauges/counters,
// replacing the teacher's JSON placeholder at /metrics with a real
// prometheus/client_golang registry.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	TicksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifyengine_ticks_total",
		Help: "Number of tick-scheduler invocations per plugin.",
	}, []string{"plugin"})

	TickErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifyengine_tick_errors_total",
		Help: "Number of tick invocations that returned an error, per plugin.",
	}, []string{"plugin"})

	ConfigsProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifyengine_configs_processed_total",
		Help: "Number of NotificationConfig rows processed per tick, by kind.",
	}, []string{"kind"})

	EventsEnqueuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifyengine_events_enqueued_total",
		Help: "Number of NotificationEvent rows inserted, by type and initial status.",
	}, []string{"type", "status"})

	EventsDeliveredTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifyengine_events_delivered_total",
		Help: "Number of delivery attempts by the sender loop, by type and outcome.",
	}, []string{"type", "outcome"})

	QueueUnsentGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "notifyengine_queue_unsent",
		Help: "Number of NotificationEvent rows currently Queued or Errored.",
	})
)

// Register adds every engine metric to reg. Call once at startup with the
// default registry or a dedicated one wired into the gin /metrics route.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		TicksTotal,
		TickErrorsTotal,
		ConfigsProcessedTotal,
		EventsEnqueuedTotal,
		EventsDeliveredTotal,
		QueueUnsentGauge,
	)
}
