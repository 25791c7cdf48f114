// Package metrics exposes Prometheus counters/histograms for ledger actions,
// handler outcomes and best-effort side-effect failures.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// LedgerActions counts each beginProcessing outcome by action and by ledger_contention.
	LedgerActions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eventpay",
		Subsystem: "ledger",
		Name: "actions_total",
		Help: "Count of ledger beginProcessing outcomes by action.",
	}, []string{"action"})

	// HandlerOutcomes counts each dispatched handler's result by event type,
	// with outcome "success" or "error".
	HandlerOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eventpay",
		Subsystem: "handlers",
		Name: "outcomes_total",
		Help: "Count of handler outcomes by event type and outcome.",
	}, []string{"event_type", "outcome"})

	// HandlerDuration observes end-to-end orchestrator latency per event
	// type (eventpay_handlers_duration_seconds).
	HandlerDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "eventpay",
		Subsystem: "handlers",
		Name: "duration_seconds",
		Help: "Orchestrator end-to-end handling latency by event type.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_type"})

	// SideEffectFailures counts best-effort side-effect failures
	// (analytics, notification, settlement regenerate) that are logged but
	// never surfaced to the webhook caller.
	SideEffectFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eventpay",
		Subsystem: "background",
		Name: "side_effect_failures_total",
		Help: "Count of best-effort background side-effect failures by kind.",
	}, []string{"kind"})

	// BackgroundQueueDropped counts background tasks dropped because the
	// bounded queue was full.
	BackgroundQueueDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eventpay",
		Subsystem: "background",
		Name: "queue_dropped_total",
		Help: "Count of background tasks dropped because the bounded queue was full.",
	}, []string{"kind"})
)

// MustRegister registers every collector above on reg. Call once at startup.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(LedgerActions, HandlerOutcomes, HandlerDuration, SideEffectFailures, BackgroundQueueDropped)
}
