// Package metrics exposes Prometheus instrumentation for the sweep and
// trigger pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the engine's Prometheus collectors. A nil *Metrics is a
// valid no-op receiver so tests and one-shot CLI paths can skip registration.
type Metrics struct {
	sweepsTotal        prometheus.Counter
	sweepsSkipped      prometheus.Counter
	sweepDuration      prometheus.Histogram
	alertsEvaluated    prometheus.Counter
	alertsTriggered    prometheus.Counter
	evaluationFailures prometheus.Counter
	jobsEnqueued       prometheus.Counter
	eventsProcessed    *prometheus.CounterVec
}

// New registers the collectors against the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		sweepsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "bidwatcher_sweeps_total",
			Help: "Completed bid-safety sweep passes.",
		}),
		sweepsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "bidwatcher_sweeps_skipped_total",
			Help: "Sweep ticks skipped because a previous sweep was still running.",
		}),
		sweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "bidwatcher_sweep_duration_seconds",
			Help:    "Wall time of one sweep pass.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		alertsEvaluated: factory.NewCounter(prometheus.CounterOpts{
			Name: "bidwatcher_alerts_evaluated_total",
			Help: "Bid-safety alerts evaluated.",
		}),
		alertsTriggered: factory.NewCounter(prometheus.CounterOpts{
			Name: "bidwatcher_alerts_triggered_total",
			Help: "Alerts whose trigger condition was met.",
		}),
		evaluationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "bidwatcher_evaluation_failures_total",
			Help: "Alert evaluations skipped after an error.",
		}),
		jobsEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "bidwatcher_trigger_jobs_enqueued_total",
			Help: "Trigger jobs pushed to the outbound queue.",
		}),
		eventsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bidwatcher_chain_events_processed_total",
			Help: "Chain events routed through the event processor.",
		}, []string{"kind"}),
	}
}

func (m *Metrics) SweepCompleted(seconds float64) {
	if m == nil {
		return
	}
	m.sweepsTotal.Inc()
	m.sweepDuration.Observe(seconds)
}

func (m *Metrics) SweepSkipped() {
	if m == nil {
		return
	}
	m.sweepsSkipped.Inc()
}

func (m *Metrics) AlertEvaluated() {
	if m == nil {
		return
	}
	m.alertsEvaluated.Inc()
}

func (m *Metrics) AlertTriggered() {
	if m == nil {
		return
	}
	m.alertsTriggered.Inc()
}

func (m *Metrics) EvaluationFailed() {
	if m == nil {
		return
	}
	m.evaluationFailures.Inc()
}

func (m *Metrics) JobEnqueued() {
	if m == nil {
		return
	}
	m.jobsEnqueued.Inc()
}

func (m *Metrics) EventProcessed(kind string) {
	if m == nil {
		return
	}
	m.eventsProcessed.WithLabelValues(kind).Inc()
}
