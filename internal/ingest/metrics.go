package ingest

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes ingestion counters for the /metrics endpoint.
type Metrics struct {
	eventsIngested prometheus.Counter
	eventsSkipped  *prometheus.CounterVec
	entryFailures  *prometheus.CounterVec
	runsFailed     prometheus.Counter
	runDuration    prometheus.Summary
}

// NewMetrics builds the metric set and registers it with reg when non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		eventsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ingest",
			Name:      "events_ingested_total",
			Help:      "Events persisted and emitted by ingestion runs",
		}),
		eventsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ingest",
			Name:      "events_skipped_total",
			Help:      "Candidates skipped as already known, by reason",
		}, []string{"reason"}),
		entryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ingest",
			Name:      "entry_failures_total",
			Help:      "Listing entries dropped due to per-entry failures, by stage",
		}, []string{"stage"}),
		runsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ingest",
			Name:      "runs_failed_total",
			Help:      "Ingestion runs aborted by a listing-level failure",
		}),
		runDuration: prometheus.NewSummary(prometheus.SummaryOpts{
			Namespace: "ingest",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of ingestion runs",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.eventsIngested, m.eventsSkipped, m.entryFailures, m.runsFailed, m.runDuration)
	}
	return m
}

func (m *Metrics) ingested() { m.eventsIngested.Inc() }

func (m *Metrics) skipped(reason string) { m.eventsSkipped.WithLabelValues(reason).Inc() }

func (m *Metrics) entryFailed(stage string) { m.entryFailures.WithLabelValues(stage).Inc() }

func (m *Metrics) runFailed() { m.runsFailed.Inc() }

func (m *Metrics) runTimer() func() {
	start := time.Now()
	return func() { m.runDuration.Observe(time.Since(start).Seconds()) }
}
