// Package metrics provides Prometheus metrics for genesis loads.
//
// A load is a batch job, so metrics are not served over HTTP. They are
// written once at the end of a run in the text exposition format, for the
// node exporter's textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "genesis"

// Metrics holds all loader metrics.
type Metrics struct {
	// Counters
	Candidates  *prometheus.CounterVec
	RowsWritten *prometheus.CounterVec
	RowsSkipped *prometheus.CounterVec
	Failures    *prometheus.CounterVec
	Loads       *prometheus.CounterVec

	// Histograms
	EntityDuration *prometheus.HistogramVec

	// Internal
	registry *prometheus.Registry
	enabled  bool
}

// New creates a metrics instance on a private registry. A disabled
// instance accepts every call and records nothing.
func New(enabled bool) *Metrics {
	m := &Metrics{
		enabled:  enabled,
		registry: prometheus.NewRegistry(),
	}

	if !enabled {
		return m
	}

	m.Candidates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Candidate rows extracted from the genesis document",
		},
		[]string{"entity"},
	)

	m.RowsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Net-new rows committed by entity",
		},
		[]string{"entity"},
	)

	m.RowsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_skipped_total",
			Help:      "Candidate rows already stored",
		},
		[]string{"entity"},
	)

	m.Failures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entity_failures_total",
			Help:      "Entity loads that failed by reason",
		},
		[]string{"entity", "reason"}, // "malformed", "duplicate_key", "error"
	)

	m.Loads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Load jobs by final state",
		},
		[]string{"state"},
	)

	m.EntityDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "entity_duration_seconds",
			Help:      "Time to extract, reconcile and write one entity",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"entity"},
	)

	m.registry.MustRegister(
		m.Candidates,
		m.RowsWritten,
		m.RowsSkipped,
		m.Failures,
		m.Loads,
		m.EntityDuration,
	)

	return m
}

// IsEnabled returns true if metrics are enabled.
func (m *Metrics) IsEnabled() bool {
	return m != nil && m.enabled
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordEntity records the counts of one successful entity load.
func (m *Metrics) RecordEntity(entity string, candidates, skipped int, written int64, duration time.Duration) {
	if !m.IsEnabled() {
		return
	}
	m.Candidates.WithLabelValues(entity).Add(float64(candidates))
	m.RowsSkipped.WithLabelValues(entity).Add(float64(skipped))
	m.RowsWritten.WithLabelValues(entity).Add(float64(written))
	m.EntityDuration.WithLabelValues(entity).Observe(duration.Seconds())
}

// RecordFailure increments the failure counter of an entity.
func (m *Metrics) RecordFailure(entity, reason string) {
	if !m.IsEnabled() {
		return
	}
	m.Failures.WithLabelValues(entity, reason).Inc()
}

// RecordLoad increments the load counter for a final state.
func (m *Metrics) RecordLoad(state string) {
	if !m.IsEnabled() {
		return
	}
	m.Loads.WithLabelValues(state).Inc()
}

// WriteTextfile writes all metrics to path in the text exposition format.
// The file is written atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if !m.IsEnabled() {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
