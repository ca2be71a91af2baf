// Package metrics holds the prometheus collectors of the grid engine.
//
// A nil *Metrics is valid and records nothing, so library packages can take
// one as an optional dependency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every collector the engine reports.
type Metrics struct {
	memoLookups      *prometheus.CounterVec
	coalescerTasks   *prometheus.CounterVec
	coalescerBatches prometheus.Counter
	coalescerTimeout prometheus.Counter
	batchDuration    prometheus.Histogram
	remoteCalls      *prometheus.CounterVec
	remoteInFlight   prometheus.Gauge
	recomputeRows    *prometheus.CounterVec
	resolveFailures  prometheus.Counter
}

// New registers the collectors on reg. A nil reg uses a fresh private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		memoLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cellgrid_memo_lookups_total",
			Help: "Content hash comparisons by result (hit skips recomputation)",
		}, []string{"result"}),
		coalescerTasks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cellgrid_coalescer_tasks_total",
			Help: "Coalesced tasks by outcome",
		}, []string{"outcome"}),
		coalescerBatches: f.NewCounter(prometheus.CounterOpts{
			Name: "cellgrid_coalescer_batches_total",
			Help: "Batches drained by the coalescer",
		}),
		coalescerTimeout: f.NewCounter(prometheus.CounterOpts{
			Name: "cellgrid_coalescer_batch_timeouts_total",
			Help: "Batches that hit the max wait before all tasks finished",
		}),
		batchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "cellgrid_coalescer_batch_duration_seconds",
			Help:    "Time spent waiting on one batch",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~800ms
		}),
		remoteCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cellgrid_remote_calls_total",
			Help: "Remote lookups by outcome (executed, shared, superseded, failed)",
		}, []string{"outcome"}),
		remoteInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "cellgrid_remote_in_flight",
			Help: "Remote lookups currently executing",
		}),
		recomputeRows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cellgrid_rows_recomputed_total",
			Help: "Row recomputations by result (computed, reused, hidden)",
		}, []string{"result"}),
		resolveFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "cellgrid_resolve_failures_total",
			Help: "Configuration properties that failed to resolve",
		}),
	}
}

// MemoLookup records a content hash comparison.
func (m *Metrics) MemoLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.memoLookups.WithLabelValues(result).Inc()
}

// Task records a coalesced task outcome: done, failed or panicked.
func (m *Metrics) Task(outcome string) {
	if m == nil {
		return
	}
	m.coalescerTasks.WithLabelValues(outcome).Inc()
}

// Batch records a drained batch.
func (m *Metrics) Batch(d time.Duration, timedOut bool) {
	if m == nil {
		return
	}
	m.coalescerBatches.Inc()
	m.batchDuration.Observe(d.Seconds())
	if timedOut {
		m.coalescerTimeout.Inc()
	}
}

// Remote records a remote lookup outcome.
func (m *Metrics) Remote(outcome string) {
	if m == nil {
		return
	}
	m.remoteCalls.WithLabelValues(outcome).Inc()
}

// InFlight sets the number of executing remote lookups.
func (m *Metrics) InFlight(n int) {
	if m == nil {
		return
	}
	m.remoteInFlight.Set(float64(n))
}

// Row records a row recomputation result.
func (m *Metrics) Row(result string) {
	if m == nil {
		return
	}
	m.recomputeRows.WithLabelValues(result).Inc()
}

// ResolveFailures adds n failed property resolutions.
func (m *Metrics) ResolveFailures(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.resolveFailures.Add(float64(n))
}
