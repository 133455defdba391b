package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels of applied events
const (
	OutcomeApplied   = "applied"
	OutcomeDuplicate = "duplicate"
	OutcomeAnomaly   = "anomaly"
	OutcomeFailed    = "failed"
)

// Metrics provides observability for the aggregation pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	EventsApplied   *prometheus.CounterVec
	ApplyDuration   *prometheus.HistogramVec
	Anomalies       *prometheus.CounterVec
	CounterClamps   *prometheus.CounterVec
	CursorBlock     *prometheus.GaugeVec
	IngestRetries   prometheus.Counter
	ReconcileDrift  *prometheus.GaugeVec
	ReconcileRuns   *prometheus.CounterVec
	EventsPublished *prometheus.CounterVec
}

// New creates a new Metrics instance registered on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aggregator_events_total",
			Help: "Events handled by the aggregator by type and outcome",
		}, []string{"type", "outcome"}),
		ApplyDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aggregator_apply_duration_seconds",
			Help:    "Duration of a single event application including its store transaction",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"type"}),
		Anomalies: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aggregator_anomalies_total",
			Help: "Events skipped as anomalies by kind",
		}, []string{"kind"}),
		CounterClamps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aggregator_counter_clamps_total",
			Help: "Decrements clamped at zero by counter",
		}, []string{"counter"}),
		CursorBlock: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aggregator_cursor_block",
			Help: "Block number of the last applied event per shard",
		}, []string{"shard"}),
		IngestRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "aggregator_ingest_retries_total",
			Help: "Retries of retryable store failures",
		}),
		ReconcileDrift: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aggregator_reconcile_drift",
			Help: "Difference between the recounted value and the stored counter at the last reconciliation",
		}, []string{"counter"}),
		ReconcileRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aggregator_reconcile_runs_total",
			Help: "Reconciliation runs by result",
		}, []string{"result"}),
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_events_published_total",
			Help: "Registry events published to the stream by type",
		}, []string{"type"}),
	}
}

// ObserveApply records the outcome and duration of one event application.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveApply(eventType, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.EventsApplied.WithLabelValues(eventType, outcome).Inc()
	m.ApplyDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
}

// IncrementAnomaly records a skipped event
func (m *Metrics) IncrementAnomaly(kind string) {
	if m == nil {
		return
	}
	m.Anomalies.WithLabelValues(kind).Inc()
}

// IncrementClamps records counters that were clamped at zero
func (m *Metrics) IncrementClamps(counters []string) {
	if m == nil {
		return
	}
	for _, c := range counters {
		m.CounterClamps.WithLabelValues(c).Inc()
	}
}

// SetCursor records the block of the last applied event of a shard
func (m *Metrics) SetCursor(shard string, block uint64) {
	if m == nil {
		return
	}
	m.CursorBlock.WithLabelValues(shard).Set(float64(block))
}

// IncrementRetry records a retried delivery
func (m *Metrics) IncrementRetry() {
	if m == nil {
		return
	}
	m.IngestRetries.Inc()
}

// SetDrift records the drift of a counter found by the reconciler
func (m *Metrics) SetDrift(counter string, drift int64) {
	if m == nil {
		return
	}
	m.ReconcileDrift.WithLabelValues(counter).Set(float64(drift))
}

// IncrementReconcile records a reconciliation run
func (m *Metrics) IncrementReconcile(result string) {
	if m == nil {
		return
	}
	m.ReconcileRuns.WithLabelValues(result).Inc()
}

// IncrementPublished records a published registry event
func (m *Metrics) IncrementPublished(eventType string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(eventType).Inc()
}
