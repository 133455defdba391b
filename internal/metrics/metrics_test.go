package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveApply("transfer", OutcomeApplied, time.Now())
	m.ObserveApply("transfer", OutcomeApplied, time.Now())
	m.ObserveApply("transfer", OutcomeDuplicate, time.Now())
	m.IncrementAnomaly("unknown_asset")
	m.IncrementClamps([]string{"asset_count", "badge_count"})
	m.SetCursor("0", 42)
	m.SetDrift("minted_count", -3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsApplied.WithLabelValues("transfer", OutcomeApplied)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsApplied.WithLabelValues("transfer", OutcomeDuplicate)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Anomalies.WithLabelValues("unknown_asset")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CounterClamps.WithLabelValues("badge_count")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.CursorBlock.WithLabelValues("0")))
	assert.Equal(t, -3.0, testutil.ToFloat64(m.ReconcileDrift.WithLabelValues("minted_count")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveApply("transfer", OutcomeApplied, time.Now())
		m.IncrementAnomaly("unknown_asset")
		m.IncrementClamps([]string{"asset_count"})
		m.SetCursor("0", 1)
		m.IncrementRetry()
		m.SetDrift("total_assets", 1)
		m.IncrementReconcile("ok")
		m.IncrementPublished("transfer")
	})
}
