package sweeper_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/feral-file/ff-asset-aggregator/internal/adapter"
	"github.com/feral-file/ff-asset-aggregator/internal/aggregator"
	"github.com/feral-file/ff-asset-aggregator/internal/domain"
	"github.com/feral-file/ff-asset-aggregator/internal/metrics"
	"github.com/feral-file/ff-asset-aggregator/internal/store"
	"github.com/feral-file/ff-asset-aggregator/internal/sweeper"
)

const (
	nullAddress = "0x0000000000000000000000000000000000000000"
	alice       = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	bob         = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
)

func newTestStore(t *testing.T) store.Store {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "reconcile.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, store.ConfigureConnectionPool(db, 1, 1, 0, 0))
	require.NoError(t, store.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return store.NewStore(db)
}

// seed mints three assets and binds one of them
func seed(t *testing.T, st store.Store) {
	ctx := context.Background()
	agg := aggregator.NewAggregator(aggregator.Config{Shard: "shard-0"}, st, adapter.NewClock(), nil)

	apply := func(block uint64, eventType domain.EventType, payload interface{}) {
		e, err := domain.NewEvent(eventType, domain.Position{BlockNumber: block},
			fmt.Sprintf("0x%064x", block), 1717200000+int64(block)*12, payload)
		require.NoError(t, err)
		e.Chain = domain.ChainEthereumMainnet
		outcome, err := agg.Apply(ctx, e)
		require.NoError(t, err)
		require.Equal(t, aggregator.OutcomeApplied, outcome)
	}

	apply(1, domain.EventTypeTransfer, domain.TransferPayload{From: nullAddress, To: alice, TokenID: "1"})
	apply(2, domain.EventTypeTransfer, domain.TransferPayload{From: nullAddress, To: bob, TokenID: "2"})
	apply(3, domain.EventTypeTransfer, domain.TransferPayload{From: nullAddress, To: alice, TokenID: "3"})
	apply(4, domain.EventTypeStateChanged, domain.StateChangedPayload{
		TokenID: "2", OldState: domain.AssetStateMinted, NewState: domain.AssetStateBound})
}

// corrupt skews the bound bucket, the total and alice's asset count
func corrupt(t *testing.T, st store.Store) {
	ctx := context.Background()
	err := st.WithTx(ctx, func(tx store.Tx) error {
		stats, err := tx.LockGlobalStats(ctx)
		if err != nil {
			return err
		}
		stats.BoundCount = 3
		stats.TotalAssets = 5
		if err := tx.SaveGlobalStats(ctx, stats); err != nil {
			return err
		}
		return tx.SetUserAssetCount(ctx, alice, 7)
	})
	require.NoError(t, err)
}

func newReconciler(t *testing.T, st store.Store, repair bool, m *metrics.Metrics) sweeper.Reconciler {
	r, err := sweeper.NewReconciler(sweeper.ReconcilerConfig{
		Schedule:       "*/15 * * * *",
		Repair:         repair,
		UserBatchSize:  1,
		WorkerPoolSize: 2,
	}, st, adapter.NewClock(), m)
	require.NoError(t, err)
	return r
}

func TestNewReconciler_InvalidSchedule(t *testing.T) {
	_, err := sweeper.NewReconciler(sweeper.ReconcilerConfig{Schedule: "every so often"}, nil, adapter.NewClock(), nil)

	assert.ErrorContains(t, err, "invalid reconcile schedule")
}

func TestRunOnce_Clean(t *testing.T) {
	st := newTestStore(t)
	seed(t, st)
	m := metrics.New(prometheus.NewRegistry())

	report, err := newReconciler(t, st, false, m).RunOnce(context.Background())

	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.False(t, report.Repaired)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ReconcileRuns.WithLabelValues(sweeper.ResultClean)))
}

func TestRunOnce_DetectsDrift(t *testing.T) {
	st := newTestStore(t)
	seed(t, st)
	corrupt(t, st)
	m := metrics.New(prometheus.NewRegistry())

	report, err := newReconciler(t, st, false, m).RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, map[string]int64{
		string(domain.AssetStateBound): -2,
		"total_assets":                 -2,
	}, report.CounterDrift)
	assert.Equal(t, []sweeper.UserDrift{{Address: alice, Stored: 7, Counted: 2}}, report.Users)
	assert.False(t, report.Repaired)
	assert.Equal(t, float64(-2), testutil.ToFloat64(m.ReconcileDrift.WithLabelValues(string(domain.AssetStateBound))))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ReconcileRuns.WithLabelValues(sweeper.ResultDrift)))

	// Detection alone leaves the counters untouched
	stats, err := st.GetGlobalStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.TotalAssets)
}

func TestRunOnce_Repairs(t *testing.T) {
	st := newTestStore(t)
	seed(t, st)
	corrupt(t, st)
	ctx := context.Background()
	r := newReconciler(t, st, true, nil)

	report, err := r.RunOnce(ctx)

	require.NoError(t, err)
	assert.True(t, report.Repaired)

	stats, err := st.GetGlobalStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalAssets)
	assert.Equal(t, int64(2), stats.MintedCount)
	assert.Equal(t, int64(1), stats.BoundCount)

	user, err := st.GetUser(ctx, alice)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, int64(2), user.AssetCount)

	report, err = r.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, report.Clean())
}

func TestStartStop(t *testing.T) {
	st := newTestStore(t)
	seed(t, st)
	r := newReconciler(t, st, false, nil)
	assert.Equal(t, "counter-reconciler", r.Name())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.Start(ctx)
	}()
	time.AfterFunc(50*time.Millisecond, cancel)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("reconciler did not stop")
	}

	assert.NoError(t, r.Stop(context.Background()))
}
