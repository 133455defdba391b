package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-asset-aggregator/internal/config"
	"github.com/feral-file/ff-asset-aggregator/internal/domain"
	"github.com/feral-file/ff-asset-aggregator/internal/store"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		want     string
	}{
		{
			name:     "milliseconds",
			duration: 500 * time.Millisecond,
			want:     "500ms",
		},
		{
			name:     "seconds",
			duration: 5 * time.Second,
			want:     "5.00s",
		},
		{
			name:     "minutes",
			duration: 2*time.Minute + 30*time.Second,
			want:     "2m 30s",
		},
		{
			name:     "hours",
			duration: 1*time.Hour + 15*time.Minute,
			want:     "1h 15m",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatDuration(tt.duration))
		})
	}
}

func TestFormatRate(t *testing.T) {
	assert.Equal(t, "N/A", formatRate(10, 0))
	assert.Equal(t, "5.00/s", formatRate(10, 2*time.Second))
	assert.Equal(t, "2000.00/s", formatRate(1000, 500*time.Millisecond))
}

func TestPercentageString(t *testing.T) {
	assert.Equal(t, "0.00%", percentageString(1, 0))
	assert.Equal(t, "50.00%", percentageString(1, 2))
	assert.Equal(t, "33.33%", percentageString(1, 3))
	assert.Equal(t, "100.00%", percentageString(7, 7))
}

func TestStatusEmoji(t *testing.T) {
	tests := []struct {
		name      string
		applied   int
		failed    int
		anomalies int
		want      string
	}{
		{name: "failures win", applied: 10, failed: 1, anomalies: 1, want: "❌"},
		{name: "anomalies", applied: 10, anomalies: 1, want: "🟡"},
		{name: "clean", applied: 10, want: "✅"},
		{name: "nothing", want: "⚪"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusEmoji(tt.applied, tt.failed, tt.anomalies))
		})
	}
}

func TestPercentile(t *testing.T) {
	assert.Equal(t, time.Duration(0), percentile(nil, 0.5))

	latencies := []time.Duration{5, 1, 4, 2, 3}
	assert.Equal(t, time.Duration(1), percentile(latencies, 0))
	assert.Equal(t, time.Duration(3), percentile(latencies, 0.5))
	assert.Equal(t, time.Duration(5), percentile(latencies, 1))
}

func TestGenerateEvents_Deterministic(t *testing.T) {
	w := Workload{Assets: 20, Users: 5, Transfers: 50, StateChanges: 30, Seed: 7}

	a, err := generateEvents(w)
	require.NoError(t, err)
	b, err := generateEvents(w)
	require.NoError(t, err)

	require.Len(t, a, 100)
	require.Len(t, b, 100)
	for i := range a {
		da, err := a[i].Digest()
		require.NoError(t, err)
		db, err := b[i].Digest()
		require.NoError(t, err)
		assert.Equal(t, da, db)
	}
}

func TestGenerateEvents_LegalStream(t *testing.T) {
	events, err := generateEvents(Workload{Assets: 10, Users: 3, Transfers: 20, StateChanges: 40, Seed: 3})
	require.NoError(t, err)

	states := make(map[string]domain.AssetState)
	var lastBlock uint64
	for _, e := range events {
		require.NoError(t, e.Validate())
		assert.Greater(t, e.BlockNumber, lastBlock)
		lastBlock = e.BlockNumber

		if e.Type != domain.EventTypeStateChanged {
			continue
		}
		p, err := e.StateChangedPayload()
		require.NoError(t, err)
		current, ok := states[p.TokenID]
		if !ok {
			current = domain.AssetStateMinted
		}
		assert.Equal(t, current, p.OldState)
		assert.True(t, current.CanTransition(p.NewState), "%s -> %s", current, p.NewState)
		states[p.TokenID] = p.NewState
	}
}

func TestGenerateEvents_Validation(t *testing.T) {
	_, err := generateEvents(Workload{Assets: 0, Users: 1})
	assert.Error(t, err)
	_, err = generateEvents(Workload{Assets: 1, Users: 0})
	assert.Error(t, err)
}

func TestRun_SQLite(t *testing.T) {
	cfg := &Config{
		Workload: Workload{Assets: 30, Users: 6, Transfers: 60, StateChanges: 40, Seed: 11},
		Shards:   3,
		Database: config.DatabaseConfig{
			Driver:      config.DriverSQLite,
			SQLitePath:  filepath.Join(t.TempDir(), "benchmark.db"),
			AutoMigrate: true,
		},
	}

	events, err := generateEvents(cfg.Workload)
	require.NoError(t, err)

	db, err := store.Open(cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	stats, err := run(context.Background(), store.NewStore(db), events, cfg)
	require.NoError(t, err)

	applied, duplicates, anomalies, failed := stats.totals()
	assert.Equal(t, len(events), applied)
	assert.Zero(t, duplicates)
	assert.Zero(t, anomalies)
	assert.Zero(t, failed)
	assert.Len(t, stats.latencies(), len(events))

	var transfers int64
	for _, e := range events {
		if e.Type == domain.EventTypeTransfer {
			transfers++
		}
	}
	assert.Equal(t, int64(cfg.Workload.Assets), stats.Global.TotalAssets)
	assert.Equal(t, transfers, stats.Global.TotalTransfers)

	var bucketed int64
	for _, n := range stats.Global.States {
		bucketed += n
	}
	assert.Equal(t, int64(cfg.Workload.Assets), bucketed)

	report := filepath.Join(t.TempDir(), "report.md")
	require.NoError(t, writeMarkdownReport(report, stats))
	data, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Aggregator Benchmark Report")
	assert.Contains(t, string(data), "| **Assets** | 30 |")
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "benchmark.json")
	require.NoError(t, SaveConfig(path, &BenchmarkConfig{Driver: config.DriverPostgres, PGHost: "db", PGPort: 6543}))

	fileCfg, err := LoadConfig(path)
	require.NoError(t, err)

	cfg := &Config{Database: config.DatabaseConfig{Driver: config.DriverSQLite, Host: "localhost", Port: 5432, DBName: "aggregator_benchmark"}}
	applyFileConfig(cfg, fileCfg)

	assert.Equal(t, config.DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "db", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "aggregator_benchmark", cfg.Database.DBName)
}
