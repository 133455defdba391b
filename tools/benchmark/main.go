package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/alitto/pond/v2"

	"github.com/feral-file/ff-asset-aggregator/internal/adapter"
	"github.com/feral-file/ff-asset-aggregator/internal/aggregator"
	"github.com/feral-file/ff-asset-aggregator/internal/config"
	"github.com/feral-file/ff-asset-aggregator/internal/domain"
	"github.com/feral-file/ff-asset-aggregator/internal/ingest"
	"github.com/feral-file/ff-asset-aggregator/internal/store"
)

type Config struct {
	Workload   Workload
	Shards     int
	Database   config.DatabaseConfig
	OutputFile string // Output markdown file path (optional)
}

// ShardStats holds the results of one shard
type ShardStats struct {
	Shard     string
	Events    int
	Applied   int
	Duplicate int
	Anomalies int
	Failed    int
	Latencies []time.Duration
	Duration  time.Duration
}

// RunStats holds the results of a benchmark run
type RunStats struct {
	Workload  Workload
	Driver    string
	Events    int
	Shards    []*ShardStats
	StartTime time.Time
	Duration  time.Duration
	Global    GlobalSnapshot
}

// GlobalSnapshot is the state of the global counters after the run
type GlobalSnapshot struct {
	TotalAssets    int64
	TotalUsers     int64
	TotalTransfers int64
	States         map[domain.AssetState]int64
}

func (r *RunStats) totals() (applied, duplicates, anomalies, failed int) {
	for _, s := range r.Shards {
		applied += s.Applied
		duplicates += s.Duplicate
		anomalies += s.Anomalies
		failed += s.Failed
	}
	return
}

func (r *RunStats) latencies() []time.Duration {
	var all []time.Duration
	for _, s := range r.Shards {
		all = append(all, s.Latencies...)
	}
	return all
}

func main() {
	cfg := parseFlags()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Generating workload (assets: %d, users: %d, transfers: %d, state changes: %d, seed: %d)\n",
		cfg.Workload.Assets, cfg.Workload.Users, cfg.Workload.Transfers, cfg.Workload.StateChanges, cfg.Workload.Seed)
	events, err := generateEvents(cfg.Workload)
	if err != nil {
		fmt.Printf("Error generating workload: %v\n", err)
		os.Exit(1)
	}

	db, err := store.Open(cfg.Database)
	if err != nil {
		fmt.Printf("Error opening database: %v\n", err)
		os.Exit(1)
	}
	st := store.NewStore(db)
	fmt.Printf("Applying %d events over %d shards (%s)\n", len(events), cfg.Shards, cfg.Database.Driver)

	stats, err := run(ctx, st, events, cfg)
	if err != nil {
		fmt.Printf("\nError running benchmark: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("BENCHMARK RESULTS")
	fmt.Println(strings.Repeat("=", 80))
	printRunStats(stats)

	if cfg.OutputFile != "" {
		if err := writeMarkdownReport(cfg.OutputFile, stats); err != nil {
			fmt.Printf("\n⚠️  Warning: Failed to write markdown file: %v\n", err)
		} else {
			fmt.Printf("\n✓ Report written to: %s\n", cfg.OutputFile)
		}
	}
}

func parseFlags() *Config {
	cfg := &Config{}

	flag.IntVar(&cfg.Workload.Assets, "assets", 1000, "Number of assets to mint")
	flag.IntVar(&cfg.Workload.Users, "users", 200, "Number of distinct owners")
	flag.IntVar(&cfg.Workload.Transfers, "transfers", 5000, "Number of transfers after minting")
	flag.IntVar(&cfg.Workload.StateChanges, "state-changes", 2000, "Number of lifecycle moves after minting")
	flag.Int64Var(&cfg.Workload.Seed, "seed", 1, "Random seed of the workload")
	flag.IntVar(&cfg.Shards, "shards", 4, "Number of concurrent shards")
	flag.StringVar(&cfg.OutputFile, "output", "", "Output markdown file path (optional)")

	flag.StringVar(&cfg.Database.Driver, "driver", config.DriverSQLite, "Database driver (sqlite or postgres)")
	flag.StringVar(&cfg.Database.SQLitePath, "sqlite-path", filepath.Join(os.TempDir(), "aggregator-benchmark.db"), "SQLite database file")
	flag.StringVar(&cfg.Database.Host, "pg-host", "localhost", "PostgreSQL host")
	flag.IntVar(&cfg.Database.Port, "pg-port", 5432, "PostgreSQL port")
	flag.StringVar(&cfg.Database.User, "pg-user", "postgres", "PostgreSQL user")
	flag.StringVar(&cfg.Database.Password, "pg-password", "", "PostgreSQL password")
	flag.StringVar(&cfg.Database.DBName, "pg-dbname", "aggregator_benchmark", "PostgreSQL database")

	configFile := flag.String("config", "", "Path to config file (optional)")

	flag.Parse()

	if cfg.Shards <= 0 {
		cfg.Shards = 1
	}

	cfg.Database.SSLMode = "disable"
	cfg.Database.AutoMigrate = true
	cfg.Database.MaxOpenConns = cfg.Shards * 2

	// Load from config file if specified
	if *configFile != "" {
		fileCfg, err := LoadConfig(*configFile)
		if err != nil {
			fmt.Printf("Warning: failed to load config file: %v\n", err)
		} else {
			applyFileConfig(cfg, fileCfg)
		}
	}

	return cfg
}

// applyFileConfig fills the database settings the file provides
func applyFileConfig(cfg *Config, fileCfg *BenchmarkConfig) {
	if fileCfg.Driver != "" {
		cfg.Database.Driver = fileCfg.Driver
	}
	if fileCfg.SQLitePath != "" {
		cfg.Database.SQLitePath = fileCfg.SQLitePath
	}
	if fileCfg.PGHost != "" {
		cfg.Database.Host = fileCfg.PGHost
	}
	if fileCfg.PGPort != 0 {
		cfg.Database.Port = fileCfg.PGPort
	}
	if fileCfg.PGUser != "" {
		cfg.Database.User = fileCfg.PGUser
	}
	if fileCfg.PGPassword != "" {
		cfg.Database.Password = fileCfg.PGPassword
	}
	if fileCfg.PGDBName != "" {
		cfg.Database.DBName = fileCfg.PGDBName
	}
}

// run partitions the events the way the ingester does and applies every shard
// in stream order, shards running concurrently
func run(ctx context.Context, st store.Store, events []*domain.Event, cfg *Config) (*RunStats, error) {
	parts := make([][]*domain.Event, cfg.Shards)
	for _, e := range events {
		i := ingest.ShardOf(e.RoutingKey(), cfg.Shards)
		parts[i] = append(parts[i], e)
	}

	stats := &RunStats{
		Workload:  cfg.Workload,
		Driver:    cfg.Database.Driver,
		Events:    len(events),
		Shards:    make([]*ShardStats, cfg.Shards),
		StartTime: time.Now(),
	}

	clock := adapter.NewClock()
	pool := pond.NewPool(cfg.Shards, pond.WithContext(ctx))
	defer pool.StopAndWait()

	var mu sync.Mutex
	group := pool.NewGroup()
	for i, part := range parts {
		name := ingest.ShardName(i)
		agg := aggregator.NewAggregator(aggregator.Config{Shard: name}, st, clock, nil)
		group.Submit(func() {
			s := applyShard(ctx, agg, name, part)
			mu.Lock()
			stats.Shards[i] = s
			mu.Unlock()
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	stats.Duration = time.Since(stats.StartTime)

	global, err := st.GetGlobalStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read global stats: %w", err)
	}
	stats.Global = GlobalSnapshot{
		TotalAssets:    global.TotalAssets,
		TotalUsers:     global.TotalUsers,
		TotalTransfers: global.TotalTransfers,
		States:         make(map[domain.AssetState]int64, len(domain.AssetStates)),
	}
	for _, s := range domain.AssetStates {
		stats.Global.States[s] = *store.StateCount(global, s)
	}

	return stats, nil
}

func applyShard(ctx context.Context, agg aggregator.Aggregator, name string, events []*domain.Event) *ShardStats {
	s := &ShardStats{
		Shard:     name,
		Events:    len(events),
		Latencies: make([]time.Duration, 0, len(events)),
	}
	start := time.Now()
	for _, e := range events {
		if ctx.Err() != nil {
			break
		}
		t := time.Now()
		outcome, err := agg.Apply(ctx, e)
		s.Latencies = append(s.Latencies, time.Since(t))
		if err != nil {
			s.Failed++
			continue
		}
		switch outcome {
		case aggregator.OutcomeApplied:
			s.Applied++
		case aggregator.OutcomeDuplicate:
			s.Duplicate++
		case aggregator.OutcomeAnomaly:
			s.Anomalies++
		}
	}
	s.Duration = time.Since(start)
	return s
}

func printRunStats(stats *RunStats) {
	applied, duplicates, anomalies, failed := stats.totals()
	latencies := stats.latencies()

	fmt.Printf("\n%s Driver: %s, events: %d, duration: %s, throughput: %s\n",
		statusEmoji(applied, failed, anomalies), stats.Driver, stats.Events,
		formatDuration(stats.Duration), formatRate(stats.Events, stats.Duration))
	fmt.Printf("   Applied:    %d (%s)\n", applied, percentageString(applied, stats.Events))
	fmt.Printf("   Duplicates: %d (%s)\n", duplicates, percentageString(duplicates, stats.Events))
	fmt.Printf("   Anomalies:  %d (%s)\n", anomalies, percentageString(anomalies, stats.Events))
	fmt.Printf("   Failed:     %d (%s)\n", failed, percentageString(failed, stats.Events))
	fmt.Printf("   Latency p50: %s, p95: %s, p99: %s\n",
		percentile(latencies, 0.50), percentile(latencies, 0.95), percentile(latencies, 0.99))

	fmt.Println("\nShards:")
	for _, s := range stats.Shards {
		fmt.Printf("   %s %-8s events: %6d  duration: %8s  throughput: %s\n",
			statusEmoji(s.Applied, s.Failed, s.Anomalies), s.Shard, s.Events,
			formatDuration(s.Duration), formatRate(s.Events, s.Duration))
	}

	fmt.Println("\nGlobal counters:")
	fmt.Printf("   Assets: %d, users: %d, transfers: %d\n",
		stats.Global.TotalAssets, stats.Global.TotalUsers, stats.Global.TotalTransfers)
	for _, state := range domain.AssetStates {
		fmt.Printf("   %-10s %d\n", state, stats.Global.States[state])
	}
}

// writeMarkdownReport writes a markdown report of the run
func writeMarkdownReport(path string, stats *RunStats) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = file.Close()
	}()

	applied, duplicates, anomalies, failed := stats.totals()
	latencies := stats.latencies()

	// Write header
	_, _ = fmt.Fprintf(file, "# Aggregator Benchmark Report\n\n")
	_, _ = fmt.Fprintf(file, "Generated: %s\n\n", stats.StartTime.Format("2006-01-02 15:04:05"))

	// Workload section
	_, _ = fmt.Fprintf(file, "## Workload\n\n")
	_, _ = fmt.Fprintf(file, "| Property | Value |\n")
	_, _ = fmt.Fprintf(file, "|----------|-------|\n")
	_, _ = fmt.Fprintf(file, "| **Driver** | %s |\n", stats.Driver)
	_, _ = fmt.Fprintf(file, "| **Assets** | %d |\n", stats.Workload.Assets)
	_, _ = fmt.Fprintf(file, "| **Users** | %d |\n", stats.Workload.Users)
	_, _ = fmt.Fprintf(file, "| **Transfers** | %d |\n", stats.Workload.Transfers)
	_, _ = fmt.Fprintf(file, "| **State Changes** | %d |\n", stats.Workload.StateChanges)
	_, _ = fmt.Fprintf(file, "| **Seed** | %d |\n", stats.Workload.Seed)
	_, _ = fmt.Fprintf(file, "| **Shards** | %d |\n", len(stats.Shards))
	_, _ = fmt.Fprintf(file, "\n")

	// Summary section
	_, _ = fmt.Fprintf(file, "## Summary %s\n\n", statusEmoji(applied, failed, anomalies))
	_, _ = fmt.Fprintf(file, "| Metric | Value |\n")
	_, _ = fmt.Fprintf(file, "|--------|-------|\n")
	_, _ = fmt.Fprintf(file, "| **Events** | %d |\n", stats.Events)
	_, _ = fmt.Fprintf(file, "| **Duration** | %s |\n", formatDuration(stats.Duration))
	_, _ = fmt.Fprintf(file, "| **Throughput** | %s |\n", formatRate(stats.Events, stats.Duration))
	_, _ = fmt.Fprintf(file, "| **Applied** | %d (%s) |\n", applied, percentageString(applied, stats.Events))
	if duplicates > 0 {
		_, _ = fmt.Fprintf(file, "| **Duplicates** | %d (%s) |\n", duplicates, percentageString(duplicates, stats.Events))
	}
	if anomalies > 0 {
		_, _ = fmt.Fprintf(file, "| **Anomalies** | %d (%s) |\n", anomalies, percentageString(anomalies, stats.Events))
	}
	if failed > 0 {
		_, _ = fmt.Fprintf(file, "| **Failed** | %d (%s) |\n", failed, percentageString(failed, stats.Events))
	}
	_, _ = fmt.Fprintf(file, "| **Latency p50** | %s |\n", percentile(latencies, 0.50))
	_, _ = fmt.Fprintf(file, "| **Latency p95** | %s |\n", percentile(latencies, 0.95))
	_, _ = fmt.Fprintf(file, "| **Latency p99** | %s |\n", percentile(latencies, 0.99))
	_, _ = fmt.Fprintf(file, "\n")

	// Shard breakdown, busiest first
	shards := append([]*ShardStats(nil), stats.Shards...)
	sort.Slice(shards, func(i, j int) bool {
		return shards[i].Events > shards[j].Events
	})

	_, _ = fmt.Fprintf(file, "## Shards\n\n")
	_, _ = fmt.Fprintf(file, "| Shard | Events | Duration | Throughput | p95 |\n")
	_, _ = fmt.Fprintf(file, "|-------|--------|----------|------------|-----|\n")
	for _, s := range shards {
		_, _ = fmt.Fprintf(file, "| %s %s | %d | %s | %s | %s |\n",
			statusEmoji(s.Applied, s.Failed, s.Anomalies), s.Shard, s.Events,
			formatDuration(s.Duration), formatRate(s.Events, s.Duration), percentile(s.Latencies, 0.95))
	}
	_, _ = fmt.Fprintf(file, "\n")

	// Global counters
	_, _ = fmt.Fprintf(file, "## Global Counters\n\n")
	_, _ = fmt.Fprintf(file, "| Counter | Value |\n")
	_, _ = fmt.Fprintf(file, "|---------|-------|\n")
	_, _ = fmt.Fprintf(file, "| **Assets** | %d |\n", stats.Global.TotalAssets)
	_, _ = fmt.Fprintf(file, "| **Users** | %d |\n", stats.Global.TotalUsers)
	_, _ = fmt.Fprintf(file, "| **Transfers** | %d |\n", stats.Global.TotalTransfers)
	for _, state := range domain.AssetStates {
		_, _ = fmt.Fprintf(file, "| %s | %d |\n", state, stats.Global.States[state])
	}

	return nil
}
