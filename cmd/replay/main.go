package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/feral-file/ff-asset-aggregator/internal/adapter"
	"github.com/feral-file/ff-asset-aggregator/internal/aggregator"
	"github.com/feral-file/ff-asset-aggregator/internal/config"
	"github.com/feral-file/ff-asset-aggregator/internal/logger"
	"github.com/feral-file/ff-asset-aggregator/internal/replay"
	"github.com/feral-file/ff-asset-aggregator/internal/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
	input      = flag.String("input", "", "Path to a newline delimited JSON file of events")
)

func main() {
	flag.Parse()

	if *input == "" {
		panic("-input is required")
	}

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadReplayConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "replay",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)

	db, err := store.Open(cfg.Database)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err), zap.String("driver", cfg.Database.Driver))
	}
	dataStore := store.NewStore(db)

	clock := adapter.NewClock()
	agg := aggregator.NewAggregator(aggregator.Config{Shard: cfg.Shard, Replay: true}, dataStore, clock, nil)
	replayer := replay.NewReplayer(replay.Config{}, adapter.NewFileSystem(), adapter.NewJSON(), agg, clock)

	logger.InfoCtx(ctx, "Replaying events", zap.String("input", *input), zap.String("shard", cfg.Shard))
	summary, err := replayer.Run(ctx, *input)
	if summary != nil {
		logger.InfoCtx(ctx, "Replay finished",
			zap.Int("lines", summary.Lines),
			zap.Int("applied", summary.Applied),
			zap.Int("duplicates", summary.Duplicates),
			zap.Int("anomalies", summary.Anomalies),
			zap.Int("undecoded", summary.Undecoded),
			zap.Int("rejected", summary.Rejected),
			zap.Duration("duration", summary.Duration))
	}
	if err != nil {
		logger.FatalCtx(ctx, "Replay failed", zap.Error(err))
	}
}
