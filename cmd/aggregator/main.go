package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/feral-file/ff-asset-aggregator/internal/adapter"
	"github.com/feral-file/ff-asset-aggregator/internal/aggregator"
	"github.com/feral-file/ff-asset-aggregator/internal/config"
	"github.com/feral-file/ff-asset-aggregator/internal/ingest"
	"github.com/feral-file/ff-asset-aggregator/internal/lease"
	"github.com/feral-file/ff-asset-aggregator/internal/logger"
	"github.com/feral-file/ff-asset-aggregator/internal/metrics"
	"github.com/feral-file/ff-asset-aggregator/internal/providers/jetstream"
	"github.com/feral-file/ff-asset-aggregator/internal/registry"
	"github.com/feral-file/ff-asset-aggregator/internal/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadAggregatorConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "aggregator",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Aggregator", zap.Int("shards", cfg.Ingest.Shards))

	// Connect to database
	db, err := store.Open(cfg.Database)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err), zap.String("driver", cfg.Database.Driver))
	}
	dataStore := store.NewStore(db)
	logger.InfoCtx(ctx, "Connected to database",
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
		zap.Bool("read_replica", cfg.Database.HasReadReplica()))

	// Initialize adapters
	clockAdapter := adapter.NewClock()
	jsonAdapter := adapter.NewJSON()
	natsJS := adapter.NewNatsJetStream()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	metricsServer := metrics.NewServer(cfg.Metrics.Host, cfg.Metrics.Port, reg)

	// Load the contract allowlist
	allowlist := registry.AllowAll()
	if cfg.RegistryPath != "" {
		allowlist, err = registry.NewAllowlistLoader(adapter.NewFileSystem(), jsonAdapter).Load(cfg.RegistryPath)
		if err != nil {
			logger.FatalCtx(ctx, "Failed to load contract allowlist", zap.Error(err), zap.String("path", cfg.RegistryPath))
		}
		logger.InfoCtx(ctx, "Loaded contract allowlist", zap.String("path", cfg.RegistryPath))
	} else {
		logger.WarnCtx(ctx, "Contract allowlist path not configured, all contracts will be accepted")
	}

	// Take the single writer lease before touching the stream
	var writerLease lease.Lease
	if cfg.Lease.Enabled {
		redisClient := adapter.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer func() { _ = redisClient.Close() }()
		if err := redisClient.Ping(ctx); err != nil {
			logger.FatalCtx(ctx, "Failed to connect to Redis", zap.Error(err), zap.String("addr", cfg.Redis.Addr))
		}

		writerLease = lease.New(lease.Config{
			Key:           cfg.Lease.Key,
			TTL:           cfg.Lease.TTL,
			RenewInterval: cfg.Lease.RenewInterval,
		}, redisClient, clockAdapter)

		logger.InfoCtx(ctx, "Waiting for writer lease", zap.String("key", cfg.Lease.Key), zap.String("owner", writerLease.Owner()))
		if err := writerLease.Acquire(ctx); err != nil {
			logger.Info("Aggregator stopped before acquiring the writer lease", zap.Error(err))
			return
		}
		logger.InfoCtx(ctx, "Acquired writer lease", zap.String("owner", writerLease.Owner()))
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := writerLease.Release(releaseCtx); err != nil {
				logger.Error(err, zap.String("component", "lease"))
			}
		}()
	}

	// One aggregator per shard, each owning its cursor
	shards := make([]aggregator.Aggregator, cfg.Ingest.Shards)
	for i := range shards {
		shards[i] = aggregator.NewAggregator(aggregator.Config{Shard: ingest.ShardName(i)}, dataStore, clockAdapter, m)
	}

	nc, consumer, err := jetstream.NewConsumer(ctx, jetstream.ConsumerConfig{
		URL:            cfg.NATS.URL,
		StreamName:     cfg.NATS.StreamName,
		SubjectPrefix:  cfg.NATS.SubjectPrefix,
		ConsumerName:   cfg.NATS.ConsumerName,
		MaxReconnects:  cfg.NATS.MaxReconnects,
		ReconnectWait:  cfg.NATS.ReconnectWait,
		ConnectionName: cfg.NATS.ConnectionName,
		AckWait:        cfg.NATS.AckWait,
		MaxDeliver:     cfg.NATS.MaxDeliver,
		MaxAckPending:  cfg.Ingest.BatchSize * cfg.Ingest.Shards,
	}, natsJS)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create NATS consumer", zap.Error(err), zap.String("url", cfg.NATS.URL))
	}
	logger.InfoCtx(ctx, "Connected to NATS JetStream",
		zap.String("stream", cfg.NATS.StreamName),
		zap.String("consumer", cfg.NATS.ConsumerName))

	ingester, err := ingest.NewIngester(ingest.Config{
		Shards:               cfg.Ingest.Shards,
		BatchSize:            cfg.Ingest.BatchSize,
		FetchWait:            cfg.Ingest.FetchWait,
		RetryInitialInterval: cfg.Ingest.RetryInitialInterval,
		RetryMaxInterval:     cfg.Ingest.RetryMaxInterval,
	}, nc, consumer, shards, allowlist, jsonAdapter, clockAdapter, m)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create ingester", zap.Error(err))
	}
	defer ingester.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ingester.Run(gctx)
	})
	if writerLease != nil {
		g.Go(func() error {
			return writerLease.Hold(gctx)
		})
	}
	g.Go(metricsServer.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(err, zap.String("component", "aggregator"))
	}

	logger.Info("Aggregator stopped")
}
