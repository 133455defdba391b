package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/feral-file/ff-asset-aggregator/internal/adapter"
	"github.com/feral-file/ff-asset-aggregator/internal/config"
	"github.com/feral-file/ff-asset-aggregator/internal/logger"
	"github.com/feral-file/ff-asset-aggregator/internal/metrics"
	"github.com/feral-file/ff-asset-aggregator/internal/store"
	"github.com/feral-file/ff-asset-aggregator/internal/sweeper"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
	once       = flag.Bool("once", false, "Run a single reconciliation pass and exit")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadSweeperConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "sweeper",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Sweeper")

	// Connect to database
	db, err := store.Open(cfg.Database)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err), zap.String("driver", cfg.Database.Driver))
	}
	logger.InfoCtx(ctx, "Connected to database",
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.Database.MaxIdleConns),
	)
	dataStore := store.NewStore(db)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	reconciler, err := sweeper.NewReconciler(sweeper.ReconcilerConfig{
		Schedule:       cfg.Reconciler.Schedule,
		Repair:         cfg.Reconciler.Repair,
		UserBatchSize:  cfg.Reconciler.UserBatchSize,
		WorkerPoolSize: cfg.Reconciler.Worker.WorkerPoolSize,
	}, dataStore, adapter.NewClock(), m)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create reconciler", zap.Error(err))
	}

	if *once {
		report, err := reconciler.RunOnce(ctx)
		if err != nil {
			logger.FatalCtx(ctx, "Reconciliation failed", zap.Error(err))
		}
		logger.InfoCtx(ctx, "Reconciliation finished",
			zap.Bool("clean", report.Clean()),
			zap.Bool("repaired", report.Repaired),
			zap.Any("counter_drift", report.CounterDrift),
			zap.Int("user_drift", len(report.Users)))
		return
	}

	logger.InfoCtx(ctx, "Initialized counter reconciler",
		zap.String("schedule", cfg.Reconciler.Schedule),
		zap.Bool("repair", cfg.Reconciler.Repair),
		zap.Int("user_batch_size", cfg.Reconciler.UserBatchSize),
		zap.Int("worker_pool_size", cfg.Reconciler.Worker.WorkerPoolSize),
	)

	metricsServer := metrics.NewServer(cfg.Metrics.Host, cfg.Metrics.Port, reg)

	errChan := make(chan error, 2)
	go func() {
		if err := metricsServer.Start(); err != nil {
			errChan <- err
		}
	}()
	go func() {
		if err := reconciler.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	// Wait for interrupt signal or error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		logger.ErrorCtx(ctx, err)
	}

	// Cancel context to stop the sweeper
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := reconciler.Stop(shutdownCtx); err != nil {
		logger.ErrorCtx(shutdownCtx, err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.ErrorCtx(shutdownCtx, err)
	}

	logger.InfoCtx(shutdownCtx, "Sweeper stopped")
}
