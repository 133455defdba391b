package main

import (
	"context"
	"errors"
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
	"github.com/feral-file/ff-asset-aggregator/internal/block"
	"github.com/feral-file/ff-asset-aggregator/internal/config"
	"github.com/feral-file/ff-asset-aggregator/internal/emitter"
	"github.com/feral-file/ff-asset-aggregator/internal/logger"
	"github.com/feral-file/ff-asset-aggregator/internal/metrics"
	"github.com/feral-file/ff-asset-aggregator/internal/providers/ethereum"
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
	cfg, err := config.LoadRegistryEmitterConfig(*configFile, *envPath)
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
			"service": "registry-event-emitter",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Registry Event Emitter", zap.String("chain_id", string(cfg.Ethereum.ChainID)))

	// Connect to database
	db, err := store.Open(cfg.Database)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err), zap.String("driver", cfg.Database.Driver))
	}
	dataStore := store.NewStore(db)
	logger.InfoCtx(ctx, "Connected to database")

	// Initialize adapters
	clockAdapter := adapter.NewClock()
	jsonAdapter := adapter.NewJSON()
	fs := adapter.NewFileSystem()
	natsJS := adapter.NewNatsJetStream()

	// Load the contract allowlist
	allowlist, err := registry.NewAllowlistLoader(fs, jsonAdapter).Load(cfg.RegistryPath)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to load contract allowlist", zap.Error(err), zap.String("path", cfg.RegistryPath))
	}
	logger.InfoCtx(ctx, "Loaded contract allowlist",
		zap.String("path", cfg.RegistryPath),
		zap.Strings("contracts", allowlist.Contracts(cfg.Ethereum.ChainID)))

	// Initialize ethereum client
	ethClient, err := adapter.NewEthClientDialer().Dial(ctx, cfg.Ethereum.WebSocketURL)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to dial Ethereum RPC", zap.Error(err), zap.String("websocket_url", cfg.Ethereum.WebSocketURL))
	}
	blocks := block.NewBlockProvider(ethereum.NewBlockFetcher(ethClient), block.Config{
		TTL:                 cfg.Ethereum.BlockHeadTTL,
		StaleWindow:         cfg.Ethereum.BlockHeadStaleWindow,
		MaxCachedTimestamps: cfg.Worker.WorkerQueueSize,
	}, clockAdapter)
	ethereumClient, err := ethereum.NewClient(cfg.Ethereum.ChainID, ethClient, blocks)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create Ethereum client", zap.Error(err))
	}

	ethSubscriber, err := ethereum.NewSubscriber(ethereum.Config{
		WebSocketURL: cfg.Ethereum.WebSocketURL,
		ChainID:      cfg.Ethereum.ChainID,
	}, ethereumClient, blocks, allowlist)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create Ethereum subscriber", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to Ethereum WebSocket")

	// Initialize NATS publisher
	natsPublisher, err := jetstream.NewPublisher(ctx, jetstream.Config{
		URL:            cfg.NATS.URL,
		StreamName:     cfg.NATS.StreamName,
		SubjectPrefix:  cfg.NATS.SubjectPrefix,
		MaxReconnects:  cfg.NATS.MaxReconnects,
		ReconnectWait:  cfg.NATS.ReconnectWait,
		ConnectionName: cfg.NATS.ConnectionName,
	}, natsJS, jsonAdapter)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create NATS publisher", zap.Error(err), zap.String("url", cfg.NATS.URL))
	}
	logger.InfoCtx(ctx, "Connected to NATS JetStream", zap.String("stream", cfg.NATS.StreamName))

	// Metrics
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	metricsServer := metrics.NewServer(cfg.Metrics.Host, cfg.Metrics.Port, reg)

	eventEmitter := emitter.NewEmitter(
		ethSubscriber,
		natsPublisher,
		dataStore,
		emitter.Config{
			ChainID:         cfg.Ethereum.ChainID,
			StartBlock:      cfg.Ethereum.StartBlock,
			CursorSaveFreq:  2,
			CursorSaveDelay: 30 * time.Second,
		},
		clockAdapter,
		m,
	)
	defer eventEmitter.Close()

	errCh := make(chan error, 2)
	go func() {
		if err := metricsServer.Start(); err != nil {
			errCh <- err
		}
	}()
	go func() {
		if err := eventEmitter.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "emitter"))
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, zap.String("component", "metrics"))
	}

	logger.Info("Registry Event Emitter stopped")
}
