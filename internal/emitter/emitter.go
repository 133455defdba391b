package emitter

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/feral-file/ff-asset-aggregator/internal/adapter"
	"github.com/feral-file/ff-asset-aggregator/internal/domain"
	"github.com/feral-file/ff-asset-aggregator/internal/logger"
	"github.com/feral-file/ff-asset-aggregator/internal/messaging"
	"github.com/feral-file/ff-asset-aggregator/internal/metrics"
	"github.com/feral-file/ff-asset-aggregator/internal/store"
)

// Config holds the configuration for the event emitter
type Config struct {
	ChainID         domain.Chain
	StartBlock      uint64
	CursorSaveFreq  uint64        // Save cursor every N blocks
	CursorSaveDelay time.Duration // Or save cursor every N seconds
}

// Emitter defines the interface for the event emitter
//
//go:generate mockgen -source=emitter.go -destination=../mocks/emitter.go -package=mocks -mock_names=Emitter=MockEmitter
type Emitter interface {
	// Run subscribes to registry logs and publishes them until the context ends
	Run(ctx context.Context) error
	// Close closes the emitter and cleans up resources
	Close()
}

// emitter relays chain events to the event stream
type emitter struct {
	subscriber messaging.Subscriber
	publisher  messaging.Publisher
	cursors    store.CursorStore
	config     Config
	clock      adapter.Clock
	metrics    *metrics.Metrics
}

// NewEmitter creates a new event emitter
func NewEmitter(
	sub messaging.Subscriber,
	pub messaging.Publisher,
	cursors store.CursorStore,
	cfg Config,
	clock adapter.Clock,
	m *metrics.Metrics,
) Emitter {
	return &emitter{
		subscriber: sub,
		publisher:  pub,
		cursors:    cursors,
		config:     cfg,
		clock:      clock,
		metrics:    m,
	}
}

// startBlock resolves where the subscription begins: the configured block,
// the block after the saved cursor, or the chain head
func (e *emitter) startBlock(ctx context.Context) (uint64, error) {
	chain := string(e.config.ChainID)

	if e.config.StartBlock > 0 {
		logger.InfoCtx(ctx, "Starting from configured block", zap.String("chain", chain), zap.Uint64("block", e.config.StartBlock))
		return e.config.StartBlock, nil
	}

	lastBlock, err := e.cursors.GetBlockCursor(ctx, chain)
	if err != nil {
		return 0, fmt.Errorf("failed to get block cursor: %w", err)
	}
	if lastBlock > 0 {
		logger.InfoCtx(ctx, "Resuming from last processed block", zap.String("chain", chain), zap.Uint64("block", lastBlock+1))
		return lastBlock + 1, nil
	}

	latestBlock, err := e.subscriber.GetLatestBlock(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block number: %w", err)
	}
	logger.InfoCtx(ctx, "Starting from latest block", zap.String("chain", chain), zap.Uint64("block", latestBlock))
	return latestBlock, nil
}

// Run starts the event emitter. It returns the context error on shutdown.
func (e *emitter) Run(ctx context.Context) error {
	startBlock, err := e.startBlock(ctx)
	if err != nil {
		return err
	}

	chain := string(e.config.ChainID)
	logger.InfoCtx(ctx, "Starting event subscription", zap.String("chain", chain))

	// openBlock is the block whose logs are being published; it is only
	// checkpointed once a later block shows up
	var openBlock, lastSavedBlock uint64
	lastSaveTime := e.clock.Now()

	handler := func(event *domain.Event) error {
		if err := e.publisher.PublishEvent(ctx, event); err != nil {
			return fmt.Errorf("failed to publish event %s: %w", event.Key(), err)
		}
		e.metrics.IncrementPublished(string(event.Type))

		if event.BlockNumber <= openBlock {
			return nil
		}
		completed := openBlock
		openBlock = event.BlockNumber
		if completed == 0 {
			return nil
		}

		// Save cursor periodically (every N blocks or N seconds)
		shouldSave := completed-lastSavedBlock >= e.config.CursorSaveFreq ||
			e.clock.Since(lastSaveTime) >= e.config.CursorSaveDelay
		if !shouldSave {
			return nil
		}

		if err := e.cursors.SetBlockCursor(ctx, chain, completed); err != nil {
			logger.ErrorCtx(ctx, fmt.Errorf("failed to save block cursor: %w", err), zap.Uint64("block", completed))
			return nil
		}
		lastSavedBlock = completed
		lastSaveTime = e.clock.Now()
		return nil
	}

	err = e.subscriber.SubscribeEvents(ctx, startBlock, handler)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: subscription ended", domain.ErrSubscriptionFailed)
}

// Close closes the emitter and cleans up resources
func (e *emitter) Close() {
	e.subscriber.Close()
	e.publisher.Close()
}
