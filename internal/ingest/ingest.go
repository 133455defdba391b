package ingest

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/feral-file/ff-asset-aggregator/internal/adapter"
	"github.com/feral-file/ff-asset-aggregator/internal/aggregator"
	"github.com/feral-file/ff-asset-aggregator/internal/domain"
	"github.com/feral-file/ff-asset-aggregator/internal/logger"
	"github.com/feral-file/ff-asset-aggregator/internal/metrics"
	"github.com/feral-file/ff-asset-aggregator/internal/registry"
	"github.com/feral-file/ff-asset-aggregator/internal/store/schema"
)

// Config holds the configuration for the stream consumer
type Config struct {
	Shards               int
	BatchSize            int
	FetchWait            time.Duration
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
}

// Ingester defines the interface for the stream consumer feeding the aggregators
//
//go:generate mockgen -source=ingest.go -destination=../mocks/ingest.go -package=mocks -mock_names=Ingester=MockIngester
type Ingester interface {
	// Run fetches and applies events until the context ends
	Run(ctx context.Context) error
	// Close closes the NATS connection
	Close()
}

type ingester struct {
	config    Config
	nc        adapter.NatsConn
	consumer  adapter.Consumer
	shards    []aggregator.Aggregator
	allowlist registry.Allowlist
	json      adapter.JSON
	clock     adapter.Clock
	metrics   *metrics.Metrics
}

// pending is a decoded message waiting for its shard
type pending struct {
	msg   adapter.Message
	event *domain.Event
}

// ShardName returns the cursor name of shard i
func ShardName(i int) string {
	return fmt.Sprintf("shard-%d", i)
}

// ShardOf returns the shard of a routing key among n shards
func ShardOf(key string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n)) //nolint:gosec
}

// NewIngester creates a consumer applying events with one aggregator per shard.
// shards[i] must own the cursor ShardName(i).
func NewIngester(
	cfg Config,
	nc adapter.NatsConn,
	consumer adapter.Consumer,
	shards []aggregator.Aggregator,
	allowlist registry.Allowlist,
	jsonAdapter adapter.JSON,
	clock adapter.Clock,
	m *metrics.Metrics,
) (Ingester, error) {
	if len(shards) == 0 {
		return nil, errors.New("at least one shard is required")
	}
	if cfg.BatchSize < 1 {
		return nil, errors.New("batch size must be at least 1")
	}

	return &ingester{
		config:    cfg,
		nc:        nc,
		consumer:  consumer,
		shards:    shards,
		allowlist: allowlist,
		json:      jsonAdapter,
		clock:     clock,
		metrics:   m,
	}, nil
}

// Run starts the consume loop
func (g *ingester) Run(ctx context.Context) error {
	info, err := g.consumer.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to get consumer info: %w", err)
	}
	logger.InfoCtx(ctx, "Starting ingest",
		zap.String("consumer", info.Name),
		zap.Int("shards", len(g.shards)),
		zap.Int("batch_size", g.config.BatchSize))

	pool := pond.NewPool(len(g.shards))
	defer pool.StopAndWait()

	for {
		if ctx.Err() != nil {
			logger.InfoCtx(ctx, "Shutting down ingest")
			return ctx.Err()
		}

		msgs, err := g.fetch()
		if err != nil {
			logger.WarnCtx(ctx, "Failed to fetch messages", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-g.clock.After(g.config.FetchWait):
			}
			continue
		}

		if len(msgs) > 0 {
			g.processBatch(ctx, pool, msgs)
		}
	}
}

// fetch pulls one batch, waiting at most FetchWait for it to fill
func (g *ingester) fetch() ([]adapter.Message, error) {
	batch, err := g.consumer.Fetch(g.config.BatchSize, jetstream.FetchMaxWait(g.config.FetchWait))
	if err != nil {
		return nil, err
	}

	var msgs []adapter.Message
	for msg := range batch.Messages() {
		msgs = append(msgs, msg)
	}

	if err := batch.Error(); err != nil && !errors.Is(err, nats.ErrTimeout) {
		if len(msgs) == 0 {
			return nil, err
		}
		logger.Warn("Batch ended early", zap.Error(err), zap.Int("messages", len(msgs)))
	}
	return msgs, nil
}

// processBatch partitions a batch by shard. Shards run concurrently, a shard runs in stream order.
func (g *ingester) processBatch(ctx context.Context, pool pond.Pool, msgs []adapter.Message) {
	partitions := make([][]pending, len(g.shards))
	for _, msg := range msgs {
		event, ok := g.decode(ctx, msg)
		if !ok {
			continue
		}
		i := ShardOf(event.RoutingKey(), len(g.shards))
		partitions[i] = append(partitions[i], pending{msg: msg, event: event})
	}

	group := pool.NewGroup()
	for i, part := range partitions {
		if len(part) == 0 {
			continue
		}
		group.Submit(func() {
			g.processShard(ctx, i, part)
		})
	}
	if err := group.Wait(); err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("failed to process batch: %w", err))
	}
}

// decode parses a message; messages that cannot reach an aggregator are settled here
func (g *ingester) decode(ctx context.Context, msg adapter.Message) (*domain.Event, bool) {
	var event domain.Event
	if err := g.json.Unmarshal(msg.Data(), &event); err != nil {
		// Without a natural key the message cannot be recorded as an anomaly
		logger.Anomaly(ctx, string(schema.AnomalyKindInvalidPayload), "Terminating undecodable message",
			zap.String("subject", msg.Subject()),
			zap.Error(err))
		g.metrics.IncrementAnomaly(string(schema.AnomalyKindInvalidPayload))
		g.settle(ctx, msg, msg.Term, "terminate")
		return nil, false
	}

	if !g.allowlist.IsAllowed(event.Chain, event.ContractAddress) {
		logger.WarnCtx(ctx, "Dropping event from unlisted contract",
			zap.String("chain", string(event.Chain)),
			zap.String("contract", event.ContractAddress),
			zap.String("key", event.Key().String()))
		g.settle(ctx, msg, msg.Ack, "ack")
		return nil, false
	}

	return &event, true
}

// processShard applies the events of one shard in order. A retryable failure
// blocks the shard until it succeeds or the context ends, so a later event of
// the same entity never overtakes it.
func (g *ingester) processShard(ctx context.Context, shard int, part []pending) {
	agg := g.shards[shard]
	for i, p := range part {
		outcome, err := g.applyWithRetry(ctx, agg, p)
		if err != nil {
			if ctx.Err() != nil {
				for _, rest := range part[i:] {
					g.settle(ctx, rest.msg, rest.msg.Nak, "nak")
				}
				return
			}
			logger.ErrorCtx(ctx, fmt.Errorf("failed to apply event %s: %w", p.event.Key(), err),
				zap.String("shard", ShardName(shard)))
			g.settle(ctx, p.msg, p.msg.Term, "terminate")
			continue
		}

		logger.DebugCtx(ctx, "Event ingested",
			zap.String("shard", ShardName(shard)),
			zap.String("key", p.event.Key().String()),
			zap.String("outcome", string(outcome)))
		g.settle(ctx, p.msg, p.msg.Ack, "ack")
	}
}

// applyWithRetry applies an event, retrying retryable failures with exponential backoff until shutdown
func (g *ingester) applyWithRetry(ctx context.Context, agg aggregator.Aggregator, p pending) (aggregator.Outcome, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.config.RetryInitialInterval
	b.MaxInterval = g.config.RetryMaxInterval
	b.MaxElapsedTime = 0
	b.Multiplier = 2.0
	b.RandomizationFactor = 0.5

	var outcome aggregator.Outcome
	operation := func() error {
		var err error
		outcome, err = agg.Apply(ctx, p.event)
		if err != nil && !errors.Is(err, domain.ErrRetryable) {
			return backoff.Permanent(err)
		}
		return err
	}

	var attemptCount int
	notifyOnError := func(err error, duration time.Duration) {
		attemptCount++
		g.metrics.IncrementRetry()
		logger.WarnCtx(ctx, "Apply failed, retrying",
			zap.Error(err),
			zap.String("key", p.event.Key().String()),
			zap.Int("attempt", attemptCount),
			zap.Duration("next_retry_in", duration))
		// Keep the message from being redelivered while it is retried here
		if err := p.msg.InProgress(); err != nil {
			logger.WarnCtx(ctx, "Failed to extend ack deadline", zap.Error(err))
		}
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notifyOnError)
	return outcome, err
}

// settle acks, naks or terminates a message, logging failures
func (g *ingester) settle(ctx context.Context, msg adapter.Message, fn func() error, action string) {
	if err := fn(); err != nil {
		logger.ErrorCtx(ctx, fmt.Errorf("failed to %s message: %w", action, err), zap.String("subject", msg.Subject()))
	}
}

// Close closes the NATS connection
func (g *ingester) Close() {
	if g.nc == nil {
		return
	}

	g.nc.Close()
}
