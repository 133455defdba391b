package replay

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/feral-file/ff-asset-aggregator/internal/adapter"
	"github.com/feral-file/ff-asset-aggregator/internal/aggregator"
	"github.com/feral-file/ff-asset-aggregator/internal/domain"
	"github.com/feral-file/ff-asset-aggregator/internal/logger"
	"github.com/feral-file/ff-asset-aggregator/internal/store/schema"
)

// maxLineSize bounds a single encoded event
const maxLineSize = 1 << 20

// Config holds the replay configuration
type Config struct {
	// MaxRetryElapsed bounds the retries of one event on retryable store failures
	MaxRetryElapsed time.Duration
}

// Summary counts the outcomes of a replay
type Summary struct {
	Lines      int
	Applied    int
	Duplicates int
	Anomalies  int
	Undecoded  int
	Rejected   int
	Duration   time.Duration
}

// Replayer applies a file of newline delimited events in file order
type Replayer struct {
	config     Config
	fs         adapter.FileSystem
	json       adapter.JSON
	aggregator aggregator.Aggregator
	clock      adapter.Clock
}

// NewReplayer creates a replayer. agg should be built in replay mode so events
// below its cursor go through the duplicate check.
func NewReplayer(cfg Config, fs adapter.FileSystem, jsonAdapter adapter.JSON, agg aggregator.Aggregator, clock adapter.Clock) *Replayer {
	if cfg.MaxRetryElapsed <= 0 {
		cfg.MaxRetryElapsed = time.Minute
	}
	return &Replayer{
		config:     cfg,
		fs:         fs,
		json:       jsonAdapter,
		aggregator: agg,
		clock:      clock,
	}
}

// Run replays the file at path. Blank lines are skipped; lines that do not decode
// and events the aggregator rejects are counted and logged, store failures stop the run.
func (r *Replayer) Run(ctx context.Context, path string) (*Summary, error) {
	f, err := r.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	start := r.clock.Now()
	summary := &Summary{}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		summary.Lines++

		var event domain.Event
		if err := r.json.Unmarshal(line, &event); err != nil {
			logger.Anomaly(ctx, string(schema.AnomalyKindInvalidPayload), "Skipping undecodable line",
				zap.Int("line", summary.Lines),
				zap.Error(err))
			summary.Undecoded++
			continue
		}

		outcome, err := r.apply(ctx, &event)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidEvent) {
				logger.WarnCtx(ctx, "Skipping rejected event",
					zap.Int("line", summary.Lines),
					zap.String("key", event.Key().String()),
					zap.Error(err))
				summary.Rejected++
				continue
			}
			return summary, fmt.Errorf("failed to apply line %d: %w", summary.Lines, err)
		}

		switch outcome {
		case aggregator.OutcomeApplied:
			summary.Applied++
		case aggregator.OutcomeDuplicate:
			summary.Duplicates++
		case aggregator.OutcomeAnomaly:
			summary.Anomalies++
		}
	}
	if err := scanner.Err(); err != nil {
		return summary, fmt.Errorf("failed to read %s: %w", path, err)
	}

	summary.Duration = r.clock.Since(start)
	return summary, nil
}

// apply retries retryable failures until MaxRetryElapsed has passed
func (r *Replayer) apply(ctx context.Context, event *domain.Event) (aggregator.Outcome, error) {
	var outcome aggregator.Outcome
	op := func() error {
		var err error
		outcome, err = r.aggregator.Apply(ctx, event)
		if err != nil && !errors.Is(err, domain.ErrRetryable) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = r.config.MaxRetryElapsed
	notify := func(err error, d time.Duration) {
		logger.WarnCtx(ctx, "Retrying event", zap.String("key", event.Key().String()), zap.Duration("in", d), zap.Error(err))
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return "", err
	}
	return outcome, nil
}
