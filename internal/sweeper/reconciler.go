package sweeper

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/alitto/pond/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/feral-file/ff-asset-aggregator/internal/adapter"
	"github.com/feral-file/ff-asset-aggregator/internal/domain"
	"github.com/feral-file/ff-asset-aggregator/internal/logger"
	"github.com/feral-file/ff-asset-aggregator/internal/metrics"
	"github.com/feral-file/ff-asset-aggregator/internal/store"
)

// Reconcile run results
const (
	ResultClean    = "clean"
	ResultDrift    = "drift"
	ResultRepaired = "repaired"
	ResultFailed   = "failed"
)

// counterTotalAssets names the total asset counter in drift reports
const counterTotalAssets = "total_assets"

// ReconcilerConfig holds configuration for the counter reconciler
type ReconcilerConfig struct {
	Schedule       string // Standard cron expression, e.g. "*/15 * * * *"
	Repair         bool   // Overwrite drifted counters with the recount
	UserBatchSize  int    // Users recounted per page
	WorkerPoolSize int    // Concurrent user recounts
}

// UserDrift is a user whose stored asset count differs from the recount
type UserDrift struct {
	Address string
	Stored  int64
	Counted int64
}

// Report is the result of one reconciliation pass
type Report struct {
	// CounterDrift maps counter name to recount minus stored value, non zero entries only
	CounterDrift map[string]int64
	Users        []UserDrift
	Repaired     bool
}

// Clean reports whether no drift was found
func (r *Report) Clean() bool {
	return len(r.CounterDrift) == 0 && len(r.Users) == 0
}

// Reconciler recounts derived counters against the entity tables
type Reconciler interface {
	Sweeper
	// RunOnce runs a single reconciliation pass
	RunOnce(ctx context.Context) (*Report, error)
}

type reconciler struct {
	config    ReconcilerConfig
	schedule  cron.Schedule
	store     store.Store
	clock     adapter.Clock
	metrics   *metrics.Metrics
	running   atomic.Bool
	stopChan  chan struct{}
	stoppedCh chan struct{}
}

// NewReconciler creates a new reconciler. The schedule must be a standard five field cron expression.
func NewReconciler(config ReconcilerConfig, st store.Store, clock adapter.Clock, m *metrics.Metrics) (Reconciler, error) {
	schedule, err := cron.ParseStandard(config.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", config.Schedule, err)
	}
	if config.UserBatchSize < 1 {
		config.UserBatchSize = 500
	}
	if config.WorkerPoolSize < 1 {
		config.WorkerPoolSize = 1
	}

	return &reconciler{
		config:    config,
		schedule:  schedule,
		store:     st,
		clock:     clock,
		metrics:   m,
		stopChan:  make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}, nil
}

// Name returns the sweeper's name
func (r *reconciler) Name() string {
	return "counter-reconciler"
}

// Start runs a pass immediately and then on every scheduled tick
func (r *reconciler) Start(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return fmt.Errorf("sweeper already running")
	}
	defer func() {
		r.running.Store(false)
		close(r.stoppedCh)
	}()

	logger.InfoCtx(ctx, "Starting counter reconciler",
		zap.String("schedule", r.config.Schedule),
		zap.Bool("repair", r.config.Repair))

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(r.schedule, cron.FuncJob(func() {
		r.runLogged(ctx)
	}))
	// Scheduled passes skip while one is running; the first pass runs before the scheduler starts
	r.runLogged(ctx)
	c.Start()
	logger.InfoCtx(ctx, "Next reconcile pass scheduled", zap.Time("at", r.schedule.Next(r.clock.Now())))

	select {
	case <-ctx.Done():
		logger.InfoCtx(ctx, "Counter reconciler stopping due to context cancellation", zap.Error(ctx.Err()))
	case <-r.stopChan:
		logger.InfoCtx(ctx, "Counter reconciler stop requested")
	}

	// Wait for a running pass to finish
	<-c.Stop().Done()
	return nil
}

// Stop gracefully stops the sweeper with timeout support
func (r *reconciler) Stop(ctx context.Context) error {
	if !r.running.CompareAndSwap(true, false) {
		return nil // Already stopped
	}

	logger.InfoCtx(ctx, "Stopping counter reconciler")
	close(r.stopChan)

	select {
	case <-r.stoppedCh:
		logger.InfoCtx(ctx, "Counter reconciler stopped gracefully")
		return nil
	case <-ctx.Done():
		logger.WarnCtx(ctx, "Counter reconciler stop interrupted by context timeout")
		return ctx.Err()
	}
}

func (r *reconciler) runLogged(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := r.RunOnce(ctx); err != nil {
		logger.ErrorCtx(ctx, err)
	}
}

// RunOnce compares the global state buckets and the users' asset counts with a recount
func (r *reconciler) RunOnce(ctx context.Context) (*Report, error) {
	startTime := r.clock.Now()
	logger.InfoCtx(ctx, "Starting reconcile pass")

	report, err := r.detect(ctx)
	if err != nil {
		r.metrics.IncrementReconcile(ResultFailed)
		return nil, fmt.Errorf("failed to detect counter drift: %w", err)
	}

	if report.Clean() {
		r.metrics.IncrementReconcile(ResultClean)
		logger.InfoCtx(ctx, "Counters are consistent", zap.Duration("duration", r.clock.Since(startTime)))
		return report, nil
	}

	for counter, drift := range report.CounterDrift {
		logger.Anomaly(ctx, "counter_drift", "Counter drift detected",
			zap.String("counter", counter),
			zap.Int64("drift", drift))
	}
	for _, u := range report.Users {
		logger.Anomaly(ctx, "counter_drift", "User asset count drift detected",
			zap.String("address", u.Address),
			zap.Int64("stored", u.Stored),
			zap.Int64("counted", u.Counted))
	}

	if !r.config.Repair {
		r.metrics.IncrementReconcile(ResultDrift)
		return report, nil
	}

	if err := r.repair(ctx, report); err != nil {
		r.metrics.IncrementReconcile(ResultFailed)
		return report, fmt.Errorf("failed to repair counters: %w", err)
	}
	report.Repaired = true
	r.metrics.IncrementReconcile(ResultRepaired)
	logger.InfoCtx(ctx, "Counters repaired",
		zap.Int("counters", len(report.CounterDrift)),
		zap.Int("users", len(report.Users)),
		zap.Duration("duration", r.clock.Since(startTime)))

	return report, nil
}

// detect recounts inside one snapshot so buckets and assets are read at the same point in time
func (r *reconciler) detect(ctx context.Context) (*Report, error) {
	report := &Report{CounterDrift: make(map[string]int64)}

	err := r.store.Snapshot(ctx, func(reader store.Reader) error {
		global, err := reader.GetGlobalStats(ctx)
		if err != nil {
			return err
		}
		counted, err := reader.CountAssetsByState(ctx)
		if err != nil {
			return err
		}

		var total int64
		for _, state := range domain.AssetStates {
			total += counted[state]
			r.record(report, string(state), counted[state]-*store.StateCount(global, state))
		}
		r.record(report, counterTotalAssets, total-global.TotalAssets)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Users are recounted outside the snapshot so the pool spreads over connections.
	// A concurrent transfer can show up as drift here; repair recounts under lock.
	users, err := r.detectUsers(ctx, r.store)
	if err != nil {
		return nil, err
	}
	report.Users = users
	return report, nil
}

func (r *reconciler) record(report *Report, counter string, drift int64) {
	r.metrics.SetDrift(counter, drift)
	if drift != 0 {
		report.CounterDrift[counter] = drift
	}
}

// detectUsers pages through users, recounting each page on the worker pool
func (r *reconciler) detectUsers(ctx context.Context, reader store.Reader) ([]UserDrift, error) {
	pool := pond.NewPool(r.config.WorkerPoolSize, pond.WithContext(ctx))
	defer pool.StopAndWait()

	var (
		mu     sync.Mutex
		drifts []UserDrift
		offset uint64
	)
	for {
		users, err := reader.ListUsers(ctx, r.config.UserBatchSize, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to list users: %w", err)
		}
		if len(users) == 0 {
			break
		}

		group := pool.NewGroup()
		for _, u := range users {
			group.SubmitErr(func() error {
				counted, err := reader.CountAssetsByOwner(ctx, u.Address)
				if err != nil {
					return fmt.Errorf("failed to count assets of %s: %w", u.Address, err)
				}
				if counted != u.AssetCount {
					mu.Lock()
					drifts = append(drifts, UserDrift{Address: u.Address, Stored: u.AssetCount, Counted: counted})
					mu.Unlock()
				}
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return nil, err
		}

		offset += uint64(len(users)) //nolint:gosec
		if len(users) < r.config.UserBatchSize {
			break
		}
	}
	return drifts, nil
}

// repair recounts under the global stats lock and overwrites drifted counters in one transaction
func (r *reconciler) repair(ctx context.Context, report *Report) error {
	return r.store.WithTx(ctx, func(tx store.Tx) error {
		stats, err := tx.LockGlobalStats(ctx)
		if err != nil {
			return err
		}
		counted, err := tx.CountAssetsByState(ctx)
		if err != nil {
			return err
		}

		var total int64
		for _, state := range domain.AssetStates {
			*store.StateCount(stats, state) = counted[state]
			total += counted[state]
		}
		stats.TotalAssets = total
		if err := tx.SaveGlobalStats(ctx, stats); err != nil {
			return err
		}

		for _, u := range report.Users {
			count, err := tx.CountAssetsByOwner(ctx, u.Address)
			if err != nil {
				return err
			}
			if err := tx.SetUserAssetCount(ctx, u.Address, count); err != nil {
				return err
			}
		}
		return nil
	})
}
