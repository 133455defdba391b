package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/feral-file/ff-asset-aggregator/internal/adapter"
	"github.com/feral-file/ff-asset-aggregator/internal/logger"
)

// ErrLeaseLost is returned by Hold when another process took over the lease
var ErrLeaseLost = errors.New("lease lost")

// renewScript extends the key only while it still holds our owner token
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// releaseScript deletes the key only while it still holds our owner token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Config holds the lease configuration
type Config struct {
	Key           string
	TTL           time.Duration
	RenewInterval time.Duration
}

// Lease guarantees a single aggregator process writes the shard set
//
//go:generate mockgen -source=lease.go -destination=../mocks/lease.go -package=mocks -mock_names=Lease=MockLease
type Lease interface {
	// Acquire blocks until the lease is taken or the context ends
	Acquire(ctx context.Context) error
	// Hold renews the lease until the context ends or the lease is lost
	Hold(ctx context.Context) error
	// Release gives the lease up if it is still ours
	Release(ctx context.Context) error
	// Owner returns the token identifying this process
	Owner() string
}

type lease struct {
	config Config
	client adapter.RedisClient
	clock  adapter.Clock
	owner  string
}

// New creates a lease with a random owner token
func New(cfg Config, client adapter.RedisClient, clock adapter.Clock) Lease {
	return &lease{
		config: cfg,
		client: client,
		clock:  clock,
		owner:  uuid.NewString(),
	}
}

func (l *lease) Owner() string {
	return l.owner
}

func (l *lease) Acquire(ctx context.Context) error {
	for {
		ok, err := l.client.SetNX(ctx, l.config.Key, l.owner, l.config.TTL)
		if err != nil {
			logger.WarnCtx(ctx, "Failed to acquire lease", zap.String("key", l.config.Key), zap.Error(err))
		} else if ok {
			logger.InfoCtx(ctx, "Lease acquired", zap.String("key", l.config.Key), zap.String("owner", l.owner))
			return nil
		} else {
			logger.InfoCtx(ctx, "Lease held by another process, waiting", zap.String("key", l.config.Key))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.clock.After(l.config.RenewInterval):
		}
	}
}

func (l *lease) Hold(ctx context.Context) error {
	lastRenewed := l.clock.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.clock.After(l.config.RenewInterval):
		}

		renewed, err := l.client.Eval(ctx, renewScript, []string{l.config.Key}, l.owner, l.config.TTL.Milliseconds())
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// The key may still be ours; it is lost only once it could have expired
			if l.clock.Since(lastRenewed) >= l.config.TTL {
				return fmt.Errorf("%w: renewal failing for %s: %w", ErrLeaseLost, l.config.TTL, err)
			}
			logger.WarnCtx(ctx, "Failed to renew lease", zap.String("key", l.config.Key), zap.Error(err))
			continue
		}
		if renewed == 0 {
			return fmt.Errorf("%w: %s is owned by another process", ErrLeaseLost, l.config.Key)
		}
		lastRenewed = l.clock.Now()
	}
}

func (l *lease) Release(ctx context.Context) error {
	released, err := l.client.Eval(ctx, releaseScript, []string{l.config.Key}, l.owner)
	if err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	if released == 0 {
		logger.WarnCtx(ctx, "Lease was not held at release", zap.String("key", l.config.Key))
		return nil
	}
	logger.InfoCtx(ctx, "Lease released", zap.String("key", l.config.Key))
	return nil
}
