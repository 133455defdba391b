package messaging

import (
	"context"

	"github.com/feral-file/ff-asset-aggregator/internal/domain"
)

// EventHandler is called for each registry event in chain order.
// A returned error stops the subscription.
type EventHandler func(event *domain.Event) error

// Subscriber defines the interface for subscribing to registry events on chain
//
//go:generate mockgen -source=subscriber.go -destination=../mocks/subscriber.go -package=mocks -mock_names=Subscriber=MockSubscriber
type Subscriber interface {
	// SubscribeEvents replays events from fromBlock up to the chain head, then follows new blocks
	SubscribeEvents(ctx context.Context, fromBlock uint64, handler EventHandler) error

	// GetLatestBlock returns the latest block number
	GetLatestBlock(ctx context.Context) (uint64, error)

	// Close closes the connection and cleans up resources
	Close()
}
