package messaging

import (
	"context"

	"github.com/feral-file/ff-asset-aggregator/internal/domain"
)

// Publisher defines the interface for publishing registry events to the message broker
//
//go:generate mockgen -source=publisher.go -destination=../mocks/publisher.go -package=mocks -mock_names=Publisher=MockPublisher
type Publisher interface {
	// PublishEvent publishes a registry event. Redelivery of the same event is deduplicated by the broker.
	PublishEvent(ctx context.Context, event *domain.Event) error
	// Close closes the connection
	Close()
}
