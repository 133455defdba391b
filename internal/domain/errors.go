package domain

import "errors"

var (
	// ErrSubscriptionFailed is returned when subscription to events fails
	ErrSubscriptionFailed = errors.New("subscription failed")

	// ErrNotFound is returned when a looked up entity does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidEvent is returned when an event envelope or payload cannot be interpreted
	ErrInvalidEvent = errors.New("invalid event")

	// ErrUnknownEventType is returned for event types the aggregator has no handler for
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrRetryable marks failures that are transient and must be retried by the delivery layer
	ErrRetryable = errors.New("retryable failure")
)
