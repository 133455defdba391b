package jetstream

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/feral-file/ff-asset-aggregator/internal/adapter"
)

// ConsumerConfig holds the configuration of a durable pull consumer
type ConsumerConfig struct {
	URL            string
	StreamName     string
	SubjectPrefix  string
	ConsumerName   string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectionName string
	AckWait        time.Duration
	MaxDeliver     int
	MaxAckPending  int
}

// NewConsumer connects to NATS and binds a durable pull consumer on every registry subject.
// The caller owns the returned connection.
func NewConsumer(ctx context.Context, cfg ConsumerConfig, natsJS adapter.NatsJetStream) (adapter.NatsConn, adapter.Consumer, error) {
	nc, js, err := natsJS.Connect(cfg.URL, connectOptions(cfg.ConnectionName, cfg.MaxReconnects, cfg.ReconnectWait)...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS and create JetStream: %w", err)
	}

	if err := EnsureStream(ctx, js, cfg.StreamName, cfg.SubjectPrefix); err != nil {
		nc.Close()
		return nil, nil, err
	}

	consumer, err := js.CreateOrUpdateConsumer(ctx, cfg.StreamName, jetstream.ConsumerConfig{
		Durable:       cfg.ConsumerName,
		FilterSubject: cfg.SubjectPrefix + ".>",
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckWait:       cfg.AckWait,
		MaxDeliver:    cfg.MaxDeliver,
		MaxAckPending: cfg.MaxAckPending,
	})
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create consumer %s: %w", cfg.ConsumerName, err)
	}

	return nc, consumer, nil
}
