package jetstream_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-asset-aggregator/internal/adapter"
	"github.com/feral-file/ff-asset-aggregator/internal/domain"
	"github.com/feral-file/ff-asset-aggregator/internal/mocks"
	js "github.com/feral-file/ff-asset-aggregator/internal/providers/jetstream"
)

type natsTestSetup struct {
	natsJS *mocks.MockNatsJetStream
	conn   *mocks.MockNatsConn
	stream *mocks.MockJetStream
}

func setupNatsTest(t *testing.T) *natsTestSetup {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	return &natsTestSetup{
		natsJS: mocks.NewMockNatsJetStream(ctrl),
		conn:   mocks.NewMockNatsConn(ctrl),
		stream: mocks.NewMockJetStream(ctrl),
	}
}

func publisherConfig() js.Config {
	return js.Config{
		URL:            "nats://localhost:4222",
		StreamName:     "REGISTRY",
		SubjectPrefix:  "registry.events",
		MaxReconnects:  5,
		ReconnectWait:  time.Second,
		ConnectionName: "registry-event-emitter",
	}
}

func voteEvent(t *testing.T) *domain.Event {
	event, err := domain.NewEvent(domain.EventTypeVoteCast,
		domain.Position{BlockNumber: 10, LogIndex: 2}, "0xABC", 1700000000,
		&domain.VoteCastPayload{ProposalID: "9", Voter: "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
			Support: domain.VoteFor, Weight: "1200", House: domain.HouseBrand})
	require.NoError(t, err)
	return event
}

func TestNewPublisher(t *testing.T) {
	s := setupNatsTest(t)
	ctx := context.Background()

	s.natsJS.EXPECT().Connect("nats://localhost:4222", gomock.Any()).Return(s.conn, s.stream, nil)
	s.stream.EXPECT().CreateOrUpdateStream(ctx, gomock.AssignableToTypeOf(jetstream.StreamConfig{})).
		DoAndReturn(func(_ context.Context, cfg jetstream.StreamConfig) error {
			assert.Equal(t, "REGISTRY", cfg.Name)
			assert.Equal(t, []string{"registry.events.>"}, cfg.Subjects)
			assert.Positive(t, cfg.Duplicates)
			return nil
		})

	pub, err := js.NewPublisher(ctx, publisherConfig(), s.natsJS, adapter.NewJSON())

	require.NoError(t, err)
	assert.NotNil(t, pub)
}

func TestNewPublisher_ConnectError(t *testing.T) {
	s := setupNatsTest(t)

	s.natsJS.EXPECT().Connect(gomock.Any(), gomock.Any()).Return(nil, nil, errors.New("no servers available"))

	_, err := js.NewPublisher(context.Background(), publisherConfig(), s.natsJS, adapter.NewJSON())

	assert.ErrorContains(t, err, "failed to connect to NATS")
}

func TestNewPublisher_StreamError(t *testing.T) {
	s := setupNatsTest(t)

	s.natsJS.EXPECT().Connect(gomock.Any(), gomock.Any()).Return(s.conn, s.stream, nil)
	s.stream.EXPECT().CreateOrUpdateStream(gomock.Any(), gomock.Any()).Return(errors.New("insufficient resources"))
	s.conn.EXPECT().Close()

	_, err := js.NewPublisher(context.Background(), publisherConfig(), s.natsJS, adapter.NewJSON())

	assert.ErrorContains(t, err, "failed to create or update stream REGISTRY")
}

func TestPublishEvent(t *testing.T) {
	s := setupNatsTest(t)
	ctx := context.Background()

	s.natsJS.EXPECT().Connect(gomock.Any(), gomock.Any()).Return(s.conn, s.stream, nil)
	s.stream.EXPECT().CreateOrUpdateStream(gomock.Any(), gomock.Any()).Return(nil)

	pub, err := js.NewPublisher(ctx, publisherConfig(), s.natsJS, adapter.NewJSON())
	require.NoError(t, err)

	event := voteEvent(t)
	s.stream.EXPECT().
		Publish(ctx, "registry.events.vote_cast", gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
			assert.Len(t, opts, 1)
			var decoded domain.Event
			require.NoError(t, json.Unmarshal(data, &decoded))
			assert.Equal(t, event.Key(), decoded.Key())
			assert.JSONEq(t, string(event.Payload), string(decoded.Payload))
			return &jetstream.PubAck{Stream: "REGISTRY", Sequence: 1}, nil
		})

	require.NoError(t, pub.PublishEvent(ctx, event))

	s.stream.EXPECT().Publish(ctx, gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("timeout"))
	assert.ErrorContains(t, pub.PublishEvent(ctx, event), "failed to publish event")

	s.conn.EXPECT().Close()
	pub.Close()
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "registry.events.transfer", js.Subject("registry.events", domain.EventTypeTransfer))
}

func TestNewConsumer(t *testing.T) {
	s := setupNatsTest(t)
	ctx := context.Background()
	consumer := mocks.NewMockNatsConsumer(gomock.NewController(t))

	s.natsJS.EXPECT().Connect(gomock.Any(), gomock.Any()).Return(s.conn, s.stream, nil)
	s.stream.EXPECT().CreateOrUpdateStream(gomock.Any(), gomock.Any()).Return(nil)
	s.stream.EXPECT().CreateOrUpdateConsumer(ctx, "REGISTRY", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, cfg jetstream.ConsumerConfig) (adapter.Consumer, error) {
			assert.Equal(t, "aggregator", cfg.Durable)
			assert.Equal(t, "registry.events.>", cfg.FilterSubject)
			assert.Equal(t, jetstream.AckExplicitPolicy, cfg.AckPolicy)
			assert.Equal(t, 30*time.Second, cfg.AckWait)
			assert.Equal(t, 10, cfg.MaxDeliver)
			return consumer, nil
		})

	conn, got, err := js.NewConsumer(ctx, js.ConsumerConfig{
		URL:           "nats://localhost:4222",
		StreamName:    "REGISTRY",
		SubjectPrefix: "registry.events",
		ConsumerName:  "aggregator",
		AckWait:       30 * time.Second,
		MaxDeliver:    10,
	}, s.natsJS)

	require.NoError(t, err)
	assert.Equal(t, s.conn, conn)
	assert.Equal(t, consumer, got)
}

func TestNewConsumer_Error(t *testing.T) {
	s := setupNatsTest(t)

	s.natsJS.EXPECT().Connect(gomock.Any(), gomock.Any()).Return(s.conn, s.stream, nil)
	s.stream.EXPECT().CreateOrUpdateStream(gomock.Any(), gomock.Any()).Return(nil)
	s.stream.EXPECT().CreateOrUpdateConsumer(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("bad config"))
	s.conn.EXPECT().Close()

	_, _, err := js.NewConsumer(context.Background(), js.ConsumerConfig{StreamName: "REGISTRY", ConsumerName: "aggregator"}, s.natsJS)

	assert.ErrorContains(t, err, "failed to create consumer aggregator")
}
