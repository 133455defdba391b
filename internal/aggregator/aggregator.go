package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/feral-file/ff-asset-aggregator/internal/adapter"
	"github.com/feral-file/ff-asset-aggregator/internal/domain"
	"github.com/feral-file/ff-asset-aggregator/internal/logger"
	"github.com/feral-file/ff-asset-aggregator/internal/metrics"
	"github.com/feral-file/ff-asset-aggregator/internal/store"
	"github.com/feral-file/ff-asset-aggregator/internal/store/schema"
)

// Outcome is the result of applying one event
type Outcome string

const (
	// OutcomeApplied means the event changed the store
	OutcomeApplied Outcome = "applied"
	// OutcomeDuplicate means the event had already been applied and nothing changed
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeAnomaly means the event was recorded as an anomaly and skipped
	OutcomeAnomaly Outcome = "anomaly"
)

// Config holds the configuration of one aggregator instance
type Config struct {
	// Shard names the cursor this instance owns
	Shard string
	// Replay applies events below the cursor through the duplicate check instead of rejecting them
	Replay bool
}

// Aggregator folds events into the entity store
//
//go:generate mockgen -source=aggregator.go -destination=../mocks/aggregator.go -package=mocks -mock_names=Aggregator=MockAggregator
type Aggregator interface {
	// Apply applies a single event in one store transaction.
	// Errors wrap domain.ErrRetryable when the event should be delivered again.
	Apply(ctx context.Context, event *domain.Event) (Outcome, error)
}

type aggregator struct {
	config  Config
	store   store.Store
	clock   adapter.Clock
	metrics *metrics.Metrics
}

// NewAggregator creates a new aggregator for a shard
func NewAggregator(cfg Config, st store.Store, clock adapter.Clock, m *metrics.Metrics) Aggregator {
	return &aggregator{
		config:  cfg,
		store:   st,
		clock:   clock,
		metrics: m,
	}
}

// anomaly describes why an event is skipped
type anomaly struct {
	kind   schema.AnomalyKind
	detail string
}

func invalidPayload(err error) *anomaly {
	return &anomaly{kind: schema.AnomalyKindInvalidPayload, detail: err.Error()}
}

// errRaced rolls back a transaction whose history insert hit an existing natural key
var errRaced = errors.New("history record already exists")

// handler applies one event type. It returns an anomaly without writing anything
// when the event cannot be applied.
type handler func(ctx context.Context, tx store.Tx, e *domain.Event, ref schema.EventRef) (*anomaly, error)

func (a *aggregator) handlerFor(t domain.EventType) handler {
	switch t {
	case domain.EventTypeTransfer:
		return a.applyTransfer
	case domain.EventTypeStateChanged:
		return a.applyStateChanged
	case domain.EventTypeAssetFlagged:
		return a.applyAssetFlagged
	case domain.EventTypeAssetResolved:
		return a.applyAssetResolved
	case domain.EventTypeBadgeGranted, domain.EventTypeBadgeRevoked:
		return a.applyBadge
	case domain.EventTypeCapabilityGranted, domain.EventTypeCapabilityRevoked:
		return a.applyCapability
	case domain.EventTypeProposalCreated:
		return a.applyProposalCreated
	case domain.EventTypeVoteCast:
		return a.applyVoteCast
	case domain.EventTypeProposalCanceled, domain.EventTypeProposalQueued, domain.EventTypeProposalExecuted:
		return a.applyProposalTransition
	}
	return nil
}

// historyModel returns the table holding the history record of an event type
func historyModel(t domain.EventType) interface{} {
	switch t {
	case domain.EventTypeTransfer:
		return &schema.Transfer{}
	case domain.EventTypeStateChanged:
		return &schema.StateChange{}
	case domain.EventTypeAssetFlagged:
		return &schema.Flag{}
	case domain.EventTypeAssetResolved:
		return &schema.Resolution{}
	case domain.EventTypeBadgeGranted, domain.EventTypeBadgeRevoked:
		return &schema.BadgeGrant{}
	case domain.EventTypeCapabilityGranted, domain.EventTypeCapabilityRevoked:
		return &schema.CapabilityGrant{}
	case domain.EventTypeVoteCast:
		return &schema.Vote{}
	case domain.EventTypeProposalCanceled, domain.EventTypeProposalQueued, domain.EventTypeProposalExecuted:
		return &schema.ProposalTransition{}
	}
	return nil
}

// Apply applies a single event
func (a *aggregator) Apply(ctx context.Context, e *domain.Event) (Outcome, error) {
	start := time.Now()
	ctx = logger.WithFields(ctx,
		zap.String("shard", a.config.Shard),
		zap.String("event", e.Key().String()),
		zap.Uint64("block", e.BlockNumber),
	)
	outcome, err := a.apply(ctx, e)

	label := string(outcome)
	if err != nil {
		label = metrics.OutcomeFailed
	}
	a.metrics.ObserveApply(string(e.Type), label, start)

	return outcome, err
}

func (a *aggregator) apply(ctx context.Context, e *domain.Event) (Outcome, error) {
	if e.TxHash == "" {
		// Without a natural key the event cannot even be recorded as an anomaly
		logger.Anomaly(ctx, string(schema.AnomalyKindInvalidPayload), "Dropping event without tx hash",
			zap.String("type", string(e.Type)),
			zap.Uint64("block", e.BlockNumber),
			zap.Uint64("logIndex", e.LogIndex),
		)
		a.metrics.IncrementAnomaly(string(schema.AnomalyKindInvalidPayload))
		return OutcomeAnomaly, nil
	}

	digest, err := e.Digest()
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidEvent, err)
	}

	key := e.Key()
	ref := schema.EventRef{
		TxHash:      key.TxHash,
		LogIndex:    key.LogIndex,
		BlockNumber: e.BlockNumber,
		Timestamp:   e.Time(),
		Digest:      digest,
		Raw:         datatypes.JSON(e.Payload),
	}

	var outcome Outcome
	var skipped *anomaly
	err = a.store.WithTx(ctx, func(tx store.Tx) error {
		outcome, skipped = "", nil

		dup, err := a.isDuplicate(ctx, tx, e, digest)
		if err != nil {
			return err
		}
		if dup {
			outcome = OutcomeDuplicate
			return nil
		}

		cursor, err := tx.GetCursor(ctx, a.config.Shard)
		if err != nil {
			return err
		}
		pos := e.Position()
		behind := cursor != nil && pos.Less(*cursor)

		if behind && !a.config.Replay {
			skipped = &anomaly{
				kind:   schema.AnomalyKindOutOfOrder,
				detail: fmt.Sprintf("position %s is behind cursor %s", pos, cursor),
			}
			outcome = OutcomeAnomaly
			// The cursor never moves backwards
			return a.recordAnomaly(ctx, tx, e, ref, skipped)
		}

		skipped, err = a.dispatch(ctx, tx, e, ref)
		if err != nil {
			return err
		}
		outcome = OutcomeApplied
		if skipped != nil {
			outcome = OutcomeAnomaly
			if err := a.recordAnomaly(ctx, tx, e, ref, skipped); err != nil {
				return err
			}
		}

		if !behind {
			return tx.SetCursor(ctx, a.config.Shard, pos)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errRaced) {
			return OutcomeDuplicate, nil
		}
		return "", fmt.Errorf("%w: failed to apply event %s: %w", domain.ErrRetryable, key, err)
	}

	if skipped != nil {
		logger.Anomaly(ctx, string(skipped.kind), "Skipped event",
			zap.String("type", string(e.Type)),
			zap.String("detail", skipped.detail),
		)
		a.metrics.IncrementAnomaly(string(skipped.kind))
	}
	if outcome != OutcomeDuplicate {
		a.metrics.SetCursor(a.config.Shard, e.BlockNumber)
	}

	logger.DebugCtx(ctx, "Applied event",
		zap.String("type", string(e.Type)),
		zap.String("outcome", string(outcome)),
	)

	return outcome, nil
}

func (a *aggregator) dispatch(ctx context.Context, tx store.Tx, e *domain.Event, ref schema.EventRef) (*anomaly, error) {
	if err := e.Validate(); err != nil {
		kind := schema.AnomalyKindInvalidPayload
		if errors.Is(err, domain.ErrUnknownEventType) {
			kind = schema.AnomalyKindUnknownType
		}
		return &anomaly{kind: kind, detail: err.Error()}, nil
	}

	h := a.handlerFor(e.Type)
	if h == nil {
		return &anomaly{kind: schema.AnomalyKindUnknownType, detail: fmt.Sprintf("no handler for %q", e.Type)}, nil
	}
	return h(ctx, tx, e, ref)
}

// isDuplicate checks the natural key of the event against its history table. Live mode also
// treats a recorded anomaly as seen; replay dispatches skipped events again.
func (a *aggregator) isDuplicate(ctx context.Context, tx store.Tx, e *domain.Event, digest string) (bool, error) {
	key := e.Key()

	var existing string
	var err error
	if !a.config.Replay {
		existing, err = tx.GetRecordDigest(ctx, &schema.Anomaly{}, key)
		if err != nil {
			return false, err
		}
	}

	if existing == "" {
		if model := historyModel(e.Type); model != nil {
			existing, err = tx.GetRecordDigest(ctx, model, key)
			if err != nil {
				return false, err
			}
		} else if e.Type == domain.EventTypeProposalCreated {
			return a.isProposalCreated(ctx, tx, e)
		}
	}

	if existing == "" {
		return false, nil
	}
	if existing != digest {
		logger.Anomaly(ctx, string(schema.AnomalyKindConflict), "Redelivered event differs from the applied one",
			zap.String("type", string(e.Type)),
		)
	}
	return true, nil
}

// isProposalCreated reports whether the proposal was created by this very event
func (a *aggregator) isProposalCreated(ctx context.Context, tx store.Tx, e *domain.Event) (bool, error) {
	p, err := e.ProposalCreatedPayload()
	if err != nil {
		return false, nil
	}
	proposal, err := tx.GetProposal(ctx, p.ProposalID)
	if err != nil {
		return false, err
	}
	key := e.Key()
	return proposal != nil && proposal.CreatedTxHash == key.TxHash && proposal.CreatedLogIndex == key.LogIndex, nil
}

func (a *aggregator) recordAnomaly(ctx context.Context, tx store.Tx, e *domain.Event, ref schema.EventRef, skipped *anomaly) error {
	now := a.clock.Now()
	_, err := tx.InsertAnomaly(ctx, &schema.Anomaly{
		EventRef:   ref,
		AnomalyID:  ulid.MustNewDefault(now).String(),
		EventType:  e.Type,
		Kind:       skipped.kind,
		Detail:     skipped.detail,
		DetectedAt: now.UTC(),
	})
	return err
}

// insertRecord appends a history record, rolling back when its natural key already exists
func insertRecord(ctx context.Context, tx store.Tx, record interface{}) error {
	created, err := tx.InsertRecord(ctx, record)
	if err != nil {
		return err
	}
	if !created {
		return errRaced
	}
	return nil
}

// users touches the addresses referenced by one event and collects their effect on the stats
type users struct {
	a     *aggregator
	tx    store.Tx
	at    time.Time
	delta *store.StatsDelta
}

func (a *aggregator) users(tx store.Tx, e *domain.Event, delta *store.StatsDelta) *users {
	return &users{a: a, tx: tx, at: e.Time(), delta: delta}
}

func (u *users) touch(ctx context.Context, address string, delta store.UserDelta) error {
	if address == "" || domain.IsNullAddress(address) {
		return nil
	}
	result, err := u.tx.TouchUser(ctx, address, u.at, delta)
	if err != nil {
		return err
	}
	if result.Created {
		u.delta.TotalUsers++
	}
	if len(result.Clamped) > 0 {
		logger.Anomaly(ctx, "counter_underflow", "Clamped user count at zero",
			zap.String("address", address),
			zap.Strings("counters", result.Clamped),
		)
		u.a.metrics.IncrementClamps(result.Clamped)
	}
	return nil
}

// adjustStats applies the global and daily deltas of one event
func (a *aggregator) adjustStats(ctx context.Context, tx store.Tx, e *domain.Event, delta store.StatsDelta, daily store.DailyDelta) error {
	clamped, err := tx.AdjustGlobalStats(ctx, delta, e.Time())
	if err != nil {
		return err
	}
	if len(clamped) > 0 {
		logger.Anomaly(ctx, "counter_underflow", "Clamped global counter at zero",
			zap.String("type", string(e.Type)),
			zap.Strings("counters", clamped),
		)
		a.metrics.IncrementClamps(clamped)
	}
	return tx.AdjustDailyStats(ctx, e.Day(), daily)
}
