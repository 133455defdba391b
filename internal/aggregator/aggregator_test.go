package aggregator

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/feral-file/ff-asset-aggregator/internal/adapter"
	"github.com/feral-file/ff-asset-aggregator/internal/domain"
	"github.com/feral-file/ff-asset-aggregator/internal/store"
	"github.com/feral-file/ff-asset-aggregator/internal/store/schema"
)

const (
	addrA = "0x1111111111111111111111111111111111111111"
	addrB = "0x2222222222222222222222222222222222222222"
	addrC = "0x3333333333333333333333333333333333333333"

	registry = "0x9999999999999999999999999999999999999999"
)

var baseTime = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC).Unix()

// =============================================================================
// Test Helpers
// =============================================================================

func newTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "aggregator.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, store.ConfigureConnectionPool(db, 1, 1, 0, 0))
	require.NoError(t, store.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newTestStore(t *testing.T) store.Store {
	return store.NewStore(newTestDB(t))
}

func newTestAggregator(st store.Store, shard string, replay bool) Aggregator {
	return NewAggregator(Config{Shard: shard, Replay: replay}, st, adapter.NewClock(), nil)
}

func newEvent(t *testing.T, eventType domain.EventType, block, logIndex uint64, payload interface{}) *domain.Event {
	e, err := domain.NewEvent(eventType, domain.Position{BlockNumber: block, LogIndex: logIndex},
		fmt.Sprintf("0x%064x", block), baseTime+int64(block)*12, payload)
	require.NoError(t, err)
	e.Chain = domain.ChainEthereumMainnet
	e.ContractAddress = registry
	return e
}

func transfer(t *testing.T, block, logIndex uint64, from, to, tokenID string) *domain.Event {
	return newEvent(t, domain.EventTypeTransfer, block, logIndex, domain.TransferPayload{From: from, To: to, TokenID: tokenID})
}

func mint(t *testing.T, block, logIndex uint64, to, tokenID string) *domain.Event {
	return transfer(t, block, logIndex, domain.ETHEREUM_ZERO_ADDRESS, to, tokenID)
}

func stateChanged(t *testing.T, block, logIndex uint64, tokenID string, from, to domain.AssetState) *domain.Event {
	return newEvent(t, domain.EventTypeStateChanged, block, logIndex, domain.StateChangedPayload{TokenID: tokenID, OldState: from, NewState: to})
}

func flagged(t *testing.T, block, logIndex uint64, tokenID, reporter, reason string) *domain.Event {
	return newEvent(t, domain.EventTypeAssetFlagged, block, logIndex, domain.AssetFlaggedPayload{TokenID: tokenID, Reporter: reporter, Reason: reason})
}

func resolved(t *testing.T, block, logIndex uint64, tokenID, resolver string, resolution domain.ResolutionType) *domain.Event {
	return newEvent(t, domain.EventTypeAssetResolved, block, logIndex, domain.AssetResolvedPayload{TokenID: tokenID, Resolver: resolver, Resolution: resolution})
}

func badge(t *testing.T, eventType domain.EventType, block, logIndex uint64, subject, badgeID string) *domain.Event {
	return newEvent(t, eventType, block, logIndex, domain.BadgePayload{Subject: subject, Issuer: addrC, BadgeID: badgeID})
}

func capability(t *testing.T, eventType domain.EventType, block, logIndex uint64, subject, name string) *domain.Event {
	return newEvent(t, eventType, block, logIndex, domain.CapabilityPayload{Subject: subject, Capability: name})
}

func proposalCreated(t *testing.T, block uint64, id string, quorums map[string]string) *domain.Event {
	start := baseTime + int64(block)*12
	return newEvent(t, domain.EventTypeProposalCreated, block, 0, domain.ProposalCreatedPayload{
		ProposalID: id,
		Proposer:   addrA,
		Category:   "treasury",
		StartTime:  start,
		EndTime:    start + 3600,
		Quorums:    quorums,
	})
}

func voteCast(t *testing.T, block, logIndex uint64, id, voter string, support domain.VoteSupport, weight string, house domain.House) *domain.Event {
	return newEvent(t, domain.EventTypeVoteCast, block, logIndex, domain.VoteCastPayload{
		ProposalID: id, Voter: voter, Support: support, Weight: weight, House: house,
	})
}

func applyAll(t *testing.T, agg Aggregator, events ...*domain.Event) []Outcome {
	outcomes := make([]Outcome, 0, len(events))
	for _, e := range events {
		outcome, err := agg.Apply(context.Background(), e)
		require.NoError(t, err)
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func globalStats(t *testing.T, st store.Store) schema.GlobalStats {
	stats, err := st.GetGlobalStats(context.Background())
	require.NoError(t, err)
	stats.LastEventAt = nil
	return *stats
}

// dump captures every counter and entity the aggregator writes, for comparing two runs
type dump struct {
	Stats       schema.GlobalStats
	Daily       []schema.DailyStats
	Users       []schema.User
	Assets      []schema.Asset
	Transfers   int
	Flags       int
	Resolutions int
	Badges      int
	Votes       int
	Proposal    *schema.Proposal
	Anomalies   uint64
}

func dumpStore(t *testing.T, st store.Store, tokenIDs []string, subjects []string, proposalID string) dump {
	ctx := context.Background()
	d := dump{Stats: globalStats(t, st)}

	var err error
	d.Daily, err = st.ListDailyStats(ctx, 100)
	require.NoError(t, err)
	d.Users, err = st.ListUsers(ctx, 100, 0)
	require.NoError(t, err)
	d.Assets, _, err = st.ListAssets(ctx, store.AssetFilter{Limit: 100})
	require.NoError(t, err)

	for _, id := range tokenIDs {
		transfers, err := st.ListTransfers(ctx, id)
		require.NoError(t, err)
		d.Transfers += len(transfers)
		flags, err := st.ListFlags(ctx, id)
		require.NoError(t, err)
		d.Flags += len(flags)
		resolutions, err := st.ListResolutions(ctx, id)
		require.NoError(t, err)
		d.Resolutions += len(resolutions)
	}
	for _, s := range subjects {
		subject := s
		records, err := st.ListBadgeRecords(ctx, store.GrantFilter{Subject: &subject})
		require.NoError(t, err)
		d.Badges += len(records)
	}
	if proposalID != "" {
		d.Proposal, err = st.GetProposal(ctx, proposalID)
		require.NoError(t, err)
		votes, err := st.ListVotes(ctx, proposalID)
		require.NoError(t, err)
		d.Votes = len(votes)
	}
	_, d.Anomalies, err = st.ListAnomalies(ctx, store.AnomalyFilter{Limit: 1})
	require.NoError(t, err)
	return d
}

func assertConservation(t *testing.T, st store.Store) {
	ctx := context.Background()
	stats := globalStats(t, st)

	var buckets int64
	for _, state := range domain.AssetStates {
		buckets += *store.StateCount(&stats, state)
	}
	_, assets, err := st.ListAssets(ctx, store.AssetFilter{Limit: 1})
	require.NoError(t, err)

	assert.Equal(t, stats.TotalAssets, buckets, "state buckets must sum to total assets")
	assert.Equal(t, uint64(stats.TotalAssets), assets, "total assets must equal the number of assets") //nolint:gosec

	counts, err := st.CountAssetsByState(ctx)
	require.NoError(t, err)
	for _, state := range domain.AssetStates {
		assert.Equal(t, counts[state], *store.StateCount(&stats, state), "bucket %s", state)
	}
}

// =============================================================================
// Tests
// =============================================================================

func TestEndToEndScenario(t *testing.T) {
	st := newTestStore(t)
	agg := newTestAggregator(st, "0", false)

	outcomes := applyAll(t, agg,
		mint(t, 1, 0, addrA, "1"),
		stateChanged(t, 2, 0, "1", domain.AssetStateMinted, domain.AssetStateBound),
		stateChanged(t, 3, 0, "1", domain.AssetStateBound, domain.AssetStateFlagged),
		flagged(t, 4, 0, "1", addrB, "suspected fake"),
		resolved(t, 5, 0, "1", addrC, domain.ResolutionQuarantine),
	)
	for _, o := range outcomes {
		assert.Equal(t, OutcomeApplied, o)
	}

	asset, err := st.GetAsset(context.Background(), "1")
	require.NoError(t, err)
	require.NotNil(t, asset)
	assert.Equal(t, domain.AssetStateFlagged, asset.State)
	assert.Equal(t, addrA, asset.Owner)
	assert.Equal(t, registry, asset.ContractAddress)

	stats := globalStats(t, st)
	assert.Equal(t, int64(1), stats.TotalFlags)
	assert.Equal(t, int64(1), stats.TotalResolutions)
	assert.Equal(t, int64(1), stats.FlaggedCount)
	assert.Equal(t, int64(0), stats.MintedCount)
	assert.Equal(t, int64(0), stats.BoundCount)
	assert.Equal(t, int64(1), stats.TotalAssets)
	assert.Equal(t, int64(3), stats.TotalUsers)
	assert.Equal(t, int64(1), stats.TotalTransfers)

	flags, err := st.ListFlags(context.Background(), "1")
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.False(t, flags[0].Resolved)

	changes, err := st.ListStateChanges(context.Background(), "1")
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, domain.AssetStateBound, changes[1].OldState)
	assert.Equal(t, domain.AssetStateFlagged, changes[1].NewState)

	pos, err := st.GetCursor(context.Background(), "0")
	require.NoError(t, err)
	assert.Equal(t, domain.Position{BlockNumber: 5}, *pos)

	assertConservation(t, st)
}

func TestIdempotence(t *testing.T) {
	tests := []struct {
		name   string
		events func(t *testing.T) []*domain.Event
	}{
		{"transfer", func(t *testing.T) []*domain.Event {
			return []*domain.Event{mint(t, 1, 0, addrA, "1"), transfer(t, 2, 0, addrA, addrB, "1")}
		}},
		{"state changed", func(t *testing.T) []*domain.Event {
			return []*domain.Event{mint(t, 1, 0, addrA, "1"), stateChanged(t, 2, 0, "1", domain.AssetStateMinted, domain.AssetStateBound)}
		}},
		{"asset flagged", func(t *testing.T) []*domain.Event {
			return []*domain.Event{mint(t, 1, 0, addrA, "1"), flagged(t, 2, 0, "1", addrB, "spam")}
		}},
		{"asset resolved", func(t *testing.T) []*domain.Event {
			return []*domain.Event{mint(t, 1, 0, addrA, "1"), resolved(t, 2, 0, "1", addrC, domain.ResolutionClear)}
		}},
		{"badge", func(t *testing.T) []*domain.Event {
			return []*domain.Event{
				badge(t, domain.EventTypeBadgeGranted, 1, 0, addrA, "7"),
				badge(t, domain.EventTypeBadgeRevoked, 2, 0, addrA, "7"),
			}
		}},
		{"capability", func(t *testing.T) []*domain.Event {
			return []*domain.Event{
				capability(t, domain.EventTypeCapabilityGranted, 1, 0, addrA, "mint"),
				capability(t, domain.EventTypeCapabilityRevoked, 2, 0, addrA, "mint"),
			}
		}},
		{"governance", func(t *testing.T) []*domain.Event {
			return []*domain.Event{
				proposalCreated(t, 1, "1", map[string]string{"token": "100"}),
				voteCast(t, 2, 0, "1", addrB, domain.VoteFor, "60", domain.HouseTokenHolder),
				newEvent(t, domain.EventTypeProposalQueued, 3, 0, domain.ProposalPayload{ProposalID: "1", ETA: baseTime + 7200}),
			}
		}},
		{"anomaly", func(t *testing.T) []*domain.Event {
			return []*domain.Event{stateChanged(t, 1, 0, "404", domain.AssetStateMinted, domain.AssetStateBound)}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newTestStore(t)
			agg := newTestAggregator(st, "0", false)
			events := tt.events(t)

			applyAll(t, agg, events...)
			once := dumpStore(t, st, []string{"1", "404"}, []string{addrA}, "1")

			for _, o := range applyAll(t, agg, events...) {
				assert.Equal(t, OutcomeDuplicate, o)
			}
			twice := dumpStore(t, st, []string{"1", "404"}, []string{addrA}, "1")

			assert.Equal(t, once, twice)
		})
	}
}

func TestIdempotence_ReplayMode(t *testing.T) {
	st := newTestStore(t)
	events := []*domain.Event{
		mint(t, 1, 0, addrA, "1"),
		transfer(t, 2, 0, addrA, addrB, "1"),
		badge(t, domain.EventTypeBadgeGranted, 3, 0, addrB, "1"),
	}
	applyAll(t, newTestAggregator(st, "0", false), events...)
	before := dumpStore(t, st, []string{"1"}, []string{addrB}, "")

	// Reprocessing after a reorg redelivers events below the cursor
	for _, o := range applyAll(t, newTestAggregator(st, "0", true), events...) {
		assert.Equal(t, OutcomeDuplicate, o)
	}
	assert.Equal(t, before, dumpStore(t, st, []string{"1"}, []string{addrB}, ""))
}

func TestOrderingInvariance(t *testing.T) {
	assetOne := func(t *testing.T) []*domain.Event {
		return []*domain.Event{
			mint(t, 1, 0, addrA, "1"),
			stateChanged(t, 3, 0, "1", domain.AssetStateMinted, domain.AssetStateBound),
			transfer(t, 5, 0, addrA, addrB, "1"),
		}
	}
	assetTwo := func(t *testing.T) []*domain.Event {
		return []*domain.Event{
			mint(t, 2, 0, addrA, "2"),
			flagged(t, 4, 0, "2", addrC, "fake"),
			stateChanged(t, 6, 0, "2", domain.AssetStateMinted, domain.AssetStateFlagged),
		}
	}
	grants := func(t *testing.T) []*domain.Event {
		return []*domain.Event{
			badge(t, domain.EventTypeBadgeGranted, 2, 1, addrB, "1"),
			badge(t, domain.EventTypeBadgeRevoked, 7, 0, addrB, "1"),
		}
	}

	run := func(t *testing.T, order ...func(*testing.T) []*domain.Event) schema.GlobalStats {
		st := newTestStore(t)
		for _, stream := range order {
			// One shard per entity keeps per-entity order while entities interleave freely
			events := stream(t)
			agg := newTestAggregator(st, events[0].RoutingKey(), false)
			applyAll(t, agg, events...)
		}
		assertConservation(t, st)
		return globalStats(t, st)
	}

	expected := run(t, assetOne, assetTwo, grants)
	assert.Equal(t, expected, run(t, assetTwo, grants, assetOne))
	assert.Equal(t, expected, run(t, grants, assetOne, assetTwo))

	assert.Equal(t, int64(2), expected.TotalAssets)
	assert.Equal(t, int64(1), expected.BoundCount)
	assert.Equal(t, int64(1), expected.FlaggedCount)
	assert.Equal(t, int64(3), expected.TotalUsers)
}

func TestMintDetection(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	agg := newTestAggregator(st, "0", false)

	applyAll(t, agg, mint(t, 1, 0, addrA, "0x0a"))

	stats := globalStats(t, st)
	assert.Equal(t, int64(1), stats.TotalAssets)
	assert.Equal(t, int64(1), stats.MintedCount)
	assert.Equal(t, int64(1), stats.TotalTransfers)

	asset, err := st.GetAsset(ctx, "10")
	require.NoError(t, err)
	require.NotNil(t, asset)

	userA, err := st.GetUser(ctx, addrA)
	require.NoError(t, err)
	assert.Equal(t, int64(1), userA.AssetCount)

	zero, err := st.GetUser(ctx, domain.ETHEREUM_ZERO_ADDRESS)
	require.NoError(t, err)
	assert.Nil(t, zero, "the null address is never a user")

	applyAll(t, agg, transfer(t, 2, 0, addrA, addrB, "10"))

	stats = globalStats(t, st)
	assert.Equal(t, int64(1), stats.TotalAssets)
	assert.Equal(t, int64(1), stats.MintedCount)
	assert.Equal(t, int64(2), stats.TotalTransfers)

	userA, err = st.GetUser(ctx, addrA)
	require.NoError(t, err)
	assert.Equal(t, int64(0), userA.AssetCount)
	userB, err := st.GetUser(ctx, addrB)
	require.NoError(t, err)
	assert.Equal(t, int64(1), userB.AssetCount)

	daily, err := st.ListDailyStats(ctx, 10)
	require.NoError(t, err)
	require.Len(t, daily, 1)
	assert.Equal(t, int64(1), daily[0].Mints)
	assert.Equal(t, int64(1), daily[0].Transfers)

	// A second mint of the same asset changes ownership only
	applyAll(t, agg, mint(t, 3, 0, addrC, "10"))
	stats = globalStats(t, st)
	assert.Equal(t, int64(1), stats.TotalAssets)
	assert.Equal(t, int64(1), stats.MintedCount)
	userB, err = st.GetUser(ctx, addrB)
	require.NoError(t, err)
	assert.Equal(t, int64(1), userB.AssetCount, "a mint never decrements an owner")
}

func TestTransfer_Burn(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	agg := newTestAggregator(st, "0", false)

	applyAll(t, agg,
		mint(t, 1, 0, addrA, "1"),
		transfer(t, 2, 0, addrA, domain.ETHEREUM_ZERO_ADDRESS, "1"),
	)

	asset, err := st.GetAsset(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, domain.ETHEREUM_ZERO_ADDRESS, asset.Owner)

	userA, err := st.GetUser(ctx, addrA)
	require.NoError(t, err)
	assert.Equal(t, int64(0), userA.AssetCount)

	stats := globalStats(t, st)
	assert.Equal(t, int64(1), stats.TotalUsers)
	assert.Equal(t, int64(1), stats.TotalAssets)
}

func TestTransfer_CreatesAssetWithoutMint(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	agg := newTestAggregator(st, "0", false)

	outcomes := applyAll(t, agg, transfer(t, 1, 0, addrA, addrB, "5"))
	assert.Equal(t, []Outcome{OutcomeApplied}, outcomes)

	asset, err := st.GetAsset(ctx, "5")
	require.NoError(t, err)
	require.NotNil(t, asset)
	assert.Equal(t, domain.AssetStateMinted, asset.State)
	assert.Equal(t, addrB, asset.Owner)

	userA, err := st.GetUser(ctx, addrA)
	require.NoError(t, err)
	assert.Equal(t, int64(0), userA.AssetCount, "sender count is clamped at zero")

	// The asset is counted as if minted, but no mint is recorded for the day
	stats := globalStats(t, st)
	assert.Equal(t, int64(1), stats.TotalAssets)
	assert.Equal(t, int64(1), stats.MintedCount)
	daily, err := st.ListDailyStats(ctx, 10)
	require.NoError(t, err)
	require.Len(t, daily, 1)
	assert.Equal(t, int64(0), daily[0].Mints)
	assert.Equal(t, int64(1), daily[0].Transfers)
	assertConservation(t, st)
}

func TestRevocationClamp(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	agg := newTestAggregator(st, "0", false)

	applyAll(t, agg,
		badge(t, domain.EventTypeBadgeGranted, 1, 0, addrA, "3"),
		badge(t, domain.EventTypeBadgeRevoked, 2, 0, addrA, "3"),
		badge(t, domain.EventTypeBadgeRevoked, 3, 0, addrA, "3"),
		capability(t, domain.EventTypeCapabilityRevoked, 4, 0, addrA, "curate"),
	)

	user, err := st.GetUser(ctx, addrA)
	require.NoError(t, err)
	assert.Equal(t, int64(0), user.BadgeCount)
	assert.Equal(t, int64(0), user.CapabilityCount)

	subject := addrA
	records, err := st.ListBadgeRecords(ctx, store.GrantFilter{Subject: &subject})
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.True(t, records[0].Active)
	assert.Nil(t, records[0].RevokedAt)
	assert.False(t, records[1].Active)
	assert.True(t, records[1].GrantedAt.IsZero())
	require.NotNil(t, records[1].RevokedAt)

	issuer, err := st.GetUser(ctx, addrC)
	require.NoError(t, err)
	require.NotNil(t, issuer, "the issuer is created on first reference")
	assert.Equal(t, int64(0), issuer.BadgeCount)
}

func TestAnomalies(t *testing.T) {
	ctx := context.Background()

	t.Run("state change of unknown asset is skipped", func(t *testing.T) {
		st := newTestStore(t)
		agg := newTestAggregator(st, "0", false)

		outcomes := applyAll(t, agg,
			stateChanged(t, 1, 0, "9", domain.AssetStateMinted, domain.AssetStateBound),
			mint(t, 2, 0, addrA, "1"),
		)
		assert.Equal(t, []Outcome{OutcomeAnomaly, OutcomeApplied}, outcomes)

		anomalies, total, err := st.ListAnomalies(ctx, store.AnomalyFilter{Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, uint64(1), total)
		assert.Equal(t, schema.AnomalyKindUnknownAsset, anomalies[0].Kind)
		assert.Equal(t, domain.EventTypeStateChanged, anomalies[0].EventType)
		assert.NotEmpty(t, anomalies[0].AnomalyID)

		changes, err := st.ListStateChanges(ctx, "9")
		require.NoError(t, err)
		assert.Empty(t, changes)

		pos, err := st.GetCursor(ctx, "0")
		require.NoError(t, err)
		assert.Equal(t, uint64(2), pos.BlockNumber)
	})

	t.Run("invalid payload and unknown type", func(t *testing.T) {
		st := newTestStore(t)
		agg := newTestAggregator(st, "0", false)

		bad := transfer(t, 1, 0, "not-an-address", addrB, "1")
		unknown := newEvent(t, "asset_teleported", 2, 0, map[string]string{"token_id": "1"})

		assert.Equal(t, []Outcome{OutcomeAnomaly, OutcomeAnomaly}, applyAll(t, agg, bad, unknown))

		kind := schema.AnomalyKindInvalidPayload
		_, total, err := st.ListAnomalies(ctx, store.AnomalyFilter{Kind: &kind, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, uint64(1), total)

		kind = schema.AnomalyKindUnknownType
		_, total, err = st.ListAnomalies(ctx, store.AnomalyFilter{Kind: &kind, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, uint64(1), total)

		assert.Equal(t, int64(0), globalStats(t, st).TotalTransfers)
	})

	t.Run("vote without a house is skipped", func(t *testing.T) {
		st := newTestStore(t)
		agg := newTestAggregator(st, "0", false)

		vote := newEvent(t, domain.EventTypeVoteCast, 2, 0, map[string]string{
			"proposal_id": "42", "voter": addrB, "support": "for", "weight": "100",
		})
		outcomes := applyAll(t, agg, proposalCreated(t, 1, "42", map[string]string{"token": "50"}), vote)
		assert.Equal(t, []Outcome{OutcomeApplied, OutcomeAnomaly}, outcomes)

		votes, err := st.ListVotes(ctx, "42")
		require.NoError(t, err)
		assert.Empty(t, votes)

		p, err := st.GetProposal(ctx, "42")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "0", p.ForVotes)

		kind := schema.AnomalyKindInvalidPayload
		_, total, err := st.ListAnomalies(ctx, store.AnomalyFilter{Kind: &kind, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, uint64(1), total)
	})

	t.Run("event without tx hash is dropped", func(t *testing.T) {
		st := newTestStore(t)
		agg := newTestAggregator(st, "0", false)

		e := mint(t, 1, 0, addrA, "1")
		e.TxHash = ""
		assert.Equal(t, []Outcome{OutcomeAnomaly}, applyAll(t, agg, e))

		_, total, err := st.ListAnomalies(ctx, store.AnomalyFilter{Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, uint64(0), total)
	})
}

func TestOrdering(t *testing.T) {
	ctx := context.Background()

	t.Run("event behind the cursor is rejected", func(t *testing.T) {
		st := newTestStore(t)
		agg := newTestAggregator(st, "0", false)

		outcomes := applyAll(t, agg, mint(t, 10, 3, addrA, "1"), mint(t, 10, 1, addrA, "2"))
		assert.Equal(t, []Outcome{OutcomeApplied, OutcomeAnomaly}, outcomes)

		asset, err := st.GetAsset(ctx, "2")
		require.NoError(t, err)
		assert.Nil(t, asset)

		kind := schema.AnomalyKindOutOfOrder
		_, total, err := st.ListAnomalies(ctx, store.AnomalyFilter{Kind: &kind, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, uint64(1), total)

		pos, err := st.GetCursor(ctx, "0")
		require.NoError(t, err)
		assert.Equal(t, domain.Position{BlockNumber: 10, LogIndex: 3}, *pos)
	})

	t.Run("replay applies events behind the cursor without moving it back", func(t *testing.T) {
		st := newTestStore(t)
		applyAll(t, newTestAggregator(st, "0", false), mint(t, 10, 3, addrA, "1"))

		outcomes := applyAll(t, newTestAggregator(st, "0", true), mint(t, 10, 1, addrA, "2"))
		assert.Equal(t, []Outcome{OutcomeApplied}, outcomes)

		asset, err := st.GetAsset(ctx, "2")
		require.NoError(t, err)
		assert.NotNil(t, asset)

		pos, err := st.GetCursor(ctx, "0")
		require.NoError(t, err)
		assert.Equal(t, domain.Position{BlockNumber: 10, LogIndex: 3}, *pos)
		assertConservation(t, st)
	})

	t.Run("replay applies an event skipped behind the cursor", func(t *testing.T) {
		st := newTestStore(t)
		live := newTestAggregator(st, "0", false)
		late := mint(t, 5, 0, addrA, "1")

		outcomes := applyAll(t, live, mint(t, 10, 0, addrA, "2"), late)
		assert.Equal(t, []Outcome{OutcomeApplied, OutcomeAnomaly}, outcomes)

		// Live redelivery keeps the skip
		assert.Equal(t, []Outcome{OutcomeDuplicate}, applyAll(t, live, late))

		replay := newTestAggregator(st, "0", true)
		assert.Equal(t, []Outcome{OutcomeApplied}, applyAll(t, replay, late))
		assert.Equal(t, []Outcome{OutcomeDuplicate}, applyAll(t, replay, late))

		asset, err := st.GetAsset(ctx, "1")
		require.NoError(t, err)
		require.NotNil(t, asset)
		assert.Equal(t, addrA, asset.Owner)
		assert.Equal(t, int64(2), globalStats(t, st).TotalAssets)

		pos, err := st.GetCursor(ctx, "0")
		require.NoError(t, err)
		assert.Equal(t, domain.Position{BlockNumber: 10}, *pos)
		assertConservation(t, st)
	})

	t.Run("replay applies a state change once its asset exists", func(t *testing.T) {
		st := newTestStore(t)
		change := stateChanged(t, 1, 0, "1", domain.AssetStateMinted, domain.AssetStateBound)

		applyAll(t, newTestAggregator(st, "0", false), change)
		applyAll(t, newTestAggregator(st, "1", false), mint(t, 2, 0, addrA, "1"))

		assert.Equal(t, []Outcome{OutcomeApplied}, applyAll(t, newTestAggregator(st, "0", true), change))

		asset, err := st.GetAsset(ctx, "1")
		require.NoError(t, err)
		require.NotNil(t, asset)
		assert.Equal(t, domain.AssetStateBound, asset.State)
		assert.Equal(t, int64(1), globalStats(t, st).BoundCount)
		assertConservation(t, st)
	})

	t.Run("shards keep independent cursors", func(t *testing.T) {
		st := newTestStore(t)
		applyAll(t, newTestAggregator(st, "a", false), mint(t, 10, 0, addrA, "1"))
		outcomes := applyAll(t, newTestAggregator(st, "b", false), mint(t, 5, 0, addrA, "2"))
		assert.Equal(t, []Outcome{OutcomeApplied}, outcomes)
	})
}

func TestGovernance(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	agg := newTestAggregator(st, "0", false)

	outcomes := applyAll(t, agg,
		proposalCreated(t, 1, "0x2a", map[string]string{"token": "5000", "brand": "3", "technical": "2"}),
		voteCast(t, 2, 0, "42", addrB, domain.VoteFor, "3000", domain.HouseTokenHolder),
		voteCast(t, 2, 1, "42", addrC, domain.VoteAgainst, "1999", domain.HouseTokenHolder),
		voteCast(t, 2, 2, "42", addrA, domain.VoteAbstain, "2", domain.HouseBrand),
		newEvent(t, domain.EventTypeProposalQueued, 3, 0, domain.ProposalPayload{ProposalID: "42", ETA: baseTime + 7200}),
		voteCast(t, 4, 0, "43", addrB, domain.VoteFor, "1", domain.HouseTechnical),
		newEvent(t, domain.EventTypeProposalCanceled, 5, 0, domain.ProposalPayload{ProposalID: "43"}),
		proposalCreated(t, 6, "42", nil),
	)
	assert.Equal(t, []Outcome{
		OutcomeApplied, OutcomeApplied, OutcomeApplied, OutcomeApplied, OutcomeApplied,
		OutcomeAnomaly, OutcomeAnomaly, OutcomeAnomaly,
	}, outcomes)

	p, err := st.GetProposal(ctx, "42")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, addrA, p.Proposer)
	assert.Equal(t, [domain.HouseCount]string{"5000", "3", "2"}, p.Quorums())
	assert.Equal(t, "3000", p.ForVotes)
	assert.Equal(t, "1999", p.AgainstVotes)
	assert.Equal(t, "2", p.AbstainVotes)
	assert.Equal(t, domain.ProposalStateQueued, p.ExplicitState)
	require.NotNil(t, p.ETA)
	assert.Equal(t, baseTime+7200, p.ETA.Unix())

	votes, err := st.ListVotes(ctx, "42")
	require.NoError(t, err)
	assert.Len(t, votes, 3)

	transitions, err := st.ListProposalTransitions(ctx, "42")
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.Equal(t, domain.ProposalStateQueued, transitions[0].State)

	stats := globalStats(t, st)
	assert.Equal(t, int64(1), stats.TotalProposals)
	assert.Equal(t, int64(3), stats.TotalVotes)

	kind := schema.AnomalyKindUnknownProposal
	_, total, err := st.ListAnomalies(ctx, store.AnomalyFilter{Kind: &kind, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), total)

	kind = schema.AnomalyKindConflict
	_, total, err = st.ListAnomalies(ctx, store.AnomalyFilter{Kind: &kind, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total)
}

func TestStoreFailureIsRetryable(t *testing.T) {
	db := newTestDB(t)
	agg := newTestAggregator(store.NewStore(db), "0", false)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = agg.Apply(context.Background(), mint(t, 1, 0, addrA, "1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRetryable)
}
