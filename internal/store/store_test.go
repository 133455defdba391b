package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/feral-file/ff-asset-aggregator/internal/domain"
	"github.com/feral-file/ff-asset-aggregator/internal/store/schema"
)

// =============================================================================
// Test Data Builders
// =============================================================================

var testTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

const (
	alice = "0x1111111111111111111111111111111111111111"
	bob   = "0x2222222222222222222222222222222222222222"
)

func buildEventRef(block, log uint64) schema.EventRef {
	return schema.EventRef{
		TxHash:      fmt.Sprintf("0x%064x", block),
		LogIndex:    log,
		BlockNumber: block,
		Timestamp:   testTime.Add(time.Duration(block) * time.Second),
		Digest:      fmt.Sprintf("digest-%d-%d", block, log),
		Raw:         datatypes.JSON(`{}`),
	}
}

func buildTestAsset(tokenID string, state domain.AssetState, owner string) *schema.Asset {
	return &schema.Asset{
		TokenID:         tokenID,
		ContractAddress: "0x3333333333333333333333333333333333333333",
		State:           state,
		Owner:           owner,
		CreatedAt:       testTime,
		UpdatedAt:       testTime,
	}
}

func createAssets(t *testing.T, store Store, assets ...*schema.Asset) {
	err := store.WithTx(context.Background(), func(tx Tx) error {
		for _, a := range assets {
			if err := tx.CreateAsset(context.Background(), a); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

// =============================================================================
// Test: Cursors
// =============================================================================

func testCursors(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("aggregator cursor starts empty", func(t *testing.T) {
		pos, err := store.GetCursor(ctx, "0")
		require.NoError(t, err)
		assert.Nil(t, pos)
	})

	t.Run("aggregator cursor round trips per shard", func(t *testing.T) {
		err := store.WithTx(ctx, func(tx Tx) error {
			if err := tx.SetCursor(ctx, "0", domain.Position{BlockNumber: 10, LogIndex: 3}); err != nil {
				return err
			}
			return tx.SetCursor(ctx, "1", domain.Position{BlockNumber: 7, LogIndex: 0})
		})
		require.NoError(t, err)

		err = store.WithTx(ctx, func(tx Tx) error {
			return tx.SetCursor(ctx, "0", domain.Position{BlockNumber: 11, LogIndex: 1})
		})
		require.NoError(t, err)

		pos, err := store.GetCursor(ctx, "0")
		require.NoError(t, err)
		require.NotNil(t, pos)
		assert.Equal(t, domain.Position{BlockNumber: 11, LogIndex: 1}, *pos)

		pos, err = store.GetCursor(ctx, "1")
		require.NoError(t, err)
		require.NotNil(t, pos)
		assert.Equal(t, domain.Position{BlockNumber: 7, LogIndex: 0}, *pos)
	})

	t.Run("block cursor", func(t *testing.T) {
		block, err := store.GetBlockCursor(ctx, string(domain.ChainEthereumMainnet))
		require.NoError(t, err)
		assert.Equal(t, uint64(0), block)

		require.NoError(t, store.SetBlockCursor(ctx, string(domain.ChainEthereumMainnet), 12345))
		require.NoError(t, store.SetBlockCursor(ctx, string(domain.ChainEthereumMainnet), 12346))

		block, err = store.GetBlockCursor(ctx, string(domain.ChainEthereumMainnet))
		require.NoError(t, err)
		assert.Equal(t, uint64(12346), block)
	})
}

// =============================================================================
// Test: History records
// =============================================================================

func testInsertRecord(t *testing.T, store Store) {
	ctx := context.Background()
	transfer := &schema.Transfer{
		EventRef: buildEventRef(100, 2),
		TokenID:  "1",
		From:     domain.ETHEREUM_ZERO_ADDRESS,
		To:       alice,
		IsMint:   true,
	}

	var created, again bool
	err := store.WithTx(ctx, func(tx Tx) error {
		var err error
		created, err = tx.InsertRecord(ctx, transfer)
		if err != nil {
			return err
		}
		dup := *transfer
		again, err = tx.InsertRecord(ctx, &dup)
		return err
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, again)

	err = store.WithTx(ctx, func(tx Tx) error {
		digest, err := tx.GetRecordDigest(ctx, &schema.Transfer{}, domain.NaturalKey{TxHash: transfer.TxHash, LogIndex: 2})
		require.NoError(t, err)
		assert.Equal(t, "digest-100-2", digest)

		missing, err := tx.GetRecordDigest(ctx, &schema.Transfer{}, domain.NaturalKey{TxHash: transfer.TxHash, LogIndex: 3})
		require.NoError(t, err)
		assert.Empty(t, missing)
		return nil
	})
	require.NoError(t, err)

	transfers, err := store.ListTransfers(ctx, "1")
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.True(t, transfers[0].IsMint)
	assert.Equal(t, alice, transfers[0].To)
}

func testHistoryOrdering(t *testing.T, store Store) {
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx Tx) error {
		for _, ref := range []schema.EventRef{buildEventRef(20, 0), buildEventRef(10, 5), buildEventRef(10, 1)} {
			_, err := tx.InsertRecord(ctx, &schema.Flag{EventRef: ref, TokenID: "9", Reporter: alice, Reason: "spam"})
			if err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	flags, err := store.ListFlags(ctx, "9")
	require.NoError(t, err)
	require.Len(t, flags, 3)
	assert.Equal(t, uint64(10), flags[0].BlockNumber)
	assert.Equal(t, uint64(1), flags[0].LogIndex)
	assert.Equal(t, uint64(5), flags[1].LogIndex)
	assert.Equal(t, uint64(20), flags[2].BlockNumber)
	assert.False(t, flags[0].Resolved)
}

// =============================================================================
// Test: Assets
// =============================================================================

func testAssets(t *testing.T, store Store) {
	ctx := context.Background()
	createAssets(t, store,
		buildTestAsset("10", domain.AssetStateMinted, alice),
		buildTestAsset("2", domain.AssetStateBound, alice),
		buildTestAsset("1", domain.AssetStateMinted, bob),
	)

	t.Run("get", func(t *testing.T) {
		asset, err := store.GetAsset(ctx, "2")
		require.NoError(t, err)
		require.NotNil(t, asset)
		assert.Equal(t, domain.AssetStateBound, asset.State)
		assert.True(t, testTime.Equal(asset.CreatedAt))

		missing, err := store.GetAsset(ctx, "404")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("list orders by numeric token id", func(t *testing.T) {
		assets, total, err := store.ListAssets(ctx, AssetFilter{Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, uint64(3), total)
		require.Len(t, assets, 3)
		assert.Equal(t, "1", assets[0].TokenID)
		assert.Equal(t, "2", assets[1].TokenID)
		assert.Equal(t, "10", assets[2].TokenID)
	})

	t.Run("list filters and pages", func(t *testing.T) {
		assets, total, err := store.ListAssets(ctx, AssetFilter{States: []domain.AssetState{domain.AssetStateMinted}, Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, uint64(2), total)
		require.Len(t, assets, 1)
		assert.Equal(t, "10", assets[0].TokenID)

		owner := alice
		assets, total, err = store.ListAssets(ctx, AssetFilter{Owner: &owner, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, uint64(2), total)
		assert.Len(t, assets, 2)
	})

	t.Run("counts", func(t *testing.T) {
		counts, err := store.CountAssetsByState(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), counts[domain.AssetStateMinted])
		assert.Equal(t, int64(1), counts[domain.AssetStateBound])
		assert.Equal(t, int64(0), counts[domain.AssetStateRecycled])
		assert.Len(t, counts, len(domain.AssetStates))

		n, err := store.CountAssetsByOwner(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("update", func(t *testing.T) {
		err := store.WithTx(ctx, func(tx Tx) error {
			asset, err := tx.GetAssetForUpdate(ctx, "1")
			if err != nil {
				return err
			}
			require.NotNil(t, asset)
			asset.State = domain.AssetStateFlagged
			asset.Owner = alice
			asset.UpdatedAt = testTime.Add(time.Hour)
			return tx.UpdateAsset(ctx, asset)
		})
		require.NoError(t, err)

		asset, err := store.GetAsset(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, domain.AssetStateFlagged, asset.State)
		assert.Equal(t, alice, asset.Owner)
		assert.True(t, testTime.Equal(asset.CreatedAt))
		assert.True(t, testTime.Add(time.Hour).Equal(asset.UpdatedAt))
	})
}

// =============================================================================
// Test: Users
// =============================================================================

func testTouchUser(t *testing.T, store Store) {
	ctx := context.Background()

	touch := func(at time.Time, delta UserDelta) *UserTouch {
		var result *UserTouch
		err := store.WithTx(ctx, func(tx Tx) error {
			var err error
			result, err = tx.TouchUser(ctx, alice, at, delta)
			return err
		})
		require.NoError(t, err)
		return result
	}

	first := touch(testTime, UserDelta{AssetCount: 1})
	assert.True(t, first.Created)
	assert.Empty(t, first.Clamped)

	second := touch(testTime.Add(time.Hour), UserDelta{BadgeCount: 1})
	assert.False(t, second.Created)

	// An older event moves first seen back without moving last active back
	third := touch(testTime.Add(-time.Hour), UserDelta{CapabilityCount: -1})
	assert.Equal(t, []string{"capability_count"}, third.Clamped)

	user, err := store.GetUser(ctx, alice)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, int64(1), user.AssetCount)
	assert.Equal(t, int64(1), user.BadgeCount)
	assert.Equal(t, int64(0), user.CapabilityCount)
	assert.True(t, testTime.Add(-time.Hour).Equal(user.FirstSeenAt))
	assert.True(t, testTime.Add(time.Hour).Equal(user.LastActiveAt))

	err = store.WithTx(ctx, func(tx Tx) error {
		return tx.SetUserAssetCount(ctx, alice, 5)
	})
	require.NoError(t, err)

	users, err := store.ListUsers(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, int64(5), users[0].AssetCount)

	missing, err := store.GetUser(ctx, bob)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

// =============================================================================
// Test: Stats
// =============================================================================

func testGlobalStats(t *testing.T, store Store) {
	ctx := context.Background()

	stats, err := store.GetGlobalStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalAssets)
	assert.Nil(t, stats.LastEventAt)

	var delta StatsDelta
	delta.TotalAssets = 2
	delta.TotalTransfers = 2
	delta.AddState(domain.AssetStateMinted, 2)

	var clamped []string
	err = store.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.AdjustGlobalStats(ctx, delta, testTime); err != nil {
			return err
		}
		var move StatsDelta
		move.MoveState(domain.AssetStateBound, domain.AssetStateFlagged)
		clamped, err = tx.AdjustGlobalStats(ctx, move, testTime.Add(-time.Minute))
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"bound_count"}, clamped)

	stats, err = store.GetGlobalStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalAssets)
	assert.Equal(t, int64(2), stats.TotalTransfers)
	assert.Equal(t, int64(2), stats.MintedCount)
	assert.Equal(t, int64(0), stats.BoundCount)
	assert.Equal(t, int64(1), stats.FlaggedCount)
	require.NotNil(t, stats.LastEventAt)
	assert.True(t, testTime.Equal(*stats.LastEventAt))
}

// testConcurrentGlobalStats adjusts the singleton row from concurrent transactions, as shards do
func testConcurrentGlobalStats(t *testing.T, store Store) {
	ctx := context.Background()
	const writers = 8

	var g errgroup.Group
	for i := range writers {
		g.Go(func() error {
			var delta StatsDelta
			delta.TotalAssets = 1
			delta.TotalTransfers = 2
			delta.AddState(domain.AssetStateMinted, 1)
			return store.WithTx(ctx, func(tx Tx) error {
				_, err := tx.AdjustGlobalStats(ctx, delta, testTime.Add(time.Duration(i)*time.Second))
				return err
			})
		})
	}
	require.NoError(t, g.Wait())

	stats, err := store.GetGlobalStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(writers), stats.TotalAssets)
	assert.Equal(t, int64(2*writers), stats.TotalTransfers)
	assert.Equal(t, int64(writers), stats.MintedCount)
	require.NotNil(t, stats.LastEventAt)
	assert.True(t, testTime.Add((writers-1)*time.Second).Equal(*stats.LastEventAt))
}

func testDailyStats(t *testing.T, store Store) {
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx Tx) error {
		if err := tx.AdjustDailyStats(ctx, "2024-03-01", DailyDelta{Mints: 1}); err != nil {
			return err
		}
		if err := tx.AdjustDailyStats(ctx, "2024-03-01", DailyDelta{Transfers: 2, Flags: 1}); err != nil {
			return err
		}
		if err := tx.AdjustDailyStats(ctx, "2024-03-02", DailyDelta{Mints: 3}); err != nil {
			return err
		}
		// No row is created for an empty delta
		return tx.AdjustDailyStats(ctx, "2024-03-03", DailyDelta{})
	})
	require.NoError(t, err)

	days, err := store.ListDailyStats(ctx, 10)
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, "2024-03-02", days[0].Day)
	assert.Equal(t, int64(3), days[0].Mints)
	assert.Equal(t, schema.DailyStats{Day: "2024-03-01", Mints: 1, Transfers: 2, Flags: 1}, days[1])
}

// =============================================================================
// Test: Grants
// =============================================================================

func testGrantRecords(t *testing.T, store Store) {
	ctx := context.Background()
	revokedAt := testTime.Add(time.Hour)

	err := store.WithTx(ctx, func(tx Tx) error {
		records := []interface{}{
			&schema.BadgeGrant{EventRef: buildEventRef(1, 0), Subject: alice, Issuer: bob, BadgeID: "curator", Active: true, GrantedAt: testTime},
			&schema.BadgeGrant{EventRef: buildEventRef(2, 0), Subject: alice, Issuer: bob, BadgeID: "curator", Active: false, RevokedAt: &revokedAt},
			&schema.BadgeGrant{EventRef: buildEventRef(3, 0), Subject: bob, Issuer: bob, BadgeID: "artist", Active: true, GrantedAt: testTime},
			&schema.CapabilityGrant{EventRef: buildEventRef(4, 0), Subject: alice, Capability: "mint", Active: true, GrantedAt: testTime},
		}
		for _, r := range records {
			if _, err := tx.InsertRecord(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	subject := alice
	badges, err := store.ListBadgeRecords(ctx, GrantFilter{Subject: &subject})
	require.NoError(t, err)
	require.Len(t, badges, 2)
	assert.True(t, badges[0].Active)
	assert.False(t, badges[1].Active)
	require.NotNil(t, badges[1].RevokedAt)
	assert.True(t, badges[1].GrantedAt.IsZero())

	key := "artist"
	badges, err = store.ListBadgeRecords(ctx, GrantFilter{Key: &key})
	require.NoError(t, err)
	require.Len(t, badges, 1)
	assert.Equal(t, bob, badges[0].Subject)

	capabilities, err := store.ListCapabilityRecords(ctx, GrantFilter{Subject: &subject})
	require.NoError(t, err)
	require.Len(t, capabilities, 1)
	assert.Empty(t, capabilities[0].Issuer)
}

// =============================================================================
// Test: Governance
// =============================================================================

func testProposals(t *testing.T, store Store) {
	ctx := context.Background()

	proposal := &schema.Proposal{
		ProposalID:      "42",
		Proposer:        alice,
		Category:        "treasury",
		StartTime:       testTime,
		EndTime:         testTime.Add(72 * time.Hour),
		ForVotes:        "0",
		AgainstVotes:    "0",
		AbstainVotes:    "0",
		CreatedTxHash:   "0xabc",
		CreatedLogIndex: 1,
		CreatedAt:       testTime,
		UpdatedAt:       testTime,
	}
	proposal.SetQuorums([domain.HouseCount]string{"5000", "3", "2"})

	var created, again bool
	err := store.WithTx(ctx, func(tx Tx) error {
		var err error
		if created, err = tx.CreateProposal(ctx, proposal); err != nil {
			return err
		}
		dup := *proposal
		again, err = tx.CreateProposal(ctx, &dup)
		return err
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, again)

	eta := testTime.Add(96 * time.Hour)
	err = store.WithTx(ctx, func(tx Tx) error {
		p, err := tx.GetProposalForUpdate(ctx, "42")
		if err != nil {
			return err
		}
		require.NotNil(t, p)
		p.ForVotes = "5000"
		p.ExplicitState = domain.ProposalStateQueued
		p.ETA = &eta
		if err := tx.UpdateProposal(ctx, p); err != nil {
			return err
		}

		vote := &schema.Vote{EventRef: buildEventRef(5, 0), ProposalID: "42", Voter: bob, Support: domain.VoteFor, Weight: "5000", House: domain.HouseTokenHolder}
		if _, err := tx.InsertRecord(ctx, vote); err != nil {
			return err
		}
		transition := &schema.ProposalTransition{EventRef: buildEventRef(6, 0), ProposalID: "42", State: domain.ProposalStateQueued, ETA: &eta}
		_, err = tx.InsertRecord(ctx, transition)
		return err
	})
	require.NoError(t, err)

	p, err := store.GetProposal(ctx, "42")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "5000", p.ForVotes)
	assert.Equal(t, [domain.HouseCount]string{"5000", "3", "2"}, p.Quorums())
	assert.Equal(t, domain.ProposalStateQueued, p.ExplicitState)
	require.NotNil(t, p.ETA)
	assert.True(t, eta.Equal(*p.ETA))

	votes, err := store.ListVotes(ctx, "42")
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, domain.HouseTokenHolder, votes[0].House)

	transitions, err := store.ListProposalTransitions(ctx, "42")
	require.NoError(t, err)
	require.Len(t, transitions, 1)

	missing, err := store.GetProposal(ctx, "43")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

// =============================================================================
// Test: Anomalies
// =============================================================================

func testAnomalies(t *testing.T, store Store) {
	ctx := context.Background()

	anomalies := []*schema.Anomaly{
		{EventRef: buildEventRef(1, 0), AnomalyID: "01HQ0000000000000000000001", EventType: domain.EventTypeStateChanged, Kind: schema.AnomalyKindUnknownAsset, Detail: "asset 7 does not exist", DetectedAt: testTime},
		{EventRef: buildEventRef(2, 0), AnomalyID: "01HQ0000000000000000000002", EventType: domain.EventTypeVoteCast, Kind: schema.AnomalyKindUnknownProposal, Detail: "proposal 9 does not exist", DetectedAt: testTime},
	}

	err := store.WithTx(ctx, func(tx Tx) error {
		for _, a := range anomalies {
			created, err := tx.InsertAnomaly(ctx, a)
			if err != nil {
				return err
			}
			assert.True(t, created)
		}
		dup := *anomalies[0]
		dup.AnomalyID = "01HQ0000000000000000000003"
		created, err := tx.InsertAnomaly(ctx, &dup)
		assert.False(t, created)
		return err
	})
	require.NoError(t, err)

	list, total, err := store.ListAnomalies(ctx, AnomalyFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), total)
	require.Len(t, list, 2)
	assert.Equal(t, "01HQ0000000000000000000002", list[0].AnomalyID)

	kind := schema.AnomalyKindUnknownAsset
	list, total, err = store.ListAnomalies(ctx, AnomalyFilter{Kind: &kind, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, domain.EventTypeStateChanged, list[0].EventType)
}

// =============================================================================
// Test: Transactions
// =============================================================================

func testWithTxRollback(t *testing.T, store Store) {
	ctx := context.Background()
	errBoom := errors.New("boom")

	err := store.WithTx(ctx, func(tx Tx) error {
		if err := tx.CreateAsset(ctx, buildTestAsset("1", domain.AssetStateMinted, alice)); err != nil {
			return err
		}
		var delta StatsDelta
		delta.TotalAssets = 1
		if _, err := tx.AdjustGlobalStats(ctx, delta, testTime); err != nil {
			return err
		}
		if err := tx.SetCursor(ctx, "0", domain.Position{BlockNumber: 1}); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	asset, err := store.GetAsset(ctx, "1")
	require.NoError(t, err)
	assert.Nil(t, asset)

	stats, err := store.GetGlobalStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalAssets)

	pos, err := store.GetCursor(ctx, "0")
	require.NoError(t, err)
	assert.Nil(t, pos)
}

func testSnapshot(t *testing.T, store Store) {
	ctx := context.Background()
	createAssets(t, store, buildTestAsset("1", domain.AssetStateMinted, alice))

	err := store.Snapshot(ctx, func(r Reader) error {
		asset, err := r.GetAsset(ctx, "1")
		if err != nil {
			return err
		}
		assert.NotNil(t, asset)

		stats, err := r.GetGlobalStats(ctx)
		if err != nil {
			return err
		}
		assert.NotNil(t, stats)
		return nil
	})
	require.NoError(t, err)
}

// =============================================================================
// Test Suite Runner
// =============================================================================

// RunStoreTests runs all store tests against a given store implementation
func RunStoreTests(t *testing.T, initDB func(t *testing.T) Store) {
	tests := []struct {
		name string
		fn   func(*testing.T, Store)
	}{
		{"Cursors", testCursors},
		{"InsertRecord", testInsertRecord},
		{"HistoryOrdering", testHistoryOrdering},
		{"Assets", testAssets},
		{"TouchUser", testTouchUser},
		{"GlobalStats", testGlobalStats},
		{"ConcurrentGlobalStats", testConcurrentGlobalStats},
		{"DailyStats", testDailyStats},
		{"GrantRecords", testGrantRecords},
		{"Proposals", testProposals},
		{"Anomalies", testAnomalies},
		{"WithTxRollback", testWithTxRollback},
		{"Snapshot", testSnapshot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := initDB(t)
			tt.fn(t, store)
		})
	}
}
