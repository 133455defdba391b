package executor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/feral-file/ff-asset-aggregator/internal/adapter"
	"github.com/feral-file/ff-asset-aggregator/internal/api/shared/constants"
	"github.com/feral-file/ff-asset-aggregator/internal/api/shared/dto"
	"github.com/feral-file/ff-asset-aggregator/internal/domain"
	"github.com/feral-file/ff-asset-aggregator/internal/governance"
	"github.com/feral-file/ff-asset-aggregator/internal/store"
	"github.com/feral-file/ff-asset-aggregator/internal/store/schema"
)

// Executor is the read side query interface over the entity store.
// Lookups of unknown keys return errors wrapping domain.ErrNotFound.
//
//go:generate mockgen -source=executor.go -destination=../../../mocks/mock_api_executor.go -package=mocks -mock_names=Executor=MockAPIExecutor
type Executor interface {
	// GetAsset retrieves the current state of an asset
	GetAsset(ctx context.Context, tokenID string) (*dto.AssetResponse, error)

	// ListAssets retrieves assets ordered by numeric token id with optional state and owner filters
	ListAssets(ctx context.Context, states []domain.AssetState, owner *string, limit *int, offset *uint64) (*dto.AssetListResponse, error)

	// ListAssetHistory retrieves the transfers, state changes, flags and resolutions of an asset
	ListAssetHistory(ctx context.Context, tokenID string) (*dto.AssetHistoryResponse, error)

	// GetUser retrieves a user with the badges and capabilities currently held
	GetUser(ctx context.Context, address string) (*dto.UserResponse, error)

	// GetStats retrieves the global counters and the daily counters of the most recent days
	GetStats(ctx context.Context, days *int) (*dto.StatsResponse, error)

	// GetProposal retrieves a proposal with its per house tally and derived state
	GetProposal(ctx context.Context, proposalID string) (*dto.ProposalResponse, error)

	// ListAnomalies retrieves skipped events, newest first
	ListAnomalies(ctx context.Context, kind *schema.AnomalyKind, limit *int, offset *uint64) (*dto.AnomalyListResponse, error)
}

type executor struct {
	store    store.Store
	policies *governance.Policies
	clock    adapter.Clock
	grace    time.Duration
}

// NewExecutor creates a query executor. grace is the period after which a queued proposal expires.
func NewExecutor(store store.Store, policies *governance.Policies, clock adapter.Clock, grace time.Duration) Executor {
	return &executor{store: store, policies: policies, clock: clock, grace: grace}
}

func (e *executor) GetAsset(ctx context.Context, tokenID string) (*dto.AssetResponse, error) {
	asset, err := e.store.GetAsset(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	if asset == nil {
		return nil, fmt.Errorf("%w: asset %s", domain.ErrNotFound, tokenID)
	}
	return dto.MapAssetToDTO(asset), nil
}

func (e *executor) ListAssets(ctx context.Context, states []domain.AssetState, owner *string, limit *int, offset *uint64) (*dto.AssetListResponse, error) {
	filter := store.AssetFilter{
		States: states,
		Owner:  owner,
		Limit:  pageLimit(limit, constants.DEFAULT_ASSETS_LIMIT),
		Offset: pageOffset(offset),
	}

	// The page and its total come from one snapshot
	var assets []schema.Asset
	var total uint64
	err := e.store.Snapshot(ctx, func(r store.Reader) error {
		var err error
		assets, total, err = r.ListAssets(ctx, filter)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}

	items := make([]dto.AssetResponse, len(assets))
	for i := range assets {
		items[i] = *dto.MapAssetToDTO(&assets[i])
	}

	return &dto.AssetListResponse{
		Assets: items,
		Offset: nextOffset(filter.Offset, len(assets), total),
		Total:  total,
	}, nil
}

func (e *executor) ListAssetHistory(ctx context.Context, tokenID string) (*dto.AssetHistoryResponse, error) {
	var resp *dto.AssetHistoryResponse
	err := e.store.Snapshot(ctx, func(r store.Reader) error {
		transfers, err := r.ListTransfers(ctx, tokenID)
		if err != nil {
			return fmt.Errorf("failed to list transfers: %w", err)
		}
		changes, err := r.ListStateChanges(ctx, tokenID)
		if err != nil {
			return fmt.Errorf("failed to list state changes: %w", err)
		}
		flags, err := r.ListFlags(ctx, tokenID)
		if err != nil {
			return fmt.Errorf("failed to list flags: %w", err)
		}
		resolutions, err := r.ListResolutions(ctx, tokenID)
		if err != nil {
			return fmt.Errorf("failed to list resolutions: %w", err)
		}

		// Flags and resolutions may reference an asset that was never transferred
		if len(transfers) == 0 && len(changes) == 0 && len(flags) == 0 && len(resolutions) == 0 {
			return fmt.Errorf("%w: asset %s", domain.ErrNotFound, tokenID)
		}

		resp = dto.MapAssetHistoryToDTO(tokenID, transfers, changes, flags, resolutions)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (e *executor) GetUser(ctx context.Context, address string) (*dto.UserResponse, error) {
	var resp *dto.UserResponse
	err := e.store.Snapshot(ctx, func(r store.Reader) error {
		user, err := r.GetUser(ctx, address)
		if err != nil {
			return fmt.Errorf("failed to get user: %w", err)
		}
		if user == nil {
			return fmt.Errorf("%w: user %s", domain.ErrNotFound, address)
		}

		subject := user.Address
		badgeRecords, err := r.ListBadgeRecords(ctx, store.GrantFilter{Subject: &subject})
		if err != nil {
			return fmt.Errorf("failed to list badges: %w", err)
		}
		capabilityRecords, err := r.ListCapabilityRecords(ctx, store.GrantFilter{Subject: &subject})
		if err != nil {
			return fmt.Errorf("failed to list capabilities: %w", err)
		}

		badges := newGrantFold()
		for _, g := range badgeRecords {
			badges.apply(g.BadgeID, g.Active)
		}
		capabilities := newGrantFold()
		for _, g := range capabilityRecords {
			capabilities.apply(g.Capability, g.Active)
		}

		resp = dto.MapUserToDTO(user, badges.held(), capabilities.held())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (e *executor) GetStats(ctx context.Context, days *int) (*dto.StatsResponse, error) {
	n := constants.DEFAULT_STATS_DAYS
	if days != nil && *days > 0 {
		n = min(*days, constants.MAX_STATS_DAYS)
	}

	var resp *dto.StatsResponse
	err := e.store.Snapshot(ctx, func(r store.Reader) error {
		global, err := r.GetGlobalStats(ctx)
		if err != nil {
			return fmt.Errorf("failed to get global stats: %w", err)
		}
		daily, err := r.ListDailyStats(ctx, n)
		if err != nil {
			return fmt.Errorf("failed to list daily stats: %w", err)
		}

		states := make(map[domain.AssetState]int64, len(domain.AssetStates))
		for _, s := range domain.AssetStates {
			states[s] = *store.StateCount(global, s)
		}

		resp = dto.MapStatsToDTO(global, states, daily)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (e *executor) GetProposal(ctx context.Context, proposalID string) (*dto.ProposalResponse, error) {
	var resp *dto.ProposalResponse
	err := e.store.Snapshot(ctx, func(r store.Reader) error {
		proposal, err := r.GetProposal(ctx, proposalID)
		if err != nil {
			return fmt.Errorf("failed to get proposal: %w", err)
		}
		if proposal == nil {
			return fmt.Errorf("%w: proposal %s", domain.ErrNotFound, proposalID)
		}

		votes, err := r.ListVotes(ctx, proposalID)
		if err != nil {
			return fmt.Errorf("failed to list votes: %w", err)
		}
		transitions, err := r.ListProposalTransitions(ctx, proposalID)
		if err != nil {
			return fmt.Errorf("failed to list proposal transitions: %w", err)
		}

		eval, err := governance.Evaluate(proposal, votes, e.policies.For(proposal.Category), e.clock.Now(), e.grace)
		if err != nil {
			return fmt.Errorf("failed to evaluate proposal: %w", err)
		}

		resp = dto.MapProposalToDTO(proposal, eval, transitions)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (e *executor) ListAnomalies(ctx context.Context, kind *schema.AnomalyKind, limit *int, offset *uint64) (*dto.AnomalyListResponse, error) {
	filter := store.AnomalyFilter{
		Kind:   kind,
		Limit:  pageLimit(limit, constants.DEFAULT_ANOMALIES_LIMIT),
		Offset: pageOffset(offset),
	}

	var anomalies []schema.Anomaly
	var total uint64
	err := e.store.Snapshot(ctx, func(r store.Reader) error {
		var err error
		anomalies, total, err = r.ListAnomalies(ctx, filter)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list anomalies: %w", err)
	}

	items := make([]dto.AnomalyResponse, len(anomalies))
	for i := range anomalies {
		items[i] = *dto.MapAnomalyToDTO(&anomalies[i])
	}

	return &dto.AnomalyListResponse{
		Anomalies: items,
		Offset:    nextOffset(filter.Offset, len(anomalies), total),
		Total:     total,
	}, nil
}

// grantFold replays grant and revoke records in event order; the last record of a key wins
type grantFold struct {
	active map[string]bool
}

func newGrantFold() *grantFold {
	return &grantFold{active: make(map[string]bool)}
}

func (f *grantFold) apply(key string, active bool) {
	f.active[key] = active
}

// held returns the keys whose latest record is a grant, sorted
func (f *grantFold) held() []string {
	keys := make([]string, 0, len(f.active))
	for k, active := range f.active {
		if active {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func pageLimit(limit *int, def int) int {
	if limit == nil || *limit <= 0 {
		return def
	}
	return min(*limit, constants.MAX_PAGE_SIZE)
}

func pageOffset(offset *uint64) uint64 {
	if offset == nil {
		return constants.DEFAULT_OFFSET
	}
	return *offset
}

// nextOffset returns the offset of the next page, nil on the last page
func nextOffset(offset uint64, count int, total uint64) *uint64 {
	next := offset + uint64(count) //nolint:gosec
	if next < total {
		return &next
	}
	return nil
}
