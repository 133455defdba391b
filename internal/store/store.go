package store

import (
	"context"
	"time"

	"github.com/feral-file/ff-asset-aggregator/internal/domain"
	"github.com/feral-file/ff-asset-aggregator/internal/store/schema"
)

// AssetFilter selects a page of assets
type AssetFilter struct {
	// States restricts the listing to the given lifecycle states
	States []domain.AssetState
	// Owner restricts the listing to assets currently owned by the address
	Owner  *string
	Limit  int
	Offset uint64
}

// GrantFilter selects badge or capability records. At least one field is set.
type GrantFilter struct {
	Subject *string
	// Key is the badge id or the capability name
	Key *string
}

// AnomalyFilter selects a page of anomalies, newest first
type AnomalyFilter struct {
	Kind   *schema.AnomalyKind
	Limit  int
	Offset uint64
}

// Reader defines the read side of the entity store
type Reader interface {
	// GetAsset retrieves an asset by token id, nil when it does not exist
	GetAsset(ctx context.Context, tokenID string) (*schema.Asset, error)
	// ListAssets retrieves assets ordered by numeric token id along with the total matching count
	ListAssets(ctx context.Context, filter AssetFilter) ([]schema.Asset, uint64, error)
	// CountAssetsByState counts assets grouped by lifecycle state
	CountAssetsByState(ctx context.Context) (map[domain.AssetState]int64, error)
	// CountAssetsByOwner counts assets currently owned by the address
	CountAssetsByOwner(ctx context.Context, owner string) (int64, error)

	// GetUser retrieves a user by address, nil when it does not exist
	GetUser(ctx context.Context, address string) (*schema.User, error)
	// ListUsers retrieves users ordered by address
	ListUsers(ctx context.Context, limit int, offset uint64) ([]schema.User, error)

	// ListBadgeRecords retrieves badge grants and revocations in event order
	ListBadgeRecords(ctx context.Context, filter GrantFilter) ([]schema.BadgeGrant, error)
	// ListCapabilityRecords retrieves capability grants and revocations in event order
	ListCapabilityRecords(ctx context.Context, filter GrantFilter) ([]schema.CapabilityGrant, error)

	// ListTransfers retrieves the transfers of an asset in event order
	ListTransfers(ctx context.Context, tokenID string) ([]schema.Transfer, error)
	// ListStateChanges retrieves the lifecycle transitions of an asset in event order
	ListStateChanges(ctx context.Context, tokenID string) ([]schema.StateChange, error)
	// ListFlags retrieves the flags raised against an asset in event order
	ListFlags(ctx context.Context, tokenID string) ([]schema.Flag, error)
	// ListResolutions retrieves the resolutions of an asset in event order
	ListResolutions(ctx context.Context, tokenID string) ([]schema.Resolution, error)

	// GetGlobalStats retrieves the global counters, all zero before the first event
	GetGlobalStats(ctx context.Context) (*schema.GlobalStats, error)
	// ListDailyStats retrieves the most recent daily counters, newest first
	ListDailyStats(ctx context.Context, limit int) ([]schema.DailyStats, error)

	// GetProposal retrieves a proposal by id, nil when it does not exist
	GetProposal(ctx context.Context, proposalID string) (*schema.Proposal, error)
	// ListVotes retrieves the votes of a proposal in event order
	ListVotes(ctx context.Context, proposalID string) ([]schema.Vote, error)
	// ListProposalTransitions retrieves the explicit state events of a proposal in event order
	ListProposalTransitions(ctx context.Context, proposalID string) ([]schema.ProposalTransition, error)

	// ListAnomalies retrieves skipped events along with the total matching count
	ListAnomalies(ctx context.Context, filter AnomalyFilter) ([]schema.Anomaly, uint64, error)

	// GetCursor retrieves the last applied position of a shard, nil when the shard has not applied anything
	GetCursor(ctx context.Context, shard string) (*domain.Position, error)
}

// UserDelta is a set of signed adjustments to a user's counts
type UserDelta struct {
	AssetCount      int64
	BadgeCount      int64
	CapabilityCount int64
}

// UserTouch reports the effect of touching a user
type UserTouch struct {
	// Created is true when the user did not exist before
	Created bool
	// Clamped lists the counts that would have gone negative
	Clamped []string
}

// DailyDelta is a set of increments to one day's counters
type DailyDelta struct {
	Mints     int64
	Transfers int64
	Flags     int64
}

// Tx defines the write side of the entity store, valid only inside Store.WithTx
type Tx interface {
	Reader

	// SetCursor stores the last applied position of a shard
	SetCursor(ctx context.Context, shard string, position domain.Position) error

	// InsertRecord inserts an immutable history record keyed by (tx_hash, log_index).
	// It returns false without error when a record with the same key exists.
	InsertRecord(ctx context.Context, record interface{}) (bool, error)
	// GetRecordDigest retrieves the digest of an existing history record of the model's table
	GetRecordDigest(ctx context.Context, model interface{}, key domain.NaturalKey) (string, error)
	// InsertAnomaly records a skipped event, returning false when it was already recorded
	InsertAnomaly(ctx context.Context, anomaly *schema.Anomaly) (bool, error)

	// GetAssetForUpdate retrieves an asset and locks it for the rest of the transaction
	GetAssetForUpdate(ctx context.Context, tokenID string) (*schema.Asset, error)
	// CreateAsset inserts a new asset
	CreateAsset(ctx context.Context, asset *schema.Asset) error
	// UpdateAsset saves the mutable fields of an asset
	UpdateAsset(ctx context.Context, asset *schema.Asset) error

	// TouchUser gets or creates a user, applies delta clamping at zero and advances last activity
	TouchUser(ctx context.Context, address string, at time.Time, delta UserDelta) (*UserTouch, error)
	// SetUserAssetCount overwrites a user's asset count
	SetUserAssetCount(ctx context.Context, address string, count int64) error

	// AdjustGlobalStats applies delta to the global counters clamping at zero and
	// returns the names of the counters that were clamped
	AdjustGlobalStats(ctx context.Context, delta StatsDelta, at time.Time) ([]string, error)
	// LockGlobalStats retrieves the global counters and locks them for the rest of the transaction
	LockGlobalStats(ctx context.Context) (*schema.GlobalStats, error)
	// SaveGlobalStats overwrites the global counters
	SaveGlobalStats(ctx context.Context, stats *schema.GlobalStats) error
	// AdjustDailyStats increments the counters of a UTC day
	AdjustDailyStats(ctx context.Context, day string, delta DailyDelta) error

	// CreateProposal inserts a proposal, returning false when it already exists
	CreateProposal(ctx context.Context, proposal *schema.Proposal) (bool, error)
	// GetProposalForUpdate retrieves a proposal and locks it for the rest of the transaction
	GetProposalForUpdate(ctx context.Context, proposalID string) (*schema.Proposal, error)
	// UpdateProposal saves the mutable fields of a proposal
	UpdateProposal(ctx context.Context, proposal *schema.Proposal) error
}

// Store defines the interface for the entity store
type Store interface {
	Reader
	CursorStore

	// WithTx runs fn in a single transaction; nothing is committed when fn returns an error
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	// Snapshot runs fn against a read-only, point in time view
	Snapshot(ctx context.Context, fn func(r Reader) error) error
	// Ping checks connectivity
	Ping(ctx context.Context) error
}
