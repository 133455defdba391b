package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/dbresolver"

	"github.com/feral-file/ff-asset-aggregator/internal/domain"
	"github.com/feral-file/ff-asset-aggregator/internal/store/schema"
)

// dbStore implements Store on top of gorm. It runs on PostgreSQL in production
// and on SQLite for local replays and tests.
type dbStore struct {
	queries
}

// queries implements Reader for either the root connection or a transaction
type queries struct {
	db *gorm.DB
}

// txStore implements Tx for a single gorm transaction
type txStore struct {
	queries
}

func hasDBResolver(db *gorm.DB) bool {
	return db != nil && db.Callback().Query().Get("gorm:db_resolver") != nil
}

func isPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}

// NewStore creates a new store instance on an open gorm connection
func NewStore(db *gorm.DB) Store {
	return &dbStore{queries{db: db}}
}

// ConfigureConnectionPool configures the connection pool settings for a GORM database connection.
// It accesses the underlying *sql.DB and sets the pool configuration.
// If any of the pool settings are 0 or empty, reasonable defaults are used:
//   - MaxOpenConns: 20 (if 0)
//   - MaxIdleConns: 5 (if 0)
//   - ConnMaxLifetime: 5 minutes (if 0)
//   - ConnMaxIdleTime: 10 minutes (if 0)
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime =
		NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// NormalizeConnectionPoolSettings applies defaults and clamps pool settings into safe values.
//
// Defaults (when zero):
//   - MaxOpenConns: 20
//   - MaxIdleConns: 5
//   - ConnMaxLifetime: 5 minutes
//   - ConnMaxIdleTime: 10 minutes
func NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (int, int, time.Duration, time.Duration) {
	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	// Ensure MaxIdleConns doesn't exceed MaxOpenConns
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	return maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime
}

// Migrate creates or updates every table and seeds the global stats row
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(schema.Models()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	if err := ensureGlobalStats(context.Background(), db); err != nil {
		return err
	}
	return nil
}

// WithTx runs fn in a single transaction
func (s *dbStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&txStore{queries{db: tx}})
	})
}

// Snapshot runs fn in a read-only transaction. On PostgreSQL it uses repeatable read
// so every query of fn sees the same committed state, and the read replica when one is registered.
func (s *dbStore) Snapshot(ctx context.Context, fn func(r Reader) error) error {
	db := s.db.WithContext(ctx)
	if hasDBResolver(db) {
		db = db.Clauses(dbresolver.Read)
	}

	var opts []*sql.TxOptions
	if isPostgres(db) {
		opts = append(opts, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	}

	return db.Transaction(func(tx *gorm.DB) error {
		return fn(&queries{db: tx})
	}, opts...)
}

// Ping checks connectivity
func (s *dbStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// forUpdate adds a row lock on PostgreSQL. SQLite serializes writers on its own.
func forUpdate(db *gorm.DB) *gorm.DB {
	if isPostgres(db) {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

// first loads a single row into dest, returning false when there is none
func first(db *gorm.DB, dest interface{}, query string, args ...interface{}) (bool, error) {
	err := db.Where(query, args...).First(dest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// byEvent orders history records by their position in the stream
func byEvent(db *gorm.DB) *gorm.DB {
	return db.Order("block_number ASC").Order("log_index ASC")
}

// GetAsset retrieves an asset by token id
func (q *queries) GetAsset(ctx context.Context, tokenID string) (*schema.Asset, error) {
	var asset schema.Asset
	ok, err := first(q.db.WithContext(ctx), &asset, "token_id = ?", tokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &asset, nil
}

// ListAssets retrieves assets ordered by numeric token id
func (q *queries) ListAssets(ctx context.Context, filter AssetFilter) ([]schema.Asset, uint64, error) {
	query := q.db.WithContext(ctx).Model(&schema.Asset{})
	if len(filter.States) > 0 {
		query = query.Where("state IN ?", filter.States)
	}
	if filter.Owner != nil {
		query = query.Where("owner = ?", *filter.Owner)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count assets: %w", err)
	}

	// Canonical token ids have no leading zeros so length then text sorts them numerically
	var assets []schema.Asset
	err := query.
		Order("length(token_id) ASC").
		Order("token_id ASC").
		Limit(filter.Limit).
		Offset(int(filter.Offset)). //nolint:gosec,G115
		Find(&assets).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list assets: %w", err)
	}

	return assets, uint64(total), nil //nolint:gosec,G115
}

// CountAssetsByState counts assets grouped by lifecycle state
func (q *queries) CountAssetsByState(ctx context.Context) (map[domain.AssetState]int64, error) {
	var rows []struct {
		State domain.AssetState
		Count int64
	}
	err := q.db.WithContext(ctx).Model(&schema.Asset{}).
		Select("state, COUNT(*) AS count").
		Group("state").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count assets by state: %w", err)
	}

	counts := make(map[domain.AssetState]int64, len(domain.AssetStates))
	for _, state := range domain.AssetStates {
		counts[state] = 0
	}
	for _, row := range rows {
		counts[row.State] = row.Count
	}
	return counts, nil
}

// CountAssetsByOwner counts assets currently owned by the address
func (q *queries) CountAssetsByOwner(ctx context.Context, owner string) (int64, error) {
	var count int64
	err := q.db.WithContext(ctx).Model(&schema.Asset{}).Where("owner = ?", owner).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count assets by owner: %w", err)
	}
	return count, nil
}

// GetUser retrieves a user by address
func (q *queries) GetUser(ctx context.Context, address string) (*schema.User, error) {
	var user schema.User
	ok, err := first(q.db.WithContext(ctx), &user, "address = ?", address)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// ListUsers retrieves users ordered by address
func (q *queries) ListUsers(ctx context.Context, limit int, offset uint64) ([]schema.User, error) {
	var users []schema.User
	err := q.db.WithContext(ctx).
		Order("address ASC").
		Limit(limit).
		Offset(int(offset)). //nolint:gosec,G115
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// ListBadgeRecords retrieves badge grants and revocations in event order
func (q *queries) ListBadgeRecords(ctx context.Context, filter GrantFilter) ([]schema.BadgeGrant, error) {
	query := byEvent(q.db.WithContext(ctx))
	if filter.Subject != nil {
		query = query.Where("subject = ?", *filter.Subject)
	}
	if filter.Key != nil {
		query = query.Where("badge_id = ?", *filter.Key)
	}

	var records []schema.BadgeGrant
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list badge records: %w", err)
	}
	return records, nil
}

// ListCapabilityRecords retrieves capability grants and revocations in event order
func (q *queries) ListCapabilityRecords(ctx context.Context, filter GrantFilter) ([]schema.CapabilityGrant, error) {
	query := byEvent(q.db.WithContext(ctx))
	if filter.Subject != nil {
		query = query.Where("subject = ?", *filter.Subject)
	}
	if filter.Key != nil {
		query = query.Where("capability = ?", *filter.Key)
	}

	var records []schema.CapabilityGrant
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list capability records: %w", err)
	}
	return records, nil
}

// ListTransfers retrieves the transfers of an asset in event order
func (q *queries) ListTransfers(ctx context.Context, tokenID string) ([]schema.Transfer, error) {
	var records []schema.Transfer
	if err := byEvent(q.db.WithContext(ctx)).Where("token_id = ?", tokenID).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	return records, nil
}

// ListStateChanges retrieves the lifecycle transitions of an asset in event order
func (q *queries) ListStateChanges(ctx context.Context, tokenID string) ([]schema.StateChange, error) {
	var records []schema.StateChange
	if err := byEvent(q.db.WithContext(ctx)).Where("token_id = ?", tokenID).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list state changes: %w", err)
	}
	return records, nil
}

// ListFlags retrieves the flags raised against an asset in event order
func (q *queries) ListFlags(ctx context.Context, tokenID string) ([]schema.Flag, error) {
	var records []schema.Flag
	if err := byEvent(q.db.WithContext(ctx)).Where("token_id = ?", tokenID).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list flags: %w", err)
	}
	return records, nil
}

// ListResolutions retrieves the resolutions of an asset in event order
func (q *queries) ListResolutions(ctx context.Context, tokenID string) ([]schema.Resolution, error) {
	var records []schema.Resolution
	if err := byEvent(q.db.WithContext(ctx)).Where("token_id = ?", tokenID).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list resolutions: %w", err)
	}
	return records, nil
}

// GetGlobalStats retrieves the global counters
func (q *queries) GetGlobalStats(ctx context.Context) (*schema.GlobalStats, error) {
	stats := schema.GlobalStats{ID: domain.GLOBAL_STATS_ID}
	if _, err := first(q.db.WithContext(ctx), &stats, "id = ?", domain.GLOBAL_STATS_ID); err != nil {
		return nil, fmt.Errorf("failed to get global stats: %w", err)
	}
	return &stats, nil
}

// ListDailyStats retrieves the most recent daily counters, newest first
func (q *queries) ListDailyStats(ctx context.Context, limit int) ([]schema.DailyStats, error) {
	var days []schema.DailyStats
	if err := q.db.WithContext(ctx).Order("day DESC").Limit(limit).Find(&days).Error; err != nil {
		return nil, fmt.Errorf("failed to list daily stats: %w", err)
	}
	return days, nil
}

// GetProposal retrieves a proposal by id
func (q *queries) GetProposal(ctx context.Context, proposalID string) (*schema.Proposal, error) {
	var proposal schema.Proposal
	ok, err := first(q.db.WithContext(ctx), &proposal, "proposal_id = ?", proposalID)
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &proposal, nil
}

// ListVotes retrieves the votes of a proposal in event order
func (q *queries) ListVotes(ctx context.Context, proposalID string) ([]schema.Vote, error) {
	var votes []schema.Vote
	if err := byEvent(q.db.WithContext(ctx)).Where("proposal_id = ?", proposalID).Find(&votes).Error; err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}
	return votes, nil
}

// ListProposalTransitions retrieves the explicit state events of a proposal in event order
func (q *queries) ListProposalTransitions(ctx context.Context, proposalID string) ([]schema.ProposalTransition, error) {
	var transitions []schema.ProposalTransition
	if err := byEvent(q.db.WithContext(ctx)).Where("proposal_id = ?", proposalID).Find(&transitions).Error; err != nil {
		return nil, fmt.Errorf("failed to list proposal transitions: %w", err)
	}
	return transitions, nil
}

// ListAnomalies retrieves skipped events, newest first
func (q *queries) ListAnomalies(ctx context.Context, filter AnomalyFilter) ([]schema.Anomaly, uint64, error) {
	query := q.db.WithContext(ctx).Model(&schema.Anomaly{})
	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count anomalies: %w", err)
	}

	var anomalies []schema.Anomaly
	err := query.
		Order("anomaly_id DESC").
		Limit(filter.Limit).
		Offset(int(filter.Offset)). //nolint:gosec,G115
		Find(&anomalies).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list anomalies: %w", err)
	}

	return anomalies, uint64(total), nil //nolint:gosec,G115
}

// InsertRecord inserts an immutable history record, doing nothing on a natural key conflict
func (t *txStore) InsertRecord(ctx context.Context, record interface{}) (bool, error) {
	result := t.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tx_hash"}, {Name: "log_index"}},
		DoNothing: true,
	}).Create(record)
	if result.Error != nil {
		return false, fmt.Errorf("failed to insert record: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// GetRecordDigest retrieves the digest of an existing history record
func (t *txStore) GetRecordDigest(ctx context.Context, model interface{}, key domain.NaturalKey) (string, error) {
	var digest string
	err := t.db.WithContext(ctx).Model(model).
		Select("digest").
		Where("tx_hash = ? AND log_index = ?", key.TxHash, key.LogIndex).
		Limit(1).
		Scan(&digest).Error
	if err != nil {
		return "", fmt.Errorf("failed to get record digest: %w", err)
	}
	return digest, nil
}

// InsertAnomaly records a skipped event
func (t *txStore) InsertAnomaly(ctx context.Context, anomaly *schema.Anomaly) (bool, error) {
	created, err := t.InsertRecord(ctx, anomaly)
	if err != nil {
		return false, fmt.Errorf("failed to insert anomaly: %w", err)
	}
	return created, nil
}

// GetAssetForUpdate retrieves and locks an asset
func (t *txStore) GetAssetForUpdate(ctx context.Context, tokenID string) (*schema.Asset, error) {
	var asset schema.Asset
	ok, err := first(forUpdate(t.db.WithContext(ctx)), &asset, "token_id = ?", tokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock asset: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &asset, nil
}

// CreateAsset inserts a new asset
func (t *txStore) CreateAsset(ctx context.Context, asset *schema.Asset) error {
	if err := t.db.WithContext(ctx).Create(asset).Error; err != nil {
		return fmt.Errorf("failed to create asset: %w", err)
	}
	return nil
}

// UpdateAsset saves the mutable fields of an asset
func (t *txStore) UpdateAsset(ctx context.Context, asset *schema.Asset) error {
	err := t.db.WithContext(ctx).Model(&schema.Asset{}).
		Where("token_id = ?", asset.TokenID).
		Updates(map[string]interface{}{
			"state":      asset.State,
			"owner":      asset.Owner,
			"updated_at": asset.UpdatedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update asset: %w", err)
	}
	return nil
}

// TouchUser gets or creates a user and applies delta
func (t *txStore) TouchUser(ctx context.Context, address string, at time.Time, delta UserDelta) (*UserTouch, error) {
	db := t.db.WithContext(ctx)

	seed := schema.User{
		Address:      address,
		FirstSeenAt:  at,
		LastActiveAt: at,
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoNothing: true,
	}).Create(&seed)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to create user: %w", result.Error)
	}

	var user schema.User
	if _, err := first(forUpdate(db), &user, "address = ?", address); err != nil {
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}

	touch := &UserTouch{
		Created: result.RowsAffected == 1,
		Clamped: delta.Apply(&user),
	}
	if at.After(user.LastActiveAt) {
		user.LastActiveAt = at
	}
	if at.Before(user.FirstSeenAt) {
		user.FirstSeenAt = at
	}

	err := db.Model(&schema.User{}).
		Where("address = ?", address).
		Updates(map[string]interface{}{
			"asset_count":      user.AssetCount,
			"badge_count":      user.BadgeCount,
			"capability_count": user.CapabilityCount,
			"first_seen_at":    user.FirstSeenAt,
			"last_active_at":   user.LastActiveAt,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return touch, nil
}

// SetUserAssetCount overwrites a user's asset count
func (t *txStore) SetUserAssetCount(ctx context.Context, address string, count int64) error {
	err := t.db.WithContext(ctx).Model(&schema.User{}).
		Where("address = ?", address).
		Update("asset_count", count).Error
	if err != nil {
		return fmt.Errorf("failed to set user asset count: %w", err)
	}
	return nil
}

func ensureGlobalStats(ctx context.Context, db *gorm.DB) error {
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&schema.GlobalStats{ID: domain.GLOBAL_STATS_ID}).Error
	if err != nil {
		return fmt.Errorf("failed to seed global stats: %w", err)
	}
	return nil
}

// LockGlobalStats retrieves and locks the global counters, creating the row when needed
func (t *txStore) LockGlobalStats(ctx context.Context) (*schema.GlobalStats, error) {
	if err := ensureGlobalStats(ctx, t.db); err != nil {
		return nil, err
	}

	var stats schema.GlobalStats
	if _, err := first(forUpdate(t.db.WithContext(ctx)), &stats, "id = ?", domain.GLOBAL_STATS_ID); err != nil {
		return nil, fmt.Errorf("failed to lock global stats: %w", err)
	}
	return &stats, nil
}

// SaveGlobalStats overwrites the global counters
func (t *txStore) SaveGlobalStats(ctx context.Context, stats *schema.GlobalStats) error {
	stats.ID = domain.GLOBAL_STATS_ID
	if err := t.db.WithContext(ctx).Save(stats).Error; err != nil {
		return fmt.Errorf("failed to save global stats: %w", err)
	}
	return nil
}

// AdjustGlobalStats applies delta to the global counters
func (t *txStore) AdjustGlobalStats(ctx context.Context, delta StatsDelta, at time.Time) ([]string, error) {
	stats, err := t.LockGlobalStats(ctx)
	if err != nil {
		return nil, err
	}

	clamped := delta.Apply(stats)
	if stats.LastEventAt == nil || at.After(*stats.LastEventAt) {
		stats.LastEventAt = &at
	}

	if err := t.SaveGlobalStats(ctx, stats); err != nil {
		return nil, err
	}
	return clamped, nil
}

// AdjustDailyStats increments the counters of a UTC day
func (t *txStore) AdjustDailyStats(ctx context.Context, day string, delta DailyDelta) error {
	if delta == (DailyDelta{}) {
		return nil
	}

	db := t.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "day"}},
		DoNothing: true,
	}).Create(&schema.DailyStats{Day: day}).Error
	if err != nil {
		return fmt.Errorf("failed to create daily stats: %w", err)
	}

	err = db.Model(&schema.DailyStats{}).
		Where("day = ?", day).
		UpdateColumns(map[string]interface{}{
			"mints":     gorm.Expr("mints + ?", delta.Mints),
			"transfers": gorm.Expr("transfers + ?", delta.Transfers),
			"flags":     gorm.Expr("flags + ?", delta.Flags),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to increment daily stats: %w", err)
	}
	return nil
}

// CreateProposal inserts a proposal
func (t *txStore) CreateProposal(ctx context.Context, proposal *schema.Proposal) (bool, error) {
	result := t.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "proposal_id"}},
		DoNothing: true,
	}).Create(proposal)
	if result.Error != nil {
		return false, fmt.Errorf("failed to create proposal: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// GetProposalForUpdate retrieves and locks a proposal
func (t *txStore) GetProposalForUpdate(ctx context.Context, proposalID string) (*schema.Proposal, error) {
	var proposal schema.Proposal
	ok, err := first(forUpdate(t.db.WithContext(ctx)), &proposal, "proposal_id = ?", proposalID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock proposal: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &proposal, nil
}

// UpdateProposal saves the mutable fields of a proposal
func (t *txStore) UpdateProposal(ctx context.Context, proposal *schema.Proposal) error {
	err := t.db.WithContext(ctx).Model(&schema.Proposal{}).
		Where("proposal_id = ?", proposal.ProposalID).
		Updates(map[string]interface{}{
			"for_votes":      proposal.ForVotes,
			"against_votes":  proposal.AgainstVotes,
			"abstain_votes":  proposal.AbstainVotes,
			"explicit_state": proposal.ExplicitState,
			"eta":            proposal.ETA,
			"updated_at":     proposal.UpdatedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update proposal: %w", err)
	}
	return nil
}
