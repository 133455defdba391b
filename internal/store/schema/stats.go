package schema

import "time"

// GlobalStats represents the global_stats table. It holds a single row with id 1.
type GlobalStats struct {
	ID               int64 `gorm:"column:id;primaryKey;autoIncrement:false"`
	TotalAssets      int64 `gorm:"column:total_assets;not null;default:0"`
	TotalUsers       int64 `gorm:"column:total_users;not null;default:0"`
	TotalTransfers   int64 `gorm:"column:total_transfers;not null;default:0"`
	TotalFlags       int64 `gorm:"column:total_flags;not null;default:0"`
	TotalResolutions int64 `gorm:"column:total_resolutions;not null;default:0"`
	TotalProposals   int64 `gorm:"column:total_proposals;not null;default:0"`
	TotalVotes       int64 `gorm:"column:total_votes;not null;default:0"`

	// Per state asset counts; their sum equals TotalAssets
	MintedCount    int64 `gorm:"column:minted_count;not null;default:0"`
	BoundCount     int64 `gorm:"column:bound_count;not null;default:0"`
	ActivatedCount int64 `gorm:"column:activated_count;not null;default:0"`
	ClaimedCount   int64 `gorm:"column:claimed_count;not null;default:0"`
	FlaggedCount   int64 `gorm:"column:flagged_count;not null;default:0"`
	RecycledCount  int64 `gorm:"column:recycled_count;not null;default:0"`

	// LastEventAt is the block time of the latest applied event
	LastEventAt *time.Time `gorm:"column:last_event_at"`
}

func (GlobalStats) TableName() string {
	return "global_stats"
}

// DailyStats represents the daily_stats table, keyed by UTC day of the block timestamp
type DailyStats struct {
	Day       string `gorm:"column:day;primaryKey;type:text"`
	Mints     int64  `gorm:"column:mints;not null;default:0"`
	Transfers int64  `gorm:"column:transfers;not null;default:0"`
	Flags     int64  `gorm:"column:flags;not null;default:0"`
}

func (DailyStats) TableName() string {
	return "daily_stats"
}
