package schema

import "time"

// User represents the users table - an address seen in any registry event
type User struct {
	// Address is the checksummed address and primary key
	Address string `gorm:"column:address;primaryKey;type:text"`
	// AssetCount is the number of assets currently owned
	AssetCount int64 `gorm:"column:asset_count;not null;default:0"`
	// BadgeCount is the number of badges currently held
	BadgeCount int64 `gorm:"column:badge_count;not null;default:0"`
	// CapabilityCount is the number of capabilities currently held
	CapabilityCount int64 `gorm:"column:capability_count;not null;default:0"`
	// FirstSeenAt is the block time of the first event referencing the address
	FirstSeenAt time.Time `gorm:"column:first_seen_at;not null"`
	// LastActiveAt is the latest block time of any event referencing the address
	LastActiveAt time.Time `gorm:"column:last_active_at;not null;index"`
}

func (User) TableName() string {
	return "users"
}
