package schema

import "time"

// KeyValueStore stores arbitrary key-value pairs for process state.
// Used for emitter block cursors and aggregator shard cursors.
type KeyValueStore struct {
	Key       string    `gorm:"primaryKey;type:text"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (KeyValueStore) TableName() string {
	return "key_value_store"
}

// Models lists every table managed by the store, in migration order
func Models() []interface{} {
	return []interface{}{
		&KeyValueStore{},
		&User{},
		&Asset{},
		&Transfer{},
		&StateChange{},
		&Flag{},
		&Resolution{},
		&BadgeGrant{},
		&CapabilityGrant{},
		&Proposal{},
		&Vote{},
		&ProposalTransition{},
		&GlobalStats{},
		&DailyStats{},
		&Anomaly{},
	}
}
