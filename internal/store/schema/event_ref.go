package schema

import (
	"time"

	"gorm.io/datatypes"
)

// EventRef carries the provenance shared by every immutable history record.
// (tx_hash, log_index) is the natural key used to detect duplicate deliveries.
type EventRef struct {
	// TxHash is the lowercased transaction hash of the event
	TxHash string `gorm:"column:tx_hash;primaryKey;type:text"`
	// LogIndex is the log position of the event within its block
	LogIndex uint64 `gorm:"column:log_index;primaryKey"`
	// BlockNumber is the block the event was emitted in
	BlockNumber uint64 `gorm:"column:block_number;not null;index"`
	// Timestamp is the block timestamp of the event
	Timestamp time.Time `gorm:"column:timestamp;not null"`
	// Digest is the sha256 of the canonical event, used to spot conflicting redeliveries
	Digest string `gorm:"column:digest;type:text;not null"`
	// Raw is the event payload as delivered
	Raw datatypes.JSON `gorm:"column:raw"`
}
