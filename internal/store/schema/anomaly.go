package schema

import (
	"time"

	"github.com/feral-file/ff-asset-aggregator/internal/domain"
)

// AnomalyKind classifies why an event was skipped
type AnomalyKind string

const (
	AnomalyKindInvalidPayload  AnomalyKind = "invalid_payload"
	AnomalyKindUnknownType     AnomalyKind = "unknown_event_type"
	AnomalyKindUnknownAsset    AnomalyKind = "unknown_asset"
	AnomalyKindUnknownProposal AnomalyKind = "unknown_proposal"
	AnomalyKindOutOfOrder      AnomalyKind = "out_of_order"
	AnomalyKindConflict        AnomalyKind = "conflict"
)

// AnomalyKinds lists every anomaly kind
var AnomalyKinds = []AnomalyKind{
	AnomalyKindInvalidPayload,
	AnomalyKindUnknownType,
	AnomalyKindUnknownAsset,
	AnomalyKindUnknownProposal,
	AnomalyKindOutOfOrder,
	AnomalyKindConflict,
}

// Valid reports whether the kind is known
func (k AnomalyKind) Valid() bool {
	for _, kind := range AnomalyKinds {
		if kind == k {
			return true
		}
	}
	return false
}

// Anomaly represents the anomalies table - events that were skipped instead of applied
type Anomaly struct {
	EventRef
	// AnomalyID is a ULID, sortable by detection time
	AnomalyID string           `gorm:"column:anomaly_id;not null;type:text;uniqueIndex"`
	EventType domain.EventType `gorm:"column:event_type;not null;type:text"`
	Kind      AnomalyKind      `gorm:"column:kind;not null;type:text;index"`
	Detail    string           `gorm:"column:detail;not null;type:text"`
	// DetectedAt is wall clock time
	DetectedAt time.Time `gorm:"column:detected_at;not null"`
}

func (Anomaly) TableName() string {
	return "anomalies"
}
