package dto

import (
	"time"

	"github.com/feral-file/ff-asset-aggregator/internal/domain"
	"github.com/feral-file/ff-asset-aggregator/internal/store/schema"
)

// AnomalyResponse represents an event that was skipped instead of applied
type AnomalyResponse struct {
	AnomalyID   string             `json:"anomaly_id"`
	TxHash      string             `json:"tx_hash"`
	LogIndex    uint64             `json:"log_index"`
	BlockNumber uint64             `json:"block_number"`
	EventType   domain.EventType   `json:"event_type"`
	Kind        schema.AnomalyKind `json:"kind"`
	Detail      string             `json:"detail"`
	DetectedAt  time.Time          `json:"detected_at"`
}

// AnomalyListResponse represents a page of anomalies, newest first
type AnomalyListResponse struct {
	Anomalies []AnomalyResponse `json:"items"`
	Offset    *uint64           `json:"offset,omitempty"`
	Total     uint64            `json:"total"`
}

// MapAnomalyToDTO maps a schema.Anomaly to AnomalyResponse
func MapAnomalyToDTO(a *schema.Anomaly) *AnomalyResponse {
	return &AnomalyResponse{
		AnomalyID:   a.AnomalyID,
		TxHash:      a.TxHash,
		LogIndex:    a.LogIndex,
		BlockNumber: a.BlockNumber,
		EventType:   a.EventType,
		Kind:        a.Kind,
		Detail:      a.Detail,
		DetectedAt:  a.DetectedAt,
	}
}
