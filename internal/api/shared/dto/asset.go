package dto

import (
	"encoding/json"
	"time"

	"github.com/feral-file/ff-asset-aggregator/internal/domain"
	"github.com/feral-file/ff-asset-aggregator/internal/store/schema"
)

// AssetResponse represents the current state of an asset
type AssetResponse struct {
	TokenID         string            `json:"token_id"`
	ContractAddress string            `json:"contract_address"`
	State           domain.AssetState `json:"state"`
	Owner           string            `json:"owner"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// AssetListResponse represents a page of assets
type AssetListResponse struct {
	Assets []AssetResponse `json:"items"`
	Offset *uint64         `json:"offset,omitempty"`
	Total  uint64          `json:"total"`
}

// EventRefResponse is the provenance shared by every history item
type EventRefResponse struct {
	TxHash      string          `json:"tx_hash"`
	LogIndex    uint64          `json:"log_index"`
	BlockNumber uint64          `json:"block_number"`
	Timestamp   time.Time       `json:"timestamp"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

// TransferResponse represents a transfer of an asset
type TransferResponse struct {
	EventRefResponse
	From   string `json:"from"`
	To     string `json:"to"`
	IsMint bool   `json:"is_mint"`
}

// StateChangeResponse represents a lifecycle transition of an asset
type StateChangeResponse struct {
	EventRefResponse
	OldState         domain.AssetState `json:"old_state"`
	NewState         domain.AssetState `json:"new_state"`
	DeclaredOldState domain.AssetState `json:"declared_old_state"`
}

// FlagResponse represents a flag raised against an asset
type FlagResponse struct {
	EventRefResponse
	Reporter string `json:"reporter"`
	Reason   string `json:"reason"`
	Resolved bool   `json:"resolved"`
}

// ResolutionResponse represents a resolution decision on an asset
type ResolutionResponse struct {
	EventRefResponse
	Resolver   string                `json:"resolver"`
	Resolution domain.ResolutionType `json:"resolution"`
}

// AssetHistoryResponse represents the full history of an asset, each list in event order
type AssetHistoryResponse struct {
	TokenID      string                `json:"token_id"`
	Transfers    []TransferResponse    `json:"transfers"`
	StateChanges []StateChangeResponse `json:"state_changes"`
	Flags        []FlagResponse        `json:"flags"`
	Resolutions  []ResolutionResponse  `json:"resolutions"`
}

// MapAssetToDTO maps a schema.Asset to AssetResponse
func MapAssetToDTO(asset *schema.Asset) *AssetResponse {
	return &AssetResponse{
		TokenID:         asset.TokenID,
		ContractAddress: asset.ContractAddress,
		State:           asset.State,
		Owner:           asset.Owner,
		CreatedAt:       asset.CreatedAt,
		UpdatedAt:       asset.UpdatedAt,
	}
}

// MapEventRefToDTO maps a schema.EventRef to EventRefResponse
func MapEventRefToDTO(ref schema.EventRef) EventRefResponse {
	return EventRefResponse{
		TxHash:      ref.TxHash,
		LogIndex:    ref.LogIndex,
		BlockNumber: ref.BlockNumber,
		Timestamp:   ref.Timestamp,
		Raw:         json.RawMessage(ref.Raw),
	}
}

// MapAssetHistoryToDTO maps the history records of an asset to AssetHistoryResponse
func MapAssetHistoryToDTO(tokenID string, transfers []schema.Transfer, changes []schema.StateChange, flags []schema.Flag, resolutions []schema.Resolution) *AssetHistoryResponse {
	resp := &AssetHistoryResponse{
		TokenID:      tokenID,
		Transfers:    make([]TransferResponse, len(transfers)),
		StateChanges: make([]StateChangeResponse, len(changes)),
		Flags:        make([]FlagResponse, len(flags)),
		Resolutions:  make([]ResolutionResponse, len(resolutions)),
	}
	for i, t := range transfers {
		resp.Transfers[i] = TransferResponse{
			EventRefResponse: MapEventRefToDTO(t.EventRef),
			From:             t.From,
			To:               t.To,
			IsMint:           t.IsMint,
		}
	}
	for i, c := range changes {
		resp.StateChanges[i] = StateChangeResponse{
			EventRefResponse: MapEventRefToDTO(c.EventRef),
			OldState:         c.OldState,
			NewState:         c.NewState,
			DeclaredOldState: c.DeclaredOldState,
		}
	}
	for i, f := range flags {
		resp.Flags[i] = FlagResponse{
			EventRefResponse: MapEventRefToDTO(f.EventRef),
			Reporter:         f.Reporter,
			Reason:           f.Reason,
			Resolved:         f.Resolved,
		}
	}
	for i, r := range resolutions {
		resp.Resolutions[i] = ResolutionResponse{
			EventRefResponse: MapEventRefToDTO(r.EventRef),
			Resolver:         r.Resolver,
			Resolution:       r.ResolutionType,
		}
	}
	return resp
}
