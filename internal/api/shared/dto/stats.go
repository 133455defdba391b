package dto

import (
	"time"

	"github.com/feral-file/ff-asset-aggregator/internal/domain"
	"github.com/feral-file/ff-asset-aggregator/internal/store/schema"
)

// GlobalStatsResponse represents the global counters
type GlobalStatsResponse struct {
	TotalAssets      int64                       `json:"total_assets"`
	TotalUsers       int64                       `json:"total_users"`
	TotalTransfers   int64                       `json:"total_transfers"`
	TotalFlags       int64                       `json:"total_flags"`
	TotalResolutions int64                       `json:"total_resolutions"`
	TotalProposals   int64                       `json:"total_proposals"`
	TotalVotes       int64                       `json:"total_votes"`
	States           map[domain.AssetState]int64 `json:"states"`
	LastEventAt      *time.Time                  `json:"last_event_at,omitempty"`
}

// DailyStatsResponse represents the counters of one UTC day
type DailyStatsResponse struct {
	Day       string `json:"day"`
	Mints     int64  `json:"mints"`
	Transfers int64  `json:"transfers"`
	Flags     int64  `json:"flags"`
}

// StatsResponse represents the global counters along with the most recent days
type StatsResponse struct {
	Global GlobalStatsResponse  `json:"global"`
	Daily  []DailyStatsResponse `json:"daily"`
}

// MapStatsToDTO maps the global and daily stats to StatsResponse.
// states holds the per state bucket of every lifecycle state.
func MapStatsToDTO(global *schema.GlobalStats, states map[domain.AssetState]int64, daily []schema.DailyStats) *StatsResponse {
	resp := &StatsResponse{
		Global: GlobalStatsResponse{
			TotalAssets:      global.TotalAssets,
			TotalUsers:       global.TotalUsers,
			TotalTransfers:   global.TotalTransfers,
			TotalFlags:       global.TotalFlags,
			TotalResolutions: global.TotalResolutions,
			TotalProposals:   global.TotalProposals,
			TotalVotes:       global.TotalVotes,
			States:           states,
			LastEventAt:      global.LastEventAt,
		},
		Daily: make([]DailyStatsResponse, len(daily)),
	}
	for i, d := range daily {
		resp.Daily[i] = DailyStatsResponse{
			Day:       d.Day,
			Mints:     d.Mints,
			Transfers: d.Transfers,
			Flags:     d.Flags,
		}
	}
	return resp
}
