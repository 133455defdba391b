package dto

import (
	"time"

	"github.com/feral-file/ff-asset-aggregator/internal/store/schema"
)

// UserResponse represents a user with the badges and capabilities currently held
type UserResponse struct {
	Address         string    `json:"address"`
	AssetCount      int64     `json:"asset_count"`
	BadgeCount      int64     `json:"badge_count"`
	CapabilityCount int64     `json:"capability_count"`
	Badges          []string  `json:"badges"`
	Capabilities    []string  `json:"capabilities"`
	FirstSeenAt     time.Time `json:"first_seen_at"`
	LastActiveAt    time.Time `json:"last_active_at"`
}

// MapUserToDTO maps a schema.User and its current grants to UserResponse
func MapUserToDTO(user *schema.User, badges []string, capabilities []string) *UserResponse {
	if badges == nil {
		badges = []string{}
	}
	if capabilities == nil {
		capabilities = []string{}
	}
	return &UserResponse{
		Address:         user.Address,
		AssetCount:      user.AssetCount,
		BadgeCount:      user.BadgeCount,
		CapabilityCount: user.CapabilityCount,
		Badges:          badges,
		Capabilities:    capabilities,
		FirstSeenAt:     user.FirstSeenAt,
		LastActiveAt:    user.LastActiveAt,
	}
}
