package store

import (
	"github.com/feral-file/ff-asset-aggregator/internal/domain"
	"github.com/feral-file/ff-asset-aggregator/internal/store/schema"
)

// StatsDelta is a set of signed adjustments to the global counters
type StatsDelta struct {
	TotalAssets      int64
	TotalUsers       int64
	TotalTransfers   int64
	TotalFlags       int64
	TotalResolutions int64
	TotalProposals   int64
	TotalVotes       int64
	States           map[domain.AssetState]int64
}

// AddState adjusts the bucket of a lifecycle state
func (d *StatsDelta) AddState(state domain.AssetState, n int64) {
	if d.States == nil {
		d.States = make(map[domain.AssetState]int64, 2)
	}
	d.States[state] += n
}

// MoveState moves one asset from one bucket to another
func (d *StatsDelta) MoveState(from, to domain.AssetState) {
	if from == to {
		return
	}
	d.AddState(from, -1)
	d.AddState(to, 1)
}

// IsZero reports whether the delta changes nothing
func (d *StatsDelta) IsZero() bool {
	if d.TotalAssets != 0 || d.TotalUsers != 0 || d.TotalTransfers != 0 || d.TotalFlags != 0 ||
		d.TotalResolutions != 0 || d.TotalProposals != 0 || d.TotalVotes != 0 {
		return false
	}
	for _, n := range d.States {
		if n != 0 {
			return false
		}
	}
	return true
}

// StateCount returns a pointer to the bucket of a lifecycle state
func StateCount(stats *schema.GlobalStats, state domain.AssetState) *int64 {
	switch state {
	case domain.AssetStateMinted:
		return &stats.MintedCount
	case domain.AssetStateBound:
		return &stats.BoundCount
	case domain.AssetStateActivated:
		return &stats.ActivatedCount
	case domain.AssetStateClaimed:
		return &stats.ClaimedCount
	case domain.AssetStateFlagged:
		return &stats.FlaggedCount
	case domain.AssetStateRecycled:
		return &stats.RecycledCount
	}
	return nil
}

// Apply adds the delta to stats, clamping every counter at zero, and returns
// the names of the counters that were clamped
func (d *StatsDelta) Apply(stats *schema.GlobalStats) []string {
	var clamped []string
	add := func(name string, counter *int64, n int64) {
		if clampAdd(counter, n) {
			clamped = append(clamped, name)
		}
	}

	add("total_assets", &stats.TotalAssets, d.TotalAssets)
	add("total_users", &stats.TotalUsers, d.TotalUsers)
	add("total_transfers", &stats.TotalTransfers, d.TotalTransfers)
	add("total_flags", &stats.TotalFlags, d.TotalFlags)
	add("total_resolutions", &stats.TotalResolutions, d.TotalResolutions)
	add("total_proposals", &stats.TotalProposals, d.TotalProposals)
	add("total_votes", &stats.TotalVotes, d.TotalVotes)
	for _, state := range domain.AssetStates {
		if n := d.States[state]; n != 0 {
			add(string(state)+"_count", StateCount(stats, state), n)
		}
	}

	return clamped
}

// Apply adds the delta to user, clamping every count at zero, and returns
// the names of the counts that were clamped
func (d UserDelta) Apply(user *schema.User) []string {
	var clamped []string
	if clampAdd(&user.AssetCount, d.AssetCount) {
		clamped = append(clamped, "asset_count")
	}
	if clampAdd(&user.BadgeCount, d.BadgeCount) {
		clamped = append(clamped, "badge_count")
	}
	if clampAdd(&user.CapabilityCount, d.CapabilityCount) {
		clamped = append(clamped, "capability_count")
	}
	return clamped
}

// clampAdd adds n to counter and reports whether the result had to be clamped at zero
func clampAdd(counter *int64, n int64) bool {
	v := *counter + n
	if v < 0 {
		*counter = 0
		return true
	}
	*counter = v
	return false
}
