package domain

import "fmt"

// AssetState is the lifecycle state of a registered asset
type AssetState string

const (
	AssetStateMinted    AssetState = "minted"
	AssetStateBound     AssetState = "bound"
	AssetStateActivated AssetState = "activated"
	AssetStateClaimed   AssetState = "claimed"
	AssetStateFlagged   AssetState = "flagged"
	AssetStateRecycled  AssetState = "recycled"
)

// AssetStates lists the lifecycle states in contract enum order
var AssetStates = []AssetState{
	AssetStateMinted,
	AssetStateBound,
	AssetStateActivated,
	AssetStateClaimed,
	AssetStateFlagged,
	AssetStateRecycled,
}

// transitions lists the forward moves of the lifecycle. A flagged asset
// returns to a pre-flag state or is recycled once resolved.
var transitions = map[AssetState][]AssetState{
	AssetStateMinted:    {AssetStateBound},
	AssetStateBound:     {AssetStateActivated, AssetStateFlagged},
	AssetStateActivated: {AssetStateClaimed, AssetStateFlagged},
	AssetStateClaimed:   {AssetStateFlagged},
	AssetStateFlagged:   {AssetStateBound, AssetStateActivated, AssetStateClaimed, AssetStateRecycled},
	AssetStateRecycled:  {},
}

// Valid reports whether the state is a known lifecycle state
func (s AssetState) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether moving from s to next is a legal lifecycle move.
// The aggregator records every transition; this only drives data quality warnings.
func (s AssetState) CanTransition(next AssetState) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// AssetStateFromIndex maps the contract's uint8 enum to a state
func AssetStateFromIndex(i uint8) (AssetState, error) {
	if int(i) >= len(AssetStates) {
		return "", fmt.Errorf("%w: unknown asset state index %d", ErrInvalidEvent, i)
	}
	return AssetStates[i], nil
}

// ResolutionType is the decision taken on a flagged asset
type ResolutionType string

const (
	ResolutionClear        ResolutionType = "clear"
	ResolutionQuarantine   ResolutionType = "quarantine"
	ResolutionDecommission ResolutionType = "decommission"
)

// ResolutionTypes lists the resolution types in contract enum order
var ResolutionTypes = []ResolutionType{
	ResolutionClear,
	ResolutionQuarantine,
	ResolutionDecommission,
}

// Valid reports whether the resolution type is known
func (r ResolutionType) Valid() bool {
	for _, t := range ResolutionTypes {
		if t == r {
			return true
		}
	}
	return false
}

// ResolutionTypeFromIndex maps the contract's uint8 enum to a resolution type
func ResolutionTypeFromIndex(i uint8) (ResolutionType, error) {
	if int(i) >= len(ResolutionTypes) {
		return "", fmt.Errorf("%w: unknown resolution index %d", ErrInvalidEvent, i)
	}
	return ResolutionTypes[i], nil
}
