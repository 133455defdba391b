package domain

import (
	"encoding/json"
	"fmt"
)

// House is a voting constituency with its own quorum
type House uint8

const (
	HouseTokenHolder House = iota
	HouseBrand
	HouseTechnical

	// HouseCount is the number of houses; arrays indexed by House use it as length
	HouseCount
)

var houseNames = [HouseCount]string{
	HouseTokenHolder: "token",
	HouseBrand:       "brand",
	HouseTechnical:   "technical",
}

// Houses returns every house in enumeration order
func Houses() [HouseCount]House {
	return [HouseCount]House{HouseTokenHolder, HouseBrand, HouseTechnical}
}

func (h House) String() string {
	if h >= HouseCount {
		return fmt.Sprintf("house(%d)", uint8(h))
	}
	return houseNames[h]
}

// Valid reports whether the house is part of the enumeration
func (h House) Valid() bool {
	return h < HouseCount
}

// ParseHouse parses a house name
func ParseHouse(s string) (House, error) {
	for i, name := range houseNames {
		if name == s {
			return House(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown house %q", ErrInvalidEvent, s)
}

func (h House) MarshalJSON() ([]byte, error) {
	if !h.Valid() {
		return nil, fmt.Errorf("%w: unknown house %d", ErrInvalidEvent, uint8(h))
	}
	return json.Marshal(h.String())
}

func (h *House) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseHouse(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// VoteSupport is a voter's choice
type VoteSupport string

const (
	VoteAgainst VoteSupport = "against"
	VoteFor     VoteSupport = "for"
	VoteAbstain VoteSupport = "abstain"
)

// Valid reports whether the support value is known
func (s VoteSupport) Valid() bool {
	return s == VoteAgainst || s == VoteFor || s == VoteAbstain
}

// VoteSupportFromIndex maps the governor's uint8 support (0 against, 1 for, 2 abstain)
func VoteSupportFromIndex(i uint8) (VoteSupport, error) {
	switch i {
	case 0:
		return VoteAgainst, nil
	case 1:
		return VoteFor, nil
	case 2:
		return VoteAbstain, nil
	}
	return "", fmt.Errorf("%w: unknown vote support %d", ErrInvalidEvent, i)
}

// ProposalState is the lifecycle state of a governance proposal
type ProposalState string

const (
	ProposalStatePending   ProposalState = "pending"
	ProposalStateActive    ProposalState = "active"
	ProposalStateCanceled  ProposalState = "canceled"
	ProposalStateDefeated  ProposalState = "defeated"
	ProposalStateSucceeded ProposalState = "succeeded"
	ProposalStateQueued    ProposalState = "queued"
	ProposalStateExpired   ProposalState = "expired"
	ProposalStateExecuted  ProposalState = "executed"
)
