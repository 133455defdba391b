package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TransferPayload is the payload of a transfer event. A null from address marks a mint.
type TransferPayload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	TokenID string `json:"token_id"`
}

// IsMint reports whether the transfer creates the asset
func (p *TransferPayload) IsMint() bool {
	return IsNullAddress(p.From)
}

// IsBurn reports whether the transfer sends the asset to the null address
func (p *TransferPayload) IsBurn() bool {
	return IsNullAddress(p.To)
}

// StateChangedPayload is the payload of an asset lifecycle transition
type StateChangedPayload struct {
	TokenID  string     `json:"token_id"`
	OldState AssetState `json:"old_state"`
	NewState AssetState `json:"new_state"`
}

// AssetFlaggedPayload is the payload of a flag raised against an asset
type AssetFlaggedPayload struct {
	TokenID  string `json:"token_id"`
	Reporter string `json:"reporter"`
	Reason   string `json:"reason"`
}

// AssetResolvedPayload is the payload of a resolution decision on an asset
type AssetResolvedPayload struct {
	TokenID    string         `json:"token_id"`
	Resolver   string         `json:"resolver"`
	Resolution ResolutionType `json:"resolution"`
}

// BadgePayload is the payload of badge grants and revocations
type BadgePayload struct {
	Subject string `json:"subject"`
	Issuer  string `json:"issuer"`
	BadgeID string `json:"badge_id"`
}

// CapabilityPayload is the payload of capability grants and revocations
type CapabilityPayload struct {
	Subject    string `json:"subject"`
	Issuer     string `json:"issuer"`
	Capability string `json:"capability"`
}

// ProposalCreatedPayload is the payload of a new governance proposal.
// Quorums are keyed by house name.
type ProposalCreatedPayload struct {
	ProposalID string            `json:"proposal_id"`
	Proposer   string            `json:"proposer"`
	Category   string            `json:"category"`
	StartTime  int64             `json:"start_time"`
	EndTime    int64             `json:"end_time"`
	Quorums    map[string]string `json:"quorums"`
}

// VoteCastPayload is the payload of a vote
type VoteCastPayload struct {
	ProposalID string      `json:"proposal_id"`
	Voter      string      `json:"voter"`
	Support    VoteSupport `json:"support"`
	Weight     string      `json:"weight"`
	House      House       `json:"house"`
}

// ProposalPayload is the payload of canceled, queued and executed proposal events
type ProposalPayload struct {
	ProposalID string `json:"proposal_id"`
	ETA        int64  `json:"eta,omitempty"` // queued only
}

func (e *Event) decode(v interface{}) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrInvalidEvent, e.Type, err)
	}
	return nil
}

// TransferPayload decodes and normalizes a transfer payload
func (e *Event) TransferPayload() (*TransferPayload, error) {
	var p TransferPayload
	if err := e.decode(&p); err != nil {
		return nil, err
	}

	var err error
	if p.TokenID, err = CanonicalTokenID(p.TokenID); err != nil {
		return nil, err
	}
	if p.From, err = parseNullableAddress(p.From); err != nil {
		return nil, err
	}
	if p.To, err = parseNullableAddress(p.To); err != nil {
		return nil, err
	}
	if p.IsMint() && p.IsBurn() {
		return nil, fmt.Errorf("%w: transfer from and to the null address", ErrInvalidEvent)
	}
	return &p, nil
}

// StateChangedPayload decodes and validates a lifecycle transition payload
func (e *Event) StateChangedPayload() (*StateChangedPayload, error) {
	var p StateChangedPayload
	if err := e.decode(&p); err != nil {
		return nil, err
	}

	var err error
	if p.TokenID, err = CanonicalTokenID(p.TokenID); err != nil {
		return nil, err
	}
	if !p.OldState.Valid() {
		return nil, fmt.Errorf("%w: unknown old state %q", ErrInvalidEvent, p.OldState)
	}
	if !p.NewState.Valid() {
		return nil, fmt.Errorf("%w: unknown new state %q", ErrInvalidEvent, p.NewState)
	}
	return &p, nil
}

// AssetFlaggedPayload decodes and normalizes a flag payload
func (e *Event) AssetFlaggedPayload() (*AssetFlaggedPayload, error) {
	var p AssetFlaggedPayload
	if err := e.decode(&p); err != nil {
		return nil, err
	}

	var err error
	if p.TokenID, err = CanonicalTokenID(p.TokenID); err != nil {
		return nil, err
	}
	if p.Reporter, err = ParseAddress(p.Reporter); err != nil {
		return nil, err
	}
	return &p, nil
}

// AssetResolvedPayload decodes and normalizes a resolution payload
func (e *Event) AssetResolvedPayload() (*AssetResolvedPayload, error) {
	var p AssetResolvedPayload
	if err := e.decode(&p); err != nil {
		return nil, err
	}

	var err error
	if p.TokenID, err = CanonicalTokenID(p.TokenID); err != nil {
		return nil, err
	}
	if p.Resolver, err = ParseAddress(p.Resolver); err != nil {
		return nil, err
	}
	if !p.Resolution.Valid() {
		return nil, fmt.Errorf("%w: unknown resolution %q", ErrInvalidEvent, p.Resolution)
	}
	return &p, nil
}

// BadgePayload decodes and normalizes a badge grant or revocation payload
func (e *Event) BadgePayload() (*BadgePayload, error) {
	var p BadgePayload
	if err := e.decode(&p); err != nil {
		return nil, err
	}

	var err error
	if p.BadgeID, err = CanonicalTokenID(p.BadgeID); err != nil {
		return nil, err
	}
	if p.Subject, p.Issuer, err = parseParties(p.Subject, p.Issuer); err != nil {
		return nil, err
	}
	return &p, nil
}

// CapabilityPayload decodes and normalizes a capability grant or revocation payload
func (e *Event) CapabilityPayload() (*CapabilityPayload, error) {
	var p CapabilityPayload
	if err := e.decode(&p); err != nil {
		return nil, err
	}

	p.Capability = strings.TrimSpace(p.Capability)
	if p.Capability == "" {
		return nil, fmt.Errorf("%w: missing capability", ErrInvalidEvent)
	}
	var err error
	if p.Subject, p.Issuer, err = parseParties(p.Subject, p.Issuer); err != nil {
		return nil, err
	}
	return &p, nil
}

// ProposalCreatedPayload decodes and validates a proposal creation payload
func (e *Event) ProposalCreatedPayload() (*ProposalCreatedPayload, error) {
	var p ProposalCreatedPayload
	if err := e.decode(&p); err != nil {
		return nil, err
	}

	var err error
	if p.ProposalID, err = CanonicalTokenID(p.ProposalID); err != nil {
		return nil, err
	}
	if p.Proposer, err = ParseAddress(p.Proposer); err != nil {
		return nil, err
	}
	if p.EndTime < p.StartTime {
		return nil, fmt.Errorf("%w: proposal ends before it starts", ErrInvalidEvent)
	}
	for name, quorum := range p.Quorums {
		if _, err := ParseHouse(name); err != nil {
			return nil, err
		}
		if _, err := ParseAmount(quorum); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

// Quorum returns the quorum declared for a house, zero when absent
func (p *ProposalCreatedPayload) Quorum(h House) string {
	if q, ok := p.Quorums[h.String()]; ok && q != "" {
		return q
	}
	return "0"
}

// VoteCastPayload decodes and validates a vote payload
func (e *Event) VoteCastPayload() (*VoteCastPayload, error) {
	var p VoteCastPayload
	if err := e.decode(&p); err != nil {
		return nil, err
	}
	var declared struct {
		House *House `json:"house"`
	}
	if err := e.decode(&declared); err != nil {
		return nil, err
	}
	if declared.House == nil {
		return nil, fmt.Errorf("%w: vote without a house", ErrInvalidEvent)
	}

	var err error
	if p.ProposalID, err = CanonicalTokenID(p.ProposalID); err != nil {
		return nil, err
	}
	if p.Voter, err = ParseAddress(p.Voter); err != nil {
		return nil, err
	}
	if !p.Support.Valid() {
		return nil, fmt.Errorf("%w: unknown vote support %q", ErrInvalidEvent, p.Support)
	}
	weight, err := ParseAmount(p.Weight)
	if err != nil {
		return nil, err
	}
	p.Weight = weight.String()
	return &p, nil
}

// ProposalPayload decodes a canceled, queued or executed proposal payload
func (e *Event) ProposalPayload() (*ProposalPayload, error) {
	var p ProposalPayload
	if err := e.decode(&p); err != nil {
		return nil, err
	}

	var err error
	if p.ProposalID, err = CanonicalTokenID(p.ProposalID); err != nil {
		return nil, err
	}
	if e.Type == EventTypeProposalQueued && p.ETA <= 0 {
		return nil, fmt.Errorf("%w: queued proposal without eta", ErrInvalidEvent)
	}
	return &p, nil
}

func parseNullableAddress(address string) (string, error) {
	if IsNullAddress(address) {
		return ETHEREUM_ZERO_ADDRESS, nil
	}
	return ParseAddress(address)
}

// parseParties normalizes the subject and the optional issuer of a grant
func parseParties(subject, issuer string) (string, string, error) {
	s, err := ParseAddress(subject)
	if err != nil {
		return "", "", err
	}
	if issuer == "" {
		return s, "", nil
	}
	i, err := ParseAddress(issuer)
	if err != nil {
		return "", "", err
	}
	return s, i, nil
}
