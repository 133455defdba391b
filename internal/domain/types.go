package domain

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Chain represents the blockchain network identifier using CAIP-2 format
type Chain string

const (
	ChainEthereumMainnet Chain = "eip155:1"
	ChainEthereumSepolia Chain = "eip155:11155111"
)

// IsValidChain checks if a chain is valid
func IsValidChain(chain Chain) bool {
	return chain == ChainEthereumMainnet ||
		chain == ChainEthereumSepolia
}

// EventType represents the type of registry event
type EventType string

const (
	// Asset registry
	EventTypeTransfer      EventType = "transfer"
	EventTypeStateChanged  EventType = "state_changed"
	EventTypeAssetFlagged  EventType = "asset_flagged"
	EventTypeAssetResolved EventType = "asset_resolved"

	// Identity registry
	EventTypeBadgeGranted      EventType = "badge_granted"
	EventTypeBadgeRevoked      EventType = "badge_revoked"
	EventTypeCapabilityGranted EventType = "capability_granted"
	EventTypeCapabilityRevoked EventType = "capability_revoked"

	// Governor
	EventTypeProposalCreated  EventType = "proposal_created"
	EventTypeVoteCast         EventType = "vote_cast"
	EventTypeProposalCanceled EventType = "proposal_canceled"
	EventTypeProposalQueued   EventType = "proposal_queued"
	EventTypeProposalExecuted EventType = "proposal_executed"
)

// EventTypes lists every event type the aggregator understands
var EventTypes = []EventType{
	EventTypeTransfer,
	EventTypeStateChanged,
	EventTypeAssetFlagged,
	EventTypeAssetResolved,
	EventTypeBadgeGranted,
	EventTypeBadgeRevoked,
	EventTypeCapabilityGranted,
	EventTypeCapabilityRevoked,
	EventTypeProposalCreated,
	EventTypeVoteCast,
	EventTypeProposalCanceled,
	EventTypeProposalQueued,
	EventTypeProposalExecuted,
}

// Valid reports whether the event type is known
func (t EventType) Valid() bool {
	for _, et := range EventTypes {
		if et == t {
			return true
		}
	}
	return false
}

// IsAssetEvent reports whether the event is emitted by the asset registry
func (t EventType) IsAssetEvent() bool {
	switch t {
	case EventTypeTransfer, EventTypeStateChanged, EventTypeAssetFlagged, EventTypeAssetResolved:
		return true
	}
	return false
}

// IsGrantEvent reports whether the event is emitted by the identity registry
func (t EventType) IsGrantEvent() bool {
	switch t {
	case EventTypeBadgeGranted, EventTypeBadgeRevoked, EventTypeCapabilityGranted, EventTypeCapabilityRevoked:
		return true
	}
	return false
}

// IsGovernanceEvent reports whether the event is emitted by the governor
func (t EventType) IsGovernanceEvent() bool {
	switch t {
	case EventTypeProposalCreated, EventTypeVoteCast, EventTypeProposalCanceled,
		EventTypeProposalQueued, EventTypeProposalExecuted:
		return true
	}
	return false
}

// Position is the (block, log index) ordering key of an event
type Position struct {
	BlockNumber uint64 `json:"block_number"`
	LogIndex    uint64 `json:"log_index"`
}

// Less reports whether p sorts strictly before o
func (p Position) Less(o Position) bool {
	if p.BlockNumber != o.BlockNumber {
		return p.BlockNumber < o.BlockNumber
	}
	return p.LogIndex < o.LogIndex
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.BlockNumber, p.LogIndex)
}

// NaturalKey identifies an event by its provenance
type NaturalKey struct {
	TxHash   string
	LogIndex uint64
}

func (k NaturalKey) String() string {
	return fmt.Sprintf("%s:%d", k.TxHash, k.LogIndex)
}

// Event represents a normalized registry event
// This is the standard format published to NATS
type Event struct {
	Type            EventType       `json:"type"`                 // e.g. transfer, state_changed, vote_cast
	Chain           Chain           `json:"chain"`                // e.g. "eip155:1"
	ContractAddress string          `json:"contract_address"`     // emitting contract
	BlockNumber     uint64          `json:"block_number"`         // block number
	BlockHash       *string         `json:"block_hash,omitempty"` // block hash (optional, nil if not available)
	LogIndex        uint64          `json:"log_index"`            // log position within the block
	TxHash          string          `json:"tx_hash"`              // transaction hash
	Timestamp       int64           `json:"timestamp"`            // block timestamp, seconds since epoch
	Payload         json.RawMessage `json:"payload"`              // type specific payload
}

// NewEvent builds an event with the given payload marshalled as JSON
func NewEvent(eventType EventType, position Position, txHash string, timestamp int64, payload interface{}) (*Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return &Event{
		Type:        eventType,
		BlockNumber: position.BlockNumber,
		LogIndex:    position.LogIndex,
		TxHash:      txHash,
		Timestamp:   timestamp,
		Payload:     raw,
	}, nil
}

// Position returns the ordering key of the event
func (e *Event) Position() Position {
	return Position{BlockNumber: e.BlockNumber, LogIndex: e.LogIndex}
}

// Key returns the natural key of the event
func (e *Event) Key() NaturalKey {
	return NaturalKey{TxHash: strings.ToLower(e.TxHash), LogIndex: e.LogIndex}
}

// Time returns the block timestamp in UTC
func (e *Event) Time() time.Time {
	return time.Unix(e.Timestamp, 0).UTC()
}

// Day returns the UTC day of the block timestamp
func (e *Event) Day() string {
	return e.Time().Format(DAY_LAYOUT)
}

// Validate checks the envelope fields shared by every event type
func (e *Event) Validate() error {
	if !e.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownEventType, e.Type)
	}
	if e.TxHash == "" {
		return fmt.Errorf("%w: missing tx hash", ErrInvalidEvent)
	}
	if e.Timestamp <= 0 {
		return fmt.Errorf("%w: missing block timestamp", ErrInvalidEvent)
	}
	if len(e.Payload) == 0 {
		return fmt.Errorf("%w: missing payload", ErrInvalidEvent)
	}
	return nil
}

// RoutingKey returns the primary entity key used to pick the event's shard.
// Events touching the same asset, subject or proposal always share a key.
func (e *Event) RoutingKey() string {
	var probe struct {
		TokenID    string `json:"token_id"`
		Subject    string `json:"subject"`
		ProposalID string `json:"proposal_id"`
	}
	_ = json.Unmarshal(e.Payload, &probe)

	switch {
	case e.Type.IsAssetEvent():
		if id, err := CanonicalTokenID(probe.TokenID); err == nil {
			return "asset:" + id
		}
	case e.Type.IsGrantEvent():
		return "user:" + strings.ToLower(probe.Subject)
	case e.Type.IsGovernanceEvent():
		if id, err := CanonicalTokenID(probe.ProposalID); err == nil {
			return "proposal:" + id
		}
	}
	return e.Key().String()
}

// CanonicalTokenID parses a token or proposal identifier given in decimal or
// 0x-prefixed hex and returns its canonical decimal form
func CanonicalTokenID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: empty identifier", ErrInvalidEvent)
	}

	n := new(big.Int)
	var ok bool
	if strings.HasPrefix(id, "0x") || strings.HasPrefix(id, "0X") {
		_, ok = n.SetString(id[2:], 16)
	} else {
		_, ok = n.SetString(id, 10)
	}
	if !ok || n.Sign() < 0 {
		return "", fmt.Errorf("%w: malformed identifier %q", ErrInvalidEvent, id)
	}
	return n.String(), nil
}

// ParseAmount parses a non-negative decimal amount such as a vote weight or quorum
func ParseAmount(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("%w: malformed amount %q", ErrInvalidEvent, s)
	}
	return n, nil
}

// NormalizeAddresses normalizes a list of addresses to the format used by the blockchain
func NormalizeAddresses(addresses []string) []string {
	for i, address := range addresses {
		addresses[i] = NormalizeAddress(address)
	}
	return addresses
}

// NormalizeAddress normalizes an address to the format used by the blockchain
func NormalizeAddress(address string) string {
	if strings.HasPrefix(address, "0x") {
		return common.HexToAddress(address).String()
	}
	return address
}

// ParseAddress validates and normalizes a hex address
func ParseAddress(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("%w: malformed address %q", ErrInvalidEvent, address)
	}
	return common.HexToAddress(address).String(), nil
}

// IsNullAddress reports whether the address is empty or the zero address
func IsNullAddress(address string) bool {
	if address == "" {
		return true
	}
	return common.IsHexAddress(address) && common.HexToAddress(address) == (common.Address{})
}
