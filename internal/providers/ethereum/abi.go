package ethereum

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/feral-file/ff-asset-aggregator/internal/domain"
)

// registryABI holds the events of the asset registry, the identity registry and the governor
const registryABI = `[
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[
		{"name":"from","type":"address","indexed":true},
		{"name":"to","type":"address","indexed":true},
		{"name":"tokenId","type":"uint256","indexed":true}]},
	{"type":"event","name":"StateChanged","anonymous":false,"inputs":[
		{"name":"tokenId","type":"uint256","indexed":true},
		{"name":"oldState","type":"uint8","indexed":false},
		{"name":"newState","type":"uint8","indexed":false}]},
	{"type":"event","name":"AssetFlagged","anonymous":false,"inputs":[
		{"name":"tokenId","type":"uint256","indexed":true},
		{"name":"reporter","type":"address","indexed":true},
		{"name":"reason","type":"string","indexed":false}]},
	{"type":"event","name":"AssetResolved","anonymous":false,"inputs":[
		{"name":"tokenId","type":"uint256","indexed":true},
		{"name":"resolver","type":"address","indexed":true},
		{"name":"resolution","type":"uint8","indexed":false}]},
	{"type":"event","name":"BadgeGranted","anonymous":false,"inputs":[
		{"name":"subject","type":"address","indexed":true},
		{"name":"badgeId","type":"uint256","indexed":true},
		{"name":"issuer","type":"address","indexed":true}]},
	{"type":"event","name":"BadgeRevoked","anonymous":false,"inputs":[
		{"name":"subject","type":"address","indexed":true},
		{"name":"badgeId","type":"uint256","indexed":true},
		{"name":"issuer","type":"address","indexed":true}]},
	{"type":"event","name":"CapabilityGranted","anonymous":false,"inputs":[
		{"name":"subject","type":"address","indexed":true},
		{"name":"issuer","type":"address","indexed":true},
		{"name":"capability","type":"string","indexed":false}]},
	{"type":"event","name":"CapabilityRevoked","anonymous":false,"inputs":[
		{"name":"subject","type":"address","indexed":true},
		{"name":"issuer","type":"address","indexed":true},
		{"name":"capability","type":"string","indexed":false}]},
	{"type":"event","name":"ProposalCreated","anonymous":false,"inputs":[
		{"name":"proposalId","type":"uint256","indexed":false},
		{"name":"proposer","type":"address","indexed":false},
		{"name":"category","type":"string","indexed":false},
		{"name":"voteStart","type":"uint64","indexed":false},
		{"name":"voteEnd","type":"uint64","indexed":false},
		{"name":"quorums","type":"uint256[3]","indexed":false}]},
	{"type":"event","name":"VoteCast","anonymous":false,"inputs":[
		{"name":"voter","type":"address","indexed":true},
		{"name":"proposalId","type":"uint256","indexed":false},
		{"name":"support","type":"uint8","indexed":false},
		{"name":"weight","type":"uint256","indexed":false},
		{"name":"house","type":"uint8","indexed":false}]},
	{"type":"event","name":"ProposalCanceled","anonymous":false,"inputs":[
		{"name":"proposalId","type":"uint256","indexed":false}]},
	{"type":"event","name":"ProposalQueued","anonymous":false,"inputs":[
		{"name":"proposalId","type":"uint256","indexed":false},
		{"name":"eta","type":"uint256","indexed":false}]},
	{"type":"event","name":"ProposalExecuted","anonymous":false,"inputs":[
		{"name":"proposalId","type":"uint256","indexed":false}]}
]`

// eventTypes maps ABI event names to registry event types
var eventTypes = map[string]domain.EventType{
	"Transfer":          domain.EventTypeTransfer,
	"StateChanged":      domain.EventTypeStateChanged,
	"AssetFlagged":      domain.EventTypeAssetFlagged,
	"AssetResolved":     domain.EventTypeAssetResolved,
	"BadgeGranted":      domain.EventTypeBadgeGranted,
	"BadgeRevoked":      domain.EventTypeBadgeRevoked,
	"CapabilityGranted": domain.EventTypeCapabilityGranted,
	"CapabilityRevoked": domain.EventTypeCapabilityRevoked,
	"ProposalCreated":   domain.EventTypeProposalCreated,
	"VoteCast":          domain.EventTypeVoteCast,
	"ProposalCanceled":  domain.EventTypeProposalCanceled,
	"ProposalQueued":    domain.EventTypeProposalQueued,
	"ProposalExecuted":  domain.EventTypeProposalExecuted,
}

// logDecoder decodes registry logs into typed payloads
type logDecoder struct {
	abi abi.ABI
}

func newLogDecoder() (*logDecoder, error) {
	parsed, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry ABI: %w", err)
	}
	return &logDecoder{abi: parsed}, nil
}

// topics returns the first topic of every registry event, for log filters
func (d *logDecoder) topics() []common.Hash {
	hashes := make([]common.Hash, 0, len(d.abi.Events))
	for _, ev := range d.abi.Events {
		hashes = append(hashes, ev.ID)
	}
	return hashes
}

// decode returns the event type and payload of a registry log
func (d *logDecoder) decode(vLog types.Log) (domain.EventType, interface{}, error) {
	if len(vLog.Topics) == 0 {
		return "", nil, fmt.Errorf("%w: log without topics", domain.ErrUnknownEventType)
	}

	ev, err := d.abi.EventByID(vLog.Topics[0])
	if err != nil {
		return "", nil, fmt.Errorf("%w: signature %s", domain.ErrUnknownEventType, vLog.Topics[0].Hex())
	}

	var indexed abi.Arguments
	for _, input := range ev.Inputs {
		if input.Indexed {
			indexed = append(indexed, input)
		}
	}
	if len(vLog.Topics)-1 != len(indexed) {
		// An ERC20 Transfer shares the ERC721 signature with one topic less
		return "", nil, fmt.Errorf("%w: %s expects %d indexed topics, got %d",
			domain.ErrInvalidEvent, ev.Name, len(indexed), len(vLog.Topics)-1)
	}

	fields := make(map[string]interface{}, len(ev.Inputs))
	if err := abi.ParseTopicsIntoMap(fields, indexed, vLog.Topics[1:]); err != nil {
		return "", nil, fmt.Errorf("%w: %s topics: %v", domain.ErrInvalidEvent, ev.Name, err)
	}
	if err := ev.Inputs.UnpackIntoMap(fields, vLog.Data); err != nil {
		return "", nil, fmt.Errorf("%w: %s data: %v", domain.ErrInvalidEvent, ev.Name, err)
	}

	eventType := eventTypes[ev.Name]
	payload, err := buildPayload(eventType, fields)
	if err != nil {
		return "", nil, err
	}
	return eventType, payload, nil
}

func buildPayload(eventType domain.EventType, f map[string]interface{}) (interface{}, error) {
	switch eventType {
	case domain.EventTypeTransfer:
		return &domain.TransferPayload{
			From:    address(f["from"]),
			To:      address(f["to"]),
			TokenID: number(f["tokenId"]),
		}, nil

	case domain.EventTypeStateChanged:
		oldState, err := domain.AssetStateFromIndex(f["oldState"].(uint8))
		if err != nil {
			return nil, err
		}
		newState, err := domain.AssetStateFromIndex(f["newState"].(uint8))
		if err != nil {
			return nil, err
		}
		return &domain.StateChangedPayload{
			TokenID:  number(f["tokenId"]),
			OldState: oldState,
			NewState: newState,
		}, nil

	case domain.EventTypeAssetFlagged:
		return &domain.AssetFlaggedPayload{
			TokenID:  number(f["tokenId"]),
			Reporter: address(f["reporter"]),
			Reason:   f["reason"].(string),
		}, nil

	case domain.EventTypeAssetResolved:
		resolution, err := domain.ResolutionTypeFromIndex(f["resolution"].(uint8))
		if err != nil {
			return nil, err
		}
		return &domain.AssetResolvedPayload{
			TokenID:    number(f["tokenId"]),
			Resolver:   address(f["resolver"]),
			Resolution: resolution,
		}, nil

	case domain.EventTypeBadgeGranted, domain.EventTypeBadgeRevoked:
		return &domain.BadgePayload{
			Subject: address(f["subject"]),
			Issuer:  address(f["issuer"]),
			BadgeID: number(f["badgeId"]),
		}, nil

	case domain.EventTypeCapabilityGranted, domain.EventTypeCapabilityRevoked:
		return &domain.CapabilityPayload{
			Subject:    address(f["subject"]),
			Issuer:     address(f["issuer"]),
			Capability: f["capability"].(string),
		}, nil

	case domain.EventTypeProposalCreated:
		quorums := f["quorums"].([3]*big.Int)
		p := &domain.ProposalCreatedPayload{
			ProposalID: number(f["proposalId"]),
			Proposer:   address(f["proposer"]),
			Category:   f["category"].(string),
			StartTime:  int64(f["voteStart"].(uint64)), //nolint:gosec
			EndTime:    int64(f["voteEnd"].(uint64)),   //nolint:gosec
			Quorums:    make(map[string]string, domain.HouseCount),
		}
		for _, h := range domain.Houses() {
			p.Quorums[h.String()] = quorums[h].String()
		}
		return p, nil

	case domain.EventTypeVoteCast:
		support, err := domain.VoteSupportFromIndex(f["support"].(uint8))
		if err != nil {
			return nil, err
		}
		house := domain.House(f["house"].(uint8))
		if !house.Valid() {
			return nil, fmt.Errorf("%w: unknown house %d", domain.ErrInvalidEvent, uint8(house))
		}
		return &domain.VoteCastPayload{
			ProposalID: number(f["proposalId"]),
			Voter:      address(f["voter"]),
			Support:    support,
			Weight:     number(f["weight"]),
			House:      house,
		}, nil

	case domain.EventTypeProposalCanceled, domain.EventTypeProposalExecuted:
		return &domain.ProposalPayload{ProposalID: number(f["proposalId"])}, nil

	case domain.EventTypeProposalQueued:
		return &domain.ProposalPayload{
			ProposalID: number(f["proposalId"]),
			ETA:        f["eta"].(*big.Int).Int64(),
		}, nil
	}

	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownEventType, eventType)
}

func address(v interface{}) string {
	return v.(common.Address).Hex()
}

func number(v interface{}) string {
	return v.(*big.Int).String()
}
