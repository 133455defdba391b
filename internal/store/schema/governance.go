package schema

import (
	"time"

	"github.com/feral-file/ff-asset-aggregator/internal/domain"
)

// Proposal represents the proposals table - the current state of a governance proposal
type Proposal struct {
	// ProposalID is the canonical decimal proposal identifier
	ProposalID string `gorm:"column:proposal_id;primaryKey;type:text"`
	Proposer   string `gorm:"column:proposer;not null;type:text"`
	// Category selects the outcome policy
	Category  string    `gorm:"column:category;not null;type:text;default:''"`
	StartTime time.Time `gorm:"column:start_time;not null"`
	EndTime   time.Time `gorm:"column:end_time;not null"`
	// Per house quorums as decimal strings
	QuorumToken     string `gorm:"column:quorum_token;not null;type:text;default:'0'"`
	QuorumBrand     string `gorm:"column:quorum_brand;not null;type:text;default:'0'"`
	QuorumTechnical string `gorm:"column:quorum_technical;not null;type:text;default:'0'"`
	// Running tallies across all houses as decimal strings
	ForVotes     string `gorm:"column:for_votes;not null;type:text;default:'0'"`
	AgainstVotes string `gorm:"column:against_votes;not null;type:text;default:'0'"`
	AbstainVotes string `gorm:"column:abstain_votes;not null;type:text;default:'0'"`
	// ExplicitState is set by canceled, queued and executed events; empty otherwise
	ExplicitState domain.ProposalState `gorm:"column:explicit_state;not null;type:text;default:''"`
	ETA           *time.Time           `gorm:"column:eta"`
	// CreatedTxHash and CreatedLogIndex point at the creating event
	CreatedTxHash   string    `gorm:"column:created_tx_hash;not null;type:text"`
	CreatedLogIndex uint64    `gorm:"column:created_log_index;not null"`
	CreatedAt       time.Time `gorm:"column:created_at;not null;autoCreateTime:false"`
	UpdatedAt       time.Time `gorm:"column:updated_at;not null;autoUpdateTime:false"`
}

func (Proposal) TableName() string {
	return "proposals"
}

// Quorums returns the per house quorums indexed by house
func (p *Proposal) Quorums() [domain.HouseCount]string {
	return [domain.HouseCount]string{
		domain.HouseTokenHolder: p.QuorumToken,
		domain.HouseBrand:       p.QuorumBrand,
		domain.HouseTechnical:   p.QuorumTechnical,
	}
}

// SetQuorums stores the per house quorums
func (p *Proposal) SetQuorums(q [domain.HouseCount]string) {
	p.QuorumToken = q[domain.HouseTokenHolder]
	p.QuorumBrand = q[domain.HouseBrand]
	p.QuorumTechnical = q[domain.HouseTechnical]
}

// Vote represents the votes table
type Vote struct {
	EventRef
	ProposalID string             `gorm:"column:proposal_id;not null;type:text;index"`
	Voter      string             `gorm:"column:voter;not null;type:text"`
	Support    domain.VoteSupport `gorm:"column:support;not null;type:text"`
	// Weight is a decimal string
	Weight string       `gorm:"column:weight;not null;type:text"`
	House  domain.House `gorm:"column:house;not null"`
}

func (Vote) TableName() string {
	return "votes"
}

// ProposalTransition represents the proposal_transitions table - explicit proposal state events
type ProposalTransition struct {
	EventRef
	ProposalID string               `gorm:"column:proposal_id;not null;type:text;index"`
	State      domain.ProposalState `gorm:"column:state;not null;type:text"`
	ETA        *time.Time           `gorm:"column:eta"`
}

func (ProposalTransition) TableName() string {
	return "proposal_transitions"
}
