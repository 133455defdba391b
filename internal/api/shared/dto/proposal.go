package dto

import (
	"time"

	"github.com/feral-file/ff-asset-aggregator/internal/domain"
	"github.com/feral-file/ff-asset-aggregator/internal/governance"
	"github.com/feral-file/ff-asset-aggregator/internal/store/schema"
)

// HouseTallyResponse represents the tally of one house
type HouseTallyResponse struct {
	House         string `json:"house"`
	For           string `json:"for"`
	Against       string `json:"against"`
	Abstain       string `json:"abstain"`
	Quorum        string `json:"quorum"`
	Votes         int    `json:"votes"`
	QuorumReached bool   `json:"quorum_reached"`
}

// ProposalTransitionResponse represents an explicit state event of a proposal
type ProposalTransitionResponse struct {
	EventRefResponse
	State domain.ProposalState `json:"state"`
	ETA   *time.Time           `json:"eta,omitempty"`
}

// ProposalResponse represents a proposal with its tally and derived state
type ProposalResponse struct {
	ProposalID    string                       `json:"proposal_id"`
	Proposer      string                       `json:"proposer"`
	Category      string                       `json:"category"`
	StartTime     time.Time                    `json:"start_time"`
	EndTime       time.Time                    `json:"end_time"`
	ETA           *time.Time                   `json:"eta,omitempty"`
	State         domain.ProposalState         `json:"state"`
	Policy        string                       `json:"policy"`
	QuorumReached bool                         `json:"quorum_reached"`
	Passed        bool                         `json:"passed"`
	ForVotes      string                       `json:"for_votes"`
	AgainstVotes  string                       `json:"against_votes"`
	AbstainVotes  string                       `json:"abstain_votes"`
	Houses        []HouseTallyResponse         `json:"houses"`
	Transitions   []ProposalTransitionResponse `json:"transitions"`
}

// MapProposalToDTO maps a proposal, its evaluation and its transitions to ProposalResponse
func MapProposalToDTO(p *schema.Proposal, eval *governance.Evaluation, transitions []schema.ProposalTransition) *ProposalResponse {
	resp := &ProposalResponse{
		ProposalID:    p.ProposalID,
		Proposer:      p.Proposer,
		Category:      p.Category,
		StartTime:     p.StartTime,
		EndTime:       p.EndTime,
		ETA:           p.ETA,
		State:         eval.State,
		Policy:        eval.Policy,
		QuorumReached: eval.Outcome.QuorumReached,
		Passed:        eval.Outcome.Passed,
		ForVotes:      p.ForVotes,
		AgainstVotes:  p.AgainstVotes,
		AbstainVotes:  p.AbstainVotes,
		Houses:        make([]HouseTallyResponse, 0, len(eval.Results)),
		Transitions:   make([]ProposalTransitionResponse, len(transitions)),
	}
	for _, r := range eval.Results {
		resp.Houses = append(resp.Houses, HouseTallyResponse{
			House:         r.House.String(),
			For:           r.For.String(),
			Against:       r.Against.String(),
			Abstain:       r.Abstain.String(),
			Quorum:        r.Quorum.String(),
			Votes:         r.Votes,
			QuorumReached: r.QuorumReached,
		})
	}
	for i, t := range transitions {
		resp.Transitions[i] = ProposalTransitionResponse{
			EventRefResponse: MapEventRefToDTO(t.EventRef),
			State:            t.State,
			ETA:              t.ETA,
		}
	}
	return resp
}
