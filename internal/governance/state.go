package governance

import (
	"time"

	"github.com/feral-file/ff-asset-aggregator/internal/domain"
	"github.com/feral-file/ff-asset-aggregator/internal/store/schema"
)

// Evaluation is the tally, outcome and derived state of a proposal at a point in time
type Evaluation struct {
	Results Results
	Outcome Outcome
	Policy  string
	State   domain.ProposalState
}

// DeriveState returns the state of a proposal at now.
// Canceled and executed are final. A queued proposal expires once its ETA plus the
// grace period has passed. Otherwise the voting window and the policy outcome decide.
func DeriveState(p *schema.Proposal, outcome Outcome, now time.Time, grace time.Duration) domain.ProposalState {
	switch p.ExplicitState {
	case domain.ProposalStateCanceled, domain.ProposalStateExecuted:
		return p.ExplicitState
	case domain.ProposalStateQueued:
		if p.ETA != nil && now.After(p.ETA.Add(grace)) {
			return domain.ProposalStateExpired
		}
		return domain.ProposalStateQueued
	}

	switch {
	case now.Before(p.StartTime):
		return domain.ProposalStatePending
	case !now.After(p.EndTime):
		return domain.ProposalStateActive
	case outcome.Passed:
		return domain.ProposalStateSucceeded
	default:
		return domain.ProposalStateDefeated
	}
}

// Evaluate tallies the stored votes of a proposal and derives its state
func Evaluate(p *schema.Proposal, records []schema.Vote, policy Policy, now time.Time, grace time.Duration) (*Evaluation, error) {
	quorums, err := QuorumsFromProposal(p)
	if err != nil {
		return nil, err
	}
	votes, err := VotesFromRecords(records)
	if err != nil {
		return nil, err
	}

	results := Tally(votes, quorums)
	outcome := policy.Decide(results)
	return &Evaluation{
		Results: results,
		Outcome: outcome,
		Policy:  policy.Name(),
		State:   DeriveState(p, outcome, now, grace),
	}, nil
}
