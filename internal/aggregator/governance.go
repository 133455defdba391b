package aggregator

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/feral-file/ff-asset-aggregator/internal/domain"
	"github.com/feral-file/ff-asset-aggregator/internal/logger"
	"github.com/feral-file/ff-asset-aggregator/internal/store"
	"github.com/feral-file/ff-asset-aggregator/internal/store/schema"
)

// applyProposalCreated creates a proposal with its per house quorums
func (a *aggregator) applyProposalCreated(ctx context.Context, tx store.Tx, e *domain.Event, ref schema.EventRef) (*anomaly, error) {
	p, err := e.ProposalCreatedPayload()
	if err != nil {
		return invalidPayload(err), nil
	}

	existing, err := tx.GetProposal(ctx, p.ProposalID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &anomaly{
			kind:   schema.AnomalyKindConflict,
			detail: fmt.Sprintf("proposal %s was already created by %s:%d", p.ProposalID, existing.CreatedTxHash, existing.CreatedLogIndex),
		}, nil
	}

	at := e.Time()
	proposal := &schema.Proposal{
		ProposalID:      p.ProposalID,
		Proposer:        p.Proposer,
		Category:        p.Category,
		StartTime:       time.Unix(p.StartTime, 0).UTC(),
		EndTime:         time.Unix(p.EndTime, 0).UTC(),
		ForVotes:        "0",
		AgainstVotes:    "0",
		AbstainVotes:    "0",
		CreatedTxHash:   ref.TxHash,
		CreatedLogIndex: ref.LogIndex,
		CreatedAt:       at,
		UpdatedAt:       at,
	}
	var quorums [domain.HouseCount]string
	for _, h := range domain.Houses() {
		quorums[h] = p.Quorum(h)
	}
	proposal.SetQuorums(quorums)

	created, err := tx.CreateProposal(ctx, proposal)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, errRaced
	}

	delta := store.StatsDelta{TotalProposals: 1}
	if err := a.users(tx, e, &delta).touch(ctx, p.Proposer, store.UserDelta{}); err != nil {
		return nil, err
	}
	return nil, a.adjustStats(ctx, tx, e, delta, store.DailyDelta{})
}

// applyVoteCast records a vote and adds its weight to the running tallies of the proposal
func (a *aggregator) applyVoteCast(ctx context.Context, tx store.Tx, e *domain.Event, ref schema.EventRef) (*anomaly, error) {
	p, err := e.VoteCastPayload()
	if err != nil {
		return invalidPayload(err), nil
	}

	proposal, err := tx.GetProposalForUpdate(ctx, p.ProposalID)
	if err != nil {
		return nil, err
	}
	if proposal == nil {
		return &anomaly{
			kind:   schema.AnomalyKindUnknownProposal,
			detail: fmt.Sprintf("vote on unknown proposal %s", p.ProposalID),
		}, nil
	}

	at := e.Time()
	if at.Before(proposal.StartTime) || at.After(proposal.EndTime) {
		logger.Anomaly(ctx, "vote_outside_window", "Vote cast outside the voting window",
			zap.String("proposalID", p.ProposalID),
			zap.String("voter", p.Voter),
			zap.Time("at", at),
		)
	}

	if err := insertRecord(ctx, tx, &schema.Vote{
		EventRef:   ref,
		ProposalID: p.ProposalID,
		Voter:      p.Voter,
		Support:    p.Support,
		Weight:     p.Weight,
		House:      p.House,
	}); err != nil {
		return nil, err
	}

	tally := map[domain.VoteSupport]*string{
		domain.VoteFor:     &proposal.ForVotes,
		domain.VoteAgainst: &proposal.AgainstVotes,
		domain.VoteAbstain: &proposal.AbstainVotes,
	}[p.Support]
	sum, err := addAmounts(*tally, p.Weight)
	if err != nil {
		return nil, err
	}
	*tally = sum
	proposal.UpdatedAt = at
	if err := tx.UpdateProposal(ctx, proposal); err != nil {
		return nil, err
	}

	delta := store.StatsDelta{TotalVotes: 1}
	if err := a.users(tx, e, &delta).touch(ctx, p.Voter, store.UserDelta{}); err != nil {
		return nil, err
	}
	return nil, a.adjustStats(ctx, tx, e, delta, store.DailyDelta{})
}

// applyProposalTransition records a canceled, queued or executed proposal event
func (a *aggregator) applyProposalTransition(ctx context.Context, tx store.Tx, e *domain.Event, ref schema.EventRef) (*anomaly, error) {
	p, err := e.ProposalPayload()
	if err != nil {
		return invalidPayload(err), nil
	}

	proposal, err := tx.GetProposalForUpdate(ctx, p.ProposalID)
	if err != nil {
		return nil, err
	}
	if proposal == nil {
		return &anomaly{
			kind:   schema.AnomalyKindUnknownProposal,
			detail: fmt.Sprintf("%s of unknown proposal %s", e.Type, p.ProposalID),
		}, nil
	}

	state := map[domain.EventType]domain.ProposalState{
		domain.EventTypeProposalCanceled: domain.ProposalStateCanceled,
		domain.EventTypeProposalQueued:   domain.ProposalStateQueued,
		domain.EventTypeProposalExecuted: domain.ProposalStateExecuted,
	}[e.Type]

	var eta *time.Time
	if p.ETA > 0 {
		t := time.Unix(p.ETA, 0).UTC()
		eta = &t
	}

	if err := insertRecord(ctx, tx, &schema.ProposalTransition{
		EventRef:   ref,
		ProposalID: p.ProposalID,
		State:      state,
		ETA:        eta,
	}); err != nil {
		return nil, err
	}

	if proposal.ExplicitState == domain.ProposalStateCanceled || proposal.ExplicitState == domain.ProposalStateExecuted {
		logger.Anomaly(ctx, "final_proposal_transition", "Transition of a proposal that already reached a final state",
			zap.String("proposalID", p.ProposalID),
			zap.String("state", string(proposal.ExplicitState)),
			zap.String("next", string(state)),
		)
	}
	proposal.ExplicitState = state
	if eta != nil {
		proposal.ETA = eta
	}
	proposal.UpdatedAt = e.Time()
	if err := tx.UpdateProposal(ctx, proposal); err != nil {
		return nil, err
	}

	return nil, a.adjustStats(ctx, tx, e, store.StatsDelta{}, store.DailyDelta{})
}

// addAmounts adds two decimal amounts
func addAmounts(x, y string) (string, error) {
	a, err := domain.ParseAmount(x)
	if err != nil {
		return "", err
	}
	b, err := domain.ParseAmount(y)
	if err != nil {
		return "", err
	}
	return new(big.Int).Add(a, b).String(), nil
}
