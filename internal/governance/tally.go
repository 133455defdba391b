package governance

import (
	"fmt"
	"math/big"

	"github.com/feral-file/ff-asset-aggregator/internal/domain"
	"github.com/feral-file/ff-asset-aggregator/internal/store/schema"
)

// HouseQuorums maps every house to its quorum threshold
type HouseQuorums [domain.HouseCount]*big.Int

// Vote is the part of a stored vote the tally looks at
type Vote struct {
	House   domain.House
	Support domain.VoteSupport
	Weight  *big.Int
}

// HouseResult is the tally of one house
type HouseResult struct {
	House         domain.House
	For           *big.Int
	Against       *big.Int
	Abstain       *big.Int
	Quorum        *big.Int
	Votes         int
	QuorumReached bool
}

// Total returns the weight cast in the house
func (r HouseResult) Total() *big.Int {
	total := new(big.Int).Add(r.For, r.Against)
	return total.Add(total, r.Abstain)
}

// Results holds one result per house, indexed by house
type Results [domain.HouseCount]HouseResult

// Tally sums vote weights per house and support and checks each house against its quorum.
// A house reaches quorum when for + against + abstain >= quorum. Votes of unknown houses
// or with unknown support are ignored.
func Tally(votes []Vote, quorums HouseQuorums) Results {
	var results Results
	for _, h := range domain.Houses() {
		quorum := quorums[h]
		if quorum == nil {
			quorum = new(big.Int)
		}
		results[h] = HouseResult{
			House:   h,
			For:     new(big.Int),
			Against: new(big.Int),
			Abstain: new(big.Int),
			Quorum:  new(big.Int).Set(quorum),
		}
	}

	for _, v := range votes {
		if !v.House.Valid() || v.Weight == nil {
			continue
		}
		r := &results[v.House]
		switch v.Support {
		case domain.VoteFor:
			r.For.Add(r.For, v.Weight)
		case domain.VoteAgainst:
			r.Against.Add(r.Against, v.Weight)
		case domain.VoteAbstain:
			r.Abstain.Add(r.Abstain, v.Weight)
		default:
			continue
		}
		r.Votes++
	}

	for i := range results {
		results[i].QuorumReached = results[i].Total().Cmp(results[i].Quorum) >= 0
	}
	return results
}

// Aggregate sums the per house results across every house
func (rs Results) Aggregate() (forVotes, against, abstain *big.Int) {
	forVotes, against, abstain = new(big.Int), new(big.Int), new(big.Int)
	for _, r := range rs {
		forVotes.Add(forVotes, r.For)
		against.Add(against, r.Against)
		abstain.Add(abstain, r.Abstain)
	}
	return forVotes, against, abstain
}

// VotesFromRecords converts stored votes for tallying
func VotesFromRecords(records []schema.Vote) ([]Vote, error) {
	votes := make([]Vote, 0, len(records))
	for _, r := range records {
		weight, err := domain.ParseAmount(r.Weight)
		if err != nil {
			return nil, fmt.Errorf("failed to parse weight of vote %s:%d: %w", r.TxHash, r.LogIndex, err)
		}
		votes = append(votes, Vote{House: r.House, Support: r.Support, Weight: weight})
	}
	return votes, nil
}

// QuorumsFromProposal parses the per house quorums of a stored proposal
func QuorumsFromProposal(p *schema.Proposal) (HouseQuorums, error) {
	var quorums HouseQuorums
	raw := p.Quorums()
	for _, h := range domain.Houses() {
		n, err := domain.ParseAmount(raw[h])
		if err != nil {
			return quorums, fmt.Errorf("failed to parse quorum of house %s: %w", h, err)
		}
		quorums[h] = n
	}
	return quorums, nil
}
