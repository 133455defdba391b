package governance

import (
	"fmt"

	"github.com/feral-file/ff-asset-aggregator/internal/config"
	"github.com/feral-file/ff-asset-aggregator/internal/domain"
)

// Policy names
const (
	PolicyAllHousesMajority  = "all_houses_majority"
	PolicyTokenHouseMajority = "token_house_majority"
	PolicyAnyHouseMajority   = "any_house_majority"
)

// Outcome is the whole-proposal decision of a policy
type Outcome struct {
	QuorumReached bool
	Passed        bool
}

// Policy combines house results into a whole-proposal outcome
type Policy interface {
	Name() string
	Decide(results Results) Outcome
}

type policyFunc struct {
	name   string
	decide func(Results) Outcome
}

func (p policyFunc) Name() string                   { return p.name }
func (p policyFunc) Decide(results Results) Outcome { return p.decide(results) }

// AllHousesMajority requires every house to reach quorum and more for than against weight across all houses
var AllHousesMajority Policy = policyFunc{
	name: PolicyAllHousesMajority,
	decide: func(rs Results) Outcome {
		reached := true
		for _, r := range rs {
			reached = reached && r.QuorumReached
		}
		forVotes, against, _ := rs.Aggregate()
		return Outcome{QuorumReached: reached, Passed: reached && forVotes.Cmp(against) > 0}
	},
}

// TokenHouseMajority decides on the token holder house alone
var TokenHouseMajority Policy = policyFunc{
	name: PolicyTokenHouseMajority,
	decide: func(rs Results) Outcome {
		r := rs[domain.HouseTokenHolder]
		return Outcome{QuorumReached: r.QuorumReached, Passed: r.QuorumReached && r.For.Cmp(r.Against) > 0}
	},
}

// AnyHouseMajority requires at least one house to reach quorum and more for than against weight across all houses
var AnyHouseMajority Policy = policyFunc{
	name: PolicyAnyHouseMajority,
	decide: func(rs Results) Outcome {
		reached := false
		for _, r := range rs {
			reached = reached || r.QuorumReached
		}
		forVotes, against, _ := rs.Aggregate()
		return Outcome{QuorumReached: reached, Passed: reached && forVotes.Cmp(against) > 0}
	},
}

// PolicyByName returns a built-in policy
func PolicyByName(name string) (Policy, error) {
	switch name {
	case PolicyAllHousesMajority:
		return AllHousesMajority, nil
	case PolicyTokenHouseMajority:
		return TokenHouseMajority, nil
	case PolicyAnyHouseMajority:
		return AnyHouseMajority, nil
	}
	return nil, fmt.Errorf("unknown governance policy %q", name)
}

// Policies selects the policy of a proposal by its category
type Policies struct {
	Default    Policy
	ByCategory map[string]Policy
}

// NewPolicies builds the policy selection from configuration
func NewPolicies(cfg config.GovernanceConfig) (*Policies, error) {
	def, err := PolicyByName(cfg.DefaultPolicy)
	if err != nil {
		return nil, err
	}

	policies := &Policies{Default: def, ByCategory: make(map[string]Policy, len(cfg.CategoryPolicies))}
	for category, name := range cfg.CategoryPolicies {
		p, err := PolicyByName(name)
		if err != nil {
			return nil, fmt.Errorf("category %q: %w", category, err)
		}
		policies.ByCategory[category] = p
	}
	return policies, nil
}

// For returns the policy of a category, falling back to the default
func (p *Policies) For(category string) Policy {
	if policy, ok := p.ByCategory[category]; ok {
		return policy
	}
	return p.Default
}
