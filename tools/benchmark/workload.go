package main

import (
	"fmt"
	"math/rand"
	"strconv"

	"github.com/feral-file/ff-asset-aggregator/internal/domain"
)

const benchmarkContract = "0x000000000000000000000000000000000000bec4"

// Workload describes the synthetic event stream to generate
type Workload struct {
	Assets       int
	Users        int
	Transfers    int
	StateChanges int
	Seed         int64
}

// generator tracks the fold of the stream it emits so every event it
// produces is a legal move
type generator struct {
	rng     *rand.Rand
	block   uint64
	owners  []string
	states  []domain.AssetState
	users   []string
	events  []*domain.Event
	baseSec int64
}

// generateEvents builds a deterministic stream: every asset is minted, then transfers
// and lifecycle moves are interleaved at random. Each event sits in its own block.
func generateEvents(w Workload) ([]*domain.Event, error) {
	if w.Assets < 1 || w.Users < 1 {
		return nil, fmt.Errorf("assets and users must be at least 1")
	}

	g := &generator{
		rng:     rand.New(rand.NewSource(w.Seed)), //nolint:gosec
		owners:  make([]string, w.Assets),
		states:  make([]domain.AssetState, w.Assets),
		users:   make([]string, w.Users),
		baseSec: 1717200000,
	}
	for i := range g.users {
		g.users[i] = fmt.Sprintf("0x%040x", i+1)
	}

	for i := 0; i < w.Assets; i++ {
		to := g.users[g.rng.Intn(len(g.users))]
		if err := g.emit(domain.EventTypeTransfer, domain.TransferPayload{
			From:    domain.ETHEREUM_ZERO_ADDRESS,
			To:      to,
			TokenID: tokenID(i),
		}); err != nil {
			return nil, err
		}
		g.owners[i] = to
		g.states[i] = domain.AssetStateMinted
	}

	transfers, changes := w.Transfers, w.StateChanges
	for transfers+changes > 0 {
		if changes == 0 || (transfers > 0 && g.rng.Intn(transfers+changes) < transfers) {
			if err := g.transfer(); err != nil {
				return nil, err
			}
			transfers--
			continue
		}
		if err := g.stateChange(); err != nil {
			return nil, err
		}
		changes--
	}

	return g.events, nil
}

func (g *generator) transfer() error {
	i := g.rng.Intn(len(g.owners))
	to := g.users[g.rng.Intn(len(g.users))]
	if err := g.emit(domain.EventTypeTransfer, domain.TransferPayload{
		From:    g.owners[i],
		To:      to,
		TokenID: tokenID(i),
	}); err != nil {
		return err
	}
	g.owners[i] = to
	return nil
}

func (g *generator) stateChange() error {
	i := g.rng.Intn(len(g.states))
	next := nextState(g.states[i], g.rng)
	if next == "" {
		// Recycled assets have no forward move; a transfer keeps the count
		return g.transfer()
	}
	if err := g.emit(domain.EventTypeStateChanged, domain.StateChangedPayload{
		TokenID:  tokenID(i),
		OldState: g.states[i],
		NewState: next,
	}); err != nil {
		return err
	}
	g.states[i] = next
	return nil
}

func (g *generator) emit(eventType domain.EventType, payload interface{}) error {
	g.block++
	e, err := domain.NewEvent(eventType, domain.Position{BlockNumber: g.block}, fmt.Sprintf("0x%064x", g.block), g.baseSec+int64(g.block)*12, payload)
	if err != nil {
		return err
	}
	e.Chain = domain.ChainEthereumMainnet
	e.ContractAddress = benchmarkContract
	g.events = append(g.events, e)
	return nil
}

// nextState picks a legal successor of s, empty when there is none
func nextState(s domain.AssetState, rng *rand.Rand) domain.AssetState {
	var candidates []domain.AssetState
	for _, next := range domain.AssetStates {
		if s.CanTransition(next) {
			candidates = append(candidates, next)
		}
	}
	if len(candidates) == 0 {
		return ""
	}
	return candidates[rng.Intn(len(candidates))]
}

func tokenID(i int) string {
	return strconv.Itoa(i + 1)
}
