package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/feral-file/ff-asset-aggregator/internal/adapter"
	"github.com/feral-file/ff-asset-aggregator/internal/domain"
)

// Allowlist defines the contracts whose events are accepted
//
//go:generate mockgen -source=allowlist.go -destination=../mocks/allowlist.go -package=mocks -mock_names=Allowlist=MockAllowlist,AllowlistLoader=MockAllowlistLoader
type Allowlist interface {
	// IsAllowed checks if a contract address is accepted for a given chain
	IsAllowed(chainID domain.Chain, contractAddress string) bool

	// Contracts returns the checksummed contract addresses of a chain, sorted
	Contracts(chainID domain.Chain) []string
}

// AllowlistLoader loads an allowlist from a file
type AllowlistLoader interface {
	Load(filePath string) (Allowlist, error)
}

// AllowlistData represents the structure of the allowlist JSON file
// Key format: "chain_id" -> list of contract addresses
type AllowlistData map[string][]string

// allowlist is the internal implementation of Allowlist.
// A nil *allowlist accepts every contract.
type allowlist struct {
	// Fast lookup map: "chain:contract" -> true
	contracts map[string]bool
	// Checksummed addresses per lowercased chain
	byChain map[string][]string
}

type allowlistLoader struct {
	fs   adapter.FileSystem
	json adapter.JSON
}

// NewAllowlistLoader creates a loader reading through the given adapters
func NewAllowlistLoader(fs adapter.FileSystem, json adapter.JSON) AllowlistLoader {
	return &allowlistLoader{fs: fs, json: json}
}

// Load loads the allowlist from a JSON file
func (l *allowlistLoader) Load(filePath string) (Allowlist, error) {
	data, err := l.fs.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read allowlist file: %w", err)
	}

	var allowlistData AllowlistData
	if err := l.json.Unmarshal(data, &allowlistData); err != nil {
		return nil, fmt.Errorf("failed to parse allowlist JSON: %w", err)
	}

	return NewAllowlist(allowlistData)
}

// NewAllowlist builds an allowlist, rejecting malformed addresses
func NewAllowlist(data AllowlistData) (Allowlist, error) {
	al := &allowlist{
		contracts: make(map[string]bool),
		byChain:   make(map[string][]string),
	}

	for chainID, addresses := range data {
		chain := strings.ToLower(chainID)
		for _, addr := range addresses {
			normalized, err := domain.ParseAddress(addr)
			if err != nil {
				return nil, fmt.Errorf("invalid contract address for %s: %w", chainID, err)
			}
			key := lookupKey(chain, normalized)
			if al.contracts[key] {
				continue
			}
			al.contracts[key] = true
			al.byChain[chain] = append(al.byChain[chain], normalized)
		}
		sort.Strings(al.byChain[chain])
	}

	return al, nil
}

// IsAllowed checks if a contract address is accepted for a given chain
func (a *allowlist) IsAllowed(chainID domain.Chain, contractAddress string) bool {
	if a == nil {
		return true
	}
	return a.contracts[lookupKey(strings.ToLower(string(chainID)), contractAddress)]
}

// Contracts returns the checksummed contract addresses of a chain
func (a *allowlist) Contracts(chainID domain.Chain) []string {
	if a == nil {
		return nil
	}
	return a.byChain[strings.ToLower(string(chainID))]
}

func lookupKey(chain, address string) string {
	return fmt.Sprintf("%s:%s", chain, strings.ToLower(address))
}

// AllowAll returns an allowlist accepting every contract
func AllowAll() Allowlist {
	return (*allowlist)(nil)
}
