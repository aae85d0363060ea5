package services

import (
	"context"
	"sort"
	"strings"
	"sync"

	"balance-aggregator/internal/models"
)

// ChainAdapter sums token balances for one chain or a family of chains.
// The request it receives is already normalized: owners, tokens and pairs are
// canonical, deduplicated, and blacklisted tokens are removed from Tokens.
type ChainAdapter interface {
	SumTokens(ctx context.Context, req *models.SumRequest) (models.Balances, error)
}

// HealthChecker is implemented by adapters that can probe their upstream
type HealthChecker interface {
	IsHealthy(ctx context.Context) error
}

// BalanceOnlyResolver sums the native balance of owners on chains that have no full adapter.
// The result is keyed by the chain's external coin id.
type BalanceOnlyResolver interface {
	Supports(chain string) bool
	SumNative(ctx context.Context, chain string, owners []string, balances models.Balances) error
}

// Registry maps chain identifiers to adapters. Several chains may share one adapter instance.
type Registry struct {
	adapters map[string]ChainAdapter
	mutex    sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]ChainAdapter)}
}

// Register binds chain to adapter, replacing any previous binding
func (r *Registry) Register(chain string, adapter ChainAdapter) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.adapters[strings.ToLower(chain)] = adapter
}

// RegisterFamily binds every chain in chains to the same adapter instance
func (r *Registry) RegisterFamily(chains []string, adapter ChainAdapter) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for _, chain := range chains {
		r.adapters[strings.ToLower(chain)] = adapter
	}
}

// Lookup returns the adapter for chain, or false when none is registered
func (r *Registry) Lookup(chain string) (ChainAdapter, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	adapter, ok := r.adapters[strings.ToLower(chain)]
	return adapter, ok
}

// Chains lists the registered chain identifiers in lexical order
func (r *Registry) Chains() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	chains := make([]string, 0, len(r.adapters))
	for chain := range r.adapters {
		chains = append(chains, chain)
	}
	sort.Strings(chains)
	return chains
}

// HealthCheckers returns the distinct adapters that can be probed, keyed by one of their chains
func (r *Registry) HealthCheckers() map[string]HealthChecker {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make(map[string]HealthChecker)
	seen := make(map[ChainAdapter]bool)
	chains := make([]string, 0, len(r.adapters))
	for chain := range r.adapters {
		chains = append(chains, chain)
	}
	sort.Strings(chains)
	for _, chain := range chains {
		adapter := r.adapters[chain]
		if seen[adapter] {
			continue
		}
		seen[adapter] = true
		if hc, ok := adapter.(HealthChecker); ok {
			out[chain] = hc
		}
	}
	return out
}

// TokenMapper rewrites adapter-native token ids into the ids the ledger is reported in
type TokenMapper interface {
	MapBalances(balances models.Balances) models.Balances
}

// IdentityMapper keeps token ids unchanged
type IdentityMapper struct{}

// MapBalances returns balances unchanged
func (IdentityMapper) MapBalances(balances models.Balances) models.Balances {
	return balances
}

// PrefixTokenMapper maps known ids through Mapping and prefixes the rest.
// Two native ids mapping to the same external id are summed.
type PrefixTokenMapper struct {
	Mapping map[string]string
	Prefix  string
}

// MapBalances returns a new ledger with every id rewritten
func (m PrefixTokenMapper) MapBalances(balances models.Balances) models.Balances {
	out := models.NewBalances()
	for token, amount := range balances {
		if mapped, ok := m.Mapping[token]; ok {
			out.Add(mapped, amount)
			continue
		}
		out.Add(m.Prefix+token, amount)
	}
	return out
}

// NewTokenMapper returns IdentityMapper when there is nothing to map
func NewTokenMapper(mapping map[string]string, prefix string) TokenMapper {
	if len(mapping) == 0 && prefix == "" {
		return IdentityMapper{}
	}
	return PrefixTokenMapper{Mapping: mapping, Prefix: prefix}
}
