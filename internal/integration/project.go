package integration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"balance-aggregator/internal/models"
	"balance-aggregator/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// bep2 balances are reported as part of bsc
const (
	bep2Chain = "bep2"
	bscChain  = "bsc"
)

// runParallel bounds how many chains aggregate at once
const runParallel = 4

// ChainConfig is one chain of a project file
type ChainConfig struct {
	Owners            []string            `yaml:"owners"`
	Tokens            []string            `yaml:"tokens"`
	TokensAndOwners   [][]string          `yaml:"tokensAndOwners"`
	BlacklistedTokens []string            `yaml:"blacklistedTokens"`
	LPPositions       []models.LPPosition `yaml:"lpPositions"`
	Block             string              `yaml:"block"`
}

// Project is a named set of wallets to aggregate, keyed by chain
type Project struct {
	Name   string                 `yaml:"name"`
	Chains map[string]ChainConfig `yaml:"chains"`
}

// Aggregator sums one request
type Aggregator interface {
	Aggregate(ctx context.Context, req *models.SumRequest) (models.Balances, error)
}

// LoadProject reads and validates a YAML project file
func LoadProject(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project file: %w", err)
	}
	return ParseProject(data)
}

// ParseProject decodes and validates a YAML project document
func ParseProject(data []byte) (*Project, error) {
	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse project file: %w", err)
	}

	if len(p.Chains) == 0 {
		return nil, errors.New("project defines no chains")
	}

	normalized := make(map[string]ChainConfig, len(p.Chains))
	for chain, cfg := range p.Chains {
		key := strings.ToLower(strings.TrimSpace(chain))
		if key == "" {
			return nil, models.ErrMissingChain
		}
		for i, pair := range cfg.TokensAndOwners {
			if len(pair) != 2 {
				return nil, fmt.Errorf("%w: %s tokensAndOwners[%d] must be [token, owner]", models.ErrInvalidRequest, key, i)
			}
		}
		normalized[key] = cfg
	}
	p.Chains = normalized
	return &p, nil
}

// Only returns a copy of the project restricted to chain. bep2 is kept alongside bsc.
func (p *Project) Only(chain string) (*Project, error) {
	chain = strings.ToLower(strings.TrimSpace(chain))
	cfg, ok := p.Chains[chain]
	if !ok {
		return nil, fmt.Errorf("project %q has no chain %q", p.Name, chain)
	}

	out := &Project{Name: p.Name, Chains: map[string]ChainConfig{chain: cfg}}
	if bep2, ok := p.Chains[bep2Chain]; ok && chain == bscChain {
		out.Chains[bep2Chain] = bep2
	}
	return out, nil
}

// ChainNames returns the project's chains in lexical order
func (p *Project) ChainNames() []string {
	chains := make([]string, 0, len(p.Chains))
	for chain := range p.Chains {
		chains = append(chains, chain)
	}
	sort.Strings(chains)
	return chains
}

// Requests builds one SumRequest per chain in lexical chain order.
// A chain that names neither tokens nor pairs gets its default token list, or the
// native token alone when no default list exists.
func (p *Project) Requests() []*models.SumRequest {
	log := logger.GetLogger()

	reqs := make([]*models.SumRequest, 0, len(p.Chains))
	for _, chain := range p.ChainNames() {
		cfg := p.Chains[chain]

		req := &models.SumRequest{
			Chain:             chain,
			Owners:            cfg.Owners,
			Tokens:            cfg.Tokens,
			BlacklistedTokens: cfg.BlacklistedTokens,
			LPPositions:       cfg.LPPositions,
			Block:             cfg.Block,
		}
		for _, pair := range cfg.TokensAndOwners {
			req.TokensAndOwners = append(req.TokensAndOwners, models.TokenOwner{Token: pair[0], Owner: pair[1]})
		}

		if cfg.Tokens == nil && len(cfg.TokensAndOwners) == 0 {
			tokens, ok := DefaultTokens(chain)
			if !ok {
				log.Warn("Missing default token list, counting only native token balance",
					zap.String("project", p.Name),
					zap.String("chain", chain),
				)
				tokens = []string{models.NullAddress}
			}
			req.Tokens = tokens
		}

		reqs = append(reqs, req)
	}
	return reqs
}

// Result holds per-chain ledgers and per-chain failures of one run
type Result struct {
	Balances map[string]models.Balances
	Errors   map[string]error
}

// Failed reports whether any chain failed
func (r *Result) Failed() bool {
	return len(r.Errors) > 0
}

// Run aggregates every chain of the project. A failing chain is reported in Errors
// and never affects another chain's ledger. bep2 is summed into bsc.
func (p *Project) Run(ctx context.Context, agg Aggregator) *Result {
	log := logger.GetLogger().WithContext(ctx)

	result := &Result{
		Balances: make(map[string]models.Balances, len(p.Chains)),
		Errors:   make(map[string]error),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runParallel)
	for _, req := range p.Requests() {
		req := req
		g.Go(func() error {
			balances, err := agg.Aggregate(logger.ContextWithChain(gctx, req.Chain), req)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors[req.Chain] = err
				return nil
			}
			result.Balances[req.Chain] = balances
			return nil
		})
	}
	// chains never fail the group
	_ = g.Wait()

	mergeBEP2(result)

	for chain, err := range result.Errors {
		log.Error("Chain aggregation failed",
			zap.String("project", p.Name),
			zap.String("chain", chain),
			zap.Error(err),
		)
	}
	log.Info("Project aggregation completed",
		zap.String("project", p.Name),
		zap.Int("chain_count", len(result.Balances)),
		zap.Int("failed_count", len(result.Errors)),
	)
	return result
}

func mergeBEP2(result *Result) {
	bep2, ok := result.Balances[bep2Chain]
	bep2Err, failed := result.Errors[bep2Chain]
	if !ok && !failed {
		return
	}
	delete(result.Balances, bep2Chain)
	delete(result.Errors, bep2Chain)

	if failed {
		delete(result.Balances, bscChain)
		if _, bscFailed := result.Errors[bscChain]; !bscFailed {
			result.Errors[bscChain] = fmt.Errorf("bep2: %w", bep2Err)
		}
		return
	}
	if _, bscFailed := result.Errors[bscChain]; bscFailed {
		return
	}

	bsc, ok := result.Balances[bscChain]
	if !ok {
		result.Balances[bscChain] = bep2
		return
	}
	merged := bsc.Clone()
	merged.Merge(bep2)
	result.Balances[bscChain] = merged
}
