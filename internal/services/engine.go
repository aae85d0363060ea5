package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"balance-aggregator/internal/models"
	"balance-aggregator/pkg/logger"
	"balance-aggregator/pkg/metrics"

	"go.uber.org/zap"
)

// nonFilterableChains take their token list verbatim; the blacklist is not applied to it
var nonFilterableChains = map[string]bool{
	"eos": true,
}

// Engine normalizes a SumRequest and dispatches it to the adapter registered for its chain
type Engine struct {
	registry    *Registry
	balanceOnly BalanceOnlyResolver
	fallback    ChainAdapter
	metrics     *metrics.MetricsCollector
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithFallback sets the adapter used for chains with no registered adapter
func WithFallback(adapter ChainAdapter) EngineOption {
	return func(e *Engine) { e.fallback = adapter }
}

// WithBalanceOnly sets the resolver for chains that only expose a native balance
func WithBalanceOnly(resolver BalanceOnlyResolver) EngineOption {
	return func(e *Engine) { e.balanceOnly = resolver }
}

// WithEngineMetrics sets the metrics collector aggregations are recorded on
func WithEngineMetrics(mc *metrics.MetricsCollector) EngineOption {
	return func(e *Engine) { e.metrics = mc }
}

// NewEngine creates an Engine dispatching through registry
func NewEngine(registry *Registry, opts ...EngineOption) *Engine {
	e := &Engine{registry: registry}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.NewMetricsCollector(nil)
	}
	return e
}

// Registry returns the adapter registry
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Aggregate sums the request's balances on its chain.
// The returned ledger belongs to this call only; on error no ledger is returned.
func (e *Engine) Aggregate(ctx context.Context, req *models.SumRequest) (models.Balances, error) {
	start := time.Now()
	e.metrics.RecordRequest()

	balances, err := e.aggregate(ctx, req)
	e.metrics.RecordRequestComplete(time.Since(start), err == nil)

	if err != nil {
		return nil, err
	}
	return balances, nil
}

func (e *Engine) aggregate(ctx context.Context, req *models.SumRequest) (models.Balances, error) {
	if req == nil {
		return nil, models.ErrMissingChain
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	normalized := e.Normalize(req)
	chain := normalized.Chain

	ctx = logger.ContextWithChain(ctx, chain)
	log := logger.GetLogger().WithContext(ctx)

	log.Info("Aggregation started",
		zap.Int("owner_count", len(normalized.Owners)),
		zap.Int("token_count", len(normalized.Tokens)),
		zap.Int("pair_count", len(normalized.TokensAndOwners)),
		zap.String("block", normalized.Block),
	)

	adapter, ok := e.registry.Lookup(chain)
	var (
		balances models.Balances
		err      error
	)
	switch {
	case ok:
		balances, err = adapter.SumTokens(ctx, normalized)
	case e.balanceOnly != nil && e.balanceOnly.Supports(chain):
		balances = seedLedger(normalized)
		err = e.balanceOnly.SumNative(ctx, chain, normalized.Owners, balances)
	case e.fallback != nil:
		balances, err = e.fallback.SumTokens(ctx, normalized)
	default:
		err = fmt.Errorf("%w: %s", models.ErrNoChainHandler, chain)
	}

	if err != nil {
		log.Error("Aggregation failed", zap.Error(err))
		return nil, err
	}

	log.Info("Aggregation completed", zap.Int("token_count", len(balances)))
	return balances, nil
}

// Normalize returns a copy of req with canonical, deduplicated owners, tokens and pairs.
// Blacklisted tokens are removed from tokens and pairs unless the chain is non-filterable.
// The caller's request and seed ledger are never modified.
func (e *Engine) Normalize(req *models.SumRequest) *models.SumRequest {
	chain := strings.ToLower(strings.TrimSpace(req.Chain))
	out := *req
	out.Chain = chain
	out.Owner, out.Token = "", ""

	out.Owners = NormalizeAddresses(chain, req.AllOwners())
	out.BlacklistedTokens = NormalizeAddresses(chain, req.BlacklistedTokens)

	filter := !nonFilterableChains[chain]
	out.Tokens = NormalizeAddresses(chain, req.AllTokens())
	if filter {
		out.Tokens = filterOut(out.Tokens, out.BlacklistedTokens)
	}

	pairs := req.TokensAndOwners
	if len(pairs) == 0 {
		pairs = ExpandTokenOwners(out.Tokens, out.Owners)
	}
	pairs = NormalizeTokenOwners(chain, pairs)
	if filter && len(out.BlacklistedTokens) > 0 {
		blocked := toSet(out.BlacklistedTokens)
		kept := make([]models.TokenOwner, 0, len(pairs))
		for _, p := range pairs {
			if _, skip := blocked[p.Token]; !skip {
				kept = append(kept, p)
			}
		}
		pairs = kept
	}
	out.TokensAndOwners = pairs

	if req.Balances != nil {
		out.Balances = req.Balances.Clone()
	}
	out.LPPositions = append([]models.LPPosition(nil), req.LPPositions...)
	return &out
}

// seedLedger returns the request's pre-seeded ledger or a new one
func seedLedger(req *models.SumRequest) models.Balances {
	if req.Balances != nil {
		return req.Balances
	}
	return models.NewBalances()
}
