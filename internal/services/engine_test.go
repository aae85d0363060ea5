package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"balance-aggregator/internal/models"
	"balance-aggregator/pkg/metrics"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingAdapter returns one unit of every pair's token and remembers what it was asked
type recordingAdapter struct {
	mu   sync.Mutex
	reqs []*models.SumRequest
	err  error
}

func (a *recordingAdapter) SumTokens(_ context.Context, req *models.SumRequest) (models.Balances, error) {
	a.mu.Lock()
	a.reqs = append(a.reqs, req)
	a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	balances := seedLedger(req)
	for _, p := range req.TokensAndOwners {
		balances.Add(p.Token, decimal.NewFromInt(1))
	}
	return balances, nil
}

func (a *recordingAdapter) last() *models.SumRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reqs[len(a.reqs)-1]
}

type stubBalanceOnly struct {
	chains map[string]bool
}

func (s stubBalanceOnly) Supports(chain string) bool { return s.chains[chain] }

func (s stubBalanceOnly) SumNative(_ context.Context, chain string, owners []string, balances models.Balances) error {
	for range owners {
		balances.Add(chain+"-coin", decimal.NewFromInt(1))
	}
	return nil
}

func TestEngine_Aggregate(t *testing.T) {
	ctx := context.Background()

	t.Run("MissingChain", func(t *testing.T) {
		_, err := NewEngine(NewRegistry()).Aggregate(ctx, &models.SumRequest{Owners: []string{"a"}})
		assert.ErrorIs(t, err, models.ErrMissingChain)

		_, err = NewEngine(NewRegistry()).Aggregate(ctx, nil)
		assert.ErrorIs(t, err, models.ErrMissingChain)
	})

	t.Run("UnknownChainIsConfigurationError", func(t *testing.T) {
		balances, err := NewEngine(NewRegistry()).Aggregate(ctx, &models.SumRequest{Chain: "nochain", Owners: []string{"a"}})
		assert.ErrorIs(t, err, models.ErrNoChainHandler)
		assert.Nil(t, balances)
	})

	t.Run("DispatchesByLowercasedChain", func(t *testing.T) {
		adapter := &recordingAdapter{}
		registry := NewRegistry()
		registry.Register("ethereum", adapter)

		balances, err := NewEngine(registry).Aggregate(ctx, &models.SumRequest{
			Chain:  " Ethereum ",
			Owner:  "0xOwner",
			Tokens: []string{"0xT1", "0xt1"},
		})
		require.NoError(t, err)
		assert.Equal(t, "ethereum", adapter.last().Chain)
		assert.Equal(t, []models.TokenOwner{{Token: "0xt1", Owner: "0xowner"}}, adapter.last().TokensAndOwners)
		assert.True(t, balances.Equal(ledger("0xt1", "1")))
	})

	t.Run("FamilySharesOneAdapter", func(t *testing.T) {
		adapter := &recordingAdapter{}
		registry := NewRegistry()
		registry.RegisterFamily([]string{"cosmos", "osmosis"}, adapter)

		e := NewEngine(registry)
		for _, chain := range []string{"cosmos", "osmosis"} {
			_, err := e.Aggregate(ctx, &models.SumRequest{Chain: chain, Owners: []string{"a"}, Tokens: []string{"t"}})
			require.NoError(t, err)
		}
		assert.Len(t, adapter.reqs, 2)
	})

	t.Run("BalanceOnlyChains", func(t *testing.T) {
		e := NewEngine(NewRegistry(), WithBalanceOnly(stubBalanceOnly{chains: map[string]bool{"elrond": true}}))

		balances, err := e.Aggregate(ctx, &models.SumRequest{Chain: "elrond", Owners: []string{"erd1", "erd2"}})
		require.NoError(t, err)
		assert.True(t, balances.Equal(ledger("elrond-coin", "2")))
	})

	t.Run("FallbackForUnregisteredChains", func(t *testing.T) {
		fallback := &recordingAdapter{}
		e := NewEngine(NewRegistry(), WithFallback(fallback))

		_, err := e.Aggregate(ctx, &models.SumRequest{Chain: "fantom", Owners: []string{"a"}, Tokens: []string{"t"}})
		require.NoError(t, err)
		assert.Equal(t, "fantom", fallback.last().Chain)
	})

	t.Run("AdapterErrorReturnsNoLedger", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register("ethereum", &recordingAdapter{err: errors.New("boom")})
		mc := metrics.NewMetricsCollector(nil)

		balances, err := NewEngine(registry, WithEngineMetrics(mc)).Aggregate(ctx, &models.SumRequest{Chain: "ethereum"})
		assert.Error(t, err)
		assert.Nil(t, balances)
		assert.Equal(t, int64(1), mc.GetMetrics().FailedRequests)
	})

	t.Run("InvalidLPPosition", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register("algorand", &recordingAdapter{})
		_, err := NewEngine(registry).Aggregate(ctx, &models.SumRequest{
			Chain:       "algorand",
			LPPositions: []models.LPPosition{{HintAssetID: "1"}},
		})
		assert.ErrorIs(t, err, models.ErrInvalidRequest)
	})
}

func TestEngine_BlacklistNeverReachesLedger(t *testing.T) {
	ctx := context.Background()
	adapter := &recordingAdapter{}
	registry := NewRegistry()
	registry.Register("ethereum", adapter)
	e := NewEngine(registry)

	requests := []*models.SumRequest{
		{Chain: "ethereum", Owners: []string{"o1", "o2"}, Tokens: []string{"0xBAD", "0xgood"}, BlacklistedTokens: []string{"0xbad"}},
		{Chain: "ethereum", Token: "0xbad", Owner: "o1", BlacklistedTokens: []string{"0xBAD"}},
		{Chain: "ethereum", TokensAndOwners: []models.TokenOwner{{Token: "0xBad", Owner: "o1"}, {Token: "0xgood", Owner: "o1"}}, BlacklistedTokens: []string{"0xbad"}},
	}
	for i, req := range requests {
		balances, err := e.Aggregate(ctx, req)
		require.NoError(t, err, i)
		assert.False(t, balances.Has("0xbad"), "request %d", i)
		assert.NotContains(t, adapter.last().Tokens, "0xbad")
	}
}

func TestEngine_NonFilterableChainKeepsTokens(t *testing.T) {
	e := NewEngine(NewRegistry())
	normalized := e.Normalize(&models.SumRequest{
		Chain:             "eos",
		Owners:            []string{"acct"},
		Tokens:            []string{"eosio.token", "tethertether"},
		BlacklistedTokens: []string{"tethertether"},
	})
	assert.Equal(t, []string{"eosio.token", "tethertether"}, normalized.Tokens)
	assert.Len(t, normalized.TokensAndOwners, 2)
}

func TestEngine_DoesNotMutateCallerRequest(t *testing.T) {
	adapter := &recordingAdapter{}
	registry := NewRegistry()
	registry.Register("ethereum", adapter)

	seed := ledger("0xt1", "5")
	req := &models.SumRequest{
		Chain:    "Ethereum",
		Owners:   []string{"0xO1"},
		Tokens:   []string{"0xT1"},
		Balances: seed,
	}

	balances, err := NewEngine(registry).Aggregate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "6", balances.Get("0xt1").String())

	assert.Equal(t, "Ethereum", req.Chain)
	assert.Equal(t, []string{"0xO1"}, req.Owners)
	assert.Equal(t, "5", seed.Get("0xt1").String())
}

func TestEngine_ConcurrentAggregationsKeepSeparateLedgers(t *testing.T) {
	registry := NewRegistry()
	registry.Register("ethereum", &recordingAdapter{})
	e := NewEngine(registry)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			balances, err := e.Aggregate(context.Background(), &models.SumRequest{
				Chain:  "ethereum",
				Owners: []string{"a", "b"},
				Tokens: []string{"t"},
			})
			assert.NoError(t, err)
			assert.Equal(t, "2", balances.Get("t").String())
		}()
	}
	wg.Wait()
}

func TestRegistry(t *testing.T) {
	evm := &recordingAdapter{}
	registry := NewRegistry()
	registry.RegisterFamily([]string{"Ethereum", "bsc"}, evm)
	registry.Register("algorand", &recordingAdapter{})

	_, ok := registry.Lookup("ETHEREUM")
	assert.True(t, ok)
	_, ok = registry.Lookup("solana")
	assert.False(t, ok)
	assert.Equal(t, []string{"algorand", "bsc", "ethereum"}, registry.Chains())
}

func TestTokenMapper(t *testing.T) {
	assert.IsType(t, IdentityMapper{}, NewTokenMapper(nil, ""))

	m := NewTokenMapper(map[string]string{"1": "algorand", "2": "algorand"}, "algo:")
	got := m.MapBalances(ledger("1", "3", "2", "4", "9", "1"))
	assert.True(t, got.Equal(ledger("algorand", "7", "algo:9", "1")), got)
}
