package integration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"balance-aggregator/internal/models"
	"balance-aggregator/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleProject = `
name: example-cex
chains:
  Ethereum:
    owners: ["0xAbC0000000000000000000000000000000000001"]
  algorand:
    owners: ["OWNERA", "OWNERB"]
    tokens: []
    lpPositions:
      - lpAssetId: "552647097"
        hintAssetId: "31566704"
  bsc:
    tokensAndOwners:
      - ["0x55d398326f99059ff775485246999027b3197955", "0x0000000000000000000000000000000000000b5c"]
  bep2:
    owners: ["bnb1owner"]
  ton:
    owners: ["EQowner"]
    block: "123"
`

type fakeAggregator struct {
	mu       sync.Mutex
	requests map[string]*models.SumRequest
	ledgers  map[string]models.Balances
	errs     map[string]error
}

func (f *fakeAggregator) Aggregate(_ context.Context, req *models.SumRequest) (models.Balances, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.requests == nil {
		f.requests = make(map[string]*models.SumRequest)
	}
	f.requests[req.Chain] = req
	if err := f.errs[req.Chain]; err != nil {
		return nil, err
	}
	if b, ok := f.ledgers[req.Chain]; ok {
		return b.Clone(), nil
	}
	return models.NewBalances(), nil
}

func ledger(kv ...string) models.Balances {
	b := models.NewBalances()
	for i := 0; i+1 < len(kv); i += 2 {
		b.Add(kv[i], decimal.RequireFromString(kv[i+1]))
	}
	return b
}

func TestMain(m *testing.M) {
	logger.SetLogger(zap.NewNop())
	os.Exit(m.Run())
}

func TestLoadProject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleProject), 0o600))

	p, err := LoadProject(path)
	require.NoError(t, err)
	assert.Equal(t, "example-cex", p.Name)
	assert.Equal(t, []string{"algorand", "bep2", "bsc", "ethereum", "ton"}, p.ChainNames())
	assert.Equal(t, []models.LPPosition{{LPAssetID: "552647097", HintAssetID: "31566704"}}, p.Chains["algorand"].LPPositions)

	t.Run("MissingFile", func(t *testing.T) {
		_, err := LoadProject(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("NoChains", func(t *testing.T) {
		_, err := ParseProject([]byte("name: empty\n"))
		assert.Error(t, err)
	})

	t.Run("MalformedPair", func(t *testing.T) {
		_, err := ParseProject([]byte("chains:\n  bsc:\n    tokensAndOwners: [[\"only-token\"]]\n"))
		assert.ErrorIs(t, err, models.ErrInvalidRequest)
	})
}

func TestProject_Requests(t *testing.T) {
	p, err := ParseProject([]byte(sampleProject))
	require.NoError(t, err)

	byChain := make(map[string]*models.SumRequest)
	for _, req := range p.Requests() {
		byChain[req.Chain] = req
	}
	require.Len(t, byChain, 5)

	t.Run("DefaultTokenList", func(t *testing.T) {
		tokens, ok := DefaultTokens("ethereum")
		require.True(t, ok)
		assert.Equal(t, tokens, byChain["ethereum"].Tokens)
		assert.Contains(t, byChain["ethereum"].Tokens, models.NullAddress)
	})

	t.Run("ExplicitEmptyListMeansAllTokens", func(t *testing.T) {
		assert.Empty(t, byChain["algorand"].Tokens)
		assert.Len(t, byChain["algorand"].LPPositions, 1)
	})

	t.Run("PairsSkipDefaults", func(t *testing.T) {
		assert.Nil(t, byChain["bsc"].Tokens)
		require.Len(t, byChain["bsc"].TokensAndOwners, 1)
		assert.Equal(t, "0x0000000000000000000000000000000000000b5c", byChain["bsc"].TokensAndOwners[0].Owner)
	})

	t.Run("UnknownChainCountsNativeOnly", func(t *testing.T) {
		assert.Equal(t, []string{models.NullAddress}, byChain["ton"].Tokens)
		assert.Equal(t, "123", byChain["ton"].Block)
	})
}

func TestProject_Run(t *testing.T) {
	p, err := ParseProject([]byte(sampleProject))
	require.NoError(t, err)

	t.Run("FailingChainIsIsolated", func(t *testing.T) {
		agg := &fakeAggregator{
			ledgers: map[string]models.Balances{
				"ethereum": ledger(models.NullAddress, "10"),
				"algorand": ledger("1", "5"),
				"bsc":      ledger("0x55d398326f99059ff775485246999027b3197955", "3"),
				"bep2":     ledger("binancecoin", "2"),
			},
			errs: map[string]error{"ton": models.ErrNoChainHandler},
		}

		result := p.Run(context.Background(), agg)
		require.True(t, result.Failed())
		assert.ErrorIs(t, result.Errors["ton"], models.ErrNoChainHandler)
		assert.NotContains(t, result.Balances, "ton")

		assert.True(t, result.Balances["ethereum"].Equal(ledger(models.NullAddress, "10")))
		assert.True(t, result.Balances["algorand"].Equal(ledger("1", "5")))
	})

	t.Run("BEP2IsSummedIntoBSC", func(t *testing.T) {
		agg := &fakeAggregator{
			ledgers: map[string]models.Balances{
				"bsc":  ledger("0x55d398326f99059ff775485246999027b3197955", "3"),
				"bep2": ledger("binancecoin", "2"),
			},
		}

		result := p.Run(context.Background(), agg)
		assert.False(t, result.Failed())
		assert.NotContains(t, result.Balances, "bep2")
		assert.True(t, result.Balances["bsc"].Equal(ledger(
			"0x55d398326f99059ff775485246999027b3197955", "3",
			"binancecoin", "2",
		)))
	})

	t.Run("BEP2FailureFailsBSC", func(t *testing.T) {
		agg := &fakeAggregator{
			ledgers: map[string]models.Balances{"bsc": ledger("x", "1")},
			errs:    map[string]error{"bep2": errors.New("gateway down")},
		}

		result := p.Run(context.Background(), agg)
		assert.NotContains(t, result.Balances, "bsc")
		assert.NotContains(t, result.Errors, "bep2")
		assert.ErrorContains(t, result.Errors["bsc"], "gateway down")
	})
}

func TestProject_Only(t *testing.T) {
	p, err := ParseProject([]byte(sampleProject))
	require.NoError(t, err)

	bsc, err := p.Only("BSC")
	require.NoError(t, err)
	assert.Equal(t, []string{"bep2", "bsc"}, bsc.ChainNames())

	algo, err := p.Only("algorand")
	require.NoError(t, err)
	assert.Equal(t, []string{"algorand"}, algo.ChainNames())

	_, err = p.Only("solana")
	assert.Error(t, err)
}
