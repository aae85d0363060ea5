package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"balance-aggregator/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNativeBalanceResolver(t *testing.T) {
	ctx := context.Background()

	elrond := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/address/erd1a":
			_, _ = w.Write([]byte(`{"data":{"account":{"balance":"1500000000000000000"}}}`))
		case "/address/erd1b":
			_, _ = w.Write([]byte(`{"data":{"account":{"balance":"250000000000000000"}}}`))
		case "/address/erd1bad":
			_, _ = w.Write([]byte(`{"data":{"account":{"balance":"lots"}}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer elrond.Close()

	bep2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/account/bnb1a":
			_, _ = w.Write([]byte(`{"balances":[{"symbol":"BUSD-BD1","free":"9"},{"symbol":"BNB","free":"1.25"}]}`))
		case "/account/bnb1empty":
			_, _ = w.Write([]byte(`{"balances":[]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer bep2.Close()

	resolver := NewNativeBalanceResolver(newTestClient(elrond.URL), newTestClient(bep2.URL))

	t.Run("Supports", func(t *testing.T) {
		assert.True(t, resolver.Supports("elrond"))
		assert.True(t, resolver.Supports("bep2"))
		assert.False(t, resolver.Supports("ethereum"))
		assert.False(t, NewNativeBalanceResolver(nil, nil).Supports("elrond"))
	})

	t.Run("ElrondWeiAreScaled", func(t *testing.T) {
		balances := models.NewBalances()
		require.NoError(t, resolver.SumNative(ctx, "elrond", []string{"erd1a", "erd1b"}, balances))
		assert.Equal(t, "1.75", balances.Get("elrond-erd-2").String())
	})

	t.Run("BEP2ReadsFreeBNB", func(t *testing.T) {
		balances := models.NewBalances()
		require.NoError(t, resolver.SumNative(ctx, "bep2", []string{"bnb1a", "bnb1empty"}, balances))
		assert.Equal(t, "1.25", balances.Get("binancecoin").String())
	})

	t.Run("MalformedAmount", func(t *testing.T) {
		err := resolver.SumNative(ctx, "elrond", []string{"erd1bad"}, models.NewBalances())
		assert.ErrorIs(t, err, models.ErrInvalidAmount)
	})

	t.Run("UnknownAccount", func(t *testing.T) {
		err := resolver.SumNative(ctx, "bep2", []string{"bnb1missing"}, models.NewBalances())
		assert.ErrorIs(t, err, models.ErrUpstream)
	})

	t.Run("ThroughEngine", func(t *testing.T) {
		e := NewEngine(NewRegistry(), WithBalanceOnly(resolver))
		balances, err := e.Aggregate(ctx, &models.SumRequest{Chain: "Elrond", Owner: "erd1a"})
		require.NoError(t, err)
		assert.Equal(t, "1.5", balances.Get("elrond-erd-2").String())
	})
}
