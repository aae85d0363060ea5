package services

import (
	"context"
	"fmt"
	"net/url"

	"balance-aggregator/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// balanceOnlyCoinIDs is the external coin id each balance-only chain reports under
var balanceOnlyCoinIDs = map[string]string{
	"bep2":   "binancecoin",
	"elrond": "elrond-erd-2",
}

// BalanceOnlyChains lists the chains served without a full adapter
func BalanceOnlyChains() []string {
	return []string{"bep2", "elrond"}
}

// NativeBalanceResolver looks up native coin balances on chains that only expose an account endpoint.
// Amounts are reported in whole coins under the chain's coin id.
type NativeBalanceResolver struct {
	clients map[string]*RemoteClient
}

// NewNativeBalanceResolver creates a resolver. A nil client leaves that chain unsupported.
func NewNativeBalanceResolver(elrond, bep2 *RemoteClient) *NativeBalanceResolver {
	clients := make(map[string]*RemoteClient, 2)
	if elrond != nil {
		clients["elrond"] = elrond
	}
	if bep2 != nil {
		clients["bep2"] = bep2
	}
	return &NativeBalanceResolver{clients: clients}
}

// Supports reports whether chain is a configured balance-only chain
func (r *NativeBalanceResolver) Supports(chain string) bool {
	_, ok := r.clients[chain]
	return ok
}

// SumNative sums the native balance of every owner into balances under the chain's coin id
func (r *NativeBalanceResolver) SumNative(ctx context.Context, chain string, owners []string, balances models.Balances) error {
	client, ok := r.clients[chain]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrNoChainHandler, chain)
	}

	amounts := make([]decimal.Decimal, len(owners))
	g, gctx := errgroup.WithContext(ctx)
	for i, owner := range owners {
		i, owner := i, owner
		g.Go(func() error {
			amount, err := r.balance(gctx, chain, client, owner)
			if err != nil {
				return fmt.Errorf("failed to get %s balance of %s: %w", chain, owner, err)
			}
			amounts[i] = amount
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	balances.Add(balanceOnlyCoinIDs[chain], total)
	return nil
}

func (r *NativeBalanceResolver) balance(ctx context.Context, chain string, client *RemoteClient, owner string) (decimal.Decimal, error) {
	switch chain {
	case "elrond":
		var resp struct {
			Data struct {
				Account struct {
					Balance string `json:"balance"`
				} `json:"account"`
			} `json:"data"`
		}
		if err := client.Get(ctx, "/address/"+url.PathEscape(owner), nil, &resp); err != nil {
			return decimal.Zero, err
		}
		wei, err := decimal.NewFromString(resp.Data.Account.Balance)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: elrond balance %q", models.ErrInvalidAmount, resp.Data.Account.Balance)
		}
		return wei.Shift(-18), nil

	case "bep2":
		var resp struct {
			Balances []struct {
				Symbol string `json:"symbol"`
				Free   string `json:"free"`
			} `json:"balances"`
		}
		if err := client.Get(ctx, "/account/"+url.PathEscape(owner), nil, &resp); err != nil {
			return decimal.Zero, err
		}
		for _, b := range resp.Balances {
			if b.Symbol != "BNB" {
				continue
			}
			free, err := decimal.NewFromString(b.Free)
			if err != nil {
				return decimal.Zero, fmt.Errorf("%w: bep2 balance %q", models.ErrInvalidAmount, b.Free)
			}
			return free, nil
		}
		return decimal.Zero, nil

	default:
		return decimal.Zero, fmt.Errorf("%w: %s", models.ErrNoChainHandler, chain)
	}
}
