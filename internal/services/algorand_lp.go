package services

import (
	"context"
	"fmt"
	"sort"

	"balance-aggregator/internal/models"
	"balance-aggregator/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var two = decimal.NewFromInt(2)

// ResolveTinymanLP replaces the ledger's holding of lpAssetID with its pro-rata share of the
// pool reserves at the latest round. The LP key is removed from the ledger in every case.
//
// When hintAssetID is one of the reserves the share is doubled and paid out only in the
// other reserve assets. Tinyman pools pair a known asset with an unpriced one, so the
// position is valued as twice its known leg.
func (a *AlgorandAdapter) ResolveTinymanLP(ctx context.Context, balances models.Balances, lpAssetID, hintAssetID string, blacklist []string) error {
	return a.resolveTinymanLP(ctx, balances, lpAssetID, hintAssetID, blacklist, 0)
}

func (a *AlgorandAdapter) resolveTinymanLP(ctx context.Context, balances models.Balances, lpAssetID, hintAssetID string, blacklist []string, round uint64) error {
	defer balances.Delete(lpAssetID)

	held := balances.Get(lpAssetID)
	if held.IsZero() {
		return nil
	}

	info, err := a.getAssetInfo(ctx, lpAssetID, round)
	if err != nil {
		return err
	}

	shares, err := lpShares(held, info, hintAssetID, blacklist)
	if err != nil {
		return err
	}
	for token, amount := range shares {
		balances.Add(token, amount)
	}

	logger.GetLogger().WithContext(ctx).Debug("Resolved LP position",
		zap.String("lp_asset_id", lpAssetID),
		zap.String("hint_asset_id", hintAssetID),
		zap.String("held", held.String()),
		zap.String("circulating_supply", info.CirculatingSupply.String()),
		zap.Int("reserve_count", len(shares)),
	)
	return nil
}

// lpShares computes held × reserve ÷ circulating for each eligible reserve asset.
// The quotient is an exact integer division truncated toward zero; zero shares are dropped.
func lpShares(held decimal.Decimal, info *AssetInfo, hintAssetID string, blacklist []string) (map[string]decimal.Decimal, error) {
	if !info.CirculatingSupply.IsPositive() {
		return nil, fmt.Errorf("LP %s has circulating supply %s: %w", info.ID, info.CirculatingSupply, models.ErrInvalidAmount)
	}

	multiplier := decimal.NewFromInt(1)
	exclude := toSet(blacklist)
	if hintAssetID != "" {
		if _, ok := info.Reserves[hintAssetID]; ok {
			multiplier = two
			exclude[hintAssetID] = struct{}{}
		}
	}

	tokens := make([]string, 0, len(info.Reserves))
	for token := range info.Reserves {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	shares := make(map[string]decimal.Decimal, len(tokens))
	for _, token := range tokens {
		if _, skip := exclude[token]; skip {
			continue
		}
		numerator := held.Mul(info.Reserves[token]).Mul(multiplier)
		quotient, _ := numerator.QuoRem(info.CirculatingSupply, 0)
		if quotient.IsZero() {
			continue
		}
		shares[token] = quotient
	}
	return shares, nil
}
