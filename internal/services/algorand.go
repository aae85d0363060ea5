package services

import (
	"context"
	"crypto/sha512"
	"encoding/base32"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"balance-aggregator/internal/config"
	"balance-aggregator/internal/models"
	"balance-aggregator/pkg/cache"
	"balance-aggregator/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Well-known Algorand asset ids
const (
	AssetALGO        = "1"
	AssetUSDC        = "31566704"
	AssetGoUSD       = "672913181"
	AssetUSDCGoUSDLP = "885102318"
	AssetGARD        = "684649988"
)

const (
	algoFiPoolUnitName   = "AF-POOL"
	searchAccountsLimit  = 1000
	tealValueTypeUint    = 2
	accountFetchParallel = 16
)

// AssetHolding is one asset balance of an account
type AssetHolding struct {
	AssetID  string          `json:"asset-id"`
	Amount   decimal.Decimal `json:"amount"`
	IsFrozen bool            `json:"is-frozen"`
}

// AccountInfo is an indexer account with native ALGO folded in as asset "1".
// Values are shared between callers through the cache and must not be modified.
type AccountInfo struct {
	Address      string
	Amount       decimal.Decimal
	Assets       []AssetHolding
	AssetMapping map[string]AssetHolding
}

// AssetParams are the indexer's asset parameters
type AssetParams struct {
	Creator  string          `json:"creator"`
	Reserve  string          `json:"reserve"`
	Total    decimal.Decimal `json:"total"`
	Decimals int32           `json:"decimals"`
	UnitName string          `json:"unit-name"`
	Name     string          `json:"name"`
}

// AssetInfo is an asset with its reserve account resolved.
// CirculatingSupply is total minus what the reserve account holds of the asset;
// Reserves are the reserve account's other holdings.
type AssetInfo struct {
	ID                string
	Params            AssetParams
	ReserveInfo       *AccountInfo
	CirculatingSupply decimal.Decimal
	Reserves          map[string]decimal.Decimal
}

// TealKeyValue is one decoded entry of application global state
type TealKeyValue struct {
	Key   string
	Type  int
	Bytes string
	Uint  uint64
}

// ApplicationInfo is an indexer application
type ApplicationInfo struct {
	ID          uint64
	Creator     string
	GlobalState []TealKeyValue
}

// LPPrice is the price of one reserve asset of an AlgoFi pool expressed in a priced token
type LPPrice struct {
	Price    decimal.Decimal `json:"price"`
	PriceID  string          `json:"priceId"`
	Decimals int32           `json:"decimals"`
}

type indexerAccount struct {
	Address string          `json:"address"`
	Amount  decimal.Decimal `json:"amount"`
	Assets  []struct {
		AssetID  json.Number     `json:"asset-id"`
		Amount   decimal.Decimal `json:"amount"`
		IsFrozen bool            `json:"is-frozen"`
	} `json:"assets"`
}

type indexerAsset struct {
	Index  json.Number `json:"index"`
	Params AssetParams `json:"params"`
}

type indexerApplication struct {
	ID     uint64 `json:"id"`
	Params struct {
		Creator     string `json:"creator"`
		GlobalState []struct {
			Key   string `json:"key"`
			Value struct {
				Type  int    `json:"type"`
				Bytes string `json:"bytes"`
				Uint  uint64 `json:"uint"`
			} `json:"value"`
		} `json:"global-state"`
	} `json:"params"`
}

type roundKey struct {
	ID    string
	Round uint64
}

// AlgorandAdapter sums Algorand balances from an indexer.
// Account, asset and application lookups are memoized for the adapter's lifetime.
type AlgorandAdapter struct {
	client       *RemoteClient
	accounts     *cache.Cache[roundKey, *AccountInfo]
	assets       *cache.Cache[roundKey, *AssetInfo]
	appState     *cache.Cache[string, map[string]uint64]
	mapper       TokenMapper
	priceMapping map[string]config.PriceRef
}

// AlgorandOption configures an AlgorandAdapter
type AlgorandOption func(*algorandOptions)

type algorandOptions struct {
	mapper       TokenMapper
	priceMapping map[string]config.PriceRef
	cacheOpts    []cache.Option
}

// WithTokenMapper sets the post-processing token id mapper
func WithTokenMapper(m TokenMapper) AlgorandOption {
	return func(o *algorandOptions) { o.mapper = m }
}

// WithPriceMapping sets the reserve assets AlgoFi LP prices can be expressed in
func WithPriceMapping(m map[string]config.PriceRef) AlgorandOption {
	return func(o *algorandOptions) { o.priceMapping = m }
}

// WithCacheOptions passes options to every memoization cache of the adapter
func WithCacheOptions(opts ...cache.Option) AlgorandOption {
	return func(o *algorandOptions) { o.cacheOpts = append(o.cacheOpts, opts...) }
}

// NewAlgorandAdapter creates an adapter querying the indexer behind client
func NewAlgorandAdapter(client *RemoteClient, opts ...AlgorandOption) *AlgorandAdapter {
	o := &algorandOptions{mapper: IdentityMapper{}}
	for _, opt := range opts {
		opt(o)
	}
	return &AlgorandAdapter{
		client:       client,
		accounts:     cache.New[roundKey, *AccountInfo](o.cacheOpts...),
		assets:       cache.New[roundKey, *AssetInfo](o.cacheOpts...),
		appState:     cache.New[string, map[string]uint64](o.cacheOpts...),
		mapper:       o.mapper,
		priceMapping: o.priceMapping,
	}
}

// SumTokens sums every owner's holdings into one ledger, decomposes requested LP positions
// and maps token ids. Holdings are kept when the token filter is empty or contains them,
// and are never kept when blacklisted.
func (a *AlgorandAdapter) SumTokens(ctx context.Context, req *models.SumRequest) (models.Balances, error) {
	log := logger.GetLogger().WithContext(ctx)

	round, _ := req.BlockHeight()
	owners := NormalizeAddresses("algorand", req.AllOwners())
	tokens := toSet(NormalizeAddresses("algorand", req.AllTokens()))
	blacklist := NormalizeAddresses("algorand", req.BlacklistedTokens)
	blocked := toSet(blacklist)

	accounts := make([]*AccountInfo, len(owners))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(accountFetchParallel)
	for i, owner := range owners {
		i, owner := i, owner
		g.Go(func() error {
			info, err := a.getAccountInfo(gctx, owner, round)
			if err != nil {
				return err
			}
			accounts[i] = info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	balances := seedLedger(req)
	for _, account := range accounts {
		for _, holding := range account.Assets {
			if len(tokens) > 0 {
				if _, ok := tokens[holding.AssetID]; !ok {
					continue
				}
			}
			if _, ok := blocked[holding.AssetID]; ok {
				continue
			}
			balances.Add(holding.AssetID, holding.Amount)
		}
	}

	for _, lp := range req.LPPositions {
		if err := a.resolveTinymanLP(ctx, balances, lp.LPAssetID, lp.HintAssetID, blacklist, round); err != nil {
			return nil, fmt.Errorf("failed to resolve LP %s: %w", lp.LPAssetID, err)
		}
	}

	log.Debug("Summed algorand holdings",
		zap.Int("owner_count", len(owners)),
		zap.Int("lp_count", len(req.LPPositions)),
		zap.Uint64("round", round),
	)

	return a.mapper.MapBalances(balances), nil
}

// IsHealthy probes the indexer health endpoint
func (a *AlgorandAdapter) IsHealthy(ctx context.Context) error {
	var out map[string]interface{}
	if err := a.client.Get(ctx, "/health", nil, &out); err != nil {
		return fmt.Errorf("algorand indexer health check failed: %w", err)
	}
	return nil
}

// GetAccountInfo returns the memoized account at the latest round
func (a *AlgorandAdapter) GetAccountInfo(ctx context.Context, address string) (*AccountInfo, error) {
	return a.getAccountInfo(ctx, address, 0)
}

// GetAssetInfo returns the memoized asset at the latest round
func (a *AlgorandAdapter) GetAssetInfo(ctx context.Context, assetID string) (*AssetInfo, error) {
	return a.getAssetInfo(ctx, assetID, 0)
}

func (a *AlgorandAdapter) getAccountInfo(ctx context.Context, address string, round uint64) (*AccountInfo, error) {
	return a.accounts.GetOrFetch(ctx, roundKey{ID: address, Round: round}, func(ctx context.Context) (*AccountInfo, error) {
		return a.lookupAccount(ctx, address, round)
	})
}

// LookupAccount fetches an account without memoization
func (a *AlgorandAdapter) LookupAccount(ctx context.Context, address string) (*AccountInfo, error) {
	return a.lookupAccount(ctx, address, 0)
}

func (a *AlgorandAdapter) lookupAccount(ctx context.Context, address string, round uint64) (*AccountInfo, error) {
	var resp struct {
		Account indexerAccount `json:"account"`
	}
	if err := a.client.Get(ctx, "/v2/accounts/"+url.PathEscape(address), roundParams(round), &resp); err != nil {
		return nil, fmt.Errorf("failed to lookup account %s: %w", address, err)
	}
	return newAccountInfo(resp.Account), nil
}

func newAccountInfo(raw indexerAccount) *AccountInfo {
	info := &AccountInfo{
		Address:      raw.Address,
		Amount:       raw.Amount,
		Assets:       make([]AssetHolding, 0, len(raw.Assets)+1),
		AssetMapping: make(map[string]AssetHolding, len(raw.Assets)+1),
	}
	for _, h := range raw.Assets {
		info.Assets = append(info.Assets, AssetHolding{
			AssetID:  h.AssetID.String(),
			Amount:   h.Amount,
			IsFrozen: h.IsFrozen,
		})
	}
	if !raw.Amount.IsZero() {
		info.Assets = append(info.Assets, AssetHolding{AssetID: AssetALGO, Amount: raw.Amount})
	}
	for _, h := range info.Assets {
		info.AssetMapping[h.AssetID] = h
	}
	return info
}

func (a *AlgorandAdapter) getAssetInfo(ctx context.Context, assetID string, round uint64) (*AssetInfo, error) {
	return a.assets.GetOrFetch(ctx, roundKey{ID: assetID, Round: round}, func(ctx context.Context) (*AssetInfo, error) {
		var resp struct {
			Asset indexerAsset `json:"asset"`
		}
		if err := a.client.Get(ctx, "/v2/assets/"+url.PathEscape(assetID), roundParams(round), &resp); err != nil {
			return nil, fmt.Errorf("failed to lookup asset %s: %w", assetID, err)
		}

		params := resp.Asset.Params
		if params.Reserve == "" {
			return nil, fmt.Errorf("asset %s has no reserve account: %w", assetID, models.ErrUnknownAsset)
		}

		reserve, err := a.getAccountInfo(ctx, params.Reserve, round)
		if err != nil {
			return nil, err
		}
		held, ok := reserve.AssetMapping[assetID]
		if !ok {
			return nil, fmt.Errorf("reserve %s does not hold asset %s: %w", params.Reserve, assetID, models.ErrUnknownAsset)
		}

		reserves := make(map[string]decimal.Decimal, len(reserve.AssetMapping))
		for id, h := range reserve.AssetMapping {
			if id != assetID {
				reserves[id] = h.Amount
			}
		}

		return &AssetInfo{
			ID:                assetID,
			Params:            params,
			ReserveInfo:       reserve,
			CirculatingSupply: params.Total.Sub(held.Amount),
			Reserves:          reserves,
		}, nil
	})
}

// LookupApplication fetches an application without memoization
func (a *AlgorandAdapter) LookupApplication(ctx context.Context, appID string) (*ApplicationInfo, error) {
	var resp struct {
		Application indexerApplication `json:"application"`
	}
	if err := a.client.Get(ctx, "/v2/applications/"+url.PathEscape(appID), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to lookup application %s: %w", appID, err)
	}

	raw := resp.Application
	app := &ApplicationInfo{
		ID:          raw.ID,
		Creator:     raw.Params.Creator,
		GlobalState: make([]TealKeyValue, 0, len(raw.Params.GlobalState)),
	}
	for _, kv := range raw.Params.GlobalState {
		key, err := base64.StdEncoding.DecodeString(kv.Key)
		if err != nil {
			return nil, fmt.Errorf("application %s has malformed state key %q: %w", appID, kv.Key, models.ErrUpstream)
		}
		app.GlobalState = append(app.GlobalState, TealKeyValue{
			Key:   string(key),
			Type:  kv.Value.Type,
			Bytes: kv.Value.Bytes,
			Uint:  kv.Value.Uint,
		})
	}
	return app, nil
}

// AppGlobalState returns the memoized uint entries of an application's global state by decoded key
func (a *AlgorandAdapter) AppGlobalState(ctx context.Context, appID string) (map[string]uint64, error) {
	return a.appState.GetOrFetch(ctx, appID, func(ctx context.Context) (map[string]uint64, error) {
		app, err := a.LookupApplication(ctx, appID)
		if err != nil {
			return nil, err
		}
		state := make(map[string]uint64, len(app.GlobalState))
		for _, kv := range app.GlobalState {
			if kv.Type == tealValueTypeUint {
				state[kv.Key] = kv.Uint
			}
		}
		return state, nil
	})
}

// SearchAccountsAll returns every account opted into appID, following next-token pages
func (a *AlgorandAdapter) SearchAccountsAll(ctx context.Context, appID string) ([]*AccountInfo, error) {
	var (
		accounts  []*AccountInfo
		nextToken string
	)
	for {
		params := url.Values{}
		params.Set("application-id", appID)
		params.Set("limit", strconv.Itoa(searchAccountsLimit))
		if nextToken != "" {
			params.Set("next", nextToken)
		}

		var resp struct {
			Accounts  []indexerAccount `json:"accounts"`
			NextToken string           `json:"next-token"`
		}
		if err := a.client.Get(ctx, "/v2/accounts", params, &resp); err != nil {
			return nil, fmt.Errorf("failed to search accounts of application %s: %w", appID, err)
		}
		for _, raw := range resp.Accounts {
			accounts = append(accounts, newAccountInfo(raw))
		}

		if resp.NextToken == "" || len(resp.Accounts) == 0 {
			return accounts, nil
		}
		nextToken = resp.NextToken
	}
}

// PriceFromAlgoFiLP prices unknownAssetID against the first reserve asset of an AlgoFi pool
// that has a price mapping.
func (a *AlgorandAdapter) PriceFromAlgoFiLP(ctx context.Context, lpAssetID, unknownAssetID string) (*LPPrice, error) {
	info, err := a.getAssetInfo(ctx, lpAssetID, 0)
	if err != nil {
		return nil, err
	}
	if info.Params.UnitName != algoFiPoolUnitName {
		return nil, fmt.Errorf("asset %s has unit name %q: %w", lpAssetID, info.Params.UnitName, models.ErrNotAnLP)
	}

	unknown, ok := info.ReserveInfo.AssetMapping[unknownAssetID]
	if !ok {
		return nil, fmt.Errorf("pool %s does not hold asset %s: %w", lpAssetID, unknownAssetID, models.ErrUnknownAsset)
	}
	if unknown.Amount.IsZero() {
		return nil, fmt.Errorf("pool %s holds zero of asset %s: %w", lpAssetID, unknownAssetID, models.ErrInvalidAmount)
	}

	for _, h := range info.ReserveInfo.Assets {
		ref, ok := a.priceMapping[h.AssetID]
		if !ok {
			continue
		}
		return &LPPrice{
			Price:    h.Amount.Div(unknown.Amount),
			PriceID:  ref.ID,
			Decimals: ref.Decimals,
		}, nil
	}

	return nil, fmt.Errorf("pool %s: %w", lpAssetID, models.ErrUnmappedPool)
}

// ApplicationAddress returns the escrow account address of an application
func ApplicationAddress(appID uint64) string {
	buf := make([]byte, 0, len("appID")+8)
	buf = append(buf, "appID"...)
	buf = binary.BigEndian.AppendUint64(buf, appID)
	pk := sha512.Sum512_256(buf)

	checksum := sha512.Sum512_256(pk[:])
	addr := append(pk[:], checksum[len(checksum)-4:]...)
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(addr)
}

func roundParams(round uint64) url.Values {
	if round == 0 {
		return nil
	}
	return url.Values{"round": []string{strconv.FormatUint(round, 10)}}
}
