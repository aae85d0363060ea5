package services

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"balance-aggregator/internal/models"
	"balance-aggregator/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	erc20BalanceOfSelector = "0x70a08231"
	evmFetchParallel       = 8
)

type evmRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type evmRPCResponse struct {
	Result string       `json:"result,omitempty"`
	Error  *evmRPCError `json:"error,omitempty"`
}

type evmRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// EVMAdapter is the generic fallback adapter for EVM chains.
// It sums native balances via eth_getBalance and ERC-20 balances via balanceOf.
type EVMAdapter struct {
	clients map[string]*RemoteClient
}

// NewEVMAdapter creates an adapter with one JSON-RPC client per chain
func NewEVMAdapter(clients map[string]*RemoteClient) *EVMAdapter {
	normalized := make(map[string]*RemoteClient, len(clients))
	for chain, c := range clients {
		normalized[strings.ToLower(chain)] = c
	}
	return &EVMAdapter{clients: normalized}
}

// Chains lists the chains the adapter has an RPC endpoint for
func (e *EVMAdapter) Chains() []string {
	chains := make([]string, 0, len(e.clients))
	for chain := range e.clients {
		chains = append(chains, chain)
	}
	sort.Strings(chains)
	return chains
}

// SumTokens queries every (token, owner) pair at the request's block and sums per token
func (e *EVMAdapter) SumTokens(ctx context.Context, req *models.SumRequest) (models.Balances, error) {
	client, ok := e.clients[strings.ToLower(req.Chain)]
	if !ok {
		return nil, fmt.Errorf("%w: %s (no rpc endpoint configured)", models.ErrNoChainHandler, req.Chain)
	}

	pairs := req.TokensAndOwners
	if len(pairs) == 0 {
		pairs = ExpandTokenOwners(NormalizeAddresses(req.Chain, req.AllTokens()), NormalizeAddresses(req.Chain, req.AllOwners()))
	}
	blocked := toSet(NormalizeAddresses(req.Chain, req.BlacklistedTokens))
	block := evmBlockTag(req.Block)

	amounts := make([]*big.Int, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(evmFetchParallel)
	for i, p := range pairs {
		i, p := i, p
		if _, skip := blocked[p.Token]; skip {
			continue
		}
		g.Go(func() error {
			n, err := e.balanceOf(gctx, client, p, block)
			if err != nil {
				return fmt.Errorf("failed to query %s balance of %s: %w", p.Token, p.Owner, err)
			}
			amounts[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	balances := seedLedger(req)
	for i, n := range amounts {
		if n == nil {
			continue
		}
		balances.Add(pairs[i].Token, decimal.NewFromBigInt(n, 0))
	}

	logger.GetLogger().WithContext(ctx).Debug("Summed EVM balances",
		zap.Int("pair_count", len(pairs)),
		zap.String("block", block),
	)
	return balances, nil
}

// IsHealthy asks every configured chain for its block number
func (e *EVMAdapter) IsHealthy(ctx context.Context) error {
	for _, chain := range e.Chains() {
		if _, err := e.call(ctx, e.clients[chain], "eth_blockNumber", []any{}); err != nil {
			return fmt.Errorf("%s rpc health check failed: %w", chain, err)
		}
	}
	return nil
}

func (e *EVMAdapter) balanceOf(ctx context.Context, client *RemoteClient, p models.TokenOwner, block string) (*big.Int, error) {
	if isNativeToken(p.Token) {
		return e.call(ctx, client, "eth_getBalance", []any{p.Owner, block})
	}

	data, err := encodeBalanceOf(p.Owner)
	if err != nil {
		return nil, err
	}
	return e.call(ctx, client, "eth_call", []any{
		map[string]any{"to": p.Token, "data": data},
		block,
	})
}

func (e *EVMAdapter) call(ctx context.Context, client *RemoteClient, method string, params []any) (*big.Int, error) {
	var resp evmRPCResponse
	req := evmRPCRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params}
	if err := client.PostJSON(ctx, "", req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s: %w", resp.Error.Code, resp.Error.Message, models.ErrUpstream)
	}
	return parseHexQuantity(resp.Result)
}

func isNativeToken(token string) bool {
	return token == models.NullAddress || token == "0x0" || token == ""
}

// encodeBalanceOf builds balanceOf(address) calldata: selector plus the left-padded holder
func encodeBalanceOf(holder string) (string, error) {
	h := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(holder)), "0x")
	if len(h) != 40 {
		return "", fmt.Errorf("%w: holder %q is not a 20 byte address", models.ErrInvalidRequest, holder)
	}
	for _, ch := range h {
		if (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') {
			continue
		}
		return "", fmt.Errorf("%w: holder %q is not hex", models.ErrInvalidRequest, holder)
	}
	return erc20BalanceOfSelector + strings.Repeat("0", 24) + h, nil
}

func parseHexQuantity(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty rpc result: %w", models.ErrUpstream)
	}
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return big.NewInt(0), nil
	}
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("%w: rpc result %q is not hex", models.ErrInvalidAmount, s)
	}
	return n, nil
}

func evmBlockTag(block string) string {
	block = strings.TrimSpace(block)
	if block == "" {
		return "latest"
	}
	if h, err := strconv.ParseUint(block, 10, 64); err == nil {
		return "0x" + strconv.FormatUint(h, 16)
	}
	return block
}
