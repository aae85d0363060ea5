package services

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"balance-aggregator/internal/models"
	"balance-aggregator/pkg/logger"
	"balance-aggregator/pkg/metrics"
	"balance-aggregator/pkg/ratelimiter"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// solanaBatchSize is the getMultipleAccounts limit per call
const solanaBatchSize = 100

// SolanaRPC is the subset of the Solana RPC client the adapter uses
type SolanaRPC interface {
	GetMultipleAccounts(ctx context.Context, accounts ...solana.PublicKey) (*rpc.GetMultipleAccountsResult, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
}

// SolanaAdapter sums native SOL balances, reported in lamports under the wrapped SOL mint
type SolanaAdapter struct {
	client  SolanaRPC
	limiter *ratelimiter.Limiter
	metrics *metrics.MetricsCollector
	timeout time.Duration
}

// NewSolanaClient creates the RPC client for endpoint
func NewSolanaClient(endpoint string) *rpc.Client {
	return rpc.New(endpoint)
}

// NewSolanaAdapter creates an adapter over client sharing the given limiter
func NewSolanaAdapter(client SolanaRPC, limiter *ratelimiter.Limiter, mc *metrics.MetricsCollector, timeout time.Duration) *SolanaAdapter {
	if limiter == nil {
		limiter = ratelimiter.Unlimited()
	}
	if mc == nil {
		mc = metrics.NewMetricsCollector(nil)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SolanaAdapter{client: client, limiter: limiter, metrics: mc, timeout: timeout}
}

// NativeToken is the ledger key native SOL is reported under
func (s *SolanaAdapter) NativeToken() string {
	return solana.SolMint.String()
}

// SumTokens sums the lamports of every owner when the token filter is empty or names native SOL.
// Other tokens are not supported and are skipped.
func (s *SolanaAdapter) SumTokens(ctx context.Context, req *models.SumRequest) (models.Balances, error) {
	log := logger.GetLogger().WithContext(ctx)
	balances := seedLedger(req)
	native := s.NativeToken()

	tokens := NormalizeAddresses("solana", req.AllTokens())
	if _, blocked := toSet(req.BlacklistedTokens)[native]; blocked {
		return balances, nil
	}
	if len(tokens) > 0 {
		wanted := false
		for _, t := range tokens {
			if t == native || t == models.NullAddress {
				wanted = true
				continue
			}
			log.Warn("Skipping unsupported solana token", zap.String("token", t))
		}
		if !wanted {
			return balances, nil
		}
	}

	owners := NormalizeAddresses("solana", req.AllOwners())
	keys := make([]solana.PublicKey, len(owners))
	for i, owner := range owners {
		pk, err := solana.PublicKeyFromBase58(owner)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid solana address %s: %v", models.ErrInvalidRequest, owner, err)
		}
		keys[i] = pk
	}

	total := decimal.Zero
	for start := 0; start < len(keys); start += solanaBatchSize {
		end := min(start+solanaBatchSize, len(keys))
		lamports, err := s.sumBatch(ctx, keys[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to get balances for chunk starting at %d: %w", start, err)
		}
		total = total.Add(lamports)
	}

	if len(keys) > 0 {
		balances.Add(native, total)
	}
	log.Debug("Summed solana balances", zap.Int("owner_count", len(owners)))
	return balances, nil
}

func (s *SolanaAdapter) sumBatch(ctx context.Context, keys []solana.PublicKey) (decimal.Decimal, error) {
	waited, err := s.limiter.Wait(ctx)
	s.metrics.RecordLimiterWait(waited)
	if err != nil {
		return decimal.Zero, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	result, err := s.client.GetMultipleAccounts(callCtx, keys...)
	s.metrics.RecordRemoteCall(time.Since(start), err == nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %w", models.ErrUpstream, err)
	}

	sum := decimal.Zero
	for _, account := range result.Value {
		// missing accounts hold nothing
		if account == nil {
			continue
		}
		sum = sum.Add(decimal.NewFromBigInt(new(big.Int).SetUint64(account.Lamports), 0))
	}
	return sum, nil
}

// IsHealthy checks if the RPC endpoint is responsive
func (s *SolanaAdapter) IsHealthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized); err != nil {
		return fmt.Errorf("RPC health check failed: %w", err)
	}
	return nil
}
