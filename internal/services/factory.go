package services

import (
	"balance-aggregator/internal/config"
	"balance-aggregator/pkg/cache"
	"balance-aggregator/pkg/metrics"
	"balance-aggregator/pkg/ratelimiter"
)

// Services bundles the engine with the adapters the HTTP layer talks to directly
type Services struct {
	Engine   *Engine
	Algorand *AlgorandAdapter
	EVM      *EVMAdapter
	Solana   *SolanaAdapter
}

// Build wires every adapter described by cfg into one engine.
// Each upstream gets its own limiter; all clients share the metrics collector.
func Build(cfg *config.Config, mc *metrics.MetricsCollector) *Services {
	if mc == nil {
		mc = metrics.NewMetricsCollector(nil)
	}
	registry := NewRegistry()

	algoClient := NewRemoteClient(RemoteClientConfig{
		Name:    "algorand-indexer",
		BaseURL: cfg.Algorand.IndexerURL,
		Timeout: cfg.Algorand.Timeout,
		Breaker: cfg.Breaker,
	}, ratelimiter.New(cfg.Algorand.RequestsPerSecond, cfg.Algorand.Burst), mc)

	algorand := NewAlgorandAdapter(algoClient,
		WithTokenMapper(NewTokenMapper(cfg.Algorand.TokenMapping, cfg.Algorand.UnmappedPrefix)),
		WithPriceMapping(cfg.Algorand.PriceMapping),
		WithCacheOptions(cache.WithNegativeCaching(cfg.Cache.NegativeCaching), cache.WithObserver(mc)),
	)
	registry.Register("algorand", algorand)

	var solanaAdapter *SolanaAdapter
	if cfg.Solana.Endpoint != "" {
		solanaAdapter = NewSolanaAdapter(
			NewSolanaClient(cfg.Solana.Endpoint),
			ratelimiter.New(cfg.Solana.RequestsPerSecond, 1),
			mc,
			cfg.Solana.Timeout,
		)
		registry.Register("solana", solanaAdapter)
	}

	opts := []EngineOption{WithEngineMetrics(mc)}

	var evm *EVMAdapter
	if cfg.EVM.Enabled && len(cfg.EVM.RPCURLs) > 0 {
		clients := make(map[string]*RemoteClient, len(cfg.EVM.RPCURLs))
		for chain, rpcURL := range cfg.EVM.RPCURLs {
			clients[chain] = NewRemoteClient(RemoteClientConfig{
				Name:    chain + "-rpc",
				BaseURL: rpcURL,
				Timeout: cfg.EVM.Timeout,
				Breaker: cfg.Breaker,
			}, ratelimiter.New(cfg.EVM.RequestsPerSecond, 1), mc)
		}
		evm = NewEVMAdapter(clients)
		registry.RegisterFamily(evm.Chains(), evm)
		opts = append(opts, WithFallback(evm))
	}

	var elrond, bep2 *RemoteClient
	if cfg.BalanceOnly.ElrondGatewayURL != "" {
		elrond = NewRemoteClient(RemoteClientConfig{
			Name:    "elrond-gateway",
			BaseURL: cfg.BalanceOnly.ElrondGatewayURL,
			Timeout: cfg.BalanceOnly.Timeout,
			Breaker: cfg.Breaker,
		}, ratelimiter.New(5, 1), mc)
	}
	if cfg.BalanceOnly.BEP2APIURL != "" {
		bep2 = NewRemoteClient(RemoteClientConfig{
			Name:    "bep2-api",
			BaseURL: cfg.BalanceOnly.BEP2APIURL,
			Timeout: cfg.BalanceOnly.Timeout,
			Breaker: cfg.Breaker,
		}, ratelimiter.New(5, 1), mc)
	}
	opts = append(opts, WithBalanceOnly(NewNativeBalanceResolver(elrond, bep2)))

	return &Services{
		Engine:   NewEngine(registry, opts...),
		Algorand: algorand,
		EVM:      evm,
		Solana:   solanaAdapter,
	}
}
