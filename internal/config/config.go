package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Algorand    AlgorandConfig    `mapstructure:"algorand"`
	Breaker     BreakerConfig     `mapstructure:"breaker"`
	Cache       CacheConfig       `mapstructure:"cache"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Solana      SolanaConfig      `mapstructure:"solana"`
	EVM         EVMConfig         `mapstructure:"evm"`
	BalanceOnly BalanceOnlyConfig `mapstructure:"balance_only"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// AlgorandConfig holds the indexer connection and token mapping for the Algorand adapter
type AlgorandConfig struct {
	IndexerURL        string        `mapstructure:"indexer_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	// TokenMapping maps asset ids to external token ids. Empty keeps raw asset ids.
	TokenMapping map[string]string `mapstructure:"token_mapping"`
	// UnmappedPrefix is prepended to asset ids missing from TokenMapping, e.g. "algorand:".
	UnmappedPrefix string `mapstructure:"unmapped_prefix"`
	// PriceMapping maps reserve asset ids to priced tokens for AlgoFi LP price lookups.
	PriceMapping map[string]PriceRef `mapstructure:"price_mapping"`
}

// PriceRef identifies a priced token by its external id and decimals
type PriceRef struct {
	ID       string `mapstructure:"id"`
	Decimals int32  `mapstructure:"decimals"`
}

// BreakerConfig holds circuit breaker settings shared by all remote clients
type BreakerConfig struct {
	MaxRequests         uint32        `mapstructure:"max_requests"`
	Interval            time.Duration `mapstructure:"interval"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
}

// CacheConfig holds memoization cache configuration
type CacheConfig struct {
	NegativeCaching bool `mapstructure:"negative_caching"`
}

// RateLimitConfig holds inbound rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Burst             int           `mapstructure:"burst"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
	IdleTTL           time.Duration `mapstructure:"idle_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level       string   `mapstructure:"level"`
	Environment string   `mapstructure:"environment"`
	OutputPaths []string `mapstructure:"output_paths"`
}

// AuthConfig holds the static API keys accepted by the HTTP surface.
// An empty key list disables authentication.
type AuthConfig struct {
	APIKeys []string `mapstructure:"api_keys"`
}

// SolanaConfig holds Solana RPC configuration
type SolanaConfig struct {
	Endpoint          string        `mapstructure:"endpoint"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// EVMConfig holds JSON-RPC endpoints for the generic EVM fallback adapter
type EVMConfig struct {
	Enabled           bool              `mapstructure:"enabled"`
	RPCURLs           map[string]string `mapstructure:"rpc_urls"`
	Timeout           time.Duration     `mapstructure:"timeout"`
	RequestsPerSecond float64           `mapstructure:"requests_per_second"`
}

// BalanceOnlyConfig holds endpoints for chains that only expose a native balance lookup
type BalanceOnlyConfig struct {
	ElrondGatewayURL string        `mapstructure:"elrond_gateway_url"`
	BEP2APIURL       string        `mapstructure:"bep2_api_url"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// Address returns host:port for the HTTP listener
func (s ServerConfig) Address() string {
	return s.Host + ":" + s.Port
}

// LoadConfig loads configuration from an optional config file, a .env file and the environment.
// Environment variables use the upper-cased key path, e.g. ALGORAND_INDEXER_URL.
func LoadConfig(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail later at runtime
func (c *Config) Validate() error {
	if c.Algorand.IndexerURL == "" {
		return errors.New("algorand.indexer_url is required")
	}
	if c.Algorand.RequestsPerSecond <= 0 {
		return fmt.Errorf("algorand.requests_per_second must be positive, got %v", c.Algorand.RequestsPerSecond)
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("rate_limit.requests_per_minute must be positive, got %d", c.RateLimit.RequestsPerMinute)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("algorand.indexer_url", "https://mainnet-idx.algonode.cloud")
	v.SetDefault("algorand.timeout", 30*time.Second)
	v.SetDefault("algorand.requests_per_second", 10)
	v.SetDefault("algorand.burst", 1)
	v.SetDefault("algorand.unmapped_prefix", "")

	v.SetDefault("breaker.max_requests", 5)
	v.SetDefault("breaker.interval", 10*time.Second)
	v.SetDefault("breaker.timeout", 30*time.Second)
	v.SetDefault("breaker.consecutive_failures", 5)

	v.SetDefault("cache.negative_caching", true)

	v.SetDefault("rate_limit.requests_per_minute", 60)
	v.SetDefault("rate_limit.burst", 10)
	v.SetDefault("rate_limit.cleanup_interval", 5*time.Minute)
	v.SetDefault("rate_limit.idle_ttl", 10*time.Minute)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.environment", "development")
	v.SetDefault("logging.output_paths", []string{"stdout"})

	v.SetDefault("auth.api_keys", []string{})

	v.SetDefault("solana.endpoint", "https://api.mainnet-beta.solana.com")
	v.SetDefault("solana.timeout", 30*time.Second)
	v.SetDefault("solana.requests_per_second", 5)

	v.SetDefault("evm.enabled", true)
	v.SetDefault("evm.rpc_urls", map[string]string{
		"ethereum": "https://eth.llamarpc.com",
		"bsc":      "https://bsc-dataseed.binance.org",
		"polygon":  "https://polygon-rpc.com",
	})
	v.SetDefault("evm.timeout", 30*time.Second)
	v.SetDefault("evm.requests_per_second", 10)

	v.SetDefault("balance_only.elrond_gateway_url", "https://gateway.elrond.com")
	v.SetDefault("balance_only.bep2_api_url", "https://api-binance-mainnet.cosmostation.io/v1")
	v.SetDefault("balance_only.timeout", 30*time.Second)
}
