package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.Equal(t, 10.0, cfg.Algorand.RequestsPerSecond)
	assert.Equal(t, 1, cfg.Algorand.Burst)
	assert.Equal(t, 30*time.Second, cfg.Algorand.Timeout)
	assert.True(t, cfg.Cache.NegativeCaching)
	assert.Equal(t, uint32(5), cfg.Breaker.ConsecutiveFailures)
	assert.Empty(t, cfg.Auth.APIKeys)
	assert.Contains(t, cfg.EVM.RPCURLs, "ethereum")
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aggregator.yaml")
	content := `
server:
  port: "9090"
algorand:
  indexer_url: http://localhost:8980
  requests_per_second: 2
  token_mapping:
    "31566704": usd-coin
  unmapped_prefix: "algorand:"
cache:
  negative_caching: false
auth:
  api_keys: [alpha, beta]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "http://localhost:8980", cfg.Algorand.IndexerURL)
	assert.Equal(t, 2.0, cfg.Algorand.RequestsPerSecond)
	assert.Equal(t, "usd-coin", cfg.Algorand.TokenMapping["31566704"])
	assert.Equal(t, "algorand:", cfg.Algorand.UnmappedPrefix)
	assert.False(t, cfg.Cache.NegativeCaching)
	assert.Equal(t, []string{"alpha", "beta"}, cfg.Auth.APIKeys)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ALGORAND_INDEXER_URL", "http://indexer.internal")
	t.Setenv("SERVER_PORT", "7070")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "http://indexer.internal", cfg.Algorand.IndexerURL)
	assert.Equal(t, "7070", cfg.Server.Port)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	cfg := &Config{
		Algorand:  AlgorandConfig{IndexerURL: "http://x", RequestsPerSecond: 1},
		RateLimit: RateLimitConfig{RequestsPerMinute: 1},
	}
	assert.NoError(t, cfg.Validate())

	cfg.Algorand.RequestsPerSecond = 0
	assert.Error(t, cfg.Validate())

	cfg.Algorand.RequestsPerSecond = 1
	cfg.Algorand.IndexerURL = ""
	assert.Error(t, cfg.Validate())
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
