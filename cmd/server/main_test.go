package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"balance-aggregator/internal/config"
	"balance-aggregator/internal/models"
	"balance-aggregator/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newFakeIndexer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"round":1}`))
	})
	mux.HandleFunc("/v2/accounts/OWNERA", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"account":{"address":"OWNERA","amount":5000000,"assets":[
			{"asset-id":31566704,"amount":100,"is-frozen":false},
			{"asset-id":999,"amount":7,"is-frozen":false}]}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(indexerURL string, keys ...string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: "0"},
		Algorand: config.AlgorandConfig{
			IndexerURL:        indexerURL,
			Timeout:           5 * time.Second,
			RequestsPerSecond: 1000,
			Burst:             10,
		},
		Breaker: config.BreakerConfig{
			MaxRequests:         1,
			Interval:            time.Minute,
			Timeout:             time.Minute,
			ConsecutiveFailures: 5,
		},
		Cache:     config.CacheConfig{NegativeCaching: true},
		RateLimit: config.RateLimitConfig{RequestsPerMinute: 600, Burst: 100, IdleTTL: time.Minute},
		Auth:      config.AuthConfig{APIKeys: keys},
	}
}

func newTestHandler(t *testing.T, keys ...string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger.SetLogger(zap.NewNop())

	indexer := newFakeIndexer(t)
	return NewServer(testConfig(indexer.URL, keys...)).Handler()
}

func postAggregate(engine *gin.Engine, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/aggregate", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestServer_Aggregate(t *testing.T) {
	engine := newTestHandler(t)

	t.Run("SumsAlgorandHoldings", func(t *testing.T) {
		w := postAggregate(engine, `{"chain":"Algorand","owners":["OWNERA"]}`, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp models.AggregateResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "algorand", resp.Chain)
		assert.True(t, resp.Balances.Get("1").Equal(decimal.NewFromInt(5000000)))
		assert.True(t, resp.Balances.Get("31566704").Equal(decimal.NewFromInt(100)))
		assert.True(t, resp.Balances.Get("999").Equal(decimal.NewFromInt(7)))

		assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
		assert.NotEmpty(t, w.Header().Get("X-Response-Time"))
	})

	t.Run("TokenFilterAndBlacklist", func(t *testing.T) {
		w := postAggregate(engine, `{"chain":"algorand","owner":"OWNERA","tokens":["1","999"],"blacklistedTokens":["999"]}`, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp models.AggregateResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, []string{"1"}, resp.Balances.Tokens())
	})

	t.Run("MissingChain", func(t *testing.T) {
		w := postAggregate(engine, `{"owners":["OWNERA"]}`, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "MISSING_CHAIN")
	})

	t.Run("UnknownChain", func(t *testing.T) {
		w := postAggregate(engine, `{"chain":"nochain","owners":["x"]}`, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "NO_CHAIN_HANDLER")
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		w := postAggregate(engine, `{"chain":`, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "MALFORMED_JSON")
	})
}

func TestServer_Auth(t *testing.T) {
	engine := newTestHandler(t, "secret")

	w := postAggregate(engine, `{"chain":"algorand","owners":["OWNERA"]}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "MISSING_API_KEY")

	w = postAggregate(engine, `{"chain":"algorand","owners":["OWNERA"]}`, map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_API_KEY")

	w = postAggregate(engine, `{"chain":"algorand","owners":["OWNERA"]}`, map[string]string{"Authorization": "Bearer secret"})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// health stays public
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_HealthAndMetrics(t *testing.T) {
	engine := newTestHandler(t)

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	w := get("/health")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"algorand"`)
	assert.Contains(t, w.Body.String(), `"healthy"`)

	assert.Equal(t, http.StatusOK, get("/health/ready").Code)

	postAggregate(engine, `{"chain":"algorand","owners":["OWNERA"]}`, nil)

	w = get("/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"aggregation"`)

	w = get("/metrics/prometheus")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "balance_aggregator_"))

	w = get("/status")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"running"`)
}

func TestServer_CORSPreflight(t *testing.T) {
	engine := newTestHandler(t)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/aggregate", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
