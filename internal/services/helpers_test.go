package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"balance-aggregator/internal/config"
	"balance-aggregator/internal/models"
	"balance-aggregator/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logger.SetLogger(zap.NewNop())
	os.Exit(m.Run())
}

// fakeIndexer serves canned indexer documents and counts requests per path
type fakeIndexer struct {
	mu       sync.Mutex
	accounts map[string]map[string]any
	assets   map[string]map[string]any
	apps     map[string]map[string]any
	pages    []map[string]any
	calls    map[string]int
	queries  []string
	delay    time.Duration
	fail     int
	server   *httptest.Server
}

func newFakeIndexer(t *testing.T) *fakeIndexer {
	t.Helper()
	f := &fakeIndexer{
		accounts: make(map[string]map[string]any),
		assets:   make(map[string]map[string]any),
		apps:     make(map[string]map[string]any),
		calls:    make(map[string]int),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

// account registers an account holding algo microalgos plus asset holdings
func (f *fakeIndexer) account(addr string, algo int64, holdings map[string]int64) {
	assets := make([]map[string]any, 0, len(holdings))
	ids := make([]string, 0, len(holdings))
	for id := range holdings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		assets = append(assets, map[string]any{
			"asset-id":  json.Number(id),
			"amount":    holdings[id],
			"is-frozen": false,
		})
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[addr] = map[string]any{
		"account": map[string]any{"address": addr, "amount": algo, "assets": assets},
	}
}

// asset registers asset parameters
func (f *fakeIndexer) asset(id, reserve, unitName string, total int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assets[id] = map[string]any{
		"asset": map[string]any{
			"index": json.Number(id),
			"params": map[string]any{
				"creator":   reserve,
				"reserve":   reserve,
				"total":     total,
				"decimals":  6,
				"unit-name": unitName,
				"name":      unitName + " pool",
			},
		},
	}
}

func (f *fakeIndexer) app(id string, state []map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apps[id] = map[string]any{
		"application": map[string]any{
			"id":     json.Number(id),
			"params": map[string]any{"creator": "CREATOR", "global-state": state},
		},
	}
}

func (f *fakeIndexer) callCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeIndexer) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls[r.URL.Path]++
	f.queries = append(f.queries, r.URL.RawQuery)
	delay, failing := f.delay, f.fail > 0
	if failing {
		f.fail--
	}
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if failing {
		http.Error(w, `{"message":"unavailable"}`, http.StatusServiceUnavailable)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	var doc map[string]any
	switch {
	case path == "/health":
		doc = map[string]any{"round": 1}
	case path == "/v2/accounts":
		page := 0
		if next := r.URL.Query().Get("next"); next != "" {
			_, _ = fmt.Sscanf(next, "page-%d", &page)
		}
		if page < len(f.pages) {
			doc = f.pages[page]
		} else {
			doc = map[string]any{"accounts": []any{}}
		}
	case strings.HasPrefix(path, "/v2/accounts/"):
		doc = f.accounts[strings.TrimPrefix(path, "/v2/accounts/")]
	case strings.HasPrefix(path, "/v2/assets/"):
		doc = f.assets[strings.TrimPrefix(path, "/v2/assets/")]
	case strings.HasPrefix(path, "/v2/applications/"):
		doc = f.apps[strings.TrimPrefix(path, "/v2/applications/")]
	}

	if doc == nil {
		http.Error(w, `{"message":"no such resource"}`, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(doc)
}

func testBreaker() config.BreakerConfig {
	return config.BreakerConfig{MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, ConsecutiveFailures: 100}
}

func newTestClient(baseURL string) *RemoteClient {
	return NewRemoteClient(RemoteClientConfig{
		Name:    "test",
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
		Breaker: testBreaker(),
	}, nil, nil)
}

func newTestAlgorand(f *fakeIndexer, opts ...AlgorandOption) *AlgorandAdapter {
	return NewAlgorandAdapter(newTestClient(f.server.URL), opts...)
}

func ledger(kv ...string) models.Balances {
	b := models.NewBalances()
	for i := 0; i+1 < len(kv); i += 2 {
		b.Add(kv[i], decimal.RequireFromString(kv[i+1]))
	}
	return b
}

func testServicesConfig(indexerURL string) *config.Config {
	return &config.Config{
		Algorand: config.AlgorandConfig{
			IndexerURL:        indexerURL,
			Timeout:           5 * time.Second,
			RequestsPerSecond: 1000,
			Burst:             10,
			TokenMapping:      map[string]string{AssetALGO: "coingecko:algorand"},
		},
		Breaker: testBreaker(),
		Cache:   config.CacheConfig{NegativeCaching: true},
	}
}
