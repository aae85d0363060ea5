package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"balance-aggregator/internal/config"
	"balance-aggregator/internal/models"
	"balance-aggregator/pkg/logger"
	"balance-aggregator/pkg/metrics"
	"balance-aggregator/pkg/ratelimiter"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// maxErrorBody bounds how much of a failed response is kept on RemoteError
const maxErrorBody = 512

// RemoteError is returned for any non-2xx upstream response
type RemoteError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Is makes every RemoteError match models.ErrUpstream
func (e *RemoteError) Is(target error) bool {
	return target == models.ErrUpstream
}

// NotFound reports whether the upstream answered 404
func (e *RemoteError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// RemoteClientConfig configures one upstream
type RemoteClientConfig struct {
	Name    string
	BaseURL string
	Timeout time.Duration
	Breaker config.BreakerConfig
	Headers map[string]string
}

// RemoteClient is the single choke point for calls to one upstream.
// Every call takes a limiter token, then runs through the circuit breaker, then hits the network.
// Failed calls are not retried.
type RemoteClient struct {
	name       string
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
	limiter    *ratelimiter.Limiter
	breaker    *gobreaker.CircuitBreaker
	metrics    *metrics.MetricsCollector
}

// NewRemoteClient creates a client for one upstream sharing the given limiter
func NewRemoteClient(cfg RemoteClientConfig, limiter *ratelimiter.Limiter, mc *metrics.MetricsCollector) *RemoteClient {
	if limiter == nil {
		limiter = ratelimiter.Unlimited()
	}
	if mc == nil {
		mc = metrics.NewMetricsCollector(nil)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	trip := cfg.Breaker.ConsecutiveFailures
	if trip == 0 {
		trip = 5
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > trip
		},
		// 4xx answers mean the upstream is healthy, the request was not
		IsSuccessful: func(err error) bool {
			var remoteErr *RemoteError
			if errors.As(err, &remoteErr) {
				return remoteErr.StatusCode < http.StatusInternalServerError && remoteErr.StatusCode != http.StatusTooManyRequests
			}
			return err == nil
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.GetLogger().Warn("Circuit breaker state changed",
				zap.String("upstream", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &RemoteClient{
		name:       cfg.Name,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		headers:    cfg.Headers,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		breaker:    gobreaker.NewCircuitBreaker(settings),
		metrics:    mc,
	}
}

// Name returns the upstream name used in logs and breaker state
func (c *RemoteClient) Name() string {
	return c.name
}

// Get fetches path with query params and decodes the JSON response into out
func (c *RemoteClient) Get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return c.do(ctx, http.MethodGet, u, nil, out)
}

// PostJSON posts body encoded as JSON and decodes the JSON response into out
func (c *RemoteClient) PostJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, c.baseURL+path, payload, out)
}

func (c *RemoteClient) do(ctx context.Context, method, u string, payload []byte, out any) error {
	log := logger.GetLogger().WithContext(ctx)

	waited, err := c.limiter.Wait(ctx)
	c.metrics.RecordLimiterWait(waited)
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, method, u, payload, out)
	})
	duration := time.Since(start)
	c.metrics.RecordRemoteCall(duration, err == nil)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%s %s: %w: %w", method, u, models.ErrUpstream, err)
		}
		log.Debug("Remote call failed",
			zap.String("upstream", c.name),
			zap.String("method", method),
			zap.String("url", u),
			zap.Duration("duration", duration),
			zap.Duration("limiter_wait", waited),
			zap.Error(err),
		)
		return err
	}

	log.Debug("Remote call completed",
		zap.String("upstream", c.name),
		zap.String("method", method),
		zap.String("url", u),
		zap.Duration("duration", duration),
		zap.Duration("limiter_wait", waited),
	)
	return nil
}

func (c *RemoteClient) roundTrip(ctx context.Context, method, u string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", method, u, models.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &RemoteError{
			Method:     method,
			URL:        u,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: failed to decode response: %w: %w", method, u, models.ErrUpstream, err)
	}
	return nil
}
