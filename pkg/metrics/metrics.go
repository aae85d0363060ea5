package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds performance metrics for the aggregator
type Metrics struct {
	// Request metrics
	TotalRequests      int64 `json:"total_requests"`
	SuccessfulRequests int64 `json:"successful_requests"`
	FailedRequests     int64 `json:"failed_requests"`

	// Response time metrics
	AverageResponseTime time.Duration `json:"average_response_time"`
	MinResponseTime     time.Duration `json:"min_response_time"`
	MaxResponseTime     time.Duration `json:"max_response_time"`

	// Cache metrics
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`

	// Upstream metrics
	RemoteCalls       int64         `json:"remote_calls"`
	RemoteFailures    int64         `json:"remote_failures"`
	AverageRemoteTime time.Duration `json:"average_remote_time"`

	// Concurrency metrics
	ActiveRequests   int64         `json:"active_requests"`
	LimiterWaits     int64         `json:"limiter_waits"`
	TotalLimiterWait time.Duration `json:"total_limiter_wait"`

	totalResponseTime time.Duration
	totalRemoteTime   time.Duration
	mutex             sync.RWMutex
}

// MetricsCollector provides thread-safe metrics collection
type MetricsCollector struct {
	metrics   *Metrics
	startTime time.Time
	prom      *promMetrics
}

type promMetrics struct {
	requests      *prometheus.CounterVec
	duration      prometheus.Histogram
	cache         *prometheus.CounterVec
	remoteCalls   *prometheus.CounterVec
	remoteLatency prometheus.Histogram
	limiterWait   prometheus.Histogram
}

// NewMetricsCollector creates a new metrics collector.
// When reg is non-nil the same numbers are also exported as Prometheus series.
func NewMetricsCollector(reg prometheus.Registerer) *MetricsCollector {
	mc := &MetricsCollector{
		metrics: &Metrics{
			MinResponseTime: time.Duration(^uint64(0) >> 1),
		},
		startTime: time.Now(),
	}
	if reg != nil {
		mc.prom = newPromMetrics(reg)
	}
	return mc
}

func newPromMetrics(reg prometheus.Registerer) *promMetrics {
	p := &promMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "balance_aggregator",
			Name:      "aggregations_total",
			Help:      "Aggregation requests by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "balance_aggregator",
			Name:      "aggregation_duration_seconds",
			Help:      "Wall time of a single aggregation.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "balance_aggregator",
			Name:      "cache_lookups_total",
			Help:      "Coalescing cache lookups by result.",
		}, []string{"result"}),
		remoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "balance_aggregator",
			Name:      "remote_calls_total",
			Help:      "Upstream indexer/RPC calls by outcome.",
		}, []string{"outcome"}),
		remoteLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "balance_aggregator",
			Name:      "remote_call_duration_seconds",
			Help:      "Upstream call latency, excluding limiter wait.",
			Buckets:   prometheus.DefBuckets,
		}),
		limiterWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "balance_aggregator",
			Name:      "limiter_wait_seconds",
			Help:      "Time spent waiting for an outbound rate limit token.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
	reg.MustRegister(p.requests, p.duration, p.cache, p.remoteCalls, p.remoteLatency, p.limiterWait)
	return p
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// RecordRequest records a new aggregation
func (mc *MetricsCollector) RecordRequest() {
	atomic.AddInt64(&mc.metrics.TotalRequests, 1)
	atomic.AddInt64(&mc.metrics.ActiveRequests, 1)
}

// RecordRequestComplete records aggregation completion
func (mc *MetricsCollector) RecordRequestComplete(duration time.Duration, success bool) {
	atomic.AddInt64(&mc.metrics.ActiveRequests, -1)

	if success {
		atomic.AddInt64(&mc.metrics.SuccessfulRequests, 1)
	} else {
		atomic.AddInt64(&mc.metrics.FailedRequests, 1)
	}

	if mc.prom != nil {
		mc.prom.requests.WithLabelValues(outcome(success)).Inc()
		mc.prom.duration.Observe(duration.Seconds())
	}

	mc.metrics.mutex.Lock()
	defer mc.metrics.mutex.Unlock()

	mc.metrics.totalResponseTime += duration

	if duration < mc.metrics.MinResponseTime {
		mc.metrics.MinResponseTime = duration
	}
	if duration > mc.metrics.MaxResponseTime {
		mc.metrics.MaxResponseTime = duration
	}

	totalRequests := atomic.LoadInt64(&mc.metrics.TotalRequests)
	if totalRequests > 0 {
		mc.metrics.AverageResponseTime = mc.metrics.totalResponseTime / time.Duration(totalRequests)
	}
}

// RecordCacheHit records a cache hit
func (mc *MetricsCollector) RecordCacheHit() {
	atomic.AddInt64(&mc.metrics.CacheHits, 1)
	if mc.prom != nil {
		mc.prom.cache.WithLabelValues("hit").Inc()
	}
}

// RecordCacheMiss records a cache miss
func (mc *MetricsCollector) RecordCacheMiss() {
	atomic.AddInt64(&mc.metrics.CacheMisses, 1)
	if mc.prom != nil {
		mc.prom.cache.WithLabelValues("miss").Inc()
	}
}

// RecordRemoteCall records an upstream call
func (mc *MetricsCollector) RecordRemoteCall(duration time.Duration, success bool) {
	atomic.AddInt64(&mc.metrics.RemoteCalls, 1)
	if !success {
		atomic.AddInt64(&mc.metrics.RemoteFailures, 1)
	}

	if mc.prom != nil {
		mc.prom.remoteCalls.WithLabelValues(outcome(success)).Inc()
		mc.prom.remoteLatency.Observe(duration.Seconds())
	}

	mc.metrics.mutex.Lock()
	defer mc.metrics.mutex.Unlock()

	mc.metrics.totalRemoteTime += duration

	totalCalls := atomic.LoadInt64(&mc.metrics.RemoteCalls)
	if totalCalls > 0 {
		mc.metrics.AverageRemoteTime = mc.metrics.totalRemoteTime / time.Duration(totalCalls)
	}
}

// RecordLimiterWait records time a caller spent suspended on the outbound limiter.
// Waits under a millisecond are not counted as waits.
func (mc *MetricsCollector) RecordLimiterWait(waited time.Duration) {
	if mc.prom != nil {
		mc.prom.limiterWait.Observe(waited.Seconds())
	}
	if waited <= time.Millisecond {
		return
	}
	atomic.AddInt64(&mc.metrics.LimiterWaits, 1)

	mc.metrics.mutex.Lock()
	mc.metrics.TotalLimiterWait += waited
	mc.metrics.mutex.Unlock()
}

// GetMetrics returns a copy of current metrics
func (mc *MetricsCollector) GetMetrics() *Metrics {
	mc.metrics.mutex.RLock()
	defer mc.metrics.mutex.RUnlock()

	return &Metrics{
		TotalRequests:       atomic.LoadInt64(&mc.metrics.TotalRequests),
		SuccessfulRequests:  atomic.LoadInt64(&mc.metrics.SuccessfulRequests),
		FailedRequests:      atomic.LoadInt64(&mc.metrics.FailedRequests),
		AverageResponseTime: mc.metrics.AverageResponseTime,
		MinResponseTime:     mc.metrics.MinResponseTime,
		MaxResponseTime:     mc.metrics.MaxResponseTime,
		CacheHits:           atomic.LoadInt64(&mc.metrics.CacheHits),
		CacheMisses:         atomic.LoadInt64(&mc.metrics.CacheMisses),
		RemoteCalls:         atomic.LoadInt64(&mc.metrics.RemoteCalls),
		RemoteFailures:      atomic.LoadInt64(&mc.metrics.RemoteFailures),
		AverageRemoteTime:   mc.metrics.AverageRemoteTime,
		ActiveRequests:      atomic.LoadInt64(&mc.metrics.ActiveRequests),
		LimiterWaits:        atomic.LoadInt64(&mc.metrics.LimiterWaits),
		TotalLimiterWait:    mc.metrics.TotalLimiterWait,
	}
}

// GetUptime returns the uptime since metrics collection started
func (mc *MetricsCollector) GetUptime() time.Duration {
	return time.Since(mc.startTime)
}

// Reset resets all in-process metrics. Prometheus series are monotonic and are left alone.
func (mc *MetricsCollector) Reset() {
	mc.metrics.mutex.Lock()
	defer mc.metrics.mutex.Unlock()

	atomic.StoreInt64(&mc.metrics.TotalRequests, 0)
	atomic.StoreInt64(&mc.metrics.SuccessfulRequests, 0)
	atomic.StoreInt64(&mc.metrics.FailedRequests, 0)
	atomic.StoreInt64(&mc.metrics.CacheHits, 0)
	atomic.StoreInt64(&mc.metrics.CacheMisses, 0)
	atomic.StoreInt64(&mc.metrics.RemoteCalls, 0)
	atomic.StoreInt64(&mc.metrics.RemoteFailures, 0)
	atomic.StoreInt64(&mc.metrics.ActiveRequests, 0)
	atomic.StoreInt64(&mc.metrics.LimiterWaits, 0)

	mc.metrics.AverageResponseTime = 0
	mc.metrics.MinResponseTime = time.Duration(^uint64(0) >> 1)
	mc.metrics.MaxResponseTime = 0
	mc.metrics.AverageRemoteTime = 0
	mc.metrics.TotalLimiterWait = 0
	mc.metrics.totalResponseTime = 0
	mc.metrics.totalRemoteTime = 0

	mc.startTime = time.Now()
}

// GetCacheHitRatio returns the cache hit ratio as a percentage
func (mc *MetricsCollector) GetCacheHitRatio() float64 {
	hits := atomic.LoadInt64(&mc.metrics.CacheHits)
	misses := atomic.LoadInt64(&mc.metrics.CacheMisses)
	total := hits + misses

	if total == 0 {
		return 0.0
	}
	return float64(hits) / float64(total) * 100.0
}

// GetSuccessRate returns the success rate as a percentage
func (mc *MetricsCollector) GetSuccessRate() float64 {
	successful := atomic.LoadInt64(&mc.metrics.SuccessfulRequests)
	total := atomic.LoadInt64(&mc.metrics.TotalRequests)

	if total == 0 {
		return 0.0
	}
	return float64(successful) / float64(total) * 100.0
}

// Stats flattens the metrics into the JSON shape served on /metrics
func (mc *MetricsCollector) Stats() map[string]interface{} {
	m := mc.GetMetrics()
	return map[string]interface{}{
		"uptime":                   mc.GetUptime().String(),
		"total_requests":           m.TotalRequests,
		"successful_requests":      m.SuccessfulRequests,
		"failed_requests":          m.FailedRequests,
		"success_rate_percent":     mc.GetSuccessRate(),
		"average_response_time_ms": m.AverageResponseTime.Milliseconds(),
		"max_response_time_ms":     m.MaxResponseTime.Milliseconds(),
		"cache_hits":               m.CacheHits,
		"cache_misses":             m.CacheMisses,
		"cache_hit_ratio_percent":  mc.GetCacheHitRatio(),
		"remote_calls":             m.RemoteCalls,
		"remote_failures":          m.RemoteFailures,
		"average_remote_time_ms":   m.AverageRemoteTime.Milliseconds(),
		"active_requests":          m.ActiveRequests,
		"limiter_waits":            m.LimiterWaits,
		"total_limiter_wait_ms":    m.TotalLimiterWait.Milliseconds(),
	}
}
