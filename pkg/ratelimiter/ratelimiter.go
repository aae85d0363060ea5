package ratelimiter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is the shared token bucket in front of an upstream indexer.
// Every outbound call takes one token; callers block until a token is available.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a Limiter refilling perSecond tokens every second with the given burst
func New(perSecond float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Unlimited returns a Limiter that never blocks, used by tests and local fixtures
func Unlimited() *Limiter {
	return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1)}
}

// Wait blocks until a token is available and returns how long the caller was suspended.
// It only fails when ctx is done first.
func (l *Limiter) Wait(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return time.Since(start), fmt.Errorf("rate limiter: %w", err)
	}
	return time.Since(start), nil
}

// Limit returns the configured refill rate in tokens per second
func (l *Limiter) Limit() float64 {
	return float64(l.limiter.Limit())
}

// clientEntry holds a per-client limiter and its last access time for cleanup
type clientEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// IPLimiter rate limits inbound API traffic per client IP
type IPLimiter struct {
	clients map[string]*clientEntry
	mutex   sync.Mutex
	perMin  int
	burst   int
	idleTTL time.Duration
	nowFunc func() time.Time
}

// NewIPLimiter allows requestsPerMinute per client with the given burst.
// Clients idle for longer than idleTTL are dropped by Cleanup.
func NewIPLimiter(requestsPerMinute, burst int, idleTTL time.Duration) *IPLimiter {
	if requestsPerMinute < 1 {
		requestsPerMinute = 1
	}
	if burst < 1 {
		burst = requestsPerMinute
	}
	return &IPLimiter{
		clients: make(map[string]*clientEntry),
		perMin:  requestsPerMinute,
		burst:   burst,
		idleTTL: idleTTL,
		nowFunc: time.Now,
	}
}

func (rl *IPLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	entry, exists := rl.clients[ip]
	if !exists {
		entry = &clientEntry{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rl.perMin)), rl.burst),
		}
		rl.clients[ip] = entry
	}
	entry.lastAccess = rl.nowFunc()
	return entry.limiter
}

// IsAllowed checks if the IP address is allowed to make a request
func (rl *IPLimiter) IsAllowed(ip string) bool {
	return rl.getLimiter(ip).Allow()
}

// Remaining returns the whole tokens currently left for an IP
func (rl *IPLimiter) Remaining(ip string) int {
	tokens := int(rl.getLimiter(ip).Tokens())
	if tokens < 0 {
		return 0
	}
	return tokens
}

// RetryAfter estimates how long a throttled client should wait for its next token
func (rl *IPLimiter) RetryAfter() time.Duration {
	return time.Minute / time.Duration(rl.perMin)
}

// Size returns the number of tracked clients
func (rl *IPLimiter) Size() int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	return len(rl.clients)
}

// Cleanup removes clients that have been idle longer than the configured TTL
func (rl *IPLimiter) Cleanup() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.nowFunc()
	for ip, entry := range rl.clients {
		if now.Sub(entry.lastAccess) > rl.idleTTL {
			delete(rl.clients, ip)
		}
	}
}
