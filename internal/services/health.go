package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health status of a service
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// HealthCheck represents a health check result
type HealthCheck struct {
	Service      string        `json:"service"`
	Status       HealthStatus  `json:"status"`
	Message      string        `json:"message,omitempty"`
	ResponseTime time.Duration `json:"response_time"`
	Timestamp    time.Time     `json:"timestamp"`
}

// UpstreamHealthChecker probes the upstream of every registered adapter
type UpstreamHealthChecker struct {
	registry *Registry
	timeout  time.Duration
}

// NewUpstreamHealthChecker creates a checker over registry with a per-probe timeout
func NewUpstreamHealthChecker(registry *Registry, timeout time.Duration) *UpstreamHealthChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &UpstreamHealthChecker{registry: registry, timeout: timeout}
}

// CheckAll probes every adapter concurrently and returns one result per adapter
func (h *UpstreamHealthChecker) CheckAll(ctx context.Context) map[string]*HealthCheck {
	checkers := h.registry.HealthCheckers()
	results := make(map[string]*HealthCheck, len(checkers))

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for chain, checker := range checkers {
		wg.Add(1)
		go func(chain string, checker HealthChecker) {
			defer wg.Done()
			check := h.check(ctx, chain, checker)
			mu.Lock()
			results[chain] = check
			mu.Unlock()
		}(chain, checker)
	}
	wg.Wait()

	return results
}

func (h *UpstreamHealthChecker) check(ctx context.Context, chain string, checker HealthChecker) *HealthCheck {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	healthCheck := &HealthCheck{
		Service:   chain,
		Timestamp: start,
	}

	if err := checker.IsHealthy(ctx); err != nil {
		healthCheck.Status = HealthStatusUnhealthy
		healthCheck.Message = fmt.Sprintf("probe failed: %v", err)
		healthCheck.ResponseTime = time.Since(start)
		return healthCheck
	}

	healthCheck.Status = HealthStatusHealthy
	healthCheck.Message = "upstream reachable"
	healthCheck.ResponseTime = time.Since(start)
	return healthCheck
}

// Overall folds per-adapter results: all healthy is healthy, all unhealthy is unhealthy,
// anything else is degraded. No adapters is healthy.
func Overall(checks map[string]*HealthCheck) HealthStatus {
	if len(checks) == 0 {
		return HealthStatusHealthy
	}
	unhealthy := 0
	for _, c := range checks {
		if c.Status != HealthStatusHealthy {
			unhealthy++
		}
	}
	switch unhealthy {
	case 0:
		return HealthStatusHealthy
	case len(checks):
		return HealthStatusUnhealthy
	default:
		return HealthStatusDegraded
	}
}

// FailingServices returns the names of unhealthy services in lexical order
func FailingServices(checks map[string]*HealthCheck) []string {
	var failing []string
	for name, c := range checks {
		if c.Status != HealthStatusHealthy {
			failing = append(failing, name)
		}
	}
	sort.Strings(failing)
	return failing
}
