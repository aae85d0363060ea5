package handlers

import (
	"net/http"
	"time"

	"balance-aggregator/internal/services"

	"github.com/gin-gonic/gin"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	prober  services.HealthProberInterface
	version string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(prober services.HealthProberInterface, version string) *HealthHandler {
	return &HealthHandler{
		prober:  prober,
		version: version,
	}
}

// HealthResponse represents the overall health response
type HealthResponse struct {
	Status    services.HealthStatus            `json:"status"`
	Timestamp time.Time                        `json:"timestamp"`
	Services  map[string]*services.HealthCheck `json:"services"`
	Version   string                           `json:"version,omitempty"`
}

// GetHealth returns the overall health status
func (h *HealthHandler) GetHealth(c *gin.Context) {
	serviceChecks := h.prober.CheckAll(c.Request.Context())
	overallStatus := services.Overall(serviceChecks)

	response := HealthResponse{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Services:  serviceChecks,
		Version:   h.version,
	}

	// Degraded still answers 200
	statusCode := http.StatusOK
	if overallStatus == services.HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}

// GetLiveness returns a simple liveness check
func (h *HealthHandler) GetLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// GetReadiness reports not ready when any upstream is unreachable
func (h *HealthHandler) GetReadiness(c *gin.Context) {
	checks := h.prober.CheckAll(c.Request.Context())

	if failing := services.FailingServices(checks); len(failing) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "not_ready",
			"message":   "upstreams not available",
			"failing":   failing,
			"timestamp": time.Now(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}
