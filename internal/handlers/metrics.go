package handlers

import (
	"net/http"

	"balance-aggregator/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// MetricsHandler serves in-process performance statistics
type MetricsHandler struct {
	aggregation *metrics.MetricsCollector
	http        *metrics.MetricsCollector
	version     string
}

// NewMetricsHandler creates a handler over the aggregation and HTTP collectors
func NewMetricsHandler(aggregation, httpMetrics *metrics.MetricsCollector, version string) *MetricsHandler {
	return &MetricsHandler{aggregation: aggregation, http: httpMetrics, version: version}
}

// GetMetrics handles GET /metrics
func (h *MetricsHandler) GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":     "balance-aggregator",
		"version":     h.version,
		"aggregation": h.aggregation.Stats(),
		"http":        h.http.Stats(),
	})
}
