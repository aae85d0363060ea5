package middleware

import (
	"time"

	"balance-aggregator/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// MetricsMiddleware creates a middleware that tracks HTTP request metrics
func MetricsMiddleware(metricsCollector *metrics.MetricsCollector) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		metricsCollector.RecordRequest()

		c.Next()

		// Client errors count as served
		success := c.Writer.Status() < 500

		metricsCollector.RecordRequestComplete(time.Since(startTime), success)
	}
}
