package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Router handles HTTP routing setup
type Router struct {
	aggregateHandler *AggregateHandler
	algorandHandler  *AlgorandHandler
	healthHandler    *HealthHandler
	metricsHandler   *MetricsHandler
}

// NewRouter creates a new Router instance with all handlers
func NewRouter(aggregate *AggregateHandler, algorand *AlgorandHandler, health *HealthHandler, metricsHandler *MetricsHandler) *Router {
	return &Router{
		aggregateHandler: aggregate,
		algorandHandler:  algorand,
		healthHandler:    health,
		metricsHandler:   metricsHandler,
	}
}

// SetupRoutes configures all API routes behind the given middleware
func (r *Router) SetupRoutes(engine *gin.Engine, middleware ...gin.HandlerFunc) {
	api := engine.Group("/api")
	api.Use(middleware...)
	{
		api.POST("/aggregate", r.aggregateHandler.Aggregate)

		if r.algorandHandler != nil {
			algorand := api.Group("/algorand")
			algorand.GET("/apps/:id/state", r.algorandHandler.GetAppState)
			algorand.GET("/lp-price", r.algorandHandler.GetLPPrice)
		}
	}
}

// SetupHealthRoutes configures health check routes
func (r *Router) SetupHealthRoutes(engine *gin.Engine) {
	health := engine.Group("/health")
	{
		health.GET("", r.healthHandler.GetHealth)          // Overall health
		health.GET("/live", r.healthHandler.GetLiveness)   // Liveness probe
		health.GET("/ready", r.healthHandler.GetReadiness) // Readiness probe
	}
}

// SetupMetricsRoutes configures the JSON and Prometheus metrics endpoints
func (r *Router) SetupMetricsRoutes(engine *gin.Engine, prometheusHandler http.Handler) {
	engine.GET("/metrics", r.metricsHandler.GetMetrics)
	if prometheusHandler != nil {
		engine.GET("/metrics/prometheus", gin.WrapH(prometheusHandler))
	}
}
