package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"balance-aggregator/internal/config"
	"balance-aggregator/internal/handlers"
	"balance-aggregator/internal/middleware"
	"balance-aggregator/internal/services"
	"balance-aggregator/pkg/logger"
	"balance-aggregator/pkg/metrics"
	"balance-aggregator/pkg/ratelimiter"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const version = "1.0.0"

// Server represents the main application server
type Server struct {
	httpServer  *http.Server
	config      *config.Config
	registry    *prometheus.Registry
	services    *services.Services
	authService *services.AuthService
	httpMetrics *metrics.MetricsCollector
	aggMetrics  *metrics.MetricsCollector
	rateLimiter *ratelimiter.IPLimiter
	router      *handlers.Router
	stop        chan struct{}
}

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to a config file (yaml, json or toml)")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logging
	loggerConfig := &logger.Config{
		Level:       cfg.Logging.Level,
		Environment: cfg.Logging.Environment,
		OutputPaths: cfg.Logging.OutputPaths,
	}

	if err := logger.Initialize(loggerConfig); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log := logger.GetLogger()

	log.Info("Starting balance aggregator server",
		zap.String("address", cfg.Server.Address()),
		zap.String("indexer_url", cfg.Algorand.IndexerURL),
		zap.Float64("indexer_rps", cfg.Algorand.RequestsPerSecond),
		zap.Bool("evm_enabled", cfg.EVM.Enabled),
		zap.Bool("auth_enabled", len(cfg.Auth.APIKeys) > 0),
		zap.Int("rate_limit_rpm", cfg.RateLimit.RequestsPerMinute),
		zap.String("log_level", cfg.Logging.Level),
		zap.String("environment", cfg.Logging.Environment),
	)

	server := NewServer(cfg)

	// Start server with graceful shutdown
	if err := server.Start(); err != nil {
		log.Fatal("Server failed to start", zap.Error(err))
	}
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) *Server {
	log := logger.GetLogger()

	log.Info("Initializing server components")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Aggregation metrics are exported; HTTP metrics stay in-process only
	aggMetrics := metrics.NewMetricsCollector(registry)
	httpMetrics := metrics.NewMetricsCollector(nil)

	log.Debug("Building chain adapters")
	svc := services.Build(cfg, aggMetrics)

	log.Debug("Initializing authentication service")
	authService := services.NewAuthService(cfg.Auth.APIKeys)
	if !authService.Enabled() {
		log.Warn("No API keys configured, authentication disabled")
	}

	rateLimiter := ratelimiter.NewIPLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst, cfg.RateLimit.IdleTTL)

	prober := services.NewUpstreamHealthChecker(svc.Engine.Registry(), 5*time.Second)

	router := handlers.NewRouter(
		handlers.NewAggregateHandler(svc.Engine),
		handlers.NewAlgorandHandler(svc.Algorand),
		handlers.NewHealthHandler(prober, version),
		handlers.NewMetricsHandler(aggMetrics, httpMetrics, version),
	)

	log.Info("Server components initialized successfully",
		zap.Strings("chains", svc.Engine.Registry().Chains()),
	)

	return &Server{
		config:      cfg,
		registry:    registry,
		services:    svc,
		authService: authService,
		httpMetrics: httpMetrics,
		aggMetrics:  aggMetrics,
		rateLimiter: rateLimiter,
		router:      router,
		stop:        make(chan struct{}),
	}
}

// Handler builds the gin engine with the full middleware stack and all routes
func (s *Server) Handler() *gin.Engine {
	engine := gin.New()
	s.setupMiddleware(engine)
	s.setupRoutes(engine)
	return engine
}

// Start starts the HTTP server with graceful shutdown handling
func (s *Server) Start() error {
	log := logger.GetLogger()

	// Set Gin mode based on environment
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	s.httpServer = &http.Server{
		Addr:              s.config.Server.Address(),
		Handler:           s.Handler(),
		ReadTimeout:       s.config.Server.ReadTimeout,
		WriteTimeout:      s.config.Server.WriteTimeout,
		IdleTimeout:       s.config.Server.IdleTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	log.Info("HTTP server configured",
		zap.String("address", s.httpServer.Addr),
		zap.Duration("read_timeout", s.config.Server.ReadTimeout),
		zap.Duration("write_timeout", s.config.Server.WriteTimeout),
		zap.Duration("idle_timeout", s.config.Server.IdleTimeout),
	)

	s.startCleanupRoutines()

	go func() {
		log.Info("Starting HTTP server", zap.String("address", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	return s.waitForShutdown()
}

// setupMiddleware configures the middleware stack
func (s *Server) setupMiddleware(engine *gin.Engine) {
	// Recovery middleware with structured logging (should be first)
	engine.Use(logger.RecoveryMiddleware())

	// Structured logging middleware with correlation IDs
	engine.Use(logger.LoggingMiddleware())

	engine.Use(middleware.PerformanceMiddleware())
	engine.Use(middleware.RequestSizeMiddleware())
	engine.Use(middleware.ConcurrencyMiddleware(s.httpMetrics))
	engine.Use(middleware.MetricsMiddleware(s.httpMetrics))

	engine.Use(s.corsMiddleware())
}

// setupRoutes configures all application routes
func (s *Server) setupRoutes(engine *gin.Engine) {
	// Health and metrics routes are neither rate limited nor authenticated
	s.router.SetupHealthRoutes(engine)
	s.router.SetupMetricsRoutes(engine, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	// Rate limiting runs before auth to prevent auth bypass attempts
	s.router.SetupRoutes(engine,
		s.rateLimiter.Middleware(),
		middleware.AuthMiddleware(s.authService),
	)

	engine.GET("/status", s.statusHandler)
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-API-Key")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// statusHandler provides detailed status information
func (s *Server) statusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":      "balance-aggregator",
		"status":       "running",
		"chains":       s.services.Engine.Registry().Chains(),
		"balance_only": services.BalanceOnlyChains(),
		"evm_fallback": s.services.EVM != nil,
		"tracked_ips":  s.rateLimiter.Size(),
		"uptime":       s.aggMetrics.GetUptime().String(),
		"auth_enabled": s.authService.Enabled(),
		"version":      version,
	})
}

// startCleanupRoutines starts background cleanup tasks
func (s *Server) startCleanupRoutines() {
	log := logger.GetLogger()

	interval := s.config.RateLimit.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Debug("Starting rate limiter cleanup routine", zap.Duration("interval", interval))

		for {
			select {
			case <-ticker.C:
				s.rateLimiter.Cleanup()
			case <-s.stop:
				return
			}
		}
	}()
}

// waitForShutdown waits for interrupt signal and performs graceful shutdown
func (s *Server) waitForShutdown() error {
	log := logger.GetLogger()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Info("Received shutdown signal", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log.Info("Shutting down HTTP server", zap.Duration("timeout", 30*time.Second))

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	close(s.stop)

	if err := logger.GetLogger().Sync(); err != nil {
		// Don't log this error as logger might be closed
		fmt.Printf("Error syncing logger: %v\n", err)
	}

	log.Info("Server gracefully stopped")
	return nil
}
