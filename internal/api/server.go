// Package api wires the HTTP surface: analysis runs, deployment events,
// adaptive weights, health probes and Prometheus metrics.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/becertain-core/internal/api/handlers"
	"github.com/platformbuilds/becertain-core/internal/api/middleware"
	"github.com/platformbuilds/becertain-core/internal/config"
	"github.com/platformbuilds/becertain-core/internal/engine/analyzer"
	"github.com/platformbuilds/becertain-core/internal/monitoring"
	"github.com/platformbuilds/becertain-core/internal/store"
	"github.com/platformbuilds/becertain-core/pkg/cache"
	"github.com/platformbuilds/becertain-core/pkg/logger"
)

type Server struct {
	config     *config.Config
	logger     logger.Logger
	kv         cache.KVStore
	registry   *store.TenantRegistry
	analyzer   *analyzer.Analyzer
	router     *gin.Engine
	httpServer *http.Server
}

func NewServer(
	cfg *config.Config,
	log logger.Logger,
	kv cache.KVStore,
	registry *store.TenantRegistry,
	a *analyzer.Analyzer,
) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &Server{
		config:   cfg,
		logger:   log,
		kv:       kv,
		registry: registry,
		analyzer: a,
		router:   gin.New(),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.TenantResolver(s.config.DefaultTenantID))
	s.router.Use(middleware.RequestLogger(s.logger))
	s.router.Use(monitoring.HTTPMetricsMiddleware())

	monitoring.SetupPrometheusMetrics(s.router)
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.config, s.kv, s.logger)
	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)

	v1 := s.router.Group("/api/v1")

	analyzeHandler := handlers.NewAnalyzeHandler(s.analyzer, s.config, s.logger)
	v1.POST("/analyze", analyzeHandler.Analyze)

	eventsHandler := handlers.NewEventsHandler(s.registry, s.logger)
	v1.POST("/events", eventsHandler.Register)
	v1.GET("/events", eventsHandler.List)
	v1.DELETE("/events", eventsHandler.Clear)

	weightsHandler := handlers.NewWeightsHandler(s.registry, s.logger)
	v1.GET("/weights", weightsHandler.Get)
	v1.POST("/weights/feedback", weightsHandler.Feedback)
	v1.DELETE("/weights", weightsHandler.Reset)
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("REST API server starting", "port", s.config.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutting down gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
