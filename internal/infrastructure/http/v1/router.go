// Package v1 provides HTTP API version 1.
package v1

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"facturo/internal/core/tx"
	"facturo/internal/infrastructure/http/v1/handlers"
	"facturo/internal/infrastructure/http/v1/middleware"
	"facturo/internal/infrastructure/metrics"
	"facturo/internal/infrastructure/storage/postgres"
	"facturo/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Pool backs the health endpoints; nil disables them
	Pool *postgres.Pool

	// TxManager is injected into every API request context
	TxManager tx.Manager

	// Logger for request logging
	Logger *logger.Logger

	// TokenValidator turns bearer tokens into the caller identity
	TokenValidator middleware.TokenValidator

	Documents handlers.DocumentService
	Audit     handlers.AuditHistory

	// Idempotency enables Idempotency-Key support on POST requests when set
	Idempotency middleware.IdempotencyStore

	// Metrics exposes /metrics and request latency when set
	Metrics *metrics.Recorder

	CORSOrigins []string
	Release     bool
	Version     string
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Release {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	if cfg.Metrics != nil {
		router.Use(cfg.Metrics.Middleware())
	}
	if len(cfg.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.HeaderIdempotencyKey, middleware.HeaderRequestID},
			ExposeHeaders:    []string{"Content-Length", middleware.HeaderRequestID, middleware.HeaderTraceID},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	router.Use(middleware.ErrorHandler())

	if cfg.Pool != nil {
		healthHandler := handlers.NewHealthHandler(cfg.Pool, cfg.Version)
		health := router.Group("/health")
		{
			health.GET("/live", healthHandler.Live)
			health.GET("/ready", healthHandler.Ready)
			health.GET("/info", healthHandler.Info)
		}
	}

	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	v1 := router.Group("/api/v1")
	{
		protected := v1.Group("")
		protected.Use(middleware.Database(cfg.TxManager)) // 1. Transaction manager for repositories
		protected.Use(middleware.Auth(cfg.TokenValidator)) // 2. Validate JWT
		if cfg.Idempotency != nil {
			protected.Use(middleware.Idempotency(cfg.Idempotency)) // 3. Replay retried POSTs
		}

		baseHandler := handlers.NewBaseHandler()

		totalsHandler := handlers.NewTotalsHandler(baseHandler)
		protected.POST("/totals/preview", totalsHandler.Preview)

		documentHandler := handlers.NewDocumentHandler(baseHandler, cfg.Documents, cfg.Audit)
		RegisterDocumentRoutes(protected.Group("/documents"), documentHandler)
	}

	return router
}
