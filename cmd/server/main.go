// Package main is the entry point for the Facturo API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"facturo/internal/config"
	"facturo/internal/domain/auth"
	"facturo/internal/domain/documents"
	"facturo/internal/domain/registers/stock"
	v1 "facturo/internal/infrastructure/http/v1"
	"facturo/internal/infrastructure/metrics"
	"facturo/internal/infrastructure/numerator"
	"facturo/internal/infrastructure/storage/postgres"
	"facturo/internal/infrastructure/storage/postgres/document_repo"
	"facturo/internal/infrastructure/storage/postgres/register_repo"
	"facturo/pkg/logger"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const idempotencyTTL = 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx := context.Background()
	log.Infow("starting facturo server", "version", version, "env", cfg.Env)

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	poolCfg.MaxConns = cfg.DBMaxConns
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool, cfg.TxTimeout)
	log.Infow("database connection established", "max_conns", cfg.DBMaxConns)

	// --- Stock register ---
	stockCoordinator := stock.NewCoordinator(register_repo.NewStockRepo(), txManager)

	// --- Numerator ---
	// Sequences are taken on the business transaction so a rollback never burns a number.
	numeratorService := numerator.NewWithQuerier(func(ctx context.Context) numerator.Querier {
		return txManager.GetQuerier(ctx)
	})

	// --- Audit ---
	auditService, err := postgres.NewAuditService()
	if err != nil {
		log.Fatalw("failed to create audit service", "error", err)
	}

	// --- Metrics ---
	recorder := metrics.NewRecorder()
	recorder.RegisterPool(pool)

	// --- Documents ---
	documentService := documents.NewService(
		document_repo.NewDocumentRepo(),
		stockCoordinator,
		numeratorService,
		documents.WithTxManager(txManager),
		documents.WithAuditor(auditService),
		documents.WithObserver(recorder),
		documents.WithDefaultCurrency(cfg.DefaultCurrency),
	)

	// --- JWT Service ---
	jwtConfig := auth.DefaultJWTConfig(cfg.JWTSecret)
	jwtConfig.Issuer = cfg.JWTIssuer
	jwtService := auth.NewJWTService(jwtConfig)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:           pool,
		TxManager:      txManager,
		Logger:         log,
		TokenValidator: jwtService,
		Documents:      documentService,
		Audit:          auditService,
		Idempotency:    postgres.NewIdempotencyStore(txManager, idempotencyTTL),
		Metrics:        recorder,
		CORSOrigins:    cfg.CORSOrigins,
		Release:        !cfg.IsDevelopment(),
		Version:        version,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
