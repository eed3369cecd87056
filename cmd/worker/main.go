// Package main is the entry point for the Facturo background worker.
// It marks unpaid invoices overdue and purges expired idempotency keys.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"facturo/internal/core/tenant"
	"facturo/internal/domain/documents"
	"facturo/internal/domain/registers/stock"
	"facturo/internal/infrastructure/numerator"
	"facturo/internal/infrastructure/storage/postgres"
	"facturo/internal/infrastructure/storage/postgres/document_repo"
	"facturo/internal/infrastructure/storage/postgres/register_repo"
	"facturo/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting facturo worker")

	poolCfg := postgres.DefaultPoolConfig(mustEnv("DATABASE_URL"))
	poolCfg.MaxConns = 4
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool, getEnvDuration("DB_STATEMENT_TIMEOUT", 30*time.Second))
	auditService, err := postgres.NewAuditService()
	if err != nil {
		log.Fatalw("failed to create audit service", "error", err)
	}

	documentService := documents.NewService(
		document_repo.NewDocumentRepo(),
		stock.NewCoordinator(register_repo.NewStockRepo(), txManager),
		numerator.NewWithQuerier(func(ctx context.Context) numerator.Querier {
			return txManager.GetQuerier(ctx)
		}),
		documents.WithTxManager(txManager),
		documents.WithAuditor(auditService),
	)

	worker := NewWorker(
		documentService,
		postgres.NewIdempotencyStore(txManager, 0),
		log,
		Intervals{
			Overdue: getEnvDuration("WORKER_OVERDUE_INTERVAL", 15*time.Minute),
			Cleanup: getEnvDuration("WORKER_CLEANUP_INTERVAL", time.Hour),
		},
	)

	// Repositories resolve the transaction manager from context.
	workerCtx := tenant.WithTxManager(ctx, txManager)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(workerCtx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
