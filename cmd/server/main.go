package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpAdapter "github.com/iho/chainledger/internal/adapter/http"
	"github.com/iho/chainledger/internal/adapter/http/handler"
	"github.com/iho/chainledger/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/chainledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/chainledger/internal/adapter/repository/redis"
	"github.com/iho/chainledger/internal/infrastructure/auditworker"
	"github.com/iho/chainledger/internal/infrastructure/config"
	"github.com/iho/chainledger/internal/infrastructure/postgres"
	"github.com/iho/chainledger/internal/infrastructure/redis"
	"github.com/iho/chainledger/internal/infrastructure/signing"
	"github.com/iho/chainledger/internal/usecase"
)

func main() {
	// Setup logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Setup log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx := context.Background()

	// Connect to PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	if cfg.MigrationsPath != "" {
		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
	}

	// Connect to Redis
	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	// Signing keys
	keys, err := signing.NewProvider(signingConfig(cfg))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load signing keys")
	}

	// Initialize repositories
	txManager := postgresRepo.NewTxManager(pool)
	accountRepo := postgresRepo.NewAccountRepository(pool)
	chainRepo := postgresRepo.NewChainRepository(pool)
	entryRepo := postgresRepo.NewEntryRepository(pool)
	backlogRepo := postgresRepo.NewBacklogRepository(pool)
	idGen := postgresRepo.NewULIDGenerator()
	cache := redisRepo.NewCache(redisClient)
	idempotencyStore := redisRepo.NewIdempotencyStore(redisClient)

	// Initialize use cases
	auditTrail := usecase.NewAuditTrail(txManager, chainRepo, keys, idGen)
	ledgerEngine := usecase.NewLedgerEngine(usecase.LedgerEngineConfig{
		TxManager: txManager,
		Accounts:  accountRepo,
		Entries:   entryRepo,
		Chains:    chainRepo,
		TxIndex:   chainRepo,
		Keys:      keys,
		IDGen:     idGen,
		Audit:     auditTrail,
		Backlog:   backlogRepo,
		Cache:     cache,
		Logger:    log.Logger,
	})
	reconciliation := usecase.NewReconciliationEngine(accountRepo, ledgerEngine, auditTrail)
	compliance := usecase.NewComplianceReporter(chainRepo, auditTrail, backlogRepo)
	export := usecase.NewExportUseCase(chainRepo, keys, auditTrail)
	accountUC := usecase.NewAccountUseCase(accountRepo, ledgerEngine, auditTrail, idGen)

	// Initialize handlers
	accountHandler := handler.NewAccountHandler(accountUC)
	ledgerHandler := handler.NewLedgerHandler(ledgerEngine)
	auditHandler := handler.NewAuditHandler(auditTrail)
	reconHandler := handler.NewReconciliationHandler(reconciliation)
	complianceHandler := handler.NewComplianceHandler(compliance)
	exportHandler := handler.NewExportHandler(export)
	healthHandler := handler.NewHealthHandler(pool, redisClient)

	// Create router
	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		AccountHandler:        accountHandler,
		LedgerHandler:         ledgerHandler,
		AuditHandler:          auditHandler,
		ReconciliationHandler: reconHandler,
		ComplianceHandler:     complianceHandler,
		ExportHandler:         exportHandler,
		HealthHandler:         healthHandler,
		IdempotencyStore:      idempotencyStore,
		RateLimiter:           middleware.NewRateLimiter(100, 200),
		Logger:                &log.Logger,
	})

	// Start the audit backlog worker
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()

	worker := auditworker.New(auditworker.Config{
		Backlog:   backlogRepo,
		Recorder:  auditTrail,
		Retryer:   postgresRepo.NewRetrier(),
		BatchSize: cfg.BacklogWorkerBatch,
		Interval:  cfg.BacklogWorkerInterval,
	})
	go func() {
		if err := worker.Start(workerCtx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("audit backlog worker stopped")
		}
	}()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")
	stopWorker()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// signingConfig maps the flat environment configuration onto per-purpose
// key sets. The export purpose additionally carries the optional Ed25519
// seed.
func signingConfig(cfg *config.Config) map[string]signing.PurposeConfig {
	return map[string]signing.PurposeConfig{
		usecase.PurposeAudit: {
			Keys:      cfg.AuditSigningKeys,
			ActiveKey: cfg.AuditActiveKey,
		},
		usecase.PurposeFinancial: {
			Keys:      cfg.FinancialSigningKeys,
			ActiveKey: cfg.FinancialActiveKey,
		},
		usecase.PurposeExport: {
			Keys:        cfg.ExportSigningKeys,
			ActiveKey:   cfg.ExportActiveKey,
			Ed25519Seed: cfg.ExportEd25519Seed,
		},
	}
}
