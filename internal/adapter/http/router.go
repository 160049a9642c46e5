package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/chainledger/internal/adapter/http/handler"
	"github.com/iho/chainledger/internal/adapter/http/middleware"
	"github.com/iho/chainledger/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	AccountHandler        *handler.AccountHandler
	LedgerHandler         *handler.LedgerHandler
	AuditHandler          *handler.AuditHandler
	ReconciliationHandler *handler.ReconciliationHandler
	ComplianceHandler     *handler.ComplianceHandler
	ExportHandler         *handler.ExportHandler
	HealthHandler         *handler.HealthHandler
	IdempotencyStore      usecase.IdempotencyStore
	RateLimiter           *middleware.RateLimiter
	Logger                *zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	if cfg.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(*cfg.Logger).Wrap)
	}
	r.Use(middleware.Recovery)
	r.Use(middleware.Metrics)
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health and observability endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			idempotencyMiddleware := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore)
			r.Use(idempotencyMiddleware.Wrap)
		}

		// Accounts
		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", cfg.AccountHandler.Create)
			r.Get("/", cfg.AccountHandler.List)
			r.Get("/{id}", cfg.AccountHandler.Get)
			r.Get("/{id}/balance", cfg.LedgerHandler.GetBalance)
			r.Get("/{id}/entries", cfg.LedgerHandler.ListEntries)
			r.Get("/{id}/replay", cfg.LedgerHandler.ReplayBalance)
			r.Post("/{id}/reconcile", cfg.ReconciliationHandler.Reconcile)
		})

		// Ledger entries
		r.Post("/entries", cfg.LedgerHandler.PostEntry)

		// Audit trail
		r.Route("/audit/events", func(r chi.Router) {
			r.Post("/", cfg.AuditHandler.Record)
			r.Get("/", cfg.AuditHandler.List)
		})

		// Chain integrity and export
		r.Route("/chains/{chain}", func(r chi.Router) {
			r.Get("/verify", cfg.AuditHandler.Verify)
			r.Get("/export", cfg.ExportHandler.Export)
		})

		// Compliance reporting
		r.Get("/reports/compliance", cfg.ComplianceHandler.Generate)
	})

	return r
}
