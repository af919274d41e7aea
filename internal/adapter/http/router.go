package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/storeledger/internal/adapter/http/handler"
	"github.com/iho/storeledger/internal/adapter/http/middleware"
	"github.com/iho/storeledger/internal/domain"
	"github.com/iho/storeledger/internal/infrastructure/auth"
	"github.com/iho/storeledger/internal/infrastructure/metrics"
	"github.com/iho/storeledger/internal/usecase"
)

// RouterConfig holds dependencies for the router. Nil optional fields
// switch the matching feature off.
type RouterConfig struct {
	CustomerHandler       *handler.PartyHandler
	SupplierHandler       *handler.PartyHandler
	CashboxHandler        *handler.CashboxHandler
	DashboardHandler      *handler.DashboardHandler
	ProductHandler        *handler.ProductHandler
	InvoiceHandler        *handler.InvoiceHandler
	ReconciliationHandler *handler.ReconciliationHandler
	HealthHandler         *handler.HealthHandler

	Logger  zerolog.Logger
	Metrics *metrics.Metrics
	// MetricsHandler is served at /metrics.
	MetricsHandler http.Handler

	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter
	// JWTManager enables bearer authentication on /api/v1.
	JWTManager *auth.JWTManager
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	// Admin-only routes get an extra guard when auth is on.
	var admin []func(http.Handler) http.Handler
	if cfg.JWTManager != nil {
		admin = append(admin, middleware.RequireRole(domain.RoleAdmin))
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.JWTManager != nil {
			r.Use(middleware.Authenticate(cfg.JWTManager, cfg.Metrics))
			r.Use(middleware.RequireWriter)
		}
		if cfg.IdempotencyStore != nil {
			r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL, cfg.Logger).Wrap)
		}

		r.Route("/customers", partyRoutes(cfg.CustomerHandler, admin))
		r.Route("/suppliers", partyRoutes(cfg.SupplierHandler, admin))

		r.Route("/cashbox", func(r chi.Router) {
			h := cfg.CashboxHandler
			r.Get("/", h.Get)
			r.Post("/init", h.Init)
			r.Post("/transaction", h.Transaction)
			r.With(admin...).Post("/reset", h.Reset)
			r.Get("/transactions", h.Transactions)
			r.Get("/daily-summaries", h.DailySummaries)
			r.Get("/reconcile", h.Reconcile)
			r.Get("/statement.xlsx", h.Statement)
		})

		r.Route("/dashboard", func(r chi.Router) {
			h := cfg.DashboardHandler
			r.Get("/stats", h.Stats)
			r.Get("/customers-debt", h.CustomersDebt)
			r.Get("/suppliers-debt", h.SuppliersDebt)
			r.Get("/customers-debt-alerts", h.DebtAlerts)
		})

		r.Route("/products", func(r chi.Router) {
			h := cfg.ProductHandler
			r.Post("/", h.Create)
			r.Get("/", h.List)
			r.Get("/low-stock", h.LowStock)
			r.Get("/{id}", h.Get)
			r.Put("/{id}", h.Update)
			r.With(admin...).Delete("/{id}", h.Delete)
			r.Post("/{id}/stock", h.AdjustStock)
		})

		r.Route("/invoices", func(r chi.Router) {
			h := cfg.InvoiceHandler
			r.Post("/", h.Create)
			r.Get("/", h.List)
			r.Get("/{id}", h.Get)
		})

		r.Get("/reconciliation", cfg.ReconciliationHandler.Run)
	})

	return r
}

func partyRoutes(h *handler.PartyHandler, admin []func(http.Handler) http.Handler) func(chi.Router) {
	return func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.With(admin...).Delete("/{id}", h.Delete)
		r.Post("/{id}/balance", h.PostBalance)
		r.Get("/{id}/transactions", h.Transactions)
		r.Get("/{id}/daily-summaries", h.DailySummaries)
		r.Get("/{id}/reconcile", h.Reconcile)
		r.Get("/{id}/statement.xlsx", h.Statement)
	}
}
