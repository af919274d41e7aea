// Package app assembles the store ledger from configuration: storage,
// optional Redis, use cases, the HTTP handler tree and background workers.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/iho/storeledger/internal/adapter/http"
	"github.com/iho/storeledger/internal/adapter/http/handler"
	"github.com/iho/storeledger/internal/adapter/http/middleware"
	"github.com/iho/storeledger/internal/adapter/repository/memory"
	redisRepo "github.com/iho/storeledger/internal/adapter/repository/redis"
	"github.com/iho/storeledger/internal/domain"
	"github.com/iho/storeledger/internal/infrastructure/auth"
	"github.com/iho/storeledger/internal/infrastructure/config"
	"github.com/iho/storeledger/internal/infrastructure/eventpublisher"
	"github.com/iho/storeledger/internal/infrastructure/idgen"
	"github.com/iho/storeledger/internal/infrastructure/metrics"
	"github.com/iho/storeledger/internal/infrastructure/redis"
	"github.com/iho/storeledger/internal/usecase"
)

const (
	idempotencyCacheSize = 4096
	pruneInterval        = time.Minute
)

// App is a fully wired store ledger.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
	Location *time.Location

	CustomerLedger *usecase.LedgerUseCase
	SupplierLedger *usecase.LedgerUseCase
	CashboxLedger  *usecase.LedgerUseCase
	Customers      *usecase.PartyUseCase
	Suppliers      *usecase.PartyUseCase
	Cashbox        *usecase.CashboxUseCase
	Products       *usecase.ProductUseCase
	Invoices       *usecase.InvoiceUseCase
	Dashboard      *usecase.DashboardUseCase
	Reconciler     *usecase.ReconciliationUseCase

	// Handler serves the HTTP API; the desktop process also bridges it over IPC.
	Handler    http.Handler
	JWTManager *auth.JWTManager

	rateLimiter *middleware.RateLimiter
	publisher   *eventpublisher.EventPublisher
	closers     []func() error
}

// New opens storage (and Redis when configured) and wires everything.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	threshold, err := cfg.DebtThreshold()
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	a := &App{Config: cfg, Logger: logger, Metrics: m, Location: loc}

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.close)
	checks := []handler.ReadinessCheck{store.ready}

	var (
		locker      usecase.Locker = usecase.NoopLocker{}
		cache       usecase.Cache  = memory.NewCache(cfg.DashboardCacheSize, cfg.DashboardCacheTTL)
		idempotency usecase.IdempotencyStore = memory.NewIdempotencyStore(idempotencyCacheSize, cfg.IdempotencyTTL)
		publisher   eventpublisher.Publisher = eventpublisher.NewLogPublisher(logger)
	)

	if cfg.RedisURL != "" {
		client, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		logger.Info().Msg("connected to redis")
		a.closers = append(a.closers, client.Close)
		checks = append(checks, redisCheck(client))

		locker = redisRepo.NewLocker(client, cfg.LockTTL, cfg.LockWait, logger)
		cache = redisRepo.NewCache(client)
		idempotency = redisRepo.NewIdempotencyStore(client)
		publisher = eventpublisher.NewRedisPublisher(client, cfg.EventsChannel)
	}

	opts := usecase.Options{
		Retrier:  store.retrier,
		Locker:   locker,
		Metrics:  m,
		Logger:   logger,
		Location: loc,
	}
	ids := idgen.NewULIDGenerator()

	ledger := func(kind domain.LedgerKind) *usecase.LedgerUseCase {
		return usecase.NewLedgerUseCase(kind, store.txManager, store.accounts, store.entries, store.outbox, ids, opts)
	}
	a.CustomerLedger = ledger(domain.LedgerCustomer)
	a.SupplierLedger = ledger(domain.LedgerSupplier)
	a.CashboxLedger = ledger(domain.LedgerCashbox)

	party := func(kind domain.LedgerKind) *usecase.PartyUseCase {
		return usecase.NewPartyUseCase(kind, store.txManager, store.parties, store.accounts, store.entries, store.invoices, store.outbox, ids, opts)
	}
	a.Customers = party(domain.LedgerCustomer)
	a.Suppliers = party(domain.LedgerSupplier)
	a.Cashbox = usecase.NewCashboxUseCase(a.CashboxLedger, store.txManager, store.accounts, store.entries, store.outbox, ids, opts)
	a.Products = usecase.NewProductUseCase(store.txManager, store.products, ids, opts)
	a.Invoices = usecase.NewInvoiceUseCase(store.txManager, store.invoices, store.products, store.outbox, a.CustomerLedger, a.SupplierLedger, ids, opts)
	a.Dashboard = usecase.NewDashboardUseCase(store.parties, store.products, a.Cashbox, cache, cfg.DashboardCacheTTL, threshold, opts)
	a.Reconciler = usecase.NewReconciliationUseCase(store.accounts, opts, a.CustomerLedger, a.SupplierLedger, a.CashboxLedger)

	if cfg.JWTSecret != "" {
		a.JWTManager = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
	}
	if cfg.RateLimitRPS > 0 {
		a.rateLimiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, m)
	}

	routerCfg := httpAdapter.RouterConfig{
		CustomerHandler:       handler.NewPartyHandler(domain.LedgerCustomer, a.Customers, a.CustomerLedger, loc),
		SupplierHandler:       handler.NewPartyHandler(domain.LedgerSupplier, a.Suppliers, a.SupplierLedger, loc),
		CashboxHandler:        handler.NewCashboxHandler(a.Cashbox, loc),
		DashboardHandler:      handler.NewDashboardHandler(a.Dashboard),
		ProductHandler:        handler.NewProductHandler(a.Products),
		InvoiceHandler:        handler.NewInvoiceHandler(a.Invoices, loc),
		ReconciliationHandler: handler.NewReconciliationHandler(a.Reconciler),
		HealthHandler:         handler.NewHealthHandler(checks...),
		Logger:                logger,
		Metrics:               m,
		MetricsHandler:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		IdempotencyStore:      idempotency,
		IdempotencyTTL:        cfg.IdempotencyTTL,
		RateLimiter:           a.rateLimiter,
	}
	if cfg.AuthEnabled {
		routerCfg.JWTManager = a.JWTManager
	}
	a.Handler = httpAdapter.NewRouter(routerCfg)

	a.publisher = eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: store.outbox,
		Publisher:  publisher,
		Logger:     logger,
		Metrics:    m,
		BatchSize:  cfg.OutboxBatchSize,
		Interval:   cfg.OutboxInterval,
		Retention:  cfg.OutboxRetention,
	})

	return a, nil
}

// RunWorkers runs the outbox publisher and the rate limiter pruner until ctx
// is cancelled.
func (a *App) RunWorkers(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.publisher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if a.rateLimiter != nil {
		g.Go(func() error {
			a.rateLimiter.RunPruner(ctx, pruneInterval)
			return nil
		})
	}

	return g.Wait()
}

// Close releases storage and Redis in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("close: %w", errors.Join(errs...))
	}
	return nil
}

func redisCheck(client *goredis.Client) handler.ReadinessCheck {
	return handler.ReadinessCheck{
		Name:  "redis",
		Check: func(ctx context.Context) error { return client.Ping(ctx).Err() },
	}
}
