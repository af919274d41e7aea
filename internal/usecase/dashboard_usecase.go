package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iho/storeledger/internal/domain"
)

// FigureStatus tells a fresh value apart from a fallback.
type FigureStatus string

const (
	// FigureOK is a value computed by this request.
	FigureOK FigureStatus = "ok"
	// FigureStale is the last good value; the source failed this time.
	FigureStale FigureStatus = "stale"
	// FigureUnknown means the source failed and no earlier value exists.
	FigureUnknown FigureStatus = "unknown"
)

// Figure is one dashboard number with its provenance. AsOf is when Value was
// computed; it is nil for unknown figures.
type Figure[T any] struct {
	Value  T
	Status FigureStatus
	AsOf   *time.Time
}

// DashboardStats is the dashboard summary. Every figure is fetched on its
// own, so one failing source does not blank the others.
type DashboardStats struct {
	TotalCustomersDebt Figure[domain.Money]
	TotalSuppliersDebt Figure[domain.Money]
	CustomerCount      Figure[int64]
	SupplierCount      Figure[int64]
	LowStockCount      Figure[int64]
	TodayCashFlow      Figure[domain.Flow]
	CashboxBalance     Figure[domain.Money]
	GeneratedAt        time.Time
}

// Dashboard figure names, also used as cache keys and metric labels.
const (
	figureCustomersDebt  = "customers_debt"
	figureSuppliersDebt  = "suppliers_debt"
	figureCustomerCount  = "customer_count"
	figureSupplierCount  = "supplier_count"
	figureLowStock       = "low_stock"
	figureTodayCashFlow  = "today_cash_flow"
	figureCashboxBalance = "cashbox_balance"
)

// DashboardUseCase composes read-only figures from the ledgers and inventory.
type DashboardUseCase struct {
	partyRepo      PartyRepository
	productRepo    ProductRepository
	cashbox        *CashboxUseCase
	cache          Cache
	snapshotTTL    time.Duration
	alertThreshold domain.Money
	opts           Options
}

// NewDashboardUseCase creates a new DashboardUseCase. cache may be nil, in
// which case failed figures are always unknown. A zero snapshotTTL keeps
// snapshots for DefaultSnapshotTTL.
func NewDashboardUseCase(
	partyRepo PartyRepository,
	productRepo ProductRepository,
	cashbox *CashboxUseCase,
	cache Cache,
	snapshotTTL time.Duration,
	alertThreshold domain.Money,
	opts Options,
) *DashboardUseCase {
	if snapshotTTL <= 0 {
		snapshotTTL = DefaultSnapshotTTL
	}
	return &DashboardUseCase{
		partyRepo:      partyRepo,
		productRepo:    productRepo,
		cashbox:        cashbox,
		cache:          cache,
		snapshotTTL:    snapshotTTL,
		alertThreshold: alertThreshold,
		opts:           opts.withDefaults(),
	}
}

// Stats computes every dashboard figure concurrently.
func (uc *DashboardUseCase) Stats(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{GeneratedAt: uc.opts.now()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stats.TotalCustomersDebt = fetchFigure(gctx, uc, figureCustomersDebt, func(ctx context.Context) (domain.Money, error) {
			return uc.partyRepo.TotalBalance(ctx, domain.LedgerCustomer)
		})
		return nil
	})
	g.Go(func() error {
		stats.TotalSuppliersDebt = fetchFigure(gctx, uc, figureSuppliersDebt, func(ctx context.Context) (domain.Money, error) {
			return uc.partyRepo.TotalBalance(ctx, domain.LedgerSupplier)
		})
		return nil
	})
	g.Go(func() error {
		stats.CustomerCount = fetchFigure(gctx, uc, figureCustomerCount, func(ctx context.Context) (int64, error) {
			return uc.partyRepo.Count(ctx, domain.LedgerCustomer)
		})
		return nil
	})
	g.Go(func() error {
		stats.SupplierCount = fetchFigure(gctx, uc, figureSupplierCount, func(ctx context.Context) (int64, error) {
			return uc.partyRepo.Count(ctx, domain.LedgerSupplier)
		})
		return nil
	})
	g.Go(func() error {
		stats.LowStockCount = fetchFigure(gctx, uc, figureLowStock, uc.productRepo.CountLowStock)
		return nil
	})
	g.Go(func() error {
		stats.TodayCashFlow = fetchFigure(gctx, uc, figureTodayCashFlow, uc.cashbox.TodayFlow)
		return nil
	})
	g.Go(func() error {
		stats.CashboxBalance = fetchFigure(gctx, uc, figureCashboxBalance, func(ctx context.Context) (domain.Money, error) {
			state, err := uc.cashbox.Get(ctx)
			if err != nil {
				return domain.ZeroMoney, err
			}
			return state.CurrentBalance, nil
		})
		return nil
	})

	// Sources report their own failures; Wait only joins the goroutines.
	_ = g.Wait()
	return stats, nil
}

// CustomersDebt lists customers with a non-zero balance, highest first.
func (uc *DashboardUseCase) CustomersDebt(ctx context.Context, limit int) ([]*domain.Party, error) {
	limit, _ = domain.ValidatePagination(limit, 0)
	return uc.partyRepo.Debtors(ctx, domain.LedgerCustomer, domain.DebtFilter{Limit: limit})
}

// SuppliersDebt lists suppliers with a non-zero balance, highest first.
func (uc *DashboardUseCase) SuppliersDebt(ctx context.Context, limit int) ([]*domain.Party, error) {
	limit, _ = domain.ValidatePagination(limit, 0)
	return uc.partyRepo.Debtors(ctx, domain.LedgerSupplier, domain.DebtFilter{Limit: limit})
}

// DebtAlerts lists customers whose balance exceeds threshold, highest first.
// A nil threshold uses the configured default; limit defaults to the top 10.
func (uc *DashboardUseCase) DebtAlerts(ctx context.Context, threshold *domain.Money, limit int) ([]*domain.Party, error) {
	above := uc.alertThreshold
	if threshold != nil {
		above = *threshold
	}
	if above.IsNegative() {
		return nil, domain.ErrInvalidAmount
	}
	if limit <= 0 {
		limit = DefaultDebtAlertLimit
	}
	return uc.partyRepo.Debtors(ctx, domain.LedgerCustomer, domain.DebtFilter{Above: &above, Limit: limit})
}

type figureSnapshot[T any] struct {
	Value T         `json:"value"`
	AsOf  time.Time `json:"as_of"`
}

// fetchFigure runs one source. On success the value is remembered as the
// last good snapshot; on failure that snapshot is served as stale.
func fetchFigure[T any](ctx context.Context, uc *DashboardUseCase, name string, source func(context.Context) (T, error)) Figure[T] {
	value, err := source(ctx)
	if err == nil {
		asOf := uc.opts.now()
		uc.storeSnapshot(ctx, name, figureSnapshot[T]{Value: value, AsOf: asOf})
		return Figure[T]{Value: value, Status: FigureOK, AsOf: &asOf}
	}

	uc.opts.Logger.Warn().Err(err).Str("figure", name).Msg("dashboard source failed")
	if m := uc.opts.Metrics; m != nil {
		m.DashboardSourceFailures.WithLabelValues(name).Inc()
	}

	var snap figureSnapshot[T]
	if uc.loadSnapshot(ctx, name, &snap) {
		return Figure[T]{Value: snap.Value, Status: FigureStale, AsOf: &snap.AsOf}
	}

	var zero T
	return Figure[T]{Value: zero, Status: FigureUnknown}
}

func snapshotKey(name string) string {
	return "dashboard:" + name
}

func (uc *DashboardUseCase) storeSnapshot(ctx context.Context, name string, snap any) {
	if uc.cache == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := uc.cache.Set(ctx, snapshotKey(name), data, uc.snapshotTTL); err != nil {
		uc.opts.Logger.Debug().Err(err).Str("figure", name).Msg("dashboard snapshot not stored")
	}
}

func (uc *DashboardUseCase) loadSnapshot(ctx context.Context, name string, dst any) bool {
	if uc.cache == nil {
		return false
	}
	data, err := uc.cache.Get(ctx, snapshotKey(name))
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			uc.opts.Logger.Debug().Err(err).Str("figure", name).Msg("dashboard snapshot unavailable")
		}
		return false
	}
	return json.Unmarshal(data, dst) == nil
}
