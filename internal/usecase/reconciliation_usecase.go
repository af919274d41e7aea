package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iho/storeledger/internal/domain"
)

// ReconciliationUseCase replays every ledger and reports discrepancies.
type ReconciliationUseCase struct {
	accountRepo AccountRepository
	ledgers     map[domain.LedgerKind]*LedgerUseCase
	opts        Options
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(accountRepo AccountRepository, opts Options, ledgers ...*LedgerUseCase) *ReconciliationUseCase {
	byKind := make(map[domain.LedgerKind]*LedgerUseCase, len(ledgers))
	for _, l := range ledgers {
		byKind[l.Kind()] = l
	}
	return &ReconciliationUseCase{
		accountRepo: accountRepo,
		ledgers:     byKind,
		opts:        opts.withDefaults(),
	}
}

// LedgerTotals sums one kind of ledger.
type LedgerTotals struct {
	Accounts int
	Entries  int
	Balance  domain.Money
}

// ReconciliationReport is the outcome of a full run.
type ReconciliationReport struct {
	CheckedAt     time.Time
	Totals        map[domain.LedgerKind]*LedgerTotals
	Discrepancies []*ReconciliationResult
}

// Consistent reports whether every ledger replayed to its cached balance.
func (r *ReconciliationReport) Consistent() bool {
	return len(r.Discrepancies) == 0
}

// Run recomputes every customer, supplier and cashbox ledger.
func (uc *ReconciliationUseCase) Run(ctx context.Context) (*ReconciliationReport, error) {
	report := &ReconciliationReport{
		CheckedAt: uc.opts.now(),
		Totals:    make(map[domain.LedgerKind]*LedgerTotals),
	}

	for _, kind := range []domain.LedgerKind{domain.LedgerCustomer, domain.LedgerSupplier, domain.LedgerCashbox} {
		ledger, ok := uc.ledgers[kind]
		if !ok {
			continue
		}

		accounts, err := uc.accountRepo.ListByKind(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s ledgers: %w", kind, err)
		}

		totals := &LedgerTotals{}
		report.Totals[kind] = totals

		for _, account := range accounts {
			result, err := ledger.Recompute(ctx, account.ID)
			if errors.Is(err, domain.ErrNotFound) {
				// Deleted since the listing.
				uc.opts.Logger.Debug().Str("ledger", string(kind)).Str("account_id", account.ID).Msg("reconciliation skipped removed ledger")
				continue
			}
			if err != nil && !errors.Is(err, domain.ErrConsistency) {
				return nil, fmt.Errorf("failed to reconcile %s ledger %s: %w", kind, account.ID, err)
			}

			totals.Accounts++
			totals.Entries += result.Entries
			totals.Balance = totals.Balance.Add(result.Cached)
			if !result.Consistent {
				report.Discrepancies = append(report.Discrepancies, result)
			}
		}
	}

	uc.opts.Logger.Info().
		Int("discrepancies", len(report.Discrepancies)).
		Msg("reconciliation finished")

	return report, nil
}
