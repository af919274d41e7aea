package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/iho/storeledger/internal/domain"
)

// CashboxState is the public view of the singleton cashbox.
type CashboxState struct {
	Initialized    bool
	OpeningBalance domain.Money
	CurrentBalance domain.Money
	UpdatedAt      time.Time
}

// CashboxUseCase manages the cashbox lifecycle on top of the cashbox ledger.
type CashboxUseCase struct {
	ledger      *LedgerUseCase
	txManager   TransactionManager
	accountRepo AccountRepository
	entryRepo   EntryRepository
	outboxRepo  OutboxRepository
	idGen       IDGenerator
	opts        Options
}

// NewCashboxUseCase creates a new CashboxUseCase.
func NewCashboxUseCase(
	ledger *LedgerUseCase,
	txManager TransactionManager,
	accountRepo AccountRepository,
	entryRepo EntryRepository,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	opts Options,
) *CashboxUseCase {
	return &CashboxUseCase{
		ledger:      ledger,
		txManager:   txManager,
		accountRepo: accountRepo,
		entryRepo:   entryRepo,
		outboxRepo:  outboxRepo,
		idGen:       idGen,
		opts:        opts.withDefaults(),
	}
}

// Initialize sets the opening balance of an uninitialized cashbox.
func (uc *CashboxUseCase) Initialize(ctx context.Context, opening domain.Money) (*CashboxState, error) {
	if err := domain.ValidateOpeningBalance(opening); err != nil {
		return nil, err
	}

	var state *CashboxState
	err := uc.ledger.WithLock(ctx, domain.CashboxID, func(ctx context.Context) error {
		return uc.opts.Retrier.Retry(ctx, func() error {
			s, err := uc.mutate(ctx, domain.EventTypeCashboxInitialized, func(_ context.Context, _ Transaction, box *domain.Account, now time.Time) error {
				return box.Initialize(opening, now)
			})
			state = s
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	uc.opts.Logger.Info().Str("opening_balance", opening.String()).Msg("cashbox initialized")
	return state, nil
}

// Get returns the cashbox state. A cashbox that was never initialized reads
// as uninitialized with zero balances.
func (uc *CashboxUseCase) Get(ctx context.Context) (*CashboxState, error) {
	box, err := uc.accountRepo.GetByID(ctx, domain.CashboxID)
	if errors.Is(err, domain.ErrNotFound) {
		return &CashboxState{}, nil
	}
	if err != nil {
		return nil, err
	}
	return stateOf(box), nil
}

// TransactInput represents a cashbox deposit or withdrawal.
type TransactInput struct {
	Type   domain.EntryType
	Amount domain.Money
	Date   time.Time
	Note   string
}

// Transact posts a deposit or withdrawal.
func (uc *CashboxUseCase) Transact(ctx context.Context, input TransactInput) (*domain.Entry, error) {
	return uc.ledger.Post(ctx, PostInput{
		AccountID:   domain.CashboxID,
		Type:        input.Type,
		Amount:      input.Amount,
		Description: input.Note,
		OccurredAt:  input.Date,
	})
}

// Reset deletes every cashbox entry and returns it to the uninitialized state.
func (uc *CashboxUseCase) Reset(ctx context.Context, confirm bool) (*CashboxState, error) {
	if !confirm {
		return nil, domain.ErrResetNotConfirmed
	}

	var (
		state   *CashboxState
		deleted int64
	)
	err := uc.ledger.WithLock(ctx, domain.CashboxID, func(ctx context.Context) error {
		return uc.opts.Retrier.Retry(ctx, func() error {
			s, err := uc.mutate(ctx, domain.EventTypeCashboxReset, func(ctx context.Context, tx Transaction, box *domain.Account, now time.Time) error {
				n, err := uc.entryRepo.DeleteByAccount(ctx, tx, box.ID)
				if err != nil {
					return err
				}
				deleted = n
				box.Reset(now)
				return nil
			})
			state = s
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	if m := uc.opts.Metrics; m != nil {
		m.CashboxResets.Inc()
	}
	uc.opts.Logger.Warn().Int64("entries_deleted", deleted).Msg("cashbox reset")
	return state, nil
}

// Transactions lists cashbox entries in the range, ascending; limit keeps the most recent.
func (uc *CashboxUseCase) Transactions(ctx context.Context, limit int, rng domain.DateRange) ([]*domain.Entry, error) {
	entries, err := uc.ledger.History(ctx, HistoryInput{AccountID: domain.CashboxID, Range: rng, Limit: limit})
	if errors.Is(err, domain.ErrNotInitialized) {
		return []*domain.Entry{}, nil
	}
	return entries, err
}

// DailySummaries groups cashbox entries by local calendar day, newest first.
func (uc *CashboxUseCase) DailySummaries(ctx context.Context, rng domain.DateRange) ([]domain.DailySummary, error) {
	summaries, err := uc.ledger.DailySummaries(ctx, domain.CashboxID, rng)
	if errors.Is(err, domain.ErrNotInitialized) {
		return []domain.DailySummary{}, nil
	}
	return summaries, err
}

// TodayFlow sums the cashbox movement dated on the current local day.
func (uc *CashboxUseCase) TodayFlow(ctx context.Context) (domain.Flow, error) {
	entries, err := uc.Transactions(ctx, 0, domain.SingleDay(uc.opts.Now(), uc.opts.Location))
	if err != nil {
		return domain.Flow{}, err
	}
	return domain.FlowOf(entries), nil
}

// Recompute replays the cashbox log from its opening balance.
func (uc *CashboxUseCase) Recompute(ctx context.Context) (*ReconciliationResult, error) {
	result, err := uc.ledger.Recompute(ctx, domain.CashboxID)
	if errors.Is(err, domain.ErrNotInitialized) {
		return &ReconciliationResult{
			AccountID:  domain.CashboxID,
			Kind:       domain.LedgerCashbox,
			Consistent: true,
			CheckedAt:  uc.opts.now(),
		}, nil
	}
	return result, err
}

// mutate loads (or creates) the cashbox row under lock, applies change and
// persists it with an outbox event in one transaction.
func (uc *CashboxUseCase) mutate(
	ctx context.Context,
	eventType string,
	change func(ctx context.Context, tx Transaction, box *domain.Account, now time.Time) error,
) (*CashboxState, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	now := uc.opts.now()
	created := false
	box, err := uc.accountRepo.GetByIDForUpdate(txCtx, tx, domain.CashboxID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		box = &domain.Account{ID: domain.CashboxID, Kind: domain.LedgerCashbox, CreatedAt: now, UpdatedAt: now}
		created = true
	case err != nil:
		return nil, err
	}

	if err := change(txCtx, tx, box, now); err != nil {
		return nil, err
	}

	if created {
		err = uc.accountRepo.Create(txCtx, tx, box)
	} else {
		err = uc.accountRepo.Update(txCtx, tx, box)
	}
	if err != nil {
		return nil, err
	}

	if err := uc.outboxRepo.Create(txCtx, tx, domain.NewCashboxEvent(uc.idGen.Generate(), eventType, box)); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}
	return stateOf(box), nil
}

func stateOf(box *domain.Account) *CashboxState {
	return &CashboxState{
		Initialized:    box.Initialized,
		OpeningBalance: box.OpeningBalance,
		CurrentBalance: box.Balance,
		UpdatedAt:      box.UpdatedAt,
	}
}
