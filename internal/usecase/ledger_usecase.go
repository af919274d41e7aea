package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iho/storeledger/internal/domain"
)

// LedgerUseCase posts to and reads from the ledgers of one kind. The cached
// balance on the account row is only ever written here, in the same
// transaction as the entry that moves it.
type LedgerUseCase struct {
	kind        domain.LedgerKind
	txManager   TransactionManager
	accountRepo AccountRepository
	entryRepo   EntryRepository
	outboxRepo  OutboxRepository
	idGen       IDGenerator
	opts        Options
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(
	kind domain.LedgerKind,
	txManager TransactionManager,
	accountRepo AccountRepository,
	entryRepo EntryRepository,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	opts Options,
) *LedgerUseCase {
	return &LedgerUseCase{
		kind:        kind,
		txManager:   txManager,
		accountRepo: accountRepo,
		entryRepo:   entryRepo,
		outboxRepo:  outboxRepo,
		idGen:       idGen,
		opts:        opts.withDefaults(),
	}
}

// Kind returns the ledger kind served by this use case.
func (uc *LedgerUseCase) Kind() domain.LedgerKind { return uc.kind }

// PostInput represents a posting request.
type PostInput struct {
	AccountID   string
	Type        domain.EntryType
	Amount      domain.Money
	Description string
	// OccurredAt is the business date; zero means now.
	OccurredAt time.Time
}

// Post appends one entry to a ledger and moves its cached balance. Either both
// are written or neither is.
func (uc *LedgerUseCase) Post(ctx context.Context, input PostInput) (*domain.Entry, error) {
	start := time.Now()

	if err := uc.validate(input); err != nil {
		uc.recordRejection(err)
		return nil, err
	}

	var entry *domain.Entry
	err := uc.WithLock(ctx, input.AccountID, func(ctx context.Context) error {
		return uc.opts.Retrier.Retry(ctx, func() error {
			txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
			defer cancel()

			tx, err := uc.txManager.Begin(txCtx)
			if err != nil {
				return err
			}
			defer func() { _ = tx.Rollback(txCtx) }()

			posted, err := uc.PostTx(txCtx, tx, input)
			if err != nil {
				return err
			}

			if err := tx.Commit(txCtx); err != nil {
				return err
			}
			entry = posted
			return nil
		})
	})
	if err != nil {
		uc.recordRejection(err)
		return nil, err
	}

	if m := uc.opts.Metrics; m != nil {
		m.PostingsTotal.WithLabelValues(string(uc.kind), string(entry.Type)).Inc()
		m.PostingDuration.WithLabelValues(string(uc.kind)).Observe(time.Since(start).Seconds())
	}

	return entry, nil
}

// PostTx posts inside a transaction owned by the caller. The account row is
// locked for the rest of tx.
func (uc *LedgerUseCase) PostTx(ctx context.Context, tx Transaction, input PostInput) (*domain.Entry, error) {
	if err := uc.validate(input); err != nil {
		return nil, err
	}

	account, err := uc.accountRepo.GetByIDForUpdate(ctx, tx, input.AccountID)
	if err != nil {
		return nil, uc.lookupError(err)
	}
	if account.Kind != uc.kind {
		return nil, uc.lookupError(domain.ErrAccountNotFound)
	}

	now := uc.opts.now()
	entry, err := account.Post(domain.Posting{
		ID:          uc.idGen.Generate(),
		Type:        input.Type,
		Amount:      input.Amount,
		Description: input.Description,
		OccurredAt:  input.OccurredAt,
		CreatedAt:   now,
	})
	if err != nil {
		return nil, err
	}

	if err := uc.entryRepo.Create(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := uc.accountRepo.Update(ctx, tx, account); err != nil {
		return nil, err
	}

	if err := uc.outboxRepo.Create(ctx, tx, domain.NewLedgerPostedEvent(uc.idGen.Generate(), entry)); err != nil {
		return nil, err
	}

	return entry, nil
}

// WithLock runs fn while holding the cross-process lock of one ledger account.
func (uc *LedgerUseCase) WithLock(ctx context.Context, accountID string, fn func(context.Context) error) error {
	release, err := uc.opts.Locker.Acquire(ctx, LockKey(uc.kind, accountID))
	if err != nil {
		return err
	}
	defer release(context.WithoutCancel(ctx))

	return fn(ctx)
}

// LockKey names the lock guarding one ledger account.
func LockKey(kind domain.LedgerKind, accountID string) string {
	return fmt.Sprintf("ledger:%s:%s", kind, accountID)
}

// CurrentBalance returns the cached balance of an account.
func (uc *LedgerUseCase) CurrentBalance(ctx context.Context, accountID string) (domain.Money, error) {
	account, err := uc.account(ctx, accountID)
	if err != nil {
		return domain.ZeroMoney, err
	}
	return account.Balance, nil
}

// HistoryInput selects entries of one ledger.
type HistoryInput struct {
	AccountID string
	Range     domain.DateRange
	Limit     int
}

// History returns the entries whose business date falls in the range,
// ascending by sequence. With a limit only the most recent entries are kept.
func (uc *LedgerUseCase) History(ctx context.Context, input HistoryInput) ([]*domain.Entry, error) {
	if _, err := uc.account(ctx, input.AccountID); err != nil {
		return nil, err
	}

	from, to := input.Range.Bounds()
	return uc.entryRepo.ListByAccount(ctx, input.AccountID, domain.EntryFilter{
		From:  from,
		To:    to,
		Limit: input.Limit,
	})
}

// DailySummaries groups the ledger by local calendar day, newest first.
func (uc *LedgerUseCase) DailySummaries(ctx context.Context, accountID string, rng domain.DateRange) ([]domain.DailySummary, error) {
	entries, err := uc.History(ctx, HistoryInput{AccountID: accountID, Range: rng})
	if err != nil {
		return nil, err
	}
	return domain.Summarize(entries, uc.opts.Location), nil
}

// ReconciliationResult reports one ledger's replay against its cached balance.
type ReconciliationResult struct {
	AccountID  string
	Kind       domain.LedgerKind
	Cached     domain.Money
	Replayed   domain.Money
	Difference domain.Money
	Entries    int
	Consistent bool
	Issue      string
	CheckedAt  time.Time
}

// Recompute replays the full log from the opening balance. A mismatch is
// logged and counted and returned as a *domain.ConsistencyError next to the
// result; the cached balance is left as it is.
func (uc *LedgerUseCase) Recompute(ctx context.Context, accountID string) (*ReconciliationResult, error) {
	account, err := uc.account(ctx, accountID)
	if err != nil {
		return nil, err
	}

	entries, err := uc.entryRepo.ListByAccount(ctx, accountID, domain.EntryFilter{MaxSequence: domain.UpToSequence(account.Version)})
	if err != nil {
		return nil, err
	}

	replayed, checkErr := domain.CheckAccount(account, entries)
	result := &ReconciliationResult{
		AccountID:  account.ID,
		Kind:       account.Kind,
		Cached:     account.Balance,
		Replayed:   replayed,
		Difference: account.Balance.Sub(replayed),
		Entries:    len(entries),
		Consistent: checkErr == nil,
		CheckedAt:  uc.opts.now(),
	}

	if checkErr != nil {
		result.Issue = checkErr.Error()

		uc.opts.Logger.Warn().
			Err(checkErr).
			Str("ledger", string(uc.kind)).
			Str("account_id", accountID).
			Str("cached", account.Balance.String()).
			Str("replayed", replayed.String()).
			Msg("ledger consistency check failed")

		if m := uc.opts.Metrics; m != nil {
			m.ConsistencyFailures.WithLabelValues(string(uc.kind)).Inc()
		}
		return result, checkErr
	}

	return result, nil
}

func (uc *LedgerUseCase) account(ctx context.Context, id string) (*domain.Account, error) {
	account, err := uc.accountRepo.GetByID(ctx, id)
	if err != nil {
		return nil, uc.lookupError(err)
	}
	if account.Kind != uc.kind {
		return nil, uc.lookupError(domain.ErrAccountNotFound)
	}
	return account, nil
}

func (uc *LedgerUseCase) validate(input PostInput) error {
	if !uc.kind.Allows(input.Type) {
		return fmt.Errorf("%w: %q on %s ledger", domain.ErrInvalidEntryType, input.Type, uc.kind)
	}
	if err := domain.ValidatePostingAmount(input.Amount); err != nil {
		return err
	}
	return domain.ValidateDescription(input.Description)
}

func (uc *LedgerUseCase) lookupError(err error) error {
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if uc.kind == domain.LedgerCashbox {
		return domain.ErrCashboxNotInitialized
	}
	return uc.kind.NotFound()
}

func (uc *LedgerUseCase) recordRejection(err error) {
	m := uc.opts.Metrics
	if m == nil {
		return
	}
	m.PostingRejections.WithLabelValues(string(uc.kind), rejectionReason(err)).Inc()
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrNotInitialized):
		return "not_initialized"
	default:
		return "error"
	}
}
