package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/iho/storeledger/internal/domain"
	"github.com/iho/storeledger/internal/usecase"
	"github.com/iho/storeledger/internal/usecase/mocks"
)

func TestLedgerUseCase_ChargeThenPayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.newCustomer(t, "Alice")

	charge := h.post(t, h.customerLedger, c.ID, domain.EntryCharge, "500")
	payment := h.post(t, h.customerLedger, c.ID, domain.EntryPayment, "200")

	assertMoney(t, "charge balance after", charge.BalanceAfter, "500")
	assertMoney(t, "payment balance before", payment.BalanceBefore, "500")
	assertMoney(t, "payment balance after", payment.BalanceAfter, "300")
	if charge.Sequence != 1 || payment.Sequence != 2 {
		t.Errorf("sequences = %d, %d, want 1, 2", charge.Sequence, payment.Sequence)
	}

	balance, err := h.customerLedger.CurrentBalance(ctx, c.ID)
	if err != nil {
		t.Fatalf("CurrentBalance: %v", err)
	}
	assertMoney(t, "balance", balance, "300")

	result, err := h.customerLedger.Recompute(ctx, c.ID)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if !result.Consistent || result.Entries != 2 {
		t.Errorf("Recompute = %+v, want consistent over 2 entries", result)
	}
	assertMoney(t, "replayed", result.Replayed, "300")

	party, err := h.customers.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	assertMoney(t, "party balance", party.Balance, "300")
}

func TestLedgerUseCase_PaymentMayGoNegative(t *testing.T) {
	h := newHarness(t)
	s := h.newSupplier(t, "Acme")

	e := h.post(t, h.supplierLedger, s.ID, domain.EntryPayment, "75.50")
	assertMoney(t, "balance after", e.BalanceAfter, "-75.50")
}

func TestLedgerUseCase_PostRejections(t *testing.T) {
	h := newHarness(t)
	c := h.newCustomer(t, "Alice")
	s := h.newSupplier(t, "Acme")

	tests := []struct {
		name    string
		input   usecase.PostInput
		wantErr error
	}{
		{
			name:    "deposit on customer ledger",
			input:   usecase.PostInput{AccountID: c.ID, Type: domain.EntryDeposit, Amount: domain.MustMoney("10")},
			wantErr: domain.ErrInvalidEntryType,
		},
		{
			name:    "zero amount",
			input:   usecase.PostInput{AccountID: c.ID, Type: domain.EntryCharge, Amount: domain.ZeroMoney},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "negative amount",
			input:   usecase.PostInput{AccountID: c.ID, Type: domain.EntryCharge, Amount: domain.MustMoney("-5")},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "amount too large",
			input:   usecase.PostInput{AccountID: c.ID, Type: domain.EntryCharge, Amount: domain.MustMoney("1000000000001")},
			wantErr: domain.ErrAmountTooLarge,
		},
		{
			name:    "unknown customer",
			input:   usecase.PostInput{AccountID: "missing", Type: domain.EntryCharge, Amount: domain.MustMoney("10")},
			wantErr: domain.ErrCustomerNotFound,
		},
		{
			name:    "supplier id on customer ledger",
			input:   usecase.PostInput{AccountID: s.ID, Type: domain.EntryCharge, Amount: domain.MustMoney("10")},
			wantErr: domain.ErrCustomerNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.customerLedger.Post(context.Background(), tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Post() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	entries, err := h.customerLedger.History(context.Background(), usecase.HistoryInput{AccountID: c.ID})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("rejected postings left %d entries", len(entries))
	}
}

func TestLedgerUseCase_PostIsAtomic(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.newCustomer(t, "Alice")
	h.post(t, h.customerLedger, c.ID, domain.EntryCharge, "100")
	eventsBefore := len(h.store.Outbox())

	h.accounts.UpdateFunc = func(context.Context, usecase.Transaction, *domain.Account) error {
		return errors.New("disk full")
	}
	if _, err := h.customerLedger.Post(ctx, usecase.PostInput{
		AccountID: c.ID, Type: domain.EntryCharge, Amount: domain.MustMoney("50"),
	}); err == nil {
		t.Fatal("expected the failed balance update to fail the posting")
	}
	h.accounts.UpdateFunc = nil

	entries, err := h.customerLedger.History(ctx, usecase.HistoryInput{AccountID: c.ID})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("entries = %d, want 1 after rollback", len(entries))
	}
	if got := len(h.store.Outbox()); got != eventsBefore {
		t.Errorf("outbox events = %d, want %d", got, eventsBefore)
	}

	result, err := h.customerLedger.Recompute(ctx, c.ID)
	if err != nil || !result.Consistent {
		t.Fatalf("Recompute = %+v, %v; want consistent", result, err)
	}
}

func TestLedgerUseCase_History(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.newCustomer(t, "Alice")

	days := []time.Time{
		time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 2, 18, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC),
	}
	for _, d := range days {
		if _, err := h.customerLedger.Post(ctx, usecase.PostInput{
			AccountID: c.ID, Type: domain.EntryCharge, Amount: domain.MustMoney("10"), OccurredAt: d,
		}); err != nil {
			t.Fatalf("Post: %v", err)
		}
	}

	t.Run("single day", func(t *testing.T) {
		entries, err := h.customerLedger.History(ctx, usecase.HistoryInput{
			AccountID: c.ID,
			Range:     domain.SingleDay(days[1], time.UTC),
		})
		if err != nil {
			t.Fatalf("History: %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("entries = %d, want 2", len(entries))
		}
		if entries[0].Sequence != 2 || entries[1].Sequence != 3 {
			t.Errorf("sequences = %d, %d, want 2, 3", entries[0].Sequence, entries[1].Sequence)
		}
	})

	t.Run("limit keeps most recent", func(t *testing.T) {
		entries, err := h.customerLedger.History(ctx, usecase.HistoryInput{AccountID: c.ID, Limit: 2})
		if err != nil {
			t.Fatalf("History: %v", err)
		}
		if len(entries) != 2 || entries[0].Sequence != 3 || entries[1].Sequence != 4 {
			t.Errorf("got %d entries starting at #%d, want #3 and #4", len(entries), entries[0].Sequence)
		}
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := h.customerLedger.History(ctx, usecase.HistoryInput{AccountID: "missing"})
		if !errors.Is(err, domain.ErrCustomerNotFound) {
			t.Errorf("error = %v, want ErrCustomerNotFound", err)
		}
	})

	t.Run("daily summaries", func(t *testing.T) {
		summaries, err := h.customerLedger.DailySummaries(ctx, c.ID, domain.DateRange{})
		if err != nil {
			t.Fatalf("DailySummaries: %v", err)
		}
		if len(summaries) != 3 {
			t.Fatalf("summaries = %d, want 3", len(summaries))
		}
		if summaries[1].TransactionCount != 2 {
			t.Errorf("2025-03-02 count = %d, want 2", summaries[1].TransactionCount)
		}
		assertMoney(t, "newest ending balance", summaries[0].EndingBalance, "40")
	})
}

func TestLedgerUseCase_RecomputeDetectsDrift(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.newCustomer(t, "Alice")
	h.post(t, h.customerLedger, c.ID, domain.EntryCharge, "500")
	h.post(t, h.customerLedger, c.ID, domain.EntryPayment, "200")

	h.store.CorruptBalance(c.ID, domain.MustMoney("999"))

	result, err := h.customerLedger.Recompute(ctx, c.ID)
	if !errors.Is(err, domain.ErrConsistency) {
		t.Fatalf("Recompute error = %v, want ErrConsistency", err)
	}
	var ce *domain.ConsistencyError
	if !errors.As(err, &ce) {
		t.Fatalf("error %T is not a *ConsistencyError", err)
	}
	if result == nil || result.Consistent {
		t.Fatalf("result = %+v, want inconsistent", result)
	}
	assertMoney(t, "replayed", result.Replayed, "300")
	assertMoney(t, "difference", result.Difference, "699")

	// The cached balance is reported, never repaired.
	balance, _ := h.customerLedger.CurrentBalance(ctx, c.ID)
	assertMoney(t, "balance", balance, "999")
}

func TestLedgerUseCase_RecomputeIgnoresPostingsAfterSnapshot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.newCustomer(t, "Alice")

	// The first posting lands after the account was read at version 0.
	writer := usecase.NewLedgerUseCase(domain.LedgerCustomer, h.txManager, h.accounts, h.store.Entries(), h.outbox, h.ids, h.opts)
	h.entries.ListByAccountFunc = func(ctx context.Context, accountID string, filter domain.EntryFilter) ([]*domain.Entry, error) {
		h.post(t, writer, accountID, domain.EntryCharge, "10")
		return h.store.Entries().ListByAccount(ctx, accountID, filter)
	}

	result, err := h.customerLedger.Recompute(ctx, c.ID)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if !result.Consistent || result.Entries != 0 {
		t.Fatalf("Recompute = %+v, want consistent over 0 entries", result)
	}
	assertMoney(t, "replayed", result.Replayed, "0")
}

func TestLedgerUseCase_PostHoldsLedgerLock(t *testing.T) {
	ctrl := gomock.NewController(t)
	locker := mocks.NewMockLocker(ctrl)
	h := newHarness(t, func(o *usecase.Options) { o.Locker = locker })
	c := h.newCustomer(t, "Alice")

	released := false
	locker.EXPECT().
		Acquire(gomock.Any(), usecase.LockKey(domain.LedgerCustomer, c.ID)).
		Return(func(context.Context) { released = true }, nil)

	h.post(t, h.customerLedger, c.ID, domain.EntryCharge, "10")
	if !released {
		t.Error("lock was not released")
	}
}

func TestLedgerUseCase_LockFailureSkipsPosting(t *testing.T) {
	ctrl := gomock.NewController(t)
	locker := mocks.NewMockLocker(ctrl)
	h := newHarness(t, func(o *usecase.Options) { o.Locker = locker })
	c := h.newCustomer(t, "Alice")

	lockErr := errors.New("lock not obtained")
	locker.EXPECT().Acquire(gomock.Any(), gomock.Any()).Return(nil, lockErr)

	_, err := h.customerLedger.Post(context.Background(), usecase.PostInput{
		AccountID: c.ID, Type: domain.EntryCharge, Amount: domain.MustMoney("10"),
	})
	if !errors.Is(err, lockErr) {
		t.Fatalf("error = %v, want %v", err, lockErr)
	}
	if n, _ := h.entries.CountByAccount(context.Background(), nil, c.ID); n != 0 {
		t.Errorf("entries = %d, want 0", n)
	}
}

func TestLedgerUseCase_PostRunsThroughRetrier(t *testing.T) {
	ctrl := gomock.NewController(t)
	retrier := mocks.NewMockRetrier(ctrl)
	h := newHarness(t, func(o *usecase.Options) { o.Retrier = retrier })
	c := h.newCustomer(t, "Alice")

	attempts := 0
	retrier.EXPECT().
		Retry(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, op func() error) error {
			for {
				attempts++
				err := op()
				if err == nil || attempts == 3 {
					return err
				}
			}
		})

	failures := 2
	h.entries.CreateFunc = func(ctx context.Context, tx usecase.Transaction, e *domain.Entry) error {
		if failures > 0 {
			failures--
			return errors.New("serialization failure")
		}
		return h.store.Entries().Create(ctx, tx, e)
	}

	e := h.post(t, h.customerLedger, c.ID, domain.EntryCharge, "10")
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if e.Sequence != 1 {
		t.Errorf("sequence = %d, want 1", e.Sequence)
	}
}
