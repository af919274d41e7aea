package postgres

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"

	"github.com/iho/storeledger/internal/domain"
	"github.com/iho/storeledger/internal/usecase"
)

var fixedTime = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func beginTx(t *testing.T, pool pgxmock.PgxPoolIface) usecase.Transaction {
	t.Helper()
	pool.ExpectBegin()
	tx, err := newTxManagerWithPool(pool).Begin(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	return tx
}

func accountRow(pool pgxmock.PgxPoolIface, id, balance string, version int64) *pgxmock.Rows {
	return pgxmock.NewRows(strings.Split(strings.ReplaceAll(accountColumns, " ", ""), ",")).
		AddRow(id, "customer", balance, "0", version, true, fixedTime, fixedTime)
}

func TestAccountRepositoryGetByIDForUpdate(t *testing.T) {
	pool := newMockPool(t)
	tx := beginTx(t, pool)

	pool.ExpectQuery(regexp.QuoteMeta("FROM ledger_accounts WHERE id = $1 FOR UPDATE")).
		WithArgs("acc-1").
		WillReturnRows(accountRow(pool, "acc-1", "300.00", 2))

	account, err := NewAccountRepository(pool).GetByIDForUpdate(context.Background(), tx, "acc-1")
	if err != nil {
		t.Fatalf("GetByIDForUpdate: %v", err)
	}
	if account.Kind != domain.LedgerCustomer || account.Version != 2 || !account.Initialized {
		t.Errorf("account = %+v", account)
	}
	if !account.Balance.Equal(domain.MustMoney("300")) {
		t.Errorf("balance = %s, want 300.00", account.Balance)
	}
	assertExpectations(t, pool)
}

func TestAccountRepositoryGetByIDNotFound(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectQuery(regexp.QuoteMeta("FROM ledger_accounts WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := NewAccountRepository(pool).GetByID(context.Background(), "missing")
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("error = %v, want ErrAccountNotFound", err)
	}
	assertExpectations(t, pool)
}

func TestAccountRepositoryUpdate(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{name: "updated", affected: 1},
		{name: "row vanished", affected: 0, wantErr: domain.ErrAccountNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := newMockPool(t)
			tx := beginTx(t, pool)

			pool.ExpectExec(regexp.QuoteMeta("UPDATE ledger_accounts")).
				WithArgs("acc-1", pgxmock.AnyArg(), pgxmock.AnyArg(), int64(3), true, pgxmock.AnyArg()).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))

			err := NewAccountRepository(pool).Update(context.Background(), tx, &domain.Account{
				ID: "acc-1", Kind: domain.LedgerCustomer, Balance: domain.MustMoney("10"),
				Version: 3, Initialized: true, UpdatedAt: fixedTime,
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Update() error = %v, want %v", err, tt.wantErr)
			}
			assertExpectations(t, pool)
		})
	}
}

func TestEntryListQuery(t *testing.T) {
	from := fixedTime
	to := fixedTime.AddDate(0, 0, 1)

	tests := []struct {
		name     string
		filter   domain.EntryFilter
		contains []string
		args     int
	}{
		{
			name:     "whole log",
			filter:   domain.EntryFilter{},
			contains: []string{"account_id = $1", "ORDER BY sequence"},
			args:     1,
		},
		{
			name:     "date range",
			filter:   domain.EntryFilter{From: &from, To: &to},
			contains: []string{"occurred_at >= $2", "occurred_at < $3"},
			args:     3,
		},
		{
			name:     "empty snapshot",
			filter:   domain.EntryFilter{MaxSequence: domain.UpToSequence(0)},
			contains: []string{"sequence <= $2", "ORDER BY sequence"},
			args:     2,
		},
		{
			name:     "snapshot with limit",
			filter:   domain.EntryFilter{MaxSequence: domain.UpToSequence(7), Limit: 5},
			contains: []string{"sequence <= $2", "ORDER BY sequence DESC LIMIT $3"},
			args:     3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := entryListQuery("acc-1", tt.filter)
			for _, fragment := range tt.contains {
				if !strings.Contains(query, fragment) {
					t.Errorf("query %q lacks %q", query, fragment)
				}
			}
			if len(args) != tt.args {
				t.Errorf("args = %d, want %d", len(args), tt.args)
			}
		})
	}
}

func TestEntryRepositoryListByAccountIsAscending(t *testing.T) {
	pool := newMockPool(t)
	columns := strings.Split(strings.ReplaceAll(entryColumns, " ", ""), ",")

	// With a limit the rows come back newest first.
	pool.ExpectQuery(regexp.QuoteMeta("FROM ledger_entries WHERE account_id = $1")).
		WithArgs("acc-1", 2).
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow("e3", "acc-1", "customer", int64(3), "charge", "5.00", "10.00", "15.00", "", fixedTime, fixedTime).
			AddRow("e2", "acc-1", "customer", int64(2), "charge", "5.00", "5.00", "10.00", "", fixedTime, fixedTime))

	entries, err := NewEntryRepository(pool).ListByAccount(context.Background(), "acc-1", domain.EntryFilter{Limit: 2})
	if err != nil {
		t.Fatalf("ListByAccount: %v", err)
	}
	if len(entries) != 2 || entries[0].Sequence != 2 || entries[1].Sequence != 3 {
		t.Fatalf("entries not ascending: %+v", entries)
	}
	if !entries[1].BalanceAfter.Equal(domain.MustMoney("15")) {
		t.Errorf("balance after = %s", entries[1].BalanceAfter)
	}
	assertExpectations(t, pool)
}

func TestEntryRepositoryDeleteByAccount(t *testing.T) {
	pool := newMockPool(t)
	tx := beginTx(t, pool)
	pool.ExpectExec(regexp.QuoteMeta("DELETE FROM ledger_entries WHERE account_id = $1")).
		WithArgs("main").
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	n, err := NewEntryRepository(pool).DeleteByAccount(context.Background(), tx, "main")
	if err != nil || n != 4 {
		t.Fatalf("DeleteByAccount = %d, %v; want 4", n, err)
	}
	assertExpectations(t, pool)
}

func TestPartyRepositoryTotalBalance(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(a.balance), 0)")).
		WithArgs("supplier").
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow("-42.50"))

	total, err := NewPartyRepository(pool).TotalBalance(context.Background(), domain.LedgerSupplier)
	if err != nil {
		t.Fatalf("TotalBalance: %v", err)
	}
	if !total.Equal(domain.MustMoney("-42.50")) {
		t.Errorf("total = %s, want -42.50", total)
	}
	assertExpectations(t, pool)
}

func TestPartyRepositoryGetByIDNotFound(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectQuery(regexp.QuoteMeta("WHERE p.kind = $1 AND p.id = $2")).
		WithArgs("supplier", "p-1").
		WillReturnError(pgx.ErrNoRows)

	_, err := NewPartyRepository(pool).GetByID(context.Background(), domain.LedgerSupplier, "p-1")
	if !errors.Is(err, domain.ErrSupplierNotFound) {
		t.Fatalf("error = %v, want ErrSupplierNotFound", err)
	}
}

func TestProductRepositoryCreateDuplicateSKU(t *testing.T) {
	pool := newMockPool(t)
	tx := beginTx(t, pool)
	pool.ExpectExec(regexp.QuoteMeta("INSERT INTO products")).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	err := NewProductRepository(pool).Create(context.Background(), tx, &domain.Product{ID: "p-1", Name: "Nut", SKU: "N-1"})
	if !errors.Is(err, domain.ErrDuplicateSKU) {
		t.Fatalf("error = %v, want ErrDuplicateSKU", err)
	}
}

func TestOutboxRepositoryMarkPublished(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectExec(regexp.QuoteMeta("UPDATE outbox_events SET published = TRUE")).
		WithArgs("evt-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := NewOutboxRepository(pool).MarkPublished(context.Background(), "evt-1", fixedTime); err != nil {
		t.Fatalf("MarkPublished: %v", err)
	}
	assertExpectations(t, pool)
}
