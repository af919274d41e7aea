package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/iho/storeledger/internal/domain"
)

// AccountRepository defines data access for ledger accounts (the cached balances).
type AccountRepository interface {
	Create(ctx context.Context, tx Transaction, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.Account, error)
	Update(ctx context.Context, tx Transaction, account *domain.Account) error
	Delete(ctx context.Context, tx Transaction, id string) error
	ListByKind(ctx context.Context, kind domain.LedgerKind) ([]*domain.Account, error)
}

// EntryRepository defines data access for the append-only ledger logs.
type EntryRepository interface {
	Create(ctx context.Context, tx Transaction, entry *domain.Entry) error
	// ListByAccount returns entries ordered by ascending sequence.
	ListByAccount(ctx context.Context, accountID string, filter domain.EntryFilter) ([]*domain.Entry, error)
	CountByAccount(ctx context.Context, tx Transaction, accountID string) (int64, error)
	DeleteByAccount(ctx context.Context, tx Transaction, accountID string) (int64, error)
}

// PartyRepository defines data access for customers and suppliers.
// Reads join the party with its ledger account balance.
type PartyRepository interface {
	Create(ctx context.Context, tx Transaction, party *domain.Party) error
	GetByID(ctx context.Context, kind domain.LedgerKind, id string) (*domain.Party, error)
	List(ctx context.Context, kind domain.LedgerKind, filter domain.PartyFilter) ([]*domain.Party, error)
	Update(ctx context.Context, party *domain.Party) error
	Delete(ctx context.Context, tx Transaction, id string) error
	Count(ctx context.Context, kind domain.LedgerKind) (int64, error)
	TotalBalance(ctx context.Context, kind domain.LedgerKind) (domain.Money, error)
	// Debtors returns parties with a non-zero balance, highest balance first.
	Debtors(ctx context.Context, kind domain.LedgerKind, filter domain.DebtFilter) ([]*domain.Party, error)
}

// ProductRepository defines data access for products.
type ProductRepository interface {
	Create(ctx context.Context, tx Transaction, product *domain.Product) error
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.Product, error)
	Update(ctx context.Context, tx Transaction, product *domain.Product) error
	Delete(ctx context.Context, tx Transaction, id string) error
	List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error)
	CountLowStock(ctx context.Context) (int64, error)
}

// InvoiceRepository defines data access for invoices and their items.
type InvoiceRepository interface {
	Create(ctx context.Context, tx Transaction, invoice *domain.Invoice) error
	GetByID(ctx context.Context, id string) (*domain.Invoice, error)
	List(ctx context.Context, filter domain.InvoiceFilter) ([]*domain.Invoice, error)
	DeleteByParty(ctx context.Context, tx Transaction, partyID string) error
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier re-runs an operation on transient storage errors
// (deadlocks, serialization failures, busy database files).
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// Locker serializes writers of one ledger across processes. The returned
// release func must be called once the protected work is done.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context), err error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// ErrCacheMiss is returned by Cache.Get for absent keys.
var ErrCacheMiss = errors.New("cache miss")

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyPending marks an idempotency key whose request is still running.
const IdempotencyPending = "processing"

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release frees a key whose request failed so the client can retry it.
	Release(ctx context.Context, key string) error
}

// NoopLocker is used when no distributed lock backend is configured; the
// storage row lock alone orders writers.
type NoopLocker struct{}

func (NoopLocker) Acquire(context.Context, string) (func(context.Context), error) {
	return func(context.Context) {}, nil
}

// NoRetry runs the operation once.
type NoRetry struct{}

func (NoRetry) Retry(_ context.Context, operation func() error) error {
	return operation()
}
