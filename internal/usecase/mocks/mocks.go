package mocks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iho/storeledger/internal/domain"
	"github.com/iho/storeledger/internal/usecase"
)

// Store is an in-memory database shared by the repository fakes below.
// Transactions are serialized and rolled back by restoring a snapshot, so a
// failed use case leaves the store exactly as it found it.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data state
}

type state struct {
	accounts map[string]domain.Account
	entries  map[string][]domain.Entry
	parties  map[string]domain.Party
	products map[string]domain.Product
	invoices map[string]domain.Invoice
	outbox   []domain.OutboxEvent
}

func newState() state {
	return state{
		accounts: make(map[string]domain.Account),
		entries:  make(map[string][]domain.Entry),
		parties:  make(map[string]domain.Party),
		products: make(map[string]domain.Product),
		invoices: make(map[string]domain.Invoice),
	}
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.entries {
		c.entries[k] = append([]domain.Entry(nil), v...)
	}
	for k, v := range s.parties {
		c.parties[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.invoices {
		v.Items = append([]domain.InvoiceItem(nil), v.Items...)
		c.invoices[k] = v
	}
	c.outbox = append([]domain.OutboxEvent(nil), s.outbox...)
	return c
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{data: newState()}
}

// Outbox returns every outbox event written so far.
func (s *Store) Outbox() []domain.OutboxEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.OutboxEvent(nil), s.data.outbox...)
}

// CorruptBalance overwrites a cached balance without touching the log.
func (s *Store) CorruptBalance(accountID string, balance domain.Money) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.data.accounts[accountID]
	a.Balance = balance
	s.data.accounts[accountID] = a
}

func (s *Store) read(fn func(d *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.data)
}

func (s *Store) write(fn func(d *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.data)
}

// MockTransactionManager begins transactions on a Store.
type MockTransactionManager struct {
	store *Store

	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
	Commits   atomic.Int64
}

// TxManager returns a transaction manager bound to the store.
func (s *Store) TxManager() *MockTransactionManager {
	return &MockTransactionManager{store: s}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	m.store.txMu.Lock()
	m.store.mu.RLock()
	snapshot := m.store.data.clone()
	m.store.mu.RUnlock()
	return &MockTransaction{manager: m, snapshot: snapshot}, nil
}

// MockTransaction restores its snapshot on rollback.
type MockTransaction struct {
	manager  *MockTransactionManager
	snapshot state
	done     bool

	CommitFunc func(ctx context.Context) error
}

func (t *MockTransaction) Commit(ctx context.Context) error {
	if t.done {
		return errors.New("transaction already closed")
	}
	if t.CommitFunc != nil {
		if err := t.CommitFunc(ctx); err != nil {
			return err
		}
	}
	t.done = true
	t.manager.Commits.Add(1)
	t.manager.store.txMu.Unlock()
	return nil
}

func (t *MockTransaction) Rollback(context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	store := t.manager.store
	store.mu.Lock()
	store.data = t.snapshot
	store.mu.Unlock()
	store.txMu.Unlock()
	return nil
}

// MockAccountRepository keeps ledger accounts in a Store.
type MockAccountRepository struct {
	store *Store

	GetByIDFunc func(ctx context.Context, id string) (*domain.Account, error)
	UpdateFunc  func(ctx context.Context, tx usecase.Transaction, account *domain.Account) error
}

// Accounts returns the account repository of the store.
func (s *Store) Accounts() *MockAccountRepository {
	return &MockAccountRepository{store: s}
}

func (m *MockAccountRepository) Create(_ context.Context, _ usecase.Transaction, account *domain.Account) error {
	return m.store.write(func(d *state) error {
		if _, ok := d.accounts[account.ID]; ok {
			return fmt.Errorf("%w: account %s exists", domain.ErrConflict, account.ID)
		}
		d.accounts[account.ID] = *account
		return nil
	})
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	var (
		account domain.Account
		ok      bool
	)
	m.store.read(func(d *state) { account, ok = d.accounts[id] })
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &account, nil
}

func (m *MockAccountRepository) GetByIDForUpdate(ctx context.Context, _ usecase.Transaction, id string) (*domain.Account, error) {
	return m.GetByID(ctx, id)
}

func (m *MockAccountRepository) Update(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, tx, account)
	}
	return m.store.write(func(d *state) error {
		if _, ok := d.accounts[account.ID]; !ok {
			return domain.ErrAccountNotFound
		}
		d.accounts[account.ID] = *account
		return nil
	})
}

func (m *MockAccountRepository) Delete(_ context.Context, _ usecase.Transaction, id string) error {
	return m.store.write(func(d *state) error {
		delete(d.accounts, id)
		return nil
	})
}

func (m *MockAccountRepository) ListByKind(_ context.Context, kind domain.LedgerKind) ([]*domain.Account, error) {
	var out []*domain.Account
	m.store.read(func(d *state) {
		for _, a := range d.accounts {
			if a.Kind == kind {
				a := a
				out = append(out, &a)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MockEntryRepository keeps ledger entries in a Store.
type MockEntryRepository struct {
	store *Store

	CreateFunc        func(ctx context.Context, tx usecase.Transaction, entry *domain.Entry) error
	ListByAccountFunc func(ctx context.Context, accountID string, filter domain.EntryFilter) ([]*domain.Entry, error)
}

// Entries returns the entry repository of the store.
func (s *Store) Entries() *MockEntryRepository {
	return &MockEntryRepository{store: s}
}

func (m *MockEntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.Entry) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, entry)
	}
	return m.store.write(func(d *state) error {
		d.entries[entry.AccountID] = append(d.entries[entry.AccountID], *entry)
		return nil
	})
}

func (m *MockEntryRepository) ListByAccount(ctx context.Context, accountID string, filter domain.EntryFilter) ([]*domain.Entry, error) {
	if m.ListByAccountFunc != nil {
		return m.ListByAccountFunc(ctx, accountID, filter)
	}
	var out []*domain.Entry
	m.store.read(func(d *state) {
		for _, e := range d.entries[accountID] {
			if filter.From != nil && e.OccurredAt.Before(*filter.From) {
				continue
			}
			if filter.To != nil && !e.OccurredAt.Before(*filter.To) {
				continue
			}
			if filter.MaxSequence != nil && e.Sequence > *filter.MaxSequence {
				continue
			}
			e := e
			out = append(out, &e)
		}
	})
	domain.SortBySequence(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out, nil
}

func (m *MockEntryRepository) CountByAccount(_ context.Context, _ usecase.Transaction, accountID string) (int64, error) {
	var n int64
	m.store.read(func(d *state) { n = int64(len(d.entries[accountID])) })
	return n, nil
}

func (m *MockEntryRepository) DeleteByAccount(_ context.Context, _ usecase.Transaction, accountID string) (int64, error) {
	var n int64
	err := m.store.write(func(d *state) error {
		n = int64(len(d.entries[accountID]))
		delete(d.entries, accountID)
		return nil
	})
	return n, err
}

// MockPartyRepository keeps customers and suppliers in a Store; reads join
// the ledger account balance.
type MockPartyRepository struct {
	store *Store

	CountFunc        func(ctx context.Context, kind domain.LedgerKind) (int64, error)
	TotalBalanceFunc func(ctx context.Context, kind domain.LedgerKind) (domain.Money, error)
}

// Parties returns the party repository of the store.
func (s *Store) Parties() *MockPartyRepository {
	return &MockPartyRepository{store: s}
}

func (m *MockPartyRepository) Create(_ context.Context, _ usecase.Transaction, party *domain.Party) error {
	return m.store.write(func(d *state) error {
		d.parties[party.ID] = *party
		return nil
	})
}

func (m *MockPartyRepository) GetByID(_ context.Context, kind domain.LedgerKind, id string) (*domain.Party, error) {
	var (
		party domain.Party
		ok    bool
	)
	m.store.read(func(d *state) {
		party, ok = d.parties[id]
		party.Balance = d.accounts[id].Balance
	})
	if !ok || party.Kind != kind {
		return nil, kind.NotFound()
	}
	return &party, nil
}

func (m *MockPartyRepository) List(_ context.Context, kind domain.LedgerKind, filter domain.PartyFilter) ([]*domain.Party, error) {
	search := strings.ToLower(filter.Search)
	out := m.collect(kind, func(p *domain.Party) bool {
		if search == "" {
			return true
		}
		return strings.Contains(strings.ToLower(p.Name), search) ||
			strings.Contains(strings.ToLower(p.Phone), search) ||
			strings.Contains(strings.ToLower(p.Email), search)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return page(out, filter.Limit, filter.Offset), nil
}

func (m *MockPartyRepository) Update(_ context.Context, party *domain.Party) error {
	return m.store.write(func(d *state) error {
		stored, ok := d.parties[party.ID]
		if !ok {
			return party.Kind.NotFound()
		}
		stored.Name = party.Name
		stored.Phone = party.Phone
		stored.Email = party.Email
		stored.Address = party.Address
		stored.UpdatedAt = party.UpdatedAt
		d.parties[party.ID] = stored
		return nil
	})
}

func (m *MockPartyRepository) Delete(_ context.Context, _ usecase.Transaction, id string) error {
	return m.store.write(func(d *state) error {
		delete(d.parties, id)
		return nil
	})
}

func (m *MockPartyRepository) Count(ctx context.Context, kind domain.LedgerKind) (int64, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx, kind)
	}
	return int64(len(m.collect(kind, nil))), nil
}

func (m *MockPartyRepository) TotalBalance(ctx context.Context, kind domain.LedgerKind) (domain.Money, error) {
	if m.TotalBalanceFunc != nil {
		return m.TotalBalanceFunc(ctx, kind)
	}
	total := domain.ZeroMoney
	for _, p := range m.collect(kind, nil) {
		total = total.Add(p.Balance)
	}
	return total, nil
}

func (m *MockPartyRepository) Debtors(_ context.Context, kind domain.LedgerKind, filter domain.DebtFilter) ([]*domain.Party, error) {
	out := m.collect(kind, func(p *domain.Party) bool {
		if filter.Above != nil {
			return p.Balance.GreaterThan(*filter.Above)
		}
		return !p.Balance.IsZero()
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Balance.GreaterThan(out[j].Balance) })
	return page(out, filter.Limit, 0), nil
}

func (m *MockPartyRepository) collect(kind domain.LedgerKind, keep func(*domain.Party) bool) []*domain.Party {
	var out []*domain.Party
	m.store.read(func(d *state) {
		for _, p := range d.parties {
			if p.Kind != kind {
				continue
			}
			p := p
			p.Balance = d.accounts[p.ID].Balance
			if keep == nil || keep(&p) {
				out = append(out, &p)
			}
		}
	})
	return out
}

// MockProductRepository keeps products in a Store.
type MockProductRepository struct {
	store *Store

	CountLowStockFunc func(ctx context.Context) (int64, error)
}

// Products returns the product repository of the store.
func (s *Store) Products() *MockProductRepository {
	return &MockProductRepository{store: s}
}

func (m *MockProductRepository) Create(_ context.Context, _ usecase.Transaction, product *domain.Product) error {
	return m.store.write(func(d *state) error {
		if product.SKU != "" {
			for _, p := range d.products {
				if p.SKU == product.SKU {
					return domain.ErrDuplicateSKU
				}
			}
		}
		d.products[product.ID] = *product
		return nil
	})
}

func (m *MockProductRepository) GetByID(_ context.Context, id string) (*domain.Product, error) {
	var (
		product domain.Product
		ok      bool
	)
	m.store.read(func(d *state) { product, ok = d.products[id] })
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &product, nil
}

func (m *MockProductRepository) GetByIDForUpdate(ctx context.Context, _ usecase.Transaction, id string) (*domain.Product, error) {
	return m.GetByID(ctx, id)
}

func (m *MockProductRepository) Update(_ context.Context, _ usecase.Transaction, product *domain.Product) error {
	return m.store.write(func(d *state) error {
		if _, ok := d.products[product.ID]; !ok {
			return domain.ErrProductNotFound
		}
		d.products[product.ID] = *product
		return nil
	})
}

func (m *MockProductRepository) Delete(_ context.Context, _ usecase.Transaction, id string) error {
	return m.store.write(func(d *state) error {
		delete(d.products, id)
		return nil
	})
}

func (m *MockProductRepository) List(_ context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	search := strings.ToLower(filter.Search)
	var out []*domain.Product
	m.store.read(func(d *state) {
		for _, p := range d.products {
			if filter.LowStockOnly && !p.IsLowStock() {
				continue
			}
			if search != "" && !strings.Contains(strings.ToLower(p.Name), search) && !strings.Contains(strings.ToLower(p.SKU), search) {
				continue
			}
			p := p
			out = append(out, &p)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return page(out, filter.Limit, filter.Offset), nil
}

func (m *MockProductRepository) CountLowStock(ctx context.Context) (int64, error) {
	if m.CountLowStockFunc != nil {
		return m.CountLowStockFunc(ctx)
	}
	var n int64
	m.store.read(func(d *state) {
		for _, p := range d.products {
			if p.IsLowStock() {
				n++
			}
		}
	})
	return n, nil
}

// MockInvoiceRepository keeps invoices in a Store.
type MockInvoiceRepository struct {
	store *Store
}

// Invoices returns the invoice repository of the store.
func (s *Store) Invoices() *MockInvoiceRepository {
	return &MockInvoiceRepository{store: s}
}

func (m *MockInvoiceRepository) Create(_ context.Context, _ usecase.Transaction, invoice *domain.Invoice) error {
	return m.store.write(func(d *state) error {
		inv := *invoice
		inv.Items = append([]domain.InvoiceItem(nil), invoice.Items...)
		d.invoices[inv.ID] = inv
		return nil
	})
}

func (m *MockInvoiceRepository) GetByID(_ context.Context, id string) (*domain.Invoice, error) {
	var (
		inv domain.Invoice
		ok  bool
	)
	m.store.read(func(d *state) { inv, ok = d.invoices[id] })
	if !ok {
		return nil, domain.ErrInvoiceNotFound
	}
	inv.Items = append([]domain.InvoiceItem(nil), inv.Items...)
	return &inv, nil
}

func (m *MockInvoiceRepository) List(_ context.Context, filter domain.InvoiceFilter) ([]*domain.Invoice, error) {
	var out []*domain.Invoice
	m.store.read(func(d *state) {
		for _, inv := range d.invoices {
			if filter.PartyID != "" && inv.PartyID != filter.PartyID {
				continue
			}
			if filter.Kind != "" && inv.Kind != filter.Kind {
				continue
			}
			inv := inv
			out = append(out, &inv)
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].IssuedAt.Equal(out[j].IssuedAt) {
			return out[i].IssuedAt.After(out[j].IssuedAt)
		}
		return out[i].ID > out[j].ID
	})
	return page(out, filter.Limit, filter.Offset), nil
}

func (m *MockInvoiceRepository) DeleteByParty(_ context.Context, _ usecase.Transaction, partyID string) error {
	return m.store.write(func(d *state) error {
		for id, inv := range d.invoices {
			if inv.PartyID == partyID {
				delete(d.invoices, id)
			}
		}
		return nil
	})
}

// MockOutboxRepository keeps outbox events in a Store.
type MockOutboxRepository struct {
	store *Store
}

// OutboxEvents returns the outbox repository of the store.
func (s *Store) OutboxEvents() *MockOutboxRepository {
	return &MockOutboxRepository{store: s}
}

func (m *MockOutboxRepository) Create(_ context.Context, _ usecase.Transaction, event *domain.OutboxEvent) error {
	return m.store.write(func(d *state) error {
		d.outbox = append(d.outbox, *event)
		return nil
	})
}

func (m *MockOutboxRepository) GetUnpublished(_ context.Context, limit int) ([]*domain.OutboxEvent, error) {
	var out []*domain.OutboxEvent
	m.store.read(func(d *state) {
		for _, e := range d.outbox {
			if !e.Published {
				e := e
				out = append(out, &e)
			}
		}
	})
	return page(out, limit, 0), nil
}

func (m *MockOutboxRepository) MarkPublished(_ context.Context, id string, publishedAt time.Time) error {
	return m.store.write(func(d *state) error {
		for i := range d.outbox {
			if d.outbox[i].ID == id {
				d.outbox[i].Published = true
				d.outbox[i].PublishedAt = &publishedAt
			}
		}
		return nil
	})
}

func (m *MockOutboxRepository) DeletePublished(_ context.Context, before time.Time) error {
	return m.store.write(func(d *state) error {
		kept := d.outbox[:0]
		for _, e := range d.outbox {
			if e.Published && e.PublishedAt != nil && e.PublishedAt.Before(before) {
				continue
			}
			kept = append(kept, e)
		}
		d.outbox = kept
		return nil
	})
}

// CountingIDGenerator returns ids with a fixed prefix and an increasing counter.
type CountingIDGenerator struct {
	Prefix string
	n      atomic.Int64
}

func (g *CountingIDGenerator) Generate() string {
	prefix := g.Prefix
	if prefix == "" {
		prefix = "id"
	}
	return fmt.Sprintf("%s-%04d", prefix, g.n.Add(1))
}

// MapCache is a Cache backed by a map. Err, when set, fails every call.
type MapCache struct {
	mu   sync.Mutex
	data map[string][]byte
	Err  error
}

func NewMapCache() *MapCache {
	return &MapCache{data: make(map[string][]byte)}
}

func (c *MapCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	v, ok := c.data[key]
	if !ok {
		return nil, usecase.ErrCacheMiss
	}
	return v, nil
}

func (c *MapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.data[key] = append([]byte(nil), value...)
	return nil
}

func (c *MapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
