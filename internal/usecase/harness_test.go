package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/iho/storeledger/internal/domain"
	"github.com/iho/storeledger/internal/usecase"
	"github.com/iho/storeledger/internal/usecase/mocks"
)

// harness wires every use case over one in-memory store.
type harness struct {
	store     *mocks.Store
	txManager *mocks.MockTransactionManager
	accounts  *mocks.MockAccountRepository
	entries   *mocks.MockEntryRepository
	parties   *mocks.MockPartyRepository
	products  *mocks.MockProductRepository
	invoices  *mocks.MockInvoiceRepository
	outbox    *mocks.MockOutboxRepository
	ids       *mocks.CountingIDGenerator
	now       time.Time
	opts      usecase.Options

	customerLedger *usecase.LedgerUseCase
	supplierLedger *usecase.LedgerUseCase
	cashboxLedger  *usecase.LedgerUseCase
	customers      *usecase.PartyUseCase
	suppliers      *usecase.PartyUseCase
	cashbox        *usecase.CashboxUseCase
	catalog        *usecase.ProductUseCase
	billing        *usecase.InvoiceUseCase
}

func newHarness(t *testing.T, mutate ...func(*usecase.Options)) *harness {
	t.Helper()

	store := mocks.NewStore()
	h := &harness{
		store:     store,
		txManager: store.TxManager(),
		accounts:  store.Accounts(),
		entries:   store.Entries(),
		parties:   store.Parties(),
		products:  store.Products(),
		invoices:  store.Invoices(),
		outbox:    store.OutboxEvents(),
		ids:       &mocks.CountingIDGenerator{},
		now:       time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	h.opts = usecase.Options{
		Location: time.UTC,
		Now:      func() time.Time { return h.now },
	}
	for _, fn := range mutate {
		fn(&h.opts)
	}

	h.customerLedger = h.ledger(domain.LedgerCustomer)
	h.supplierLedger = h.ledger(domain.LedgerSupplier)
	h.cashboxLedger = h.ledger(domain.LedgerCashbox)
	h.customers = h.partyUseCase(domain.LedgerCustomer)
	h.suppliers = h.partyUseCase(domain.LedgerSupplier)
	h.cashbox = usecase.NewCashboxUseCase(h.cashboxLedger, h.txManager, h.accounts, h.entries, h.outbox, h.ids, h.opts)
	h.catalog = usecase.NewProductUseCase(h.txManager, h.products, h.ids, h.opts)
	h.billing = usecase.NewInvoiceUseCase(h.txManager, h.invoices, h.products, h.outbox, h.customerLedger, h.supplierLedger, h.ids, h.opts)
	return h
}

func (h *harness) ledger(kind domain.LedgerKind) *usecase.LedgerUseCase {
	return usecase.NewLedgerUseCase(kind, h.txManager, h.accounts, h.entries, h.outbox, h.ids, h.opts)
}

func (h *harness) partyUseCase(kind domain.LedgerKind) *usecase.PartyUseCase {
	return usecase.NewPartyUseCase(kind, h.txManager, h.parties, h.accounts, h.entries, h.invoices, h.outbox, h.ids, h.opts)
}

func (h *harness) newCustomer(t *testing.T, name string) *domain.Party {
	t.Helper()
	p, err := h.customers.Create(context.Background(), domain.PartyProfile{Name: name})
	if err != nil {
		t.Fatalf("create customer %q: %v", name, err)
	}
	return p
}

func (h *harness) newSupplier(t *testing.T, name string) *domain.Party {
	t.Helper()
	p, err := h.suppliers.Create(context.Background(), domain.PartyProfile{Name: name})
	if err != nil {
		t.Fatalf("create supplier %q: %v", name, err)
	}
	return p
}

func (h *harness) post(t *testing.T, l *usecase.LedgerUseCase, accountID string, typ domain.EntryType, amount string) *domain.Entry {
	t.Helper()
	e, err := l.Post(context.Background(), usecase.PostInput{
		AccountID: accountID,
		Type:      typ,
		Amount:    domain.MustMoney(amount),
	})
	if err != nil {
		t.Fatalf("post %s %s to %s: %v", typ, amount, accountID, err)
	}
	return e
}

func (h *harness) newProduct(t *testing.T, name, sku string, qty int64, price string) *domain.Product {
	t.Helper()
	p, err := h.catalog.Create(context.Background(), usecase.ProductInput{
		Name:      name,
		SKU:       sku,
		Quantity:  qty,
		MinStock:  2,
		UnitPrice: domain.MustMoney(price),
	})
	if err != nil {
		t.Fatalf("create product %q: %v", name, err)
	}
	return p
}

func assertMoney(t *testing.T, name string, got domain.Money, want string) {
	t.Helper()
	if !got.Equal(domain.MustMoney(want)) {
		t.Errorf("%s = %s, want %s", name, got, want)
	}
}
