package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/iho/storeledger/internal/domain"
)

// InvoiceUseCase records sales and purchases: stock moves and the party
// ledger postings happen in one transaction.
type InvoiceUseCase struct {
	txManager   TransactionManager
	invoiceRepo InvoiceRepository
	productRepo ProductRepository
	outboxRepo  OutboxRepository
	customers   *LedgerUseCase
	suppliers   *LedgerUseCase
	idGen       IDGenerator
	opts        Options
}

// NewInvoiceUseCase creates a new InvoiceUseCase.
func NewInvoiceUseCase(
	txManager TransactionManager,
	invoiceRepo InvoiceRepository,
	productRepo ProductRepository,
	outboxRepo OutboxRepository,
	customers *LedgerUseCase,
	suppliers *LedgerUseCase,
	idGen IDGenerator,
	opts Options,
) *InvoiceUseCase {
	return &InvoiceUseCase{
		txManager:   txManager,
		invoiceRepo: invoiceRepo,
		productRepo: productRepo,
		outboxRepo:  outboxRepo,
		customers:   customers,
		suppliers:   suppliers,
		idGen:       idGen,
		opts:        opts.withDefaults(),
	}
}

// InvoiceItemInput is one requested line. A nil UnitPrice uses the product's price.
type InvoiceItemInput struct {
	ProductID string
	Quantity  int64
	UnitPrice *domain.Money
}

// RecordInvoiceInput represents a sale or purchase to record.
type RecordInvoiceInput struct {
	Kind     domain.InvoiceKind
	PartyID  string
	Items    []InvoiceItemInput
	Paid     domain.Money
	Note     string
	IssuedAt time.Time
}

// Record stores the invoice, moves stock and posts the charge (and the
// payment, when something was paid) to the party's ledger.
func (uc *InvoiceUseCase) Record(ctx context.Context, input RecordInvoiceInput) (*domain.Invoice, error) {
	partyKind, err := input.Kind.PartyKind()
	if err != nil {
		return nil, err
	}
	if len(input.Items) == 0 {
		return nil, domain.ErrEmptyInvoice
	}
	if err := domain.ValidateDescription(input.Note); err != nil {
		return nil, err
	}

	ledger := uc.customers
	if partyKind == domain.LedgerSupplier {
		ledger = uc.suppliers
	}

	var invoice *domain.Invoice
	err = ledger.WithLock(ctx, input.PartyID, func(ctx context.Context) error {
		return uc.opts.Retrier.Retry(ctx, func() error {
			inv, err := uc.record(ctx, ledger, input)
			invoice = inv
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	if m := uc.opts.Metrics; m != nil {
		m.InvoicesRecorded.WithLabelValues(string(invoice.Kind)).Inc()
	}
	return invoice, nil
}

func (uc *InvoiceUseCase) record(ctx context.Context, ledger *LedgerUseCase, input RecordInvoiceInput) (*domain.Invoice, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	now := uc.opts.now()
	issuedAt := input.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = now
	}

	products, err := uc.lockProducts(txCtx, tx, input.Items)
	if err != nil {
		return nil, err
	}

	invoice := &domain.Invoice{
		ID:        uc.idGen.Generate(),
		Kind:      input.Kind,
		PartyID:   input.PartyID,
		Paid:      input.Paid,
		Note:      strings.TrimSpace(input.Note),
		IssuedAt:  issuedAt,
		CreatedAt: now,
	}
	for _, item := range input.Items {
		price := products[item.ProductID].UnitPrice
		if item.UnitPrice != nil {
			price = *item.UnitPrice
		}
		invoice.Items = append(invoice.Items, domain.InvoiceItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: price,
		})
	}
	if err := invoice.Finalize(); err != nil {
		return nil, err
	}

	sign := input.Kind.StockSign()
	for _, item := range invoice.Items {
		p := products[item.ProductID]
		if err := p.AdjustStock(sign*item.Quantity, now); err != nil {
			return nil, err
		}
	}
	for _, p := range products {
		if err := uc.productRepo.Update(txCtx, tx, p); err != nil {
			return nil, err
		}
	}

	if invoice.Total.IsPositive() {
		charge, err := ledger.PostTx(txCtx, tx, PostInput{
			AccountID:   invoice.PartyID,
			Type:        domain.EntryCharge,
			Amount:      invoice.Total,
			Description: fmt.Sprintf("%s invoice %s", invoice.Kind, invoice.ID),
			OccurredAt:  issuedAt,
		})
		if err != nil {
			return nil, err
		}
		invoice.ChargeEntryID = charge.ID
	}

	if invoice.Paid.IsPositive() {
		payment, err := ledger.PostTx(txCtx, tx, PostInput{
			AccountID:   invoice.PartyID,
			Type:        domain.EntryPayment,
			Amount:      invoice.Paid,
			Description: fmt.Sprintf("payment on %s invoice %s", invoice.Kind, invoice.ID),
			OccurredAt:  issuedAt,
		})
		if err != nil {
			return nil, err
		}
		invoice.PaymentEntryID = payment.ID
	}

	if err := uc.invoiceRepo.Create(txCtx, tx, invoice); err != nil {
		return nil, err
	}
	if err := uc.outboxRepo.Create(txCtx, tx, domain.NewInvoiceEvent(uc.idGen.Generate(), invoice)); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}
	return invoice, nil
}

// lockProducts locks every referenced product in ID order.
func (uc *InvoiceUseCase) lockProducts(ctx context.Context, tx Transaction, items []InvoiceItemInput) (map[string]*domain.Product, error) {
	ids := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}
	sort.Strings(ids)

	products := make(map[string]*domain.Product, len(ids))
	for _, id := range ids {
		p, err := uc.productRepo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		products[id] = p
	}
	return products, nil
}

// Get retrieves an invoice with its items.
func (uc *InvoiceUseCase) Get(ctx context.Context, id string) (*domain.Invoice, error) {
	return uc.invoiceRepo.GetByID(ctx, id)
}

// List lists invoices, newest first.
func (uc *InvoiceUseCase) List(ctx context.Context, filter domain.InvoiceFilter) ([]*domain.Invoice, error) {
	filter.Limit, filter.Offset = domain.ValidatePagination(filter.Limit, filter.Offset)
	return uc.invoiceRepo.List(ctx, filter)
}
