package domain

import (
	"fmt"
	"time"
)

// InvoiceKind is sale (to a customer) or purchase (from a supplier).
type InvoiceKind string

const (
	InvoiceSale     InvoiceKind = "sale"
	InvoicePurchase InvoiceKind = "purchase"
)

// PartyKind returns the ledger the invoice posts to.
func (k InvoiceKind) PartyKind() (LedgerKind, error) {
	switch k {
	case InvoiceSale:
		return LedgerCustomer, nil
	case InvoicePurchase:
		return LedgerSupplier, nil
	}
	return "", ErrInvalidInvoiceKind
}

// StockSign is -1 for sales and +1 for purchases.
func (k InvoiceKind) StockSign() int64 {
	if k == InvoiceSale {
		return -1
	}
	return 1
}

// InvoiceItem is one line of an invoice.
type InvoiceItem struct {
	ProductID string
	Quantity  int64
	UnitPrice Money
	LineTotal Money
}

// Invoice records a sale or purchase and the ledger postings it produced.
type Invoice struct {
	ID             string
	Kind           InvoiceKind
	PartyID        string
	Items          []InvoiceItem
	Total          Money
	Paid           Money
	Note           string
	ChargeEntryID  string
	PaymentEntryID string
	IssuedAt       time.Time
	CreatedAt      time.Time
}

// Due is the part of the total left on the party's ledger.
func (inv *Invoice) Due() Money {
	return inv.Total.Sub(inv.Paid)
}

// Finalize validates the invoice and computes line totals and the total.
func (inv *Invoice) Finalize() error {
	if _, err := inv.Kind.PartyKind(); err != nil {
		return err
	}
	if inv.PartyID == "" {
		return fmt.Errorf("%w: party is required", ErrValidation)
	}
	if len(inv.Items) == 0 {
		return ErrEmptyInvoice
	}

	total := ZeroMoney
	for i := range inv.Items {
		item := &inv.Items[i]
		if item.ProductID == "" {
			return fmt.Errorf("%w: item %d has no product", ErrValidation, i+1)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %d quantity must be positive", ErrValidation, i+1)
		}
		if err := ValidateUnitPrice(item.UnitPrice); err != nil {
			return fmt.Errorf("item %d: %w", i+1, err)
		}
		item.LineTotal = item.UnitPrice.MulInt(item.Quantity)
		total = total.Add(item.LineTotal)
	}
	inv.Total = total

	if inv.Paid.IsNegative() {
		return fmt.Errorf("%w: paid amount cannot be negative", ErrValidation)
	}
	if inv.Paid.GreaterThan(inv.Total) {
		return ErrOverpaidInvoice
	}
	return nil
}

// InvoiceFilter narrows an invoice listing.
type InvoiceFilter struct {
	PartyID string
	Kind    InvoiceKind
	Limit   int
	Offset  int
}
