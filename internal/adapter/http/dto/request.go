package dto

import (
	"strings"
	"time"

	"github.com/iho/storeledger/internal/domain"
	"github.com/iho/storeledger/internal/usecase"
)

// PartyRequest creates or updates a customer or supplier.
type PartyRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Phone   string `json:"phone,omitempty" validate:"max=32"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
	Address string `json:"address,omitempty" validate:"max=500"`
}

// ToProfile converts to the domain profile.
func (r *PartyRequest) ToProfile() domain.PartyProfile {
	return domain.PartyProfile{
		Name:    r.Name,
		Phone:   r.Phone,
		Email:   r.Email,
		Address: r.Address,
	}
}

// PostBalanceRequest posts a charge or payment to a party ledger.
type PostBalanceRequest struct {
	Amount          domain.Money `json:"amount"`
	Type            string       `json:"type" validate:"required,oneof=charge payment"`
	Description     string       `json:"description,omitempty" validate:"max=500"`
	TransactionDate string       `json:"transaction_date,omitempty"`
}

// ToPostInput converts to use case input. Dates are parsed in loc.
func (r *PostBalanceRequest) ToPostInput(accountID string, loc *time.Location) (usecase.PostInput, error) {
	occurred, err := optionalTimestamp(r.TransactionDate, loc)
	if err != nil {
		return usecase.PostInput{}, err
	}
	return usecase.PostInput{
		AccountID:   accountID,
		Type:        domain.EntryType(r.Type),
		Amount:      r.Amount,
		Description: r.Description,
		OccurredAt:  occurred,
	}, nil
}

// CashboxInitRequest sets the opening balance.
type CashboxInitRequest struct {
	OpeningBalance domain.Money `json:"opening_balance"`
}

// CashboxTransactionRequest posts a deposit or withdrawal.
type CashboxTransactionRequest struct {
	Type   string       `json:"type" validate:"required,oneof=deposit withdrawal"`
	Amount domain.Money `json:"amount"`
	Date   string       `json:"date,omitempty"`
	Note   string       `json:"note,omitempty" validate:"max=500"`
}

// ToTransactInput converts to use case input.
func (r *CashboxTransactionRequest) ToTransactInput(loc *time.Location) (usecase.TransactInput, error) {
	date, err := optionalTimestamp(r.Date, loc)
	if err != nil {
		return usecase.TransactInput{}, err
	}
	return usecase.TransactInput{
		Type:   domain.EntryType(r.Type),
		Amount: r.Amount,
		Date:   date,
		Note:   r.Note,
	}, nil
}

// CashboxResetRequest must carry an explicit confirmation.
type CashboxResetRequest struct {
	ConfirmReset bool `json:"confirmReset"`
}

// ProductRequest creates or replaces a product.
type ProductRequest struct {
	Name      string       `json:"name" validate:"required,max=200"`
	SKU       string       `json:"sku" validate:"required,max=64"`
	Quantity  int64        `json:"quantity" validate:"gte=0"`
	MinStock  int64        `json:"min_stock" validate:"gte=0"`
	UnitPrice domain.Money `json:"unit_price"`
}

// ToInput converts to use case input.
func (r *ProductRequest) ToInput() usecase.ProductInput {
	return usecase.ProductInput{
		Name:      r.Name,
		SKU:       r.SKU,
		Quantity:  r.Quantity,
		MinStock:  r.MinStock,
		UnitPrice: r.UnitPrice,
	}
}

// StockAdjustRequest moves a product's quantity by Delta.
type StockAdjustRequest struct {
	Delta int64 `json:"delta" validate:"ne=0"`
}

// InvoiceItemRequest is one invoice line. UnitPrice defaults to the product price.
type InvoiceItemRequest struct {
	ProductID string        `json:"product_id" validate:"required"`
	Quantity  int64         `json:"quantity" validate:"gt=0"`
	UnitPrice *domain.Money `json:"unit_price,omitempty"`
}

// InvoiceRequest records a sale or purchase.
type InvoiceRequest struct {
	Kind     string               `json:"kind" validate:"required,oneof=sale purchase"`
	PartyID  string               `json:"party_id" validate:"required"`
	Items    []InvoiceItemRequest `json:"items" validate:"required,min=1,dive"`
	Paid     domain.Money         `json:"paid"`
	Note     string               `json:"note,omitempty" validate:"max=500"`
	IssuedAt string               `json:"issued_at,omitempty"`
}

// ToInput converts to use case input.
func (r *InvoiceRequest) ToInput(loc *time.Location) (usecase.RecordInvoiceInput, error) {
	issued, err := optionalTimestamp(r.IssuedAt, loc)
	if err != nil {
		return usecase.RecordInvoiceInput{}, err
	}

	items := make([]usecase.InvoiceItemInput, len(r.Items))
	for i, it := range r.Items {
		items[i] = usecase.InvoiceItemInput{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		}
	}

	return usecase.RecordInvoiceInput{
		Kind:     domain.InvoiceKind(r.Kind),
		PartyID:  r.PartyID,
		Items:    items,
		Paid:     r.Paid,
		Note:     r.Note,
		IssuedAt: issued,
	}, nil
}

// optionalTimestamp parses s in loc; an empty string is the zero time.
func optionalTimestamp(s string, loc *time.Location) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	return domain.ParseTimestamp(s, loc)
}
