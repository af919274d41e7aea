package sqlite

import (
	"time"

	"github.com/iho/storeledger/internal/domain"
)

// Amounts are stored as integer cents so SQLite can sum and order them exactly.

// centsConv converts amounts to cents and keeps the first amount that does
// not fit a column.
type centsConv struct {
	err error
}

func (c *centsConv) cents(m domain.Money) int64 {
	v, err := m.Cents()
	if err != nil && c.err == nil {
		c.err = err
	}
	return v
}

type accountModel struct {
	ID                  string `gorm:"primaryKey;size:64"`
	Kind                string `gorm:"size:16;not null;index"`
	BalanceCents        int64  `gorm:"not null;default:0"`
	OpeningBalanceCents int64  `gorm:"not null;default:0"`
	Version             int64  `gorm:"not null;default:0"`
	Initialized         bool   `gorm:"not null;default:false"`
	CreatedAt           time.Time
	UpdatedAt           time.Time `gorm:"autoUpdateTime:false"`
}

func (accountModel) TableName() string { return "ledger_accounts" }

func accountFromDomain(a *domain.Account) (*accountModel, error) {
	var c centsConv
	m := &accountModel{
		ID:                  a.ID,
		Kind:                string(a.Kind),
		BalanceCents:        c.cents(a.Balance),
		OpeningBalanceCents: c.cents(a.OpeningBalance),
		Version:             a.Version,
		Initialized:         a.Initialized,
		CreatedAt:           a.CreatedAt.UTC(),
		UpdatedAt:           a.UpdatedAt.UTC(),
	}
	return m, c.err
}

func (m *accountModel) toDomain() *domain.Account {
	return &domain.Account{
		ID:             m.ID,
		Kind:           domain.LedgerKind(m.Kind),
		Balance:        domain.MoneyFromCents(m.BalanceCents),
		OpeningBalance: domain.MoneyFromCents(m.OpeningBalanceCents),
		Version:        m.Version,
		Initialized:    m.Initialized,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

type entryModel struct {
	ID                 string `gorm:"primaryKey;size:64"`
	AccountID          string `gorm:"size:64;not null;uniqueIndex:idx_entries_account_seq;index:idx_entries_account_time"`
	Kind               string `gorm:"size:16;not null"`
	Sequence           int64  `gorm:"not null;uniqueIndex:idx_entries_account_seq"`
	Type               string `gorm:"size:16;not null"`
	AmountCents        int64  `gorm:"not null"`
	BalanceBeforeCents int64  `gorm:"not null"`
	BalanceAfterCents  int64  `gorm:"not null"`
	Description        string
	OccurredAt         time.Time `gorm:"not null;index:idx_entries_account_time"`
	CreatedAt          time.Time
}

func (entryModel) TableName() string { return "ledger_entries" }

func entryFromDomain(e *domain.Entry) (*entryModel, error) {
	var c centsConv
	m := &entryModel{
		ID:                 e.ID,
		AccountID:          e.AccountID,
		Kind:               string(e.Kind),
		Sequence:           e.Sequence,
		Type:               string(e.Type),
		AmountCents:        c.cents(e.Amount),
		BalanceBeforeCents: c.cents(e.BalanceBefore),
		BalanceAfterCents:  c.cents(e.BalanceAfter),
		Description:        e.Description,
		OccurredAt:         e.OccurredAt.UTC(),
		CreatedAt:          e.CreatedAt.UTC(),
	}
	return m, c.err
}

func (m *entryModel) toDomain() *domain.Entry {
	return &domain.Entry{
		ID:            m.ID,
		AccountID:     m.AccountID,
		Kind:          domain.LedgerKind(m.Kind),
		Sequence:      m.Sequence,
		Type:          domain.EntryType(m.Type),
		Amount:        domain.MoneyFromCents(m.AmountCents),
		BalanceBefore: domain.MoneyFromCents(m.BalanceBeforeCents),
		BalanceAfter:  domain.MoneyFromCents(m.BalanceAfterCents),
		Description:   m.Description,
		OccurredAt:    m.OccurredAt,
		CreatedAt:     m.CreatedAt,
	}
}

type partyModel struct {
	ID        string `gorm:"primaryKey;size:64"`
	Kind      string `gorm:"size:16;not null;index:idx_parties_kind_name"`
	Name      string `gorm:"size:255;not null;index:idx_parties_kind_name"`
	Phone     string `gorm:"size:32"`
	Email     string `gorm:"size:255"`
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

func (partyModel) TableName() string { return "parties" }

// partyRow is a party joined with its ledger balance.
type partyRow struct {
	partyModel
	BalanceCents int64
}

func (r *partyRow) toDomain() *domain.Party {
	return &domain.Party{
		ID:        r.ID,
		Kind:      domain.LedgerKind(r.Kind),
		Name:      r.Name,
		Phone:     r.Phone,
		Email:     r.Email,
		Address:   r.Address,
		Balance:   domain.MoneyFromCents(r.BalanceCents),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type productModel struct {
	ID             string `gorm:"primaryKey;size:64"`
	Name           string `gorm:"size:255;not null"`
	SKU            string `gorm:"column:sku;size:64;not null;uniqueIndex"`
	Quantity       int64  `gorm:"not null;default:0"`
	MinStock       int64  `gorm:"not null;default:0"`
	UnitPriceCents int64  `gorm:"not null;default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time `gorm:"autoUpdateTime:false"`
}

func (productModel) TableName() string { return "products" }

func productFromDomain(p *domain.Product) (*productModel, error) {
	var c centsConv
	m := &productModel{
		ID:             p.ID,
		Name:           p.Name,
		SKU:            p.SKU,
		Quantity:       p.Quantity,
		MinStock:       p.MinStock,
		UnitPriceCents: c.cents(p.UnitPrice),
		CreatedAt:      p.CreatedAt.UTC(),
		UpdatedAt:      p.UpdatedAt.UTC(),
	}
	return m, c.err
}

func (m *productModel) toDomain() *domain.Product {
	return &domain.Product{
		ID:        m.ID,
		Name:      m.Name,
		SKU:       m.SKU,
		Quantity:  m.Quantity,
		MinStock:  m.MinStock,
		UnitPrice: domain.MoneyFromCents(m.UnitPriceCents),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

type invoiceModel struct {
	ID             string `gorm:"primaryKey;size:64"`
	Kind           string `gorm:"size:16;not null"`
	PartyID        string `gorm:"size:64;not null;index"`
	TotalCents     int64  `gorm:"not null"`
	PaidCents      int64  `gorm:"not null"`
	Note           string
	ChargeEntryID  string `gorm:"size:64"`
	PaymentEntryID string `gorm:"size:64"`
	IssuedAt       time.Time
	CreatedAt      time.Time
	Items          []invoiceItemModel `gorm:"foreignKey:InvoiceID"`
}

func (invoiceModel) TableName() string { return "invoices" }

type invoiceItemModel struct {
	InvoiceID      string `gorm:"primaryKey;size:64"`
	LineNo         int    `gorm:"primaryKey"`
	ProductID      string `gorm:"size:64;not null"`
	Quantity       int64  `gorm:"not null"`
	UnitPriceCents int64  `gorm:"not null"`
	LineTotalCents int64  `gorm:"not null"`
}

func (invoiceItemModel) TableName() string { return "invoice_items" }

func invoiceFromDomain(inv *domain.Invoice) (*invoiceModel, error) {
	var c centsConv
	m := &invoiceModel{
		ID:             inv.ID,
		Kind:           string(inv.Kind),
		PartyID:        inv.PartyID,
		TotalCents:     c.cents(inv.Total),
		PaidCents:      c.cents(inv.Paid),
		Note:           inv.Note,
		ChargeEntryID:  inv.ChargeEntryID,
		PaymentEntryID: inv.PaymentEntryID,
		IssuedAt:       inv.IssuedAt.UTC(),
		CreatedAt:      inv.CreatedAt.UTC(),
	}
	for i, item := range inv.Items {
		m.Items = append(m.Items, invoiceItemModel{
			InvoiceID:      inv.ID,
			LineNo:         i + 1,
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			UnitPriceCents: c.cents(item.UnitPrice),
			LineTotalCents: c.cents(item.LineTotal),
		})
	}
	return m, c.err
}

func (m *invoiceModel) toDomain() *domain.Invoice {
	inv := &domain.Invoice{
		ID:             m.ID,
		Kind:           domain.InvoiceKind(m.Kind),
		PartyID:        m.PartyID,
		Total:          domain.MoneyFromCents(m.TotalCents),
		Paid:           domain.MoneyFromCents(m.PaidCents),
		Note:           m.Note,
		ChargeEntryID:  m.ChargeEntryID,
		PaymentEntryID: m.PaymentEntryID,
		IssuedAt:       m.IssuedAt,
		CreatedAt:      m.CreatedAt,
	}
	for _, item := range m.Items {
		inv.Items = append(inv.Items, domain.InvoiceItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: domain.MoneyFromCents(item.UnitPriceCents),
			LineTotal: domain.MoneyFromCents(item.LineTotalCents),
		})
	}
	return inv
}

type outboxModel struct {
	ID            string         `gorm:"primaryKey;size:64"`
	AggregateID   string         `gorm:"size:64;not null"`
	AggregateType string         `gorm:"size:32;not null"`
	EventType     string         `gorm:"size:64;not null"`
	Payload       map[string]any `gorm:"serializer:json"`
	CreatedAt     time.Time      `gorm:"index"`
	PublishedAt   *time.Time
	Published     bool `gorm:"not null;default:false"`
}

func (outboxModel) TableName() string { return "outbox_events" }

func outboxFromDomain(e *domain.OutboxEvent) *outboxModel {
	return &outboxModel{
		ID:            e.ID,
		AggregateID:   e.AggregateID,
		AggregateType: e.AggregateType,
		EventType:     e.EventType,
		Payload:       e.Payload,
		CreatedAt:     e.CreatedAt.UTC(),
		PublishedAt:   e.PublishedAt,
		Published:     e.Published,
	}
}

func (m *outboxModel) toDomain() *domain.OutboxEvent {
	return &domain.OutboxEvent{
		ID:            m.ID,
		AggregateID:   m.AggregateID,
		AggregateType: m.AggregateType,
		EventType:     m.EventType,
		Payload:       m.Payload,
		CreatedAt:     m.CreatedAt,
		PublishedAt:   m.PublishedAt,
		Published:     m.Published,
	}
}

// Models lists every table for AutoMigrate.
func Models() []any {
	return []any{
		&accountModel{},
		&entryModel{},
		&partyModel{},
		&productModel{},
		&invoiceModel{},
		&invoiceItemModel{},
		&outboxModel{},
	}
}
