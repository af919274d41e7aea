package sqlite

import (
	"context"

	"gorm.io/gorm"

	"github.com/iho/storeledger/internal/domain"
	"github.com/iho/storeledger/internal/usecase"
)

// InvoiceRepository implements usecase.InvoiceRepository.
type InvoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository creates a new InvoiceRepository.
func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// Create inserts the invoice and, through the association, its items.
func (r *InvoiceRepository) Create(ctx context.Context, tx usecase.Transaction, invoice *domain.Invoice) error {
	m, err := invoiceFromDomain(invoice)
	if err != nil {
		return err
	}
	return txDB(ctx, tx).Create(m).Error
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*domain.Invoice, error) {
	var m invoiceModel
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line_no") }).
		First(&m, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, domain.ErrInvoiceNotFound)
	}
	return m.toDomain(), nil
}

// List lists invoice headers, newest first.
func (r *InvoiceRepository) List(ctx context.Context, filter domain.InvoiceFilter) ([]*domain.Invoice, error) {
	q := r.db.WithContext(ctx).Model(&invoiceModel{})
	if filter.PartyID != "" {
		q = q.Where("party_id = ?", filter.PartyID)
	}
	if filter.Kind != "" {
		q = q.Where("kind = ?", string(filter.Kind))
	}

	var rows []invoiceModel
	if err := paginate(q.Order("issued_at DESC, id DESC"), filter.Limit, filter.Offset).Find(&rows).Error; err != nil {
		return nil, err
	}

	invoices := make([]*domain.Invoice, len(rows))
	for i := range rows {
		invoices[i] = rows[i].toDomain()
	}
	return invoices, nil
}

func (r *InvoiceRepository) DeleteByParty(ctx context.Context, tx usecase.Transaction, partyID string) error {
	db := txDB(ctx, tx)
	ids := db.Model(&invoiceModel{}).Select("id").Where("party_id = ?", partyID)
	if err := db.Where("invoice_id IN (?)", ids).Delete(&invoiceItemModel{}).Error; err != nil {
		return err
	}
	return db.Where("party_id = ?", partyID).Delete(&invoiceModel{}).Error
}
