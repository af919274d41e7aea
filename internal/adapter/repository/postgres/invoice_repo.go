package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/storeledger/internal/domain"
	"github.com/iho/storeledger/internal/usecase"
)

const invoiceColumns = `id, kind, party_id, total, paid, note, charge_entry_id, payment_entry_id, issued_at, created_at`

// InvoiceRepository implements usecase.InvoiceRepository.
type InvoiceRepository struct {
	db DBTX
}

// NewInvoiceRepository creates a new InvoiceRepository.
func NewInvoiceRepository(db DBTX) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// Create inserts the invoice header and its lines in one batch.
func (r *InvoiceRepository) Create(ctx context.Context, tx usecase.Transaction, invoice *domain.Invoice) error {
	pgxTx := tx.(*Tx).PgxTx()

	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		invoice.ID,
		string(invoice.Kind),
		invoice.PartyID,
		moneyToNumeric(invoice.Total),
		moneyToNumeric(invoice.Paid),
		invoice.Note,
		invoice.ChargeEntryID,
		invoice.PaymentEntryID,
		timeToPgTimestamptz(invoice.IssuedAt),
		timeToPgTimestamptz(invoice.CreatedAt),
	)
	for i, item := range invoice.Items {
		batch.Queue(`
			INSERT INTO invoice_items (invoice_id, line_no, product_id, quantity, unit_price, line_total)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			invoice.ID, i+1, item.ProductID, item.Quantity,
			moneyToNumeric(item.UnitPrice), moneyToNumeric(item.LineTotal),
		)
	}

	return pgxTx.SendBatch(ctx, batch).Close()
}

// GetByID retrieves an invoice with its items.
func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*domain.Invoice, error) {
	inv, err := scanInvoice(r.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, domain.ErrInvoiceNotFound)
	}

	rows, err := r.db.Query(ctx, `
		SELECT product_id, quantity, unit_price, line_total
		FROM invoice_items WHERE invoice_id = $1 ORDER BY line_no`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item        domain.InvoiceItem
			price, line pgtype.Numeric
		)
		if err := rows.Scan(&item.ProductID, &item.Quantity, &price, &line); err != nil {
			return nil, err
		}
		item.UnitPrice = numericToMoney(price)
		item.LineTotal = numericToMoney(line)
		inv.Items = append(inv.Items, item)
	}
	return inv, rows.Err()
}

// List lists invoice headers, newest first. Items are loaded by GetByID only.
func (r *InvoiceRepository) List(ctx context.Context, filter domain.InvoiceFilter) ([]*domain.Invoice, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE ($1 = '' OR party_id = $1) AND ($2 = '' OR kind = $2)
		ORDER BY issued_at DESC, id DESC
		LIMIT $3 OFFSET $4`,
		filter.PartyID, string(filter.Kind), filter.Limit, filter.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := make([]*domain.Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// DeleteByParty removes every invoice of a party; items go with them.
func (r *InvoiceRepository) DeleteByParty(ctx context.Context, tx usecase.Transaction, partyID string) error {
	_, err := txDB(tx).Exec(ctx, `DELETE FROM invoices WHERE party_id = $1`, partyID)
	return err
}

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	var (
		inv             domain.Invoice
		kind            string
		total, paid     pgtype.Numeric
		issued, created pgtype.Timestamptz
	)
	err := row.Scan(&inv.ID, &kind, &inv.PartyID, &total, &paid, &inv.Note,
		&inv.ChargeEntryID, &inv.PaymentEntryID, &issued, &created)
	if err != nil {
		return nil, err
	}
	inv.Kind = domain.InvoiceKind(kind)
	inv.Total = numericToMoney(total)
	inv.Paid = numericToMoney(paid)
	inv.IssuedAt = issued.Time
	inv.CreatedAt = created.Time
	return &inv, nil
}
