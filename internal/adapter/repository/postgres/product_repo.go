package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/storeledger/internal/domain"
	"github.com/iho/storeledger/internal/usecase"
)

const productColumns = `id, name, sku, quantity, min_stock, unit_price, created_at, updated_at`

// ProductRepository implements usecase.ProductRepository.
type ProductRepository struct {
	db DBTX
}

// NewProductRepository creates a new ProductRepository.
func NewProductRepository(db DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Create(ctx context.Context, tx usecase.Transaction, product *domain.Product) error {
	_, err := txDB(tx).Exec(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		product.ID,
		product.Name,
		product.SKU,
		product.Quantity,
		product.MinStock,
		moneyToNumeric(product.UnitPrice),
		timeToPgTimestamptz(product.CreatedAt),
		timeToPgTimestamptz(product.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateSKU
	}
	return err
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, domain.ErrProductNotFound)
	}
	return p, nil
}

func (r *ProductRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Product, error) {
	p, err := scanProduct(txDB(tx).QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, domain.ErrProductNotFound)
	}
	return p, nil
}

func (r *ProductRepository) Update(ctx context.Context, tx usecase.Transaction, product *domain.Product) error {
	tag, err := txDB(tx).Exec(ctx, `
		UPDATE products
		SET name = $2, sku = $3, quantity = $4, min_stock = $5, unit_price = $6, updated_at = $7
		WHERE id = $1`,
		product.ID,
		product.Name,
		product.SKU,
		product.Quantity,
		product.MinStock,
		moneyToNumeric(product.UnitPrice),
		timeToPgTimestamptz(product.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateSKU
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, tx usecase.Transaction, id string) error {
	_, err := txDB(tx).Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	return err
}

func (r *ProductRepository) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR sku ILIKE '%' || $1 || '%')
		  AND (NOT $2 OR quantity <= min_stock)
		ORDER BY name, id
		LIMIT $3 OFFSET $4`,
		filter.Search, filter.LowStockOnly, filter.Limit, filter.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]*domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *ProductRepository) CountLowStock(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM products WHERE quantity <= min_stock`).Scan(&n)
	return n, err
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var (
		p                domain.Product
		price            pgtype.Numeric
		created, updated pgtype.Timestamptz
	)
	if err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.Quantity, &p.MinStock, &price, &created, &updated); err != nil {
		return nil, err
	}
	p.UnitPrice = numericToMoney(price)
	p.CreatedAt = created.Time
	p.UpdatedAt = updated.Time
	return &p, nil
}
