package sqlite

import (
	"context"

	"gorm.io/gorm"

	"github.com/iho/storeledger/internal/domain"
	"github.com/iho/storeledger/internal/usecase"
)

// ProductRepository implements usecase.ProductRepository.
type ProductRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a new ProductRepository.
func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Create(ctx context.Context, tx usecase.Transaction, product *domain.Product) error {
	m, err := productFromDomain(product)
	if err != nil {
		return err
	}
	err = txDB(ctx, tx).Create(m).Error
	if isDuplicate(err) {
		return domain.ErrDuplicateSKU
	}
	return err
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	return getProduct(r.db.WithContext(ctx), id)
}

func (r *ProductRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Product, error) {
	return getProduct(txDB(ctx, tx), id)
}

func getProduct(db *gorm.DB, id string) (*domain.Product, error) {
	var m productModel
	if err := db.First(&m, "id = ?", id).Error; err != nil {
		return nil, notFound(err, domain.ErrProductNotFound)
	}
	return m.toDomain(), nil
}

func (r *ProductRepository) Update(ctx context.Context, tx usecase.Transaction, product *domain.Product) error {
	m, err := productFromDomain(product)
	if err != nil {
		return err
	}
	result := txDB(ctx, tx).Model(&productModel{}).
		Where("id = ?", product.ID).
		Updates(map[string]any{
			"name":             product.Name,
			"sku":              product.SKU,
			"quantity":         product.Quantity,
			"min_stock":        product.MinStock,
			"unit_price_cents": m.UnitPriceCents,
			"updated_at":       product.UpdatedAt.UTC(),
		})
	if isDuplicate(result.Error) {
		return domain.ErrDuplicateSKU
	}
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, tx usecase.Transaction, id string) error {
	return txDB(ctx, tx).Delete(&productModel{}, "id = ?", id).Error
}

func (r *ProductRepository) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	q := r.db.WithContext(ctx).Model(&productModel{})
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where("name LIKE ? OR sku LIKE ?", pattern, pattern)
	}
	if filter.LowStockOnly {
		q = q.Where("quantity <= min_stock")
	}

	var rows []productModel
	if err := paginate(q.Order("name, id"), filter.Limit, filter.Offset).Find(&rows).Error; err != nil {
		return nil, err
	}

	products := make([]*domain.Product, len(rows))
	for i := range rows {
		products[i] = rows[i].toDomain()
	}
	return products, nil
}

func (r *ProductRepository) CountLowStock(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&productModel{}).Where("quantity <= min_stock").Count(&n).Error
	return n, err
}
