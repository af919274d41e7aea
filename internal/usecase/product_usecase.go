package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/iho/storeledger/internal/domain"
)

// ProductUseCase handles product and stock business logic.
type ProductUseCase struct {
	txManager   TransactionManager
	productRepo ProductRepository
	idGen       IDGenerator
	opts        Options
}

// NewProductUseCase creates a new ProductUseCase.
func NewProductUseCase(txManager TransactionManager, productRepo ProductRepository, idGen IDGenerator, opts Options) *ProductUseCase {
	return &ProductUseCase{
		txManager:   txManager,
		productRepo: productRepo,
		idGen:       idGen,
		opts:        opts.withDefaults(),
	}
}

// ProductInput represents the editable fields of a product.
type ProductInput struct {
	Name      string
	SKU       string
	Quantity  int64
	MinStock  int64
	UnitPrice domain.Money
}

// Create adds a product.
func (uc *ProductUseCase) Create(ctx context.Context, input ProductInput) (*domain.Product, error) {
	now := uc.opts.now()
	product := &domain.Product{
		ID:        uc.idGen.Generate(),
		Name:      strings.TrimSpace(input.Name),
		SKU:       strings.TrimSpace(input.SKU),
		Quantity:  input.Quantity,
		MinStock:  input.MinStock,
		UnitPrice: input.UnitPrice,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := product.Validate(); err != nil {
		return nil, err
	}

	err := uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		return uc.productRepo.Create(ctx, tx, product)
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

// Get retrieves a product by ID.
func (uc *ProductUseCase) Get(ctx context.Context, id string) (*domain.Product, error) {
	return uc.productRepo.GetByID(ctx, id)
}

// List lists products.
func (uc *ProductUseCase) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	filter.Limit, filter.Offset = domain.ValidatePagination(filter.Limit, filter.Offset)
	return uc.productRepo.List(ctx, filter)
}

// LowStock lists products at or below their minimum stock.
func (uc *ProductUseCase) LowStock(ctx context.Context, limit int) ([]*domain.Product, error) {
	return uc.List(ctx, domain.ProductFilter{LowStockOnly: true, Limit: limit})
}

// Update replaces the product fields, including the counted quantity.
func (uc *ProductUseCase) Update(ctx context.Context, id string, input ProductInput) (*domain.Product, error) {
	var product *domain.Product
	err := uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		p, err := uc.productRepo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}

		p.Name = strings.TrimSpace(input.Name)
		p.SKU = strings.TrimSpace(input.SKU)
		p.Quantity = input.Quantity
		p.MinStock = input.MinStock
		p.UnitPrice = input.UnitPrice
		p.UpdatedAt = uc.opts.now()
		if err := p.Validate(); err != nil {
			return err
		}

		product = p
		return uc.productRepo.Update(ctx, tx, p)
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

// Delete removes a product.
func (uc *ProductUseCase) Delete(ctx context.Context, id string) error {
	return uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		if _, err := uc.productRepo.GetByIDForUpdate(ctx, tx, id); err != nil {
			return err
		}
		return uc.productRepo.Delete(ctx, tx, id)
	})
}

// AdjustStock moves the stock of one product by delta.
func (uc *ProductUseCase) AdjustStock(ctx context.Context, id string, delta int64) (*domain.Product, error) {
	if delta == 0 {
		return nil, fmt.Errorf("%w: stock delta cannot be zero", domain.ErrValidation)
	}

	var product *domain.Product
	err := uc.opts.Retrier.Retry(ctx, func() error {
		return uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
			p, err := uc.productRepo.GetByIDForUpdate(ctx, tx, id)
			if err != nil {
				return err
			}
			if err := p.AdjustStock(delta, uc.opts.now()); err != nil {
				return err
			}
			product = p
			return uc.productRepo.Update(ctx, tx, p)
		})
	})
	if err != nil {
		return nil, err
	}

	uc.recordAdjustment(delta)
	return product, nil
}

func (uc *ProductUseCase) recordAdjustment(delta int64) {
	if uc.opts.Metrics == nil {
		return
	}
	direction := "in"
	if delta < 0 {
		direction = "out"
	}
	uc.opts.Metrics.StockAdjustments.WithLabelValues(direction).Inc()
}

func (uc *ProductUseCase) inTx(ctx context.Context, fn func(context.Context, Transaction) error) error {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if err := fn(txCtx, tx); err != nil {
		return err
	}
	return tx.Commit(txCtx)
}
