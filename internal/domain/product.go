package domain

import (
	"fmt"
	"strings"
	"time"
)

// Product is a stocked item.
type Product struct {
	ID        string
	Name      string
	SKU       string
	Quantity  int64
	MinStock  int64
	UnitPrice Money
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsLowStock reports whether the quantity is at or below the minimum.
func (p *Product) IsLowStock() bool {
	return p.Quantity <= p.MinStock
}

// AdjustStock moves the quantity by delta; stock never goes below zero.
func (p *Product) AdjustStock(delta int64, now time.Time) error {
	next := p.Quantity + delta
	if next < 0 {
		return fmt.Errorf("%w: %s has %d, requested %d", ErrInsufficientStock, p.Name, p.Quantity, -delta)
	}
	p.Quantity = next
	p.UpdatedAt = now
	return nil
}

// Validate checks the product fields.
func (p *Product) Validate() error {
	if err := ValidateProductName(p.Name); err != nil {
		return err
	}
	if strings.TrimSpace(p.SKU) == "" {
		return fmt.Errorf("%w: sku is required", ErrValidation)
	}
	if p.Quantity < 0 || p.MinStock < 0 {
		return fmt.Errorf("%w: stock levels cannot be negative", ErrValidation)
	}
	return ValidateUnitPrice(p.UnitPrice)
}

// ProductFilter narrows a product listing.
type ProductFilter struct {
	Search       string
	LowStockOnly bool
	Limit        int
	Offset       int
}
