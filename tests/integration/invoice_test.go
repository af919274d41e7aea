package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/iho/storeledger/internal/domain"
	"github.com/iho/storeledger/internal/usecase"
	"github.com/iho/storeledger/tests/testutil"
)

func TestSaleInvoiceMovesStockAndLedger(t *testing.T) {
	a, _ := testutil.NewPostgresApp(t, nil)
	ctx := context.Background()

	customer, err := a.Customers.Create(ctx, domain.PartyProfile{Name: "Dana"})
	if err != nil {
		t.Fatalf("Create customer: %v", err)
	}
	product, err := a.Products.Create(ctx, usecase.ProductInput{Name: "Lamp", SKU: "L-1", Quantity: 5, MinStock: 1, UnitPrice: domain.MustMoney("20")})
	if err != nil {
		t.Fatalf("Create product: %v", err)
	}

	inv, err := a.Invoices.Record(ctx, usecase.RecordInvoiceInput{
		Kind:    domain.InvoiceSale,
		PartyID: customer.ID,
		Items:   []usecase.InvoiceItemInput{{ProductID: product.ID, Quantity: 2}},
		Paid:    domain.MustMoney("15"),
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !inv.Total.Equal(domain.MustMoney("40")) {
		t.Fatalf("total = %s", inv.Total)
	}

	stored, err := a.Invoices.Get(ctx, inv.ID)
	if err != nil || len(stored.Items) != 1 {
		t.Fatalf("Get = %+v, %v", stored, err)
	}

	p, _ := a.Products.Get(ctx, product.ID)
	if p.Quantity != 3 {
		t.Fatalf("stock = %d, want 3", p.Quantity)
	}
	balance, _ := a.CustomerLedger.CurrentBalance(ctx, customer.ID)
	if !balance.Equal(domain.MustMoney("25")) {
		t.Fatalf("customer balance = %s, want 25.00", balance)
	}

	_, err = a.Invoices.Record(ctx, usecase.RecordInvoiceInput{
		Kind:    domain.InvoiceSale,
		PartyID: customer.ID,
		Items:   []usecase.InvoiceItemInput{{ProductID: product.ID, Quantity: 10}},
	})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("oversell error = %v", err)
	}
	p, _ = a.Products.Get(ctx, product.ID)
	if p.Quantity != 3 {
		t.Fatalf("failed invoice changed stock to %d", p.Quantity)
	}
}
