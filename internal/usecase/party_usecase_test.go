package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/iho/storeledger/internal/domain"
	"github.com/iho/storeledger/internal/usecase"
)

func TestPartyUseCase_Create(t *testing.T) {
	tests := []struct {
		name    string
		profile domain.PartyProfile
		wantErr error
	}{
		{
			name:    "full profile",
			profile: domain.PartyProfile{Name: "  Alice  ", Phone: "+1 555 0100", Email: "alice@example.com", Address: "Main St 1"},
		},
		{
			name:    "name only",
			profile: domain.PartyProfile{Name: "Bob"},
		},
		{
			name:    "blank name",
			profile: domain.PartyProfile{Name: "   "},
			wantErr: domain.ErrInvalidName,
		},
		{
			name:    "bad email",
			profile: domain.PartyProfile{Name: "Carol", Email: "not-an-email"},
			wantErr: domain.ErrInvalidEmail,
		},
		{
			name:    "bad phone",
			profile: domain.PartyProfile{Name: "Dave", Phone: "call me"},
			wantErr: domain.ErrInvalidPhone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			party, err := h.customers.Create(context.Background(), tt.profile)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Create() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if party.Kind != domain.LedgerCustomer || !party.Balance.IsZero() {
				t.Errorf("party = %+v, want zero-balance customer", party)
			}
			if party.Name == "" || party.Name[0] == ' ' {
				t.Errorf("name %q was not trimmed", party.Name)
			}

			account, err := h.accounts.GetByID(context.Background(), party.ID)
			if err != nil {
				t.Fatalf("ledger account missing: %v", err)
			}
			if account.Kind != domain.LedgerCustomer || account.Version != 0 {
				t.Errorf("account = %+v", account)
			}
		})
	}
}

func TestPartyUseCase_KindsAreSeparate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.newCustomer(t, "Alice")
	s := h.newSupplier(t, "Acme")

	if _, err := h.suppliers.Get(ctx, c.ID); !errors.Is(err, domain.ErrSupplierNotFound) {
		t.Errorf("supplier lookup of customer error = %v, want ErrSupplierNotFound", err)
	}
	if _, err := h.customers.Get(ctx, s.ID); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Errorf("customer lookup of supplier error = %v, want ErrCustomerNotFound", err)
	}
}

func TestPartyUseCase_ListAndUpdate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.newCustomer(t, "Charlie")
	alice := h.newCustomer(t, "Alice")
	h.newCustomer(t, "Bob")

	all, err := h.customers.List(ctx, domain.PartyFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].Name != "Alice" || all[2].Name != "Charlie" {
		t.Errorf("List() names not sorted: %v", names(all))
	}

	found, err := h.customers.List(ctx, domain.PartyFilter{Search: " ali "})
	if err != nil {
		t.Fatalf("List(search): %v", err)
	}
	if len(found) != 1 || found[0].ID != alice.ID {
		t.Errorf("List(search) = %v, want [Alice]", names(found))
	}

	h.post(t, h.customerLedger, alice.ID, domain.EntryCharge, "40")
	updated, err := h.customers.UpdateProfile(ctx, alice.ID, domain.PartyProfile{Name: "Alice B.", Phone: "555-0100"})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if updated.Name != "Alice B." || updated.Phone != "555-0100" {
		t.Errorf("updated = %+v", updated)
	}
	assertMoney(t, "balance after profile edit", updated.Balance, "40")

	if _, err := h.customers.UpdateProfile(ctx, "missing", domain.PartyProfile{Name: "X"}); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Errorf("UpdateProfile(missing) error = %v", err)
	}
}

func TestPartyUseCase_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("without entries", func(t *testing.T) {
		h := newHarness(t)
		c := h.newCustomer(t, "Alice")
		if err := h.customers.Delete(ctx, c.ID, false); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := h.customers.Get(ctx, c.ID); !errors.Is(err, domain.ErrCustomerNotFound) {
			t.Errorf("Get after delete error = %v", err)
		}
		if _, err := h.accounts.GetByID(ctx, c.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("ledger account survived delete: %v", err)
		}
	})

	t.Run("with entries needs cascade", func(t *testing.T) {
		h := newHarness(t)
		c := h.newCustomer(t, "Alice")
		h.post(t, h.customerLedger, c.ID, domain.EntryCharge, "10")

		if err := h.customers.Delete(ctx, c.ID, false); !errors.Is(err, domain.ErrPartyHasTransactions) {
			t.Fatalf("Delete() error = %v, want ErrPartyHasTransactions", err)
		}
		if _, err := h.customers.Get(ctx, c.ID); err != nil {
			t.Fatalf("party gone after refused delete: %v", err)
		}
	})

	t.Run("cascade drops log and invoices", func(t *testing.T) {
		h := newHarness(t)
		c := h.newCustomer(t, "Alice")
		p := h.newProduct(t, "Widget", "W-1", 10, "5")
		if _, err := h.billing.Record(ctx, usecase.RecordInvoiceInput{
			Kind:    domain.InvoiceSale,
			PartyID: c.ID,
			Items:   []usecase.InvoiceItemInput{{ProductID: p.ID, Quantity: 1}},
		}); err != nil {
			t.Fatalf("Record: %v", err)
		}

		if err := h.customers.Delete(ctx, c.ID, true); err != nil {
			t.Fatalf("Delete(cascade): %v", err)
		}
		if n, _ := h.entries.CountByAccount(ctx, nil, c.ID); n != 0 {
			t.Errorf("entries left = %d", n)
		}
		invoices, err := h.invoices.List(ctx, domain.InvoiceFilter{PartyID: c.ID})
		if err != nil {
			t.Fatalf("List invoices: %v", err)
		}
		if len(invoices) != 0 {
			t.Errorf("invoices left = %d", len(invoices))
		}

		events := h.store.Outbox()
		last := events[len(events)-1]
		if last.EventType != domain.EventTypePartyDeleted || last.Payload["cascade"] != true {
			t.Errorf("last event = %+v", last)
		}
	})

	t.Run("missing party", func(t *testing.T) {
		h := newHarness(t)
		if err := h.suppliers.Delete(ctx, "missing", true); !errors.Is(err, domain.ErrSupplierNotFound) {
			t.Errorf("Delete(missing) error = %v", err)
		}
	})
}

func names(parties []*domain.Party) []string {
	out := make([]string, len(parties))
	for i, p := range parties {
		out[i] = p.Name
	}
	return out
}
