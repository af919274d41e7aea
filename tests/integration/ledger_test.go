package integration

import (
	"context"
	"net/http"
	"testing"

	"github.com/iho/storeledger/internal/domain"
	"github.com/iho/storeledger/tests/testutil"
)

type balanceBody struct {
	Balance domain.Money `json:"balance"`
}

func TestCustomerLedgerScenario(t *testing.T) {
	a, _ := testutil.NewPostgresApp(t, nil)
	h := a.Handler

	rec := testutil.Do(h, http.MethodPost, "/api/v1/customers", `{"name":"Alice"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body)
	}
	id := testutil.Decode[map[string]any](t, rec)["id"].(string)
	base := "/api/v1/customers/" + id

	for _, step := range []struct {
		body   string
		status int
	}{
		{`{"amount":500,"type":"charge"}`, http.StatusCreated},
		{`{"amount":200,"type":"payment"}`, http.StatusCreated},
		{`{"amount":0,"type":"charge"}`, http.StatusBadRequest},
	} {
		if rec := testutil.Do(h, http.MethodPost, base+"/balance", step.body); rec.Code != step.status {
			t.Fatalf("post %s: %d, want %d: %s", step.body, rec.Code, step.status, rec.Body)
		}
	}

	got := testutil.Decode[balanceBody](t, testutil.Do(h, http.MethodGet, base, ""))
	if !got.Balance.Equal(domain.MustMoney("300")) {
		t.Fatalf("balance = %s, want 300.00", got.Balance)
	}

	result, err := a.CustomerLedger.Recompute(context.Background(), id)
	if err != nil || !result.Consistent || result.Entries != 2 {
		t.Fatalf("recompute = %+v, %v", result, err)
	}
}

func TestExactDecimalPostings(t *testing.T) {
	a, _ := testutil.NewPostgresApp(t, nil)
	h := a.Handler

	id := testutil.Decode[map[string]any](t, testutil.Do(h, http.MethodPost, "/api/v1/suppliers", `{"name":"Mill"}`))["id"].(string)
	for _, amount := range []string{"0.1", "0.2"} {
		if rec := testutil.Do(h, http.MethodPost, "/api/v1/suppliers/"+id+"/balance", `{"amount":`+amount+`,"type":"charge"}`); rec.Code != http.StatusCreated {
			t.Fatalf("post: %d %s", rec.Code, rec.Body)
		}
	}

	got := testutil.Decode[balanceBody](t, testutil.Do(h, http.MethodGet, "/api/v1/suppliers/"+id, ""))
	if got.Balance.String() != "0.30" {
		t.Fatalf("balance = %s, want 0.30", got.Balance)
	}
}

func TestCashboxScenario(t *testing.T) {
	a, _ := testutil.NewPostgresApp(t, nil)
	h := a.Handler

	steps := []struct {
		path, body string
		status     int
	}{
		{"/api/v1/cashbox/init", `{"opening_balance":1000}`, http.StatusCreated},
		{"/api/v1/cashbox/transaction", `{"type":"deposit","amount":250}`, http.StatusCreated},
		{"/api/v1/cashbox/transaction", `{"type":"withdrawal","amount":2000}`, http.StatusUnprocessableEntity},
	}
	for _, s := range steps {
		if rec := testutil.Do(h, http.MethodPost, s.path, s.body); rec.Code != s.status {
			t.Fatalf("%s %s: %d, want %d: %s", s.path, s.body, rec.Code, s.status, rec.Body)
		}
	}

	state, err := a.Cashbox.Get(context.Background())
	if err != nil || !state.CurrentBalance.Equal(domain.MustMoney("1250")) {
		t.Fatalf("cashbox = %+v, %v", state, err)
	}

	entries, err := a.Cashbox.Transactions(context.Background(), 0, domain.DateRange{})
	if err != nil || len(entries) != 1 {
		t.Fatalf("entries = %d, %v; the rejected withdrawal must leave no entry", len(entries), err)
	}

	if rec := testutil.Do(h, http.MethodPost, "/api/v1/cashbox/reset", `{"confirmReset":true}`); rec.Code != http.StatusOK {
		t.Fatalf("reset: %d %s", rec.Code, rec.Body)
	}
	state, _ = a.Cashbox.Get(context.Background())
	if state.Initialized || !state.CurrentBalance.IsZero() {
		t.Fatalf("after reset = %+v", state)
	}
}
