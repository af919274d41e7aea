package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/iho/storeledger/internal/adapter/http/handler"
	apimiddleware "github.com/iho/storeledger/internal/adapter/http/middleware"
	"github.com/iho/storeledger/internal/adapter/repository/memory"
	"github.com/iho/storeledger/internal/domain"
	"github.com/iho/storeledger/internal/infrastructure/auth"
	"github.com/iho/storeledger/internal/infrastructure/export"
	"github.com/iho/storeledger/internal/infrastructure/metrics"
	"github.com/iho/storeledger/internal/usecase"
	"github.com/iho/storeledger/internal/usecase/mocks"
)

// newRouterConfig wires every handler over one in-memory store.
func newRouterConfig(opts ...func(*RouterConfig)) RouterConfig {
	store := mocks.NewStore()
	txm, accounts, entries := store.TxManager(), store.Accounts(), store.Entries()
	parties, products, invoices, outbox := store.Parties(), store.Products(), store.Invoices(), store.OutboxEvents()
	ids := &mocks.CountingIDGenerator{}
	m := metrics.New(prometheus.NewRegistry())
	ucOpts := usecase.Options{Location: time.UTC, Metrics: m, Logger: zerolog.Nop()}

	ledger := func(kind domain.LedgerKind) *usecase.LedgerUseCase {
		return usecase.NewLedgerUseCase(kind, txm, accounts, entries, outbox, ids, ucOpts)
	}
	customerLedger := ledger(domain.LedgerCustomer)
	supplierLedger := ledger(domain.LedgerSupplier)
	cashboxLedger := ledger(domain.LedgerCashbox)

	customers := usecase.NewPartyUseCase(domain.LedgerCustomer, txm, parties, accounts, entries, invoices, outbox, ids, ucOpts)
	suppliers := usecase.NewPartyUseCase(domain.LedgerSupplier, txm, parties, accounts, entries, invoices, outbox, ids, ucOpts)
	cashbox := usecase.NewCashboxUseCase(cashboxLedger, txm, accounts, entries, outbox, ids, ucOpts)
	catalog := usecase.NewProductUseCase(txm, products, ids, ucOpts)
	billing := usecase.NewInvoiceUseCase(txm, invoices, products, outbox, customerLedger, supplierLedger, ids, ucOpts)
	dashboard := usecase.NewDashboardUseCase(parties, products, cashbox, memory.NewCache(64, time.Hour), time.Hour, domain.MustMoney("1000"), ucOpts)
	reconciler := usecase.NewReconciliationUseCase(accounts, ucOpts, customerLedger, supplierLedger, cashboxLedger)

	cfg := RouterConfig{
		CustomerHandler:       handler.NewPartyHandler(domain.LedgerCustomer, customers, customerLedger, time.UTC),
		SupplierHandler:       handler.NewPartyHandler(domain.LedgerSupplier, suppliers, supplierLedger, time.UTC),
		CashboxHandler:        handler.NewCashboxHandler(cashbox, time.UTC),
		DashboardHandler:      handler.NewDashboardHandler(dashboard),
		ProductHandler:        handler.NewProductHandler(catalog),
		InvoiceHandler:        handler.NewInvoiceHandler(billing, time.UTC),
		ReconciliationHandler: handler.NewReconciliationHandler(reconciler),
		HealthHandler:         handler.NewHealthHandler(),
		Logger:                zerolog.Nop(),
		Metrics:               m,
	}

	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

type apiClient struct {
	t       *testing.T
	handler http.Handler
	token   string
}

func newAPIClient(t *testing.T, opts ...func(*RouterConfig)) *apiClient {
	return &apiClient{t: t, handler: NewRouter(newRouterConfig(opts...))}
}

func (c *apiClient) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	c.t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

func TestNewRouter_HealthEndpointAvailable(t *testing.T) {
	rec := newAPIClient(t).do(http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected /health to return 200, got %d", rec.Code)
	}
}

func TestNewRouter_RegistersKeyRoutes(t *testing.T) {
	router := NewRouter(newRouterConfig())

	chiRoutes, ok := router.(chi.Routes)
	if !ok {
		t.Fatal("router does not implement chi.Routes")
	}

	seen := map[string]bool{}
	if err := chi.Walk(chiRoutes, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		seen[method+" "+route] = true
		return nil
	}); err != nil {
		t.Fatalf("walk failed: %v", err)
	}

	expected := []string{
		"GET /health",
		"GET /ready",
		"POST /api/v1/customers/",
		"POST /api/v1/customers/{id}/balance",
		"GET /api/v1/suppliers/{id}/statement.xlsx",
		"POST /api/v1/cashbox/reset",
		"GET /api/v1/dashboard/customers-debt-alerts",
		"POST /api/v1/products/{id}/stock",
		"GET /api/v1/invoices/{id}",
		"GET /api/v1/reconciliation",
	}
	for _, route := range expected {
		if !seen[route] {
			t.Errorf("expected route %s to be registered", route)
		}
	}
}

func TestCustomerLedgerScenario(t *testing.T) {
	c := newAPIClient(t)

	rec := c.do(http.MethodPost, "/api/v1/customers", `{"name":"Alice","phone":"555-0100"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create customer: %d %s", rec.Code, rec.Body)
	}
	id := decode[map[string]any](t, rec)["id"].(string)
	base := "/api/v1/customers/" + id

	steps := []struct {
		body    string
		status  int
		balance string
	}{
		{body: `{"amount":500.00,"type":"charge","description":"sale"}`, status: http.StatusCreated, balance: "500"},
		{body: `{"amount":200.00,"type":"payment"}`, status: http.StatusCreated, balance: "300"},
		{body: `{"amount":0,"type":"charge"}`, status: http.StatusBadRequest, balance: "300"},
	}
	for i, step := range steps {
		rec := c.do(http.MethodPost, base+"/balance", step.body)
		if rec.Code != step.status {
			t.Fatalf("step %d: status %d, want %d: %s", i, rec.Code, step.status, rec.Body)
		}
		party := decode[struct {
			Balance domain.Money `json:"balance"`
		}](t, c.do(http.MethodGet, base, ""))
		if !party.Balance.Equal(domain.MustMoney(step.balance)) {
			t.Fatalf("step %d: balance %s, want %s", i, party.Balance, step.balance)
		}
	}

	txs := decode[struct {
		Transactions []struct {
			Type         string       `json:"type"`
			BalanceAfter domain.Money `json:"balance_after"`
		} `json:"transactions"`
	}](t, c.do(http.MethodGet, base+"/transactions", ""))
	if len(txs.Transactions) != 2 || txs.Transactions[1].Type != "payment" {
		t.Fatalf("transactions = %+v", txs.Transactions)
	}

	recon := decode[map[string]any](t, c.do(http.MethodGet, base+"/reconcile", ""))
	if recon["consistent"] != true {
		t.Fatalf("reconcile = %v", recon)
	}

	if rec := c.do(http.MethodDelete, base, ""); rec.Code != http.StatusConflict {
		t.Fatalf("delete with history: %d, want 409", rec.Code)
	}
	if rec := c.do(http.MethodDelete, base+"?cascade=true", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("cascade delete: %d %s", rec.Code, rec.Body)
	}
	if rec := c.do(http.MethodGet, base, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: %d, want 404", rec.Code)
	}
}

func TestCashboxScenario(t *testing.T) {
	c := newAPIClient(t)

	if rec := c.do(http.MethodPost, "/api/v1/cashbox/transaction", `{"type":"deposit","amount":5}`); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("deposit before init: %d, want 422", rec.Code)
	}
	if rec := c.do(http.MethodPost, "/api/v1/cashbox/init", `{"opening_balance":1000}`); rec.Code != http.StatusCreated {
		t.Fatalf("init: %d %s", rec.Code, rec.Body)
	}
	if rec := c.do(http.MethodPost, "/api/v1/cashbox/init", `{"opening_balance":1000}`); rec.Code != http.StatusConflict {
		t.Fatalf("second init: %d, want 409", rec.Code)
	}

	rec := c.do(http.MethodPost, "/api/v1/cashbox/transaction", `{"type":"deposit","amount":250,"date":"2025-03-10","note":"till"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("deposit: %d %s", rec.Code, rec.Body)
	}
	if rec := c.do(http.MethodPost, "/api/v1/cashbox/transaction", `{"type":"withdrawal","amount":2000}`); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("overdraw: %d, want 422", rec.Code)
	}

	state := decode[struct {
		Initialized bool `json:"initialized"`
		Cashbox     struct {
			Opening domain.Money `json:"opening_balance"`
			Current domain.Money `json:"current_balance"`
		} `json:"cashbox"`
	}](t, c.do(http.MethodGet, "/api/v1/cashbox", ""))
	if !state.Initialized || !state.Cashbox.Current.Equal(domain.MustMoney("1250")) {
		t.Fatalf("cashbox = %+v", state)
	}

	summaries := decode[struct {
		Summaries []struct {
			Date  string `json:"date"`
			Count int    `json:"transaction_count"`
		} `json:"summaries"`
	}](t, c.do(http.MethodGet, "/api/v1/cashbox/daily-summaries?startDate=10/03/2025", ""))
	if len(summaries.Summaries) != 1 || summaries.Summaries[0].Date != "2025-03-10" || summaries.Summaries[0].Count != 1 {
		t.Fatalf("summaries = %+v", summaries)
	}

	if rec := c.do(http.MethodPost, "/api/v1/cashbox/reset", `{"confirmReset":false}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("unconfirmed reset: %d, want 400", rec.Code)
	}
	if rec := c.do(http.MethodPost, "/api/v1/cashbox/reset", `{"confirmReset":true}`); rec.Code != http.StatusOK {
		t.Fatalf("reset: %d %s", rec.Code, rec.Body)
	}
	if got := decode[map[string]any](t, c.do(http.MethodGet, "/api/v1/cashbox", "")); got["initialized"] != false {
		t.Fatalf("after reset = %v", got)
	}
}

func TestRequestValidation(t *testing.T) {
	c := newAPIClient(t)

	tests := []struct {
		name string
		path string
		body string
	}{
		{name: "unknown field", path: "/api/v1/customers", body: `{"name":"A","nickname":"x"}`},
		{name: "missing name", path: "/api/v1/customers", body: `{"phone":"1"}`},
		{name: "malformed amount", path: "/api/v1/cashbox/init", body: `{"opening_balance":"ten"}`},
		{name: "malformed date", path: "/api/v1/cashbox/transaction", body: `{"type":"deposit","amount":1,"date":"someday"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := c.do(http.MethodPost, tt.path, tt.body); rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body)
			}
		})
	}

	rec := c.do(http.MethodGet, "/api/v1/cashbox/transactions?startDate=2025-03-11&endDate=2025-03-10", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("inverted range = %d, want 400", rec.Code)
	}
}

func TestStatementExport(t *testing.T) {
	c := newAPIClient(t)
	_ = c.do(http.MethodPost, "/api/v1/cashbox/init", `{"opening_balance":100}`)
	_ = c.do(http.MethodPost, "/api/v1/cashbox/transaction", `{"type":"withdrawal","amount":40}`)

	rec := c.do(http.MethodGet, "/api/v1/cashbox/statement.xlsx", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("statement: %d %s", rec.Code, rec.Body)
	}
	if got := rec.Header().Get("Content-Type"); got != export.ContentType {
		t.Fatalf("content type = %s", got)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "cashbox-main-") {
		t.Fatalf("disposition = %s", rec.Header().Get("Content-Disposition"))
	}

	f, err := excelize.OpenReader(rec.Body)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()
	rows, _ := f.GetRows("Transactions")
	if len(rows) != 6 || rows[5][2] != "withdrawal" {
		t.Fatalf("rows = %v", rows)
	}
}

func TestInvoiceFlowAndDashboard(t *testing.T) {
	c := newAPIClient(t)

	customer := decode[map[string]any](t, c.do(http.MethodPost, "/api/v1/customers", `{"name":"Bob"}`))["id"].(string)
	product := decode[map[string]any](t, c.do(http.MethodPost, "/api/v1/products", `{"name":"Bolt","sku":"B-1","quantity":10,"min_stock":8,"unit_price":1.5}`))["id"].(string)

	body := `{"kind":"sale","party_id":"` + customer + `","items":[{"product_id":"` + product + `","quantity":4}],"paid":2}`
	rec := c.do(http.MethodPost, "/api/v1/invoices", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("invoice: %d %s", rec.Code, rec.Body)
	}
	inv := decode[struct {
		ID    string       `json:"id"`
		Total domain.Money `json:"total"`
		Due   domain.Money `json:"due"`
	}](t, rec)
	if !inv.Total.Equal(domain.MustMoney("6")) || !inv.Due.Equal(domain.MustMoney("4")) {
		t.Fatalf("invoice = %+v", inv)
	}

	if rec := c.do(http.MethodGet, "/api/v1/invoices/"+inv.ID, ""); rec.Code != http.StatusOK {
		t.Fatalf("get invoice: %d", rec.Code)
	}

	low := decode[struct {
		Products []map[string]any `json:"products"`
	}](t, c.do(http.MethodGet, "/api/v1/products/low-stock", ""))
	if len(low.Products) != 1 {
		t.Fatalf("low stock = %v", low.Products)
	}

	stats := decode[struct {
		Debt struct {
			Value  domain.Money `json:"value"`
			Status string       `json:"status"`
		} `json:"total_customers_debt"`
		LowStock struct {
			Value int64 `json:"value"`
		} `json:"low_stock_count"`
	}](t, c.do(http.MethodGet, "/api/v1/dashboard/stats", ""))
	if stats.Debt.Status != "ok" || !stats.Debt.Value.Equal(domain.MustMoney("4")) || stats.LowStock.Value != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	alerts := decode[struct {
		Parties []map[string]any `json:"parties"`
	}](t, c.do(http.MethodGet, "/api/v1/dashboard/customers-debt-alerts?threshold=3", ""))
	if len(alerts.Parties) != 1 {
		t.Fatalf("alerts = %v", alerts.Parties)
	}

	report := decode[map[string]any](t, c.do(http.MethodGet, "/api/v1/reconciliation", ""))
	if report["consistent"] != true {
		t.Fatalf("report = %v", report)
	}
}

func TestNewRouter_IdempotentPosting(t *testing.T) {
	c := newAPIClient(t, func(cfg *RouterConfig) {
		cfg.IdempotencyStore = memory.NewIdempotencyStore(16, time.Hour)
	})
	_ = c.do(http.MethodPost, "/api/v1/cashbox/init", `{"opening_balance":0}`)

	first := c.do(http.MethodPost, "/api/v1/cashbox/transaction", `{"type":"deposit","amount":10}`, apimiddleware.IdempotencyKeyHeader, "k-1")
	second := c.do(http.MethodPost, "/api/v1/cashbox/transaction", `{"type":"deposit","amount":10}`, apimiddleware.IdempotencyKeyHeader, "k-1")

	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("statuses = %d, %d", first.Code, second.Code)
	}
	if second.Header().Get(apimiddleware.IdempotencyReplayHeader) != "true" {
		t.Fatal("second response was not a replay")
	}

	state := decode[struct {
		Cashbox struct {
			Current domain.Money `json:"current_balance"`
		} `json:"cashbox"`
	}](t, c.do(http.MethodGet, "/api/v1/cashbox", ""))
	if !state.Cashbox.Current.Equal(domain.MustMoney("10")) {
		t.Fatalf("balance = %s, want a single deposit", state.Cashbox.Current)
	}
}

func TestNewRouter_RateLimiterBlocksExcessRequests(t *testing.T) {
	rl := apimiddleware.NewRateLimiter(1, 1, nil)
	router := NewRouter(newRouterConfig(func(cfg *RouterConfig) {
		cfg.RateLimiter = rl
	}))

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "1.2.3.4:1234"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("request %d: status %d, want %d", i, rec.Code, want)
		}
	}
}

func TestNewRouter_AuthRoles(t *testing.T) {
	jwtManager := auth.NewJWTManager("secret", time.Hour)
	c := newAPIClient(t, func(cfg *RouterConfig) {
		cfg.JWTManager = jwtManager
	})

	if rec := c.do(http.MethodGet, "/api/v1/cashbox", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: %d, want 401", rec.Code)
	}
	if rec := c.do(http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("health must stay public, got %d", rec.Code)
	}

	login := func(role domain.Role) {
		tok, err := jwtManager.Generate("test", role)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		c.token = tok
	}

	login(domain.RoleViewer)
	if rec := c.do(http.MethodGet, "/api/v1/cashbox", ""); rec.Code != http.StatusOK {
		t.Fatalf("viewer read: %d", rec.Code)
	}
	if rec := c.do(http.MethodPost, "/api/v1/cashbox/init", `{"opening_balance":1}`); rec.Code != http.StatusForbidden {
		t.Fatalf("viewer write: %d, want 403", rec.Code)
	}

	login(domain.RoleOperator)
	if rec := c.do(http.MethodPost, "/api/v1/cashbox/init", `{"opening_balance":1}`); rec.Code != http.StatusCreated {
		t.Fatalf("operator write: %d", rec.Code)
	}
	if rec := c.do(http.MethodPost, "/api/v1/cashbox/reset", `{"confirmReset":true}`); rec.Code != http.StatusForbidden {
		t.Fatalf("operator reset: %d, want 403", rec.Code)
	}

	login(domain.RoleAdmin)
	if rec := c.do(http.MethodPost, "/api/v1/cashbox/reset", `{"confirmReset":true}`); rec.Code != http.StatusOK {
		t.Fatalf("admin reset: %d", rec.Code)
	}
}
