package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/iho/storeledger/internal/adapter/http/dto"
	"github.com/iho/storeledger/internal/domain"
	"github.com/iho/storeledger/internal/usecase"
)

func TestParseIntQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/customers?limit=50", nil)
	if got := parseIntQuery(req, "limit", 10); got != 50 {
		t.Fatalf("expected limit=50, got %d", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/customers?limit=invalid", nil)
	if got := parseIntQuery(req, "limit", 10); got != 10 {
		t.Fatalf("expected fallback to default, got %d", got)
	}

	req.URL = &url.URL{RawQuery: ""}
	if got := parseIntQuery(req, "limit", 25); got != 25 {
		t.Fatalf("expected default when missing, got %d", got)
	}
}

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"invalid amount", domain.ErrInvalidAmount, http.StatusBadRequest},
		{"reset not confirmed", domain.ErrResetNotConfirmed, http.StatusBadRequest},
		{"request validation", &dto.ValidationError{}, http.StatusBadRequest},
		{"customer not found", domain.ErrCustomerNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("load: %w", domain.ErrInvoiceNotFound), http.StatusNotFound},
		{"party has history", domain.ErrPartyHasTransactions, http.StatusConflict},
		{"ledger busy", domain.ErrLedgerBusy, http.StatusConflict},
		{"cashbox initialized", domain.ErrCashboxInitialized, http.StatusConflict},
		{"cashbox short", domain.ErrCashboxShort, http.StatusUnprocessableEntity},
		{"cashbox not initialized", domain.ErrCashboxNotInitialized, http.StatusUnprocessableEntity},
		{"expired token", domain.ErrExpiredToken, http.StatusUnauthorized},
		{"insufficient role", domain.ErrInsufficientRole, http.StatusForbidden},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapDomainError(tt.err); got != tt.expected {
				t.Fatalf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	payload := map[string]string{"status": "ok"}

	writeJSON(rr, http.StatusCreated, payload)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}

	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected content-type application/json, got %s", ct)
	}

	var decoded map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if decoded["status"] != "ok" {
		t.Fatalf("expected payload to round-trip, got %+v", decoded)
	}
}

func TestWriteDomainErrorHidesInternalDetail(t *testing.T) {
	rr := httptest.NewRecorder()

	writeDomainError(rr, "failed to post", errors.New("pq: connection refused"))

	var resp dto.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if rr.Code != http.StatusInternalServerError || resp.Message != "internal error" {
		t.Fatalf("got %d %+v", rr.Code, resp)
	}
}

func TestWriteDomainErrorPassesValidationDetails(t *testing.T) {
	rr := httptest.NewRecorder()

	err := dto.Validate(&dto.PartyRequest{})
	writeDomainError(rr, "invalid request", err)

	var resp dto.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if len(resp.Details) != 1 || resp.Details[0].Field != "name" {
		t.Fatalf("details = %+v", resp.Details)
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"name":"Alice"}`},
		{name: "unknown field", body: `{"name":"Alice","age":3}`, wantErr: true},
		{name: "not json", body: `name=Alice`, wantErr: true},
		{name: "fails validation", body: `{"email":"nope"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/customers", strings.NewReader(tt.body))
			var dst dto.PartyRequest
			err := decodeJSON(httptest.NewRecorder(), req, &dst)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("error %v is not a validation error", err)
			}
		})
	}
}

func TestDateRange(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantStart bool
		wantEnd   bool
		wantErr   bool
	}{
		{name: "open", query: ""},
		{name: "start only", query: "startDate=2025-03-01", wantStart: true},
		{name: "both", query: "startDate=2025-03-01&endDate=2025-03-31", wantStart: true, wantEnd: true},
		{name: "display layout", query: "endDate=31/03/2025", wantEnd: true},
		{name: "inverted", query: "startDate=2025-03-31&endDate=2025-03-01", wantErr: true},
		{name: "garbage", query: "startDate=soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/cashbox/transactions?"+tt.query, nil)
			rng, err := dateRange(req, time.UTC)
			if (err != nil) != tt.wantErr {
				t.Fatalf("dateRange() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if (rng.Start != nil) != tt.wantStart || (rng.End != nil) != tt.wantEnd {
				t.Fatalf("range = %+v", rng)
			}
		})
	}
}

func TestWriteReconciliation(t *testing.T) {
	checked := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	drift := &usecase.ReconciliationResult{
		AccountID: "c-1", Kind: domain.LedgerCustomer,
		Cached: domain.MustMoney("10"), Replayed: domain.MustMoney("7"), Difference: domain.MustMoney("3"),
		Entries: 2, Issue: "cached balance differs", CheckedAt: checked,
	}

	tests := []struct {
		name       string
		result     *usecase.ReconciliationResult
		err        error
		wantStatus int
		consistent bool
	}{
		{
			name:       "consistent",
			result:     &usecase.ReconciliationResult{AccountID: "c-1", Consistent: true, CheckedAt: checked},
			wantStatus: http.StatusOK,
			consistent: true,
		},
		{
			name:       "drift is reported, not failed",
			result:     drift,
			err:        &domain.ConsistencyError{AccountID: "c-1", Cached: drift.Cached, Replayed: drift.Replayed},
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown account",
			err:        domain.ErrCustomerNotFound,
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeReconciliation(rr, func() (*usecase.ReconciliationResult, error) { return tt.result, tt.err })

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.wantStatus, rr.Body)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp dto.ReconciliationResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Consistent != tt.consistent {
				t.Fatalf("consistent = %v, want %v", resp.Consistent, tt.consistent)
			}
		})
	}
}
