package handler

import (
	"context"
	"net/http"

	"github.com/iho/storeledger/internal/adapter/http/dto"
	"github.com/iho/storeledger/internal/domain"
	"github.com/iho/storeledger/internal/usecase"
)

// DashboardService defines the behavior needed by DashboardHandler.
type DashboardService interface {
	Stats(ctx context.Context) (*usecase.DashboardStats, error)
	CustomersDebt(ctx context.Context, limit int) ([]*domain.Party, error)
	SuppliersDebt(ctx context.Context, limit int) ([]*domain.Party, error)
	DebtAlerts(ctx context.Context, threshold *domain.Money, limit int) ([]*domain.Party, error)
}

// DashboardHandler serves the read-only dashboard.
type DashboardHandler struct {
	dashboard DashboardService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(dashboard DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Stats returns every dashboard figure with its status.
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dashboard.Stats(r.Context())
	if err != nil {
		writeDomainError(w, "failed to load dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.DashboardStatsFromDomain(stats))
}

// CustomersDebt lists indebted customers, highest balance first.
func (h *DashboardHandler) CustomersDebt(w http.ResponseWriter, r *http.Request) {
	h.debtors(w, r, h.dashboard.CustomersDebt)
}

// SuppliersDebt lists suppliers with open balances, highest first.
func (h *DashboardHandler) SuppliersDebt(w http.ResponseWriter, r *http.Request) {
	h.debtors(w, r, h.dashboard.SuppliersDebt)
}

func (h *DashboardHandler) debtors(w http.ResponseWriter, r *http.Request, list func(context.Context, int) ([]*domain.Party, error)) {
	parties, err := list(r.Context(), parseIntQuery(r, "limit", 0))
	if err != nil {
		writeDomainError(w, "failed to list debts", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.DebtorsResponse{Parties: dto.PartiesFromDomain(parties)})
}

// DebtAlerts lists customers above ?threshold= (default from config).
func (h *DashboardHandler) DebtAlerts(w http.ResponseWriter, r *http.Request) {
	var threshold *domain.Money
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		m, err := domain.MoneyFromString(raw)
		if err != nil {
			writeDomainError(w, "invalid threshold", err)
			return
		}
		threshold = &m
	}

	parties, err := h.dashboard.DebtAlerts(r.Context(), threshold, parseIntQuery(r, "limit", 0))
	if err != nil {
		writeDomainError(w, "failed to list debt alerts", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.DebtorsResponse{Parties: dto.PartiesFromDomain(parties)})
}
