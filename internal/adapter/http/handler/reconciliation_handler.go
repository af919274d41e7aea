package handler

import (
	"context"
	"net/http"

	"github.com/iho/storeledger/internal/adapter/http/dto"
	"github.com/iho/storeledger/internal/usecase"
)

// ReconciliationService defines the behavior needed by ReconciliationHandler.
type ReconciliationService interface {
	Run(ctx context.Context) (*usecase.ReconciliationReport, error)
}

// ReconciliationHandler runs the full reconciliation report.
type ReconciliationHandler struct {
	reconciler ReconciliationService
}

// NewReconciliationHandler creates a new ReconciliationHandler.
func NewReconciliationHandler(reconciler ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{reconciler: reconciler}
}

// Run recomputes every ledger. Discrepancies are reported in the body.
func (h *ReconciliationHandler) Run(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconciler.Run(r.Context())
	if err != nil {
		writeDomainError(w, "reconciliation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ReconciliationReportFromDomain(report))
}
