package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iho/storeledger/internal/adapter/http/dto"
	"github.com/iho/storeledger/internal/domain"
	"github.com/iho/storeledger/internal/usecase"
)

// InvoiceService defines the behavior needed by InvoiceHandler.
type InvoiceService interface {
	Record(ctx context.Context, input usecase.RecordInvoiceInput) (*domain.Invoice, error)
	Get(ctx context.Context, id string) (*domain.Invoice, error)
	List(ctx context.Context, filter domain.InvoiceFilter) ([]*domain.Invoice, error)
}

// InvoiceHandler handles sales and purchase invoices.
type InvoiceHandler struct {
	invoices InvoiceService
	loc      *time.Location
}

// NewInvoiceHandler creates a new InvoiceHandler.
func NewInvoiceHandler(invoices InvoiceService, loc *time.Location) *InvoiceHandler {
	if loc == nil {
		loc = time.Local
	}
	return &InvoiceHandler{invoices: invoices, loc: loc}
}

// Create records an invoice and its ledger postings.
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.InvoiceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, "invalid request", err)
		return
	}

	input, err := req.ToInput(h.loc)
	if err != nil {
		writeDomainError(w, "invalid request", err)
		return
	}

	invoice, err := h.invoices.Record(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to record invoice", err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.InvoiceFromDomain(invoice))
}

// List lists invoice headers, newest first.
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := domain.ValidatePagination(parseIntQuery(r, "limit", 0), parseIntQuery(r, "offset", 0))
	q := r.URL.Query()

	invoices, err := h.invoices.List(r.Context(), domain.InvoiceFilter{
		PartyID: q.Get("party_id"),
		Kind:    domain.InvoiceKind(q.Get("kind")),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		writeDomainError(w, "failed to list invoices", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoices": dto.InvoicesFromDomain(invoices)})
}

// Get returns one invoice with its items.
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.invoices.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to get invoice", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.InvoiceFromDomain(invoice))
}
