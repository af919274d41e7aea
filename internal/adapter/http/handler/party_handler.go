package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iho/storeledger/internal/adapter/http/dto"
	"github.com/iho/storeledger/internal/domain"
	"github.com/iho/storeledger/internal/infrastructure/export"
	"github.com/iho/storeledger/internal/usecase"
)

// PartyService defines the profile operations needed by PartyHandler.
type PartyService interface {
	Create(ctx context.Context, profile domain.PartyProfile) (*domain.Party, error)
	Get(ctx context.Context, id string) (*domain.Party, error)
	List(ctx context.Context, filter domain.PartyFilter) ([]*domain.Party, error)
	UpdateProfile(ctx context.Context, id string, profile domain.PartyProfile) (*domain.Party, error)
	Delete(ctx context.Context, id string, cascade bool) error
}

// LedgerService defines the ledger operations needed by PartyHandler.
type LedgerService interface {
	Post(ctx context.Context, input usecase.PostInput) (*domain.Entry, error)
	History(ctx context.Context, input usecase.HistoryInput) ([]*domain.Entry, error)
	DailySummaries(ctx context.Context, accountID string, rng domain.DateRange) ([]domain.DailySummary, error)
	Recompute(ctx context.Context, accountID string) (*usecase.ReconciliationResult, error)
}

// PartyHandler serves one kind of party: customers or suppliers.
type PartyHandler struct {
	kind       domain.LedgerKind
	parties    PartyService
	ledger     LedgerService
	statements *export.StatementWriter
	loc        *time.Location
	now        func() time.Time
}

// NewPartyHandler creates a new PartyHandler.
func NewPartyHandler(kind domain.LedgerKind, parties PartyService, ledger LedgerService, loc *time.Location) *PartyHandler {
	if loc == nil {
		loc = time.Local
	}
	return &PartyHandler{
		kind:       kind,
		parties:    parties,
		ledger:     ledger,
		statements: export.NewStatementWriter(),
		loc:        loc,
		now:        time.Now,
	}
}

// Create creates a party.
func (h *PartyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.PartyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, "invalid request", err)
		return
	}

	party, err := h.parties.Create(r.Context(), req.ToProfile())
	if err != nil {
		writeDomainError(w, "failed to create "+string(h.kind), err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.PartyFromDomain(party))
}

// List lists parties, optionally filtered by search.
func (h *PartyHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := domain.ValidatePagination(parseIntQuery(r, "limit", 0), parseIntQuery(r, "offset", 0))

	parties, err := h.parties.List(r.Context(), domain.PartyFilter{
		Search: r.URL.Query().Get("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeDomainError(w, "failed to list "+string(h.kind)+"s", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListPartiesResponse{
		Parties: dto.PartiesFromDomain(parties),
		Limit:   limit,
		Offset:  offset,
	})
}

// Get retrieves a party by ID.
func (h *PartyHandler) Get(w http.ResponseWriter, r *http.Request) {
	party, err := h.parties.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to get "+string(h.kind), err)
		return
	}
	writeJSON(w, http.StatusOK, dto.PartyFromDomain(party))
}

// Update replaces the profile fields. The balance is never touched.
func (h *PartyHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.PartyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, "invalid request", err)
		return
	}

	party, err := h.parties.UpdateProfile(r.Context(), chi.URLParam(r, "id"), req.ToProfile())
	if err != nil {
		writeDomainError(w, "failed to update "+string(h.kind), err)
		return
	}
	writeJSON(w, http.StatusOK, dto.PartyFromDomain(party))
}

// Delete removes a party. ?cascade=true also removes its ledger history.
func (h *PartyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	cascade := strings.EqualFold(r.URL.Query().Get("cascade"), "true")
	if err := h.parties.Delete(r.Context(), chi.URLParam(r, "id"), cascade); err != nil {
		writeDomainError(w, "failed to delete "+string(h.kind), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PostBalance posts a charge or payment.
func (h *PartyHandler) PostBalance(w http.ResponseWriter, r *http.Request) {
	var req dto.PostBalanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, "invalid request", err)
		return
	}

	input, err := req.ToPostInput(chi.URLParam(r, "id"), h.loc)
	if err != nil {
		writeDomainError(w, "invalid request", err)
		return
	}

	entry, err := h.ledger.Post(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to post transaction", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.PostBalanceResponse{
		Balance:     entry.BalanceAfter,
		Transaction: dto.EntryFromDomain(entry, h.loc),
	})
}

// Transactions lists ledger transactions in a date range, oldest first.
func (h *PartyHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	rng, err := dateRange(r, h.loc)
	if err != nil {
		writeDomainError(w, "invalid date range", err)
		return
	}

	entries, err := h.ledger.History(r.Context(), usecase.HistoryInput{
		AccountID: chi.URLParam(r, "id"),
		Range:     rng,
		Limit:     parseIntQuery(r, "limit", 0),
	})
	if err != nil {
		writeDomainError(w, "failed to list transactions", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionsResponse{Transactions: dto.EntriesFromDomain(entries, h.loc)})
}

// DailySummaries groups the ledger by local calendar day.
func (h *PartyHandler) DailySummaries(w http.ResponseWriter, r *http.Request) {
	rng, err := dateRange(r, h.loc)
	if err != nil {
		writeDomainError(w, "invalid date range", err)
		return
	}

	summaries, err := h.ledger.DailySummaries(r.Context(), chi.URLParam(r, "id"), rng)
	if err != nil {
		writeDomainError(w, "failed to summarize transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.DailySummariesFromDomain(summaries))
}

// Reconcile replays the ledger against its cached balance.
func (h *PartyHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	writeReconciliation(w, func() (*usecase.ReconciliationResult, error) {
		return h.ledger.Recompute(r.Context(), chi.URLParam(r, "id"))
	})
}

// Statement exports the ledger as an xlsx workbook.
func (h *PartyHandler) Statement(w http.ResponseWriter, r *http.Request) {
	rng, err := dateRange(r, h.loc)
	if err != nil {
		writeDomainError(w, "invalid date range", err)
		return
	}

	id := chi.URLParam(r, "id")
	party, err := h.parties.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, "failed to export statement", err)
		return
	}

	entries, err := h.ledger.History(r.Context(), usecase.HistoryInput{AccountID: id, Range: rng})
	if err != nil {
		writeDomainError(w, "failed to export statement", err)
		return
	}

	now := h.now()
	writeStatement(w, h.statements, export.Filename(h.kind, id, now), export.Statement{
		Title:       strings.ToUpper(string(h.kind[:1])) + string(h.kind[1:]) + " " + party.Name,
		Balance:     party.Balance,
		Entries:     entries,
		Summaries:   domain.Summarize(entries, h.loc),
		Location:    h.loc,
		GeneratedAt: now,
	})
}

// writeReconciliation answers with the result even when the ledger is
// inconsistent; the body's consistent flag carries the outcome.
func writeReconciliation(w http.ResponseWriter, recompute func() (*usecase.ReconciliationResult, error)) {
	result, err := recompute()
	if err != nil && (result == nil || !errors.Is(err, domain.ErrConsistency)) {
		writeDomainError(w, "failed to reconcile", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ReconciliationFromResult(result))
}
