package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/iho/storeledger/internal/adapter/http/dto"
	"github.com/iho/storeledger/internal/domain"
	"github.com/iho/storeledger/internal/infrastructure/export"
	"github.com/iho/storeledger/internal/usecase"
)

// CashboxService defines the behavior needed by CashboxHandler.
type CashboxService interface {
	Initialize(ctx context.Context, opening domain.Money) (*usecase.CashboxState, error)
	Get(ctx context.Context) (*usecase.CashboxState, error)
	Transact(ctx context.Context, input usecase.TransactInput) (*domain.Entry, error)
	Reset(ctx context.Context, confirm bool) (*usecase.CashboxState, error)
	Transactions(ctx context.Context, limit int, rng domain.DateRange) ([]*domain.Entry, error)
	DailySummaries(ctx context.Context, rng domain.DateRange) ([]domain.DailySummary, error)
	Recompute(ctx context.Context) (*usecase.ReconciliationResult, error)
}

// CashboxHandler handles the singleton cashbox.
type CashboxHandler struct {
	cashbox    CashboxService
	statements *export.StatementWriter
	loc        *time.Location
	now        func() time.Time
}

// NewCashboxHandler creates a new CashboxHandler.
func NewCashboxHandler(cashbox CashboxService, loc *time.Location) *CashboxHandler {
	if loc == nil {
		loc = time.Local
	}
	return &CashboxHandler{
		cashbox:    cashbox,
		statements: export.NewStatementWriter(),
		loc:        loc,
		now:        time.Now,
	}
}

// Init sets the opening balance.
func (h *CashboxHandler) Init(w http.ResponseWriter, r *http.Request) {
	var req dto.CashboxInitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, "invalid request", err)
		return
	}

	state, err := h.cashbox.Initialize(r.Context(), req.OpeningBalance)
	if err != nil {
		writeDomainError(w, "failed to initialize cashbox", err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.CashboxFromState(state))
}

// Get returns the cashbox state.
func (h *CashboxHandler) Get(w http.ResponseWriter, r *http.Request) {
	state, err := h.cashbox.Get(r.Context())
	if err != nil {
		writeDomainError(w, "failed to get cashbox", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.CashboxFromState(state))
}

// Transaction posts a deposit or withdrawal.
func (h *CashboxHandler) Transaction(w http.ResponseWriter, r *http.Request) {
	var req dto.CashboxTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, "invalid request", err)
		return
	}

	input, err := req.ToTransactInput(h.loc)
	if err != nil {
		writeDomainError(w, "invalid request", err)
		return
	}

	entry, err := h.cashbox.Transact(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to record cashbox transaction", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.PostBalanceResponse{
		Balance:     entry.BalanceAfter,
		Transaction: dto.EntryFromDomain(entry, h.loc),
	})
}

// Reset clears the cashbox history. The body must confirm it.
func (h *CashboxHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req dto.CashboxResetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, "invalid request", err)
		return
	}

	state, err := h.cashbox.Reset(r.Context(), req.ConfirmReset)
	if err != nil {
		writeDomainError(w, "failed to reset cashbox", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.CashboxFromState(state))
}

// Transactions lists cashbox transactions, oldest first.
func (h *CashboxHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	rng, err := dateRange(r, h.loc)
	if err != nil {
		writeDomainError(w, "invalid date range", err)
		return
	}

	entries, err := h.cashbox.Transactions(r.Context(), parseIntQuery(r, "limit", 0), rng)
	if err != nil {
		writeDomainError(w, "failed to list cashbox transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.TransactionsResponse{Transactions: dto.EntriesFromDomain(entries, h.loc)})
}

// DailySummaries groups cashbox movement by local calendar day.
func (h *CashboxHandler) DailySummaries(w http.ResponseWriter, r *http.Request) {
	rng, err := dateRange(r, h.loc)
	if err != nil {
		writeDomainError(w, "invalid date range", err)
		return
	}

	summaries, err := h.cashbox.DailySummaries(r.Context(), rng)
	if err != nil {
		writeDomainError(w, "failed to summarize cashbox", err)
		return
	}
	writeJSON(w, http.StatusOK, dto.DailySummariesFromDomain(summaries))
}

// Reconcile replays the cashbox log.
func (h *CashboxHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	writeReconciliation(w, func() (*usecase.ReconciliationResult, error) {
		return h.cashbox.Recompute(r.Context())
	})
}

// Statement exports the cashbox as an xlsx workbook.
func (h *CashboxHandler) Statement(w http.ResponseWriter, r *http.Request) {
	rng, err := dateRange(r, h.loc)
	if err != nil {
		writeDomainError(w, "invalid date range", err)
		return
	}

	state, err := h.cashbox.Get(r.Context())
	if err != nil {
		writeDomainError(w, "failed to export statement", err)
		return
	}
	entries, err := h.cashbox.Transactions(r.Context(), 0, rng)
	if err != nil {
		writeDomainError(w, "failed to export statement", err)
		return
	}

	now := h.now()
	writeStatement(w, h.statements, export.Filename(domain.LedgerCashbox, domain.CashboxID, now), export.Statement{
		Title:       "Cashbox",
		Balance:     state.CurrentBalance,
		Entries:     entries,
		Summaries:   domain.Summarize(entries, h.loc),
		Location:    h.loc,
		GeneratedAt: now,
	})
}
