package dto

import (
	"time"

	"github.com/iho/storeledger/internal/domain"
	"github.com/iho/storeledger/internal/usecase"
)

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string             `json:"error"`
	Message string             `json:"message,omitempty"`
	Details []ValidationDetail `json:"details,omitempty"`
}

// PartyResponse represents a customer or supplier.
type PartyResponse struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Phone     string       `json:"phone,omitempty"`
	Email     string       `json:"email,omitempty"`
	Address   string       `json:"address,omitempty"`
	Balance   domain.Money `json:"balance"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// PartyFromDomain converts a domain party to a response.
func PartyFromDomain(p *domain.Party) *PartyResponse {
	return &PartyResponse{
		ID:        p.ID,
		Name:      p.Name,
		Phone:     p.Phone,
		Email:     p.Email,
		Address:   p.Address,
		Balance:   p.Balance,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// PartiesFromDomain converts domain parties to responses.
func PartiesFromDomain(parties []*domain.Party) []*PartyResponse {
	result := make([]*PartyResponse, len(parties))
	for i, p := range parties {
		result[i] = PartyFromDomain(p)
	}
	return result
}

// ListPartiesResponse is a page of parties.
type ListPartiesResponse struct {
	Parties []*PartyResponse `json:"parties"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

// EntryResponse represents one ledger transaction. Date is the business date
// as a local calendar day.
type EntryResponse struct {
	ID            string       `json:"id"`
	Sequence      int64        `json:"sequence"`
	Type          string       `json:"type"`
	Amount        domain.Money `json:"amount"`
	BalanceBefore domain.Money `json:"balance_before"`
	BalanceAfter  domain.Money `json:"balance_after"`
	Description   string       `json:"description,omitempty"`
	Date          string       `json:"date"`
	OccurredAt    time.Time    `json:"occurred_at"`
	CreatedAt     time.Time    `json:"created_at"`
}

// EntryFromDomain converts a domain entry to a response.
func EntryFromDomain(e *domain.Entry, loc *time.Location) *EntryResponse {
	return &EntryResponse{
		ID:            e.ID,
		Sequence:      e.Sequence,
		Type:          string(e.Type),
		Amount:        e.Amount,
		BalanceBefore: e.BalanceBefore,
		BalanceAfter:  e.BalanceAfter,
		Description:   e.Description,
		Date:          e.OccurredAt.In(loc).Format(domain.DateLayout),
		OccurredAt:    e.OccurredAt,
		CreatedAt:     e.CreatedAt,
	}
}

// EntriesFromDomain converts domain entries to responses.
func EntriesFromDomain(entries []*domain.Entry, loc *time.Location) []*EntryResponse {
	result := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		result[i] = EntryFromDomain(e, loc)
	}
	return result
}

// PostBalanceResponse is returned after a posting.
type PostBalanceResponse struct {
	Balance     domain.Money   `json:"balance"`
	Transaction *EntryResponse `json:"transaction"`
}

// TransactionsResponse lists ledger transactions, oldest first.
type TransactionsResponse struct {
	Transactions []*EntryResponse `json:"transactions"`
}

// DailySummaryResponse is one day of a ledger.
type DailySummaryResponse struct {
	Date             string       `json:"date"`
	TotalIn          domain.Money `json:"total_in"`
	TotalOut         domain.Money `json:"total_out"`
	NetChange        domain.Money `json:"net_change"`
	EndingBalance    domain.Money `json:"ending_balance"`
	TransactionCount int          `json:"transaction_count"`
}

// DailySummariesResponse lists daily summaries, newest day first.
type DailySummariesResponse struct {
	Summaries []DailySummaryResponse `json:"summaries"`
}

// DailySummariesFromDomain converts domain summaries.
func DailySummariesFromDomain(summaries []domain.DailySummary) *DailySummariesResponse {
	out := make([]DailySummaryResponse, len(summaries))
	for i, s := range summaries {
		out[i] = DailySummaryResponse{
			Date:             s.Date.Format(domain.DateLayout),
			TotalIn:          s.TotalIn,
			TotalOut:         s.TotalOut,
			NetChange:        s.NetChange,
			EndingBalance:    s.EndingBalance,
			TransactionCount: s.TransactionCount,
		}
	}
	return &DailySummariesResponse{Summaries: out}
}

// CashboxBalances holds the cashbox amounts.
type CashboxBalances struct {
	OpeningBalance domain.Money `json:"opening_balance"`
	CurrentBalance domain.Money `json:"current_balance"`
}

// CashboxResponse is the cashbox state.
type CashboxResponse struct {
	Initialized bool            `json:"initialized"`
	Cashbox     CashboxBalances `json:"cashbox"`
}

// CashboxFromState converts the use case state.
func CashboxFromState(s *usecase.CashboxState) *CashboxResponse {
	return &CashboxResponse{
		Initialized: s.Initialized,
		Cashbox: CashboxBalances{
			OpeningBalance: s.OpeningBalance,
			CurrentBalance: s.CurrentBalance,
		},
	}
}

// FigureResponse is one dashboard figure with its provenance.
type FigureResponse[T any] struct {
	Value  T          `json:"value"`
	Status string     `json:"status"`
	AsOf   *time.Time `json:"as_of,omitempty"`
}

func figure[T any](f usecase.Figure[T]) FigureResponse[T] {
	return FigureResponse[T]{Value: f.Value, Status: string(f.Status), AsOf: f.AsOf}
}

// FlowResponse is a period's in/out movement.
type FlowResponse struct {
	In  domain.Money `json:"in"`
	Out domain.Money `json:"out"`
	Net domain.Money `json:"net"`
}

// DashboardStatsResponse is the dashboard summary.
type DashboardStatsResponse struct {
	TotalCustomersDebt FigureResponse[domain.Money] `json:"total_customers_debt"`
	TotalSuppliersDebt FigureResponse[domain.Money] `json:"total_suppliers_debt"`
	CustomerCount      FigureResponse[int64]        `json:"customer_count"`
	SupplierCount      FigureResponse[int64]        `json:"supplier_count"`
	LowStockCount      FigureResponse[int64]        `json:"low_stock_count"`
	TodayCashFlow      FigureResponse[FlowResponse] `json:"today_cash_flow"`
	CashboxBalance     FigureResponse[domain.Money] `json:"cashbox_balance"`
	GeneratedAt        time.Time                    `json:"generated_at"`
}

// DashboardStatsFromDomain converts the use case stats.
func DashboardStatsFromDomain(s *usecase.DashboardStats) *DashboardStatsResponse {
	flow := s.TodayCashFlow
	return &DashboardStatsResponse{
		TotalCustomersDebt: figure(s.TotalCustomersDebt),
		TotalSuppliersDebt: figure(s.TotalSuppliersDebt),
		CustomerCount:      figure(s.CustomerCount),
		SupplierCount:      figure(s.SupplierCount),
		LowStockCount:      figure(s.LowStockCount),
		TodayCashFlow: FigureResponse[FlowResponse]{
			Value:  FlowResponse{In: flow.Value.In, Out: flow.Value.Out, Net: flow.Value.Net},
			Status: string(flow.Status),
			AsOf:   flow.AsOf,
		},
		CashboxBalance: figure(s.CashboxBalance),
		GeneratedAt:    s.GeneratedAt,
	}
}

// ProductResponse represents a product.
type ProductResponse struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	SKU       string       `json:"sku"`
	Quantity  int64        `json:"quantity"`
	MinStock  int64        `json:"min_stock"`
	UnitPrice domain.Money `json:"unit_price"`
	LowStock  bool         `json:"low_stock"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// ProductFromDomain converts a domain product.
func ProductFromDomain(p *domain.Product) *ProductResponse {
	return &ProductResponse{
		ID:        p.ID,
		Name:      p.Name,
		SKU:       p.SKU,
		Quantity:  p.Quantity,
		MinStock:  p.MinStock,
		UnitPrice: p.UnitPrice,
		LowStock:  p.IsLowStock(),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// ProductsFromDomain converts domain products.
func ProductsFromDomain(products []*domain.Product) []*ProductResponse {
	result := make([]*ProductResponse, len(products))
	for i, p := range products {
		result[i] = ProductFromDomain(p)
	}
	return result
}

// InvoiceItemResponse is one invoice line.
type InvoiceItemResponse struct {
	ProductID string       `json:"product_id"`
	Quantity  int64        `json:"quantity"`
	UnitPrice domain.Money `json:"unit_price"`
	LineTotal domain.Money `json:"line_total"`
}

// InvoiceResponse represents an invoice. Items are omitted in listings.
type InvoiceResponse struct {
	ID             string                `json:"id"`
	Kind           string                `json:"kind"`
	PartyID        string                `json:"party_id"`
	Items          []InvoiceItemResponse `json:"items,omitempty"`
	Total          domain.Money          `json:"total"`
	Paid           domain.Money          `json:"paid"`
	Due            domain.Money          `json:"due"`
	Note           string                `json:"note,omitempty"`
	ChargeEntryID  string                `json:"charge_entry_id,omitempty"`
	PaymentEntryID string                `json:"payment_entry_id,omitempty"`
	IssuedAt       time.Time             `json:"issued_at"`
	CreatedAt      time.Time             `json:"created_at"`
}

// InvoiceFromDomain converts a domain invoice.
func InvoiceFromDomain(inv *domain.Invoice) *InvoiceResponse {
	var items []InvoiceItemResponse
	for _, it := range inv.Items {
		items = append(items, InvoiceItemResponse{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			LineTotal: it.LineTotal,
		})
	}
	return &InvoiceResponse{
		ID:             inv.ID,
		Kind:           string(inv.Kind),
		PartyID:        inv.PartyID,
		Items:          items,
		Total:          inv.Total,
		Paid:           inv.Paid,
		Due:            inv.Due(),
		Note:           inv.Note,
		ChargeEntryID:  inv.ChargeEntryID,
		PaymentEntryID: inv.PaymentEntryID,
		IssuedAt:       inv.IssuedAt,
		CreatedAt:      inv.CreatedAt,
	}
}

// InvoicesFromDomain converts domain invoices.
func InvoicesFromDomain(invoices []*domain.Invoice) []*InvoiceResponse {
	result := make([]*InvoiceResponse, len(invoices))
	for i, inv := range invoices {
		result[i] = InvoiceFromDomain(inv)
	}
	return result
}

// ReconciliationResponse reports one ledger's replay.
type ReconciliationResponse struct {
	AccountID  string       `json:"account_id"`
	Kind       string       `json:"kind"`
	Cached     domain.Money `json:"cached_balance"`
	Replayed   domain.Money `json:"replayed_balance"`
	Difference domain.Money `json:"difference"`
	Entries    int          `json:"entries"`
	Consistent bool         `json:"consistent"`
	Issue      string       `json:"issue,omitempty"`
	CheckedAt  time.Time    `json:"checked_at"`
}

// ReconciliationFromResult converts a use case result.
func ReconciliationFromResult(r *usecase.ReconciliationResult) *ReconciliationResponse {
	return &ReconciliationResponse{
		AccountID:  r.AccountID,
		Kind:       string(r.Kind),
		Cached:     r.Cached,
		Replayed:   r.Replayed,
		Difference: r.Difference,
		Entries:    r.Entries,
		Consistent: r.Consistent,
		Issue:      r.Issue,
		CheckedAt:  r.CheckedAt,
	}
}

// LedgerTotalsResponse sums one kind of ledger.
type LedgerTotalsResponse struct {
	Accounts int          `json:"accounts"`
	Entries  int          `json:"entries"`
	Balance  domain.Money `json:"balance"`
}

// ReconciliationReportResponse is a full reconciliation run.
type ReconciliationReportResponse struct {
	Consistent    bool                             `json:"consistent"`
	CheckedAt     time.Time                        `json:"checked_at"`
	Totals        map[string]*LedgerTotalsResponse `json:"totals"`
	Discrepancies []*ReconciliationResponse        `json:"discrepancies"`
}

// ReconciliationReportFromDomain converts a use case report.
func ReconciliationReportFromDomain(r *usecase.ReconciliationReport) *ReconciliationReportResponse {
	out := &ReconciliationReportResponse{
		Consistent:    r.Consistent(),
		CheckedAt:     r.CheckedAt,
		Totals:        make(map[string]*LedgerTotalsResponse, len(r.Totals)),
		Discrepancies: make([]*ReconciliationResponse, 0, len(r.Discrepancies)),
	}
	for kind, t := range r.Totals {
		out.Totals[string(kind)] = &LedgerTotalsResponse{Accounts: t.Accounts, Entries: t.Entries, Balance: t.Balance}
	}
	for _, d := range r.Discrepancies {
		out.Discrepancies = append(out.Discrepancies, ReconciliationFromResult(d))
	}
	return out
}

// DebtorsResponse lists parties ordered by balance, highest first.
type DebtorsResponse struct {
	Parties []*PartyResponse `json:"parties"`
}
