// Package export renders ledger statements as spreadsheets.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/iho/storeledger/internal/domain"
)

// ContentType is the MIME type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	transactionsSheet = "Transactions"
	dailySheet        = "Daily"
)

// Statement is everything a statement workbook shows for one ledger.
type Statement struct {
	Title       string
	Balance     domain.Money
	Entries     []*domain.Entry
	Summaries   []domain.DailySummary
	Location    *time.Location
	GeneratedAt time.Time
}

// StatementWriter writes statements as .xlsx workbooks.
type StatementWriter struct{}

// NewStatementWriter creates a new StatementWriter.
func NewStatementWriter() *StatementWriter {
	return &StatementWriter{}
}

// Filename suggests a download name for a statement of ledger id.
func Filename(kind domain.LedgerKind, id string, at time.Time) string {
	return fmt.Sprintf("%s-%s-%s.xlsx", kind, id, at.Format("20060102"))
}

// Write renders st into w.
func (sw *StatementWriter) Write(w io.Writer, st Statement) error {
	loc := st.Location
	if loc == nil {
		loc = time.Local
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", transactionsSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(dailySheet); err != nil {
		return err
	}

	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return err
	}
	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	if err := writeTransactions(f, st, loc, moneyStyle, boldStyle); err != nil {
		return err
	}
	if err := writeDaily(f, st.Summaries, moneyStyle, boldStyle); err != nil {
		return err
	}

	_, err = f.WriteTo(w)
	return err
}

func writeTransactions(f *excelize.File, st Statement, loc *time.Location, moneyStyle, boldStyle int) error {
	rows := [][]any{
		{st.Title},
		{"Current balance", amount(st.Balance)},
		{"Generated", st.GeneratedAt.In(loc).Format("2006-01-02 15:04")},
		{},
		{"#", "Date", "Type", "Amount", "Balance before", "Balance after", "Description"},
	}
	header := len(rows)

	for _, e := range st.Entries {
		rows = append(rows, []any{
			e.Sequence,
			e.OccurredAt.In(loc).Format(domain.DateLayout),
			string(e.Type),
			amount(e.Amount),
			amount(e.BalanceBefore),
			amount(e.BalanceAfter),
			e.Description,
		})
	}

	if err := setRows(f, transactionsSheet, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(transactionsSheet, "A1", "A1", boldStyle); err != nil {
		return err
	}
	if err := f.SetCellStyle(transactionsSheet, "B2", "B2", moneyStyle); err != nil {
		return err
	}
	if err := f.SetCellStyle(transactionsSheet, cell("A", header), cell("G", header), boldStyle); err != nil {
		return err
	}
	if len(st.Entries) > 0 {
		if err := f.SetCellStyle(transactionsSheet, cell("D", header+1), cell("F", len(rows)), moneyStyle); err != nil {
			return err
		}
	}
	return f.SetColWidth(transactionsSheet, "B", "G", 16)
}

func writeDaily(f *excelize.File, summaries []domain.DailySummary, moneyStyle, boldStyle int) error {
	rows := [][]any{{"Date", "Total in", "Total out", "Net change", "Ending balance", "Transactions"}}
	for _, s := range summaries {
		rows = append(rows, []any{
			s.Date.Format(domain.DateLayout),
			amount(s.TotalIn),
			amount(s.TotalOut),
			amount(s.NetChange),
			amount(s.EndingBalance),
			s.TransactionCount,
		})
	}

	if err := setRows(f, dailySheet, rows); err != nil {
		return err
	}
	if err := f.SetCellStyle(dailySheet, "A1", "F1", boldStyle); err != nil {
		return err
	}
	if len(summaries) > 0 {
		if err := f.SetCellStyle(dailySheet, "B2", cell("E", len(rows)), moneyStyle); err != nil {
			return err
		}
	}
	return f.SetColWidth(dailySheet, "A", "F", 16)
}

func setRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		if err := f.SetSheetRow(sheet, cell("A", i+1), &row); err != nil {
			return err
		}
	}
	return nil
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

// amount converts for display only; the ledger itself never leaves decimal.
func amount(m domain.Money) float64 {
	return m.Decimal().InexactFloat64()
}
