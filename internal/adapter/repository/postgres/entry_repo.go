package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/storeledger/internal/domain"
	"github.com/iho/storeledger/internal/usecase"
)

const entryColumns = `id, account_id, kind, sequence, type, amount, balance_before, balance_after, description, occurred_at, created_at`

// EntryRepository implements usecase.EntryRepository.
type EntryRepository struct {
	db DBTX
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(db DBTX) *EntryRepository {
	return &EntryRepository{db: db}
}

// Create appends an entry to its account log.
func (r *EntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.Entry) error {
	_, err := txDB(tx).Exec(ctx, `
		INSERT INTO ledger_entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.ID,
		entry.AccountID,
		string(entry.Kind),
		entry.Sequence,
		string(entry.Type),
		moneyToNumeric(entry.Amount),
		moneyToNumeric(entry.BalanceBefore),
		moneyToNumeric(entry.BalanceAfter),
		entry.Description,
		timeToPgTimestamptz(entry.OccurredAt),
		timeToPgTimestamptz(entry.CreatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: entry #%d of %s already written", domain.ErrConflict, entry.Sequence, entry.AccountID)
	}
	return err
}

// ListByAccount returns entries ordered by ascending sequence.
func (r *EntryRepository) ListByAccount(ctx context.Context, accountID string, filter domain.EntryFilter) ([]*domain.Entry, error) {
	query, args := entryListQuery(accountID, filter)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]*domain.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	domain.SortBySequence(entries)
	return entries, nil
}

func entryListQuery(accountID string, filter domain.EntryFilter) (string, []any) {
	where := []string{"account_id = $1"}
	args := []any{accountID}

	if filter.From != nil {
		args = append(args, timeToPgTimestamptz(*filter.From))
		where = append(where, fmt.Sprintf("occurred_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, timeToPgTimestamptz(*filter.To))
		where = append(where, fmt.Sprintf("occurred_at < $%d", len(args)))
	}
	if filter.MaxSequence != nil {
		args = append(args, *filter.MaxSequence)
		where = append(where, fmt.Sprintf("sequence <= $%d", len(args)))
	}

	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE ` + strings.Join(where, " AND ")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" ORDER BY sequence DESC LIMIT $%d", len(args))
	} else {
		query += " ORDER BY sequence"
	}

	return query, args
}

// CountByAccount counts the entries of an account.
func (r *EntryRepository) CountByAccount(ctx context.Context, tx usecase.Transaction, accountID string) (int64, error) {
	var n int64
	err := txDB(tx).QueryRow(ctx, `SELECT count(*) FROM ledger_entries WHERE account_id = $1`, accountID).Scan(&n)
	return n, err
}

// DeleteByAccount drops the whole log of an account.
func (r *EntryRepository) DeleteByAccount(ctx context.Context, tx usecase.Transaction, accountID string) (int64, error) {
	tag, err := txDB(tx).Exec(ctx, `DELETE FROM ledger_entries WHERE account_id = $1`, accountID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanEntry(row pgx.Row) (*domain.Entry, error) {
	var (
		e                     domain.Entry
		kind, typ             string
		amount, before, after pgtype.Numeric
		occurred, created     pgtype.Timestamptz
	)
	err := row.Scan(&e.ID, &e.AccountID, &kind, &e.Sequence, &typ, &amount, &before, &after, &e.Description, &occurred, &created)
	if err != nil {
		return nil, err
	}
	e.Kind = domain.LedgerKind(kind)
	e.Type = domain.EntryType(typ)
	e.Amount = numericToMoney(amount)
	e.BalanceBefore = numericToMoney(before)
	e.BalanceAfter = numericToMoney(after)
	e.OccurredAt = occurred.Time
	e.CreatedAt = created.Time
	return &e, nil
}
