package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/storeledger/internal/domain"
	"github.com/iho/storeledger/internal/usecase"
)

const partySelect = `
	SELECT p.id, p.kind, p.name, p.phone, p.email, p.address, a.balance, p.created_at, p.updated_at
	FROM parties p
	JOIN ledger_accounts a ON a.id = p.id`

// PartyRepository implements usecase.PartyRepository.
type PartyRepository struct {
	db DBTX
}

// NewPartyRepository creates a new PartyRepository.
func NewPartyRepository(db DBTX) *PartyRepository {
	return &PartyRepository{db: db}
}

// Create inserts a party; its ledger account must already exist in tx.
func (r *PartyRepository) Create(ctx context.Context, tx usecase.Transaction, party *domain.Party) error {
	_, err := txDB(tx).Exec(ctx, `
		INSERT INTO parties (id, kind, name, phone, email, address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		party.ID,
		string(party.Kind),
		party.Name,
		party.Phone,
		party.Email,
		party.Address,
		timeToPgTimestamptz(party.CreatedAt),
		timeToPgTimestamptz(party.UpdatedAt),
	)
	return err
}

// GetByID retrieves a party with its current balance.
func (r *PartyRepository) GetByID(ctx context.Context, kind domain.LedgerKind, id string) (*domain.Party, error) {
	row := r.db.QueryRow(ctx, partySelect+` WHERE p.kind = $1 AND p.id = $2`, string(kind), id)
	party, err := scanParty(row)
	if err != nil {
		return nil, notFound(err, kind.NotFound())
	}
	return party, nil
}

// List lists parties by name. Search matches name, phone or email.
func (r *PartyRepository) List(ctx context.Context, kind domain.LedgerKind, filter domain.PartyFilter) ([]*domain.Party, error) {
	return r.query(ctx, partySelect+`
		WHERE p.kind = $1
		  AND ($2 = '' OR p.name ILIKE '%' || $2 || '%' OR p.phone ILIKE '%' || $2 || '%' OR p.email ILIKE '%' || $2 || '%')
		ORDER BY p.name, p.id
		LIMIT $3 OFFSET $4`,
		string(kind), filter.Search, filter.Limit, filter.Offset,
	)
}

// Update writes the profile fields only.
func (r *PartyRepository) Update(ctx context.Context, party *domain.Party) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE parties SET name = $2, phone = $3, email = $4, address = $5, updated_at = $6
		WHERE id = $1`,
		party.ID, party.Name, party.Phone, party.Email, party.Address,
		timeToPgTimestamptz(party.UpdatedAt),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return party.Kind.NotFound()
	}
	return nil
}

// Delete removes a party row.
func (r *PartyRepository) Delete(ctx context.Context, tx usecase.Transaction, id string) error {
	_, err := txDB(tx).Exec(ctx, `DELETE FROM parties WHERE id = $1`, id)
	return err
}

// Count counts the parties of one kind.
func (r *PartyRepository) Count(ctx context.Context, kind domain.LedgerKind) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM parties WHERE kind = $1`, string(kind)).Scan(&n)
	return n, err
}

// TotalBalance sums the balances of every party of one kind.
func (r *PartyRepository) TotalBalance(ctx context.Context, kind domain.LedgerKind) (domain.Money, error) {
	var total pgtype.Numeric
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(a.balance), 0)
		FROM parties p JOIN ledger_accounts a ON a.id = p.id
		WHERE p.kind = $1`, string(kind)).Scan(&total)
	if err != nil {
		return domain.ZeroMoney, err
	}
	return numericToMoney(total), nil
}

// Debtors returns parties with a non-zero balance, highest balance first.
func (r *PartyRepository) Debtors(ctx context.Context, kind domain.LedgerKind, filter domain.DebtFilter) ([]*domain.Party, error) {
	if filter.Above != nil {
		return r.query(ctx, partySelect+`
			WHERE p.kind = $1 AND a.balance > $2
			ORDER BY a.balance DESC, p.name
			LIMIT $3`,
			string(kind), moneyToNumeric(*filter.Above), filter.Limit,
		)
	}
	return r.query(ctx, partySelect+`
		WHERE p.kind = $1 AND a.balance <> 0
		ORDER BY a.balance DESC, p.name
		LIMIT $2`,
		string(kind), filter.Limit,
	)
}

func (r *PartyRepository) query(ctx context.Context, sql string, args ...any) ([]*domain.Party, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	parties := make([]*domain.Party, 0)
	for rows.Next() {
		p, err := scanParty(rows)
		if err != nil {
			return nil, err
		}
		parties = append(parties, p)
	}
	return parties, rows.Err()
}

func scanParty(row pgx.Row) (*domain.Party, error) {
	var (
		p                domain.Party
		kind             string
		balance          pgtype.Numeric
		created, updated pgtype.Timestamptz
	)
	if err := row.Scan(&p.ID, &kind, &p.Name, &p.Phone, &p.Email, &p.Address, &balance, &created, &updated); err != nil {
		return nil, err
	}
	p.Kind = domain.LedgerKind(kind)
	p.Balance = numericToMoney(balance)
	p.CreatedAt = created.Time
	p.UpdatedAt = updated.Time
	return &p, nil
}
