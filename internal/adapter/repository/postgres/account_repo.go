package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/storeledger/internal/domain"
	"github.com/iho/storeledger/internal/usecase"
)

const accountColumns = `id, kind, balance, opening_balance, version, initialized, created_at, updated_at`

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	db DBTX
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create creates a new ledger account.
func (r *AccountRepository) Create(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	_, err := txDB(tx).Exec(ctx, `
		INSERT INTO ledger_accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		account.ID,
		string(account.Kind),
		moneyToNumeric(account.Balance),
		moneyToNumeric(account.OpeningBalance),
		account.Version,
		account.Initialized,
		timeToPgTimestamptz(account.CreatedAt),
		timeToPgTimestamptz(account.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	return err
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM ledger_accounts WHERE id = $1`, id)
	account, err := scanAccount(row)
	if err != nil {
		return nil, notFound(err, domain.ErrAccountNotFound)
	}
	return account, nil
}

// GetByIDForUpdate retrieves an account by ID with a FOR UPDATE lock.
func (r *AccountRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Account, error) {
	row := txDB(tx).QueryRow(ctx, `SELECT `+accountColumns+` FROM ledger_accounts WHERE id = $1 FOR UPDATE`, id)
	account, err := scanAccount(row)
	if err != nil {
		return nil, notFound(err, domain.ErrAccountNotFound)
	}
	return account, nil
}

// Update writes the cached balance, opening balance and version.
func (r *AccountRepository) Update(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	tag, err := txDB(tx).Exec(ctx, `
		UPDATE ledger_accounts
		SET balance = $2, opening_balance = $3, version = $4, initialized = $5, updated_at = $6
		WHERE id = $1`,
		account.ID,
		moneyToNumeric(account.Balance),
		moneyToNumeric(account.OpeningBalance),
		account.Version,
		account.Initialized,
		timeToPgTimestamptz(account.UpdatedAt),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// Delete removes an account row.
func (r *AccountRepository) Delete(ctx context.Context, tx usecase.Transaction, id string) error {
	_, err := txDB(tx).Exec(ctx, `DELETE FROM ledger_accounts WHERE id = $1`, id)
	return err
}

// ListByKind lists every account of one ledger kind.
func (r *AccountRepository) ListByKind(ctx context.Context, kind domain.LedgerKind) ([]*domain.Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM ledger_accounts WHERE kind = $1 ORDER BY id`, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		a                domain.Account
		kind             string
		balance, opening pgtype.Numeric
		created, updated pgtype.Timestamptz
	)
	if err := row.Scan(&a.ID, &kind, &balance, &opening, &a.Version, &a.Initialized, &created, &updated); err != nil {
		return nil, err
	}
	a.Kind = domain.LedgerKind(kind)
	a.Balance = numericToMoney(balance)
	a.OpeningBalance = numericToMoney(opening)
	a.CreatedAt = created.Time
	a.UpdatedAt = updated.Time
	return &a, nil
}
