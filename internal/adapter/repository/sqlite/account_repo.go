package sqlite

import (
	"context"

	"gorm.io/gorm"

	"github.com/iho/storeledger/internal/domain"
	"github.com/iho/storeledger/internal/usecase"
)

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	m, err := accountFromDomain(account)
	if err != nil {
		return err
	}
	err = txDB(ctx, tx).Create(m).Error
	if isDuplicate(err) {
		return domain.ErrConflict
	}
	return err
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return getAccount(r.db.WithContext(ctx), id)
}

// GetByIDForUpdate reads inside tx. The immediate transaction already holds
// the database write lock, which stands in for a row lock.
func (r *AccountRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Account, error) {
	return getAccount(txDB(ctx, tx), id)
}

func getAccount(db *gorm.DB, id string) (*domain.Account, error) {
	var m accountModel
	if err := db.First(&m, "id = ?", id).Error; err != nil {
		return nil, notFound(err, domain.ErrAccountNotFound)
	}
	return m.toDomain(), nil
}

func (r *AccountRepository) Update(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	m, err := accountFromDomain(account)
	if err != nil {
		return err
	}
	result := txDB(ctx, tx).Model(&accountModel{}).
		Where("id = ?", account.ID).
		Updates(map[string]any{
			"balance_cents":         m.BalanceCents,
			"opening_balance_cents": m.OpeningBalanceCents,
			"version":               account.Version,
			"initialized":           account.Initialized,
			"updated_at":            account.UpdatedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) Delete(ctx context.Context, tx usecase.Transaction, id string) error {
	return txDB(ctx, tx).Delete(&accountModel{}, "id = ?", id).Error
}

func (r *AccountRepository) ListByKind(ctx context.Context, kind domain.LedgerKind) ([]*domain.Account, error) {
	var rows []accountModel
	if err := r.db.WithContext(ctx).Where("kind = ?", string(kind)).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}

	accounts := make([]*domain.Account, len(rows))
	for i := range rows {
		accounts[i] = rows[i].toDomain()
	}
	return accounts, nil
}
