package sqlite

import (
	"context"

	"gorm.io/gorm"

	"github.com/iho/storeledger/internal/domain"
	"github.com/iho/storeledger/internal/usecase"
)

// PartyRepository implements usecase.PartyRepository.
type PartyRepository struct {
	db *gorm.DB
}

// NewPartyRepository creates a new PartyRepository.
func NewPartyRepository(db *gorm.DB) *PartyRepository {
	return &PartyRepository{db: db}
}

func (r *PartyRepository) joined(ctx context.Context, kind domain.LedgerKind) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("parties").
		Select("parties.*, ledger_accounts.balance_cents").
		Joins("JOIN ledger_accounts ON ledger_accounts.id = parties.id").
		Where("parties.kind = ?", string(kind))
}

func (r *PartyRepository) Create(ctx context.Context, tx usecase.Transaction, party *domain.Party) error {
	return txDB(ctx, tx).Create(&partyModel{
		ID:        party.ID,
		Kind:      string(party.Kind),
		Name:      party.Name,
		Phone:     party.Phone,
		Email:     party.Email,
		Address:   party.Address,
		CreatedAt: party.CreatedAt.UTC(),
		UpdatedAt: party.UpdatedAt.UTC(),
	}).Error
}

func (r *PartyRepository) GetByID(ctx context.Context, kind domain.LedgerKind, id string) (*domain.Party, error) {
	var row partyRow
	if err := r.joined(ctx, kind).Where("parties.id = ?", id).Take(&row).Error; err != nil {
		return nil, notFound(err, kind.NotFound())
	}
	return row.toDomain(), nil
}

// List lists parties by name. Search matches name, phone or email;
// SQLite LIKE is case-insensitive for ASCII.
func (r *PartyRepository) List(ctx context.Context, kind domain.LedgerKind, filter domain.PartyFilter) ([]*domain.Party, error) {
	q := r.joined(ctx, kind)
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where("parties.name LIKE ? OR parties.phone LIKE ? OR parties.email LIKE ?", pattern, pattern, pattern)
	}
	return scanParties(paginate(q.Order("parties.name, parties.id"), filter.Limit, filter.Offset))
}

func (r *PartyRepository) Update(ctx context.Context, party *domain.Party) error {
	result := r.db.WithContext(ctx).Model(&partyModel{}).
		Where("id = ?", party.ID).
		Updates(map[string]any{
			"name":       party.Name,
			"phone":      party.Phone,
			"email":      party.Email,
			"address":    party.Address,
			"updated_at": party.UpdatedAt.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return party.Kind.NotFound()
	}
	return nil
}

func (r *PartyRepository) Delete(ctx context.Context, tx usecase.Transaction, id string) error {
	return txDB(ctx, tx).Delete(&partyModel{}, "id = ?", id).Error
}

func (r *PartyRepository) Count(ctx context.Context, kind domain.LedgerKind) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&partyModel{}).Where("kind = ?", string(kind)).Count(&n).Error
	return n, err
}

func (r *PartyRepository) TotalBalance(ctx context.Context, kind domain.LedgerKind) (domain.Money, error) {
	var cents int64
	err := r.db.WithContext(ctx).
		Table("parties").
		Joins("JOIN ledger_accounts ON ledger_accounts.id = parties.id").
		Where("parties.kind = ?", string(kind)).
		Select("COALESCE(SUM(ledger_accounts.balance_cents), 0)").
		Row().Scan(&cents)
	if err != nil {
		return domain.ZeroMoney, err
	}
	return domain.MoneyFromCents(cents), nil
}

func (r *PartyRepository) Debtors(ctx context.Context, kind domain.LedgerKind, filter domain.DebtFilter) ([]*domain.Party, error) {
	q := r.joined(ctx, kind)
	if filter.Above != nil {
		above, err := filter.Above.Cents()
		if err != nil {
			return nil, err
		}
		q = q.Where("ledger_accounts.balance_cents > ?", above)
	} else {
		q = q.Where("ledger_accounts.balance_cents <> 0")
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	return scanParties(q.Order("ledger_accounts.balance_cents DESC, parties.name"))
}

func scanParties(q *gorm.DB) ([]*domain.Party, error) {
	var rows []partyRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}

	parties := make([]*domain.Party, len(rows))
	for i := range rows {
		parties[i] = rows[i].toDomain()
	}
	return parties, nil
}

func paginate(q *gorm.DB, limit, offset int) *gorm.DB {
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	return q
}
