package sqlite

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/iho/storeledger/internal/domain"
	"github.com/iho/storeledger/internal/usecase"
)

// EntryRepository implements usecase.EntryRepository.
type EntryRepository struct {
	db *gorm.DB
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(db *gorm.DB) *EntryRepository {
	return &EntryRepository{db: db}
}

func (r *EntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.Entry) error {
	m, err := entryFromDomain(entry)
	if err != nil {
		return err
	}
	err = txDB(ctx, tx).Create(m).Error
	if isDuplicate(err) {
		return fmt.Errorf("%w: entry #%d of %s already written", domain.ErrConflict, entry.Sequence, entry.AccountID)
	}
	return err
}

// ListByAccount returns entries ordered by ascending sequence.
func (r *EntryRepository) ListByAccount(ctx context.Context, accountID string, filter domain.EntryFilter) ([]*domain.Entry, error) {
	q := r.db.WithContext(ctx).Where("account_id = ?", accountID)
	if filter.From != nil {
		q = q.Where("occurred_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		q = q.Where("occurred_at < ?", filter.To.UTC())
	}
	if filter.MaxSequence != nil {
		q = q.Where("sequence <= ?", *filter.MaxSequence)
	}
	if filter.Limit > 0 {
		q = q.Order("sequence DESC").Limit(filter.Limit)
	} else {
		q = q.Order("sequence")
	}

	var rows []entryModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]*domain.Entry, len(rows))
	for i := range rows {
		entries[i] = rows[i].toDomain()
	}
	domain.SortBySequence(entries)
	return entries, nil
}

func (r *EntryRepository) CountByAccount(ctx context.Context, tx usecase.Transaction, accountID string) (int64, error) {
	var n int64
	err := txDB(ctx, tx).Model(&entryModel{}).Where("account_id = ?", accountID).Count(&n).Error
	return n, err
}

func (r *EntryRepository) DeleteByAccount(ctx context.Context, tx usecase.Transaction, accountID string) (int64, error) {
	result := txDB(ctx, tx).Where("account_id = ?", accountID).Delete(&entryModel{})
	return result.RowsAffected, result.Error
}
