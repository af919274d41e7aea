package sqlite

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/iho/storeledger/internal/domain"
	"github.com/iho/storeledger/internal/usecase"
)

// OutboxRepository implements usecase.OutboxRepository.
type OutboxRepository struct {
	db *gorm.DB
}

// NewOutboxRepository creates a new OutboxRepository.
func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	return txDB(ctx, tx).Create(outboxFromDomain(event)).Error
}

func (r *OutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	var rows []outboxModel
	err := r.db.WithContext(ctx).
		Where("published = ?", false).
		Order("created_at, id").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	events := make([]*domain.OutboxEvent, len(rows))
	for i := range rows {
		events[i] = rows[i].toDomain()
	}
	return events, nil
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&outboxModel{}).
		Where("id = ?", id).
		Updates(map[string]any{"published": true, "published_at": publishedAt.UTC()}).Error
}

func (r *OutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	return r.db.WithContext(ctx).
		Where("published = ? AND published_at < ?", true, before.UTC()).
		Delete(&outboxModel{}).Error
}
