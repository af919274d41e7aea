package sqlite

import (
	"context"

	"gorm.io/gorm"

	"github.com/iho/storeledger/internal/usecase"
)

// TxManager implements usecase.TransactionManager over gorm.
type TxManager struct {
	db *gorm.DB
}

// NewTxManager creates a new TxManager.
func NewTxManager(db *gorm.DB) *TxManager {
	return &TxManager{db: db}
}

// Begin starts a new transaction.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	tx := m.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &Tx{db: tx}, nil
}

// Tx wraps a gorm transaction.
type Tx struct {
	db   *gorm.DB
	done bool
}

// Commit commits the transaction.
func (t *Tx) Commit(context.Context) error {
	if err := t.db.Commit().Error; err != nil {
		return err
	}
	t.done = true
	return nil
}

// Rollback rolls back the transaction. It is a no-op after Commit.
func (t *Tx) Rollback(context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	return t.db.Rollback().Error
}

// txDB returns the gorm handle of a transaction created by TxManager.
func txDB(ctx context.Context, tx usecase.Transaction) *gorm.DB {
	return tx.(*Tx).db.WithContext(ctx)
}
