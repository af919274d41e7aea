package sqlite

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Retrier retries operations that failed because another connection held
// the database lock past the busy timeout.
type Retrier struct {
	maxRetries uint64
	logger     zerolog.Logger
}

// NewRetrier creates a new Retrier.
func NewRetrier(logger zerolog.Logger) *Retrier {
	return &Retrier{maxRetries: 3, logger: logger}
}

// Retry runs operation, retrying on SQLITE_BUSY and SQLITE_LOCKED.
func (r *Retrier) Retry(ctx context.Context, operation func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := operation()
		if err == nil {
			return nil
		}
		if !isBusy(err) {
			return backoff.Permanent(err)
		}
		r.logger.Warn().Err(err).Int("attempt", attempt).Msg("sqlite busy, retrying")
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, r.maxRetries), ctx))
}

func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}
