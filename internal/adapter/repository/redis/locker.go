package redis

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iho/storeledger/internal/domain"
)

// Locker implements usecase.Locker with Redis locks, so postings to one
// ledger are serialized across server instances.
type Locker struct {
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
	logger zerolog.Logger
}

// NewLocker creates a Locker. ttl bounds how long a crashed holder blocks the
// ledger; wait bounds how long Acquire retries before giving up.
func NewLocker(client redis.UniversalClient, ttl, wait time.Duration, logger zerolog.Logger) *Locker {
	return &Locker{
		client: redislock.New(client),
		ttl:    ttl,
		wait:   wait,
		logger: logger,
	}
}

// Acquire obtains the lock for key. It fails with domain.ErrLedgerBusy when
// the lock stays taken for longer than the wait period.
func (l *Locker) Acquire(ctx context.Context, key string) (func(context.Context), error) {
	ctx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	lock, err := l.client.Obtain(ctx, "storeledger:lock:"+key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(25 * time.Millisecond),
	})
	if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
		return nil, domain.ErrLedgerBusy
	}
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) {
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn().Err(err).Str("key", key).Msg("failed to release ledger lock")
		}
	}, nil
}
