package usecase

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/storeledger/internal/infrastructure/metrics"
)

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// DefaultDebtAlertLimit caps the high-debt customer list
	DefaultDebtAlertLimit = 10

	// DefaultSnapshotTTL is how long the last good dashboard figures are kept
	DefaultSnapshotTTL = 7 * 24 * time.Hour
)

// Options carries the collaborators shared by every use case. Zero fields
// get working defaults.
type Options struct {
	Retrier  Retrier
	Locker   Locker
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
	Location *time.Location
	Now      func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Retrier == nil {
		o.Retrier = NoRetry{}
	}
	if o.Locker == nil {
		o.Locker = NoopLocker{}
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func (o Options) now() time.Time {
	return o.Now().UTC()
}
