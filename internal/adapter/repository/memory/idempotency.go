package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iho/storeledger/internal/usecase"
)

// IdempotencyStore implements usecase.IdempotencyStore on top of Cache for
// a single process.
type IdempotencyStore struct {
	mu    sync.Mutex
	cache *Cache
}

// NewIdempotencyStore creates a store remembering at most size keys.
func NewIdempotencyStore(size int, maxTTL time.Duration) *IdempotencyStore {
	return &IdempotencyStore{cache: NewCache(size, maxTTL)}
}

func (s *IdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.cache.Get(ctx, key)
	if err == nil {
		return true, existing, nil
	}
	if !errors.Is(err, usecase.ErrCacheMiss) {
		return false, nil, err
	}

	value := response
	if value == nil {
		value = []byte(usecase.IdempotencyPending)
	}
	return false, nil, s.cache.Set(ctx, key, value, ttl)
}

func (s *IdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Set(ctx, key, response, ttl)
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Delete(ctx, key)
}
