// Package memory holds in-process adapters for the single-user desktop mode.
package memory

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/iho/storeledger/internal/usecase"
)

type cacheItem struct {
	value     []byte
	expiresAt time.Time
}

// Cache implements usecase.Cache with a size-bounded LRU. Entries expire
// after their own TTL, capped by maxTTL.
type Cache struct {
	lru *expirable.LRU[string, cacheItem]
	now func() time.Time
}

// NewCache creates a Cache holding at most size entries.
func NewCache(size int, maxTTL time.Duration) *Cache {
	return &Cache{
		lru: expirable.NewLRU[string, cacheItem](size, nil, maxTTL),
		now: time.Now,
	}
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	item, ok := c.lru.Get(key)
	if !ok {
		return nil, usecase.ErrCacheMiss
	}
	if !item.expiresAt.IsZero() && !c.now().Before(item.expiresAt) {
		c.lru.Remove(key)
		return nil, usecase.ErrCacheMiss
	}
	return append([]byte(nil), item.value...), nil
}

func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	item := cacheItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		item.expiresAt = c.now().Add(ttl)
	}
	c.lru.Add(key, item)
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}
