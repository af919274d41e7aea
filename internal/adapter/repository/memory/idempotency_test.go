package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iho/storeledger/internal/usecase"
)

func TestIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	store := NewIdempotencyStore(16, time.Hour)

	exists, _, err := store.CheckAndSet(ctx, "k", nil, time.Minute)
	if err != nil || exists {
		t.Fatalf("first claim: exists=%v err=%v", exists, err)
	}

	exists, value, _ := store.CheckAndSet(ctx, "k", nil, time.Minute)
	if !exists || string(value) != usecase.IdempotencyPending {
		t.Fatalf("second claim: exists=%v value=%q", exists, value)
	}

	_ = store.Update(ctx, "k", []byte("done"), time.Minute)
	_, value, _ = store.CheckAndSet(ctx, "k", nil, time.Minute)
	if string(value) != "done" {
		t.Fatalf("value after update = %q", value)
	}

	_ = store.Release(ctx, "k")
	if exists, _, _ := store.CheckAndSet(ctx, "k", nil, time.Minute); exists {
		t.Fatal("expected released key to be claimable")
	}
}

func TestIdempotencyStoreSingleWinner(t *testing.T) {
	ctx := context.Background()
	store := NewIdempotencyStore(16, time.Hour)

	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if exists, _, err := store.CheckAndSet(ctx, "race", nil, time.Minute); err == nil && !exists {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := winners.Load(); got != 1 {
		t.Fatalf("winners = %d, want 1", got)
	}
}
