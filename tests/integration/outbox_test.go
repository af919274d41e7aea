package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/storeledger/internal/adapter/repository/postgres"
	"github.com/iho/storeledger/internal/domain"
	"github.com/iho/storeledger/internal/infrastructure/eventpublisher"
	"github.com/iho/storeledger/internal/usecase"
	"github.com/iho/storeledger/tests/testutil"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*domain.OutboxEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event *domain.OutboxEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func TestOutboxEventsArePublishedOnce(t *testing.T) {
	a, db := testutil.NewPostgresApp(t, nil)
	ctx := context.Background()

	party, err := a.Suppliers.Create(ctx, domain.PartyProfile{Name: "Grain Co"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := a.SupplierLedger.Post(ctx, usecase.PostInput{
		AccountID: party.ID, Type: domain.EntryCharge, Amount: domain.MustMoney("75"),
	}); err != nil {
		t.Fatalf("Post: %v", err)
	}

	outbox := postgres.NewOutboxRepository(db.Pool)
	pending, err := outbox.GetUnpublished(ctx, 100)
	if err != nil {
		t.Fatalf("GetUnpublished: %v", err)
	}
	if len(pending) < 2 {
		t.Fatalf("expected party and posting events, got %d", len(pending))
	}

	pub := &recordingPublisher{}
	ep := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: outbox,
		Publisher:  pub,
		Logger:     zerolog.Nop(),
		Interval:   20 * time.Millisecond,
	})

	runCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_ = ep.Start(runCtx)

	if pub.count() != len(pending) {
		t.Fatalf("published %d events, want %d", pub.count(), len(pending))
	}
	left, err := outbox.GetUnpublished(ctx, 100)
	if err != nil || len(left) != 0 {
		t.Fatalf("unpublished after drain = %d, %v", len(left), err)
	}
}
