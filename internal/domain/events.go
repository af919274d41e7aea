package domain

import "time"

// Event types
const (
	EventTypeLedgerPosted       = "ledger.posted"
	EventTypeCashboxInitialized = "cashbox.initialized"
	EventTypeCashboxReset       = "cashbox.reset"
	EventTypePartyCreated       = "party.created"
	EventTypePartyDeleted       = "party.deleted"
	EventTypeInvoiceRecorded    = "invoice.recorded"
)

// Aggregate types
const (
	AggregateTypeLedger  = "ledger"
	AggregateTypeParty   = "party"
	AggregateTypeInvoice = "invoice"
)

// OutboxEvent is written in the same transaction as the change it describes
// and published later by the outbox poller.
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// NewLedgerPostedEvent builds the outbox record for a posted entry.
func NewLedgerPostedEvent(id string, e *Entry) *OutboxEvent {
	return &OutboxEvent{
		ID:            id,
		AggregateID:   e.AccountID,
		AggregateType: AggregateTypeLedger,
		EventType:     EventTypeLedgerPosted,
		Payload: map[string]any{
			"entry_id":      e.ID,
			"account_id":    e.AccountID,
			"kind":          string(e.Kind),
			"type":          string(e.Type),
			"amount":        e.Amount.String(),
			"balance_after": e.BalanceAfter.String(),
			"sequence":      e.Sequence,
			"occurred_at":   e.OccurredAt.Format(time.RFC3339),
		},
		CreatedAt: e.CreatedAt,
	}
}

// NewCashboxEvent builds the outbox record for a cashbox lifecycle change.
func NewCashboxEvent(id, eventType string, a *Account) *OutboxEvent {
	return &OutboxEvent{
		ID:            id,
		AggregateID:   a.ID,
		AggregateType: AggregateTypeLedger,
		EventType:     eventType,
		Payload: map[string]any{
			"account_id":      a.ID,
			"opening_balance": a.OpeningBalance.String(),
		},
		CreatedAt: a.UpdatedAt,
	}
}

// NewPartyEvent builds the outbox record for a party change.
func NewPartyEvent(id, eventType string, p *Party, now time.Time) *OutboxEvent {
	return &OutboxEvent{
		ID:            id,
		AggregateID:   p.ID,
		AggregateType: AggregateTypeParty,
		EventType:     eventType,
		Payload: map[string]any{
			"party_id": p.ID,
			"kind":     string(p.Kind),
			"name":     p.Name,
		},
		CreatedAt: now,
	}
}

// NewInvoiceEvent builds the outbox record for a recorded invoice.
func NewInvoiceEvent(id string, inv *Invoice) *OutboxEvent {
	return &OutboxEvent{
		ID:            id,
		AggregateID:   inv.ID,
		AggregateType: AggregateTypeInvoice,
		EventType:     EventTypeInvoiceRecorded,
		Payload: map[string]any{
			"invoice_id": inv.ID,
			"kind":       string(inv.Kind),
			"party_id":   inv.PartyID,
			"total":      inv.Total.String(),
			"paid":       inv.Paid.String(),
		},
		CreatedAt: inv.CreatedAt,
	}
}
