package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/iho/storeledger/internal/domain"
)

// PartyUseCase manages customers or suppliers together with their ledger accounts.
type PartyUseCase struct {
	kind        domain.LedgerKind
	txManager   TransactionManager
	partyRepo   PartyRepository
	accountRepo AccountRepository
	entryRepo   EntryRepository
	invoiceRepo InvoiceRepository
	outboxRepo  OutboxRepository
	idGen       IDGenerator
	opts        Options
}

// NewPartyUseCase creates a new PartyUseCase.
func NewPartyUseCase(
	kind domain.LedgerKind,
	txManager TransactionManager,
	partyRepo PartyRepository,
	accountRepo AccountRepository,
	entryRepo EntryRepository,
	invoiceRepo InvoiceRepository,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	opts Options,
) *PartyUseCase {
	return &PartyUseCase{
		kind:        kind,
		txManager:   txManager,
		partyRepo:   partyRepo,
		accountRepo: accountRepo,
		entryRepo:   entryRepo,
		invoiceRepo: invoiceRepo,
		outboxRepo:  outboxRepo,
		idGen:       idGen,
		opts:        opts.withDefaults(),
	}
}

// Create adds a party with a zero-balance ledger.
func (uc *PartyUseCase) Create(ctx context.Context, profile domain.PartyProfile) (*domain.Party, error) {
	profile = normalizeProfile(profile)
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	now := uc.opts.now()
	party := &domain.Party{
		ID:        uc.idGen.Generate(),
		Kind:      uc.kind,
		Name:      profile.Name,
		Phone:     profile.Phone,
		Email:     profile.Email,
		Address:   profile.Address,
		Balance:   domain.ZeroMoney,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := uc.accountRepo.Create(txCtx, tx, domain.NewPartyAccount(party.ID, uc.kind, now)); err != nil {
		return nil, err
	}
	if err := uc.partyRepo.Create(txCtx, tx, party); err != nil {
		return nil, err
	}
	event := domain.NewPartyEvent(uc.idGen.Generate(), domain.EventTypePartyCreated, party, now)
	if err := uc.outboxRepo.Create(txCtx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	return party, nil
}

// Get retrieves a party with its current balance.
func (uc *PartyUseCase) Get(ctx context.Context, id string) (*domain.Party, error) {
	party, err := uc.partyRepo.GetByID(ctx, uc.kind, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, uc.kind.NotFound()
	}
	return party, err
}

// List lists parties by name, optionally filtered by a search term.
func (uc *PartyUseCase) List(ctx context.Context, filter domain.PartyFilter) ([]*domain.Party, error) {
	filter.Limit, filter.Offset = domain.ValidatePagination(filter.Limit, filter.Offset)
	filter.Search = strings.TrimSpace(filter.Search)
	return uc.partyRepo.List(ctx, uc.kind, filter)
}

// UpdateProfile replaces the editable fields. The balance is never touched here.
func (uc *PartyUseCase) UpdateProfile(ctx context.Context, id string, profile domain.PartyProfile) (*domain.Party, error) {
	profile = normalizeProfile(profile)
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	party, err := uc.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	party.Name = profile.Name
	party.Phone = profile.Phone
	party.Email = profile.Email
	party.Address = profile.Address
	party.UpdatedAt = uc.opts.now()

	if err := uc.partyRepo.Update(ctx, party); err != nil {
		return nil, err
	}
	return party, nil
}

// Delete removes a party. A party with ledger entries is only removed with
// cascade, which also drops its log and invoices.
func (uc *PartyUseCase) Delete(ctx context.Context, id string, cascade bool) error {
	party, err := uc.Get(ctx, id)
	if err != nil {
		return err
	}

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	// Lock the ledger so no posting lands between the count and the delete.
	if _, err := uc.accountRepo.GetByIDForUpdate(txCtx, tx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return uc.kind.NotFound()
		}
		return err
	}

	count, err := uc.entryRepo.CountByAccount(txCtx, tx, id)
	if err != nil {
		return err
	}
	if count > 0 && !cascade {
		return domain.ErrPartyHasTransactions
	}

	if count > 0 {
		if _, err := uc.entryRepo.DeleteByAccount(txCtx, tx, id); err != nil {
			return err
		}
		if err := uc.invoiceRepo.DeleteByParty(txCtx, tx, id); err != nil {
			return err
		}
	}
	if err := uc.partyRepo.Delete(txCtx, tx, id); err != nil {
		return err
	}
	if err := uc.accountRepo.Delete(txCtx, tx, id); err != nil {
		return err
	}

	now := uc.opts.now()
	event := domain.NewPartyEvent(uc.idGen.Generate(), domain.EventTypePartyDeleted, party, now)
	event.Payload["cascade"] = cascade
	event.Payload["entries_deleted"] = count
	if err := uc.outboxRepo.Create(txCtx, tx, event); err != nil {
		return err
	}

	if err := tx.Commit(txCtx); err != nil {
		return err
	}

	uc.opts.Logger.Info().
		Str("kind", string(uc.kind)).
		Str("party_id", id).
		Int64("entries_deleted", count).
		Msg("party deleted")

	return nil
}

func normalizeProfile(p domain.PartyProfile) domain.PartyProfile {
	return domain.PartyProfile{
		Name:    strings.TrimSpace(p.Name),
		Phone:   strings.TrimSpace(p.Phone),
		Email:   strings.TrimSpace(p.Email),
		Address: strings.TrimSpace(p.Address),
	}
}
