package domain

import (
	"fmt"
	"time"
)

// LedgerKind identifies which of the three ledgers an account belongs to.
type LedgerKind string

const (
	LedgerCustomer LedgerKind = "customer"
	LedgerSupplier LedgerKind = "supplier"
	LedgerCashbox  LedgerKind = "cashbox"
)

// CashboxID is the id of the singleton cashbox account.
const CashboxID = "main"

// IsValid reports whether k is a known ledger kind.
func (k LedgerKind) IsValid() bool {
	switch k {
	case LedgerCustomer, LedgerSupplier, LedgerCashbox:
		return true
	}
	return false
}

// IsParty reports whether accounts of this kind belong to a customer or supplier.
func (k LedgerKind) IsParty() bool {
	return k == LedgerCustomer || k == LedgerSupplier
}

// Allows reports whether an entry of type t may be posted to a ledger of kind k.
func (k LedgerKind) Allows(t EntryType) bool {
	switch k {
	case LedgerCustomer, LedgerSupplier:
		return t == EntryCharge || t == EntryPayment
	case LedgerCashbox:
		return t == EntryDeposit || t == EntryWithdrawal
	}
	return false
}

// NotFound returns the lookup error for a missing account of this kind.
func (k LedgerKind) NotFound() error {
	switch k {
	case LedgerCustomer:
		return ErrCustomerNotFound
	case LedgerSupplier:
		return ErrSupplierNotFound
	}
	return ErrAccountNotFound
}

// EntryType is the kind of a single ledger posting.
type EntryType string

const (
	EntryCharge     EntryType = "charge"
	EntryPayment    EntryType = "payment"
	EntryDeposit    EntryType = "deposit"
	EntryWithdrawal EntryType = "withdrawal"
)

// Increases reports whether the entry type adds to the balance.
func (t EntryType) Increases() bool {
	return t == EntryCharge || t == EntryDeposit
}

// Account is the cached-balance row of one ledger. Balance always equals the
// opening balance plus the signed sum of the account's entries.
type Account struct {
	ID             string
	Kind           LedgerKind
	Balance        Money
	OpeningBalance Money
	Version        int64
	Initialized    bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewPartyAccount returns the zero-balance ledger account of a customer or supplier.
func NewPartyAccount(id string, kind LedgerKind, now time.Time) *Account {
	return &Account{
		ID:          id,
		Kind:        kind,
		Initialized: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// AllowsNegativeBalance is false only for the cashbox.
func (a *Account) AllowsNegativeBalance() bool {
	return a.Kind != LedgerCashbox
}

// ValidatePosting checks an entry against the account without changing it.
func (a *Account) ValidatePosting(t EntryType, amount Money) error {
	if !a.Kind.Allows(t) {
		return fmt.Errorf("%w: %q on %s ledger", ErrInvalidEntryType, t, a.Kind)
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !a.Initialized {
		return ErrCashboxNotInitialized
	}
	if !t.Increases() && !a.AllowsNegativeBalance() && amount.GreaterThan(a.Balance) {
		return fmt.Errorf("%w: balance %s, requested %s", ErrCashboxShort, a.Balance, amount)
	}
	return nil
}

// Apply returns the balance after posting amount with type t.
func (a *Account) Apply(t EntryType, amount Money) (Money, error) {
	if err := a.ValidatePosting(t, amount); err != nil {
		return a.Balance, err
	}
	if t.Increases() {
		return a.Balance.Add(amount), nil
	}
	return a.Balance.Sub(amount), nil
}

// Posting describes an entry to append to an account.
type Posting struct {
	ID          string
	Type        EntryType
	Amount      Money
	Description string
	OccurredAt  time.Time
	CreatedAt   time.Time
}

// Post appends p to the account: it builds the entry with the balance chain
// filled in and advances Balance and Version. On error the account is untouched.
func (a *Account) Post(p Posting) (*Entry, error) {
	after, err := a.Apply(p.Type, p.Amount)
	if err != nil {
		return nil, err
	}

	occurred := p.OccurredAt
	if occurred.IsZero() {
		occurred = p.CreatedAt
	}

	entry := &Entry{
		ID:            p.ID,
		AccountID:     a.ID,
		Kind:          a.Kind,
		Sequence:      a.Version + 1,
		Type:          p.Type,
		Amount:        p.Amount,
		BalanceBefore: a.Balance,
		BalanceAfter:  after,
		Description:   p.Description,
		OccurredAt:    occurred,
		CreatedAt:     p.CreatedAt,
	}

	a.Balance = after
	a.Version = entry.Sequence
	a.UpdatedAt = p.CreatedAt
	return entry, nil
}

// Initialize seeds an uninitialized cashbox with its opening balance.
func (a *Account) Initialize(opening Money, now time.Time) error {
	if a.Initialized {
		return ErrCashboxInitialized
	}
	if err := ValidateOpeningBalance(opening); err != nil {
		return err
	}
	a.OpeningBalance = opening
	a.Balance = opening
	a.Version = 0
	a.Initialized = true
	a.UpdatedAt = now
	return nil
}

// Reset returns a cashbox to the uninitialized state.
func (a *Account) Reset(now time.Time) {
	a.OpeningBalance = ZeroMoney
	a.Balance = ZeroMoney
	a.Version = 0
	a.Initialized = false
	a.UpdatedAt = now
}
