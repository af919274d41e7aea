package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error produced by the ledger core wraps one of these;
// adapters translate kinds, not individual errors.
var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrAlreadyInitialized = errors.New("already initialized")
	ErrNotInitialized     = errors.New("not initialized")
	ErrConsistency        = errors.New("ledger consistency check failed")
	ErrConflict           = errors.New("conflict")
)

var (
	// Validation errors
	ErrInvalidAmount      = fmt.Errorf("%w: amount must be positive", ErrValidation)
	ErrInvalidMoney       = fmt.Errorf("%w: malformed amount", ErrValidation)
	ErrInvalidEntryType   = fmt.Errorf("%w: transaction type not allowed for this ledger", ErrValidation)
	ErrInvalidDate        = fmt.Errorf("%w: malformed date", ErrValidation)
	ErrInvalidDateRange   = fmt.Errorf("%w: start date is after end date", ErrValidation)
	ErrInvalidOpening     = fmt.Errorf("%w: opening balance cannot be negative", ErrValidation)
	ErrInvalidUnitPrice   = fmt.Errorf("%w: unit price cannot be negative", ErrValidation)
	ErrAmountOutOfRange   = fmt.Errorf("%w: amount out of storable range", ErrValidation)
	ErrResetNotConfirmed  = fmt.Errorf("%w: cashbox reset must be confirmed", ErrValidation)
	ErrInvalidInvoiceKind = fmt.Errorf("%w: invoice kind must be sale or purchase", ErrValidation)
	ErrEmptyInvoice       = fmt.Errorf("%w: invoice has no items", ErrValidation)
	ErrOverpaidInvoice    = fmt.Errorf("%w: paid amount exceeds invoice total", ErrValidation)

	// Lookup errors
	ErrAccountNotFound  = fmt.Errorf("%w: ledger account", ErrNotFound)
	ErrCustomerNotFound = fmt.Errorf("%w: customer", ErrNotFound)
	ErrSupplierNotFound = fmt.Errorf("%w: supplier", ErrNotFound)
	ErrProductNotFound  = fmt.Errorf("%w: product", ErrNotFound)
	ErrInvoiceNotFound  = fmt.Errorf("%w: invoice", ErrNotFound)

	// Cashbox state errors
	ErrCashboxInitialized    = fmt.Errorf("cashbox: %w", ErrAlreadyInitialized)
	ErrCashboxNotInitialized = fmt.Errorf("cashbox: %w", ErrNotInitialized)
	ErrCashboxShort          = fmt.Errorf("%w: withdrawal exceeds cashbox balance", ErrInsufficientFunds)

	// Conflicts
	ErrPartyHasTransactions = fmt.Errorf("%w: party has ledger transactions", ErrConflict)
	ErrInsufficientStock    = fmt.Errorf("%w: not enough stock", ErrConflict)
	ErrDuplicateSKU         = fmt.Errorf("%w: sku already exists", ErrConflict)
	ErrLedgerBusy           = fmt.Errorf("%w: ledger is locked by another writer", ErrConflict)
)

// ConsistencyError reports a ledger whose log and cached balance disagree.
// It is surfaced to the caller and never corrected automatically.
type ConsistencyError struct {
	AccountID string
	Sequence  int64 // first offending entry, 0 when only the cached balance is off
	Cached    Money
	Replayed  Money
	Reason    string
}

func (e *ConsistencyError) Error() string {
	if e.Sequence > 0 {
		return fmt.Sprintf("ledger %s inconsistent at entry #%d: %s", e.AccountID, e.Sequence, e.Reason)
	}
	return fmt.Sprintf("ledger %s inconsistent: cached balance %s, replayed %s", e.AccountID, e.Cached, e.Replayed)
}

func (e *ConsistencyError) Unwrap() error { return ErrConsistency }
