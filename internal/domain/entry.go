package domain

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Entry is one immutable posting in a ledger's append-only log.
type Entry struct {
	CreatedAt     time.Time
	OccurredAt    time.Time
	ID            string
	AccountID     string
	Kind          LedgerKind
	Type          EntryType
	Description   string
	Amount        Money
	BalanceBefore Money
	BalanceAfter  Money
	Sequence      int64
}

// Delta is the signed change the entry makes to its account balance.
func (e *Entry) Delta() Money {
	if e.Type.Increases() {
		return e.Amount
	}
	return e.Amount.Neg()
}

// Validate checks that the entry's own balance fields agree with its amount.
func (e *Entry) Validate() error {
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !e.BalanceAfter.Sub(e.BalanceBefore).Equal(e.Delta()) {
		return fmt.Errorf("balance moved by %s, expected %s",
			e.BalanceAfter.Sub(e.BalanceBefore), e.Delta())
	}
	return nil
}

// SortBySequence orders entries in place by ascending sequence.
func SortBySequence(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Sequence < entries[j].Sequence
	})
}

// Replay walks a sequence-ordered log from the opening balance and returns the
// resulting balance. Every entry must continue the chain left by the previous
// one; the first broken link is reported as a *ConsistencyError.
func Replay(accountID string, opening Money, entries []*Entry) (Money, error) {
	balance := opening
	var prev int64

	for _, e := range entries {
		if e.Sequence <= prev {
			return balance, &ConsistencyError{
				AccountID: accountID, Sequence: e.Sequence,
				Reason: fmt.Sprintf("sequence %d follows %d", e.Sequence, prev),
			}
		}
		if !e.BalanceBefore.Equal(balance) {
			return balance, &ConsistencyError{
				AccountID: accountID, Sequence: e.Sequence,
				Reason: fmt.Sprintf("balance before is %s, chain is at %s", e.BalanceBefore, balance),
			}
		}
		if err := e.Validate(); err != nil {
			return balance, &ConsistencyError{
				AccountID: accountID, Sequence: e.Sequence, Reason: err.Error(),
			}
		}
		balance = balance.Add(e.Delta())
		prev = e.Sequence
	}

	return balance, nil
}

// CheckAccount replays the log and compares the result with the cached balance.
func CheckAccount(account *Account, entries []*Entry) (Money, error) {
	replayed, err := Replay(account.ID, account.OpeningBalance, entries)
	if err != nil {
		var ce *ConsistencyError
		if errors.As(err, &ce) {
			ce.Cached = account.Balance
			ce.Replayed = replayed
		}
		return replayed, err
	}
	if !replayed.Equal(account.Balance) {
		return replayed, &ConsistencyError{
			AccountID: account.ID,
			Cached:    account.Balance,
			Replayed:  replayed,
		}
	}
	return replayed, nil
}

// EntryFilter narrows a log query. From and To bound OccurredAt as a
// half-open interval. A non-nil MaxSequence caps the log at a known version;
// zero means no entries at all.
type EntryFilter struct {
	From        *time.Time
	To          *time.Time
	MaxSequence *int64
	// Limit keeps only the most recent entries; results stay in ascending order.
	Limit int
}

// UpToSequence caps a log query at version seq.
func UpToSequence(seq int64) *int64 {
	return &seq
}
