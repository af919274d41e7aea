package domain

import "time"

// Party is a customer or supplier. Its ID is also the ID of its ledger account.
type Party struct {
	ID        string
	Kind      LedgerKind
	Name      string
	Phone     string
	Email     string
	Address   string
	Balance   Money
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PartyProfile holds the editable fields of a party.
type PartyProfile struct {
	Name    string
	Phone   string
	Email   string
	Address string
}

// Validate checks the profile fields.
func (p PartyProfile) Validate() error {
	if err := ValidatePartyName(p.Name); err != nil {
		return err
	}
	if p.Email != "" {
		if err := ValidateEmail(p.Email); err != nil {
			return err
		}
	}
	if p.Phone != "" {
		if err := ValidatePhone(p.Phone); err != nil {
			return err
		}
	}
	return nil
}

// PartyFilter narrows a party listing.
type PartyFilter struct {
	Search string
	Limit  int
	Offset int
}

// DebtFilter selects parties by balance for the debt views.
type DebtFilter struct {
	// Above keeps only balances strictly greater than it; nil keeps every non-zero balance.
	Above *Money
	Limit int
}
