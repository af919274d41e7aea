package domain

import "errors"

// Role is the access level carried in a bearer token.
type Role string

const (
	// RoleAdmin can also reset the cashbox and delete records
	RoleAdmin Role = "admin"

	// RoleOperator posts transactions and records invoices
	RoleOperator Role = "operator"

	// RoleViewer is read-only
	RoleViewer Role = "viewer"
)

// IsValid checks if the role is a valid role
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleOperator, RoleViewer:
		return true
	}
	return false
}

// CanWrite reports whether the role may change ledgers
func (r Role) CanWrite() bool {
	return r == RoleAdmin || r == RoleOperator
}

// Authentication errors
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInsufficientRole = errors.New("insufficient role for this operation")
)
