package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Validation errors
var (
	ErrInvalidName    = fmt.Errorf("%w: invalid name", ErrValidation)
	ErrInvalidEmail   = fmt.Errorf("%w: invalid email format", ErrValidation)
	ErrInvalidPhone   = fmt.Errorf("%w: invalid phone number", ErrValidation)
	ErrAmountTooLarge = fmt.Errorf("%w: amount exceeds maximum allowed", ErrValidation)
	ErrNoteTooLong    = fmt.Errorf("%w: description too long", ErrValidation)
)

// Validation constants
const (
	MaxNameLength        = 255
	MaxDescriptionLength = 1000
	MaxPostingAmount     = "1000000000000" // 1 trillion
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phoneRegex = regexp.MustCompile(`^\+?[0-9 ()-]{5,20}$`)

	maxPostingAmount = MustMoney(MaxPostingAmount)
)

// ValidatePartyName validates a customer or supplier name
func ValidatePartyName(name string) error {
	name = strings.TrimSpace(name)

	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}

	if utf8.RuneCountInString(name) > MaxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, MaxNameLength)
	}

	return nil
}

// ValidateProductName validates a product name
func ValidateProductName(name string) error {
	return ValidatePartyName(name)
}

// ValidatePostingAmount validates the amount of a single posting
func ValidatePostingAmount(amount Money) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	if amount.GreaterThan(maxPostingAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrAmountTooLarge, MaxPostingAmount)
	}

	return nil
}

// ValidateOpeningBalance validates a cashbox opening balance
func ValidateOpeningBalance(opening Money) error {
	if opening.IsNegative() {
		return ErrInvalidOpening
	}
	if opening.GreaterThan(maxPostingAmount) {
		return fmt.Errorf("%w: maximum opening balance is %s", ErrAmountTooLarge, MaxPostingAmount)
	}
	return nil
}

// ValidateUnitPrice validates a product or invoice line price
func ValidateUnitPrice(price Money) error {
	if price.IsNegative() {
		return ErrInvalidUnitPrice
	}
	if price.GreaterThan(maxPostingAmount) {
		return fmt.Errorf("%w: maximum unit price is %s", ErrAmountTooLarge, MaxPostingAmount)
	}
	return nil
}

// ValidateDescription validates a posting description or note
func ValidateDescription(s string) error {
	if utf8.RuneCountInString(s) > MaxDescriptionLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrNoteTooLong, MaxDescriptionLength)
	}
	return nil
}

// ValidateEmail validates email format
func ValidateEmail(email string) error {
	email = strings.TrimSpace(strings.ToLower(email))

	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}

	return nil
}

// ValidatePhone validates a phone number
func ValidatePhone(phone string) error {
	if !phoneRegex.MatchString(strings.TrimSpace(phone)) {
		return ErrInvalidPhone
	}
	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int) {
	const MaxPageSize = 1000
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset
}
