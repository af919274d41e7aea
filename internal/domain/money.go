package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits kept for every amount.
const MoneyScale = 2

// Money is a signed fixed-point amount with MoneyScale fractional digits.
// All ledger arithmetic goes through Money; amounts never pass through float64.
type Money struct {
	d decimal.Decimal
}

// ZeroMoney is the zero amount. The zero value of Money is also zero.
var ZeroMoney = Money{}

// NewMoney rounds d to MoneyScale places, half away from zero.
func NewMoney(d decimal.Decimal) Money {
	return Money{d: d.Round(MoneyScale)}
}

// MoneyFromInt returns a whole amount.
func MoneyFromInt(v int64) Money {
	return Money{d: decimal.NewFromInt(v)}
}

// MoneyFromCents returns the amount represented by c minor units.
func MoneyFromCents(c int64) Money {
	return Money{d: decimal.New(c, -MoneyScale)}
}

// MoneyFromString parses a decimal string such as "12.345" or "-3".
func MoneyFromString(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidMoney, s)
	}
	return NewMoney(d), nil
}

// MustMoney is MoneyFromString for constants and tests.
func MustMoney(s string) Money {
	m, err := MoneyFromString(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Decimal returns the underlying decimal value.
func (m Money) Decimal() decimal.Decimal { return m.d }

var (
	minCents = decimal.NewFromInt(math.MinInt64)
	maxCents = decimal.NewFromInt(math.MaxInt64)
)

// Cents returns the amount in minor units. Amounts whose minor units do not
// fit in an int64 yield ErrAmountOutOfRange.
func (m Money) Cents() (int64, error) {
	c := m.d.Shift(MoneyScale)
	if c.LessThan(minCents) || c.GreaterThan(maxCents) {
		return 0, fmt.Errorf("%w: %s", ErrAmountOutOfRange, m)
	}
	return c.IntPart(), nil
}

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }
func (m Money) Neg() Money        { return Money{d: m.d.Neg()} }
func (m Money) Abs() Money        { return Money{d: m.d.Abs()} }

// MulInt multiplies by a whole quantity.
func (m Money) MulInt(n int64) Money {
	return Money{d: m.d.Mul(decimal.NewFromInt(n))}
}

// Cmp returns -1, 0 or 1.
func (m Money) Cmp(o Money) int              { return m.d.Cmp(o.d) }
func (m Money) Equal(o Money) bool           { return m.d.Equal(o.d) }
func (m Money) GreaterThan(o Money) bool     { return m.d.GreaterThan(o.d) }
func (m Money) LessThan(o Money) bool        { return m.d.LessThan(o.d) }
func (m Money) LessThanOrEqual(o Money) bool { return m.d.LessThanOrEqual(o.d) }
func (m Money) IsZero() bool                 { return m.d.IsZero() }
func (m Money) IsPositive() bool             { return m.d.IsPositive() }
func (m Money) IsNegative() bool             { return m.d.IsNegative() }

// Sum adds all amounts.
func Sum(amounts ...Money) Money {
	total := ZeroMoney
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// String renders the amount with exactly MoneyScale decimals, e.g. "-1250.50".
func (m Money) String() string {
	return m.d.StringFixed(MoneyScale)
}

// FormatOptions controls Format.
type FormatOptions struct {
	Thousands   string // group separator, empty for none
	Symbol      string
	SymbolAfter bool
}

// Format renders the amount for display, e.g. "$1,250.50" or "-1 250.50 EGP".
func (m Money) Format(opts FormatOptions) string {
	digits := m.Abs().String()
	intPart, frac, _ := strings.Cut(digits, ".")

	if opts.Thousands != "" && len(intPart) > 3 {
		var b strings.Builder
		lead := len(intPart) % 3
		if lead > 0 {
			b.WriteString(intPart[:lead])
		}
		for i := lead; i < len(intPart); i += 3 {
			if b.Len() > 0 {
				b.WriteString(opts.Thousands)
			}
			b.WriteString(intPart[i : i+3])
		}
		intPart = b.String()
	}

	out := intPart + "." + frac
	switch {
	case opts.Symbol == "":
	case opts.SymbolAfter:
		out = out + " " + opts.Symbol
	default:
		out = opts.Symbol + out
	}

	if m.IsNegative() {
		out = "-" + out
	}
	return out
}

// MarshalJSON encodes the amount as a JSON number with fixed decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string. The raw
// text is parsed as a decimal, so the value is never rounded through float64.
func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == "" {
		*m = ZeroMoney
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidMoney, s)
		}
		s = unquoted
	}

	parsed, err := MoneyFromString(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
