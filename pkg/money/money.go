// Package money provides exact-decimal amount and quantity values.
// Floating point never enters a calculation: values are parsed from strings
// or built from integers and multiplied in decimal arithmetic.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is a currency value in rubles.
type Amount struct {
	d decimal.Decimal
}

// Quantity is a count of billed units. It may be fractional (e.g. 1.5 hours).
type Quantity struct {
	d decimal.Decimal
}

// ParseAmount parses a decimal string such as "25000.00".
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Amount{d: d}, nil
}

// MustAmount is like ParseAmount but panics on malformed input.
// Intended for constants and tests.
func MustAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AmountFromInt returns an Amount of v whole rubles.
func AmountFromInt(v int64) Amount {
	return Amount{d: decimal.NewFromInt(v)}
}

// AmountFromDecimal wraps an existing decimal value.
func AmountFromDecimal(d decimal.Decimal) Amount {
	return Amount{d: d}
}

// Decimal returns the underlying decimal value.
func (a Amount) Decimal() decimal.Decimal { return a.d }

// IsPositive reports whether a > 0.
func (a Amount) IsPositive() bool { return a.d.Sign() > 0 }

// IsZero reports whether a == 0.
func (a Amount) IsZero() bool { return a.d.Sign() == 0 }

// Add returns a + b.
func (a Amount) Add(b Amount) Amount { return Amount{d: a.d.Add(b.d)} }

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount { return Amount{d: a.d.Sub(b.d)} }

// Neg returns -a.
func (a Amount) Neg() Amount { return Amount{d: a.d.Neg()} }

// Mul returns a × q.
func (a Amount) Mul(q Quantity) Amount { return Amount{d: a.d.Mul(q.d)} }

// Equal reports whether a and b are numerically equal ("5000" equals "5000.00").
func (a Amount) Equal(b Amount) bool { return a.d.Equal(b.d) }

// GreaterThan reports whether a > b.
func (a Amount) GreaterThan(b Amount) bool { return a.d.GreaterThan(b.d) }

// String returns the shortest exact representation.
func (a Amount) String() string { return a.d.String() }

// StringFixed returns the amount with exactly two fractional digits (kopecks).
func (a Amount) StringFixed() string { return a.d.StringFixed(2) }

// MarshalJSON encodes the amount as a bare JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.d.String()), nil
}

// UnmarshalJSON accepts both JSON numbers and quoted decimal strings.
func (a *Amount) UnmarshalJSON(data []byte) error {
	return a.d.UnmarshalJSON(data)
}

// Sum adds up amounts. An empty input yields zero.
func Sum(amounts ...Amount) Amount {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a.d)
	}
	return Amount{d: total}
}

// ParseQuantity parses a decimal string such as "1" or "1.5".
func ParseQuantity(s string) (Quantity, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Quantity{}, fmt.Errorf("invalid quantity %q: %w", s, err)
	}
	return Quantity{d: d}, nil
}

// MustQuantity is like ParseQuantity but panics on malformed input.
func MustQuantity(s string) Quantity {
	q, err := ParseQuantity(s)
	if err != nil {
		panic(err)
	}
	return q
}

// QuantityFromInt returns a Quantity of v units.
func QuantityFromInt(v int64) Quantity {
	return Quantity{d: decimal.NewFromInt(v)}
}

// QuantityFromDecimal wraps an existing decimal value.
func QuantityFromDecimal(d decimal.Decimal) Quantity {
	return Quantity{d: d}
}

// Decimal returns the underlying decimal value.
func (q Quantity) Decimal() decimal.Decimal { return q.d }

// IsPositive reports whether q > 0.
func (q Quantity) IsPositive() bool { return q.d.Sign() > 0 }

// Equal reports whether q and o are numerically equal.
func (q Quantity) Equal(o Quantity) bool { return q.d.Equal(o.d) }

func (q Quantity) String() string { return q.d.String() }

// MarshalJSON encodes the quantity as a bare JSON number.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return []byte(q.d.String()), nil
}

// UnmarshalJSON accepts both JSON numbers and quoted decimal strings.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	return q.d.UnmarshalJSON(data)
}
