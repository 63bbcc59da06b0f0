// Package money implements the fixed-point currency arithmetic required by
// the ledger: two fractional digits of significance, half-away-from-zero
// rounding for rake, and decimal-string wire encoding.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is a currency value rounded to 2 decimal places at every
// construction point. The zero value is zero money.
type Amount struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Amount{}

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FromCents builds an Amount from an integer count of minor units (cents).
func FromCents(cents int64) Amount {
	return Amount{d: decimal.New(cents, -2)}
}

// Parse reads a decimal string such as "12.50" or "-3.00".
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("money: invalid amount %q: %w", s, err)
	}
	return Amount{d: round2(d)}, nil
}

// MustParse is Parse but panics on error; only for constants in tests.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String renders the amount as a decimal string with exactly 2 fractional
// digits, per the wire encoding of spec §6.
func (a Amount) String() string {
	return a.d.StringFixed(2)
}

func (a Amount) Decimal() decimal.Decimal { return a.d }

// MarshalJSON renders the amount as a quoted decimal string, per the
// amount-as-decimal-string wire convention of spec §6 — never a bare JSON
// number, which would invite float round-trip loss in client languages.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON accepts only a quoted decimal string, matching MarshalJSON.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("money: amount must be a JSON string, got %s", s)
	}
	parsed, err := Parse(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a Amount) Add(b Amount) Amount { return Amount{d: round2(a.d.Add(b.d))} }
func (a Amount) Sub(b Amount) Amount { return Amount{d: round2(a.d.Sub(b.d))} }
func (a Amount) Neg() Amount         { return Amount{d: a.d.Neg()} }

// MulRate multiplies by a dimensionless rate (e.g. a 0.04 rake rate) and
// rounds half-away-from-zero to 2 decimals, per spec §4.6.
func (a Amount) MulRate(rate decimal.Decimal) Amount {
	return Amount{d: roundHalfAwayFromZero(a.d.Mul(rate))}
}

// roundHalfAwayFromZero rounds to 2 decimal places, breaking exact halves
// away from zero (1.005 -> 1.01, -1.005 -> -1.01), unlike banker's rounding.
func roundHalfAwayFromZero(d decimal.Decimal) decimal.Decimal {
	scaled := d.Shift(2)
	floor := scaled.Floor()
	frac := scaled.Sub(floor)
	half := decimal.NewFromFloat(0.5)
	var rounded decimal.Decimal
	switch {
	case d.IsNegative():
		ceil := scaled.Ceil()
		fracNeg := ceil.Sub(scaled)
		if fracNeg.GreaterThanOrEqual(half) {
			rounded = ceil.Sub(decimal.NewFromInt(1))
		} else {
			rounded = ceil
		}
	default:
		if frac.GreaterThanOrEqual(half) {
			rounded = floor.Add(decimal.NewFromInt(1))
		} else {
			rounded = floor
		}
	}
	return rounded.Shift(-2)
}

// MulInt multiplies by a whole number of shares, used by the side-pot
// algorithm's (level - prev) * participant-count step; exact, no rounding.
func (a Amount) MulInt(n int) Amount {
	return Amount{d: round2(a.d.Mul(decimal.NewFromInt(int64(n))))}
}

func (a Amount) IsZero() bool     { return a.d.IsZero() }
func (a Amount) IsNegative() bool { return a.d.IsNegative() }
func (a Amount) IsPositive() bool { return a.d.IsPositive() }

func (a Amount) Cmp(b Amount) int { return a.d.Cmp(b.d) }

func (a Amount) LessThan(b Amount) bool    { return a.d.LessThan(b.d) }
func (a Amount) GreaterThan(b Amount) bool { return a.d.GreaterThan(b.d) }

// Split divides the amount evenly among n shares, returning per-share amounts
// that sum exactly back to the original, with any leftover cent distributed
// one-at-a-time starting from index 0 (the caller orders recipients so index
// 0 is the one who should receive the remainder first, per spec §4.4
// showdown's "earliest-to-act" rule).
func Split(total Amount, n int) []Amount {
	if n <= 0 {
		return nil
	}
	shares := make([]Amount, n)
	cents := total.d.Shift(2).IntPart()
	base := cents / int64(n)
	remainder := cents % int64(n)
	for i := 0; i < n; i++ {
		c := base
		if int64(i) < remainder {
			c++
		}
		shares[i] = FromCents(c)
	}
	return shares
}
