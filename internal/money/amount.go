// Package money implements the fixed-point amount arithmetic used by the
// betting ledger. Amounts travel as decimal strings in native-currency units;
// internally every operation runs on exact decimals (integer coefficient plus
// exponent, never floats) and results are re-rendered with four fractional
// digits at the display boundary.
package money

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/attnroulette/betledger/internal/domain"
)

// DisplayPlaces is the fixed display precision for amounts.
const DisplayPlaces = 4

// weiDecimals is the native-currency minor-unit exponent (wei per unit).
const weiDecimals = 18

var zero = decimal.Zero

// Parse converts a decimal string into an exact amount. It rejects
// unparseable input and negative values.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return zero, fmt.Errorf("money: parse %q: %w", s, domain.ErrInvalidAmount)
	}
	if d.IsNegative() {
		return zero, fmt.Errorf("money: negative amount %q: %w", s, domain.ErrInvalidAmount)
	}
	return d, nil
}

// Format renders an amount with exactly four fractional digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(DisplayPlaces)
}

// Add returns a+b rendered at display precision.
func Add(a, b string) (string, error) {
	da, err := Parse(a)
	if err != nil {
		return "", err
	}
	db, err := Parse(b)
	if err != nil {
		return "", err
	}
	return Format(da.Add(db)), nil
}

// SubClamped returns a-b rendered at display precision, clamped at zero.
// The ledger never reports a negative balance regardless of input magnitude.
func SubClamped(a, b string) (string, error) {
	da, err := Parse(a)
	if err != nil {
		return "", err
	}
	db, err := Parse(b)
	if err != nil {
		return "", err
	}
	res := da.Sub(db)
	if res.IsNegative() {
		res = zero
	}
	return Format(res), nil
}

// FromWei converts an integer wei quantity to a native-unit decimal.
func FromWei(wei *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(wei, -weiDecimals)
}

// ToWei converts a native-unit decimal string to integer wei. Digits beyond
// the 18th fractional place are truncated.
func ToWei(s string) (*big.Int, error) {
	d, err := Parse(s)
	if err != nil {
		return nil, err
	}
	return d.Shift(weiDecimals).Truncate(0).BigInt(), nil
}

// PoolPercents computes the integer percentage split of the two pools.
// An empty market is an even split, not a divide-by-zero failure. The yes
// share is rounded to the nearest integer and the no share is derived from
// it, so the two always sum to 100.
func PoolPercents(yes, no string) (domain.PoolPercents, error) {
	dy, err := Parse(yes)
	if err != nil {
		return domain.PoolPercents{}, err
	}
	dn, err := Parse(no)
	if err != nil {
		return domain.PoolPercents{}, err
	}

	total := dy.Add(dn)
	if total.IsZero() {
		return domain.PoolPercents{Yes: 50, No: 50}, nil
	}

	yesPct := int(dy.Div(total).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
	return domain.PoolPercents{Yes: yesPct, No: 100 - yesPct}, nil
}
