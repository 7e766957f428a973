package types

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// DefaultDecimals is the number of fractional digits of the stable token.
const DefaultDecimals int32 = 18

// ParseUnits converts a human decimal string such as "11.11" into base units
// with the given number of fractional digits. Negative values and values with
// more precision than decimals allows are rejected.
func ParseUnits(s string, decimals int32) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("types: parse units %q: %w", s, err)
	}
	if d.IsNegative() {
		return Zero, fmt.Errorf("types: parse units %q: negative", s)
	}
	shifted := d.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return Zero, fmt.Errorf("types: parse units %q: more than %d fractional digits", s, decimals)
	}
	return AmountFromBig(shifted.BigInt())
}

// MustParseUnits is ParseUnits with DefaultDecimals that panics on error.
func MustParseUnits(s string) Amount {
	a, err := ParseUnits(s, DefaultDecimals)
	if err != nil {
		panic(err)
	}
	return a
}

// Tokens returns whole tokens expressed in base units at DefaultDecimals.
func Tokens(whole uint64) Amount {
	b := new(big.Int).SetUint64(whole)
	b.Mul(b, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(DefaultDecimals)), nil))
	a, _ := AmountFromBig(b)
	return a
}

// FormatUnits renders a in human units with the given fractional digits,
// dropping trailing zeros.
func FormatUnits(a Amount, decimals int32) string {
	return decimal.NewFromBigInt(a.Big(), -decimals).String()
}

// Decimal returns a as a decimal in human units. Intended for display and
// approximate comparisons, never for ledger arithmetic.
func (a Amount) Decimal(decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(a.Big(), -decimals)
}
