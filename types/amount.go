package types

import (
	"database/sql/driver"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Amount is an unsigned 256-bit token quantity in the token's smallest unit.
// All arithmetic is integer-only. The zero value is zero.
//
//nolint:recvcheck // Value receivers for arithmetic, pointer receivers for UnmarshalText/Scan.
type Amount struct {
	v uint256.Int
}

// Zero is the zero amount.
var Zero Amount

// NewAmount returns x base units.
func NewAmount(x uint64) Amount {
	var a Amount
	a.v.SetUint64(x)
	return a
}

// AmountFromUint256 copies x into an Amount.
func AmountFromUint256(x *uint256.Int) Amount {
	var a Amount
	if x != nil {
		a.v.Set(x)
	}
	return a
}

// AmountFromBig converts b, failing when it is negative or wider than 256 bits.
func AmountFromBig(b *big.Int) (Amount, error) {
	if b.Sign() < 0 {
		return Zero, fmt.Errorf("types: negative amount %s", b)
	}
	x, overflow := uint256.FromBig(b)
	if overflow {
		return Zero, fmt.Errorf("types: amount %s overflows 256 bits", b)
	}
	return AmountFromUint256(x), nil
}

// ParseAmount parses a base-10 count of base units.
func ParseAmount(s string) (Amount, error) {
	var a Amount
	if err := a.v.SetFromDecimal(s); err != nil {
		return Zero, fmt.Errorf("types: parse amount %q: %w", s, err)
	}
	return a, nil
}

// MustParseAmount is ParseAmount that panics on error.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Uint256 returns a copy of the underlying integer.
func (a Amount) Uint256() *uint256.Int { return a.v.Clone() }

// Big returns the amount as a big.Int.
func (a Amount) Big() *big.Int { return a.v.ToBig() }

// IsZero reports whether a is zero.
func (a Amount) IsZero() bool { return a.v.IsZero() }

// Cmp returns -1, 0 or +1 comparing a with b.
func (a Amount) Cmp(b Amount) int { return a.v.Cmp(&b.v) }

// Eq reports a == b.
func (a Amount) Eq(b Amount) bool { return a.v.Eq(&b.v) }

// Lt reports a < b.
func (a Amount) Lt(b Amount) bool { return a.v.Lt(&b.v) }

// Gt reports a > b.
func (a Amount) Gt(b Amount) bool { return a.v.Gt(&b.v) }

// Add returns a+b and whether the sum overflowed.
func (a Amount) Add(b Amount) (Amount, bool) {
	var r Amount
	_, overflow := r.v.AddOverflow(&a.v, &b.v)
	return r, overflow
}

// Sub returns a-b and whether it underflowed.
func (a Amount) Sub(b Amount) (Amount, bool) {
	var r Amount
	_, underflow := r.v.SubOverflow(&a.v, &b.v)
	return r, underflow
}

// SaturatingSub returns a-b, or zero when b > a.
func (a Amount) SaturatingSub(b Amount) Amount {
	if b.Gt(a) {
		return Zero
	}
	r, _ := a.Sub(b)
	return r
}

// MulDiv returns floor(a·num/den) computed with a 512-bit intermediate.
// den must be non-zero.
func (a Amount) MulDiv(num, den uint64) Amount {
	var r Amount
	n := uint256.NewInt(num)
	d := uint256.NewInt(den)
	r.v.MulDivOverflow(&a.v, n, d)
	return r
}

// Truncate rounds a down to a whole multiple of quantum. A zero quantum
// returns a unchanged.
func (a Amount) Truncate(quantum Amount) Amount {
	if quantum.IsZero() {
		return a
	}
	var r Amount
	r.v.Div(&a.v, &quantum.v)
	r.v.Mul(&r.v, &quantum.v)
	return r
}

// String renders the base-unit count in decimal.
func (a Amount) String() string { return a.v.Dec() }

// MarshalText implements encoding.TextMarshaler as a decimal string, which
// keeps JSON exact for values beyond 2^53.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.v.Dec()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*a = Zero
		return nil
	}
	v, err := ParseAmount(string(data))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Value implements driver.Valuer as a decimal string.
func (a Amount) Value() (driver.Value, error) {
	return a.v.Dec(), nil
}

// Scan implements sql.Scanner.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = Zero
		return nil
	case string:
		return a.UnmarshalText([]byte(v))
	case []byte:
		return a.UnmarshalText(v)
	case int64:
		if v < 0 {
			return fmt.Errorf("types: negative amount %d", v)
		}
		*a = NewAmount(uint64(v))
		return nil
	default:
		return fmt.Errorf("types: cannot scan %T into Amount", src)
	}
}

// Sum adds amounts, reporting overflow.
func Sum(amounts ...Amount) (Amount, bool) {
	var total Amount
	for _, x := range amounts {
		var overflow bool
		total, overflow = total.Add(x)
		if overflow {
			return Zero, true
		}
	}
	return total, false
}
