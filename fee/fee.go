// Package fee computes the redemption fee charged on withdrawals.
package fee

import (
	"errors"

	"github.com/xraph/custody/types"
)

// ErrInvalidSchedule is returned by Schedule.Validate.
var ErrInvalidSchedule = errors.New("fee: invalid schedule")

// Schedule is a proportional fee truncated down to whole quanta. A withdrawal
// whose proportional fee is below one quantum pays nothing.
type Schedule struct {
	Numerator   uint64       `json:"numerator" yaml:"numerator" mapstructure:"numerator"`
	Denominator uint64       `json:"denominator" yaml:"denominator" mapstructure:"denominator"`
	Quantum     types.Amount `json:"quantum" yaml:"quantum" mapstructure:"quantum"`
}

// Default is 1.5 % charged in whole cents of an 18-decimal token.
func Default() Schedule {
	return Schedule{
		Numerator:   15,
		Denominator: 1000,
		Quantum:     types.MustParseUnits("0.01"),
	}
}

// Validate requires a positive denominator and a rate of at most 100 %.
func (s Schedule) Validate() error {
	if s.Denominator == 0 || s.Numerator > s.Denominator {
		return ErrInvalidSchedule
	}
	return nil
}

// Compute returns the fee for a withdrawal of amount. The fee never exceeds
// amount.
func (s Schedule) Compute(amount types.Amount) types.Amount {
	if s.Denominator == 0 || s.Numerator == 0 {
		return types.Zero
	}
	return amount.MulDiv(s.Numerator, s.Denominator).Truncate(s.Quantum)
}
