// Package demurrage implements the decay applied to idle balances.
//
// Decay is computed in 64.64 binary fixed point over 256-bit integers: the
// retention factor (1 - ratio) is raised to the number of chargeable epochs
// by repeated squaring, truncating after every multiplication. The result is
// deterministic across platforms and never uses floating point.
package demurrage

import (
	"errors"
	"time"

	"github.com/holiman/uint256"

	"github.com/xraph/custody/types"
)

// Version identifies the decay algorithm.
const Version = "1.0.0"

const fracBits = 64

// ErrInvalidParameters is returned by Params.Validate.
var ErrInvalidParameters = errors.New("demurrage: invalid parameters")

// Params configures decay.
type Params struct {
	// EpochLength is the duration of one decay period.
	EpochLength time.Duration `json:"epoch_length" yaml:"epoch_length" mapstructure:"epoch_length"`
	// FreeEpochs is the grace window, in epochs, during which no decay applies.
	FreeEpochs uint64 `json:"free_epochs" yaml:"free_epochs" mapstructure:"free_epochs"`
	// Numerator and Denominator give the fraction lost per chargeable epoch.
	Numerator   uint64 `json:"numerator" yaml:"numerator" mapstructure:"numerator"`
	Denominator uint64 `json:"denominator" yaml:"denominator" mapstructure:"denominator"`
}

// DefaultParams returns parameters with a one-day epoch and a zero ratio,
// which disables decay until an administrator configures it.
func DefaultParams() Params {
	return Params{EpochLength: 24 * time.Hour, FreeEpochs: 0, Numerator: 0, Denominator: 1}
}

// Validate checks EpochLength > 0, Denominator > 0 and ratio < 1.
func (p Params) Validate() error {
	switch {
	case p.EpochLength <= 0:
		return errors.Join(ErrInvalidParameters, errors.New("epoch length must be positive"))
	case p.Denominator == 0:
		return errors.Join(ErrInvalidParameters, errors.New("denominator must be positive"))
	case p.Numerator >= p.Denominator:
		return errors.Join(ErrInvalidParameters, errors.New("ratio must be below one"))
	}
	return nil
}

// Disabled reports whether decay can never change a balance.
func (p Params) Disabled() bool {
	return p.Numerator == 0 || p.Denominator == 0 || p.EpochLength <= 0
}

// Epochs returns the number of whole epochs in elapsed. Negative durations
// count as zero.
func (p Params) Epochs(elapsed time.Duration) uint64 {
	if elapsed <= 0 || p.EpochLength <= 0 {
		return 0
	}
	return uint64(elapsed / p.EpochLength)
}

// ChargeableEpochs returns the epochs in elapsed beyond the free window.
func (p Params) ChargeableEpochs(elapsed time.Duration) uint64 {
	n := p.Epochs(elapsed)
	if n <= p.FreeEpochs {
		return 0
	}
	return n - p.FreeEpochs
}

// Decay returns balance after elapsed time under p.
//
// With n = floor(elapsed/EpochLength): if n <= FreeEpochs the balance is
// returned unchanged, otherwise floor(balance * (1-ratio)^(n-FreeEpochs)).
func Decay(balance types.Amount, elapsed time.Duration, p Params) types.Amount {
	if balance.IsZero() || p.Disabled() {
		return balance
	}
	return decayBy(balance, p.ChargeableEpochs(elapsed), p)
}

// Apply settles elapsed time against balance. It returns the decayed balance
// and the part of elapsed that was charged, which is always a whole number of
// chargeable epochs. The remainder, free window included, is left for the
// next settlement so that settling often decays exactly as much as settling
// once.
//
// Time is consumed even when the ratio is zero, so enabling decay later only
// charges epochs that start after the switch.
func Apply(balance types.Amount, elapsed time.Duration, p Params) (types.Amount, time.Duration) {
	k := p.ChargeableEpochs(elapsed)
	if k == 0 {
		return balance, 0
	}
	return decayBy(balance, k, p), time.Duration(k) * p.EpochLength
}

func decayBy(balance types.Amount, k uint64, p Params) types.Amount {
	if k == 0 || balance.IsZero() || p.Disabled() {
		return balance
	}
	f := Factor(k, p)
	var out uint256.Int
	out.MulDivOverflow(balance.Uint256(), f, one())
	return types.AmountFromUint256(&out)
}

// Factor returns (1-ratio)^k as a 64.64 fixed-point value.
func Factor(k uint64, p Params) *uint256.Int {
	result := one()
	if p.Disabled() || k == 0 {
		return result
	}

	// base = 1 - num/den, with the ratio truncated to 64 fractional bits.
	ratio := new(uint256.Int).Lsh(uint256.NewInt(p.Numerator), fracBits)
	ratio.Div(ratio, uint256.NewInt(p.Denominator))
	base := new(uint256.Int).Sub(one(), ratio)

	for k > 0 {
		if k&1 == 1 {
			result.Mul(result, base)
			result.Rsh(result, fracBits)
		}
		k >>= 1
		if k == 0 || result.IsZero() {
			break
		}
		base.Mul(base, base)
		base.Rsh(base, fracBits)
	}
	return result
}

func one() *uint256.Int {
	return new(uint256.Int).Lsh(uint256.NewInt(1), fracBits)
}
