package demurrage_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/xraph/custody/demurrage"
	"github.com/xraph/custody/types"
)

const day = 24 * time.Hour

func onePercent(free uint64) demurrage.Params {
	return demurrage.Params{EpochLength: day, FreeEpochs: free, Numerator: 1, Denominator: 100}
}

func TestDecayMatchesClosedForm(t *testing.T) {
	tests := []struct {
		name    string
		epochs  int
		free    uint64
		balance string
	}{
		{"10 epochs, 1 free", 10, 1, "90"},
		{"100 epochs, 28 free", 100, 28, "90"},
		{"2 epochs, 0 free", 2, 0, "1000"},
		{"365 epochs, 30 free", 365, 30, "12345.678"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := onePercent(tt.free)
			bal := types.MustParseUnits(tt.balance)
			got := demurrage.Decay(bal, time.Duration(tt.epochs)*day, p).Decimal(types.DefaultDecimals).InexactFloat64()

			start := bal.Decimal(types.DefaultDecimals).InexactFloat64()
			want := start * math.Pow(0.99, float64(uint64(tt.epochs)-tt.free))
			if math.Abs(got-want) > want*1e-12 {
				t.Errorf("got %.12f, want %.12f", got, want)
			}
		})
	}
}

func TestDecayScenario(t *testing.T) {
	got := demurrage.Decay(types.Tokens(90), 10*day, onePercent(1)).Decimal(types.DefaultDecimals).InexactFloat64()
	if got < 82.2165 || got > 82.2166 {
		t.Errorf("90 after 10 epochs: got %f", got)
	}
}

func TestDecayIdentities(t *testing.T) {
	bal := types.Tokens(50)
	tests := []struct {
		name    string
		elapsed time.Duration
		params  demurrage.Params
	}{
		{"zero elapsed", 0, onePercent(0)},
		{"negative elapsed", -5 * day, onePercent(0)},
		{"zero ratio", 1000 * day, demurrage.Params{EpochLength: day, Numerator: 0, Denominator: 100}},
		{"inside free window", 7 * day, onePercent(7)},
		{"partial epoch", 23 * time.Hour, onePercent(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := demurrage.Decay(bal, tt.elapsed, tt.params); !got.Eq(bal) {
				t.Errorf("got %s, want %s", got, bal)
			}
		})
	}
}

func TestDecayMonotone(t *testing.T) {
	p := onePercent(2)
	bal := types.Tokens(1000)
	prev := bal
	for e := 0; e <= 400; e++ {
		got := demurrage.Decay(bal, time.Duration(e)*day, p)
		if got.Gt(prev) {
			t.Fatalf("epoch %d: %s > previous %s", e, got, prev)
		}
		if got.Gt(bal) {
			t.Fatalf("epoch %d: decayed above balance", e)
		}
		prev = got
	}
}

func TestDecaySaturatesToZero(t *testing.T) {
	p := demurrage.Params{EpochLength: time.Nanosecond, Numerator: 1, Denominator: 2}
	got := demurrage.Decay(types.Tokens(1), time.Duration(math.MaxInt64), p)
	if !got.IsZero() {
		t.Errorf("expected zero after astronomically many epochs, got %s", got)
	}
}

func TestApplyConsumesWholeChargeableEpochs(t *testing.T) {
	tests := []struct {
		name     string
		elapsed  time.Duration
		params   demurrage.Params
		consumed time.Duration
	}{
		{"inside free window", 36 * time.Hour, onePercent(1), 0},
		{"partial epoch", 23 * time.Hour, onePercent(0), 0},
		{"remainder kept", 10*day + 5*time.Hour, onePercent(1), 9 * day},
		{"zero ratio still consumes", 3 * day, demurrage.Params{EpochLength: day, Denominator: 100}, 3 * day},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bal := types.Tokens(90)
			got, consumed := demurrage.Apply(bal, tt.elapsed, tt.params)
			if consumed != tt.consumed {
				t.Errorf("consumed %s, want %s", consumed, tt.consumed)
			}
			if want := demurrage.Decay(bal, tt.elapsed, tt.params); !got.Eq(want) {
				t.Errorf("apply %s != decay %s", got, want)
			}
		})
	}
}

func TestApplyIsPathIndependent(t *testing.T) {
	for _, free := range []uint64{0, 1, 3} {
		p := onePercent(free)
		bal := types.Tokens(90)
		var pending time.Duration
		for step := 0; step < 10; step++ {
			pending += 23 * time.Hour
			var consumed time.Duration
			bal, consumed = demurrage.Apply(bal, pending, p)
			pending -= consumed
		}

		got := bal.Decimal(types.DefaultDecimals).InexactFloat64()
		want := demurrage.Decay(types.Tokens(90), 230*time.Hour, p).Decimal(types.DefaultDecimals).InexactFloat64()
		if math.Abs(got-want) > want*1e-12 {
			t.Errorf("free=%d: stepped %.12f, idle %.12f", free, got, want)
		}
	}
}

func TestFactorIsDeterministic(t *testing.T) {
	p := onePercent(0)
	a := demurrage.Factor(12345, p)
	b := demurrage.Factor(12345, p)
	if !a.Eq(b) {
		t.Error("factor differs between calls")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		params demurrage.Params
		ok     bool
	}{
		{"default", demurrage.DefaultParams(), true},
		{"one percent", onePercent(1), true},
		{"zero epoch", demurrage.Params{Numerator: 1, Denominator: 100}, false},
		{"zero denominator", demurrage.Params{EpochLength: day}, false},
		{"ratio one", demurrage.Params{EpochLength: day, Numerator: 5, Denominator: 5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, demurrage.ErrInvalidParameters) {
				t.Errorf("expected ErrInvalidParameters, got %v", err)
			}
		})
	}
}
