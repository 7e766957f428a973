package account_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/xraph/custody/account"
	"github.com/xraph/custody/demurrage"
	"github.com/xraph/custody/types"
)

const controller types.Principal = "0xcontroller"

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newRecord(balance uint64) *account.Record {
	return &account.Record{
		Entity:              types.NewEntity(t0),
		UserID:              types.UserIDFromName("alice"),
		Kind:                account.KindUser,
		Owner:               controller,
		Balance:             types.Tokens(balance),
		LastDecayCheckpoint: t0,
	}
}

func env() account.Env {
	return account.Env{Caller: controller, Now: t0, Demurrage: demurrage.DefaultParams()}
}

func TestCreditDebit(t *testing.T) {
	l := account.Standard{}
	r := newRecord(0)

	if err := l.Credit(r, env(), types.Zero); !errors.Is(err, account.ErrZeroAmount) {
		t.Errorf("credit zero: got %v", err)
	}
	if err := l.Credit(r, env(), types.Tokens(10)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := l.Debit(r, env(), types.Tokens(11)); !errors.Is(err, account.ErrInsufficientBalance) {
		t.Errorf("overdraw: got %v", err)
	}
	if err := l.Debit(r, env(), types.Tokens(10)); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if !r.Balance.IsZero() {
		t.Errorf("balance = %s, want 0", r.Balance)
	}
}

func TestForeignCallerRejected(t *testing.T) {
	l := account.Standard{}
	r := newRecord(5)
	e := env()
	e.Caller = "0xintruder"

	checks := map[string]error{
		"credit":    l.Credit(r, e, types.Tokens(1)),
		"debit":     l.Debit(r, e, types.Tokens(1)),
		"authorize": l.Authorize(r, e, "a", types.Tokens(1)),
	}
	if _, err := l.Deauthorize(r, e, "a"); err != nil {
		checks["deauthorize"] = err
	}
	if _, err := l.Settle(r, e, "s", types.Tokens(1)); err != nil {
		checks["settle"] = err
	}
	if _, err := l.Touch(r, e); err != nil {
		checks["touch"] = err
	}
	for name, err := range checks {
		if !errors.Is(err, account.ErrNotAccountOwner) {
			t.Errorf("%s: got %v", name, err)
		}
	}
	if len(checks) != 6 {
		t.Errorf("expected six rejections, got %d", len(checks))
	}
}

func TestHolds(t *testing.T) {
	l := account.Standard{}
	r := newRecord(100)

	if err := l.Authorize(r, env(), "a1", types.Tokens(30)); err != nil {
		t.Fatalf("authorize a1: %v", err)
	}
	if err := l.Authorize(r, env(), "a1", types.Tokens(1)); !errors.Is(err, account.ErrDuplicateAuthorization) {
		t.Errorf("duplicate: got %v", err)
	}
	if err := l.Authorize(r, env(), "a2", types.Tokens(80)); !errors.Is(err, account.ErrInsufficientAvailable) {
		t.Errorf("over available: got %v", err)
	}
	if err := l.Authorize(r, env(), "a3", types.Zero); !errors.Is(err, account.ErrInvalidAmount) {
		t.Errorf("zero hold: got %v", err)
	}
	if err := l.Authorize(r, env(), "", types.Tokens(1)); !errors.Is(err, account.ErrMissingReference) {
		t.Errorf("empty id: got %v", err)
	}

	if !r.Available().Eq(types.Tokens(70)) || !r.Authorized().Eq(types.Tokens(30)) {
		t.Errorf("available=%s authorized=%s", r.Available(), r.Authorized())
	}

	released, err := l.Deauthorize(r, env(), "a1")
	if err != nil || !released.Eq(types.Tokens(30)) {
		t.Fatalf("deauthorize: %s, %v", released, err)
	}
	if _, err := l.Deauthorize(r, env(), "a1"); !errors.Is(err, account.ErrUnknownAuthorization) {
		t.Errorf("second deauthorize: got %v", err)
	}
	if !r.Available().Eq(types.Tokens(100)) {
		t.Errorf("available after release = %s", r.Available())
	}
}

func TestSettleReleasesMatchingHold(t *testing.T) {
	l := account.Standard{}
	r := newRecord(100)

	if err := l.Authorize(r, env(), "tx-1", types.Tokens(20)); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	released, err := l.Settle(r, env(), "tx-1", types.MustParseUnits("11.11"))
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if !released.Eq(types.Tokens(20)) {
		t.Errorf("released = %s", released)
	}
	if len(r.Holds) != 0 {
		t.Errorf("hold still active: %v", r.AuthorizationKeys())
	}
	if !r.Balance.Eq(types.MustParseUnits("88.89")) {
		t.Errorf("balance = %s", types.FormatUnits(r.Balance, types.DefaultDecimals))
	}
	if keys := r.SettlementKeys(); len(keys) != 1 || keys[0] != "tx-1" {
		t.Errorf("settlement keys = %v", keys)
	}

	if _, err := l.Settle(r, env(), "tx-1", types.Tokens(1)); !errors.Is(err, account.ErrDuplicateSettlement) {
		t.Errorf("duplicate settlement: got %v", err)
	}
	if _, err := l.Settle(r, env(), "tx-2", types.Tokens(1000)); !errors.Is(err, account.ErrInsufficientBalance) {
		t.Errorf("oversettle: got %v", err)
	}
}

func TestAvailableSaturates(t *testing.T) {
	l := account.Standard{}
	r := newRecord(50)
	if err := l.Authorize(r, env(), "h", types.Tokens(40)); err != nil {
		t.Fatal(err)
	}
	if err := l.Debit(r, env(), types.Tokens(45)); err != nil {
		t.Fatal(err)
	}
	if !r.Available().IsZero() {
		t.Errorf("available = %s, want 0", r.Available())
	}
}

func TestTouchAppliesDecay(t *testing.T) {
	l := account.Standard{}
	r := newRecord(90)
	e := env()
	e.Demurrage = demurrage.Params{EpochLength: 24 * time.Hour, FreeEpochs: 1, Numerator: 1, Denominator: 100}
	e.Now = t0.Add(10 * 24 * time.Hour)

	view := l.View(r, e.Demurrage, e.Now)
	lost, err := l.Touch(r, e)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Balance.Eq(view) {
		t.Errorf("touch %s != view %s", r.Balance, view)
	}
	sum, _ := r.Balance.Add(lost)
	if !sum.Eq(types.Tokens(90)) {
		t.Errorf("balance + lost = %s, want 90 tokens", sum)
	}
	if want := t0.Add(9 * 24 * time.Hour); !r.LastDecayCheckpoint.Equal(want) {
		t.Errorf("checkpoint = %s, want %s", r.LastDecayCheckpoint, want)
	}

	again, _ := l.Touch(r, e)
	if !again.IsZero() {
		t.Errorf("second touch removed %s", again)
	}
}

func TestTouchKeepsPartialEpoch(t *testing.T) {
	l := account.Standard{}
	r := newRecord(90)
	e := env()
	e.Demurrage = demurrage.Params{EpochLength: 24 * time.Hour, FreeEpochs: 1, Numerator: 1, Denominator: 100}

	e.Now = t0.Add(36 * time.Hour)
	if lost, _ := l.Touch(r, e); !lost.IsZero() {
		t.Errorf("touch inside free window removed %s", lost)
	}
	if !r.LastDecayCheckpoint.Equal(t0) {
		t.Errorf("checkpoint moved to %s inside free window", r.LastDecayCheckpoint)
	}

	e.Now = t0.Add(72 * time.Hour)
	want := demurrage.Decay(types.Tokens(90), 72*time.Hour, e.Demurrage)
	if _, err := l.Touch(r, e); err != nil {
		t.Fatal(err)
	}
	if !r.Balance.Eq(want) {
		t.Errorf("balance %s, want %s", r.Balance, want)
	}
}

func TestFrequentTouchesDecayLikeIdle(t *testing.T) {
	l := account.Standard{}
	busy := newRecord(90)
	idle := newRecord(90)
	e := env()
	e.Demurrage = demurrage.Params{EpochLength: 24 * time.Hour, Numerator: 1, Denominator: 100}

	for h := 23; h <= 230; h += 23 {
		e.Now = t0.Add(time.Duration(h) * time.Hour)
		if _, err := l.Touch(busy, e); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := l.Touch(idle, e); err != nil {
		t.Fatal(err)
	}

	got := busy.Balance.Decimal(types.DefaultDecimals).InexactFloat64()
	want := idle.Balance.Decimal(types.DefaultDecimals).InexactFloat64()
	if want > 82.2166 || want < 82.2165 {
		t.Fatalf("idle balance %f, want ~82.2165", want)
	}
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("touched every 23h: %.12f, idle: %.12f", got, want)
	}
}

func TestTouchRestartsEmptyRecord(t *testing.T) {
	l := account.Standard{}
	r := newRecord(0)
	e := env()
	e.Now = t0.Add(50 * time.Hour)
	if _, err := l.Touch(r, e); err != nil {
		t.Fatal(err)
	}
	if !r.LastDecayCheckpoint.Equal(e.Now) {
		t.Errorf("checkpoint = %s, want %s", r.LastDecayCheckpoint, e.Now)
	}
}

func TestSystemAccountsDoNotDecay(t *testing.T) {
	l := account.Standard{}
	r := newRecord(90)
	r.Kind = account.KindSystem
	p := demurrage.Params{EpochLength: time.Hour, Numerator: 1, Denominator: 2}
	if got := l.View(r, p, t0.Add(100*time.Hour)); !got.Eq(types.Tokens(90)) {
		t.Errorf("system balance decayed to %s", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	l := account.Standard{}
	r := newRecord(10)
	_ = l.Authorize(r, env(), "h1", types.Tokens(1))

	c := r.Clone()
	if _, err := l.Deauthorize(c, env(), "h1"); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Hold("h1"); !ok {
		t.Error("mutating the clone changed the original")
	}
}

type v2 struct{ account.Standard }

func (v2) Version() string { return "2.0.0-test" }

func TestRegistry(t *testing.T) {
	if _, ok := account.Lookup(account.StandardVersion); !ok {
		t.Fatal("standard logic not registered")
	}
	account.Register(v2{})
	l, ok := account.Lookup("2.0.0-test")
	if !ok || l.Version() != "2.0.0-test" {
		t.Fatalf("lookup v2: %v %v", l, ok)
	}
}
