package plugin_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/custody/event"
	"github.com/xraph/custody/plugin"
	"github.com/xraph/custody/types"
)

type recorder struct {
	mu          sync.Mutex
	all         []event.Kind
	deposits    int
	withdrawFee *event.Event
	holds       int
}

func (*recorder) Name() string { return "recorder" }

func (r *recorder) OnEvent(_ context.Context, e *event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, e.Kind)
	return nil
}

func (r *recorder) OnDeposit(context.Context, *event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deposits++
	return errors.New("ignored")
}

func (r *recorder) OnWithdrawal(_ context.Context, _, fee *event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.withdrawFee = fee
	return nil
}

func (r *recorder) OnHoldChanged(context.Context, *event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.holds++
	return nil
}

type limit struct{ max types.Amount }

func (limit) Name() string { return "limit" }

func (l limit) Guard(_ context.Context, c plugin.Check) error {
	if c.Amount.Gt(l.max) {
		return errors.New("over limit")
	}
	return nil
}

type slow struct{}

func (slow) Name() string { return "slow" }

func (slow) Guard(ctx context.Context, _ plugin.Check) error {
	time.Sleep(time.Second)
	return nil
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := plugin.NewRegistry()
	if err := r.Register(&recorder{}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&recorder{}); err == nil {
		t.Error("expected duplicate error")
	}
	if r.Count() != 1 || r.Get("recorder") == nil || len(r.List()) != 1 {
		t.Error("registry contents mismatch")
	}
}

func TestEmitDispatchesByKind(t *testing.T) {
	r := plugin.NewRegistry()
	rec := &recorder{}
	_ = r.Register(rec)

	fee := &event.Event{Kind: event.RedemptionFee}
	r.Emit(context.Background(), []*event.Event{
		{Kind: event.Deposit},
		{Kind: event.AuthorizationCreated},
		{Kind: event.AuthorizationReleased},
		{Kind: event.Withdrawal},
		fee,
	})

	if len(rec.all) != 5 {
		t.Errorf("OnEvent calls = %d", len(rec.all))
	}
	if rec.deposits != 1 {
		t.Errorf("deposits = %d", rec.deposits)
	}
	if rec.holds != 2 {
		t.Errorf("hold changes = %d", rec.holds)
	}
	if rec.withdrawFee != fee {
		t.Error("fee event not paired with withdrawal")
	}
}

func TestGuard(t *testing.T) {
	r := plugin.NewRegistry()
	_ = r.Register(limit{max: types.Tokens(100)})

	if err := r.Guard(context.Background(), plugin.Check{Amount: types.Tokens(50)}); err != nil {
		t.Errorf("under limit: %v", err)
	}
	if err := r.Guard(context.Background(), plugin.Check{Amount: types.Tokens(500)}); err == nil {
		t.Error("expected rejection")
	}
}

func TestGuardTimeout(t *testing.T) {
	r := plugin.NewRegistry().WithTimeout(10 * time.Millisecond)
	_ = r.Register(slow{})
	if err := r.Guard(context.Background(), plugin.Check{}); err == nil {
		t.Error("expected timeout error")
	}
}
