package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/custody/event"
)

// DefaultTimeout bounds every plugin call.
const DefaultTimeout = 5 * time.Second

// Registry manages registered plugins. Hook lists are cached per interface at
// registration so that dispatch never type-asserts.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	h hooks
}

// hooks holds the per-interface plugin lists. It is copied by value for
// lock-free dispatch.
type hooks struct {
	onInit             []OnInit
	onShutdown         []OnShutdown
	onEvent            []OnEvent
	onAccountCreated   []OnAccountCreated
	onDeposit          []OnDeposit
	onWithdrawal       []OnWithdrawal
	onTransfer         []OnTransfer
	onHoldChanged      []OnHoldChanged
	onSettlement       []OnSettlement
	onReconciled       []OnReconciled
	onDemurrageApplied []OnDemurrageApplied
	onPauseChanged     []OnPauseChanged
	onRoleChanged      []OnRoleChanged
	onAdminChange      []OnAdminChange
	guards             []OperationGuard
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout overrides DefaultTimeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	r.timeout = d
	return r
}

// Register adds a plugin and caches the hooks it implements.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}
	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.h.onInit = append(r.h.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.h.onShutdown = append(r.h.onShutdown, v)
	}
	if v, ok := p.(OnEvent); ok {
		r.h.onEvent = append(r.h.onEvent, v)
	}
	if v, ok := p.(OnAccountCreated); ok {
		r.h.onAccountCreated = append(r.h.onAccountCreated, v)
	}
	if v, ok := p.(OnDeposit); ok {
		r.h.onDeposit = append(r.h.onDeposit, v)
	}
	if v, ok := p.(OnWithdrawal); ok {
		r.h.onWithdrawal = append(r.h.onWithdrawal, v)
	}
	if v, ok := p.(OnTransfer); ok {
		r.h.onTransfer = append(r.h.onTransfer, v)
	}
	if v, ok := p.(OnHoldChanged); ok {
		r.h.onHoldChanged = append(r.h.onHoldChanged, v)
	}
	if v, ok := p.(OnSettlement); ok {
		r.h.onSettlement = append(r.h.onSettlement, v)
	}
	if v, ok := p.(OnReconciled); ok {
		r.h.onReconciled = append(r.h.onReconciled, v)
	}
	if v, ok := p.(OnDemurrageApplied); ok {
		r.h.onDemurrageApplied = append(r.h.onDemurrageApplied, v)
	}
	if v, ok := p.(OnPauseChanged); ok {
		r.h.onPauseChanged = append(r.h.onPauseChanged, v)
	}
	if v, ok := p.(OnRoleChanged); ok {
		r.h.onRoleChanged = append(r.h.onRoleChanged, v)
	}
	if v, ok := p.(OnAdminChange); ok {
		r.h.onAdminChange = append(r.h.onAdminChange, v)
	}
	if v, ok := p.(OperationGuard); ok {
		r.h.guards = append(r.h.guards, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implemented(p),
	)
	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeFor[OnInit]()},
	{"OnShutdown", reflect.TypeFor[OnShutdown]()},
	{"OnEvent", reflect.TypeFor[OnEvent]()},
	{"OnAccountCreated", reflect.TypeFor[OnAccountCreated]()},
	{"OnDeposit", reflect.TypeFor[OnDeposit]()},
	{"OnWithdrawal", reflect.TypeFor[OnWithdrawal]()},
	{"OnTransfer", reflect.TypeFor[OnTransfer]()},
	{"OnHoldChanged", reflect.TypeFor[OnHoldChanged]()},
	{"OnSettlement", reflect.TypeFor[OnSettlement]()},
	{"OnReconciled", reflect.TypeFor[OnReconciled]()},
	{"OnDemurrageApplied", reflect.TypeFor[OnDemurrageApplied]()},
	{"OnPauseChanged", reflect.TypeFor[OnPauseChanged]()},
	{"OnRoleChanged", reflect.TypeFor[OnRoleChanged]()},
	{"OnAdminChange", reflect.TypeFor[OnAdminChange]()},
	{"OperationGuard", reflect.TypeFor[OperationGuard]()},
}

func implemented(p Plugin) []string {
	var names []string
	t := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if t.Implements(h.typ) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name, or nil.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Plugin, len(r.plugins))
	copy(out, r.plugins)
	return out
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Emission
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, c any) {
	r.mu.RLock()
	plugins := r.h.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnInit", func() error { return p.OnInit(ctx, c) })
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.h.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		r.call(ctx, p.Name(), "OnShutdown", func() error { return p.OnShutdown(ctx) })
	}
}

// Emit dispatches the events of one commit, in order. Failures are logged
// and never propagate: the commit has already happened.
func (r *Registry) Emit(ctx context.Context, evts []*event.Event) {
	r.mu.RLock()
	h := r.h
	r.mu.RUnlock()

	for i, e := range evts {
		for _, p := range h.onEvent {
			r.call(ctx, p.Name(), "OnEvent", func() error { return p.OnEvent(ctx, e) })
		}

		switch e.Kind {
		case event.AccountCreated:
			for _, p := range h.onAccountCreated {
				r.call(ctx, p.Name(), "OnAccountCreated", func() error { return p.OnAccountCreated(ctx, e) })
			}
		case event.Deposit:
			for _, p := range h.onDeposit {
				r.call(ctx, p.Name(), "OnDeposit", func() error { return p.OnDeposit(ctx, e) })
			}
		case event.Withdrawal:
			var fee *event.Event
			if i+1 < len(evts) && evts[i+1].Kind == event.RedemptionFee {
				fee = evts[i+1]
			}
			for _, p := range h.onWithdrawal {
				r.call(ctx, p.Name(), "OnWithdrawal", func() error { return p.OnWithdrawal(ctx, e, fee) })
			}
		case event.Transfer:
			for _, p := range h.onTransfer {
				r.call(ctx, p.Name(), "OnTransfer", func() error { return p.OnTransfer(ctx, e) })
			}
		case event.AuthorizationCreated, event.AuthorizationReleased:
			for _, p := range h.onHoldChanged {
				r.call(ctx, p.Name(), "OnHoldChanged", func() error { return p.OnHoldChanged(ctx, e) })
			}
		case event.Settlement:
			for _, p := range h.onSettlement {
				r.call(ctx, p.Name(), "OnSettlement", func() error { return p.OnSettlement(ctx, e) })
			}
		case event.ReconciliationSwept:
			for _, p := range h.onReconciled {
				r.call(ctx, p.Name(), "OnReconciled", func() error { return p.OnReconciled(ctx, e) })
			}
		case event.DemurrageApplied:
			for _, p := range h.onDemurrageApplied {
				r.call(ctx, p.Name(), "OnDemurrageApplied", func() error { return p.OnDemurrageApplied(ctx, e) })
			}
		case event.Paused, event.Unpaused, event.EmergencyWithdrawal:
			for _, p := range h.onPauseChanged {
				r.call(ctx, p.Name(), "OnPauseChanged", func() error { return p.OnPauseChanged(ctx, e) })
			}
		case event.RoleGranted, event.RoleRevoked:
			for _, p := range h.onRoleChanged {
				r.call(ctx, p.Name(), "OnRoleChanged", func() error { return p.OnRoleChanged(ctx, e) })
			}
		case event.OwnershipTransferred, event.AccountOwnershipTransferred,
			event.ImplementationUpdated, event.FactoryUpdated, event.ConfigUpdated:
			for _, p := range h.onAdminChange {
				r.call(ctx, p.Name(), "OnAdminChange", func() error { return p.OnAdminChange(ctx, e) })
			}
		}
	}
}

// Guard runs every OperationGuard. The first rejection is returned.
func (r *Registry) Guard(ctx context.Context, c Check) error {
	r.mu.RLock()
	guards := r.h.guards
	r.mu.RUnlock()

	for _, g := range guards {
		if err := r.callWithTimeout(ctx, g.Name(), func() error { return g.Guard(ctx, c) }); err != nil {
			return fmt.Errorf("plugin %s: %w", g.Name(), err)
		}
	}
	return nil
}

func (r *Registry) call(ctx context.Context, name, hook string, fn func() error) {
	if err := r.callWithTimeout(ctx, name, fn); err != nil {
		r.logger.Warn("plugin "+hook+" failed",
			"plugin", name,
			"error", err,
		)
	}
}

// callWithTimeout calls a plugin function with a timeout. Plugins must never
// block the ledger.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(r.timeout):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
