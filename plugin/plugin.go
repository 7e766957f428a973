// Package plugin provides the extension surface of the custody controller.
// Plugins implement Plugin plus any of the hook interfaces below; the
// Registry discovers the hooks once at registration and dispatches events
// to them after each committed operation.
package plugin

import (
	"context"

	"github.com/xraph/custody/event"
	"github.com/xraph/custody/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the controller starts. c is the *custody.Controller.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, c any) error
}

// OnShutdown is called when the controller stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// OnEvent receives every event regardless of kind.
type OnEvent interface {
	Plugin
	OnEvent(ctx context.Context, e *event.Event) error
}

// ──────────────────────────────────────────────────
// Funds hooks
// ──────────────────────────────────────────────────

// OnAccountCreated is called when a sub-account is registered.
type OnAccountCreated interface {
	Plugin
	OnAccountCreated(ctx context.Context, e *event.Event) error
}

// OnDeposit is called after a deposit commits.
type OnDeposit interface {
	Plugin
	OnDeposit(ctx context.Context, e *event.Event) error
}

// OnWithdrawal is called after a withdrawal commits. fee is nil when no
// redemption fee was charged.
type OnWithdrawal interface {
	Plugin
	OnWithdrawal(ctx context.Context, withdrawal, fee *event.Event) error
}

// OnTransfer is called for every transfer event, including round-ups.
type OnTransfer interface {
	Plugin
	OnTransfer(ctx context.Context, e *event.Event) error
}

// OnHoldChanged is called when an authorization is placed or released.
type OnHoldChanged interface {
	Plugin
	OnHoldChanged(ctx context.Context, e *event.Event) error
}

// OnSettlement is called after a settlement commits.
type OnSettlement interface {
	Plugin
	OnSettlement(ctx context.Context, e *event.Event) error
}

// OnReconciled is called after the reconciliation pool is swept.
type OnReconciled interface {
	Plugin
	OnReconciled(ctx context.Context, e *event.Event) error
}

// OnDemurrageApplied is called when decay moved funds to the community chest.
type OnDemurrageApplied interface {
	Plugin
	OnDemurrageApplied(ctx context.Context, e *event.Event) error
}

// ──────────────────────────────────────────────────
// Administrative hooks
// ──────────────────────────────────────────────────

// OnPauseChanged is called on pause, unpause and emergency withdrawal.
type OnPauseChanged interface {
	Plugin
	OnPauseChanged(ctx context.Context, e *event.Event) error
}

// OnRoleChanged is called when a role is granted or revoked.
type OnRoleChanged interface {
	Plugin
	OnRoleChanged(ctx context.Context, e *event.Event) error
}

// OnAdminChange is called for ownership, implementation, factory and
// configuration changes.
type OnAdminChange interface {
	Plugin
	OnAdminChange(ctx context.Context, e *event.Event) error
}

// ──────────────────────────────────────────────────
// Extension points
// ──────────────────────────────────────────────────

// Check describes an operation about to be committed.
type Check struct {
	Op     string
	Actor  types.Principal
	UserID types.UserID
	To     types.UserID
	Amount types.Amount
}

// OperationGuard may veto a funds operation before it commits. A non-nil
// error rejects the operation and nothing is changed.
type OperationGuard interface {
	Plugin
	Guard(ctx context.Context, c Check) error
}
