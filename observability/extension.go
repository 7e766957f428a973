// Package observability provides a metrics extension for the custody
// controller that records event counts and amounts via a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/custody/event"
	"github.com/xraph/custody/plugin"
	"github.com/xraph/custody/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin             = (*MetricsExtension)(nil)
	_ plugin.OnInit             = (*MetricsExtension)(nil)
	_ plugin.OnAccountCreated   = (*MetricsExtension)(nil)
	_ plugin.OnDeposit          = (*MetricsExtension)(nil)
	_ plugin.OnWithdrawal       = (*MetricsExtension)(nil)
	_ plugin.OnTransfer         = (*MetricsExtension)(nil)
	_ plugin.OnHoldChanged      = (*MetricsExtension)(nil)
	_ plugin.OnSettlement       = (*MetricsExtension)(nil)
	_ plugin.OnReconciled       = (*MetricsExtension)(nil)
	_ plugin.OnDemurrageApplied = (*MetricsExtension)(nil)
	_ plugin.OnPauseChanged     = (*MetricsExtension)(nil)
	_ plugin.OnRoleChanged      = (*MetricsExtension)(nil)
	_ plugin.OnAdminChange      = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records controller metrics.
// Register it as a controller plugin to track funds movement.
type MetricsExtension struct {
	factory MetricFactory

	// Account metrics
	AccountsCreated Counter

	// Funds metrics
	Deposits         Counter
	DepositAmount    Histogram
	Withdrawals      Counter
	WithdrawalAmount Histogram
	FeesCharged      Counter
	FeeAmount        Histogram
	Transfers        Counter
	TransferAmount   Histogram
	RoundUps         Counter

	// Authorization metrics
	HoldsPlaced      Counter
	HoldsReleased    Counter
	Settlements      Counter
	SettlementAmount Histogram
	Reconciliations  Counter
	ReconciledAmount Histogram

	// Decay metrics
	DemurrageApplied Counter
	DemurrageAmount  Histogram

	// Administrative metrics
	PauseChanges Counter
	RoleChanges  Counter
	AdminChanges Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Account metrics
		AccountsCreated: factory.Counter("custody.account.created"),

		// Funds metrics
		Deposits:         factory.Counter("custody.deposit.count"),
		DepositAmount:    factory.Histogram("custody.deposit.amount"),
		Withdrawals:      factory.Counter("custody.withdrawal.count"),
		WithdrawalAmount: factory.Histogram("custody.withdrawal.amount"),
		FeesCharged:      factory.Counter("custody.fee.count"),
		FeeAmount:        factory.Histogram("custody.fee.amount"),
		Transfers:        factory.Counter("custody.transfer.count"),
		TransferAmount:   factory.Histogram("custody.transfer.amount"),
		RoundUps:         factory.Counter("custody.transfer.round_up"),

		// Authorization metrics
		HoldsPlaced:      factory.Counter("custody.hold.placed"),
		HoldsReleased:    factory.Counter("custody.hold.released"),
		Settlements:      factory.Counter("custody.settlement.count"),
		SettlementAmount: factory.Histogram("custody.settlement.amount"),
		Reconciliations:  factory.Counter("custody.reconcile.count"),
		ReconciledAmount: factory.Histogram("custody.reconcile.amount"),

		// Decay metrics
		DemurrageApplied: factory.Counter("custody.demurrage.count"),
		DemurrageAmount:  factory.Histogram("custody.demurrage.amount"),

		// Administrative metrics
		PauseChanges: factory.Counter("custody.pause.changes"),
		RoleChanges:  factory.Counter("custody.role.changes"),
		AdminChanges: factory.Counter("custody.admin.changes"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// tokens converts a base-unit amount to whole tokens for histograms.
func tokens(a types.Amount) float64 {
	return a.Decimal(types.DefaultDecimals).InexactFloat64()
}

// ──────────────────────────────────────────────────
// Funds hooks
// ──────────────────────────────────────────────────

// OnAccountCreated implements plugin.OnAccountCreated.
func (m *MetricsExtension) OnAccountCreated(_ context.Context, _ *event.Event) error {
	m.AccountsCreated.Inc()
	return nil
}

// OnDeposit implements plugin.OnDeposit.
func (m *MetricsExtension) OnDeposit(_ context.Context, e *event.Event) error {
	m.Deposits.Inc()
	m.DepositAmount.Observe(tokens(e.Amount))
	return nil
}

// OnWithdrawal implements plugin.OnWithdrawal.
func (m *MetricsExtension) OnWithdrawal(_ context.Context, w, fee *event.Event) error {
	m.Withdrawals.Inc()
	m.WithdrawalAmount.Observe(tokens(w.Amount))
	if fee != nil {
		m.FeesCharged.Inc()
		m.FeeAmount.Observe(tokens(fee.Amount))
	}
	return nil
}

// OnTransfer implements plugin.OnTransfer.
func (m *MetricsExtension) OnTransfer(_ context.Context, e *event.Event) error {
	if e.Metadata["round_up"] == "true" {
		m.RoundUps.Inc()
		return nil
	}
	m.Transfers.Inc()
	m.TransferAmount.Observe(tokens(e.Amount))
	return nil
}

// ──────────────────────────────────────────────────
// Authorization hooks
// ──────────────────────────────────────────────────

// OnHoldChanged implements plugin.OnHoldChanged.
func (m *MetricsExtension) OnHoldChanged(_ context.Context, e *event.Event) error {
	if e.Kind == event.AuthorizationCreated {
		m.HoldsPlaced.Inc()
	} else {
		m.HoldsReleased.Inc()
	}
	return nil
}

// OnSettlement implements plugin.OnSettlement.
func (m *MetricsExtension) OnSettlement(_ context.Context, e *event.Event) error {
	m.Settlements.Inc()
	m.SettlementAmount.Observe(tokens(e.Amount))
	return nil
}

// OnReconciled implements plugin.OnReconciled.
func (m *MetricsExtension) OnReconciled(_ context.Context, e *event.Event) error {
	m.Reconciliations.Inc()
	m.ReconciledAmount.Observe(tokens(e.Amount))
	return nil
}

// OnDemurrageApplied implements plugin.OnDemurrageApplied.
func (m *MetricsExtension) OnDemurrageApplied(_ context.Context, e *event.Event) error {
	m.DemurrageApplied.Inc()
	m.DemurrageAmount.Observe(tokens(e.Amount))
	return nil
}

// ──────────────────────────────────────────────────
// Administrative hooks
// ──────────────────────────────────────────────────

// OnPauseChanged implements plugin.OnPauseChanged.
func (m *MetricsExtension) OnPauseChanged(_ context.Context, _ *event.Event) error {
	m.PauseChanges.Inc()
	return nil
}

// OnRoleChanged implements plugin.OnRoleChanged.
func (m *MetricsExtension) OnRoleChanged(_ context.Context, _ *event.Event) error {
	m.RoleChanges.Inc()
	return nil
}

// OnAdminChange implements plugin.OnAdminChange.
func (m *MetricsExtension) OnAdminChange(_ context.Context, _ *event.Event) error {
	m.AdminChanges.Inc()
	return nil
}
