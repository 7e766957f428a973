package audithook

import "github.com/xraph/custody/event"

// Action constants for audit events.
const (
	// Account actions
	ActionAccountCreated              = string(event.AccountCreated)
	ActionAccountOwnershipTransferred = string(event.AccountOwnershipTransferred)

	// Funds actions
	ActionDeposit       = string(event.Deposit)
	ActionWithdrawal    = string(event.Withdrawal)
	ActionRedemptionFee = string(event.RedemptionFee)
	ActionTransfer      = string(event.Transfer)
	ActionDemurrage     = string(event.DemurrageApplied)

	// Authorization actions
	ActionAuthorizationCreated  = string(event.AuthorizationCreated)
	ActionAuthorizationReleased = string(event.AuthorizationReleased)
	ActionSettlement            = string(event.Settlement)
	ActionReconciliation        = string(event.ReconciliationSwept)

	// Governance actions
	ActionPaused                = string(event.Paused)
	ActionUnpaused              = string(event.Unpaused)
	ActionEmergencyWithdrawal   = string(event.EmergencyWithdrawal)
	ActionRoleGranted           = string(event.RoleGranted)
	ActionRoleRevoked           = string(event.RoleRevoked)
	ActionOwnershipTransferred  = string(event.OwnershipTransferred)
	ActionImplementationUpdated = string(event.ImplementationUpdated)
	ActionFactoryUpdated        = string(event.FactoryUpdated)
	ActionConfigUpdated         = string(event.ConfigUpdated)
)

// Resource constants for audit events.
const (
	ResourceAccount    = "account"
	ResourceHold       = "hold"
	ResourcePool       = "pool"
	ResourceController = "controller"
	ResourceRole       = "role"
)

// Category constants for audit events.
const (
	CategoryFunds         = "funds"
	CategoryAuthorization = "authorization"
	CategoryDecay         = "decay"
	CategoryGovernance    = "governance"
	CategoryAccess        = "access"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)

// classification describes how an event kind is recorded.
type classification struct {
	resource string
	category string
	severity string
}

var classifications = map[event.Kind]classification{
	event.AccountCreated:              {ResourceAccount, CategoryFunds, SeverityInfo},
	event.AccountOwnershipTransferred: {ResourceAccount, CategoryGovernance, SeverityWarning},
	event.Deposit:                     {ResourceAccount, CategoryFunds, SeverityInfo},
	event.Withdrawal:                  {ResourceAccount, CategoryFunds, SeverityInfo},
	event.RedemptionFee:               {ResourceAccount, CategoryFunds, SeverityInfo},
	event.Transfer:                    {ResourceAccount, CategoryFunds, SeverityInfo},
	event.DemurrageApplied:            {ResourceAccount, CategoryDecay, SeverityInfo},
	event.AuthorizationCreated:        {ResourceHold, CategoryAuthorization, SeverityInfo},
	event.AuthorizationReleased:       {ResourceHold, CategoryAuthorization, SeverityInfo},
	event.Settlement:                  {ResourceHold, CategoryAuthorization, SeverityInfo},
	event.ReconciliationSwept:         {ResourcePool, CategoryFunds, SeverityInfo},
	event.Paused:                      {ResourceController, CategoryGovernance, SeverityWarning},
	event.Unpaused:                    {ResourceController, CategoryGovernance, SeverityWarning},
	event.EmergencyWithdrawal:         {ResourceController, CategoryGovernance, SeverityCritical},
	event.RoleGranted:                 {ResourceRole, CategoryAccess, SeverityWarning},
	event.RoleRevoked:                 {ResourceRole, CategoryAccess, SeverityWarning},
	event.OwnershipTransferred:        {ResourceController, CategoryGovernance, SeverityCritical},
	event.ImplementationUpdated:       {ResourceController, CategoryGovernance, SeverityCritical},
	event.FactoryUpdated:              {ResourceController, CategoryGovernance, SeverityWarning},
	event.ConfigUpdated:               {ResourceController, CategoryGovernance, SeverityWarning},
}
