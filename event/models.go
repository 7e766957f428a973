// Package event defines the domain events the controller emits after every
// committed operation.
package event

import (
	"time"

	"github.com/xraph/custody/id"
	"github.com/xraph/custody/types"
)

// Kind names an event type.
type Kind string

// Event kinds.
const (
	AccountCreated              Kind = "account.created"
	Deposit                     Kind = "funds.deposited"
	Withdrawal                  Kind = "funds.withdrawn"
	RedemptionFee               Kind = "fee.redemption"
	Transfer                    Kind = "funds.transferred"
	AuthorizationCreated        Kind = "authorization.created"
	AuthorizationReleased       Kind = "authorization.released"
	Settlement                  Kind = "settlement.completed"
	ReconciliationSwept         Kind = "reconciliation.swept"
	DemurrageApplied            Kind = "demurrage.applied"
	Paused                      Kind = "controller.paused"
	Unpaused                    Kind = "controller.unpaused"
	EmergencyWithdrawal         Kind = "controller.emergency_withdrawal"
	RoleGranted                 Kind = "role.granted"
	RoleRevoked                 Kind = "role.revoked"
	OwnershipTransferred        Kind = "ownership.transferred"
	AccountOwnershipTransferred Kind = "account.ownership_transferred"
	ImplementationUpdated       Kind = "implementation.updated"
	FactoryUpdated              Kind = "factory.updated"
	ConfigUpdated               Kind = "config.updated"
)

// Event is one observable effect of a committed operation.
//
// UserID is the account the event concerns and Counterparty the other side
// of a transfer. Address carries an external principal (recipient, custodian,
// new owner). Reference is the caller-supplied authorization or settlement id.
type Event struct {
	ID           id.EventID        `json:"id"`
	Seq          uint64            `json:"seq"`
	Kind         Kind              `json:"kind"`
	Actor        types.Principal   `json:"actor"`
	UserID       types.UserID      `json:"user_id,omitzero"`
	Counterparty types.UserID      `json:"counterparty,omitzero"`
	Address      types.Principal   `json:"address,omitempty"`
	Reference    string            `json:"reference,omitempty"`
	Amount       types.Amount      `json:"amount"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	At           time.Time         `json:"at"`
}
