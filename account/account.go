// Package account defines the per-user sub-account: a plain record holding
// balance, holds and settlement history, and the Logic that operates on it.
//
// Records carry no behaviour of their own. Every record managed by a
// controller is mutated through the single Logic currently installed in the
// factory beacon, so swapping that Logic upgrades all accounts at once.
package account

import (
	"time"

	"github.com/xraph/custody/id"
	"github.com/xraph/custody/types"
)

// Kind distinguishes end-user accounts from the controller's own pseudo-accounts.
type Kind string

const (
	// KindUser is an account holder's account.
	KindUser Kind = "user"
	// KindSystem is a pseudo-account such as the fee sink or community chest.
	// System accounts do not decay.
	KindSystem Kind = "system"
)

// Hold is an active authorization reserving part of a balance.
type Hold struct {
	ID        string       `json:"id"`
	Amount    types.Amount `json:"amount"`
	CreatedAt time.Time    `json:"created_at"`
}

// Settlement is a completed debit into the reconciliation pool.
type Settlement struct {
	ID        string       `json:"id"`
	Amount    types.Amount `json:"amount"`
	Released  types.Amount `json:"released"`
	SettledAt time.Time    `json:"settled_at"`
}

// Record is the storage handle of a sub-account.
type Record struct {
	types.Entity

	ID                  id.AccountID    `json:"id"`
	UserID              types.UserID    `json:"user_id"`
	Index               int             `json:"index"`
	Kind                Kind            `json:"kind"`
	Owner               types.Principal `json:"owner"`
	Factory             string          `json:"factory"`
	Balance             types.Amount    `json:"balance"`
	LastDecayCheckpoint time.Time       `json:"last_decay_checkpoint"`
	Holds               []Hold          `json:"holds"`
	Settlements         []Settlement    `json:"settlements"`
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	c := *r
	c.Holds = append([]Hold(nil), r.Holds...)
	c.Settlements = append([]Settlement(nil), r.Settlements...)
	return &c
}

// Hold returns the active hold with the given id.
func (r *Record) Hold(authID string) (Hold, bool) {
	if i := r.holdIndex(authID); i >= 0 {
		return r.Holds[i], true
	}
	return Hold{}, false
}

// Settlement returns the settlement with the given id.
func (r *Record) Settlement(settlementID string) (Settlement, bool) {
	for _, s := range r.Settlements {
		if s.ID == settlementID {
			return s, true
		}
	}
	return Settlement{}, false
}

// Authorized returns the sum of active holds.
func (r *Record) Authorized() types.Amount {
	var total types.Amount
	for _, h := range r.Holds {
		total, _ = total.Add(h.Amount)
	}
	return total
}

// Available returns balance minus active holds, floored at zero.
func (r *Record) Available() types.Amount {
	return r.Balance.SaturatingSub(r.Authorized())
}

// AuthorizationKeys returns the active hold ids in creation order.
func (r *Record) AuthorizationKeys() []string {
	keys := make([]string, len(r.Holds))
	for i, h := range r.Holds {
		keys[i] = h.ID
	}
	return keys
}

// SettlementKeys returns the settlement ids in settlement order.
func (r *Record) SettlementKeys() []string {
	keys := make([]string, len(r.Settlements))
	for i, s := range r.Settlements {
		keys[i] = s.ID
	}
	return keys
}

func (r *Record) holdIndex(authID string) int {
	for i := range r.Holds {
		if r.Holds[i].ID == authID {
			return i
		}
	}
	return -1
}

func (r *Record) removeHold(i int) Hold {
	h := r.Holds[i]
	r.Holds = append(r.Holds[:i], r.Holds[i+1:]...)
	return h
}
