// Package journal defines the commit: the unit of atomic persistence for one
// controller operation. A commit carries the post-operation snapshot of every
// account it touched, the full controller state and the events it produced.
// Replaying commits in sequence order rebuilds the controller.
package journal

import (
	"time"

	"github.com/xraph/custody/account"
	"github.com/xraph/custody/demurrage"
	"github.com/xraph/custody/event"
	"github.com/xraph/custody/fee"
	"github.com/xraph/custody/id"
	"github.com/xraph/custody/rbac"
	"github.com/xraph/custody/types"
)

// State is the controller-wide state after a commit.
type State struct {
	Owner          types.Principal  `json:"owner"`
	Paused         bool             `json:"paused"`
	Custodian      types.Principal  `json:"custodian"`
	CommunityChest types.UserID     `json:"community_chest"`
	FeeSink        types.UserID     `json:"fee_sink"`
	Fee            fee.Schedule     `json:"fee"`
	Demurrage      demurrage.Params `json:"demurrage"`
	Pool           types.Amount     `json:"pool"`
	Roles          rbac.Snapshot    `json:"roles"`
	Implementation string           `json:"implementation"`
	Factory        string           `json:"factory"`
}

// Commit is one applied operation.
type Commit struct {
	ID        id.CommitID       `json:"id"`
	Seq       uint64            `json:"seq"`
	Op        string            `json:"op"`
	Actor     types.Principal   `json:"actor"`
	Accounts  []*account.Record `json:"accounts"`
	State     State             `json:"state"`
	Events    []*event.Event    `json:"events"`
	CreatedAt time.Time         `json:"created_at"`
}
