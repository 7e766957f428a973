package custody

import (
	"context"
	"fmt"

	"github.com/xraph/custody/account"
	"github.com/xraph/custody/demurrage"
	"github.com/xraph/custody/event"
	"github.com/xraph/custody/fee"
	"github.com/xraph/custody/rbac"
	"github.com/xraph/custody/types"
)

// Versions reports the version of every component.
type Versions struct {
	Controller string `json:"controller"`
	Factory    string `json:"factory"`
	Account    string `json:"account"`
	Demurrage  string `json:"demurrage"`
}

// lookup returns the live record for uid. Callers hold c.mu.
func (c *Controller) lookup(uid types.UserID) (*account.Record, error) {
	rec, ok := c.accounts[uid]
	if !ok {
		return nil, &UserError{Side: "user", UserID: uid, Err: ErrUnknownUser}
	}
	return rec, nil
}

// view returns the balance of rec with decay applied up to now. The community
// chest also reports the decay pending on every user account the controller
// owns, so queried balances plus the pool always add up to custody. Callers
// hold c.mu.
func (c *Controller) view(rec *account.Record) types.Amount {
	l, now := c.beacon.Logic(), c.clock()
	bal := l.View(rec, c.state.Demurrage, now)
	if rec.UserID != c.state.CommunityChest {
		return bal
	}
	for _, r := range c.accounts {
		if r.Kind == account.KindSystem || r.Owner != c.self {
			continue
		}
		pending, _ := r.Balance.Sub(l.View(r, c.state.Demurrage, now))
		bal, _ = bal.Add(pending)
	}
	return bal
}

// ──────────────────────────────────────────────────
// Balances
// ──────────────────────────────────────────────────

// BalanceOf returns the balance of userID with decay applied up to now.
func (c *Controller) BalanceOf(userID types.UserID) (types.Amount, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, err := c.lookup(userID)
	if err != nil {
		return types.Zero, err
	}
	return c.view(rec), nil
}

// AvailableBalanceOf returns the decayed balance less active holds, floored
// at zero.
func (c *Controller) AvailableBalanceOf(userID types.UserID) (types.Amount, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, err := c.lookup(userID)
	if err != nil {
		return types.Zero, err
	}
	return c.view(rec).SaturatingSub(rec.Authorized()), nil
}

// AuthorizedBalanceOf returns the sum of active holds on userID.
func (c *Controller) AuthorizedBalanceOf(userID types.UserID) (types.Amount, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, err := c.lookup(userID)
	if err != nil {
		return types.Zero, err
	}
	return rec.Authorized(), nil
}

// PoolBalance returns the settled amount awaiting reconciliation.
func (c *Controller) PoolBalance() types.Amount {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Pool
}

// CustodyBalance returns the tokens held by the controller.
func (c *Controller) CustodyBalance(ctx context.Context) (types.Amount, error) {
	return c.token.BalanceOf(ctx, c.self)
}

// ──────────────────────────────────────────────────
// Accounts
// ──────────────────────────────────────────────────

// AccountCount returns the number of registered accounts, system accounts
// included.
func (c *Controller) AccountCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.registry)
}

// AccountAt returns the user id registered at index i.
func (c *Controller) AccountAt(i int) (types.UserID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i < 0 || i >= len(c.registry) {
		return types.UserID{}, fmt.Errorf("%w: account %d of %d", ErrOutOfRange, i, len(c.registry))
	}
	return c.registry[i], nil
}

// Account returns a copy of the stored record for userID. Its Balance is as
// of the last write; use BalanceOf for the decayed view.
func (c *Controller) Account(userID types.UserID) (*account.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, err := c.lookup(userID)
	if err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// AuthorizationKeys returns the active hold ids on userID in creation order.
func (c *Controller) AuthorizationKeys(userID types.UserID) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, err := c.lookup(userID)
	if err != nil {
		return nil, err
	}
	return rec.AuthorizationKeys(), nil
}

// AuthorizationAt returns the i-th active hold on userID.
func (c *Controller) AuthorizationAt(userID types.UserID, i int) (account.Hold, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, err := c.lookup(userID)
	if err != nil {
		return account.Hold{}, err
	}
	if i < 0 || i >= len(rec.Holds) {
		return account.Hold{}, fmt.Errorf("%w: hold %d of %d", ErrOutOfRange, i, len(rec.Holds))
	}
	return rec.Holds[i], nil
}

// SettlementKeys returns the settlement ids on userID in settlement order.
func (c *Controller) SettlementKeys(userID types.UserID) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, err := c.lookup(userID)
	if err != nil {
		return nil, err
	}
	return rec.SettlementKeys(), nil
}

// SettlementAt returns the i-th settlement on userID.
func (c *Controller) SettlementAt(userID types.UserID, i int) (account.Settlement, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, err := c.lookup(userID)
	if err != nil {
		return account.Settlement{}, err
	}
	if i < 0 || i >= len(rec.Settlements) {
		return account.Settlement{}, fmt.Errorf("%w: settlement %d of %d", ErrOutOfRange, i, len(rec.Settlements))
	}
	return rec.Settlements[i], nil
}

// ──────────────────────────────────────────────────
// Configuration
// ──────────────────────────────────────────────────

// DemurrageParameters returns the current decay parameters.
func (c *Controller) DemurrageParameters() demurrage.Params {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Demurrage
}

// RedemptionFee returns the current withdrawal fee schedule.
func (c *Controller) RedemptionFee() fee.Schedule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Fee
}

// Paused reports whether funds movement is paused.
func (c *Controller) Paused() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Paused
}

// Owner returns the controller owner.
func (c *Controller) Owner() types.Principal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Owner
}

// Custodian returns the payout address.
func (c *Controller) Custodian() types.Principal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Custodian
}

// FeeSink returns the account receiving redemption fees.
func (c *Controller) FeeSink() types.UserID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.FeeSink
}

// CommunityChest returns the account receiving decay and round-ups.
func (c *Controller) CommunityChest() types.UserID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.CommunityChest
}

// Principal returns the principal the controller holds custody under.
func (c *Controller) Principal() types.Principal { return c.self }

// Seq returns the sequence number of the last commit.
func (c *Controller) Seq() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.seq
}

// ──────────────────────────────────────────────────
// Roles
// ──────────────────────────────────────────────────

// HasRole reports whether p holds role.
func (c *Controller) HasRole(role rbac.Role, p types.Principal) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roles.Has(role, p)
}

// RoleMembers lists the members of role in grant order.
func (c *Controller) RoleMembers(role rbac.Role) []types.Principal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roles.Members(role)
}

// RoleMemberCount returns the number of members of role.
func (c *Controller) RoleMemberCount(role rbac.Role) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roles.Count(role)
}

// RoleMemberAt returns the i-th member of role.
func (c *Controller) RoleMemberAt(role rbac.Role, i int) (types.Principal, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.roles.At(role, i)
	if !ok {
		return "", fmt.Errorf("%w: %s member %d", ErrOutOfRange, role, i)
	}
	return p, nil
}

// ──────────────────────────────────────────────────
// Versions and history
// ──────────────────────────────────────────────────

// Versions reports the version of the controller, the current factory, the
// shared account logic and the decay function.
func (c *Controller) Versions() Versions {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Versions{
		Controller: Version,
		Factory:    c.factory.Version(),
		Account:    c.beacon.Logic().Version(),
		Demurrage:  demurrage.Version,
	}
}

// Events lists committed events from the store.
func (c *Controller) Events(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	return c.store.ListEvents(ctx, opts)
}
