package custody

import (
	"context"
	"fmt"

	"github.com/xraph/custody/account"
	"github.com/xraph/custody/demurrage"
	"github.com/xraph/custody/event"
	"github.com/xraph/custody/factory"
	"github.com/xraph/custody/fee"
	"github.com/xraph/custody/journal"
	"github.com/xraph/custody/rbac"
	"github.com/xraph/custody/types"
)

// ──────────────────────────────────────────────────
// Pause
// ──────────────────────────────────────────────────

// Pause blocks deposits, withdrawals and transfers.
func (c *Controller) Pause(ctx context.Context) error {
	return c.run(ctx, "pause", func(tx *txn) error {
		if err := tx.requireRole(false, rbac.Pauser); err != nil {
			return err
		}
		if tx.state.Paused {
			return ErrAlreadyPaused
		}
		tx.state.Paused = true
		tx.emit(event.Paused, nil)
		return nil
	})
}

// Unpause lifts a pause.
func (c *Controller) Unpause(ctx context.Context) error {
	return c.run(ctx, "unpause", func(tx *txn) error {
		if err := tx.requireRole(false, rbac.Pauser); err != nil {
			return err
		}
		if !tx.state.Paused {
			return ErrNotPaused
		}
		tx.state.Paused = false
		tx.emit(event.Unpaused, nil)
		return nil
	})
}

// WithdrawToCustodian sweeps every token held in custody to the custodian.
// Sub-account balances are left as they are. Only the owner may call it and
// only while paused.
func (c *Controller) WithdrawToCustodian(ctx context.Context) error {
	return c.run(ctx, "withdraw_to_custodian", func(tx *txn) error {
		if err := tx.requireOwner(); err != nil {
			return err
		}
		if !tx.state.Paused {
			return ErrNotPaused
		}
		if tx.state.Custodian.IsZero() {
			return ErrMissingAddress
		}
		held, err := c.token.BalanceOf(ctx, c.self)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrTokenFailed, err)
		}
		if !held.IsZero() {
			tx.moves = append(tx.moves, tokenMove{to: tx.state.Custodian, amount: held})
		}
		tx.emit(event.EmergencyWithdrawal, func(e *event.Event) {
			e.Address = tx.state.Custodian
			e.Amount = held
		})
		c.logger.Warn("emergency withdrawal to custodian",
			"custodian", tx.state.Custodian,
			"amount", held,
		)
		return nil
	})
}

// ──────────────────────────────────────────────────
// Configuration
// ──────────────────────────────────────────────────

// SetDemurrageParameters replaces the decay parameters. Decay accrued under
// the previous parameters is settled on every account first.
func (c *Controller) SetDemurrageParameters(ctx context.Context, p demurrage.Params) error {
	return c.run(ctx, "set_demurrage", func(tx *txn) error {
		if err := tx.requireRole(false, rbac.Admin); err != nil {
			return err
		}
		if err := p.Validate(); err != nil {
			return err
		}
		for _, uid := range c.registry {
			if rec := c.accounts[uid]; rec.Kind == account.KindSystem || rec.Owner != c.self {
				continue
			}
			if _, err := tx.account(uid, "user"); err != nil {
				return err
			}
		}
		prev := tx.state.Demurrage
		tx.state.Demurrage = p
		tx.emit(event.ConfigUpdated, func(e *event.Event) {
			e.Metadata = map[string]string{
				"setting":        "demurrage",
				"epoch_length":   p.EpochLength.String(),
				"free_epochs":    fmt.Sprint(p.FreeEpochs),
				"numerator":      fmt.Sprint(p.Numerator),
				"denominator":    fmt.Sprint(p.Denominator),
				"previous_ratio": fmt.Sprintf("%d/%d", prev.Numerator, prev.Denominator),
			}
		})
		return nil
	})
}

// SetRedemptionFee replaces the withdrawal fee schedule.
func (c *Controller) SetRedemptionFee(ctx context.Context, s fee.Schedule) error {
	return c.run(ctx, "set_redemption_fee", func(tx *txn) error {
		if err := tx.requireRole(false, rbac.Admin); err != nil {
			return err
		}
		if err := s.Validate(); err != nil {
			return err
		}
		tx.state.Fee = s
		tx.emit(event.ConfigUpdated, func(e *event.Event) {
			e.Metadata = map[string]string{
				"setting":     "redemption_fee",
				"numerator":   fmt.Sprint(s.Numerator),
				"denominator": fmt.Sprint(s.Denominator),
				"quantum":     s.Quantum.String(),
			}
		})
		return nil
	})
}

// SetCustodian changes the address that receives payouts.
func (c *Controller) SetCustodian(ctx context.Context, addr types.Principal) error {
	return c.run(ctx, "set_custodian", func(tx *txn) error {
		if err := tx.requireRole(true, rbac.Admin); err != nil {
			return err
		}
		if addr.IsZero() {
			return ErrMissingAddress
		}
		tx.state.Custodian = addr
		tx.emit(event.ConfigUpdated, func(e *event.Event) {
			e.Address = addr
			e.Metadata = map[string]string{"setting": "custodian"}
		})
		return nil
	})
}

// SetCommunityChest repoints the account that receives decay and round-ups.
func (c *Controller) SetCommunityChest(ctx context.Context, userID types.UserID) error {
	return c.setSystemAccount(ctx, "community_chest", userID, func(s *journal.State) { s.CommunityChest = userID })
}

// SetFeeSink repoints the account that receives redemption fees.
func (c *Controller) SetFeeSink(ctx context.Context, userID types.UserID) error {
	return c.setSystemAccount(ctx, "fee_sink", userID, func(s *journal.State) { s.FeeSink = userID })
}

func (c *Controller) setSystemAccount(ctx context.Context, setting string, userID types.UserID, set func(*journal.State)) error {
	return c.run(ctx, "set_"+setting, func(tx *txn) error {
		if err := tx.requireRole(true, rbac.Admin); err != nil {
			return err
		}
		if !tx.exists(userID) {
			return &UserError{Side: "user", UserID: userID, Err: ErrUnknownUser}
		}
		set(&tx.state)
		tx.emit(event.ConfigUpdated, func(e *event.Event) {
			e.UserID = userID
			e.Metadata = map[string]string{"setting": setting}
		})
		return nil
	})
}

// ──────────────────────────────────────────────────
// Implementation and factory
// ──────────────────────────────────────────────────

// UpdateAccountImplementation swaps the logic shared by every sub-account.
// Once the swap commits, the implementation is registered by version so it
// can be resolved when the journal is replayed.
func (c *Controller) UpdateAccountImplementation(ctx context.Context, l account.Logic) error {
	return c.run(ctx, "update_implementation", func(tx *txn) error {
		if err := tx.requireOwner(); err != nil {
			return err
		}
		if l == nil || l.Version() == "" {
			return ErrInvalidImplementation
		}
		prev := tx.state.Implementation
		tx.logic = l
		tx.upgrade = true
		tx.state.Implementation = l.Version()
		tx.emit(event.ImplementationUpdated, func(e *event.Event) {
			e.Metadata = map[string]string{"previous": prev, "version": l.Version()}
		})
		return nil
	})
}

// SetFactory replaces the factory used for new accounts. Existing accounts
// keep their records.
func (c *Controller) SetFactory(ctx context.Context, f factory.Factory) error {
	return c.run(ctx, "set_factory", func(tx *txn) error {
		if err := tx.requireOwner(); err != nil {
			return err
		}
		if f == nil {
			return ErrInvalidImplementation
		}
		prev := tx.state.Factory
		tx.factory = f
		tx.state.Factory = f.Version()
		tx.emit(event.FactoryUpdated, func(e *event.Event) {
			e.Metadata = map[string]string{"previous": prev, "version": f.Version()}
		})
		return nil
	})
}

// ──────────────────────────────────────────────────
// Ownership and roles
// ──────────────────────────────────────────────────

// TransferOwnership hands the controller to newOwner.
func (c *Controller) TransferOwnership(ctx context.Context, newOwner types.Principal) error {
	return c.run(ctx, "transfer_ownership", func(tx *txn) error {
		if err := tx.requireOwner(); err != nil {
			return err
		}
		if newOwner.IsZero() {
			return ErrMissingAddress
		}
		prev := tx.state.Owner
		tx.state.Owner = newOwner
		tx.emit(event.OwnershipTransferred, func(e *event.Event) {
			e.Address = newOwner
			e.Metadata = map[string]string{"previous": prev.String()}
		})
		return nil
	})
}

// TransferAccountOwnership reassigns the principal allowed to drive the
// account. Pending decay is settled first. Afterwards the controller can no
// longer operate on the account.
func (c *Controller) TransferAccountOwnership(ctx context.Context, newOwner types.Principal, userID types.UserID) error {
	return c.run(ctx, "transfer_account_ownership", func(tx *txn) error {
		if err := tx.requireOwner(); err != nil {
			return err
		}
		if newOwner.IsZero() {
			return ErrMissingAddress
		}
		rec, err := tx.account(userID, "user")
		if err != nil {
			return err
		}
		rec.Owner = newOwner
		rec.Touch(tx.now)
		tx.emit(event.AccountOwnershipTransferred, func(e *event.Event) {
			e.UserID = userID
			e.Address = newOwner
		})
		return nil
	})
}

// GrantRole adds p to role. The owner may grant any role; admins may grant
// OPERATOR and PAUSER. Granting an existing membership changes nothing.
func (c *Controller) GrantRole(ctx context.Context, role rbac.Role, p types.Principal) error {
	return c.changeRole(ctx, "grant_role", role, p, true)
}

// RevokeRole removes p from role under the same rules as GrantRole.
func (c *Controller) RevokeRole(ctx context.Context, role rbac.Role, p types.Principal) error {
	return c.changeRole(ctx, "revoke_role", role, p, false)
}

func (c *Controller) changeRole(ctx context.Context, op string, role rbac.Role, p types.Principal, grant bool) error {
	return c.run(ctx, op, func(tx *txn) error {
		if role == rbac.Admin {
			if err := tx.requireOwner(); err != nil {
				return err
			}
		} else if err := tx.requireRole(true, rbac.Admin); err != nil {
			return err
		}
		if !role.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownRole, role)
		}
		if p.IsZero() {
			return ErrMissingAddress
		}

		var changed bool
		var err error
		if grant {
			changed, err = tx.roles().Grant(role, p)
		} else {
			changed, err = tx.roles().Revoke(role, p)
		}
		if err != nil {
			return err
		}
		if !changed {
			tx.skip = true
			return nil
		}

		kind := event.RoleGranted
		if !grant {
			kind = event.RoleRevoked
		}
		tx.emit(kind, func(e *event.Event) {
			e.Address = p
			e.Metadata = map[string]string{"role": string(role)}
		})
		return nil
	})
}
