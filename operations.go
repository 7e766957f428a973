package custody

import (
	"context"

	"github.com/xraph/custody/account"
	"github.com/xraph/custody/event"
	"github.com/xraph/custody/rbac"
	"github.com/xraph/custody/types"
)

// ──────────────────────────────────────────────────
// Accounts
// ──────────────────────────────────────────────────

// CreateAccount registers a new sub-account for userID.
func (c *Controller) CreateAccount(ctx context.Context, userID types.UserID) error {
	return c.run(ctx, "create_account", func(tx *txn) error {
		if err := tx.requireRole(false, rbac.Operator); err != nil {
			return err
		}
		_, err := tx.create(userID, account.KindUser)
		return err
	})
}

// ──────────────────────────────────────────────────
// Funds
// ──────────────────────────────────────────────────

// Deposit mints amount into custody and credits it to userID.
func (c *Controller) Deposit(ctx context.Context, userID types.UserID, amount types.Amount) error {
	return c.run(ctx, "deposit", func(tx *txn) error {
		if err := tx.requireRole(false, rbac.Operator); err != nil {
			return err
		}
		if err := tx.requireNotPaused(); err != nil {
			return err
		}
		rec, err := tx.account(userID, "user")
		if err != nil {
			return err
		}
		if err := tx.guard(ctx, userID, types.UserID{}, amount); err != nil {
			return err
		}
		if err := tx.logic.Credit(rec, tx.env(), amount); err != nil {
			return err
		}
		tx.moves = append(tx.moves, tokenMove{mint: true, amount: amount})
		tx.emit(event.Deposit, func(e *event.Event) {
			e.UserID = userID
			e.Amount = amount
		})
		return nil
	})
}

// Withdraw debits amount from userID. The redemption fee is kept in the fee
// sink and the remainder is paid out of custody to the custodian.
func (c *Controller) Withdraw(ctx context.Context, userID types.UserID, amount types.Amount) error {
	return c.run(ctx, "withdraw", func(tx *txn) error {
		if err := tx.requireRole(false, rbac.Operator); err != nil {
			return err
		}
		if err := tx.requireNotPaused(); err != nil {
			return err
		}
		if tx.state.Custodian.IsZero() {
			return ErrMissingAddress
		}
		rec, err := tx.account(userID, "user")
		if err != nil {
			return err
		}
		if err := tx.guard(ctx, userID, types.UserID{}, amount); err != nil {
			return err
		}
		if err := tx.logic.Debit(rec, tx.env(), amount); err != nil {
			return err
		}

		charged := tx.state.Fee.Compute(amount)
		if !charged.IsZero() {
			sink, err := tx.account(tx.state.FeeSink, "fee sink")
			if err != nil {
				return err
			}
			if err := tx.logic.Credit(sink, tx.env(), charged); err != nil {
				return err
			}
		}
		payout, _ := amount.Sub(charged)
		if !payout.IsZero() {
			tx.moves = append(tx.moves, tokenMove{to: tx.state.Custodian, amount: payout})
		}

		tx.emit(event.Withdrawal, func(e *event.Event) {
			e.UserID = userID
			e.Address = tx.state.Custodian
			e.Amount = amount
			e.Metadata = map[string]string{"payout": payout.String()}
		})
		if !charged.IsZero() {
			tx.emit(event.RedemptionFee, func(e *event.Event) {
				e.UserID = userID
				e.Counterparty = tx.state.FeeSink
				e.Amount = charged
			})
		}
		return nil
	})
}

// Transfer moves amount from one account to another. A non-zero roundUp is
// debited from the sender in addition and credited to the community chest.
func (c *Controller) Transfer(ctx context.Context, from, to types.UserID, amount, roundUp types.Amount) error {
	return c.run(ctx, "transfer", func(tx *txn) error {
		if err := tx.requireRole(false, rbac.Operator); err != nil {
			return err
		}
		if err := tx.requireNotPaused(); err != nil {
			return err
		}
		src, err := tx.account(from, "sender")
		if err != nil {
			return err
		}
		dst, err := tx.account(to, "receiver")
		if err != nil {
			return err
		}
		if err := tx.guard(ctx, from, to, amount); err != nil {
			return err
		}
		if err := tx.debitWithRoundUp(src, amount, roundUp); err != nil {
			return err
		}
		if err := tx.logic.Credit(dst, tx.env(), amount); err != nil {
			return err
		}

		tx.emit(event.Transfer, func(e *event.Event) {
			e.UserID = from
			e.Counterparty = to
			e.Amount = amount
		})
		tx.emitRoundUp(from, roundUp)
		return nil
	})
}

// TransferToAddress moves amount out of custody from an account to an
// external address.
func (c *Controller) TransferToAddress(ctx context.Context, from types.UserID, to types.Principal, amount, roundUp types.Amount) error {
	return c.run(ctx, "transfer_to_address", func(tx *txn) error {
		if err := tx.requireRole(false, rbac.Operator); err != nil {
			return err
		}
		if err := tx.requireNotPaused(); err != nil {
			return err
		}
		if to.IsZero() {
			return ErrMissingAddress
		}
		src, err := tx.account(from, "sender")
		if err != nil {
			return err
		}
		if err := tx.guard(ctx, from, types.UserID{}, amount); err != nil {
			return err
		}
		if err := tx.debitWithRoundUp(src, amount, roundUp); err != nil {
			return err
		}
		tx.moves = append(tx.moves, tokenMove{to: to, amount: amount})

		tx.emit(event.Transfer, func(e *event.Event) {
			e.UserID = from
			e.Address = to
			e.Amount = amount
		})
		tx.emitRoundUp(from, roundUp)
		return nil
	})
}

// debitWithRoundUp debits amount plus roundUp in a single step so a shortfall
// leaves the sender unchanged.
func (tx *txn) debitWithRoundUp(src *account.Record, amount, roundUp types.Amount) error {
	if amount.IsZero() {
		return account.ErrZeroAmount
	}
	total, overflow := amount.Add(roundUp)
	if overflow {
		return account.ErrOverflow
	}
	if err := tx.logic.Debit(src, tx.env(), total); err != nil {
		return err
	}
	if roundUp.IsZero() {
		return nil
	}
	return tx.toChest(roundUp)
}

func (tx *txn) emitRoundUp(from types.UserID, roundUp types.Amount) {
	if roundUp.IsZero() {
		return
	}
	tx.emit(event.Transfer, func(e *event.Event) {
		e.UserID = from
		e.Counterparty = tx.state.CommunityChest
		e.Amount = roundUp
		e.Metadata = map[string]string{"round_up": "true"}
	})
}

// ──────────────────────────────────────────────────
// Authorizations and settlement
// ──────────────────────────────────────────────────

// Authorize places a hold of amount on userID under authID.
func (c *Controller) Authorize(ctx context.Context, userID types.UserID, authID string, amount types.Amount) error {
	return c.run(ctx, "authorize", func(tx *txn) error {
		if err := tx.requireRole(false, rbac.Operator); err != nil {
			return err
		}
		rec, err := tx.account(userID, "user")
		if err != nil {
			return err
		}
		if err := tx.logic.Authorize(rec, tx.env(), authID, amount); err != nil {
			return err
		}
		tx.emit(event.AuthorizationCreated, func(e *event.Event) {
			e.UserID = userID
			e.Reference = authID
			e.Amount = amount
		})
		return nil
	})
}

// Deauthorize releases the hold authID on userID.
func (c *Controller) Deauthorize(ctx context.Context, userID types.UserID, authID string) error {
	return c.run(ctx, "deauthorize", func(tx *txn) error {
		if err := tx.requireRole(false, rbac.Operator); err != nil {
			return err
		}
		rec, err := tx.account(userID, "user")
		if err != nil {
			return err
		}
		released, err := tx.logic.Deauthorize(rec, tx.env(), authID)
		if err != nil {
			return err
		}
		tx.emit(event.AuthorizationReleased, func(e *event.Event) {
			e.UserID = userID
			e.Reference = authID
			e.Amount = released
		})
		return nil
	})
}

// Settle debits amount from userID into the settlement pool, releasing the
// hold with the same id if one is active.
func (c *Controller) Settle(ctx context.Context, userID types.UserID, settlementID string, amount types.Amount) error {
	return c.run(ctx, "settle", func(tx *txn) error {
		if err := tx.requireRole(false, rbac.Operator); err != nil {
			return err
		}
		rec, err := tx.account(userID, "user")
		if err != nil {
			return err
		}
		if err := tx.guard(ctx, userID, types.UserID{}, amount); err != nil {
			return err
		}
		released, err := tx.logic.Settle(rec, tx.env(), settlementID, amount)
		if err != nil {
			return err
		}
		pool, overflow := tx.state.Pool.Add(amount)
		if overflow {
			return account.ErrOverflow
		}
		tx.state.Pool = pool

		if !released.IsZero() {
			tx.emit(event.AuthorizationReleased, func(e *event.Event) {
				e.UserID = userID
				e.Reference = settlementID
				e.Amount = released
			})
		}
		tx.emit(event.Settlement, func(e *event.Event) {
			e.UserID = userID
			e.Reference = settlementID
			e.Amount = amount
		})
		return nil
	})
}

// Reconcile pays the whole settlement pool out of custody to the custodian.
func (c *Controller) Reconcile(ctx context.Context) error {
	return c.run(ctx, "reconcile", func(tx *txn) error {
		if err := tx.requireRole(true, rbac.Admin); err != nil {
			return err
		}
		if tx.state.Custodian.IsZero() {
			return ErrMissingAddress
		}
		swept := tx.state.Pool
		if !swept.IsZero() {
			tx.moves = append(tx.moves, tokenMove{to: tx.state.Custodian, amount: swept})
		}
		tx.state.Pool = types.Zero
		tx.emit(event.ReconciliationSwept, func(e *event.Event) {
			e.Address = tx.state.Custodian
			e.Amount = swept
		})
		return nil
	})
}
