// Package custody provides a custodial stable-token ledger engine for Go
// applications.
//
// Custody is designed as a library, not a service. A Controller holds the
// backing tokens under its own principal and keeps one sub-account per user.
// It provides:
//
//   - Deposits that mint into custody and withdrawals that pay out to a custodian
//   - Internal transfers with optional round-ups to a community chest
//   - Authorization holds and settlement into a reconcilable pool
//   - Time-based balance decay (demurrage) in 64.64 fixed point
//   - Role-based access (OPERATOR, ADMIN, PAUSER) and an emergency pause
//   - Upgradeable account logic shared by every sub-account
//   - A persisted journal that rebuilds the controller on start
//
// # Quick Start
//
// Create a controller with a token and a store:
//
//	import (
//	    "github.com/xraph/custody"
//	    "github.com/xraph/custody/store/memory"
//	    "github.com/xraph/custody/token"
//	)
//
//	tok := token.NewMemory("0xcustody")
//	c, err := custody.New("0xcustody", tok, memory.New(),
//	    custody.WithOwner("0xowner"),
//	    custody.WithCustodian("0xbank"),
//	    custody.WithRole(rbac.Operator, "0xbackend"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := c.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Stop()
//
// # Callers
//
// Every mutating operation reads the caller's principal from the context:
//
//	ctx = custody.WithPrincipal(ctx, "0xbackend")
//	err := c.Deposit(ctx, userID, types.Tokens(100))
//
// Operations are atomic. A failed call leaves balances, holds, the pool and
// the journal exactly as they were. Errors can be classified with KindOf,
// IsNotFound, IsInsufficient, IsAuthorization, IsLifecycle and IsValidation.
//
// # Amounts
//
// Amounts are unsigned 256-bit integers in base units of an 18-decimal
// token. types.Tokens and types.ParseUnits convert from whole or decimal
// token amounts.
//
// # Decay
//
// Balances lose a fixed ratio per epoch once a number of free epochs have
// passed since the account was last written. Reads report the decayed value
// without persisting it; the next write settles the difference into the
// community chest.
//
// # Identifiers
//
// Users are identified by 32-byte ids, usually the keccak-256 hash of an
// external identifier. Records, events and commits use TypeIDs:
//
//	acct_01h2xcejqtf2nbrexx3vqjhp41  // Account ID
//	evt_01h2xcejqtf2nbrexx3vqjhp41   // Event ID
//	cmt_01h455vb4pex5vsknk084sn02q   // Commit ID
package custody
