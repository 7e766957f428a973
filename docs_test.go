package custody_test

import (
	"context"
	"log"
	"log/slog"
	"testing"

	"github.com/xraph/custody"
	"github.com/xraph/custody/rbac"
	"github.com/xraph/custody/store/memory"
	"github.com/xraph/custody/token"
	"github.com/xraph/custody/types"
)

// TestDocumentationExamples verifies that the package documentation examples work.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		tok := token.NewMemory("0xcustody")

		c, err := custody.New("0xcustody", tok, memory.New(),
			custody.WithLogger(slog.Default()),
			custody.WithOwner("0xowner"),
			custody.WithCustodian("0xbank"),
			custody.WithRole(rbac.Operator, "0xbackend"),
		)
		if err != nil {
			t.Fatal(err)
		}

		ctx := context.Background()
		if err := c.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer c.Stop()

		ctx = custody.WithPrincipal(ctx, "0xbackend")
		user := types.UserIDFromName("user-123")

		if err := c.CreateAccount(ctx, user); err != nil {
			t.Fatal(err)
		}
		if err := c.Deposit(ctx, user, types.Tokens(100)); err != nil {
			t.Fatal(err)
		}
		if err := c.Withdraw(ctx, user, types.Tokens(40)); err != nil {
			t.Fatal(err)
		}

		bal, err := c.BalanceOf(user)
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("balance: %s tokens\n", types.FormatUnits(bal, types.DefaultDecimals))

		paid, _ := tok.BalanceOf(ctx, "0xbank")
		if !paid.Eq(types.MustParseUnits("39.40")) {
			t.Errorf("custodian received %s", types.FormatUnits(paid, types.DefaultDecimals))
		}
	})

	t.Run("AmountExamples", func(t *testing.T) {
		_ = types.Tokens(49)                     // 49 tokens
		_ = types.MustParseUnits("0.01")         // one cent
		a, _ := types.ParseUnits("12.5", 18)     // decimal input
		_ = types.FormatUnits(a, 18)             // "12.5"
		sum, overflow := a.Add(types.Tokens(1))  // checked arithmetic
		if overflow || !sum.Eq(types.MustParseUnits("13.5")) {
			t.Errorf("sum = %s", sum)
		}
	})
}
