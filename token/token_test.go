package token_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/custody/token"
	"github.com/xraph/custody/types"
)

func TestMemoryToken(t *testing.T) {
	ctx := context.Background()
	tok := token.NewMemory("0xminter")

	if err := tok.Mint(ctx, "0xnobody", "0xa", types.Tokens(1)); !errors.Is(err, token.ErrNotMinter) {
		t.Errorf("mint by non-minter: got %v", err)
	}
	if err := tok.Mint(ctx, "0xminter", "0xa", types.Tokens(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := tok.Transfer(ctx, "0xa", "0xb", types.Tokens(11)); !errors.Is(err, token.ErrInsufficientFunds) {
		t.Errorf("overdraw: got %v", err)
	}
	if err := tok.Transfer(ctx, "0xa", "0xb", types.Tokens(4)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := tok.Transfer(ctx, "0xa", "", types.Tokens(1)); !errors.Is(err, token.ErrZeroAddress) {
		t.Errorf("zero address: got %v", err)
	}

	a, _ := tok.BalanceOf(ctx, "0xa")
	b, _ := tok.BalanceOf(ctx, "0xb")
	if !a.Eq(types.Tokens(6)) || !b.Eq(types.Tokens(4)) {
		t.Errorf("balances a=%s b=%s", a, b)
	}
	if !tok.TotalSupply().Eq(types.Tokens(10)) {
		t.Errorf("supply = %s", tok.TotalSupply())
	}

	tok.AddMinter("0xb")
	if err := tok.Mint(ctx, "0xb", "0xb", types.Tokens(1)); err != nil {
		t.Errorf("mint by new minter: %v", err)
	}
}
