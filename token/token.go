// Package token describes the fungible token ledger the controller moves
// funds through, and provides an in-memory implementation.
package token

import (
	"context"
	"errors"
	"sync"

	"github.com/xraph/custody/types"
)

// Errors returned by Memory.
var (
	ErrNotMinter         = errors.New("token: caller is not a minter")
	ErrInsufficientFunds = errors.New("token: transfer amount exceeds balance")
	ErrZeroAddress       = errors.New("token: zero address")
)

// Token is the token ledger collaborator. Minting is role-gated by the
// implementation.
type Token interface {
	Mint(ctx context.Context, minter, to types.Principal, amount types.Amount) error
	Transfer(ctx context.Context, from, to types.Principal, amount types.Amount) error
	BalanceOf(ctx context.Context, who types.Principal) (types.Amount, error)
}

// Memory is a process-local Token.
type Memory struct {
	mu       sync.RWMutex
	balances map[types.Principal]types.Amount
	minters  map[types.Principal]struct{}
	supply   types.Amount
}

var _ Token = (*Memory)(nil)

// NewMemory returns a token in which the given principals may mint.
func NewMemory(minters ...types.Principal) *Memory {
	m := &Memory{
		balances: make(map[types.Principal]types.Amount),
		minters:  make(map[types.Principal]struct{}),
	}
	for _, p := range minters {
		m.minters[p] = struct{}{}
	}
	return m
}

// AddMinter grants the minter role.
func (m *Memory) AddMinter(p types.Principal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.minters[p] = struct{}{}
}

// Mint implements Token.
func (m *Memory) Mint(_ context.Context, minter, to types.Principal, amount types.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.minters[minter]; !ok {
		return ErrNotMinter
	}
	if to.IsZero() {
		return ErrZeroAddress
	}
	supply, overflow := m.supply.Add(amount)
	if overflow {
		return errors.New("token: supply overflow")
	}
	bal, _ := m.balances[to].Add(amount)
	m.supply = supply
	m.balances[to] = bal
	return nil
}

// Transfer implements Token.
func (m *Memory) Transfer(_ context.Context, from, to types.Principal, amount types.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if to.IsZero() {
		return ErrZeroAddress
	}
	src, underflow := m.balances[from].Sub(amount)
	if underflow {
		return ErrInsufficientFunds
	}
	m.balances[from] = src
	dst, _ := m.balances[to].Add(amount)
	m.balances[to] = dst
	return nil
}

// BalanceOf implements Token.
func (m *Memory) BalanceOf(_ context.Context, who types.Principal) (types.Amount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[who], nil
}

// TotalSupply returns the amount minted so far.
func (m *Memory) TotalSupply() types.Amount {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.supply
}
