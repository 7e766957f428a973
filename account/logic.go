package account

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/xraph/custody/demurrage"
	"github.com/xraph/custody/types"
)

// Errors returned by Logic implementations.
var (
	ErrNotAccountOwner        = errors.New("account: caller does not own the account")
	ErrZeroAmount             = errors.New("account: amount must be greater than zero")
	ErrInvalidAmount          = errors.New("account: invalid amount")
	ErrInsufficientBalance    = errors.New("account: insufficient balance")
	ErrInsufficientAvailable  = errors.New("account: insufficient available balance")
	ErrDuplicateAuthorization = errors.New("account: authorization id already active")
	ErrUnknownAuthorization   = errors.New("account: authorization not found")
	ErrDuplicateSettlement    = errors.New("account: settlement id already used")
	ErrMissingReference       = errors.New("account: reference id is required")
	ErrOverflow               = errors.New("account: balance overflow")
)

// Env is what the owning controller supplies on every call.
type Env struct {
	Caller    types.Principal
	Now       time.Time
	Demurrage demurrage.Params
}

// Logic is the behaviour shared by every sub-account. Callers Touch a
// record before any balance-affecting call so that decay is settled first.
type Logic interface {
	// Version identifies the implementation; it is persisted and resolved
	// with Lookup on restart.
	Version() string

	// Touch applies decay accrued since the record's checkpoint and returns
	// the amount removed. The checkpoint advances by the epochs charged;
	// an empty record restarts it at env.Now.
	Touch(r *Record, env Env) (types.Amount, error)

	// View returns the decayed balance as of now without modifying r.
	View(r *Record, p demurrage.Params, now time.Time) types.Amount

	Credit(r *Record, env Env, amount types.Amount) error
	Debit(r *Record, env Env, amount types.Amount) error
	Authorize(r *Record, env Env, authID string, amount types.Amount) error
	Deauthorize(r *Record, env Env, authID string) (types.Amount, error)

	// Settle debits amount, releases the matching hold if one is active,
	// and records the settlement. It returns the released hold amount.
	Settle(r *Record, env Env, settlementID string, amount types.Amount) (types.Amount, error)
}

// Standard is the default Logic.
type Standard struct{}

var _ Logic = Standard{}

// StandardVersion is the version string of Standard.
const StandardVersion = "1.0.0"

// Version implements Logic.
func (Standard) Version() string { return StandardVersion }

// Touch implements Logic.
func (Standard) Touch(r *Record, env Env) (types.Amount, error) {
	if err := checkOwner(r, env); err != nil {
		return types.Zero, err
	}
	if r.Kind == KindSystem || r.Balance.IsZero() {
		r.LastDecayCheckpoint = env.Now.UTC()
		return types.Zero, nil
	}
	// The checkpoint only moves by the epochs actually charged, so the
	// part-epoch remainder and the free window carry over.
	decayed, consumed := demurrage.Apply(r.Balance, env.Now.Sub(r.LastDecayCheckpoint), env.Demurrage)
	lost, _ := r.Balance.Sub(decayed)
	r.Balance = decayed
	if consumed > 0 {
		r.LastDecayCheckpoint = r.LastDecayCheckpoint.Add(consumed).UTC()
	}
	if !lost.IsZero() {
		r.Touch(env.Now)
	}
	return lost, nil
}

// View implements Logic.
func (Standard) View(r *Record, p demurrage.Params, now time.Time) types.Amount {
	if r.Kind == KindSystem {
		return r.Balance
	}
	return demurrage.Decay(r.Balance, now.Sub(r.LastDecayCheckpoint), p)
}

// Credit implements Logic.
func (Standard) Credit(r *Record, env Env, amount types.Amount) error {
	if err := checkOwner(r, env); err != nil {
		return err
	}
	if amount.IsZero() {
		return ErrZeroAmount
	}
	bal, overflow := r.Balance.Add(amount)
	if overflow {
		return ErrOverflow
	}
	r.Balance = bal
	r.Touch(env.Now)
	return nil
}

// Debit implements Logic.
func (Standard) Debit(r *Record, env Env, amount types.Amount) error {
	if err := checkOwner(r, env); err != nil {
		return err
	}
	if amount.IsZero() {
		return ErrZeroAmount
	}
	bal, underflow := r.Balance.Sub(amount)
	if underflow {
		return ErrInsufficientBalance
	}
	r.Balance = bal
	r.Touch(env.Now)
	return nil
}

// Authorize implements Logic.
func (Standard) Authorize(r *Record, env Env, authID string, amount types.Amount) error {
	if err := checkOwner(r, env); err != nil {
		return err
	}
	if amount.IsZero() {
		return ErrInvalidAmount
	}
	if authID == "" {
		return ErrMissingReference
	}
	if r.holdIndex(authID) >= 0 {
		return ErrDuplicateAuthorization
	}
	if amount.Gt(r.Available()) {
		return ErrInsufficientAvailable
	}
	r.Holds = append(r.Holds, Hold{ID: authID, Amount: amount, CreatedAt: env.Now.UTC()})
	r.Touch(env.Now)
	return nil
}

// Deauthorize implements Logic.
func (Standard) Deauthorize(r *Record, env Env, authID string) (types.Amount, error) {
	if err := checkOwner(r, env); err != nil {
		return types.Zero, err
	}
	i := r.holdIndex(authID)
	if i < 0 {
		return types.Zero, ErrUnknownAuthorization
	}
	h := r.removeHold(i)
	r.Touch(env.Now)
	return h.Amount, nil
}

// Settle implements Logic.
func (Standard) Settle(r *Record, env Env, settlementID string, amount types.Amount) (types.Amount, error) {
	if err := checkOwner(r, env); err != nil {
		return types.Zero, err
	}
	if amount.IsZero() {
		return types.Zero, ErrInvalidAmount
	}
	if settlementID == "" {
		return types.Zero, ErrMissingReference
	}
	if _, ok := r.Settlement(settlementID); ok {
		return types.Zero, ErrDuplicateSettlement
	}
	bal, underflow := r.Balance.Sub(amount)
	if underflow {
		return types.Zero, ErrInsufficientBalance
	}

	var released types.Amount
	if i := r.holdIndex(settlementID); i >= 0 {
		released = r.removeHold(i).Amount
	}
	r.Balance = bal
	r.Settlements = append(r.Settlements, Settlement{
		ID:        settlementID,
		Amount:    amount,
		Released:  released,
		SettledAt: env.Now.UTC(),
	})
	r.Touch(env.Now)
	return released, nil
}

func checkOwner(r *Record, env Env) error {
	if env.Caller.IsZero() || r.Owner != env.Caller {
		return ErrNotAccountOwner
	}
	return nil
}

// ──────────────────────────────────────────────────
// Implementation registry
// ──────────────────────────────────────────────────

var (
	registryMu sync.RWMutex
	registry   = map[string]Logic{StandardVersion: Standard{}}
)

// Register makes l resolvable by its Version. Registering a version twice
// replaces the earlier implementation.
func Register(l Logic) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[l.Version()] = l
}

// Lookup returns the Logic registered under version.
func Lookup(version string) (Logic, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	l, ok := registry[version]
	return l, ok
}

// Versions lists registered implementation versions in sorted order.
func Versions() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for v := range registry {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
