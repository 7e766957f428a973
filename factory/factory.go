// Package factory provisions sub-account records and holds the beacon that
// points every record at the shared account Logic.
package factory

import (
	"errors"
	"sync"
	"time"

	"github.com/xraph/custody/account"
	"github.com/xraph/custody/id"
	"github.com/xraph/custody/types"
)

// ErrMissingUserID is returned when an account is requested for the zero UserID.
var ErrMissingUserID = errors.New("factory: user id is required")

// Version of the Standard factory.
const Version = "1.0.0"

// Factory creates sub-account records. Registry uniqueness is the caller's
// concern; a factory creates whatever it is asked to.
type Factory interface {
	Version() string
	CreateAccount(owner types.Principal, userID types.UserID, kind account.Kind, now time.Time) (*account.Record, error)
}

// Standard is the default Factory.
type Standard struct{}

var _ Factory = Standard{}

// New returns the Standard factory.
func New() Standard { return Standard{} }

// Version implements Factory.
func (Standard) Version() string { return Version }

// CreateAccount implements Factory. The record's decay checkpoint starts at now.
func (Standard) CreateAccount(owner types.Principal, userID types.UserID, kind account.Kind, now time.Time) (*account.Record, error) {
	if userID.IsZero() {
		return nil, ErrMissingUserID
	}
	if kind == "" {
		kind = account.KindUser
	}
	return &account.Record{
		Entity:              types.NewEntity(now),
		ID:                  id.NewAccountID(),
		UserID:              userID,
		Kind:                kind,
		Owner:               owner,
		Factory:             Version,
		LastDecayCheckpoint: now.UTC(),
	}, nil
}

// Beacon holds the Logic shared by every record. Upgrading it changes the
// behaviour of all existing and future accounts at once.
type Beacon struct {
	mu    sync.RWMutex
	logic account.Logic
}

// NewBeacon returns a beacon pointing at l, or at account.Standard when l is nil.
func NewBeacon(l account.Logic) *Beacon {
	if l == nil {
		l = account.Standard{}
	}
	return &Beacon{logic: l}
}

// Logic returns the current implementation.
func (b *Beacon) Logic() account.Logic {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.logic
}

// Upgrade installs l and returns the previous implementation.
func (b *Beacon) Upgrade(l account.Logic) account.Logic {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev := b.logic
	b.logic = l
	return prev
}
