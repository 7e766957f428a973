// Package rbac keeps the controller's role table: enumerable member sets for
// each role, in grant order.
package rbac

import (
	"errors"
	"slices"

	"github.com/xraph/custody/types"
)

// Role names a permission set.
type Role string

// Known roles.
const (
	Operator Role = "OPERATOR"
	Admin    Role = "ADMIN"
	Pauser   Role = "PAUSER"
)

// ErrUnknownRole is returned for a role outside Roles().
var ErrUnknownRole = errors.New("rbac: unknown role")

// Roles lists every known role.
func Roles() []Role { return []Role{Operator, Admin, Pauser} }

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return slices.Contains(Roles(), r)
}

// Snapshot is the serializable form of a Table.
type Snapshot map[Role][]types.Principal

// Table maps roles to ordered member lists. It is not safe for concurrent
// use; the controller guards it with its own lock.
type Table struct {
	members map[Role][]types.Principal
}

// New returns an empty table.
func New() *Table {
	return &Table{members: make(map[Role][]types.Principal)}
}

// FromSnapshot rebuilds a table.
func FromSnapshot(s Snapshot) *Table {
	t := New()
	for r, ps := range s {
		t.members[r] = append([]types.Principal(nil), ps...)
	}
	return t
}

// Snapshot returns a deep copy of the table contents.
func (t *Table) Snapshot() Snapshot {
	s := make(Snapshot, len(t.members))
	for r, ps := range t.members {
		if len(ps) > 0 {
			s[r] = append([]types.Principal(nil), ps...)
		}
	}
	return s
}

// Clone returns an independent copy.
func (t *Table) Clone() *Table { return FromSnapshot(t.Snapshot()) }

// Grant adds p to r. It reports whether membership changed.
func (t *Table) Grant(r Role, p types.Principal) (bool, error) {
	if !r.Valid() {
		return false, ErrUnknownRole
	}
	if t.Has(r, p) {
		return false, nil
	}
	t.members[r] = append(t.members[r], p)
	return true, nil
}

// Revoke removes p from r. It reports whether membership changed.
func (t *Table) Revoke(r Role, p types.Principal) (bool, error) {
	if !r.Valid() {
		return false, ErrUnknownRole
	}
	i := slices.Index(t.members[r], p)
	if i < 0 {
		return false, nil
	}
	t.members[r] = slices.Delete(t.members[r], i, i+1)
	return true, nil
}

// Has reports whether p holds r.
func (t *Table) Has(r Role, p types.Principal) bool {
	return slices.Contains(t.members[r], p)
}

// Members returns the holders of r in grant order.
func (t *Table) Members(r Role) []types.Principal {
	return append([]types.Principal(nil), t.members[r]...)
}

// Count returns the number of holders of r.
func (t *Table) Count(r Role) int { return len(t.members[r]) }

// At returns the i-th holder of r.
func (t *Table) At(r Role, i int) (types.Principal, bool) {
	ms := t.members[r]
	if i < 0 || i >= len(ms) {
		return "", false
	}
	return ms[i], true
}
