// Package id defines TypeID-based identifiers for custody records.
//
// Accounts, events and journal commits carry a single ID type whose prefix
// names the record kind. IDs are K-sortable (UUIDv7-based) and render as
// "prefix_suffix".
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix names the record kind encoded in a TypeID.
type Prefix string

// Known prefixes.
const (
	PrefixAccount Prefix = "acct" // Sub-account record
	PrefixEvent   Prefix = "evt"  // Domain event
	PrefixCommit  Prefix = "cmt"  // Journal commit
)

// ID identifies a custody record.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	tid typeid.TypeID
	ok  bool
}

// Nil is the zero-value ID.
var Nil ID

// AccountID identifies a sub-account record (prefix: "acct").
type AccountID = ID

// EventID identifies a domain event (prefix: "evt").
type EventID = ID

// CommitID identifies a journal commit (prefix: "cmt").
type CommitID = ID

// New generates an ID with the given prefix. An invalid prefix is a
// programming error and panics.
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return ID{tid: tid, ok: true}
}

// NewAccountID generates an account ID.
func NewAccountID() ID { return New(PrefixAccount) }

// NewEventID generates an event ID.
func NewEventID() ID { return New(PrefixEvent) }

// NewCommitID generates a commit ID.
func NewCommitID() ID { return New(PrefixCommit) }

// Parse parses "prefix_suffix" into an ID.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID{tid: tid, ok: true}, nil
}

// ParseWithPrefix parses s and requires the given prefix.
func ParseWithPrefix(s string, want Prefix) (ID, error) {
	v, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if v.Prefix() != want {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", want, v.Prefix())
	}
	return v, nil
}

// MustParse is Parse that panics on error. Use for literals.
func MustParse(s string) ID {
	v, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}
	return v
}

// ParseAccountID parses an "acct" ID.
func ParseAccountID(s string) (ID, error) { return ParseWithPrefix(s, PrefixAccount) }

// ParseEventID parses an "evt" ID.
func ParseEventID(s string) (ID, error) { return ParseWithPrefix(s, PrefixEvent) }

// ParseCommitID parses a "cmt" ID.
func ParseCommitID(s string) (ID, error) { return ParseWithPrefix(s, PrefixCommit) }

// String returns "prefix_suffix", or "" for Nil.
func (i ID) String() string {
	if !i.ok {
		return ""
	}
	return i.tid.String()
}

// Prefix returns the prefix, or "" for Nil.
func (i ID) Prefix() Prefix {
	if !i.ok {
		return ""
	}
	return Prefix(i.tid.Prefix())
}

// IsNil reports whether i is the zero value.
func (i ID) IsNil() bool { return !i.ok }

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input yields Nil.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	v, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = v
	return nil
}

// Value implements driver.Valuer. Nil is stored as NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.ok {
		return nil, nil //nolint:nilnil // NULL column
	}
	return i.tid.String(), nil
}

// Scan implements sql.Scanner.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
