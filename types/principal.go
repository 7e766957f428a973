package types

import "strings"

// Principal identifies a caller or an address in the token ledger: an
// operator, the controller itself, the custodian, an external recipient.
type Principal string

// IsZero reports whether p is empty.
func (p Principal) IsZero() bool { return strings.TrimSpace(string(p)) == "" }

// String returns p as a string.
func (p Principal) String() string { return string(p) }
