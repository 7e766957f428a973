package types

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"
)

// UserID is the opaque 32-byte identifier of an account holder. It is
// conventionally the keccak-256 hash of an external UUID or name. The zero
// value means "missing".
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type UserID [32]byte

// Keccak256 hashes data with legacy Keccak-256.
func Keccak256(data []byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// UserIDFromName derives a UserID from an arbitrary name, e.g. "HUMANITY_CASH".
func UserIDFromName(name string) UserID {
	return UserID(Keccak256([]byte(name)))
}

// UserIDFromUUID derives a UserID from a UUID string. The UUID is validated
// and hashed in its canonical lowercase form.
func UserIDFromUUID(s string) (UserID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, fmt.Errorf("types: user uuid %q: %w", s, err)
	}
	return UserIDFromName(u.String()), nil
}

// NewRandomUserID derives a UserID from a fresh random UUID.
func NewRandomUserID() UserID {
	return UserIDFromName(uuid.NewString())
}

// ParseUserID parses a 0x-prefixed (or bare) 64-digit hex string.
func ParseUserID(s string) (UserID, error) {
	raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(raw) != 64 {
		return UserID{}, fmt.Errorf("types: user id %q: want 64 hex digits", s)
	}
	var u UserID
	if _, err := hex.Decode(u[:], []byte(raw)); err != nil {
		return UserID{}, fmt.Errorf("types: user id %q: %w", s, err)
	}
	return u, nil
}

// IsZero reports whether u is the missing id.
func (u UserID) IsZero() bool { return u == UserID{} }

// String returns the 0x-prefixed hex form.
func (u UserID) String() string { return "0x" + hex.EncodeToString(u[:]) }

// Short returns an abbreviated form for logs.
func (u UserID) Short() string {
	s := hex.EncodeToString(u[:])
	return "0x" + s[:8]
}

// MarshalText implements encoding.TextMarshaler.
func (u UserID) MarshalText() ([]byte, error) { return []byte(u.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *UserID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*u = UserID{}
		return nil
	}
	v, err := ParseUserID(string(data))
	if err != nil {
		return err
	}
	*u = v
	return nil
}

// Value implements driver.Valuer.
func (u UserID) Value() (driver.Value, error) { return u.String(), nil }

// Scan implements sql.Scanner.
func (u *UserID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*u = UserID{}
		return nil
	case string:
		return u.UnmarshalText([]byte(v))
	case []byte:
		return u.UnmarshalText(v)
	default:
		return fmt.Errorf("types: cannot scan %T into UserID", src)
	}
}
