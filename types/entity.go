// Package types holds the value types shared by every custody package:
// token amounts, user identifiers, principals and record timestamps.
package types

import "time"

// Entity carries creation and modification timestamps. Times are supplied by
// the caller so that a controller running on an injected clock stays
// deterministic.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity stamps both timestamps with at.
func NewEntity(at time.Time) Entity {
	at = at.UTC()
	return Entity{CreatedAt: at, UpdatedAt: at}
}

// Touch moves UpdatedAt to at.
func (e *Entity) Touch(at time.Time) {
	e.UpdatedAt = at.UTC()
}

// Age returns how long before now the entity was created.
func (e Entity) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}
