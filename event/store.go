package event

import (
	"context"

	"github.com/xraph/custody/types"
)

// Store reads the event history.
type Store interface {
	ListEvents(ctx context.Context, opts ListOpts) ([]*Event, error)
}

// ListOpts filters ListEvents. Zero values mean "any".
type ListOpts struct {
	UserID   types.UserID
	Kind     Kind
	AfterSeq uint64
	Limit    int
}

// Match reports whether e passes the UserID, Kind and AfterSeq filters.
func (o ListOpts) Match(e *Event) bool {
	if e.Seq <= o.AfterSeq && o.AfterSeq > 0 {
		return false
	}
	if o.Kind != "" && e.Kind != o.Kind {
		return false
	}
	if !o.UserID.IsZero() && e.UserID != o.UserID && e.Counterparty != o.UserID {
		return false
	}
	return true
}
