package journal

import (
	"context"
	"errors"
)

// ErrSequenceConflict is returned when a commit's Seq is not the next in line,
// which means another writer appended first.
var ErrSequenceConflict = errors.New("journal: sequence conflict")

// Store persists commits.
type Store interface {
	// AppendCommit stores c atomically. c.Seq must be LastSeq()+1.
	AppendCommit(ctx context.Context, c *Commit) error
	ListCommits(ctx context.Context, opts ListOpts) ([]*Commit, error)
	LastSeq(ctx context.Context) (uint64, error)
}

// ListOpts pages through commits in sequence order.
type ListOpts struct {
	AfterSeq uint64
	Limit    int
}
