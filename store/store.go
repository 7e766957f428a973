// Package store defines the persistence contract for custody.
package store

import (
	"context"

	"github.com/xraph/custody/event"
	"github.com/xraph/custody/journal"
)

// Store is the unified storage interface. Methods are declared explicitly
// rather than by embedding the per-package interfaces.
type Store interface {
	// Journal methods
	AppendCommit(ctx context.Context, c *journal.Commit) error
	ListCommits(ctx context.Context, opts journal.ListOpts) ([]*journal.Commit, error)
	LastSeq(ctx context.Context) (uint64, error)

	// Event methods
	ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ journal.Store = Store(nil)
	_ event.Store   = Store(nil)
)
