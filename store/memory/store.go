// Package memory is an in-process Store, suitable for tests and single-node
// deployments that do not need durability.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/xraph/custody/account"
	"github.com/xraph/custody/event"
	"github.com/xraph/custody/journal"
	"github.com/xraph/custody/store"
)

var _ store.Store = (*Store)(nil)

// Store keeps commits in a slice ordered by sequence.
type Store struct {
	mu      sync.RWMutex
	commits []*journal.Commit
	closed  bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{}
}

// AppendCommit implements journal.Store.
func (s *Store) AppendCommit(_ context.Context, c *journal.Commit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("custody/memory: store closed")
	}
	if want := uint64(len(s.commits)) + 1; c.Seq != want {
		return fmt.Errorf("custody/memory: append seq %d, want %d: %w", c.Seq, want, journal.ErrSequenceConflict)
	}
	s.commits = append(s.commits, cloneCommit(c))
	return nil
}

// ListCommits implements journal.Store.
func (s *Store) ListCommits(_ context.Context, opts journal.ListOpts) ([]*journal.Commit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := min(int(opts.AfterSeq), len(s.commits))
	end := len(s.commits)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}

	out := make([]*journal.Commit, 0, end-start)
	for _, c := range s.commits[start:end] {
		out = append(out, cloneCommit(c))
	}
	return out, nil
}

// LastSeq implements journal.Store.
func (s *Store) LastSeq(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.commits)), nil
}

// ListEvents implements event.Store.
func (s *Store) ListEvents(_ context.Context, opts event.ListOpts) ([]*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*event.Event
	for _, c := range s.commits {
		if c.Seq <= opts.AfterSeq {
			continue
		}
		for _, e := range c.Events {
			if !opts.Match(e) {
				continue
			}
			cp := *e
			out = append(out, &cp)
			if opts.Limit > 0 && len(out) >= opts.Limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// Migrate is a no-op.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping fails once the store is closed.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("custody/memory: store closed")
	}
	return nil
}

// Close marks the store closed. Data is kept for inspection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func cloneCommit(c *journal.Commit) *journal.Commit {
	cp := *c
	cp.Accounts = make([]*account.Record, len(c.Accounts))
	for i, r := range c.Accounts {
		cp.Accounts[i] = r.Clone()
	}
	cp.Events = make([]*event.Event, len(c.Events))
	for i, e := range c.Events {
		ev := *e
		cp.Events[i] = &ev
	}
	return &cp
}
