package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/custody/account"
	"github.com/xraph/custody/event"
	"github.com/xraph/custody/id"
	"github.com/xraph/custody/journal"
	"github.com/xraph/custody/store/memory"
	"github.com/xraph/custody/types"
)

var (
	alice = types.UserIDFromName("alice")
	bob   = types.UserIDFromName("bob")
)

func commit(seq uint64, evts ...*event.Event) *journal.Commit {
	for _, e := range evts {
		e.Seq = seq
		e.ID = id.NewEventID()
	}
	return &journal.Commit{
		ID:        id.NewCommitID(),
		Seq:       seq,
		Op:        "test",
		Accounts:  []*account.Record{{UserID: alice, Balance: types.NewAmount(seq)}},
		Events:    evts,
		CreatedAt: time.Now(),
	}
}

func TestAppendEnforcesSequence(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	require.NoError(t, s.AppendCommit(ctx, commit(1)))
	err := s.AppendCommit(ctx, commit(3))
	assert.True(t, errors.Is(err, journal.ErrSequenceConflict))
	err = s.AppendCommit(ctx, commit(1))
	assert.True(t, errors.Is(err, journal.ErrSequenceConflict))
	require.NoError(t, s.AppendCommit(ctx, commit(2)))

	last, err := s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), last)
}

func TestListCommitsPages(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, s.AppendCommit(ctx, commit(i)))
	}

	page, err := s.ListCommits(ctx, journal.ListOpts{AfterSeq: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, uint64(3), page[0].Seq)
	assert.Equal(t, uint64(4), page[1].Seq)

	all, err := s.ListCommits(ctx, journal.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	none, err := s.ListCommits(ctx, journal.ListOpts{AfterSeq: 10})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStoredCommitsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	c := commit(1)
	require.NoError(t, s.AppendCommit(ctx, c))

	c.Accounts[0].Balance = types.NewAmount(999)

	got, err := s.ListCommits(ctx, journal.ListOpts{})
	require.NoError(t, err)
	assert.True(t, got[0].Accounts[0].Balance.Eq(types.NewAmount(1)))
}

func TestListEventsFilters(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	require.NoError(t, s.AppendCommit(ctx, commit(1,
		&event.Event{Kind: event.Deposit, UserID: alice},
	)))
	require.NoError(t, s.AppendCommit(ctx, commit(2,
		&event.Event{Kind: event.Transfer, UserID: alice, Counterparty: bob},
		&event.Event{Kind: event.Transfer, UserID: alice},
	)))
	require.NoError(t, s.AppendCommit(ctx, commit(3,
		&event.Event{Kind: event.Deposit, UserID: bob},
	)))

	all, err := s.ListEvents(ctx, event.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	deposits, err := s.ListEvents(ctx, event.ListOpts{Kind: event.Deposit})
	require.NoError(t, err)
	assert.Len(t, deposits, 2)

	forBob, err := s.ListEvents(ctx, event.ListOpts{UserID: bob})
	require.NoError(t, err)
	assert.Len(t, forBob, 2, "counterparty matches too")

	after, err := s.ListEvents(ctx, event.ListOpts{AfterSeq: 2})
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, uint64(3), after[0].Seq)

	limited, err := s.ListEvents(ctx, event.ListOpts{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Close())
	assert.Error(t, s.Ping(ctx))
	assert.Error(t, s.AppendCommit(ctx, commit(1)))
}
