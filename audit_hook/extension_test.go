package audithook_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audithook "github.com/xraph/custody/audit_hook"
	"github.com/xraph/custody/event"
	"github.com/xraph/custody/types"
)

type sink struct{ got []*audithook.AuditEvent }

func (s *sink) Record(_ context.Context, e *audithook.AuditEvent) error {
	s.got = append(s.got, e)
	return nil
}

func TestRecordsClassifiedEvents(t *testing.T) {
	s := &sink{}
	ext := audithook.New(s)
	alice := types.UserIDFromName("alice")

	require.NoError(t, ext.OnEvent(context.Background(), &event.Event{
		Kind:   event.Deposit,
		Actor:  "0xoperator",
		UserID: alice,
		Amount: types.MustParseUnits("12.5"),
	}))
	require.NoError(t, ext.OnEvent(context.Background(), &event.Event{
		Kind:      event.Settlement,
		UserID:    alice,
		Reference: "tx-1",
	}))
	require.NoError(t, ext.OnEvent(context.Background(), &event.Event{Kind: "unknown.kind"}))

	require.Len(t, s.got, 2)
	dep := s.got[0]
	assert.Equal(t, audithook.ActionDeposit, dep.Action)
	assert.Equal(t, audithook.ResourceAccount, dep.Resource)
	assert.Equal(t, audithook.CategoryFunds, dep.Category)
	assert.Equal(t, alice.String(), dep.ResourceID)
	assert.Equal(t, "0xoperator", dep.Actor)
	assert.Equal(t, "12.5", dep.Metadata["amount"])

	assert.Equal(t, "tx-1", s.got[1].ResourceID)
	assert.Equal(t, audithook.ResourceHold, s.got[1].Resource)
}

func TestActionFilters(t *testing.T) {
	s := &sink{}
	ext := audithook.New(s, audithook.WithDisabledActions(audithook.ActionTransfer))

	_ = ext.OnEvent(context.Background(), &event.Event{Kind: event.Transfer})
	_ = ext.OnEvent(context.Background(), &event.Event{Kind: event.Paused})
	require.Len(t, s.got, 1)
	assert.Equal(t, audithook.SeverityWarning, s.got[0].Severity)

	s.got = nil
	only := audithook.New(s, audithook.WithEnabledActions(audithook.ActionEmergencyWithdrawal))
	_ = only.OnEvent(context.Background(), &event.Event{Kind: event.Paused})
	_ = only.OnEvent(context.Background(), &event.Event{Kind: event.EmergencyWithdrawal})
	require.Len(t, s.got, 1)
	assert.Equal(t, audithook.SeverityCritical, s.got[0].Severity)
}

func TestRecorderFailureIsSwallowed(t *testing.T) {
	ext := audithook.New(audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("backend down")
	}))
	assert.NoError(t, ext.OnEvent(context.Background(), &event.Event{Kind: event.Deposit}))
}
