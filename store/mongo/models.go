package mongo

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/custody/event"
	"github.com/xraph/custody/id"
	"github.com/xraph/custody/journal"
	"github.com/xraph/custody/types"
)

// commitModel embeds events as native subdocuments so that they can be
// filtered and unwound server-side. Account and state snapshots are kept as
// JSON text: they are only read back whole during replay.
type commitModel struct {
	grove.BaseModel `grove:"table:custody_commits"`

	Seq       int64        `grove:"seq,pk"     bson:"_id"`
	ID        string       `grove:"id"         bson:"commit_id"`
	Op        string       `grove:"op"         bson:"op"`
	Actor     string       `grove:"actor"      bson:"actor"`
	Accounts  string       `grove:"accounts"   bson:"accounts"`
	State     string       `grove:"state"      bson:"state"`
	Events    []eventModel `grove:"events"     bson:"events"`
	CreatedAt time.Time    `grove:"created_at" bson:"created_at"`
}

type eventModel struct {
	ID           string            `bson:"id"`
	Seq          int64             `bson:"seq"`
	Kind         string            `bson:"kind"`
	Actor        string            `bson:"actor"`
	UserID       string            `bson:"user_id,omitempty"`
	Counterparty string            `bson:"counterparty,omitempty"`
	Address      string            `bson:"address,omitempty"`
	Reference    string            `bson:"reference,omitempty"`
	Amount       string            `bson:"amount"`
	Metadata     map[string]string `bson:"metadata,omitempty"`
	At           time.Time         `bson:"at"`
}

func toCommitModel(c *journal.Commit) (*commitModel, error) {
	accounts, err := json.Marshal(c.Accounts)
	if err != nil {
		return nil, fmt.Errorf("marshal accounts: %w", err)
	}
	state, err := json.Marshal(c.State)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	evts := make([]eventModel, len(c.Events))
	for i, e := range c.Events {
		evts[i] = toEventModel(e)
	}
	return &commitModel{
		Seq:       int64(c.Seq), //nolint:gosec // sequence numbers stay far below 2^63
		ID:        c.ID.String(),
		Op:        c.Op,
		Actor:     string(c.Actor),
		Accounts:  string(accounts),
		State:     string(state),
		Events:    evts,
		CreatedAt: c.CreatedAt,
	}, nil
}

func fromCommitModel(m *commitModel) (*journal.Commit, error) {
	cid, err := id.ParseCommitID(m.ID)
	if err != nil {
		return nil, err
	}
	c := &journal.Commit{
		ID:        cid,
		Seq:       uint64(m.Seq), //nolint:gosec // _id is never negative
		Op:        m.Op,
		Actor:     types.Principal(m.Actor),
		CreatedAt: m.CreatedAt,
		Events:    make([]*event.Event, 0, len(m.Events)),
	}
	if err := json.Unmarshal([]byte(m.Accounts), &c.Accounts); err != nil {
		return nil, fmt.Errorf("decode accounts of commit %d: %w", m.Seq, err)
	}
	if err := json.Unmarshal([]byte(m.State), &c.State); err != nil {
		return nil, fmt.Errorf("decode state of commit %d: %w", m.Seq, err)
	}
	for i := range m.Events {
		e, err := fromEventModel(&m.Events[i])
		if err != nil {
			return nil, err
		}
		c.Events = append(c.Events, e)
	}
	return c, nil
}

func toEventModel(e *event.Event) eventModel {
	m := eventModel{
		ID:        e.ID.String(),
		Seq:       int64(e.Seq), //nolint:gosec // sequence numbers stay far below 2^63
		Kind:      string(e.Kind),
		Actor:     string(e.Actor),
		Address:   string(e.Address),
		Reference: e.Reference,
		Amount:    e.Amount.String(),
		Metadata:  e.Metadata,
		At:        e.At,
	}
	if !e.UserID.IsZero() {
		m.UserID = e.UserID.String()
	}
	if !e.Counterparty.IsZero() {
		m.Counterparty = e.Counterparty.String()
	}
	return m
}

func fromEventModel(m *eventModel) (*event.Event, error) {
	e := &event.Event{
		Seq:       uint64(m.Seq), //nolint:gosec // never negative
		Kind:      event.Kind(m.Kind),
		Actor:     types.Principal(m.Actor),
		Address:   types.Principal(m.Address),
		Reference: m.Reference,
		Metadata:  m.Metadata,
		At:        m.At,
	}
	var err error
	if e.ID, err = id.ParseEventID(m.ID); err != nil {
		return nil, err
	}
	if e.Amount, err = types.ParseAmount(m.Amount); err != nil {
		return nil, err
	}
	if m.UserID != "" {
		if e.UserID, err = types.ParseUserID(m.UserID); err != nil {
			return nil, err
		}
	}
	if m.Counterparty != "" {
		if e.Counterparty, err = types.ParseUserID(m.Counterparty); err != nil {
			return nil, err
		}
	}
	return e, nil
}
