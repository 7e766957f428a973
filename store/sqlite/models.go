package sqlite

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

// commitModel stores the JSON payloads as TEXT.
type commitModel struct {
	grove.BaseModel `grove:"table:custody_commits"`

	Seq       int64     `grove:"seq,pk"`
	ID        string    `grove:"id"`
	Op        string    `grove:"op"`
	Actor     string    `grove:"actor"`
	Accounts  string    `grove:"accounts"`
	State     string    `grove:"state"`
	Events    string    `grove:"events"`
	CreatedAt time.Time `grove:"created_at"`
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
	events, err := json.Marshal(c.Events)
	if err != nil {
		return nil, fmt.Errorf("marshal events: %w", err)
	}
	return &commitModel{
		Seq:       int64(c.Seq), //nolint:gosec // sequence numbers stay far below 2^63
		ID:        c.ID.String(),
		Op:        c.Op,
		Actor:     string(c.Actor),
		Accounts:  string(accounts),
		State:     string(state),
		Events:    string(events),
		CreatedAt: c.CreatedAt.UTC(),
	}, nil
}

func fromCommitModel(m *commitModel) (*journal.Commit, error) {
	cid, err := id.ParseCommitID(m.ID)
	if err != nil {
		return nil, err
	}
	c := &journal.Commit{
		ID:        cid,
		Seq:       uint64(m.Seq), //nolint:gosec // column is never negative
		Op:        m.Op,
		Actor:     types.Principal(m.Actor),
		CreatedAt: m.CreatedAt,
	}
	if err := json.Unmarshal([]byte(m.Accounts), &c.Accounts); err != nil {
		return nil, fmt.Errorf("decode accounts of commit %d: %w", m.Seq, err)
	}
	if err := json.Unmarshal([]byte(m.State), &c.State); err != nil {
		return nil, fmt.Errorf("decode state of commit %d: %w", m.Seq, err)
	}
	if err := json.Unmarshal([]byte(m.Events), &c.Events); err != nil {
		return nil, fmt.Errorf("decode events of commit %d: %w", m.Seq, err)
	}
	return c, nil
}

func eventsOf(m *commitModel) ([]*event.Event, error) {
	var evts []*event.Event
	if err := json.Unmarshal([]byte(m.Events), &evts); err != nil {
		return nil, fmt.Errorf("decode events of commit %d: %w", m.Seq, err)
	}
	return evts, nil
}
