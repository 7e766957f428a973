// Package postgres is a PostgreSQL Store built on the grove ORM.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/custody/event"
	"github.com/xraph/custody/journal"
	custodystore "github.com/xraph/custody/store"
)

// compile-time interface check
var _ custodystore.Store = (*Store)(nil)

// eventScanBatch is how many commits ListEvents decodes per round trip.
const eventScanBatch = 500

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("custody/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("custody/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Journal ====================

// AppendCommit inserts c as a single row. The primary key on seq rejects a
// concurrent writer that raced past the LastSeq check.
func (s *Store) AppendCommit(ctx context.Context, c *journal.Commit) error {
	last, err := s.LastSeq(ctx)
	if err != nil {
		return err
	}
	if c.Seq != last+1 {
		return fmt.Errorf("custody/postgres: append seq %d after %d: %w", c.Seq, last, journal.ErrSequenceConflict)
	}
	m, err := toCommitModel(c)
	if err != nil {
		return fmt.Errorf("custody/postgres: %w", err)
	}
	if _, err := s.pg.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("custody/postgres: append commit %d: %w", c.Seq, err)
	}
	return nil
}

func (s *Store) ListCommits(ctx context.Context, opts journal.ListOpts) ([]*journal.Commit, error) {
	models, err := s.selectCommits(ctx, opts.AfterSeq, opts.Limit, "")
	if err != nil {
		return nil, err
	}
	out := make([]*journal.Commit, 0, len(models))
	for i := range models {
		c, err := fromCommitModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("custody/postgres: %w", err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Store) LastSeq(ctx context.Context) (uint64, error) {
	var models []commitModel
	err := s.pg.NewSelect(&models).
		OrderExpr("seq DESC").
		Limit(1).
		Scan(ctx)
	if err != nil && !isNoRows(err) {
		return 0, fmt.Errorf("custody/postgres: last seq: %w", err)
	}
	if len(models) == 0 {
		return 0, nil
	}
	return uint64(models[0].Seq), nil //nolint:gosec // column is never negative
}

// ==================== Events ====================

func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	var out []*event.Event
	after := opts.AfterSeq
	for {
		models, err := s.selectCommits(ctx, after, eventScanBatch, opts.Kind)
		if err != nil {
			return nil, err
		}
		for i := range models {
			evts, err := eventsOf(&models[i])
			if err != nil {
				return nil, fmt.Errorf("custody/postgres: %w", err)
			}
			for _, e := range evts {
				if !opts.Match(e) {
					continue
				}
				out = append(out, e)
				if opts.Limit > 0 && len(out) >= opts.Limit {
					return out, nil
				}
			}
			after = uint64(models[i].Seq) //nolint:gosec // column is never negative
		}
		if len(models) < eventScanBatch {
			return out, nil
		}
	}
}

// selectCommits pages commits after afterSeq. A non-empty kind keeps only
// commits whose events array contains that kind, served by the GIN index.
func (s *Store) selectCommits(ctx context.Context, afterSeq uint64, limit int, kind event.Kind) ([]commitModel, error) {
	var models []commitModel
	q := s.pg.NewSelect(&models).
		Where("seq > $1", int64(afterSeq)) //nolint:gosec // sequence numbers stay far below 2^63
	if kind != "" {
		q = q.Where("events @> $2::jsonb", fmt.Sprintf(`[{"kind":%q}]`, string(kind)))
	}
	q = q.OrderExpr("seq ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil && !isNoRows(err) {
		return nil, fmt.Errorf("custody/postgres: list commits: %w", err)
	}
	return models, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
