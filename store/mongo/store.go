// Package mongo is a MongoDB Store built on the grove ORM.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/custody/event"
	"github.com/xraph/custody/journal"
	custodystore "github.com/xraph/custody/store"
)

// Collection name constants.
const (
	colCommits = "custody_commits"
)

// compile-time interface check
var _ custodystore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for the custody collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if _, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("custody/mongo: migrate %s indexes: %w", col, err)
		}
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

// AppendCommit inserts c keyed by its sequence number; the _id uniqueness
// rejects a concurrent writer.
func (s *Store) AppendCommit(ctx context.Context, c *journal.Commit) error {
	last, err := s.LastSeq(ctx)
	if err != nil {
		return err
	}
	if c.Seq != last+1 {
		return fmt.Errorf("custody/mongo: append seq %d after %d: %w", c.Seq, last, journal.ErrSequenceConflict)
	}
	m, err := toCommitModel(c)
	if err != nil {
		return fmt.Errorf("custody/mongo: %w", err)
	}
	if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("custody/mongo: append seq %d: %w", c.Seq, journal.ErrSequenceConflict)
		}
		return fmt.Errorf("custody/mongo: append commit %d: %w", c.Seq, err)
	}
	return nil
}

func (s *Store) ListCommits(ctx context.Context, opts journal.ListOpts) ([]*journal.Commit, error) {
	var models []commitModel
	q := s.mdb.NewFind(&models).
		Filter(bson.M{"_id": bson.M{"$gt": int64(opts.AfterSeq)}}). //nolint:gosec // sequence numbers stay far below 2^63
		Sort(bson.D{{Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if err := q.Scan(ctx); err != nil && !isNoDocuments(err) {
		return nil, fmt.Errorf("custody/mongo: list commits: %w", err)
	}

	out := make([]*journal.Commit, 0, len(models))
	for i := range models {
		c, err := fromCommitModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("custody/mongo: %w", err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Store) LastSeq(ctx context.Context) (uint64, error) {
	var models []commitModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "_id", Value: -1}}).
		Limit(1).
		Scan(ctx)
	if err != nil && !isNoDocuments(err) {
		return 0, fmt.Errorf("custody/mongo: last seq: %w", err)
	}
	if len(models) == 0 {
		return 0, nil
	}
	return uint64(models[0].Seq), nil //nolint:gosec // _id is never negative
}

// ==================== Events ====================

// ListEvents unwinds the embedded events server-side and filters them there.
func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	match := bson.M{"events.seq": bson.M{"$gt": int64(opts.AfterSeq)}} //nolint:gosec // sequence numbers stay far below 2^63
	if opts.Kind != "" {
		match["events.kind"] = string(opts.Kind)
	}
	if !opts.UserID.IsZero() {
		uid := opts.UserID.String()
		match["$or"] = bson.A{
			bson.M{"events.user_id": uid},
			bson.M{"events.counterparty": uid},
		}
	}

	pipeline := bson.A{
		bson.M{"$match": bson.M{"_id": bson.M{"$gt": int64(opts.AfterSeq)}}}, //nolint:gosec // see above
		bson.M{"$sort": bson.M{"_id": 1}},
		bson.M{"$unwind": "$events"},
		bson.M{"$match": match},
		bson.M{"$replaceRoot": bson.M{"newRoot": "$events"}},
	}
	if opts.Limit > 0 {
		pipeline = append(pipeline, bson.M{"$limit": int64(opts.Limit)})
	}

	cursor, err := s.mdb.Collection(colCommits).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("custody/mongo: list events: %w", err)
	}
	defer cursor.Close(ctx)

	var models []eventModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("custody/mongo: decode events: %w", err)
	}

	out := make([]*event.Event, 0, len(models))
	for i := range models {
		e, err := fromEventModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("custody/mongo: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colCommits: {
			{
				Keys:    bson.D{{Key: "commit_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "events.kind", Value: 1}, {Key: "_id", Value: 1}}},
			{Keys: bson.D{{Key: "events.user_id", Value: 1}, {Key: "_id", Value: 1}}},
			{Keys: bson.D{{Key: "events.counterparty", Value: 1}, {Key: "_id", Value: 1}}},
		},
	}
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
