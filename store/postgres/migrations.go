package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the custody store.
var Migrations = migrate.NewGroup("custody")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_custody_commits",
			Version: "20260101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS custody_commits (
    seq        BIGINT PRIMARY KEY,
    id         TEXT NOT NULL UNIQUE,
    op         TEXT NOT NULL,
    actor      TEXT NOT NULL DEFAULT '',
    accounts   JSONB NOT NULL DEFAULT '[]',
    state      JSONB NOT NULL DEFAULT '{}',
    events     JSONB NOT NULL DEFAULT '[]',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_custody_commits_op ON custody_commits (op);
CREATE INDEX IF NOT EXISTS idx_custody_commits_events ON custody_commits USING GIN (events jsonb_path_ops);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS custody_commits`)
				return err
			},
		},
	)
}
