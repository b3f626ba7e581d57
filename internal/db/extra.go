package db

import "context"

// schema mirrors migrations/0001_canvas_snapshots.up.sql so tests and
// single-binary deployments can bootstrap an empty database.
const schema = `
CREATE TABLE IF NOT EXISTS canvas_snapshots (
    canvas_id  TEXT PRIMARY KEY,
    version    BIGINT NOT NULL,
    body       JSONB NOT NULL,
    settings   JSONB,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// DB exposes the underlying connection used by Queries.
func (q *Queries) DB() DBTX {
	return q.db
}

// EnsureSchema creates the snapshot table if it does not exist.
func (q *Queries) EnsureSchema(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, schema)
	return err
}
