package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/onnwee/nodelayout/internal/db"
	"github.com/sqlc-dev/pqtype"
)

// Postgres stores one row per canvas: the snapshot as JSONB plus the
// optional layout settings as a nullable JSONB column.
type Postgres struct {
	conn *sql.DB
	q    *db.Queries
}

// NewPostgres wraps an open connection and creates the table if needed.
func NewPostgres(ctx context.Context, conn *sql.DB) (*Postgres, error) {
	q := db.New(conn)
	if err := q.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Postgres{conn: conn, q: q}, nil
}

func (p *Postgres) Load(ctx context.Context, canvas string) (Record, error) {
	row, err := p.q.GetCanvasSnapshot(ctx, canvas)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, notFound(canvas)
	}
	if err != nil {
		return Record{}, fmt.Errorf("load canvas %q: %w", canvas, err)
	}

	rec := Record{Canvas: row.CanvasID, UpdatedAt: row.UpdatedAt}
	if err := json.Unmarshal(row.Body, &rec.Snapshot); err != nil {
		return Record{}, fmt.Errorf("decode canvas %q: %w", canvas, err)
	}
	if row.Settings.Valid {
		rec.Settings = new(Settings)
		if err := json.Unmarshal(row.Settings.RawMessage, rec.Settings); err != nil {
			return Record{}, fmt.Errorf("decode settings for %q: %w", canvas, err)
		}
	}
	return rec, nil
}

func (p *Postgres) Save(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec.Snapshot)
	if err != nil {
		return fmt.Errorf("encode canvas %q: %w", rec.Canvas, err)
	}
	var settings pqtype.NullRawMessage
	if rec.Settings != nil {
		raw, err := json.Marshal(rec.Settings)
		if err != nil {
			return fmt.Errorf("encode settings for %q: %w", rec.Canvas, err)
		}
		settings = pqtype.NullRawMessage{RawMessage: raw, Valid: true}
	}

	err = p.q.UpsertCanvasSnapshot(ctx, db.UpsertCanvasSnapshotParams{
		CanvasID: rec.Canvas,
		Version:  int64(rec.Snapshot.Version),
		Body:     body,
		Settings: settings,
	})
	if err != nil {
		return fmt.Errorf("save canvas %q: %w", rec.Canvas, err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, canvas string) error {
	n, err := p.q.DeleteCanvasSnapshot(ctx, canvas)
	if err != nil {
		return fmt.Errorf("delete canvas %q: %w", canvas, err)
	}
	if n == 0 {
		return notFound(canvas)
	}
	return nil
}

func (p *Postgres) List(ctx context.Context) ([]string, error) {
	ids, err := p.q.ListCanvasIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list canvases: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (p *Postgres) Close() error {
	return p.conn.Close()
}
