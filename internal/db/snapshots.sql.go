package db

import (
	"context"
	"encoding/json"

	"github.com/sqlc-dev/pqtype"
)

const getCanvasSnapshot = `-- name: GetCanvasSnapshot :one
SELECT canvas_id, version, body, settings, updated_at
FROM canvas_snapshots
WHERE canvas_id = $1
`

func (q *Queries) GetCanvasSnapshot(ctx context.Context, canvasID string) (CanvasSnapshot, error) {
	row := q.db.QueryRowContext(ctx, getCanvasSnapshot, canvasID)
	var i CanvasSnapshot
	err := row.Scan(
		&i.CanvasID,
		&i.Version,
		&i.Body,
		&i.Settings,
		&i.UpdatedAt,
	)
	return i, err
}

const upsertCanvasSnapshot = `-- name: UpsertCanvasSnapshot :exec
INSERT INTO canvas_snapshots (canvas_id, version, body, settings, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (canvas_id) DO UPDATE
SET version = EXCLUDED.version,
    body = EXCLUDED.body,
    settings = EXCLUDED.settings,
    updated_at = now()
`

type UpsertCanvasSnapshotParams struct {
	CanvasID string                `json:"canvas_id"`
	Version  int64                 `json:"version"`
	Body     json.RawMessage       `json:"body"`
	Settings pqtype.NullRawMessage `json:"settings"`
}

func (q *Queries) UpsertCanvasSnapshot(ctx context.Context, arg UpsertCanvasSnapshotParams) error {
	_, err := q.db.ExecContext(ctx, upsertCanvasSnapshot,
		arg.CanvasID,
		arg.Version,
		arg.Body,
		arg.Settings,
	)
	return err
}

const deleteCanvasSnapshot = `-- name: DeleteCanvasSnapshot :execrows
DELETE FROM canvas_snapshots WHERE canvas_id = $1
`

func (q *Queries) DeleteCanvasSnapshot(ctx context.Context, canvasID string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteCanvasSnapshot, canvasID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listCanvasIDs = `-- name: ListCanvasIDs :many
SELECT canvas_id FROM canvas_snapshots ORDER BY canvas_id
`

func (q *Queries) ListCanvasIDs(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listCanvasIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var canvasID string
		if err := rows.Scan(&canvasID); err != nil {
			return nil, err
		}
		items = append(items, canvasID)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
