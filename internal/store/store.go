// Package store persists canvas snapshots. Backends are interchangeable:
// an in-process map for development, Postgres (JSONB) and Redis for
// deployments, optionally fronted by a ristretto read cache.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/onnwee/nodelayout/internal/force"
	"github.com/onnwee/nodelayout/internal/hierarchy"
)

// ErrNotFound is returned when a canvas has no stored snapshot.
var ErrNotFound = errors.New("snapshot not found")

// Settings is the per-canvas layout configuration saved with the snapshot.
type Settings struct {
	Mode   force.Mode   `json:"mode"`
	Params force.Params `json:"params"`
}

// Record is one stored canvas.
type Record struct {
	Canvas    string             `json:"canvas"`
	Snapshot  hierarchy.Snapshot `json:"snapshot"`
	Settings  *Settings          `json:"settings,omitempty"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// Store is implemented by every snapshot backend.
type Store interface {
	// Load returns the record for canvas or an error wrapping ErrNotFound.
	Load(ctx context.Context, canvas string) (Record, error)
	// Save replaces the record for rec.Canvas.
	Save(ctx context.Context, rec Record) error
	// Delete removes the record. Deleting a missing canvas wraps ErrNotFound.
	Delete(ctx context.Context, canvas string) error
	// List returns the stored canvas ids in ascending order.
	List(ctx context.Context) ([]string, error)
	Close() error
}

func notFound(canvas string) error {
	return fmt.Errorf("canvas %q: %w", canvas, ErrNotFound)
}

// encodeRecord is the wire form used by the key-value backends and the cache.
func encodeRecord(rec Record) ([]byte, error) {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode canvas %q: %w", rec.Canvas, err)
	}
	return data, nil
}

func decodeRecord(data []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return rec, nil
}
