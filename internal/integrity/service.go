// Package integrity audits stored canvases: snapshots that no longer restore
// and layouts that were saved with overlapping nodes.
package integrity

import (
	"context"
	"fmt"
	"time"

	"github.com/onnwee/nodelayout/internal/layout"
	"github.com/onnwee/nodelayout/internal/logger"
	"github.com/onnwee/nodelayout/internal/store"
)

// Check names.
const (
	CheckRestore  = "restore"
	CheckOverlaps = "overlaps"
)

// Service provides integrity operations over a snapshot store
type Service struct {
	store store.Store
	cfg   layout.Config
}

// NewService creates a new integrity service. cfg decides the collision
// shape and gaps the overlap check uses.
func NewService(st store.Store, cfg layout.Config) *Service {
	return &Service{store: st, cfg: cfg}
}

// CheckResult contains the result of one check on one canvas
type CheckResult struct {
	Canvas     string    `json:"canvas"`
	CheckName  string    `json:"check"`
	IssueCount int       `json:"issues"`
	Details    string    `json:"details,omitempty"`
	CheckedAt  time.Time `json:"checkedAt"`
	HasIssues  bool      `json:"hasIssues"`
}

// CheckAll runs every check on every stored canvas.
func (s *Service) CheckAll(ctx context.Context) ([]CheckResult, error) {
	ids, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list canvases: %w", err)
	}
	results := make([]CheckResult, 0, 2*len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		rs, err := s.Check(ctx, id)
		if err != nil {
			return results, err
		}
		results = append(results, rs...)
	}
	return results, nil
}

// Check runs the checks on one canvas. A snapshot that fails to restore
// skips the overlap check.
func (s *Service) Check(ctx context.Context, canvas string) ([]CheckResult, error) {
	now := time.Now()
	e, rec, restoreErr := s.load(ctx, canvas)
	if rec == nil {
		return nil, restoreErr
	}

	restore := CheckResult{Canvas: canvas, CheckName: CheckRestore, CheckedAt: now}
	if restoreErr != nil {
		restore.IssueCount = 1
		restore.HasIssues = true
		restore.Details = restoreErr.Error()
		return []CheckResult{restore}, nil
	}

	overlaps := e.Overlaps()
	over := CheckResult{
		Canvas:     canvas,
		CheckName:  CheckOverlaps,
		IssueCount: len(overlaps),
		CheckedAt:  now,
		HasIssues:  len(overlaps) > 0,
	}
	if len(overlaps) > 0 {
		over.Details = fmt.Sprintf("%d overlapping pairs, first %s/%s", len(overlaps), overlaps[0].A, overlaps[0].B)
	}
	return []CheckResult{restore, over}, nil
}

// Repair settles a stored canvas so no two nodes overlap and saves the
// result. It returns how many nodes moved. The canvas must not be open in a
// running server, which would overwrite the repair on its next save.
func (s *Service) Repair(ctx context.Context, canvas string) (int, error) {
	e, rec, err := s.load(ctx, canvas)
	if err != nil {
		return 0, err
	}
	moved, err := e.Settle()
	if err != nil {
		return 0, fmt.Errorf("settle %s: %w", canvas, err)
	}
	if len(moved) == 0 {
		return 0, nil
	}
	rec.Snapshot = e.Snapshot()
	rec.UpdatedAt = time.Time{}
	if err := s.store.Save(ctx, *rec); err != nil {
		return 0, fmt.Errorf("failed to save %s: %w", canvas, err)
	}
	logger.Info("canvas repaired", "canvas_id", canvas, "moved", len(moved))
	return len(moved), nil
}

// load returns a nil record when the store failed, and a record with a
// restore error when the snapshot itself is bad.
func (s *Service) load(ctx context.Context, canvas string) (*layout.Engine, *store.Record, error) {
	rec, err := s.store.Load(ctx, canvas)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load %s: %w", canvas, err)
	}
	e := layout.New(s.cfg, layout.WithLogger(logger.WithCanvas(canvas)))
	if err := e.Restore(rec.Snapshot); err != nil {
		return nil, &rec, err
	}
	if err := e.AssumeMeasured(); err != nil {
		return nil, &rec, err
	}
	return e, &rec, nil
}
