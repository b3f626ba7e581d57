package server

import (
	"context"

	"github.com/onnwee/nodelayout/internal/integrity"
	"github.com/onnwee/nodelayout/internal/layout"
	"github.com/onnwee/nodelayout/internal/logger"
	"github.com/onnwee/nodelayout/internal/metrics"
	"github.com/onnwee/nodelayout/internal/scheduler"
	"github.com/onnwee/nodelayout/internal/store"
)

// auditJob checks every stored canvas and publishes the issue counts.
// Open sessions are audited as last saved.
func auditJob(st store.Store, lc layout.Config, schedule string) scheduler.Job {
	svc := integrity.NewService(st, lc)
	return scheduler.Job{
		Name:     "integrity",
		Schedule: schedule,
		Run: func(ctx context.Context) error {
			results, err := svc.CheckAll(ctx)
			if err != nil {
				return err
			}
			counts := map[string]int{integrity.CheckRestore: 0, integrity.CheckOverlaps: 0}
			for _, r := range results {
				if !r.HasIssues {
					continue
				}
				counts[r.CheckName]++
				logger.WarnContext(ctx, "stored canvas failed integrity check",
					"canvas_id", r.Canvas, "check", r.CheckName, "details", r.Details)
			}
			for check, n := range counts {
				metrics.IntegrityIssues.WithLabelValues(check).Set(float64(n))
			}
			return nil
		},
	}
}
