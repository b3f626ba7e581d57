package store

import (
	"context"
	"errors"
	"time"

	"github.com/onnwee/nodelayout/internal/metrics"
	"github.com/onnwee/nodelayout/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Instrumented records latency, failures and a span for every operation.
// A missing canvas is an answer, not a failure.
type Instrumented struct {
	next    Store
	backend string
}

func NewInstrumented(next Store, backend string) *Instrumented {
	return &Instrumented{next: next, backend: backend}
}

func (s *Instrumented) observe(ctx context.Context, op, canvas string, fn func(context.Context) error) error {
	ctx, span := tracing.StartSpan(ctx, "store."+op, trace.WithAttributes(
		attribute.String("store.backend", s.backend),
		attribute.String("canvas.id", canvas),
	))
	start := time.Now()
	err := fn(ctx)
	metrics.StoreOperationDuration.WithLabelValues(s.backend, op).Observe(time.Since(start).Seconds())
	if err != nil && !errors.Is(err, ErrNotFound) {
		metrics.StoreOperationErrors.WithLabelValues(s.backend, op).Inc()
		tracing.End(span, err)
		return err
	}
	span.End()
	return err
}

func (s *Instrumented) Load(ctx context.Context, canvas string) (Record, error) {
	var rec Record
	err := s.observe(ctx, "load", canvas, func(ctx context.Context) error {
		var err error
		rec, err = s.next.Load(ctx, canvas)
		return err
	})
	return rec, err
}

func (s *Instrumented) Save(ctx context.Context, rec Record) error {
	return s.observe(ctx, "save", rec.Canvas, func(ctx context.Context) error {
		return s.next.Save(ctx, rec)
	})
}

func (s *Instrumented) Delete(ctx context.Context, canvas string) error {
	return s.observe(ctx, "delete", canvas, func(ctx context.Context) error {
		return s.next.Delete(ctx, canvas)
	})
}

func (s *Instrumented) List(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.observe(ctx, "list", "", func(ctx context.Context) error {
		var err error
		ids, err = s.next.List(ctx)
		return err
	})
	return ids, err
}

func (s *Instrumented) Close() error {
	return s.next.Close()
}
