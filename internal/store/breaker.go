package store

import (
	"context"
	"errors"
	"time"

	"github.com/onnwee/nodelayout/internal/circuitbreaker"
)

// Guarded fails fast while a remote backend keeps failing. Sessions then
// keep their state in memory and retry on the next autosave.
type Guarded struct {
	next Store
	cb   *circuitbreaker.CircuitBreaker
}

// NewGuarded wraps next in a breaker that opens after five consecutive
// failures and probes again after timeout.
func NewGuarded(next Store, backend string, timeout time.Duration) *Guarded {
	return &Guarded{
		next: next,
		cb: circuitbreaker.New(circuitbreaker.Config{
			Name:             backend,
			FailureThreshold: 5,
			SuccessThreshold: 1,
			Timeout:          timeout,
			Ignore: func(err error) bool {
				return errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled)
			},
		}),
	}
}

func (g *Guarded) Load(ctx context.Context, canvas string) (Record, error) {
	var rec Record
	err := g.cb.Call(func() error {
		var err error
		rec, err = g.next.Load(ctx, canvas)
		return err
	})
	return rec, err
}

func (g *Guarded) Save(ctx context.Context, rec Record) error {
	return g.cb.Call(func() error { return g.next.Save(ctx, rec) })
}

func (g *Guarded) Delete(ctx context.Context, canvas string) error {
	return g.cb.Call(func() error { return g.next.Delete(ctx, canvas) })
}

func (g *Guarded) List(ctx context.Context) ([]string, error) {
	var ids []string
	err := g.cb.Call(func() error {
		var err error
		ids, err = g.next.List(ctx)
		return err
	})
	return ids, err
}

func (g *Guarded) Close() error { return g.next.Close() }
