package store

import (
	"context"

	"github.com/onnwee/nodelayout/internal/cache"
)

// Cached fronts a Store with a read cache keyed by canvas id. Writes go
// through to the backend first, then refresh the cached copy.
type Cached struct {
	next  Store
	cache cache.Cache
}

func NewCached(next Store, c cache.Cache) *Cached {
	return &Cached{next: next, cache: c}
}

func (c *Cached) Load(ctx context.Context, canvas string) (Record, error) {
	if data, ok := c.cache.Get(canvas); ok {
		if rec, err := decodeRecord(data); err == nil {
			return rec, nil
		}
		c.cache.Delete(canvas)
	}
	rec, err := c.next.Load(ctx, canvas)
	if err != nil {
		return Record{}, err
	}
	if data, err := encodeRecord(rec); err == nil {
		c.cache.Set(canvas, data, 0)
	}
	return rec, nil
}

func (c *Cached) Save(ctx context.Context, rec Record) error {
	if err := c.next.Save(ctx, rec); err != nil {
		c.cache.Delete(rec.Canvas)
		return err
	}
	if data, err := encodeRecord(rec); err == nil {
		c.cache.Set(rec.Canvas, data, 0)
	} else {
		c.cache.Delete(rec.Canvas)
	}
	return nil
}

func (c *Cached) Delete(ctx context.Context, canvas string) error {
	c.cache.Delete(canvas)
	return c.next.Delete(ctx, canvas)
}

func (c *Cached) List(ctx context.Context) ([]string, error) {
	return c.next.List(ctx)
}

func (c *Cached) Close() error {
	return c.next.Close()
}
