package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores each encoded record under prefix+canvas.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects using a redis:// URL and pings the server.
func NewRedis(ctx context.Context, url, prefix string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{client: client, prefix: prefix}, nil
}

func (r *Redis) key(canvas string) string { return r.prefix + canvas }

func (r *Redis) Load(ctx context.Context, canvas string) (Record, error) {
	data, err := r.client.Get(ctx, r.key(canvas)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, notFound(canvas)
	}
	if err != nil {
		return Record{}, fmt.Errorf("load canvas %q: %w", canvas, err)
	}
	return decodeRecord(data)
}

func (r *Redis) Save(ctx context.Context, rec Record) error {
	rec.UpdatedAt = time.Now().UTC()
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(rec.Canvas), data, 0).Err(); err != nil {
		return fmt.Errorf("save canvas %q: %w", rec.Canvas, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, canvas string) error {
	n, err := r.client.Del(ctx, r.key(canvas)).Result()
	if err != nil {
		return fmt.Errorf("delete canvas %q: %w", canvas, err)
	}
	if n == 0 {
		return notFound(canvas)
	}
	return nil
}

func (r *Redis) List(ctx context.Context) ([]string, error) {
	ids := []string{}
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), r.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list canvases: %w", err)
	}
	slices.Sort(ids)
	return slices.Compact(ids), nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
