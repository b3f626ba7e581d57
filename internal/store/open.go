package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/onnwee/nodelayout/internal/cache"
	"github.com/onnwee/nodelayout/internal/db"
	"github.com/onnwee/nodelayout/internal/secrets"
	"github.com/onnwee/nodelayout/internal/utils"
)

// Options selects and configures a backend.
type Options struct {
	Backend        string // memory, postgres or redis
	DatabaseURL    string
	RedisURL       string
	RedisKeyPrefix string

	// Connect retries with doubling backoff; zero means a single attempt.
	ConnectAttempts int
	ConnectDelay    time.Duration

	// BreakerTimeout is how long a failing remote backend is skipped.
	BreakerTimeout time.Duration

	// CacheMB of zero disables the read cache.
	CacheMB      int
	CacheEntries int
	CacheTTL     time.Duration
}

// Open builds the configured backend, wrapped with metrics and, when
// enabled, the snapshot cache. Closing the store also releases the cache.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (Store, error) {
	var (
		backend Store
		target  string
		err     error
	)
	attempts := max(opts.ConnectAttempts, 1)
	delay := opts.ConnectDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}

	switch opts.Backend {
	case "", "memory":
		opts.Backend = "memory"
		backend = NewMemory()
	case "postgres":
		if err := secrets.ValidateRequired(map[string]string{"DATABASE_URL": opts.DatabaseURL}); err != nil {
			return nil, fmt.Errorf("postgres store: %w", err)
		}
		target = secrets.MaskURL(opts.DatabaseURL)
		err = utils.Retry(ctx, attempts, delay, func() error {
			conn, err := db.Open(ctx, opts.DatabaseURL)
			if err != nil {
				logger.Warn("postgres not ready", "target", target, "error", err)
				return err
			}
			backend, err = NewPostgres(ctx, conn)
			if err != nil {
				conn.Close()
			}
			return err
		})
	case "redis":
		if err := secrets.ValidateRequired(map[string]string{"REDIS_URL": opts.RedisURL}); err != nil {
			return nil, fmt.Errorf("redis store: %w", err)
		}
		target = secrets.MaskURL(opts.RedisURL)
		err = utils.Retry(ctx, attempts, delay, func() error {
			var err error
			backend, err = NewRedis(ctx, opts.RedisURL, opts.RedisKeyPrefix)
			if err != nil {
				logger.Warn("redis not ready", "target", target, "error", err)
			}
			return err
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", opts.Backend, err)
	}

	var s Store = NewInstrumented(backend, opts.Backend)
	if opts.Backend != "memory" {
		s = NewGuarded(s, opts.Backend, opts.BreakerTimeout)
	}
	if opts.CacheMB > 0 && opts.Backend != "memory" {
		lru, err := cache.NewLRU("snapshots", int64(opts.CacheMB), int64(opts.CacheEntries), opts.CacheTTL)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("snapshot cache: %w", err)
		}
		s = &closeCache{Cached: NewCached(s, lru), lru: lru}
	}
	logger.Info("snapshot store ready", "backend", opts.Backend, "target", target, "cache_mb", opts.CacheMB)
	return s, nil
}

type closeCache struct {
	*Cached
	lru *cache.LRUCache
}

func (c *closeCache) Close() error {
	c.lru.Close()
	return c.Cached.Close()
}
