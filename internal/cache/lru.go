package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/onnwee/nodelayout/internal/metrics"
)

// LRUCache is a cost-bounded cache backed by ristretto. Cost is the
// encoded snapshot size in bytes.
type LRUCache struct {
	name       string
	cache      *ristretto.Cache
	defaultTTL time.Duration
}

type cacheItem struct {
	data      []byte
	expiresAt time.Time
}

// NewLRU creates a cache holding at most maxSizeMB megabytes. name labels
// the cache metrics.
func NewLRU(name string, maxSizeMB int64, maxEntries int64, defaultTTL time.Duration) (*LRUCache, error) {
	// ristretto wants ~10 counters per expected entry
	numCounters := max(maxEntries*10, 1000)
	maxCost := maxSizeMB * 1024 * 1024
	if maxCost <= 0 {
		maxCost = 1 << 10
	}

	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     maxCost,
		BufferItems: 64,
		Metrics:     true,
		OnEvict: func(item *ristretto.Item) {
			metrics.CacheEvictions.WithLabelValues(name).Inc()
		},
	})
	if err != nil {
		return nil, err
	}

	return &LRUCache{name: name, cache: c, defaultTTL: defaultTTL}, nil
}

func (c *LRUCache) Get(key string) ([]byte, bool) {
	val, found := c.cache.Get(key)
	if !found {
		metrics.CacheMisses.WithLabelValues(c.name).Inc()
		return nil, false
	}

	item, ok := val.(*cacheItem)
	if !ok || time.Now().After(item.expiresAt) {
		c.cache.Del(key)
		metrics.CacheMisses.WithLabelValues(c.name).Inc()
		return nil, false
	}

	metrics.CacheHits.WithLabelValues(c.name).Inc()
	return item.data, true
}

// Set stores value and waits for ristretto's buffers to drain, so a Get
// straight after a Set sees the value unless admission rejected it.
func (c *LRUCache) Set(key string, value []byte, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	item := &cacheItem{data: value, expiresAt: time.Now().Add(ttl)}
	_ = c.cache.Set(key, item, int64(len(value)))
	c.cache.Wait()
	metrics.CacheItems.WithLabelValues(c.name).Set(float64(c.Stats().Items))
}

func (c *LRUCache) Delete(key string) {
	c.cache.Del(key)
}

func (c *LRUCache) Clear() {
	c.cache.Clear()
	metrics.CacheItems.WithLabelValues(c.name).Set(0)
}

func (c *LRUCache) Stats() Stats {
	m := c.cache.Metrics
	return Stats{
		Hits:      m.Hits(),
		Misses:    m.Misses(),
		KeysAdded: m.KeysAdded(),
		Evictions: m.KeysEvicted(),
		Size:      int64(m.CostAdded() - m.CostEvicted()),
		Items:     int64(m.KeysAdded() - m.KeysEvicted()),
	}
}

// Close releases ristretto's goroutines.
func (c *LRUCache) Close() {
	c.cache.Close()
}
