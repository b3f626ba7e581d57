package cache

import "time"

// Cache stores encoded snapshots by canvas key with a TTL.
type Cache interface {
	// Get returns the value and true if present and not expired.
	Get(key string) ([]byte, bool)

	// Set stores value under key. A ttl of 0 means the cache default.
	Set(key string, value []byte, ttl time.Duration)

	Delete(key string)
	Clear()
	Stats() Stats
}

// Stats represents cache statistics.
type Stats struct {
	Hits      uint64
	Misses    uint64
	KeysAdded uint64
	Evictions uint64
	Size      int64 // approximate bytes held
	Items     int64
}
