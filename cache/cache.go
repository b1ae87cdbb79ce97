// Package cache provides the bounded in-memory TTL cache used to hold paid
// AI responses. The default implementation is Memory.
//
// The cache is a single-instance, in-process optimization: no cross-process
// coherence is provided, and all state is lost on restart. Entries expire
// lazily on read and are also swept by a background janitor, and when the
// entry cap is reached the entry with the lowest hit count (oldest first on
// ties) is evicted, so frequently reused responses outlive merely recent
// ones.
package cache

import "time"

// Store defines the interface for response caching.
type Store interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	SetWithTTL(key string, value any, ttl time.Duration, tags ...string)
	Has(key string) bool
	Delete(key string)
	DeletePattern(pattern string) (int, error)
	DeleteTag(tag string) int
	Clear()
	Len() int
	Stats() Stats
	Close()
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Sets        int64   `json:"sets"`
	Deletes     int64   `json:"deletes"`
	Evictions   int64   `json:"evictions"`
	Expirations int64   `json:"expirations"`
	Size        int     `json:"size"`
	HitRate     float64 `json:"hit_rate"`
}

// Config configures a Memory cache.
type Config struct {
	// MaxEntries caps the number of live entries. Must be > 0.
	MaxEntries int
	// DefaultTTL applies to entries stored via Set. Must be > 0.
	DefaultTTL time.Duration
	// CleanupInterval is the janitor sweep period. Zero disables the
	// background sweep (expired entries are then only reaped lazily).
	CleanupInterval time.Duration
	// Enabled toggles the whole cache. When false every Get misses and
	// every Set is a no-op, so callers see pass-through behavior without
	// branching on configuration themselves.
	Enabled bool
}
