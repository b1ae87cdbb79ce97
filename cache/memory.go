package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/gobwas/glob"

	"github.com/editorial-labs/costgate/internal/metrics"
)

type memoryEntry struct {
	value     any
	createdAt time.Time
	expiresAt time.Time
	hitCount  int64
	tags      []string
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// Memory is a thread-safe in-memory cache with per-entry TTL, a hard entry
// cap, and least-frequently-used eviction (ties broken by age).
//
// Known limitation: Memory does not coalesce concurrent misses for the same
// key. Two goroutines that miss simultaneously will both perform the
// expensive computation; the second Set wins. Callers that need single-flight
// semantics must add their own in-flight coalescing.
type Memory struct {
	mu      sync.Mutex
	cfg     Config
	entries map[string]*memoryEntry

	hits        int64
	misses      int64
	sets        int64
	deletes     int64
	evictions   int64
	expirations int64

	done     chan struct{}
	stopOnce sync.Once
}

// NewMemory creates a Memory cache and starts its janitor (when
// CleanupInterval > 0). Configuration is validated up front so a bad cap or
// TTL fails at startup, not at first use. Call Close to stop the janitor.
func NewMemory(cfg Config) (*Memory, error) {
	if cfg.MaxEntries <= 0 {
		return nil, fmt.Errorf("cache: MaxEntries must be > 0, got %d", cfg.MaxEntries)
	}
	if cfg.DefaultTTL <= 0 {
		return nil, fmt.Errorf("cache: DefaultTTL must be > 0, got %s", cfg.DefaultTTL)
	}
	if cfg.CleanupInterval < 0 {
		return nil, fmt.Errorf("cache: CleanupInterval must be >= 0, got %s", cfg.CleanupInterval)
	}

	m := &Memory{
		cfg:     cfg,
		entries: make(map[string]*memoryEntry),
		done:    make(chan struct{}),
	}
	if cfg.CleanupInterval > 0 {
		go m.janitor()
	}
	return m, nil
}

// Get returns the cached value for key, or false if the key was never set,
// has expired, or was evicted. A hit bumps the entry's hit count, which is
// the eviction-priority signal.
func (m *Memory) Get(key string) (any, bool) {
	if !m.cfg.Enabled {
		return nil, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		m.misses++
		metrics.CacheMisses.Inc()
		return nil, false
	}
	if e.expired(time.Now()) {
		delete(m.entries, key)
		m.expirations++
		m.misses++
		metrics.CacheExpirations.Inc()
		metrics.CacheMisses.Inc()
		return nil, false
	}

	e.hitCount++
	m.hits++
	metrics.CacheHits.Inc()
	return e.value, true
}

// Set stores value under key with the configured default TTL.
func (m *Memory) Set(key string, value any) {
	m.SetWithTTL(key, value, m.cfg.DefaultTTL)
}

// SetWithTTL stores value under key with an explicit TTL and optional tags.
// Overwriting an existing key resets its creation time, expiry, and hit
// count. When the cache is full and key is new, one entry is evicted first:
// the one with the fewest hits, oldest first on ties.
func (m *Memory) SetWithTTL(key string, value any, ttl time.Duration, tags ...string) {
	if !m.cfg.Enabled {
		return
	}
	if ttl <= 0 {
		ttl = m.cfg.DefaultTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.cfg.MaxEntries {
		m.evictOne(now)
	}
	m.entries[key] = &memoryEntry{
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
		tags:      tags,
	}
	m.sets++
	metrics.CacheSets.Inc()
}

// Has reports whether key holds a live entry. Unlike Get it does not bump
// the entry's hit count or the hit/miss counters, so existence probes do not
// skew eviction priority or the hit rate.
func (m *Memory) Has(key string) bool {
	if !m.cfg.Enabled {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return false
	}
	if e.expired(time.Now()) {
		delete(m.entries, key)
		m.expirations++
		metrics.CacheExpirations.Inc()
		return false
	}
	return true
}

// Delete removes the entry for key, if present.
func (m *Memory) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[key]; ok {
		delete(m.entries, key)
		m.deletes++
	}
}

// DeletePattern removes every entry whose key matches the glob pattern
// ('*' matches any run of characters) and returns the number removed.
// Used for coarse invalidation, e.g. DeletePattern("titles:*").
func (m *Memory) DeletePattern(pattern string) (int, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return 0, fmt.Errorf("cache: bad glob pattern %q: %w", pattern, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for key := range m.entries {
		if g.Match(key) {
			delete(m.entries, key)
			n++
		}
	}
	m.deletes += int64(n)
	return n, nil
}

// DeleteTag removes every entry carrying the given tag and returns the
// number removed.
func (m *Memory) DeleteTag(tag string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for key, e := range m.entries {
		for _, t := range e.tags {
			if t == tag {
				delete(m.entries, key)
				n++
				break
			}
		}
	}
	m.deletes += int64(n)
	return n
}

// Clear removes all entries and resets the set/delete/eviction/expiration
// counters. Cumulative hit and miss counters are deliberately preserved so
// long-run hit-rate monitoring survives administrative clears.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]*memoryEntry)
	m.sets = 0
	m.deletes = 0
	m.evictions = 0
	m.expirations = 0
}

// Len returns the number of live entries, including any that have expired
// but not yet been swept.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Stats returns a snapshot of the cache counters. HitRate is
// hits/(hits+misses), or 0 before any lookup.
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{
		Hits:        m.hits,
		Misses:      m.misses,
		Sets:        m.sets,
		Deletes:     m.deletes,
		Evictions:   m.evictions,
		Expirations: m.expirations,
		Size:        len(m.entries),
	}
	if total := m.hits + m.misses; total > 0 {
		s.HitRate = float64(m.hits) / float64(total)
	}
	return s
}

// Close stops the background janitor. Safe to call more than once. The cache
// remains usable after Close, but expired entries are then only reaped
// lazily.
func (m *Memory) Close() {
	m.stopOnce.Do(func() { close(m.done) })
}

// evictOne removes the entry with the lowest hit count, preferring the
// oldest on ties. Must be called with m.mu held and a non-empty map.
func (m *Memory) evictOne(now time.Time) {
	// Expired entries are free to reclaim; prefer them over a live victim.
	for key, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, key)
			m.expirations++
			metrics.CacheExpirations.Inc()
			return
		}
	}

	var victim string
	var victimEntry *memoryEntry
	for key, e := range m.entries {
		if victimEntry == nil ||
			e.hitCount < victimEntry.hitCount ||
			(e.hitCount == victimEntry.hitCount && e.createdAt.Before(victimEntry.createdAt)) {
			victim = key
			victimEntry = e
		}
	}
	if victimEntry != nil {
		delete(m.entries, victim)
		m.evictions++
		metrics.CacheEvictions.Inc()
	}
}

func (m *Memory) janitor() {
	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.removeExpired()
		case <-m.done:
			return
		}
	}
}

// removeExpired is the active half of the expiry policy; lazy checks in Get
// alone would let write-only keys accumulate until eviction pressure.
func (m *Memory) removeExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for key, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, key)
			m.expirations++
			metrics.CacheExpirations.Inc()
		}
	}
}
