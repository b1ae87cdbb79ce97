// Package dedup suppresses duplicate expensive work within a short window.
//
// Where the response cache is keyed purely by content (any caller can hit),
// the deduplicator is keyed by (identifier, payload) and exists to stop a
// single noisy client from re-triggering a paid call it just made. Its
// window is deliberately short (seconds to tens of seconds) and independent
// of the cache TTL; the two layers share only the key-hashing utility.
package dedup

import (
	"fmt"
	"sync"
	"time"

	"github.com/editorial-labs/costgate/internal/metrics"
	"github.com/editorial-labs/costgate/keyhash"
)

type record struct {
	result     any
	recordedAt time.Time
}

// Config configures a Deduplicator.
type Config struct {
	// Window is how long a recorded result answers repeat requests.
	// Must be > 0.
	Window time.Duration
	// CleanupInterval is the janitor sweep period for stale records.
	// Zero disables the background sweep.
	CleanupInterval time.Duration
	// Enabled toggles deduplication. When false nothing is recorded and
	// every check reports not-a-duplicate.
	Enabled bool
}

// Deduplicator remembers recently computed results per (identifier, payload)
// pair and serves them back while they are still fresh.
type Deduplicator struct {
	mu      sync.Mutex
	cfg     Config
	records map[string]record

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a Deduplicator and starts its janitor (when CleanupInterval
// > 0). Call Close to stop the janitor.
func New(cfg Config) (*Deduplicator, error) {
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("dedup: Window must be > 0, got %s", cfg.Window)
	}
	if cfg.CleanupInterval < 0 {
		return nil, fmt.Errorf("dedup: CleanupInterval must be >= 0, got %s", cfg.CleanupInterval)
	}
	d := &Deduplicator{
		cfg:     cfg,
		records: make(map[string]record),
		done:    make(chan struct{}),
	}
	if cfg.CleanupInterval > 0 {
		go d.janitor()
	}
	return d, nil
}

// CheckDuplicate reports whether identifier already issued an identical
// payload within the deduplication window, returning the previously
// recorded result when so.
func (d *Deduplicator) CheckDuplicate(identifier string, payload any) (any, bool) {
	if !d.cfg.Enabled {
		return nil, false
	}

	key := recordKey(identifier, payload)

	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.records[key]
	if !ok {
		return nil, false
	}
	if time.Since(rec.recordedAt) >= d.cfg.Window {
		delete(d.records, key)
		return nil, false
	}
	metrics.DedupHits.Inc()
	return rec.result, true
}

// RecordResult stores the result of a just-completed computation for
// identifier and payload. Callers must only record successful results; a
// failed computation should surface its error, not poison the window.
func (d *Deduplicator) RecordResult(identifier string, payload, result any) {
	if !d.cfg.Enabled {
		return
	}

	key := recordKey(identifier, payload)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.records[key] = record{result: result, recordedAt: time.Now()}
}

// Clear drops all records.
func (d *Deduplicator) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records = make(map[string]record)
}

// Len returns the number of records currently held, including any stale
// ones not yet swept.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.records)
}

// Close stops the background janitor. Safe to call more than once.
func (d *Deduplicator) Close() {
	d.stopOnce.Do(func() { close(d.done) })
}

func recordKey(identifier string, payload any) string {
	return keyhash.BuildKey(identifier, keyhash.HashParams(payload))
}

func (d *Deduplicator) janitor() {
	ticker := time.NewTicker(d.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.removeStale()
		case <-d.done:
			return
		}
	}
}

func (d *Deduplicator) removeStale() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for key, rec := range d.records {
		if now.Sub(rec.recordedAt) >= d.cfg.Window {
			delete(d.records, key)
		}
	}
}
