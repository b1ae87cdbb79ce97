// Package ratelimit provides an in-memory sliding-window rate limiter.
// It is used both as the backing store for the HTTP middleware (limit by
// client IP) and by the suggestion service (per-client limiting ahead of
// paid provider calls).
//
// The window is a true sliding window over recorded request timestamps, not
// a fixed aligned bucket, so bursts straddling a bucket boundary are neither
// double-counted nor under-counted.
package ratelimit

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/editorial-labs/costgate/internal/metrics"
)

// Result is the outcome of a rate-limit check.
type Result struct {
	// Allowed reports whether the request may proceed.
	Allowed bool
	// Remaining is the number of further requests the identifier may make
	// in the current window. Zero when denied.
	Remaining int
	// ResetAfter is how long until the oldest counted request leaves the
	// window. Zero when the window is empty.
	ResetAfter time.Duration
}

// ResetInSeconds returns ResetAfter rounded up to whole seconds, the shape
// HTTP callers put in Retry-After headers.
func (r Result) ResetInSeconds() int {
	if r.ResetAfter <= 0 {
		return 0
	}
	return int(math.Ceil(r.ResetAfter.Seconds()))
}

// Config configures a SlidingWindow limiter.
type Config struct {
	// GCInterval is how often idle identifiers are purged. Zero disables
	// the background purge.
	GCInterval time.Duration
	// Enabled toggles the limiter. When false every check passes and
	// nothing is recorded.
	Enabled bool
}

type window struct {
	stamps   []time.Time
	span     time.Duration
	lastSeen time.Time
}

// SlidingWindow tracks request timestamps per identifier and enforces a
// trailing-window limit. Limits are supplied per call rather than fixed at
// construction so one limiter instance can serve endpoints with different
// budgets.
type SlidingWindow struct {
	mu      sync.Mutex
	cfg     Config
	windows map[string]*window

	done     chan struct{}
	stopOnce sync.Once
}

// NewSlidingWindow creates a limiter and starts its idle-identifier purge
// (when GCInterval > 0). Call Close to stop the purge goroutine.
func NewSlidingWindow(cfg Config) (*SlidingWindow, error) {
	if cfg.GCInterval < 0 {
		return nil, fmt.Errorf("ratelimit: GCInterval must be >= 0, got %s", cfg.GCInterval)
	}
	s := &SlidingWindow{
		cfg:     cfg,
		windows: make(map[string]*window),
		done:    make(chan struct{}),
	}
	if cfg.GCInterval > 0 {
		go s.janitor()
	}
	return s, nil
}

// CheckAndRecord checks whether identifier may make a request under the
// given limit, and records the request if allowed. Pruning stale timestamps,
// checking the count, and appending the new timestamp happen as one atomic
// unit under the limiter's lock.
//
// maxRequests <= 0 means the identifier is always rate-limited; span <= 0 is
// treated the same way (an empty window can never admit a request).
func (s *SlidingWindow) CheckAndRecord(identifier string, maxRequests int, span time.Duration) Result {
	if !s.cfg.Enabled {
		return Result{Allowed: true, Remaining: maxRequests}
	}
	if maxRequests <= 0 || span <= 0 {
		metrics.RateLimitDecisions.WithLabelValues("denied").Inc()
		return Result{Allowed: false, Remaining: 0, ResetAfter: span}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	w, ok := s.windows[identifier]
	if !ok {
		w = &window{}
		s.windows[identifier] = w
	}
	// The idle-GC horizon follows the largest span the identifier has been
	// checked under, so a shared limiter never purges a window early.
	if span > w.span {
		w.span = span
	}
	w.lastSeen = now

	// Drop timestamps that have slid out of the trailing window.
	keep := w.stamps[:0]
	for _, ts := range w.stamps {
		if now.Sub(ts) < span {
			keep = append(keep, ts)
		}
	}
	w.stamps = keep

	if len(w.stamps) >= maxRequests {
		oldest := w.stamps[0]
		metrics.RateLimitDecisions.WithLabelValues("denied").Inc()
		return Result{
			Allowed:    false,
			Remaining:  0,
			ResetAfter: oldest.Add(span).Sub(now),
		}
	}

	w.stamps = append(w.stamps, now)
	metrics.RateLimitDecisions.WithLabelValues("allowed").Inc()
	return Result{
		Allowed:    true,
		Remaining:  maxRequests - len(w.stamps),
		ResetAfter: w.stamps[0].Add(span).Sub(now),
	}
}

// Reset clears the recorded window for identifier. Administrative and test
// use.
func (s *SlidingWindow) Reset(identifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, identifier)
}

// Len returns the number of identifiers currently tracked.
func (s *SlidingWindow) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// Close stops the background purge goroutine. Safe to call more than once.
func (s *SlidingWindow) Close() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *SlidingWindow) janitor() {
	ticker := time.NewTicker(s.cfg.GCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.purgeIdle()
		case <-s.done:
			return
		}
	}
}

// purgeIdle drops identifiers that have been quiet for at least twice their
// window span, bounding memory as distinct identifiers come and go.
func (s *SlidingWindow) purgeIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, w := range s.windows {
		if now.Sub(w.lastSeen) >= 2*w.span {
			delete(s.windows, id)
		}
	}
}
