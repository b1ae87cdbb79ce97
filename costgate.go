// Package costgate provides an in-process cost-control layer for paid LLM
// calls: a bounded TTL response cache, a sliding-window rate limiter, a
// short-window request deduplicator, and a dynamic token-budget allocator.
//
// The Layer type is the main entry point: create one with New, hand it to
// your request handlers, and tear it down with Close at process shutdown.
// A Layer is an explicitly owned instance, built once per process and
// injected where needed; there is no ambient singleton.
//
// All state is memory-resident and lost on restart. The layer is a
// single-instance optimization — running several replicas behind a load
// balancer gives each its own cache and rate-limit view. It also provides
// no single-flight guarantee: concurrent misses for the same key may each
// perform the expensive call.
package costgate

import (
	"fmt"
	"time"

	"github.com/editorial-labs/costgate/budget"
	"github.com/editorial-labs/costgate/cache"
	"github.com/editorial-labs/costgate/dedup"
	"github.com/editorial-labs/costgate/ratelimit"
)

// Layer owns the four cost-control components and their background sweeps.
type Layer struct {
	cfg     Config
	cache   *cache.Memory
	limiter *ratelimit.SlidingWindow
	dedup   *dedup.Deduplicator
	budgets *budget.Registry
}

// New creates a Layer from cfg. Configuration errors surface here, at
// construction, never at first use.
func New(cfg Config) (*Layer, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("costgate: invalid config: %w", err)
	}

	store, err := cache.NewMemory(cache.Config{
		MaxEntries:      cfg.MaxEntries,
		DefaultTTL:      cfg.DefaultTTL(),
		CleanupInterval: cfg.CleanupInterval(),
		Enabled:         cfg.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("costgate: %w", err)
	}

	limiter, err := ratelimit.NewSlidingWindow(ratelimit.Config{
		GCInterval: cfg.CleanupInterval(),
		Enabled:    cfg.Enabled,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("costgate: %w", err)
	}

	dd, err := dedup.New(dedup.Config{
		Window:          cfg.DeduplicationWindow(),
		CleanupInterval: cfg.CleanupInterval(),
		Enabled:         cfg.Enabled,
	})
	if err != nil {
		store.Close()
		limiter.Close()
		return nil, fmt.Errorf("costgate: %w", err)
	}

	budgets, err := budget.NewRegistry(cfg.BudgetClasses)
	if err != nil {
		store.Close()
		limiter.Close()
		dd.Close()
		return nil, fmt.Errorf("costgate: %w", err)
	}

	return &Layer{
		cfg:     cfg,
		cache:   store,
		limiter: limiter,
		dedup:   dd,
		budgets: budgets,
	}, nil
}

// Config returns the configuration the layer was built with.
func (l *Layer) Config() Config { return l.cfg }

// Cache returns the response cache.
func (l *Layer) Cache() *cache.Memory { return l.cache }

// RateLimiter returns the sliding-window rate limiter.
func (l *Layer) RateLimiter() *ratelimit.SlidingWindow { return l.limiter }

// Deduplicator returns the request deduplicator.
func (l *Layer) Deduplicator() *dedup.Deduplicator { return l.dedup }

// Budgets returns the token-budget registry.
func (l *Layer) Budgets() *budget.Registry { return l.budgets }

// CheckRateLimit checks identifier against the configured per-window budget
// and records the request if admitted.
func (l *Layer) CheckRateLimit(identifier string) ratelimit.Result {
	return l.limiter.CheckAndRecord(identifier, l.cfg.MaxRequestsPerWindow, l.cfg.Window())
}

// CacheTTL returns the TTL the layer applies to cached responses.
func (l *Layer) CacheTTL() time.Duration { return l.cfg.DefaultTTL() }

// Close cancels all background sweeps. The layer remains usable afterwards,
// but expired entries and idle identifiers are then only reaped lazily.
func (l *Layer) Close() {
	l.cache.Close()
	l.limiter.Close()
	l.dedup.Close()
}
