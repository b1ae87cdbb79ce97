// Package metrics registers the Prometheus metrics exported by the
// cost-control layer. Import this package (directly or via the packages that
// use it) before mounting the /metrics handler so everything is registered
// up front.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache counters.
var (
	// CacheHits counts successful cache reads.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "costgate_cache_hits_total",
		Help: "Total number of cache hits.",
	})

	// CacheMisses counts cache reads that found nothing live.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "costgate_cache_misses_total",
		Help: "Total number of cache misses.",
	})

	// CacheSets counts cache writes.
	CacheSets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "costgate_cache_sets_total",
		Help: "Total number of cache writes.",
	})

	// CacheEvictions counts entries evicted to make room at capacity.
	CacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "costgate_cache_evictions_total",
		Help: "Total number of entries evicted at capacity.",
	})

	// CacheExpirations counts entries removed because their TTL elapsed,
	// whether reaped lazily or by the janitor.
	CacheExpirations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "costgate_cache_expirations_total",
		Help: "Total number of entries removed after TTL expiry.",
	})
)

// Rate-limiter and deduplication counters.
var (
	// RateLimitDecisions counts rate-limit checks labelled by outcome
	// ("allowed", "denied").
	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "costgate_ratelimit_decisions_total",
			Help: "Total rate-limit decisions by outcome.",
		},
		[]string{"outcome"},
	)

	// DedupHits counts requests answered from a recent identical request's
	// recorded result.
	DedupHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "costgate_dedup_hits_total",
		Help: "Total requests served from the deduplication window.",
	})
)

// Suggestion-call counters.
var (
	// SuggestRequests counts suggestion calls labelled by endpoint and
	// outcome ("cache_hit", "dedup_hit", "computed", "rate_limited", "error").
	SuggestRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "costgate_suggest_requests_total",
			Help: "Total suggestion requests by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	// TokensBudgeted counts output tokens requested from the provider after
	// budget allocation, by endpoint.
	TokensBudgeted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "costgate_tokens_budgeted_total",
			Help: "Total output tokens requested from providers after budgeting.",
		},
		[]string{"endpoint"},
	)

	// TokensUsed counts completion tokens actually consumed, by endpoint.
	TokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "costgate_tokens_used_total",
			Help: "Total completion tokens consumed by providers.",
		},
		[]string{"endpoint"},
	)

	// ProviderErrors counts provider failures by provider name and error
	// type ("provider_error", "circuit_open").
	ProviderErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "costgate_provider_errors_total",
			Help: "Total provider errors by type.",
		},
		[]string{"provider", "error_type"},
	)
)
