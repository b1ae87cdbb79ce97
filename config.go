package costgate

import (
	"time"

	"github.com/editorial-labs/costgate/budget"
)

// Config holds the configuration for the cost-control layer.
//
// Durations are expressed in the units the calling application supplies them
// in (seconds for the long-lived cache TTL, milliseconds for the windows and
// sweep intervals).
type Config struct {
	// Enabled is the global switch. When false every cache and
	// deduplication operation is a guaranteed pass-through (always miss,
	// never stores) and the rate limiter admits everything.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// MaxEntries caps the response cache.
	MaxEntries int `json:"max_entries" yaml:"max_entries"`
	// DefaultTTLSeconds is the cache TTL applied when a caller does not
	// pass one explicitly.
	DefaultTTLSeconds int `json:"default_ttl_seconds" yaml:"default_ttl_seconds"`
	// CleanupIntervalMs is the period of the background sweeps (cache
	// expiry, dedup record expiry, idle rate-limit identifiers). Zero
	// disables the sweeps.
	CleanupIntervalMs int `json:"cleanup_interval_ms" yaml:"cleanup_interval_ms"`

	// MaxRequestsPerWindow is the per-identifier request budget inside
	// one rate-limit window. Zero or negative means always rate-limited.
	MaxRequestsPerWindow int `json:"max_requests_per_window" yaml:"max_requests_per_window"`
	// WindowMs is the rate-limit window length.
	WindowMs int `json:"window_ms" yaml:"window_ms"`

	// DeduplicationWindowMs is how long an identical request from the
	// same identifier is answered from the just-computed result. Kept
	// deliberately short, independent of the cache TTL.
	DeduplicationWindowMs int `json:"deduplication_window_ms" yaml:"deduplication_window_ms"`

	// BudgetClasses overrides or extends the built-in per-endpoint token
	// budget classes.
	BudgetClasses map[string]budget.Class `json:"budget_classes,omitempty" yaml:"budget_classes,omitempty"`

	// UsageLog configures persistent usage/cost logging (optional).
	UsageLog UsageLogConfig `json:"usage_log,omitempty" yaml:"usage_log,omitempty"`
}

// UsageLogConfig selects where per-call usage rows are written.
type UsageLogConfig struct {
	// Driver is "sqlite", "postgres", or empty to disable usage logging.
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty"`
	// DSN is the driver-specific data source name.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// DefaultConfig returns the configuration used when the caller supplies
// nothing: a 1000-entry cache with a 1-hour TTL, 60s sliding windows of 10
// requests, and a 10s deduplication window.
func DefaultConfig() Config {
	return Config{
		Enabled:               true,
		MaxEntries:            1000,
		DefaultTTLSeconds:     3600,
		CleanupIntervalMs:     60_000,
		MaxRequestsPerWindow:  10,
		WindowMs:              60_000,
		DeduplicationWindowMs: 10_000,
	}
}

// DefaultTTL returns DefaultTTLSeconds as a duration.
func (c Config) DefaultTTL() time.Duration {
	return time.Duration(c.DefaultTTLSeconds) * time.Second
}

// CleanupInterval returns CleanupIntervalMs as a duration.
func (c Config) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMs) * time.Millisecond
}

// Window returns WindowMs as a duration.
func (c Config) Window() time.Duration {
	return time.Duration(c.WindowMs) * time.Millisecond
}

// DeduplicationWindow returns DeduplicationWindowMs as a duration.
func (c Config) DeduplicationWindow() time.Duration {
	return time.Duration(c.DeduplicationWindowMs) * time.Millisecond
}
