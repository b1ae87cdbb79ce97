package costgate

import (
	"testing"
	"time"
)

func newTestLayer(t *testing.T, mutate func(*Config)) *Layer {
	t.Helper()
	cfg := DefaultConfig()
	cfg.CleanupIntervalMs = 0 // no background sweeps in tests
	if mutate != nil {
		mutate(&cfg)
	}
	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(l.Close)
	return l
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEntries = 0
	if _, err := New(cfg); err == nil {
		t.Error("expected construction to fail fast on bad config")
	}
}

func TestLayer_ComponentsShareGlobalSwitch(t *testing.T) {
	l := newTestLayer(t, func(c *Config) { c.Enabled = false })

	l.Cache().Set("k", "v")
	if _, ok := l.Cache().Get("k"); ok {
		t.Error("disabled layer: cache must always miss")
	}

	l.Deduplicator().RecordResult("id", "payload", "r")
	if _, ok := l.Deduplicator().CheckDuplicate("id", "payload"); ok {
		t.Error("disabled layer: dedup must pass through")
	}

	if !l.CheckRateLimit("id").Allowed {
		t.Error("disabled layer: rate limiter must admit everything")
	}
}

func TestLayer_CheckRateLimitUsesConfiguredWindow(t *testing.T) {
	l := newTestLayer(t, func(c *Config) {
		c.MaxRequestsPerWindow = 2
		c.WindowMs = 60_000
	})

	if !l.CheckRateLimit("ip").Allowed || !l.CheckRateLimit("ip").Allowed {
		t.Fatal("first two requests should be admitted")
	}
	res := l.CheckRateLimit("ip")
	if res.Allowed {
		t.Error("third request should be denied")
	}
	if res.ResetInSeconds() < 1 || res.ResetInSeconds() > 60 {
		t.Errorf("reset should fall inside the window, got %ds", res.ResetInSeconds())
	}
}

func TestLayer_CacheRoundTripWithConfiguredTTL(t *testing.T) {
	l := newTestLayer(t, nil)

	l.Cache().Set("key", "value")
	got, ok := l.Cache().Get("key")
	if !ok || got != "value" {
		t.Errorf("expected round-trip hit, got %v (ok=%v)", got, ok)
	}
	if l.CacheTTL() != time.Duration(DefaultConfig().DefaultTTLSeconds)*time.Second {
		t.Errorf("unexpected cache TTL: %s", l.CacheTTL())
	}
}

func TestLayer_BudgetRegistryWired(t *testing.T) {
	l := newTestLayer(t, nil)

	if got := l.Budgets().AllocateFor("titles", 0); got <= 0 {
		t.Errorf("expected positive budget for titles endpoint, got %d", got)
	}
}
