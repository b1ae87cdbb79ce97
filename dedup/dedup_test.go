package dedup

import (
	"testing"
	"time"
)

func newTestDedup(t *testing.T, cfg Config) *Deduplicator {
	t.Helper()
	if cfg.Window == 0 {
		cfg.Window = time.Minute
	}
	d, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(d.Close)
	return d
}

func TestNew_RejectsBadConfig(t *testing.T) {
	if _, err := New(Config{Window: 0, Enabled: true}); err == nil {
		t.Error("expected error for zero window")
	}
	if _, err := New(Config{Window: time.Second, CleanupInterval: -1, Enabled: true}); err == nil {
		t.Error("expected error for negative cleanup interval")
	}
}

func TestDeduplicator_RepeatWithinWindow(t *testing.T) {
	d := newTestDedup(t, Config{Enabled: true})
	payload := map[string]any{"content": "article body", "count": 3}

	if _, ok := d.CheckDuplicate("client-1", payload); ok {
		t.Fatal("fresh request must not be a duplicate")
	}

	d.RecordResult("client-1", payload, "titles-result")

	got, ok := d.CheckDuplicate("client-1", payload)
	if !ok {
		t.Fatal("identical request inside window should be a duplicate")
	}
	if got != "titles-result" {
		t.Errorf("expected recorded result, got %v", got)
	}
}

func TestDeduplicator_KeyOrderDoesNotMatter(t *testing.T) {
	d := newTestDedup(t, Config{Enabled: true})

	d.RecordResult("c", map[string]any{"a": 1, "b": 2}, "r")
	if _, ok := d.CheckDuplicate("c", map[string]any{"b": 2, "a": 1}); !ok {
		t.Error("reordered but equal payload should count as a duplicate")
	}
}

func TestDeduplicator_IdentifiersAreIndependent(t *testing.T) {
	d := newTestDedup(t, Config{Enabled: true})
	payload := "same payload"

	d.RecordResult("client-1", payload, "r")

	if _, ok := d.CheckDuplicate("client-2", payload); ok {
		t.Error("a different identifier must not see client-1's record")
	}
}

func TestDeduplicator_WindowElapses(t *testing.T) {
	d := newTestDedup(t, Config{Window: 20 * time.Millisecond, Enabled: true})

	d.RecordResult("c", "p", "r")
	time.Sleep(30 * time.Millisecond)

	if _, ok := d.CheckDuplicate("c", "p"); ok {
		t.Error("record past the window must not be reused")
	}
}

func TestDeduplicator_JanitorSweepsStaleRecords(t *testing.T) {
	d := newTestDedup(t, Config{
		Window:          10 * time.Millisecond,
		CleanupInterval: 10 * time.Millisecond,
		Enabled:         true,
	})

	d.RecordResult("c", "p", "r")

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if d.Len() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("stale record was not swept")
}

func TestDeduplicator_Clear(t *testing.T) {
	d := newTestDedup(t, Config{Enabled: true})
	d.RecordResult("c", "p", "r")

	d.Clear()

	if _, ok := d.CheckDuplicate("c", "p"); ok {
		t.Error("cleared record must not be reused")
	}
}

func TestDeduplicator_DisabledPassesThrough(t *testing.T) {
	d := newTestDedup(t, Config{Enabled: false})

	d.RecordResult("c", "p", "r")
	if _, ok := d.CheckDuplicate("c", "p"); ok {
		t.Error("disabled deduplicator must never report duplicates")
	}
	if d.Len() != 0 {
		t.Error("disabled deduplicator must not store records")
	}
}
