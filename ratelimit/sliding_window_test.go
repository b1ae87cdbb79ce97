package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, cfg Config) *SlidingWindow {
	t.Helper()
	s, err := NewSlidingWindow(cfg)
	if err != nil {
		t.Fatalf("NewSlidingWindow: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestSlidingWindow_AllowsUpToLimit(t *testing.T) {
	s := newTestLimiter(t, Config{Enabled: true})

	for i := 0; i < 3; i++ {
		res := s.CheckAndRecord("10.0.0.1", 3, time.Second)
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if want := 3 - (i + 1); res.Remaining != want {
			t.Errorf("request %d: expected remaining %d, got %d", i+1, want, res.Remaining)
		}
	}

	res := s.CheckAndRecord("10.0.0.1", 3, time.Second)
	if res.Allowed {
		t.Error("4th request inside window should be denied")
	}
	if res.Remaining != 0 {
		t.Errorf("denied result should report 0 remaining, got %d", res.Remaining)
	}
	if got := res.ResetInSeconds(); got != 1 {
		t.Errorf("expected reset in ~1s, got %d", got)
	}
}

func TestSlidingWindow_WindowSlides(t *testing.T) {
	s := newTestLimiter(t, Config{Enabled: true})

	for i := 0; i < 3; i++ {
		s.CheckAndRecord("ip", 3, 50*time.Millisecond)
	}
	if s.CheckAndRecord("ip", 3, 50*time.Millisecond).Allowed {
		t.Fatal("should be denied while window is full")
	}

	time.Sleep(60 * time.Millisecond)

	if !s.CheckAndRecord("ip", 3, 50*time.Millisecond).Allowed {
		t.Error("should be allowed after the window slides past the burst")
	}
}

func TestSlidingWindow_IdentifiersAreIndependent(t *testing.T) {
	s := newTestLimiter(t, Config{Enabled: true})

	s.CheckAndRecord("a", 1, time.Second)
	if s.CheckAndRecord("a", 1, time.Second).Allowed {
		t.Fatal("identifier a should be exhausted")
	}
	if !s.CheckAndRecord("b", 1, time.Second).Allowed {
		t.Error("identifier b must not be affected by a's usage")
	}
}

func TestSlidingWindow_ZeroLimitAlwaysDenied(t *testing.T) {
	s := newTestLimiter(t, Config{Enabled: true})

	res := s.CheckAndRecord("ip", 0, time.Second)
	if res.Allowed {
		t.Error("maxRequests=0 must always deny")
	}
	res = s.CheckAndRecord("ip", -5, time.Second)
	if res.Allowed {
		t.Error("negative maxRequests must always deny")
	}
}

func TestSlidingWindow_Reset(t *testing.T) {
	s := newTestLimiter(t, Config{Enabled: true})

	s.CheckAndRecord("ip", 1, time.Minute)
	if s.CheckAndRecord("ip", 1, time.Minute).Allowed {
		t.Fatal("should be exhausted before reset")
	}

	s.Reset("ip")

	if !s.CheckAndRecord("ip", 1, time.Minute).Allowed {
		t.Error("should be allowed after reset")
	}
}

func TestSlidingWindow_DisabledPassesThrough(t *testing.T) {
	s := newTestLimiter(t, Config{Enabled: false})

	for i := 0; i < 10; i++ {
		res := s.CheckAndRecord("ip", 1, time.Second)
		if !res.Allowed {
			t.Fatal("disabled limiter must always allow")
		}
	}
	if s.Len() != 0 {
		t.Error("disabled limiter must not record identifiers")
	}
}

func TestSlidingWindow_PurgesIdleIdentifiers(t *testing.T) {
	s := newTestLimiter(t, Config{Enabled: true, GCInterval: 10 * time.Millisecond})

	s.CheckAndRecord("idle", 5, 20*time.Millisecond)
	if s.Len() != 1 {
		t.Fatalf("expected 1 tracked identifier, got %d", s.Len())
	}

	// Idle for 2× the window span plus a GC cycle.
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if s.Len() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("idle identifier was not purged")
}

func TestSlidingWindow_GCHonorsLargestSpan(t *testing.T) {
	s := newTestLimiter(t, Config{Enabled: true, GCInterval: 5 * time.Millisecond})

	s.CheckAndRecord("mixed", 5, time.Minute)
	s.CheckAndRecord("mixed", 5, 10*time.Millisecond)

	// Idle well past twice the short span, nowhere near twice the long one.
	time.Sleep(60 * time.Millisecond)

	if s.Len() != 1 {
		t.Error("identifier checked under a longer window must not be purged early")
	}
}

func TestSlidingWindow_ResetAfterTracksOldest(t *testing.T) {
	s := newTestLimiter(t, Config{Enabled: true})

	s.CheckAndRecord("ip", 2, time.Second)
	time.Sleep(20 * time.Millisecond)
	s.CheckAndRecord("ip", 2, time.Second)

	res := s.CheckAndRecord("ip", 2, time.Second)
	if res.Allowed {
		t.Fatal("window should be full")
	}
	if res.ResetAfter <= 0 || res.ResetAfter > time.Second {
		t.Errorf("ResetAfter should be within (0, window], got %s", res.ResetAfter)
	}
}

func TestSlidingWindow_ConcurrentAccess(t *testing.T) {
	s := newTestLimiter(t, Config{Enabled: true})

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := fmt.Sprintf("client-%d", g%4)
				if s.CheckAndRecord(id, 50, time.Minute).Allowed {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}(g)
	}
	wg.Wait()

	// 4 identifiers receive 100 requests each against a budget of 50, so
	// exactly half are admitted regardless of interleaving.
	if allowed != 200 {
		t.Errorf("expected exactly 200 allowed requests, got %d", allowed)
	}
}
