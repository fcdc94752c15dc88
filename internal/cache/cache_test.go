package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	c := New(time.Hour, zerolog.Nop())
	t.Cleanup(c.Close)
	return c
}

func TestGetSetWithinTTL(t *testing.T) {
	c := newTestCoordinator(t)

	c.Set("k", "v", 100*time.Millisecond)
	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Fatalf("expected immediate hit, got %v ok=%v", v, ok)
	}

	time.Sleep(120 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry should have expired after its TTL")
	}
}

func TestZeroTTLIsImmediatelyStale(t *testing.T) {
	c := newTestCoordinator(t)

	c.Set("k", "v", 0)
	if _, ok := c.Get("k"); ok {
		t.Fatal("zero-TTL entry must be expired on the same tick it was set")
	}
}

func TestGetOrComputeSingleFlight(t *testing.T) {
	c := newTestCoordinator(t)

	var calls int32
	release := make(chan struct{})
	compute := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "computed", nil
	}

	const n = 10
	var wg sync.WaitGroup
	results := make([]any, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _, err := c.GetOrCompute(context.Background(), "k", time.Minute, false, compute)
			if err != nil {
				t.Errorf("caller %d: %v", i, err)
				return
			}
			results[i] = v
		}(i)
	}

	// Give every caller time to reach the in-flight computation.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("compute ran %d times, want exactly 1", got)
	}
	for i, v := range results {
		if v != "computed" {
			t.Fatalf("caller %d received %v", i, v)
		}
	}
}

func TestGetOrComputeHitSkipsCompute(t *testing.T) {
	c := newTestCoordinator(t)
	c.Set("k", "cached", time.Minute)

	v, cached, err := c.GetOrCompute(context.Background(), "k", time.Minute, false, func(ctx context.Context) (any, error) {
		t.Fatal("compute must not run on a fresh entry")
		return nil, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !cached || v != "cached" {
		t.Fatalf("expected cached hit, got %v cached=%v", v, cached)
	}
}

func TestGetOrComputeForceBypassesTTL(t *testing.T) {
	c := newTestCoordinator(t)
	c.Set("k", "stale", time.Minute)

	v, cached, err := c.GetOrCompute(context.Background(), "k", time.Minute, true, func(ctx context.Context) (any, error) {
		return "fresh", nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if cached {
		t.Fatal("forced compute must not report a cache hit")
	}
	if v != "fresh" {
		t.Fatalf("expected forced recompute, got %v", v)
	}
	if got, ok := c.Get("k"); !ok || got != "fresh" {
		t.Fatal("forced result must replace the cached entry")
	}
}

// A failing computation must release the in-flight marker so the key
// does not deadlock for subsequent callers.
func TestGetOrComputeErrorReleasesFlight(t *testing.T) {
	c := newTestCoordinator(t)

	wantErr := errors.New("boom")
	if _, _, err := c.GetOrCompute(context.Background(), "k", time.Minute, false, func(ctx context.Context) (any, error) {
		return nil, wantErr
	}); !errors.Is(err, wantErr) {
		t.Fatalf("expected compute error, got %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		v, _, err := c.GetOrCompute(context.Background(), "k", time.Minute, false, func(ctx context.Context) (any, error) {
			return "recovered", nil
		})
		if err != nil || v != "recovered" {
			t.Errorf("retry after failure: v=%v err=%v", v, err)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("key deadlocked after failed computation")
	}
}

func TestInvalidateAndClear(t *testing.T) {
	c := newTestCoordinator(t)

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)

	c.Invalidate("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("invalidated key must miss")
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatal("other keys must survive invalidation")
	}

	c.Clear()
	if _, ok := c.Get("b"); ok {
		t.Fatal("clear must evict everything")
	}
	stats := c.Stats()
	// Clear resets counters; the Get above recorded the only miss.
	if stats.HitCount != 0 || stats.MissCount != 1 {
		t.Fatalf("counters not reset: %+v", stats)
	}
}

func TestStats(t *testing.T) {
	c := newTestCoordinator(t)

	c.Set("k", "v", time.Minute)
	c.Get("k")
	c.Get("k")
	c.Get("missing")

	stats := c.Stats()
	if stats.HitCount != 2 || stats.MissCount != 1 {
		t.Fatalf("unexpected counters: %+v", stats)
	}
	if stats.HitRate < 0.66 || stats.HitRate > 0.67 {
		t.Fatalf("hit rate = %f, want ~0.667", stats.HitRate)
	}
	if stats.EntryCount != 1 {
		t.Fatalf("entry count = %d, want 1", stats.EntryCount)
	}
}

func TestSweepRemovesExpiredEntries(t *testing.T) {
	c := New(time.Hour, zerolog.Nop())
	defer c.Close()

	c.Set("expired", 1, time.Millisecond)
	c.Set("fresh", 2, time.Hour)
	time.Sleep(5 * time.Millisecond)

	if removed := c.sweep(time.Now()); removed != 1 {
		t.Fatalf("sweep removed %d entries, want 1", removed)
	}
	if c.Stats().EntryCount != 1 {
		t.Fatal("fresh entry must survive the sweep")
	}
}
