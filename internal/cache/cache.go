package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ComputeFunc produces a value for a missing cache key.
type ComputeFunc func(ctx context.Context) (any, error)

// Stats are monotonic counters since the last Clear.
type Stats struct {
	HitCount   uint64  `json:"hitCount"`
	MissCount  uint64  `json:"missCount"`
	HitRate    float64 `json:"hitRate"`
	EntryCount int     `json:"entryCount"`
}

type entry struct {
	value     any
	createdAt time.Time
	ttl       time.Duration
}

// A zero TTL entry is stale the instant it is created: callers that
// configure ttl == 0 want "never actually cache".
func (e entry) expiredAt(now time.Time) bool {
	if e.ttl <= 0 {
		return true
	}
	return now.Sub(e.createdAt) >= e.ttl
}

// Coordinator owns the shared result cache: TTL expiry, single-flight
// de-duplication of concurrent refreshes, manual invalidation, and a
// periodic sweep of expired entries.
type Coordinator struct {
	mu      sync.Mutex
	entries map[string]entry
	hits    uint64
	misses  uint64

	group  singleflight.Group
	logger zerolog.Logger

	sweepEvery time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

// New constructs a Coordinator and starts its background sweep.
func New(sweepInterval time.Duration, logger zerolog.Logger) *Coordinator {
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	c := &Coordinator{
		entries:    make(map[string]entry),
		logger:     logger.With().Str("component", "cache").Logger(),
		sweepEvery: sweepInterval,
		stop:       make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// Close stops the background sweep. Safe to call more than once.
func (c *Coordinator) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Get returns the stored value while it is fresh; an expired entry is
// evicted and reported as a miss.
func (c *Coordinator) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if e.expiredAt(time.Now()) {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}
	c.hits++
	return e.value, true
}

// Set stores a value under key with the given TTL.
func (c *Coordinator) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, createdAt: time.Now(), ttl: ttl}
}

// GetOrCompute returns the cached value for key, or runs compute to
// fill it. While a computation is in flight, late arrivals for the
// same key wait for it and share its result instead of triggering a
// second computation. With force set, the cached value is bypassed but
// the single-flight guarantee still holds. The returned bool reports
// whether the value was served from cache.
func (c *Coordinator) GetOrCompute(ctx context.Context, key string, ttl time.Duration, force bool, compute ComputeFunc) (any, bool, error) {
	if !force {
		if v, ok := c.Get(key); ok {
			return v, true, nil
		}
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		// A waiter that queued behind the miss may find the entry
		// already refilled by the flight that just completed.
		if !force {
			if v, ok := c.Get(key); ok {
				return v, nil
			}
		}
		v, err := compute(ctx)
		if err != nil {
			// The in-flight marker is released by singleflight even on
			// error, so subsequent callers can retry rather than
			// deadlocking on the key.
			return nil, err
		}
		c.Set(key, v, ttl)
		return v, nil
	})
	if err != nil {
		return nil, false, err
	}
	if shared {
		c.logger.Debug().Str("key", key).Msg("joined in-flight computation")
	}
	return v, false, nil
}

// Invalidate evicts a single key.
func (c *Coordinator) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear evicts every entry and resets the hit/miss counters.
func (c *Coordinator) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
	c.hits = 0
	c.misses = 0
}

// Stats reports cache effectiveness counters.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		HitCount:   c.hits,
		MissCount:  c.misses,
		EntryCount: len(c.entries),
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

func (c *Coordinator) sweepLoop() {
	ticker := time.NewTicker(c.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			removed := c.sweep(time.Now())
			if removed > 0 {
				c.logger.Debug().Int("removed", removed).Msg("swept expired cache entries")
			}
		}
	}
}

func (c *Coordinator) sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if e.expiredAt(now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}
