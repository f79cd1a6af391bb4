// Package cache provides a small generic TTL cache used to bound the
// staleness of evaluated template results.
//
// Entries are immutable snapshots: every Set replaces the previous entry for
// a key wholesale. Freshness is judged against the entry's write time, not
// its last access, so a value is served for at most TTL after it was stored.
package cache

import (
	"sync"
	"time"

	"github.com/dshills/vehiclecard/internal/clock"
)

// DefaultTTL is the freshness window used when none is configured.
const DefaultTTL = 1000 * time.Millisecond

// Entry is a cached value together with its write time and the raw payload
// it was parsed from.
type Entry[V any] struct {
	Value     V
	WrittenAt time.Time
	Raw       string
}

// Age returns how long ago the entry was written relative to now.
func (e Entry[V]) Age(now time.Time) time.Duration {
	return now.Sub(e.WrittenAt)
}

// Metrics receives cache lifecycle notifications.
type Metrics interface {
	Hit()
	Miss()
	Expire()
}

// NoopMetrics discards all notifications.
type NoopMetrics struct{}

func (NoopMetrics) Hit()    {}
func (NoopMetrics) Miss()   {}
func (NoopMetrics) Expire() {}

// TTL is a concurrency-safe map whose entries are only returned while
// younger than the configured TTL.
type TTL[K comparable, V any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	clock   clock.Clock
	metrics Metrics
	entries map[K]Entry[V]
}

// Option configures a TTL cache.
type Option func(*options)

type options struct {
	clock   clock.Clock
	metrics Metrics
}

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// New creates a TTL cache. A non-positive ttl uses DefaultTTL.
func New[K comparable, V any](ttl time.Duration, opts ...Option) *TTL[K, V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	o := options{clock: clock.Real(), metrics: NoopMetrics{}}
	for _, opt := range opts {
		opt(&o)
	}
	return &TTL[K, V]{
		ttl:     ttl,
		clock:   o.clock,
		metrics: o.metrics,
		entries: make(map[K]Entry[V]),
	}
}

// TTL returns the freshness window.
func (c *TTL[K, V]) TTL() time.Duration {
	return c.ttl
}

// Set stores value under key, replacing any previous entry.
func (c *TTL[K, V]) Set(key K, value V, raw string) Entry[V] {
	ent := Entry[V]{Value: value, WrittenAt: c.clock.Now(), Raw: raw}

	c.mu.Lock()
	c.entries[key] = ent
	c.mu.Unlock()
	return ent
}

// Get returns the entry for key if it is younger than the TTL.
// Expired entries are left in place; they are overwritten by the next Set
// or removed by Delete/Clear.
func (c *TTL[K, V]) Get(key K) (Entry[V], bool) {
	c.mu.RLock()
	ent, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.metrics.Miss()
		return Entry[V]{}, false
	}
	if ent.Age(c.clock.Now()) >= c.ttl {
		c.metrics.Expire()
		return Entry[V]{}, false
	}
	c.metrics.Hit()
	return ent, true
}

// Delete removes key.
func (c *TTL[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// DeleteFunc removes every key for which match returns true and reports how
// many entries were removed.
func (c *TTL[K, V]) DeleteFunc(match func(K) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k := range c.entries {
		if match(k) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Clear removes every entry.
func (c *TTL[K, V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[K]Entry[V])
	c.mu.Unlock()
}

// Len returns the number of stored entries, fresh or not.
func (c *TTL[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
