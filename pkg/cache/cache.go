// Package cache provides an in-process result cache with per-entry TTL,
// usage-aware eviction and hit/miss statistics.
//
// A ResultCache is safe for concurrent use. All state lives behind a single
// mutex; Sweep, meant to be driven by a periodic job, holds it only for one scan.
package cache

import (
	"encoding/json"
	"regexp"
	"sort"
	"sync"
	"time"
)

// Defaults applied by New when an Options field is zero.
const (
	DefaultMaxSize = 1000
	DefaultTTL     = time.Hour
)

// Entry is a cached value and its bookkeeping.
type Entry[T any] struct {
	Data         T
	CreatedAt    time.Time
	TTL          time.Duration
	AccessCount  int64
	LastAccessed time.Time
	SizeBytes    int64
}

// live reports whether the entry is still within its TTL at now.
func (e *Entry[T]) live(now time.Time) bool {
	return now.Sub(e.CreatedAt) < e.TTL
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Entries     int     `json:"entries"`
	HitRate     float64 `json:"hit_rate"`
	MemoryUsage int64   `json:"memory_usage"`
	Evictions   int64   `json:"evictions"`
	MaxSize     int     `json:"max_size"`
}

// Options configures a ResultCache.
type Options struct {
	// MaxSize is the entry count at which inserting a new key evicts one entry.
	MaxSize int
	// DefaultTTL is used by Set.
	DefaultTTL time.Duration
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
	// Sizer estimates the memory used by a value. Defaults to the JSON encoding length.
	Sizer func(v any) int64
}

// ResultCache is a generic key/value cache.
type ResultCache[T any] struct {
	mu      sync.Mutex
	entries map[string]*Entry[T]

	hits      int64
	misses    int64
	evictions int64
	memory    int64

	maxSize    int
	defaultTTL time.Duration
	now        func() time.Time
	sizer      func(v any) int64
}

// New creates an empty cache.
func New[T any](opts Options) *ResultCache[T] {
	c := &ResultCache[T]{
		entries:    make(map[string]*Entry[T]),
		maxSize:    opts.MaxSize,
		defaultTTL: opts.DefaultTTL,
		now:        opts.Clock,
		sizer:      opts.Sizer,
	}
	if c.maxSize <= 0 {
		c.maxSize = DefaultMaxSize
	}
	if c.defaultTTL <= 0 {
		c.defaultTTL = DefaultTTL
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.sizer == nil {
		c.sizer = jsonSize
	}
	return c
}

// jsonSize estimates a value's footprint from its JSON encoding.
func jsonSize(v any) int64 {
	b, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return int64(len(b))
}

// Get returns the live value stored under key.
// Expired entries are removed on the spot and reported as a miss.
func (c *ResultCache[T]) Get(key string) (T, bool) {
	var zero T
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return zero, false
	}
	if !e.live(now) {
		c.removeLocked(key, e)
		c.misses++
		return zero, false
	}

	e.AccessCount++
	e.LastAccessed = now
	c.hits++
	return e.Data, true
}

// Set stores v under key with the default TTL.
func (c *ResultCache[T]) Set(key string, v T) {
	c.SetWithTTL(key, v, c.defaultTTL)
}

// SetWithTTL stores v under key. A non-positive ttl uses the default TTL.
// Overwriting an existing key resets its access statistics.
func (c *ResultCache[T]) SetWithTTL(key string, v T, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	size := c.sizer(v)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.removeLocked(key, old)
	} else if len(c.entries) >= c.maxSize {
		c.evictLocked()
	}

	c.entries[key] = &Entry[T]{
		Data:         v,
		CreatedAt:    now,
		TTL:          ttl,
		LastAccessed: now,
		SizeBytes:    size,
	}
	c.memory += size
}

// evictLocked removes the entry with the lowest access count, the oldest
// CreatedAt breaking ties and the key breaking exact timestamp ties.
func (c *ResultCache[T]) evictLocked() {
	var (
		victimKey string
		victim    *Entry[T]
	)
	for k, e := range c.entries {
		if victim == nil || lessUsed(k, e, victimKey, victim) {
			victimKey, victim = k, e
		}
	}
	if victim == nil {
		return
	}
	c.removeLocked(victimKey, victim)
	c.evictions++
}

func lessUsed[T any](k string, e *Entry[T], vk string, v *Entry[T]) bool {
	if e.AccessCount != v.AccessCount {
		return e.AccessCount < v.AccessCount
	}
	if !e.CreatedAt.Equal(v.CreatedAt) {
		return e.CreatedAt.Before(v.CreatedAt)
	}
	return k < vk
}

func (c *ResultCache[T]) removeLocked(key string, e *Entry[T]) {
	delete(c.entries, key)
	c.memory -= e.SizeBytes
	if c.memory < 0 {
		c.memory = 0
	}
}

// Delete removes key and reports whether it was present.
func (c *ResultCache[T]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeLocked(key, e)
	return true
}

// Has reports whether a live entry exists for key. It does not touch hit/miss counters.
func (c *ResultCache[T]) Has(key string) bool {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	if !e.live(now) {
		c.removeLocked(key, e)
		return false
	}
	return true
}

// Keys returns the sorted live keys matching pattern, a regular expression.
// An empty pattern matches every key.
func (c *ResultCache[T]) Keys(pattern string) ([]string, error) {
	var re *regexp.Regexp
	if pattern != "" {
		var err error
		if re, err = regexp.Compile(pattern); err != nil {
			return nil, err
		}
	}
	now := c.now()

	c.mu.Lock()
	keys := make([]string, 0, len(c.entries))
	for k, e := range c.entries {
		if !e.live(now) {
			continue
		}
		if re == nil || re.MatchString(k) {
			keys = append(keys, k)
		}
	}
	c.mu.Unlock()

	sort.Strings(keys)
	return keys, nil
}

// Clear drops every entry. Hit, miss and eviction counters are preserved.
func (c *ResultCache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*Entry[T])
	c.memory = 0
}

// Stats returns a snapshot of the cache counters.
func (c *ResultCache[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		Entries:     len(c.entries),
		MemoryUsage: c.memory,
		Evictions:   c.evictions,
		MaxSize:     c.maxSize,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// Sweep removes every expired entry and returns how many were removed.
func (c *ResultCache[T]) Sweep() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if !e.live(now) {
			c.removeLocked(k, e)
			removed++
		}
	}
	return removed
}

// DefaultTTL returns the TTL applied by Set.
func (c *ResultCache[T]) DefaultTTL() time.Duration {
	return c.defaultTTL
}
