// Package cache memoizes query results with a fixed time-to-live and
// size-bounded, insertion-order eviction.
package cache

import (
	"container/list"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Default limits.
const (
	DefaultTTL        = 5 * time.Minute
	DefaultCatalogTTL = 24 * time.Hour
	DefaultMaxEntries = 100
	DefaultMaxBytes   = 5 << 20
)

// ErrEntryTooLarge is returned by Set when a single value exceeds the byte bound.
var ErrEntryTooLarge = errors.New("cache entry exceeds size limit")

// Eviction reasons reported to observers.
const (
	ReasonExpired = "expired"
	ReasonSize    = "size"
)

// Observer receives cache activity. Implementations must be safe for
// concurrent use and must not call back into the cache.
type Observer interface {
	Hit(cache string)
	Miss(cache string)
	Evicted(cache, reason string)
	Resized(cache string, entries, bytes int)
}

// Options configures a Cache. Zero values select the defaults.
type Options struct {
	Name       string
	TTL        time.Duration
	MaxEntries int
	MaxBytes   int
	Clock      func() time.Time
	Observer   Observer
}

// Stats is a point-in-time view of cache occupancy and activity.
type Stats struct {
	Name        string `json:"name"`
	EntryCount  int    `json:"entry_count"`
	TotalSize   int    `json:"total_size"`
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	Evictions   uint64 `json:"evictions"`
	Expirations uint64 `json:"expirations"`
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type entry[V any] struct {
	key     string
	value   V
	size    int
	created time.Time
}

// Cache maps canonical keys to values. Entries expire ttl after insertion and
// the oldest-inserted entries are evicted first when a bound is exceeded.
// Every method is atomic with respect to the cache's own bookkeeping.
type Cache[V any] struct {
	mu sync.Mutex

	name       string
	ttl        time.Duration
	maxEntries int
	maxBytes   int
	now        func() time.Time
	observer   Observer

	entries   map[string]*list.Element
	order     *list.List // front is oldest
	totalSize int

	hits        uint64
	misses      uint64
	evictions   uint64
	expirations uint64
}

// New creates an empty cache.
func New[V any](opts Options) *Cache[V] {
	c := &Cache[V]{
		name:       opts.Name,
		ttl:        opts.TTL,
		maxEntries: opts.MaxEntries,
		maxBytes:   opts.MaxBytes,
		now:        opts.Clock,
		observer:   opts.Observer,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
	}
	if c.name == "" {
		c.name = "query"
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.maxEntries <= 0 {
		c.maxEntries = DefaultMaxEntries
	}
	if c.maxBytes <= 0 {
		c.maxBytes = DefaultMaxBytes
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Key builds the canonical key of an operation and its parameters. Callers
// must pass parameters in canonical form (sorted sets, fixed field order) so
// equal requests produce equal keys.
func Key(operation string, params any) (string, error) {
	b, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to serialize cache key params: %w", err)
	}
	return operation + ":" + string(b), nil
}

// Name returns the cache name used in stats and metrics.
func (c *Cache[V]) Name() string { return c.name }

// TTL returns the entry lifetime.
func (c *Cache[V]) TTL() time.Duration { return c.ttl }

// Get returns the value stored under key. An expired entry is removed and
// reported as a miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.entries[key]
	if !ok {
		c.miss()
		return zero, false
	}
	e := el.Value.(*entry[V])
	if c.expired(e) {
		c.remove(el, ReasonExpired)
		c.miss()
		c.resized()
		return zero, false
	}
	c.hits++
	if c.observer != nil {
		c.observer.Hit(c.name)
	}
	return e.value, true
}

// Set stores value under key, sizing it by its JSON encoding.
func (c *Cache[V]) Set(key string, value V) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to size cache entry: %w", err)
	}
	return c.SetSized(key, value, len(b))
}

// SetSized stores value under key with a caller-supplied size estimate.
// Replacing an existing key counts as a fresh insertion. When a bound is
// exceeded, expired entries are purged first, then the oldest entries are
// evicted until both bounds hold.
func (c *Cache[V]) SetSized(key string, value V, size int) error {
	if size > c.maxBytes {
		return ErrEntryTooLarge
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.remove(el, "")
	}
	e := &entry[V]{key: key, value: value, size: size, created: c.now()}
	c.entries[key] = c.order.PushBack(e)
	c.totalSize += size

	if c.overLimit() {
		c.purgeExpired()
	}
	for c.overLimit() {
		c.remove(c.order.Front(), ReasonSize)
	}
	c.resized()
	return nil
}

// Clear drops every entry. Activity counters are kept.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
	c.totalSize = 0
	c.resized()
}

// Stats returns current occupancy and counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Name:        c.name,
		EntryCount:  len(c.entries),
		TotalSize:   c.totalSize,
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
	}
}

func (c *Cache[V]) expired(e *entry[V]) bool {
	return c.now().Sub(e.created) >= c.ttl
}

func (c *Cache[V]) overLimit() bool {
	return len(c.entries) > c.maxEntries || c.totalSize > c.maxBytes
}

// purgeExpired walks from the oldest entry. Insertion order is creation
// order, so the walk stops at the first live entry.
func (c *Cache[V]) purgeExpired() {
	for el := c.order.Front(); el != nil; {
		if !c.expired(el.Value.(*entry[V])) {
			return
		}
		next := el.Next()
		c.remove(el, ReasonExpired)
		el = next
	}
}

// remove unlinks an entry. An empty reason marks a replacement or explicit
// delete, which is not counted as an eviction.
func (c *Cache[V]) remove(el *list.Element, reason string) {
	e := c.order.Remove(el).(*entry[V])
	delete(c.entries, e.key)
	c.totalSize -= e.size

	switch reason {
	case ReasonExpired:
		c.expirations++
	case ReasonSize:
		c.evictions++
	default:
		return
	}
	if c.observer != nil {
		c.observer.Evicted(c.name, reason)
	}
}

func (c *Cache[V]) miss() {
	c.misses++
	if c.observer != nil {
		c.observer.Miss(c.name)
	}
}

func (c *Cache[V]) resized() {
	if c.observer != nil {
		c.observer.Resized(c.name, len(c.entries), c.totalSize)
	}
}
