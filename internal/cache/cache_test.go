package cache

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

type recordingObserver struct {
	mu        sync.Mutex
	hits      int
	misses    int
	evictions map[string]int
	entries   int
	bytes     int
}

func (o *recordingObserver) Hit(string) {
	o.mu.Lock()
	o.hits++
	o.mu.Unlock()
}

func (o *recordingObserver) Miss(string) {
	o.mu.Lock()
	o.misses++
	o.mu.Unlock()
}

func (o *recordingObserver) Evicted(_, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.evictions == nil {
		o.evictions = map[string]int{}
	}
	o.evictions[reason]++
}

func (o *recordingObserver) Resized(_ string, entries, bytes int) {
	o.mu.Lock()
	o.entries, o.bytes = entries, bytes
	o.mu.Unlock()
}

func TestKey(t *testing.T) {
	k1, err := Key("analyze", map[string]any{"group_by": []string{"a", "b"}, "limit": 10})
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	k2, _ := Key("analyze", map[string]any{"limit": 10, "group_by": []string{"a", "b"}})
	if k1 != k2 {
		t.Errorf("equal params produced different keys: %s vs %s", k1, k2)
	}
	k3, _ := Key("query", map[string]any{"limit": 10, "group_by": []string{"a", "b"}})
	if k1 == k3 {
		t.Error("different operations must produce different keys")
	}
	if _, err := Key("x", func() {}); err == nil {
		t.Error("expected error for unserializable params")
	}
}

func TestCache_GetSet(t *testing.T) {
	c := New[string](Options{})
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss on empty cache")
	}
	if err := c.Set("k", "value"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	v, ok := c.Get("k")
	if !ok || v != "value" {
		t.Errorf("Get = %q, %v", v, ok)
	}
	st := c.Stats()
	if st.EntryCount != 1 || st.TotalSize != len(`"value"`) {
		t.Errorf("Stats = %+v", st)
	}
	if st.Hits != 1 || st.Misses != 1 || st.HitRate() != 0.5 {
		t.Errorf("counters = %+v", st)
	}
}

func TestCache_TTL(t *testing.T) {
	clock := newFakeClock()
	c := New[int](Options{TTL: time.Minute, Clock: clock.Now})

	_ = c.Set("k", 1)
	clock.Advance(59 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry expired early")
	}
	clock.Advance(time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry should be expired at exactly ttl")
	}
	st := c.Stats()
	if st.EntryCount != 0 || st.TotalSize != 0 {
		t.Errorf("expired entry not removed: %+v", st)
	}
	if st.Expirations != 1 {
		t.Errorf("expirations = %d, want 1", st.Expirations)
	}
}

func TestCache_TTLFromInsertionNotAccess(t *testing.T) {
	clock := newFakeClock()
	c := New[int](Options{TTL: time.Minute, Clock: clock.Now})
	_ = c.Set("k", 1)
	for range 5 {
		clock.Advance(15 * time.Second)
		c.Get("k")
	}
	if _, ok := c.Get("k"); ok {
		t.Error("reads must not extend lifetime")
	}
}

func TestCache_EvictsOldestByCount(t *testing.T) {
	c := New[int](Options{MaxEntries: 3})
	for i := range 5 {
		_ = c.Set(fmt.Sprintf("k%d", i), i)
	}
	for _, k := range []string{"k0", "k1"} {
		if _, ok := c.Get(k); ok {
			t.Errorf("%s should have been evicted", k)
		}
	}
	for _, k := range []string{"k2", "k3", "k4"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s should be present", k)
		}
	}
	if st := c.Stats(); st.EntryCount != 3 || st.Evictions != 2 {
		t.Errorf("Stats = %+v", st)
	}
}

func TestCache_EvictsOldestByBytes(t *testing.T) {
	c := New[string](Options{MaxBytes: 25})
	_ = c.SetSized("a", "a", 10)
	_ = c.SetSized("b", "b", 10)
	_ = c.SetSized("c", "c", 10)

	if _, ok := c.Get("a"); ok {
		t.Error("oldest entry should be evicted")
	}
	st := c.Stats()
	if st.TotalSize > 25 || st.EntryCount != 2 {
		t.Errorf("bounds violated: %+v", st)
	}
}

func TestCache_PurgesExpiredBeforeEvictingLive(t *testing.T) {
	clock := newFakeClock()
	c := New[int](Options{TTL: time.Minute, MaxEntries: 2, Clock: clock.Now})
	obs := &recordingObserver{}
	c.observer = obs

	_ = c.Set("old", 1)
	clock.Advance(2 * time.Minute)
	_ = c.Set("live", 2)
	_ = c.Set("new", 3)

	if _, ok := c.Get("live"); !ok {
		t.Error("live entry evicted while an expired one existed")
	}
	if obs.evictions[ReasonExpired] != 1 || obs.evictions[ReasonSize] != 0 {
		t.Errorf("evictions = %v", obs.evictions)
	}
}

func TestCache_ReplaceCountsAsNewInsertion(t *testing.T) {
	c := New[int](Options{MaxEntries: 2})
	_ = c.Set("a", 1)
	_ = c.Set("b", 2)
	_ = c.Set("a", 10)
	_ = c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should be the oldest after a was replaced")
	}
	if v, ok := c.Get("a"); !ok || v != 10 {
		t.Errorf("a = %v, %v", v, ok)
	}
	if st := c.Stats(); st.Evictions != 1 {
		t.Errorf("replacement must not count as eviction: %+v", st)
	}
}

func TestCache_EntryTooLarge(t *testing.T) {
	c := New[string](Options{MaxBytes: 4})
	err := c.Set("k", "far too long")
	if !errors.Is(err, ErrEntryTooLarge) {
		t.Fatalf("Set error = %v, want ErrEntryTooLarge", err)
	}
	if c.Stats().EntryCount != 0 {
		t.Error("oversized entry was stored")
	}
}

func TestCache_Clear(t *testing.T) {
	obs := &recordingObserver{}
	c := New[int](Options{Observer: obs})
	_ = c.Set("a", 1)
	_ = c.Set("b", 2)
	c.Clear()
	if st := c.Stats(); st.EntryCount != 0 || st.TotalSize != 0 {
		t.Errorf("Clear left %+v", st)
	}
	if obs.entries != 0 || obs.bytes != 0 {
		t.Errorf("observer not told about clear: %d entries %d bytes", obs.entries, obs.bytes)
	}
	if _, ok := c.Get("a"); ok {
		t.Error("entry survived Clear")
	}
}

func TestCache_Concurrent(t *testing.T) {
	c := New[int](Options{MaxEntries: 10})
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := range 200 {
				key := fmt.Sprintf("k%d", (n*j)%25)
				if _, ok := c.Get(key); !ok {
					_ = c.Set(key, j)
				}
			}
		}(i)
	}
	wg.Wait()
	if st := c.Stats(); st.EntryCount > 10 {
		t.Errorf("entry bound violated: %+v", st)
	}
}

func TestNew_Defaults(t *testing.T) {
	c := New[int](Options{})
	if c.Name() != "query" || c.TTL() != DefaultTTL {
		t.Errorf("defaults = %s %v", c.Name(), c.TTL())
	}
	if c.maxEntries != DefaultMaxEntries || c.maxBytes != DefaultMaxBytes {
		t.Errorf("limits = %d %d", c.maxEntries, c.maxBytes)
	}
}
