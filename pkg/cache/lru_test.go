package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func newClockedCache(maxSize int, ttl time.Duration) (*LRUCache, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache(maxSize, ttl)
	c.now = clk.Now
	return c, clk
}

func TestLRUCache(t *testing.T) {
	tests := []struct {
		name string
		fn   func(t *testing.T)
	}{
		{"SetAndGet", testSetAndGet},
		{"GetMiss", testGetMiss},
		{"GetExpired", testGetExpired},
		{"EvictsLeastRecentlyUsed", testEvictsLeastRecentlyUsed},
		{"InvalidateRemovesEntry", testInvalidateRemovesEntry},
		{"InvalidateAllClearsCache", testInvalidateAllClearsCache},
		{"SetUpdatesExisting", testSetUpdatesExisting},
		{"ConcurrentAccess", testConcurrentAccess},
		{"SetIfGeneration", testSetIfGeneration},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.fn)
	}
}

func testSetAndGet(t *testing.T) {
	c := NewLRUCache(10, 5*time.Second)
	c.Set("key1", []byte("value1"))

	got, ok := c.Get("key1")
	if !ok {
		t.Fatal("expected cache hit, got miss")
	}
	if string(got) != "value1" {
		t.Fatalf("expected %q, got %q", "value1", string(got))
	}
}

func testGetMiss(t *testing.T) {
	c := NewLRUCache(10, 5*time.Second)
	got, ok := c.Get("nonexistent")
	if ok {
		t.Fatal("expected cache miss, got hit")
	}
	if got != nil {
		t.Fatalf("expected nil value on miss, got %q", string(got))
	}
}

func testGetExpired(t *testing.T) {
	c, clk := newClockedCache(10, time.Minute)
	c.Set("key1", []byte("value1"))

	if _, ok := c.Get("key1"); !ok {
		t.Fatal("expected hit before expiry")
	}
	clk.Advance(2 * time.Minute)
	if _, ok := c.Get("key1"); ok {
		t.Fatal("expected miss after expiry")
	}
	if c.Size() != 0 {
		t.Fatalf("expected expired entry evicted, size %d", c.Size())
	}
}

func testEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache(2, time.Minute)
	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))

	// Touch a so b becomes least recently used.
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected hit for a")
	}
	c.Set("c", []byte("3"))

	if _, ok := c.Get("b"); ok {
		t.Fatal("expected b evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a retained")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatal("expected c retained")
	}
}

func testInvalidateRemovesEntry(t *testing.T) {
	c := NewLRUCache(10, time.Minute)
	c.Set("key1", []byte("v"))
	c.Invalidate("key1")
	if _, ok := c.Get("key1"); ok {
		t.Fatal("expected miss after invalidate")
	}
	c.Invalidate("missing")
}

func testInvalidateAllClearsCache(t *testing.T) {
	c := NewLRUCache(10, time.Minute)
	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("k%d", i), []byte("v"))
	}
	c.InvalidateAll()
	if c.Size() != 0 {
		t.Fatalf("expected empty cache, got %d", c.Size())
	}
	c.Set("after", []byte("v"))
	if _, ok := c.Get("after"); !ok {
		t.Fatal("expected cache usable after InvalidateAll")
	}
}

func testSetUpdatesExisting(t *testing.T) {
	c := NewLRUCache(10, time.Minute)
	c.Set("key1", []byte("old"))
	c.Set("key1", []byte("new"))
	got, _ := c.Get("key1")
	if string(got) != "new" {
		t.Fatalf("expected %q, got %q", "new", string(got))
	}
	if c.Size() != 1 {
		t.Fatalf("expected size 1, got %d", c.Size())
	}
}

func testConcurrentAccess(t *testing.T) {
	c := NewLRUCache(50, time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", (n+j)%80)
				c.Set(key, []byte("v"))
				c.Get(key)
				if j%25 == 0 {
					c.InvalidateAll()
				}
			}
		}(i)
	}
	wg.Wait()
	if c.Size() > 50 {
		t.Fatalf("size %d exceeds max", c.Size())
	}
}

func testSetIfGeneration(t *testing.T) {
	c := NewLRUCache(10, time.Minute)
	gen := c.Generation()
	if !c.SetIfGeneration("a", []byte("1"), gen) {
		t.Fatal("expected store with current generation")
	}

	c.InvalidateAll()
	if c.Generation() == gen {
		t.Fatal("expected InvalidateAll to advance the generation")
	}
	if c.SetIfGeneration("b", []byte("2"), gen) {
		t.Fatal("expected store with stale generation to be refused")
	}
	if _, ok := c.Get("b"); ok {
		t.Fatal("stale value must not be cached")
	}
}
