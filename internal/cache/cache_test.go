package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type countingRecorder struct {
	mu     sync.Mutex
	hits   int
	misses int
}

func (r *countingRecorder) ObserveCacheLookup(_ string, hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hit {
		r.hits++
		return
	}
	r.misses++
}

func TestCacheRoundTrip(t *testing.T) {
	c := New[string, int](Config{Name: "access", Capacity: 4, TTL: time.Minute}, nil)

	c.Add("key", 42)
	value, ok := c.Get("key")
	if !ok || value != 42 {
		t.Fatalf("expected hit with 42, got %d ok=%v", value, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss for unknown key")
	}
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	c := New[string, string](Config{Name: "access", Capacity: 4, TTL: 30 * time.Millisecond}, nil)

	c.Add("token", "identity")
	if _, ok := c.Get("token"); !ok {
		t.Fatal("expected hit before ttl")
	}

	time.Sleep(80 * time.Millisecond)
	if _, ok := c.Get("token"); ok {
		t.Fatal("expected miss after ttl elapsed")
	}
}

func TestCacheNeverExceedsCapacity(t *testing.T) {
	const capacity = 8
	c := New[int, int](Config{Name: "connections", Capacity: capacity}, nil)

	for i := 0; i < capacity*5; i++ {
		c.Add(i, i)
		if c.Len() > capacity {
			t.Fatalf("resident count %d exceeds capacity %d after %d inserts", c.Len(), capacity, i+1)
		}
	}
	if _, ok := c.Get(0); ok {
		t.Fatal("expected oldest entry to be evicted")
	}
	if value, ok := c.Get(capacity*5 - 1); !ok || value != capacity*5-1 {
		t.Fatalf("expected newest entry to be resident, got %d ok=%v", value, ok)
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string, int](Config{Capacity: 2}, nil)

	c.Add("a", 1)
	c.Add("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a to be resident")
	}
	c.Add("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("expected b to be evicted as least recently used")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected recently read a to survive eviction")
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := New[ConnectionKey, string](Config{Capacity: 64, TTL: time.Minute}, nil)

	var wg sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := ConnectionKey{TenantID: fmt.Sprintf("tenant-%d", worker), Credential: fmt.Sprintf("cred-%d", i%16)}
				c.Add(key, key.Credential)
				c.Get(key)
			}
		}(worker)
	}
	wg.Wait()

	if c.Len() > 64 {
		t.Fatalf("expected at most 64 entries, got %d", c.Len())
	}
}

func TestCacheRecordsLookups(t *testing.T) {
	recorder := &countingRecorder{}
	c := New[string, int](Config{Name: "definitions", Capacity: 2}, recorder)

	c.Get("a")
	c.Add("a", 1)
	c.Get("a")
	c.Get("a")

	if recorder.hits != 2 || recorder.misses != 1 {
		t.Fatalf("expected 2 hits and 1 miss, got %d hits %d misses", recorder.hits, recorder.misses)
	}
	if c.Name() != "definitions" {
		t.Fatalf("unexpected cache name %q", c.Name())
	}
}

func TestNewFilterKey(t *testing.T) {
	first := NewFilterKey(map[string]string{"platform": "stripe", "active": "true"})
	second := NewFilterKey(map[string]string{"active": "true", "platform": "stripe"})
	if first != second {
		t.Fatalf("expected order independent keys, got %q and %q", first, second)
	}
	if NewFilterKey(nil) == NewFilterKey(map[string]string{}) {
		t.Fatal("expected nil and empty filters to produce different keys")
	}
	if first == NewFilterKey(map[string]string{"platform": "shopify", "active": "true"}) {
		t.Fatal("expected different filters to produce different keys")
	}
}
