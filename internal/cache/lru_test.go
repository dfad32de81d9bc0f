package cache

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func TestLRUCacheExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](3, 5*time.Minute).WithClock(clock.now)

	c.Set("EUR", "rates")
	if v, ok := c.Get("EUR"); !ok || v != "rates" {
		t.Fatalf("expected hit, got %q %v", v, ok)
	}

	clock.t = clock.t.Add(5*time.Minute + time.Second)
	if _, ok := c.Get("EUR"); ok {
		t.Fatal("expected entry to expire")
	}
	if c.Size() != 0 {
		t.Fatalf("expired entry should be dropped on read, size=%d", c.Size())
	}
}

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache[string](3, time.Hour)

	c.Set("key1", "value1")
	c.Set("key2", "value2")
	c.Set("key3", "value3")
	c.Get("key1")
	c.Set("key4", "value4") // evicts key2, the least recently used

	if _, found := c.Get("key2"); found {
		t.Error("key2 should have been evicted")
	}
	for _, k := range []string{"key1", "key3", "key4"} {
		if _, found := c.Get(k); !found {
			t.Errorf("%s should still be cached", k)
		}
	}
	c.Delete("key1")
	if c.Size() != 2 {
		t.Errorf("expected size 2 after delete, got %d", c.Size())
	}
}

func TestManagerCleansRegisteredCaches(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	a := NewLRUCache[int](10, time.Minute).WithClock(clock.now)
	b := NewLRUCache[int](10, time.Hour).WithClock(clock.now)
	a.Set("x", 1)
	a.Set("y", 2)
	b.Set("z", 3)

	m := NewManager(nil)
	m.Register(a)
	m.Register(b)

	clock.t = clock.t.Add(2 * time.Minute)
	if n := m.CleanOnce(); n != 2 {
		t.Fatalf("expected 2 removed, got %d", n)
	}
	if b.Size() != 1 {
		t.Fatal("unexpired entry removed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Run(ctx, time.Millisecond); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
