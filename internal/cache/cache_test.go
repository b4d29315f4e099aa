package cache

import (
	"sort"
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(ttl time.Duration) (*Cache[string, int], *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New[string, int](ttl, WithClock(clock.now)), clock
}

func TestContainsUntilExpiry(t *testing.T) {
	c, clock := newTestCache(10 * time.Second)

	c.Set("a", 1)

	clock.advance(10*time.Second - time.Nanosecond)
	if !c.Contains("a") {
		t.Fatalf("key should be present just before its expiry")
	}

	clock.advance(time.Nanosecond)
	if c.Contains("a") {
		t.Fatalf("key should be absent at its expiry instant")
	}

	if _, ok := c.items["a"]; ok {
		t.Fatalf("stale entry was not evicted by Contains")
	}
}

func TestGetEvictsStaleEntry(t *testing.T) {
	c, clock := newTestCache(time.Minute)

	c.Set("a", 42)
	v, ok := c.Get("a")
	if !ok || v != 42 {
		t.Fatalf("Get returned %d, %t; expected 42, true", v, ok)
	}

	clock.advance(time.Minute)
	v, ok = c.Get("a")
	if ok || v != 0 {
		t.Fatalf("Get returned %d, %t for an expired key", v, ok)
	}
	if len(c.items) != 0 {
		t.Fatalf("stale entry was not evicted by Get")
	}
}

func TestSetWithTTLOverridesDefault(t *testing.T) {
	c, clock := newTestCache(time.Hour)

	c.SetWithTTL("short", 1, time.Second)
	c.Set("long", 2)

	clock.advance(2 * time.Second)
	if c.Contains("short") {
		t.Errorf("custom ttl was not honoured")
	}
	if !c.Contains("long") {
		t.Errorf("default ttl entry expired early")
	}
}

func TestReinsertReplacesValueAndExpiry(t *testing.T) {
	c, clock := newTestCache(time.Hour)

	c.SetWithTTL("a", 1, time.Hour)
	clock.advance(time.Minute)
	c.SetWithTTL("a", 2, time.Second)

	v, ok := c.Get("a")
	if !ok || v != 2 {
		t.Fatalf("value was not replaced: got %d, %t", v, ok)
	}

	clock.advance(time.Second)
	if c.Contains("a") {
		t.Fatalf("expiry was merged with the previous ttl instead of replaced")
	}
}

func TestSweep(t *testing.T) {
	c, clock := newTestCache(time.Minute)

	c.SetWithTTL("a", 1, time.Second)
	c.SetWithTTL("b", 2, 2*time.Second)
	c.SetWithTTL("c", 3, time.Hour)

	clock.advance(2 * time.Second)
	if n := c.Sweep(); n != 2 {
		t.Fatalf("Sweep evicted %d entries, expected 2", n)
	}

	now := clock.now()
	for k, e := range c.items {
		if !now.Before(e.expiresAt) {
			t.Errorf("expired entry %q survived the sweep", k)
		}
	}
	if _, ok := c.items["c"]; !ok {
		t.Errorf("unexpired entry was swept")
	}
}

func TestLenAndKeysIgnoreExpired(t *testing.T) {
	c, clock := newTestCache(time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.SetWithTTL("c", 3, time.Second)

	if n := c.Len(); n != 3 {
		t.Fatalf("Len = %d, expected 3", n)
	}

	clock.advance(time.Second)
	if n := c.Len(); n != 2 {
		t.Fatalf("Len = %d after expiry, expected 2", n)
	}

	keys := c.Keys()
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("Keys = %v, expected [a b]", keys)
	}
}

func TestDelete(t *testing.T) {
	c, _ := newTestCache(time.Minute)

	c.Set("a", 1)
	if !c.Delete("a") {
		t.Errorf("Delete of a stored key returned false")
	}
	if c.Delete("a") {
		t.Errorf("Delete of a missing key returned true")
	}
	if c.Contains("a") {
		t.Errorf("deleted key is still present")
	}
}

func TestDefaultClock(t *testing.T) {
	c := New[int, struct{}](time.Hour)
	c.Set(1, struct{}{})
	if !c.Contains(1) {
		t.Fatalf("entry missing with the wall clock")
	}
	if c.DefaultTTL() != time.Hour {
		t.Fatalf("DefaultTTL = %s", c.DefaultTTL())
	}
}
