// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/shelfwise/internal/config"
)

// fakeClock drives TTL expiry without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
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

func newTestLRU(capacity int, ttl time.Duration) (*LRU, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := NewLRU(capacity, ttl)
	c.now = clock.Now
	return c, clock
}

func mustSet(t *testing.T, c Cache, key, value string) {
	t.Helper()
	if err := c.Set(context.Background(), key, []byte(value), 0); err != nil {
		t.Fatalf("Set(%q): %v", key, err)
	}
}

func found(c Cache, key string) bool {
	_, ok, _ := c.Get(context.Background(), key)
	return ok
}

func TestLRU_BasicOperations(t *testing.T) {
	c, _ := newTestLRU(3, time.Minute)

	mustSet(t, c, "a", "1")
	mustSet(t, c, "b", "2")
	mustSet(t, c, "c", "3")

	for _, key := range []string{"a", "b", "c"} {
		if !found(c, key) {
			t.Errorf("Expected to find key %q", key)
		}
	}
	if c.Len() != 3 {
		t.Errorf("Expected len 3, got %d", c.Len())
	}

	val, ok, err := c.Get(context.Background(), "b")
	if err != nil || !ok || string(val) != "2" {
		t.Errorf("Get(b) = %q, %v, %v", val, ok, err)
	}
}

func TestLRU_Eviction(t *testing.T) {
	c, _ := newTestLRU(3, time.Minute)

	mustSet(t, c, "a", "1")
	mustSet(t, c, "b", "2")
	mustSet(t, c, "c", "3")

	// Touch 'a' so 'b' becomes least recently used
	found(c, "a")
	mustSet(t, c, "d", "4")

	if found(c, "b") {
		t.Error("Expected 'b' to be evicted")
	}
	for _, key := range []string{"a", "c", "d"} {
		if !found(c, key) {
			t.Errorf("Expected %q to be present", key)
		}
	}
}

func TestLRU_TTLExpiration(t *testing.T) {
	c, clock := newTestLRU(10, time.Minute)

	mustSet(t, c, "a", "1")
	if err := c.Set(context.Background(), "short", []byte("x"), 10*time.Second); err != nil {
		t.Fatal(err)
	}

	clock.Advance(30 * time.Second)
	if found(c, "short") {
		t.Error("Expected per-entry TTL to expire 'short'")
	}
	if !found(c, "a") {
		t.Error("Expected 'a' to survive within default TTL")
	}

	clock.Advance(time.Minute)
	if found(c, "a") {
		t.Error("Expected key 'a' to be expired")
	}
}

func TestLRU_UpdateExisting(t *testing.T) {
	c, _ := newTestLRU(3, time.Minute)

	mustSet(t, c, "a", "old")
	mustSet(t, c, "a", "new")

	if c.Len() != 1 {
		t.Errorf("Expected len 1 after update, got %d", c.Len())
	}
	if val, ok, _ := c.Get(context.Background(), "a"); !ok || string(val) != "new" {
		t.Errorf("Expected updated value, got %q", val)
	}
}

func TestLRU_ValuesAreCopied(t *testing.T) {
	c, _ := newTestLRU(3, time.Minute)
	buf := []byte("abc")
	if err := c.Set(context.Background(), "k", buf, 0); err != nil {
		t.Fatal(err)
	}
	buf[0] = 'z'

	val, _, _ := c.Get(context.Background(), "k")
	if string(val) != "abc" {
		t.Errorf("stored value aliased caller buffer: %q", val)
	}
	val[1] = 'z'
	again, _, _ := c.Get(context.Background(), "k")
	if string(again) != "abc" {
		t.Errorf("returned value aliased cache storage: %q", again)
	}
}

func TestLRU_DeletePrefix(t *testing.T) {
	c, _ := newTestLRU(10, time.Minute)

	mustSet(t, c, RecommendationKey("u1", "homepage", "hybrid", 10), "x")
	mustSet(t, c, RecommendationKey("u1", "detail", "item_cf", 5), "x")
	mustSet(t, c, RecommendationKey("u2", "homepage", "hybrid", 10), "x")

	removed, err := c.DeletePrefix(context.Background(), UserPrefix("u1"))
	if err != nil {
		t.Fatalf("DeletePrefix: %v", err)
	}
	if removed != 2 {
		t.Errorf("Expected 2 removed, got %d", removed)
	}
	if !found(c, RecommendationKey("u2", "homepage", "hybrid", 10)) {
		t.Error("Expected other user's entry to survive")
	}
}

func TestLRU_CleanupExpired(t *testing.T) {
	c, clock := newTestLRU(10, time.Minute)

	mustSet(t, c, "a", "1")
	mustSet(t, c, "b", "2")
	mustSet(t, c, "c", "3")
	clock.Advance(2 * time.Minute)
	mustSet(t, c, "d", "4")

	if removed := c.CleanupExpired(); removed != 3 {
		t.Errorf("Expected 3 expired items removed, got %d", removed)
	}
	if c.Len() != 1 {
		t.Errorf("Expected 1 item remaining, got %d", c.Len())
	}
	if !found(c, "d") {
		t.Error("Expected 'd' to still be present")
	}
}

func TestLRU_Stats(t *testing.T) {
	c, _ := newTestLRU(10, time.Minute)

	mustSet(t, c, "a", "1")
	found(c, "a")        // hit
	found(c, "a")        // hit
	found(c, "nonexist") // miss

	hits, misses, size := c.Stats()
	if hits != 2 {
		t.Errorf("Expected 2 hits, got %d", hits)
	}
	if misses != 1 {
		t.Errorf("Expected 1 miss, got %d", misses)
	}
	if size != 1 {
		t.Errorf("Expected size 1, got %d", size)
	}
}

func TestLRU_Concurrent(t *testing.T) {
	c := NewLRU(1000, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("rec:u%d:%d", id%5, j%26)
				_ = c.Set(ctx, key, []byte("v"), 0)
				_, _, _ = c.Get(ctx, key)
				if j%25 == 0 {
					_, _ = c.DeletePrefix(ctx, UserPrefix(fmt.Sprintf("u%d", id%5)))
				}
			}
		}(i)
	}
	wg.Wait()

	mustSet(t, c, "test", "ok")
	if !found(c, "test") {
		t.Error("Cache should still work after concurrent access")
	}
}

func TestKeys(t *testing.T) {
	if got := RecommendationKey("u1", "homepage", "hybrid", 10); got != "rec:u1:homepage:hybrid:10" {
		t.Errorf("RecommendationKey = %q", got)
	}
	if got := UserPrefix("u1"); got != "rec:u1:" {
		t.Errorf("UserPrefix = %q", got)
	}
}

func TestEscapeGlob(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"rec:u1:", "rec:u1:"},
		{"rec:a*b:", `rec:a\*b:`},
		{"rec:[x]?:", `rec:\[x\]\?:`},
		{`rec:a\b:`, `rec:a\\b:`},
	}
	for _, tt := range tests {
		if got := escapeGlob(tt.in); got != tt.want {
			t.Errorf("escapeGlob(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNew(t *testing.T) {
	c, err := New(&config.CacheConfig{Backend: "memory", MaxEntries: 5, TTL: time.Minute})
	if err != nil {
		t.Fatalf("New(memory): %v", err)
	}
	if c.Backend() != "memory" {
		t.Errorf("Backend = %q", c.Backend())
	}

	if _, err := New(&config.CacheConfig{Backend: "memcached"}); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := New(&config.CacheConfig{Backend: "redis"}); err == nil {
		t.Error("expected error for redis without address")
	}
}

func BenchmarkLRU_Set(b *testing.B) {
	c := NewLRU(10000, time.Minute)
	ctx := context.Background()
	val := []byte("payload")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Set(ctx, string(rune('a'+i%26)), val, 0)
	}
}

func BenchmarkLRU_Eviction(b *testing.B) {
	c := NewLRU(100, time.Minute)
	ctx := context.Background()
	val := []byte("payload")
	for i := 0; i < 100; i++ {
		_ = c.Set(ctx, string(rune(i)), val, 0)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Set(ctx, string(rune(1000+i)), val, 0)
	}
}
