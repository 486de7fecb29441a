// Shelfwise - Library Recommendation and Reading Behavior Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

type lruEntry struct {
	key       string
	value     []byte
	prev      *lruEntry
	next      *lruEntry
	expiresAt time.Time
}

// LRU is a thread-safe least recently used cache with per-entry TTL.
// Get, Set and eviction are O(1); DeletePrefix walks every entry.
//
// Entries live in a doubly-linked list between two sentinels: head.next is
// the most recently used entry, tail.prev the least.
type LRU struct {
	mu sync.Mutex

	capacity int
	ttl      time.Duration
	now      func() time.Time

	items map[string]*lruEntry
	head  *lruEntry
	tail  *lruEntry

	hits   int64
	misses int64
}

// NewLRU creates an LRU holding at most capacity entries with default ttl.
func NewLRU(capacity int, ttl time.Duration) *LRU {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	c := &LRU{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		items:    make(map[string]*lruEntry, capacity),
		head:     &lruEntry{},
		tail:     &lruEntry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Get returns a copy of the cached value. Expired entries are removed lazily.
func (c *LRU) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false, nil
	}
	if c.now().After(entry.expiresAt) {
		c.removeEntry(entry)
		c.misses++
		return nil, false, nil
	}
	c.moveToFront(entry)
	c.hits++
	return append([]byte(nil), entry.value...), true, nil
}

// Set stores a copy of value, evicting the least recently used entry when full.
func (c *LRU) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(ttl)
	stored := append([]byte(nil), value...)
	if entry, ok := c.items[key]; ok {
		entry.value = stored
		entry.expiresAt = expiresAt
		c.moveToFront(entry)
		return nil
	}

	entry := &lruEntry{key: key, value: stored, expiresAt: expiresAt}
	c.addToFront(entry)
	c.items[key] = entry
	for len(c.items) > c.capacity {
		c.evictOldest()
	}
	return nil
}

// DeletePrefix removes all entries whose key starts with prefix.
func (c *LRU) DeletePrefix(_ context.Context, prefix string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.items {
		if strings.HasPrefix(key, prefix) {
			c.removeEntry(entry)
			removed++
		}
	}
	return removed, nil
}

// CleanupExpired removes expired entries and returns how many were removed.
func (c *LRU) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for entry := c.tail.prev; entry != c.head; {
		prev := entry.prev
		if now.After(entry.expiresAt) {
			c.removeEntry(entry)
			removed++
		}
		entry = prev
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns hit and miss counts and the current size.
func (c *LRU) Stats() (hits, misses int64, size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, len(c.items)
}

func (c *LRU) Backend() string { return "memory" }

func (c *LRU) Close() error { return nil }

// list operations; callers hold c.mu

func (c *LRU) addToFront(entry *lruEntry) {
	entry.prev = c.head
	entry.next = c.head.next
	c.head.next.prev = entry
	c.head.next = entry
}

func (c *LRU) moveToFront(entry *lruEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	c.addToFront(entry)
}

func (c *LRU) removeEntry(entry *lruEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	delete(c.items, entry.key)
}

func (c *LRU) evictOldest() {
	oldest := c.tail.prev
	if oldest == c.head {
		return
	}
	c.removeEntry(oldest)
}
