// Package scores keeps recently played sequences in memory so tools
// that run later (engrave, replays) can refer to them by id instead of
// resending the payload.
package scores

import (
	"bytes"
	"slices"
	"sync"
)

// Cache is a bounded store of raw score payloads keyed by id. Once
// full, the oldest-inserted entries are evicted first. Re-putting an
// existing id refreshes it to most recent.
//
// All methods are safe for concurrent use. Payloads are copied on the
// way in and out, so callers can never mutate cached bytes.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string][]byte
	order    []string // insertion order, oldest first
	latest   string
}

// NewCache returns a Cache holding at most capacity entries. A
// capacity below one is treated as one.
func NewCache(capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string][]byte),
	}
}

// Put records value under id as the most recent score, evicting the
// oldest entries as needed to stay within capacity.
func (c *Cache) Put(id string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[id]; exists {
		c.order = slices.DeleteFunc(c.order, func(s string) bool { return s == id })
	}
	c.entries[id] = bytes.Clone(value)
	c.order = append(c.order, id)
	c.latest = id

	for len(c.order) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// Get returns a copy of the score stored under id.
func (c *Cache) Get(id string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	value, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	return bytes.Clone(value), true
}

// Latest returns a copy of the most recently put score and its id.
func (c *Cache) Latest() (string, []byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	value, ok := c.entries[c.latest]
	if !ok {
		return "", nil, false
	}
	return c.latest, bytes.Clone(value), true
}

// Len reports how many scores are cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every cached score.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string][]byte)
	c.order = nil
	c.latest = ""
}
