package cache

import (
	"sync"
	"time"
)

// TTL is a generic in-memory map whose entries expire.
type TTL[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]
}

type entry[V any] struct {
	value V
	exp   time.Time
}

func NewTTL[V any]() *TTL[V] {
	return &TTL[V]{
		entries: make(map[string]entry[V]),
	}
}

func (c *TTL[V]) Set(key string, value V, ttl time.Duration) {
	e := entry[V]{
		value: value,
		exp:   time.Now().Add(ttl),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = e
}

// Get returns the value stored under key, or false if it is absent or expired.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var val V

	e, ok := c.entries[key]
	if !ok {
		return val, false
	}

	// Present and unexpired
	if time.Now().Before(e.exp) {
		return e.value, true
	}

	// Expired
	delete(c.entries, key)
	return val, false
}

// GetOrSet returns the unexpired value under key. If there is none it stores
// the result of create and returns that. Either way the entry's expiry is
// pushed out to ttl from now.
func (c *TTL[V]) GetOrSet(key string, ttl time.Duration, create func() V) V {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	e, ok := c.entries[key]
	if !ok || !now.Before(e.exp) {
		e.value = create()
	}
	e.exp = now.Add(ttl)
	c.entries[key] = e

	return e.value
}

func (c *TTL[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Clean removes expired entries.
func (c *TTL[V]) Clean() {
	c.mu.Lock()
	defer c.mu.Unlock()

	toRemove := []string{}

	for k, e := range c.entries {
		if !time.Now().Before(e.exp) {
			toRemove = append(toRemove, k)
		}
	}

	for _, k := range toRemove {
		delete(c.entries, k)
	}
}
