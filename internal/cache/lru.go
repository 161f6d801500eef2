package cache

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const keySep = "\x00"

// LRU is an in-process Cache bounded by entry count with a per-entry TTL.
type LRU struct {
	lru *expirable.LRU[string, []byte]

	mu    sync.Mutex
	epoch uint64            // bumped by Clear
	gens  map[string]uint64 // bumped by DeleteNamespace
}

// NewLRU creates a cache holding at most size entries, each living for ttl.
// A zero ttl disables expiry.
func NewLRU(size int, ttl time.Duration) *LRU {
	if size <= 0 {
		size = 1
	}
	return &LRU{
		lru:  expirable.NewLRU[string, []byte](size, nil, ttl),
		gens: make(map[string]uint64),
	}
}

// Get returns the live entry for (namespace, key).
func (c *LRU) Get(_ context.Context, namespace, key string) ([]byte, bool, error) {
	v, ok := c.lru.Get(namespace + keySep + key)
	return v, ok, nil
}

// Set stores value for (namespace, key), evicting the oldest entry when full.
func (c *LRU) Set(_ context.Context, namespace, key string, value []byte) error {
	c.lru.Add(namespace+keySep+key, value)
	return nil
}

// Generation returns the current generation of namespace.
func (c *LRU) Generation(_ context.Context, namespace string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strconv.FormatUint(c.epoch, 10) + "." + strconv.FormatUint(c.gens[namespace], 10), nil
}

// DeleteNamespace removes every entry stored under namespace.
func (c *LRU) DeleteNamespace(_ context.Context, namespace string) error {
	c.mu.Lock()
	c.gens[namespace]++
	c.mu.Unlock()

	prefix := namespace + keySep
	for _, k := range c.lru.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.lru.Remove(k)
		}
	}
	return nil
}

// Clear removes every entry.
func (c *LRU) Clear(context.Context) error {
	c.mu.Lock()
	c.epoch++
	c.mu.Unlock()

	c.lru.Purge()
	return nil
}

// Len returns the number of live entries.
func (c *LRU) Len() int {
	return c.lru.Len()
}

var _ Cache = (*LRU)(nil)
