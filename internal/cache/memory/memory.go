// Package memory is the in-process result cache: a bounded LRU whose
// entries expire.
package memory

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mohammed-shakir/food-facility-search/internal/core/observability"
)

type entry struct {
	val []byte
	exp time.Time
}

type Cache struct {
	lru *expirable.LRU[string, entry]
	now func() time.Time
}

// New bounds the cache to size entries; maxTTL caps every entry's lifetime.
func New(size int, maxTTL time.Duration) *Cache {
	if size <= 0 {
		size = 4096
	}
	return &Cache{
		lru: expirable.NewLRU[string, entry](size, nil, maxTTL),
		now: time.Now,
	}
}

func (c *Cache) Name() string { return "memory" }

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	defer func() { observability.ObserveCacheOp("get", nil, time.Since(start).Seconds()) }()

	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && !c.now().Before(e.exp) {
		c.lru.Remove(key)
		return nil, false, nil
	}
	return e.val, true, nil
}

// Set stores a copy of val. ttl <= 0 means the cache-wide maximum.
func (c *Cache) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	start := time.Now()
	e := entry{val: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = c.now().Add(ttl)
	}
	c.lru.Add(key, e)
	observability.ObserveCacheOp("set", nil, time.Since(start).Seconds())
	return nil
}

func (c *Cache) PurgePrefix(_ context.Context, prefix string) (int, error) {
	start := time.Now()
	n := 0
	for _, k := range c.lru.Keys() {
		if strings.HasPrefix(k, prefix) && c.lru.Remove(k) {
			n++
		}
	}
	observability.ObserveCacheOp("purge", nil, time.Since(start).Seconds())
	return n, nil
}

func (c *Cache) Len() int { return c.lru.Len() }
