package kafkaconsumer

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// tsDedupe remembers the newest event time applied per dataset.
type tsDedupe struct {
	mu  sync.Mutex
	lru *lru.Cache[string, time.Time]
}

func newTSDedupe(size int) *tsDedupe {
	if size <= 0 {
		size = 256
	}
	c, _ := lru.New[string, time.Time](size)
	return &tsDedupe{lru: c}
}

// returns true if ts is newer than the last applied event for key
func (d *tsDedupe) shouldApply(key string, ts time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(key); ok && !ts.After(last) {
		return false
	}
	return true
}

func (d *tsDedupe) applied(key string, ts time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(key); ok && !ts.After(last) {
		return
	}
	d.lru.Add(key, ts)
}
