package store

import (
	"sync"

	"github.com/mmcdole/stork/internal/domain"
)

// kindCache memoizes per-kind existence and counts between refreshes.
type kindCache struct {
	mu     sync.RWMutex
	exists map[domain.Kind]bool
	counts map[domain.Kind]int
}

func newKindCache() *kindCache {
	return &kindCache{
		exists: make(map[domain.Kind]bool),
		counts: make(map[domain.Kind]int),
	}
}

func (c *kindCache) getExists(kind domain.Kind) (bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.exists[kind]
	return v, ok
}

func (c *kindCache) setExists(kind domain.Kind, v bool) {
	c.mu.Lock()
	c.exists[kind] = v
	c.mu.Unlock()
}

func (c *kindCache) getCount(kind domain.Kind) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.counts[kind]
	return v, ok
}

func (c *kindCache) setCount(kind domain.Kind, v int) {
	c.mu.Lock()
	c.counts[kind] = v
	c.mu.Unlock()
}

// invalidate forgets everything known about kind
func (c *kindCache) invalidate(kind domain.Kind) {
	c.mu.Lock()
	delete(c.exists, kind)
	delete(c.counts, kind)
	c.mu.Unlock()
}

func (c *kindCache) reset() {
	c.mu.Lock()
	c.exists = make(map[domain.Kind]bool)
	c.counts = make(map[domain.Kind]int)
	c.mu.Unlock()
}
