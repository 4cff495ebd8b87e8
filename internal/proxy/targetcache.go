package proxy

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// targetCacheEntry is a doubly-linked list node for the LRU cache.
type targetCacheEntry struct {
	key    uint64
	target *Target
	prev   *targetCacheEntry
	next   *targetCacheEntry
}

// targetCache provides bounded LRU caching of parsed Target values, keyed
// by an xxhash of the raw target string. Hot reverse-proxy deployments
// resolve the same handful of target strings on every request; caching
// avoids re-parsing the URL each time.
type targetCache struct {
	mu      sync.Mutex
	entries map[uint64]*targetCacheEntry
	head    *targetCacheEntry
	tail    *targetCacheEntry
	maxSize int
}

// newTargetCache creates an LRU cache with the given max size. A maxSize
// of 0 disables caching (get always misses, put is a no-op).
func newTargetCache(maxSize int) *targetCache {
	return &targetCache{
		entries: make(map[uint64]*targetCacheEntry, maxSize),
		maxSize: maxSize,
	}
}

func hashTarget(raw string) uint64 {
	return xxhash.Sum64String(raw)
}

func (c *targetCache) get(raw string) (*Target, bool) {
	if c.maxSize == 0 {
		return nil, false
	}
	key := hashTarget(raw)
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToHeadLocked(e)
	return e.target, true
}

func (c *targetCache) put(raw string, t *Target) {
	if c.maxSize == 0 {
		return
	}
	key := hashTarget(raw)
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.target = t
		c.moveToHeadLocked(e)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictTailLocked()
	}

	e := &targetCacheEntry{key: key, target: t}
	c.entries[key] = e
	c.pushHeadLocked(e)
}

func (c *targetCache) moveToHeadLocked(e *targetCacheEntry) {
	if c.head == e {
		return
	}
	c.unlinkLocked(e)
	c.pushHeadLocked(e)
}

func (c *targetCache) pushHeadLocked(e *targetCacheEntry) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *targetCache) unlinkLocked(e *targetCacheEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}

func (c *targetCache) evictTailLocked() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.unlinkLocked(c.tail)
}

// defaultTargetCacheSize bounds the shared cache used by Resolve.
const defaultTargetCacheSize = 256

var sharedTargetCache = newTargetCache(defaultTargetCacheSize)

// Resolve returns the TargetSpec's Target, parsing and caching Raw on
// first use. Safe for concurrent use.
func (s *TargetSpec) Resolve() (*Target, error) {
	if s.Resolved != nil {
		return s.Resolved, nil
	}
	if s.Raw == "" {
		return nil, nil
	}
	if t, ok := sharedTargetCache.get(s.Raw); ok {
		s.Resolved = t
		return t, nil
	}
	t, err := ParseTarget(s.Raw)
	if err != nil {
		return nil, err
	}
	sharedTargetCache.put(s.Raw, t)
	s.Resolved = t
	return t, nil
}
