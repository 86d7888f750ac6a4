package cache

import (
	"context"
	"sync"
	"time"
)

// LRU is an in-process Backend bounded by entry count, evicting the least
// recently used entry first.
type LRU struct {
	mu         sync.Mutex
	entries    map[string]*node
	maxEntries int
	head, tail *node
	generation int64
	evictions  int64
}

// node is an element of the recency list, most recent at head.
type node struct {
	key       string
	value     []byte
	expiresAt time.Time
	prev      *node
	next      *node
}

// NewLRU returns an LRU backend holding at most maxEntries entries.
func NewLRU(maxEntries int) *LRU {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &LRU{entries: make(map[string]*node), maxEntries: maxEntries}
}

func (c *LRU) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !n.expiresAt.IsZero() && time.Now().After(n.expiresAt) {
		c.unlink(n)
		return nil, false, nil
	}
	c.unlink(n)
	c.pushFront(n)
	return n.value, true, nil
}

func (c *LRU) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	if n, ok := c.entries[key]; ok {
		n.value, n.expiresAt = value, expiresAt
		c.unlink(n)
		c.pushFront(n)
		return nil
	}
	for len(c.entries) >= c.maxEntries && c.tail != nil {
		c.unlink(c.tail)
		c.evictions++
	}
	c.pushFront(&node{key: key, value: value, expiresAt: expiresAt})
	return nil
}

func (c *LRU) Generation(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation, nil
}

func (c *LRU) Bump(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	return c.generation, nil
}

func (c *LRU) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*node)
	c.head, c.tail = nil, nil
	c.evictions = 0
	return nil
}

func (c *LRU) Close() error { return nil }

// Len returns the number of entries, expired ones included.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Evictions returns how many entries were dropped to make room.
func (c *LRU) Evictions() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictions
}

func (c *LRU) pushFront(n *node) {
	n.prev, n.next = nil, c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
	c.entries[n.key] = n
}

func (c *LRU) unlink(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}
	n.prev, n.next = nil, nil
	delete(c.entries, n.key)
}
