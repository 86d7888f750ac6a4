// Package cache caches results of read operations.
//
// Entries are keyed by model, action, arguments and a global write
// generation. A write bumps the generation, which orphans every entry
// stored before it; orphans age out through the backend's TTL or LRU
// eviction instead of being deleted one by one.
package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/satishbabariya/commerce-client/runtime/types"
)

func init() {
	gob.Register(types.Row{})
	gob.Register([]types.Row{})
	gob.Register(map[string]any{})
	gob.Register(types.AggregateResult{})
	gob.Register(decimal.Decimal{})
	gob.Register(time.Time{})
}

// Backend stores encoded entries and the write generation.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Generation returns the current write generation.
	Generation(ctx context.Context) (int64, error)
	// Bump advances the write generation.
	Bump(ctx context.Context) (int64, error)
	Clear(ctx context.Context) error
	Close() error
}

// Stats are the hit and miss counters of a Cache.
type Stats struct {
	Hits    int64
	Misses  int64
	HitRate float64
}

// Cache encodes read results with gob so rows keep their Decimal and time
// values, and stores them in a Backend.
type Cache struct {
	backend Backend
	ttl     time.Duration
	hits    atomic.Int64
	misses  atomic.Int64
}

// New returns a cache over backend. Entries live for ttl; zero keeps them
// until evicted.
func New(backend Backend, ttl time.Duration) *Cache {
	return &Cache{backend: backend, ttl: ttl}
}

type entry struct {
	Value any
}

// Key derives the entry key of a read. args must encode to JSON.
func (c *Cache) Key(ctx context.Context, model, action string, args any) (string, error) {
	gen, err := c.backend.Generation(ctx)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("cache: encode args: %w", err)
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%d\x00", model, action, gen)
	h.Write(raw)
	return fmt.Sprintf("%s:%s:%d:%s", model, action, gen, hex.EncodeToString(h.Sum(nil))[:32]), nil
}

// Get returns the cached value of key.
func (c *Cache) Get(ctx context.Context, key string) (any, bool, error) {
	raw, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		c.misses.Add(1)
		return nil, false, nil
	}
	var e entry
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&e); err != nil {
		c.misses.Add(1)
		return nil, false, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	c.hits.Add(1)
	return e.Value, true, nil
}

// Put stores value under key.
func (c *Cache) Put(ctx context.Context, key string, value any) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry{Value: value}); err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	return c.backend.Set(ctx, key, buf.Bytes(), c.ttl)
}

// Invalidate makes every entry stored so far unreachable.
func (c *Cache) Invalidate(ctx context.Context) error {
	_, err := c.backend.Bump(ctx)
	return err
}

// Clear drops all entries and resets the counters.
func (c *Cache) Clear(ctx context.Context) error {
	c.hits.Store(0)
	c.misses.Store(0)
	return c.backend.Clear(ctx)
}

// Stats returns the hit and miss counters.
func (c *Cache) Stats() Stats {
	s := Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total) * 100
	}
	return s
}

// Close releases the backend.
func (c *Cache) Close() error {
	return c.backend.Close()
}
