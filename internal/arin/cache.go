package arin

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crestline-networks/circuit-cli/internal/model"
)

// CacheStore persists ownership entries between runs.
type CacheStore interface {
	PutIPOwnership(ctx context.Context, entry model.IpOwnership) error
	ListIPOwnership(ctx context.Context) ([]model.IpOwnership, error)
}

// Cache is the shared IP -> organization cache. It is an explicit object
// with an injected store, not a package singleton, so tests and runs can
// swap it wholesale. Keys are immutable IP strings; writes are
// last-writer-consistent.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]model.IpOwnership
	store   CacheStore
}

// NewCache creates an empty cache. store may be nil for tests.
func NewCache(store CacheStore) *Cache {
	return &Cache{
		entries: make(map[string]model.IpOwnership),
		store:   store,
	}
}

// Warm loads all persisted entries into memory. Called once at the start of
// a batch run.
func (c *Cache) Warm(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	entries, err := c.store.ListIPOwnership(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entries {
		c.entries[e.IP] = e
	}
	return nil
}

// Get returns the cached entry for an IP.
func (c *Cache) Get(ip string) (model.IpOwnership, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[ip]
	return e, ok
}

// Put stores an entry in memory and writes it through to the store. A
// write-through failure is logged, not fatal; the in-memory entry still
// prevents duplicate lookups for the rest of the run.
func (c *Cache) Put(ctx context.Context, entry model.IpOwnership) {
	if entry.ResolvedAt.IsZero() {
		entry.ResolvedAt = time.Now().UTC()
	}
	c.mu.Lock()
	c.entries[entry.IP] = entry
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	if err := c.store.PutIPOwnership(ctx, entry); err != nil {
		zap.L().Warn("arin: cache write-through failed",
			zap.String("ip", entry.IP), zap.Error(err))
	}
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
