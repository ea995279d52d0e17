// Package cache stores master-data lookup results for a limited time.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// LookupCache is injected wherever lookup lists are shared. Get decodes a hit
// into dest and reports whether the key was present and fresh.
type LookupCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type NoopLookupCache struct{}

func (NoopLookupCache) Get(_ context.Context, _ string, _ any) (bool, error) {
	return false, nil
}

func (NoopLookupCache) Set(_ context.Context, _ string, _ any, _ time.Duration) error {
	return nil
}

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryLookupCache is the in-process fallback when no redis is configured.
// Values are stored JSON-encoded so callers never share mutable state.
type MemoryLookupCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryLookupCache() *MemoryLookupCache {
	return &MemoryLookupCache{entries: map[string]memoryEntry{}, now: time.Now}
}

func (c *MemoryLookupCache) Get(_ context.Context, key string, dest any) (bool, error) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		ok = false
	}
	c.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(entry.payload, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *MemoryLookupCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	if value == nil || ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.entries[key] = memoryEntry{payload: payload, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}
