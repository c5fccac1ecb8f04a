package chat

import (
	"context"
	"slices"
	"sync"

	"github.com/parcelpal/internal/client"
	"github.com/parcelpal/internal/logger"
)

// Directory user lookups the name cache relies on; *client.API implements it
type Directory interface {
	LookupUsers(ctx context.Context, ids []uint) ([]client.UserSummary, error)
	User(ctx context.Context, id uint) (*client.UserSummary, error)
}

// NameCache best-effort display names by user id, owned by one panel
type NameCache struct {
	dir Directory

	mu    sync.RWMutex
	names map[uint]string
}

// NewNameCache empty cache backed by dir
func NewNameCache(dir Directory) *NameCache {
	return &NameCache{dir: dir, names: make(map[uint]string)}
}

// Name cached name; never calls the api
func (c *NameCache) Name(id uint) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.names[id]
	return name, ok
}

// Set stores a known name
func (c *NameCache) Set(id uint, name string) {
	if id == 0 || name == "" {
		return
	}
	c.mu.Lock()
	c.names[id] = name
	c.mu.Unlock()
}

// Len cached entries
func (c *NameCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.names)
}

// Prime resolves ids that are not cached yet: one batch lookup, then one
// lookup per id the batch did not return. Failures leave ids unresolved.
func (c *NameCache) Prime(ctx context.Context, ids []uint) error {
	missing := c.missing(ids)
	if len(missing) == 0 {
		return nil
	}

	users, err := c.dir.LookupUsers(ctx, missing)
	if err != nil {
		logger.Debugw("chat_name_batch_failed", "count", len(missing), "error", err)
	}
	for _, u := range users {
		c.Set(u.ID, u.FullName)
	}

	var lastErr error
	for _, id := range c.missing(missing) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		u, err := c.dir.User(ctx, id)
		if err != nil {
			lastErr = err
			continue
		}
		c.Set(u.ID, u.FullName)
	}
	return lastErr
}

// Clear forgets every name
func (c *NameCache) Clear() {
	c.mu.Lock()
	c.names = make(map[uint]string)
	c.mu.Unlock()
}

func (c *NameCache) missing(ids []uint) []uint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || slices.Contains(out, id) {
			continue
		}
		if _, ok := c.names[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
