package cache

import (
	"context"
	"time"

	"github.com/preludium/taskwatch/internal/application/ports"
	"github.com/preludium/taskwatch/internal/domain/task"
)

// CompositeStore combines the in-memory store and the SQLite snapshot
// store in a two-tier architecture. Reads are served from memory and
// fall back to the snapshot (promoting on hit); writes go through to
// both. Snapshot write failures are swallowed: the disk tier is an
// optimization, never a correctness dependency.
type CompositeStore struct {
	memory   *MemoryStore
	snapshot *SnapshotStore
	ttl      time.Duration // TTL used when promoting snapshot hits
}

// NewCompositeStore creates a composite store over the two tiers.
func NewCompositeStore(memory *MemoryStore, snapshot *SnapshotStore, promoteTTL time.Duration) *CompositeStore {
	return &CompositeStore{
		memory:   memory,
		snapshot: snapshot,
		ttl:      promoteTTL,
	}
}

// GetPage retrieves a page, checking memory first then the snapshot.
func (c *CompositeStore) GetPage(ctx context.Context, key string) (task.Page, bool) {
	if page, found := c.memory.GetPage(ctx, key); found {
		return page, true
	}

	page, found := c.snapshot.GetPage(ctx, key)
	if !found {
		return task.Page{}, false
	}
	_ = c.memory.SetPage(ctx, key, page, c.ttl)
	return page, true
}

// SetPage stores a page in both tiers.
func (c *CompositeStore) SetPage(ctx context.Context, key string, page task.Page, ttl time.Duration) error {
	if err := c.memory.SetPage(ctx, key, page, ttl); err != nil {
		return err
	}
	_ = c.snapshot.SetPage(ctx, key, page, ttl)
	return nil
}

// UpdatePage applies fn to the memory tier, pulling the entry up from
// the snapshot first when memory does not hold it. On success the
// updated page is written back down. fn runs at most once.
func (c *CompositeStore) UpdatePage(ctx context.Context, key string, fn func(*task.Page) bool) bool {
	if _, held := c.memory.GetPage(ctx, key); !held {
		page, found := c.snapshot.GetPage(ctx, key)
		if !found {
			return false
		}
		_ = c.memory.SetPage(ctx, key, page, c.ttl)
	}

	if !c.memory.UpdatePage(ctx, key, fn) {
		return false
	}
	if page, found := c.memory.GetPage(ctx, key); found {
		_ = c.snapshot.SetPage(ctx, key, page, c.ttl)
	}
	return true
}

// GetCounts retrieves counts, checking memory first then the snapshot.
func (c *CompositeStore) GetCounts(ctx context.Context) (task.StatusCounts, bool) {
	if counts, found := c.memory.GetCounts(ctx); found {
		return counts, true
	}

	counts, found := c.snapshot.GetCounts(ctx)
	if !found {
		return task.StatusCounts{}, false
	}
	_ = c.memory.SetCounts(ctx, counts, c.ttl)
	return counts, true
}

// SetCounts stores counts in both tiers.
func (c *CompositeStore) SetCounts(ctx context.Context, counts task.StatusCounts, ttl time.Duration) error {
	if err := c.memory.SetCounts(ctx, counts, ttl); err != nil {
		return err
	}
	_ = c.snapshot.SetCounts(ctx, counts, ttl)
	return nil
}

// UpdateCounts applies fn to the memory tier, promoting from the
// snapshot like UpdatePage does, and writes the result back down.
func (c *CompositeStore) UpdateCounts(ctx context.Context, fn func(*task.StatusCounts)) bool {
	if _, held := c.memory.GetCounts(ctx); !held {
		counts, found := c.snapshot.GetCounts(ctx)
		if !found {
			return false
		}
		_ = c.memory.SetCounts(ctx, counts, c.ttl)
	}

	if !c.memory.UpdateCounts(ctx, fn) {
		return false
	}
	if counts, found := c.memory.GetCounts(ctx); found {
		_ = c.snapshot.SetCounts(ctx, counts, c.ttl)
	}
	return true
}

// Delete removes an entry from both tiers.
func (c *CompositeStore) Delete(ctx context.Context, key string) error {
	if err := c.memory.Delete(ctx, key); err != nil {
		return err
	}
	return c.snapshot.Delete(ctx, key)
}

// InvalidatePages removes every cached page from both tiers.
func (c *CompositeStore) InvalidatePages(ctx context.Context) error {
	if err := c.memory.InvalidatePages(ctx); err != nil {
		return err
	}
	return c.snapshot.InvalidatePages(ctx)
}

// Clear removes all entries from both tiers.
func (c *CompositeStore) Clear(ctx context.Context) error {
	if err := c.memory.Clear(ctx); err != nil {
		return err
	}
	return c.snapshot.Clear(ctx)
}

// Keys returns the union of live page keys across both tiers.
func (c *CompositeStore) Keys(ctx context.Context) ([]string, error) {
	memKeys, err := c.memory.Keys(ctx)
	if err != nil {
		return nil, err
	}
	snapKeys, err := c.snapshot.Keys(ctx)
	if err != nil {
		return memKeys, nil
	}

	seen := make(map[string]bool, len(memKeys))
	keys := make([]string, 0, len(memKeys)+len(snapKeys))
	for _, k := range memKeys {
		seen[k] = true
		keys = append(keys, k)
	}
	for _, k := range snapKeys {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Stats returns the memory tier's statistics; the snapshot tier only
// sees memory misses, so its numbers would double-count.
func (c *CompositeStore) Stats(ctx context.Context) (*ports.CacheStats, error) {
	return c.memory.Stats(ctx)
}

// Cleanup removes expired entries from both tiers.
func (c *CompositeStore) Cleanup(ctx context.Context) (int64, error) {
	memRemoved, err := c.memory.Cleanup(ctx)
	if err != nil {
		return memRemoved, err
	}
	snapRemoved, _ := c.snapshot.Cleanup(ctx)
	return memRemoved + snapRemoved, nil
}

// Close releases both tiers.
func (c *CompositeStore) Close() error {
	memErr := c.memory.Close()
	snapErr := c.snapshot.Close()
	if memErr != nil {
		return memErr
	}
	return snapErr
}

// Ensure CompositeStore implements the cache port.
var _ ports.TaskCache = (*CompositeStore)(nil)
