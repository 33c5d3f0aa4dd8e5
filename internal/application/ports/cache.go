package ports

import (
	"context"
	"time"

	"github.com/preludium/taskwatch/internal/domain/task"
)

// PageEntry represents one cached page of tasks with cache metadata.
type PageEntry struct {
	Key       string        `json:"key"`
	Page      task.Page     `json:"page"`
	CreatedAt time.Time     `json:"created_at"`
	ExpiresAt time.Time     `json:"expires_at"`
	TTL       time.Duration `json:"ttl"`
	HitCount  int64         `json:"hit_count"`
}

// CountsEntry represents the cached per-status counts with metadata.
type CountsEntry struct {
	Counts    task.StatusCounts `json:"counts"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at"`
	TTL       time.Duration     `json:"ttl"`
}

// CacheStats represents cache statistics.
type CacheStats struct {
	TotalEntries  int64   `json:"total_entries"`
	HitCount      int64   `json:"hit_count"`
	MissCount     int64   `json:"miss_count"`
	HitRate       float64 `json:"hit_rate"` // Percentage
	EvictionCount int64   `json:"eviction_count"`
	ExpiredCount  int64   `json:"expired_count"`
}

// TaskCache is the keyed store shared by the push-driven reconciler and
// the pull-driven fetch path. Both may write the same keys; updates are
// atomic read-modify-write operations so a reconciliation never
// observes a half-replaced entry, but last-write-wins across the two
// paths is accepted.
type TaskCache interface {
	// GetPage retrieves a cached page. Returns a copy and true if present
	// and unexpired.
	GetPage(ctx context.Context, key string) (task.Page, bool)

	// SetPage stores a page wholesale, replacing any prior entry.
	SetPage(ctx context.Context, key string, page task.Page, ttl time.Duration) error

	// UpdatePage applies fn to the cached page under the store's lock.
	// fn returns false to abandon the update. UpdatePage returns false
	// without calling fn when the key is not materialized: push events
	// never fabricate pages.
	UpdatePage(ctx context.Context, key string, fn func(*task.Page) bool) bool

	// GetCounts retrieves the cached status counts.
	GetCounts(ctx context.Context) (task.StatusCounts, bool)

	// SetCounts stores the status counts wholesale.
	SetCounts(ctx context.Context, counts task.StatusCounts, ttl time.Duration) error

	// UpdateCounts applies fn to the cached counts under the store's
	// lock. Returns false when no counts are cached.
	UpdateCounts(ctx context.Context, fn func(*task.StatusCounts)) bool

	// Delete removes an entry.
	Delete(ctx context.Context, key string) error

	// InvalidatePages removes every cached page, leaving counts alone.
	InvalidatePages(ctx context.Context) error

	// Clear removes all entries.
	Clear(ctx context.Context) error

	// Keys returns the keys of all live page entries.
	Keys(ctx context.Context) ([]string, error)

	// Stats returns cache statistics.
	Stats(ctx context.Context) (*CacheStats, error)

	// Cleanup removes expired entries. Returns number of entries removed.
	Cleanup(ctx context.Context) (int64, error)

	// Close releases store resources.
	Close() error
}
