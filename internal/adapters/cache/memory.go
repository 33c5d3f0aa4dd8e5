// Package cache provides the keyed task cache shared by the push-driven
// reconciler and the pull-driven fetch path. The memory store is the
// authoritative tier; the SQLite store is an optional snapshot tier so a
// restarted client can render stale data while the first pull is in
// flight.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/preludium/taskwatch/internal/application/ports"
	"github.com/preludium/taskwatch/internal/domain/task"
)

// MemoryStore implements ports.TaskCache using an in-memory map with
// TTL support. All mutations happen under one lock, which is what makes
// UpdatePage an atomic read-modify-write from the callers' view.
type MemoryStore struct {
	mu      sync.Mutex
	pages   map[string]*ports.PageEntry
	counts  *ports.CountsEntry
	maxSize int64 // approximate cap on cached tasks across all pages

	// Statistics
	hitCount      int64
	missCount     int64
	evictionCount int64
	expiredCount  int64

	// Cleanup
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	closeOnce     sync.Once
}

// NewMemoryStore creates a new in-memory store. maxSize bounds the
// approximate total bytes of cached pages; cleanupPeriod of zero
// disables the background sweep.
func NewMemoryStore(maxSize int64, cleanupPeriod time.Duration) *MemoryStore {
	m := &MemoryStore{
		pages:       make(map[string]*ports.PageEntry),
		maxSize:     maxSize,
		stopCleanup: make(chan struct{}),
	}

	if cleanupPeriod > 0 {
		m.cleanupTicker = time.NewTicker(cleanupPeriod)
		go m.cleanupLoop()
	}

	return m
}

// cleanupLoop runs periodic cleanup of expired entries.
func (m *MemoryStore) cleanupLoop() {
	for {
		select {
		case <-m.cleanupTicker.C:
			_, _ = m.Cleanup(context.Background())
		case <-m.stopCleanup:
			m.cleanupTicker.Stop()
			return
		}
	}
}

// Close stops the cleanup goroutine and releases resources.
func (m *MemoryStore) Close() error {
	if m.cleanupTicker != nil {
		// Close the channel exactly once, avoiding races with the
		// cleanup goroutine.
		m.closeOnce.Do(func() {
			close(m.stopCleanup)
		})
	}
	return nil
}

// GetPage retrieves a cached page.
func (m *MemoryStore) GetPage(ctx context.Context, key string) (task.Page, bool) {
	m.mu.Lock()
	entry, exists := m.pages[key]
	if exists && time.Now().After(entry.ExpiresAt) {
		delete(m.pages, key)
		exists = false
		atomic.AddInt64(&m.expiredCount, 1)
	}
	var page task.Page
	if exists {
		page = entry.Page.Clone()
		entry.HitCount++
	}
	m.mu.Unlock()

	if !exists {
		atomic.AddInt64(&m.missCount, 1)
		return task.Page{}, false
	}
	atomic.AddInt64(&m.hitCount, 1)
	return page, true
}

// SetPage stores a page wholesale, replacing any prior entry.
func (m *MemoryStore) SetPage(ctx context.Context, key string, page task.Page, ttl time.Duration) error {
	now := time.Now()
	entry := &ports.PageEntry{
		Key:       key,
		Page:      page.Clone(),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		TTL:       ttl,
	}

	m.mu.Lock()
	m.pages[key] = entry
	m.evictIfOverBudgetLocked()
	m.mu.Unlock()
	return nil
}

// UpdatePage applies fn to the cached page under the store's lock.
// Returns false without calling fn when the key is absent or expired.
func (m *MemoryStore) UpdatePage(ctx context.Context, key string, fn func(*task.Page) bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.pages[key]
	if !exists {
		return false
	}
	if time.Now().After(entry.ExpiresAt) {
		delete(m.pages, key)
		atomic.AddInt64(&m.expiredCount, 1)
		return false
	}
	return fn(&entry.Page)
}

// GetCounts retrieves the cached status counts.
func (m *MemoryStore) GetCounts(ctx context.Context) (task.StatusCounts, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.counts == nil || time.Now().After(m.counts.ExpiresAt) {
		m.counts = nil
		return task.StatusCounts{}, false
	}
	return m.counts.Counts, true
}

// SetCounts stores the status counts wholesale.
func (m *MemoryStore) SetCounts(ctx context.Context, counts task.StatusCounts, ttl time.Duration) error {
	now := time.Now()

	m.mu.Lock()
	m.counts = &ports.CountsEntry{
		Counts:    counts,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		TTL:       ttl,
	}
	m.mu.Unlock()
	return nil
}

// UpdateCounts applies fn to the cached counts under the store's lock.
func (m *MemoryStore) UpdateCounts(ctx context.Context, fn func(*task.StatusCounts)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.counts == nil || time.Now().After(m.counts.ExpiresAt) {
		m.counts = nil
		return false
	}
	fn(&m.counts.Counts)
	return true
}

// Delete removes an entry.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.pages, key)
	m.mu.Unlock()
	return nil
}

// InvalidatePages removes every cached page, leaving counts alone.
func (m *MemoryStore) InvalidatePages(ctx context.Context) error {
	m.mu.Lock()
	m.pages = make(map[string]*ports.PageEntry)
	m.mu.Unlock()
	return nil
}

// Clear removes all entries.
func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.pages = make(map[string]*ports.PageEntry)
	m.counts = nil
	m.mu.Unlock()
	return nil
}

// Keys returns the keys of all live page entries.
func (m *MemoryStore) Keys(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	keys := make([]string, 0, len(m.pages))
	for key, entry := range m.pages {
		if now.After(entry.ExpiresAt) {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Stats returns cache statistics.
func (m *MemoryStore) Stats(ctx context.Context) (*ports.CacheStats, error) {
	m.mu.Lock()
	entries := int64(len(m.pages))
	if m.counts != nil {
		entries++
	}
	m.mu.Unlock()

	stats := &ports.CacheStats{
		TotalEntries:  entries,
		HitCount:      atomic.LoadInt64(&m.hitCount),
		MissCount:     atomic.LoadInt64(&m.missCount),
		EvictionCount: atomic.LoadInt64(&m.evictionCount),
		ExpiredCount:  atomic.LoadInt64(&m.expiredCount),
	}
	if total := stats.HitCount + stats.MissCount; total > 0 {
		stats.HitRate = float64(stats.HitCount) / float64(total) * 100
	}
	return stats, nil
}

// Cleanup removes expired entries. Returns number of entries removed.
func (m *MemoryStore) Cleanup(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var removed int64
	for key, entry := range m.pages {
		if now.After(entry.ExpiresAt) {
			delete(m.pages, key)
			removed++
		}
	}
	if m.counts != nil && now.After(m.counts.ExpiresAt) {
		m.counts = nil
		removed++
	}
	atomic.AddInt64(&m.expiredCount, removed)
	return removed, nil
}

// evictIfOverBudgetLocked drops the oldest pages while the approximate
// in-memory footprint exceeds the budget. Caller holds m.mu.
func (m *MemoryStore) evictIfOverBudgetLocked() {
	if m.maxSize <= 0 {
		return
	}
	for m.approxSizeLocked() > m.maxSize && len(m.pages) > 1 {
		var oldestKey string
		var oldestAt time.Time
		for key, entry := range m.pages {
			if oldestKey == "" || entry.CreatedAt.Before(oldestAt) {
				oldestKey = key
				oldestAt = entry.CreatedAt
			}
		}
		delete(m.pages, oldestKey)
		atomic.AddInt64(&m.evictionCount, 1)
	}
}

// approxSizeLocked estimates the cached footprint. Caller holds m.mu.
func (m *MemoryStore) approxSizeLocked() int64 {
	const bytesPerTask = 512 // rough upper bound for a serialized task
	var size int64
	for _, entry := range m.pages {
		size += int64(len(entry.Page.Items)) * bytesPerTask
	}
	return size
}

// Ensure MemoryStore implements the cache port.
var _ ports.TaskCache = (*MemoryStore)(nil)
