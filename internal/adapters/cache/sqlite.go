package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/preludium/taskwatch/internal/application/ports"
	"github.com/preludium/taskwatch/internal/domain/task"
)

// countsKey is the fixed key the counts snapshot is stored under.
const countsKey = task.CountsCacheKey

// SnapshotStore implements ports.TaskCache on SQLite. It is the disk
// tier of the composite store: slower, durable across restarts, and
// holding exactly the same entries as the memory tier.
type SnapshotStore struct {
	db *sql.DB

	hitCount  int64
	missCount int64
}

// OpenSnapshot opens (creating if needed) the snapshot database at path
// and ensures the schema exists.
func OpenSnapshot(path string) (*SnapshotStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// A snapshot file has exactly one writer.
	db.SetMaxOpenConns(1)

	store := NewSnapshotStore(db)
	if err := store.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSnapshotStore wraps an existing database handle. The caller is
// responsible for having run ensureSchema (OpenSnapshot does both).
func NewSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

func (s *SnapshotStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS task_cache (
			key         TEXT PRIMARY KEY,
			kind        TEXT NOT NULL,
			payload     TEXT NOT NULL,
			ttl_seconds INTEGER NOT NULL,
			created_at  TIMESTAMP NOT NULL,
			expires_at  TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_task_cache_expires ON task_cache(expires_at);
	`)
	return err
}

// GetPage retrieves a cached page.
func (s *SnapshotStore) GetPage(ctx context.Context, key string) (task.Page, bool) {
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM task_cache
		WHERE key = ? AND kind = 'page' AND expires_at > ?
	`, key, time.Now()).Scan(&payload)
	if err != nil {
		atomic.AddInt64(&s.missCount, 1)
		return task.Page{}, false
	}

	var page task.Page
	if err := json.Unmarshal([]byte(payload), &page); err != nil {
		// A corrupt snapshot row is treated as a miss and removed.
		_, _ = s.db.ExecContext(ctx, `DELETE FROM task_cache WHERE key = ?`, key)
		atomic.AddInt64(&s.missCount, 1)
		return task.Page{}, false
	}

	atomic.AddInt64(&s.hitCount, 1)
	return page, true
}

// SetPage stores a page wholesale, replacing any prior entry.
func (s *SnapshotStore) SetPage(ctx context.Context, key string, page task.Page, ttl time.Duration) error {
	return s.put(ctx, key, "page", page, ttl)
}

// UpdatePage applies fn to the stored page inside a transaction.
func (s *SnapshotStore) UpdatePage(ctx context.Context, key string, fn func(*task.Page) bool) bool {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false
	}
	defer tx.Rollback()

	var payload string
	var ttlSeconds int64
	var createdAt time.Time
	err = tx.QueryRowContext(ctx, `
		SELECT payload, ttl_seconds, created_at FROM task_cache
		WHERE key = ? AND kind = 'page' AND expires_at > ?
	`, key, time.Now()).Scan(&payload, &ttlSeconds, &createdAt)
	if err != nil {
		return false
	}

	var page task.Page
	if err := json.Unmarshal([]byte(payload), &page); err != nil {
		return false
	}
	if !fn(&page) {
		return false
	}

	data, err := json.Marshal(page)
	if err != nil {
		return false
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE task_cache SET payload = ? WHERE key = ?
	`, string(data), key); err != nil {
		return false
	}
	return tx.Commit() == nil
}

// GetCounts retrieves the cached status counts.
func (s *SnapshotStore) GetCounts(ctx context.Context) (task.StatusCounts, bool) {
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM task_cache
		WHERE key = ? AND kind = 'counts' AND expires_at > ?
	`, countsKey, time.Now()).Scan(&payload)
	if err != nil {
		atomic.AddInt64(&s.missCount, 1)
		return task.StatusCounts{}, false
	}

	var counts task.StatusCounts
	if err := json.Unmarshal([]byte(payload), &counts); err != nil {
		atomic.AddInt64(&s.missCount, 1)
		return task.StatusCounts{}, false
	}
	atomic.AddInt64(&s.hitCount, 1)
	return counts, true
}

// SetCounts stores the status counts wholesale.
func (s *SnapshotStore) SetCounts(ctx context.Context, counts task.StatusCounts, ttl time.Duration) error {
	return s.put(ctx, countsKey, "counts", counts, ttl)
}

// UpdateCounts applies fn to the stored counts inside a transaction.
func (s *SnapshotStore) UpdateCounts(ctx context.Context, fn func(*task.StatusCounts)) bool {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false
	}
	defer tx.Rollback()

	var payload string
	err = tx.QueryRowContext(ctx, `
		SELECT payload FROM task_cache
		WHERE key = ? AND kind = 'counts' AND expires_at > ?
	`, countsKey, time.Now()).Scan(&payload)
	if err != nil {
		return false
	}

	var counts task.StatusCounts
	if err := json.Unmarshal([]byte(payload), &counts); err != nil {
		return false
	}
	fn(&counts)

	data, err := json.Marshal(counts)
	if err != nil {
		return false
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE task_cache SET payload = ? WHERE key = ?
	`, string(data), countsKey); err != nil {
		return false
	}
	return tx.Commit() == nil
}

func (s *SnapshotStore) put(ctx context.Context, key, kind string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	now := time.Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO task_cache
		(key, kind, payload, ttl_seconds, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, key, kind, string(data), int64(ttl.Seconds()), now, now.Add(ttl))
	return err
}

// Delete removes an entry.
func (s *SnapshotStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM task_cache WHERE key = ?`, key)
	return err
}

// InvalidatePages removes every cached page, leaving counts alone.
func (s *SnapshotStore) InvalidatePages(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM task_cache WHERE kind = 'page'`)
	return err
}

// Clear removes all entries.
func (s *SnapshotStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM task_cache`)
	return err
}

// Keys returns the keys of all live page entries.
func (s *SnapshotStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key FROM task_cache WHERE kind = 'page' AND expires_at > ?
	`, time.Now())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Stats returns cache statistics.
func (s *SnapshotStore) Stats(ctx context.Context) (*ports.CacheStats, error) {
	stats := &ports.CacheStats{
		HitCount:  atomic.LoadInt64(&s.hitCount),
		MissCount: atomic.LoadInt64(&s.missCount),
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM task_cache WHERE expires_at > ?
	`, time.Now()).Scan(&stats.TotalEntries)
	if err != nil {
		return nil, err
	}

	if total := stats.HitCount + stats.MissCount; total > 0 {
		stats.HitRate = float64(stats.HitCount) / float64(total) * 100
	}
	return stats, nil
}

// Cleanup removes expired entries. Returns number of entries removed.
func (s *SnapshotStore) Cleanup(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM task_cache WHERE expires_at <= ?
	`, time.Now())
	if err != nil {
		return 0, err
	}
	removed, _ := result.RowsAffected()
	return removed, nil
}

// Close releases the database handle.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

// Ensure SnapshotStore implements the cache port.
var _ ports.TaskCache = (*SnapshotStore)(nil)
