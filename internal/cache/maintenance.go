package cache

import (
	"context"
	"fmt"
	"os"
	"time"

	"longimage/internal/services"
)

// Stats summarizes cache contents.
type Stats struct {
	Entries    int
	TotalBytes int64
}

// PruneResult reports what maintenance removed.
type PruneResult struct {
	Removed        int
	ReclaimedBytes int64
}

// Stats returns the entry count and total object bytes.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(1), COALESCE(SUM(bytes), 0) FROM cache_entries")
	if err := row.Scan(&stats.Entries, &stats.TotalBytes); err != nil {
		return Stats{}, fmt.Errorf("read cache stats: %w", err)
	}
	return stats, nil
}

// Prune removes entries unused for longer than maxAge, then evicts
// least-recently-used entries until the cache fits maxBytes. Zero
// disables the respective limit. The cache directory lock serializes
// maintenance across processes; a held lock fails with the busy marker.
func (s *Store) Prune(ctx context.Context, maxAge time.Duration, maxBytes int64) (PruneResult, error) {
	locked, err := s.lock.TryLock()
	if err != nil {
		return PruneResult{}, fmt.Errorf("acquire cache lock: %w", err)
	}
	if !locked {
		return PruneResult{}, services.Wrap(services.ErrBusy, "cache", "prune", "another process holds the cache lock", nil)
	}
	defer func() {
		_ = s.lock.Unlock()
	}()

	var result PruneResult

	if maxAge > 0 {
		cutoff := time.Now().Add(-maxAge).UTC().Format(time.RFC3339Nano)
		removed, reclaimed, err := s.evict(ctx,
			`SELECT content_hash, extension, bytes FROM cache_entries WHERE last_used_at < ?`, cutoff)
		if err != nil {
			return result, err
		}
		result.Removed += removed
		result.ReclaimedBytes += reclaimed
	}

	if maxBytes > 0 {
		stats, err := s.Stats(ctx)
		if err != nil {
			return result, err
		}
		for stats.TotalBytes > maxBytes {
			removed, reclaimed, err := s.evict(ctx,
				`SELECT content_hash, extension, bytes FROM cache_entries ORDER BY last_used_at ASC LIMIT 1`)
			if err != nil {
				return result, err
			}
			if removed == 0 {
				break
			}
			result.Removed += removed
			result.ReclaimedBytes += reclaimed
			stats.TotalBytes -= reclaimed
		}
	}

	return result, nil
}

// Clear drops every entry and object.
func (s *Store) Clear(ctx context.Context) (PruneResult, error) {
	locked, err := s.lock.TryLock()
	if err != nil {
		return PruneResult{}, fmt.Errorf("acquire cache lock: %w", err)
	}
	if !locked {
		return PruneResult{}, services.Wrap(services.ErrBusy, "cache", "clear", "another process holds the cache lock", nil)
	}
	defer func() {
		_ = s.lock.Unlock()
	}()

	return s.evictAll(ctx)
}

func (s *Store) evict(ctx context.Context, query string, args ...any) (int, int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, 0, fmt.Errorf("select eviction candidates: %w", err)
	}
	type victim struct {
		hash  string
		ext   string
		bytes int64
	}
	var victims []victim
	for rows.Next() {
		var v victim
		if err := rows.Scan(&v.hash, &v.ext, &v.bytes); err != nil {
			rows.Close()
			return 0, 0, fmt.Errorf("scan eviction candidate: %w", err)
		}
		victims = append(victims, v)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, 0, err
	}
	rows.Close()

	removed := 0
	var reclaimed int64
	for _, v := range victims {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE content_hash = ?", v.hash); err != nil {
			return removed, reclaimed, fmt.Errorf("delete cache entry: %w", err)
		}
		if err := os.Remove(objectPath(s.dir, v.hash, v.ext)); err != nil && !os.IsNotExist(err) {
			return removed, reclaimed, fmt.Errorf("remove cache object: %w", err)
		}
		removed++
		reclaimed += v.bytes
	}
	return removed, reclaimed, nil
}

func (s *Store) evictAll(ctx context.Context) (PruneResult, error) {
	removed, reclaimed, err := s.evict(ctx, "SELECT content_hash, extension, bytes FROM cache_entries")
	return PruneResult{Removed: removed, ReclaimedBytes: reclaimed}, err
}
