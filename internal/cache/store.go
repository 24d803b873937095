package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"longimage/internal/fileutil"
)

// Entry describes one finished conversion held in the cache.
type Entry struct {
	ContentHash string
	Extension   string
	Width       int
	Height      int
	Pages       int
	Bytes       int64
	CreatedAt   time.Time
	LastUsedAt  time.Time
}

// ObjectPath returns the content-addressed file backing this entry.
func (e Entry) ObjectPath(dir string) string {
	return objectPath(dir, e.ContentHash, e.Extension)
}

// Store manages the dedup cache: a SQLite index plus content-addressed
// object files under the cache directory.
type Store struct {
	db   *sql.DB
	dir  string
	path string
	lock *flock.Flock

	mu       sync.Mutex
	inflight map[string]*Waiter
}

// Open initializes or connects to the cache database in dir and applies
// migrations.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, "objects"), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	dbPath := filepath.Join(dir, "cache.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{
		db:       db,
		dir:      dir,
		path:     dbPath,
		lock:     flock.New(filepath.Join(dir, "cache.lock")),
		inflight: make(map[string]*Waiter),
	}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Dir returns the cache directory.
func (s *Store) Dir() string {
	return s.dir
}

// Lookup returns the cached entry for a content hash. A hit whose
// object file has gone missing is dropped from the index and reported
// as a miss. Hits refresh the last-used timestamp.
func (s *Store) Lookup(ctx context.Context, hash string) (*Entry, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT content_hash, extension, width, height, pages, bytes, created_at, last_used_at
         FROM cache_entries WHERE content_hash = ?`, hash)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if _, statErr := os.Stat(entry.ObjectPath(s.dir)); statErr != nil {
		_, _ = s.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE content_hash = ?", hash)
		return nil, false, nil
	}

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx,
		"UPDATE cache_entries SET last_used_at = ? WHERE content_hash = ?",
		now.Format(time.RFC3339Nano), hash); err != nil {
		return nil, false, fmt.Errorf("touch cache entry: %w", err)
	}
	entry.LastUsedAt = now
	return entry, true, nil
}

// insertEntry records a committed conversion, replacing any stale row
// for the same hash.
func (s *Store) insertEntry(ctx context.Context, entry Entry) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cache_entries (
            content_hash, extension, width, height, pages, bytes, created_at, last_used_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ContentHash,
		entry.Extension,
		entry.Width,
		entry.Height,
		entry.Pages,
		entry.Bytes,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("insert cache entry: %w", err)
	}
	return nil
}

// CopyTo materializes a cached object at dst.
func (s *Store) CopyTo(entry *Entry, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}
	return fileutil.CopyFile(entry.ObjectPath(s.dir), dst)
}

func scanEntry(row *sql.Row) (*Entry, error) {
	var entry Entry
	var createdAt, lastUsedAt string
	err := row.Scan(&entry.ContentHash, &entry.Extension, &entry.Width, &entry.Height,
		&entry.Pages, &entry.Bytes, &createdAt, &lastUsedAt)
	if err != nil {
		return nil, err
	}
	entry.CreatedAt = parseTimestamp(createdAt)
	entry.LastUsedAt = parseTimestamp(lastUsedAt)
	return &entry, nil
}

func parseTimestamp(value string) time.Time {
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts
	}
	return time.Time{}
}

func objectPath(dir, hash, ext string) string {
	return filepath.Join(dir, "objects", hash+"."+ext)
}
