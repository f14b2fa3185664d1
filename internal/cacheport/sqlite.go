package cacheport

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/tributary-ai/videofed/internal/videotypes"
)

// SQLitePort is the optional durable Cache Port backend, adapted from
// maciekish-split-vpn-webui's internal/database package (same pure-Go
// driver, same WAL-mode + single-writer-connection pattern). It gives the
// Fallback Engine's CACHE_ONLY mode something that survives a process
// restart, which an in-memory cache cannot.
type SQLitePort struct {
	db *sql.DB

	hits   int64
	misses int64
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	expires_at INTEGER NOT NULL
);
`

// OpenSQLitePort opens (or creates) the cache database at path, following
// database.Open's shape: WAL mode, a single writer connection to avoid
// SQLITE_BUSY under concurrent access, idempotent schema creation. Use
// ":memory:" in tests.
func OpenSQLitePort(path string) (*SQLitePort, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLitePort{db: db}, nil
}

func (s *SQLitePort) Close() error { return s.db.Close() }

func (s *SQLitePort) getRaw(key string) ([]byte, bool) {
	var value []byte
	var expiresAt int64
	err := s.db.QueryRow(`SELECT value, expires_at FROM cache_entries WHERE key = ?`, key).Scan(&value, &expiresAt)
	if err != nil {
		atomic.AddInt64(&s.misses, 1)
		return nil, false
	}
	if time.Now().Unix() > expiresAt {
		atomic.AddInt64(&s.misses, 1)
		return nil, false
	}
	atomic.AddInt64(&s.hits, 1)
	return value, true
}

func (s *SQLitePort) setRaw(key string, value []byte, ttl time.Duration) {
	expiresAt := time.Now().Add(ttl).Unix()
	_, _ = s.db.Exec(
		`INSERT INTO cache_entries (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt,
	)
}

func (s *SQLitePort) GetSearchResults(_ context.Context, platform, query string) ([]videotypes.VideoSummary, bool) {
	raw, ok := s.getRaw(searchKey(platform, query))
	if !ok {
		return nil, false
	}
	var results []videotypes.VideoSummary
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, false
	}
	return results, true
}

func (s *SQLitePort) SetSearchResults(_ context.Context, platform, query string, results []videotypes.VideoSummary, ttl time.Duration) {
	if len(results) == 0 {
		return
	}
	if ttl <= 0 {
		ttl = DefaultMetadataTTL
	}
	raw, err := json.Marshal(results)
	if err != nil {
		return
	}
	s.setRaw(searchKey(platform, query), raw, ttl)
}

func (s *SQLitePort) GetVideoMetadata(_ context.Context, platform, id string) (*videotypes.VideoDetails, bool) {
	raw, ok := s.getRaw(metaKey(platform, id))
	if !ok {
		return nil, false
	}
	var details videotypes.VideoDetails
	if err := json.Unmarshal(raw, &details); err != nil {
		return nil, false
	}
	return &details, true
}

func (s *SQLitePort) SetVideoMetadata(_ context.Context, platform, id string, details *videotypes.VideoDetails, ttl time.Duration) {
	if details == nil {
		return
	}
	if ttl <= 0 {
		ttl = DefaultMetadataTTL
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return
	}
	s.setRaw(metaKey(platform, id), raw, ttl)
}

func (s *SQLitePort) GetStreamURL(_ context.Context, platform, id, quality string) (*videotypes.StreamHandle, bool) {
	raw, ok := s.getRaw(streamKey(platform, id, quality))
	if !ok {
		return nil, false
	}
	var handle videotypes.StreamHandle
	if err := json.Unmarshal(raw, &handle); err != nil {
		return nil, false
	}
	return &handle, true
}

func (s *SQLitePort) SetStreamURL(_ context.Context, platform, id, quality string, handle *videotypes.StreamHandle, ttl time.Duration) {
	if handle == nil {
		return
	}
	if ttl <= 0 || ttl > DefaultStreamTTL {
		ttl = DefaultStreamTTL
	}
	raw, err := json.Marshal(handle)
	if err != nil {
		return
	}
	s.setRaw(streamKey(platform, id, quality), raw, ttl)
}

func (s *SQLitePort) Metrics() Metrics {
	return Metrics{
		Hits:   atomic.LoadInt64(&s.hits),
		Misses: atomic.LoadInt64(&s.misses),
	}
}

var _ Port = (*SQLitePort)(nil)
