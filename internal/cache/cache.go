// Package cache is the persistent render-result store: an embedded SQLite
// table keyed by (url, query) with per-entry TTL, hit accounting, and
// size-bounded LRU eviction.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/agentweb/agentweb/pkg/types"
)

// Cache defaults.
const (
	DefaultTTL        = 10 * time.Minute
	DefaultMaxEntries = 500
)

const schema = `
CREATE TABLE IF NOT EXISTS page_cache (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	url         TEXT NOT NULL,
	query       TEXT NOT NULL DEFAULT '',
	backend     TEXT NOT NULL,
	result_json TEXT NOT NULL,
	created_at  INTEGER NOT NULL,
	expires_at  INTEGER NOT NULL,
	hit_count   INTEGER NOT NULL DEFAULT 0,
	last_hit    INTEGER NOT NULL DEFAULT 0,
	UNIQUE(url, query)
);
CREATE INDEX IF NOT EXISTS idx_page_cache_expires_at ON page_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_page_cache_last_hit ON page_cache(last_hit);
`

// Config controls cache behavior. Zero values select the defaults.
type Config struct {
	TTL         time.Duration
	MaxEntries  int
	DBPath      string
	Compression string
}

// DefaultDBPath returns <home>/.agentweb/cache.db.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".agentweb", "cache.db")
}

// Cache is a durable (url, query) → RenderResult store. Safe for concurrent
// use within a single process; cross-process sharing is not supported.
type Cache struct {
	db     *sql.DB
	cfg    Config
	logger *zap.Logger

	now func() time.Time

	closeOnce sync.Once
	closeErr  error
}

// New opens (creating if needed) the cache database at cfg.DBPath, applying
// WAL journaling and the schema. Parent directories are created as needed.
func New(cfg Config, logger *zap.Logger) (*Cache, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath()
	}
	if cfg.Compression == "" {
		cfg.Compression = CompressionSnappy
	}

	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("%w: mkdir: %v", ErrCacheIO, err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", ErrCacheIO, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %s: %v", ErrCacheIO, p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: schema: %v", ErrCacheIO, err)
	}

	logger.Debug("Cache opened",
		zap.String("path", cfg.DBPath),
		zap.Int("max_entries", cfg.MaxEntries),
		zap.Duration("default_ttl", cfg.TTL))

	return &Cache{db: db, cfg: cfg, logger: logger, now: time.Now}, nil
}

func (c *Cache) nowMs() int64 {
	return c.now().UnixMilli()
}

// Get returns the cached result for (url, query), or nil on a miss. An
// expired row is deleted and reported as a miss. A hit increments hit_count
// and refreshes last_hit. A row with an undecodable payload is a miss; the
// row is kept so the next Set can repair it.
func (c *Cache) Get(ctx context.Context, url, query string) (*types.RenderResult, error) {
	var stored string
	var expiresAt int64
	err := c.db.QueryRowContext(ctx,
		`SELECT result_json, expires_at FROM page_cache WHERE url = ? AND query = ?`,
		url, query).Scan(&stored, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get: %v", ErrCacheIO, err)
	}

	now := c.nowMs()
	if expiresAt < now {
		if _, err := c.db.ExecContext(ctx,
			`DELETE FROM page_cache WHERE url = ? AND query = ?`, url, query); err != nil {
			return nil, fmt.Errorf("%w: delete expired: %v", ErrCacheIO, err)
		}
		return nil, nil
	}

	if _, err := c.db.ExecContext(ctx,
		`UPDATE page_cache SET hit_count = hit_count + 1, last_hit = ? WHERE url = ? AND query = ?`,
		now, url, query); err != nil {
		return nil, fmt.Errorf("%w: record hit: %v", ErrCacheIO, err)
	}

	raw, err := decodeBlob(stored)
	if err != nil {
		c.logger.Warn("Cache entry undecodable, treating as miss",
			zap.String("url", url), zap.Error(err))
		return nil, nil
	}
	var result types.RenderResult
	if err := json.Unmarshal(raw, &result); err != nil {
		c.logger.Warn("Cache entry unparseable, treating as miss",
			zap.String("url", url), zap.Error(err))
		return nil, nil
	}
	return &result, nil
}

// Set upserts the result under (url, query), resetting hit accounting and
// expiry, then enforces the entry cap.
func (c *Cache) Set(ctx context.Context, url, query string, result *types.RenderResult, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.cfg.TTL
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrCacheIO, err)
	}
	blob, err := encodeBlob(raw, c.cfg.Compression)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheIO, err)
	}

	now := c.nowMs()
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO page_cache (url, query, backend, result_json, created_at, expires_at, hit_count, last_hit)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(url, query) DO UPDATE SET
			backend = excluded.backend,
			result_json = excluded.result_json,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at,
			hit_count = 0,
			last_hit = excluded.last_hit`,
		url, query, result.Backend, blob, now, now+ttl.Milliseconds(), now)
	if err != nil {
		return fmt.Errorf("%w: set: %v", ErrCacheIO, err)
	}

	return c.evict(ctx)
}

// evict deletes rows past the entry cap, dropping expired rows first and then
// the least recently hit.
func (c *Cache) evict(ctx context.Context) error {
	var count int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM page_cache`).Scan(&count); err != nil {
		return fmt.Errorf("%w: evict count: %v", ErrCacheIO, err)
	}
	excess := count - c.cfg.MaxEntries
	if excess <= 0 {
		return nil
	}

	res, err := c.db.ExecContext(ctx, `
		DELETE FROM page_cache WHERE id IN (
			SELECT id FROM page_cache
			ORDER BY CASE WHEN expires_at < ? THEN 0 ELSE 1 END, last_hit ASC
			LIMIT ?
		)`, c.nowMs(), excess)
	if err != nil {
		return fmt.Errorf("%w: evict: %v", ErrCacheIO, err)
	}

	if deleted, _ := res.RowsAffected(); deleted > 0 {
		c.logger.Debug("Evicted cache entries", zap.Int64("count", deleted))
	}
	return nil
}

// Invalidate deletes every entry for url across all queries and returns the
// number of rows removed.
func (c *Cache) Invalidate(ctx context.Context, url string) (int, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM page_cache WHERE url = ?`, url)
	if err != nil {
		return 0, fmt.Errorf("%w: invalidate: %v", ErrCacheIO, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// PurgeExpired deletes all expired entries and returns how many were removed.
func (c *Cache) PurgeExpired(ctx context.Context) (int, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM page_cache WHERE expires_at < ?`, c.nowMs())
	if err != nil {
		return 0, fmt.Errorf("%w: purge: %v", ErrCacheIO, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Stats summarizes the store: row counts, per-backend distribution, age of
// the oldest entry, and the five most-served rows.
func (c *Cache) Stats(ctx context.Context) (*types.CacheStats, error) {
	now := c.nowMs()
	stats := &types.CacheStats{Backends: make(map[string]int)}

	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(expires_at < ?), 0) FROM page_cache`, now).
		Scan(&stats.Entries, &stats.Expired)
	if err != nil {
		return nil, fmt.Errorf("%w: stats: %v", ErrCacheIO, err)
	}
	stats.Active = stats.Entries - stats.Expired

	rows, err := c.db.QueryContext(ctx,
		`SELECT backend, COUNT(*) FROM page_cache GROUP BY backend`)
	if err != nil {
		return nil, fmt.Errorf("%w: stats backends: %v", ErrCacheIO, err)
	}
	defer rows.Close()
	for rows.Next() {
		var backend string
		var n int
		if err := rows.Scan(&backend, &n); err != nil {
			return nil, fmt.Errorf("%w: stats backends: %v", ErrCacheIO, err)
		}
		stats.Backends[backend] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: stats backends: %v", ErrCacheIO, err)
	}

	var oldest sql.NullInt64
	if err := c.db.QueryRowContext(ctx,
		`SELECT MIN(created_at) FROM page_cache`).Scan(&oldest); err != nil {
		return nil, fmt.Errorf("%w: stats oldest: %v", ErrCacheIO, err)
	}
	if oldest.Valid {
		stats.OldestMs = now - oldest.Int64
	}

	top, err := c.db.QueryContext(ctx, `
		SELECT url, query, backend, hit_count FROM page_cache
		ORDER BY hit_count DESC LIMIT 5`)
	if err != nil {
		return nil, fmt.Errorf("%w: stats top hits: %v", ErrCacheIO, err)
	}
	defer top.Close()
	for top.Next() {
		var h types.TopHit
		if err := top.Scan(&h.URL, &h.Query, &h.Backend, &h.HitCount); err != nil {
			return nil, fmt.Errorf("%w: stats top hits: %v", ErrCacheIO, err)
		}
		stats.TopHits = append(stats.TopHits, h)
	}
	if err := top.Err(); err != nil {
		return nil, fmt.Errorf("%w: stats top hits: %v", ErrCacheIO, err)
	}

	return stats, nil
}

// Close releases the database connection. Safe to call more than once.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.db.Close()
	})
	return c.closeErr
}
