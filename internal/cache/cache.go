// Package cache is a fingerprint-keyed response cache with per-entry TTL,
// used to avoid repeat spend for identical queries. The cache is TTL-agnostic:
// callers choose a TTL per request category and the cache simply honors it.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Cache stores response payloads keyed by request fingerprint. Entry writes
// are atomic: a concurrent reader sees either the old record or the new one,
// never a torn mix.
type Cache struct {
	db  *sql.DB
	now func() time.Time // injectable clock for testing
}

// New creates a Cache backed by the given database.
func New(db *sql.DB) *Cache {
	return &Cache{db: db, now: time.Now}
}

// Get returns the cached payload and its age for fingerprint. Expired or
// unreadable entries are treated as misses; an unreadable entry is removed so
// the next successful fetch overwrites it. Read problems are never fatal.
func (c *Cache) Get(ctx context.Context, fingerprint string) (value []byte, age time.Duration, ok bool) {
	var fetchedNs, ttlNs int64
	err := c.db.QueryRowContext(ctx,
		`SELECT value, fetched_at, ttl_ns FROM cache_entries WHERE fingerprint = ?`,
		fingerprint,
	).Scan(&value, &fetchedNs, &ttlNs)
	if err == sql.ErrNoRows {
		return nil, 0, false
	}
	if err != nil {
		slog.Warn("cache read failed, treating as miss", "fingerprint", fingerprint, "error", err)
		c.evict(ctx, fingerprint)
		return nil, 0, false
	}

	fetched := time.Unix(0, fetchedNs)
	ttl := time.Duration(ttlNs)
	age = c.now().Sub(fetched)

	if ttl <= 0 || age >= ttl || age < 0 {
		// Expired (or clock skew); drop it opportunistically.
		c.evict(ctx, fingerprint)
		return nil, 0, false
	}

	return value, age, true
}

// Put stores value under fingerprint with the given TTL, overwriting any
// existing entry.
func (c *Cache) Put(ctx context.Context, fingerprint string, value []byte, ttl time.Duration) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO cache_entries (fingerprint, value, fetched_at, ttl_ns) VALUES (?, ?, ?, ?)
		 ON CONFLICT(fingerprint) DO UPDATE SET
		   value = excluded.value, fetched_at = excluded.fetched_at, ttl_ns = excluded.ttl_ns`,
		fingerprint, value, c.now().UnixNano(), int64(ttl),
	)
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Clear removes all entries unconditionally and reports how many were
// removed.
func (c *Cache) Clear(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries`)
	if err != nil {
		return 0, fmt.Errorf("clearing cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting cleared entries: %w", err)
	}
	return n, nil
}

func (c *Cache) evict(ctx context.Context, fingerprint string) {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE fingerprint = ?`, fingerprint); err != nil {
		slog.Warn("cache eviction failed", "fingerprint", fingerprint, "error", err)
	}
}
