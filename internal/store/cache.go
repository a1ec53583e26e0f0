package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	// Register the sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS track_resolutions (
	artist     TEXT NOT NULL,
	title      TEXT NOT NULL,
	uri        TEXT NOT NULL,
	resolved_at TIMESTAMP NOT NULL,
	PRIMARY KEY (artist, title)
);`

// TrackCache persists track resolutions in a local SQLite database so
// re-runs (and the reprocess-all cursor fallback) don't repeat searches.
// An empty stored URI is a negative entry: the track is known to be
// unfindable.
type TrackCache struct {
	db *sql.DB
}

// NewTrackCache opens (or creates) the cache database at path. Use
// ":memory:" for an ephemeral cache.
func NewTrackCache(path string) (*TrackCache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}

	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}

	return &TrackCache{db: db}, nil
}

// Lookup returns the cached URI for (artist, title). hit is false when
// the pair has never been resolved.
func (c *TrackCache) Lookup(ctx context.Context, artist, title string) (string, bool, error) {
	var uri string
	err := c.db.QueryRowContext(ctx,
		`SELECT uri FROM track_resolutions WHERE artist = ? AND title = ?`,
		cacheKeyPart(artist), cacheKeyPart(title),
	).Scan(&uri)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache lookup failed: %w", err)
	}
	return uri, true, nil
}

// Store records a resolution, overwriting any previous entry for the
// same pair.
func (c *TrackCache) Store(ctx context.Context, artist, title, uri string) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO track_resolutions (artist, title, uri, resolved_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(artist, title) DO UPDATE SET uri = excluded.uri, resolved_at = excluded.resolved_at`,
		cacheKeyPart(artist), cacheKeyPart(title), uri, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("cache store failed: %w", err)
	}
	return nil
}

func (c *TrackCache) Close() error {
	return c.db.Close()
}

// cacheKeyPart canonicalizes a key component so trivial case and
// whitespace differences between runs still hit.
func cacheKeyPart(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
