package store

import (
	"context"
	"testing"
)

func newTestCache(t *testing.T) *TrackCache {
	t.Helper()
	cache, err := NewTrackCache(":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory cache: %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestTrackCache_MissThenHit(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	_, hit, err := cache.Lookup(ctx, "Daft Punk", "One More Time")
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if hit {
		t.Fatal("empty cache should miss")
	}

	if err := cache.Store(ctx, "Daft Punk", "One More Time", "spotify:track:aaa"); err != nil {
		t.Fatalf("Store() error: %v", err)
	}

	uri, hit, err := cache.Lookup(ctx, "Daft Punk", "One More Time")
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if !hit || uri != "spotify:track:aaa" {
		t.Errorf("expected cached URI, got hit=%v uri=%q", hit, uri)
	}
}

func TestTrackCache_NegativeEntry(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	if err := cache.Store(ctx, "Unknown", "Nothing", ""); err != nil {
		t.Fatalf("Store() error: %v", err)
	}

	uri, hit, err := cache.Lookup(ctx, "Unknown", "Nothing")
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if !hit {
		t.Error("negative entries should still hit")
	}
	if uri != "" {
		t.Errorf("negative entry should carry an empty URI, got %q", uri)
	}
}

func TestTrackCache_KeyNormalization(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	if err := cache.Store(ctx, "  Daft Punk ", "One More Time", "spotify:track:aaa"); err != nil {
		t.Fatalf("Store() error: %v", err)
	}

	uri, hit, err := cache.Lookup(ctx, "daft punk", "ONE MORE TIME")
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if !hit || uri != "spotify:track:aaa" {
		t.Errorf("lookup should be case and whitespace insensitive, got hit=%v uri=%q", hit, uri)
	}
}

func TestTrackCache_Overwrite(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	if err := cache.Store(ctx, "A", "T", ""); err != nil {
		t.Fatalf("Store() error: %v", err)
	}
	if err := cache.Store(ctx, "A", "T", "spotify:track:new"); err != nil {
		t.Fatalf("Store() error: %v", err)
	}

	uri, hit, err := cache.Lookup(ctx, "A", "T")
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if !hit || uri != "spotify:track:new" {
		t.Errorf("later store should win, got hit=%v uri=%q", hit, uri)
	}
}
