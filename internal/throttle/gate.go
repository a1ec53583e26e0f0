// Package throttle paces outbound API calls with sliding-window rate
// limiting.
package throttle

import (
	"context"
	"sync"
	"time"
)

const (
	// windowDuration is the fixed time window for rate accounting (always 1 minute)
	windowDuration = 60 * time.Second
	// cleanupInterval is how often we clean up expired entries
	cleanupInterval = 10 * time.Minute
	// idleTimeout is how long before we remove idle key entries
	idleTimeout = 10 * time.Minute
)

// Gate limits calls per key to a fixed budget per minute. Callers block
// in Wait until a slot frees up, which keeps a sequential sync loop
// under the external API's rate limit without scattering sleeps.
type Gate struct {
	limitPerMinute int
	entries        map[string]*keyEntry
	mutex          sync.Mutex
	stopCleanup    chan struct{}
}

// keyEntry tracks call timestamps for a single key
type keyEntry struct {
	timestamps []time.Time
	lastSeen   time.Time
}

// New creates a Gate allowing limitPerMinute calls per key per minute.
// A non-positive limit disables pacing entirely.
func New(limitPerMinute int) *Gate {
	g := &Gate{
		limitPerMinute: limitPerMinute,
		entries:        make(map[string]*keyEntry),
		stopCleanup:    make(chan struct{}),
	}

	go g.cleanup()

	return g
}

// Stop stops the background cleanup goroutine.
func (g *Gate) Stop() {
	close(g.stopCleanup)
}

// Wait blocks until a call slot for key is available or ctx is done.
func (g *Gate) Wait(ctx context.Context, key string) error {
	if g.limitPerMinute <= 0 {
		return nil
	}

	for {
		delay, ok := g.tryAcquire(key)
		if ok {
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryAcquire records a call for key if the window has room. When full
// it returns how long until the oldest call leaves the window.
func (g *Gate) tryAcquire(key string) (time.Duration, bool) {
	now := time.Now()

	g.mutex.Lock()
	defer g.mutex.Unlock()

	entry, exists := g.entries[key]
	if !exists {
		entry = &keyEntry{
			timestamps: make([]time.Time, 0, g.limitPerMinute+1),
		}
		g.entries[key] = entry
	}
	entry.lastSeen = now

	windowStart := now.Add(-windowDuration)
	valid := entry.timestamps[:0]
	for _, ts := range entry.timestamps {
		if ts.After(windowStart) {
			valid = append(valid, ts)
		}
	}
	entry.timestamps = valid

	if len(entry.timestamps) < g.limitPerMinute {
		entry.timestamps = append(entry.timestamps, now)
		return 0, true
	}

	wait := entry.timestamps[0].Sub(windowStart)
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait, false
}

func (g *Gate) cleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.stopCleanup:
			return
		case <-ticker.C:
			g.removeIdleEntries()
		}
	}
}

func (g *Gate) removeIdleEntries() {
	cutoff := time.Now().Add(-idleTimeout)

	g.mutex.Lock()
	defer g.mutex.Unlock()

	for key, entry := range g.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(g.entries, key)
		}
	}
}
