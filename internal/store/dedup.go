// Package store provides deduplication and track-resolution caching for
// playlist updates.
package store

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DedupStore is a thread-safe set of track URIs, used to keep playlist
// appends free of duplicates. A Bloom filter front-ends the membership
// map so misses stay cheap; an LRU tracks insertion order for eviction
// once capacity is exceeded.
type DedupStore struct {
	uris              map[string]struct{}
	bloom             *bloom.BloomFilter
	lru               *lru.Cache[string, struct{}]
	mutex             sync.RWMutex
	capacity          int
	falsePositiveRate float64
}

func NewDedupStore(capacity int, falsePositiveRate float64) *DedupStore {
	// One extra slot so the LRU never auto-evicts before evictOldest
	// has read the true oldest entry.
	lruCache, _ := lru.New[string, struct{}](capacity + 1)

	return &DedupStore{
		uris:              make(map[string]struct{}),
		bloom:             bloom.NewWithEstimates(uint(capacity), falsePositiveRate),
		lru:               lruCache,
		capacity:          capacity,
		falsePositiveRate: falsePositiveRate,
	}
}

// Has reports whether uri is in the store.
func (ds *DedupStore) Has(uri string) bool {
	ds.mutex.RLock()
	defer ds.mutex.RUnlock()

	if !ds.bloom.TestString(uri) {
		return false
	}

	_, exists := ds.uris[uri]
	return exists
}

// Add inserts uri, evicting the oldest entry when over capacity.
func (ds *DedupStore) Add(uri string) {
	ds.mutex.Lock()
	defer ds.mutex.Unlock()
	ds.add(uri)
}

// Load clears the store and fills it with the given URIs, typically a
// playlist's current contents. Empty strings are ignored.
func (ds *DedupStore) Load(uris []string) {
	ds.mutex.Lock()
	defer ds.mutex.Unlock()

	ds.reset()

	for _, uri := range uris {
		if uri == "" {
			continue
		}
		ds.add(uri)
	}
}

// add inserts one uri and immediately evicts when over capacity, so the
// map never grows past capacity+1 and the LRU still holds the oldest
// entry at eviction time. Caller holds the write lock.
func (ds *DedupStore) add(uri string) {
	if _, exists := ds.uris[uri]; exists {
		return
	}

	ds.uris[uri] = struct{}{}
	ds.bloom.AddString(uri)
	ds.lru.Add(uri, struct{}{})

	if len(ds.uris) > ds.capacity {
		ds.evictOldest()
	}
}

// Size returns the number of URIs currently stored.
func (ds *DedupStore) Size() int {
	ds.mutex.RLock()
	defer ds.mutex.RUnlock()
	return len(ds.uris)
}

// Clear removes all URIs from the store.
func (ds *DedupStore) Clear() {
	ds.mutex.Lock()
	defer ds.mutex.Unlock()
	ds.reset()
}

func (ds *DedupStore) reset() {
	ds.uris = make(map[string]struct{})
	// Bloom filters don't support removal, so rebuild on reset.
	ds.bloom = bloom.NewWithEstimates(uint(ds.capacity), ds.falsePositiveRate)
	ds.lru.Purge()
}

func (ds *DedupStore) evictOldest() {
	oldest, _, ok := ds.lru.GetOldest()
	if !ok {
		return
	}
	delete(ds.uris, oldest)
	ds.lru.Remove(oldest)
}
