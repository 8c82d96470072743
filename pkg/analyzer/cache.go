package analyzer

import (
	"sync"

	"github.com/Sumatoshi-tech/codefang/pkg/gitlib"
	"github.com/Sumatoshi-tech/codefang/pkg/manifest"
)

// blobCache memoizes manifest parse results keyed by (blob hash, path),
// adapted from the teacher's blob LRU cache but unbounded: a single index
// run never needs eviction, and the cache is discarded with the run.
type blobCache struct {
	mu      sync.Mutex
	entries map[blobCacheKey]blobCacheEntry
	hits    int64
	misses  int64
}

type blobCacheKey struct {
	hash gitlib.Hash
	path string
}

type blobCacheEntry struct {
	result *manifest.Result
	ok     bool
}

func newBlobCache() *blobCache {
	return &blobCache{entries: make(map[blobCacheKey]blobCacheEntry)}
}

// get returns the cached parse for (hash, path), computing and storing it
// via compute on a miss. compute's error is swallowed into a negative
// cache entry (ParseFailure is absorbed per the error handling design) —
// only the ok flag and result are retained.
func (c *blobCache) get(hash gitlib.Hash, path string, compute func() (*manifest.Result, bool, error)) (*manifest.Result, bool) {
	key := blobCacheKey{hash: hash, path: path}

	c.mu.Lock()
	if entry, found := c.entries[key]; found {
		c.hits++
		c.mu.Unlock()

		return entry.result, entry.ok
	}
	c.mu.Unlock()

	result, ok, _ := compute()

	c.mu.Lock()
	c.entries[key] = blobCacheEntry{result: result, ok: ok}
	c.misses++
	c.mu.Unlock()

	return result, ok
}

// Stats reports cache hit/miss counters for progress/telemetry reporting.
func (c *blobCache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.hits, c.misses
}
