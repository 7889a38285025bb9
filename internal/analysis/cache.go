package analysis

import (
	"container/list"
	"sync"
	"time"

	"github.com/banshee-data/ambient.report/internal/timeutil"
)

const (
	// defaultCacheTTL is the freshness window after which a cached result is
	// recomputed.
	defaultCacheTTL = 5 * time.Minute

	// maxCacheEntries bounds the cache so many distinct ad-hoc range queries
	// cannot grow it without limit. Least-recently-used entries go first.
	maxCacheEntries = 256
)

type cacheEntry struct {
	key     string
	value   interface{}
	created time.Time
}

// inflightCall tracks one in-progress compute so concurrent callers for the
// same key wait on it instead of computing it again.
type inflightCall struct {
	done  chan struct{}
	value interface{}
	err   error
}

// cache memoizes loader results and derived computations per engine
// instance. Entries expire after the TTL and are evicted lazily on the next
// access; the LRU bound evicts eagerly on insert. Misses are deduplicated
// per key through the inflight map, so concurrent callers never compute the
// same key twice, while the compute itself runs outside the mutex: engine
// operations recurse into the cache for their loader key.
type cache struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
	inflight map[string]*inflightCall
	gen      uint64 // bumped by purge; results computed before a purge are stale
	ttl      time.Duration
	clock    timeutil.Clock
}

func newCache(clock timeutil.Clock, ttl time.Duration) *cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &cache{
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		inflight: make(map[string]*inflightCall),
		ttl:      ttl,
		clock:    clock,
	}
}

// getOrCompute returns the cached value for key when it is still fresh;
// otherwise it runs compute, stores the result, and returns it. Errors are
// never cached. Callers hitting an in-progress compute for the same key
// share its result rather than starting their own.
func (c *cache) getOrCompute(key string, compute func() (interface{}, error)) (interface{}, error) {
	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*cacheEntry)
		if c.clock.Since(entry.created) < c.ttl {
			c.order.MoveToFront(el)
			c.mu.Unlock()
			return entry.value, nil
		}
		// Stale entry; drop it before recomputing.
		c.order.Remove(el)
		delete(c.entries, key)
	}

	if call, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		<-call.done
		return call.value, call.err
	}

	call := &inflightCall{done: make(chan struct{})}
	c.inflight[key] = call
	gen := c.gen
	c.mu.Unlock()

	// Holding the mutex across compute would deadlock: every operation's
	// compute re-enters the cache through the loader key.
	call.value, call.err = compute()
	close(call.done)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, key)
	if call.err != nil || gen != c.gen {
		// Errors are not cached; a purge while computing means the result
		// pre-dates data that has already arrived.
		return call.value, call.err
	}

	el := c.order.PushFront(&cacheEntry{key: key, value: call.value, created: c.clock.Now()})
	c.entries[key] = el
	for c.order.Len() > maxCacheEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
	return call.value, nil
}

// purge drops every entry and marks in-flight computes stale. Used by the
// ingest path on every accepted reading and by tests.
func (c *cache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// len reports the current entry count.
func (c *cache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
