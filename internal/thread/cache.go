// internal/thread/cache.go
package thread

import (
	"sync"

	"github.com/user/threadkeeper/internal/types"
)

// Cache is the shared, thread-id-keyed read cache. Multiple Manager
// instances serving one store share a single Cache; every write path
// invalidates the affected thread's entry before any subsequent read in
// the same logical operation, so a writer never observes its own stale
// data.
type Cache struct {
	mu      sync.RWMutex
	entries map[types.ThreadID][]*types.Event

	lockMu sync.Mutex
	locks  map[types.ThreadID]*sync.Mutex
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[types.ThreadID][]*types.Event),
		locks:   make(map[types.ThreadID]*sync.Mutex),
	}
}

// Get returns the cached event history for a thread, if present.
func (c *Cache) Get(id types.ThreadID) ([]*types.Event, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	events, ok := c.entries[id]
	return events, ok
}

// Put stores the event history for a thread.
func (c *Cache) Put(id types.ThreadID, events []*types.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = events
}

// Invalidate drops the cached entry for a thread.
func (c *Cache) Invalidate(id types.ThreadID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// CompactLock returns the per-thread compaction mutex, creating it on
// first use. The lock lives on the Cache so that every Manager sharing the
// cache serializes compactions of a thread on the same mutex.
func (c *Cache) CompactLock(id types.ThreadID) *sync.Mutex {
	c.lockMu.Lock()
	defer c.lockMu.Unlock()
	if lock, ok := c.locks[id]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	c.locks[id] = lock
	return lock
}
