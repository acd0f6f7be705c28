package cache

import (
	"context"
	"sync"

	"github.com/sentryflow/livetail/internal/model"
)

// BackfillFunc retrieves a cached snapshot for a source from the feed's
// short-term cache. It is an out-of-band call with no ordering guarantee
// relative to live delivery; the projector reconciles the two.
type BackfillFunc func(ctx context.Context, source string) ([]model.LogEntry, error)

// SourceCache maps source identifiers to bounded FIFO buffers. Every
// append lands in the source's own buffer and the reserved aggregate
// bucket, so relative arrival order is preserved within each.
//
// The connection manager is the only writer; the mutex exists because the
// view goroutine takes snapshots concurrently.
type SourceCache struct {
	mu       sync.RWMutex
	capacity int
	buffers  map[string]*Ring
	backfill BackfillFunc
}

// NewSourceCache creates an empty cache with the given per-source capacity.
func NewSourceCache(capacity int) *SourceCache {
	if capacity <= 0 {
		capacity = model.DefaultPerSourceCapacity
	}
	return &SourceCache{
		capacity: capacity,
		buffers:  make(map[string]*Ring),
	}
}

// SetBackfillFunc wires the out-of-band history fetcher used by
// FetchBackfill. A nil func makes FetchBackfill return nothing.
func (c *SourceCache) SetBackfillFunc(fn BackfillFunc) {
	c.mu.Lock()
	c.backfill = fn
	c.mu.Unlock()
}

// Capacity returns the per-source capacity.
func (c *SourceCache) Capacity() int { return c.capacity }

// Append pushes an entry into the source's buffer and into the aggregate
// bucket, evicting the oldest on overflow. Never blocks.
func (c *SourceCache) Append(source string, entry model.LogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ring(source).Push(entry)
	if source != model.SourceAll {
		c.ring(model.SourceAll).Push(entry)
	}
}

// Snapshot returns a point-in-time copy of a source's contents in arrival
// order. Unknown sources yield an empty slice.
func (c *SourceCache) Snapshot(source string) []model.LogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.buffers[source]
	if !ok {
		return nil
	}
	return r.Snapshot()
}

// Len returns the number of entries held for a source.
func (c *SourceCache) Len(source string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.buffers[source]
	if !ok {
		return 0
	}
	return r.Len()
}

// Clear empties one source's buffer.
func (c *SourceCache) Clear(source string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.buffers[source]; ok {
		r.Clear()
	}
}

// ClearAll empties every buffer.
func (c *SourceCache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.buffers {
		r.Clear()
	}
}

// FetchBackfill retrieves cached history for a source from the feed's
// short-term cache. A failure is non-fatal for callers: they fall back to
// whatever is already buffered locally.
func (c *SourceCache) FetchBackfill(ctx context.Context, source string) ([]model.LogEntry, error) {
	c.mu.RLock()
	fn := c.backfill
	c.mu.RUnlock()
	if fn == nil {
		return nil, nil
	}
	return fn(ctx, source)
}

// ring returns the buffer for a source, creating it on first use.
// Callers must hold the write lock.
func (c *SourceCache) ring(source string) *Ring {
	r, ok := c.buffers[source]
	if !ok {
		r = NewRing(c.capacity)
		c.buffers[source] = r
	}
	return r
}
