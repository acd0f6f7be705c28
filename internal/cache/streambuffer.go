package cache

import (
	"sync"

	"github.com/sentryflow/livetail/internal/model"
)

// StreamBuffer is the single bounded sequence of the most recent entries
// across all sources: what has streamed in during this session,
// independent of per-source retention. The projector overlays it on top
// of cache snapshots as the live tail.
type StreamBuffer struct {
	mu   sync.RWMutex
	ring *Ring
}

// NewStreamBuffer creates an empty buffer with the given capacity.
func NewStreamBuffer(capacity int) *StreamBuffer {
	return &StreamBuffer{ring: NewRing(capacity)}
}

// Push appends an entry, evicting the oldest on overflow.
func (b *StreamBuffer) Push(entry model.LogEntry) {
	b.mu.Lock()
	b.ring.Push(entry)
	b.mu.Unlock()
}

// All returns a point-in-time copy of the contents in arrival order.
func (b *StreamBuffer) All() []model.LogEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ring.Snapshot()
}

// Len returns the number of entries currently held.
func (b *StreamBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ring.Len()
}

// Clear empties the buffer.
func (b *StreamBuffer) Clear() {
	b.mu.Lock()
	b.ring.Clear()
	b.mu.Unlock()
}
