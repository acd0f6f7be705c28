// Package cache holds the bounded in-memory retention for a stream-view
// session: per-source rings, the aggregate bucket, and the live tail.
package cache

import "github.com/sentryflow/livetail/internal/model"

// Ring is a bounded FIFO of log entries. Once capacity is reached, each
// push silently evicts the oldest entry. Not safe for concurrent use;
// callers own synchronization.
type Ring struct {
	buf  []model.LogEntry
	head int // index of the oldest entry
	size int
}

// NewRing creates a ring with the given capacity. Capacity must be
// positive; non-positive values fall back to the shared default.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = model.DefaultPerSourceCapacity
	}
	return &Ring{buf: make([]model.LogEntry, capacity)}
}

// Push appends an entry, evicting the oldest if the ring is full.
func (r *Ring) Push(entry model.LogEntry) {
	if r.size < len(r.buf) {
		r.buf[(r.head+r.size)%len(r.buf)] = entry
		r.size++
		return
	}
	r.buf[r.head] = entry
	r.head = (r.head + 1) % len(r.buf)
}

// Len returns the number of entries currently held.
func (r *Ring) Len() int { return r.size }

// Cap returns the ring capacity.
func (r *Ring) Cap() int { return len(r.buf) }

// Snapshot returns a point-in-time copy of the contents in arrival order.
func (r *Ring) Snapshot() []model.LogEntry {
	out := make([]model.LogEntry, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

// Clear empties the ring. Capacity is retained.
func (r *Ring) Clear() {
	r.head = 0
	r.size = 0
}
