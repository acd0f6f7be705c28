// Package feed implements the development feed server: a broadcast hub
// over the ingest pipeline plus the WebSocket/HTTP surface clients
// connect to.
package feed

import (
	"sync"
	"sync/atomic"

	"github.com/sentryflow/livetail/internal/cache"
	"github.com/sentryflow/livetail/internal/model"
)

const subscriberBuffer = 1024

// Subscriber is one connected client's delivery queue with its
// subscription set. Entries for sources the client has not subscribed to
// are not delivered.
type Subscriber struct {
	ch      chan model.LogEntry
	mu      sync.Mutex
	sources map[string]struct{}
}

// Entries returns the delivery channel. Closed when the subscriber is
// removed from the hub.
func (s *Subscriber) Entries() <-chan model.LogEntry { return s.ch }

// Subscribe adds a source to the subscriber's set. Subscribing to the
// aggregate source delivers everything.
func (s *Subscriber) Subscribe(source string) {
	s.mu.Lock()
	s.sources[source] = struct{}{}
	s.mu.Unlock()
}

// Unsubscribe removes a source from the set.
func (s *Subscriber) Unsubscribe(source string) {
	s.mu.Lock()
	delete(s.sources, source)
	s.mu.Unlock()
}

func (s *Subscriber) wants(source string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sources[model.SourceAll]; ok {
		return true
	}
	_, ok := s.sources[source]
	return ok
}

// Hub fans published entries out to subscribers and keeps the short-term
// per-source cache that backs the backfill endpoint.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber]struct{}
	cache       *cache.SourceCache
	dropped     atomic.Int64
}

// NewHub creates a hub with the given short-term cache capacity.
func NewHub(cacheCapacity int) *Hub {
	return &Hub{
		subscribers: make(map[*Subscriber]struct{}),
		cache:       cache.NewSourceCache(cacheCapacity),
	}
}

// Register adds a new subscriber with an empty subscription set.
func (h *Hub) Register() *Subscriber {
	sub := &Subscriber{
		ch:      make(chan model.LogEntry, subscriberBuffer),
		sources: make(map[string]struct{}),
	}
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Unregister removes a subscriber and closes its channel.
func (h *Hub) Unregister(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[sub]; !ok {
		return
	}
	delete(h.subscribers, sub)
	close(sub.ch)
}

// Publish caches an entry and delivers it to every subscriber whose set
// matches its source. A full subscriber queue drops the entry for that
// subscriber only.
func (h *Hub) Publish(entry model.LogEntry) {
	h.cache.Append(entry.Source, entry)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subscribers {
		if !sub.wants(entry.Source) {
			continue
		}
		select {
		case sub.ch <- entry:
		default:
			h.dropped.Add(1)
		}
	}
}

// CacheSnapshot returns the short-term cached entries for a source.
func (h *Hub) CacheSnapshot(source string) []model.LogEntry {
	return h.cache.Snapshot(source)
}

// Dropped returns the total entries dropped due to slow subscribers.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// SubscriberCount returns the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close unregisters every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers {
		delete(h.subscribers, sub)
		close(sub.ch)
	}
}
