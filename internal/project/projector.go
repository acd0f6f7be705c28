// Package project merges cached history with the live tail for the
// selected source and produces the final renderable sequence.
package project

import (
	"sort"

	"github.com/sentryflow/livetail/internal/cache"
	"github.com/sentryflow/livetail/internal/model"
)

// Projector blends the stream buffer with per-source history into a
// single deduplicated, chronologically ordered sequence, and owns the
// tail-follow policy.
//
// Not safe for concurrent use: the hosting view drives it from a single
// update loop. Backfill results arrive asynchronously and are handed back
// via ResolveBackfill with the token from Select; a stale token is
// discarded rather than cancelling the in-flight fetch.
type Projector struct {
	buffer   *cache.StreamBuffer
	cache    *cache.SourceCache
	capacity int

	selected   string
	gen        uint64
	history    []model.LogEntry
	followTail bool
}

// New creates a projector over the session caches, selecting the
// aggregate source with tail-following on.
func New(sc *cache.SourceCache, sb *cache.StreamBuffer) *Projector {
	p := &Projector{
		buffer:     sb,
		cache:      sc,
		capacity:   sc.Capacity(),
		followTail: true,
	}
	p.Select(model.SourceAll)
	return p
}

// Selected returns the currently selected source.
func (p *Projector) Selected() string { return p.selected }

// FollowTail reports whether the view should auto-scroll to new entries.
func (p *Projector) FollowTail() bool { return p.followTail }

// SetFollowTail sets the tail-follow flag. Pure UI state; it never
// affects what Project returns.
func (p *Projector) SetFollowTail(follow bool) { p.followTail = follow }

// ToggleFollowTail flips the flag and returns the new value.
func (p *Projector) ToggleFollowTail() bool {
	p.followTail = !p.followTail
	return p.followTail
}

// Select switches the projected source. The local cache snapshot becomes
// the immediate history overlay; needBackfill reports whether the source
// is cold locally and an out-of-band fetch should be issued. The returned
// token identifies this selection for ResolveBackfill.
func (p *Projector) Select(source string) (token uint64, needBackfill bool) {
	p.gen++
	p.selected = source
	p.history = p.cache.Snapshot(source)
	return p.gen, len(p.history) == 0
}

// ResolveBackfill merges a completed backfill fetch into the history
// overlay. It reports false, and merges nothing, when the selection has
// moved on since the fetch was issued.
func (p *Projector) ResolveBackfill(token uint64, source string, entries []model.LogEntry) bool {
	if token != p.gen || source != p.selected {
		return false
	}
	p.history = append(p.history, entries...)
	return true
}

// ClearHistory drops the history overlay and the local cache for the
// selected source, so the next backfill starts fresh.
func (p *Projector) ClearHistory() {
	p.history = nil
	p.cache.Clear(p.selected)
}

// Project builds the render sequence: the stream buffer filtered to the
// selected source, overlaid with history entries whose dedup key is not
// already present, sorted ascending by timestamp with arrival order
// breaking ties, truncated to the newest capacity entries.
//
// The dedup set is rebuilt on every call, which is O(n) at the configured
// capacities; revisit if capacity grows by orders of magnitude.
func (p *Projector) Project() []model.LogEntry {
	live := p.liveEntries()

	seen := make(map[model.EntryKey]struct{}, len(live)+len(p.history))
	for _, e := range live {
		seen[e.Key()] = struct{}{}
	}

	merged := make([]model.LogEntry, 0, len(live)+len(p.history))
	for _, e := range p.history {
		key := e.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, e)
	}
	merged = append(merged, live...)

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})

	if len(merged) > p.capacity {
		merged = merged[len(merged)-p.capacity:]
	}
	return merged
}

func (p *Projector) liveEntries() []model.LogEntry {
	all := p.buffer.All()
	if p.selected == model.SourceAll {
		return all
	}
	filtered := all[:0:0]
	for _, e := range all {
		if e.Source == p.selected {
			filtered = append(filtered, e)
		}
	}
	return filtered
}
