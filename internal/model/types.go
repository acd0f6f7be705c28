package model

import "time"

// SourceAll is the reserved aggregate source. The cache bucket keyed by
// SourceAll receives every entry regardless of origin, and selecting it in
// the viewer shows the blended stream.
const SourceAll = "all"

// LogEntry represents a single log line received from the feed.
// It is the canonical type for caching, transport, and display, and is
// immutable once produced by the wire codec.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	RawLine   string    `json:"raw_line"`
}

// EntryKey identifies a logical event. Two entries sharing a key are
// treated as the same event when cached history and the live tail overlap.
type EntryKey struct {
	Timestamp int64 // unix nanoseconds
	RawLine   string
}

// Key returns the dedup key for the entry.
func (e LogEntry) Key() EntryKey {
	return EntryKey{Timestamp: e.Timestamp.UnixNano(), RawLine: e.RawLine}
}

// IngestEnvelope carries one raw log line with source metadata.
// It is the transport contract between feed input plugins and the hub.
type IngestEnvelope struct {
	Source string
	Line   string
}
