// Package stream owns the push-connection lifecycle: dialing the feed,
// the reconnection state machine, subscription state, and routing of
// accepted entries into the session caches.
package stream

// State is the connection lifecycle state. Exactly one instance exists
// per manager; transitions are the only legal way to change it.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is a point-in-time copy of the manager's observable state.
type Status struct {
	State     State
	Attempts  int    // reconnect attempts consumed since the last Connected
	LastError string // human-readable, empty when healthy
}
