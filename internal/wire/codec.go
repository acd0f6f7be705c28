// Package wire defines the JSON frame protocol spoken between the live
// feed and its clients, and decodes inbound frames into typed events.
package wire

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sentryflow/livetail/internal/model"
)

// Frame type discriminators. Inbound: connected, subscribed, raw_log,
// error. Outbound: subscribe, unsubscribe.
const (
	TypeConnected   = "connected"
	TypeSubscribed  = "subscribed"
	TypeRawLog      = "raw_log"
	TypeError       = "error"
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
)

// Kind identifies the decoded event variant.
type Kind int

const (
	KindLog Kind = iota
	KindConnectedAck
	KindSubscribedAck
	KindServerError
)

// Event is one decoded inbound frame.
// Entry is set for KindLog, Source for KindSubscribedAck, and Message for
// KindConnectedAck and KindServerError.
type Event struct {
	Kind    Kind
	Entry   model.LogEntry
	Source  string
	Message string
}

// DecodeError reports a malformed inbound frame. Callers log and drop the
// frame; a corrupt frame must never terminate the stream.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("wire: decode: %s", e.Reason)
}

// frame is the superset of all inbound frame fields.
type frame struct {
	Type      string `json:"type"`
	Message   string `json:"message,omitempty"`
	LogSource string `json:"log_source,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	RawLine   string `json:"raw_line,omitempty"`
}

// ControlFrame is an outbound subscription control frame.
type ControlFrame struct {
	Type      string `json:"type"`
	LogSource string `json:"log_source"`
}

// Decode parses one inbound frame into a typed event.
func Decode(data []byte) (Event, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Event{}, &DecodeError{Reason: err.Error()}
	}

	switch f.Type {
	case TypeConnected:
		return Event{Kind: KindConnectedAck, Message: f.Message}, nil
	case TypeSubscribed:
		if f.LogSource == "" {
			return Event{}, &DecodeError{Reason: "subscribed frame missing log_source"}
		}
		return Event{Kind: KindSubscribedAck, Source: f.LogSource}, nil
	case TypeError:
		return Event{Kind: KindServerError, Message: f.Message}, nil
	case TypeRawLog:
		entry, err := decodeEntry(f)
		if err != nil {
			return Event{}, err
		}
		return Event{Kind: KindLog, Entry: entry}, nil
	case "":
		return Event{}, &DecodeError{Reason: "frame missing type"}
	default:
		return Event{}, &DecodeError{Reason: fmt.Sprintf("unknown frame type %q", f.Type)}
	}
}

func decodeEntry(f frame) (model.LogEntry, error) {
	if f.LogSource == "" {
		return model.LogEntry{}, &DecodeError{Reason: "raw_log frame missing log_source"}
	}
	if f.RawLine == "" {
		return model.LogEntry{}, &DecodeError{Reason: "raw_log frame missing raw_line"}
	}
	ts, err := time.Parse(time.RFC3339Nano, f.Timestamp)
	if err != nil {
		return model.LogEntry{}, &DecodeError{Reason: fmt.Sprintf("raw_log frame has bad timestamp %q", f.Timestamp)}
	}
	return model.LogEntry{
		Timestamp: ts,
		Source:    f.LogSource,
		RawLine:   f.RawLine,
	}, nil
}

// DecodeControl parses an outbound-direction control frame. Used by the
// feed server's read pump.
func DecodeControl(data []byte) (ControlFrame, error) {
	var cf ControlFrame
	if err := json.Unmarshal(data, &cf); err != nil {
		return ControlFrame{}, &DecodeError{Reason: err.Error()}
	}
	switch cf.Type {
	case TypeSubscribe, TypeUnsubscribe:
	default:
		return ControlFrame{}, &DecodeError{Reason: fmt.Sprintf("unknown control type %q", cf.Type)}
	}
	if cf.LogSource == "" {
		return ControlFrame{}, &DecodeError{Reason: "control frame missing log_source"}
	}
	return cf, nil
}

// Subscribe builds a subscribe control frame for the given source.
func Subscribe(source string) ControlFrame {
	return ControlFrame{Type: TypeSubscribe, LogSource: source}
}

// Unsubscribe builds an unsubscribe control frame for the given source.
func Unsubscribe(source string) ControlFrame {
	return ControlFrame{Type: TypeUnsubscribe, LogSource: source}
}

// EncodeLog renders a raw_log frame for the given entry.
func EncodeLog(entry model.LogEntry) ([]byte, error) {
	return json.Marshal(frame{
		Type:      TypeRawLog,
		LogSource: entry.Source,
		Timestamp: entry.Timestamp.Format(time.RFC3339Nano),
		RawLine:   entry.RawLine,
	})
}

// EncodeConnected renders the post-upgrade greeting frame.
func EncodeConnected(message string) ([]byte, error) {
	return json.Marshal(frame{Type: TypeConnected, Message: message})
}

// EncodeSubscribed renders a subscription acknowledgement frame.
func EncodeSubscribed(source string) ([]byte, error) {
	return json.Marshal(frame{Type: TypeSubscribed, LogSource: source})
}

// EncodeServerError renders an error frame.
func EncodeServerError(message string) ([]byte, error) {
	return json.Marshal(frame{Type: TypeError, Message: message})
}
