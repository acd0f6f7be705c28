package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket close codes the manager cares about. A normal closure
// suppresses reconnection; everything else triggers the reconnect policy.
const (
	NormalClosure   = 1000
	AbnormalClosure = 1006
)

// CloseError reports that the transport closed with the given code.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("transport closed (code %d)", e.Code)
	}
	return fmt.Sprintf("transport closed (code %d): %s", e.Code, e.Reason)
}

// closeCode extracts the close code from a read error. Errors that carry
// no code (network failures, EOF) count as abnormal.
func closeCode(err error) int {
	var ce *CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return AbnormalClosure
}

// Transport is one live push connection to the feed. Read blocks until a
// frame arrives or the connection closes; Send writes a JSON control
// frame; Close terminates with a normal close code.
type Transport interface {
	Read() ([]byte, error)
	Send(v interface{}) error
	Close() error
}

// Dialer opens a Transport. Tests substitute fakes through this.
type Dialer func(ctx context.Context, url string) (Transport, error)

const (
	dialTimeout  = 5 * time.Second
	writeTimeout = 10 * time.Second
)

// DialWebSocket is the production dialer.
func DialWebSocket(ctx context.Context, url string) (Transport, error) {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, resp, err := dialer.DialContext(ctx, url, http.Header{})
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("stream: dial %s: %w", url, err)
	}
	return &wsTransport{conn: conn}, nil
}

// wsTransport adapts a gorilla connection to the Transport contract.
type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) Read() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	if err != nil {
		var wsErr *websocket.CloseError
		if errors.As(err, &wsErr) {
			return nil, &CloseError{Code: wsErr.Code, Reason: wsErr.Text}
		}
		return nil, err
	}
	return data, nil
}

func (t *wsTransport) Send(v interface{}) error {
	t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return t.conn.WriteJSON(v)
}

func (t *wsTransport) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return t.conn.Close()
}
