package stream

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sentryflow/livetail/internal/cache"
	"github.com/sentryflow/livetail/internal/model"
	"github.com/sentryflow/livetail/internal/wire"
)

// fakeTransport is a scriptable connection: tests feed frames and close
// errors through channels.
type fakeTransport struct {
	frames chan []byte
	errs   chan error

	mu     sync.Mutex
	sent   []wire.ControlFrame
	closed chan struct{}
	once   sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		frames: make(chan []byte, 64),
		errs:   make(chan error, 4),
		closed: make(chan struct{}),
	}
}

func (t *fakeTransport) Read() ([]byte, error) {
	select {
	case data := <-t.frames:
		return data, nil
	case err := <-t.errs:
		return nil, err
	case <-t.closed:
		return nil, &CloseError{Code: NormalClosure}
	}
}

func (t *fakeTransport) Send(v interface{}) error {
	cf, ok := v.(wire.ControlFrame)
	if !ok {
		return fmt.Errorf("unexpected send type %T", v)
	}
	t.mu.Lock()
	t.sent = append(t.sent, cf)
	t.mu.Unlock()
	return nil
}

func (t *fakeTransport) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}

func (t *fakeTransport) sentFrames() []wire.ControlFrame {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]wire.ControlFrame(nil), t.sent...)
}

func (t *fakeTransport) deliverLog(tm time.Time, source, line string) {
	data, _ := wire.EncodeLog(model.LogEntry{Timestamp: tm, Source: source, RawLine: line})
	t.frames <- data
}

// fakeDialer hands out scripted transports, or errors when the script
// says so.
type fakeDialer struct {
	mu         sync.Mutex
	transports []*fakeTransport
	failures   int // dials to fail before succeeding
	dials      int
}

func (d *fakeDialer) dial(_ context.Context, _ string) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.failures > 0 {
		d.failures--
		return nil, fmt.Errorf("connection refused")
	}
	t := newFakeTransport()
	d.transports = append(d.transports, t)
	return t, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) latest() *fakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.transports) == 0 {
		return nil
	}
	return d.transports[len(d.transports)-1]
}

func newTestManager(t *testing.T, d *fakeDialer, delay time.Duration) (*Manager, *cache.SourceCache, *cache.StreamBuffer) {
	t.Helper()
	sc := cache.NewSourceCache(100)
	sb := cache.NewStreamBuffer(100)
	m := NewManager(Config{
		URL:                  "ws://test/ws",
		MaxReconnectAttempts: 5,
		ReconnectDelay:       delay,
		Dialer:               d.dial,
	}, sc, sb)
	m.Start()
	t.Cleanup(m.Close)
	return m, sc, sb
}

func waitForState(t *testing.T, m *Manager, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.Status().State == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %s (current %s)", want, m.Status().State)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func TestConnectAndDeliver(t *testing.T) {
	d := &fakeDialer{}
	m, sc, sb := newTestManager(t, d, time.Millisecond)

	m.Connect()
	waitForState(t, m, Connected)

	ft := d.latest()
	ft.deliverLog(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), "auth", "Failed password")
	ft.deliverLog(time.Date(2025, 6, 1, 10, 0, 1, 0, time.UTC), "nginx", "GET / 200")

	waitFor(t, func() bool { return sb.Len() == 2 }, "stream buffer to fill")
	if n := sc.Len("auth"); n != 1 {
		t.Errorf("auth cache len = %d, want 1", n)
	}
	if n := sc.Len(model.SourceAll); n != 2 {
		t.Errorf("all cache len = %d, want 2", n)
	}
}

func TestMalformedFrameIsDropped(t *testing.T) {
	d := &fakeDialer{}
	m, _, sb := newTestManager(t, d, time.Millisecond)

	m.Connect()
	waitForState(t, m, Connected)

	ft := d.latest()
	ft.frames <- []byte(`{"type":"telemetry","garbage":true}`)
	ft.frames <- []byte(`not even json`)
	ft.deliverLog(time.Now(), "auth", "still alive")

	waitFor(t, func() bool { return sb.Len() == 1 }, "valid entry after corrupt frames")
	if m.Status().State != Connected {
		t.Errorf("state = %s after corrupt frames, want connected", m.Status().State)
	}
}

func TestNormalCloseDoesNotReconnect(t *testing.T) {
	d := &fakeDialer{}
	m, _, _ := newTestManager(t, d, time.Millisecond)

	m.Connect()
	waitForState(t, m, Connected)

	d.latest().errs <- &CloseError{Code: NormalClosure, Reason: "bye"}
	waitForState(t, m, Disconnected)

	time.Sleep(20 * time.Millisecond)
	if n := d.dialCount(); n != 1 {
		t.Errorf("dial count = %d after normal close, want 1", n)
	}
}

func TestAbnormalCloseReconnectsAndRecovers(t *testing.T) {
	d := &fakeDialer{}
	m, _, _ := newTestManager(t, d, time.Millisecond)

	m.Connect()
	waitForState(t, m, Connected)

	d.latest().errs <- &CloseError{Code: 1006, Reason: "going away"}
	waitFor(t, func() bool { return d.dialCount() == 2 }, "redial")
	waitForState(t, m, Connected)

	// Attempt counter resets on each successful connect.
	if got := m.Status().Attempts; got != 0 {
		t.Errorf("attempts after recovery = %d, want 0", got)
	}
}

func TestReconnectExhaustionEndsInFailed(t *testing.T) {
	d := &fakeDialer{failures: 100}
	m, _, _ := newTestManager(t, d, time.Millisecond)

	m.Connect()
	waitForState(t, m, Failed)

	// Initial dial plus at most MaxReconnectAttempts retries.
	if n := d.dialCount(); n > 6 {
		t.Errorf("dial count = %d, want <= 6", n)
	}
	if m.Status().LastError == "" {
		t.Error("expected terminal error message in status")
	}

	// Failed is terminal without an explicit connect.
	time.Sleep(20 * time.Millisecond)
	before := d.dialCount()
	time.Sleep(20 * time.Millisecond)
	if d.dialCount() != before {
		t.Error("manager kept dialing in Failed state")
	}
}

func TestExplicitConnectRecoversFromFailed(t *testing.T) {
	d := &fakeDialer{failures: 100}
	m, _, _ := newTestManager(t, d, time.Millisecond)

	m.Connect()
	waitForState(t, m, Failed)

	d.mu.Lock()
	d.failures = 0
	d.mu.Unlock()

	m.Connect()
	waitForState(t, m, Connected)
	if got := m.Status().Attempts; got != 0 {
		t.Errorf("attempts = %d after manual recovery, want 0", got)
	}
}

func TestDisconnectCancelsPendingReconnect(t *testing.T) {
	d := &fakeDialer{}
	m, _, _ := newTestManager(t, d, 200*time.Millisecond)

	m.Connect()
	waitForState(t, m, Connected)

	d.latest().errs <- &CloseError{Code: 1006}
	waitForState(t, m, Reconnecting)

	m.Disconnect()
	waitForState(t, m, Disconnected)

	// Wait past the reconnect delay: the cancelled timer must not fire.
	time.Sleep(300 * time.Millisecond)
	if n := d.dialCount(); n != 1 {
		t.Errorf("dial count = %d after disconnect, want 1", n)
	}
	if m.Status().State != Disconnected {
		t.Errorf("state = %s, want disconnected", m.Status().State)
	}
}

func TestDisconnectLeavesCachesIntact(t *testing.T) {
	d := &fakeDialer{}
	m, sc, sb := newTestManager(t, d, time.Millisecond)

	m.Connect()
	waitForState(t, m, Connected)
	d.latest().deliverLog(time.Now(), "auth", "kept")
	waitFor(t, func() bool { return sb.Len() == 1 }, "entry delivery")

	m.Disconnect()
	waitForState(t, m, Disconnected)

	if sb.Len() != 1 || sc.Len("auth") != 1 {
		t.Error("disconnect cleared session caches")
	}
}

func TestSubscribeOutsideConnectedIsNoOp(t *testing.T) {
	d := &fakeDialer{}
	m, _, _ := newTestManager(t, d, time.Millisecond)

	m.Subscribe("auth")
	m.Unsubscribe("auth")

	m.Connect()
	waitForState(t, m, Connected)
	waitFor(t, func() bool { return d.latest() != nil }, "transport")

	// The pre-connect subscribe must not have been queued.
	time.Sleep(10 * time.Millisecond)
	if got := d.latest().sentFrames(); len(got) != 0 {
		t.Errorf("frames sent after connect = %v, want none", got)
	}
}

func TestSubscribeIsIdempotent(t *testing.T) {
	d := &fakeDialer{}
	m, _, _ := newTestManager(t, d, time.Millisecond)

	m.Connect()
	waitForState(t, m, Connected)

	m.Subscribe("auth")
	m.Subscribe("auth")
	waitFor(t, func() bool { return len(d.latest().sentFrames()) >= 1 }, "subscribe frame")

	time.Sleep(10 * time.Millisecond)
	frames := d.latest().sentFrames()
	if len(frames) != 1 || frames[0].Type != wire.TypeSubscribe || frames[0].LogSource != "auth" {
		t.Errorf("sent frames = %v, want exactly one subscribe", frames)
	}
}

func TestResubscribeAfterReconnect(t *testing.T) {
	d := &fakeDialer{}
	m, _, _ := newTestManager(t, d, time.Millisecond)

	m.Connect()
	waitForState(t, m, Connected)
	m.Subscribe("auth")
	waitFor(t, func() bool { return len(d.latest().sentFrames()) == 1 }, "subscribe frame")

	first := d.latest()
	first.errs <- &CloseError{Code: 1006}
	waitFor(t, func() bool { return d.dialCount() == 2 }, "redial")
	waitForState(t, m, Connected)

	waitFor(t, func() bool {
		frames := d.latest().sentFrames()
		return len(frames) == 1 && frames[0].LogSource == "auth"
	}, "resubscribe on the new connection")
}

func TestUnsubscribeSendsFrame(t *testing.T) {
	d := &fakeDialer{}
	m, _, _ := newTestManager(t, d, time.Millisecond)

	m.Connect()
	waitForState(t, m, Connected)

	m.Subscribe("auth")
	m.Unsubscribe("auth")
	waitFor(t, func() bool { return len(d.latest().sentFrames()) == 2 }, "both frames")

	frames := d.latest().sentFrames()
	if frames[1].Type != wire.TypeUnsubscribe || frames[1].LogSource != "auth" {
		t.Errorf("second frame = %v, want unsubscribe auth", frames[1])
	}

	// Unsubscribing again sends nothing.
	m.Unsubscribe("auth")
	time.Sleep(10 * time.Millisecond)
	if got := len(d.latest().sentFrames()); got != 2 {
		t.Errorf("frame count = %d, want 2", got)
	}
}

func TestNoticesCarryEntriesAndStates(t *testing.T) {
	d := &fakeDialer{}
	m, _, _ := newTestManager(t, d, time.Millisecond)

	m.Connect()
	waitForState(t, m, Connected)

	sub, _ := wire.EncodeSubscribed("auth")
	d.latest().frames <- sub
	d.latest().deliverLog(time.Now(), "auth", "hello")

	var sawSubscribed, sawEntry bool
	deadline := time.After(2 * time.Second)
	for !(sawSubscribed && sawEntry) {
		select {
		case n := <-m.Notices():
			switch n := n.(type) {
			case SubscribedNotice:
				if n.Source == "auth" {
					sawSubscribed = true
				}
			case EntryNotice:
				if n.Entry.RawLine == "hello" {
					sawEntry = true
				}
			}
		case <-deadline:
			t.Fatalf("missing notices: subscribed=%v entry=%v", sawSubscribed, sawEntry)
		}
	}
}
