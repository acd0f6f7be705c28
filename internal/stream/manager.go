package stream

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sentryflow/livetail/internal/cache"
	"github.com/sentryflow/livetail/internal/model"
	"github.com/sentryflow/livetail/internal/wire"
)

// noticeBuffer bounds the observer channel. Overflowing notices are
// dropped; observers re-read the caches on the next notice or tick, so a
// drop only delays a refresh.
const noticeBuffer = 256

// Config holds manager tuning. Zero values fall back to the shared
// defaults.
type Config struct {
	URL                  string
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
	Dialer               Dialer // nil means DialWebSocket
}

// Notice is a manager-to-observer event.
type Notice interface{ notice() }

// StateNotice reports a state transition.
type StateNotice struct{ Status Status }

// EntryNotice reports that a log entry was accepted into the caches.
type EntryNotice struct{ Entry model.LogEntry }

// SubscribedNotice reports a subscription acknowledgement from the feed.
type SubscribedNotice struct{ Source string }

func (StateNotice) notice()      {}
func (EntryNotice) notice()      {}
func (SubscribedNotice) notice() {}

// event is a message from a dial or read goroutine back to the loop.
// Events are tagged with the connection generation so anything from a
// superseded connection is ignored.
type event struct {
	gen    uint64
	opened Transport // set when a dial completed
	frame  []byte    // set when a frame arrived
	err    error     // set when the connection closed or the dial failed
}

// Manager owns the transport lifecycle, subscription state, and the
// reconnection policy. All mutation runs on a single loop goroutine;
// exported methods enqueue commands onto that loop and never touch state
// directly, so transitions and appends are serialized.
type Manager struct {
	cfg    Config
	cache  *cache.SourceCache
	buffer *cache.StreamBuffer

	cmds    chan func()
	events  chan event
	notices chan Notice
	done    chan struct{}

	closeOnce sync.Once

	statusMu sync.RWMutex
	status   Status

	// Loop-owned; never touched outside the loop goroutine.
	state     State
	attempts  int
	lastErr   string
	transport Transport
	gen       uint64
	reconnect *time.Timer
	subs      map[string]struct{}
}

// NewManager creates a manager wired to the given session caches. Start
// must be called before any other method.
func NewManager(cfg Config, sc *cache.SourceCache, sb *cache.StreamBuffer) *Manager {
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = model.DefaultMaxReconnectAttempts
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = model.DefaultReconnectDelay
	}
	if cfg.Dialer == nil {
		cfg.Dialer = DialWebSocket
	}
	return &Manager{
		cfg:     cfg,
		cache:   sc,
		buffer:  sb,
		cmds:    make(chan func(), 16),
		events:  make(chan event, 256),
		notices: make(chan Notice, noticeBuffer),
		done:    make(chan struct{}),
		subs:    make(map[string]struct{}),
	}
}

// Start launches the manager loop.
func (m *Manager) Start() {
	go m.loop()
}

// Close tears the manager down: closes the transport, cancels any pending
// reconnect, and stops the loop. Caches are left intact.
func (m *Manager) Close() {
	m.closeOnce.Do(func() { close(m.done) })
}

// Notices returns the observer channel. It is closed when the manager
// shuts down.
func (m *Manager) Notices() <-chan Notice { return m.notices }

// Status returns a copy of the current observable state.
func (m *Manager) Status() Status {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()
	return m.status
}

// Connect starts connecting. It is the explicit recovery path out of
// Failed: the attempt counter restarts from zero. A no-op in any state
// that already has a live or pending connection.
func (m *Manager) Connect() {
	m.do(func() {
		switch m.state {
		case Disconnected, Failed:
			m.attempts = 0
			m.lastErr = ""
			m.startDial()
		default:
			log.Printf("stream: connect ignored in state %s", m.state)
		}
	})
}

// Disconnect is the single authoritative cancellation point: it stops any
// pending reconnect, closes the transport with a normal code, and settles
// in Disconnected. Caches are cleared only by explicit clear calls, never
// by disconnect.
func (m *Manager) Disconnect() {
	m.do(func() { m.disconnect() })
}

// Subscribe asks the feed to deliver the given source. Outside Connected
// this is a no-op with a warning, not an error. A repeated subscribe for
// an already-subscribed source sends nothing.
func (m *Manager) Subscribe(source string) {
	m.do(func() {
		if m.state != Connected {
			log.Printf("stream: subscribe %q ignored in state %s", source, m.state)
			return
		}
		if _, ok := m.subs[source]; ok {
			return
		}
		m.subs[source] = struct{}{}
		if err := m.transport.Send(wire.Subscribe(source)); err != nil {
			log.Printf("stream: send subscribe %q: %v", source, err)
		}
	})
}

// Unsubscribe stops delivery for the given source. Same no-op semantics
// as Subscribe outside Connected.
func (m *Manager) Unsubscribe(source string) {
	m.do(func() {
		if m.state != Connected {
			log.Printf("stream: unsubscribe %q ignored in state %s", source, m.state)
			return
		}
		if _, ok := m.subs[source]; !ok {
			return
		}
		delete(m.subs, source)
		if err := m.transport.Send(wire.Unsubscribe(source)); err != nil {
			log.Printf("stream: send unsubscribe %q: %v", source, err)
		}
	})
}

// do enqueues a command for the loop goroutine.
func (m *Manager) do(fn func()) {
	select {
	case m.cmds <- fn:
	case <-m.done:
	}
}

func (m *Manager) loop() {
	defer func() {
		m.stopReconnectTimer()
		if m.transport != nil {
			m.transport.Close()
			m.transport = nil
		}
		close(m.notices)
	}()

	for {
		select {
		case <-m.done:
			return
		case fn := <-m.cmds:
			fn()
		case ev := <-m.events:
			m.handleEvent(ev)
		}
	}
}

func (m *Manager) handleEvent(ev event) {
	if ev.gen != m.gen {
		// Superseded connection; release a late-arriving transport.
		if ev.opened != nil {
			ev.opened.Close()
		}
		return
	}

	switch {
	case ev.opened != nil:
		m.onOpened(ev.opened)
	case ev.frame != nil:
		m.onFrame(ev.frame)
	default:
		m.onClosed(ev.err)
	}
}

// startDial moves to Connecting and dials in the background. Each dial
// bumps the generation so events from older connections are discarded.
func (m *Manager) startDial() {
	m.gen++
	gen := m.gen
	m.setState(Connecting)

	dial := m.cfg.Dialer
	url := m.cfg.URL
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		defer cancel()
		t, err := dial(ctx, url)
		if err != nil {
			m.post(event{gen: gen, err: err})
			return
		}
		m.post(event{gen: gen, opened: t})
	}()
}

func (m *Manager) onOpened(t Transport) {
	m.transport = t
	m.attempts = 0
	m.lastErr = ""
	m.setState(Connected)

	// Replay the desired subscription set so a reconnect resumes
	// delivery without operator action.
	for source := range m.subs {
		if err := t.Send(wire.Subscribe(source)); err != nil {
			log.Printf("stream: resubscribe %q: %v", source, err)
			break
		}
	}

	gen := m.gen
	go m.readPump(gen, t)
}

func (m *Manager) readPump(gen uint64, t Transport) {
	for {
		data, err := t.Read()
		if err != nil {
			m.post(event{gen: gen, err: err})
			return
		}
		m.post(event{gen: gen, frame: data})
	}
}

func (m *Manager) onFrame(data []byte) {
	ev, err := wire.Decode(data)
	if err != nil {
		// One corrupt frame must not terminate the stream.
		log.Printf("stream: dropped frame: %v", err)
		return
	}

	switch ev.Kind {
	case wire.KindLog:
		m.buffer.Push(ev.Entry)
		m.cache.Append(ev.Entry.Source, ev.Entry)
		m.notify(EntryNotice{Entry: ev.Entry})
	case wire.KindConnectedAck:
		log.Printf("stream: feed ready: %s", ev.Message)
	case wire.KindSubscribedAck:
		m.notify(SubscribedNotice{Source: ev.Source})
	case wire.KindServerError:
		m.lastErr = ev.Message
		m.publishStatus()
		log.Printf("stream: feed error: %s", ev.Message)
	}
}

// onClosed handles a transport close or a failed dial for the current
// generation.
func (m *Manager) onClosed(err error) {
	if m.transport != nil {
		m.transport.Close()
		m.transport = nil
	}

	if closeCode(err) == NormalClosure {
		m.lastErr = ""
		m.setState(Disconnected)
		return
	}

	if m.attempts >= m.cfg.MaxReconnectAttempts {
		m.lastErr = fmt.Sprintf("reconnect attempts exhausted after %d tries: %v", m.attempts, err)
		m.setState(Failed)
		return
	}

	m.attempts++
	m.lastErr = err.Error()
	m.setState(Reconnecting)

	gen := m.gen
	m.reconnect = time.AfterFunc(m.cfg.ReconnectDelay, func() {
		m.do(func() { m.onReconnectDelay(gen) })
	})
}

// onReconnectDelay fires when the reconnect delay elapses. A disconnect
// or newer connection in the meantime makes it a no-op.
func (m *Manager) onReconnectDelay(gen uint64) {
	if m.state != Reconnecting || gen != m.gen {
		return
	}
	m.reconnect = nil
	m.startDial()
}

func (m *Manager) disconnect() {
	m.stopReconnectTimer()
	m.gen++ // orphan any in-flight dial or read event
	if m.transport != nil {
		m.transport.Close()
		m.transport = nil
	}
	m.lastErr = ""
	if m.state != Disconnected {
		m.setState(Disconnected)
	}
}

func (m *Manager) stopReconnectTimer() {
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
}

func (m *Manager) setState(s State) {
	m.state = s
	m.publishStatus()
	m.notify(StateNotice{Status: m.Status()})
}

func (m *Manager) publishStatus() {
	m.statusMu.Lock()
	m.status = Status{State: m.state, Attempts: m.attempts, LastError: m.lastErr}
	m.statusMu.Unlock()
}

func (m *Manager) post(ev event) {
	select {
	case m.events <- ev:
	case <-m.done:
	}
}

func (m *Manager) notify(n Notice) {
	select {
	case m.notices <- n:
	default:
		// Slow observer; it will catch up from the caches.
	}
}
