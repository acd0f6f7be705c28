package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sentryflow/livetail/internal/cache"
	"github.com/sentryflow/livetail/internal/model"
	"github.com/sentryflow/livetail/internal/project"
	"github.com/sentryflow/livetail/internal/stream"
)

type stubStreamer struct {
	notices     chan stream.Notice
	subscribed  []string
	connects    int
	disconnects int
}

func newStubStreamer() *stubStreamer {
	return &stubStreamer{notices: make(chan stream.Notice, 16)}
}

func (s *stubStreamer) Connect()    { s.connects++ }
func (s *stubStreamer) Disconnect() { s.disconnects++ }
func (s *stubStreamer) Subscribe(source string) {
	s.subscribed = append(s.subscribed, source)
}
func (s *stubStreamer) Unsubscribe(string)             {}
func (s *stubStreamer) Notices() <-chan stream.Notice  { return s.notices }
func (s *stubStreamer) Status() stream.Status {
	return stream.Status{State: stream.Disconnected}
}

func newTestView(t *testing.T, subscribe []string) (*StreamModel, *stubStreamer, *cache.SourceCache) {
	t.Helper()
	sc := cache.NewSourceCache(100)
	sb := cache.NewStreamBuffer(100)
	stub := newStubStreamer()
	m := NewStreamModel(stub, project.New(sc, sb), sc, subscribe)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return m, stub, sc
}

func tuiEntry(source, line string) model.LogEntry {
	return model.LogEntry{
		Timestamp: time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
		Source:    source,
		RawLine:   line,
	}
}

func TestSubscribesConfiguredSourcesOnConnected(t *testing.T) {
	m, stub, _ := newTestView(t, []string{"auth", "nginx"})

	m.Update(NoticeMsg{Notice: stream.StateNotice{
		Status: stream.Status{State: stream.Connected},
	}})

	if len(stub.subscribed) != 2 || stub.subscribed[0] != "auth" || stub.subscribed[1] != "nginx" {
		t.Fatalf("unexpected subscriptions %v", stub.subscribed)
	}

	// A repeat Connected notice without a disconnect in between must not
	// re-send subscriptions.
	m.Update(NoticeMsg{Notice: stream.StateNotice{
		Status: stream.Status{State: stream.Connected},
	}})
	if len(stub.subscribed) != 2 {
		t.Fatalf("subscriptions re-sent: %v", stub.subscribed)
	}
}

func TestEntryNoticeRegistersSourceTab(t *testing.T) {
	m, _, _ := newTestView(t, nil)

	m.Update(NoticeMsg{Notice: stream.EntryNotice{Entry: tuiEntry("kernel", "boot")}})

	found := false
	for _, s := range m.sources {
		if s == "kernel" {
			found = true
		}
	}
	if !found {
		t.Fatalf("source tab not registered, have %v", m.sources)
	}
	if m.sources[0] != model.SourceAll {
		t.Fatalf("aggregate must stay first, have %v", m.sources)
	}
}

func TestSelectColdSourceRequestsBackfill(t *testing.T) {
	m, stub, sc := newTestView(t, nil)
	sc.Append("auth", tuiEntry("auth", "login"))
	m.Update(NoticeMsg{Notice: stream.EntryNotice{Entry: tuiEntry("auth", "login")}})

	stub.subscribed = nil
	cmd := m.selectSource(1)
	if m.projector.Selected() != "auth" {
		t.Fatalf("selected = %q", m.projector.Selected())
	}
	if len(stub.subscribed) != 1 || stub.subscribed[0] != "auth" {
		t.Fatalf("expected subscribe for auth, got %v", stub.subscribed)
	}
	if cmd != nil {
		t.Fatalf("warm source must not request a history fetch")
	}

	// An unseen source has a cold cache and must fetch.
	m.addSource("nginx")
	if cmd := m.selectSource(2); cmd == nil {
		t.Fatalf("cold source must request a history fetch")
	}
}

func TestSourceCyclingWraps(t *testing.T) {
	m, _, _ := newTestView(t, []string{"auth"})

	m.selectSource(m.selected + 1)
	if m.sources[m.selected] != "auth" {
		t.Fatalf("selected %q", m.sources[m.selected])
	}
	m.selectSource(m.selected + 1)
	if m.sources[m.selected] != model.SourceAll {
		t.Fatalf("cycling past the end must wrap, selected %q", m.sources[m.selected])
	}
	m.selectSource(m.selected - 1)
	if m.sources[m.selected] != "auth" {
		t.Fatalf("cycling before the start must wrap, selected %q", m.sources[m.selected])
	}
}

func TestStaleBackfillLeavesNoticeEmpty(t *testing.T) {
	m, _, _ := newTestView(t, nil)
	m.addSource("auth")
	m.addSource("nginx")

	token, _ := m.projector.Select("auth")
	m.projector.Select("nginx")

	m.Update(BackfillMsg{Token: token, Source: "auth", Entries: []model.LogEntry{tuiEntry("auth", "old")}})
	if got := m.projector.Project(); len(got) != 0 {
		t.Fatalf("stale backfill leaked into projection: %v", got)
	}
}

func TestBackfillErrorFallsBackToLive(t *testing.T) {
	m, _, _ := newTestView(t, nil)

	m.Update(BackfillMsg{Token: 1, Source: "auth", Err: errFake})
	if m.notice == "" {
		t.Fatal("expected a footer notice about the failed fetch")
	}
}

var errFake = &fakeErr{}

type fakeErr struct{}

func (*fakeErr) Error() string { return "dial refused" }

func TestQuitKeyQuits(t *testing.T) {
	m, _, _ := newTestView(t, nil)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("expected a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected quit")
	}
}

func TestReconnectKeyOnlyActsWhenDown(t *testing.T) {
	m, stub, _ := newTestView(t, nil)

	m.status = stream.Status{State: stream.Connected}
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	if stub.connects != 0 {
		t.Fatalf("reconnect while connected must be a no-op, connects=%d", stub.connects)
	}

	m.status = stream.Status{State: stream.Failed}
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	if stub.connects != 1 {
		t.Fatalf("connects=%d", stub.connects)
	}
}

func TestViewShowsStateBadge(t *testing.T) {
	m, _, _ := newTestView(t, nil)
	m.status = stream.Status{State: stream.Reconnecting, Attempts: 2}

	view := m.View()
	if view == "" {
		t.Fatal("empty view")
	}
	if !strings.Contains(view, "reconnecting 2") {
		t.Fatalf("status badge missing from view:\n%s", view)
	}
}

func TestEntryBurstsCoalesceRendering(t *testing.T) {
	sc := cache.NewSourceCache(100)
	sb := cache.NewStreamBuffer(100)
	stub := newStubStreamer()
	m := NewStreamModel(stub, project.New(sc, sb), sc, nil)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})

	first := tuiEntry("auth", "first line")
	sb.Push(first)
	m.lastRender = time.Time{}
	m.Update(NoticeMsg{Notice: stream.EntryNotice{Entry: first}})
	if !strings.Contains(m.viewport.View(), "first line") {
		t.Fatal("entry after a quiet stretch must render immediately")
	}

	second := tuiEntry("auth", "second line")
	sb.Push(second)
	m.Update(NoticeMsg{Notice: stream.EntryNotice{Entry: second}})
	if strings.Contains(m.viewport.View(), "second line") {
		t.Fatal("burst entry re-projected immediately, want it deferred")
	}

	m.Update(TickMsg(time.Now()))
	if !strings.Contains(m.viewport.View(), "second line") {
		t.Error("tick did not pick up the deferred entry")
	}
}
