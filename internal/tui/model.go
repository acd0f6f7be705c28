package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sentryflow/livetail/internal/cache"
	"github.com/sentryflow/livetail/internal/model"
	"github.com/sentryflow/livetail/internal/project"
	"github.com/sentryflow/livetail/internal/stream"
)

const backfillTimeout = 10 * time.Second

// Streamer is the narrow contract the view needs from the connection
// manager. *stream.Manager satisfies it.
type Streamer interface {
	Connect()
	Disconnect()
	Subscribe(source string)
	Unsubscribe(source string)
	Notices() <-chan stream.Notice
	Status() stream.Status
}

// NoticeMsg wraps one manager notice for the update loop.
type NoticeMsg struct{ Notice stream.Notice }

type noticesClosedMsg struct{}

// BackfillMsg carries the result of an async history fetch. Token ties
// it back to the selection that requested it.
type BackfillMsg struct {
	Token   uint64
	Source  string
	Entries []model.LogEntry
	Err     error
}

// TickMsg drives the once-a-second re-projection and rate sampling.
type TickMsg time.Time

// StreamModel is the live tail view: status bar, source tabs, log
// viewport, rate strip.
type StreamModel struct {
	streamer  Streamer
	projector *project.Projector
	cache     *cache.SourceCache

	keys     KeyMap
	viewport viewport.Model
	ready    bool
	width    int
	height   int

	sources   []string
	selected  int
	subscribe []string

	status       stream.Status
	rate         *rateChart
	tickCount    int
	notice       string
	reverseWheel bool
	lastRender   time.Time
}

// SetReverseScrollWheel inverts the mouse wheel scroll direction.
func (m *StreamModel) SetReverseScrollWheel(v bool) { m.reverseWheel = v }

// NewStreamModel builds the view. subscribeSources are requested from
// the feed once the first Connected transition arrives; an empty list
// defaults to the aggregate.
func NewStreamModel(s Streamer, p *project.Projector, sc *cache.SourceCache, subscribeSources []string) *StreamModel {
	if len(subscribeSources) == 0 {
		subscribeSources = []string{model.SourceAll}
	}
	m := &StreamModel{
		streamer:  s,
		projector: p,
		cache:     sc,
		keys:      DefaultKeyMap(),
		sources:   []string{model.SourceAll},
		subscribe: subscribeSources,
		status:    s.Status(),
		rate:      newRateChart(),
	}
	for _, src := range subscribeSources {
		m.addSource(src)
	}
	return m
}

func (m *StreamModel) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { m.streamer.Connect(); return nil },
		waitForNotice(m.streamer),
		tickCmd(),
	)
}

// addSource registers a source tab the first time the source shows up,
// keeping the aggregate pinned first and the rest in arrival order.
func (m *StreamModel) addSource(source string) {
	if source == model.SourceAll {
		return
	}
	for _, s := range m.sources {
		if s == source {
			return
		}
	}
	m.sources = append(m.sources, source)
}

// selectSource switches the projection to the source at index idx and,
// when the local cache is cold, kicks off a history fetch.
func (m *StreamModel) selectSource(idx int) tea.Cmd {
	if idx < 0 {
		idx = len(m.sources) - 1
	}
	if idx >= len(m.sources) {
		idx = 0
	}
	m.selected = idx
	source := m.sources[idx]

	token, needBackfill := m.projector.Select(source)
	if source != model.SourceAll {
		m.streamer.Subscribe(source)
	}
	m.refresh()
	if !needBackfill {
		return nil
	}
	return m.fetchBackfillCmd(token, source)
}

func (m *StreamModel) fetchBackfillCmd(token uint64, source string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), backfillTimeout)
		defer cancel()
		entries, err := m.cache.FetchBackfill(ctx, source)
		return BackfillMsg{Token: token, Source: source, Entries: entries, Err: err}
	}
}

func waitForNotice(s Streamer) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-s.Notices()
		if !ok {
			return noticesClosedMsg{}
		}
		return NoticeMsg{Notice: n}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
