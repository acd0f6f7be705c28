package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sentryflow/livetail/internal/model"
	"github.com/sentryflow/livetail/internal/stream"
)

// minRenderInterval caps how often incoming entries can force a
// re-projection; the 1 Hz tick covers the gaps.
const minRenderInterval = 100 * time.Millisecond

func (m *StreamModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)
	case tea.KeyMsg:
		return m.handleKey(msg)
	case NoticeMsg:
		return m.handleNotice(msg)
	case noticesClosedMsg:
		return m, tea.Quit
	case BackfillMsg:
		return m.handleBackfill(msg)
	case TickMsg:
		m.rate.Push(m.tickCount)
		m.tickCount = 0
		m.refresh()
		return m, tickCmd()
	case tea.MouseMsg:
		return m.handleMouse(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *StreamModel) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	vpHeight := msg.Height - chromeHeight
	if vpHeight < 1 {
		vpHeight = 1
	}
	if !m.ready {
		m.viewport = viewport.New(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = vpHeight
	}
	m.refresh()
	return m, nil
}

func (m *StreamModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.NextSource):
		return m, m.selectSource(m.selected + 1)

	case key.Matches(msg, m.keys.PrevSource):
		return m, m.selectSource(m.selected - 1)

	case key.Matches(msg, m.keys.Follow):
		if m.projector.ToggleFollowTail() {
			m.viewport.GotoBottom()
		}
		return m, nil

	case key.Matches(msg, m.keys.Clear):
		return m, m.clearAndRefetch()

	case key.Matches(msg, m.keys.Reconnect):
		switch m.status.State {
		case stream.Disconnected, stream.Failed:
			m.streamer.Connect()
		}
		return m, nil

	case key.Matches(msg, m.keys.Disconnect):
		m.streamer.Disconnect()
		return m, nil

	case key.Matches(msg, m.keys.Top):
		m.projector.SetFollowTail(false)
		m.viewport.GotoTop()
		return m, nil

	case key.Matches(msg, m.keys.Bottom):
		m.projector.SetFollowTail(true)
		m.viewport.GotoBottom()
		return m, nil

	case key.Matches(msg, m.keys.Up), key.Matches(msg, m.keys.PageUp):
		m.projector.SetFollowTail(false)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *StreamModel) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionPress {
		return m, nil
	}
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.projector.SetFollowTail(false)
		if m.reverseWheel {
			m.viewport.ScrollDown(1)
		} else {
			m.viewport.ScrollUp(1)
		}
	case tea.MouseButtonWheelDown:
		if m.reverseWheel {
			m.viewport.ScrollUp(1)
		} else {
			m.viewport.ScrollDown(1)
		}
	}
	return m, nil
}

// clearAndRefetch drops the selected source's cached history and asks
// the feed for a fresh snapshot.
func (m *StreamModel) clearAndRefetch() tea.Cmd {
	m.projector.ClearHistory()
	source := m.projector.Selected()
	m.refresh()
	if source == model.SourceAll {
		return nil
	}
	token, _ := m.projector.Select(source)
	return m.fetchBackfillCmd(token, source)
}

func (m *StreamModel) handleNotice(msg NoticeMsg) (tea.Model, tea.Cmd) {
	switch n := msg.Notice.(type) {
	case stream.StateNotice:
		prev := m.status.State
		m.status = n.Status
		if n.Status.State == stream.Connected && prev != stream.Connected {
			for _, src := range m.subscribe {
				m.streamer.Subscribe(src)
			}
		}
	case stream.EntryNotice:
		m.tickCount++
		m.addSource(n.Entry.Source)
		// Bursts of entries coalesce into one re-projection; anything
		// that lands between renders shows up on the next tick.
		if time.Since(m.lastRender) >= minRenderInterval {
			m.refresh()
		}
	case stream.SubscribedNotice:
		m.addSource(n.Source)
		m.notice = fmt.Sprintf("subscribed to %s at %s", n.Source, time.Now().Format("15:04:05"))
	}
	return m, waitForNotice(m.streamer)
}

func (m *StreamModel) handleBackfill(msg BackfillMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.notice = fmt.Sprintf("backfill for %s failed, showing live only", msg.Source)
		return m, nil
	}
	if m.projector.ResolveBackfill(msg.Token, msg.Source, msg.Entries) {
		m.refresh()
	}
	return m, nil
}

// refresh re-projects the visible entries into the viewport.
func (m *StreamModel) refresh() {
	if !m.ready {
		return
	}
	entries := m.projector.Project()
	showSource := m.projector.Selected() == model.SourceAll

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, renderEntry(e, showSource))
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	if m.projector.FollowTail() {
		m.viewport.GotoBottom()
	}
	m.lastRender = time.Now()
}
