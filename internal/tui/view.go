package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sentryflow/livetail/internal/model"
	"github.com/sentryflow/livetail/internal/stream"
)

// Lines of UI chrome around the viewport: title bar, source tabs, rate
// strip, help line.
const chromeHeight = 6

const rateStripHeight = 3

func (m *StreamModel) View() string {
	if !m.ready {
		return "starting up..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteByte('\n')
	b.WriteString(m.renderTabs())
	b.WriteByte('\n')
	b.WriteString(m.viewport.View())
	b.WriteByte('\n')
	b.WriteString(m.rate.Render(m.width, rateStripHeight))
	b.WriteByte('\n')
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m *StreamModel) renderHeader() string {
	title := titleStyle.Render(" livetail ")
	badge := m.renderStatusBadge()

	spacer := m.width - lipgloss.Width(title) - lipgloss.Width(badge)
	if spacer < 1 {
		spacer = 1
	}
	return title + strings.Repeat(" ", spacer) + badge
}

func (m *StreamModel) renderStatusBadge() string {
	style, ok := statusStyles[m.status.State]
	if !ok {
		style = dimStyle
	}

	var text string
	switch m.status.State {
	case stream.Reconnecting:
		text = fmt.Sprintf("● reconnecting %d", m.status.Attempts)
	case stream.Failed:
		text = "● failed"
		if m.status.LastError != "" {
			text = fmt.Sprintf("● failed: %s", m.status.LastError)
		}
	default:
		text = "● " + m.status.State.String()
	}
	return style.Render(text)
}

func (m *StreamModel) renderTabs() string {
	tabs := make([]string, 0, len(m.sources))
	for i, src := range m.sources {
		if i == m.selected {
			tabs = append(tabs, tabActiveStyle.Render(src))
		} else {
			tabs = append(tabs, tabStyle.Render(src))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m *StreamModel) renderFooter() string {
	follow := "follow off"
	if m.projector.FollowTail() {
		follow = "follow on"
	}
	help := fmt.Sprintf("tab: source  f: %s  c: clear  r: reconnect  d: disconnect  q: quit", follow)
	if m.notice != "" {
		help += "  │  " + m.notice
	}
	return helpStyle.Render(truncate(help, m.width))
}

// renderEntry formats one log line for the viewport. The source tag is
// shown only on the aggregate view, where lines from many sources mix.
func renderEntry(e model.LogEntry, showSource bool) string {
	ts := dimStyle.Render(e.Timestamp.Format("15:04:05.000"))
	if showSource {
		tag := accentStyle.Render(fmt.Sprintf("%-12s", e.Source))
		return ts + " " + tag + " " + colorizeLine(e.RawLine)
	}
	return ts + " " + colorizeLine(e.RawLine)
}

func truncate(s string, width int) string {
	if width <= 0 || len(s) <= width {
		return s
	}
	// Cut on rune boundaries so multi-byte characters in the line are
	// never split into invalid bytes.
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width])
}
