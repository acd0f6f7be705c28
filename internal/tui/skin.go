package tui

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/sentryflow/livetail/internal/stream"
)

// Skin declares the color palette. Values are lipgloss color strings
// (ANSI index or hex).
type Skin struct {
	Title    string `yaml:"title"`
	Dim      string `yaml:"dim"`
	Accent   string `yaml:"accent"`
	Selected string `yaml:"selected"`

	StatusConnected    string `yaml:"status-connected"`
	StatusConnecting   string `yaml:"status-connecting"`
	StatusReconnecting string `yaml:"status-reconnecting"`
	StatusDisconnected string `yaml:"status-disconnected"`
	StatusFailed       string `yaml:"status-failed"`

	Severity map[string]string `yaml:"severity"`
}

// DefaultSkin returns the built-in palette.
func DefaultSkin() Skin {
	return Skin{
		Title:    "39",
		Dim:      "240",
		Accent:   "220",
		Selected: "205",

		StatusConnected:    "42",
		StatusConnecting:   "220",
		StatusReconnecting: "214",
		StatusDisconnected: "240",
		StatusFailed:       "196",

		Severity: map[string]string{
			"TRACE": "240",
			"DEBUG": "245",
			"INFO":  "39",
			"WARN":  "220",
			"ERROR": "196",
			"FATAL": "201",
		},
	}
}

// Styles derived from the active skin. Initialized to the default skin;
// InitializeSkin replaces them before the program starts.
var (
	titleStyle     lipgloss.Style
	dimStyle       lipgloss.Style
	accentStyle    lipgloss.Style
	tabStyle       lipgloss.Style
	tabActiveStyle lipgloss.Style
	helpStyle      lipgloss.Style

	statusStyles   map[stream.State]lipgloss.Style
	severityStyles map[string]lipgloss.Style
)

func init() {
	applySkin(DefaultSkin())
}

// InitializeSkin loads and applies a named skin from
// <configDir>/skins/<name>.yml. "default" or empty applies the built-in
// palette. Unknown fields in the file keep their defaults.
func InitializeSkin(name, configDir string) error {
	if name == "" || name == "default" {
		applySkin(DefaultSkin())
		return nil
	}

	path := filepath.Join(configDir, "skins", name+".yml")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("skin %q: %w", name, err)
	}

	skin := DefaultSkin()
	if err := yaml.Unmarshal(data, &skin); err != nil {
		return fmt.Errorf("skin %q: %w", name, err)
	}
	applySkin(skin)
	return nil
}

func applySkin(s Skin) {
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(s.Title)).Bold(true)
	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(s.Dim))
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(s.Accent))
	tabStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(s.Dim)).Padding(0, 1)
	tabActiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(s.Selected)).Bold(true).Padding(0, 1)
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(s.Dim))

	statusStyles = map[stream.State]lipgloss.Style{
		stream.Connected:    lipgloss.NewStyle().Foreground(lipgloss.Color(s.StatusConnected)).Bold(true),
		stream.Connecting:   lipgloss.NewStyle().Foreground(lipgloss.Color(s.StatusConnecting)),
		stream.Reconnecting: lipgloss.NewStyle().Foreground(lipgloss.Color(s.StatusReconnecting)),
		stream.Disconnected: lipgloss.NewStyle().Foreground(lipgloss.Color(s.StatusDisconnected)),
		stream.Failed:       lipgloss.NewStyle().Foreground(lipgloss.Color(s.StatusFailed)).Bold(true),
	}

	severityStyles = make(map[string]lipgloss.Style, len(s.Severity))
	for level, color := range s.Severity {
		severityStyles[level] = lipgloss.NewStyle().Foreground(lipgloss.Color(color))
	}
}
