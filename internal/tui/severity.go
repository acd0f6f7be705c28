package tui

import (
	"regexp"
	"strings"
)

var severityPattern = regexp.MustCompile(`(?i)\b(TRACE|DEBUG|INFO|NOTICE|WARNING|WARN|ERROR|ERR|CRITICAL|CRIT|FATAL|PANIC)\b`)

// extractSeverity scans a raw line for a recognizable severity token and
// returns it normalized to one of TRACE/DEBUG/INFO/WARN/ERROR/FATAL.
// Returns "" when no token is found; the line renders unstyled.
func extractSeverity(line string) string {
	match := severityPattern.FindString(line)
	if match == "" {
		return ""
	}
	switch strings.ToUpper(match) {
	case "WARNING":
		return "WARN"
	case "ERR":
		return "ERROR"
	case "NOTICE":
		return "INFO"
	case "CRITICAL", "CRIT", "PANIC":
		return "FATAL"
	default:
		return strings.ToUpper(match)
	}
}

// colorizeLine styles a raw line by its detected severity. Lines with no
// recognizable severity come back unchanged.
func colorizeLine(line string) string {
	sev := extractSeverity(line)
	if sev == "" {
		return line
	}
	style, ok := severityStyles[sev]
	if !ok {
		return line
	}
	return style.Render(line)
}
