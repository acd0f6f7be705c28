package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sentryflow/livetail/internal/cache"
	"github.com/sentryflow/livetail/internal/project"
	"github.com/sentryflow/livetail/internal/stream"
	"github.com/sentryflow/livetail/internal/tui"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	var configPath string
	var serverURL string
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/livetail/config.yml)")
	flag.StringVar(&serverURL, "server", "", "override websocket URL of the livetail feed")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("Livetail - Log Stream Client\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	cfg, err := loadCLIConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if serverURL != "" {
		cfg.ServerURL = serverURL
	}

	if err := runTUI(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runTUI(cfg cliConfig) error {
	cleanupLogger := configureRuntimeLogger()
	defer cleanupLogger()

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("finding home directory: %w", err)
	}
	configDir := filepath.Join(home, ".config", "livetail")
	if err := tui.InitializeSkin(cfg.Skin, configDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to load skin '%s': %v (using default)\n", cfg.Skin, err)
	}

	sourceCache := cache.NewSourceCache(cfg.PerSourceCapacity)
	streamBuffer := cache.NewStreamBuffer(cfg.PerSourceCapacity)

	backfill := stream.NewBackfillClient(cfg.CacheURL)
	sourceCache.SetBackfillFunc(backfill.Fetch)

	manager := stream.NewManager(stream.Config{
		URL:                  cfg.ServerURL,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		ReconnectDelay:       cfg.ReconnectDelay,
	}, sourceCache, streamBuffer)
	manager.Start()
	defer manager.Close()

	projector := project.New(sourceCache, streamBuffer)
	view := tui.NewStreamModel(manager, projector, sourceCache, cfg.Sources)
	view.SetReverseScrollWheel(cfg.ReverseScrollWheel)

	p := tea.NewProgram(view, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		if strings.Contains(err.Error(), "TTY") || strings.Contains(err.Error(), "/dev/tty") {
			return fmt.Errorf("TUI requires a real terminal")
		}
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

// configureRuntimeLogger sends stdlib log output to the state directory
// so manager warnings never land on the TUI screen.
func configureRuntimeLogger() func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	home, err := os.UserHomeDir()
	if err != nil {
		log.SetOutput(io.Discard)
		return func() {}
	}

	logDir := filepath.Join(home, ".local", "state", "livetail")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.SetOutput(io.Discard)
		return func() {}
	}

	logPath := filepath.Join(logDir, "livetail.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(io.Discard)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		_ = f.Close()
	}
}
