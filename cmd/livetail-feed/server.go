package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/sentryflow/livetail/internal/feed"
	"github.com/sentryflow/livetail/internal/model"
)

// runServer starts the broadcast hub, the websocket feed, and the log
// inputs, then blocks until a signal or all inputs close.
func runServer(cfg appConfig) error {
	cleanupLogger := configureRuntimeLogger()
	defer cleanupLogger()

	hub := feed.NewHub(cfg.CacheCapacity)
	defer hub.Close()

	feedServer := feed.NewServer(cfg.FeedAddr, hub)
	if err := feedServer.Start(); err != nil {
		return fmt.Errorf("failed to start feed server: %w", err)
	}
	defer feedServer.Stop()

	// Set up context and signal handling before errgroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		// Shutdown deadline starts now — not at boot.
		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		os.Exit(1)
	}()

	// Build input plugins and source multiplexer
	plugins := buildInputPlugins(InputPluginConfig{
		TCPEnabled: cfg.TCPEnabled,
		TCPAddr:    cfg.TCPAddr,
	})

	sources := make([]NamedLogSource, 0, len(plugins))
	for _, plugin := range plugins {
		if !plugin.Enabled() {
			continue
		}
		src, err := plugin.Build(ctx)
		if err != nil {
			log.Printf("Error initializing input plugin %q: %v", plugin.Name(), err)
			continue
		}
		sources = append(sources, src)
	}

	mux := NewSourceMultiplexer(ctx, sources, cfg.MuxBufferSize)
	mux.Start()

	printStartupBanner(cfg, mux.HasSources())

	g, gctx := errgroup.WithContext(ctx)

	// Ingestion loop: stamp each raw line and hand it to the hub.
	if mux.HasSources() {
		g.Go(func() error {
			for env := range mux.Lines() {
				hub.Publish(model.LogEntry{
					Timestamp: time.Now().UTC(),
					Source:    env.Source,
					RawLine:   env.Line,
				})
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("feed: errgroup exited with error: %v", err)
	}

	cancel()
	mux.Stop()
	signal.Stop(sigCh)

	return nil
}

func configureRuntimeLogger() func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	home, err := os.UserHomeDir()
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logDir := filepath.Join(home, ".local", "state", "livetail")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logPath := filepath.Join(logDir, "feed.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		_ = f.Close()
	}
}

func printStartupBanner(cfg appConfig, hasSources bool) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := cyan.Bold(true).Render(`
    ╦  ╦╦  ╦╔═╗╔╦╗╔═╗╦╦
    ║  ║╚╗╔╝║╣  ║ ╠═╣║║
    ╩═╝╩ ╚╝ ╚═╝ ╩ ╩ ╩╩╩═╝`)

	ver := dim.Render("v" + version)

	var lines []string
	lines = append(lines, "")
	lines = append(lines, logo)
	lines = append(lines, "    "+ver)
	lines = append(lines, "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator)
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Gateway"))
	lines = append(lines, "")

	lines = append(lines, fmt.Sprintf("    %s  WebSocket Feed %s", check, cyan.Render(cfg.FeedAddr)))

	if cfg.TCPEnabled {
		lines = append(lines, fmt.Sprintf("    %s  TCP Ingest     %s", check, cyan.Render(cfg.TCPAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  TCP Ingest     %s", dot, dim.Render("disabled")))
	}

	lines = append(lines, "")

	lines = append(lines, bold.Render("    Runtime"))
	lines = append(lines, "")

	lines = append(lines, fmt.Sprintf("    %s  Cache          %s", check, dim.Render(fmt.Sprintf("%d entries per source", cfg.CacheCapacity))))
	if hasSources {
		lines = append(lines, fmt.Sprintf("    %s  Inputs         %s", check, dim.Render("active")))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Inputs         %s", dot, dim.Render("none (feed only)")))
	}

	lines = append(lines, "")
	lines = append(lines, bold.Render("    Config"))
	lines = append(lines, "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}

	lines = append(lines, "")
	lines = append(lines, separator)
	lines = append(lines, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"))
	lines = append(lines, "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
