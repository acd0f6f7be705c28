package main

import (
	"context"
	"sync"

	"github.com/sentryflow/livetail/internal/model"
)

// DefaultMuxBuffer is the default channel buffer size for the source multiplexer.
const DefaultMuxBuffer = 50_000

// SourceMultiplexer merges the enabled log inputs into a single
// read-only stream for the publish loop.
type SourceMultiplexer struct {
	ctx    context.Context
	cancel context.CancelFunc

	sources []NamedLogSource
	lines   chan model.IngestEnvelope

	startOnce sync.Once
	stopOnce  sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewSourceMultiplexer(parent context.Context, sources []NamedLogSource, buffer int) *SourceMultiplexer {
	if buffer <= 0 {
		buffer = DefaultMuxBuffer
	}
	ctx, cancel := context.WithCancel(parent)
	return &SourceMultiplexer{
		ctx:     ctx,
		cancel:  cancel,
		sources: sources,
		lines:   make(chan model.IngestEnvelope, buffer),
	}
}

// Start spawns one forwarder per input. The output channel closes once
// every input has closed.
func (m *SourceMultiplexer) Start() {
	m.startOnce.Do(func() {
		if len(m.sources) == 0 {
			m.closeOutput()
			return
		}

		for _, src := range m.sources {
			src := src
			m.wg.Add(1)
			go m.forward(src)
		}

		go func() {
			m.wg.Wait()
			m.closeOutput()
		}()
	})
}

func (m *SourceMultiplexer) Stop() {
	m.stopOnce.Do(func() {
		m.cancel()
		for _, src := range m.sources {
			src.Stop()
		}
		m.wg.Wait()
		m.closeOutput()
	})
}

func (m *SourceMultiplexer) HasSources() bool {
	return len(m.sources) > 0
}

func (m *SourceMultiplexer) Lines() <-chan model.IngestEnvelope {
	return m.lines
}

func (m *SourceMultiplexer) forward(src NamedLogSource) {
	defer m.wg.Done()

	in := src.Lines()
	for {
		select {
		case <-m.ctx.Done():
			return
		case env, ok := <-in:
			if !ok {
				return
			}
			if env.Line == "" {
				continue
			}
			select {
			case m.lines <- env:
			case <-m.ctx.Done():
				return
			}
		}
	}
}

func (m *SourceMultiplexer) closeOutput() {
	m.closeOnce.Do(func() {
		close(m.lines)
	})
}
