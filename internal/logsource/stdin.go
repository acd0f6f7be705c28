package logsource

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"os"

	"github.com/sentryflow/livetail/internal/model"
)

const (
	// DefaultStdinBuffer is the default channel buffer size for stdin lines.
	DefaultStdinBuffer = 50_000

	// DefaultStdinMaxLineSize is the default maximum size (in bytes) of a single line.
	DefaultStdinMaxLineSize = 1024 * 1024 // 1MB
)

// StdinConfig holds tunable parameters for the stdin source.
type StdinConfig struct {
	BufferSize  int
	MaxLineSize int
}

// StdinSource reads log lines from stdin and tags them "stdin".
type StdinSource struct {
	ch     chan model.IngestEnvelope
	cancel context.CancelFunc
}

// NewStdinSource creates a StdinSource reading os.Stdin in a background
// goroutine.
func NewStdinSource(ctx context.Context, conf ...StdinConfig) *StdinSource {
	return newStdinSourceWithReader(ctx, os.Stdin, conf...)
}

func newStdinSourceWithReader(ctx context.Context, r io.Reader, conf ...StdinConfig) *StdinSource {
	bufferSize := DefaultStdinBuffer
	maxLineSize := DefaultStdinMaxLineSize
	if len(conf) > 0 {
		if conf[0].BufferSize > 0 {
			bufferSize = conf[0].BufferSize
		}
		if conf[0].MaxLineSize > 0 {
			maxLineSize = conf[0].MaxLineSize
		}
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &StdinSource{
		ch:     make(chan model.IngestEnvelope, bufferSize),
		cancel: cancel,
	}
	go s.read(ctx, r, maxLineSize)
	return s
}

func (s *StdinSource) read(ctx context.Context, r io.Reader, maxLineSize int) {
	defer close(s.ch)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, maxLineSize), maxLineSize)

	// The scan itself blocks, so it runs in its own goroutine and hands
	// lines over through a channel the select below can race against
	// cancellation.
	type scanResult struct {
		line string
	}
	results := make(chan scanResult)
	go func() {
		defer close(results)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			select {
			case results <- scanResult{line: line}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				log.Printf("logsource: stdin line exceeded max size (%d bytes), stopping stdin source", maxLineSize)
				return
			}
			log.Printf("logsource: stdin scanner error: %v", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-results:
			if !ok {
				return
			}
			select {
			case s.ch <- model.IngestEnvelope{Source: s.Name(), Line: r.line}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *StdinSource) Lines() <-chan model.IngestEnvelope { return s.ch }
func (s *StdinSource) Stop()                              { s.cancel() }
func (s *StdinSource) Name() string                       { return "stdin" }
