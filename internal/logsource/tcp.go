package logsource

import (
	"bufio"
	"context"
	"errors"
	"log"
	"net"
	"sync"

	"github.com/sentryflow/livetail/internal/model"
)

const (
	// DefaultTCPBuffer is the default buffer size for the TCP line channel.
	DefaultTCPBuffer = 100_000

	// DefaultTCPMaxLineSize is the default maximum size (in bytes) of a single line.
	DefaultTCPMaxLineSize = 1024 * 1024 // 1MB
)

// TCPConfig holds tunable parameters for the TCP source.
type TCPConfig struct {
	BufferSize  int
	MaxLineSize int
}

// TCPSource listens for newline-delimited log lines over TCP and tags
// them "tcp". Each accepted connection is scanned on its own goroutine.
type TCPSource struct {
	listener    net.Listener
	addr        string
	ch          chan model.IngestEnvelope
	maxLineSize int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	stopOnce    sync.Once
}

// NewTCPSource creates a TCP source. Default addr is "127.0.0.1:4000".
func NewTCPSource(addr string, conf ...TCPConfig) *TCPSource {
	if addr == "" {
		addr = "127.0.0.1:4000"
	}
	bufferSize := DefaultTCPBuffer
	maxLineSize := DefaultTCPMaxLineSize
	if len(conf) > 0 {
		if conf[0].BufferSize > 0 {
			bufferSize = conf[0].BufferSize
		}
		if conf[0].MaxLineSize > 0 {
			maxLineSize = conf[0].MaxLineSize
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TCPSource{
		addr:        addr,
		ch:          make(chan model.IngestEnvelope, bufferSize),
		maxLineSize: maxLineSize,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins accepting connections.
func (s *TCPSource) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
					continue
				}
			}
			s.wg.Add(1)
			go s.handleConnection(conn)
		}
	}()
	return nil
}

func (s *TCPSource) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, s.maxLineSize), s.maxLineSize)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		select {
		case s.ch <- model.IngestEnvelope{Source: s.Name(), Line: line}:
		case <-s.ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			log.Printf("logsource: dropped connection %s, line exceeded max size (%d bytes)", conn.RemoteAddr(), s.maxLineSize)
			return
		}
		log.Printf("logsource: tcp scanner error from %s: %v", conn.RemoteAddr(), err)
	}
}

// Stop shuts the source down and closes the line channel.
func (s *TCPSource) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		if s.listener != nil {
			s.listener.Close()
		}
		s.wg.Wait()
		close(s.ch)
	})
}

// Addr returns the active listen address. Before Start, it returns the
// configured address.
func (s *TCPSource) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func (s *TCPSource) Lines() <-chan model.IngestEnvelope { return s.ch }
func (s *TCPSource) Name() string                       { return "tcp" }
