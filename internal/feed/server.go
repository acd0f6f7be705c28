package feed

import (
	"context"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/sentryflow/livetail/internal/model"
	"github.com/sentryflow/livetail/internal/wire"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server exposes the hub over HTTP: the WebSocket stream endpoint, the
// short-term cache snapshot endpoint, and a health check.
type Server struct {
	addr      string
	hub       *Hub
	server    *http.Server
	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a feed server bound to addr.
func NewServer(addr string, hub *Hub) *Server {
	if addr == "" {
		addr = "127.0.0.1:8765"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:   addr,
		hub:    hub,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins serving. Non-blocking.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/ws", s.handleStream)
	r.GET("/api/cache/:source", s.handleCacheSnapshot)
	r.GET("/api/health", s.handleHealth)

	s.server = &http.Server{
		Handler:           r,
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Addr returns the active listen address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// handleStream upgrades to WebSocket and streams subscribed entries.
func (s *Server) handleStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("feed: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sub := s.hub.Register()
	defer s.hub.Unregister(sub)

	if data, err := wire.EncodeConnected("feed ready"); err == nil {
		conn.WriteMessage(websocket.TextMessage, data)
	}

	// Read pump: control frames adjust the subscription set and a read
	// error means the client is gone. Acks and error frames are handed
	// to the write pump through the control channel: the connection
	// allows one writer, and the write pump is it. A full control queue
	// drops the ack; it is best-effort, like the entry queue.
	control := make(chan []byte, 16)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			cf, err := wire.DecodeControl(data)
			if err != nil {
				log.Printf("feed: dropped control frame: %v", err)
				if data, err := wire.EncodeServerError("malformed control frame"); err == nil {
					select {
					case control <- data:
					default:
					}
				}
				continue
			}
			switch cf.Type {
			case wire.TypeSubscribe:
				sub.Subscribe(cf.LogSource)
				if data, err := wire.EncodeSubscribed(cf.LogSource); err == nil {
					select {
					case control <- data:
					default:
					}
				}
			case wire.TypeUnsubscribe:
				sub.Unsubscribe(cf.LogSource)
			}
		}
	}()

	// Write pump: the only goroutine that writes to the connection after
	// the greeting. Streams entries as raw_log frames and drains acks
	// from the read pump until the client or hub goes away.
	for {
		select {
		case <-readDone:
			return
		case <-s.ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down")
			conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			return
		case data := <-control:
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("feed: websocket write failed: %v", err)
				return
			}
		case entry, ok := <-sub.Entries():
			if !ok {
				return
			}
			data, err := wire.EncodeLog(entry)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("feed: websocket write failed: %v", err)
				return
			}
		}
	}
}

// handleCacheSnapshot serves the short-term cache for a source, used by
// clients to pre-populate history on first selection.
func (s *Server) handleCacheSnapshot(c *gin.Context) {
	source := c.Param("source")
	logs := s.hub.CacheSnapshot(source)
	if logs == nil {
		logs = []model.LogEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"uptime":      time.Since(s.startTime).String(),
		"subscribers": s.hub.SubscriberCount(),
		"dropped":     s.hub.Dropped(),
	})
}
