package websocket

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/brianly1003/msgboard/internal/domain/events"
	"github.com/brianly1003/msgboard/internal/domain/ports"
	"github.com/brianly1003/msgboard/internal/server/common"
	"github.com/brianly1003/msgboard/internal/sync"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Options configures the WebSocket server.
type Options struct {
	Timeouts common.Timeouts

	// HeartbeatInterval is the application-level heartbeat period.
	// Zero uses common.HeartbeatInterval; negative disables heartbeats.
	HeartbeatInterval time.Duration

	ServerVersion string
}

// Server accepts WebSocket upgrades and runs one Adapter per connection.
// It is an http.Handler and is mounted by the HTTP server.
type Server struct {
	board    ports.MessageBoard
	opts     Options
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc

	mu             sync.RWMutex
	adapters       map[string]*Adapter
	statusProvider common.StatusProvider
	stopped        bool
	wg             sync.WaitGroup

	// Heartbeat management
	heartbeatDone chan struct{}
	heartbeatSeq  int64
	startTime     time.Time
	startOnce     sync.Once
	stopOnce      sync.Once
}

// NewServer creates a new WebSocket server for board.
func NewServer(board ports.MessageBoard, opts Options) *Server {
	opts.Timeouts = opts.Timeouts.WithDefaults()
	if opts.HeartbeatInterval == 0 {
		opts.HeartbeatInterval = common.HeartbeatInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		board: board,
		opts:  opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Any origin may connect; the board has no authentication.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		ctx:           ctx,
		cancel:        cancel,
		adapters:      make(map[string]*Adapter),
		heartbeatDone: make(chan struct{}),
		startTime:     time.Now(),
	}
}

// SetStatusProvider sets the status provider for heartbeat events.
func (s *Server) SetStatusProvider(provider common.StatusProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusProvider = provider
}

// Start starts the heartbeat broadcaster.
func (s *Server) Start() error {
	s.startOnce.Do(func() {
		if s.opts.HeartbeatInterval > 0 {
			go s.heartbeatLoop()
		}
	})
	return nil
}

// Stop closes every connection and waits for their adapters to finish.
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		log.Info().Msg("WebSocket server stopping")
		close(s.heartbeatDone)

		s.mu.Lock()
		s.stopped = true
		adapters := make([]*Adapter, 0, len(s.adapters))
		for _, a := range s.adapters {
			adapters = append(adapters, a)
		}
		s.mu.Unlock()

		s.cancel()
		for _, a := range adapters {
			_ = a.Close()
		}
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	adapter := NewAdapter(s.board, NewConnTransport(conn, s.opts.Timeouts), AdapterOptions{
		PingPeriod:    s.opts.Timeouts.PingPeriod,
		ServerVersion: s.opts.ServerVersion,
		OnClose:       s.removeAdapter,
	})

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		_ = adapter.Close()
		return
	}
	s.adapters[adapter.ID()] = adapter
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	if err := adapter.Run(s.ctx); err != nil {
		log.Warn().Err(err).Str("client_id", adapter.ID()).Msg("adapter stopped with error")
	}
}

// removeAdapter removes an adapter from the server.
func (s *Server) removeAdapter(a *Adapter) {
	s.mu.Lock()
	delete(s.adapters, a.ID())
	s.mu.Unlock()
}

// Broadcast queues a frame on every connection.
func (s *Server) Broadcast(message []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.adapters {
		_ = a.Send(message)
	}
}

// AdapterCount returns the number of live connections.
func (s *Server) AdapterCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.adapters)
}

// GetAdapter returns an adapter by client ID.
func (s *Server) GetAdapter(id string) *Adapter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.adapters[id]
}

// heartbeatLoop broadcasts periodic heartbeat events to all connections.
// This provides application-level connection monitoring beyond WebSocket ping/pong.
func (s *Server) heartbeatLoop() {
	ticker := time.NewTicker(s.opts.HeartbeatInterval)
	defer ticker.Stop()

	log.Debug().Dur("interval", s.opts.HeartbeatInterval).Msg("heartbeat loop started")

	for {
		select {
		case <-s.heartbeatDone:
			log.Debug().Msg("heartbeat loop stopped")
			return

		case <-ticker.C:
			s.broadcastHeartbeat()
		}
	}
}

// broadcastHeartbeat sends a heartbeat event to all connections.
func (s *Server) broadcastHeartbeat() {
	s.mu.RLock()
	clientCount := len(s.adapters)
	provider := s.statusProvider
	s.mu.RUnlock()

	// Don't send heartbeats if no clients connected
	if clientCount == 0 {
		return
	}

	uptimeSeconds := int64(time.Since(s.startTime).Seconds())
	if provider != nil {
		uptimeSeconds = provider.GetUptimeSeconds()
	}

	seq := atomic.AddInt64(&s.heartbeatSeq, 1)
	heartbeat := events.NewHeartbeatEvent(seq, s.board.SubscriberCount(), uptimeSeconds)

	data, err := heartbeat.ToJSON()
	if err != nil {
		log.Warn().Err(err).Msg("failed to serialize heartbeat")
		return
	}

	s.Broadcast(data)
	log.Trace().Int64("seq", seq).Int("clients", clientCount).Msg("heartbeat sent")
}
