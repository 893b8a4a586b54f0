// Package http implements the HTTP API server for msgboard.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/brianly1003/msgboard/internal/domain"
	"github.com/brianly1003/msgboard/internal/domain/ports"
	"github.com/brianly1003/msgboard/internal/security"
	"github.com/brianly1003/msgboard/internal/server/http/middleware"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultRequestTimeout bounds non-streaming requests.
	DefaultRequestTimeout = 10 * time.Second

	// maxBodyBytes bounds the POST /api/messages body.
	maxBodyBytes = 64 * 1024
)

// Options configures the HTTP server.
type Options struct {
	Host string
	Port int

	// RequestTimeout bounds every request except /ws, /health and /debug/.
	// POST /api/messages gets it as a context deadline on Publish.
	// Zero uses DefaultRequestTimeout.
	RequestTimeout time.Duration

	// PostsPerMinute limits POST requests per client IP. Zero disables it.
	PostsPerMinute int

	// AllowedOrigins lists CORS origins. Empty allows localhost only;
	// "*" allows any origin and "*.example.com" a domain with its subdomains.
	AllowedOrigins []string

	// Debug registers /debug/runtime and the pprof endpoints.
	Debug bool
}

// Server is the HTTP API server.
type Server struct {
	board       ports.MessageBoard
	opts        Options
	router      *mux.Router
	handler     http.Handler
	server      *http.Server
	rateLimiter *middleware.RateLimiter
	origins     *security.OriginChecker

	mu        sync.RWMutex
	listener  net.Listener
	wsHandler http.Handler
	statusFn  func(ctx context.Context) StatusResponse
}

// New creates a new HTTP server for board.
func New(board ports.MessageBoard, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}

	s := &Server{
		board:   board,
		opts:    opts,
		router:  mux.NewRouter(),
		origins: security.NewOriginChecker(opts.AllowedOrigins),
	}

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/api/messages", s.handleListMessages).Methods(http.MethodGet)
	s.router.HandleFunc("/api/messages", s.handlePostMessage).Methods(http.MethodPost)
	s.router.HandleFunc("/ws", s.handleWebSocket)

	if opts.Debug {
		NewDebugHandler(true).Register(s.router)
	}

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found", "", "")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", "", "")
	})

	// Build middleware chain from inside out:
	// request -> logging -> rate limit (optional) -> timeout -> cors -> router
	var handler http.Handler = s.router
	handler = s.corsMiddleware(handler)
	handler = timeoutMiddleware(opts.RequestTimeout, handler)
	if opts.PostsPerMinute > 0 {
		s.rateLimiter = middleware.NewRateLimiter(opts.PostsPerMinute)
		handler = middleware.RateLimitMiddleware(s.rateLimiter, middleware.IPKeyExtractor, http.MethodPost)(handler)
		log.Info().Int("posts_per_minute", opts.PostsPerMinute).Msg("rate limiting enabled for POST requests")
	}
	s.handler = requestLoggingMiddleware(handler)

	return s
}

// SetWebSocketHandler sets the handler for WebSocket connections at /ws.
func (s *Server) SetWebSocketHandler(handler http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wsHandler = handler
}

// SetStatusFunc sets the function that reports /api/status.
func (s *Server) SetStatusFunc(fn func(ctx context.Context) StatusResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusFn = fn
}

// Handler returns the full middleware chain, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and serves in the background.
// Listen errors are returned synchronously.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.opts.Host, fmt.Sprintf("%d", s.opts.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.listener = ln
	s.server = srv
	s.mu.Unlock()

	log.Info().Str("addr", ln.Addr().String()).Msg("HTTP server starting")

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	return nil
}

// Addr returns the listening address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	log.Info().Msg("HTTP server stopping")

	if s.rateLimiter != nil {
		s.rateLimiter.Close()
	}

	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	fn := s.statusFn
	s.mu.RUnlock()

	if fn == nil {
		writeJSON(w, http.StatusOK, StatusResponse{Subscribers: s.board.SubscriberCount()})
		return
	}
	writeJSON(w, http.StatusOK, fn(r.Context()))
}

// handleListMessages handles GET /api/messages
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.board.ListMessages(r.Context())
	if err != nil {
		writeBoardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessagesResponse{Messages: msgs})
}

// handlePostMessage handles POST /api/messages
func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), domain.ErrCodeInvalidPayload, "")
		return
	}

	// Publish runs under a deadline instead of the timeout handler so the
	// response always matches whether the message was stored.
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.RequestTimeout)
	defer cancel()

	msg, err := s.board.Publish(ctx, req.Content, req.Author)
	if err != nil {
		writeBoardError(w, err)
		return
	}

	log.Debug().Str("message_id", msg.ID).Str("author", msg.Author).Msg("message posted via HTTP")
	writeJSON(w, http.StatusCreated, msg)
}

// handleWebSocket hands /ws to the WebSocket server.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	handler := s.wsHandler
	s.mu.RUnlock()

	if handler == nil {
		writeError(w, http.StatusServiceUnavailable, "websocket endpoint not configured", domain.ErrCodeUnavailable, "")
		return
	}

	log.Debug().
		Str("remote_addr", r.RemoteAddr).
		Str("origin", r.Header.Get("Origin")).
		Msg("WebSocket upgrade request received at /ws")
	handler.ServeHTTP(w, r)
}

// requestLoggingMiddleware logs all incoming requests for debugging.
func requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Str("user_agent", r.UserAgent()).
			Msg("incoming request")

		next.ServeHTTP(w, r)

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request completed")
	})
}

// timeoutMiddleware wraps handlers with a timeout to prevent hanging requests.
func timeoutMiddleware(timeout time.Duration, next http.Handler) http.Handler {
	body, _ := json.Marshal(ErrorResponse{Error: "request timed out"})
	timed := http.TimeoutHandler(next, timeout, string(body))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// WebSocket upgrades hijack the connection and pprof profiles stream
		// for longer than the timeout.
		if r.URL.Path == "/health" || r.URL.Path == "/ws" || strings.HasPrefix(r.URL.Path, "/debug/") ||
			isPostMessage(r) {
			next.ServeHTTP(w, r)
			return
		}
		timed.ServeHTTP(w, r)
	})
}

// isPostMessage reports whether r publishes a message. Those requests
// bound themselves with a context deadline.
func isPostMessage(r *http.Request) bool {
	return r.Method == http.MethodPost && r.URL.Path == "/api/messages"
}

// corsMiddleware adds CORS headers for allowed origins and answers
// preflight requests before routing.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// WebSocket upgrades carry an Origin too; the upgrader decides those.
		if origin != "" && r.URL.Path != "/ws" {
			if !s.origins.Allowed(origin) {
				log.Warn().
					Str("origin", origin).
					Str("remote", r.RemoteAddr).
					Msg("CORS request rejected - origin not allowed")
				writeError(w, http.StatusForbidden, "origin not allowed", "", "")
				return
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeBoardError maps a board error to an HTTP status and error body.
func writeBoardError(w http.ResponseWriter, err error) {
	code := domain.ErrorCode(err)

	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message, code, verr.Field)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request timed out", domain.ErrCodeUnavailable, "")
	case code == domain.ErrCodeUnavailable:
		writeError(w, http.StatusServiceUnavailable, err.Error(), code, "")
	default:
		log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error", code, "")
	}
}

func writeError(w http.ResponseWriter, status int, msg, code, field string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code, Field: field})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)

	// Flush to ensure response is sent immediately
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
