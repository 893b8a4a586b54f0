// Package app orchestrates all components of msgboard.
package app

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/brianly1003/msgboard/internal/config"
	"github.com/brianly1003/msgboard/internal/domain/events"
	"github.com/brianly1003/msgboard/internal/domain/ports"
	"github.com/brianly1003/msgboard/internal/eventlog"
	"github.com/brianly1003/msgboard/internal/hub"
	"github.com/brianly1003/msgboard/internal/server/common"
	httpserver "github.com/brianly1003/msgboard/internal/server/http"
	"github.com/brianly1003/msgboard/internal/server/websocket"
	"github.com/brianly1003/msgboard/internal/share"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// shutdownTimeout bounds each server's graceful stop.
const shutdownTimeout = 5 * time.Second

// App is the main application struct that orchestrates all components.
type App struct {
	cfg     *config.Config
	version string
	out     io.Writer

	// Core components
	eventLog   ports.EventLog
	hub        *hub.Hub
	wsServer   *websocket.Server
	httpServer *httpserver.Server

	// Instance info
	instanceID string
	startTime  time.Time

	// Lifecycle
	mu      sync.RWMutex
	running bool
	ready   chan struct{}
}

// New creates a new App instance. Nothing is opened until Start.
func New(cfg *config.Config, version string) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	return &App{
		cfg:        cfg,
		version:    version,
		out:        os.Stdout,
		instanceID: uuid.New().String(),
		ready:      make(chan struct{}),
	}, nil
}

// SetOutput redirects the startup banner. Must be called before Start.
func (a *App) SetOutput(w io.Writer) {
	a.out = w
}

// Start starts the application and blocks until ctx is cancelled.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("application is already running")
	}
	a.running = true
	a.startTime = time.Now()
	a.mu.Unlock()

	if err := a.startComponents(ctx); err != nil {
		_ = a.shutdown()
		return err
	}

	a.printConnectionInfo()
	a.mu.Lock()
	close(a.ready)
	a.mu.Unlock()

	// Wait for context cancellation
	<-ctx.Done()

	// Graceful shutdown
	return a.shutdown()
}

func (a *App) startComponents(ctx context.Context) error {
	eventLog, err := eventlog.Open(a.cfg.Storage.Driver, a.cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	a.eventLog = eventLog
	log.Info().Str("driver", a.cfg.Storage.Driver).Str("path", a.cfg.Storage.Path).Msg("event log opened")

	h, err := hub.New(ctx, eventLog, hub.Options{
		QueueCapacity:    a.cfg.Hub.QueueCapacity,
		OverflowPolicy:   hub.OverflowPolicy(a.cfg.Hub.OverflowPolicy),
		MaxContentLength: a.cfg.Limits.MaxContentLength,
		MaxAuthorLength:  a.cfg.Limits.MaxAuthorLength,
	})
	if err != nil {
		return fmt.Errorf("failed to create message hub: %w", err)
	}
	a.hub = h

	// Log every posted message, like a console transcript of the board
	if err := h.Tap(ctx, "message-logger", func(msg events.Message) {
		log.Info().
			Str("message_id", msg.ID).
			Str("author", msg.Author).
			Int("length", len(msg.Content)).
			Msg("message posted")
	}); err != nil {
		return fmt.Errorf("failed to attach message logger: %w", err)
	}

	heartbeat := a.cfg.Server.HeartbeatInterval
	if heartbeat == 0 {
		heartbeat = -1
	}
	a.wsServer = websocket.NewServer(h, websocket.Options{
		Timeouts: common.Timeouts{
			WriteWait:      a.cfg.Server.WriteWait,
			PongWait:       a.cfg.Server.PongWait,
			PingPeriod:     a.cfg.Server.PingPeriod,
			MaxMessageSize: a.cfg.Server.MaxMessageSize,
		},
		HeartbeatInterval: heartbeat,
		ServerVersion:     a.version,
	})
	a.wsServer.SetStatusProvider(a)
	if err := a.wsServer.Start(); err != nil {
		return fmt.Errorf("failed to start WebSocket server: %w", err)
	}

	a.httpServer = httpserver.New(h, httpserver.Options{
		Host:           a.cfg.Server.Host,
		Port:           a.cfg.Server.Port,
		RequestTimeout: a.cfg.Server.RequestTimeout,
		PostsPerMinute: a.cfg.Limits.PostsPerMinute,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		Debug:          a.cfg.Server.Debug,
	})
	a.httpServer.SetStatusFunc(a.status)
	// WebSocket is served at /ws on the HTTP port
	a.httpServer.SetWebSocketHandler(a.wsServer)
	if err := a.httpServer.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// shutdown performs graceful shutdown of all components.
func (a *App) shutdown() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return nil
	}
	a.running = false
	// A later Start signals readiness on a fresh channel
	a.ready = make(chan struct{})

	log.Info().Msg("shutting down...")

	// Stop WebSocket server first so every adapter unsubscribes
	if a.wsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.wsServer.Stop(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("WebSocket server did not stop cleanly")
		}
		cancel()
	}

	// Stop HTTP server
	if a.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("HTTP server did not stop cleanly")
		}
		cancel()
	}

	// Stop hub
	if a.hub != nil {
		if err := a.hub.Close(); err != nil {
			log.Error().Err(err).Msg("error closing message hub")
		}
	}

	// Close the event log last; the hub never outlives it
	var err error
	if a.eventLog != nil {
		if err = a.eventLog.Close(); err != nil {
			log.Error().Err(err).Msg("error closing event log")
		}
	}

	log.Info().Msg("shutdown complete")
	return err
}

// Ready returns a channel that's closed once every server is listening.
func (a *App) Ready() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready
}

// Addr returns the HTTP listen address once started.
func (a *App) Addr() string {
	if a.httpServer == nil {
		return ""
	}
	return a.httpServer.Addr()
}

// GetUptimeSeconds returns the server uptime in seconds.
// Implements common.StatusProvider.
func (a *App) GetUptimeSeconds() int64 {
	return a.UptimeSeconds()
}

// GetVersion returns the server version.
// Implements common.StatusProvider.
func (a *App) GetVersion() string {
	return a.version
}

// status reports GET /api/status.
func (a *App) status(ctx context.Context) httpserver.StatusResponse {
	stats := a.hub.Stats()
	stored, err := a.hub.MessageCount(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to count stored messages")
	}
	return httpserver.StatusResponse{
		Version:          a.version,
		UptimeSeconds:    a.UptimeSeconds(),
		Subscribers:      stats.Subscribers,
		ConnectedClients: a.wsServer.AdapterCount(),
		Published:        stats.Published,
		Dropped:          stats.Dropped,
		OverflowCloses:   stats.OverflowCloses,
		LastMessageID:    stats.LastID,
		StoredMessages:   stored,
		StorageDriver:    a.cfg.Storage.Driver,
	}
}

// printConnectionInfo prints connection information to the console.
func (a *App) printConnectionInfo() {
	gen := share.NewGenerator(a.cfg.Server.Host, a.listenPort(), a.version)
	if a.cfg.Server.ExternalURL != "" {
		gen.SetExternalURL(a.cfg.Server.ExternalURL)
	}
	info := gen.Info()

	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, "╔════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(a.out, "║                     msgboard ready                         ║")
	fmt.Fprintln(a.out, "╠════════════════════════════════════════════════════════════╣")
	fmt.Fprintf(a.out, "║  Instance:   %-46s ║\n", a.instanceID[:8]+"...")
	fmt.Fprintf(a.out, "║  Storage:    %-46s ║\n", truncateString(a.cfg.Storage.Driver, 46))
	fmt.Fprintln(a.out, "╠════════════════════════════════════════════════════════════╣")
	fmt.Fprintf(a.out, "║  API:        %-46s ║\n", truncateString(info.HTTP, 46))
	fmt.Fprintf(a.out, "║  WebSocket:  %-46s ║\n", truncateString(info.WebSocket, 46))
	fmt.Fprintln(a.out, "╚════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(a.out)
}

// listenPort returns the bound port, which differs from the configured
// one when port 0 was requested.
func (a *App) listenPort() int {
	_, portStr, err := net.SplitHostPort(a.Addr())
	if err != nil {
		return a.cfg.Server.Port
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return a.cfg.Server.Port
	}
	return port
}

// InstanceID returns the id generated for this run.
func (a *App) InstanceID() string {
	return a.instanceID
}

// GetHub returns the message hub, or nil before Start.
func (a *App) GetHub() *hub.Hub {
	return a.hub
}

// GetConfig returns the configuration.
func (a *App) GetConfig() *config.Config {
	return a.cfg
}

// UptimeSeconds returns how long the app has been running.
func (a *App) UptimeSeconds() int64 {
	return int64(time.Since(a.startTime).Seconds())
}

// truncateString truncates a string to maxLen characters.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
