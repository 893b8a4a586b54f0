// Package websocket bridges WebSocket connections to the message hub.
//
// Architecture:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│                       Message Hub                           │
//	│   (subscriber registry, one bounded queue per subscriber)   │
//	└─────────────────────────────┬───────────────────────────────┘
//	                              │
//	          ┌───────────────────┼───────────────────┐
//	          │                   │                   │
//	          ▼                   ▼                   ▼
//	    ┌───────────┐       ┌───────────┐       ┌───────────┐
//	    │ Adapter 1 │       │ Adapter 2 │       │ Adapter N │
//	    └───────────┘       └───────────┘       └───────────┘
//
// Each Adapter owns exactly one subscriber and runs:
//   - a drain goroutine forwarding queued messages to the connection
//   - a write goroutine for keepalive pings and server frames (heartbeats)
//   - the read loop on the caller's goroutine, dispatching client commands
//
// Message Flow:
//   - Incoming: WebSocket → read loop → command → Hub.Publish
//   - Outgoing: Hub → subscriber queue → drain goroutine → WebSocket
//
// Thread Safety:
//   - Send() is safe to call from any goroutine
//   - Close() is safe to call multiple times
//   - Writes after Close are silently discarded
package websocket

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/brianly1003/msgboard/internal/domain"
	"github.com/brianly1003/msgboard/internal/domain/commands"
	"github.com/brianly1003/msgboard/internal/domain/events"
	"github.com/brianly1003/msgboard/internal/domain/ports"
	"github.com/brianly1003/msgboard/internal/server/common"
	"github.com/brianly1003/msgboard/internal/sync"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// AdapterState is the lifecycle state of an Adapter.
type AdapterState int32

const (
	StateConnecting AdapterState = iota
	StateSubscribed
	StateDraining
	StateClosed
)

func (s AdapterState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// AdapterOptions configures an Adapter.
type AdapterOptions struct {
	// PingPeriod is the keepalive ping interval. Defaults to common.PingPeriod.
	PingPeriod time.Duration

	// FrameQueueSize bounds queued server frames. Defaults to common.FrameQueueSize.
	FrameQueueSize int

	// ServerVersion is reported in the connected event.
	ServerVersion string

	// OnClose runs once after the adapter has been closed.
	OnClose func(*Adapter)
}

// Adapter connects one transport to one hub subscriber.
type Adapter struct {
	id        string
	board     ports.MessageBoard
	transport Transport
	opts      AdapterOptions
	frames    *common.FrameQueue

	state atomic.Int32

	// mu guards closed, sub and cancel. It is held across each transport
	// write so that nothing is written once closed is set.
	mu     sync.Mutex
	closed bool
	sub    ports.Subscription
	cancel context.CancelFunc

	closeOnce sync.Once
	done      chan struct{}
	drained   chan struct{}
	wg        sync.WaitGroup
}

// NewAdapter creates an adapter in the Connecting state.
func NewAdapter(board ports.MessageBoard, transport Transport, opts AdapterOptions) *Adapter {
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = common.PingPeriod
	}

	return &Adapter{
		id:        uuid.New().String(),
		board:     board,
		transport: transport,
		opts:      opts,
		frames:    common.NewFrameQueue(opts.FrameQueueSize),
		done:      make(chan struct{}),
		drained:   make(chan struct{}),
	}
}

var _ common.Client = (*Adapter)(nil)

// ID returns the client identifier.
func (a *Adapter) ID() string {
	return a.id
}

// State returns the current lifecycle state.
func (a *Adapter) State() AdapterState {
	return AdapterState(a.state.Load())
}

func (a *Adapter) setState(s AdapterState) {
	a.state.Store(int32(s))
}

// SubscriberID returns the hub subscriber id, or "" before subscription.
func (a *Adapter) SubscriberID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sub == nil {
		return ""
	}
	return a.sub.ID()
}

// Done returns a channel that's closed when the adapter is closed.
func (a *Adapter) Done() <-chan struct{} {
	return a.done
}

// Run subscribes to the board and serves the connection until it closes
// or ctx is cancelled. The read loop runs on the calling goroutine.
func (a *Adapter) Run(ctx context.Context) error {
	sub, err := a.board.Subscribe()
	if err != nil {
		_ = a.writeEvent(events.NewErrorEvent(domain.ErrCodeUnavailable, "message board unavailable", "", nil))
		_ = a.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		a.board.Unsubscribe(sub.ID())
		_ = sub.Close()
		return nil
	}
	a.sub = sub
	a.cancel = cancel
	a.mu.Unlock()
	a.setState(StateSubscribed)

	log.Info().
		Str("client_id", a.id).
		Str("subscriber_id", sub.ID()).
		Str("remote_addr", a.transport.RemoteAddr()).
		Msg("client connected")

	_ = a.writeEvent(events.NewConnectedEvent(a.id, a.opts.ServerVersion))

	a.wg.Add(3)
	go a.drainLoop(ctx, sub)
	go a.writeLoop(ctx)
	go func() {
		defer a.wg.Done()
		select {
		case <-ctx.Done():
			_ = a.Close()
		case <-a.done:
		}
	}()

	a.readLoop(ctx)
	_ = a.Close()
	a.wg.Wait()
	return nil
}

// Close runs the close sequence once: unsubscribe, close the subscriber,
// stop the goroutines and close the transport.
func (a *Adapter) Close() error {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		sub := a.sub
		cancel := a.cancel
		a.mu.Unlock()

		if sub != nil {
			a.setState(StateDraining)
			a.board.Unsubscribe(sub.ID())
			_ = sub.Close()
		} else {
			a.setState(StateClosed)
			close(a.drained)
		}
		if cancel != nil {
			cancel()
		}

		a.frames.Close()
		_ = a.transport.Close()
		close(a.done)

		log.Info().Str("client_id", a.id).Msg("client disconnected")

		if a.opts.OnClose != nil {
			a.opts.OnClose(a)
		}
	})
	return nil
}

// Wait blocks until the drain goroutine has finished, or ctx is done.
func (a *Adapter) Wait(ctx context.Context) error {
	select {
	case <-a.drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send queues a server-originated frame such as a heartbeat. If the
// client is far behind, the oldest queued frame gives way.
func (a *Adapter) Send(data []byte) error {
	return a.frames.Send(data)
}

// drainLoop forwards queued messages in the order the subscriber yields them.
func (a *Adapter) drainLoop(ctx context.Context, sub ports.Subscription) {
	defer a.wg.Done()
	defer close(a.drained)
	defer a.setState(StateClosed)

	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Debug().Str("client_id", a.id).Msg("subscription ended")
			}
			_ = a.Close()
			return
		}

		if n := sub.TakeDropped(); n > 0 {
			if err := a.writeEvent(events.NewMessagesDroppedEvent(n)); err != nil {
				_ = a.Close()
				return
			}
		}
		if err := a.writeEvent(events.NewMessagePostedEvent(msg)); err != nil {
			_ = a.Close()
			return
		}
	}
}

// writeLoop sends keepalive pings and queued server frames.
func (a *Adapter) writeLoop(ctx context.Context) {
	defer a.wg.Done()
	ticker := time.NewTicker(a.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-a.frames.Ready():
			for {
				data, ok := a.frames.Pop()
				if !ok {
					break
				}
				if err := a.write(data); err != nil {
					_ = a.Close()
					return
				}
			}

		case <-ticker.C:
			if err := a.ping(); err != nil {
				_ = a.Close()
				return
			}
		}
	}
}

// readLoop dispatches inbound commands until the transport fails.
func (a *Adapter) readLoop(ctx context.Context) {
	for {
		data, err := a.transport.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("client_id", a.id).Msg("websocket read error")
			}
			return
		}
		a.handleCommand(ctx, data)
	}
}

func (a *Adapter) handleCommand(ctx context.Context, data []byte) {
	cmd, err := commands.ParseCommand(data)
	if err != nil {
		log.Debug().Err(err).Str("client_id", a.id).Msg("invalid command")
		_ = a.writeEvent(events.NewErrorEvent(domain.ErrCodeInvalidCommand, err.Error(), "", nil))
		return
	}

	switch cmd.Command {
	case commands.CommandPostMessage:
		payload, err := cmd.ParsePostMessagePayload()
		if err != nil {
			_ = a.writeEvent(events.NewErrorEvent(domain.ErrCodeInvalidPayload, err.Error(), cmd.RequestID, nil))
			return
		}
		msg, err := a.board.Publish(ctx, payload.Content, payload.Author)
		if err != nil {
			_ = a.writeEvent(errorEvent(err, cmd.RequestID))
			return
		}
		_ = a.writeEvent(events.NewPostMessageResultEvent(msg, cmd.RequestID))

	case commands.CommandListMessages:
		msgs, err := a.board.ListMessages(ctx)
		if err != nil {
			_ = a.writeEvent(errorEvent(err, cmd.RequestID))
			return
		}
		_ = a.writeEvent(events.NewMessageListEvent(msgs, cmd.RequestID))

	case commands.CommandPing:
		_ = a.writeEvent(events.NewPongEvent(cmd.RequestID))

	default:
		_ = a.writeEvent(events.NewErrorEvent(domain.ErrCodeInvalidCommand,
			"unknown command: "+string(cmd.Command), cmd.RequestID, nil))
	}
}

// errorEvent converts a board error into a client error event.
func errorEvent(err error, requestID string) events.Event {
	code := domain.ErrorCode(err)
	var details map[string]interface{}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		details = map[string]interface{}{"field": verr.Field}
	}
	msg := err.Error()
	if code == domain.ErrCodeInternalError {
		log.Error().Err(err).Msg("command failed")
		msg = "internal error"
	}
	return events.NewErrorEvent(code, msg, requestID, details)
}

func (a *Adapter) writeEvent(ev events.Event) error {
	data, err := ev.ToJSON()
	if err != nil {
		log.Warn().Err(err).Str("event", string(ev.Type())).Msg("failed to serialize event")
		return nil
	}
	return a.write(data)
}

// write sends data unless the adapter is closed, in which case it is a
// no-op.
func (a *Adapter) write(data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	if err := a.transport.WriteMessage(data); err != nil {
		log.Debug().Err(err).Str("client_id", a.id).Msg("write error")
		return err
	}
	return nil
}

func (a *Adapter) ping() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	if err := a.transport.WritePing(); err != nil {
		log.Debug().Err(err).Str("client_id", a.id).Msg("ping error")
		return err
	}
	return nil
}
