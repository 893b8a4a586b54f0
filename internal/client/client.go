// Package client is a WebSocket client for a msgboard server. It is used by
// the post and tail commands.
package client

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/brianly1003/msgboard/internal/domain/commands"
	"github.com/brianly1003/msgboard/internal/domain/events"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// HandshakeTimeout bounds the WebSocket handshake.
	HandshakeTimeout = 10 * time.Second

	// eventBufferSize bounds unsolicited events waiting for Events readers.
	eventBufferSize = 256

	writeWait = 10 * time.Second
)

// ErrClosed is returned once the connection has closed.
var ErrClosed = errors.New("connection closed")

// ServerError is an error event returned by the server.
type ServerError struct {
	Code    string
	Message string
	Field   string
}

func (e *ServerError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Client is a msgboard WebSocket client. Replies to commands are matched by
// request id; everything else is delivered on Events.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  int64
	pending map[string]chan *events.RawEvent

	clientID  string
	connected chan struct{}
	events    chan *events.RawEvent
	closeCh   chan struct{}
	closeOnce sync.Once
}

// Dial connects to the board WebSocket endpoint at url and waits for the
// connected event.
func Dial(ctx context.Context, url string) (*Client, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	c := &Client{
		conn:      conn,
		nextID:    1,
		pending:   make(map[string]chan *events.RawEvent),
		connected: make(chan struct{}),
		events:    make(chan *events.RawEvent, eventBufferSize),
		closeCh:   make(chan struct{}),
	}

	// Start reading events in background
	go c.readLoop()

	select {
	case <-c.connected:
		return c, nil
	case <-c.closeCh:
		return nil, fmt.Errorf("failed to connect to %s: %w", url, ErrClosed)
	case <-ctx.Done():
		_ = c.Close()
		return nil, ctx.Err()
	}
}

// ClientID returns the id the server assigned to this connection.
func (c *Client) ClientID() string {
	return c.clientID
}

// Events returns server events that are not replies: message_posted,
// messages_dropped and heartbeat. The channel is closed with the connection.
// Events are discarded when nobody keeps up with the channel.
func (c *Client) Events() <-chan *events.RawEvent {
	return c.events
}

// Done returns a channel that's closed when the connection closes.
func (c *Client) Done() <-chan struct{} {
	return c.closeCh
}

// Post publishes a message and returns it as stored by the server.
func (c *Client) Post(ctx context.Context, content, author string) (events.Message, error) {
	reqID := c.newRequestID()
	cmd, err := commands.NewPostMessageCommand(reqID, content, author)
	if err != nil {
		return events.Message{}, fmt.Errorf("failed to create command: %w", err)
	}

	reply, err := c.call(ctx, cmd)
	if err != nil {
		return events.Message{}, err
	}

	var msg events.Message
	if err := reply.DecodePayload(&msg); err != nil {
		return events.Message{}, fmt.Errorf("invalid post_message_result: %w", err)
	}
	return msg, nil
}

// List returns the full message history.
func (c *Client) List(ctx context.Context) ([]events.Message, error) {
	reply, err := c.call(ctx, &commands.Command{Command: commands.CommandListMessages, RequestID: c.newRequestID()})
	if err != nil {
		return nil, err
	}

	var payload events.MessageListPayload
	if err := reply.DecodePayload(&payload); err != nil {
		return nil, fmt.Errorf("invalid message_list: %w", err)
	}
	return payload.Messages, nil
}

// Ping round-trips an application-level ping.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, &commands.Command{Command: commands.CommandPing, RequestID: c.newRequestID()})
	return err
}

// Follow calls onMessage for every message in order until ctx is done or
// the connection closes. With history it first replays the stored messages
// and skips live duplicates of them. onDropped, if set, is told how many
// messages the server evicted because this client fell behind.
func (c *Client) Follow(ctx context.Context, history bool, onMessage func(events.Message), onDropped func(uint64)) error {
	var lastID uint64
	if history {
		msgs, err := c.List(ctx)
		if err != nil {
			return err
		}
		for _, msg := range msgs {
			onMessage(msg)
			if id, err := strconv.ParseUint(msg.ID, 10, 64); err == nil {
				lastID = id
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-c.events:
			if !ok {
				return ErrClosed
			}
			switch ev.EventType {
			case events.EventTypeMessagePosted:
				var msg events.Message
				if err := ev.DecodePayload(&msg); err != nil {
					log.Warn().Err(err).Msg("invalid message_posted event")
					continue
				}
				if id, err := strconv.ParseUint(msg.ID, 10, 64); err == nil {
					if id <= lastID {
						continue
					}
					lastID = id
				}
				onMessage(msg)

			case events.EventTypeMessagesDropped:
				var payload events.MessagesDroppedPayload
				if err := ev.DecodePayload(&payload); err == nil && onDropped != nil {
					onDropped(payload.Count)
				}
			}
		}
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *Client) newRequestID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	return strconv.FormatInt(id, 10)
}

// call sends cmd and waits for the reply with the same request id.
func (c *Client) call(ctx context.Context, cmd *commands.Command) (*events.RawEvent, error) {
	respCh := make(chan *events.RawEvent, 1)
	c.mu.Lock()
	c.pending[cmd.RequestID] = respCh
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, cmd.RequestID)
		c.mu.Unlock()
	}()

	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.conn.WriteJSON(cmd)
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", cmd.Command, err)
	}

	select {
	case reply := <-respCh:
		if reply.EventType == events.EventTypeError {
			return nil, decodeServerError(reply)
		}
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closeCh:
		return nil, ErrClosed
	}
}

func decodeServerError(ev *events.RawEvent) error {
	var payload events.ErrorPayload
	if err := ev.DecodePayload(&payload); err != nil {
		return fmt.Errorf("invalid error event: %w", err)
	}
	serr := &ServerError{Code: payload.Code, Message: payload.Message}
	if field, ok := payload.Details["field"].(string); ok {
		serr.Field = field
	}
	return serr
}

// readLoop reads events from the WebSocket connection.
func (c *Client) readLoop() {
	defer close(c.events)
	defer close(c.closeCh)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("websocket read error")
			}
			_ = c.conn.Close()
			return
		}

		ev, err := events.ParseEvent(data)
		if err != nil {
			log.Warn().Err(err).Msg("ignoring malformed event")
			continue
		}

		if ev.EventType == events.EventTypeConnected {
			var payload events.ConnectedPayload
			_ = ev.DecodePayload(&payload)
			select {
			case <-c.connected:
			default:
				c.clientID = payload.ClientID
				close(c.connected)
			}
			continue
		}

		// Route replies to waiting callers
		if ev.RequestID != "" {
			c.mu.Lock()
			ch, ok := c.pending[ev.RequestID]
			c.mu.Unlock()
			if ok {
				ch <- ev
				continue
			}
		}

		select {
		case c.events <- ev:
		default:
			log.Debug().Str("event", string(ev.EventType)).Msg("event buffer full, dropping event")
		}
	}
}
