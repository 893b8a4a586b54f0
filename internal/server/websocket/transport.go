package websocket

import (
	"sync"
	"time"

	"github.com/brianly1003/msgboard/internal/server/common"
	"github.com/gorilla/websocket"
)

// Transport is the outbound and inbound side of one client connection as
// seen by an Adapter.
type Transport interface {
	// ReadMessage blocks until the next data frame arrives.
	ReadMessage() ([]byte, error)

	// WriteMessage writes one text frame.
	WriteMessage(data []byte) error

	// WritePing writes a keepalive ping.
	WritePing() error

	// Close closes the connection. Safe to call multiple times.
	Close() error

	// RemoteAddr returns the peer address for logging.
	RemoteAddr() string
}

// connTransport adapts a gorilla websocket connection to Transport.
// Writes are serialized because the connection supports one concurrent
// writer.
type connTransport struct {
	conn     *websocket.Conn
	timeouts common.Timeouts

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewConnTransport wraps conn and arms its read limit, read deadline and
// pong handler.
func NewConnTransport(conn *websocket.Conn, timeouts common.Timeouts) Transport {
	timeouts = timeouts.WithDefaults()

	conn.SetReadLimit(timeouts.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(timeouts.PongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(timeouts.PongWait))
		return nil
	})

	return &connTransport{conn: conn, timeouts: timeouts}
}

func (t *connTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

// WriteMessage sends each message as a separate frame.
func (t *connTransport) WriteMessage(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(t.timeouts.WriteWait))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *connTransport) WritePing() error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(t.timeouts.WriteWait))
	return t.conn.WriteMessage(websocket.PingMessage, nil)
}

// Close sends a close frame with a deadline to avoid blocking on laggy
// connections, then closes the socket.
func (t *connTransport) Close() error {
	t.closeOnce.Do(func() {
		t.writeMu.Lock()
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.timeouts.WriteWait))
		_ = t.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		t.writeMu.Unlock()
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}

func (t *connTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}
