package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brianly1003/msgboard/internal/domain/events"
	"github.com/brianly1003/msgboard/internal/hub"
	"github.com/brianly1003/msgboard/internal/server/common"
	"github.com/brianly1003/msgboard/internal/testutil"
	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T, opts Options) (*Server, *hub.Hub, *httptest.Server) {
	t.Helper()
	h, err := hub.New(context.Background(), testutil.NewMockEventLog(), hub.DefaultOptions())
	if err != nil {
		t.Fatalf("hub.New() error = %v", err)
	}
	server := NewServer(h, opts)
	if err := server.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	ts := httptest.NewServer(server)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := server.Stop(ctx); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
		ts.Close()
	})
	return server, h, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil reads events until one of type et arrives.
func readUntil(t *testing.T, conn *websocket.Conn, et events.EventType) *events.RawEvent {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage() waiting for %s: %v", et, err)
		}
		ev, err := events.ParseEvent(data)
		if err != nil {
			t.Fatalf("ParseEvent() error = %v: %s", err, data)
		}
		if ev.EventType == et {
			return ev
		}
	}
}

func TestNewServer_Defaults(t *testing.T) {
	h, _ := hub.New(context.Background(), testutil.NewMockEventLog(), hub.DefaultOptions())
	server := NewServer(h, Options{})

	if server.opts.Timeouts != common.DefaultTimeouts() {
		t.Errorf("Timeouts = %+v, want defaults", server.opts.Timeouts)
	}
	if server.opts.HeartbeatInterval != common.HeartbeatInterval {
		t.Errorf("HeartbeatInterval = %v, want %v", server.opts.HeartbeatInterval, common.HeartbeatInterval)
	}
	if server.AdapterCount() != 0 {
		t.Errorf("AdapterCount() = %d, want 0", server.AdapterCount())
	}
	if server.GetAdapter("missing") != nil {
		t.Error("GetAdapter() should return nil for unknown ids")
	}
}

func TestServer_EndToEnd(t *testing.T) {
	server, h, ts := newTestServer(t, Options{ServerVersion: "test", HeartbeatInterval: -1})

	alice := dial(t, ts)
	bob := dial(t, ts)
	readUntil(t, alice, events.EventTypeConnected)
	readUntil(t, bob, events.EventTypeConnected)

	testutil.WaitFor(t, time.Second, func() bool { return server.AdapterCount() == 2 }, "two adapters")
	if h.SubscriberCount() != 2 {
		t.Errorf("SubscriberCount() = %d, want 2", h.SubscriberCount())
	}

	err := alice.WriteMessage(websocket.TextMessage,
		[]byte(`{"command":"post_message","request_id":"a1","payload":{"content":"hi","author":"alice"}}`))
	if err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	posted := readUntil(t, bob, events.EventTypeMessagePosted)
	var msg events.Message
	if err := posted.DecodePayload(&msg); err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	if msg.ID != "1" || msg.Content != "hi" || msg.Author != "alice" {
		t.Errorf("bob received %+v", msg)
	}

	// Messages published elsewhere reach WebSocket clients too.
	if _, err := h.Publish(context.Background(), "yo", "bob"); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	// The reply and the live messages travel on different goroutines, so
	// only the order among message_posted events is fixed.
	var gotResult bool
	var contents []string
	_ = alice.SetReadDeadline(time.Now().Add(2 * time.Second))
	for !gotResult || len(contents) < 2 {
		_, data, err := alice.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage() error = %v", err)
		}
		ev, err := events.ParseEvent(data)
		if err != nil {
			t.Fatalf("ParseEvent() error = %v", err)
		}
		switch ev.EventType {
		case events.EventTypePostMessageResult:
			gotResult = true
			if ev.RequestID != "a1" {
				t.Errorf("RequestID = %q, want a1", ev.RequestID)
			}
		case events.EventTypeMessagePosted:
			var m events.Message
			_ = ev.DecodePayload(&m)
			contents = append(contents, m.ID+":"+m.Content)
		}
	}
	if contents[0] != "1:hi" || contents[1] != "2:yo" {
		t.Errorf("alice received %v, want [1:hi 2:yo]", contents)
	}
}

func TestServer_DisconnectUnsubscribes(t *testing.T) {
	server, h, ts := newTestServer(t, Options{HeartbeatInterval: -1})

	conn := dial(t, ts)
	readUntil(t, conn, events.EventTypeConnected)
	testutil.WaitFor(t, time.Second, func() bool { return h.SubscriberCount() == 1 }, "subscribe")

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	_ = conn.Close()

	testutil.WaitFor(t, 2*time.Second, func() bool {
		return h.SubscriberCount() == 0 && server.AdapterCount() == 0
	}, "disconnect cleanup")
}

func TestServer_Heartbeat(t *testing.T) {
	_, _, ts := newTestServer(t, Options{HeartbeatInterval: 20 * time.Millisecond})

	conn := dial(t, ts)
	ev := readUntil(t, conn, events.EventTypeHeartbeat)

	var payload events.HeartbeatPayload
	if err := ev.DecodePayload(&payload); err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	if payload.Sequence < 1 {
		t.Errorf("Sequence = %d, want >= 1", payload.Sequence)
	}
	if payload.Subscribers != 1 {
		t.Errorf("Subscribers = %d, want 1", payload.Subscribers)
	}
}

type fixedStatus struct{}

func (fixedStatus) GetUptimeSeconds() int64 { return 4242 }
func (fixedStatus) GetVersion() string      { return "v" }

func TestServer_HeartbeatUsesStatusProvider(t *testing.T) {
	server, _, ts := newTestServer(t, Options{HeartbeatInterval: 20 * time.Millisecond})
	server.SetStatusProvider(fixedStatus{})

	conn := dial(t, ts)
	ev := readUntil(t, conn, events.EventTypeHeartbeat)
	var payload events.HeartbeatPayload
	_ = ev.DecodePayload(&payload)
	if payload.Uptime != 4242 {
		t.Errorf("Uptime = %d, want 4242", payload.Uptime)
	}
}

func TestServer_StopClosesClients(t *testing.T) {
	server, h, ts := newTestServer(t, Options{HeartbeatInterval: -1})

	conns := []*websocket.Conn{dial(t, ts), dial(t, ts), dial(t, ts)}
	for _, c := range conns {
		readUntil(t, c, events.EventTypeConnected)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func(c *websocket.Conn) {
			defer wg.Done()
			_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
			for {
				if _, _, err := c.ReadMessage(); err != nil {
					return
				}
			}
		}(c)
	}
	wg.Wait()

	if h.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() = %d after Stop, want 0", h.SubscriberCount())
	}

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status after Stop = %d, want 503", resp.StatusCode)
	}
}

func TestServer_RejectsPlainHTTP(t *testing.T) {
	_, _, ts := newTestServer(t, Options{HeartbeatInterval: -1})

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}
