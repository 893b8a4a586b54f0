// Package testutil provides shared test utilities and mocks for msgboard tests.
package testutil

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brianly1003/msgboard/internal/domain/events"
	"github.com/brianly1003/msgboard/internal/domain/ports"
)

// MockEventLog implements ports.EventLog for testing.
type MockEventLog struct {
	mu          sync.Mutex
	messages    []events.Message
	appendErr   error
	snapshotErr error
	lastIDErr   error
	appendDelay time.Duration
	closed      bool
}

// NewMockEventLog creates a new mock event log, optionally pre-seeded.
func NewMockEventLog(seed ...events.Message) *MockEventLog {
	return &MockEventLog{
		messages: append([]events.Message(nil), seed...),
	}
}

// Append records the message and returns any configured error.
func (m *MockEventLog) Append(ctx context.Context, msg events.Message) error {
	m.mu.Lock()
	delay := m.appendDelay
	err := m.appendErr
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

// Snapshot returns a copy of all recorded messages.
func (m *MockEventLog) Snapshot(ctx context.Context) ([]events.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshotErr != nil {
		return nil, m.snapshotErr
	}
	result := make([]events.Message, len(m.messages))
	copy(result, m.messages)
	return result, nil
}

// LastID returns the numeric id of the last recorded message.
func (m *MockEventLog) LastID(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastIDErr != nil {
		return 0, m.lastIDErr
	}
	if len(m.messages) == 0 {
		return 0, nil
	}
	return strconv.ParseUint(m.messages[len(m.messages)-1].ID, 10, 64)
}

// Count returns the number of recorded messages.
func (m *MockEventLog) Count(ctx context.Context) (int, error) {
	return m.Len(), nil
}

// Close marks the log as closed.
func (m *MockEventLog) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// SetAppendError configures an error to return on Append.
func (m *MockEventLog) SetAppendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendErr = err
}

// SetSnapshotError configures an error to return on Snapshot.
func (m *MockEventLog) SetSnapshotError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshotErr = err
}

// SetLastIDError configures an error to return on LastID.
func (m *MockEventLog) SetLastIDError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastIDErr = err
}

// SetAppendDelay makes every Append wait before recording. A context
// that ends during the wait aborts the append.
func (m *MockEventLog) SetAppendDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendDelay = d
}

// Len returns the number of recorded messages.
func (m *MockEventLog) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// IsClosed returns whether Close was called.
func (m *MockEventLog) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Ensure MockEventLog implements ports.EventLog.
var _ ports.EventLog = (*MockEventLog)(nil)

// ErrFakeTransportClosed is returned by FakeTransport after Close.
var ErrFakeTransportClosed = errors.New("fake transport closed")

// FakeTransport is an in-memory stand-in for one client connection.
// Inbound frames are fed with Inject; outbound frames are recorded.
type FakeTransport struct {
	inbound chan []byte

	mu        sync.Mutex
	written   [][]byte
	pings     int
	writeErr  error
	writeHook func([]byte)
	closed    bool
	done      chan struct{}
}

// NewFakeTransport creates a new fake transport.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{
		inbound: make(chan []byte, 64),
		done:    make(chan struct{}),
	}
}

// Inject queues an inbound frame for ReadMessage.
func (f *FakeTransport) Inject(data []byte) {
	select {
	case f.inbound <- data:
	case <-f.done:
	}
}

// ReadMessage blocks until an injected frame arrives or the transport closes.
func (f *FakeTransport) ReadMessage() ([]byte, error) {
	select {
	case data := <-f.inbound:
		return data, nil
	case <-f.done:
		return nil, io.EOF
	}
}

// WriteMessage records data.
func (f *FakeTransport) WriteMessage(data []byte) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrFakeTransportClosed
	}
	if f.writeErr != nil {
		err := f.writeErr
		f.mu.Unlock()
		return err
	}
	f.written = append(f.written, append([]byte(nil), data...))
	hook := f.writeHook
	f.mu.Unlock()

	if hook != nil {
		hook(data)
	}
	return nil
}

// WritePing records a keepalive ping.
func (f *FakeTransport) WritePing() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrFakeTransportClosed
	}
	f.pings++
	return nil
}

// Close closes the transport. Safe to call multiple times.
func (f *FakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.done)
	}
	return nil
}

// RemoteAddr returns a fixed address.
func (f *FakeTransport) RemoteAddr() string {
	return "fake:0"
}

// SetWriteError makes every subsequent write fail with err.
func (f *FakeTransport) SetWriteError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

// SetWriteHook installs fn to run after each successful write.
func (f *FakeTransport) SetWriteHook(fn func([]byte)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeHook = fn
}

// Written returns copies of all written frames.
func (f *FakeTransport) Written() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([][]byte, len(f.written))
	copy(result, f.written)
	return result
}

// WrittenEvents parses all written frames as event envelopes.
func (f *FakeTransport) WrittenEvents(t *testing.T) []*events.RawEvent {
	t.Helper()
	frames := f.Written()
	result := make([]*events.RawEvent, 0, len(frames))
	for _, frame := range frames {
		ev, err := events.ParseEvent(frame)
		if err != nil {
			t.Fatalf("written frame is not an event: %v: %s", err, frame)
		}
		result = append(result, ev)
	}
	return result
}

// Pings returns the number of keepalive pings written.
func (f *FakeTransport) Pings() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pings
}

// IsClosed returns whether Close was called.
func (f *FakeTransport) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// WaitFor polls cond until it is true or timeout elapses.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	if !cond() {
		t.Fatalf("timed out after %v: %s", timeout, msg)
	}
}

// AssertEqual is a simple equality assertion helper.
func AssertEqual(t *testing.T, expected, actual interface{}, msg string) {
	t.Helper()
	if expected != actual {
		t.Errorf("%s: expected %v, got %v", msg, expected, actual)
	}
}

// AssertTrue asserts that a condition is true.
func AssertTrue(t *testing.T, condition bool, msg string) {
	t.Helper()
	if !condition {
		t.Errorf("%s: expected true, got false", msg)
	}
}

// AssertFalse asserts that a condition is false.
func AssertFalse(t *testing.T, condition bool, msg string) {
	t.Helper()
	if condition {
		t.Errorf("%s: expected false, got true", msg)
	}
}

// AssertNoError asserts that an error is nil.
func AssertNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Errorf("%s: unexpected error: %v", msg, err)
	}
}

// AssertError asserts that an error is not nil.
func AssertError(t *testing.T, err error, msg string) {
	t.Helper()
	if err == nil {
		t.Errorf("%s: expected error, got nil", msg)
	}
}

// AssertContains checks if a string contains a substring.
func AssertContains(t *testing.T, s, substr, msg string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("%s: string %q does not contain %q", msg, s, substr)
	}
}
