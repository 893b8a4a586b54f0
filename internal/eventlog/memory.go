// Package eventlog provides the EventLog implementations: an in-memory log
// for ephemeral boards and a SQLite-backed log that survives restarts.
package eventlog

import (
	"context"
	"strconv"
	"sync"

	"github.com/brianly1003/msgboard/internal/domain"
	"github.com/brianly1003/msgboard/internal/domain/events"
	"github.com/brianly1003/msgboard/internal/domain/ports"
)

// Memory is an unbounded in-process event log.
type Memory struct {
	mu       sync.RWMutex
	messages []events.Message
	closed   bool
}

// NewMemory creates an empty in-memory event log.
func NewMemory() *Memory {
	return &Memory{}
}

// Append stores msg at the end of the log.
func (m *Memory) Append(ctx context.Context, msg events.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return domain.NewStorageError("append", ErrClosed)
	}
	m.messages = append(m.messages, msg)
	return nil
}

// Snapshot returns a copy of the log in append order.
func (m *Memory) Snapshot(ctx context.Context) ([]events.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, domain.NewStorageError("snapshot", ErrClosed)
	}
	result := make([]events.Message, len(m.messages))
	copy(result, m.messages)
	return result, nil
}

// LastID returns the id of the newest message, or 0 for an empty log.
func (m *Memory) LastID(ctx context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.messages) == 0 {
		return 0, nil
	}
	id, err := strconv.ParseUint(m.messages[len(m.messages)-1].ID, 10, 64)
	if err != nil {
		return 0, domain.NewStorageError("last_id", err)
	}
	return id, nil
}

// Count returns the number of stored messages.
func (m *Memory) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, domain.NewStorageError("count", ErrClosed)
	}
	return len(m.messages), nil
}

// Close releases the stored messages.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.messages = nil
	return nil
}

var _ ports.EventLog = (*Memory)(nil)
