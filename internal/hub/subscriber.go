package hub

import (
	"context"
	"io"

	"github.com/brianly1003/msgboard/internal/domain/events"
	"github.com/brianly1003/msgboard/internal/sync"
)

// State is the lifecycle state of a Subscriber.
type State int32

const (
	// StateActive subscribers are registered and accept new messages.
	StateActive State = iota
	// StateClosing subscribers accept nothing new; buffered messages can
	// still be drained by the consumer.
	StateClosing
	// StateClosed subscribers are empty and finished.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// OverflowPolicy decides what Push does when the queue is full.
type OverflowPolicy string

const (
	// DropOldest evicts the oldest buffered message to admit the new one and
	// records the gap in the dropped counter.
	DropOldest OverflowPolicy = "drop_oldest"
	// CloseOnOverflow rejects the new message and closes the subscriber.
	CloseOnOverflow OverflowPolicy = "close"
)

// Valid reports whether p is a known policy.
func (p OverflowPolicy) Valid() bool {
	return p == DropOldest || p == CloseOnOverflow
}

// PushResult describes what happened to a pushed message.
type PushResult int

const (
	// Pushed means the message was queued.
	Pushed PushResult = iota
	// PushedWithDrop means the message was queued after evicting the oldest.
	PushedWithDrop
	// Rejected means the queue was full and the subscriber was closed.
	Rejected
	// Ignored means the subscriber was no longer active.
	Ignored
)

// Subscriber is a bounded, ordered delivery queue for one consumer.
//
// The hub is the only writer (Push); the owning consumer is the only
// reader (Next). Push never blocks.
type Subscriber struct {
	id     string
	policy OverflowPolicy

	mu      sync.Mutex
	buf     []events.Message // ring buffer, len(buf) is the capacity
	head    int
	size    int
	state   State
	dropped uint64 // evictions not yet reported to the consumer
	total   uint64 // evictions over the subscriber's lifetime

	notify chan struct{}
	done   chan struct{}
}

// NewSubscriber creates a subscriber with the given queue capacity.
// A capacity below 1 is treated as 1.
func NewSubscriber(id string, capacity int, policy OverflowPolicy) *Subscriber {
	if capacity < 1 {
		capacity = 1
	}
	if !policy.Valid() {
		policy = DropOldest
	}
	return &Subscriber{
		id:     id,
		policy: policy,
		buf:    make([]events.Message, capacity),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// ID returns the subscriber's unique identifier.
func (s *Subscriber) ID() string {
	return s.id
}

// Push queues msg without blocking.
func (s *Subscriber) Push(msg events.Message) PushResult {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return Ignored
	}

	result := Pushed
	if s.size == len(s.buf) {
		if s.policy == CloseOnOverflow {
			s.closeLocked()
			s.mu.Unlock()
			return Rejected
		}
		s.buf[s.head] = events.Message{}
		s.head = (s.head + 1) % len(s.buf)
		s.size--
		s.dropped++
		s.total++
		result = PushedWithDrop
	}

	s.buf[(s.head+s.size)%len(s.buf)] = msg
	s.size++
	s.mu.Unlock()

	s.wake()
	return result
}

// Next returns the oldest buffered message, blocking until one arrives.
// After Close it keeps returning buffered messages and then io.EOF.
func (s *Subscriber) Next(ctx context.Context) (events.Message, error) {
	for {
		s.mu.Lock()
		if s.size > 0 {
			msg := s.buf[s.head]
			s.buf[s.head] = events.Message{}
			s.head = (s.head + 1) % len(s.buf)
			s.size--
			if s.size == 0 && s.state == StateClosing {
				s.state = StateClosed
			}
			s.mu.Unlock()
			return msg, nil
		}
		if s.state != StateActive {
			s.state = StateClosed
			s.mu.Unlock()
			return events.Message{}, io.EOF
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-s.done:
		case <-ctx.Done():
			return events.Message{}, ctx.Err()
		}
	}
}

// TakeDropped returns the evictions since the last call and resets them.
func (s *Subscriber) TakeDropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.dropped
	s.dropped = 0
	return n
}

// Dropped returns the evictions not yet taken by the consumer.
func (s *Subscriber) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// DroppedTotal returns all evictions over the subscriber's lifetime.
func (s *Subscriber) DroppedTotal() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Close stops accepting messages and wakes any blocked consumer.
// Buffered messages remain readable. Safe to call multiple times.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	s.closeLocked()
	s.mu.Unlock()
	return nil
}

func (s *Subscriber) closeLocked() {
	if s.state != StateActive {
		return
	}
	s.state = StateClosing
	if s.size == 0 {
		s.state = StateClosed
	}
	close(s.done)
}

func (s *Subscriber) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Done returns a channel that's closed when the subscriber is closed.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// State returns the current lifecycle state.
func (s *Subscriber) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Len returns the number of buffered messages.
func (s *Subscriber) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Cap returns the queue capacity.
func (s *Subscriber) Cap() int {
	return len(s.buf)
}

// IsClosed returns true once the subscriber stopped accepting messages.
func (s *Subscriber) IsClosed() bool {
	return s.State() != StateActive
}
