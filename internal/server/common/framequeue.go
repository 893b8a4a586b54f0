package common

import (
	"errors"
	"sync"
)

// ErrClosed is returned when a frame is pushed to a closed queue.
var ErrClosed = errors.New("closed")

// FrameQueue holds server-originated frames, such as heartbeats, until the
// connection's writer picks them up. It never blocks the pusher: when full
// it evicts the oldest frame, the same policy the hub applies to messages,
// so the newest heartbeat always reaches a slow client.
type FrameQueue struct {
	mu      sync.Mutex
	frames  [][]byte
	cap     int
	closed  bool
	evicted uint64

	// ready holds one token while frames are waiting.
	ready chan struct{}
}

// NewFrameQueue creates a queue holding at most capacity frames.
func NewFrameQueue(capacity int) *FrameQueue {
	if capacity <= 0 {
		capacity = FrameQueueSize
	}
	return &FrameQueue{
		frames: make([][]byte, 0, capacity),
		cap:    capacity,
		ready:  make(chan struct{}, 1),
	}
}

// Send queues frame, evicting the oldest when full. It returns ErrClosed
// after Close.
func (q *FrameQueue) Send(frame []byte) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	if len(q.frames) == q.cap {
		q.frames[0] = nil
		q.frames = q.frames[1:]
		q.evicted++
	}
	q.frames = append(q.frames, frame)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return nil
}

// Ready fires when frames may be waiting. Drain them with Pop.
func (q *FrameQueue) Ready() <-chan struct{} {
	return q.ready
}

// Pop removes the oldest frame. ok is false when the queue is empty.
func (q *FrameQueue) Pop() (frame []byte, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.frames) == 0 {
		return nil, false
	}
	frame = q.frames[0]
	q.frames[0] = nil
	q.frames = q.frames[1:]
	return frame, true
}

// Evicted returns how many frames were dropped for lack of room.
func (q *FrameQueue) Evicted() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.evicted
}

// Close drops queued frames and rejects further sends. Idempotent.
func (q *FrameQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.frames = nil
}
