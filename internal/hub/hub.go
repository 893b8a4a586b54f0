// Package hub implements the message hub for msgboard: the subscriber
// registry and the fan-out of every published message to every subscriber.
package hub

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/brianly1003/msgboard/internal/domain"
	"github.com/brianly1003/msgboard/internal/domain/events"
	"github.com/brianly1003/msgboard/internal/domain/ports"
	"github.com/brianly1003/msgboard/internal/sync"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Default option values.
const (
	DefaultQueueCapacity    = 64
	DefaultMaxContentLength = 2000
	DefaultMaxAuthorLength  = 64
)

// Options configures a Hub.
type Options struct {
	// QueueCapacity is the per-subscriber queue size.
	QueueCapacity int

	// OverflowPolicy applies when a subscriber's queue is full.
	OverflowPolicy OverflowPolicy

	// MaxContentLength and MaxAuthorLength bound the trimmed inputs in
	// runes. Zero disables the check.
	MaxContentLength int
	MaxAuthorLength  int

	// Now returns the publish timestamp. Defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions returns the default hub options.
func DefaultOptions() Options {
	return Options{
		QueueCapacity:    DefaultQueueCapacity,
		OverflowPolicy:   DropOldest,
		MaxContentLength: DefaultMaxContentLength,
		MaxAuthorLength:  DefaultMaxAuthorLength,
		Now:              time.Now,
	}
}

// Stats is a point-in-time view of hub counters.
type Stats struct {
	Subscribers    int    `json:"subscribers"`
	Published      uint64 `json:"published"`
	Dropped        uint64 `json:"dropped"`
	OverflowCloses uint64 `json:"overflow_closes"`
	LastID         uint64 `json:"last_id"`
}

// Hub is the central message dispatcher that fans out messages to all
// subscribers.
type Hub struct {
	eventLog ports.EventLog
	opts     Options

	// mu protects subscribers, lastID and closed. It covers registry
	// bookkeeping only, never the pushes into subscriber queues.
	mu          sync.Mutex
	subscribers map[string]*Subscriber
	lastID      uint64
	closed      bool

	// deliverMu sequences fan-out so that deliveries into every queue
	// follow id order. It is acquired before mu is released.
	deliverMu sync.Mutex

	published      atomic.Uint64
	dropped        atomic.Uint64
	overflowCloses atomic.Uint64
}

// New creates a new Hub backed by eventLog. Message ids continue after the
// newest message already in the log.
func New(ctx context.Context, eventLog ports.EventLog, opts Options) (*Hub, error) {
	if eventLog == nil {
		return nil, fmt.Errorf("hub: event log is required")
	}
	if opts.QueueCapacity < 1 {
		opts.QueueCapacity = DefaultQueueCapacity
	}
	if !opts.OverflowPolicy.Valid() {
		opts.OverflowPolicy = DropOldest
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	lastID, err := eventLog.LastID(ctx)
	if err != nil {
		return nil, fmt.Errorf("hub: failed to read last message id: %w", err)
	}

	return &Hub{
		eventLog:    eventLog,
		opts:        opts,
		subscribers: make(map[string]*Subscriber),
		lastID:      lastID,
	}, nil
}

// Publish validates content and author, records a new message and delivers
// it to every subscriber registered at the time of the call.
//
// Every subscriber in the registry snapshot sees the message, and sees it
// after any message whose Publish returned earlier. A full queue for one
// subscriber never delays the others.
func (h *Hub) Publish(ctx context.Context, content, author string) (events.Message, error) {
	content, author, err := h.validate(content, author)
	if err != nil {
		return events.Message{}, err
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return events.Message{}, domain.ErrHubClosed
	}

	id := h.lastID + 1
	msg := events.NewMessage(strconv.FormatUint(id, 10), content, author, h.opts.Now())
	if err := h.eventLog.Append(ctx, msg); err != nil {
		h.mu.Unlock()
		return events.Message{}, fmt.Errorf("failed to append message: %w", err)
	}
	h.lastID = id

	snapshot := make([]*Subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		snapshot = append(snapshot, sub)
	}

	h.deliverMu.Lock()
	h.mu.Unlock()
	overflowed := h.deliver(msg, snapshot)
	h.deliverMu.Unlock()

	h.published.Add(1)
	log.Trace().
		Str("message_id", msg.ID).
		Int("subscribers", len(snapshot)).
		Msg("message published")

	for _, subID := range overflowed {
		h.Unsubscribe(subID)
	}

	return msg, nil
}

// deliver pushes msg into each queue and returns the ids of subscribers
// that were closed by the overflow policy.
func (h *Hub) deliver(msg events.Message, snapshot []*Subscriber) []string {
	var overflowed []string
	for _, sub := range snapshot {
		switch sub.Push(msg) {
		case PushedWithDrop:
			h.dropped.Add(1)
			log.Debug().
				Str("subscriber_id", sub.ID()).
				Str("message_id", msg.ID).
				Msg("subscriber queue full, dropped oldest message")
		case Rejected:
			h.overflowCloses.Add(1)
			overflowed = append(overflowed, sub.ID())
			log.Warn().
				Str("subscriber_id", sub.ID()).
				Str("message_id", msg.ID).
				Msg("subscriber queue full, closing subscriber")
		}
	}
	return overflowed
}

func (h *Hub) validate(content, author string) (string, string, error) {
	content = strings.TrimSpace(content)
	author = strings.TrimSpace(author)

	if content == "" {
		return "", "", domain.NewValidationError("content", "must not be empty")
	}
	if author == "" {
		return "", "", domain.NewValidationError("author", "must not be empty")
	}
	if limit := h.opts.MaxContentLength; limit > 0 && utf8.RuneCountInString(content) > limit {
		return "", "", domain.NewValidationError("content", fmt.Sprintf("must be at most %d characters", limit))
	}
	if limit := h.opts.MaxAuthorLength; limit > 0 && utf8.RuneCountInString(author) > limit {
		return "", "", domain.NewValidationError("author", fmt.Sprintf("must be at most %d characters", limit))
	}
	return content, author, nil
}

// Subscribe registers a new subscriber and returns its consumer handle.
func (h *Hub) Subscribe() (ports.Subscription, error) {
	sub, err := h.SubscribeChannel()
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// SubscribeChannel registers a new subscriber with a fresh identity and an
// empty queue.
func (h *Hub) SubscribeChannel() (*Subscriber, error) {
	sub := NewSubscriber(uuid.New().String(), h.opts.QueueCapacity, h.opts.OverflowPolicy)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, domain.ErrHubClosed
	}
	h.subscribers[sub.ID()] = sub
	count := len(h.subscribers)
	h.mu.Unlock()

	log.Debug().
		Str("subscriber_id", sub.ID()).
		Int("subscribers", count).
		Msg("subscriber registered")
	return sub, nil
}

// Unsubscribe removes a subscriber by ID and closes it. Unknown IDs and
// repeated calls are no-ops.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subscribers[id]
	if ok {
		delete(h.subscribers, id)
	}
	h.mu.Unlock()

	if !ok {
		return
	}
	_ = sub.Close()
	log.Debug().Str("subscriber_id", id).Msg("subscriber unregistered")
}

// ListMessages returns the full message history in publish order.
func (h *Hub) ListMessages(ctx context.Context) ([]events.Message, error) {
	msgs, err := h.eventLog.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

// MessageCount returns the number of messages in the event log.
func (h *Hub) MessageCount(ctx context.Context) (int, error) {
	n, err := h.eventLog.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return n, nil
}

// SubscriberCount returns the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Stats returns the current hub counters.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	subs := len(h.subscribers)
	lastID := h.lastID
	h.mu.Unlock()

	return Stats{
		Subscribers:    subs,
		Published:      h.published.Load(),
		Dropped:        h.dropped.Load(),
		OverflowCloses: h.overflowCloses.Load(),
		LastID:         lastID,
	}
}

// Close closes every subscriber. Later Publish and Subscribe calls fail
// with domain.ErrHubClosed. The event log is left open for its owner.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	subs := h.subscribers
	h.subscribers = make(map[string]*Subscriber)
	h.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}

	log.Debug().Int("subscribers", len(subs)).Msg("message hub closed")
	return nil
}

// IsClosed returns true once Close has been called.
func (h *Hub) IsClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Ensure Hub implements ports.MessageBoard.
var _ ports.MessageBoard = (*Hub)(nil)
