package ports

import (
	"context"

	"github.com/brianly1003/msgboard/internal/domain/events"
)

// EventLog is the ordered, append-only store of posted messages.
type EventLog interface {
	// Append stores msg after every previously appended message.
	Append(ctx context.Context, msg events.Message) error

	// Snapshot returns all stored messages in append order.
	Snapshot(ctx context.Context) ([]events.Message, error)

	// LastID returns the numeric id of the newest stored message, or 0.
	LastID(ctx context.Context) (uint64, error)

	// Count returns the number of stored messages.
	Count(ctx context.Context) (int, error)

	// Close releases any resources held by the log.
	Close() error
}

// Subscription is the consumer side of one subscriber's delivery queue.
type Subscription interface {
	// ID returns the subscriber's identity token.
	ID() string

	// Next blocks until a message is available. It returns io.EOF once the
	// subscription is closed and drained, or ctx.Err() if ctx ends first.
	Next(ctx context.Context) (events.Message, error)

	// TakeDropped returns the number of messages evicted since the last
	// call and resets the counter.
	TakeDropped() uint64

	// Close closes the subscription. Safe to call multiple times.
	Close() error

	// Done returns a channel that's closed when the subscription is closed.
	Done() <-chan struct{}
}

// MessageBoard defines the contract for publishing and subscribing to
// board messages.
type MessageBoard interface {
	// Publish validates and records a new message and fans it out to all
	// current subscribers.
	Publish(ctx context.Context, content, author string) (events.Message, error)

	// ListMessages returns the full message history.
	ListMessages(ctx context.Context) ([]events.Message, error)

	// Subscribe registers a new subscriber.
	Subscribe() (Subscription, error)

	// Unsubscribe removes a subscriber by ID. Unknown IDs are ignored.
	Unsubscribe(id string)

	// SubscriberCount returns the number of active subscribers.
	SubscriberCount() int
}
