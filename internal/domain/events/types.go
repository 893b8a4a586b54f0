// Package events defines the message type and all event envelopes sent to
// msgboard clients.
package events

import (
	"encoding/json"
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// Board events
	EventTypeMessagePosted   EventType = "message_posted"
	EventTypeMessagesDropped EventType = "messages_dropped"
	EventTypeMessageList     EventType = "message_list"

	// Response events
	EventTypePostMessageResult EventType = "post_message_result"
	EventTypePong              EventType = "pong"
	EventTypeError             EventType = "error"

	// Connection events
	EventTypeConnected EventType = "connected"
	EventTypeHeartbeat EventType = "heartbeat"
)

// Event is the base interface for all events.
type Event interface {
	// Type returns the event type.
	Type() EventType

	// Timestamp returns when the event occurred.
	Timestamp() time.Time

	// ToJSON serializes the event to JSON.
	ToJSON() ([]byte, error)
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventType EventType   `json:"event"`
	EventTime time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
	RequestID string      `json:"request_id,omitempty"`
}

// Type returns the event type.
func (e *BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e *BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// ToJSON serializes the event to JSON.
func (e *BaseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// NewEvent creates a new base event with the given type and payload.
func NewEvent(eventType EventType, payload interface{}) *BaseEvent {
	return &BaseEvent{
		EventType: eventType,
		EventTime: time.Now().UTC(),
		Payload:   payload,
	}
}

// NewEventWithRequestID creates a new event with a request ID for correlation.
func NewEventWithRequestID(eventType EventType, payload interface{}, requestID string) *BaseEvent {
	return &BaseEvent{
		EventType: eventType,
		EventTime: time.Now().UTC(),
		Payload:   payload,
		RequestID: requestID,
	}
}

// RawEvent is the client-side view of an envelope, with the payload left
// undecoded until the event type is known.
type RawEvent struct {
	EventType EventType       `json:"event"`
	EventTime time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"request_id,omitempty"`
}

// ParseEvent parses a JSON envelope.
func ParseEvent(data []byte) (*RawEvent, error) {
	var ev RawEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// DecodePayload decodes the payload into v.
func (e *RawEvent) DecodePayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}
