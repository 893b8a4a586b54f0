package events

import "time"

// MessagesDroppedPayload tells a client how many messages were evicted from
// its queue since the last delivery.
type MessagesDroppedPayload struct {
	Count uint64 `json:"count"`
}

// MessageListPayload is the payload for message_list events.
type MessageListPayload struct {
	Messages []Message `json:"messages"`
}

// ConnectedPayload is the payload for connected events.
type ConnectedPayload struct {
	ClientID      string `json:"client_id"`
	ServerVersion string `json:"server_version,omitempty"`
}

// ErrorPayload is the payload for error events.
type ErrorPayload struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	RequestID string                 `json:"request_id,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// HeartbeatPayload is the payload for heartbeat events.
// Heartbeats are sent periodically to allow clients to detect connection issues
// at the application level (beyond WebSocket ping/pong frames).
type HeartbeatPayload struct {
	ServerTime  string `json:"server_time"`
	Sequence    int64  `json:"sequence"`
	Subscribers int    `json:"subscribers"`
	Uptime      int64  `json:"uptime_seconds"`
}

// NewMessagePostedEvent creates a new message_posted event.
func NewMessagePostedEvent(msg Message) *BaseEvent {
	return NewEvent(EventTypeMessagePosted, msg)
}

// NewMessagesDroppedEvent creates a new messages_dropped event.
func NewMessagesDroppedEvent(count uint64) *BaseEvent {
	return NewEvent(EventTypeMessagesDropped, MessagesDroppedPayload{Count: count})
}

// NewMessageListEvent creates a new message_list event.
func NewMessageListEvent(msgs []Message, requestID string) *BaseEvent {
	if msgs == nil {
		msgs = []Message{}
	}
	return NewEventWithRequestID(EventTypeMessageList, MessageListPayload{Messages: msgs}, requestID)
}

// NewPostMessageResultEvent acknowledges a post_message command.
func NewPostMessageResultEvent(msg Message, requestID string) *BaseEvent {
	return NewEventWithRequestID(EventTypePostMessageResult, msg, requestID)
}

// NewPongEvent answers a ping command.
func NewPongEvent(requestID string) *BaseEvent {
	return NewEventWithRequestID(EventTypePong, nil, requestID)
}

// NewConnectedEvent creates a new connected event.
func NewConnectedEvent(clientID, version string) *BaseEvent {
	return NewEvent(EventTypeConnected, ConnectedPayload{
		ClientID:      clientID,
		ServerVersion: version,
	})
}

// NewErrorEvent creates a new error event.
func NewErrorEvent(code, message string, requestID string, details map[string]interface{}) *BaseEvent {
	return NewEventWithRequestID(EventTypeError, ErrorPayload{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Details:   details,
	}, requestID)
}

// NewHeartbeatEvent creates a new heartbeat event.
func NewHeartbeatEvent(sequence int64, subscribers int, uptimeSeconds int64) *BaseEvent {
	return NewEvent(EventTypeHeartbeat, HeartbeatPayload{
		ServerTime:  time.Now().UTC().Format(time.RFC3339),
		Sequence:    sequence,
		Subscribers: subscribers,
		Uptime:      uptimeSeconds,
	})
}
