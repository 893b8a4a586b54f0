package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestBaseEvent_Type(t *testing.T) {
	tests := []struct {
		name      string
		eventType EventType
	}{
		{"message_posted", EventTypeMessagePosted},
		{"messages_dropped", EventTypeMessagesDropped},
		{"message_list", EventTypeMessageList},
		{"post_message_result", EventTypePostMessageResult},
		{"heartbeat", EventTypeHeartbeat},
		{"error", EventTypeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := NewEvent(tt.eventType, nil)

			if event.Type() != tt.eventType {
				t.Errorf("Type() = %v, want %v", event.Type(), tt.eventType)
			}
			if string(tt.eventType) != tt.name {
				t.Errorf("wire name = %q, want %q", tt.eventType, tt.name)
			}
		})
	}
}

func TestBaseEvent_Timestamp(t *testing.T) {
	before := time.Now().UTC()
	event := NewEvent(EventTypeHeartbeat, nil)
	after := time.Now().UTC()

	ts := event.Timestamp()

	if ts.Before(before) {
		t.Errorf("Timestamp() = %v, should be >= %v", ts, before)
	}
	if ts.After(after) {
		t.Errorf("Timestamp() = %v, should be <= %v", ts, after)
	}
}

func TestBaseEvent_ToJSON(t *testing.T) {
	msg := NewMessage("7", "hello", "alice", time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC))
	event := NewMessagePostedEvent(msg)

	jsonBytes, err := event.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &parsed); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}

	if parsed["event"] != string(EventTypeMessagePosted) {
		t.Errorf("JSON event = %v, want %v", parsed["event"], EventTypeMessagePosted)
	}
	if _, ok := parsed["timestamp"]; !ok {
		t.Error("JSON should contain timestamp field")
	}
	if _, ok := parsed["request_id"]; ok {
		t.Error("request_id should be omitted when empty")
	}

	payload, ok := parsed["payload"].(map[string]interface{})
	if !ok {
		t.Fatal("JSON payload should be a map")
	}
	want := map[string]string{
		"id":        "7",
		"content":   "hello",
		"author":    "alice",
		"createdAt": "2026-10-17T09:30:00.000Z",
	}
	for k, v := range want {
		if payload[k] != v {
			t.Errorf("payload.%s = %v, want %v", k, payload[k], v)
		}
	}
}

func TestNewEventWithRequestID(t *testing.T) {
	requestID := "req-123"
	event := NewEventWithRequestID(EventTypePong, nil, requestID)

	if event == nil {
		t.Fatal("NewEventWithRequestID() returned nil")
	}
	if event.RequestID != requestID {
		t.Errorf("RequestID = %q, want %q", event.RequestID, requestID)
	}
}

func TestEventTypes_Constants(t *testing.T) {
	types := []EventType{
		EventTypeMessagePosted,
		EventTypeMessagesDropped,
		EventTypeMessageList,
		EventTypePostMessageResult,
		EventTypePong,
		EventTypeError,
		EventTypeConnected,
		EventTypeHeartbeat,
	}

	seen := make(map[EventType]bool)
	for _, et := range types {
		if seen[et] {
			t.Fatalf("duplicate event type: %s", et)
		}
		seen[et] = true
	}
}

func TestParseEvent(t *testing.T) {
	event := NewMessagesDroppedEvent(42)
	data, err := event.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	raw, err := ParseEvent(data)
	if err != nil {
		t.Fatalf("ParseEvent() error = %v", err)
	}
	if raw.EventType != EventTypeMessagesDropped {
		t.Errorf("EventType = %v, want %v", raw.EventType, EventTypeMessagesDropped)
	}

	var payload MessagesDroppedPayload
	if err := raw.DecodePayload(&payload); err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	if payload.Count != 42 {
		t.Errorf("Count = %d, want 42", payload.Count)
	}
}

func TestParseEvent_Invalid(t *testing.T) {
	if _, err := ParseEvent([]byte("{not json")); err == nil {
		t.Error("ParseEvent() should fail on malformed input")
	}
}

func TestNewMessageListEvent_NilBecomesEmpty(t *testing.T) {
	event := NewMessageListEvent(nil, "r1")
	data, err := event.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	var parsed struct {
		Payload struct {
			Messages []Message `json:"messages"`
		} `json:"payload"`
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}
	if parsed.Payload.Messages == nil {
		t.Error("messages should encode as [] not null")
	}
	if parsed.RequestID != "r1" {
		t.Errorf("request_id = %q, want r1", parsed.RequestID)
	}
}

func TestNewErrorEvent(t *testing.T) {
	event := NewErrorEvent("VALIDATION_FAILED", "content is required", "r9", nil)

	payload, ok := event.Payload.(ErrorPayload)
	if !ok {
		t.Fatalf("Payload type = %T, want ErrorPayload", event.Payload)
	}
	if payload.Code != "VALIDATION_FAILED" {
		t.Errorf("Code = %q", payload.Code)
	}
	if payload.RequestID != "r9" || event.RequestID != "r9" {
		t.Errorf("request id not propagated: payload=%q event=%q", payload.RequestID, event.RequestID)
	}
}

// Benchmark tests
func BenchmarkNewEvent(b *testing.B) {
	msg := NewMessage("1", "hi", "alice", time.Now())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		NewMessagePostedEvent(msg)
	}
}

func BenchmarkEvent_ToJSON(b *testing.B) {
	event := NewMessagePostedEvent(NewMessage("1", "hi", "alice", time.Now()))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = event.ToJSON()
	}
}
