package commands

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/brianly1003/msgboard/internal/domain"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantType  CommandType
		wantReqID string
		wantErr   bool
	}{
		{
			name:      "post message",
			input:     `{"command":"post_message","request_id":"r1","payload":{"content":"hi","author":"alice"}}`,
			wantType:  CommandPostMessage,
			wantReqID: "r1",
		},
		{
			name:     "list messages",
			input:    `{"command":"list_messages"}`,
			wantType: CommandListMessages,
		},
		{
			name:      "ping",
			input:     `{"command":"ping","request_id":"p"}`,
			wantType:  CommandPing,
			wantReqID: "p",
		},
		{name: "missing command", input: `{"request_id":"x"}`, wantErr: true},
		{name: "malformed", input: `{"command":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := ParseCommand([]byte(tt.input))
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidCommand) {
					t.Errorf("ParseCommand() error = %v, want ErrInvalidCommand", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCommand() error = %v", err)
			}
			if cmd.Command != tt.wantType {
				t.Errorf("Command = %q, want %q", cmd.Command, tt.wantType)
			}
			if cmd.RequestID != tt.wantReqID {
				t.Errorf("RequestID = %q, want %q", cmd.RequestID, tt.wantReqID)
			}
		})
	}
}

func TestParsePostMessagePayload(t *testing.T) {
	cmd, err := ParseCommand([]byte(`{"command":"post_message","payload":{"content":"hi","author":"alice"}}`))
	if err != nil {
		t.Fatalf("ParseCommand() error = %v", err)
	}

	payload, err := cmd.ParsePostMessagePayload()
	if err != nil {
		t.Fatalf("ParsePostMessagePayload() error = %v", err)
	}
	if payload.Content != "hi" || payload.Author != "alice" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestParsePostMessagePayload_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		payload json.RawMessage
	}{
		{"missing", nil},
		{"wrong type", json.RawMessage(`"just a string"`)},
		{"bad field type", json.RawMessage(`{"content":5}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &Command{Command: CommandPostMessage, Payload: tt.payload}
			if _, err := cmd.ParsePostMessagePayload(); !errors.Is(err, domain.ErrInvalidPayload) {
				t.Errorf("ParsePostMessagePayload() error = %v, want ErrInvalidPayload", err)
			}
		})
	}
}

func TestNewPostMessageCommand(t *testing.T) {
	cmd, err := NewPostMessageCommand("req-1", "hello", "bob")
	if err != nil {
		t.Fatalf("NewPostMessageCommand() error = %v", err)
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	parsed, err := ParseCommand(data)
	if err != nil {
		t.Fatalf("ParseCommand() error = %v", err)
	}
	payload, err := parsed.ParsePostMessagePayload()
	if err != nil {
		t.Fatalf("ParsePostMessagePayload() error = %v", err)
	}
	if parsed.RequestID != "req-1" || payload.Content != "hello" || payload.Author != "bob" {
		t.Errorf("round trip mismatch: %+v %+v", parsed, payload)
	}
}
