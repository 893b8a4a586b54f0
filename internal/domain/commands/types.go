// Package commands defines all command types clients can send to msgboard.
package commands

import (
	"encoding/json"
	"fmt"

	"github.com/brianly1003/msgboard/internal/domain"
)

// CommandType represents the type of command.
type CommandType string

const (
	CommandPostMessage  CommandType = "post_message"
	CommandListMessages CommandType = "list_messages"
	CommandPing         CommandType = "ping"
)

// Command represents a command received from a client.
type Command struct {
	Command   CommandType     `json:"command"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// PostMessagePayload is the payload for post_message command.
type PostMessagePayload struct {
	Content string `json:"content"`
	Author  string `json:"author"`
}

// ParseCommand parses a JSON message into a Command.
func ParseCommand(data []byte) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCommand, err)
	}
	if cmd.Command == "" {
		return nil, fmt.Errorf("%w: missing command field", domain.ErrInvalidCommand)
	}
	return &cmd, nil
}

// ParsePostMessagePayload parses the payload for post_message command.
func (c *Command) ParsePostMessagePayload() (*PostMessagePayload, error) {
	if len(c.Payload) == 0 {
		return nil, fmt.Errorf("%w: post_message requires a payload", domain.ErrInvalidPayload)
	}
	var payload PostMessagePayload
	if err := json.Unmarshal(c.Payload, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	return &payload, nil
}

// NewPostMessageCommand builds a post_message command.
func NewPostMessageCommand(requestID, content, author string) (*Command, error) {
	payload, err := json.Marshal(PostMessagePayload{Content: content, Author: author})
	if err != nil {
		return nil, err
	}
	return &Command{
		Command:   CommandPostMessage,
		RequestID: requestID,
		Payload:   payload,
	}, nil
}
