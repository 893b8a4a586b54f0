package http

import "github.com/brianly1003/msgboard/internal/domain/events"

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// MessagesResponse is the body of GET /api/messages.
type MessagesResponse struct {
	Messages []events.Message `json:"messages"`
}

// PostMessageRequest is the body of POST /api/messages.
type PostMessageRequest struct {
	Content string `json:"content"`
	Author  string `json:"author"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
}

// StatusResponse represents the board status.
type StatusResponse struct {
	Version          string `json:"version"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
	Subscribers      int    `json:"subscribers"`
	ConnectedClients int    `json:"connected_clients"`
	Published        uint64 `json:"published"`
	Dropped          uint64 `json:"dropped"`
	OverflowCloses   uint64 `json:"overflow_closes"`
	LastMessageID    uint64 `json:"last_message_id"`
	StoredMessages   int    `json:"stored_messages"`
	StorageDriver    string `json:"storage_driver"`
}
