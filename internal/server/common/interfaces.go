// Package common provides shared types and utilities for server implementations.
package common

// StatusProvider provides status information for heartbeat and status
// responses. It is implemented by the application.
type StatusProvider interface {
	// GetUptimeSeconds returns the server uptime in seconds.
	GetUptimeSeconds() int64

	// GetVersion returns the server version string.
	GetVersion() string
}

// Sender is an interface for sending raw bytes.
type Sender interface {
	// Send queues raw bytes for the client.
	Send(data []byte) error
}

// Closer is an interface for closable resources.
type Closer interface {
	// Close closes the resource.
	Close() error

	// Done returns a channel that's closed when the resource is closed.
	Done() <-chan struct{}
}

// Client combines common client capabilities.
type Client interface {
	// ID returns the unique client identifier.
	ID() string

	Sender
	Closer
}
