// Package common provides shared types and utilities for server implementations.
package common

import "time"

// WebSocket timing defaults.
// These are tuned for mobile network tolerance.
const (
	// WriteWait is time allowed to write a message to the peer.
	WriteWait = 15 * time.Second

	// PongWait is time allowed to read the next pong message from the peer.
	PongWait = 90 * time.Second

	// PingPeriod is the interval for sending pings. Must be less than PongWait.
	PingPeriod = (PongWait * 9) / 10 // 81 seconds

	// MaxMessageSize is the maximum message size allowed from peer.
	MaxMessageSize = 512 * 1024 // 512KB

	// FrameQueueSize is the per-connection queue for server-originated
	// frames such as heartbeats.
	FrameQueueSize = 16

	// HeartbeatInterval is the application-level heartbeat interval.
	HeartbeatInterval = 30 * time.Second
)

// Timeouts bundles the per-connection keepalive settings.
type Timeouts struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
}

// DefaultTimeouts returns the default keepalive settings.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		WriteWait:      WriteWait,
		PongWait:       PongWait,
		PingPeriod:     PingPeriod,
		MaxMessageSize: MaxMessageSize,
	}
}

// WithDefaults fills zero fields from DefaultTimeouts.
func (t Timeouts) WithDefaults() Timeouts {
	d := DefaultTimeouts()
	if t.WriteWait <= 0 {
		t.WriteWait = d.WriteWait
	}
	if t.PongWait <= 0 {
		t.PongWait = d.PongWait
	}
	if t.PingPeriod <= 0 || t.PingPeriod >= t.PongWait {
		t.PingPeriod = (t.PongWait * 9) / 10
	}
	if t.MaxMessageSize <= 0 {
		t.MaxMessageSize = d.MaxMessageSize
	}
	return t
}
