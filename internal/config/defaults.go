package config

import "time"

// Default configuration values. The server and hub packages carry the same
// numbers as their own fallbacks.
const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 4000

	DefaultWriteWait         = 15 * time.Second
	DefaultPongWait          = 90 * time.Second
	DefaultPingPeriod        = (DefaultPongWait * 9) / 10
	DefaultMaxMessageSize    = 512 * 1024
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultRequestTimeout    = 10 * time.Second

	DefaultQueueCapacity  = 64
	MaxQueueCapacity      = 65536
	DefaultOverflowPolicy = "drop_oldest"

	DefaultStorageDriver = "memory"

	DefaultMaxContentLength = 2000
	DefaultMaxAuthorLength  = 64
)

// ValidOverflowPolicies lists the accepted hub.overflow_policy values.
var ValidOverflowPolicies = []string{"drop_oldest", "close"}

// ValidStorageDrivers lists the accepted storage.driver values.
var ValidStorageDrivers = []string{"memory", "sqlite"}

// ValidLogLevels lists the accepted logging.level values.
var ValidLogLevels = []string{"trace", "debug", "info", "warn", "error"}

// ValidLogFormats lists the accepted logging.format values.
var ValidLogFormats = []string{"console", "json"}
