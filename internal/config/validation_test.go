package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidateServer(t *testing.T) {
	valid := func() ServerConfig { return Default().Server }

	tests := []struct {
		name    string
		modify  func(*ServerConfig)
		wantErr string
	}{
		{"valid config", func(c *ServerConfig) {}, ""},
		{"ephemeral port", func(c *ServerConfig) { c.Port = 0 }, ""},
		{"port too high", func(c *ServerConfig) { c.Port = 70000 }, "server.port"},
		{"empty host", func(c *ServerConfig) { c.Host = "" }, "server.host cannot be empty"},
		{"valid external url", func(c *ServerConfig) { c.ExternalURL = "https://board.example.com" }, ""},
		{"external url without host", func(c *ServerConfig) { c.ExternalURL = "https://" }, "must include a host"},
		{"external url bad scheme", func(c *ServerConfig) { c.ExternalURL = "ftp://board.example.com" }, "must use one of these schemes"},
		{"zero write wait", func(c *ServerConfig) { c.WriteWait = 0 }, "server.write_wait"},
		{"zero pong wait", func(c *ServerConfig) { c.PongWait = 0 }, "server.pong_wait"},
		{"ping not below pong", func(c *ServerConfig) { c.PingPeriod = c.PongWait }, "server.ping_period"},
		{"small message size", func(c *ServerConfig) { c.MaxMessageSize = 10 }, "server.max_message_size"},
		{"heartbeat disabled", func(c *ServerConfig) { c.HeartbeatInterval = 0 }, ""},
		{"negative heartbeat", func(c *ServerConfig) { c.HeartbeatInterval = -time.Second }, "server.heartbeat_interval"},
		{"zero request timeout", func(c *ServerConfig) { c.RequestTimeout = 0 }, "server.request_timeout"},
		{"wildcard origin", func(c *ServerConfig) { c.AllowedOrigins = []string{"*"} }, ""},
		{"subdomain wildcard origin", func(c *ServerConfig) { c.AllowedOrigins = []string{"*.example.com"} }, ""},
		{"bad origin", func(c *ServerConfig) { c.AllowedOrigins = []string{"board.example"} }, "server.allowed_origins"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(&cfg)
			checkErr(t, validateServer(&cfg), tt.wantErr)
		})
	}
}

func TestValidateHub(t *testing.T) {
	tests := []struct {
		name    string
		cfg     HubConfig
		wantErr string
	}{
		{"defaults", HubConfig{QueueCapacity: 64, OverflowPolicy: "drop_oldest"}, ""},
		{"close policy", HubConfig{QueueCapacity: 1, OverflowPolicy: "close"}, ""},
		{"max capacity", HubConfig{QueueCapacity: MaxQueueCapacity, OverflowPolicy: "close"}, ""},
		{"zero capacity", HubConfig{QueueCapacity: 0, OverflowPolicy: "close"}, "at least 1"},
		{"capacity too large", HubConfig{QueueCapacity: MaxQueueCapacity + 1, OverflowPolicy: "close"}, "cannot exceed"},
		{"unknown policy", HubConfig{QueueCapacity: 8, OverflowPolicy: "block"}, "hub.overflow_policy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, validateHub(&tt.cfg), tt.wantErr)
		})
	}
}

func TestValidateStorage(t *testing.T) {
	tests := []struct {
		name    string
		cfg     StorageConfig
		wantErr string
	}{
		{"memory", StorageConfig{Driver: "memory"}, ""},
		{"sqlite", StorageConfig{Driver: "sqlite", Path: "/tmp/board.db"}, ""},
		{"sqlite without path", StorageConfig{Driver: "sqlite"}, "storage.path is required"},
		{"unknown", StorageConfig{Driver: "redis"}, "storage.driver"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, validateStorage(&tt.cfg), tt.wantErr)
		})
	}
}

func TestValidateLogging(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LoggingConfig
		wantErr string
	}{
		{"info console", LoggingConfig{Level: "info", Format: "console"}, ""},
		{"trace json", LoggingConfig{Level: "trace", Format: "json"}, ""},
		{"bad level", LoggingConfig{Level: "verbose", Format: "json"}, "logging.level"},
		{"bad format", LoggingConfig{Level: "info", Format: "xml"}, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, validateLogging(&tt.cfg), tt.wantErr)
		})
	}
}

func TestValidateLimits(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LimitsConfig
		wantErr string
	}{
		{"defaults", LimitsConfig{MaxContentLength: 2000, MaxAuthorLength: 64}, ""},
		{"rate limited", LimitsConfig{MaxContentLength: 1, MaxAuthorLength: 1, PostsPerMinute: 5}, ""},
		{"zero content", LimitsConfig{MaxContentLength: 0, MaxAuthorLength: 64}, "limits.max_content_length"},
		{"huge content", LimitsConfig{MaxContentLength: 1<<20 + 1, MaxAuthorLength: 64}, "cannot exceed"},
		{"zero author", LimitsConfig{MaxContentLength: 10, MaxAuthorLength: 0}, "limits.max_author_length"},
		{"negative rate", LimitsConfig{MaxContentLength: 10, MaxAuthorLength: 10, PostsPerMinute: -1}, "limits.posts_per_minute"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, validateLimits(&tt.cfg), tt.wantErr)
		})
	}
}

func checkErr(t *testing.T, err error, wantErr string) {
	t.Helper()
	if wantErr == "" {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		return
	}
	if err == nil {
		t.Errorf("expected error containing %q, got nil", wantErr)
		return
	}
	if !strings.Contains(err.Error(), wantErr) {
		t.Errorf("error = %q, want substring %q", err.Error(), wantErr)
	}
}
