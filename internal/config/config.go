// Package config handles configuration management for msgboard.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. MSGBOARD_SERVER_PORT.
const EnvPrefix = "MSGBOARD"

// Config holds all configuration for the application.
type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Hub     HubConfig     `mapstructure:"hub" yaml:"hub"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Limits  LimitsConfig  `mapstructure:"limits" yaml:"limits"`
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host              string        `mapstructure:"host" yaml:"host"`
	Port              int           `mapstructure:"port" yaml:"port"`
	ExternalURL       string        `mapstructure:"external_url" yaml:"external_url"` // Optional: public base URL (e.g., https://board.example.com)
	WriteWait         time.Duration `mapstructure:"write_wait" yaml:"write_wait"`
	PongWait          time.Duration `mapstructure:"pong_wait" yaml:"pong_wait"`
	PingPeriod        time.Duration `mapstructure:"ping_period" yaml:"ping_period"`
	MaxMessageSize    int64         `mapstructure:"max_message_size" yaml:"max_message_size"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"` // 0 disables heartbeats
	RequestTimeout    time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	Debug             bool          `mapstructure:"debug" yaml:"debug"`
}

// HubConfig holds message hub configuration.
type HubConfig struct {
	QueueCapacity  int    `mapstructure:"queue_capacity" yaml:"queue_capacity"`
	OverflowPolicy string `mapstructure:"overflow_policy" yaml:"overflow_policy"`
}

// StorageConfig selects the event log backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	Path   string `mapstructure:"path" yaml:"path"` // sqlite only; defaults to ~/.msgboard/messages.db
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// LimitsConfig holds various limits.
type LimitsConfig struct {
	MaxContentLength int `mapstructure:"max_content_length" yaml:"max_content_length"`
	MaxAuthorLength  int `mapstructure:"max_author_length" yaml:"max_author_length"`
	PostsPerMinute   int `mapstructure:"posts_per_minute" yaml:"posts_per_minute"` // 0 disables rate limiting
}

// Load loads configuration from files and environment.
func Load(configPath string) (*Config, error) {
	v := newViper(configPath)

	// Read config file (optional - not an error if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(v)
}

// Default returns the built-in configuration without reading any file or
// environment variable.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// ConfigFileUsed returns the file Load would read for configPath, or ""
// when no config file exists.
func ConfigFileUsed(configPath string) string {
	v := newViper(configPath)
	if err := v.ReadInConfig(); err != nil {
		return ""
	}
	return v.ConfigFileUsed()
}

func newViper(configPath string) *viper.Viper {
	v := viper.New()

	// Set config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default search paths
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.msgboard")
		v.AddConfigPath("/etc/msgboard")
	}

	// Environment variable prefix
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return v
}

// decode unmarshals, post-processes and validates v.
func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := postProcess(&cfg); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", DefaultHost)
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.external_url", "")
	v.SetDefault("server.write_wait", DefaultWriteWait)
	v.SetDefault("server.pong_wait", DefaultPongWait)
	v.SetDefault("server.ping_period", DefaultPingPeriod)
	v.SetDefault("server.max_message_size", DefaultMaxMessageSize)
	v.SetDefault("server.heartbeat_interval", DefaultHeartbeatInterval)
	v.SetDefault("server.request_timeout", DefaultRequestTimeout)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.debug", false)

	// Hub defaults
	v.SetDefault("hub.queue_capacity", DefaultQueueCapacity)
	v.SetDefault("hub.overflow_policy", DefaultOverflowPolicy)

	// Storage defaults
	v.SetDefault("storage.driver", DefaultStorageDriver)
	v.SetDefault("storage.path", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	// Limits defaults
	v.SetDefault("limits.max_content_length", DefaultMaxContentLength)
	v.SetDefault("limits.max_author_length", DefaultMaxAuthorLength)
	v.SetDefault("limits.posts_per_minute", 0)
}

// postProcess applies post-processing to configuration.
func postProcess(cfg *Config) error {
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	cfg.Hub.OverflowPolicy = strings.ToLower(strings.TrimSpace(cfg.Hub.OverflowPolicy))
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))

	if cfg.Storage.Driver != "sqlite" || cfg.Storage.Path == ":memory:" {
		return nil
	}

	// If the sqlite path is empty, use the config directory
	if cfg.Storage.Path == "" {
		dir, err := GetConfigDir()
		if err != nil {
			return fmt.Errorf("failed to resolve storage.path: %w", err)
		}
		cfg.Storage.Path = filepath.Join(dir, "messages.db")
	}

	absPath, err := filepath.Abs(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to resolve storage.path: %w", err)
	}
	cfg.Storage.Path = absPath

	return nil
}

// GetConfigDir returns the user config directory for msgboard.
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".msgboard"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}
