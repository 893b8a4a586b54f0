package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/brianly1003/msgboard/internal/security"
)

// Validate validates the configuration.
func Validate(cfg *Config) error {
	if err := validateServer(&cfg.Server); err != nil {
		return err
	}
	if err := validateHub(&cfg.Hub); err != nil {
		return err
	}
	if err := validateStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := validateLogging(&cfg.Logging); err != nil {
		return err
	}
	if err := validateLimits(&cfg.Limits); err != nil {
		return err
	}
	return nil
}

func validateServer(cfg *ServerConfig) error {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535")
	}
	if cfg.Host == "" {
		return fmt.Errorf("server.host cannot be empty")
	}

	// Validate external URL if provided
	if cfg.ExternalURL != "" {
		if err := validateExternalURL(cfg.ExternalURL, "server.external_url", []string{"http", "https"}); err != nil {
			return err
		}
	}

	if cfg.WriteWait <= 0 {
		return fmt.Errorf("server.write_wait must be positive")
	}
	if cfg.PongWait <= 0 {
		return fmt.Errorf("server.pong_wait must be positive")
	}
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		return fmt.Errorf("server.ping_period must be positive and less than server.pong_wait")
	}
	if cfg.MaxMessageSize < 1024 {
		return fmt.Errorf("server.max_message_size must be at least 1024")
	}
	if cfg.HeartbeatInterval < 0 {
		return fmt.Errorf("server.heartbeat_interval cannot be negative")
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive")
	}

	for _, origin := range cfg.AllowedOrigins {
		if security.IsWildcardOrigin(origin) {
			continue
		}
		if err := validateExternalURL(origin, "server.allowed_origins", []string{"http", "https"}); err != nil {
			return err
		}
	}

	return nil
}

// validateExternalURL validates that a URL is well-formed and uses an allowed scheme.
func validateExternalURL(rawURL, fieldName string, allowedSchemes []string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", fieldName, err)
	}

	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", fieldName)
	}

	if !containsFold(allowedSchemes, parsed.Scheme) {
		return fmt.Errorf("%s must use one of these schemes: %s", fieldName, strings.Join(allowedSchemes, ", "))
	}

	return nil
}

func validateHub(cfg *HubConfig) error {
	if cfg.QueueCapacity < 1 {
		return fmt.Errorf("hub.queue_capacity must be at least 1")
	}
	if cfg.QueueCapacity > MaxQueueCapacity {
		return fmt.Errorf("hub.queue_capacity cannot exceed %d", MaxQueueCapacity)
	}
	if !containsFold(ValidOverflowPolicies, cfg.OverflowPolicy) {
		return fmt.Errorf("hub.overflow_policy must be one of: %s", strings.Join(ValidOverflowPolicies, ", "))
	}
	return nil
}

func validateStorage(cfg *StorageConfig) error {
	if !containsFold(ValidStorageDrivers, cfg.Driver) {
		return fmt.Errorf("storage.driver must be one of: %s", strings.Join(ValidStorageDrivers, ", "))
	}
	if strings.EqualFold(cfg.Driver, "sqlite") && cfg.Path == "" {
		return fmt.Errorf("storage.path is required for the sqlite driver")
	}
	return nil
}

func validateLogging(cfg *LoggingConfig) error {
	if !containsFold(ValidLogLevels, cfg.Level) {
		return fmt.Errorf("logging.level must be one of: %s", strings.Join(ValidLogLevels, ", "))
	}
	if !containsFold(ValidLogFormats, cfg.Format) {
		return fmt.Errorf("logging.format must be one of: %s", strings.Join(ValidLogFormats, ", "))
	}
	return nil
}

func validateLimits(cfg *LimitsConfig) error {
	if cfg.MaxContentLength < 1 {
		return fmt.Errorf("limits.max_content_length must be at least 1")
	}
	if cfg.MaxContentLength > 1<<20 {
		return fmt.Errorf("limits.max_content_length cannot exceed 1048576")
	}
	if cfg.MaxAuthorLength < 1 {
		return fmt.Errorf("limits.max_author_length must be at least 1")
	}
	if cfg.PostsPerMinute < 0 {
		return fmt.Errorf("limits.posts_per_minute cannot be negative")
	}
	return nil
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
