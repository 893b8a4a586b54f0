package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/brianly1003/msgboard/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	configInitLocal bool
	configInitForce bool
)

// configCmd displays or manages configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Display and manage configuration",
	Long: `Display and manage msgboard configuration.

Without subcommands, shows the current effective configuration.

Examples:
  msgboard config              # Show current config
  msgboard config init         # Create config file with defaults
  msgboard config path         # Show config file location
  msgboard config get <key>    # Get a config value
  msgboard config set <key> <value>  # Set a config value`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		printConfig(cmd.OutOrStdout(), cfg)
		return nil
	},
}

// configInitCmd creates a config file with defaults.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file with default settings",
	Long: `Create a config file with default settings and documentation.

By default, creates ~/.msgboard/config.yaml.
Use --local to create ./config.yaml in the current directory.

Examples:
  msgboard config init          # Create ~/.msgboard/config.yaml
  msgboard config init --local  # Create ./config.yaml
  msgboard config init --force  # Overwrite existing file`,
	RunE: runConfigInit,
}

// configPathCmd shows config file location.
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file location",
	RunE:  runConfigPath,
}

// configGetCmd gets a config value.
var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long: `Get a configuration value by key.

Keys use dot notation to access nested values.

Examples:
  msgboard config get server.port
  msgboard config get hub.overflow_policy
  msgboard config get server.pong_wait`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

// configSetCmd sets a config value.
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value by key.

Creates the config file if it doesn't exist. The result is validated
before it is written.

Examples:
  msgboard config set server.port 9000
  msgboard config set logging.level debug
  msgboard config set storage.driver sqlite
  msgboard config set server.allowed_origins https://a.example,https://b.example`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	// Add subcommands to config
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)

	// Flags for init
	configInitCmd.Flags().BoolVar(&configInitLocal, "local", false, "create config in current directory instead of ~/.msgboard/")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite existing config file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	var configPath string

	switch {
	case cfgFile != "":
		configPath = cfgFile
	case configInitLocal:
		configPath = "config.yaml"
	default:
		configDir, err := config.EnsureConfigDir()
		if err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		configPath = filepath.Join(configDir, "config.yaml")
	}

	// Check if file exists
	if _, err := os.Stat(configPath); err == nil && !configInitForce {
		return fmt.Errorf("config file already exists: %s\nUse --force to overwrite", configPath)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfigTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", configPath)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if used := config.ConfigFileUsed(cfgFile); used != "" {
		fmt.Fprintf(out, "Active config file: %s\n\n", used)
	} else {
		fmt.Fprintf(out, "No config file found; using defaults.\n\n")
	}

	configDir, err := config.GetConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config dir: %w", err)
	}

	locations := []string{
		"./config.yaml",
		filepath.Join(configDir, "config.yaml"),
		"/etc/msgboard/config.yaml",
	}

	fmt.Fprintln(out, "Config search paths (in order):")
	for i, loc := range locations {
		exists := "not found"
		if _, err := os.Stat(loc); err == nil {
			exists = "exists"
		}
		fmt.Fprintf(out, "  %d. %s (%s)\n", i+1, loc, exists)
	}
	fmt.Fprintf(out, "\nEnvironment overrides use the %s_ prefix, e.g. %s_SERVER_PORT=9000\n", config.EnvPrefix, config.EnvPrefix)
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	value, err := getConfigValue(cfg, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	configPath := cfgFile
	if configPath == "" {
		configDir, err := config.EnsureConfigDir()
		if err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		configPath = filepath.Join(configDir, "config.yaml")
	}

	if err := setConfigValue(configPath, key, value); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s in %s\n", key, value, configPath)
	return nil
}

// setConfigValue updates key in the YAML file at path, validating the
// result before replacing the file.
func setConfigValue(path, key, value string) error {
	if _, err := getConfigValue(config.Default(), key); err != nil {
		return err
	}

	// Load existing config or create new one
	var data map[string]interface{}
	if content, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(content, &data); err != nil {
			return fmt.Errorf("failed to parse existing config: %w", err)
		}
	}
	if data == nil {
		data = make(map[string]interface{})
	}

	if err := setNestedValue(data, key, value); err != nil {
		return err
	}

	content, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if _, err := config.Load(tmp.Name()); err != nil {
		return fmt.Errorf("refusing to set %s: %w", key, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// getConfigValue looks up a dotted key in the effective configuration.
func getConfigValue(cfg *config.Config, key string) (interface{}, error) {
	content, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize config: %w", err)
	}
	var data map[string]interface{}
	if err := yaml.Unmarshal(content, &data); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	parts := strings.Split(key, ".")
	var current interface{} = data
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("unknown config key: %s", key)
		}
		if current, ok = m[part]; !ok {
			return nil, fmt.Errorf("unknown config key: %s", key)
		}
	}

	if _, ok := current.(map[string]interface{}); ok {
		return nil, fmt.Errorf("invalid key: %s is a section", key)
	}
	return current, nil
}

func setNestedValue(data map[string]interface{}, key string, value string) error {
	parts := strings.Split(key, ".")

	// Navigate to the parent
	current := data
	for i := 0; i < len(parts)-1; i++ {
		if _, ok := current[parts[i]]; !ok {
			current[parts[i]] = make(map[string]interface{})
		}
		if nested, ok := current[parts[i]].(map[string]interface{}); ok {
			current = nested
		} else {
			return fmt.Errorf("cannot set nested value: %s is not a map", parts[i])
		}
	}

	// Convert value to appropriate type based on key
	finalKey := parts[len(parts)-1]
	current[finalKey] = parseValue(key, value)

	return nil
}

func parseValue(key string, value string) interface{} {
	// Boolean values
	if value == "true" {
		return true
	}
	if value == "false" {
		return false
	}

	// List values
	if strings.HasSuffix(key, "allowed_origins") {
		if value == "" {
			return []string{}
		}
		items := strings.Split(value, ",")
		for i := range items {
			items[i] = strings.TrimSpace(items[i])
		}
		return items
	}

	// Integer values for known int fields
	intKeys := []string{"port", "queue_capacity", "max_message_size",
		"max_content_length", "max_author_length", "posts_per_minute"}
	for _, k := range intKeys {
		if strings.HasSuffix(key, k) {
			if i, err := strconv.Atoi(value); err == nil {
				return i
			}
		}
	}

	// Default to string; durations such as 30s stay strings
	return value
}

func printConfig(out io.Writer, cfg *config.Config) {
	fmt.Fprintln(out, "Current Configuration:")
	fmt.Fprintln(out, "----------------------")
	fmt.Fprintf(out, "Host:             %s\n", cfg.Server.Host)
	fmt.Fprintf(out, "Port:             %d\n", cfg.Server.Port)
	if cfg.Server.ExternalURL != "" {
		fmt.Fprintf(out, "External URL:     %s\n", cfg.Server.ExternalURL)
	}
	fmt.Fprintf(out, "Queue Capacity:   %d\n", cfg.Hub.QueueCapacity)
	fmt.Fprintf(out, "Overflow Policy:  %s\n", cfg.Hub.OverflowPolicy)
	fmt.Fprintf(out, "Storage:          %s\n", cfg.Storage.Driver)
	if cfg.Storage.Path != "" {
		fmt.Fprintf(out, "Storage Path:     %s\n", cfg.Storage.Path)
	}
	fmt.Fprintf(out, "Log Level:        %s\n", cfg.Logging.Level)
	fmt.Fprintf(out, "Log Format:       %s\n", cfg.Logging.Format)
}

const defaultConfigTemplate = `# msgboard Configuration
# Copy this file to ~/.msgboard/config.yaml and modify as needed.
# Every key can be overridden with an environment variable, e.g.
# MSGBOARD_SERVER_PORT=9000 or MSGBOARD_HUB_OVERFLOW_POLICY=close.

# Server settings
server:
  # Port for both the HTTP API and the WebSocket endpoint (/ws)
  port: 4000

  # Bind address (use 0.0.0.0 to allow external connections)
  host: "127.0.0.1"

  # Public base URL shown by 'msgboard share' (reverse proxy, tunnel)
  external_url: ""

  # WebSocket keepalive
  write_wait: 15s
  pong_wait: 90s
  ping_period: 81s          # must be less than pong_wait
  max_message_size: 524288  # bytes, inbound frames

  # Application-level heartbeat event; 0s disables it
  heartbeat_interval: 30s

  # Bound for HTTP requests other than /ws and /health
  request_timeout: 10s

  # CORS origins for the HTTP API; empty allows localhost only, "*" allows any
  allowed_origins: []

  # Serve /debug/runtime and /debug/pprof/
  debug: false

# Message hub
hub:
  # Messages buffered per subscriber (1-65536)
  queue_capacity: 64

  # What happens when a subscriber falls behind:
  #   drop_oldest - evict the oldest buffered message and notify the client
  #   close       - disconnect the subscriber
  overflow_policy: drop_oldest

# Message storage
storage:
  # memory (lost on restart) or sqlite
  driver: memory

  # sqlite database file (default: ~/.msgboard/messages.db)
  path: ""

# Logging
logging:
  # trace, debug, info, warn, error (changes apply without restart)
  level: info

  # console or json
  format: console

# Limits
limits:
  max_content_length: 2000  # characters
  max_author_length: 64     # characters
  posts_per_minute: 0       # per client IP for HTTP POST; 0 disables
`
