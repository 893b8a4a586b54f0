package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/brianly1003/msgboard/internal/app"
	"github.com/brianly1003/msgboard/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	host        string
	port        int
	externalURL string
	storage     string
	storagePath string
)

// startCmd represents the start command.
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the msgboard server",
	Long: `Start the msgboard server. The HTTP API and the WebSocket endpoint
(/ws) share one port.

Example:
  msgboard start                              # In-memory board on 127.0.0.1:4000
  msgboard start --port 8080 --host 0.0.0.0
  msgboard start --storage sqlite --db ./board.db
  msgboard start --external-url https://board.example.com

Editing logging.level in the config file while the server runs changes
the log level without a restart.`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&host, "host", "", "bind address (default: 127.0.0.1)")
	startCmd.Flags().IntVar(&port, "port", -1, "server port for HTTP and WebSocket (default: 4000)")
	startCmd.Flags().StringVar(&externalURL, "external-url", "", "public base URL shown to clients (e.g., https://board.example.com)")
	startCmd.Flags().StringVar(&storage, "storage", "", "storage driver: memory or sqlite")
	startCmd.Flags().StringVar(&storagePath, "db", "", "sqlite database path (default: ~/.msgboard/messages.db)")
}

func runStart(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override config with flags
	if err := applyStartFlags(cfg); err != nil {
		return err
	}

	// Re-validate after overrides
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Setup logging
	setupLogging(cfg)

	log.Info().
		Str("version", version).
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Driver).
		Msg("starting msgboard")

	// Create application
	application, err := app.New(cfg, version)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	watchLogLevel(ctx)

	// Start the application
	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("application error: %w", err)
	}

	log.Info().Msg("msgboard stopped")
	return nil
}

func applyStartFlags(cfg *config.Config) error {
	if host != "" {
		cfg.Server.Host = host
	}
	if port >= 0 {
		cfg.Server.Port = port
	}
	if externalURL != "" {
		cfg.Server.ExternalURL = externalURL
	}
	if storage != "" {
		cfg.Storage.Driver = storage
	}
	if storagePath != "" {
		cfg.Storage.Path = storagePath
		if storage == "" {
			cfg.Storage.Driver = "sqlite"
		}
	}
	if cfg.Storage.Driver == "sqlite" && cfg.Storage.Path == "" {
		dir, err := config.EnsureConfigDir()
		if err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		cfg.Storage.Path = filepath.Join(dir, "messages.db")
	}
	return nil
}

// watchLogLevel applies logging.level edits from the config file.
func watchLogLevel(ctx context.Context) {
	if verbose {
		return
	}
	err := config.Watch(ctx, cfgFile, func(cfg *config.Config) {
		level, err := zerolog.ParseLevel(cfg.Logging.Level)
		if err != nil {
			return
		}
		if level != zerolog.GlobalLevel() {
			zerolog.SetGlobalLevel(level)
			log.Info().Str("level", level.String()).Msg("log level changed")
		}
	})
	if err != nil && !errors.Is(err, config.ErrNoConfigFile) {
		log.Warn().Err(err).Msg("config hot reload disabled")
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

func setupLogging(cfg *config.Config) {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Set output format
	if cfg.Logging.Format == "console" || verbose {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Add verbose logging if flag is set
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}
