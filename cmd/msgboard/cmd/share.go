package cmd

import (
	"fmt"
	"os"

	"github.com/brianly1003/msgboard/internal/config"
	"github.com/brianly1003/msgboard/internal/share"
	"github.com/spf13/cobra"
)

var (
	shareJSON bool
	sharePNG  string
)

// shareCmd prints connection details for clients.
var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Show connection details and a QR code for clients",
	Long: `Show the HTTP and WebSocket URLs of the configured server together
with a QR code of the WebSocket URL.

Examples:
  msgboard share                  # URLs and terminal QR code
  msgboard share --json           # Machine-readable connection info
  msgboard share --png board.png  # Write the QR code to a PNG file`,
	RunE: runShare,
}

func init() {
	shareCmd.Flags().BoolVar(&shareJSON, "json", false, "print connection info as JSON")
	shareCmd.Flags().StringVar(&sharePNG, "png", "", "write the QR code to a PNG file")
}

func runShare(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	gen := newShareGenerator(cfg)
	out := cmd.OutOrStdout()

	if sharePNG != "" {
		png, err := gen.GeneratePNG(256)
		if err != nil {
			return fmt.Errorf("failed to generate QR code: %w", err)
		}
		if err := os.WriteFile(sharePNG, png, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", sharePNG, err)
		}
		fmt.Fprintf(out, "QR code written to %s\n", sharePNG)
		return nil
	}

	if shareJSON {
		data, err := gen.GenerateJSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, data)
		return nil
	}

	return gen.Print(out)
}

func newShareGenerator(cfg *config.Config) *share.Generator {
	gen := share.NewGenerator(cfg.Server.Host, cfg.Server.Port, version)
	if cfg.Server.ExternalURL != "" {
		gen.SetExternalURL(cfg.Server.ExternalURL)
	}
	return gen
}

// serverURL returns override when set, otherwise the WebSocket URL of
// the configured server.
func serverURL(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	return newShareGenerator(cfg).Info().WebSocket, nil
}
