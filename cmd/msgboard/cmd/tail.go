package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brianly1003/msgboard/internal/client"
	"github.com/brianly1003/msgboard/internal/domain/events"
	"github.com/spf13/cobra"
)

var (
	tailHistory bool
	tailURL     string
)

// tailCmd follows the live message stream.
var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow messages as they are posted",
	Long: `Connect to a running msgboard server and print every message as it
is posted. Press Ctrl+C to stop.

Examples:
  msgboard tail                # Live messages only
  msgboard tail --history      # Print stored messages first
  msgboard tail --url ws://board.example.com/ws`,
	Args: cobra.NoArgs,
	RunE: runTail,
}

func init() {
	tailCmd.Flags().BoolVar(&tailHistory, "history", false, "print stored messages before following")
	tailCmd.Flags().StringVar(&tailURL, "url", "", "server WebSocket URL (default: from config)")
}

func runTail(cmd *cobra.Command, args []string) error {
	url, err := serverURL(tailURL)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dialCtx, dialCancel := context.WithTimeout(ctx, client.HandshakeTimeout)
	c, err := client.Dial(dialCtx, url)
	dialCancel()
	if err != nil {
		return err
	}
	defer c.Close()

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	err = c.Follow(ctx, tailHistory,
		func(msg events.Message) {
			fmt.Fprintln(out, formatMessage(msg))
		},
		func(count uint64) {
			fmt.Fprintf(errOut, "-- %d message(s) dropped: client fell behind --\n", count)
		},
	)

	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return nil
	case errors.Is(err, client.ErrClosed):
		return errors.New("server closed the connection")
	default:
		return err
	}
}

// formatMessage renders a message as a single line.
func formatMessage(msg events.Message) string {
	return fmt.Sprintf("[%s] #%s %s: %s",
		msg.CreatedAt.Local().Format(time.DateTime), msg.ID, msg.Author, msg.Content)
}
