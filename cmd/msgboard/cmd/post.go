package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brianly1003/msgboard/internal/client"
	"github.com/spf13/cobra"
)

var (
	postAuthor  string
	postURL     string
	postTimeout time.Duration
)

// postCmd publishes a message to a running server.
var postCmd = &cobra.Command{
	Use:   "post <content...>",
	Short: "Post a message to a running server",
	Long: `Post a message to a running msgboard server over WebSocket.

The remaining arguments are joined with spaces to form the content.

Examples:
  msgboard post --author alice hello everyone
  msgboard post --author bob --url ws://board.example.com/ws "deploy done"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPost,
}

func init() {
	postCmd.Flags().StringVarP(&postAuthor, "author", "a", "", "message author (required)")
	postCmd.Flags().StringVar(&postURL, "url", "", "server WebSocket URL (default: from config)")
	postCmd.Flags().DurationVar(&postTimeout, "timeout", 10*time.Second, "how long to wait for the server")
	_ = postCmd.MarkFlagRequired("author")
}

func runPost(cmd *cobra.Command, args []string) error {
	url, err := serverURL(postURL)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), postTimeout)
	defer cancel()

	c, err := client.Dial(ctx, url)
	if err != nil {
		return err
	}
	defer c.Close()

	msg, err := c.Post(ctx, strings.Join(args, " "), postAuthor)
	if err != nil {
		return fmt.Errorf("post failed: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), formatMessage(msg))
	return nil
}
