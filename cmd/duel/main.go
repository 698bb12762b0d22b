package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"portfolio-edge/internal/logging"
	"portfolio-edge/internal/relay"
)

var (
	endpoint string
	token    string
	logLevel string
	timeout  time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "duel",
	Short: "Play the persona duel from a terminal",
	Long: "Send each line typed on stdin to both personas, print both replies, " +
		"then guess which one is real with /reveal. /reset starts a new game.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Init(logLevel); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer logging.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		opener := &relay.HTTPOpener{
			Endpoint: endpoint,
			Token:    token,
			Client:   &http.Client{Timeout: timeout},
		}

		logging.Logger.Debug("Starting duel session", zap.String("endpoint", endpoint))
		return newSession(opener, cmd.OutOrStdout(), cmd.ErrOrStderr(), logging.Logger).Run(ctx, cmd.InOrStdin())
	},
}

func init() {
	rootCmd.Flags().StringVar(&endpoint, "endpoint", "http://localhost:8000/api/chat", "chat endpoint URL")
	rootCmd.Flags().StringVar(&token, "token", os.Getenv("DUEL_TOKEN"), "bearer token for the chat endpoint")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "maximum duration of one reply")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
