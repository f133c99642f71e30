package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewDaemonCommand creates the daemon command.
func NewDaemonCommand(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Keep the popular cache fresh in the background",
		Long: "Run the connectivity probe and the periodic cache refresh until interrupted. " +
			"Serves Prometheus metrics when metrics.addr is set.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openApp(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if !s.Config.IsConfigured() {
				return errNotConfigured
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := s.Logger
			logger.Info("starting daemon",
				"catalog", s.Config.Catalog.BaseURL,
				"interval", s.Config.Refresh.Interval,
				"metrics", s.Config.Metrics.Addr)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Refreshing every %s, press Ctrl+C to stop\n", s.Config.Refresh.Interval)

			// Print transitions for the operator
			go func() {
				for ev := range s.Tracker.Subscribe(ctx) {
					fmt.Fprintf(out, "%s (%s)\n", ev.Message, connectivityLabel(ev.To))
				}
			}()

			err = s.Supervise().Serve(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("supervisor stopped with error", "error", err)
				return fmt.Errorf("daemon stopped: %w", err)
			}

			logger.Info("daemon stopped")
			return nil
		},
	}
}
