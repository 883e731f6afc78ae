package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewDispatchCmd runs the outbox dispatcher without the HTTP API, for
// deployments that scale the two separately.
func NewDispatchCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Run the outbox dispatcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(ctx, cfg, logr)
			if err != nil {
				return err
			}
			defer a.close()

			a.emailQueue.Start(ctx)
			d := a.dispatcher()

			if once {
				n, err := d.DispatchOnce(ctx)
				if err != nil {
					return err
				}
				logr.Info("outbox batch dispatched", zap.Int("events", n))
				return nil
			}

			logr.Info("dispatcher started",
				zap.Duration("poll_interval", cfg.Outbox.PollInterval),
				zap.Int("workers", cfg.Outbox.Workers))
			d.Run(ctx)
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Process a single batch and exit")
	return cmd
}
