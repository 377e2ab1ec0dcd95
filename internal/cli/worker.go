package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"wash-sync-backend/internal/syncworker"
)

// NewWorkerCommand creates the worker command.
func NewWorkerCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run one sync worker per queue until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := loadApp(rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			syncworker.NewManager(app.Log, app.Workers()...).Start(ctx)
			return nil
		},
	}
}
