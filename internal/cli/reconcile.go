package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// ReconcileOptions holds flags for the reconcile command.
type ReconcileOptions struct {
	*RootOptions
	Once bool
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Re-enqueue failed and never synced records",
		Long: `Re-enqueue every record whose last sync failed and every user or order never synced.

Without --once the sweep repeats on reconcile.interval_minutes while reconcile.enabled is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := loadApp(opts.RootOptions)
			if err != nil {
				return err
			}
			defer app.Close()

			if opts.Once {
				return reconcileOnce(ctx, app, cmd.OutOrStdout())
			}
			app.Reconcile.Run(ctx)
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.Once, "once", false, "run a single sweep and exit")
	return cmd
}

func reconcileOnce(ctx context.Context, app *App, out io.Writer) error {
	report := app.Reconcile.RunAll(ctx)
	fmt.Fprintf(out, "retried: %d\nusers: %d\norders: %d\n", report.RetriedLogs, report.Users, report.Orders)
	return errors.Join(report.Errors...)
}
