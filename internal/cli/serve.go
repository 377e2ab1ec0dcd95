package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"wash-sync-backend/internal/api"
	"wash-sync-backend/internal/syncworker"
)

const shutdownTimeout = 5 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	All bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the device webhook and the HTTP API",
		Long: `Serve the device webhook, the operator sync routes and the station board API.

With --all the sync workers and the reconciliation loop run in the same process.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := loadApp(opts.RootOptions)
			if err != nil {
				return err
			}
			defer app.Close()
			return runServe(ctx, app, opts.All)
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "also run the sync workers and the reconciliation loop")
	return cmd
}

func runServe(ctx context.Context, app *App, all bool) error {
	wh, err := app.Webhook()
	if err != nil {
		return err
	}

	handler := api.NewHandler(app.Store, wh, app.Reconcile, app.WebPush, app.Log)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", app.Config.Server.Port),
		Handler: api.NewRouter(handler, app.Config.Server, app.Devices),
	}

	if app.Push != nil {
		app.Push.Start(ctx)
	}

	var manager *syncworker.Manager
	if all {
		manager = syncworker.NewManager(app.Log, app.Workers()...)
		go manager.Start(ctx)
		go app.Reconcile.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		app.Log.Infof(ctx, "HTTP server starting on port %d", app.Config.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		app.Log.Infof(context.Background(), "shutdown signal received, stopping services")
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}
	if manager != nil {
		manager.Shutdown()
	}

	app.Log.Infof(context.Background(), "server gracefully stopped")
	return nil
}
