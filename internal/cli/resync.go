package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"wash-sync-backend/internal/model"
	"wash-sync-backend/internal/syncbus"
)

// ResyncOptions holds flags for the resync command.
type ResyncOptions struct {
	*RootOptions
	Type   string
	IDs    []string
	Delete bool
}

// NewResyncCommand creates the resync command.
func NewResyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resync",
		Short: "Force a CRM sync of specific records",
		Long: `Enqueue sync jobs for the given records; a running worker picks them up.

Example:
  washd resync --type order --id 0b6a... --id 7f21...
  washd resync --type user --id 3c9e... --delete`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseSyncType(opts.Type)
			if err != nil {
				return err
			}
			action := model.SyncActionSync
			if opts.Delete {
				action = model.SyncActionDelete
			}

			app, err := loadApp(opts.RootOptions)
			if err != nil {
				return err
			}
			defer app.Close()

			n, err := app.Reconcile.Resync(cmd.Context(), t, action, opts.IDs...)
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued: %d\n", n)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.Type, "type", "", "record type (user|order|order_item|order_transaction|campaign|refund)")
	cmd.Flags().StringSliceVar(&opts.IDs, "id", nil, "record id, repeatable")
	cmd.Flags().BoolVar(&opts.Delete, "delete", false, "delete the CRM record instead of upserting it")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

// parseSyncType accepts a type name in any case; it must have a queue.
func parseSyncType(s string) (model.SyncType, error) {
	t := model.SyncType(strings.ToUpper(strings.TrimSpace(s)))
	if _, err := syncbus.QueueFor(t); err != nil {
		return "", fmt.Errorf("unknown sync type %q", s)
	}
	return t, nil
}
