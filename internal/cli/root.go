// Package cli wires the service together behind the washd command line.
package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// DefaultConfigPath is used when neither --config nor CONFIG_PATH is set.
const DefaultConfigPath = "./config/config.yaml"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	v *viper.Viper
}

// ConfigPath resolves the configuration file: flag, then CONFIG_PATH, then the default.
func (o *RootOptions) ConfigPath() string {
	return o.v.GetString("config")
}

// NewRootCommand creates the root command for washd.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{v: viper.New()})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "washd",
		Short:         "Wash device webhook and CRM sync service",
		Long:          "washd ingests wash machine events, keeps orders and devices consistent and replicates them to the CRM.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", DefaultConfigPath, "path to the YAML configuration file")
	_ = opts.v.BindPFlag("config", cmd.PersistentFlags().Lookup("config"))
	_ = opts.v.BindEnv("config", "CONFIG_PATH")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewWorkerCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewResyncCommand(opts))
	cmd.AddCommand(NewKeysCommand())

	return cmd
}
