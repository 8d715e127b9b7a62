package cli

import (
	"github.com/spf13/cobra"

	"github.com/rl1809/order-ledger/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
}

// NewRootCommand creates the order-ledger command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           config.ServiceName,
		Short:         "Order item ledger service",
		Long:          "Keeps product stock, order totals and order item price snapshots consistent under concurrent edits.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to a YAML config file")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}

func (o *RootOptions) load() (config.Config, error) {
	return config.Load(o.ConfigPath)
}
