// Package cli provides the obra-balance commands.
package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	cfgFile string
	debug   bool
	json    bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "obra-balance",
		Short: "Keep construction project balances consistent",
		Long: `obra-balance tracks the cash balance of construction projects.

The balance is receipts minus outstanding advances, contractor payments and
paid expenses. It is adjusted on every recorded transaction and can be
recomputed from the transaction history at any time.

Example:
  obra-balance serve
  obra-balance project create --name "Villa Erbil"
  obra-balance balance 3f0c5c1e-8a55-4b0e-9d0b-0f3c1f7c9a11
  obra-balance reconcile --all --output yaml`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(opts.debug, opts.json)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "env file (default is .env)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().BoolVar(&opts.json, "json", false, "log as JSON")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newProjectCmd(opts))
	cmd.AddCommand(newBalanceCmd(opts))
	cmd.AddCommand(newReconcileCmd(opts))

	return cmd
}

func setupLogging(debug, asJSON bool) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, handlerOpts)
	if asJSON {
		handler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(handler))
}

// Execute runs the root command. This is called by main.main().
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
