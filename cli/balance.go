package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newBalanceCmd(opts *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "balance PROJECT_ID",
		Short: "Compute a project balance from its transactions",
		Long: `Compute a project balance from its full transaction history.

Nothing is written. The command fails when any transaction stream could not
be read, after printing what it could compute.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid project id %q: %w", args[0], err)
			}
			if err := validOutput(output); err != nil {
				return err
			}

			return withApp(cmd.Context(), opts, func(a *app) error {
				snapshot, err := a.engine.ComputeSnapshot(cmd.Context(), projectID)
				if err != nil {
					return err
				}

				report := newSnapshotReport(snapshot)
				if err := render(cmd.OutOrStdout(), output, report, report.text); err != nil {
					return err
				}
				return snapshot.Err()
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format: text, json or yaml")

	return cmd
}
