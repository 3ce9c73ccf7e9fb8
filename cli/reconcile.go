package cli

import (
	"errors"
	"fmt"

	"github.com/billbatista/obra-balance/balance"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newReconcileCmd(opts *rootOptions) *cobra.Command {
	var (
		all    bool
		output string
	)

	cmd := &cobra.Command{
		Use:   "reconcile [PROJECT_ID]",
		Short: "Recompute and persist project balances",
		Long: `Recompute project balances from their transaction history and persist
them, reporting how far each cached balance had drifted.

Example:
  obra-balance reconcile 3f0c5c1e-8a55-4b0e-9d0b-0f3c1f7c9a11
  obra-balance reconcile --all --output json`,
		Args: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return errors.New("pass a project id or --all, not both")
			}
			if !all && len(args) != 1 {
				return errors.New("a project id is required unless --all is set")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validOutput(output); err != nil {
				return err
			}

			var projectID uuid.UUID
			if !all {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid project id %q: %w", args[0], err)
				}
				projectID = id
			}

			return withApp(cmd.Context(), opts, func(a *app) error {
				var (
					results []balance.Reconciliation
					runErr  error
				)
				if all {
					results, runErr = a.engine.ReconcileAll(cmd.Context())
				} else {
					rec, err := a.engine.Reconcile(cmd.Context(), projectID)
					if rec.ProjectID != uuid.Nil {
						results = append(results, rec)
					}
					runErr = err
				}

				reports := make([]reconciliationReport, 0, len(results))
				for _, rec := range results {
					reports = append(reports, newReconciliationReport(rec))
				}
				if err := render(cmd.OutOrStdout(), output, reports, reconciliationText(reports)); err != nil {
					return err
				}
				return runErr
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "reconcile every project")
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format: text, json or yaml")

	return cmd
}
