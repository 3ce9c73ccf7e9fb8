package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/billbatista/obra-balance/ledger"
	"github.com/spf13/cobra"
)

func newProjectCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}
	cmd.AddCommand(newProjectCreateCmd(opts))
	cmd.AddCommand(newProjectListCmd(opts))
	return cmd
}

func newProjectCreateCmd(opts *rootOptions) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project with a zero balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := ledger.NewProject(name)
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), opts, func(a *app) error {
				if err := a.store.CreateProject(cmd.Context(), project); err != nil {
					return err
				}
				slog.Info("project created", "project_id", project.ID, "name", project.Name)
				fmt.Fprintln(cmd.OutOrStdout(), project.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "project name")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

type projectReport struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Balance string `json:"currentBalance" yaml:"current_balance"`
}

func newProjectListCmd(opts *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects with their cached balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validOutput(output); err != nil {
				return err
			}

			return withApp(cmd.Context(), opts, func(a *app) error {
				projects, err := a.store.ListProjects(cmd.Context())
				if err != nil {
					return err
				}

				reports := make([]projectReport, 0, len(projects))
				for _, p := range projects {
					reports = append(reports, projectReport{ID: p.ID.String(), Name: p.Name, Balance: p.CurrentBalance.String()})
				}

				return render(cmd.OutOrStdout(), output, reports, func(w io.Writer) {
					for _, r := range reports {
						fmt.Fprintf(w, "%s  %-30s %s\n", r.ID, r.Name, r.Balance)
					}
				})
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format: text, json or yaml")

	return cmd
}
