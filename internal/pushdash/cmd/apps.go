package cmd

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/sorenmh/pushdash/internal/viewmodel"
)

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "List all apps",
	Long: `List all apps visible to the current account with their collaborators
and deployments.

Example:
  pushdash apps
  pushdash apps -o yaml`,
	Args: cobra.NoArgs,
	RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
		apps, err := e.dash.Apps(cmd.Context())
		if err != nil {
			return err
		}

		if len(apps) == 0 {
			e.printer.Info("No apps found")
			return nil
		}

		rows := viewmodel.NewAppRows(apps)
		return e.printer.Print(rows, func() {
			headers := []string{"NAME", "STATUS", "COLLABORATORS", "DEPLOYMENTS"}
			table := lo.Map(rows, func(row viewmodel.AppRow, _ int) []string {
				collaborators := lo.Map(row.Collaborators, func(c viewmodel.CollaboratorView, _ int) string {
					return fmt.Sprintf("[%s] %s (%s)", c.Avatar, c.Email, c.Permission.Text)
				})
				deployments := lo.Map(row.Deployments, func(l viewmodel.Label, _ int) string { return l.Text })
				return []string{
					row.Name.Text,
					row.Status.Text,
					dash(strings.Join(collaborators, ", ")),
					dash(strings.Join(deployments, ", ")),
				}
			})
			e.printer.Table(headers, table)
		})
	}),
}

func init() {
	rootCmd.AddCommand(appsCmd)
}
