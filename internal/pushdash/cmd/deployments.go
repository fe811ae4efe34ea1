package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sorenmh/pushdash/internal/pushdash/output"
	"github.com/sorenmh/pushdash/internal/viewmodel"
)

var deploymentsCmd = &cobra.Command{
	Use:   "deployments [app]",
	Short: "List the deployments of an app",
	Long: `List the deployments of an app with the package currently released to each
of them and its per-version metrics.

The app defaults to the configured app.

Example:
  pushdash deployments my-app
  pushdash deployments --app my-app --refresh`,
	Args: cobra.MaximumNArgs(1),
	RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
		app, _, err := appArg(args, 1, e.cfg.App)
		if err != nil {
			return err
		}

		deployments, err := e.dash.Deployments(cmd.Context(), app)
		if err != nil {
			return err
		}

		if len(deployments) == 0 {
			e.printer.Info("No deployments found")
			return nil
		}

		for _, d := range deployments {
			if d.Versions == nil {
				e.printer.Warn(fmt.Sprintf("metrics unavailable for deployment %s", d.Name))
			}
		}

		now := time.Now()
		rows := viewmodel.NewDeploymentRows(deployments)
		return e.printer.Print(rows, func() {
			headers := []string{"NAME", "ID", "LABEL", "APP VERSION", "SIZE", "HASH", "ROLLOUT", "MANDATORY", "STATUS", "DIFFS", "UPLOADED", "ACTIVE"}
			table := make([][]string, 0, len(rows))

			for _, row := range rows {
				active := make([]string, 0, len(row.Metrics))
				for _, m := range row.Metrics {
					active = append(active, m.Version.Text+"="+formatInt(m.Active))
				}

				if row.Package == nil {
					table = append(table, []string{
						row.Name, row.ID.Text, "-", "-", "-", "-", "-", "-", row.Status.Text, "-", "-",
						dash(strings.Join(active, " ")),
					})
					continue
				}

				pkg := row.Package
				diffs := "-"
				if pkg.DiffCount > 0 {
					diffs = formatInt(int64(pkg.DiffCount))
				}
				table = append(table, []string{
					row.Name,
					row.ID.Text,
					pkg.Label.Text,
					dash(pkg.AppVersion),
					pkg.Size(),
					dash(pkg.Hash),
					pkg.Rollout,
					pkg.Mandatory.Text,
					row.Status.Text,
					diffs,
					output.FormatTimeAgo(pkg.UploadedAt, now),
					dash(strings.Join(active, " ")),
				})
			}

			e.printer.Table(headers, table)
		})
	}),
}

func init() {
	rootCmd.AddCommand(deploymentsCmd)
}
