package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sorenmh/pushdash/internal/viewmodel"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics [app] <deployment>",
	Short: "Show install metrics of a deployment",
	Long: `Show the active, download, install and failure counters of every version
released to a deployment. Versions without an active counter are omitted.

Example:
  pushdash metrics my-app Production
  pushdash metrics Staging --app my-app`,
	Args: cobra.RangeArgs(1, 2),
	RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
		app, rest, err := appArg(args, 2, e.cfg.App)
		if err != nil {
			return err
		}
		deployment := rest[0]

		metrics, err := e.dash.DeploymentMetrics(cmd.Context(), app, deployment)
		if err != nil {
			return err
		}

		rows := viewmodel.NewMetricRows(metrics)
		if len(rows) == 0 {
			e.printer.Info("No metrics available")
			return nil
		}

		return e.printer.Print(rows, func() {
			headers := []string{"VERSION", "ACTIVE", "DOWNLOADED", "INSTALLED", "FAILED"}
			table := make([][]string, 0, len(rows))
			for _, row := range rows {
				table = append(table, []string{
					row.Version.Text,
					formatInt(row.Active),
					formatIntPtr(row.Downloaded),
					formatIntPtr(row.Installed),
					formatIntPtr(row.Failed),
				})
			}
			e.printer.Table(headers, table)
		})
	}),
}

func init() {
	rootCmd.AddCommand(metricsCmd)
}
