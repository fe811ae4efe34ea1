package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/sorenmh/pushdash/internal/pushdash/output"
	"github.com/sorenmh/pushdash/internal/viewmodel"
)

var historyCmd = &cobra.Command{
	Use:   "history [app] <deployment>",
	Short: "Show the release history of a deployment",
	Long: `Show every package released to a deployment. Descriptions holding
per-locale JSON are split into one line per locale.

Example:
  pushdash history my-app Production
  pushdash history Production --app my-app -o json`,
	Args: cobra.RangeArgs(1, 2),
	RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
		app, rest, err := appArg(args, 2, e.cfg.App)
		if err != nil {
			return err
		}
		deployment := rest[0]

		history, err := e.dash.History(cmd.Context(), app, deployment)
		if err != nil {
			return err
		}

		if len(history) == 0 {
			e.printer.Info("No releases found")
			return nil
		}

		rows := viewmodel.NewHistoryRows(history)
		return e.printer.Print(rows, func() {
			headers := []string{"LABEL", "APP VERSION", "DESCRIPTION", "MANDATORY", "ROLLOUT", "STATUS", "SIZE", "RELEASED BY", "UPLOADED"}
			table := make([][]string, 0, len(rows))
			for _, row := range rows {
				table = append(table, []string{
					row.Label.Text,
					dash(row.AppVersion.Text),
					dash(describe(row.Description)),
					row.Mandatory.Text,
					row.Rollout,
					row.Status.Text,
					row.Package.Size(),
					dash(row.ReleasedBy),
					output.FormatTime(row.UploadedAt),
				})
			}
			e.printer.Table(headers, table)
		})
	}),
}

// describe flattens a description onto one table cell
func describe(d viewmodel.Description) string {
	if !d.Structured() {
		return strings.Join(strings.Fields(d.Raw), " ")
	}
	parts := make([]string, 0, len(d.Lines))
	for _, l := range d.Lines {
		parts = append(parts, l.Locale.Text+": "+l.Text)
	}
	return strings.Join(parts, " | ")
}

func init() {
	rootCmd.AddCommand(historyCmd)
}
