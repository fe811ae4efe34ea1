package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sorenmh/pushdash/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve dashboard views as JSON",
	Long: `Serve apps, deployments, metrics and history rows over HTTP for a web
front end. Query results are cached until POST /api/v1/cache/reset.

Routes:
  GET  /health
  GET  /api/v1/apps
  GET  /api/v1/apps/:app/deployments
  GET  /api/v1/apps/:app/deployments/:deployment/metrics
  GET  /api/v1/apps/:app/deployments/:deployment/history
  POST /api/v1/cache/reset

Example:
  pushdash serve --listen :8080`,
	Args: cobra.NoArgs,
	RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
		srv := server.New(server.Config{
			Listen: e.cfg.Listen,
			Debug:  e.cfg.LogLevel == "debug",
		}, e.dash, e.logger, server.WithCache(e.client))

		return srv.Run(cmd.Context())
	}),
}

func init() {
	serveCmd.Flags().String("listen", "", "address to listen on (default :8080)")
	viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
	rootCmd.AddCommand(serveCmd)
}
