package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sorenmh/pushdash/internal/auth"
	"github.com/sorenmh/pushdash/internal/shared/config"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Configure pushdash",
	Long: `Configure the API endpoint, the default app and the auth token.

Without flags the values are prompted for; the token is read without echo.
The URL and app are written to the config file, the token to the state
database.

Example:
  pushdash configure
  pushdash configure --url https://push.example.com/ --app my-app --token abc123`,
	Args: cobra.NoArgs,
	RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
		url, _ := cmd.Flags().GetString("url")
		app, _ := cmd.Flags().GetString("app")
		token, _ := cmd.Flags().GetString("token")

		req := &config.ConfigureRequest{URL: url, App: app, Token: token}
		if url == "" && token == "" {
			current := config.ConfigureRequest{URL: e.cfg.URL, App: e.cfg.App}
			if e.session.HasToken() {
				current.Token = e.session.Token()
			}

			var err error
			req, err = config.TerminalPrompter().ConfigureInteractive(current)
			if err != nil {
				return err
			}
		}
		if req.URL == "" {
			req.URL = e.cfg.URL
		}
		if req.App == "" {
			req.App = e.cfg.App
		}

		file, err := config.SaveConfig(config.ConfigFile(), *req)
		if err != nil {
			return err
		}

		if req.Token != "" {
			if err := e.session.SetToken(cmd.Context(), req.Token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}
		}

		e.printer.Success(fmt.Sprintf("Configuration saved to %s", file))
		e.printer.Info("")
		e.printer.Info("Configuration:")
		e.printer.Info(fmt.Sprintf("  URL: %s", req.URL))
		e.printer.Info(fmt.Sprintf("  App: %s", dash(req.App)))
		if e.session.HasToken() {
			e.printer.Info(fmt.Sprintf("  Token: persisted (fingerprint %s)", auth.Fingerprint(e.session.Token())))
		} else {
			e.printer.Info("  Token: fallback")
		}
		return nil
	}),
}

func init() {
	configureCmd.Flags().String("token", "", "auth token to persist")
	rootCmd.AddCommand(configureCmd)
}
