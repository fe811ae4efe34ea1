package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sorenmh/pushdash/internal/auth"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the persisted auth token",
	Long: `Show, set or clear the bearer token kept in the state database.

The token is sent on every API call and replaced automatically when the
API returns a rotated one. Without a persisted token the fallback token is
sent.`,
}

var tokenShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show which token is in use",
	Long:  `Show the fingerprint of the token in use and whether it is persisted or the fallback.`,
	Args:  cobra.NoArgs,
	RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
		info := TokenInfo{
			Source:      "fallback",
			Fingerprint: auth.Fingerprint(e.session.Token()),
			StateDB:     e.cfg.StateDB,
		}
		if e.session.HasToken() {
			info.Source = "persisted"
		}

		return e.printer.Print(info, func() {
			e.printer.Info(fmt.Sprintf("Source:      %s", info.Source))
			e.printer.Info(fmt.Sprintf("Fingerprint: %s", info.Fingerprint))
			e.printer.Info(fmt.Sprintf("State DB:    %s", info.StateDB))
		})
	}),
}

// TokenInfo describes the token in use without revealing it
type TokenInfo struct {
	Source      string `json:"source" yaml:"source"`
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`
	StateDB     string `json:"stateDB" yaml:"stateDB"`
}

var tokenSetCmd = &cobra.Command{
	Use:   "set <token>",
	Short: "Persist a token",
	Long: `Persist a token. A leading "Bearer " is stripped.

Example:
  pushdash token set eyJhbGciOi...`,
	Args: cobra.ExactArgs(1),
	RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
		if err := e.session.SetToken(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to save token: %w", err)
		}
		e.printer.Success(fmt.Sprintf("Token saved (fingerprint %s)", auth.Fingerprint(e.session.Token())))
		return nil
	}),
}

var tokenClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the persisted token",
	Args:  cobra.NoArgs,
	RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
		if err := e.session.Clear(cmd.Context()); err != nil {
			return fmt.Errorf("failed to clear token: %w", err)
		}
		e.printer.Success("Token cleared, the fallback token will be used")
		return nil
	}),
}

func init() {
	tokenCmd.AddCommand(tokenShowCmd)
	tokenCmd.AddCommand(tokenSetCmd)
	tokenCmd.AddCommand(tokenClearCmd)
	rootCmd.AddCommand(tokenCmd)
}
