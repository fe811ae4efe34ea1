package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sorenmh/pushdash/internal/auth"
	"github.com/sorenmh/pushdash/internal/cache"
	"github.com/sorenmh/pushdash/internal/dashboard"
	"github.com/sorenmh/pushdash/internal/link"
	"github.com/sorenmh/pushdash/internal/pushdash/output"
	"github.com/sorenmh/pushdash/internal/queries"
	"github.com/sorenmh/pushdash/internal/restlink"
	"github.com/sorenmh/pushdash/internal/shared/config"
	"github.com/sorenmh/pushdash/internal/shared/logging"
)

var (
	outputFormat string
	refresh      bool
)

var rootCmd = &cobra.Command{
	Use:   "pushdash",
	Short: "Code-push deployment dashboard",
	Long: `pushdash shows the apps, deployments, release history and install metrics
of a code-push management API.

It allows you to:
  - List apps with their collaborators and deployments
  - Inspect the current package and metrics of every deployment
  - Browse the release history of a deployment
  - Serve the same views as JSON for a web front end

Configuration:
  Environment variables:
    PUSHDASH_URL            - management API endpoint (default http://localhost:9007/)
    PUSHDASH_APP            - default app name
    PUSHDASH_FALLBACKTOKEN  - token sent until the server rotates one

  Config file (~/.pushdash/config.yaml):
    url: https://push.example.com/
    app: my-app

  CLI flags override environment variables and config file.
  The auth token is kept in the state database (~/.pushdash/state.db) and is
  replaced whenever the API returns a rotated one.

Example usage:
  pushdash apps
  pushdash deployments my-app
  pushdash history my-app Production -o json`,
	SilenceUsage: true,
}

// ExecuteContext runs the command tree with ctx
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	config.InitConfig()
	config.AddFlags(rootCmd)

	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&refresh, "refresh", false, "bypass the cache and always query the API")
}

// env is everything a command needs to talk to the API
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	printer *output.Printer
	store   *auth.SQLiteStore
	session *auth.Session
	client  *cache.Client
	dash    *dashboard.Service
}

// setup loads the configuration and wires the query pipeline:
// cache -> auth -> REST executor
func setup(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}

	logger := logging.New(cfg.LogLevel, logging.Format(cfg.LogFormat), cmd.ErrOrStderr())
	slog.SetDefault(logger)

	// Ensure state directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.StateDB), 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	store, err := auth.OpenSQLiteStore(cfg.StateDB)
	if err != nil {
		return nil, err
	}

	session := auth.NewSession(store, cfg.FallbackToken, auth.WithSessionLogger(logger))
	if err := session.Load(cmd.Context()); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to load auth token: %w", err)
	}

	handler := link.Chain(
		restlink.New(cfg.URL,
			restlink.WithTimeout(cfg.Timeout),
			restlink.WithConcurrency(cfg.Concurrency),
			restlink.WithLogger(logger),
			restlink.WithTypePatch(queries.TypePatch()),
		),
		auth.Middleware(session),
	)
	client := cache.New(handler,
		cache.WithStore(cache.NewStore(queries.KeyFields())),
		cache.WithLogger(logger),
	)

	policy := cache.CacheFirst
	if refresh {
		policy = cache.NetworkOnly
	}

	return &env{
		cfg:     cfg,
		logger:  logger,
		printer: output.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), format),
		store:   store,
		session: session,
		client:  client,
		dash:    dashboard.New(client, dashboard.WithFetchPolicy(policy), dashboard.WithLogger(logger)),
	}, nil
}

func (e *env) Close() error {
	return e.store.Close()
}

// withEnv runs fn with a fully wired env and closes it afterwards
func withEnv(fn func(cmd *cobra.Command, args []string, e *env) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		return fn(cmd, args, e)
	}
}

// appArg returns the app named by the first of n positional arguments, or
// the configured default app when only n-1 were given
func appArg(args []string, n int, defaultApp string) (string, []string, error) {
	if len(args) == n {
		return args[0], args[1:], nil
	}
	if defaultApp == "" {
		return "", nil, fmt.Errorf("app name is required (pass it as an argument, --app flag, or app in config file)")
	}
	return defaultApp, args, nil
}
