package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

const (
	// EnvPrefix prefixes every environment variable, e.g. PUSHDASH_URL
	EnvPrefix = "PUSHDASH"

	DefaultURL           = "http://localhost:9007/"
	DefaultFallbackToken = "123-x"
	DefaultTimeout       = 30 * time.Second
	DefaultListen        = ":8080"
	DefaultConcurrency   = 4

	dirName = ".pushdash"
)

// Config holds the settings shared by every command
type Config struct {
	URL           string        `mapstructure:"url" validate:"required,url"`
	FallbackToken string        `mapstructure:"fallbackToken" validate:"required"`
	StateDB       string        `mapstructure:"stateDB" validate:"required"`
	Timeout       time.Duration `mapstructure:"timeout" validate:"gt=0"`
	LogLevel      string        `mapstructure:"logLevel" validate:"oneof=debug info warn warning error"`
	LogFormat     string        `mapstructure:"logFormat" validate:"oneof=text json"`
	App           string        `mapstructure:"app"`
	Listen        string        `mapstructure:"listen" validate:"required,hostname_port"`
	Concurrency   int           `mapstructure:"concurrency" validate:"gt=0"`
}

var cfgFile string

var validate = validator.New(validator.WithRequiredStructEnabled())

// InitConfig initializes the shared configuration system
func InitConfig() {
	SetDefaults(viper.GetViper())
	cobra.OnInitialize(loadConfig)
}

// AddFlags adds common configuration flags to a cobra command
func AddFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ~/.pushdash/config.yaml)")
	flags.String("url", "", "code-push management API endpoint")
	flags.String("state-db", "", "path of the local state database holding the auth token")
	flags.Duration("timeout", 0, "timeout of each API call")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (text, json)")
	flags.String("app", "", "default app name")
	flags.Int("concurrency", 0, "deployments resolving their metrics at the same time (default 4)")

	// Bind flags to viper
	viper.BindPFlag("url", flags.Lookup("url"))
	viper.BindPFlag("stateDB", flags.Lookup("state-db"))
	viper.BindPFlag("timeout", flags.Lookup("timeout"))
	viper.BindPFlag("logLevel", flags.Lookup("log-level"))
	viper.BindPFlag("logFormat", flags.Lookup("log-format"))
	viper.BindPFlag("app", flags.Lookup("app"))
	viper.BindPFlag("concurrency", flags.Lookup("concurrency"))
}

// SetDefaults registers every key with its default value
func SetDefaults(v *viper.Viper) {
	v.SetDefault("url", DefaultURL)
	v.SetDefault("fallbackToken", DefaultFallbackToken)
	v.SetDefault("stateDB", filepath.Join("~", dirName, "state.db"))
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("logLevel", "info")
	v.SetDefault("logFormat", "text")
	v.SetDefault("app", "")
	v.SetDefault("listen", DefaultListen)
	v.SetDefault("concurrency", DefaultConcurrency)
}

// loadConfig loads configuration from file and environment
func loadConfig() {
	if err := ReadInto(viper.GetViper(), cfgFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// ReadInto points v at the config file and the environment and reads the
// file when it exists
func ReadInto(v *viper.Viper, file string) error {
	if file != "" {
		// Use config file from the flag
		v.SetConfigFile(file)
	} else {
		dir, err := Dir()
		if err != nil {
			return err
		}
		v.AddConfigPath(dir)
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		if file == "" && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// Load returns the validated configuration of the global viper instance
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom decodes and validates the configuration held by v
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	path, err := ExpandHome(cfg.StateDB)
	if err != nil {
		return nil, err
	}
	cfg.StateDB = path

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration values
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, ", "))
}

// Dir returns the directory holding the config file and the state database
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// ExpandHome replaces a leading "~" with the home directory
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// ConfigureRequest represents configuration input
type ConfigureRequest struct {
	URL   string
	Token string
	App   string
}

// Prompter reads configure answers. ReadSecret reads a value without
// echoing it.
type Prompter struct {
	In         *bufio.Reader
	Out        io.Writer
	ReadSecret func() (string, error)
}

// TerminalPrompter prompts on stdin/stdout and hides the token when stdin
// is a terminal
func TerminalPrompter() *Prompter {
	in := bufio.NewReader(os.Stdin)
	p := &Prompter{In: in, Out: os.Stdout}
	p.ReadSecret = func() (string, error) {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return readLine(in)
		}
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(p.Out)
		return string(b), err
	}
	return p
}

// ConfigureInteractive runs interactive configuration. Empty answers keep
// the current values; an empty token keeps the persisted one.
func (p *Prompter) ConfigureInteractive(current ConfigureRequest) (*ConfigureRequest, error) {
	// Get URL
	fmt.Fprint(p.Out, "API URL")
	if current.URL != "" {
		fmt.Fprintf(p.Out, " [%s]", current.URL)
	}
	fmt.Fprint(p.Out, ": ")

	urlInput, err := readLine(p.In)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	if urlInput == "" {
		urlInput = current.URL
	}

	// Get default app
	fmt.Fprint(p.Out, "Default app")
	if current.App != "" {
		fmt.Fprintf(p.Out, " [%s]", current.App)
	}
	fmt.Fprint(p.Out, ": ")

	appInput, err := readLine(p.In)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	if appInput == "" {
		appInput = current.App
	}

	// Get token
	fmt.Fprint(p.Out, "Auth token")
	if current.Token != "" {
		fmt.Fprint(p.Out, " [hidden]")
	}
	fmt.Fprint(p.Out, ": ")

	tokenInput, err := p.ReadSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to read token: %w", err)
	}
	tokenInput = strings.TrimSpace(tokenInput)

	if urlInput == "" {
		return nil, fmt.Errorf("URL is required")
	}

	return &ConfigureRequest{
		URL:   urlInput,
		Token: tokenInput,
		App:   appInput,
	}, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// SaveConfig writes the URL and default app to file, or to the default
// config file when file is empty. Other keys already in the file are kept;
// values resolved from flags or the environment are not written. The token
// is not part of the config file; it lives in the state database.
func SaveConfig(file string, req ConfigureRequest) (string, error) {
	if file == "" {
		dir, err := Dir()
		if err != nil {
			return "", err
		}
		file = filepath.Join(dir, "config.yaml")
	}

	// Create config directory
	if err := os.MkdirAll(filepath.Dir(file), 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to read config file: %w", err)
	}

	v.Set("url", req.URL)
	if req.App != "" {
		v.Set("app", req.App)
	}

	if err := v.WriteConfigAs(file); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return file, nil
}

// ConfigFile returns the config file selected with --config, if any
func ConfigFile() string {
	return cfgFile
}
