package cli

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/Benxalil/EcoGest-07-sub004/pkg/backend"
	"github.com/Benxalil/EcoGest-07-sub004/pkg/buildinfo"
	"github.com/Benxalil/EcoGest-07-sub004/pkg/config"
	"github.com/Benxalil/EcoGest-07-sub004/pkg/errors"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for display.
const appName = "ecogest"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger     *log.Logger
	configPath string
	verbose    bool
}

// New creates a new CLI instance writing logs to w.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "EcoGest data access tools",
		Long:         `ecogest queries the school management backend through the caching and retry layer used by the application, and can serve it as a read-through HTTP gateway.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			c.SetLogLevel(logLevel(c.verbose))
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $"+config.EnvConfig+" or the user config dir)")

	root.AddCommand(c.fetchCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Shared Setup
// =============================================================================

// loadConfig loads the configuration selected by --config.
func (c *CLI) loadConfig() (config.Config, error) {
	return config.Load(c.configPath)
}

// newClient creates a backend client from cfg.
func (c *CLI) newClient(cfg config.Config) (*backend.Client, error) {
	if cfg.Backend.URL == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig,
			"backend URL not configured (set %s or [backend] url)", config.EnvBackendURL)
	}
	return backend.NewClient(backend.Config{
		URL:     cfg.Backend.URL,
		APIKey:  cfg.Backend.APIKey,
		Timeout: cfg.Backend.Timeout.Duration,
		Retry:   cfg.RetryOptions(c.Logger),
		Logger:  c.Logger,
	})
}
