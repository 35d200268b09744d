// Package cli implements the shelfmark command-line interface.
//
// shelfmark materializes the bookstore catalog (books, categories, store
// locations) as Parquet snapshots, reusing a local copy or a shared remote
// copy before falling back to the origin API.
//
// # Commands
//
//   - fetch: Load one or all tables and optionally export them
//   - serve: Serve the tables as a read-only JSON API
//   - cache: Inspect and clear local snapshots
//   - remote: Manage the shared store credentials and inspect its contents
//   - config: Show the effective configuration
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging, which also
// traces every cache tier decision and origin request.
package cli

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/shelfmark/internal/config"
	"github.com/matzehuels/shelfmark/pkg/buildinfo"
	"github.com/matzehuels/shelfmark/pkg/observability"
)

const appName = "shelfmark"

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
	Logger *log.Logger

	// Set from persistent flags.
	configPath string
	cacheDir   string
	backend    string
	verbose    bool

	cfg   config.Config
	hooks *logHooks
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		cfg:    config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// Config returns the configuration loaded for the running command.
func (c *CLI) Config() config.Config { return c.cfg }

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Shelfmark keeps bookstore catalog snapshots close at hand",
		Long:         `Shelfmark fetches the bookstore catalog (books, categories and store locations), stores it as Parquet snapshots, and shares them through a remote dataset store so the origin is only crawled once.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.verbose {
				c.SetLogLevel(LogDebug)
			}
			if err := c.loadConfig(); err != nil {
				return err
			}
			c.hooks = newLogHooks(c.Logger)
			observability.SetDatasetHooks(c.hooks)
			observability.SetCacheHooks(c.hooks)
			observability.SetHTTPHooks(c.hooks)
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "config file (default $XDG_CONFIG_HOME/shelfmark/config.toml)")
	flags.StringVar(&c.cacheDir, "cache-dir", "", "local snapshot directory")
	flags.StringVar(&c.backend, "backend", "", "shared store backend (hub, s3, redis, mongo, dir, none)")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(c.fetchCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.remoteCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig layers the persistent flags over the file and environment
// configuration.
func (c *CLI) loadConfig() error {
	cfg, src, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.cacheDir != "" {
		cfg.CacheDir = c.cacheDir
	}
	if c.backend != "" {
		cfg.Remote.Backend = c.backend
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	c.Logger.Debug("configuration loaded", "file", src.File, "dotenv", src.DotEnv, "env_vars", src.Environ)
	c.cfg = cfg
	return nil
}
