package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/shelfmark/internal/config"
)

// configCommand creates the config command.
func (c *CLI) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show configuration",
		Long: `Show the effective configuration.

Settings are layered: built-in defaults, the TOML config file, a .env file in
the working directory, environment variables (SHELFMARK_*, plus HF_TOKEN,
AWS_*, REDIS_URL and MONGODB_URI), then command-line flags.`,
	}

	var secrets bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.cfg
			if !secrets {
				cfg = cfg.Redacted()
			}
			return cfg.Encode(cmd.OutOrStdout())
		},
	}
	show.Flags().BoolVar(&secrets, "show-secrets", false, "print credentials unmasked")

	path := &cobra.Command{
		Use:   "path",
		Short: "Print the default config file path",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), config.DefaultPath())
		},
	}

	cmd.AddCommand(show, path)
	return cmd
}
