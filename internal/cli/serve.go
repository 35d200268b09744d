package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/matzehuels/shelfmark/internal/api"
	"github.com/matzehuels/shelfmark/pkg/dataset"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr   string
		reload bool
		warm   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog tables as a JSON API",
		Long: `Serve books, categories and store locations over HTTP.

Tables are loaded through the cache tiers on first request and kept in memory
for the life of the process. Use --warm to load them before listening, and
--reload to allow POST /api/reload to drop the in-memory copies.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			cfg := c.cfg
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("warm") {
				cfg.Server.Warm = warm
			}

			a, err := c.newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.Warn("close shared store", "err", err)
				}
			}()

			if cfg.Server.Warm {
				prog := newProgress(logger)
				for _, kind := range dataset.Kinds() {
					if err := warmKind(ctx, a.manager, kind); err != nil {
						logger.Warn("warm-up failed; will retry on first request", "kind", kind, "err", err)
					}
				}
				prog.done("Warm-up finished")
			}

			srv := api.New(a.manager, api.Options{Logger: logger, AllowReload: reload})
			return srv.ListenAndServe(ctx, cfg.Server.Addr, cfg.Server.ShutdownTimeout)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", c.cfg.Server.Addr, "listen address")
	cmd.Flags().BoolVar(&reload, "reload", false, "enable POST /api/reload")
	cmd.Flags().BoolVar(&warm, "warm", false, "load every table before listening")

	return cmd
}

func warmKind(ctx context.Context, m *dataset.Manager, kind dataset.Kind) error {
	var err error
	switch kind {
	case dataset.KindBooks:
		_, err = m.Books(ctx)
	case dataset.KindCategories:
		_, err = m.Categories(ctx)
	case dataset.KindStores:
		_, err = m.Stores(ctx)
	}
	return err
}
