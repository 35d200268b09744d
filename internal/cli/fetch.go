package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/shelfmark/pkg/dataset"
)

// fetchOptions holds the flags of the fetch command.
type fetchOptions struct {
	format         string
	out            string
	refreshLocal   bool
	noDescriptions bool
	stats          bool
	check          bool
}

// loadedTables holds whichever tables a command loaded.
type loadedTables struct {
	books      []dataset.Book
	categories []dataset.Category
	stores     []dataset.StoreLocation
}

// fetchCommand creates the fetch command.
func (c *CLI) fetchCommand() *cobra.Command {
	var opts fetchOptions

	cmd := &cobra.Command{
		Use:   "fetch [books|categories|stores|all]",
		Short: "Load catalog tables through the cache tiers",
		Long: `Load one or all catalog tables. Each table is read from the local snapshot
directory if present, otherwise from the shared store, otherwise crawled from
the origin API and then saved locally and published to the shared store.

Without --format the tables are only materialized. With --format they are
exported to stdout (single table) or to --out (a file for a single table, a
directory for all).`,
		Example: `  # Warm every table
  shelfmark fetch

  # Export books as CSV
  shelfmark fetch books --format csv --out books.csv

  # Re-read categories from the shared store or origin
  shelfmark fetch categories --refresh-local --format table`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"books", "categories", "stores", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds, err := parseKinds(args)
			if err != nil {
				return err
			}
			return c.runFetch(cmd, kinds, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "export format: "+strings.Join(formats, ", "))
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output file (single table) or directory (all)")
	cmd.Flags().BoolVar(&opts.refreshLocal, "refresh-local", false, "ignore existing local snapshots")
	cmd.Flags().BoolVar(&opts.noDescriptions, "no-descriptions", false, "skip product description enrichment when crawling books")
	cmd.Flags().BoolVar(&opts.stats, "stats", false, "print catalog statistics (loads every table)")
	cmd.Flags().BoolVar(&opts.check, "check", false, "verify slug uniqueness, category parents and prices; fail on problems")

	return cmd
}

// parseKinds resolves the optional positional argument. No argument or "all"
// selects every kind.
func parseKinds(args []string) ([]dataset.Kind, error) {
	if len(args) == 0 || args[0] == "all" {
		return dataset.Kinds(), nil
	}
	kind, err := dataset.ParseKind(args[0])
	if err != nil {
		return nil, err
	}
	return []dataset.Kind{kind}, nil
}

func (c *CLI) runFetch(cmd *cobra.Command, kinds []dataset.Kind, opts fetchOptions) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	if opts.format != "" && !slices.Contains(formats, opts.format) {
		return fmt.Errorf("unknown format %q (want one of %s)", opts.format, strings.Join(formats, ", "))
	}
	if opts.format == "" && opts.out != "" {
		opts.format = strings.TrimPrefix(filepath.Ext(opts.out), ".")
		if !slices.Contains(formats, opts.format) {
			return fmt.Errorf("cannot infer format from %q; pass --format", opts.out)
		}
	}
	toStdout := opts.format != "" && (opts.out == "" || opts.out == "-")
	if toStdout && len(kinds) > 1 {
		return fmt.Errorf("exporting all tables needs --out DIR")
	}
	if toStdout && opts.stats {
		return fmt.Errorf("--stats cannot be combined with export to stdout")
	}

	cfg := c.cfg
	if opts.noDescriptions {
		cfg.Fetch.Descriptions = false
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

	if opts.refreshLocal {
		for _, kind := range kinds {
			if err := a.manager.Store().Invalidate(kind); err != nil {
				return err
			}
		}
	}

	load := kinds
	if opts.stats {
		load = dataset.Kinds()
	}
	tables, err := c.loadTables(ctx, a.manager, load, toStdout)
	if err != nil {
		return err
	}

	if opts.format != "" {
		for _, kind := range kinds {
			path := opts.out
			if len(kinds) > 1 {
				path = filepath.Join(opts.out, exportName(kind, opts.format))
			}
			if err := exportKind(cmd.OutOrStdout(), path, opts.format, kind, tables); err != nil {
				return fmt.Errorf("export %s: %w", kind, err)
			}
			if path != "" && path != "-" {
				printFile(path)
			}
		}
	}

	if opts.stats {
		printSummary(dataset.Summarize(tables.books, tables.categories, tables.stores))
	}
	if opts.check {
		return reportProblems(dataset.Validate(tables.books, tables.categories), toStdout, logger)
	}
	return nil
}

// maxProblems caps how many problems are listed before summarizing.
const maxProblems = 20

func reportProblems(problems []dataset.Problem, quiet bool, logger *log.Logger) error {
	if len(problems) == 0 {
		if !quiet {
			printSuccess("No problems found")
		}
		return nil
	}
	for i, p := range problems {
		if i == maxProblems {
			logger.Warnf("... and %d more", len(problems)-maxProblems)
			break
		}
		if quiet {
			logger.Warn("problem", "kind", p.Kind, "row", p.Row, "slug", p.Slug, "msg", p.Message)
			continue
		}
		printError("%s", p)
	}
	return fmt.Errorf("%d problems found", len(problems))
}

// loadTables loads kinds in order, reporting each with the tier that
// served it. With quiet set the report goes to the log, keeping stdout for
// exported data.
func (c *CLI) loadTables(ctx context.Context, m *dataset.Manager, kinds []dataset.Kind, quiet bool) (*loadedTables, error) {
	tables := &loadedTables{}
	for _, kind := range kinds {
		prog := newProgress(c.Logger)
		spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Loading %s...", kind))
		spinner.Start()

		var (
			rows int
			err  error
		)
		switch kind {
		case dataset.KindBooks:
			tables.books, err = m.Books(ctx)
			rows = len(tables.books)
		case dataset.KindCategories:
			tables.categories, err = m.Categories(ctx)
			rows = len(tables.categories)
		case dataset.KindStores:
			tables.stores, err = m.Stores(ctx)
			rows = len(tables.stores)
		}
		if err != nil {
			spinner.Stop()
			return nil, fmt.Errorf("load %s: %w", kind, err)
		}
		spinner.Stop()
		if quiet {
			prog.done(fmt.Sprintf("Loaded %d %s from %s", rows, kind, c.tierFor(kind)))
			continue
		}
		printLoaded(kind, rows, c.tierFor(kind), prog.elapsed())
	}
	return tables, nil
}
