package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/shelfmark/pkg/dataset"
	"github.com/matzehuels/shelfmark/pkg/snapshot"
)

// cacheCommand creates the local snapshot management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage local snapshots",
		Long: `Manage the local snapshot directory (the first cache tier).

Removing a local snapshot makes the next load read the shared store again.`,
	}

	cmd.AddCommand(c.cachePathCommand())
	cmd.AddCommand(c.cacheListCommand())
	cmd.AddCommand(c.cacheClearCommand())

	return cmd
}

func (c *CLI) snapshotDir() *snapshot.Dir {
	return snapshot.NewDir(c.cfg.CacheDir)
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the local snapshot directory",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), c.snapshotDir().Path())
		},
	}
}

// cacheListCommand creates the "cache ls" subcommand.
func (c *CLI) cacheListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List local snapshots",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := c.snapshotDir()
			infos, err := dir.List()
			if err != nil {
				return fmt.Errorf("list %s: %w", dir.Path(), err)
			}
			if len(infos) == 0 {
				printInfo("No local snapshots")
				printDetail("Directory: %s", dir.Path())
				printNextStep("Populate it", "shelfmark fetch")
				return nil
			}
			for _, info := range infos {
				printKeyValue(info.Filename, fmt.Sprintf("%s  %s", humanBytes(info.Size), StyleDim.Render(info.ModTime.Format("2006-01-02 15:04"))))
			}
			printDetail("Directory: %s", dir.Path())
			return nil
		},
	}
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "clear [books|categories|stores]",
		Short:     "Remove local snapshots (all, or one table)",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"books", "categories", "stores"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := c.snapshotDir()
			if len(args) == 1 {
				kind, err := dataset.ParseKind(args[0])
				if err != nil {
					return err
				}
				if err := dir.Remove(kind.Filename()); err != nil {
					return err
				}
				printSuccess("Removed %s", kind.Filename())
				return nil
			}

			n, err := dir.Clear()
			if err != nil {
				return fmt.Errorf("clear %s: %w", dir.Path(), err)
			}
			if n == 0 {
				printInfo("Cache is empty")
				return nil
			}
			printSuccess("Cleared %d snapshots", n)
			printDetail("Directory: %s", dir.Path())
			return nil
		},
	}
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
