package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/bgf/pkg/cache"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage processed artifacts",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	var (
		flags decodeFlags
		all   bool
	)

	cmd := &cobra.Command{
		Use:   "clear [source.bgf]",
		Short: "Remove the processed artifact of a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := c.newDataset(cmd, args[0], &flags)
			if err != nil {
				return err
			}
			fc, ok := ds.Cache.(*cache.FileCache)
			if !ok {
				printInfo("Caching is disabled")
				return nil
			}

			if all {
				if _, err := os.Stat(fc.Dir()); os.IsNotExist(err) {
					printInfo("Cache is empty")
					return nil
				}
				if err := fc.Clear(); err != nil {
					return fmt.Errorf("clear %s: %w", fc.Dir(), err)
				}
				printSuccess("Cleared all artifacts")
				printDetail("Directory: %s", fc.Dir())
				return nil
			}

			artifact := ds.ArtifactPath()
			if _, err := os.Stat(artifact); os.IsNotExist(err) {
				printInfo("No artifact for these settings")
				printDetail("Path: %s", artifact)
				return nil
			}
			if err := ds.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("remove artifact: %w", err)
			}
			printSuccess("Removed artifact")
			printFile(artifact)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&all, "all", false, "remove every artifact in the cache directory")
	return cmd
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	var flags decodeFlags

	cmd := &cobra.Command{
		Use:   "path [source.bgf]",
		Short: "Print the artifact path of a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := c.newDataset(cmd, args[0], &flags)
			if err != nil {
				return err
			}
			p := ds.ArtifactPath()
			if p == "" {
				return fmt.Errorf("caching is disabled")
			}
			fmt.Fprintln(cmd.OutOrStdout(), p)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
