package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/bgf/pkg/dataset"
)

// processCommand creates the process command.
func (c *CLI) processCommand() *cobra.Command {
	var flags decodeFlags

	cmd := &cobra.Command{
		Use:   "process [source.bgf]",
		Short: "Decode a BGF container into its processed artifact",
		Long: `Decode a BGF container into its processed artifact.

The artifact is written to a processed/ directory next to the source. Once it
exists, later runs restore the collection from it without reading the source.
BGF does not record the writer's byte order or size_t width, so pass
--byte-order and --pointer-width when they differ from little-endian/8.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := c.newDataset(cmd, args[0], &flags)
			if err != nil {
				return err
			}
			return c.runProcess(cmd.Context(), ds)
		},
	}

	flags.register(cmd)
	flags.registerCache(cmd)
	return cmd
}

// runProcess materializes ds and reports where the collection came from.
func (c *CLI) runProcess(ctx context.Context, ds *dataset.Dataset) error {
	spinner := newSpinnerWithContext(ctx, "Processing "+ds.Source+"...")
	spinner.Start()

	coll, info, err := ds.MaterializeWithInfo(ctx)
	if err != nil {
		spinner.StopWithError("Processing failed")
		return err
	}
	spinner.Stop()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	printSuccess("Processed %s", ds.Source)
	if info.ArtifactPath != "" {
		printFile(info.ArtifactPath)
	}
	printStats(coll.Len(), info.CacheHit)
	if !info.CacheHit {
		printDetail("decode %s · collate %s", info.DecodeTime, info.CollateTime)
	}
	printNewline()
	printNextStep("Inspect", fmt.Sprintf("%s inspect %s", appName, ds.Source))
	return nil
}
