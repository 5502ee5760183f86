package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/bgf/pkg/buildinfo"
)

// RootCommand creates the root cobra command with all subcommands registered.
//
// Commands:
//   - process: decode a source into its processed artifact
//   - headers: list graph headers (pass 1 only)
//   - inspect: summarize materialized graphs
//   - serve: read-only HTTP view of a collection
//   - cache: manage processed artifacts
//   - completion: shell completion scripts
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "bgf decodes binary graph containers into cached collections",
		Long:         `bgf reads BGF containers of graph edit path graphs, materializes them into columnar collections and caches the result next to the source, so later runs never touch the container again.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.processCommand())
	root.AddCommand(c.headersCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}
