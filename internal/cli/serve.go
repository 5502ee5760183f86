package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/bgf/pkg/server"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		flags decodeFlags
		addr  string
	)

	cmd := &cobra.Command{
		Use:   "serve [source.bgf]",
		Short: "Serve a collection over a read-only HTTP API",
		Long: `Serve a collection over a read-only HTTP API.

Routes:
  GET /healthz          liveness
  GET /graphs           {"count": n}
  GET /graphs/{index}   one graph as JSON

The server stops gracefully on interrupt.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := c.newDataset(cmd, args[0], &flags)
			if err != nil {
				return err
			}
			coll, err := ds.Materialize(cmd.Context())
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("addr") {
				cfg, err := flags.resolve(cmd)
				if err != nil {
					return err
				}
				addr = cfg.Server.Addr
			}
			printInfo("Serving %d graphs on %s", coll.Len(), StyleLink.Render(addr))
			return server.New(coll, c.Logger).ListenAndServe(cmd.Context(), addr)
		},
	}

	flags.register(cmd)
	flags.registerCache(cmd)
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: [server] addr, else :8080)")
	return cmd
}
