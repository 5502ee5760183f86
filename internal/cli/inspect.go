package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/bgf/pkg/bgf"
	"github.com/matzehuels/bgf/pkg/server"
)

// inspectCommand creates the inspect command.
func (c *CLI) inspectCommand() *cobra.Command {
	var (
		flags decodeFlags
		index int
		limit int
	)

	cmd := &cobra.Command{
		Use:   "inspect [source.bgf]",
		Short: "Summarize the graphs of a collection",
		Long: `Summarize the graphs of a collection.

The collection is materialized first, so the artifact is used when present.
With --index a single graph is printed in full.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := c.newDataset(cmd, args[0], &flags)
			if err != nil {
				return err
			}
			coll, info, err := ds.MaterializeWithInfo(cmd.Context())
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("index") {
				rec, err := coll.Get(index)
				if err != nil {
					return err
				}
				printRecord(index, rec)
				return nil
			}

			n := coll.Len()
			if limit > 0 && limit < n {
				n = limit
			}
			for i := 0; i < n; i++ {
				rec, err := coll.Get(i)
				if err != nil {
					return err
				}
				printSummary(i, rec)
			}
			printNewline()
			printStats(coll.Len(), info.CacheHit)
			return nil
		},
	}

	flags.register(cmd)
	flags.registerCache(cmd)
	cmd.Flags().IntVarP(&index, "index", "i", 0, "print only the graph at this index")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "print at most this many graphs (0: all)")
	return cmd
}

func printSummary(i int, r *bgf.Record) {
	fmt.Printf("%s %s %s\n",
		StyleDim.Render(fmt.Sprintf("%4d", i)),
		StyleValue.Render(r.Name()),
		StyleDim.Render(fmt.Sprintf("%s → %s step %s · x%s · edge_index%s · edge_attr%s",
			r.EditPathStart, r.EditPathEnd, r.EditPathStep,
			shape(r.NodeFeatures), fmt.Sprint(r.EdgeIndex.Shape()), shape(r.EdgeFeatures))))
}

func printRecord(i int, r *bgf.Record) {
	g := server.NewGraph(i, r)
	fmt.Println(StyleTitle.Render(g.Name))
	printKeyValue("Index", fmt.Sprintf("%d", g.Index))
	printKeyValue("Type", fmt.Sprintf("%d", g.GraphType))
	printKeyValue("Version", fmt.Sprintf("%d", g.FormatVersion))
	printKeyValue("Edit path", fmt.Sprintf("%s → %s step %s", g.EditPath.Start, g.EditPath.End, g.EditPath.Step))
	printKeyValue("Nodes", fmt.Sprintf("%d %s", g.NodeCount, featureList(g.NodeFeatureNames)))
	printKeyValue("Edges", fmt.Sprintf("%d %s", g.EdgeCount, featureList(g.EdgeFeatureNames)))

	if g.NodeFeatures != nil {
		printNewline()
		fmt.Println(StyleHighlight.Render("node features"))
		for j, row := range g.NodeFeatures.Rows {
			printDetail("%4d %v", j, row)
		}
	}
	if g.EdgeCount > 0 {
		printNewline()
		fmt.Println(StyleHighlight.Render("edges"))
		for j := range g.EdgeIndex[0] {
			line := fmt.Sprintf("%4d %d → %d", j, g.EdgeIndex[0][j], g.EdgeIndex[1][j])
			if g.EdgeFeatures != nil {
				line += fmt.Sprintf(" %v", g.EdgeFeatures.Rows[j])
			}
			printDetail("%s", line)
		}
	}
}

// shape formats a matrix shape, "[]" when absent.
func shape(m *bgf.Matrix) string {
	if m == nil {
		return "[]"
	}
	return fmt.Sprint(m.Shape())
}
