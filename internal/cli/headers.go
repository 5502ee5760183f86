package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/bgf/pkg/bgf"
	"github.com/matzehuels/bgf/pkg/errors"
)

// headersCommand creates the headers command.
func (c *CLI) headersCommand() *cobra.Command {
	var flags decodeFlags

	cmd := &cobra.Command{
		Use:   "headers [source.bgf]",
		Short: "List the graph headers of a BGF container",
		Long: `List the graph headers of a BGF container.

Only the header pass is read; no payload is decoded and no artifact is used.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.resolve(cmd)
			if err != nil {
				return err
			}
			opts, err := cfg.DecodeOptions()
			if err != nil {
				return err
			}
			prog := newProgress(c.Logger)
			cat, err := readCatalog(args[0], opts)
			if err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Read %d headers, payload at byte %d", cat.Len(), cat.PayloadOffset))
			printCatalog(cat)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

// readCatalog runs the header pass over the file at path.
func readCatalog(path string, opts bgf.Options) (*bgf.Catalog, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeSourceNotFound, err, "BGF source %s does not exist", path)
	}
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}
	return bgf.ReadHeaders(f, fi.Size(), opts)
}

func printCatalog(cat *bgf.Catalog) {
	printKeyValue("Version", fmt.Sprintf("%d", cat.FormatVersion))
	printKeyValue("Graphs", StyleNumber.Render(fmt.Sprintf("%d", cat.Len())))
	printNewline()
	for i := range cat.Headers {
		h := &cat.Headers[i]
		fmt.Printf("%s %s\n", StyleDim.Render(fmt.Sprintf("%4d", i)), StyleValue.Render(h.Name))
		printDetail("%d nodes × %d features %s · %d edges × %d features %s",
			h.NodeCount, h.NodeFeatureCount, featureList(h.NodeFeatureNames),
			h.EdgeCount, h.EdgeFeatureCount, featureList(h.EdgeFeatureNames))
	}
}

func featureList(names []string) string {
	if len(names) == 0 {
		return "[]"
	}
	return "[" + strings.Join(names, ", ") + "]"
}
