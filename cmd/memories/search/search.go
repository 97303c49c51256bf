// Package searchcmder provides the search command.
package searchcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/memories-sh/memories-go/api"
	clientcmder "github.com/memories-sh/memories-go/cmd/memories/client"
	"github.com/memories-sh/memories-go/pkg/cliui"
	"github.com/memories-sh/memories-go/pkg/memories"
)

type searchCommander struct {
	clientcmder.Options

	query      string
	limit      int
	memoryType string
	layer      string
}

const searchLongDesc string = `Search memories through a running memories proxy.

Returns up to --limit memories (1-50, default 8) matching the query text,
optionally filtered by memory type and layer (rule, working, long_term).

Examples:
  memories search "package manager"
  memories search "deploy" --type decision --limit 20
  memories search "testing" --layer long_term --output yaml`

const searchShortDesc string = "Search memories"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:     "search <query>",
		Short:   searchShortDesc,
		Long:    searchLongDesc,
		Args:    cobra.ExactArgs(1),
		PreRunE: cmder.PreRun,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = args[0]
			return cmder.run(cmd)
		},
	}

	cmder.AddFlags(cmd)
	cmder.AddScopeFlags(cmd)
	cmd.Flags().IntVarP(&cmder.limit, "limit", "k", memories.DefaultLimit, "Maximum number of memories to return")
	cmd.Flags().StringVar(&cmder.memoryType, "type", "", "Only return memories of this type")
	cmd.Flags().StringVar(&cmder.layer, "layer", "", "Only return memories in this layer")

	return cmd
}

func (c *searchCommander) run(cmd *cobra.Command) error {
	client, err := c.Client()
	if err != nil {
		return err
	}

	in := memories.NewSearchInput(c.query)
	in.Limit = c.limit
	in.Type = memories.MemoryType(c.memoryType)
	in.Layer = memories.Layer(c.layer)
	in.Scope = c.Scope()

	res, err := client.SearchMemories(cmd.Context(), in)
	if err != nil {
		return err
	}

	if !c.Pretty() {
		return cliui.Encode(cmd.OutOrStdout(), c.Output, res)
	}

	printResults(cmd.OutOrStdout(), c.query, res)
	return nil
}

func printResults(w io.Writer, query string, res *api.SearchResponse) {
	if len(res.Memories) == 0 {
		fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No memories found."))
		return
	}

	fmt.Fprintf(w, "\n  %s %s\n\n",
		cliui.HeaderStyle.Render(fmt.Sprintf("%d memories", len(res.Memories))),
		cliui.DimStyle.Render(fmt.Sprintf("for %q", query)),
	)

	for i, m := range clientcmder.DecodeMemories(res.Memories) {
		label := m.Type
		if m.Layer != "" {
			label += "/" + m.Layer
		}
		fmt.Fprintf(w, "  %s %s %s\n",
			cliui.DimStyle.Render(fmt.Sprintf("%2d.", i+1)),
			cliui.KeyStyle.Render("["+label+"]"),
			cliui.ValueStyle.Render(cliui.Truncate(m.Content, 100)),
		)
		if len(m.Tags) > 0 {
			fmt.Fprintf(w, "      %s\n", cliui.DimStyle.Render("#"+strings.Join(m.Tags, " #")))
		}
	}
	fmt.Fprintln(w)
}
