// Package contextcmder provides the context command, which fetches the rules
// and memories relevant to a query and renders them as markdown.
package contextcmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/memories-sh/memories-go/api"
	clientcmder "github.com/memories-sh/memories-go/cmd/memories/client"
	"github.com/memories-sh/memories-go/pkg/cliui"
	"github.com/memories-sh/memories-go/pkg/memories"
)

type contextCommander struct {
	clientcmder.Options

	query      string
	mode       string
	strategy   string
	limit      int
	graphDepth int
	graphLimit int
}

const contextLongDesc string = `Get context for a query through a running memories proxy.

Returns the rules and memories relevant to the query. Modes: all, working,
long_term, rules_only. Strategies: baseline, hybrid_graph.

Examples:
  memories context "setting up the dev environment"
  memories context "release process" --mode rules_only
  memories context "auth flow" --strategy hybrid_graph --graph-depth 2 --output json`

const contextShortDesc string = "Get context for a query"

func NewContextCmd() *cobra.Command {
	cmder := &contextCommander{}

	cmd := &cobra.Command{
		Use:     "context <query>",
		Short:   contextShortDesc,
		Long:    contextLongDesc,
		Args:    cobra.ExactArgs(1),
		PreRunE: cmder.PreRun,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = args[0]
			return cmder.run(cmd)
		},
	}

	cmder.AddFlags(cmd)
	cmder.AddScopeFlags(cmd)
	cmd.Flags().StringVar(&cmder.mode, "mode", string(memories.DefaultMode), "Context mode")
	cmd.Flags().StringVar(&cmder.strategy, "strategy", string(memories.DefaultStrategy), "Retrieval strategy")
	cmd.Flags().IntVarP(&cmder.limit, "limit", "k", memories.DefaultLimit, "Maximum number of memories to return")
	cmd.Flags().IntVar(&cmder.graphDepth, "graph-depth", memories.DefaultGraphDepth, "Graph expansion depth (0-2)")
	cmd.Flags().IntVar(&cmder.graphLimit, "graph-limit", memories.DefaultGraphLimit, "Maximum graph-expanded memories")

	return cmd
}

func (c *contextCommander) run(cmd *cobra.Command) error {
	client, err := c.Client()
	if err != nil {
		return err
	}

	in := memories.NewContextInput(c.query)
	in.Mode = memories.Mode(c.mode)
	in.Strategy = memories.Strategy(c.strategy)
	in.Limit = c.limit
	in.GraphDepth = c.graphDepth
	in.GraphLimit = c.graphLimit
	in.Scope = c.Scope()

	res, err := client.GetContext(cmd.Context(), in)
	if err != nil {
		return err
	}

	if !c.Pretty() {
		return cliui.Encode(cmd.OutOrStdout(), c.Output, res)
	}

	rendered, err := cliui.RenderMarkdown(Markdown(c.query, res))
	if err != nil {
		return fmt.Errorf("rendering context: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), rendered)
	return nil
}

// Markdown formats a context response as a markdown document with a section
// for rules and one for memories.
func Markdown(query string, res *api.ContextResponse) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Context for %q\n\n", query)

	b.WriteString("## Rules\n\n")
	writeMemories(&b, clientcmder.DecodeMemories(res.Rules), "_No rules._")

	b.WriteString("## Memories\n\n")
	writeMemories(&b, clientcmder.DecodeMemories(res.Memories), "_No memories._")

	return b.String()
}

func writeMemories(b *strings.Builder, ms []clientcmder.Memory, empty string) {
	if len(ms) == 0 {
		b.WriteString(empty + "\n\n")
		return
	}

	for _, m := range ms {
		b.WriteString("- ")
		if m.Type != "" {
			fmt.Fprintf(b, "**%s** ", m.Type)
		}
		b.WriteString(strings.ReplaceAll(m.Content, "\n", " "))
		if len(m.Tags) > 0 {
			fmt.Fprintf(b, " `%s`", strings.Join(m.Tags, "` `"))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}
