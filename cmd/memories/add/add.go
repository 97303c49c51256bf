// Package addcmder provides the add command for storing a memory through a
// running proxy.
package addcmder

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/memories-sh/memories-go/api"
	clientcmder "github.com/memories-sh/memories-go/cmd/memories/client"
	"github.com/memories-sh/memories-go/pkg/cliui"
	"github.com/memories-sh/memories-go/pkg/memories"
)

type addCommander struct {
	clientcmder.Options

	content    string
	memoryType string
	tags       []string
}

const addLongDesc string = `Store a memory through a running memories proxy.

The memory type is one of: rule, decision, fact, note, skill (default note).
Scope flags override the proxy's MEMORIES_TENANT_ID, MEMORIES_USER_ID and
MEMORIES_PROJECT_ID defaults for this memory only.

Examples:
  memories add "Use pnpm, never npm" --type rule --tag js --tag tooling
  memories add "Deploys happen on Tuesdays" --project-id web
  memories add "Prefer table driven tests" --output json`

const addShortDesc string = "Store a memory"

func NewAddCmd() *cobra.Command {
	cmder := &addCommander{}

	cmd := &cobra.Command{
		Use:     "add <content>",
		Short:   addShortDesc,
		Long:    addLongDesc,
		Args:    cobra.ExactArgs(1),
		PreRunE: cmder.PreRun,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.content = args[0]
			return cmder.run(cmd)
		},
	}

	cmder.AddFlags(cmd)
	cmder.AddScopeFlags(cmd)
	cmd.Flags().StringVar(&cmder.memoryType, "type", "", "Memory type (rule, decision, fact, note, skill)")
	cmd.Flags().StringSliceVar(&cmder.tags, "tag", nil, "Tag to attach (repeatable)")

	_ = cmd.RegisterFlagCompletionFunc("type", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		types := make([]string, 0, len(memories.MemoryTypes))
		for _, t := range memories.MemoryTypes {
			types = append(types, string(t))
		}
		return types, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func (c *addCommander) run(cmd *cobra.Command) error {
	client, err := c.Client()
	if err != nil {
		return err
	}

	scope := c.Scope()
	req := api.AddMemoryRequest{
		Content:   c.content,
		Type:      memories.MemoryType(c.memoryType),
		Tags:      c.tags,
		TenantID:  scope.TenantID,
		UserID:    scope.UserID,
		ProjectID: scope.ProjectID,
	}

	out := cmd.OutOrStdout()
	if !c.Pretty() {
		res, err := client.AddMemory(cmd.Context(), req)
		if err != nil {
			return err
		}
		return cliui.Encode(out, c.Output, res)
	}

	var res *api.AddMemoryResponse
	err = cliui.Step(cmd.ErrOrStderr(), "Storing memory", func() error {
		var err error
		res, err = client.AddMemory(cmd.Context(), req)
		return err
	})
	if err != nil {
		return err
	}

	printResult(out, res.Result)
	return nil
}

// printResult prints the top-level fields of the upstream result, one per
// line and sorted by key. Non-object results are printed as JSON.
func printResult(w io.Writer, result json.RawMessage) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(result, &fields); err != nil || len(fields) == 0 {
		fmt.Fprintf(w, "\n  %s\n\n", cliui.ValueStyle.Render(string(result)))
		return
	}

	keys := make([]string, 0, len(fields))
	width := 0
	for k := range fields {
		keys = append(keys, k)
		width = max(width, len(k))
	}
	sort.Strings(keys)

	fmt.Fprintln(w)
	for _, k := range keys {
		value := string(fields[k])
		var s string
		if json.Unmarshal(fields[k], &s) == nil {
			value = s
		}
		fmt.Fprintf(w, "  %s  %s\n",
			cliui.KeyStyle.Render(k+":"+strings.Repeat(" ", width-len(k))),
			cliui.ValueStyle.Render(cliui.Truncate(value, 100)),
		)
	}
	fmt.Fprintln(w)
}
