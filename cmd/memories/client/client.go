// Package clientcmder holds the flags and helpers shared by the commands that
// call a running memories proxy (health, add, search, context).
package clientcmder

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memories-sh/memories-go/pkg/apiclient"
	"github.com/memories-sh/memories-go/pkg/cliui"
	"github.com/memories-sh/memories-go/pkg/config"
	"github.com/memories-sh/memories-go/pkg/memories"
)

// Options are the flags every proxy client command accepts.
type Options struct {
	Target string
	Output string

	tenantID  string
	userID    string
	projectID string
}

// AddFlags registers --target and --output on cmd.
func (o *Options) AddFlags(cmd *cobra.Command) {
	config.AddStringFlag(cmd, config.Flags, config.FlagTarget, &o.Target)
	cmd.Flags().StringVarP(&o.Output, "output", "o", cliui.FormatPretty, "Output format (pretty, json, yaml)")
}

// AddScopeFlags registers the per-request scope overrides on cmd.
func (o *Options) AddScopeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.tenantID, "tenant-id", "", "Tenant scope (default: MEMORIES_TENANT_ID)")
	cmd.Flags().StringVar(&o.userID, "user-id", "", "User scope (default: MEMORIES_USER_ID)")
	cmd.Flags().StringVar(&o.projectID, "project-id", "", "Project scope (default: MEMORIES_PROJECT_ID)")
}

// Scope returns the scope overrides given on the command line. Blank fields
// fall back to the proxy's own defaults.
func (o *Options) Scope() memories.Scope {
	return memories.Scope{
		TenantID:  o.tenantID,
		UserID:    o.userID,
		ProjectID: o.projectID,
	}
}

// PreRun resolves --target through config (flag > env > config.toml >
// default) and validates --output. Use it as the command's PreRunE.
func (o *Options) PreRun(cmd *cobra.Command, _ []string) error {
	if err := cliui.ValidFormat(o.Output); err != nil {
		return err
	}

	v, err := config.InitCommandViper(cmd, config.FlagTarget)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	o.Target = v.GetString(config.KeyClientTarget)

	if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
		cliui.SetPlain(true)
	}

	return nil
}

// Client returns an API client for Target.
func (o *Options) Client() (*apiclient.Client, error) {
	return apiclient.New(o.Target, nil)
}

// Pretty reports whether human readable output was requested.
func (o *Options) Pretty() bool {
	return o.Output == cliui.FormatPretty
}

// Memory is the subset of an upstream memory record the CLI displays.
// Records are otherwise passed through untouched.
type Memory struct {
	ID      string   `json:"id"`
	Content string   `json:"content"`
	Type    string   `json:"type"`
	Layer   string   `json:"layer"`
	Tags    []string `json:"tags"`
}

// DecodeMemories decodes the displayable fields of each record. Records that
// are not objects keep their raw JSON as Content.
func DecodeMemories(raw []json.RawMessage) []Memory {
	out := make([]Memory, 0, len(raw))
	for _, r := range raw {
		var m Memory
		if err := json.Unmarshal(r, &m); err != nil {
			m = Memory{Content: string(r)}
		}
		out = append(out, m)
	}
	return out
}
