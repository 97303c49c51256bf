// Package memoriescmder is the root memories command.
package memoriescmder

import (
	"github.com/spf13/cobra"

	addcmder "github.com/memories-sh/memories-go/cmd/memories/add"
	authcmder "github.com/memories-sh/memories-go/cmd/memories/auth"
	configcmder "github.com/memories-sh/memories-go/cmd/memories/config"
	contextcmder "github.com/memories-sh/memories-go/cmd/memories/context"
	healthcmder "github.com/memories-sh/memories-go/cmd/memories/health"
	searchcmder "github.com/memories-sh/memories-go/cmd/memories/search"
	servecmder "github.com/memories-sh/memories-go/cmd/memories/serve"
	versioncmder "github.com/memories-sh/memories-go/cmd/memories/version"
)

const memoriesLongDesc string = `Memories is a small proxy in front of the memories API.

Run the proxy:
  memories serve               Serve /health, /memories/add, /memories/search,
                               /context and the /mcp endpoint

Talk to a running proxy:
  memories add "<content>"     Store a memory
  memories search "<query>"    Search memories
  memories context "<query>"   Get rules and memories relevant to a query
  memories health              Check the proxy

Configure:
  memories auth                Store the upstream API key
  memories config              Manage config.toml`

const memoriesShortDesc string = "Memories - memory proxy and CLI"

func NewMemoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "memories",
		Short:        memoriesShortDesc,
		Long:         memoriesLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory holding config.toml (default: ./.memories or ~/.memories)")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(healthcmder.NewHealthCmd())
	cmd.AddCommand(addcmder.NewAddCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(contextcmder.NewContextCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
