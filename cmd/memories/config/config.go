// Package configcmder provides the config command for managing persistent
// memories configuration stored in the .memories/ directory.
package configcmder

import (
	"github.com/spf13/cobra"

	"github.com/memories-sh/memories-go/pkg/cliui"
	"github.com/memories-sh/memories-go/pkg/config"
)

const configLongDesc string = `Manage persistent memories configuration.

Configuration is stored as config.toml in the .memories/ directory and
provides default values for environment variables and command flags.
MEMORIES_* environment variables and CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  api_key, base_url, tenant_id, user_id, project_id,
  server.listen, server.disable_mcp, server.log_file,
  client.target,
  events.provider, events.brokers, events.topic,
  telemetry.enabled

Use subcommands to get, set, or list configuration values:
  memories config set <key> <value>    Set a configuration value
  memories config get <key>            Get a configuration value
  memories config list                 List all configuration values

Examples:
  memories config set base_url https://memories.sh
  memories config set project_id web
  memories config get server.listen
  memories config list`

const configShortDesc string = "Manage persistent memories configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

// displayValue masks secret values, keeping only the last four characters.
func displayValue(key, value string) string {
	if value == "" || !config.IsSecretKey(key) {
		return value
	}
	if len(value) <= 4 {
		return "****"
	}
	return "****" + value[len(value)-4:]
}

func configFileLine(target string) string {
	if target == "" {
		return cliui.DimStyle.Render("No config file found. Using defaults.")
	}
	return cliui.KeyStyle.Render("Config file:") + " " + cliui.DimStyle.Render(target)
}
