// Package authcmder provides the auth command for storing the upstream API key.
package authcmder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/memories-sh/memories-go/pkg/cliui"
	"github.com/memories-sh/memories-go/pkg/config"
)

const authLongDesc string = `Store the memories API key.

The key is saved as api_key in config.toml in the .memories/ directory and
is used by "memories serve" when MEMORIES_API_KEY is not set. The file is
written with 0600 permissions.

Examples:
  memories auth                   Prompt for the API key
  echo $KEY | memories auth       Pipe the API key from stdin
  memories auth --remove          Remove the stored API key`

const authShortDesc string = "Store the memories API key"

type authCommander struct {
	remove    bool
	configDir string
	in        *os.File
	out       io.Writer
}

func NewAuthCmd() *cobra.Command {
	cmder := &authCommander{}

	cmd := &cobra.Command{
		Use:   "auth",
		Short: authShortDesc,
		Long:  authLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.out = cmd.OutOrStdout()
			if cmder.in == nil {
				cmder.in = os.Stdin
			}

			if cmder.remove {
				return cmder.runRemove()
			}
			return cmder.runAuth()
		},
	}

	cmd.Flags().BoolVar(&cmder.remove, "remove", false, "Remove the stored API key")

	return cmd
}

func (c *authCommander) runAuth() error {
	apiKey, err := c.readAPIKey()
	if err != nil {
		return err
	}

	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return errors.New("API key cannot be empty")
	}

	cfger, err := config.NewConfiger(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfger.SetConfigValue(config.KeyAPIKey, apiKey); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n  %s Stored API key %s\n\n",
		cliui.SuccessMark,
		cliui.DimStyle.Render("(used when "+config.EnvName(config.KeyAPIKey)+" is unset)"),
	)
	return nil
}

func (c *authCommander) runRemove() error {
	cfger, err := config.NewConfiger(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfger.SetConfigValue(config.KeyAPIKey, ""); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n  %s Removed stored API key.\n", cliui.SuccessMark)

	env := config.EnvName(config.KeyAPIKey)
	if os.Getenv(env) != "" {
		fmt.Fprintf(c.out, "  %s %s\n",
			cliui.WarnMark,
			cliui.WarnStyle.Render(env+" is still set and will be used by memories serve."),
		)
	}
	fmt.Fprintln(c.out)
	return nil
}

// readAPIKey reads an API key from stdin. If stdin is a pipe, it reads the
// first line. Otherwise, it prompts interactively with hidden input.
func (c *authCommander) readAPIKey() (string, error) {
	fi, err := c.in.Stat()
	if err != nil {
		return "", fmt.Errorf("checking stdin: %w", err)
	}

	// Piped input
	if (fi.Mode() & os.ModeCharDevice) == 0 {
		scanner := bufio.NewScanner(c.in)
		if scanner.Scan() {
			return scanner.Text(), nil
		}
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return "", errors.New("no input received on stdin")
	}

	// Interactive terminal
	fmt.Fprintf(c.out, "Enter memories API key (%s): ", config.EnvName(config.KeyAPIKey))

	keyBytes, err := term.ReadPassword(int(c.in.Fd()))
	fmt.Fprintln(c.out) // newline after hidden input
	if err != nil {
		return "", fmt.Errorf("reading API key: %w", err)
	}

	return string(keyBytes), nil
}
