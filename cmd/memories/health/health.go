// Package healthcmder provides the health command.
package healthcmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/memories-sh/memories-go/api"
	clientcmder "github.com/memories-sh/memories-go/cmd/memories/client"
	"github.com/memories-sh/memories-go/pkg/cliui"
)

type healthCommander struct {
	clientcmder.Options
}

const healthLongDesc string = `Check that a memories proxy is running.

Calls GET /health on the proxy. The upstream memories API is not contacted.

Examples:
  memories health
  memories health --target http://localhost:9000 --output json`

const healthShortDesc string = "Check a running memories proxy"

func NewHealthCmd() *cobra.Command {
	cmder := &healthCommander{}

	cmd := &cobra.Command{
		Use:     "health",
		Short:   healthShortDesc,
		Long:    healthLongDesc,
		Args:    cobra.NoArgs,
		PreRunE: cmder.PreRun,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmder.AddFlags(cmd)

	return cmd
}

func (c *healthCommander) run(cmd *cobra.Command) error {
	client, err := c.Client()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !c.Pretty() {
		res, err := client.Health(cmd.Context())
		if err != nil {
			return err
		}
		return cliui.Encode(out, c.Output, res)
	}

	var res *api.HealthResponse
	err = cliui.Step(cmd.ErrOrStderr(), "Checking "+client.Target(), func() error {
		var err error
		res, err = client.Health(cmd.Context())
		return err
	})
	if err != nil {
		return err
	}

	printHealth(out, res)
	return nil
}

func printHealth(w io.Writer, res *api.HealthResponse) {
	fmt.Fprintf(w, "\n  %s %s\n", cliui.KeyStyle.Render("service: "), cliui.NameStyle.Render(res.Service))
	fmt.Fprintf(w, "  %s %s\n\n", cliui.KeyStyle.Render("upstream:"), cliui.ValueStyle.Render(res.BaseURL))
}
