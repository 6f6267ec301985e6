package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/mobile-e2e/pkg/report"
)

var reportCommand = &cli.Command{
	Name:      "report",
	Usage:     "Print the summary of a finished run",
	ArgsUsage: "<report-dir>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return fmt.Errorf("exactly one report directory is required")
		}
		idx, err := report.ReadIndex(c.Args().First())
		if err != nil {
			return err
		}
		printIndex(c.App.Writer, idx)
		return nil
	},
}
