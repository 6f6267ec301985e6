// Package cli provides the command-line interface for mobile-e2e.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/mobile-e2e/pkg/logger"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "workspace",
		Aliases: []string{"w"},
		Usage:   "Suite directory holding config.yaml (default: nearest parent with config.yaml)",
		EnvVars: []string{"MOBILE_E2E_WORKSPACE"},
	},
	&cli.StringFlag{
		Name:    "log-level",
		Usage:   "Log level (debug, info, warn, error)",
		Value:   "info",
		EnvVars: []string{"MOBILE_E2E_LOG_LEVEL", "LOG_LEVEL"},
	},
	&cli.StringFlag{
		Name:    "log-format",
		Usage:   "Console log format (tint, json, text)",
		Value:   logger.FormatTint,
		EnvVars: []string{"MOBILE_E2E_LOG_FORMAT"},
	},
	&cli.StringFlag{
		Name:    "log-file",
		Usage:   "Write JSON logs to this file instead of the console",
		EnvVars: []string{"MOBILE_E2E_LOG_FILE"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Enable debug logging",
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "mobile-e2e",
		Usage:   "Cucumber end-to-end suite for the mobile apps",
		Version: Version,
		Description: `mobile-e2e runs the suite's feature files against a device through
Appium, wrapping every scenario in the tag-driven setup and teardown hooks.

Examples:
  mobile-e2e run
  mobile-e2e run --tags "@agentnet and @smoke" features/login.feature
  mobile-e2e run --dry-run --tags @mediaUpload
  mobile-e2e report reports/2024-01-02_10-00-00`,
		Flags:  GlobalFlags,
		Before: initLogging,
		After: func(c *cli.Context) error {
			logger.Close()
			return nil
		},
		Commands: []*cli.Command{
			runCommand,
			reportCommand,
		},
	}
}

func initLogging(c *cli.Context) error {
	if c.Bool("no-ansi") {
		colorsEnabled = false
	}
	level := c.String("log-level")
	if c.Bool("verbose") {
		level = "debug"
	}
	return logger.Init(logger.Options{
		Level:   level,
		Format:  c.String("log-format"),
		File:    c.String("log-file"),
		Console: c.App.ErrWriter,
	})
}

// Execute runs the CLI.
func Execute() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
