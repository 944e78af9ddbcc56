// Package cli provides the command-line interface for appium-harness.
package cli

import (
	"fmt"
	"os"

	"github.com/devicelab-dev/appium-harness/pkg/logger"
	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "platform",
		Aliases: []string{"p"},
		Usage:   "Platform to run on (android, ios)",
		Value:   "android",
		EnvVars: []string{"PLATFORM"},
	},
	&cli.StringFlag{
		Name:    "environment",
		Aliases: []string{"e"},
		Usage:   "Execution tier (local, ci, staging, production)",
		Value:   "local",
		EnvVars: []string{"ENVIRONMENT"},
	},
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Settings file (default: harness.yaml in the working directory)",
		EnvVars: []string{"HARNESS_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "appium-url",
		Usage:   "Appium server URL (overrides the settings file)",
		EnvVars: []string{"APPIUM_URL"},
	},
	&cli.BoolFlag{
		Name:    "allow-missing-app",
		Usage:   "Proceed past missing artifacts and host prerequisites",
		EnvVars: []string{"ALLOW_MISSING_APP"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"HARNESS_VERBOSE"},
	},
	&cli.StringFlag{
		Name:  "log-file",
		Usage: "Write logs to this file instead of stderr",
	},
}

// NewApp builds the CLI application.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "appium-harness",
		Usage:   "Open Appium sessions and resolve Flutter/native elements",
		Version: Version,
		Description: `appium-harness builds capability profiles, opens Appium sessions against
Android emulators and iOS simulators, and resolves page elements through an
ordered chain of Flutter and native locators.

Examples:
  appium-harness caps --platform ios -e ci
  appium-harness validate
  appium-harness session --report reports
  appium-harness find login_submit`,
		Flags:  GlobalFlags,
		Before: setupLogging,
		After: func(*cli.Context) error {
			logger.Close()
			return nil
		},
		Commands: []*cli.Command{
			capsCommand,
			validateCommand,
			portCommand,
			sessionCommand,
			findCommand,
			hierarchyCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogging(c *cli.Context) error {
	if path := c.String("log-file"); path != "" {
		if err := logger.Init(path); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
	} else {
		logger.InitWriter(c.App.ErrWriter)
	}
	logger.SetVerbose(c.Bool("verbose"))
	return nil
}
