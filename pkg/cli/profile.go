package cli

import (
	"encoding/json"
	"fmt"

	"github.com/devicelab-dev/appium-harness/pkg/capability"
	"github.com/devicelab-dev/appium-harness/pkg/ports"
	"github.com/urfave/cli/v2"
)

var capsCommand = &cli.Command{
	Name:  "caps",
	Usage: "Print the session capabilities for a platform and environment",
	Description: `Build the capability profile and print the W3C alwaysMatch capabilities
as JSON. With --profile the full profile is printed instead, including which
tier produced every field.

Examples:
  appium-harness caps
  appium-harness caps --platform ios --environment ci
  ANDROID_API_LEVEL=33 appium-harness caps --profile`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "profile",
			Usage: "Print the full profile instead of capabilities",
		},
	},
	Action: runCaps,
}

var validateCommand = &cli.Command{
	Name:  "validate",
	Usage: "Check the capability profile before opening a session",
	Description: `Validate the capability profile: artifact presence, SDK home, host OS,
bundle id, platform version, reset policy, timeouts and port. Fails when any
problem blocks session creation. --allow-missing-app downgrades host
prerequisite problems to warnings.

Examples:
  appium-harness validate
  appium-harness --allow-missing-app validate -p ios`,
	Action: runValidate,
}

var portCommand = &cli.Command{
	Name:  "port",
	Usage: "Allocate an instrumentation-server port",
	Description: `Allocate a port for the platform's instrumentation server and print the
lease. SYSTEM_PORT_OFFSET and TEST_WORKER_ID are honoured.

Examples:
  appium-harness port
  TEST_WORKER_ID=gw3 appium-harness port --json`,
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "base",
			Usage: "Base port (default: 8200 for android, 8100 for ios)",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print the lease as JSON",
		},
	},
	Action: runPort,
}

func runCaps(c *cli.Context) error {
	settings, err := loadSettings(c)
	if err != nil {
		return err
	}
	profile, err := buildProfile(c, settings)
	if err != nil {
		return err
	}

	var v interface{} = profile.Capabilities()
	if c.Bool("profile") {
		v = profile
	}
	return printJSON(c, v)
}

func runValidate(c *cli.Context) error {
	settings, err := loadSettings(c)
	if err != nil {
		return err
	}
	profile, err := buildProfile(c, settings)
	if err != nil {
		return err
	}

	report := capability.Validate(profile, capability.ValidateOptions{Bypass: settings.AllowMissingApp})
	for _, w := range profile.Warnings {
		writeOut(c, "note: %s\n", w)
	}
	for _, p := range report.Warnings() {
		writeOut(c, "warning: %s\n", p)
	}
	blocking := report.Blocking()
	for _, p := range blocking {
		writeOut(c, "error: %s\n", p)
	}
	if len(blocking) > 0 {
		return fmt.Errorf("%d blocking problem(s) for %s/%s", len(blocking), profile.Platform, profile.Environment)
	}

	writeOut(c, "%s/%s profile is valid\n", profile.Platform, profile.Environment)
	return nil
}

func runPort(c *cli.Context) error {
	platform, ok := capability.ParsePlatform(c.String("platform"))
	if !ok {
		return fmt.Errorf("unsupported platform %q (use android or ios)", c.String("platform"))
	}

	base := c.Int("base")
	if base <= 0 {
		base = ports.AndroidBasePort
		if platform == capability.IOS {
			base = ports.IOSBasePort
		}
	}

	lease := ports.NewAllocator().Port(base)
	if c.Bool("json") {
		return printJSON(c, lease)
	}
	writeOut(c, "%s\n", lease)
	return nil
}

func printJSON(c *cli.Context, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	writeOut(c, "%s\n", data)
	return nil
}
