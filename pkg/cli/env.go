package cli

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/devicelab-dev/appium-harness/pkg/capability"
	"github.com/devicelab-dev/appium-harness/pkg/config"
	"github.com/devicelab-dev/appium-harness/pkg/locator"
	"github.com/devicelab-dev/appium-harness/pkg/logger"
	"github.com/devicelab-dev/appium-harness/pkg/page"
	"github.com/devicelab-dev/appium-harness/pkg/report"
	"github.com/devicelab-dev/appium-harness/pkg/session"
	"github.com/urfave/cli/v2"
)

// loadSettings reads --config, or harness.yaml from the working directory.
// Command-line flags win over the file.
func loadSettings(c *cli.Context) (*config.Settings, error) {
	var settings *config.Settings
	var err error
	if path := c.String("config"); path != "" {
		settings, err = config.Load(path)
	} else {
		settings, err = config.LoadFromDir(".")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	if c.IsSet("appium-url") {
		settings.ServerURL = c.String("appium-url")
	}
	if c.Bool("allow-missing-app") {
		settings.AllowMissingApp = true
	}
	return settings, nil
}

// buildProfile validates the platform/environment flags and builds the
// capability profile. The --appium-url flag is fed in as APPIUM_URL; the
// settings file URL only when none of APPIUM_URL, APPIUM_HOST and
// APPIUM_PORT is set.
func buildProfile(c *cli.Context, settings *config.Settings) (capability.Profile, error) {
	platform, ok := capability.ParsePlatform(c.String("platform"))
	if !ok {
		return capability.Profile{}, fmt.Errorf("unsupported platform %q (use android or ios)", c.String("platform"))
	}
	environment, ok := capability.ParseEnvironment(c.String("environment"))
	if !ok {
		return capability.Profile{}, fmt.Errorf("unknown environment %q (use local, ci, staging or production)", c.String("environment"))
	}

	b := capability.NewBuilder()
	if c.IsSet("appium-url") || !anySet(b.Lookup, capability.EnvAppiumURL, capability.EnvAppiumHost, capability.EnvAppiumPort) {
		b.Lookup = overlay(b.Lookup, map[string]string{
			capability.EnvAppiumURL: settings.ServerURL,
		})
	}
	if settings.AllowMissingApp {
		b.Lookup = overlay(b.Lookup, map[string]string{capability.EnvAllowMissingApp: "true"})
	}
	return b.Build(string(platform), string(environment)), nil
}

// anySet reports whether lookup has a non-blank value for one of keys.
func anySet(lookup func(string) (string, bool), keys ...string) bool {
	for _, k := range keys {
		if v, ok := lookup(k); ok && strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// overlay returns a lookup that answers non-empty values from vars first.
func overlay(base func(string) (string, bool), vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if v := vars[key]; v != "" {
			return v, true
		}
		return base(key)
	}
}

// loadCatalog merges the settings catalog (if any) over the built-in elements.
func loadCatalog(settings *config.Settings) (*locator.Catalog, error) {
	builtins := page.Builtins()
	if settings.Catalog == "" {
		return builtins, nil
	}
	cat, err := locator.LoadCatalog(settings.Catalog)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded %d catalog elements from %s", cat.Len(), settings.Catalog)
	return cat.Merge(builtins), nil
}

// newManager wires the session manager used by session-backed commands.
func newManager(c *cli.Context, settings *config.Settings, catalog *locator.Catalog) *session.Manager {
	m := session.NewManager(settings)
	m.Catalog = catalog
	m.Capture = report.NewCapturer(settings.ArtifactsDir)
	if !c.Bool("skip-startup") {
		m.Settle = page.Startup{}
	}
	return m
}

// resolveOutputDir picks the report directory: <base>/<timestamp>, or base
// itself when flatten is set.
func resolveOutputDir(output string, flatten bool) (string, error) {
	if flatten && output == "" {
		return "", fmt.Errorf("--flatten requires --report to be specified")
	}

	baseDir := output
	if baseDir == "" {
		baseDir = config.GetReportsDir()
	}

	if flatten {
		return filepath.Clean(baseDir), nil
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(baseDir, timestamp), nil
}

func writeOut(c *cli.Context, format string, args ...interface{}) {
	fmt.Fprintf(c.App.Writer, format, args...)
}
