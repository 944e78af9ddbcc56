// Package config handles the harness settings file and project-root resolution.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings represents the workspace settings file (harness.yaml).
type Settings struct {
	// Automation endpoint; empty means "derive from APPIUM_URL / APPIUM_HOST / APPIUM_PORT"
	ServerURL string `yaml:"serverURL"`

	// Locator catalog overriding built-in page elements (YAML or HCL)
	Catalog string `yaml:"catalog"`

	// Failure artifacts output directory
	ArtifactsDir string `yaml:"artifactsDir"`

	// Proceed past environment-prerequisite validation problems
	AllowMissingApp bool `yaml:"allowMissingApp"`

	Waits Waits `yaml:"waits"`
}

// Waits holds every bounded-wait parameter. Values are Go duration strings in YAML.
type Waits struct {
	Find     Duration `yaml:"find"`     // per-descriptor resolution timeout
	Launch   Duration `yaml:"launch"`   // wait for any UI content after session creation
	Settle   Duration `yaml:"settle"`   // per-landmark timeout in the startup sequence
	Interval Duration `yaml:"interval"` // poll interval for every wait
}

// Duration wraps time.Duration so it can be written as "10s" in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Defaults for every wait, used when the settings file omits them.
const (
	DefaultFindTimeout   = 10 * time.Second
	DefaultLaunchTimeout = 30 * time.Second
	DefaultSettleTimeout = 5 * time.Second
	DefaultPollInterval  = 250 * time.Millisecond
)

// Default returns settings with every wait populated.
func Default() *Settings {
	s := &Settings{}
	s.applyDefaults()
	return s
}

func (s *Settings) applyDefaults() {
	if s.Waits.Find <= 0 {
		s.Waits.Find = Duration(DefaultFindTimeout)
	}
	if s.Waits.Launch <= 0 {
		s.Waits.Launch = Duration(DefaultLaunchTimeout)
	}
	if s.Waits.Settle <= 0 {
		s.Waits.Settle = Duration(DefaultSettleTimeout)
	}
	if s.Waits.Interval <= 0 {
		s.Waits.Interval = Duration(DefaultPollInterval)
	}
	if s.ArtifactsDir == "" {
		s.ArtifactsDir = filepath.Join("reports", "screenshots")
	}
}

// Load loads settings from a file.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided settings file
	if err != nil {
		return nil, err
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	s.applyDefaults()

	// Relative catalog paths are relative to the settings file
	if s.Catalog != "" && !filepath.IsAbs(s.Catalog) {
		s.Catalog = filepath.Join(filepath.Dir(path), s.Catalog)
	}

	return &s, nil
}

// LoadFromDir looks for harness.yaml or harness.yml in the directory.
func LoadFromDir(dir string) (*Settings, error) {
	// Try harness.yaml first
	path := filepath.Join(dir, "harness.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	// Try harness.yml
	path = filepath.Join(dir, "harness.yml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	// No settings file found, return defaults
	return Default(), nil
}
