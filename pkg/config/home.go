package config

import (
	"os"
	"path/filepath"
	"sync"
)

const (
	envHome = "HARNESS_HOME"

	// projectMarker identifies the Flutter project whose build outputs are tested.
	projectMarker = "pubspec.yaml"
)

var (
	homeOnce sync.Once
	homeDir  string
)

// GetHome returns the project root that default app artifact paths
// (build/app/outputs/..., build/ios/...) and reports are relative to.
//
// Resolution order:
//  1. $HARNESS_HOME
//  2. Nearest directory at or above the working directory holding pubspec.yaml
//  3. Parent of the binary's directory when installed as <home>/bin/appium-harness
//  4. Working directory
func GetHome() string {
	homeOnce.Do(func() {
		homeDir = resolveHome()
	})
	return homeDir
}

// GetReportsDir returns <home>/reports.
func GetReportsDir() string {
	return filepath.Join(GetHome(), "reports")
}

func resolveHome() string {
	if env := os.Getenv(envHome); env != "" {
		return env
	}

	cwd, cwdErr := os.Getwd()
	if cwdErr == nil {
		if root, ok := findProjectRoot(cwd); ok {
			return root
		}
	}

	if execPath, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
			execPath = resolved
		}
		if binDir := filepath.Dir(execPath); filepath.Base(binDir) == "bin" {
			return filepath.Dir(binDir)
		}
	}

	if cwdErr == nil {
		return cwd
	}
	return "."
}

// findProjectRoot walks up from dir to the first directory containing pubspec.yaml.
func findProjectRoot(dir string) (string, bool) {
	for {
		if _, err := os.Stat(filepath.Join(dir, projectMarker)); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// ResetHome clears the cached home directory. Tests only.
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}
