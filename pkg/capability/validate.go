package capability

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/Masterminds/semver"
	"howett.net/plist"

	"github.com/devicelab-dev/appium-harness/pkg/core"
)

// Check identifies one validation rule.
type Check string

// Environment-prerequisite checks (bypassable)
const (
	CheckArtifact Check = "artifact"
	CheckSDKHome  Check = "sdk_home"
	CheckHostOS   Check = "host_os"
	CheckBundleID Check = "bundle_id"
)

// Internal-consistency checks (never bypassable)
const (
	CheckVersion  Check = "version"
	CheckReset    Check = "reset"
	CheckTimeouts Check = "timeouts"
	CheckPort     Check = "port"
)

// Problem is one failed check.
type Problem struct {
	Check   Check  `json:"check"`
	Message string `json:"message"`
	// Bypassable problems describe the host rather than the profile itself.
	Bypassable bool `json:"bypassable"`
}

func (p Problem) String() string {
	return fmt.Sprintf("%s: %s", p.Check, p.Message)
}

// Report is the outcome of Validate.
type Report struct {
	Problems []Problem `json:"problems,omitempty"`
	Bypassed bool      `json:"bypassed"`
	profile  map[string]interface{}
}

// Blocking returns the problems that abort session creation.
func (r *Report) Blocking() []Problem {
	var out []Problem
	for _, p := range r.Problems {
		if !r.Bypassed || !p.Bypassable {
			out = append(out, p)
		}
	}
	return out
}

// Warnings returns problems downgraded by the bypass flag.
func (r *Report) Warnings() []Problem {
	if !r.Bypassed {
		return nil
	}
	var out []Problem
	for _, p := range r.Problems {
		if p.Bypassable {
			out = append(out, p)
		}
	}
	return out
}

// OK reports whether nothing blocks session creation.
func (r *Report) OK() bool {
	return len(r.Blocking()) == 0
}

// Err returns a configuration error listing every blocking problem, or nil.
func (r *Report) Err() error {
	blocking := r.Blocking()
	if len(blocking) == 0 {
		return nil
	}
	msgs := make([]string, len(blocking))
	for i, p := range blocking {
		msgs[i] = p.String()
	}
	return core.ErrConfiguration.
		WithMessage("invalid configuration: " + strings.Join(msgs, "; ")).
		WithDetails(map[string]interface{}{
			"problems": msgs,
			"profile":  r.profile,
		})
}

// ValidateOptions controls Validate. Zero values use the real host.
type ValidateOptions struct {
	Bypass bool
	GOOS   string
	Stat   func(path string) (os.FileInfo, error)
	// ReadFile is used for the bundle Info.plist.
	ReadFile func(path string) ([]byte, error)
}

// Validate checks a built profile before a session is opened.
// Bypass (or the profile's AllowMissingApp) turns host-prerequisite problems
// into warnings.
func Validate(p Profile, opts ValidateOptions) *Report {
	if opts.GOOS == "" {
		opts.GOOS = runtime.GOOS
	}
	if opts.Stat == nil {
		opts.Stat = os.Stat
	}
	if opts.ReadFile == nil {
		opts.ReadFile = os.ReadFile
	}

	r := &Report{
		Bypassed: opts.Bypass || p.AllowMissingApp,
		profile:  p.Snapshot(),
	}
	add := func(check Check, bypassable bool, format string, args ...interface{}) {
		r.Problems = append(r.Problems, Problem{
			Check:      check,
			Message:    fmt.Sprintf(format, args...),
			Bypassable: bypassable,
		})
	}

	artifactOK := false
	if p.AppPath == "" {
		add(CheckArtifact, true, "no app artifact configured")
	} else if _, err := opts.Stat(p.AppPath); err != nil {
		add(CheckArtifact, true, "app artifact not found at %s", p.AppPath)
	} else {
		artifactOK = true
	}

	switch p.Platform {
	case Android:
		if p.SDKHome == "" {
			add(CheckSDKHome, true, "%s is not set", EnvAndroidHome)
		} else if _, err := opts.Stat(p.SDKHome); err != nil {
			add(CheckSDKHome, true, "%s %s does not exist", EnvAndroidHome, p.SDKHome)
		}
	case IOS:
		if opts.GOOS != "darwin" {
			add(CheckHostOS, true, "iOS testing requires macOS, host is %s", opts.GOOS)
		}
		if artifactOK && strings.HasSuffix(p.AppPath, ".app") {
			if err := checkBundleID(p.AppPath, p.AppID, opts.ReadFile); err != nil {
				add(CheckBundleID, true, "%v", err)
			}
		}
	}

	if _, err := semver.NewVersion(p.PlatformVersion); err != nil {
		add(CheckVersion, false, "platform version %q is not a version", p.PlatformVersion)
	}
	if !p.Reset.Exclusive() {
		add(CheckReset, false, "exactly one of noReset/fullReset must be set")
	}
	if !p.Timeouts.AllPositive() {
		add(CheckTimeouts, false, "timeouts must be positive (install=%s launch=%s connect=%s command=%s)",
			p.Timeouts.Install, p.Timeouts.Launch, p.Timeouts.Connect, p.Timeouts.Command)
	}
	if p.InstrumentationPort < 1024 || p.InstrumentationPort > 65535 {
		add(CheckPort, false, "instrumentation port %d outside 1024..65535", p.InstrumentationPort)
	}

	return r
}

type bundleInfo struct {
	CFBundleIdentifier string `plist:"CFBundleIdentifier"`
}

// checkBundleID compares the .app bundle's CFBundleIdentifier with want.
func checkBundleID(appPath, want string, readFile func(string) ([]byte, error)) error {
	data, err := readFile(filepath.Join(appPath, "Info.plist"))
	if err != nil {
		return fmt.Errorf("read Info.plist: %w", err)
	}
	var info bundleInfo
	if _, err := plist.Unmarshal(data, &info); err != nil {
		return fmt.Errorf("parse Info.plist: %w", err)
	}
	if info.CFBundleIdentifier != want {
		return fmt.Errorf("bundle identifier %q does not match %q", info.CFBundleIdentifier, want)
	}
	return nil
}
