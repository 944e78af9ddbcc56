// Package capability builds the session-request descriptor (capability profile)
// for one test run from platform, environment tier and environment-variable overrides.
package capability

import (
	"sort"
	"strings"
	"time"
)

// Platform is the target native platform.
type Platform string

// Supported platforms
const (
	Android Platform = "android"
	IOS     Platform = "ios"
)

// Environment is the execution tier.
type Environment string

// Supported environment tiers
const (
	Local      Environment = "local"
	CI         Environment = "ci"
	Staging    Environment = "staging"
	Production Environment = "production"
)

// Source records which precedence tier produced a profile field.
type Source string

// Precedence tiers, strongest first
const (
	FromOverride    Source = "override"
	FromEnvironment Source = "environment"
	FromPlatform    Source = "platform"
)

// Field names used in Profile.Sources
const (
	FieldPlatformVersion = "platformVersion"
	FieldDeviceName      = "deviceName"
	FieldAutomationName  = "automationName"
	FieldAVD             = "avd"
	FieldAppPath         = "app"
	FieldAppID           = "appId"
	FieldReset           = "reset"
	FieldHeadless        = "headless"
	FieldSimulator       = "simulator"
	FieldOrientation     = "orientation"
	FieldInstallTimeout  = "installTimeout"
	FieldLaunchTimeout   = "launchTimeout"
	FieldConnectTimeout  = "connectTimeout"
	FieldCommandTimeout  = "commandTimeout"
	FieldServerURL       = "serverURL"
	FieldPort            = "instrumentationPort"
)

// ResetPolicy selects how app state is treated between sessions.
// Exactly one of the two flags is true in a valid profile.
type ResetPolicy struct {
	NoReset   bool `json:"noReset"`
	FullReset bool `json:"fullReset"`
}

// Exclusive reports whether exactly one flag is set.
func (r ResetPolicy) Exclusive() bool {
	return r.NoReset != r.FullReset
}

// Timeouts groups the backend timeouts sent with the session request.
type Timeouts struct {
	Install time.Duration `json:"install"`
	Launch  time.Duration `json:"launch"`
	Connect time.Duration `json:"connect"`
	Command time.Duration `json:"command"`
}

// AllPositive reports whether every timeout is > 0.
func (t Timeouts) AllPositive() bool {
	return t.Install > 0 && t.Launch > 0 && t.Connect > 0 && t.Command > 0
}

// Profile is the complete declarative description of a requested session.
// It is built once per run and must not be modified afterwards.
type Profile struct {
	Platform            Platform    `json:"platform"`
	Environment         Environment `json:"environment"`
	DeviceName          string      `json:"deviceName"`
	PlatformVersion     string      `json:"platformVersion"`
	AutomationName      string      `json:"automationName"`
	AppPath             string      `json:"appPath"`
	AppID               string      `json:"appId"`
	AppActivity         string      `json:"appActivity,omitempty"`
	AVD                 string      `json:"avd,omitempty"`
	SDKHome             string      `json:"sdkHome,omitempty"`
	ServerURL           string      `json:"serverURL"`
	InstrumentationPort int         `json:"instrumentationPort"`
	PortProbed          bool        `json:"portProbed"`
	Reset               ResetPolicy `json:"reset"`
	Timeouts            Timeouts    `json:"timeouts"`
	Orientation         string      `json:"orientation"`
	Headless            *bool       `json:"headless,omitempty"` // nil = unset
	Simulator           bool        `json:"simulator,omitempty"`
	AllowMissingApp     bool        `json:"allowMissingApp,omitempty"`

	// Extras are environment- and platform-specific capability additions.
	Extras map[string]interface{} `json:"extras,omitempty"`
	// Sources maps field names to the precedence tier that produced them.
	Sources map[string]Source `json:"sources"`
	// Warnings lists normalisations and ignored malformed overrides.
	Warnings []string `json:"warnings,omitempty"`
}

// IsHeadless reports the headless flag, treating unset as false.
func (p Profile) IsHeadless() bool {
	return p.Headless != nil && *p.Headless
}

// Capabilities renders the W3C alwaysMatch map. platformName is unprefixed,
// every other key carries the appium: vendor prefix.
func (p Profile) Capabilities() map[string]interface{} {
	raw := map[string]interface{}{
		"orientation":       p.Orientation,
		"unicodeKeyboard":   true,
		"resetKeyboard":     true,
		"clearSystemFiles":  true,
		"platformVersion":   p.PlatformVersion,
		"deviceName":        p.DeviceName,
		"automationName":    p.AutomationName,
		"app":               p.AppPath,
		"noReset":           p.Reset.NoReset,
		"fullReset":         p.Reset.FullReset,
		"newCommandTimeout": int(p.Timeouts.Command / time.Second),
	}

	platformName := "Android"
	switch p.Platform {
	case IOS:
		platformName = "iOS"
		raw["bundleId"] = p.AppID
		raw["appPushTimeout"] = p.Timeouts.Install.Milliseconds()
		raw["wdaLaunchTimeout"] = p.Timeouts.Launch.Milliseconds()
		raw["wdaConnectionTimeout"] = p.Timeouts.Connect.Milliseconds()
		raw["wdaLocalPort"] = p.InstrumentationPort
		raw["usePrebuiltWDA"] = true
		raw["shouldUseSingletonTestManager"] = false
		if p.Simulator {
			raw["isSimulator"] = true
			raw["simulatorStartupTimeout"] = p.Timeouts.Launch.Milliseconds()
			raw["useSimulatorPasteboard"] = true
		}
	default:
		raw["appPackage"] = p.AppID
		raw["appActivity"] = p.AppActivity
		raw["autoGrantPermissions"] = true
		raw["androidInstallTimeout"] = p.Timeouts.Install.Milliseconds()
		raw["uiautomator2ServerInstallTimeout"] = p.Timeouts.Install.Milliseconds()
		raw["uiautomator2ServerLaunchTimeout"] = p.Timeouts.Launch.Milliseconds()
		raw["adbExecTimeout"] = p.Timeouts.Connect.Milliseconds()
		raw["avd"] = p.AVD
		raw["avdLaunchTimeout"] = p.Timeouts.Launch.Milliseconds()
		raw["avdReadyTimeout"] = p.Timeouts.Launch.Milliseconds()
		raw["systemPort"] = p.InstrumentationPort
		// Avoid preinstalling Appium Settings/Unlock where emulator policy blocks it
		raw["skipDeviceInitialization"] = true
		raw["ignoreHiddenApiPolicyError"] = true
		raw["disableWindowAnimation"] = true
	}

	if p.Headless != nil {
		raw["isHeadless"] = *p.Headless
	}
	for k, v := range p.Extras {
		raw[k] = v
	}

	caps := make(map[string]interface{}, len(raw)+1)
	caps["platformName"] = platformName
	for k, v := range raw {
		caps["appium:"+k] = v
	}
	return caps
}

// Snapshot returns a flat view of the profile used as error and log context.
func (p Profile) Snapshot() map[string]interface{} {
	snap := map[string]interface{}{
		"platform":        string(p.Platform),
		"environment":     string(p.Environment),
		"deviceName":      p.DeviceName,
		"platformVersion": p.PlatformVersion,
		"automationName":  p.AutomationName,
		"app":             p.AppPath,
		"appId":           p.AppID,
		"serverURL":       p.ServerURL,
		"port":            p.InstrumentationPort,
		"noReset":         p.Reset.NoReset,
		"fullReset":       p.Reset.FullReset,
	}
	if p.Headless != nil {
		snap["headless"] = *p.Headless
	}
	return snap
}

// Overridden returns the sorted names of fields set from override variables.
func (p Profile) Overridden() []string {
	var names []string
	for name, src := range p.Sources {
		if src == FromOverride {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ParsePlatform normalises a platform name. ok is false for unknown values.
func ParsePlatform(s string) (Platform, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "android", "":
		return Android, true
	case "ios":
		return IOS, true
	default:
		return Android, false
	}
}

// ParseEnvironment normalises a tier name. ok is false for unknown values.
func ParseEnvironment(s string) (Environment, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local", "":
		return Local, true
	case "ci":
		return CI, true
	case "staging":
		return Staging, true
	case "production":
		return Production, true
	default:
		return Local, false
	}
}
