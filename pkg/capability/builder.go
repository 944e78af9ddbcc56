package capability

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/devicelab-dev/appium-harness/pkg/config"
	"github.com/devicelab-dev/appium-harness/pkg/ports"
)

// Override variables
const (
	EnvAndroidAPILevel       = "ANDROID_API_LEVEL"
	EnvIOSVersion            = "IOS_VERSION"
	EnvAndroidDeviceName     = "ANDROID_DEVICE_NAME"
	EnvIOSDeviceName         = "IOS_DEVICE_NAME"
	EnvAndroidAutomationName = "ANDROID_AUTOMATION_NAME"
	EnvIOSAutomationName     = "IOS_AUTOMATION_NAME"
	EnvAndroidAVDName        = "ANDROID_AVD_NAME"
	EnvIOSSimulator          = "IOS_SIMULATOR"
	EnvAppPath               = "APP_PATH"
	EnvAppPackage            = "APP_PACKAGE"
	EnvAppActivity           = "APP_ACTIVITY"
	EnvBundleID              = "BUNDLE_ID"
	EnvNoReset               = "NO_RESET"
	EnvHeadless              = "HEADLESS"
	EnvOrientation           = "ORIENTATION"
	EnvInstallTimeout        = "INSTALL_TIMEOUT_MS"
	EnvLaunchTimeout         = "LAUNCH_TIMEOUT_MS"
	EnvConnectTimeout        = "CONNECT_TIMEOUT_MS"
	EnvCommandTimeout        = "COMMAND_TIMEOUT"
	EnvAppiumURL             = "APPIUM_URL"
	EnvAppiumHost            = "APPIUM_HOST"
	EnvAppiumPort            = "APPIUM_PORT"
	EnvAndroidHome           = "ANDROID_HOME"
	EnvAndroidSDKRoot        = "ANDROID_SDK_ROOT"
	EnvAllowMissingApp       = "ALLOW_MISSING_APP"
	EnvXcodeOrgID            = "XCODE_ORG_ID"
	EnvXcodeSigningID        = "XCODE_SIGNING_ID"
	EnvWDABundleID           = "WDA_BUNDLE_ID"
)

// Platform defaults
const (
	DefaultAndroidAPILevel   = "30"
	DefaultIOSVersion        = "16.4"
	DefaultAndroidDevice     = "Android Emulator"
	DefaultIOSDevice         = "iPhone 13"
	DefaultAndroidAutomation = "UiAutomator2"
	DefaultIOSAutomation     = "XCUITest"
	DefaultAVD               = "Medium_Phone_API_36.0"
	DefaultAppPackage        = "com.smorting.app.smor_ting_mobile"
	DefaultAppActivity       = "com.smorting.app.smor_ting_mobile.MainActivity"
	DefaultBundleID          = "com.smorting.app.smor-ting-mobile"
	DefaultOrientation       = "PORTRAIT"
	DefaultTimeout           = 300 * time.Second
	DefaultAppiumHost        = "127.0.0.1"
	DefaultAppiumPort        = "4723"

	androidArtifact = "build/app/outputs/flutter-apk/app-debug.apk"
	iosArtifact     = "build/ios/iphonesimulator/Runner.app"
	ciAVDArgs       = "-no-audio -no-window -gpu swiftshader_indirect"
	ciReadySeconds  = 120
)

// PortSource hands out instrumentation-server ports.
type PortSource interface {
	Port(basePort int) ports.Lease
}

// Builder turns platform + environment + override variables into a Profile.
type Builder struct {
	Lookup func(key string) (string, bool)
	Ports  PortSource
	Root   string // project root for default artifact paths
}

// NewBuilder creates a Builder reading the process environment.
func NewBuilder() *Builder {
	return &Builder{
		Lookup: os.LookupEnv,
		Ports:  ports.NewAllocator(),
		Root:   config.GetHome(),
	}
}

// Build constructs a profile. It always succeeds: unknown inputs are
// normalised and malformed overrides are replaced by defaults, each noted in
// Profile.Warnings. Call Validate before opening a session.
func (b *Builder) Build(platform, environment string) Profile {
	r := &resolver{lookup: b.Lookup, sources: make(map[string]Source)}
	if r.lookup == nil {
		r.lookup = func(string) (string, bool) { return "", false }
	}

	plat, ok := ParsePlatform(platform)
	if !ok {
		r.warnf("unknown platform %q, using %s", platform, plat)
	}
	env, ok := ParseEnvironment(environment)
	if !ok {
		r.warnf("unknown environment %q, using %s", environment, env)
	}

	p := Profile{
		Platform:    plat,
		Environment: env,
		Extras:      make(map[string]interface{}),
	}

	basePort := ports.AndroidBasePort
	if plat == IOS {
		basePort = ports.IOSBasePort
		p.PlatformVersion = r.str(FieldPlatformVersion, EnvIOSVersion, DefaultIOSVersion)
		p.DeviceName = r.str(FieldDeviceName, EnvIOSDeviceName, DefaultIOSDevice)
		p.AutomationName = r.str(FieldAutomationName, EnvIOSAutomationName, DefaultIOSAutomation)
		p.AppPath = r.str(FieldAppPath, EnvAppPath, filepath.Join(b.Root, iosArtifact))
		p.AppID = r.str(FieldAppID, EnvBundleID, DefaultBundleID)
		p.Simulator = r.boolean(FieldSimulator, EnvIOSSimulator, tierBool(env == CI, true), false)
		r.extra(p.Extras, "xcodeOrgId", EnvXcodeOrgID)
		r.extra(p.Extras, "xcodeSigningId", EnvXcodeSigningID)
		r.extra(p.Extras, "updatedWDABundleId", EnvWDABundleID)
	} else {
		p.PlatformVersion = r.str(FieldPlatformVersion, EnvAndroidAPILevel, DefaultAndroidAPILevel)
		p.DeviceName = r.str(FieldDeviceName, EnvAndroidDeviceName, DefaultAndroidDevice)
		p.AutomationName = r.str(FieldAutomationName, EnvAndroidAutomationName, DefaultAndroidAutomation)
		p.AVD = r.str(FieldAVD, EnvAndroidAVDName, DefaultAVD)
		p.AppPath = r.str(FieldAppPath, EnvAppPath, filepath.Join(b.Root, androidArtifact))
		p.AppID = r.str(FieldAppID, EnvAppPackage, DefaultAppPackage)
		p.AppActivity = r.str("appActivity", EnvAppActivity, DefaultAppActivity)
		if home, ok := r.get(EnvAndroidHome); ok {
			p.SDKHome = home
		} else if root, ok := r.get(EnvAndroidSDKRoot); ok {
			p.SDKHome = root
		}
		if env == CI {
			p.Extras["avdArgs"] = ciAVDArgs
			p.Extras["deviceReadyTimeout"] = ciReadySeconds
			p.Extras["androidDeviceReadyTimeout"] = ciReadySeconds
		}
	}

	p.Reset = r.reset(env)
	p.Headless = r.headless(env)
	p.Orientation = r.orientation()
	p.Timeouts = Timeouts{
		Install: r.duration(FieldInstallTimeout, EnvInstallTimeout, time.Millisecond),
		Launch:  r.duration(FieldLaunchTimeout, EnvLaunchTimeout, time.Millisecond),
		Connect: r.duration(FieldConnectTimeout, EnvConnectTimeout, time.Millisecond),
		Command: r.duration(FieldCommandTimeout, EnvCommandTimeout, time.Second),
	}
	p.ServerURL = r.serverURL()
	p.AllowMissingApp, _ = parseBool(r.value(EnvAllowMissingApp))

	var lease ports.Lease
	if b.Ports != nil {
		lease = b.Ports.Port(basePort)
	} else {
		lease = ports.Lease{Port: basePort}
	}
	p.InstrumentationPort = lease.Port
	p.PortProbed = lease.Probed
	r.sources[FieldPort] = FromPlatform
	if raw, ok := r.lookup(ports.EnvOffset); ok {
		if _, valid := ports.ParseOffset(raw); valid {
			r.sources[FieldPort] = FromOverride
		}
	}

	p.Sources = r.sources
	p.Warnings = r.warnings
	return p
}

// resolver applies precedence and records sources and warnings.
type resolver struct {
	lookup   func(string) (string, bool)
	sources  map[string]Source
	warnings []string
}

func (r *resolver) warnf(format string, args ...interface{}) {
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
}

// get returns a trimmed, non-empty override value.
func (r *resolver) get(key string) (string, bool) {
	v, ok := r.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (r *resolver) value(key string) string {
	v, _ := r.get(key)
	return v
}

func (r *resolver) str(field, key, def string) string {
	if v, ok := r.get(key); ok {
		r.sources[field] = FromOverride
		return v
	}
	r.sources[field] = FromPlatform
	return def
}

func (r *resolver) extra(extras map[string]interface{}, capKey, key string) {
	if v, ok := r.get(key); ok {
		extras[capKey] = v
		r.sources[capKey] = FromOverride
	}
}

// tierValue is an optional environment-tier default.
type tierValue struct {
	set bool
	val bool
}

func tierBool(set, val bool) tierValue {
	return tierValue{set: set, val: val}
}

func (r *resolver) boolean(field, key string, tier tierValue, def bool) bool {
	if raw, ok := r.get(key); ok {
		if v, ok := parseBool(raw); ok {
			r.sources[field] = FromOverride
			return v
		}
		r.warnf("%s=%q is not a boolean, ignoring", key, raw)
	}
	if tier.set {
		r.sources[field] = FromEnvironment
		return tier.val
	}
	r.sources[field] = FromPlatform
	return def
}

func (r *resolver) reset(env Environment) ResetPolicy {
	var tier tierValue
	switch env {
	case Local:
		tier = tierBool(true, true)
	case CI:
		tier = tierBool(true, false)
	}
	noReset := r.boolean(FieldReset, EnvNoReset, tier, false)
	return ResetPolicy{NoReset: noReset, FullReset: !noReset}
}

func (r *resolver) headless(env Environment) *bool {
	if raw, ok := r.get(EnvHeadless); ok {
		if v, ok := parseBool(raw); ok {
			r.sources[FieldHeadless] = FromOverride
			return &v
		}
		r.warnf("%s=%q is not a boolean, ignoring", EnvHeadless, raw)
	}
	if env == CI {
		r.sources[FieldHeadless] = FromEnvironment
		v := true
		return &v
	}
	r.sources[FieldHeadless] = FromPlatform
	return nil
}

func (r *resolver) orientation() string {
	if raw, ok := r.get(EnvOrientation); ok {
		v := strings.ToUpper(raw)
		if v == "PORTRAIT" || v == "LANDSCAPE" {
			r.sources[FieldOrientation] = FromOverride
			return v
		}
		r.warnf("%s=%q is not PORTRAIT or LANDSCAPE, ignoring", EnvOrientation, raw)
	}
	r.sources[FieldOrientation] = FromPlatform
	return DefaultOrientation
}

// duration parses an integer count of unit. Non-positive values are kept so
// that validation can report them.
func (r *resolver) duration(field, key string, unit time.Duration) time.Duration {
	if raw, ok := r.get(key); ok {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err == nil {
			r.sources[field] = FromOverride
			return time.Duration(n) * unit
		}
		r.warnf("%s=%q is not an integer, ignoring", key, raw)
	}
	r.sources[field] = FromPlatform
	return DefaultTimeout
}

func (r *resolver) serverURL() string {
	if v, ok := r.get(EnvAppiumURL); ok {
		r.sources[FieldServerURL] = FromOverride
		return strings.TrimRight(v, "/")
	}
	host, hostSet := r.get(EnvAppiumHost)
	port, portSet := r.get(EnvAppiumPort)
	if !hostSet {
		host = DefaultAppiumHost
	}
	if portSet {
		if _, err := strconv.Atoi(port); err != nil {
			r.warnf("%s=%q is not a port number, ignoring", EnvAppiumPort, port)
			port, portSet = DefaultAppiumPort, false
		}
	} else {
		port = DefaultAppiumPort
	}
	if hostSet || portSet {
		r.sources[FieldServerURL] = FromOverride
	} else {
		r.sources[FieldServerURL] = FromPlatform
	}
	return "http://" + host + ":" + port
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}
