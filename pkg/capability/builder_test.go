package capability

import (
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/devicelab-dev/appium-harness/pkg/ports"
)

type fixedPorts struct {
	offset int
	calls  int
}

func (f *fixedPorts) Port(base int) ports.Lease {
	f.calls++
	return ports.Lease{Port: base + f.offset, BoundAt: time.Unix(0, 0), Probed: true}
}

func mapLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func newTestBuilder(env map[string]string) *Builder {
	return &Builder{
		Lookup: mapLookup(env),
		Ports:  &fixedPorts{offset: 7},
		Root:   "/work",
	}
}

// fieldReporter collects the top-level Profile fields that differ.
type fieldReporter struct {
	path    cmp.Path
	changed map[string]bool
}

func (r *fieldReporter) PushStep(ps cmp.PathStep) {
	r.path = append(r.path, ps)
}

func (r *fieldReporter) PopStep() {
	r.path = r.path[:len(r.path)-1]
}

func (r *fieldReporter) Report(rs cmp.Result) {
	if rs.Equal() || len(r.path) < 2 {
		return
	}
	if sf, ok := r.path[1].(cmp.StructField); ok {
		r.changed[sf.Name()] = true
	}
}

func (r *fieldReporter) names() []string {
	var out []string
	for name := range r.changed {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func TestBuild_CI(t *testing.T) {
	for _, platform := range []string{"android", "ios"} {
		t.Run(platform, func(t *testing.T) {
			p := newTestBuilder(nil).Build(platform, "ci")

			want := ResetPolicy{NoReset: false, FullReset: true}
			if p.Reset != want {
				t.Errorf("Reset = %+v, want %+v", p.Reset, want)
			}
			if p.Headless == nil || !*p.Headless {
				t.Errorf("Headless = %v, want true", p.Headless)
			}
			if p.Sources[FieldReset] != FromEnvironment {
				t.Errorf("reset source = %q, want %q", p.Sources[FieldReset], FromEnvironment)
			}
		})
	}
}

func TestBuild_Local(t *testing.T) {
	for _, platform := range []string{"android", "ios"} {
		t.Run(platform, func(t *testing.T) {
			p := newTestBuilder(nil).Build(platform, "local")

			want := ResetPolicy{NoReset: true, FullReset: false}
			if p.Reset != want {
				t.Errorf("Reset = %+v, want %+v", p.Reset, want)
			}
			if p.Headless != nil {
				t.Errorf("Headless = %v, want unset", *p.Headless)
			}
		})
	}
}

func TestBuild_StagingUsesPlatformReset(t *testing.T) {
	p := newTestBuilder(nil).Build("android", "staging")
	if !p.Reset.FullReset || p.Reset.NoReset {
		t.Errorf("Reset = %+v, want fullReset", p.Reset)
	}
	if p.Sources[FieldReset] != FromPlatform {
		t.Errorf("reset source = %q", p.Sources[FieldReset])
	}
}

func TestBuild_AndroidDefaults(t *testing.T) {
	p := newTestBuilder(nil).Build("android", "local")

	if p.Platform != Android {
		t.Errorf("Platform = %q", p.Platform)
	}
	if p.PlatformVersion != DefaultAndroidAPILevel {
		t.Errorf("PlatformVersion = %q", p.PlatformVersion)
	}
	if p.AppPath != "/work/build/app/outputs/flutter-apk/app-debug.apk" {
		t.Errorf("AppPath = %q", p.AppPath)
	}
	if p.AppID != DefaultAppPackage || p.AppActivity != DefaultAppActivity {
		t.Errorf("AppID/AppActivity = %q/%q", p.AppID, p.AppActivity)
	}
	if p.InstrumentationPort != ports.AndroidBasePort+7 || !p.PortProbed {
		t.Errorf("port = %d probed=%v", p.InstrumentationPort, p.PortProbed)
	}
	if p.ServerURL != "http://127.0.0.1:4723" {
		t.Errorf("ServerURL = %q", p.ServerURL)
	}
	want := Timeouts{Install: DefaultTimeout, Launch: DefaultTimeout, Connect: DefaultTimeout, Command: DefaultTimeout}
	if p.Timeouts != want {
		t.Errorf("Timeouts = %+v", p.Timeouts)
	}
	if len(p.Warnings) != 0 {
		t.Errorf("Warnings = %v", p.Warnings)
	}
}

func TestBuild_IOSDefaults(t *testing.T) {
	p := newTestBuilder(nil).Build("iOS", "local")

	if p.Platform != IOS || p.DeviceName != DefaultIOSDevice || p.AutomationName != DefaultIOSAutomation {
		t.Errorf("unexpected identity: %+v", p.Snapshot())
	}
	if p.AppPath != "/work/build/ios/iphonesimulator/Runner.app" {
		t.Errorf("AppPath = %q", p.AppPath)
	}
	if p.InstrumentationPort != ports.IOSBasePort+7 {
		t.Errorf("port = %d", p.InstrumentationPort)
	}
	if p.Simulator {
		t.Error("Simulator should default to false outside ci")
	}
	if p.AVD != "" {
		t.Errorf("AVD = %q, want empty on ios", p.AVD)
	}
}

func TestBuild_CIExtras(t *testing.T) {
	android := newTestBuilder(nil).Build("android", "ci")
	if android.Extras["avdArgs"] != ciAVDArgs {
		t.Errorf("avdArgs = %v", android.Extras["avdArgs"])
	}
	if android.Extras["deviceReadyTimeout"] != ciReadySeconds {
		t.Errorf("deviceReadyTimeout = %v", android.Extras["deviceReadyTimeout"])
	}

	ios := newTestBuilder(nil).Build("ios", "ci")
	if !ios.Simulator {
		t.Error("ci ios profile should target a simulator")
	}
}

func TestBuild_Deterministic(t *testing.T) {
	env := map[string]string{
		EnvAndroidAPILevel: "33",
		EnvHeadless:        "false",
		EnvAppiumHost:      "10.0.0.5",
	}
	pairs := []struct{ platform, environment string }{
		{"android", "local"}, {"android", "ci"}, {"android", "staging"}, {"android", "production"},
		{"ios", "local"}, {"ios", "ci"}, {"ios", "staging"}, {"ios", "production"},
	}
	for _, pair := range pairs {
		a := newTestBuilder(env).Build(pair.platform, pair.environment)
		b := newTestBuilder(env).Build(pair.platform, pair.environment)
		if diff := cmp.Diff(a, b); diff != "" {
			t.Errorf("%s/%s not deterministic (-first +second):\n%s", pair.platform, pair.environment, diff)
		}
	}
}

func TestBuild_OverrideChangesExactlyOneField(t *testing.T) {
	tests := []struct {
		platform string
		key      string
		value    string
		check    func(p Profile) bool
	}{
		{"android", EnvAndroidAPILevel, "30", func(p Profile) bool { return p.PlatformVersion == "30" }},
		{"android", EnvAndroidDeviceName, "Pixel 7", func(p Profile) bool { return p.DeviceName == "Pixel 7" }},
		{"android", EnvAndroidAVDName, "Pixel_API_30", func(p Profile) bool { return p.AVD == "Pixel_API_30" }},
		{"android", EnvAndroidAutomationName, "Espresso", func(p Profile) bool { return p.AutomationName == "Espresso" }},
		{"android", EnvAppPath, "/tmp/app.apk", func(p Profile) bool { return p.AppPath == "/tmp/app.apk" }},
		{"android", EnvAppPackage, "com.example", func(p Profile) bool { return p.AppID == "com.example" }},
		{"android", EnvNoReset, "false", func(p Profile) bool { return p.Reset.FullReset && !p.Reset.NoReset }},
		{"android", EnvHeadless, "true", func(p Profile) bool { return p.IsHeadless() }},
		{"android", EnvOrientation, "landscape", func(p Profile) bool { return p.Orientation == "LANDSCAPE" }},
		{"android", EnvInstallTimeout, "1500", func(p Profile) bool { return p.Timeouts.Install == 1500*time.Millisecond }},
		{"android", EnvCommandTimeout, "60", func(p Profile) bool { return p.Timeouts.Command == time.Minute }},
		{"android", EnvAppiumURL, "http://grid:4444/", func(p Profile) bool { return p.ServerURL == "http://grid:4444" }},
		{"ios", EnvIOSVersion, "17.2", func(p Profile) bool { return p.PlatformVersion == "17.2" }},
		{"ios", EnvIOSDeviceName, "iPhone 15 Simulator", func(p Profile) bool { return p.DeviceName == "iPhone 15 Simulator" }},
		{"ios", EnvBundleID, "com.example.ios", func(p Profile) bool { return p.AppID == "com.example.ios" }},
		{"ios", EnvIOSSimulator, "1", func(p Profile) bool { return p.Simulator }},
	}

	ignore := cmpopts.IgnoreFields(Profile{}, "Sources")
	for _, tt := range tests {
		t.Run(tt.platform+"/"+tt.key, func(t *testing.T) {
			base := newTestBuilder(nil).Build(tt.platform, "local")
			got := newTestBuilder(map[string]string{tt.key: tt.value}).Build(tt.platform, "local")

			if !tt.check(got) {
				t.Fatalf("override %s=%s not applied", tt.key, tt.value)
			}
			r := &fieldReporter{changed: make(map[string]bool)}
			cmp.Equal(base, got, ignore, cmp.Reporter(r))
			if len(r.changed) != 1 {
				t.Errorf("override changed fields %v, want exactly one:\n%s",
					r.names(), cmp.Diff(base, got, ignore))
			}
		})
	}
}

func TestBuild_OverrideBeatsTier(t *testing.T) {
	p := newTestBuilder(map[string]string{EnvNoReset: "true", EnvHeadless: "no"}).Build("android", "ci")
	if !p.Reset.NoReset || p.Reset.FullReset {
		t.Errorf("Reset = %+v, want noReset", p.Reset)
	}
	if p.Headless == nil || *p.Headless {
		t.Errorf("Headless = %v, want false", p.Headless)
	}
	if got := p.Overridden(); !cmp.Equal(got, []string{FieldHeadless, FieldReset}) {
		t.Errorf("Overridden() = %v", got)
	}
}

func TestBuild_MalformedOverridesWarn(t *testing.T) {
	env := map[string]string{
		EnvInstallTimeout: "abc",
		EnvNoReset:        "maybe",
		EnvOrientation:    "sideways",
		EnvAppiumPort:     "http",
	}
	p := newTestBuilder(env).Build("android", "local")

	if p.Timeouts.Install != DefaultTimeout {
		t.Errorf("Install = %s, want default", p.Timeouts.Install)
	}
	if !p.Reset.NoReset {
		t.Error("malformed NO_RESET should fall back to the local tier")
	}
	if p.Orientation != DefaultOrientation {
		t.Errorf("Orientation = %q", p.Orientation)
	}
	if p.ServerURL != "http://127.0.0.1:4723" {
		t.Errorf("ServerURL = %q", p.ServerURL)
	}
	if len(p.Warnings) != 4 {
		t.Errorf("Warnings = %v, want 4", p.Warnings)
	}
}

func TestBuild_UnknownInputsNormalised(t *testing.T) {
	p := newTestBuilder(nil).Build("Windows", "qa")
	if p.Platform != Android || p.Environment != Local {
		t.Errorf("got %s/%s, want android/local", p.Platform, p.Environment)
	}
	if len(p.Warnings) != 2 {
		t.Errorf("Warnings = %v", p.Warnings)
	}
}

func TestBuild_PortOffsetSource(t *testing.T) {
	p := newTestBuilder(map[string]string{ports.EnvOffset: "3"}).Build("android", "ci")
	if p.Sources[FieldPort] != FromOverride {
		t.Errorf("port source = %q", p.Sources[FieldPort])
	}

	for _, raw := range []string{"abc", "-3", " 3", ""} {
		p := newTestBuilder(map[string]string{ports.EnvOffset: raw}).Build("android", "ci")
		if p.Sources[FieldPort] != FromPlatform {
			t.Errorf("offset %q: port source = %q, want %q", raw, p.Sources[FieldPort], FromPlatform)
		}
	}
}

func TestBuild_NilPortSource(t *testing.T) {
	b := &Builder{Lookup: mapLookup(nil)}
	p := b.Build("ios", "local")
	if p.InstrumentationPort != ports.IOSBasePort || p.PortProbed {
		t.Errorf("port = %d probed=%v", p.InstrumentationPort, p.PortProbed)
	}
}

func TestBuild_ServerFromHostPort(t *testing.T) {
	p := newTestBuilder(map[string]string{EnvAppiumHost: "appium", EnvAppiumPort: "4725"}).Build("android", "local")
	if p.ServerURL != "http://appium:4725" {
		t.Errorf("ServerURL = %q", p.ServerURL)
	}
}
