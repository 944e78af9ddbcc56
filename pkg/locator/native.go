package locator

import (
	"context"
	"fmt"
	"strings"

	"github.com/devicelab-dev/appium-harness/pkg/driver/appium"
)

// NativeBackend finds elements in the platform accessibility/view tree.
type NativeBackend struct {
	finder   Finder
	platform string
}

// NewNativeBackend creates the native backend for platform (android or ios).
func NewNativeBackend(f Finder, platform string) *NativeBackend {
	return &NativeBackend{finder: f, platform: strings.ToLower(platform)}
}

// Kind implements Backend.
func (b *NativeBackend) Kind() Kind { return Native }

// Lookup implements Backend.
func (b *NativeBackend) Lookup(ctx context.Context, d Descriptor) (string, error) {
	using, value := b.Compile(d)
	id, err := b.finder.FindElementContext(ctx, using, value)
	if err != nil {
		if appium.IsUnsupportedStrategy(err) {
			return "", unavailable(Native, err)
		}
		return "", err
	}
	return id, nil
}

// Compile turns the text shorthands into a platform strategy and passes
// everything else through.
func (b *NativeBackend) Compile(d Descriptor) (string, string) {
	switch d.Using {
	case ByText:
		if b.platform == "ios" {
			q := quote(d.Value)
			return ByPredicate, fmt.Sprintf("label == %s OR name == %s", q, q)
		}
		return ByUIAutomator, fmt.Sprintf("new UiSelector().text(%s)", quote(d.Value))
	case ByContains:
		if b.platform == "ios" {
			q := quote(d.Value)
			return ByPredicate, fmt.Sprintf("label CONTAINS %s OR name CONTAINS %s", q, q)
		}
		return ByUIAutomator, fmt.Sprintf("new UiSelector().textContains(%s)", quote(d.Value))
	}
	return d.Using, d.Value
}

var quoteReplacer = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// quote produces a double-quoted literal valid in both UiSelector Java
// strings and NSPredicate format strings.
func quote(s string) string {
	return `"` + quoteReplacer.Replace(s) + `"`
}
