// Package locator resolves logical UI elements through an ordered chain of
// backend-specific descriptors.
package locator

import (
	"fmt"
	"strings"
	"time"
)

// Kind names a discovery backend.
type Kind string

const (
	// Instrumented queries the Flutter widget tree by developer-assigned keys.
	Instrumented Kind = "instrumented"
	// Native queries the platform accessibility/view tree.
	Native Kind = "native"
)

// Instrumented strategies
const (
	ByKey       = "key"
	ByText      = "text"
	ByType      = "type"
	ByTooltip   = "tooltip"
	BySemantics = "semantics"
)

// Native strategies. ByText doubles as the exact-text shorthand.
const (
	ByAccessibilityID = "accessibility id"
	ByID              = "id"
	ByXPath           = "xpath"
	ByClassName       = "class name"
	ByUIAutomator     = "-android uiautomator"
	ByPredicate       = "-ios predicate string"
	ByClassChain      = "-ios class chain"
	ByContains        = "contains"
)

var strategies = map[Kind]map[string]bool{
	Instrumented: {
		ByKey: true, ByText: true, ByType: true, ByTooltip: true, BySemantics: true,
	},
	Native: {
		ByAccessibilityID: true, ByID: true, ByXPath: true, ByClassName: true,
		ByUIAutomator: true, ByPredicate: true, ByClassChain: true,
		ByText: true, ByContains: true,
	},
}

// Descriptor is one backend + selector pair.
type Descriptor struct {
	Backend Kind
	Using   string
	Value   string
	// Platform restricts the descriptor to android or ios when set.
	Platform string
	// Timeout overrides the per-attempt timeout when > 0.
	Timeout time.Duration
}

// String renders the text form backend[@platform]:using=value.
func (d Descriptor) String() string {
	backend := string(d.Backend)
	if d.Platform != "" {
		backend += "@" + d.Platform
	}
	return fmt.Sprintf("%s:%s=%s", backend, d.Using, d.Value)
}

// AppliesTo reports whether the descriptor is usable on platform.
func (d Descriptor) AppliesTo(platform string) bool {
	return d.Platform == "" || platform == "" || strings.EqualFold(d.Platform, platform)
}

// Validate checks backend, strategy and platform.
func (d Descriptor) Validate() error {
	known, ok := strategies[d.Backend]
	if !ok {
		return fmt.Errorf("unknown backend %q", d.Backend)
	}
	if !known[d.Using] {
		return fmt.Errorf("backend %s does not support strategy %q", d.Backend, d.Using)
	}
	if d.Value == "" {
		return fmt.Errorf("empty selector for %s:%s", d.Backend, d.Using)
	}
	switch strings.ToLower(d.Platform) {
	case "", "android", "ios":
	default:
		return fmt.Errorf("unknown platform %q", d.Platform)
	}
	return nil
}

// Parse reads the text form backend[@platform]:using=value.
// The value may itself contain ':' and '='.
func Parse(s string) (Descriptor, error) {
	head, rest, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Descriptor{}, fmt.Errorf("descriptor %q: missing backend", s)
	}
	using, value, ok := strings.Cut(rest, "=")
	if !ok {
		return Descriptor{}, fmt.Errorf("descriptor %q: missing '='", s)
	}

	backend, platform, _ := strings.Cut(head, "@")
	d := Descriptor{
		Backend:  Kind(strings.ToLower(strings.TrimSpace(backend))),
		Platform: strings.ToLower(strings.TrimSpace(platform)),
		Using:    strings.TrimSpace(using),
		Value:    value,
	}
	if err := d.Validate(); err != nil {
		return Descriptor{}, fmt.Errorf("descriptor %q: %w", s, err)
	}
	return d, nil
}

// MustParse is Parse for static declarations. It panics on error.
func MustParse(s string) Descriptor {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Element is a logical UI element: a name and its ordered descriptor chain.
type Element struct {
	Name        string
	Descriptors []Descriptor
}

// Define builds an Element from text-form descriptors. It panics on a
// malformed descriptor.
func Define(name string, specs ...string) Element {
	el := Element{Name: name}
	for _, s := range specs {
		el.Descriptors = append(el.Descriptors, MustParse(s))
	}
	return el
}

// ForPlatform returns the descriptors applicable to platform, in order.
func (e Element) ForPlatform(platform string) []Descriptor {
	out := make([]Descriptor, 0, len(e.Descriptors))
	for _, d := range e.Descriptors {
		if d.AppliesTo(platform) {
			out = append(out, d)
		}
	}
	return out
}

func (e Element) String() string {
	parts := make([]string, len(e.Descriptors))
	for i, d := range e.Descriptors {
		parts[i] = d.String()
	}
	return fmt.Sprintf("%s [%s]", e.Name, strings.Join(parts, ", "))
}
