package locator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"gopkg.in/yaml.v3"
)

// Catalog is a named set of logical elements.
type Catalog struct {
	elements map[string]Element
}

// NewCatalog creates a catalog from elements. Later duplicates win.
func NewCatalog(elements ...Element) *Catalog {
	c := &Catalog{elements: make(map[string]Element)}
	for _, el := range elements {
		c.Add(el)
	}
	return c
}

// Add registers or replaces an element.
func (c *Catalog) Add(el Element) {
	c.elements[el.Name] = el
}

// Element looks an element up by name.
func (c *Catalog) Element(name string) (Element, bool) {
	el, ok := c.elements[name]
	return el, ok
}

// Names returns the element names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.elements))
	for name := range c.elements {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of elements.
func (c *Catalog) Len() int {
	return len(c.elements)
}

// Merge returns a new catalog holding defaults overridden by c's elements.
func (c *Catalog) Merge(defaults *Catalog) *Catalog {
	out := NewCatalog()
	if defaults != nil {
		for _, el := range defaults.elements {
			out.Add(el)
		}
	}
	for _, el := range c.elements {
		out.Add(el)
	}
	return out
}

// LoadCatalog reads a catalog file. .hcl files are HCL, everything else YAML.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".hcl") {
		return ParseHCL(data, path)
	}
	return ParseYAML(data)
}

// YAML form:
//
//	elements:
//	  login_submit:
//	    - instrumented:key=login_submit
//	    - use: native:contains=Sign In
//	      timeout: 2s
//	      platform: android
type yamlCatalog struct {
	Elements map[string][]yamlDescriptor `yaml:"elements"`
}

type yamlDescriptor struct {
	Use      string `yaml:"use"`
	Timeout  string `yaml:"timeout"`
	Platform string `yaml:"platform"`
}

// UnmarshalYAML accepts either a bare text-form string or a mapping.
func (d *yamlDescriptor) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		d.Use = value.Value
		return nil
	}
	type plain yamlDescriptor
	return value.Decode((*plain)(d))
}

// ParseYAML parses a YAML catalog.
func ParseYAML(data []byte) (*Catalog, error) {
	var raw yamlCatalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	c := NewCatalog()
	for name, specs := range raw.Elements {
		el := Element{Name: name}
		for i, spec := range specs {
			d, err := Parse(spec.Use)
			if err != nil {
				return nil, fmt.Errorf("element %s[%d]: %w", name, i, err)
			}
			if err := applyOptions(&d, spec.Platform, spec.Timeout); err != nil {
				return nil, fmt.Errorf("element %s[%d]: %w", name, i, err)
			}
			el.Descriptors = append(el.Descriptors, d)
		}
		if len(el.Descriptors) == 0 {
			return nil, fmt.Errorf("element %s has no descriptors", name)
		}
		c.Add(el)
	}
	return c, nil
}

// HCL form:
//
//	element "login_submit" {
//	  locator {
//	    backend = "instrumented"
//	    using   = "key"
//	    value   = "login_submit"
//	  }
//	}
type hclCatalog struct {
	Elements []*hclElement `hcl:"element,block"`
}

type hclElement struct {
	Name     string        `hcl:"name,label"`
	Locators []*hclLocator `hcl:"locator,block"`
}

type hclLocator struct {
	Backend  string `hcl:"backend"`
	Using    string `hcl:"using"`
	Value    string `hcl:"value"`
	Platform string `hcl:"platform,optional"`
	Timeout  string `hcl:"timeout,optional"`
}

// ParseHCL parses an HCL catalog. filename is used in diagnostics.
func ParseHCL(data []byte, filename string) (*Catalog, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL catalog %s: %w", filename, diags)
	}

	var raw hclCatalog
	diags = gohcl.DecodeBody(file.Body, nil, &raw)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL catalog %s: %w", filename, diags)
	}

	c := NewCatalog()
	for _, e := range raw.Elements {
		el := Element{Name: e.Name}
		for i, l := range e.Locators {
			d := Descriptor{
				Backend: Kind(strings.ToLower(l.Backend)),
				Using:   l.Using,
				Value:   l.Value,
			}
			if err := applyOptions(&d, l.Platform, l.Timeout); err != nil {
				return nil, fmt.Errorf("element %s[%d]: %w", e.Name, i, err)
			}
			if err := d.Validate(); err != nil {
				return nil, fmt.Errorf("element %s[%d]: %w", e.Name, i, err)
			}
			el.Descriptors = append(el.Descriptors, d)
		}
		if len(el.Descriptors) == 0 {
			return nil, fmt.Errorf("element %s has no locators", e.Name)
		}
		c.Add(el)
	}
	return c, nil
}

func applyOptions(d *Descriptor, platform, timeout string) error {
	if platform != "" {
		d.Platform = strings.ToLower(platform)
	}
	if timeout != "" {
		t, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", timeout, err)
		}
		d.Timeout = t
	}
	return d.Validate()
}
