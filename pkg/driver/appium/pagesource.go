package appium

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/devicelab-dev/appium-harness/pkg/core"
)

// ParsedElement is one node of a page source tree.
// Handles both iOS and Android formats.
type ParsedElement struct {
	// Common
	Bounds    core.Bounds      `json:"bounds"`
	Enabled   bool             `json:"enabled"`
	Displayed bool             `json:"displayed"`
	Clickable bool             `json:"clickable,omitempty"`
	Depth     int              `json:"-"`
	Children  []*ParsedElement `json:"children,omitempty"`

	// Android
	Text        string `json:"text,omitempty"`
	ResourceID  string `json:"resourceId,omitempty"`
	ContentDesc string `json:"contentDesc,omitempty"`
	HintText    string `json:"hint,omitempty"`
	ClassName   string `json:"class,omitempty"`

	// iOS
	Type  string `json:"type,omitempty"`  // XCUIElementType
	Name  string `json:"name,omitempty"`  // accessibility identifier
	Label string `json:"label,omitempty"` // accessibility label
	Value string `json:"value,omitempty"` // current value
}

// Visible returns the human-readable text of the element on either platform.
func (e *ParsedElement) Visible() string {
	for _, s := range []string{e.Text, e.ContentDesc, e.Label, e.Name, e.Value, e.HintText} {
		if s != "" {
			return s
		}
	}
	return ""
}

// PageSource is a parsed UI tree.
type PageSource struct {
	Platform string           `json:"platform"`
	Roots    []*ParsedElement `json:"roots"`
	// Elements is the depth-first flattening of Roots.
	Elements []*ParsedElement `json:"-"`
}

// Texts returns the distinct visible texts in document order.
func (p *PageSource) Texts() []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range p.Elements {
		if t := e.Visible(); t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// ParsePageSource parses page source XML into a tree.
// Auto-detects iOS vs Android format.
func ParsePageSource(xmlData string) (*PageSource, error) {
	// Detect platform by checking for iOS-specific markers
	isIOS := strings.Contains(xmlData, "XCUIElementType") ||
		strings.Contains(xmlData, "AppiumAUT")

	platform, root, attrs := "android", "hierarchy", androidAttr
	if isIOS {
		platform, root, attrs = "ios", "AppiumAUT", iosAttr
	}

	roots, foundRoot, err := parseTree(xmlData, root, attrs, isIOS)
	if err != nil && len(roots) == 0 {
		return nil, err
	}
	if !isIOS && !foundRoot {
		return nil, fmt.Errorf("invalid page source: no hierarchy element found")
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("no elements found in page source")
	}

	ps := &PageSource{Platform: platform, Roots: roots}
	for _, r := range roots {
		ps.Elements = append(ps.Elements, flattenElement(r, 0)...)
	}
	return ps, nil
}

// parseTree walks the XML, skipping the platform root element.
func parseTree(xmlData, rootName string, apply func(*ParsedElement, xml.Attr), ios bool) ([]*ParsedElement, bool, error) {
	decoder := xml.NewDecoder(strings.NewReader(xmlData))
	foundRoot := false

	var parseElement func() (*ParsedElement, error)
	parseElement = func() (*ParsedElement, error) {
		for {
			token, err := decoder.Token()
			if err != nil {
				return nil, err
			}

			switch t := token.(type) {
			case xml.StartElement:
				if t.Name.Local == rootName && !foundRoot {
					foundRoot = true
					continue
				}

				elem := &ParsedElement{Enabled: true, Displayed: true}
				if ios {
					elem.Type = t.Name.Local
				} else {
					elem.ClassName = t.Name.Local
				}
				for _, attr := range t.Attr {
					apply(elem, attr)
				}

				// Parse children
				for {
					child, err := parseElement()
					if err != nil || child == nil {
						break
					}
					elem.Children = append(elem.Children, child)
				}
				return elem, nil

			case xml.EndElement:
				if t.Name.Local == rootName {
					continue
				}
				return nil, nil
			}
		}
	}

	var roots []*ParsedElement
	for {
		elem, err := parseElement()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return roots, foundRoot, nil
			}
			return roots, foundRoot, err
		}
		if elem != nil {
			roots = append(roots, elem)
		}
	}
}

func androidAttr(elem *ParsedElement, attr xml.Attr) {
	switch attr.Name.Local {
	case "text":
		elem.Text = attr.Value
	case "resource-id":
		elem.ResourceID = attr.Value
	case "content-desc":
		elem.ContentDesc = attr.Value
	case "hint":
		elem.HintText = attr.Value
	case "class":
		elem.ClassName = attr.Value
	case "bounds":
		elem.Bounds = parseBounds(attr.Value)
	case "enabled":
		elem.Enabled = attr.Value == "true"
	case "displayed":
		elem.Displayed = attr.Value != "false"
	case "clickable":
		elem.Clickable = attr.Value == "true"
	}
}

func iosAttr(elem *ParsedElement, attr xml.Attr) {
	switch attr.Name.Local {
	case "type":
		elem.Type = attr.Value
	case "name":
		elem.Name = attr.Value
	case "label":
		elem.Label = attr.Value
	case "value":
		elem.Value = attr.Value
	case "enabled":
		elem.Enabled = attr.Value == "true"
	case "visible":
		elem.Displayed = attr.Value == "true"
	case "placeholderValue":
		elem.HintText = attr.Value
	case "x":
		elem.Bounds.X = atoi(attr.Value)
	case "y":
		elem.Bounds.Y = atoi(attr.Value)
	case "width":
		elem.Bounds.Width = atoi(attr.Value)
	case "height":
		elem.Bounds.Height = atoi(attr.Value)
	}
}

func atoi(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}

// flattenElement flattens a tree of elements into a list, setting depth.
func flattenElement(elem *ParsedElement, depth int) []*ParsedElement {
	elem.Depth = depth
	result := []*ParsedElement{elem}
	for _, child := range elem.Children {
		result = append(result, flattenElement(child, depth+1)...)
	}
	return result
}

// parseBounds parses Android bounds string "[x1,y1][x2,y2]".
func parseBounds(s string) core.Bounds {
	s = strings.ReplaceAll(s, "][", ",")
	s = strings.Trim(s, "[]")
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return core.Bounds{}
	}

	x1, _ := strconv.Atoi(parts[0])
	y1, _ := strconv.Atoi(parts[1])
	x2, _ := strconv.Atoi(parts[2])
	y2, _ := strconv.Atoi(parts[3])

	return core.Bounds{
		X:      x1,
		Y:      y1,
		Width:  x2 - x1,
		Height: y2 - y1,
	}
}
