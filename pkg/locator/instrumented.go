package locator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/devicelab-dev/appium-harness/pkg/driver/appium"
)

// FlutterStrategy is the locator strategy the Flutter driver registers.
const FlutterStrategy = "-flutter"

// InstrumentedBackend finds elements in the Flutter widget tree.
type InstrumentedBackend struct {
	finder Finder
}

// NewInstrumentedBackend creates the Flutter-tree backend.
func NewInstrumentedBackend(f Finder) *InstrumentedBackend {
	return &InstrumentedBackend{finder: f}
}

// Kind implements Backend.
func (b *InstrumentedBackend) Kind() Kind { return Instrumented }

// Lookup implements Backend. A server that rejects the -flutter strategy
// has no Flutter driver attached and is reported as unavailable.
func (b *InstrumentedBackend) Lookup(ctx context.Context, d Descriptor) (string, error) {
	finder, err := EncodeFinder(d)
	if err != nil {
		return "", err
	}
	id, err := b.finder.FindElementContext(ctx, FlutterStrategy, finder)
	if err != nil {
		if appium.IsUnsupportedStrategy(err) {
			return "", unavailable(Instrumented, err)
		}
		return "", err
	}
	return id, nil
}

// EncodeFinder renders a descriptor as a base64 Flutter finder.
func EncodeFinder(d Descriptor) (string, error) {
	var finder map[string]interface{}
	switch d.Using {
	case ByKey:
		finder = map[string]interface{}{
			"finderType":     "ByValueKey",
			"keyValueString": d.Value,
			"keyValueType":   "String",
		}
	case ByText:
		finder = map[string]interface{}{"finderType": "ByText", "text": d.Value}
	case ByType:
		finder = map[string]interface{}{"finderType": "ByType", "type": d.Value}
	case ByTooltip:
		finder = map[string]interface{}{"finderType": "ByTooltipMessage", "text": d.Value}
	case BySemantics:
		finder = map[string]interface{}{"finderType": "BySemanticsLabel", "label": d.Value, "isRegExp": false}
	default:
		return "", fmt.Errorf("unsupported instrumented strategy %q", d.Using)
	}
	data, err := json.Marshal(finder)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
