package locator

import (
	"context"

	"github.com/devicelab-dev/appium-harness/pkg/core"
)

// Backend resolves a descriptor to a live element id.
// Lookup returns an error matching core.ErrBackendUnavailable when the
// backend cannot serve lookups at all; any other error means "not yet found".
// A lookup still running when ctx is done is abandoned.
type Backend interface {
	Kind() Kind
	Lookup(ctx context.Context, d Descriptor) (string, error)
}

// Finder is the element lookup surface of the automation client.
type Finder interface {
	FindElementContext(ctx context.Context, strategy, value string) (string, error)
}

// ElementDriver acts on resolved elements.
type ElementDriver interface {
	ClickElement(elementID string) error
	ClearElement(elementID string) error
	SendKeysToElement(elementID, text string) error
	GetElementText(elementID string) (string, error)
	GetElementAttribute(elementID, name string) (string, error)
	ElementInfo(elementID string) (*core.ElementInfo, error)
}

// Driver is what a Resolver needs from the automation client.
type Driver interface {
	Finder
	ElementDriver
}

func unavailable(kind Kind, cause error) error {
	return core.ErrBackendUnavailable.
		WithMessage(string(kind) + " backend unavailable").
		WithCause(cause)
}
