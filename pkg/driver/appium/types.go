package appium

import (
	"errors"
	"fmt"
)

// W3C WebDriver element identifier key (standard constant)
const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

// W3C error codes the harness reacts to.
const (
	ErrCodeNoSuchElement     = "no such element"
	ErrCodeStaleElement      = "stale element reference"
	ErrCodeInvalidSession    = "invalid session id"
	ErrCodeSessionNotCreated = "session not created"
	ErrCodeInvalidSelector   = "invalid selector"
	ErrCodeInvalidArgument   = "invalid argument"
)

// NewSessionRequest is the POST /session body.
type NewSessionRequest struct {
	Capabilities Capabilities `json:"capabilities"`
}

// Capabilities wraps the W3C capability match sets.
type Capabilities struct {
	AlwaysMatch map[string]interface{}   `json:"alwaysMatch"`
	FirstMatch  []map[string]interface{} `json:"firstMatch,omitempty"`
}

// Rect is an element rectangle as returned by /rect.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// WebDriverError is an error response from the server.
type WebDriverError struct {
	Status  int    // HTTP status
	Code    string // W3C error code, e.g. "no such element"
	Message string
}

func (e *WebDriverError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorCode returns the W3C error code of err, or "" when err is not a WebDriverError.
func ErrorCode(err error) string {
	var wdErr *WebDriverError
	if errors.As(err, &wdErr) {
		return wdErr.Code
	}
	return ""
}

// IsNoSuchElement reports whether err means the lookup matched nothing.
func IsNoSuchElement(err error) bool {
	return ErrorCode(err) == ErrCodeNoSuchElement
}

// IsUnsupportedStrategy reports whether the server rejected the locator
// strategy itself, as happens when the Flutter driver is not attached.
func IsUnsupportedStrategy(err error) bool {
	switch ErrorCode(err) {
	case ErrCodeInvalidSelector, ErrCodeInvalidArgument:
		return true
	}
	return false
}

func extractElementID(value map[string]interface{}) string {
	// W3C format
	if id, ok := value[w3cElementKey].(string); ok {
		return id
	}
	// Legacy format
	if id, ok := value["ELEMENT"].(string); ok {
		return id
	}
	return ""
}
