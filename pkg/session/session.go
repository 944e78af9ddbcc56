// Package session opens, settles and tears down automation sessions.
//
// A Session is created per test by Manager.Open and passed explicitly to the
// page layer. There is no process-wide session.
package session

import (
	"time"

	"github.com/devicelab-dev/appium-harness/pkg/capability"
	"github.com/devicelab-dev/appium-harness/pkg/core"
	"github.com/devicelab-dev/appium-harness/pkg/locator"
)

// Client is the automation client a session drives.
type Client interface {
	locator.Driver
	Status() error
	Connect(capabilities map[string]interface{}) error
	Disconnect() error
	SessionID() string
	Info() core.PlatformInfo
	FindElements(strategy, value string) ([]string, error)
	Screenshot() ([]byte, error)
	Source() (string, error)
	HideKeyboard() error
	Back() error
}

// Session is one live automation session.
type Session struct {
	// RunID identifies this execution in logs and artifact names.
	RunID string
	// Handle is the remote session id; empty once closed.
	Handle   string
	Platform capability.Platform
	AppID    string
	State    core.SessionState
	Profile  capability.Profile

	// Timeout is the default resolution timeout for page actions.
	Timeout time.Duration
	// Settle is the per-landmark timeout of the startup sequence.
	Settle time.Duration

	// Attachments holds failure artifacts captured by Manager.Run.
	Attachments []core.Attachment
	// Catalog overrides built-in elements by name. May be nil.
	Catalog *locator.Catalog

	*locator.Resolver
	client Client
}

// Screenshot captures the current screen as PNG.
func (s *Session) Screenshot() ([]byte, error) {
	if s.State == core.SessionClosed {
		return nil, core.ErrNoSession
	}
	return s.client.Screenshot()
}

// Source returns the native UI tree as XML.
func (s *Session) Source() (string, error) {
	if s.State == core.SessionClosed {
		return "", core.ErrNoSession
	}
	return s.client.Source()
}

// HideKeyboard dismisses the on-screen keyboard.
func (s *Session) HideKeyboard() error {
	if s.State == core.SessionClosed {
		return core.ErrNoSession
	}
	return s.client.HideKeyboard()
}

// Back presses the platform back control.
func (s *Session) Back() error {
	if s.State == core.SessionClosed {
		return core.ErrNoSession
	}
	if err := s.client.Back(); err != nil {
		return core.ErrInteraction.WithMessage("back navigation failed").WithCause(err)
	}
	return nil
}

// Info returns the device details reported by the server.
func (s *Session) Info() core.PlatformInfo {
	return s.client.Info()
}

// Ready reports whether the session accepts UI actions.
func (s *Session) Ready() bool {
	return s.State == core.SessionReady
}

// Element returns the catalog entry named like def, or def itself.
func (s *Session) Element(def locator.Element) locator.Element {
	if s.Catalog != nil {
		if el, ok := s.Catalog.Element(def.Name); ok {
			return el
		}
	}
	return def
}
