package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/devicelab-dev/appium-harness/pkg/capability"
	"github.com/devicelab-dev/appium-harness/pkg/config"
	"github.com/devicelab-dev/appium-harness/pkg/core"
	"github.com/devicelab-dev/appium-harness/pkg/driver/appium"
	"github.com/devicelab-dev/appium-harness/pkg/locator"
	"github.com/devicelab-dev/appium-harness/pkg/logger"
	"github.com/devicelab-dev/appium-harness/pkg/wait"
)

// anyElement matches every node of the native tree.
const anyElement = "//*"

// Settler drives a freshly launched app to its landing screen.
type Settler interface {
	Settle(s *Session) error
}

// SettlerFunc adapts a function to Settler.
type SettlerFunc func(s *Session) error

// Settle calls f(s).
func (f SettlerFunc) Settle(s *Session) error { return f(s) }

// Capturer records failure artifacts from a live session.
type Capturer interface {
	Capture(src core.ArtifactSource, name string) ([]core.Attachment, error)
}

// Manager opens and closes sessions.
type Manager struct {
	Settings *config.Settings

	// Validate checks a profile before any remote call.
	Validate func(capability.Profile) *capability.Report
	// NewClient creates the automation client for a server URL.
	NewClient func(serverURL string) Client
	// Settle runs after the app has rendered. Optional.
	Settle Settler
	// Capture runs when a scoped test fails. Optional.
	Capture   Capturer
	Artifacts core.ArtifactConfig

	// NewRunID defaults to a random UUID.
	NewRunID func() string
	// Catalog overrides built-in element descriptors. Optional.
	Catalog *locator.Catalog
}

// NewManager returns a manager talking to a real Appium server.
func NewManager(settings *config.Settings) *Manager {
	if settings == nil {
		settings = config.Default()
	}
	return &Manager{
		Settings: settings,
		Validate: func(p capability.Profile) *capability.Report {
			return capability.Validate(p, capability.ValidateOptions{Bypass: settings.AllowMissingApp})
		},
		NewClient: func(serverURL string) Client {
			return appium.NewClient(serverURL)
		},
		Artifacts: core.DefaultArtifactConfig(),
		NewRunID:  uuid.NewString,
	}
}

func (m *Manager) poll(timeout time.Duration) wait.Config {
	return wait.Config{Timeout: timeout, Interval: m.Settings.Waits.Interval.Std()}
}

// Open validates the profile, checks that the server is ready, creates the
// remote session and waits for the app to settle. Session creation is never
// retried.
func (m *Manager) Open(profile capability.Profile) (*Session, error) {
	runID := m.NewRunID()
	log := logger.WithFields(logger.Fields{
		"run":         runID,
		"platform":    profile.Platform,
		"environment": profile.Environment,
	})

	for _, w := range profile.Warnings {
		log.Warn(w)
	}
	if m.Validate != nil {
		report := m.Validate(profile)
		for _, p := range report.Warnings() {
			log.Warnf("validation bypassed: %s", p)
		}
		if err := report.Err(); err != nil {
			log.Errorf("validation failed: %v", err)
			return nil, err
		}
	}

	s := &Session{
		RunID:    runID,
		Platform: profile.Platform,
		AppID:    profile.AppID,
		State:    core.SessionOpening,
		Profile:  profile,
		Timeout:  m.Settings.Waits.Find.Std(),
		Settle:   m.Settings.Waits.Settle.Std(),
		Catalog:  m.Catalog,
		client:   m.NewClient(profile.ServerURL),
	}

	if err := s.client.Status(); err != nil {
		log.Errorf("server not reachable: %v", err)
		return nil, core.ErrSessionCreation.
			WithMessage(fmt.Sprintf("appium server at %s is not ready", profile.ServerURL)).
			WithCause(err).
			WithDetails(map[string]interface{}{"profile": profile.Snapshot()})
	}

	log.Infof("creating session on %s", profile.ServerURL)
	if err := s.client.Connect(profile.Capabilities()); err != nil {
		return nil, core.ErrSessionCreation.
			WithMessage(fmt.Sprintf("could not create session on %s", profile.ServerURL)).
			WithCause(err).
			WithDetails(map[string]interface{}{"profile": profile.Snapshot()})
	}
	s.Handle = s.client.SessionID()
	s.Resolver = locator.ForDriver(s.client, string(profile.Platform), m.poll(s.Timeout))
	log = log.WithField("session", s.Handle)
	log.Info("session created")

	launch := m.Settings.Waits.Launch.Std()
	_, err := wait.True(m.poll(launch), func() (bool, error) {
		ids, err := s.client.FindElements("xpath", anyElement)
		return len(ids) > 0, err
	})
	if err != nil {
		m.Close(s)
		return nil, core.ErrWaitTimeout.
			WithMessage(fmt.Sprintf("app rendered nothing within %s", launch)).
			WithCause(err).
			WithDetails(map[string]interface{}{"profile": profile.Snapshot()})
	}

	if m.Settle != nil {
		if err := m.Settle.Settle(s); err != nil {
			log.Warnf("startup sequence incomplete: %v", err)
		}
	}

	s.State = core.SessionReady
	return s, nil
}

// Close ends the remote session. Errors are logged and suppressed; calling
// Close again is a no-op.
func (m *Manager) Close(s *Session) {
	if s == nil || s.State == core.SessionClosed {
		return
	}
	handle := s.Handle
	if err := s.client.Disconnect(); err != nil {
		te := core.ErrTeardown.
			WithCause(err).
			WithDetails(map[string]interface{}{"session": handle})
		logger.WithFields(logger.Fields{"run": s.RunID, "session": handle}).Warn(te.Error())
	}
	s.Handle = ""
	s.State = core.SessionClosed
	logger.WithFields(logger.Fields{"run": s.RunID, "session": handle}).Info("session closed")
}

// Run opens a session, runs fn and closes the session exactly once, also
// when fn panics. Artifacts are captured before close when fn fails.
func (m *Manager) Run(profile capability.Profile, fn func(*Session) error) error {
	s, err := m.Open(profile)
	if err != nil {
		return err
	}
	defer m.Close(s)
	defer func() {
		if r := recover(); r != nil {
			m.captureFailure(s, fmt.Errorf("panic: %v", r))
			panic(r)
		}
	}()

	if err := fn(s); err != nil {
		m.captureFailure(s, err)
		return err
	}
	return nil
}

func (m *Manager) captureFailure(s *Session, cause error) {
	if m.Capture == nil || !m.Artifacts.ShouldCapture(cause) {
		return
	}
	atts, err := m.Capture.Capture(s, s.RunID)
	s.Attachments = append(s.Attachments, atts...)
	if err != nil {
		logger.Warn("artifact capture for %s incomplete: %v", s.RunID, err)
	}
}
