package page

import (
	"errors"

	"github.com/devicelab-dev/appium-harness/pkg/logger"
	"github.com/devicelab-dev/appium-harness/pkg/session"
)

// ErrLandingNotReached is returned by Startup when neither landing action
// appeared after the splash and onboarding were handled.
var ErrLandingNotReached = errors.New("landing screen not reached")

// Startup walks splash, onboarding and landing so every test starts from
// the same screen. It implements session.Settler.
type Startup struct{}

var _ session.Settler = Startup{}

// Settle runs the startup sequence. Onboarding is retried once when the
// landing screen does not show.
func (Startup) Settle(s *session.Session) error {
	if err := (Splash{S: s}).WaitToComplete(s.Timeout); err != nil {
		logger.Warn("splash: %v", err)
	}

	onboarding := Onboarding{S: s}
	landing := Landing{S: s}
	for try := 0; try < 2; try++ {
		skipped, err := onboarding.SkipIfPresent()
		if err != nil {
			logger.Warn("onboarding: %v", err)
		}
		if skipped {
			logger.Info("skipped onboarding")
		}
		if landing.EnsureLoaded(s.Settle) {
			return nil
		}
	}
	return ErrLandingNotReached
}
