package page

import (
	"fmt"
	"time"

	"github.com/devicelab-dev/appium-harness/pkg/locator"
	"github.com/devicelab-dev/appium-harness/pkg/logger"
	"github.com/devicelab-dev/appium-harness/pkg/session"
)

// splashAppear bounds how long the splash logo is looked for before it is
// assumed to be gone already.
const splashAppear = 5 * time.Second

// Splash is the launch screen.
type Splash struct{ S *session.Session }

// WaitToComplete waits for the splash logo to go away. A splash that never
// shows up counts as complete.
func (p Splash) WaitToComplete(timeout time.Duration) error {
	appear := p.S.Settle
	if appear <= 0 || appear > splashAppear {
		appear = splashAppear
	}
	logo := p.S.Element(SplashLogo)
	if !p.S.IsPresent(logo, appear) {
		logger.Debug("splash not shown")
		return nil
	}
	return p.S.WaitGone(logo, timeout)
}

// Onboarding is the first-run interstitial.
type Onboarding struct{ S *session.Session }

// SkipIfPresent taps Skip when the interstitial is showing. It reports
// whether a tap happened.
func (p Onboarding) SkipIfPresent() (bool, error) {
	skip := p.S.Element(OnboardingSkip)
	if !p.S.IsPresent(skip, p.S.Settle) {
		return false, nil
	}
	if err := p.S.Tap(skip, p.S.Timeout); err != nil {
		return false, err
	}
	return true, nil
}

// Landing offers Sign In and Register.
type Landing struct{ S *session.Session }

// EnsureLoaded reports whether either landing action is on screen.
func (p Landing) EnsureLoaded(timeout time.Duration) bool {
	return p.S.IsPresent(p.S.Element(LandingSignIn), timeout) ||
		p.S.IsPresent(p.S.Element(LandingRegister), timeout)
}

// GotoLogin taps Sign In.
func (p Landing) GotoLogin() (Login, error) {
	if err := p.S.Tap(p.S.Element(LandingSignIn), p.S.Timeout); err != nil {
		return Login{}, err
	}
	return Login{S: p.S}, nil
}

// GotoRegister taps Register.
func (p Landing) GotoRegister() (Registration, error) {
	if err := p.S.Tap(p.S.Element(LandingRegister), p.S.Timeout); err != nil {
		return Registration{}, err
	}
	return Registration{S: p.S}, nil
}

// hideKeyboard dismisses the keyboard so it does not cover the next control.
// There may be no keyboard to hide, so failures are only logged.
func hideKeyboard(s *session.Session) {
	if err := s.HideKeyboard(); err != nil {
		logger.Debug("hide keyboard: %v", err)
	}
}

// Login is the email/password form.
type Login struct{ S *session.Session }

// Fill enters both credentials and hides the keyboard.
func (p Login) Fill(email, password string) error {
	if err := p.S.EnterText(p.S.Element(LoginEmail), email, p.S.Timeout); err != nil {
		return fmt.Errorf("email: %w", err)
	}
	if err := p.S.EnterText(p.S.Element(LoginPassword), password, p.S.Timeout); err != nil {
		return fmt.Errorf("password: %w", err)
	}
	hideKeyboard(p.S)
	return nil
}

// GotoRegister follows the link to the registration form.
func (p Login) GotoRegister() (Registration, error) {
	if err := p.S.Tap(p.S.Element(LoginRegisterLink), p.S.Timeout); err != nil {
		return Registration{}, err
	}
	return Registration{S: p.S}, nil
}

// GotoForgotPassword follows the forgot-password link.
func (p Login) GotoForgotPassword() (ForgotPassword, error) {
	hideKeyboard(p.S)
	if err := p.S.Tap(p.S.Element(LoginForgotPassword), p.S.Timeout); err != nil {
		return ForgotPassword{}, err
	}
	return ForgotPassword{S: p.S}, nil
}

// Submit taps the login button.
func (p Login) Submit() error {
	return p.S.Tap(p.S.Element(LoginSubmit), p.S.Timeout)
}

// RegistrationForm holds the sign-up fields. Empty fields are left untouched.
// ConfirmPassword defaults to Password.
type RegistrationForm struct {
	FirstName       string
	LastName        string
	Email           string
	Phone           string
	Password        string
	ConfirmPassword string
}

// Registration is the sign-up form.
type Registration struct{ S *session.Session }

// Fill enters every non-empty field of form, in screen order.
func (p Registration) Fill(form RegistrationForm) error {
	if form.ConfirmPassword == "" {
		form.ConfirmPassword = form.Password
	}
	fields := []struct {
		el    locator.Element
		value string
	}{
		{RegisterFirstName, form.FirstName},
		{RegisterLastName, form.LastName},
		{RegisterEmail, form.Email},
		{RegisterPhone, form.Phone},
		{RegisterPassword, form.Password},
		{RegisterConfirmPassword, form.ConfirmPassword},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		el := p.S.Element(f.el)
		if err := p.S.EnterText(el, f.value, p.S.Timeout); err != nil {
			return fmt.Errorf("%s: %w", el.Name, err)
		}
	}
	hideKeyboard(p.S)
	return nil
}

// Submit taps the register button.
func (p Registration) Submit() error {
	return p.S.Tap(p.S.Element(RegisterSubmit), p.S.Timeout)
}

// GotoLogin follows the link back to the login form.
func (p Registration) GotoLogin() (Login, error) {
	if err := p.S.Tap(p.S.Element(RegisterLoginLink), p.S.Timeout); err != nil {
		return Login{}, err
	}
	return Login{S: p.S}, nil
}

// ForgotPassword asks for the account email to send a reset link to.
type ForgotPassword struct{ S *session.Session }

// Fill enters the account email.
func (p ForgotPassword) Fill(email string) error {
	if err := p.S.EnterText(p.S.Element(ForgotEmail), email, p.S.Timeout); err != nil {
		return err
	}
	hideKeyboard(p.S)
	return nil
}

// Submit taps the submit button.
func (p ForgotPassword) Submit() error {
	return p.S.Tap(p.S.Element(ForgotSubmit), p.S.Timeout)
}

// Back returns to the login form with the platform back control.
func (p ForgotPassword) Back() (Login, error) {
	if err := p.S.Back(); err != nil {
		return Login{}, err
	}
	return Login{S: p.S}, nil
}

// ErrorDialog is the generic error alert.
type ErrorDialog struct{ S *session.Session }

// IsVisible reports whether the dialog message shows within timeout.
func (p ErrorDialog) IsVisible(timeout time.Duration) bool {
	return p.S.IsPresent(p.S.Element(ErrorDialogMessage), timeout)
}

// Message returns the dialog text.
func (p ErrorDialog) Message() (string, error) {
	return p.S.ReadText(p.S.Element(ErrorDialogMessage), p.S.Timeout)
}

// Dismiss taps OK and waits for the dialog to close.
func (p ErrorDialog) Dismiss() error {
	if err := p.S.Tap(p.S.Element(ErrorDialogOK), p.S.Timeout); err != nil {
		return err
	}
	return p.S.WaitGone(p.S.Element(ErrorDialogMessage), p.S.Timeout)
}

// Dashboard is the signed-in home screen.
type Dashboard struct{ S *session.Session }

// IsLoaded reports whether the welcome banner shows within timeout.
func (p Dashboard) IsLoaded(timeout time.Duration) bool {
	return p.S.IsPresent(p.S.Element(DashboardWelcome), timeout)
}

// WelcomeMessage returns the banner text.
func (p Dashboard) WelcomeMessage() (string, error) {
	return p.S.ReadText(p.S.Element(DashboardWelcome), p.S.Timeout)
}
