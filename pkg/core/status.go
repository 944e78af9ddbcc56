package core

// SessionState is the lifecycle state of an automation session.
type SessionState int

const (
	SessionOpening SessionState = iota // Validation and remote creation in progress
	SessionReady                       // Settled and accepting UI actions
	SessionClosed                      // Torn down; handle cleared
)

// String returns the string representation of SessionState
func (s SessionState) String() string {
	switch s {
	case SessionOpening:
		return "opening"
	case SessionReady:
		return "ready"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone        ErrorCategory = iota // No error
	ErrCategoryAssertion                        // Element not found in any backend
	ErrCategoryTimeout                          // Bounded wait expired
	ErrCategoryConnection                       // Session creation failed, backend unreachable
	ErrCategoryInteraction                      // Element found but the action failed
	ErrCategoryConfig                           // Missing artifact or platform prerequisite
	ErrCategoryTeardown                         // Session close failed (suppressed)
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryAssertion:
		return "assertion"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryConnection:
		return "connection"
	case ErrCategoryInteraction:
		return "interaction"
	case ErrCategoryConfig:
		return "config"
	case ErrCategoryTeardown:
		return "teardown"
	default:
		return "unknown"
	}
}

// IsFatal reports whether errors of this category should fail the current test.
// Teardown failures are the only category deliberately swallowed.
func (c ErrorCategory) IsFatal() bool {
	return c != ErrCategoryNone && c != ErrCategoryTeardown
}
