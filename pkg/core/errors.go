package core

import (
	"fmt"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: element_not_found, session_creation, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context (descriptor list, profile snapshot)
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an ExecutionError with the same code.
// Copies made with WithCause/WithDetails therefore still match their sentinel.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Predefined errors
var (
	// Configuration: missing artifact, missing platform prerequisite.
	ErrConfiguration = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "configuration",
		Message:  "invalid configuration",
	}

	// Session creation: backend unreachable, capability rejected.
	ErrSessionCreation = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     "session_creation",
		Message:  "could not create automation session",
	}
	ErrNoSession = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     "no_session",
		Message:  "no active automation session",
	}

	// Resolution
	ErrElementNotFound = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "element_not_found",
		Message:  "element not found",
	}
	ErrBackendUnavailable = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "backend_unavailable",
		Message:  "discovery backend unavailable",
	}

	// Interaction: element found but the action failed.
	ErrInteraction = &ExecutionError{
		Category: ErrCategoryInteraction,
		Code:     "interaction",
		Message:  "element interaction failed",
	}

	// Timeout
	ErrWaitTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "wait_timeout",
		Message:  "wait condition timed out",
	}

	// Teardown: logged and suppressed, never surfaces as a test failure.
	ErrTeardown = &ExecutionError{
		Category: ErrCategoryTeardown,
		Code:     "teardown",
		Message:  "session teardown failed",
	}
)

// NewExecutionError creates a new ExecutionError with the given parameters
func NewExecutionError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// CategoryOf returns the category of the first categorized error in err's chain.
func CategoryOf(err error) ErrorCategory {
	for err != nil {
		switch e := err.(type) {
		case *ExecutionError:
			return e.Category
		case interface{ ErrorCategory() ErrorCategory }:
			return e.ErrorCategory()
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return ErrCategoryNone
}
