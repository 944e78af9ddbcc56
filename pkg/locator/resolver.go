package locator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/devicelab-dev/appium-harness/pkg/core"
	"github.com/devicelab-dev/appium-harness/pkg/logger"
	"github.com/devicelab-dev/appium-harness/pkg/wait"
)

// Outcome of one descriptor attempt.
type Outcome string

const (
	Found       Outcome = "found"
	NotFound    Outcome = "not_found"
	Unavailable Outcome = "unavailable"
)

// Attempt records how one descriptor fared during a resolution.
type Attempt struct {
	Descriptor Descriptor
	Outcome    Outcome
	Polls      int
	Duration   time.Duration
	Err        error
}

func (a Attempt) String() string {
	s := fmt.Sprintf("%s: %s after %d polls in %s", a.Descriptor, a.Outcome, a.Polls, a.Duration.Round(time.Millisecond))
	if a.Err != nil && a.Outcome != Found {
		s += " (" + a.Err.Error() + ")"
	}
	return s
}

// NotFoundError is returned when every descriptor of an element failed.
// It matches core.ErrElementNotFound.
type NotFoundError struct {
	Element  string
	Attempts []Attempt
}

func (e *NotFoundError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("element %q not found: no descriptor applies to this platform", e.Element)
	}
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = a.String()
	}
	return fmt.Sprintf("element %q not found; tried %s", e.Element, strings.Join(parts, "; "))
}

// Is matches core.ErrElementNotFound.
func (e *NotFoundError) Is(target error) bool {
	t, ok := target.(*core.ExecutionError)
	return ok && t.Code == core.ErrElementNotFound.Code
}

// ErrorCategory classifies the error for core.CategoryOf.
func (e *NotFoundError) ErrorCategory() core.ErrorCategory {
	return core.ErrElementNotFound.Category
}

// Descriptors returns the attempted descriptors in order.
func (e *NotFoundError) Descriptors() []Descriptor {
	out := make([]Descriptor, len(e.Attempts))
	for i, a := range e.Attempts {
		out[i] = a.Descriptor
	}
	return out
}

// DefaultLookupGrace is how long a lookup started at an attempt's deadline
// may still run.
const DefaultLookupGrace = time.Second

// Handle is a freshly resolved element. Do not keep it across waits.
type Handle struct {
	ID         string
	Descriptor Descriptor
	Attempts   []Attempt
}

// Resolver resolves elements against one session.
type Resolver struct {
	backends map[Kind]Backend
	elements ElementDriver
	platform string
	Poll     wait.Config
	// LookupGrace bounds how far a single lookup may run past the
	// attempt's deadline.
	LookupGrace time.Duration
}

// NewResolver creates a resolver. Backends are keyed by their Kind; a kind
// with no backend is recorded as unavailable when a descriptor needs it.
func NewResolver(platform string, elements ElementDriver, poll wait.Config, backends ...Backend) *Resolver {
	r := &Resolver{
		backends:    make(map[Kind]Backend),
		elements:    elements,
		platform:    strings.ToLower(platform),
		Poll:        poll,
		LookupGrace: DefaultLookupGrace,
	}
	for _, b := range backends {
		r.backends[b.Kind()] = b
	}
	return r
}

// ForDriver wires both backends onto one automation client.
func ForDriver(d Driver, platform string, poll wait.Config) *Resolver {
	return NewResolver(platform, d, poll,
		NewInstrumentedBackend(d),
		NewNativeBackend(d, platform),
	)
}

// Platform returns the platform descriptors are filtered by.
func (r *Resolver) Platform() string {
	return r.platform
}

// Find walks the element's descriptors in order and returns the first one
// that resolves. Each descriptor is polled for its own timeout, or timeout
// when it has none.
func (r *Resolver) Find(el Element, timeout time.Duration) (*Handle, error) {
	var attempts []Attempt
	for _, d := range el.ForPlatform(r.platform) {
		id, attempt := r.attempt(d, timeout)
		attempts = append(attempts, attempt)
		if attempt.Outcome == Found {
			if len(attempts) > 1 {
				logger.WithFields(logger.Fields{
					"element":    el.Name,
					"descriptor": d.String(),
					"skipped":    len(attempts) - 1,
				}).Info("resolved via fallback descriptor")
			}
			return &Handle{ID: id, Descriptor: d, Attempts: attempts}, nil
		}
		logger.Debug("%s: %s", el.Name, attempt)
	}
	return nil, &NotFoundError{Element: el.Name, Attempts: attempts}
}

func (r *Resolver) attempt(d Descriptor, timeout time.Duration) (string, Attempt) {
	attempt := Attempt{Descriptor: d}
	backend, ok := r.backends[d.Backend]
	if !ok {
		attempt.Outcome = Unavailable
		attempt.Err = core.ErrBackendUnavailable.WithMessage(fmt.Sprintf("no %s backend configured", d.Backend))
		return "", attempt
	}

	if d.Timeout > 0 {
		timeout = d.Timeout
	}
	if timeout <= 0 {
		timeout = time.Nanosecond // a single lookup
	}
	deadline := time.Now().Add(timeout)
	var id string
	var unavailableErr error
	res, err := wait.Until(r.Poll.WithTimeout(timeout), func() error {
		ctx, cancel := r.lookupContext(deadline)
		defer cancel()
		found, err := backend.Lookup(ctx, d)
		if errors.Is(err, core.ErrBackendUnavailable) {
			unavailableErr = err
			return nil
		}
		if err != nil {
			return err
		}
		id = found
		return nil
	})
	attempt.Polls = res.Polls
	attempt.Duration = res.Elapsed

	switch {
	case unavailableErr != nil:
		attempt.Outcome = Unavailable
		attempt.Err = unavailableErr
	case err != nil:
		attempt.Outcome = NotFound
		attempt.Err = err
	default:
		attempt.Outcome = Found
	}
	return id, attempt
}

func (r *Resolver) lookupContext(deadline time.Time) (context.Context, context.CancelFunc) {
	return context.WithDeadline(context.Background(), deadline.Add(r.LookupGrace))
}

// IsPresent reports whether the element resolves within timeout. It never errors.
func (r *Resolver) IsPresent(el Element, timeout time.Duration) bool {
	_, err := r.Find(el, timeout)
	return err == nil
}

// Tap waits for the element to be present, displayed and enabled, then clicks
// it. A failing state query ends the wait at once with an interaction error.
func (r *Resolver) Tap(el Element, timeout time.Duration) error {
	start := time.Now()
	h, err := r.Find(el, timeout)
	if err != nil {
		return err
	}

	remaining := timeout - time.Since(start)
	if remaining <= 0 {
		remaining = time.Nanosecond // a single check
	}
	var last *core.ElementInfo
	var infoErr error
	_, err = wait.True(r.Poll.WithTimeout(remaining), func() (bool, error) {
		info, err := r.elements.ElementInfo(h.ID)
		if err != nil {
			infoErr = err
			return false, wait.Stop(err)
		}
		last = info
		return info.Interactable(), nil
	})
	if infoErr != nil {
		return interactionError("tap", el, h, infoErr)
	}
	if err != nil {
		return core.ErrWaitTimeout.
			WithMessage(fmt.Sprintf("element %q never became interactable", el.Name)).
			WithCause(err).
			WithDetails(map[string]interface{}{"descriptor": h.Descriptor.String(), "state": last})
	}

	if err := r.elements.ClickElement(h.ID); err != nil {
		return interactionError("tap", el, h, err)
	}
	return nil
}

// EnterText clears the element and types text into it.
func (r *Resolver) EnterText(el Element, text string, timeout time.Duration) error {
	h, err := r.Find(el, timeout)
	if err != nil {
		return err
	}
	if err := r.elements.ClearElement(h.ID); err != nil {
		return interactionError("clear", el, h, err)
	}
	if err := r.elements.SendKeysToElement(h.ID, text); err != nil {
		return interactionError("type", el, h, err)
	}
	return nil
}

// ReadText returns the element's text, falling back to its text attribute.
func (r *Resolver) ReadText(el Element, timeout time.Duration) (string, error) {
	h, err := r.Find(el, timeout)
	if err != nil {
		return "", err
	}
	text, err := r.elements.GetElementText(h.ID)
	if err != nil {
		return "", interactionError("read text", el, h, err)
	}
	if text != "" {
		return text, nil
	}
	text, err = r.elements.GetElementAttribute(h.ID, "text")
	if err != nil {
		return "", interactionError("read text attribute", el, h, err)
	}
	return text, nil
}

// Attribute returns a named attribute of the element.
func (r *Resolver) Attribute(el Element, name string, timeout time.Duration) (string, error) {
	h, err := r.Find(el, timeout)
	if err != nil {
		return "", err
	}
	v, err := r.elements.GetElementAttribute(h.ID, name)
	if err != nil {
		return "", interactionError("read attribute "+name, el, h, err)
	}
	return v, nil
}

var errStillPresent = errors.New("element still present")

// WaitGone waits until no descriptor of the element resolves.
// Each poll looks every applicable descriptor up once.
func (r *Resolver) WaitGone(el Element, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = time.Nanosecond
	}
	deadline := time.Now().Add(timeout)
	_, err := wait.Until(r.Poll.WithTimeout(timeout), func() error {
		if r.anyResolves(el, deadline) {
			return errStillPresent
		}
		return nil
	})
	if err != nil {
		return core.ErrWaitTimeout.
			WithMessage(fmt.Sprintf("element %q still present after %s", el.Name, timeout)).
			WithCause(errStillPresent)
	}
	return nil
}

// anyResolves reports whether any descriptor resolves on a single lookup.
func (r *Resolver) anyResolves(el Element, deadline time.Time) bool {
	ctx, cancel := r.lookupContext(deadline)
	defer cancel()
	for _, d := range el.ForPlatform(r.platform) {
		backend, ok := r.backends[d.Backend]
		if !ok {
			continue
		}
		if _, err := backend.Lookup(ctx, d); err == nil {
			return true
		}
	}
	return false
}

func interactionError(action string, el Element, h *Handle, cause error) error {
	return core.ErrInteraction.
		WithMessage(fmt.Sprintf("%s %q failed", action, el.Name)).
		WithCause(cause).
		WithDetails(map[string]interface{}{
			"descriptor": h.Descriptor.String(),
			"element_id": h.ID,
		})
}
