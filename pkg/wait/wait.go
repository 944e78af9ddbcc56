// Package wait provides the bounded polling used by element resolution and
// the session settle sequence.
package wait

import (
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/devicelab-dev/appium-harness/pkg/core"
)

// Defaults used when a Config field is zero.
const (
	DefaultTimeout  = 10 * time.Second
	DefaultInterval = 250 * time.Millisecond
)

// errNotYet is returned by conditions that are not met but have no error.
var errNotYet = errors.New("condition not met")

// Config bounds a polling loop.
type Config struct {
	Timeout  time.Duration
	Interval time.Duration
}

func (c Config) normalize() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	return c
}

// WithTimeout returns a copy with the given timeout.
func (c Config) WithTimeout(d time.Duration) Config {
	c.Timeout = d
	return c
}

// Result describes a finished polling loop.
type Result struct {
	Polls   int
	Elapsed time.Duration
}

// Until calls cond every Interval until it returns nil or Timeout elapses.
// cond always runs at least once and runs one last time at the deadline.
// On timeout the returned error matches core.ErrWaitTimeout and wraps the
// last error from cond. An error wrapped with Stop ends the loop at once and
// is returned as is.
func Until(cfg Config, cond func() error) (Result, error) {
	cfg = cfg.normalize()

	start := time.Now()
	var res Result
	var lastErr error
	var stopped *backoff.PermanentError
	op := func() error {
		res.Polls++
		lastErr = cond()
		if errors.As(lastErr, &stopped) {
			return stopped
		}
		return lastErr
	}

	_ = backoff.Retry(op, &deadlineBackOff{interval: cfg.Interval, deadline: start.Add(cfg.Timeout)})
	res.Elapsed = time.Since(start)

	if stopped != nil {
		return res, stopped.Err
	}
	if lastErr == nil {
		return res, nil
	}
	return res, core.ErrWaitTimeout.
		WithMessage(fmt.Sprintf("condition not met within %s after %d polls", cfg.Timeout, res.Polls)).
		WithCause(lastErr)
}

// Stop marks err as final: Until and True return it without polling again.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// deadlineBackOff waits a constant interval, shortened so that the last
// wait ends exactly at the deadline.
type deadlineBackOff struct {
	interval time.Duration
	deadline time.Time
}

func (b *deadlineBackOff) Reset() {}

func (b *deadlineBackOff) NextBackOff() time.Duration {
	left := time.Until(b.deadline)
	if left <= 0 {
		return backoff.Stop
	}
	if left < b.interval {
		return left
	}
	return b.interval
}

// True polls a boolean condition. Errors from cond are treated as "not yet"
// unless wrapped with Stop.
func True(cfg Config, cond func() (bool, error)) (Result, error) {
	return Until(cfg, func() error {
		ok, err := cond()
		if err != nil {
			return err
		}
		if !ok {
			return errNotYet
		}
		return nil
	})
}
