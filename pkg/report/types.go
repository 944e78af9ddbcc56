// Package report records session runs and their failure artifacts.
//
// Layout under the output directory:
//   - report.json: index of every run (small, rewritten atomically)
//   - runs/<run-id>.json: one record per run
//   - assets/: screenshots, page sources and parsed hierarchies
package report

import (
	"errors"
	"time"

	"github.com/devicelab-dev/appium-harness/pkg/core"
	"github.com/devicelab-dev/appium-harness/pkg/locator"
)

// Version is the report schema version.
const Version = "1.0.0"

// Status represents the outcome of a run.
type Status string

// Status values.
const (
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusSkipped
}

// ============================================================================
// INDEX (report.json)
// ============================================================================

// Index lists every recorded run.
type Index struct {
	Version     string     `json:"version"`
	UpdateSeq   uint64     `json:"updateSeq"`
	Status      Status     `json:"status"`
	LastUpdated time.Time  `json:"lastUpdated"`
	Summary     Summary    `json:"summary"`
	Runs        []RunEntry `json:"runs"`
}

// Summary contains aggregated counts.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// RunEntry is the index entry for a run.
type RunEntry struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	DataFile string  `json:"dataFile"` // runs/<id>.json
	Status   Status  `json:"status"`
	Duration int64   `json:"duration"` // milliseconds
	Error    *string `json:"error,omitempty"`
}

// ============================================================================
// RUN RECORD (runs/<id>.json)
// ============================================================================

// Record is the full account of one session run.
type Record struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Status      Status                 `json:"status"`
	StartTime   time.Time              `json:"startTime"`
	EndTime     time.Time              `json:"endTime"`
	Duration    int64                  `json:"duration"` // milliseconds
	Session     string                 `json:"session,omitempty"`
	Device      core.PlatformInfo      `json:"device"`
	Profile     map[string]interface{} `json:"profile,omitempty"`
	Error       *Error                 `json:"error,omitempty"`
	Attachments []core.Attachment      `json:"attachments,omitempty"`
}

// Finish stamps the end time, duration and status from err.
func (r *Record) Finish(end time.Time, err error) {
	r.EndTime = end
	r.Duration = end.Sub(r.StartTime).Milliseconds()
	if err != nil {
		r.Status = StatusFailed
		r.Error = ErrorFrom(err)
		return
	}
	r.Status = StatusPassed
}

// Error contains error details.
type Error struct {
	Type    string                 `json:"type"` // core.ErrorCategory name
	Code    string                 `json:"code,omitempty"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ErrorFrom converts err, keeping the code and details of an ExecutionError
// or the attempts of a NotFoundError in its chain.
func ErrorFrom(err error) *Error {
	if err == nil {
		return nil
	}
	e := &Error{Type: core.CategoryOf(err).String(), Message: err.Error()}
	var ee *core.ExecutionError
	var nf *locator.NotFoundError
	switch {
	case errors.As(err, &ee):
		e.Code = ee.Code
		e.Details = ee.Details
	case errors.As(err, &nf):
		e.Code = core.ErrElementNotFound.Code
		attempts := make([]string, len(nf.Attempts))
		for i, a := range nf.Attempts {
			attempts[i] = a.String()
		}
		e.Details = map[string]interface{}{"element": nf.Element, "attempts": attempts}
	}
	return e
}
