// Package core provides the shared error taxonomy and element/artifact types for appium-harness.
package core

import "errors"

// Attachment represents a debug artifact captured when a test fails
type Attachment struct {
	Name        string `json:"name"`        // Descriptive name: screenshot, source, hierarchy
	ContentType string `json:"contentType"` // MIME type: image/png, application/xml, application/json
	Path        string `json:"path"`        // File path relative to output directory
	Body        []byte `json:"-"`           // In-memory content (not serialized to JSON)
}

// Common attachment names
const (
	AttachmentScreenshot = "screenshot"
	AttachmentSource     = "source"
	AttachmentHierarchy  = "hierarchy"
)

// Common content types
const (
	ContentTypePNG  = "image/png"
	ContentTypeXML  = "application/xml"
	ContentTypeJSON = "application/json"
)

// NewScreenshotAttachment creates a screenshot attachment
func NewScreenshotAttachment(path string, data []byte) Attachment {
	return Attachment{
		Name:        AttachmentScreenshot,
		ContentType: ContentTypePNG,
		Path:        path,
		Body:        data,
	}
}

// NewSourceAttachment creates a raw UI tree (page source) attachment
func NewSourceAttachment(path string, data []byte) Attachment {
	return Attachment{
		Name:        AttachmentSource,
		ContentType: ContentTypeXML,
		Path:        path,
		Body:        data,
	}
}

// NewHierarchyAttachment creates a parsed UI hierarchy attachment
func NewHierarchyAttachment(path string, data []byte) Attachment {
	return Attachment{
		Name:        AttachmentHierarchy,
		ContentType: ContentTypeJSON,
		Path:        path,
		Body:        data,
	}
}

// ArtifactConfig controls when and what artifacts are captured
type ArtifactConfig struct {
	// When to capture
	CaptureOnFailure bool `yaml:"captureOnFailure" json:"captureOnFailure"` // Default: true
	CaptureOnTimeout bool `yaml:"captureOnTimeout" json:"captureOnTimeout"` // Default: true

	// What to capture
	Screenshot  bool `yaml:"screenshot" json:"screenshot"`   // Default: true
	UIHierarchy bool `yaml:"uiHierarchy" json:"uiHierarchy"` // Default: true
}

// DefaultArtifactConfig returns sensible defaults for artifact capture
func DefaultArtifactConfig() ArtifactConfig {
	return ArtifactConfig{
		CaptureOnFailure: true,
		CaptureOnTimeout: true,
		Screenshot:       true,
		UIHierarchy:      true,
	}
}

// ShouldCapture returns true if artifacts should be captured for a test that ended with err
func (c ArtifactConfig) ShouldCapture(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrWaitTimeout) {
		return c.CaptureOnTimeout
	}
	if CategoryOf(err) == ErrCategoryTeardown {
		return false
	}
	return c.CaptureOnFailure
}

// ArtifactSource is what the reporting layer reads from a live session.
type ArtifactSource interface {
	// Screenshot captures the current screen as PNG
	Screenshot() ([]byte, error)

	// Source returns the native UI tree (page source XML)
	Source() (string, error)
}
