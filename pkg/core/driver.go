package core

// ElementInfo represents information about a resolved UI element
type ElementInfo struct {
	ID         string            `json:"id,omitempty"`
	Text       string            `json:"text,omitempty"`
	Bounds     Bounds            `json:"bounds"`
	Visible    bool              `json:"visible"`
	Enabled    bool              `json:"enabled"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Interactable reports whether the element can receive a tap.
func (e *ElementInfo) Interactable() bool {
	return e != nil && e.Visible && e.Enabled
}

// Bounds represents element position and size
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the center point of the bounds
func (b Bounds) Center() (int, int) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Contains checks if a point is within the bounds
func (b Bounds) Contains(x, y int) bool {
	return x >= b.X && x < b.X+b.Width && y >= b.Y && y < b.Y+b.Height
}

// PlatformInfo contains device and platform details of a live session
type PlatformInfo struct {
	Platform       string `json:"platform"`               // ios, android
	OSVersion      string `json:"osVersion"`              // e.g., "16.4", "34"
	DeviceName     string `json:"deviceName"`             // e.g., "iPhone 13", "Android Emulator"
	AutomationName string `json:"automationName"`         // UiAutomator2, XCUITest, Flutter
	ScreenWidth    int    `json:"screenWidth,omitempty"`  // Screen width in pixels
	ScreenHeight   int    `json:"screenHeight,omitempty"` // Screen height in pixels
	AppID          string `json:"appId,omitempty"`        // Bundle ID / Package name
}
