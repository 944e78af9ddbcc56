// Package appium is a thin W3C WebDriver client for an Appium server.
package appium

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/devicelab-dev/appium-harness/pkg/core"
)

// Client handles HTTP communication with Appium server.
type Client struct {
	serverURL string
	sessionID string
	client    *http.Client
	info      core.PlatformInfo
}

// NewClient creates a new Appium client.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: strings.TrimSuffix(serverURL, "/"),
		client: &http.Client{
			Timeout: 5 * time.Minute, // Long timeout for install/screenshot
		},
	}
}

// Status checks that the server is reachable and ready.
func (c *Client) Status() error {
	resp, err := c.get("/status")
	if err != nil {
		return err
	}
	if value, ok := resp["value"].(map[string]interface{}); ok {
		if ready, ok := value["ready"].(bool); ok && !ready {
			msg, _ := value["message"].(string)
			return fmt.Errorf("server not ready: %s", msg)
		}
	}
	return nil
}

// Connect creates a new session with the given alwaysMatch capabilities.
// The map is not modified.
func (c *Client) Connect(capabilities map[string]interface{}) error {
	resp, err := c.post("/session", NewSessionRequest{
		Capabilities: Capabilities{AlwaysMatch: capabilities},
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	value, ok := resp["value"].(map[string]interface{})
	if !ok {
		return fmt.Errorf("invalid session response")
	}

	c.sessionID, _ = value["sessionId"].(string)
	if c.sessionID == "" {
		return fmt.Errorf("no session ID in response")
	}

	c.info = core.PlatformInfo{}
	caps, _ := value["capabilities"].(map[string]interface{})
	if caps == nil {
		caps = capabilities
	}
	c.info.Platform = strings.ToLower(stringCap(caps, "platformName"))
	c.info.OSVersion = stringCap(caps, "platformVersion")
	c.info.DeviceName = stringCap(caps, "deviceName")
	c.info.AutomationName = stringCap(caps, "automationName")
	c.info.AppID = stringCap(caps, "appPackage")
	if c.info.AppID == "" {
		c.info.AppID = stringCap(caps, "bundleId")
	}

	c.fetchScreenSize()

	// Don't let the instrumentation wait for idle before every lookup; the
	// harness does its own bounded polling. Best effort.
	settings := map[string]interface{}{"waitForIdleTimeout": 0}
	if c.info.Platform == "ios" {
		settings["animationCoolOffTimeout"] = 0
	} else {
		settings["waitForSelectorTimeout"] = 0
	}
	_ = c.SetSettings(settings)

	return nil
}

// stringCap reads a capability with or without the appium: prefix.
func stringCap(caps map[string]interface{}, key string) string {
	if v, ok := caps[key].(string); ok {
		return v
	}
	v, _ := caps["appium:"+key].(string)
	return v
}

// Disconnect closes the session. The session ID is cleared even on error.
func (c *Client) Disconnect() error {
	if c.sessionID == "" {
		return nil
	}
	_, err := c.delete(c.sessionPath())
	c.sessionID = ""
	return err
}

// SessionID returns the live session handle, or "" when disconnected.
func (c *Client) SessionID() string {
	return c.sessionID
}

// Info returns the platform details reported at session creation.
func (c *Client) Info() core.PlatformInfo {
	return c.info
}

func (c *Client) fetchScreenSize() {
	resp, err := c.get(c.sessionPath() + "/window/rect")
	if err != nil {
		return
	}
	if value, ok := resp["value"].(map[string]interface{}); ok {
		if w, ok := value["width"].(float64); ok {
			c.info.ScreenWidth = int(w)
		}
		if h, ok := value["height"].(float64); ok {
			c.info.ScreenHeight = int(h)
		}
	}
}

// Element Operations

// FindElement finds a single element.
func (c *Client) FindElement(strategy, value string) (string, error) {
	return c.FindElementContext(context.Background(), strategy, value)
}

// FindElementContext finds a single element. The request is abandoned when
// ctx is done.
func (c *Client) FindElementContext(ctx context.Context, strategy, value string) (string, error) {
	body := map[string]interface{}{
		"using": strategy,
		"value": value,
	}

	resp, err := c.request(ctx, http.MethodPost, c.sessionPath()+"/element", body)
	if err != nil {
		return "", err
	}

	elemValue, ok := resp["value"].(map[string]interface{})
	if !ok {
		return "", &WebDriverError{Status: http.StatusNotFound, Code: ErrCodeNoSuchElement, Message: "empty element response"}
	}
	id := extractElementID(elemValue)
	if id == "" {
		return "", &WebDriverError{Status: http.StatusNotFound, Code: ErrCodeNoSuchElement, Message: "no element id in response"}
	}
	return id, nil
}

// FindElements finds multiple elements.
func (c *Client) FindElements(strategy, value string) ([]string, error) {
	return c.FindElementsContext(context.Background(), strategy, value)
}

// FindElementsContext finds multiple elements, bounded by ctx.
func (c *Client) FindElementsContext(ctx context.Context, strategy, value string) ([]string, error) {
	body := map[string]interface{}{
		"using": strategy,
		"value": value,
	}

	resp, err := c.request(ctx, http.MethodPost, c.sessionPath()+"/elements", body)
	if err != nil {
		return nil, err
	}

	values, ok := resp["value"].([]interface{})
	if !ok {
		return nil, nil
	}

	var ids []string
	for _, v := range values {
		if elem, ok := v.(map[string]interface{}); ok {
			if id := extractElementID(elem); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// ClickElement clicks an element using WebDriver standard endpoint.
func (c *Client) ClickElement(elementID string) error {
	_, err := c.post(c.elementPath(elementID)+"/click", map[string]interface{}{})
	return err
}

// ClearElement clears an element's text.
func (c *Client) ClearElement(elementID string) error {
	_, err := c.post(c.elementPath(elementID)+"/clear", map[string]interface{}{})
	return err
}

// SendKeysToElement types text into an element.
func (c *Client) SendKeysToElement(elementID, text string) error {
	_, err := c.post(c.elementPath(elementID)+"/value", map[string]interface{}{
		"text":  text,
		"value": strings.Split(text, ""),
	})
	return err
}

// GetElementText returns an element's text.
func (c *Client) GetElementText(elementID string) (string, error) {
	resp, err := c.get(c.elementPath(elementID) + "/text")
	if err != nil {
		return "", err
	}
	text, _ := resp["value"].(string)
	return text, nil
}

// GetElementAttribute returns an element's attribute value.
func (c *Client) GetElementAttribute(elementID, name string) (string, error) {
	resp, err := c.get(c.elementPath(elementID) + "/attribute/" + name)
	if err != nil {
		return "", err
	}
	switch v := resp["value"].(type) {
	case string:
		return v, nil
	case bool:
		return fmt.Sprintf("%t", v), nil
	case nil:
		return "", nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}

// GetElementRect returns an element's position and size.
func (c *Client) GetElementRect(elementID string) (Rect, error) {
	resp, err := c.get(c.elementPath(elementID) + "/rect")
	if err != nil {
		return Rect{}, err
	}
	value, ok := resp["value"].(map[string]interface{})
	if !ok {
		return Rect{}, fmt.Errorf("invalid rect response")
	}

	xf, _ := value["x"].(float64)
	yf, _ := value["y"].(float64)
	wf, _ := value["width"].(float64)
	hf, _ := value["height"].(float64)
	return Rect{X: int(xf), Y: int(yf), Width: int(wf), Height: int(hf)}, nil
}

// IsElementDisplayed checks if element is visible.
func (c *Client) IsElementDisplayed(elementID string) (bool, error) {
	resp, err := c.get(c.elementPath(elementID) + "/displayed")
	if err != nil {
		return false, err
	}
	displayed, _ := resp["value"].(bool)
	return displayed, nil
}

// IsElementEnabled checks if element is enabled.
func (c *Client) IsElementEnabled(elementID string) (bool, error) {
	resp, err := c.get(c.elementPath(elementID) + "/enabled")
	if err != nil {
		return false, err
	}
	enabled, _ := resp["value"].(bool)
	return enabled, nil
}

// ElementInfo gathers the state needed to decide whether an element can be tapped.
func (c *Client) ElementInfo(elementID string) (*core.ElementInfo, error) {
	displayed, err := c.IsElementDisplayed(elementID)
	if err != nil {
		return nil, err
	}
	enabled, err := c.IsElementEnabled(elementID)
	if err != nil {
		return nil, err
	}
	info := &core.ElementInfo{ID: elementID, Visible: displayed, Enabled: enabled}
	if rect, err := c.GetElementRect(elementID); err == nil {
		info.Bounds = core.Bounds{X: rect.X, Y: rect.Y, Width: rect.Width, Height: rect.Height}
	}
	return info, nil
}

// Keyboard and navigation

// HideKeyboard hides the on-screen keyboard.
func (c *Client) HideKeyboard() error {
	_, err := c.post(c.sessionPath()+"/appium/device/hide_keyboard", map[string]interface{}{})
	return err
}

// Back presses the platform back control.
func (c *Client) Back() error {
	_, err := c.post(c.sessionPath()+"/back", map[string]interface{}{})
	return err
}

// Screen Operations

// Screenshot returns a screenshot as PNG bytes.
func (c *Client) Screenshot() ([]byte, error) {
	resp, err := c.get(c.sessionPath() + "/screenshot")
	if err != nil {
		return nil, err
	}
	encoded, ok := resp["value"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid screenshot response")
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// Source returns the page source XML.
func (c *Client) Source() (string, error) {
	resp, err := c.get(c.sessionPath() + "/source")
	if err != nil {
		return "", err
	}
	source, _ := resp["value"].(string)
	return source, nil
}

// Settings

// SetSettings updates Appium driver settings.
// For Android UiAutomator2: waitForIdleTimeout, waitForSelectorTimeout
// For iOS XCUITest: animationCoolOffTimeout
func (c *Client) SetSettings(settings map[string]interface{}) error {
	_, err := c.post(c.sessionPath()+"/appium/settings", map[string]interface{}{
		"settings": settings,
	})
	return err
}

// HTTP Helpers

func (c *Client) sessionPath() string {
	return "/session/" + c.sessionID
}

func (c *Client) elementPath(elementID string) string {
	return c.sessionPath() + "/element/" + elementID
}

func (c *Client) get(path string) (map[string]interface{}, error) {
	return c.request(context.Background(), http.MethodGet, path, nil)
}

func (c *Client) post(path string, body interface{}) (map[string]interface{}, error) {
	return c.request(context.Background(), http.MethodPost, path, body)
}

func (c *Client) delete(path string) (map[string]interface{}, error) {
	return c.request(context.Background(), http.MethodDelete, path, nil)
}

func (c *Client) request(ctx context.Context, method, path string, body interface{}) (map[string]interface{}, error) {
	url := c.serverURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		if resp.StatusCode >= 400 {
			return nil, &WebDriverError{Status: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
		}
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	// Check for WebDriver error
	if errValue, ok := result["value"].(map[string]interface{}); ok {
		if errType, ok := errValue["error"].(string); ok {
			msg, _ := errValue["message"].(string)
			return result, &WebDriverError{Status: resp.StatusCode, Code: errType, Message: msg}
		}
	}
	if resp.StatusCode >= 400 {
		return result, &WebDriverError{Status: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	return result, nil
}
