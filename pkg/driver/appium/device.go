package appium

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/devicelab-dev/mobile-e2e/pkg/core"
	"github.com/devicelab-dev/mobile-e2e/pkg/logger"
)

// DefaultFindTimeout is how long element operations wait for their element
// to appear before failing.
const DefaultFindTimeout = 10 * time.Second

const findInterval = 200 * time.Millisecond

// Locator strategies.
const (
	StrategyAccessibilityID = "accessibility id"
	StrategyXPath           = "xpath"
	StrategyID              = "id"
	StrategyUIAutomator     = "-android uiautomator"
	StrategyPredicate       = "-ios predicate string"
	StrategyClassName       = "class name"
)

// Locate converts a selector into a WebDriver strategy and value:
// "~name" accessibility id, "//..." or "(//...)" xpath, "id=..." resource id,
// "android=..." UiAutomator, "-ios predicate string:..." predicate, anything
// else a class name.
func Locate(selector string) (strategy, value string) {
	switch {
	case strings.HasPrefix(selector, "~"):
		return StrategyAccessibilityID, selector[1:]
	case strings.HasPrefix(selector, "//"), strings.HasPrefix(selector, "("):
		return StrategyXPath, selector
	case strings.HasPrefix(selector, "id="):
		return StrategyID, strings.TrimPrefix(selector, "id=")
	case strings.HasPrefix(selector, "android="):
		return StrategyUIAutomator, strings.TrimPrefix(selector, "android=")
	case strings.HasPrefix(selector, StrategyPredicate+":"):
		return StrategyPredicate, strings.TrimPrefix(selector, StrategyPredicate+":")
	default:
		return StrategyClassName, selector
	}
}

// AppInfo identifies the app under test.
type AppInfo struct {
	ID   string // Package name (android) or bundle id (ios)
	Path string // Binary to (re)install
}

// Device implements core.Device over an Appium session.
type Device struct {
	client       *Client
	capabilities map[string]interface{}
	app          AppInfo
	FindTimeout  time.Duration
}

// NewDevice opens a session with capabilities and returns the device.
func NewDevice(ctx context.Context, client *Client, capabilities map[string]interface{}, app AppInfo) (*Device, error) {
	if err := client.Connect(ctx, capabilities); err != nil {
		return nil, err
	}

	if app.ID == "" {
		if id, ok := capabilities["appium:appPackage"].(string); ok {
			app.ID = id
		} else if id, ok := capabilities["appium:bundleId"].(string); ok {
			app.ID = id
		}
	}
	if app.Path == "" {
		app.Path, _ = capabilities["appium:app"].(string)
	}

	logger.Info("appium session %s started (%s)", client.SessionID(), client.Platform())
	return &Device{
		client:       client,
		capabilities: capabilities,
		app:          app,
		FindTimeout:  DefaultFindTimeout,
	}, nil
}

// Close ends the session.
func (d *Device) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

// Platform implements core.Device.
func (d *Device) Platform() string { return d.client.Platform() }

// SessionID implements core.Device.
func (d *Device) SessionID() string { return d.client.SessionID() }

// AppID implements core.Device.
func (d *Device) AppID() string { return d.app.ID }

// AppPath implements core.Device.
func (d *Device) AppPath() string { return d.app.Path }

// ReloadSession ends the session and starts a new one with the same
// capabilities.
func (d *Device) ReloadSession(ctx context.Context) error {
	old := d.client.SessionID()
	if err := d.client.Disconnect(ctx); err != nil {
		logger.Warn("close session %s: %v", old, err)
	}
	if err := d.client.Connect(ctx, d.capabilities); err != nil {
		return err
	}
	logger.Info("appium session reloaded: %s -> %s", old, d.client.SessionID())
	return nil
}

// element waits up to FindTimeout for selector to exist.
func (d *Device) element(ctx context.Context, selector string) (string, error) {
	strategy, value := Locate(selector)
	timeout := d.FindTimeout
	if timeout <= 0 {
		timeout = DefaultFindTimeout
	}
	deadline := time.Now().Add(timeout)

	for {
		id, err := d.client.FindElement(ctx, strategy, value)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, core.ErrElementNotFound) {
			return "", err
		}
		if time.Now().After(deadline) {
			return "", core.ErrElementNotFound.WithDetails(map[string]interface{}{"selector": selector})
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(findInterval):
		}
	}
}

// IsDisplayed reports whether the first match of selector is visible. A
// missing element is not displayed.
func (d *Device) IsDisplayed(ctx context.Context, selector string) (bool, error) {
	strategy, value := Locate(selector)
	ids, err := d.client.FindElements(ctx, strategy, value)
	if err != nil || len(ids) == 0 {
		return false, err
	}
	return d.client.IsElementDisplayed(ctx, ids[0])
}

// IsEnabled reports whether the first match of selector is enabled. A
// missing element is not enabled.
func (d *Device) IsEnabled(ctx context.Context, selector string) (bool, error) {
	strategy, value := Locate(selector)
	ids, err := d.client.FindElements(ctx, strategy, value)
	if err != nil || len(ids) == 0 {
		return false, err
	}
	return d.client.IsElementEnabled(ctx, ids[0])
}

// Click implements core.Device.
func (d *Device) Click(ctx context.Context, selector string) error {
	id, err := d.element(ctx, selector)
	if err != nil {
		return err
	}
	return d.client.ClickElement(ctx, id)
}

// SetValue replaces the element's text.
func (d *Device) SetValue(ctx context.Context, selector, value string) error {
	id, err := d.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := d.client.ClearElement(ctx, id); err != nil {
		return err
	}
	return d.client.SendElementValue(ctx, id, value)
}

// Text implements core.Device.
func (d *Device) Text(ctx context.Context, selector string) (string, error) {
	id, err := d.element(ctx, selector)
	if err != nil {
		return "", err
	}
	return d.client.GetElementText(ctx, id)
}

// Attribute implements core.Device.
func (d *Device) Attribute(ctx context.Context, selector, name string) (string, error) {
	id, err := d.element(ctx, selector)
	if err != nil {
		return "", err
	}
	return d.client.GetElementAttribute(ctx, id, name)
}

// Rect implements core.Device.
func (d *Device) Rect(ctx context.Context, selector string) (core.Bounds, error) {
	id, err := d.element(ctx, selector)
	if err != nil {
		return core.Bounds{}, err
	}
	return d.client.GetElementRect(ctx, id)
}

// Count returns the number of elements matching selector.
func (d *Device) Count(ctx context.Context, selector string) (int, error) {
	strategy, value := Locate(selector)
	ids, err := d.client.FindElements(ctx, strategy, value)
	return len(ids), err
}

// ElementID implements core.Device.
func (d *Device) ElementID(ctx context.Context, selector string) (string, error) {
	return d.element(ctx, selector)
}

// WindowSize implements core.Device.
func (d *Device) WindowSize(ctx context.Context) (int, int, error) {
	if w, h := d.client.ScreenSize(); w > 0 && h > 0 {
		return w, h, nil
	}
	return d.client.WindowRect(ctx)
}

// Tap implements core.Device.
func (d *Device) Tap(ctx context.Context, x, y int) error {
	return d.client.Tap(ctx, x, y)
}

// Swipe implements core.Device.
func (d *Device) Swipe(ctx context.Context, startX, startY, endX, endY int, duration time.Duration) error {
	return d.client.Swipe(ctx, startX, startY, endX, endY, int(duration.Milliseconds()))
}

// PressKeyCode implements core.Device.
func (d *Device) PressKeyCode(ctx context.Context, keycode int) error {
	return d.client.PressKeyCode(ctx, keycode)
}

// ExecuteMobile implements core.Device.
func (d *Device) ExecuteMobile(ctx context.Context, command string, args map[string]interface{}) (interface{}, error) {
	return d.client.ExecuteMobile(ctx, command, args)
}

// ActivateApp implements core.Device.
func (d *Device) ActivateApp(ctx context.Context, appID string) error {
	return d.client.ActivateApp(ctx, appID)
}

// TerminateApp implements core.Device.
func (d *Device) TerminateApp(ctx context.Context, appID string) error {
	return d.client.TerminateApp(ctx, appID)
}

// RemoveApp implements core.Device.
func (d *Device) RemoveApp(ctx context.Context, appID string) error {
	return d.client.RemoveApp(ctx, appID)
}

// InstallApp implements core.Device.
func (d *Device) InstallApp(ctx context.Context, appPath string) error {
	return d.client.InstallApp(ctx, appPath)
}

// PushFile implements core.Device.
func (d *Device) PushFile(ctx context.Context, remotePath string, data []byte) error {
	return d.client.PushFile(ctx, remotePath, data)
}

// UpdateSettings implements core.Device.
func (d *Device) UpdateSettings(ctx context.Context, settings map[string]interface{}) error {
	return d.client.SetSettings(ctx, settings)
}

// ToggleLocationServices implements core.Device.
func (d *Device) ToggleLocationServices(ctx context.Context) error {
	return d.client.ToggleLocationServices(ctx)
}

// OpenURL implements core.Device.
func (d *Device) OpenURL(ctx context.Context, url string) error {
	return d.client.OpenURL(ctx, url)
}

// Screenshot implements core.Device.
func (d *Device) Screenshot(ctx context.Context) ([]byte, error) {
	return d.client.Screenshot(ctx)
}

var _ core.Device = (*Device)(nil)
