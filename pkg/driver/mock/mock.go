// Package mock provides a recording device for tests and dry runs without a
// real Appium server.
package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/devicelab-dev/mobile-e2e/pkg/core"
)

// Call is one recorded device invocation.
type Call struct {
	Method string
	Args   []interface{}
}

// String formats the call as Method(arg, arg).
func (c Call) String() string {
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = fmt.Sprint(a)
	}
	return c.Method + "(" + strings.Join(parts, ", ") + ")"
}

// Config configures mock device behavior.
type Config struct {
	Platform  string // Defaults to android
	SessionID string
	AppID     string
	AppPath   string
	Width     int // Defaults to 1080
	Height    int // Defaults to 2400

	// AllDisplayed makes every selector without explicit state displayed and
	// enabled. Used for dry runs.
	AllDisplayed bool

	// Latency is added to every call.
	Latency time.Duration
}

// Device is a mock implementation of core.Device. It is safe for concurrent
// use so concurrent file pushes can be recorded.
type Device struct {
	Config Config

	// DisplayedFunc overrides displayed state when set.
	DisplayedFunc func(selector string) bool

	mu         sync.Mutex
	calls      []Call
	displayed  map[string]bool
	enabled    map[string]bool
	texts      map[string]string
	attrs      map[string]map[string]string
	rects      map[string]core.Bounds
	counts     map[string]int
	errs       map[string]error
	files      map[string][]byte
	settings   map[string]interface{}
	screenshot []byte
}

// New creates a new mock device.
func New(cfg Config) *Device {
	if cfg.Platform == "" {
		cfg.Platform = core.PlatformAndroid
	}
	if cfg.SessionID == "" {
		cfg.SessionID = "mock-session"
	}
	if cfg.AppID == "" {
		cfg.AppID = "com.example.app"
	}
	if cfg.AppPath == "" {
		cfg.AppPath = "/tmp/app.apk"
	}
	if cfg.Width == 0 {
		cfg.Width = 1080
	}
	if cfg.Height == 0 {
		cfg.Height = 2400
	}
	return &Device{
		Config:     cfg,
		displayed:  make(map[string]bool),
		enabled:    make(map[string]bool),
		texts:      make(map[string]string),
		attrs:      make(map[string]map[string]string),
		rects:      make(map[string]core.Bounds),
		counts:     make(map[string]int),
		errs:       make(map[string]error),
		files:      make(map[string][]byte),
		settings:   make(map[string]interface{}),
		screenshot: pngPixel,
	}
}

// Minimal valid PNG (1x1 transparent pixel)
var pngPixel = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4,
	0x89, 0x00, 0x00, 0x00, 0x0A, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9C, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0D, 0x0A, 0x2D, 0xB4, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4E, 0x44, 0xAE,
	0x42, 0x60, 0x82,
}

// SetDisplayed sets whether selector is displayed.
func (d *Device) SetDisplayed(selector string, displayed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.displayed[selector] = displayed
}

// SetEnabled sets whether selector is enabled.
func (d *Device) SetEnabled(selector string, enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled[selector] = enabled
}

// SetText sets the text of selector and marks it displayed.
func (d *Device) SetText(selector, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.texts[selector] = text
	if _, ok := d.displayed[selector]; !ok {
		d.displayed[selector] = true
	}
}

// SetAttribute sets a named attribute of selector.
func (d *Device) SetAttribute(selector, name, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.attrs[selector] == nil {
		d.attrs[selector] = make(map[string]string)
	}
	d.attrs[selector][name] = value
}

// SetRect sets the bounds of selector.
func (d *Device) SetRect(selector string, b core.Bounds) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rects[selector] = b
}

// SetCount sets how many elements selector matches.
func (d *Device) SetCount(selector string, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.counts[selector] = n
}

// SetScreenshot replaces the screenshot payload.
func (d *Device) SetScreenshot(data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.screenshot = data
}

// FailOn makes every call to method return err. A nil err clears it.
func (d *Device) FailOn(method string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.errs, method)
		return
	}
	d.errs[method] = err
}

// Calls returns a copy of the recorded calls.
func (d *Device) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Call, len(d.calls))
	copy(out, d.calls)
	return out
}

// Methods returns the recorded method names in order.
func (d *Device) Methods() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.calls))
	for i, c := range d.calls {
		out[i] = c.Method
	}
	return out
}

// CallCount returns how many times method was called.
func (d *Device) CallCount(method string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears recorded calls.
func (d *Device) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = nil
}

// File returns data pushed to remotePath.
func (d *Device) File(remotePath string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, ok := d.files[remotePath]
	return data, ok
}

// Setting returns a value passed to UpdateSettings.
func (d *Device) Setting(name string) (interface{}, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.settings[name]
	return v, ok
}

// record logs the call and returns any injected error.
func (d *Device) record(ctx context.Context, method string, args ...interface{}) error {
	if d.Config.Latency > 0 {
		select {
		case <-time.After(d.Config.Latency):
		case <-ctx.Done():
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, Call{Method: method, Args: args})
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.errs[method]
}

func (d *Device) isDisplayed(selector string) bool {
	if d.DisplayedFunc != nil {
		return d.DisplayedFunc(selector)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if v, ok := d.displayed[selector]; ok {
		return v
	}
	return d.Config.AllDisplayed
}

func notFound(selector string) error {
	return core.ErrElementNotFound.WithDetails(map[string]interface{}{"selector": selector})
}

// Platform returns the configured platform.
func (d *Device) Platform() string { return d.Config.Platform }

// SessionID returns the configured session id.
func (d *Device) SessionID() string { return d.Config.SessionID }

// AppID returns the configured app id.
func (d *Device) AppID() string { return d.Config.AppID }

// AppPath returns the configured app path.
func (d *Device) AppPath() string { return d.Config.AppPath }

func (d *Device) ReloadSession(ctx context.Context) error {
	return d.record(ctx, "ReloadSession")
}

func (d *Device) IsDisplayed(ctx context.Context, selector string) (bool, error) {
	if err := d.record(ctx, "IsDisplayed", selector); err != nil {
		return false, err
	}
	return d.isDisplayed(selector), nil
}

func (d *Device) IsEnabled(ctx context.Context, selector string) (bool, error) {
	if err := d.record(ctx, "IsEnabled", selector); err != nil {
		return false, err
	}
	d.mu.Lock()
	v, ok := d.enabled[selector]
	d.mu.Unlock()
	if ok {
		return v, nil
	}
	return d.isDisplayed(selector), nil
}

func (d *Device) Click(ctx context.Context, selector string) error {
	if err := d.record(ctx, "Click", selector); err != nil {
		return err
	}
	if !d.isDisplayed(selector) {
		return notFound(selector)
	}
	return nil
}

func (d *Device) SetValue(ctx context.Context, selector, value string) error {
	if err := d.record(ctx, "SetValue", selector, value); err != nil {
		return err
	}
	if !d.isDisplayed(selector) {
		return notFound(selector)
	}
	d.mu.Lock()
	d.texts[selector] = value
	d.mu.Unlock()
	return nil
}

func (d *Device) Text(ctx context.Context, selector string) (string, error) {
	if err := d.record(ctx, "Text", selector); err != nil {
		return "", err
	}
	if !d.isDisplayed(selector) {
		return "", notFound(selector)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.texts[selector], nil
}

func (d *Device) Attribute(ctx context.Context, selector, name string) (string, error) {
	if err := d.record(ctx, "Attribute", selector, name); err != nil {
		return "", err
	}
	if !d.isDisplayed(selector) {
		return "", notFound(selector)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attrs[selector][name], nil
}

func (d *Device) Rect(ctx context.Context, selector string) (core.Bounds, error) {
	if err := d.record(ctx, "Rect", selector); err != nil {
		return core.Bounds{}, err
	}
	d.mu.Lock()
	b, ok := d.rects[selector]
	d.mu.Unlock()
	if !ok && !d.isDisplayed(selector) {
		return core.Bounds{}, notFound(selector)
	}
	return b, nil
}

func (d *Device) Count(ctx context.Context, selector string) (int, error) {
	if err := d.record(ctx, "Count", selector); err != nil {
		return 0, err
	}
	d.mu.Lock()
	n, ok := d.counts[selector]
	d.mu.Unlock()
	if ok {
		return n, nil
	}
	if d.isDisplayed(selector) {
		return 1, nil
	}
	return 0, nil
}

func (d *Device) ElementID(ctx context.Context, selector string) (string, error) {
	if err := d.record(ctx, "ElementID", selector); err != nil {
		return "", err
	}
	if !d.isDisplayed(selector) {
		return "", notFound(selector)
	}
	return "mock-element-" + selector, nil
}

func (d *Device) WindowSize(ctx context.Context) (int, int, error) {
	if err := d.record(ctx, "WindowSize"); err != nil {
		return 0, 0, err
	}
	return d.Config.Width, d.Config.Height, nil
}

func (d *Device) Tap(ctx context.Context, x, y int) error {
	return d.record(ctx, "Tap", x, y)
}

func (d *Device) Swipe(ctx context.Context, startX, startY, endX, endY int, duration time.Duration) error {
	return d.record(ctx, "Swipe", startX, startY, endX, endY, duration)
}

func (d *Device) PressKeyCode(ctx context.Context, keycode int) error {
	return d.record(ctx, "PressKeyCode", keycode)
}

func (d *Device) ExecuteMobile(ctx context.Context, command string, args map[string]interface{}) (interface{}, error) {
	if err := d.record(ctx, "ExecuteMobile", command, args); err != nil {
		return nil, err
	}
	return nil, nil
}

func (d *Device) ActivateApp(ctx context.Context, appID string) error {
	return d.record(ctx, "ActivateApp", appID)
}

func (d *Device) TerminateApp(ctx context.Context, appID string) error {
	return d.record(ctx, "TerminateApp", appID)
}

func (d *Device) RemoveApp(ctx context.Context, appID string) error {
	return d.record(ctx, "RemoveApp", appID)
}

func (d *Device) InstallApp(ctx context.Context, appPath string) error {
	return d.record(ctx, "InstallApp", appPath)
}

func (d *Device) PushFile(ctx context.Context, remotePath string, data []byte) error {
	if err := d.record(ctx, "PushFile", remotePath, len(data)); err != nil {
		return err
	}
	d.mu.Lock()
	d.files[remotePath] = data
	d.mu.Unlock()
	return nil
}

func (d *Device) UpdateSettings(ctx context.Context, settings map[string]interface{}) error {
	if err := d.record(ctx, "UpdateSettings", settings); err != nil {
		return err
	}
	d.mu.Lock()
	for k, v := range settings {
		d.settings[k] = v
	}
	d.mu.Unlock()
	return nil
}

func (d *Device) ToggleLocationServices(ctx context.Context) error {
	return d.record(ctx, "ToggleLocationServices")
}

func (d *Device) OpenURL(ctx context.Context, url string) error {
	return d.record(ctx, "OpenURL", url)
}

func (d *Device) Screenshot(ctx context.Context) ([]byte, error) {
	if err := d.record(ctx, "Screenshot"); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.screenshot, nil
}

var _ core.Device = (*Device)(nil)
