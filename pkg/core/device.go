package core

import (
	"context"
	"time"
)

// Device defines the automation surface the suite drives.
// Implementations: Appium (pkg/driver/appium), mock (pkg/driver/mock).
// Selectors follow the WebdriverIO conventions used by the feature files:
// "~name" is an accessibility id, "//..." or "(//...)" is XPath, "id=..." is a
// resource id and anything else is a class name.
type Device interface {
	// Session
	Platform() string  // android, ios
	SessionID() string // Driver session identifier (used for cloud report links)
	AppID() string     // Package name (android) or bundle id (ios)
	AppPath() string   // Installable app binary
	ReloadSession(ctx context.Context) error

	// Elements
	IsDisplayed(ctx context.Context, selector string) (bool, error)
	IsEnabled(ctx context.Context, selector string) (bool, error)
	Click(ctx context.Context, selector string) error
	SetValue(ctx context.Context, selector, value string) error
	Text(ctx context.Context, selector string) (string, error)
	Attribute(ctx context.Context, selector, name string) (string, error)
	Rect(ctx context.Context, selector string) (Bounds, error)
	Count(ctx context.Context, selector string) (int, error)
	ElementID(ctx context.Context, selector string) (string, error)

	// Gestures
	WindowSize(ctx context.Context) (width, height int, err error)
	Tap(ctx context.Context, x, y int) error
	Swipe(ctx context.Context, startX, startY, endX, endY int, duration time.Duration) error
	PressKeyCode(ctx context.Context, keycode int) error

	// Device and app management. ExecuteMobile runs "mobile: <command>"; a
	// command that already names its namespace ("gesture: ...") is sent as is.
	ExecuteMobile(ctx context.Context, command string, args map[string]interface{}) (interface{}, error)
	ActivateApp(ctx context.Context, appID string) error
	TerminateApp(ctx context.Context, appID string) error
	RemoveApp(ctx context.Context, appID string) error
	InstallApp(ctx context.Context, appPath string) error
	PushFile(ctx context.Context, remotePath string, data []byte) error
	UpdateSettings(ctx context.Context, settings map[string]interface{}) error
	ToggleLocationServices(ctx context.Context) error
	OpenURL(ctx context.Context, url string) error

	// Artifacts
	Screenshot(ctx context.Context) ([]byte, error)
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

// Platform names
const (
	PlatformAndroid = "android"
	PlatformIOS     = "ios"
)
