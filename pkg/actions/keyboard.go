package actions

import (
	"context"

	"github.com/devicelab-dev/mobile-e2e/pkg/core"
)

// AndroidBackKeyCode is KEYCODE_BACK.
const AndroidBackKeyCode = 4

// iOS keyboard keys
const (
	iosKeyReturn = "~Return"
	iosKeyNext   = "~Next"
	iosKeySearch = "~Search"
)

func editorAction(ctx context.Context, dev core.Device, action, iosKey string) error {
	if dev.Platform() == core.PlatformIOS {
		return dev.Click(ctx, iosKey)
	}
	_, err := dev.ExecuteMobile(ctx, "performEditorAction", map[string]interface{}{"action": action})
	return err
}

// EnterOrConfirm submits the focused field with the keyboard's done/return key.
func EnterOrConfirm(ctx context.Context, dev core.Device) error {
	return editorAction(ctx, dev, "done", iosKeyReturn)
}

// Next moves to the next field with the keyboard's next key.
func Next(ctx context.Context, dev core.Device) error {
	return editorAction(ctx, dev, "next", iosKeyNext)
}

// Search submits the focused field with the keyboard's search key.
func Search(ctx context.Context, dev core.Device) error {
	return editorAction(ctx, dev, "search", iosKeySearch)
}

// AndroidBack presses the Android back key.
func AndroidBack(ctx context.Context, dev core.Device) error {
	return dev.PressKeyCode(ctx, AndroidBackKeyCode)
}
