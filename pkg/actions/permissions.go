package actions

import (
	"context"
	"time"

	"github.com/devicelab-dev/mobile-e2e/pkg/core"
	"github.com/devicelab-dev/mobile-e2e/pkg/logger"
)

// Permission dialog buttons.
const (
	androidAllowNotification = "//android.widget.Button[@text='Allow']"
	iosAllowNotification     = "~Allow"
	androidWhileUsingApp     = "//android.widget.Button[@text='While using the app']"
	iosWhileUsingApp         = "//XCUIElementTypeButton[@name='Allow While Using App']"
	androidNoThanks          = "//*[@text='No, thanks']|//*[@text='No thanks']"
	androidAllowMedia        = "//android.widget.Button[contains(@text, 'Allow')]"
	iosAllowAllPhotos        = "//XCUIElementTypeButton[@name='Allow Access to All Photos']"
)

// NotificationTimeout bounds the wait for the notification permission dialog.
var NotificationTimeout = 3 * time.Second

func byPlatform(dev core.Device, android, ios string) string {
	if dev.Platform() == core.PlatformIOS {
		return ios
	}
	return android
}

// dismissOptional clicks a transient dialog button. Its absence is expected
// and only logged at debug level.
func dismissOptional(ctx context.Context, dev core.Device, selector, what string, timeout time.Duration) bool {
	if err := WaitAndClick(ctx, dev, selector, timeout); err != nil {
		logger.Debug("%s not displayed: %v", what, core.ErrExpectedAbsence.WithCause(err))
		return false
	}
	return true
}

// AllowNotificationAccess accepts the notification permission dialog if shown.
func AllowNotificationAccess(ctx context.Context, dev core.Device) bool {
	sel := byPlatform(dev, androidAllowNotification, iosAllowNotification)
	return dismissOptional(ctx, dev, sel, "notification permission dialog", NotificationTimeout)
}

// AllowAccessToDeviceLocation accepts location access "while using the app".
func AllowAccessToDeviceLocation(ctx context.Context, dev core.Device) bool {
	sel := byPlatform(dev, androidWhileUsingApp, iosWhileUsingApp)
	return dismissOptional(ctx, dev, sel, "location permission dialog", DefaultTimeout)
}

// DenyTurnOnDeviceLocationServices declines the Android prompt to turn on
// location services. The prompt can appear twice.
func DenyTurnOnDeviceLocationServices(ctx context.Context, dev core.Device) bool {
	if dev.Platform() != core.PlatformAndroid {
		return false
	}
	if !dismissOptional(ctx, dev, androidNoThanks, "'No thanks' popup", DefaultTimeout) {
		return false
	}
	dismissOptional(ctx, dev, androidNoThanks, "second 'No thanks' popup", DefaultTimeout)
	return true
}

// AllowAccessToMedia accepts the photo library permission dialog if shown.
func AllowAccessToMedia(ctx context.Context, dev core.Device) bool {
	sel := byPlatform(dev, androidAllowMedia, iosAllowAllPhotos)
	return dismissOptional(ctx, dev, sel, "media permission dialog", DefaultTimeout)
}
