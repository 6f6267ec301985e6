package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/devicelab-dev/mobile-e2e/pkg/core"
	"github.com/devicelab-dev/mobile-e2e/pkg/logger"
)

// InstallSettle is the pause between installing and launching the app.
var InstallSettle = time.Second

// UninstallInstallApplication removes the app and installs it again from the
// session's app binary, then launches it.
func UninstallInstallApplication(ctx context.Context, dev core.Device) error {
	app := dev.AppID()
	if err := dev.TerminateApp(ctx, app); err != nil {
		return fmt.Errorf("terminate %s: %w", app, err)
	}
	if err := dev.RemoveApp(ctx, app); err != nil {
		return fmt.Errorf("remove %s: %w", app, err)
	}
	if err := dev.InstallApp(ctx, dev.AppPath()); err != nil {
		return fmt.Errorf("install %s: %w", dev.AppPath(), err)
	}
	if err := sleep(ctx, InstallSettle); err != nil {
		return err
	}
	if err := dev.ActivateApp(ctx, app); err != nil {
		return fmt.Errorf("activate %s: %w", app, err)
	}
	logger.Info("App reinstalled and opened")
	AllowNotificationAccess(ctx, dev)
	return nil
}

// RestartApp terminates and relaunches the app.
func RestartApp(ctx context.Context, dev core.Device) error {
	app := dev.AppID()
	if err := dev.TerminateApp(ctx, app); err != nil {
		return fmt.Errorf("terminate %s: %w", app, err)
	}
	if err := dev.ActivateApp(ctx, app); err != nil {
		return fmt.Errorf("activate %s: %w", app, err)
	}
	logger.Info("App restarted")
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
