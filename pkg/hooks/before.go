package hooks

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/devicelab-dev/mobile-e2e/pkg/actions"
	"github.com/devicelab-dev/mobile-e2e/pkg/config"
	"github.com/devicelab-dev/mobile-e2e/pkg/core"
	"github.com/devicelab-dev/mobile-e2e/pkg/lifecycle"
	"github.com/devicelab-dev/mobile-e2e/pkg/logger"
)

func (s *suite) resetScenario(ctx context.Context, _ *lifecycle.Scenario) error {
	s.Store.ClearScenario()
	actions.AllowNotificationAccess(ctx, s.Device)
	return nil
}

// agentnetLogin walks the debug-mode screen that agent scenarios start from.
func (s *suite) agentnetLogin(ctx context.Context, _ *lifecycle.Scenario) error {
	if s.Config.DeepLink == "" {
		return core.ErrMissingRequired.WithMessage("deepLink is not configured")
	}
	if err := s.Device.OpenURL(ctx, s.Config.DeepLink); err != nil {
		return fmt.Errorf("open deep link: %w", err)
	}
	if err := s.setTimezone(ctx); err != nil {
		return err
	}
	if s.Env.Environment == config.EnvironmentIntegration {
		if err := actions.WaitAndClick(ctx, s.Device, integrationEnvButton); err != nil {
			return fmt.Errorf("select integration environment: %w", err)
		}
	}
	if err := actions.WaitAndClick(ctx, s.Device, debugSaveButton, DebugSaveTimeout); err != nil {
		return err
	}

	if s.Env.Country == config.CountryDDE {
		if err := s.tapLoginSelectLanguage(ctx); err != nil {
			return err
		}
		if err := actions.WaitAndClick(ctx, s.Device, englishLanguageItem); err != nil {
			return err
		}
	}
	return nil
}

// tapLoginSelectLanguage opens the language picker on the login screen. The
// ios picker has no accessibility id, so it is tapped by position.
func (s *suite) tapLoginSelectLanguage(ctx context.Context) error {
	if err := actions.WaitUntilEnabled(ctx, s.Device, loginBankImage, false, LoginImageTimeout); err != nil {
		return err
	}
	if s.Device.Platform() == core.PlatformAndroid {
		return actions.WaitAndClick(ctx, s.Device, languageToggle)
	}

	w, h, err := s.Device.WindowSize(ctx)
	if err != nil {
		return fmt.Errorf("window size: %w", err)
	}
	x := math.Round(float64(w) - float64(w)*0.1)
	y := math.Round(float64(h) * 0.08)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(LanguageTapDelay):
	}
	return actions.TapByCoordinate(ctx, s.Device, int(x), int(y))
}

func (s *suite) setTimezoneAction(ctx context.Context, _ *lifecycle.Scenario) error {
	return s.setTimezone(ctx)
}

// setTimezone sets the device timezone from the AgentNet assets. Only rooted
// cloud android devices allow it; elsewhere it does nothing.
func (s *suite) setTimezone(ctx context.Context) error {
	if s.Device.Platform() != core.PlatformAndroid || !s.Env.IsCloud {
		return nil
	}
	tz, err := s.Assets.Timezone()
	if err != nil {
		return err
	}
	command := TimezoneCommand(tz, s.Env.CountryCode())
	logger.Info("setting device timezone: %s", command)
	if _, err := s.Device.ExecuteMobile(ctx, "shell", map[string]interface{}{"command": command}); err != nil {
		return fmt.Errorf("set timezone %s: %w", tz, err)
	}
	return nil
}

// TimezoneCommand returns the shell command that sets tz. Thai devices take
// the full zone name; others take it without the "Asia/" prefix.
func TimezoneCommand(tz, countryCode string) string {
	if countryCode != "TH" {
		tz = strings.Replace(tz, "Asia/", "", 1)
	}
	return "su root service call alarm 3 s16 " + tz
}

func (s *suite) toggleLocation(ctx context.Context, _ *lifecycle.Scenario) error {
	if s.Device.Platform() != core.PlatformAndroid {
		return nil
	}
	return s.Device.ToggleLocationServices(ctx)
}

func (s *suite) disableAutoAcceptAlert(ctx context.Context, _ *lifecycle.Scenario) error {
	if s.Device.Platform() != core.PlatformIOS {
		return nil
	}
	return s.Device.UpdateSettings(ctx, map[string]interface{}{"defaultAlertAction": ""})
}
