package hooks

import (
	"context"
	"fmt"

	"github.com/devicelab-dev/mobile-e2e/pkg/actions"
	"github.com/devicelab-dev/mobile-e2e/pkg/lifecycle"
	"github.com/devicelab-dev/mobile-e2e/pkg/logger"
	"github.com/devicelab-dev/mobile-e2e/pkg/report"
)

// hardReset reinstalls the app. Local sessions are reloaded as well, since a
// failed scenario can leave the session closed; cloud sessions are kept so
// the job keeps one video.
func (s *suite) hardReset(ctx context.Context, _ *lifecycle.Scenario) error {
	if err := actions.UninstallInstallApplication(ctx, s.Device); err != nil {
		return err
	}
	if s.Env.IsCloud {
		return nil
	}
	return s.Device.ReloadSession(ctx)
}

func (s *suite) restartApp(ctx context.Context, _ *lifecycle.Scenario) error {
	return actions.RestartApp(ctx, s.Device)
}

// reportLink returns the SauceLabs job link on cloud runs.
func (s *suite) reportLink(_ context.Context, _ *lifecycle.Scenario) (map[string]string, error) {
	if !s.Env.IsCloud {
		return nil, nil
	}
	return map[string]string{
		"sauceLabURL": report.SauceLabsLink(s.Env.SauceUsername, s.Env.SauceAccessKey, s.Device.SessionID()),
	}, nil
}

func (s *suite) recordGASession(_ context.Context, _ *lifecycle.Scenario) error {
	if s.Env.FeatureFile == "" || s.Config.GAKeysFile == "" {
		logger.Debug("GA session not recorded: feature file or GA keys file not set")
		return nil
	}
	ok, err := RecordGASession(s.Config.GAKeysFile, s.Env.FeatureFile, s.Device.Platform(), s.Device.SessionID())
	if err != nil {
		return fmt.Errorf("record GA session: %w", err)
	}
	if ok {
		logger.Info("recorded GA session %s for %s", s.Device.SessionID(), s.Env.FeatureFile)
	}
	return nil
}
