// Package hooks registers the suite's lifecycle actions on a controller.
//
// Before actions, in order:
//   - every scenario: clear scenario data, dismiss the notification prompt
//   - @agentnet and not @deeplink: open the debug deep link, set the device
//     timezone, pick the integration backend, save, and on DDE switch the
//     app language to English
//   - @agentnet and @deeplink: set the device timezone
//   - @setLocation: toggle location services (android)
//   - @disableAutoAcceptAlert: stop auto-accepting native alerts (ios)
//   - @mediaUpload: push photos and videos to the device gallery
//
// After actions run in reverse registration order: GA session bookkeeping,
// report attachments, then either a hard reset (@agentnet or @hardResetApp)
// or an app restart (every other scenario).
package hooks

import (
	"fmt"
	"time"

	"github.com/devicelab-dev/mobile-e2e/pkg/assets"
	"github.com/devicelab-dev/mobile-e2e/pkg/config"
	"github.com/devicelab-dev/mobile-e2e/pkg/core"
	"github.com/devicelab-dev/mobile-e2e/pkg/datastore"
	"github.com/devicelab-dev/mobile-e2e/pkg/lifecycle"
	"github.com/devicelab-dev/mobile-e2e/pkg/tags"
)

// Tag predicates of the registered actions.
var (
	AgentnetLogin          = tags.MustParse("@agentnet and not @deeplink")
	AgentnetDeepLink       = tags.MustParse("@agentnet and @deeplink")
	SetLocation            = tags.MustParse("@setLocation")
	DisableAutoAcceptAlert = tags.MustParse("@disableAutoAcceptAlert")
	MediaUpload            = tags.MustParse("@mediaUpload")
	HardReset              = tags.MustParse("@agentnet or @hardResetApp")
	Restart                = tags.Not(HardReset)
	GASmoke                = tags.MustParse("@GA and @agentnet and @smoke")
)

// Selectors used by the agent login setup.
const (
	debugSaveButton      = "~test-debug-mode-save"
	integrationEnvButton = "~test-debug-mode-screen-env-Integration"
	loginBankImage       = "~test-login-bank-image"
	languageToggle       = "~test-language-toggle-cta"
	englishLanguageItem  = "~test-change-language_item_en"
)

// Timing of the agent login setup. Variables so tests can shorten them.
var (
	DebugSaveTimeout   = 10 * time.Second
	LoginImageTimeout  = 5 * time.Second
	LanguageTapDelay   = 500 * time.Millisecond
	MediaUploadWorkers = 4
)

// AndroidMediaLocation is where pushed media lands on android. On ios files
// are pushed by name into the app's media library.
const AndroidMediaLocation = "/sdcard/DCIM/Camera/"

// Deps are the collaborators the actions drive.
type Deps struct {
	Device core.Device
	Store  *datastore.Store
	Config *config.Config
	Env    config.Env
	Assets *assets.Provider
	Sink   lifecycle.Sink
}

func (d Deps) validate() error {
	missing := ""
	switch {
	case d.Device == nil:
		missing = "Device"
	case d.Store == nil:
		missing = "Store"
	case d.Config == nil:
		missing = "Config"
	case d.Assets == nil:
		missing = "Assets"
	case d.Sink == nil:
		missing = "Sink"
	}
	if missing != "" {
		return core.ErrMissingRequired.WithMessage("hooks: missing " + missing)
	}
	return nil
}

type suite struct {
	Deps
}

// Register adds every lifecycle action of the suite to ctrl.
func Register(ctrl *lifecycle.Controller, deps Deps) error {
	if err := deps.validate(); err != nil {
		return err
	}
	s := &suite{Deps: deps}

	actions := []lifecycle.Action{
		// Before, in execution order
		{Name: "clear scenario data and allow notifications", Phase: lifecycle.PhaseBefore, When: tags.Always(), Run: s.resetScenario},
		{Name: "agentnet debug login", Phase: lifecycle.PhaseBefore, When: AgentnetLogin, Run: s.agentnetLogin},
		{Name: "set timezone for deeplink login", Phase: lifecycle.PhaseBefore, When: AgentnetDeepLink, Run: s.setTimezoneAction},
		{Name: "toggle location services", Phase: lifecycle.PhaseBefore, When: SetLocation, Run: s.toggleLocation},
		{Name: "disable alert auto-accept", Phase: lifecycle.PhaseBefore, When: DisableAutoAcceptAlert, Run: s.disableAutoAcceptAlert},
		{Name: "upload media", Phase: lifecycle.PhaseBefore, When: MediaUpload, Run: s.uploadMedia},

		// After, executed in reverse
		{Name: "hard reset app", Phase: lifecycle.PhaseAfter, When: HardReset, Run: s.hardReset},
		{Name: "restart app", Phase: lifecycle.PhaseAfter, When: Restart, Run: s.restartApp},
		lifecycle.ReportAction(deps.Store, deps.Sink, lifecycle.ReportOptions{
			ReportLink: s.reportLink,
			Screenshot: deps.Device.Screenshot,
		}),
		{Name: "record GA session", Phase: lifecycle.PhaseAfter, When: GASmoke, Run: s.recordGASession},
	}

	for _, a := range actions {
		if err := ctrl.Register(a); err != nil {
			return fmt.Errorf("register %q: %w", a.Name, err)
		}
	}
	return nil
}
