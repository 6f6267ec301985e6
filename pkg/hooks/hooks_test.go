package hooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/devicelab-dev/mobile-e2e/pkg/actions"
	"github.com/devicelab-dev/mobile-e2e/pkg/assets"
	"github.com/devicelab-dev/mobile-e2e/pkg/config"
	"github.com/devicelab-dev/mobile-e2e/pkg/core"
	"github.com/devicelab-dev/mobile-e2e/pkg/datastore"
	"github.com/devicelab-dev/mobile-e2e/pkg/driver/mock"
	"github.com/devicelab-dev/mobile-e2e/pkg/lifecycle"
	"github.com/devicelab-dev/mobile-e2e/pkg/tags"
)

const testDeepLink = "propertyguru://debug"

func fastWaits(t *testing.T) {
	t.Helper()
	timeout, interval, notif, settle := actions.DefaultTimeout, actions.PollInterval, actions.NotificationTimeout, actions.InstallSettle
	save, login, tap := DebugSaveTimeout, LoginImageTimeout, LanguageTapDelay
	actions.DefaultTimeout = 50 * time.Millisecond
	actions.PollInterval = 5 * time.Millisecond
	actions.NotificationTimeout = 20 * time.Millisecond
	actions.InstallSettle = 0
	DebugSaveTimeout, LoginImageTimeout, LanguageTapDelay = 50*time.Millisecond, 50*time.Millisecond, 0
	t.Cleanup(func() {
		actions.DefaultTimeout, actions.PollInterval, actions.NotificationTimeout, actions.InstallSettle = timeout, interval, notif, settle
		DebugSaveTimeout, LoginImageTimeout, LanguageTapDelay = save, login, tap
	})
}

// memorySink keeps attachments per scenario.
type memorySink struct {
	mu  sync.Mutex
	got map[string][]core.Attachment
}

func (s *memorySink) Attach(_ context.Context, id string, a core.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.got == nil {
		s.got = make(map[string][]core.Attachment)
	}
	s.got[id] = append(s.got[id], a)
	return nil
}

func (s *memorySink) names(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, a := range s.got[id] {
		out = append(out, a.Name)
	}
	return out
}

func (s *memorySink) find(id, name string) (core.Attachment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.got[id] {
		if a.Name == name {
			return a, true
		}
	}
	return core.Attachment{}, false
}

type fixture struct {
	dev   *mock.Device
	store *datastore.Store
	sink  *memorySink
	ctrl  *lifecycle.Controller
	cfg   *config.Config
}

func newFixture(t *testing.T, env config.Env, dev *mock.Device) *fixture {
	t.Helper()
	fastWaits(t)

	dir := t.TempDir()
	bundle := "AgentNet:\n  timezone: Asia/Singapore\n"
	if env.IsTH() {
		bundle = "AgentNet:\n  timezone: Asia/Bangkok\n"
	}
	name := "pg-" + strings.ToLower(env.Country) + ".yaml"
	if err := os.WriteFile(filepath.Join(dir, name), []byte(bundle), 0644); err != nil {
		t.Fatal(err)
	}

	f := &fixture{
		dev:   dev,
		store: datastore.New(),
		sink:  &memorySink{},
		cfg:   &config.Config{DeepLink: testDeepLink, MediaDir: filepath.Join(dir, "media")},
	}
	f.ctrl = lifecycle.New(f.store)
	err := Register(f.ctrl, Deps{
		Device: dev,
		Store:  f.store,
		Config: f.cfg,
		Env:    env,
		Assets: assets.NewProvider(dir, env),
		Sink:   f.sink,
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return f
}

// run drives one scenario through before and after with the given outcome.
func (f *fixture) run(t *testing.T, status core.ScenarioStatus, tagNames ...string) (*lifecycle.Scenario, error) {
	t.Helper()
	sc := &lifecycle.Scenario{ID: "sc-1", Name: "scenario", Tags: tags.NewTagSet(tagNames...)}
	_, err := f.ctrl.RunBefore(context.Background(), sc)
	if err == nil {
		sc.Status = status
	}
	for _, r := range f.ctrl.RunAfter(context.Background(), sc) {
		if r.Err != nil {
			t.Errorf("after hook %q failed: %v", r.Action, r.Err)
		}
	}
	return sc, err
}

func hasCall(dev *mock.Device, call string) bool {
	for _, c := range dev.Calls() {
		if c.String() == call {
			return true
		}
	}
	return false
}

func TestAgentnetLogin_CloudAndroid(t *testing.T) {
	env := config.Env{Country: "SG", Product: "agentnet", Environment: "integration", Platform: "android", IsCloud: true}
	f := newFixture(t, env, mock.New(mock.Config{AllDisplayed: true}))

	if _, err := f.run(t, core.ScenarioPassed, "@agentnet", "@login"); err != nil {
		t.Fatalf("run error = %v", err)
	}

	for _, want := range []string{
		"OpenURL(" + testDeepLink + ")",
		"Click(" + integrationEnvButton + ")",
		"Click(" + debugSaveButton + ")",
		"RemoveApp(com.example.app)",
		"InstallApp(/tmp/app.apk)",
	} {
		if !hasCall(f.dev, want) {
			t.Errorf("missing call %s in %v", want, f.dev.Methods())
		}
	}

	var shell string
	for _, c := range f.dev.Calls() {
		if c.Method == "ExecuteMobile" {
			shell = c.Args[1].(map[string]interface{})["command"].(string)
		}
	}
	if shell != "su root service call alarm 3 s16 Singapore" {
		t.Errorf("timezone command = %q", shell)
	}

	// hard reset only, and the cloud session is kept
	if n := f.dev.CallCount("TerminateApp"); n != 1 {
		t.Errorf("TerminateApp called %d times, want 1", n)
	}
	if n := f.dev.CallCount("ReloadSession"); n != 0 {
		t.Errorf("ReloadSession called %d times on cloud, want 0", n)
	}
	if hasCall(f.dev, "Click("+englishLanguageItem+")") {
		t.Error("language switched for SG")
	}
}

func TestAgentnetLogin_DDEOnIOS(t *testing.T) {
	env := config.Env{Country: "DDE", Product: "agentnet", Environment: "staging", Platform: "ios"}
	f := newFixture(t, env, mock.New(mock.Config{Platform: core.PlatformIOS, AllDisplayed: true}))

	if _, err := f.run(t, core.ScenarioPassed, "@agentnet"); err != nil {
		t.Fatalf("run error = %v", err)
	}

	if hasCall(f.dev, "Click("+integrationEnvButton+")") {
		t.Error("integration selected for staging")
	}
	if f.dev.CallCount("ExecuteMobile") != 0 {
		t.Error("timezone set on a local ios device")
	}
	// 1080x2400: x = 1080 - 108, y = 2400 * 0.08
	if !hasCall(f.dev, "Tap(972, 192)") {
		t.Errorf("language picker not tapped by position: %v", f.dev.Calls())
	}
	if !hasCall(f.dev, "Click("+englishLanguageItem+")") {
		t.Error("English not selected")
	}
	if f.dev.CallCount("ReloadSession") != 1 {
		t.Error("local session not reloaded after hard reset")
	}
}

func TestAgentnetLogin_DDEOnAndroidUsesToggle(t *testing.T) {
	env := config.Env{Country: "DDE", Product: "agentnet", Platform: "android"}
	f := newFixture(t, env, mock.New(mock.Config{AllDisplayed: true}))

	if _, err := f.run(t, core.ScenarioPassed, "@agentnet"); err != nil {
		t.Fatalf("run error = %v", err)
	}
	if !hasCall(f.dev, "Click("+languageToggle+")") {
		t.Error("language toggle not clicked")
	}
	if f.dev.CallCount("Tap") != 0 {
		t.Error("android tapped by position")
	}
}

func TestAgentnetLogin_MissingDeepLink(t *testing.T) {
	env := config.Env{Country: "SG", Platform: "android"}
	f := newFixture(t, env, mock.New(mock.Config{AllDisplayed: true}))
	f.cfg.DeepLink = ""

	sc, err := f.run(t, core.ScenarioPassed, "@agentnet")
	if !errors.Is(err, core.ErrSetupFailed) || !errors.Is(err, core.ErrMissingRequired) {
		t.Fatalf("run error = %v, want setup failure for missing deep link", err)
	}
	if !sc.Failed() {
		t.Error("scenario not failed")
	}
	if _, ok := f.sink.find("sc-1", core.AttachmentFailure); !ok {
		t.Error("failure detail not attached")
	}
	if f.dev.CallCount("RemoveApp") != 1 {
		t.Error("hard reset skipped after setup failure")
	}
}

func TestDeepLinkScenario_OnlySetsTimezone(t *testing.T) {
	env := config.Env{Country: "DD", Platform: "android", IsCloud: true}
	f := newFixture(t, env, mock.New(mock.Config{AllDisplayed: true}))

	if _, err := f.run(t, core.ScenarioPassed, "@agentnet", "@deeplink"); err != nil {
		t.Fatalf("run error = %v", err)
	}
	if f.dev.CallCount("OpenURL") != 0 {
		t.Error("debug deep link opened for @deeplink scenario")
	}
	if !hasCall(f.dev, "ExecuteMobile(shell, map[command:su root service call alarm 3 s16 Asia/Bangkok])") {
		t.Errorf("timezone not set: %v", f.dev.Calls())
	}
}

func TestUntaggedScenario(t *testing.T) {
	env := config.Env{Country: "SG", Platform: "android"}
	f := newFixture(t, env, mock.New(mock.Config{}))
	f.store.Set("listingId", 42)

	if _, err := f.run(t, core.ScenarioPassed); err != nil {
		t.Fatalf("run error = %v", err)
	}

	// the notification prompt is polled until its timeout, then the app restarts
	var calls []string
	for _, m := range f.dev.Methods() {
		if m != "IsDisplayed" {
			calls = append(calls, m)
		}
	}
	if got := strings.Join(calls, ","); got != "TerminateApp,ActivateApp" {
		t.Errorf("device calls = %v, want polling then TerminateApp,ActivateApp", f.dev.Methods())
	}
	if got := strings.Join(f.sink.names("sc-1"), ","); got != "scenario_data,suite_data" {
		t.Errorf("attachments = %s", got)
	}
	if f.store.IsPresent("listingId") {
		t.Error("scenario data not cleared before the scenario")
	}
}

func TestResetPartition(t *testing.T) {
	cases := [][]string{
		nil,
		{"@agentnet"},
		{"@hardResetApp"},
		{"@agentnet", "@hardResetApp"},
		{"@smoke"},
		{"@deeplink"},
	}
	for _, tagNames := range cases {
		set := tags.NewTagSet(tagNames...)
		if HardReset.Match(set) == Restart.Match(set) {
			t.Errorf("tags %v: hard reset = %v, restart = %v", tagNames, HardReset.Match(set), Restart.Match(set))
		}
	}
}

func TestHardResetApp_NonAgentnet(t *testing.T) {
	env := config.Env{Country: "MY", Platform: "android"}
	f := newFixture(t, env, mock.New(mock.Config{}))

	if _, err := f.run(t, core.ScenarioPassed, "@hardResetApp"); err != nil {
		t.Fatalf("run error = %v", err)
	}
	if f.dev.CallCount("OpenURL") != 0 {
		t.Error("agent login ran for @hardResetApp")
	}
	if f.dev.CallCount("RemoveApp") != 1 || f.dev.CallCount("TerminateApp") != 1 {
		t.Errorf("calls = %v, want one reinstall and no restart", f.dev.Methods())
	}
}

func TestTimezoneCommand(t *testing.T) {
	tests := []struct {
		tz, country, want string
	}{
		{"Asia/Bangkok", "TH", "su root service call alarm 3 s16 Asia/Bangkok"},
		{"Asia/Singapore", "SG", "su root service call alarm 3 s16 Singapore"},
		{"Asia/Kuala_Lumpur", "MY", "su root service call alarm 3 s16 Kuala_Lumpur"},
	}
	for _, tt := range tests {
		if got := TimezoneCommand(tt.tz, tt.country); got != tt.want {
			t.Errorf("TimezoneCommand(%q, %q) = %q, want %q", tt.tz, tt.country, got, tt.want)
		}
	}
}

func TestSetTimezone_SkippedLocally(t *testing.T) {
	env := config.Env{Country: "SG", Platform: "android"}
	f := newFixture(t, env, mock.New(mock.Config{AllDisplayed: true}))

	if _, err := f.run(t, core.ScenarioPassed, "@agentnet", "@deeplink"); err != nil {
		t.Fatalf("run error = %v", err)
	}
	if f.dev.CallCount("ExecuteMobile") != 0 {
		t.Error("timezone set on a local device")
	}
}

func TestPlatformGatedHooks(t *testing.T) {
	tests := []struct {
		platform   string
		tag        string
		wantMethod string
		wantCalls  int
	}{
		{core.PlatformAndroid, "@setLocation", "ToggleLocationServices", 1},
		{core.PlatformIOS, "@setLocation", "ToggleLocationServices", 0},
		{core.PlatformIOS, "@disableAutoAcceptAlert", "UpdateSettings", 1},
		{core.PlatformAndroid, "@disableAutoAcceptAlert", "UpdateSettings", 0},
	}
	for _, tt := range tests {
		t.Run(tt.platform+tt.tag, func(t *testing.T) {
			env := config.Env{Country: "SG", Platform: tt.platform}
			f := newFixture(t, env, mock.New(mock.Config{Platform: tt.platform}))

			if _, err := f.run(t, core.ScenarioPassed, tt.tag); err != nil {
				t.Fatalf("run error = %v", err)
			}
			if n := f.dev.CallCount(tt.wantMethod); n != tt.wantCalls {
				t.Errorf("%s called %d times, want %d", tt.wantMethod, n, tt.wantCalls)
			}
		})
	}
}

func TestDisableAutoAcceptAlert_ClearsAction(t *testing.T) {
	env := config.Env{Country: "SG", Platform: "ios"}
	f := newFixture(t, env, mock.New(mock.Config{Platform: core.PlatformIOS}))

	if _, err := f.run(t, core.ScenarioPassed, "@disableAutoAcceptAlert"); err != nil {
		t.Fatalf("run error = %v", err)
	}
	if v, ok := f.dev.Setting("defaultAlertAction"); !ok || v != "" {
		t.Errorf("defaultAlertAction = %v, %v", v, ok)
	}
}

func writeMedia(t *testing.T, root string) {
	t.Helper()
	for _, f := range []struct{ dir, name, body string }{
		{"photos", "house.jpg", "jpg"},
		{"photos", "garden.png", "png"},
		{"video", "tour.mp4", "mp4"},
	} {
		dir := filepath.Join(root, f.dir)
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, f.name), []byte(f.body), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestMediaUpload(t *testing.T) {
	tests := []struct {
		platform string
		prefix   string
	}{
		{core.PlatformAndroid, AndroidMediaLocation},
		{core.PlatformIOS, ""},
	}
	for _, tt := range tests {
		t.Run(tt.platform, func(t *testing.T) {
			env := config.Env{Country: "SG", Platform: tt.platform}
			f := newFixture(t, env, mock.New(mock.Config{Platform: tt.platform}))
			writeMedia(t, f.cfg.MediaDir)

			if _, err := f.run(t, core.ScenarioPassed, "@mediaUpload"); err != nil {
				t.Fatalf("run error = %v", err)
			}
			for name, body := range map[string]string{"house.jpg": "jpg", "garden.png": "png", "tour.mp4": "mp4"} {
				data, ok := f.dev.File(tt.prefix + name)
				if !ok || string(data) != body {
					t.Errorf("File(%q) = %q, %v", tt.prefix+name, data, ok)
				}
			}
		})
	}
}

func TestMediaUpload_MissingFolders(t *testing.T) {
	env := config.Env{Country: "SG", Platform: "android"}
	f := newFixture(t, env, mock.New(mock.Config{}))

	if _, err := f.run(t, core.ScenarioPassed, "@mediaUpload"); err != nil {
		t.Fatalf("run error = %v", err)
	}
	if f.dev.CallCount("PushFile") != 0 {
		t.Error("files pushed without media folders")
	}
}

func TestPushFiles_FailureStops(t *testing.T) {
	dev := mock.New(mock.Config{})
	boom := errors.New("disk full")
	dev.FailOn("PushFile", boom)

	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := PushFiles(context.Background(), dev, "", []string{path}); !errors.Is(err, boom) {
		t.Errorf("PushFiles() error = %v, want %v", err, boom)
	}
}

func TestReportLinkOnCloudFailure(t *testing.T) {
	env := config.Env{Country: "SG", Platform: "android", IsCloud: true, SauceUsername: "ci", SauceAccessKey: "secret"}
	f := newFixture(t, env, mock.New(mock.Config{SessionID: "abc123"}))

	if _, err := f.run(t, core.ScenarioFailed, "@smoke"); err != nil {
		t.Fatalf("run error = %v", err)
	}

	got := strings.Join(f.sink.names("sc-1"), ",")
	if got != "scenario_data,suite_data,report_link,failure,screenshot" {
		t.Errorf("attachments = %s", got)
	}
	link, _ := f.sink.find("sc-1", core.AttachmentReportLink)
	url := gjson.GetBytes(link.Body, "sauceLabURL").String()
	if !strings.HasPrefix(url, "https://app.saucelabs.com/tests/abc123?auth=") {
		t.Errorf("sauceLabURL = %q", url)
	}
}

func TestGASession_Recorded(t *testing.T) {
	env := config.Env{Country: "SG", Platform: "android", FeatureFile: "login.feature"}
	f := newFixture(t, env, mock.New(mock.Config{SessionID: "sess-1", AllDisplayed: true}))
	f.cfg.GAKeysFile = filepath.Join(t.TempDir(), "ga.json")
	if err := os.WriteFile(f.cfg.GAKeysFile, []byte(`{"login.feature":{"ios":"old"}}`), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := f.run(t, core.ScenarioPassed, "@GA", "@agentnet", "@smoke"); err != nil {
		t.Fatalf("run error = %v", err)
	}

	data, err := os.ReadFile(f.cfg.GAKeysFile)
	if err != nil {
		t.Fatal(err)
	}
	if got := gjson.GetBytes(data, `login\.feature.android`).String(); got != "sess-1" {
		t.Errorf("android session = %q in %s", got, data)
	}
	if got := gjson.GetBytes(data, `login\.feature.ios`).String(); got != "old" {
		t.Errorf("ios session = %q, want untouched", got)
	}
}

func TestRecordGASession(t *testing.T) {
	tests := []struct {
		name    string
		content string // empty: no file
		want    bool
	}{
		{"listed feature", `{"search": {}}`, true},
		{"unlisted feature", `{"other": {}}`, false},
		{"missing file", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "ga.json")
			if tt.content != "" {
				if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
					t.Fatal(err)
				}
			}
			got, err := RecordGASession(path, "search", "ios", "s-9")
			if err != nil {
				t.Fatalf("RecordGASession() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("RecordGASession() = %v, want %v", got, tt.want)
			}
			if !tt.want && tt.content != "" {
				data, _ := os.ReadFile(path)
				if string(data) != tt.content {
					t.Errorf("file rewritten: %s", data)
				}
			}
		})
	}
}

func TestRecordGASession_SpecialCharacterKeys(t *testing.T) {
	for _, feature := range []string{"search.v2", "home|map", "tag#1", "@smoke", "!wip", "price>=1"} {
		t.Run(feature, func(t *testing.T) {
			key, _ := json.Marshal(feature)
			path := filepath.Join(t.TempDir(), "ga.json")
			content := fmt.Sprintf(`{%s: {}, "other": {}}`, key)
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatal(err)
			}

			got, err := RecordGASession(path, feature, "android", "s-1")
			if err != nil || !got {
				t.Fatalf("RecordGASession() = %v, %v; want true", got, err)
			}

			data, _ := os.ReadFile(path)
			var keys map[string]map[string]string
			if err := json.Unmarshal(data, &keys); err != nil {
				t.Fatalf("invalid JSON written: %v\n%s", err, data)
			}
			if keys[feature]["android"] != "s-1" {
				t.Errorf("session not recorded under %q:\n%s", feature, data)
			}
			if len(keys) != 2 || len(keys["other"]) != 0 {
				t.Errorf("unexpected keys written:\n%s", data)
			}
		})
	}
}

func TestRecordGASession_Indented(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ga.json")
	if err := os.WriteFile(path, []byte(`{"search":{}}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := RecordGASession(path, "search", "android", "s-1"); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "\n  \"search\"") {
		t.Errorf("file not indented with two spaces:\n%s", data)
	}
}

func TestRegister_MissingDeps(t *testing.T) {
	err := Register(lifecycle.New(datastore.New()), Deps{Device: mock.New(mock.Config{})})
	if !errors.Is(err, core.ErrMissingRequired) {
		t.Errorf("Register() error = %v, want ErrMissingRequired", err)
	}
}
