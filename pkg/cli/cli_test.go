package cli

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/devicelab-dev/mobile-e2e/pkg/config"
	"github.com/devicelab-dev/mobile-e2e/pkg/core"
	"github.com/devicelab-dev/mobile-e2e/pkg/report"
	"github.com/devicelab-dev/mobile-e2e/pkg/runner"
)

func TestResolveOutputDir_Default(t *testing.T) {
	dir, err := resolveOutputDir("", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(dir, "reports/") {
		t.Errorf("expected dir to start with reports/, got %s", dir)
	}
	// Should have timestamp subfolder
	parts := strings.Split(dir, "/")
	if len(parts) != 2 {
		t.Errorf("expected reports/<timestamp>, got %s", dir)
	}
}

func TestResolveOutputDir_CustomOutput(t *testing.T) {
	dir, err := resolveOutputDir("./my-reports", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(dir, "my-reports/") {
		t.Errorf("expected dir to start with my-reports/, got %s", dir)
	}
}

func TestResolveOutputDir_Flatten(t *testing.T) {
	dir, err := resolveOutputDir("./my-reports", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dir != "my-reports" {
		t.Errorf("expected my-reports, got %s", dir)
	}
}

func TestResolveOutputDir_FlattenWithoutOutput(t *testing.T) {
	_, err := resolveOutputDir("", true)
	if err == nil {
		t.Fatal("expected error when flatten is used without output")
	}

	if !strings.Contains(err.Error(), "--flatten requires --output") {
		t.Errorf("expected error about --flatten requiring --output, got: %v", err)
	}
}

func TestParseEnvVars(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want map[string]string
	}{
		{"valid", []string{"USER=test", "PASS=secret", "EMPTY="}, map[string]string{"USER": "test", "PASS": "secret", "EMPTY": ""}},
		{"value with equals", []string{"URL=http://example.com?foo=bar"}, map[string]string{"URL": "http://example.com?foo=bar"}},
		{"no equals ignored", []string{"NOEQUALS"}, map[string]string{}},
		{"nil", nil, map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseEnvVars(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("parseEnvVars(%v) = %v, want %v", tt.in, got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	names := map[string]bool{}
	for _, f := range GlobalFlags {
		for _, n := range f.Names() {
			names[n] = true
		}
	}
	for _, want := range []string{"workspace", "w", "log-level", "log-format", "log-file", "verbose", "v", "no-ansi"} {
		if !names[want] {
			t.Errorf("global flag %q not defined", want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ms       int64
		expected string
	}{
		{0, "0ms"},
		{50, "50ms"},
		{999, "999ms"},
		{1000, "1.0s"},
		{1500, "1.5s"},
		{2126, "2.1s"},
		{59999, "60.0s"},
		{60000, "1m 0s"},
		{90000, "1m 30s"},
		{125000, "2m 5s"},
	}

	for _, tc := range tests {
		result := formatDuration(time.Duration(tc.ms) * time.Millisecond)
		if result != tc.expected {
			t.Errorf("formatDuration(%dms) = %q, expected %q", tc.ms, result, tc.expected)
		}
	}
}

func TestLoadCapabilities_ValidJSON(t *testing.T) {
	capsFile := filepath.Join(t.TempDir(), "sauce.json")
	capsContent := `{
		"platformName": "Android",
		"appium:deviceName": "Samsung.*",
		"sauce:options": {"build": "nightly", "name": "agentnet"}
	}`
	if err := os.WriteFile(capsFile, []byte(capsContent), 0o644); err != nil {
		t.Fatal(err)
	}

	caps, err := loadCapabilities(capsFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if caps["appium:deviceName"] != "Samsung.*" {
		t.Errorf("expected appium:deviceName=Samsung.*, got %v", caps["appium:deviceName"])
	}
	opts, ok := caps["sauce:options"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected sauce:options to be a map, got %T", caps["sauce:options"])
	}
	if opts["build"] != "nightly" {
		t.Errorf("expected build=nightly, got %v", opts["build"])
	}
}

func TestLoadCapabilities_Errors(t *testing.T) {
	invalid := filepath.Join(t.TempDir(), "invalid.json")
	if err := os.WriteFile(invalid, []byte(`{invalid json}`), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path string
		want string
	}{
		{invalid, "failed to parse caps JSON"},
		{"/nonexistent/caps.json", "failed to read caps file"},
	}
	for _, tt := range tests {
		_, err := loadCapabilities(tt.path)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("loadCapabilities(%s) error = %v, want %q", tt.path, err, tt.want)
		}
	}
}

func TestMergeCapabilities_Android(t *testing.T) {
	base := map[string]interface{}{"appium:deviceName": "emulator-5554", "appium:noReset": true}
	overlay := map[string]interface{}{"appium:deviceName": "Pixel 7"}
	app := config.App{Path: "/apps/pg.apk", Package: "com.propertyguru.agent", Activity: ".MainActivity", BundleID: "com.pg.ios"}

	caps := mergeCapabilities(base, overlay, core.PlatformAndroid, app)

	want := map[string]interface{}{
		"platformName":           "Android",
		"appium:automationName":  "UiAutomator2",
		"appium:deviceName":      "Pixel 7",
		"appium:noReset":         true,
		"appium:appPackage":      "com.propertyguru.agent",
		"appium:appActivity":     ".MainActivity",
		"appium:app":             "/apps/pg.apk",
	}
	for k, v := range want {
		if caps[k] != v {
			t.Errorf("%s = %v, want %v", k, caps[k], v)
		}
	}
	if _, ok := caps["appium:bundleId"]; ok {
		t.Error("android capabilities should not carry a bundle id")
	}
	if base["platformName"] != nil {
		t.Error("base capabilities were modified")
	}
}

func TestMergeCapabilities_IOSKeepsExplicitValues(t *testing.T) {
	overlay := map[string]interface{}{"appium:automationName": "Custom"}
	caps := mergeCapabilities(nil, overlay, core.PlatformIOS, config.App{BundleID: "com.pg.agent"})

	if caps["platformName"] != "iOS" {
		t.Errorf("platformName = %v", caps["platformName"])
	}
	if caps["appium:automationName"] != "Custom" {
		t.Errorf("automationName = %v, want the caps file value", caps["appium:automationName"])
	}
	if caps["appium:bundleId"] != "com.pg.agent" {
		t.Errorf("bundleId = %v", caps["appium:bundleId"])
	}
	if _, ok := caps["appium:app"]; ok {
		t.Error("empty app path should not be set")
	}
}

func TestColor(t *testing.T) {
	oldEnabled := colorsEnabled
	defer func() { colorsEnabled = oldEnabled }()

	colorsEnabled = true
	if got := color(colorGreen); got != colorGreen {
		t.Errorf("color(colorGreen) with colors enabled = %q", got)
	}
	colorsEnabled = false
	if got := color(colorGreen); got != "" {
		t.Errorf("color(colorGreen) with colors disabled = %q, want empty string", got)
	}
}

func TestPrintSummary(t *testing.T) {
	noColors(t)
	var out bytes.Buffer
	printSummary(&out, &runner.RunResult{
		Total: 3, Passed: 1, Failed: 1, Skipped: 1, Duration: 90 * time.Second,
		Scenarios: []runner.ScenarioResult{
			{ID: "1", Name: "Agent logs in", Status: core.ScenarioPassed, Duration: 1500 * time.Millisecond},
			{ID: "2", Name: "Agent creates listing", Status: core.ScenarioFailed, TeardownErrs: []error{errors.New("reinstall failed")}},
			{Name: "Not selected", Status: core.ScenarioSkipped},
		},
	})

	got := out.String()
	for _, want := range []string{"Agent logs in", "✓ PASS", "1.5s", "✗ FAIL", "teardown: reinstall failed", "3 scenarios (1 passed, 1 failed, 1 skipped) in 1m30s"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Not selected") {
		t.Errorf("unselected scenario listed:\n%s", got)
	}
}

func noColors(t *testing.T) {
	t.Helper()
	old := colorsEnabled
	colorsEnabled = false
	t.Cleanup(func() { colorsEnabled = old })
}

// workspace writes a suite directory with one agent feature file.
func workspace(t *testing.T, configYAML string) string {
	t.Helper()
	ws := t.TempDir()
	files := map[string]string{
		"config.yaml": configYAML,
		"features/agentnet/login.feature": `@agentnet
Feature: Agent login

  Scenario: Agent logs in
    Given a step "open"

  @wip @mediaUpload
  Scenario: Agent uploads photos
    Given a step "upload"
`,
		"features/consumer/search.feature": `Feature: Search

  @hardResetApp
  Scenario: Consumer searches
    Given a step "search"
`,
		"assets/pg-sg.yaml": "AgentNet:\n  timezone: Asia/Singapore\n",
	}
	for name, content := range files {
		path := filepath.Join(ws, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return ws
}

func marketplace(t *testing.T) {
	t.Helper()
	for k, v := range map[string]string{
		"COUNTRY": "SG", "PRODUCT": "agentnet", "ENVIRONMENT": "", "PLATFORM": "android", "IS_CLOUD": "false", "TAGS": "",
	} {
		t.Setenv(k, v)
	}
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	noColors(t)
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.Run(append([]string{"mobile-e2e", "--log-level", "error"}, args...))
	return out.String(), err
}

func TestRun_DryRun(t *testing.T) {
	marketplace(t)
	ws := workspace(t, "features:\n  - features/**/*.feature\napp:\n  package: com.pg.agent\n")

	out, err := runApp(t, "--workspace", ws, "run", "--dry-run", "--tags", "not @wip")
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}

	for _, want := range []string{
		"Agent logs in",
		"Consumer searches",
		"agentnet debug login",
		"hard reset app",
		"attach report data",
		"2 scenarios selected",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("plan missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Agent uploads photos") {
		t.Errorf("@wip scenario planned:\n%s", out)
	}
	if strings.Contains(out, "restart app") {
		t.Errorf("restart planned although every scenario hard resets:\n%s", out)
	}
}

func TestRun_DryRunFeatureArgument(t *testing.T) {
	marketplace(t)
	ws := workspace(t, "app:\n  package: com.pg.agent\n")

	out, err := runApp(t, "--workspace", ws, "run", "--dry-run", filepath.Join(ws, "features", "consumer"))
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if !strings.Contains(out, "1 scenarios selected") || strings.Contains(out, "Agent logs in") {
		t.Errorf("expected only the consumer feature:\n%s", out)
	}
}

func TestRun_NoFeatures(t *testing.T) {
	marketplace(t)
	ws := t.TempDir()
	if err := os.WriteFile(filepath.Join(ws, "config.yaml"), []byte("tags: \"@smoke\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := runApp(t, "--workspace", ws, "run", "--dry-run")
	if !errors.Is(err, core.ErrMissingRequired) {
		t.Fatalf("error = %v, want missing required", err)
	}
}

func TestRun_InvalidTags(t *testing.T) {
	marketplace(t)
	ws := workspace(t, "")

	if _, err := runApp(t, "--workspace", ws, "run", "--dry-run", "--tags", "@a and"); err == nil {
		t.Fatal("expected error for a malformed tag expression")
	}
}

func TestRun_FlattenWithoutOutput(t *testing.T) {
	marketplace(t)
	ws := workspace(t, "")

	_, err := runApp(t, "--workspace", ws, "run", "--flatten")
	if err == nil || !strings.Contains(err.Error(), "--flatten requires --output") {
		t.Fatalf("error = %v", err)
	}
}

func TestRun_SessionFailure(t *testing.T) {
	marketplace(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"value":{"error":"session not created","message":"no device available"}}`))
	}))
	defer server.Close()

	ws := workspace(t, "app:\n  package: com.pg.agent\n")
	out := filepath.Join(t.TempDir(), "out")

	_, err := runApp(t, "--workspace", ws, "run", "--appium-url", server.URL, "--output", out, "--flatten")
	if err == nil || !strings.Contains(err.Error(), "failed to start session") {
		t.Fatalf("error = %v, want session failure", err)
	}
	if _, statErr := os.Stat(filepath.Join(out, report.IndexFile)); !os.IsNotExist(statErr) {
		t.Errorf("report written without a session: %v", statErr)
	}
}

func TestRun_MissingAppID(t *testing.T) {
	marketplace(t)
	ws := workspace(t, "")

	_, err := runApp(t, "--workspace", ws, "run")
	if !errors.Is(err, core.ErrMissingRequired) {
		t.Fatalf("error = %v, want missing app id", err)
	}
}

func TestReportCommand(t *testing.T) {
	dir := t.TempDir()
	rec, err := report.NewRecorder(dir,
		report.Device{Platform: "android", SessionID: "abc", Cloud: true},
		report.App{ID: "com.pg.agent"},
		report.Environment{Country: "SG", Product: "agentnet", Environment: "integration"},
	)
	if err != nil {
		t.Fatal(err)
	}
	passed := rec.StartScenario(report.ScenarioInfo{Name: "Agent logs in", URI: "features/login.feature"})
	failed := rec.StartScenario(report.ScenarioInfo{Name: "Agent creates listing", URI: "features/listing.feature"})
	if err := rec.EndScenario(passed, core.ScenarioPassed, nil, 2*time.Second); err != nil {
		t.Fatal(err)
	}
	if err := rec.EndScenario(failed, core.ScenarioFailed, errors.New("element not found"), time.Second); err != nil {
		t.Fatal(err)
	}
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}

	out, err := runApp(t, "report", dir)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	for _, want := range []string{
		"Run failed: SG/agentnet integration on android (cloud)",
		"Agent logs in",
		"element not found",
		"2 scenarios (1 passed, 1 failed, 0 skipped)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report output missing %q:\n%s", want, out)
		}
	}
}

func TestReportCommand_Args(t *testing.T) {
	if _, err := runApp(t, "report"); err == nil {
		t.Error("expected error without a report directory")
	}
	if _, err := runApp(t, "report", t.TempDir()); err == nil {
		t.Error("expected error for a directory without report.json")
	}
}
