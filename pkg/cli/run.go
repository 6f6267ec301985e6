package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/cucumber/godog"
	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/mobile-e2e/pkg/assets"
	"github.com/devicelab-dev/mobile-e2e/pkg/config"
	"github.com/devicelab-dev/mobile-e2e/pkg/core"
	"github.com/devicelab-dev/mobile-e2e/pkg/database"
	"github.com/devicelab-dev/mobile-e2e/pkg/datastore"
	"github.com/devicelab-dev/mobile-e2e/pkg/datetime"
	"github.com/devicelab-dev/mobile-e2e/pkg/driver/appium"
	"github.com/devicelab-dev/mobile-e2e/pkg/driver/mock"
	"github.com/devicelab-dev/mobile-e2e/pkg/hooks"
	"github.com/devicelab-dev/mobile-e2e/pkg/jsengine"
	"github.com/devicelab-dev/mobile-e2e/pkg/lifecycle"
	"github.com/devicelab-dev/mobile-e2e/pkg/logger"
	"github.com/devicelab-dev/mobile-e2e/pkg/report"
	"github.com/devicelab-dev/mobile-e2e/pkg/runner"
	"github.com/devicelab-dev/mobile-e2e/pkg/steps"
	"github.com/devicelab-dev/mobile-e2e/pkg/tags"
	"github.com/devicelab-dev/mobile-e2e/pkg/testdata"
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run feature files on a device",
	ArgsUsage: "[feature-file-or-folder]...",
	Description: `Run the suite's feature files. Without arguments the "features" globs
of config.yaml are used.

The marketplace comes from the environment (COUNTRY, PRODUCT, ENVIRONMENT,
PLATFORM, IS_CLOUD), after loading .env.<ENVIRONMENT> and .env from the
workspace.

Reports are generated in the output directory:
  - Default: <config output>/<timestamp>/
  - With --output: <output>/<timestamp>/
  - With --output and --flatten: <output>/ (no timestamp subfolder)

Examples:
  mobile-e2e run
  mobile-e2e run --tags "@agentnet and not @wip" features/agentnet
  COUNTRY=DDE PLATFORM=ios mobile-e2e run --caps caps/ios.json
  mobile-e2e run --dry-run --tags @smoke`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path to config.yaml (default: <workspace>/config.yaml)",
		},
		&cli.StringFlag{
			Name:    "tags",
			Aliases: []string{"t"},
			Usage:   `Tag expression selecting scenarios, e.g. "@smoke and not @wip"`,
			EnvVars: []string{"TAGS"},
		},
		&cli.StringSliceFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Variables for step expressions (KEY=VALUE)",
		},
		&cli.StringFlag{
			Name:    "platform",
			Aliases: []string{"p"},
			Usage:   "Platform to run on (android, ios); overrides PLATFORM",
		},
		&cli.StringFlag{
			Name:    "appium-url",
			Usage:   "Appium server URL; overrides config.yaml",
			EnvVars: []string{"APPIUM_URL"},
		},
		&cli.StringFlag{
			Name:  "caps",
			Usage: "JSON file with Appium capabilities merged over config.yaml",
		},
		&cli.StringFlag{
			Name:  "output",
			Usage: "Output directory for reports",
		},
		&cli.BoolFlag{
			Name:  "flatten",
			Usage: "Don't create timestamp subfolder (requires --output)",
		},
		&cli.StringFlag{
			Name:  "format",
			Usage: "godog formatter (progress, pretty, cucumber, junit)",
			Value: "progress",
		},
		&cli.BoolFlag{
			Name:  "strict",
			Usage: "Fail scenarios with pending or undefined steps",
		},
		&cli.BoolFlag{
			Name:  "stop-on-fail",
			Usage: "Skip remaining scenarios after the first failure",
		},
		&cli.StringFlag{
			Name:  "database",
			Usage: "Connect the SQL steps to this database from the credentials file (ads, propertyDB)",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "List selected scenarios and their hooks without a device",
		},
	},
	Action: runSuite,
}

// RunConfig holds everything a run needs.
type RunConfig struct {
	Workspace string
	Config    *config.Config
	Env       config.Env
	Vars      map[string]string // Step expression variables
	Features  []string
	Select    tags.Predicate
	OutputDir string

	Capabilities map[string]interface{}
	Format       string
	Strict       bool
	StopOnFail   bool
	Database     string
}

func runSuite(c *cli.Context) error {
	cfg, err := buildRunConfig(c)
	if err != nil {
		return err
	}

	if c.Bool("dry-run") {
		return dryRun(c, cfg)
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return executeRun(ctx, c, cfg)
}

func buildRunConfig(c *cli.Context) (*RunConfig, error) {
	ws := c.String("workspace")
	if ws == "" {
		ws = config.FindWorkspace(".")
	}

	var (
		wc  *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		wc, err = config.Load(path)
	} else {
		wc, err = config.LoadFromDir(ws)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if url := c.String("appium-url"); url != "" {
		wc.AppiumURL = url
	}

	env, err := config.LoadEnv(config.EnvFiles(ws, os.Getenv("ENVIRONMENT"))...)
	if err != nil {
		return nil, err
	}
	if p := c.String("platform"); p != "" {
		env.Platform = strings.ToLower(p)
	}

	// Arguments are relative to the working directory, config globs to the workspace.
	root, patterns := ws, wc.Features
	if c.NArg() > 0 {
		root, patterns = ".", c.Args().Slice()
	}
	features, err := config.ResolveFeatures(root, patterns)
	if err != nil {
		return nil, err
	}
	if len(features) == 0 {
		return nil, core.ErrMissingRequired.WithMessage("no feature files match " + strings.Join(patterns, ", "))
	}

	expr := c.String("tags")
	if expr == "" {
		expr = wc.Tags
	}
	sel, err := tags.Parse(expr)
	if err != nil {
		return nil, err
	}

	output := c.String("output")
	if output == "" && c.Bool("flatten") {
		return nil, fmt.Errorf("--flatten requires --output to be specified")
	}
	if output == "" {
		output = wc.Output
	}
	outputDir, err := resolveOutputDir(output, c.Bool("flatten"))
	if err != nil {
		return nil, err
	}

	var fileCaps map[string]interface{}
	if path := c.String("caps"); path != "" {
		if fileCaps, err = loadCapabilities(path); err != nil {
			return nil, err
		}
	}

	vars := env.Vars()
	for k, v := range wc.Env {
		vars[k] = v
	}
	for k, v := range parseEnvVars(c.StringSlice("env")) {
		vars[k] = v // CLI overrides workspace config
	}

	return &RunConfig{
		Workspace:    ws,
		Config:       wc,
		Env:          env,
		Vars:         vars,
		Features:     features,
		Select:       sel,
		OutputDir:    outputDir,
		Capabilities: mergeCapabilities(wc.Capabilities, fileCaps, env.Platform, wc.App),
		Format:       c.String("format"),
		Strict:       c.Bool("strict"),
		StopOnFail:   c.Bool("stop-on-fail"),
		Database:     c.String("database"),
	}, nil
}

// dryRun lists the selected scenarios with the hooks they would trigger.
func dryRun(c *cli.Context, cfg *RunConfig) error {
	planned, err := runner.Discover(cfg.Features, cfg.Select)
	if err != nil {
		return err
	}

	store := datastore.New()
	ctrl := lifecycle.New(store)
	dev := mock.New(mock.Config{Platform: cfg.Env.Platform, AllDisplayed: true})
	err = hooks.Register(ctrl, hooks.Deps{
		Device: dev,
		Store:  store,
		Config: cfg.Config,
		Env:    cfg.Env,
		Assets: assets.NewProvider(cfg.Config.AssetsDir, cfg.Env),
		Sink:   lifecycle.SinkFunc(func(context.Context, string, core.Attachment) error { return nil }),
	})
	if err != nil {
		return err
	}

	runner.Plan(ctrl, planned)
	printPlan(c.App.Writer, planned)
	return nil
}

func executeRun(ctx context.Context, c *cli.Context, cfg *RunConfig) error {
	if err := cfg.Config.Validate(cfg.Env.Platform); err != nil {
		return err
	}
	logger.Info("=== Test execution started ===")
	logger.Info("Workspace: %s", cfg.Workspace)
	logger.Info("Output directory: %s", cfg.OutputDir)
	logger.Info("Marketplace: %s %s %s on %s (cloud=%v)", cfg.Env.Country, cfg.Env.Product, cfg.Env.Environment, cfg.Env.Platform, cfg.Env.IsCloud)

	opts := []appium.Option{}
	if cfg.Env.IsCloud && cfg.Env.SauceUsername != "" {
		opts = append(opts, appium.WithBasicAuth(cfg.Env.SauceUsername, cfg.Env.SauceAccessKey))
	}
	client := appium.NewClient(cfg.Config.AppiumURL, opts...)
	app := appium.AppInfo{ID: cfg.Config.App.ID(cfg.Env.Platform), Path: cfg.Config.App.Path}

	dev, err := appium.NewDevice(ctx, client, cfg.Capabilities, app)
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := dev.Close(closeCtx); err != nil {
			logger.Warn("close session: %v", err)
		}
	}()
	logger.Info("Session %s started", dev.SessionID())

	recorder, err := report.NewRecorder(cfg.OutputDir,
		report.Device{Platform: dev.Platform(), SessionID: dev.SessionID(), Cloud: cfg.Env.IsCloud},
		report.App{ID: dev.AppID(), Path: dev.AppPath()},
		report.Environment{Country: cfg.Env.Country, Product: cfg.Env.Product, Environment: cfg.Env.Environment},
	)
	if err != nil {
		return err
	}

	store := datastore.New()
	ctrl := lifecycle.New(store)
	provider := assets.NewProvider(cfg.Config.AssetsDir, cfg.Env)
	err = hooks.Register(ctrl, hooks.Deps{
		Device: dev,
		Store:  store,
		Config: cfg.Config,
		Env:    cfg.Env,
		Assets: provider,
		Sink:   recorder,
	})
	if err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	// Date steps fall back to UTC when the bundle has no timezone.
	tz, err := provider.Timezone()
	if err != nil {
		logger.Debug("no marketplace timezone: %v", err)
	}

	stepDeps := steps.Deps{
		Device:   dev,
		Store:    store,
		Engine:   jsengine.New(store, cfg.Vars),
		Dates:    datetime.New(cfg.Env.Country),
		Data:     testdata.New(),
		Timezone: tz,
		DB:       db,
	}

	out := progress{out: c.App.Writer}
	r := runner.New(ctrl, recorder, func(sc *godog.ScenarioContext) {
		steps.Register(sc, stepDeps)
	}, runner.Config{
		Name:            "mobile-e2e",
		Paths:           cfg.Features,
		Select:          cfg.Select,
		Format:          cfg.Format,
		Output:          c.App.Writer,
		Strict:          cfg.Strict,
		StopOnFail:      cfg.StopOnFail,
		NoColors:        !colorsEnabled,
		OnScenarioStart: out.onScenarioStart,
		OnScenarioEnd:   out.onScenarioEnd,
	})

	result, err := r.Run(ctx)
	if err != nil {
		return err
	}

	printSummary(c.App.Writer, result)
	fmt.Fprintf(c.App.Writer, "Report: %s\n", cfg.OutputDir)
	logger.Info("=== Test execution finished: %s ===", result.Summary())

	if result.Failed > 0 {
		return fmt.Errorf("%d scenario(s) failed", result.Failed)
	}
	return nil
}

// openDatabase connects the SQL steps when --database names a database.
func openDatabase(ctx context.Context, cfg *RunConfig) (*database.Client, error) {
	if cfg.Database == "" {
		return nil, nil
	}
	if cfg.Config.DatabaseCredentials == "" {
		return nil, core.ErrMissingRequired.WithMessage("--database needs databaseCredentials in config.yaml")
	}
	creds, err := database.LoadCredentials(cfg.Config.DatabaseCredentials, cfg.Env)
	if err != nil {
		return nil, err
	}
	region := ""
	if cfg.Database == database.DBAds {
		region = cfg.Env.Region()
	}
	conn, err := creds.Resolve(cfg.Env.Environment, cfg.Database, region)
	if err != nil {
		return nil, err
	}
	return database.OpenMySQL(ctx, conn)
}

// mergeCapabilities layers the caps file over config.yaml capabilities and
// fills in what the config knows about the app.
func mergeCapabilities(base, overlay map[string]interface{}, platform string, app config.App) map[string]interface{} {
	caps := make(map[string]interface{}, len(base)+len(overlay)+4)
	for k, v := range base {
		caps[k] = v
	}
	for k, v := range overlay {
		caps[k] = v
	}

	setDefault := func(key, value string) {
		if value == "" {
			return
		}
		if _, ok := caps[key]; !ok {
			caps[key] = value
		}
	}
	if platform == core.PlatformIOS {
		setDefault("platformName", "iOS")
		setDefault("appium:automationName", "XCUITest")
		setDefault("appium:bundleId", app.BundleID)
	} else {
		setDefault("platformName", "Android")
		setDefault("appium:automationName", "UiAutomator2")
		setDefault("appium:appPackage", app.Package)
		setDefault("appium:appActivity", app.Activity)
	}
	setDefault("appium:app", app.Path)
	return caps
}

// resolveOutputDir determines the output directory based on flags.
// - No --output: ./reports/<timestamp>/
// - --output given: <output>/<timestamp>/
// - --output + --flatten: <output>/ (error if --output not given)
func resolveOutputDir(output string, flatten bool) (string, error) {
	if flatten && output == "" {
		return "", fmt.Errorf("--flatten requires --output to be specified")
	}

	baseDir := output
	if baseDir == "" {
		baseDir = "./reports"
	}

	if flatten {
		return filepath.Clean(baseDir), nil
	}

	// Create timestamp-based subfolder
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(baseDir, timestamp), nil
}

func parseEnvVars(envs []string) map[string]string {
	result := make(map[string]string)
	for _, e := range envs {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) == 2 {
			result[parts[0]] = parts[1]
		}
	}
	return result
}

// loadCapabilities loads Appium capabilities from a JSON file.
func loadCapabilities(capsFile string) (map[string]interface{}, error) {
	data, err := os.ReadFile(capsFile) //#nosec G304 -- user-provided caps file
	if err != nil {
		return nil, fmt.Errorf("failed to read caps file: %w", err)
	}

	var caps map[string]interface{}
	if err := json.Unmarshal(data, &caps); err != nil {
		return nil, fmt.Errorf("failed to parse caps JSON: %w", err)
	}
	return caps, nil
}
