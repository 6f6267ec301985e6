// Package config handles configuration for mobile-e2e: the process
// environment (country, product, platform) and the workspace config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/mobile-e2e/pkg/core"
)

// Config represents the workspace configuration (config.yaml).
type Config struct {
	// Scenario selection
	Features []string `yaml:"features"` // Glob patterns for .feature files
	Tags     string   `yaml:"tags"`     // Tag expression, e.g. "@smoke and not @wip"

	// Device session
	AppiumURL    string                 `yaml:"appiumUrl"`
	Capabilities map[string]interface{} `yaml:"capabilities"`
	App          App                    `yaml:"app"`
	DeepLink     string                 `yaml:"deepLink"` // Debug-mode deep link opened before agent scenarios

	// Files
	Output              string `yaml:"output"`              // Report directory
	AssetsDir           string `yaml:"assetsDir"`           // Directory of pg-<country>.yaml / consumer-<country>.yaml
	MediaDir            string `yaml:"mediaDir"`            // Holds photos/ and video/ pushed for @mediaUpload
	GAKeysFile          string `yaml:"gaKeysFile"`          // JSON file recording session ids of GA scenarios
	DatabaseCredentials string `yaml:"databaseCredentials"` // Credentials YAML for database helpers

	// Extra variables exposed to step expressions
	Env map[string]string `yaml:"env"`
}

// App identifies the application under test.
type App struct {
	Path     string `yaml:"path"`     // .apk or .app/.ipa installed on hard reset
	Package  string `yaml:"package"`  // Android package name
	Activity string `yaml:"activity"` // Android launch activity
	BundleID string `yaml:"bundleId"` // iOS bundle id
}

// ID returns the package name on Android and the bundle id on iOS.
func (a App) ID(platform string) string {
	if platform == core.PlatformIOS {
		return a.BundleID
	}
	return a.Package
}

// Default values
const (
	DefaultAppiumURL = "http://127.0.0.1:4723"
	DefaultOutput    = "reports"
	DefaultAssetsDir = "assets"
	DefaultMediaDir  = "media"
)

// Load loads configuration from a file. Relative paths in the file are
// resolved against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.resolvePaths(filepath.Dir(path))
	return &cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range []string{"config.yaml", "config.yml"} {
		configPath := filepath.Join(dir, name)
		if _, err := os.Stat(configPath); err == nil {
			return Load(configPath)
		}
	}

	// No config file found, return defaults
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.resolvePaths(dir)
	return cfg, nil
}

// Validate checks the fields a real device run needs.
func (c *Config) Validate(platform string) error {
	if c.AppiumURL == "" {
		return core.ErrMissingRequired.WithMessage("appiumUrl is required")
	}
	if c.App.ID(platform) == "" {
		return core.ErrMissingRequired.WithMessage(fmt.Sprintf("app id for %s is required (app.package or app.bundleId)", platform))
	}
	return nil
}

func (c *Config) applyDefaults() {
	if len(c.Features) == 0 {
		c.Features = []string{"features/**/*.feature"}
	}
	if c.AppiumURL == "" {
		c.AppiumURL = DefaultAppiumURL
	}
	if c.Output == "" {
		c.Output = DefaultOutput
	}
	if c.AssetsDir == "" {
		c.AssetsDir = DefaultAssetsDir
	}
	if c.MediaDir == "" {
		c.MediaDir = DefaultMediaDir
	}
}

func (c *Config) resolvePaths(base string) {
	for _, p := range []*string{&c.Output, &c.AssetsDir, &c.MediaDir, &c.GAKeysFile, &c.DatabaseCredentials, &c.App.Path} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}
