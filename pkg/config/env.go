package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/devicelab-dev/mobile-e2e/pkg/core"
)

// Country codes
const (
	CountrySG  = "SG"
	CountryMY  = "MY"
	CountryDD  = "DD"  // Thailand, Thai locale
	CountryDDE = "DDE" // Thailand, English locale
	CountryTH  = "TH"
)

// Products
const (
	ProductConsumer = "consumer"
	ProductAgentnet = "agentnet"
)

// EnvironmentIntegration is the default backend environment.
const EnvironmentIntegration = "integration"

// Env is the run selection taken from environment variables.
type Env struct {
	Country        string // SG, MY, DD, DDE
	Product        string // consumer, agentnet
	Environment    string // integration, staging
	Platform       string // android, ios
	IsCloud        bool   // Running on SauceLabs
	SauceUsername  string
	SauceAccessKey string
	FeatureFile    string // Feature key used for GA session bookkeeping
}

// LoadEnv loads the given .env files (missing files are ignored) and reads
// the environment. Variables already set in the process win over .env values.
func LoadEnv(files ...string) (Env, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Env{}, core.ErrInvalidConfig.WithCause(err).WithMessage("load " + f)
		}
	}
	return EnvFrom(os.LookupEnv), nil
}

// EnvFrom builds an Env from a lookup function such as os.LookupEnv.
func EnvFrom(lookup func(string) (string, bool)) Env {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return def
	}

	cloud := get("IS_CLOUD", get("IsCloud", "false"))
	isCloud, _ := strconv.ParseBool(strings.ToLower(cloud))

	return Env{
		Country:        strings.ToUpper(get("COUNTRY", CountrySG)),
		Product:        strings.ToLower(get("PRODUCT", "")),
		Environment:    strings.ToLower(get("ENVIRONMENT", EnvironmentIntegration)),
		Platform:       strings.ToLower(get("PLATFORM", core.PlatformAndroid)),
		IsCloud:        isCloud,
		SauceUsername:  get("SAUCE_USERNAME", ""),
		SauceAccessKey: get("SAUCE_ACCESS_KEY", ""),
		FeatureFile:    get("FEATURE_FILE", ""),
	}
}

func (e Env) IsSG() bool { return e.Country == CountrySG }
func (e Env) IsMY() bool { return e.Country == CountryMY }

// IsTH reports a Thai marketplace in either locale.
func (e Env) IsTH() bool { return e.Country == CountryDD || e.Country == CountryDDE }

// IsDD reports Thailand with the Thai locale.
func (e Env) IsDD() bool { return e.Country == CountryDD }

func (e Env) IsEnLocale() bool {
	return e.Country == CountrySG || e.Country == CountryMY || e.Country == CountryDDE
}

func (e Env) IsThLocale() bool { return e.Country == CountryDD }

// Locale returns "th" or "en".
func (e Env) Locale() string {
	if e.IsThLocale() {
		return "th"
	}
	return "en"
}

// Region returns the lower-case marketplace region: sg, my or th.
func (e Env) Region() string {
	if e.IsTH() {
		return "th"
	}
	return strings.ToLower(e.Country)
}

// CountryCode returns the ISO country code, mapping DD and DDE to TH.
func (e Env) CountryCode() string {
	if e.IsTH() {
		return CountryTH
	}
	return e.Country
}

func (e Env) IsConsumer() bool { return e.Product == ProductConsumer }
func (e Env) IsAgentnet() bool { return e.Product == ProductAgentnet }
func (e Env) IsAndroid() bool  { return e.Platform == core.PlatformAndroid }
func (e Env) IsIOS() bool      { return e.Platform == core.PlatformIOS }

// Vars returns the environment as a name→value map for step expressions.
func (e Env) Vars() map[string]string {
	return map[string]string{
		"COUNTRY":      e.Country,
		"PRODUCT":      e.Product,
		"ENVIRONMENT":  e.Environment,
		"PLATFORM":     e.Platform,
		"IS_CLOUD":     strconv.FormatBool(e.IsCloud),
		"REGION":       e.Region(),
		"LOCALE":       e.Locale(),
		"COUNTRY_CODE": e.CountryCode(),
		"FEATURE_FILE": e.FeatureFile,
	}
}
