// Package assets reads the per-marketplace test data bundle
// (assets/pg-<country>.yaml or assets/consumer-<country>.yaml).
package assets

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/mobile-e2e/pkg/config"
	"github.com/devicelab-dev/mobile-e2e/pkg/core"
)

// Section is one top-level block of the asset bundle.
type Section map[string]interface{}

// String returns the string value of key, or "" when absent.
func (s Section) String(key string) string {
	if v, ok := s[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

// Section returns a nested section, or nil when absent.
func (s Section) Section(key string) Section {
	return toSection(s[key])
}

// Provider loads the asset bundle for the current environment. Every call
// reads the file again; nothing is cached.
type Provider struct {
	Dir string
	Env config.Env
}

// NewProvider creates a provider rooted at dir.
func NewProvider(dir string, env config.Env) *Provider {
	return &Provider{Dir: dir, Env: env}
}

// Path returns the bundle file for the configured product and country.
func (p *Provider) Path() string {
	country := strings.ToLower(p.Env.Country)
	if country == "" {
		country = "sg"
	}
	prefix := "pg"
	if p.Env.IsConsumer() {
		prefix = "consumer"
	}
	return filepath.Join(p.Dir, fmt.Sprintf("%s-%s.yaml", prefix, country))
}

// Load reads, renders and decodes the bundle.
func (p *Provider) Load() (Section, error) {
	path := p.Path()
	raw, err := os.ReadFile(path) //#nosec G304 -- asset file from workspace config
	if err != nil {
		return nil, core.ErrInvalidConfig.WithCause(err).WithMessage("read assets " + path)
	}

	rendered, err := Render(filepath.Base(path), raw, p.Env)
	if err != nil {
		return nil, err
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal(rendered, &doc); err != nil {
		return nil, core.ErrInvalidConfig.WithCause(err).WithMessage("parse assets " + path)
	}
	return Section(doc), nil
}

// Render executes text as a template with sprig functions. The template data
// exposes the run environment, e.g. {{ .Region }} or {{ env "PASSWORD" }}.
func Render(name string, text []byte, env config.Env) ([]byte, error) {
	tmpl, err := template.New(name).
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=zero").
		Parse(string(text))
	if err != nil {
		return nil, core.ErrInvalidConfig.WithCause(err).WithMessage("template " + name)
	}

	data := map[string]interface{}{
		"Country":     env.Country,
		"CountryCode": env.CountryCode(),
		"Region":      env.Region(),
		"Locale":      env.Locale(),
		"Product":     env.Product,
		"Environment": env.Environment,
		"Platform":    env.Platform,
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, core.ErrInvalidConfig.WithCause(err).WithMessage("render " + name)
	}
	return buf.Bytes(), nil
}

func (p *Provider) section(name string) (Section, error) {
	doc, err := p.Load()
	if err != nil {
		return nil, err
	}
	return doc.Section(name), nil
}

func (p *Provider) AgentNet() (Section, error)            { return p.section("AgentNet") }
func (p *Provider) AgentNetCredentials() (Section, error) { return p.section("AgentNetCredentials") }
func (p *Provider) AgentNetAdProducts() (Section, error)  { return p.section("AgentNetAdProducts") }
func (p *Provider) AgentNetDashboard() (Section, error)   { return p.section("AgentNetDashboard") }
func (p *Provider) AgentNetLMP() (Section, error)         { return p.section("AgentNetLMP") }
func (p *Provider) PromoteListing() (Section, error)      { return p.section("PromoteListing") }
func (p *Provider) Consumer() (Section, error)            { return p.section("Consumer") }
func (p *Provider) AgentNetARR() (Section, error)         { return p.section("AgentNetARR") }

func (p *Provider) AgentNetListingCreation() (Section, error) {
	return p.section("AgentNetListingCreation")
}

// FeaturedAgent returns AgentNet.FeaturedAgent.
func (p *Provider) FeaturedAgent() (Section, error) {
	agentNet, err := p.AgentNet()
	if err != nil {
		return nil, err
	}
	return agentNet.Section("FeaturedAgent"), nil
}

// Timezone returns AgentNet.timezone, e.g. "Asia/Singapore".
func (p *Provider) Timezone() (string, error) {
	agentNet, err := p.AgentNet()
	if err != nil {
		return "", err
	}
	tz := agentNet.String("timezone")
	if tz == "" {
		return "", core.ErrMissingRequired.WithMessage("AgentNet.timezone missing from " + p.Path())
	}
	return tz, nil
}

func toSection(v interface{}) Section {
	switch m := v.(type) {
	case map[string]interface{}:
		return Section(m)
	case Section:
		return m
	default:
		return nil
	}
}
