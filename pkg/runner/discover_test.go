package runner

import (
	"context"
	"strings"
	"testing"

	"github.com/devicelab-dev/mobile-e2e/pkg/datastore"
	"github.com/devicelab-dev/mobile-e2e/pkg/lifecycle"
	"github.com/devicelab-dev/mobile-e2e/pkg/tags"
)

const listingFeature = `@agentnet
Feature: Listing creation

  @smoke
  Scenario: Create a draft
    Given a step "draft"

  @deeplink
  Scenario Outline: Price <price>
    Given a step "<price>"

    Examples:
      | price |
      | 1,700 |
      | 2,500 |
`

func TestDiscover(t *testing.T) {
	path := writeFeature(t, listingFeature)

	got, err := Discover([]string{path}, nil)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}

	tests := []struct {
		name string
		line int64
		tags string
	}{
		{"Create a draft", 5, "@agentnet,@smoke"},
		{"Price 1,700", 14, "@agentnet,@deeplink"},
		{"Price 2,500", 15, "@agentnet,@deeplink"},
	}
	for i, tt := range tests {
		if got[i].Name != tt.name || got[i].Line != tt.line || strings.Join(got[i].Tags, ",") != tt.tags {
			t.Errorf("[%d] = %+v, want %s at line %d with %s", i, got[i], tt.name, tt.line, tt.tags)
		}
	}
}

func TestDiscover_Select(t *testing.T) {
	path := writeFeature(t, listingFeature)

	got, err := Discover([]string{path}, tags.MustParse("@agentnet and not @deeplink"))
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(got) != 1 || got[0].Name != "Create a draft" {
		t.Errorf("Discover() = %+v", got)
	}
}

func TestDiscover_Errors(t *testing.T) {
	if _, err := Discover([]string{"/nonexistent.feature"}, nil); err == nil {
		t.Error("expected error for missing file")
	}
	path := writeFeature(t, "Feature: Broken\n  Scenario: x\n    Given a\n  Examples oops\n  | a |\n")
	if _, err := Discover([]string{path}, nil); err == nil {
		t.Error("expected parse error")
	}
}

func TestPlan(t *testing.T) {
	noop := func(ctx context.Context, sc *lifecycle.Scenario) error { return nil }
	c := lifecycle.New(datastore.New())
	_ = c.Before("generic", nil, noop)
	_ = c.Before("login", tags.MustParse("@agentnet and not @deeplink"), noop)
	_ = c.After("hard reset", tags.MustParse("@agentnet"), noop)
	_ = c.After("report", nil, noop)

	planned := []PlannedScenario{
		{Name: "a", Tags: []string{"@agentnet"}},
		{Name: "b", Tags: []string{"@agentnet", "@deeplink"}},
	}
	Plan(c, planned)

	if got := strings.Join(planned[0].Before, ","); got != "generic,login" {
		t.Errorf("a before = %s", got)
	}
	if got := strings.Join(planned[1].Before, ","); got != "generic" {
		t.Errorf("b before = %s", got)
	}
	if got := strings.Join(planned[0].After, ","); got != "report,hard reset" {
		t.Errorf("a after = %s", got)
	}
}
