package runner

import (
	"fmt"
	"os"

	gherkin "github.com/cucumber/gherkin/go/v26"
	messages "github.com/cucumber/messages/go/v21"

	"github.com/devicelab-dev/mobile-e2e/pkg/lifecycle"
	"github.com/devicelab-dev/mobile-e2e/pkg/tags"
)

// PlannedScenario is a scenario selected for a run.
type PlannedScenario struct {
	URI  string
	Line int64
	Name string
	Tags []string

	// Lifecycle actions in execution order, filled by Plan
	Before []string
	After  []string
}

// Discover parses the feature files and returns the scenarios selected by
// pred in file order. Outline examples are listed one per row.
func Discover(paths []string, pred tags.Predicate) ([]PlannedScenario, error) {
	newID := (&messages.Incrementing{}).NewId

	var out []PlannedScenario
	for _, path := range paths {
		f, err := os.Open(path) //#nosec G304 -- feature file from workspace config
		if err != nil {
			return nil, fmt.Errorf("open feature: %w", err)
		}
		doc, err := gherkin.ParseGherkinDocument(f, newID)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if doc.Feature == nil {
			continue
		}

		lines := nodeLines(doc.Feature)
		for _, p := range gherkin.Pickles(*doc, path, newID) {
			names := make([]string, len(p.Tags))
			for i, t := range p.Tags {
				names[i] = t.Name
			}
			if pred != nil && !pred.Match(tags.NewTagSet(names...)) {
				continue
			}
			var line int64
			if n := len(p.AstNodeIds); n > 0 {
				line = lines[p.AstNodeIds[n-1]]
			}
			out = append(out, PlannedScenario{URI: path, Line: line, Name: p.Name, Tags: names})
		}
	}
	return out, nil
}

// nodeLines maps scenario and example row ids to their line.
func nodeLines(feature *messages.Feature) map[string]int64 {
	lines := make(map[string]int64)
	add := func(s *messages.Scenario) {
		if s == nil {
			return
		}
		lines[s.Id] = s.Location.Line
		for _, ex := range s.Examples {
			for _, row := range ex.TableBody {
				lines[row.Id] = row.Location.Line
			}
		}
	}
	for _, child := range feature.Children {
		add(child.Scenario)
		if child.Rule != nil {
			for _, rc := range child.Rule.Children {
				add(rc.Scenario)
			}
		}
	}
	return lines
}

// Plan fills in the lifecycle actions each scenario would trigger.
func Plan(ctrl *lifecycle.Controller, scenarios []PlannedScenario) {
	names := func(actions []lifecycle.Action) []string {
		out := make([]string, len(actions))
		for i, a := range actions {
			out[i] = a.Name
		}
		return out
	}
	for i := range scenarios {
		set := tags.NewTagSet(scenarios[i].Tags...)
		scenarios[i].Before = names(ctrl.Matching(lifecycle.PhaseBefore, set))
		scenarios[i].After = names(ctrl.Matching(lifecycle.PhaseAfter, set))
	}
}
