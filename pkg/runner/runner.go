// Package runner executes feature files through godog. Every selected
// scenario is wrapped by the lifecycle controller and recorded in the report.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cucumber/godog"

	"github.com/devicelab-dev/mobile-e2e/pkg/core"
	"github.com/devicelab-dev/mobile-e2e/pkg/lifecycle"
	"github.com/devicelab-dev/mobile-e2e/pkg/logger"
	"github.com/devicelab-dev/mobile-e2e/pkg/report"
	"github.com/devicelab-dev/mobile-e2e/pkg/tags"
)

// StepInitializer registers step definitions on a scenario context.
type StepInitializer func(sc *godog.ScenarioContext)

// Config configures a run.
type Config struct {
	Name     string
	Paths    []string       // Feature files
	Select   tags.Predicate // Scenarios to run; nil runs all
	Format   string         // godog formatter, defaults to "pretty"
	Output   io.Writer      // Formatter output; nil is stdout
	Strict   bool           // Pending and undefined steps fail the scenario
	NoColors bool

	// StopOnFail skips every scenario after the first failure.
	StopOnFail bool

	// Live progress callbacks
	OnScenarioStart func(idx int, name, uri string)
	OnScenarioEnd   func(name string, status core.ScenarioStatus, duration time.Duration, err error)
}

// RunResult contains the outcome of a run.
type RunResult struct {
	Status    report.Status
	Total     int
	Passed    int
	Failed    int
	Skipped   int
	Duration  time.Duration
	ExitCode  int // godog exit status
	Scenarios []ScenarioResult
}

// ScenarioResult contains the outcome of a single scenario.
type ScenarioResult struct {
	ID       string
	Name     string
	URI      string
	Tags     []string
	Status   core.ScenarioStatus
	Duration time.Duration
	Err      error

	// Teardown failures; they never change Status.
	TeardownErrs []error
}

// Runner runs scenarios one at a time.
type Runner struct {
	config     Config
	controller *lifecycle.Controller
	recorder   *report.Recorder
	steps      StepInitializer
	now        func() time.Time

	mu      sync.Mutex
	runs    map[*godog.Scenario]*scenarioRun
	results []ScenarioResult
	started int
	failed  bool
}

type scenarioRun struct {
	sc    *lifecycle.Scenario
	tags  []string
	start time.Time
}

// New creates a Runner. recorder may be nil.
func New(controller *lifecycle.Controller, recorder *report.Recorder, steps StepInitializer, cfg Config) *Runner {
	return &Runner{
		config:     cfg,
		controller: controller,
		recorder:   recorder,
		steps:      steps,
		now:        time.Now,
		runs:       make(map[*godog.Scenario]*scenarioRun),
	}
}

// Run executes the configured features. The returned error reports an
// invalid run setup; scenario failures are reported in the result.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	if len(r.config.Paths) == 0 {
		return nil, core.ErrMissingRequired.WithMessage("no feature files to run")
	}
	format := r.config.Format
	if format == "" {
		format = "pretty"
	}

	start := r.now()
	suite := godog.TestSuite{
		Name:                 r.config.Name,
		TestSuiteInitializer: r.initializeSuite(ctx),
		ScenarioInitializer:  r.initializeScenario,
		Options: &godog.Options{
			Format:         format,
			Paths:          r.config.Paths,
			Concurrency:    1,
			Strict:         r.config.Strict,
			NoColors:       r.config.NoColors,
			Output:         r.config.Output,
			DefaultContext: ctx,
		},
	}
	code := suite.Run()

	if r.recorder != nil {
		if err := r.recorder.Close(); err != nil {
			logger.Error("failed to write report: %v", err)
		}
	}
	if code == 2 {
		return nil, core.ErrInvalidConfig.WithMessage("godog rejected the run options")
	}

	result := r.buildRunResult()
	result.ExitCode = code
	result.Duration = r.now().Sub(start)
	return result, nil
}

func (r *Runner) initializeSuite(ctx context.Context) func(*godog.TestSuiteContext) {
	return func(sc *godog.TestSuiteContext) {
		sc.AfterSuite(func() {
			if err := r.controller.EndSuite(ctx); err != nil {
				logger.Warn("suite teardown: %v", err)
			}
		})
	}
}

func (r *Runner) initializeScenario(sc *godog.ScenarioContext) {
	sc.Before(r.beforeScenario)
	sc.After(r.afterScenario)
	if r.steps != nil {
		r.steps(sc)
	}
}

func pickleTags(gsc *godog.Scenario) []string {
	out := make([]string, len(gsc.Tags))
	for i, t := range gsc.Tags {
		out[i] = t.Name
	}
	return out
}

func (r *Runner) beforeScenario(ctx context.Context, gsc *godog.Scenario) (context.Context, error) {
	names := pickleTags(gsc)
	set := tags.NewTagSet(names...)

	r.mu.Lock()
	stop := r.config.StopOnFail && r.failed
	r.mu.Unlock()

	if stop || (r.config.Select != nil && !r.config.Select.Match(set)) {
		r.addResult(ScenarioResult{Name: gsc.Name, URI: gsc.Uri, Tags: names, Status: core.ScenarioSkipped})
		return ctx, godog.ErrSkip
	}

	sc := &lifecycle.Scenario{Name: gsc.Name, URI: gsc.Uri, Tags: set, Status: core.ScenarioPending}
	if r.recorder != nil {
		sc.ID = r.recorder.StartScenario(report.ScenarioInfo{Name: gsc.Name, URI: gsc.Uri, Tags: set.Slice()})
	} else {
		sc.ID = gsc.Id
	}

	r.mu.Lock()
	r.runs[gsc] = &scenarioRun{sc: sc, tags: names, start: r.now()}
	idx := r.started
	r.started++
	r.mu.Unlock()

	if r.config.OnScenarioStart != nil {
		r.config.OnScenarioStart(idx, gsc.Name, gsc.Uri)
	}

	if _, err := r.controller.RunBefore(ctx, sc); err != nil {
		return ctx, err
	}
	return ctx, nil
}

func (r *Runner) afterScenario(ctx context.Context, gsc *godog.Scenario, scenarioErr error) (context.Context, error) {
	r.mu.Lock()
	run, ok := r.runs[gsc]
	delete(r.runs, gsc)
	r.mu.Unlock()
	if !ok {
		// Not selected
		return ctx, nil
	}

	sc := run.sc
	if sc.Status != core.ScenarioFailed {
		sc.Status, sc.Err = r.statusOf(scenarioErr)
	}

	teardown := lifecycle.Failures(r.controller.RunAfter(ctx, sc))

	duration := r.now().Sub(run.start)
	if r.recorder != nil {
		if err := r.recorder.EndScenario(sc.ID, sc.Status, sc.Err, duration); err != nil {
			logger.Warn("record scenario %q: %v", sc.Name, err)
		}
	}
	if r.config.OnScenarioEnd != nil {
		r.config.OnScenarioEnd(sc.Name, sc.Status, duration, sc.Err)
	}

	r.addResult(ScenarioResult{
		ID:           sc.ID,
		Name:         sc.Name,
		URI:          sc.URI,
		Tags:         run.tags,
		Status:       sc.Status,
		Duration:     duration,
		Err:          sc.Err,
		TeardownErrs: teardown,
	})

	// Teardown failures are reported, not raised: the step error stands.
	return ctx, nil
}

// statusOf maps the step outcome godog hands to after hooks.
func (r *Runner) statusOf(err error) (core.ScenarioStatus, error) {
	switch {
	case err == nil:
		return core.ScenarioPassed, nil
	case errors.Is(err, godog.ErrSkip):
		return core.ScenarioSkipped, nil
	case errors.Is(err, godog.ErrPending), errors.Is(err, godog.ErrUndefined):
		if r.config.Strict {
			return core.ScenarioFailed, err
		}
		return core.ScenarioSkipped, nil
	default:
		return core.ScenarioFailed, err
	}
}

func (r *Runner) addResult(res ScenarioResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res.Status == core.ScenarioFailed {
		r.failed = true
	}
	r.results = append(r.results, res)
}

// Results returns the scenario results recorded so far.
func (r *Runner) Results() []ScenarioResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ScenarioResult, len(r.results))
	copy(out, r.results)
	return out
}

// buildRunResult aggregates scenario results into a run result.
func (r *Runner) buildRunResult() *RunResult {
	results := r.Results()
	result := &RunResult{
		Total:     len(results),
		Scenarios: results,
	}

	for _, sr := range results {
		switch sr.Status {
		case core.ScenarioPassed:
			result.Passed++
		case core.ScenarioFailed:
			result.Failed++
		default:
			result.Skipped++
		}
	}

	if result.Failed > 0 {
		result.Status = report.StatusFailed
	} else {
		result.Status = report.StatusPassed
	}
	return result
}

// Summary formats the counts of a result.
func (res *RunResult) Summary() string {
	return fmt.Sprintf("%d scenarios (%d passed, %d failed, %d skipped) in %s",
		res.Total, res.Passed, res.Failed, res.Skipped, res.Duration.Round(time.Millisecond))
}
