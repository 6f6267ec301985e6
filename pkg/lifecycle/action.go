package lifecycle

import (
	"context"
	"time"

	"github.com/devicelab-dev/mobile-e2e/pkg/core"
	"github.com/devicelab-dev/mobile-e2e/pkg/tags"
)

// Phase selects when an action runs relative to the scenario body.
type Phase int

const (
	PhaseBefore Phase = iota // Runs in registration order before the first step
	PhaseAfter               // Runs in reverse registration order after the last step
)

// String returns the string representation of Phase
func (p Phase) String() string {
	switch p {
	case PhaseBefore:
		return "before"
	case PhaseAfter:
		return "after"
	default:
		return "unknown"
	}
}

// State is the controller's position in the per-scenario state machine:
// Idle → BeforeRunning → ScenarioExecuting → AfterRunning → Idle.
type State int

const (
	StateIdle State = iota
	StateBeforeRunning
	StateScenarioExecuting
	StateAfterRunning
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBeforeRunning:
		return "before-running"
	case StateScenarioExecuting:
		return "scenario-executing"
	case StateAfterRunning:
		return "after-running"
	default:
		return "unknown"
	}
}

// Scenario is the context handed to every lifecycle action. It lives from
// RunBefore until RunAfter returns.
type Scenario struct {
	ID   string
	Name string
	URI  string // Feature file the scenario came from
	Tags tags.TagSet

	// Result, set by the runner before RunAfter (or by RunBefore on setup failure)
	Status core.ScenarioStatus
	Err    error
}

// Failed reports whether the scenario did not pass.
func (s *Scenario) Failed() bool {
	return s.Status.IsFailure()
}

// ActionFunc is the body of a lifecycle action.
type ActionFunc func(ctx context.Context, sc *Scenario) error

// Action is a named unit of setup or teardown work gated by a tag predicate.
type Action struct {
	Name  string
	Phase Phase
	When  tags.Predicate // nil matches every scenario
	Run   ActionFunc

	// Timeout bounds the action through its context. Zero means no bound.
	Timeout time.Duration

	// Independent before-actions still run after an earlier before-action failed.
	Independent bool
}

func (a Action) matches(set tags.TagSet) bool {
	return a.When == nil || a.When.Match(set)
}

// ActionResult is the isolated outcome of one action.
type ActionResult struct {
	Action   string
	Phase    Phase
	Status   core.StepStatus
	Err      error
	Duration time.Duration
}

// Failures returns the errors of failed results, in execution order.
func Failures(results []ActionResult) []error {
	var errs []error
	for _, r := range results {
		if r.Status == core.StatusFailed && r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errs
}
