// Package lifecycle runs tag-gated setup and teardown actions around each
// scenario and owns the scenario/suite store resets.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/devicelab-dev/mobile-e2e/pkg/core"
	"github.com/devicelab-dev/mobile-e2e/pkg/datastore"
	"github.com/devicelab-dev/mobile-e2e/pkg/logger"
	"github.com/devicelab-dev/mobile-e2e/pkg/tags"
)

// Controller errors
var (
	ErrInvalidTransition  = errors.New("lifecycle: invalid state transition")
	ErrRegistrationClosed = errors.New("lifecycle: actions must be registered before the first scenario")
)

// Controller orders and executes lifecycle actions. Actions are registered
// once at startup; afterwards the controller is stateless across scenarios
// except for the shared store.
//
// A Controller drives one scenario at a time.
type Controller struct {
	store    *datastore.Store
	actions  []Action
	suiteEnd []suiteHook
	state    State
	started  bool
	now      func() time.Time
}

type suiteHook struct {
	name string
	fn   func(ctx context.Context) error
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides the clock used for action durations.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates a Controller bound to store.
func New(store *datastore.Store, opts ...Option) *Controller {
	c := &Controller{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the store the controller resets.
func (c *Controller) Store() *datastore.Store {
	return c.store
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	return c.state
}

// Register adds an action. Registration order is significant: before-actions
// run in this order and after-actions in the reverse.
func (c *Controller) Register(a Action) error {
	if c.started {
		return ErrRegistrationClosed
	}
	if a.Name == "" {
		return core.ErrMissingRequired.WithMessage("lifecycle action name is required")
	}
	if a.Run == nil {
		return core.ErrMissingRequired.WithMessage(fmt.Sprintf("lifecycle action %q has no body", a.Name))
	}
	if a.Phase != PhaseBefore && a.Phase != PhaseAfter {
		return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("lifecycle action %q has unknown phase %d", a.Name, a.Phase))
	}
	if a.When == nil {
		a.When = tags.Always()
	}
	c.actions = append(c.actions, a)
	return nil
}

// Before registers a before-phase action.
func (c *Controller) Before(name string, when tags.Predicate, fn ActionFunc) error {
	return c.Register(Action{Name: name, Phase: PhaseBefore, When: when, Run: fn})
}

// After registers an after-phase action.
func (c *Controller) After(name string, when tags.Predicate, fn ActionFunc) error {
	return c.Register(Action{Name: name, Phase: PhaseAfter, When: when, Run: fn})
}

// OnSuiteEnd registers work to run once when the suite finishes, before the
// suite store is cleared.
func (c *Controller) OnSuiteEnd(name string, fn func(ctx context.Context) error) {
	c.suiteEnd = append(c.suiteEnd, suiteHook{name: name, fn: fn})
}

// Matching returns the actions of phase whose predicate matches set, in the
// order they would execute. Predicate evaluation has no side effects.
func (c *Controller) Matching(phase Phase, set tags.TagSet) []Action {
	var out []Action
	if phase == PhaseBefore {
		for _, a := range c.actions {
			if a.Phase == PhaseBefore && a.matches(set) {
				out = append(out, a)
			}
		}
		return out
	}
	for i := len(c.actions) - 1; i >= 0; i-- {
		a := c.actions[i]
		if a.Phase == PhaseAfter && a.matches(set) {
			out = append(out, a)
		}
	}
	return out
}

// RunBefore runs every matching before-action in registration order and
// hands control to the scenario body. The first failure marks the scenario
// failed; later actions are skipped unless they are Independent. The
// returned error wraps core.ErrSetupFailed.
func (c *Controller) RunBefore(ctx context.Context, sc *Scenario) ([]ActionResult, error) {
	if c.state != StateIdle {
		return nil, fmt.Errorf("%w: RunBefore in state %s", ErrInvalidTransition, c.state)
	}
	c.started = true
	c.state = StateBeforeRunning
	defer func() { c.state = StateScenarioExecuting }()

	var (
		results  []ActionResult
		setupErr error
	)
	for _, a := range c.Matching(PhaseBefore, sc.Tags) {
		if setupErr != nil && !a.Independent {
			logger.Debug("before hook %q skipped after setup failure", a.Name)
			results = append(results, ActionResult{Action: a.Name, Phase: PhaseBefore, Status: core.StatusSkipped})
			continue
		}

		logger.Info("before hook %q is being executed for scenario %q", a.Name, sc.Name)
		r := c.run(ctx, a, sc)
		results = append(results, r)

		if r.Status == core.StatusFailed {
			logger.Error("before hook %q failed: %v", a.Name, r.Err)
			if setupErr == nil {
				setupErr = core.ErrSetupFailed.
					WithCause(r.Err).
					WithDetails(map[string]interface{}{"action": a.Name})
			}
		}
	}

	if setupErr != nil {
		sc.Status = core.ScenarioFailed
		sc.Err = setupErr
		return results, setupErr
	}
	return results, nil
}

// RunAfter runs every matching after-action in reverse registration order.
// Teardown is best effort: each action is isolated, failures are logged and
// collected, and every remaining action still runs. Scenario data is cleared
// once the actions are done, whatever the scenario's status.
func (c *Controller) RunAfter(ctx context.Context, sc *Scenario) []ActionResult {
	if c.state != StateScenarioExecuting {
		logger.Error("RunAfter called in state %s", c.state)
		return []ActionResult{{
			Phase:  PhaseAfter,
			Status: core.StatusFailed,
			Err:    fmt.Errorf("%w: RunAfter in state %s", ErrInvalidTransition, c.state),
		}}
	}
	c.state = StateAfterRunning
	defer func() { c.state = StateIdle }()

	var results []ActionResult
	for _, a := range c.Matching(PhaseAfter, sc.Tags) {
		logger.Info("after hook %q is being executed for scenario %q", a.Name, sc.Name)
		r := c.run(ctx, a, sc)
		if r.Status == core.StatusFailed {
			r.Err = core.ErrTeardownFailed.
				WithCause(r.Err).
				WithDetails(map[string]interface{}{"action": a.Name})
			logger.Warn("after hook %q failed, continuing teardown: %v", a.Name, r.Err)
		}
		results = append(results, r)
	}
	if c.store != nil {
		c.store.ClearScenario()
	}
	return results
}

// EndSuite runs the suite-end hooks and clears the suite store. Hook failures
// are collected; the store is cleared regardless.
func (c *Controller) EndSuite(ctx context.Context) error {
	var errs []error
	for _, h := range c.suiteEnd {
		if err := safeCall(func() error { return h.fn(ctx) }); err != nil {
			logger.Warn("suite-end hook %q failed: %v", h.name, err)
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
		}
	}
	if c.store != nil {
		c.store.ClearSuite()
	}
	return errors.Join(errs...)
}

// run executes one action with its timeout and converts panics into failures.
func (c *Controller) run(ctx context.Context, a Action, sc *Scenario) ActionResult {
	actx := ctx
	if a.Timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, a.Timeout)
		defer cancel()
	}

	start := c.now()
	err := safeCall(func() error { return a.Run(actx, sc) })
	r := ActionResult{
		Action:   a.Name,
		Phase:    a.Phase,
		Status:   core.StatusPassed,
		Duration: c.now().Sub(start),
	}
	if err != nil {
		r.Status = core.StatusFailed
		r.Err = err
	}
	return r
}

func safeCall(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn()
}
