package core

// StepStatus represents the execution status of a step or lifecycle action
type StepStatus int

const (
	StatusPending StepStatus = iota // Not yet started
	StatusRunning                   // Currently executing
	StatusPassed                    // Completed successfully
	StatusFailed                    // Action or assertion failed
	StatusSkipped                   // Not run because an earlier setup action failed
)

// String returns the string representation of StepStatus
func (s StepStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the status is a final state
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// ScenarioStatus is the final outcome of a scenario, as reported by the BDD runner.
type ScenarioStatus string

// ScenarioStatus values
const (
	ScenarioPending ScenarioStatus = "pending"
	ScenarioPassed  ScenarioStatus = "passed"
	ScenarioFailed  ScenarioStatus = "failed"
	ScenarioSkipped ScenarioStatus = "skipped"
)

// IsFailure returns true for any status that is not a pass.
// Mirrors the reporting rule "anything but PASSED attaches failure artifacts".
func (s ScenarioStatus) IsFailure() bool {
	return s != ScenarioPassed
}

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone       ErrorCategory = iota // No error
	ErrCategoryAssertion                       // Element not found, text mismatch, visibility check failed
	ErrCategoryTimeout                         // Bounded wait expired
	ErrCategoryConnection                      // Device/server connection lost
	ErrCategoryApp                             // App crashed, not responding, not installed
	ErrCategoryConfig                          // Invalid configuration, missing required field
	ErrCategorySetup                           // Before-phase lifecycle action failed
	ErrCategoryTeardown                        // After-phase lifecycle action failed
	ErrCategoryAbsence                         // Transient UI (popup, permission dialog) not present
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryAssertion:
		return "assertion"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryConnection:
		return "connection"
	case ErrCategoryApp:
		return "app"
	case ErrCategoryConfig:
		return "config"
	case ErrCategorySetup:
		return "setup"
	case ErrCategoryTeardown:
		return "teardown"
	case ErrCategoryAbsence:
		return "absence"
	default:
		return "unknown"
	}
}
