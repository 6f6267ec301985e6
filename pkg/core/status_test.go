package core

import "testing"

func TestStepStatus_String(t *testing.T) {
	tests := []struct {
		status   StepStatus
		expected string
	}{
		{StatusPending, "pending"},
		{StatusRunning, "running"},
		{StatusPassed, "passed"},
		{StatusFailed, "failed"},
		{StatusSkipped, "skipped"},
		{StepStatus(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.expected {
			t.Errorf("StepStatus(%d).String() = %q, want %q", tt.status, got, tt.expected)
		}
	}
}

func TestStepStatus_IsTerminal(t *testing.T) {
	for _, s := range []StepStatus{StatusPassed, StatusFailed, StatusSkipped} {
		if !s.IsTerminal() {
			t.Errorf("StepStatus(%s).IsTerminal() = false, want true", s)
		}
	}
	for _, s := range []StepStatus{StatusPending, StatusRunning} {
		if s.IsTerminal() {
			t.Errorf("StepStatus(%s).IsTerminal() = true, want false", s)
		}
	}
}

func TestScenarioStatus_IsFailure(t *testing.T) {
	tests := []struct {
		status ScenarioStatus
		want   bool
	}{
		{ScenarioPassed, false},
		{ScenarioFailed, true},
		{ScenarioSkipped, true},
		{ScenarioPending, true},
	}
	for _, tt := range tests {
		if got := tt.status.IsFailure(); got != tt.want {
			t.Errorf("%s.IsFailure() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestErrorCategory_String(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		expected string
	}{
		{ErrCategoryNone, "none"},
		{ErrCategoryAssertion, "assertion"},
		{ErrCategoryTimeout, "timeout"},
		{ErrCategoryConnection, "connection"},
		{ErrCategoryApp, "app"},
		{ErrCategoryConfig, "config"},
		{ErrCategorySetup, "setup"},
		{ErrCategoryTeardown, "teardown"},
		{ErrCategoryAbsence, "absence"},
		{ErrorCategory(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.category.String(); got != tt.expected {
			t.Errorf("ErrorCategory(%d).String() = %q, want %q", tt.category, got, tt.expected)
		}
	}
}

func TestBounds_Center(t *testing.T) {
	b := Bounds{X: 100, Y: 200, Width: 50, Height: 30}
	x, y := b.Center()
	if x != 125 || y != 215 {
		t.Errorf("Center() = (%d, %d), want (125, 215)", x, y)
	}
}

func TestBounds_Contains(t *testing.T) {
	b := Bounds{X: 0, Y: 0, Width: 10, Height: 10}
	if !b.Contains(5, 5) {
		t.Error("Contains(5, 5) = false, want true")
	}
	if b.Contains(10, 5) {
		t.Error("Contains(10, 5) = true, want false (right edge is exclusive)")
	}
}
