// Package report records scenario results and lifecycle attachments.
//
// Layout of an output directory:
//   - report.json: run index (status, summary, one entry per scenario)
//   - scenarios.json: cucumber-style JSON with attachments embedded as base64
//   - attachments/scenario-XXX/: attachment files in the order they arrived
//
// The index is rewritten after every scenario so an interrupted run still
// leaves a readable report behind.
package report

import "time"

// Version is the report schema version.
const Version = "1.0.0"

// File names inside the output directory.
const (
	IndexFile      = "report.json"
	ScenariosFile  = "scenarios.json"
	AttachmentsDir = "attachments"
)

// Status represents the execution status.
type Status string

// Status values.
const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusSkipped
}

// ============================================================================
// INDEX (report.json)
// ============================================================================

// Index is the run summary file.
type Index struct {
	Version     string          `json:"version"`
	UpdateSeq   uint64          `json:"updateSeq"`
	Status      Status          `json:"status"`
	StartTime   time.Time       `json:"startTime"`
	EndTime     *time.Time      `json:"endTime,omitempty"`
	LastUpdated time.Time       `json:"lastUpdated"`
	Device      Device          `json:"device"`
	App         App             `json:"app"`
	Environment Environment     `json:"environment"`
	Summary     Summary         `json:"summary"`
	Scenarios   []ScenarioEntry `json:"scenarios"`
}

// Device describes the session the run used.
type Device struct {
	Platform  string `json:"platform"` // ios, android
	SessionID string `json:"sessionId,omitempty"`
	Cloud     bool   `json:"cloud"`
}

// App contains application information.
type App struct {
	ID   string `json:"id"` // Bundle ID or package name
	Path string `json:"path,omitempty"`
}

// Environment is the marketplace the run targeted.
type Environment struct {
	Country     string `json:"country,omitempty"`
	Product     string `json:"product,omitempty"`
	Environment string `json:"environment,omitempty"`
}

// Summary contains aggregated counts.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Running int `json:"running"`
}

// ScenarioEntry is the index entry for one scenario.
type ScenarioEntry struct {
	Index       int        `json:"index"` // Execution position
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	URI         string     `json:"uri"` // Feature file
	Tags        []string   `json:"tags,omitempty"`
	AssetsDir   string     `json:"assetsDir"`
	Status      Status     `json:"status"`
	StartTime   time.Time  `json:"startTime"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	Duration    *int64     `json:"duration,omitempty"` // milliseconds
	Attachments []string   `json:"attachments,omitempty"`
	Error       *string    `json:"error,omitempty"`
}

// ============================================================================
// CUCUMBER JSON (scenarios.json)
// ============================================================================

// Feature is one feature file in cucumber JSON.
type Feature struct {
	URI      string    `json:"uri"`
	ID       string    `json:"id"`
	Keyword  string    `json:"keyword"`
	Name     string    `json:"name"`
	Elements []Element `json:"elements"`
}

// Element is one scenario in cucumber JSON.
type Element struct {
	ID      string `json:"id"`
	Keyword string `json:"keyword"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Tags    []Tag  `json:"tags,omitempty"`
	After   []Hook `json:"after,omitempty"`
}

// Tag is a cucumber JSON tag.
type Tag struct {
	Name string `json:"name"`
}

// Hook carries the result and embeddings of the after phase.
type Hook struct {
	Result     Result      `json:"result"`
	Embeddings []Embedding `json:"embeddings,omitempty"`
}

// Result is a cucumber JSON step or hook result.
type Result struct {
	Status       Status `json:"status"`
	Duration     int64  `json:"duration,omitempty"` // nanoseconds
	ErrorMessage string `json:"error_message,omitempty"`
}

// Embedding is an attachment inlined as base64.
type Embedding struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
	Name     string `json:"name,omitempty"`
}
