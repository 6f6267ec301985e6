package report

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devicelab-dev/mobile-e2e/pkg/core"
	"github.com/devicelab-dev/mobile-e2e/pkg/logger"
)

// ScenarioInfo identifies a scenario when it starts.
type ScenarioInfo struct {
	ID   string // Generated when empty
	Name string
	URI  string
	Tags []string
}

// Recorder collects scenario results and attachments and writes them to an
// output directory. It is the report sink of a run.
type Recorder struct {
	mu        sync.Mutex
	outputDir string
	index     *Index
	features  []*Feature
	runs      map[string]*scenarioRun
	now       func() time.Time
	closed    bool
}

type scenarioRun struct {
	entry    int // position in index.Scenarios
	feature  *Feature
	element  int // position in feature.Elements
	attached int
}

// NewRecorder creates the output directory and writes an initial index.
func NewRecorder(outputDir string, device Device, app App, env Environment) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Join(outputDir, AttachmentsDir), 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}

	r := &Recorder{
		outputDir: outputDir,
		runs:      make(map[string]*scenarioRun),
		now:       time.Now,
	}
	now := r.now()
	r.index = &Index{
		Version:     Version,
		Status:      StatusRunning,
		StartTime:   now,
		LastUpdated: now,
		Device:      device,
		App:         app,
		Environment: env,
		Scenarios:   []ScenarioEntry{},
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.flushLocked(); err != nil {
		return nil, err
	}
	return r, nil
}

// OutputDir returns the directory the recorder writes to.
func (r *Recorder) OutputDir() string {
	return r.outputDir
}

// SetSessionID records the driver session once it is known.
func (r *Recorder) SetSessionID(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.index.Device.SessionID = id
}

// StartScenario registers a scenario and returns its ID.
func (r *Recorder) StartScenario(info ScenarioInfo) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := info.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := r.runs[id]; exists {
		// Retried scenario with a reused id
		id = id + "-" + uuid.NewString()[:8]
	}

	pos := len(r.index.Scenarios)
	r.index.Scenarios = append(r.index.Scenarios, ScenarioEntry{
		Index:     pos,
		ID:        id,
		Name:      info.Name,
		URI:       info.URI,
		Tags:      info.Tags,
		AssetsDir: filepath.Join(AttachmentsDir, fmt.Sprintf("scenario-%03d", pos)),
		Status:    StatusRunning,
		StartTime: r.now(),
	})

	feature := r.featureLocked(info.URI)
	tags := make([]Tag, len(info.Tags))
	for i, t := range info.Tags {
		tags[i] = Tag{Name: t}
	}
	feature.Elements = append(feature.Elements, Element{
		ID:      feature.ID + ";" + slug(info.Name),
		Keyword: "Scenario",
		Type:    "scenario",
		Name:    info.Name,
		Tags:    tags,
	})

	r.runs[id] = &scenarioRun{entry: pos, feature: feature, element: len(feature.Elements) - 1}
	return id
}

func (r *Recorder) featureLocked(uri string) *Feature {
	for _, f := range r.features {
		if f.URI == uri {
			return f
		}
	}
	name := strings.TrimSuffix(filepath.Base(uri), filepath.Ext(uri))
	f := &Feature{URI: uri, ID: slug(name), Keyword: "Feature", Name: name}
	r.features = append(r.features, f)
	return f
}

// Attach stores an attachment for a scenario: as a numbered file under the
// scenario's assets directory and as an embedding in scenarios.json.
func (r *Recorder) Attach(ctx context.Context, scenarioID string, a core.Attachment) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[scenarioID]
	if !ok {
		return fmt.Errorf("attach %s: unknown scenario %q", a.Name, scenarioID)
	}

	entry := &r.index.Scenarios[run.entry]
	run.attached++
	rel := filepath.Join(entry.AssetsDir, fmt.Sprintf("%02d-%s%s", run.attached, slug(a.Name), a.Extension()))
	path := filepath.Join(r.outputDir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create assets dir: %w", err)
	}
	if err := os.WriteFile(path, a.Body, 0o644); err != nil {
		return fmt.Errorf("write attachment %s: %w", a.Name, err)
	}
	entry.Attachments = append(entry.Attachments, rel)

	element := &run.feature.Elements[run.element]
	if len(element.After) == 0 {
		element.After = []Hook{{Result: Result{Status: StatusPassed}}}
	}
	element.After[0].Embeddings = append(element.After[0].Embeddings, Embedding{
		MimeType: a.ContentType,
		Data:     base64.StdEncoding.EncodeToString(a.Body),
		Name:     a.Name,
	})

	logger.Debug("attached %s to %s (%d bytes)", a.Name, scenarioID, len(a.Body))
	return nil
}

// EndScenario records the final status of a scenario and rewrites the index.
func (r *Recorder) EndScenario(scenarioID string, status core.ScenarioStatus, scenarioErr error, duration time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[scenarioID]
	if !ok {
		return fmt.Errorf("end: unknown scenario %q", scenarioID)
	}

	now := r.now()
	ms := duration.Milliseconds()
	entry := &r.index.Scenarios[run.entry]
	entry.Status = statusOf(status)
	entry.EndTime = &now
	entry.Duration = &ms

	result := Result{Status: entry.Status, Duration: duration.Nanoseconds()}
	if scenarioErr != nil {
		msg := scenarioErr.Error()
		entry.Error = &msg
		result.ErrorMessage = msg
	}

	element := &run.feature.Elements[run.element]
	if len(element.After) == 0 {
		element.After = []Hook{{}}
	}
	element.After[0].Result = result

	return r.flushLocked()
}

// Close marks the run as complete and writes the final report files.
// Safe to call multiple times.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	now := r.now()
	r.index.EndTime = &now
	r.index.Status = r.computeRunStatus()

	if err := r.flushLocked(); err != nil {
		return err
	}

	features := make([]Feature, len(r.features))
	for i, f := range r.features {
		features[i] = *f
	}
	return atomicWriteJSON(filepath.Join(r.outputDir, ScenariosFile), features)
}

// Index returns a copy of the current index.
func (r *Recorder) Index() Index {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := *r.index
	idx.Scenarios = append([]ScenarioEntry(nil), r.index.Scenarios...)
	return idx
}

// flushLocked writes report.json while holding the lock.
func (r *Recorder) flushLocked() error {
	r.index.UpdateSeq++
	r.index.LastUpdated = r.now()
	r.index.Summary = r.computeSummary()
	return atomicWriteJSON(filepath.Join(r.outputDir, IndexFile), r.index)
}

// computeSummary calculates summary from scenario statuses.
func (r *Recorder) computeSummary() Summary {
	var s Summary
	for _, sc := range r.index.Scenarios {
		s.Total++
		switch sc.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		case StatusRunning:
			s.Running++
		}
	}
	return s
}

// computeRunStatus determines overall run status from scenarios.
func (r *Recorder) computeRunStatus() Status {
	status := StatusPassed
	for _, sc := range r.index.Scenarios {
		switch {
		case sc.Status == StatusFailed:
			status = StatusFailed
		case !sc.Status.IsTerminal():
			// Scenario never ended, e.g. the runner was interrupted
			return StatusFailed
		}
	}
	return status
}

func statusOf(s core.ScenarioStatus) Status {
	switch s {
	case core.ScenarioPassed:
		return StatusPassed
	case core.ScenarioFailed:
		return StatusFailed
	case core.ScenarioSkipped:
		return StatusSkipped
	default:
		return StatusPending
	}
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	s = nonSlug.ReplaceAllString(strings.ToLower(s), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "unnamed"
	}
	return s
}

// atomicWriteJSON writes v to path through a temp file and rename.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ReadIndex loads report.json from a report directory.
func ReadIndex(dir string) (*Index, error) {
	data, err := os.ReadFile(filepath.Join(dir, IndexFile))
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	return &idx, nil
}
