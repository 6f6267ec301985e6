package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/devicelab-dev/mobile-e2e/pkg/core"
	"github.com/devicelab-dev/mobile-e2e/pkg/datastore"
	"github.com/devicelab-dev/mobile-e2e/pkg/tags"
)

// Sink receives report attachments for a scenario.
type Sink interface {
	Attach(ctx context.Context, scenarioID string, a core.Attachment) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, scenarioID string, a core.Attachment) error

// Attach calls f.
func (f SinkFunc) Attach(ctx context.Context, scenarioID string, a core.Attachment) error {
	return f(ctx, scenarioID, a)
}

// ReportOptions configures the report-data action.
type ReportOptions struct {
	Name string         // Defaults to "attach report data"
	When tags.Predicate // Defaults to every scenario

	// ReportLink returns an external report link document (nil for none).
	ReportLink func(ctx context.Context, sc *Scenario) (map[string]string, error)

	// Screenshot captures the device screen for failed scenarios.
	Screenshot func(ctx context.Context) ([]byte, error)
}

// FailureDetail is the JSON document attached for a failed scenario.
type FailureDetail struct {
	Status   core.ScenarioStatus    `json:"status"`
	Message  string                 `json:"message,omitempty"`
	Category string                 `json:"category,omitempty"`
	Code     string                 `json:"code,omitempty"`
	Details  map[string]interface{} `json:"details,omitempty"`
}

// NewFailureDetail describes sc's failure.
func NewFailureDetail(sc *Scenario) FailureDetail {
	d := FailureDetail{Status: sc.Status}
	if sc.Err == nil {
		return d
	}
	d.Message = sc.Err.Error()
	var execErr *core.ExecutionError
	if errors.As(sc.Err, &execErr) {
		d.Category = execErr.Category.String()
		d.Code = execErr.Code
		d.Details = execErr.Details
	}
	return d
}

// ReportAction builds the after-action that attaches, in order: the scenario
// store snapshot, the suite store snapshot, the external report link when
// present and, for any scenario that did not pass, the failure detail and a
// screenshot. Attachment errors do not stop later attachments.
func ReportAction(store *datastore.Store, sink Sink, opts ReportOptions) Action {
	name := opts.Name
	if name == "" {
		name = "attach report data"
	}
	return Action{
		Name:  name,
		Phase: PhaseAfter,
		When:  opts.When,
		Run: func(ctx context.Context, sc *Scenario) error {
			var errs []error
			attach := func(a core.Attachment) {
				if err := sink.Attach(ctx, sc.ID, a); err != nil {
					errs = append(errs, fmt.Errorf("attach %s: %w", a.Name, err))
				}
			}

			attach(core.NewJSONAttachment(core.AttachmentScenarioData, store.ScenarioJSON()))
			attach(core.NewJSONAttachment(core.AttachmentSuiteData, store.SuiteJSON()))

			if opts.ReportLink != nil {
				link, err := opts.ReportLink(ctx, sc)
				switch {
				case err != nil:
					errs = append(errs, fmt.Errorf("report link: %w", err))
				case link != nil:
					a, err := core.MarshalJSONAttachment(core.AttachmentReportLink, link)
					if err != nil {
						errs = append(errs, err)
					} else {
						attach(a)
					}
				}
			}

			if !sc.Failed() {
				return errors.Join(errs...)
			}

			detail, err := core.MarshalJSONAttachment(core.AttachmentFailure, NewFailureDetail(sc))
			if err != nil {
				errs = append(errs, err)
			} else {
				attach(detail)
			}

			if opts.Screenshot != nil {
				png, err := opts.Screenshot(ctx)
				if err != nil {
					errs = append(errs, fmt.Errorf("screenshot: %w", err))
				} else {
					attach(core.NewScreenshotAttachment(png))
				}
			}
			return errors.Join(errs...)
		},
	}
}
