// Package core provides the shared execution model types for mobile-e2e.
package core

import (
	"encoding/json"
)

// Attachment represents an artifact handed to the report sink
type Attachment struct {
	Name        string `json:"name"`        // Descriptive name: scenario_data, screenshot, failure
	ContentType string `json:"contentType"` // MIME type: image/png, application/json, text/plain
	Body        []byte `json:"-"`           // In-memory content
}

// Common attachment names
const (
	AttachmentScenarioData = "scenario_data"
	AttachmentSuiteData    = "suite_data"
	AttachmentReportLink   = "report_link"
	AttachmentFailure      = "failure"
	AttachmentScreenshot   = "screenshot"
)

// Common content types
const (
	ContentTypePNG  = "image/png"
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain"
)

// NewScreenshotAttachment creates a screenshot attachment
func NewScreenshotAttachment(data []byte) Attachment {
	return Attachment{
		Name:        AttachmentScreenshot,
		ContentType: ContentTypePNG,
		Body:        data,
	}
}

// NewJSONAttachment creates a JSON attachment from an already encoded document
func NewJSONAttachment(name, doc string) Attachment {
	return Attachment{
		Name:        name,
		ContentType: ContentTypeJSON,
		Body:        []byte(doc),
	}
}

// MarshalJSONAttachment encodes v and wraps it as a JSON attachment
func MarshalJSONAttachment(name string, v interface{}) (Attachment, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Attachment{}, err
	}
	return Attachment{Name: name, ContentType: ContentTypeJSON, Body: data}, nil
}

// Extension returns the file extension for the attachment's content type
func (a Attachment) Extension() string {
	switch a.ContentType {
	case ContentTypePNG:
		return ".png"
	case ContentTypeJSON:
		return ".json"
	default:
		return ".txt"
	}
}
