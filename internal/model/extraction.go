package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ExtractionStatus is the final state of an extraction.
type ExtractionStatus string

const (
	// StatusPending is the state of an extraction that has not finished yet.
	StatusPending ExtractionStatus = "pending"

	// StatusSucceeded means a table was produced (possibly with warnings).
	StatusSucceeded ExtractionStatus = "succeeded"

	// StatusFailed means a pipeline step returned an error.
	StatusFailed ExtractionStatus = "failed"
)

// Extraction is the per-request record carried through the pipeline.
// Each step reads the fields filled in by earlier steps and adds its own.
//
// Design decision: As with a scan report, we use a single struct rather
// than passing results between steps by return value. This keeps the Step
// interface uniform and gives the history store one value to persist.
type Extraction struct {
	// ID uniquely identifies the extraction (UUID v4).
	ID string `json:"id"`

	// Image is the uploaded floor plan.
	Image *UploadedImage `json:"image"`

	// ImageDigest is the SHA3-256 digest of the image bytes.
	ImageDigest string `json:"image_digest"`

	// Metadata holds EXIF tags found in the upload, keyed by tag name.
	// Empty when the image carries no EXIF block.
	Metadata map[string]string `json:"metadata,omitempty"`

	// HostedURL is the public URL returned by the image host.
	HostedURL string `json:"hosted_url,omitempty"`

	// Prompt is the Extraction Prompt sent to the model.
	Prompt string `json:"prompt,omitempty"`

	// RawResponse is the model's unparsed reply.
	RawResponse string `json:"raw_response,omitempty"`

	// Measurements is the parsed Measurement Map.
	Measurements *MeasurementMap `json:"measurements,omitempty"`

	// Warnings lists non-fatal problems, such as model entries that were
	// dropped because their value was not a string.
	Warnings []string `json:"warnings,omitempty"`

	// PerformedSteps lists the pipeline steps that ran, in order.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// Status is the final state.
	Status ExtractionStatus `json:"status"`

	// FailedStep names the step that failed, when Status is StatusFailed.
	FailedStep string `json:"failed_step,omitempty"`

	// Error is the error that stopped the pipeline. Not serialized.
	Error error `json:"-"`

	// ErrorMessage is the serializable form of Error.
	ErrorMessage string `json:"error,omitempty"`

	// StartedAt is when the extraction was created.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt is when the pipeline finished, successfully or not.
	CompletedAt time.Time `json:"completed_at,omitzero"`
}

// NewExtraction creates a pending extraction for image.
func NewExtraction(image *UploadedImage) *Extraction {
	e := &Extraction{
		ID:        uuid.NewString(),
		Image:     image,
		Metadata:  make(map[string]string),
		Status:    StatusPending,
		StartedAt: time.Now(),
	}
	if image != nil {
		e.ImageDigest = image.Digest()
	}
	return e
}

// AddWarning records a non-fatal problem.
func (e *Extraction) AddWarning(format string, args ...any) {
	e.Warnings = append(e.Warnings, fmt.Sprintf(format, args...))
}

// HasWarnings reports whether any warning was recorded.
func (e *Extraction) HasWarnings() bool {
	return len(e.Warnings) > 0
}

// Fail marks the extraction as failed at step.
func (e *Extraction) Fail(step string, err error) {
	e.Status = StatusFailed
	e.FailedStep = step
	e.Error = err
	if err != nil {
		e.ErrorMessage = err.Error()
	}
	e.CompletedAt = time.Now()
}

// Complete marks the extraction as succeeded.
func (e *Extraction) Complete() {
	e.Status = StatusSucceeded
	e.CompletedAt = time.Now()
}

// Succeeded reports whether the extraction produced a table.
func (e *Extraction) Succeeded() bool {
	return e.Status == StatusSucceeded
}

// Duration returns how long the extraction took, or zero while pending.
func (e *Extraction) Duration() time.Duration {
	if e.CompletedAt.IsZero() {
		return 0
	}
	return e.CompletedAt.Sub(e.StartedAt)
}

// Filename returns the uploaded file name, or an empty string.
func (e *Extraction) Filename() string {
	if e.Image == nil {
		return ""
	}
	return e.Image.Filename
}
