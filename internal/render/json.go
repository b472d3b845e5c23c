package render

import (
	"encoding/json"
	"io"
	"time"

	"github.com/nao1215/floorscan/internal/model"
)

// JSONWriter outputs extractions in JSON format.
// The measurements object keeps the room order reported by the model.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string

	// includeRaw adds the prompt and the raw model response.
	includeRaw bool
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithRawResponse includes the prompt and the unparsed model reply.
func WithRawResponse() JSONWriterOption {
	return func(w *JSONWriter) {
		w.includeRaw = true
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JSONResult is the JSON document written for one extraction.
type JSONResult struct {
	ID           string                 `json:"id"`
	Filename     string                 `json:"filename"`
	ImageDigest  string                 `json:"image_digest,omitempty"`
	HostedURL    string                 `json:"hosted_url,omitempty"`
	Status       model.ExtractionStatus `json:"status"`
	Measurements *model.MeasurementMap  `json:"measurements,omitempty"`
	Warnings     []string               `json:"warnings,omitempty"`
	Metadata     map[string]string      `json:"metadata,omitempty"`
	FailedStep   string                 `json:"failed_step,omitempty"`
	Error        string                 `json:"error,omitempty"`
	Prompt       string                 `json:"prompt,omitempty"`
	RawResponse  string                 `json:"raw_response,omitempty"`
	StartedAt    time.Time              `json:"started_at"`
	DurationMS   int64                  `json:"duration_ms"`
}

// NewJSONResult converts an extraction into its JSON document.
func NewJSONResult(extraction *model.Extraction, includeRaw bool) *JSONResult {
	result := &JSONResult{
		ID:           extraction.ID,
		Filename:     extraction.Filename(),
		ImageDigest:  extraction.ImageDigest,
		HostedURL:    extraction.HostedURL,
		Status:       extraction.Status,
		Measurements: extraction.Measurements,
		Warnings:     extraction.Warnings,
		Metadata:     extraction.Metadata,
		FailedStep:   extraction.FailedStep,
		Error:        extraction.ErrorMessage,
		StartedAt:    extraction.StartedAt,
		DurationMS:   extraction.Duration().Milliseconds(),
	}
	if includeRaw {
		result.Prompt = extraction.Prompt
		result.RawResponse = extraction.RawResponse
	}
	return result
}

// Write outputs the extraction in JSON format.
func (w *JSONWriter) Write(extraction *model.Extraction) (int, error) {
	return w.writeJSON(NewJSONResult(extraction, w.includeRaw))
}

// writeJSON marshals v and writes it to the output with a trailing newline.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}
