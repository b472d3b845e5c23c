package render

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/nao1215/floorscan/internal/model"
)

// TextWriter outputs human-readable text for terminal display.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors so the output can be piped to files or other tools.
type TextWriter struct {
	baseWriter

	// verbose adds the hosted URL, digest and EXIF metadata.
	verbose bool
}

// TextWriterOption configures a TextWriter.
type TextWriterOption func(*TextWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) TextWriterOption {
	return func(w *TextWriter) {
		w.verbose = verbose
	}
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer, opts ...TextWriterOption) *TextWriter {
	w := &TextWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the extraction in human-readable format.
func (w *TextWriter) Write(extraction *model.Extraction) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, extraction)
	w.writeTable(&sb, extraction)
	w.writeWarnings(&sb, extraction)

	return io.WriteString(w.output, sb.String())
}

func (w *TextWriter) writeHeader(sb *strings.Builder, extraction *model.Extraction) {
	sb.WriteString(strings.Repeat("=", 60) + "\n")
	fmt.Fprintf(sb, "File: %s\n", extraction.Filename())
	fmt.Fprintf(sb, "Status: %s\n", extraction.Status)

	if w.verbose {
		fmt.Fprintf(sb, "ID: %s\n", extraction.ID)
		if extraction.HostedURL != "" {
			fmt.Fprintf(sb, "Hosted URL: %s\n", extraction.HostedURL)
		}
		fmt.Fprintf(sb, "SHA3-256: %s\n", extraction.ImageDigest)
		fmt.Fprintf(sb, "Duration: %s\n", extraction.Duration())
		for key, value := range sortedMetadata(extraction.Metadata) {
			fmt.Fprintf(sb, "EXIF %s: %s\n", key, value)
		}
	}
	sb.WriteString(strings.Repeat("=", 60) + "\n")
}

func (w *TextWriter) writeTable(sb *strings.Builder, extraction *model.Extraction) {
	if !extraction.Succeeded() {
		fmt.Fprintf(sb, "Extraction failed at %s: %s\n", extraction.FailedStep, extraction.ErrorMessage)
		return
	}
	if extraction.Measurements == nil || extraction.Measurements.Len() == 0 {
		sb.WriteString("No measurements found.\n")
		return
	}

	width := utf8.RuneCountInString("Room")
	for _, entry := range extraction.Measurements.Entries() {
		width = max(width, utf8.RuneCountInString(entry.Room))
	}

	fmt.Fprintf(sb, "%s  %s\n", pad("Room", width), "Measurement")
	fmt.Fprintf(sb, "%s  %s\n", strings.Repeat("-", width), strings.Repeat("-", len("Measurement")))
	for _, entry := range extraction.Measurements.Entries() {
		fmt.Fprintf(sb, "%s  %s\n", pad(entry.Room, width), entry.Value)
	}
}

func (w *TextWriter) writeWarnings(sb *strings.Builder, extraction *model.Extraction) {
	if !extraction.HasWarnings() {
		return
	}
	sb.WriteString("\nWarnings:\n")
	for _, warning := range extraction.Warnings {
		fmt.Fprintf(sb, "  - %s\n", warning)
	}
}

// pad right-pads s with spaces to width runes.
func pad(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}
