package render

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/floorscan/internal/model"
	"github.com/nao1215/markdown"
)

// MarkdownWriter outputs extractions in Markdown format.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation, which gives us tables and GitHub-flavored alerts without
// hand-built pipes and padding.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the extraction in Markdown format.
func (w *MarkdownWriter) Write(extraction *model.Extraction) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, extraction)
	w.writeMeasurements(md, extraction)
	w.writeWarnings(md, extraction)

	return len(md.String()), md.Build()
}

// writeHeader writes the document title and extraction details.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, extraction *model.Extraction) {
	md.H1("Floor Plan Measurements")
	md.PlainText("")

	rows := [][]string{
		{"File", cell(extraction.Filename())},
		{"Extracted", extraction.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"Status", string(extraction.Status)},
	}
	if extraction.HostedURL != "" {
		rows = append(rows, []string{"Hosted Image", extraction.HostedURL})
	}
	if extraction.Measurements != nil {
		rows = append(rows, []string{"Rooms", strconv.Itoa(extraction.Measurements.Len())})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeMeasurements writes the room table, or the failure cause.
func (w *MarkdownWriter) writeMeasurements(md *markdown.Markdown, extraction *model.Extraction) {
	md.H2("Measurements")
	md.PlainText("")

	if !extraction.Succeeded() {
		md.Cautionf("Extraction failed at step %q: %s", extraction.FailedStep, extraction.ErrorMessage)
		md.PlainText("")
		return
	}
	if extraction.Measurements == nil || extraction.Measurements.Len() == 0 {
		md.PlainText("No measurements found.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, extraction.Measurements.Len())
	for _, entry := range extraction.Measurements.Entries() {
		rows = append(rows, []string{cell(entry.Room), cell(entry.Value)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Room", "Measurement"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeWarnings writes recorded warnings as an alert.
func (w *MarkdownWriter) writeWarnings(md *markdown.Markdown, extraction *model.Extraction) {
	if !extraction.HasWarnings() {
		return
	}
	md.Warningf("%d entr%s could not be used.", len(extraction.Warnings), plural(len(extraction.Warnings)))
	md.PlainText("")
	md.BulletList(extraction.Warnings...)
	md.PlainText("")
}

// cell escapes pipes so a value cannot split a table column.
func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func plural(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
