package render

import (
	"io"
	"strings"

	"github.com/nao1215/floorscan/internal/model"
)

// Fixed parts of the measurement table.
const (
	tableOpen   = `<table border="1">`
	tableHeader = `<tr><th>Room</th><th>Measurement</th></tr>`
	tableClose  = `</table>`
)

// textEscaper escapes characters that would otherwise be parsed as markup
// inside an HTML text node. Quotes are left alone: they are literal text
// outside attribute values and feet-inch measurements are full of them.
var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

// EscapeText escapes s for use as HTML text content.
func EscapeText(s string) string {
	return textEscaper.Replace(s)
}

// HTMLTable renders m as the two-column measurement table.
// Rows follow the map's order. A nil map yields a table with only a header.
func HTMLTable(m *model.MeasurementMap) string {
	var sb strings.Builder
	sb.WriteString(tableOpen)
	sb.WriteString(tableHeader)
	if m != nil {
		for _, entry := range m.Entries() {
			sb.WriteString("<tr><td>")
			sb.WriteString(EscapeText(entry.Room))
			sb.WriteString("</td><td>")
			sb.WriteString(EscapeText(entry.Value))
			sb.WriteString("</td></tr>")
		}
	}
	sb.WriteString(tableClose)
	return sb.String()
}

// HTMLWriter writes the measurement table as an HTML fragment.
// When the extraction carries warnings, an unordered list with class
// "warnings" follows the table.
type HTMLWriter struct {
	baseWriter
}

// NewHTMLWriter creates an HTMLWriter that outputs to the given writer.
func NewHTMLWriter(output io.Writer) *HTMLWriter {
	return &HTMLWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the table for extraction.
func (w *HTMLWriter) Write(extraction *model.Extraction) (int, error) {
	var sb strings.Builder
	sb.WriteString(HTMLTable(extraction.Measurements))

	if extraction.HasWarnings() {
		sb.WriteString(`<ul class="warnings">`)
		for _, warning := range extraction.Warnings {
			sb.WriteString("<li>")
			sb.WriteString(EscapeText(warning))
			sb.WriteString("</li>")
		}
		sb.WriteString("</ul>")
	}

	return io.WriteString(w.output, sb.String())
}
