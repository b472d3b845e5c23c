package render

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/floorscan/internal/model"
)

// Output formats accepted by New.
const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatText     = "text"
)

// ErrUnknownFormat is returned by New for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown output format")

// Writer defines the interface for extraction output.
type Writer interface {
	// Write renders the extraction to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(extraction *model.Extraction) (int, error)
}

// Formats returns the supported format names.
func Formats() []string {
	return []string{FormatText, FormatHTML, FormatMarkdown, FormatJSON}
}

// New returns the Writer for format. Format names are case-insensitive.
func New(format string, output io.Writer) (Writer, error) {
	switch strings.ToLower(format) {
	case FormatHTML:
		return NewHTMLWriter(output), nil
	case FormatMarkdown, "md":
		return NewMarkdownWriter(output), nil
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint()), nil
	case FormatText, "":
		return NewTextWriter(output), nil
	default:
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownFormat, format, strings.Join(Formats(), ", "))
	}
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for writing to both the terminal and a file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write renders the extraction with every Writer.
// Returns the total bytes written and stops on the first error.
func (m *MultiWriter) Write(extraction *model.Extraction) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(extraction)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
