// Package render turns a finished extraction into output.
//
// This package contains writers for different output formats:
//   - HTMLWriter: the two-column measurement table served by the HTTP endpoint
//   - MarkdownWriter: a Markdown document for sharing and documentation
//   - JSONWriter: an ordered JSON object for tool integration
//   - TextWriter: human-readable text for terminal display
//
// Design decision: Rendering is kept apart from the data structures in the
// model package so new formats can be added without touching the pipeline.
// All writers implement the Writer interface and can be combined with
// MultiWriter.
package render
