// Package model defines the core data structures used throughout floorscan.
//
// This package contains the following main types:
//   - UploadedImage: The raw floor-plan image received from a caller
//   - MeasurementMap: The ordered room-label-to-measurement mapping
//   - Extraction: The per-request record carried through the pipeline
//   - ValidationError, UploadError, ModelQueryError, ParseError: stage errors
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The pipeline, renderers, HTTP server and history store all use
// these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model
