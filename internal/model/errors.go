package model

import (
	"errors"
	"fmt"
)

// Stage errors.
// Every failure of the extraction pipeline is reported as one of the typed
// errors below. Each typed error also matches a sentinel via errors.Is, so
// callers that only care about the category do not need errors.As.
//
// Design decision: The HTTP boundary maps categories to status codes
// (validation -> 4xx, everything else -> 500). Keeping the category in the
// type lets the server do that mapping without string matching.
var (
	// ErrValidation matches any *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrUpload matches any *UploadError.
	ErrUpload = errors.New("image upload failed")

	// ErrModelQuery matches any *ModelQueryError.
	ErrModelQuery = errors.New("model query failed")

	// ErrParse matches any *ParseError.
	ErrParse = errors.New("model response could not be parsed")
)

// ValidationError reports invalid caller input, such as a missing upload.
// It is surfaced as a client error and is not logged as a server failure.
type ValidationError struct {
	// Field is the request field that failed validation (e.g., "floorplan").
	Field string

	// Reason describes what is wrong with the field.
	Reason string

	// Err is an optional underlying cause (e.g., *http.MaxBytesError).
	Err error
}

// Error implements error.
func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap returns the underlying cause.
func (e *ValidationError) Unwrap() error { return e.Err }

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// UploadError reports a failure of the image host call.
type UploadError struct {
	// StatusCode is the HTTP status returned by the host, or 0 when the
	// request never produced a response.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *UploadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("image upload failed (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("image upload failed: %v", e.Err)
}

// Unwrap returns the underlying cause.
func (e *UploadError) Unwrap() error { return e.Err }

// Is reports whether target is ErrUpload.
func (e *UploadError) Is(target error) bool { return target == ErrUpload }

// ModelQueryError reports a failure of the language model call.
type ModelQueryError struct {
	// StatusCode is the HTTP status returned by the model API, or 0.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *ModelQueryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("model query failed (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("model query failed: %v", e.Err)
}

// Unwrap returns the underlying cause.
func (e *ModelQueryError) Unwrap() error { return e.Err }

// Is reports whether target is ErrModelQuery.
func (e *ModelQueryError) Is(target error) bool { return target == ErrModelQuery }

// ParseError reports that the model reply held no usable JSON block.
type ParseError struct {
	// Err is the underlying cause, usually one of the measure package sentinels.
	Err error
}

// Error implements error.
func (e *ParseError) Error() string {
	return fmt.Sprintf("model response could not be parsed: %v", e.Err)
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error { return e.Err }

// Is reports whether target is ErrParse.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

// IsClientError reports whether err should be surfaced to the caller as a
// client error rather than a generic server failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}
