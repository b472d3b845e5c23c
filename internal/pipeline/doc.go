// Package pipeline runs the measurement extraction as a sequence of steps.
//
// One extraction passes through validation, EXIF metadata collection, image
// upload, model query and response parsing. Each stage is implemented as a
// Step that receives the current extraction and fills in its own fields.
//
// Design decision: We use a pipeline pattern instead of direct function calls
// because:
// 1. Every stage gets the same logging and error recording
// 2. The first failing stage stops the run, so a failed upload never reaches
// the model
// 3. Context cancellation is checked between stages
//
// The package also supports batch processing of several images with
// concurrency control using errgroup.
package pipeline
