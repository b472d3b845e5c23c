// Package measure turns free-form language model replies into a Measurement Map.
//
// Model output is prose that is expected to contain exactly one JSON object.
// The package works in two stages:
//   - ExtractJSONBlock scans the text for balanced top-level {...} regions,
//     tracking brace depth and JSON string state so that braces inside
//     string values do not end a block early.
//   - Parse decodes the single block as a token stream, keeping the key
//     order the model produced.
//
// Design decision: We use an incremental scanner rather than a greedy
// first-brace-to-last-brace pattern because the greedy match silently fuses
// two blocks (or a block and a stray brace in the surrounding prose) into one
// invalid region. Zero and multiple blocks are reported as distinct errors.
package measure
