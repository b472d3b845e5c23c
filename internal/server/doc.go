// Package server exposes the extraction pipeline over HTTP.
//
// Routes:
//
//	GET  /                      landing page with the upload form
//	POST /extract-measurements  multipart upload (field "floorplan"), returns an HTML table
//	GET  /healthz               liveness probe
//
// Each POST runs a fresh pipeline on the request goroutine. A missing file
// is answered with 400 before any outbound call; every downstream failure
// is logged and answered with a fixed 500 message so that upstream errors
// never reach the client.
package server
