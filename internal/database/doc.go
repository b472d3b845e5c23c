// Package database provides SQLite-based storage for the extraction history.
//
// Every extraction (successful or not) can be recorded with its file name,
// image digest, hosted URL, raw model reply, parsed measurements and error.
// The history lets operators re-read what the model answered for a plan and
// spot repeated uploads of the same image.
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of other
// databases because:
// 1. No external service - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. WAL mode provides good concurrent read performance for the server
package database
