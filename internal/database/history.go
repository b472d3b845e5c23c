package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/floorscan/internal/model"
)

// FileName is the database file created inside the data directory.
const FileName = "floorscan.db"

// ErrExtractionNotFound is returned by GetExtraction for an unknown ID.
var ErrExtractionNotFound = errors.New("extraction not found")

// HistoryDB provides SQLite-based storage for extractions.
// It is safe for concurrent use; writes are serialized on one connection.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HistoryDB in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file; mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// Path returns the database file path.
func (hdb *HistoryDB) Path() string {
	return hdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS extractions (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		content_type TEXT,
		size INTEGER NOT NULL DEFAULT 0,
		image_digest TEXT,
		hosted_url TEXT,
		raw_response TEXT,
		measurements_json TEXT,
		warnings_json TEXT,
		metadata_json TEXT,
		performed_steps_json TEXT,
		room_count INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		failed_step TEXT,
		error_message TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_extractions_started ON extractions(started_at);
	CREATE INDEX IF NOT EXISTS idx_extractions_digest ON extractions(image_digest);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveExtraction inserts or replaces the record for e.
// The prompt is not stored; it is derived from the hosted URL.
func (hdb *HistoryDB) SaveExtraction(ctx context.Context, e *model.Extraction) error {
	measurementsJSON, err := marshalOptional(e.Measurements, e.Measurements != nil)
	if err != nil {
		return fmt.Errorf("failed to serialize measurements: %w", err)
	}
	warningsJSON, err := marshalOptional(e.Warnings, len(e.Warnings) > 0)
	if err != nil {
		return fmt.Errorf("failed to serialize warnings: %w", err)
	}
	metadataJSON, err := marshalOptional(e.Metadata, len(e.Metadata) > 0)
	if err != nil {
		return fmt.Errorf("failed to serialize metadata: %w", err)
	}
	stepsJSON, err := marshalOptional(e.PerformedSteps, len(e.PerformedSteps) > 0)
	if err != nil {
		return fmt.Errorf("failed to serialize steps: %w", err)
	}

	var contentType string
	var size int
	if e.Image != nil {
		contentType = e.Image.ContentType
		size = e.Image.Size()
	}

	query := `
	INSERT INTO extractions (
		id, filename, content_type, size, image_digest, hosted_url, raw_response,
		measurements_json, warnings_json, metadata_json, performed_steps_json,
		room_count, status, failed_step, error_message, started_at, completed_at
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		hosted_url = excluded.hosted_url,
		raw_response = excluded.raw_response,
		measurements_json = excluded.measurements_json,
		warnings_json = excluded.warnings_json,
		metadata_json = excluded.metadata_json,
		performed_steps_json = excluded.performed_steps_json,
		room_count = excluded.room_count,
		status = excluded.status,
		failed_step = excluded.failed_step,
		error_message = excluded.error_message,
		completed_at = excluded.completed_at
	`

	_, err = hdb.db.ExecContext(ctx, query,
		e.ID,
		e.Filename(),
		contentType,
		size,
		e.ImageDigest,
		e.HostedURL,
		e.RawResponse,
		measurementsJSON,
		warningsJSON,
		metadataJSON,
		stepsJSON,
		e.Measurements.Len(),
		string(e.Status),
		e.FailedStep,
		e.ErrorMessage,
		formatTimestamp(e.StartedAt),
		formatTimestamp(e.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save extraction: %w", err)
	}
	return nil
}

// ExtractionSummary is one row of the history listing.
type ExtractionSummary struct {
	ID          string
	Filename    string
	Size        int64
	ImageDigest string
	Status      model.ExtractionStatus
	FailedStep  string
	RoomCount   int
	StartedAt   time.Time
	CompletedAt time.Time
}

// ListExtractions returns the most recent extractions, newest first.
// A limit of zero or less returns all of them.
func (hdb *HistoryDB) ListExtractions(ctx context.Context, limit int) ([]ExtractionSummary, error) {
	query := `
	SELECT id, filename, size, image_digest, status, failed_step, room_count, started_at, completed_at
	FROM extractions
	ORDER BY started_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return hdb.querySummaries(ctx, query, args...)
}

// FindByDigest returns earlier extractions of the same image, newest first.
func (hdb *HistoryDB) FindByDigest(ctx context.Context, digest string) ([]ExtractionSummary, error) {
	query := `
	SELECT id, filename, size, image_digest, status, failed_step, room_count, started_at, completed_at
	FROM extractions
	WHERE image_digest = ?
	ORDER BY started_at DESC
	`
	return hdb.querySummaries(ctx, query, digest)
}

func (hdb *HistoryDB) querySummaries(ctx context.Context, query string, args ...any) ([]ExtractionSummary, error) {
	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list extractions: %w", err)
	}
	defer rows.Close()

	var results []ExtractionSummary
	for rows.Next() {
		var s ExtractionSummary
		var digest, failedStep, completedAt sql.NullString
		var status, startedAt string

		if err := rows.Scan(&s.ID, &s.Filename, &s.Size, &digest, &status, &failedStep, &s.RoomCount, &startedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan extraction: %w", err)
		}
		s.ImageDigest = digest.String
		s.Status = model.ExtractionStatus(status)
		s.FailedStep = failedStep.String
		s.StartedAt = parseTimestamp(startedAt)
		s.CompletedAt = parseTimestamp(completedAt.String)
		results = append(results, s)
	}
	return results, rows.Err()
}

// GetExtraction loads a stored extraction by ID.
// The returned Image carries the file name and content type but no bytes.
func (hdb *HistoryDB) GetExtraction(ctx context.Context, id string) (*model.Extraction, error) {
	query := `
	SELECT filename, content_type, image_digest, hosted_url, raw_response,
		measurements_json, warnings_json, metadata_json, performed_steps_json,
		status, failed_step, error_message, started_at, completed_at
	FROM extractions
	WHERE id = ?
	`

	var (
		filename                                         string
		contentType, digest, hostedURL, rawResponse      sql.NullString
		measurementsJSON, warningsJSON, metadataJSON     sql.NullString
		stepsJSON, failedStep, errorMessage, completedAt sql.NullString
		status, startedAt                                string
	)
	err := hdb.db.QueryRowContext(ctx, query, id).Scan(
		&filename, &contentType, &digest, &hostedURL, &rawResponse,
		&measurementsJSON, &warningsJSON, &metadataJSON, &stepsJSON,
		&status, &failedStep, &errorMessage, &startedAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrExtractionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get extraction: %w", err)
	}

	e := &model.Extraction{
		ID:           id,
		Image:        model.NewUploadedImage(filename, contentType.String, nil),
		ImageDigest:  digest.String,
		HostedURL:    hostedURL.String,
		RawResponse:  rawResponse.String,
		Status:       model.ExtractionStatus(status),
		FailedStep:   failedStep.String,
		ErrorMessage: errorMessage.String,
		StartedAt:    parseTimestamp(startedAt),
		CompletedAt:  parseTimestamp(completedAt.String),
	}

	if measurementsJSON.Valid && measurementsJSON.String != "" {
		e.Measurements = model.NewMeasurementMap()
		if err := json.Unmarshal([]byte(measurementsJSON.String), e.Measurements); err != nil {
			return nil, fmt.Errorf("failed to parse measurements: %w", err)
		}
	}
	if err := unmarshalOptional(warningsJSON, &e.Warnings); err != nil {
		return nil, fmt.Errorf("failed to parse warnings: %w", err)
	}
	if err := unmarshalOptional(metadataJSON, &e.Metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if err := unmarshalOptional(stepsJSON, &e.PerformedSteps); err != nil {
		return nil, fmt.Errorf("failed to parse steps: %w", err)
	}
	return e, nil
}

// Count returns the number of stored extractions.
func (hdb *HistoryDB) Count(ctx context.Context) (int, error) {
	var n int
	if err := hdb.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM extractions").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count extractions: %w", err)
	}
	return n, nil
}

// marshalOptional returns NULL when present is false.
func marshalOptional(v any, present bool) (sql.NullString, error) {
	if !present {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// unmarshalOptional leaves v untouched for NULL or empty columns.
func unmarshalOptional(s sql.NullString, v any) error {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), v)
}

// formatTimestamp stores times as UTC RFC3339 with nanoseconds so that
// lexical order matches chronological order. The zero time is stored as NULL.
func formatTimestamp(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timestampLayout), Valid: true}
}

// timestampLayout is RFC3339 with fixed-width nanoseconds.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// timestampFormats contains the timestamp formats that may be read back.
var timestampFormats = []string{
	timestampLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05", // SQLite default datetime format
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
