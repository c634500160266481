// Package history keeps a SQLite journal of rename operations so past renames
// can be listed and traced back to the rule and config generation that made
// them.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"invoicehandler/internal/rename"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

//go:embed schema.sql
var schema string

// Record is one journaled operation
type Record struct {
	ID              string
	Timestamp       time.Time
	Status          string
	Reason          string
	SourcePath      string
	DestinationPath string
	Rule            string
	Generation      uint64
	MimeType        string
	Error           string
}

// FromOutcome converts a rename outcome into a record
func FromOutcome(o rename.Outcome, generation uint64) *Record {
	rec := &Record{
		ID:              uuid.NewString(),
		Timestamp:       time.Now().UTC(),
		Status:          o.Status.String(),
		Reason:          o.Reason,
		SourcePath:      o.From,
		DestinationPath: o.To,
		Generation:      generation,
	}
	if o.Rule != nil {
		rec.Rule = o.Rule.Pattern()
	}
	if o.Err != nil {
		rec.Error = o.Err.Error()
	}
	rec.MimeType = detectType(o)
	return rec
}

// detectType sniffs the content type of the file where it is now. Unknown
// or unreadable files yield "".
func detectType(o rename.Outcome) string {
	path := o.From
	if o.Status == rename.Renamed {
		path = o.To
	}
	if path == "" {
		return ""
	}
	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return ""
	}
	return mime.String()
}

// Journal stores operation records
type Journal interface {
	Save(ctx context.Context, rec *Record) error
	Recent(ctx context.Context, limit int) ([]*Record, error)
	Close() error
}

// SQLiteJournal implements Journal on a local SQLite database
type SQLiteJournal struct {
	db *sql.DB
}

// Ensure SQLiteJournal implements the Journal interface
var _ Journal = (*SQLiteJournal)(nil)

// Open opens (or creates) the journal at path. An empty path opens an
// in-memory journal.
func Open(ctx context.Context, path string) (*SQLiteJournal, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	} else if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("history: create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}
	// One writer, and an in-memory database only exists on its own connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create schema: %w", err)
	}
	return &SQLiteJournal{db: db}, nil
}

// Save inserts rec
func (j *SQLiteJournal) Save(ctx context.Context, rec *Record) error {
	const q = `
		INSERT INTO operations (id, timestamp, status, reason, source_path, destination_path, rule, generation, mime_type, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := j.db.ExecContext(ctx, q,
		rec.ID, rec.Timestamp.UnixNano(), rec.Status, rec.Reason,
		rec.SourcePath, rec.DestinationPath, rec.Rule, int64(rec.Generation), rec.MimeType, rec.Error)
	if err != nil {
		return fmt.Errorf("history: save %s: %w", rec.SourcePath, err)
	}
	return nil
}

// Recent returns up to limit records, newest first
func (j *SQLiteJournal) Recent(ctx context.Context, limit int) ([]*Record, error) {
	const q = `
		SELECT id, timestamp, status, reason, source_path, destination_path, rule, generation, mime_type, error
		FROM operations ORDER BY timestamp DESC, rowid DESC LIMIT ?`
	rows, err := j.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query recent: %w", err)
	}
	defer rows.Close()

	var result []*Record
	for rows.Next() {
		var (
			rec        Record
			ts         int64
			generation int64
		)
		if err := rows.Scan(&rec.ID, &ts, &rec.Status, &rec.Reason, &rec.SourcePath,
			&rec.DestinationPath, &rec.Rule, &generation, &rec.MimeType, &rec.Error); err != nil {
			return nil, fmt.Errorf("history: scan record: %w", err)
		}
		rec.Timestamp = time.Unix(0, ts).UTC()
		rec.Generation = uint64(generation)
		result = append(result, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate records: %w", err)
	}
	return result, nil
}

// Close closes the database
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// SaveOutcome records o unless it was skipped
func SaveOutcome(ctx context.Context, j Journal, o rename.Outcome, generation uint64) error {
	if o.Status == rename.Skipped {
		return nil
	}
	return j.Save(ctx, FromOutcome(o, generation))
}
