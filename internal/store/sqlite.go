// ABOUTME: SQLite implementation of the RecordStore interface using modernc.org/sqlite
// ABOUTME: Provides credential record persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the RecordStore interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema and token index are created if they don't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Writers wait instead of failing immediately when the database is busy
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the records table and token index if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS records (
			id         TEXT PRIMARY KEY,
			email      TEXT NOT NULL,
			passphrase TEXT NOT NULL,
			token      TEXT,
			revision   INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_records_token
			ON records(token) WHERE token IS NOT NULL;
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// GetRecord retrieves a record by partition id.
// Returns ErrNotFound if the record doesn't exist.
func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, passphrase, token, revision, created_at, updated_at
		FROM records WHERE id = ?
	`, id)
	return scanRecord(row)
}

// GetRecordByToken retrieves the record holding the given active token.
// Returns ErrNotFound if no record has this token (never issued or consumed).
func (s *SQLiteStore) GetRecordByToken(ctx context.Context, token string) (*Record, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, passphrase, token, revision, created_at, updated_at
		FROM records WHERE token = ?
	`, token)
	return scanRecord(row)
}

// PutRecord upserts a record with optimistic concurrency.
// A zero Revision inserts; a concurrent insert of the same id surfaces as
// ErrConflict so the caller can re-read and retry. Non-zero revisions update
// only when unchanged in the store. On success the record's Revision and
// UpdatedAt are refreshed in place.
func (s *SQLiteStore) PutRecord(ctx context.Context, rec *Record) error {
	now := time.Now().UTC()

	if rec.Revision == 0 {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO records (id, email, passphrase, token, revision, created_at, updated_at)
			VALUES (?, ?, ?, ?, 1, ?, ?)
		`, rec.ID, rec.Email, rec.Passphrase, nullString(rec.Token),
			now.Format(time.RFC3339), now.Format(time.RFC3339))
		if err != nil {
			if isConstraintViolation(err) {
				return ErrConflict
			}
			return fmt.Errorf("inserting record: %w", err)
		}
		rec.Revision = 1
		rec.CreatedAt = now
		rec.UpdatedAt = now
		s.logger.Debug("created record", "id", rec.ID)
		return nil
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE records
		SET email = ?, passphrase = ?, token = ?, revision = revision + 1, updated_at = ?
		WHERE id = ? AND revision = ?
	`, rec.Email, rec.Passphrase, nullString(rec.Token),
		now.Format(time.RFC3339), rec.ID, rec.Revision)
	if err != nil {
		return fmt.Errorf("updating record: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrConflict
	}

	rec.Revision++
	rec.UpdatedAt = now
	s.logger.Debug("updated record", "id", rec.ID, "revision", rec.Revision)
	return nil
}

// ConsumeToken invalidates the given token and returns its record.
// The clear is a compare-and-swap on the token value, so when two callers
// race on the same token exactly one sees the record and the other gets
// ErrNotFound.
func (s *SQLiteStore) ConsumeToken(ctx context.Context, token string) (*Record, error) {
	rec, err := s.GetRecordByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE records
		SET token = NULL, revision = revision + 1, updated_at = ?
		WHERE id = ? AND token = ?
	`, now.Format(time.RFC3339), rec.ID, token)
	if err != nil {
		return nil, fmt.Errorf("consuming token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Lost the race to another exchange
		return nil, ErrNotFound
	}

	rec.Token = ""
	rec.Revision++
	rec.UpdatedAt = now
	s.logger.Debug("consumed token", "id", rec.ID)
	return rec, nil
}

// scanRecord scans one record row, mapping a NULL token to the empty string
func scanRecord(row *sql.Row) (*Record, error) {
	var rec Record
	var token sql.NullString
	var createdAtStr, updatedAtStr string

	err := row.Scan(&rec.ID, &rec.Email, &rec.Passphrase, &token,
		&rec.Revision, &createdAtStr, &updatedAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning record: %w", err)
	}

	if token.Valid {
		rec.Token = token.String
	}

	rec.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	rec.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &rec, nil
}

// nullString returns nil for empty strings, otherwise the string itself
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// isConstraintViolation checks if the error is a SQLite constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// Ensure SQLiteStore implements RecordStore interface
var _ RecordStore = (*SQLiteStore)(nil)
