// ABOUTME: Credential record types and store errors for noted-gateway
// ABOUTME: Defines the Record struct and the RecordStore interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write loses a revision race.
// Callers should re-read the record and retry.
var ErrConflict = errors.New("revision conflict")

// Record holds the credentials for one registered user. The ID doubles as
// the name of the user's database partition. Token is empty when no sign-in
// token is outstanding (never issued or already consumed).
type Record struct {
	ID         string
	Email      string
	Passphrase string
	Token      string
	Revision   int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RecordStore defines the interface for credential record persistence
type RecordStore interface {
	// GetRecord retrieves a record by partition id.
	GetRecord(ctx context.Context, id string) (*Record, error)

	// PutRecord upserts a record. A Revision of zero inserts a new record;
	// otherwise the write only succeeds if the stored revision still
	// matches, returning ErrConflict when it does not.
	PutRecord(ctx context.Context, rec *Record) error

	// GetRecordByToken retrieves the record holding the given active token.
	GetRecordByToken(ctx context.Context, token string) (*Record, error)

	// ConsumeToken atomically invalidates the given token and returns the
	// record it belonged to. At most one concurrent call for the same token
	// value succeeds; the rest get ErrNotFound.
	ConsumeToken(ctx context.Context, token string) (*Record, error)

	// Close releases any resources held by the store
	Close() error
}
