package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "tokens.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func TestStore_PutRecord_InsertAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	rec := &Record{
		ID:         "partition-1",
		Email:      "alice@example.com",
		Passphrase: "pass-1",
		Token:      "token-1",
	}

	err := store.PutRecord(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Revision)

	retrieved, err := store.GetRecord(ctx, "partition-1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", retrieved.Email)
	assert.Equal(t, "pass-1", retrieved.Passphrase)
	assert.Equal(t, "token-1", retrieved.Token)
	assert.Equal(t, int64(1), retrieved.Revision)
	assert.False(t, retrieved.CreatedAt.IsZero())
}

func TestStore_GetRecord_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.GetRecord(ctx, "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_PutRecord_Update(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	rec := &Record{ID: "partition-1", Email: "alice@example.com", Passphrase: "pass-1", Token: "token-1"}
	require.NoError(t, store.PutRecord(ctx, rec))

	rec.Token = "token-2"
	require.NoError(t, store.PutRecord(ctx, rec))
	assert.Equal(t, int64(2), rec.Revision)

	retrieved, err := store.GetRecord(ctx, "partition-1")
	require.NoError(t, err)
	assert.Equal(t, "token-2", retrieved.Token)
	assert.Equal(t, "pass-1", retrieved.Passphrase)
}

func TestStore_PutRecord_RevisionConflict(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	rec := &Record{ID: "partition-1", Email: "alice@example.com", Passphrase: "pass-1"}
	require.NoError(t, store.PutRecord(ctx, rec))

	// Simulate a concurrent writer updating the record first
	other, err := store.GetRecord(ctx, "partition-1")
	require.NoError(t, err)
	other.Token = "token-other"
	require.NoError(t, store.PutRecord(ctx, other))

	// Our stale revision must lose
	rec.Token = "token-stale"
	err = store.PutRecord(ctx, rec)
	assert.ErrorIs(t, err, ErrConflict)

	retrieved, err := store.GetRecord(ctx, "partition-1")
	require.NoError(t, err)
	assert.Equal(t, "token-other", retrieved.Token)
}

func TestStore_PutRecord_InsertConflict(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first := &Record{ID: "partition-1", Email: "alice@example.com", Passphrase: "pass-first"}
	require.NoError(t, store.PutRecord(ctx, first))

	// A second insert for the same id must not silently drop the first passphrase
	second := &Record{ID: "partition-1", Email: "alice@example.com", Passphrase: "pass-second"}
	err := store.PutRecord(ctx, second)
	assert.ErrorIs(t, err, ErrConflict)

	retrieved, err := store.GetRecord(ctx, "partition-1")
	require.NoError(t, err)
	assert.Equal(t, "pass-first", retrieved.Passphrase)
}

func TestStore_GetRecordByToken(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	rec := &Record{ID: "partition-1", Email: "alice@example.com", Passphrase: "pass-1", Token: "token-1"}
	require.NoError(t, store.PutRecord(ctx, rec))

	retrieved, err := store.GetRecordByToken(ctx, "token-1")
	require.NoError(t, err)
	assert.Equal(t, "partition-1", retrieved.ID)

	_, err = store.GetRecordByToken(ctx, "unknown-token")
	assert.ErrorIs(t, err, ErrNotFound)

	// Empty token must never match records without an active token
	_, err = store.GetRecordByToken(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ConsumeToken_SingleUse(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	rec := &Record{ID: "partition-1", Email: "alice@example.com", Passphrase: "pass-1", Token: "token-1"}
	require.NoError(t, store.PutRecord(ctx, rec))

	consumed, err := store.ConsumeToken(ctx, "token-1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", consumed.Email)
	assert.Equal(t, "pass-1", consumed.Passphrase)
	assert.Empty(t, consumed.Token)

	// Second exchange of the same token is denied
	_, err = store.ConsumeToken(ctx, "token-1")
	assert.ErrorIs(t, err, ErrNotFound)

	retrieved, err := store.GetRecord(ctx, "partition-1")
	require.NoError(t, err)
	assert.Empty(t, retrieved.Token)
}

func TestStore_ConsumeToken_Concurrent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	rec := &Record{ID: "partition-1", Email: "alice@example.com", Passphrase: "pass-1", Token: "token-1"}
	require.NoError(t, store.PutRecord(ctx, rec))

	const callers = 10
	var wg sync.WaitGroup
	results := make(chan error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.ConsumeToken(ctx, "token-1")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, denials int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case assert.ErrorIs(t, err, ErrNotFound):
			denials++
		}
	}

	assert.Equal(t, 1, successes, "exactly one caller should win the token")
	assert.Equal(t, callers-1, denials)
}
