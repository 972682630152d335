// Package store provides persistent storage of credential records using SQLite.
//
// One Record exists per registered user, keyed by the partition id derived
// from the user's email. Writes are revision-guarded: PutRecord only succeeds
// against the revision it was read at, and ConsumeToken clears a sign-in
// token with a compare-and-swap so a token can be exchanged at most once.
//
// The store uses SQLite in WAL mode via modernc.org/sqlite. Schema and the
// token lookup index are created once during initialization.
package store
