// ABOUTME: Deterministic partition id derivation from email addresses
// ABOUTME: Uses BLAKE2b-256 so the same email always maps to the same partition

package auth

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// DeriveID maps an email address to its partition id. The id is a pure
// function of the email: signing in again with the same address always
// resolves to the same record and database partition.
func DeriveID(email string) string {
	sum := blake2b.Sum256([]byte(email))
	return hex.EncodeToString(sum[:])
}
