// Package auth implements the sign-in flow for noted-gateway.
//
// # Flow
//
// A user signs in with an email address. The service derives the partition
// id from the email, generates a database passphrase on first contact, mints
// a fresh single-use token and emails it as a link. Exchanging the token
// returns the passphrase and database URL and invalidates the token in the
// same store write. Every later database request presents the passphrase in
// the X-Auth-Token header and is checked by Authorize before being proxied.
//
// # Secrets
//
//   - Partition id: BLAKE2b-256 of the email, hex encoded. Deterministic.
//   - Token: 18 random bytes, URL-safe base64. Single use, replaced on
//     every sign-in.
//   - Passphrase: 24 random bytes, URL-safe base64. Generated once, never
//     rotated, revealed only by a successful token exchange.
//
// All denial paths collapse into ErrDenied so responses never leak whether
// a partition exists or a token was ever issued.
package auth
