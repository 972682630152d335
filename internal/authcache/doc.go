// Package authcache provides a time-based passphrase cache so the request
// authorizer does not have to read the credential store on every request.
package authcache
