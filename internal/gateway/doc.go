// Package gateway wires the credential store, auth service and mail
// transport into the HTTP server fronting the document database backend.
package gateway
