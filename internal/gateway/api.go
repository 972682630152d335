// ABOUTME: JSON API handlers for sign-in and token exchange
// ABOUTME: Maps auth service results onto the HTTP surface

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/2389/noted-gateway/internal/auth"
)

type signInRequest struct {
	Email string `json:"email"`
}

type authenticateRequest struct {
	Token string `json:"token"`
}

type authenticateResponse struct {
	OK         bool   `json:"ok"`
	Email      string `json:"email"`
	DBURL      string `json:"dbUrl"`
	Passphrase string `json:"passphrase"`
}

// handleSignIn takes an email address, mints a token, stores the credential
// record and emails the token link to the user.
func (g *Gateway) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "email required"})
		return
	}

	if err := g.auth.SignIn(r.Context(), req.Email); err != nil {
		// Internal detail stays in the log, the client gets a generic failure
		g.logger.Error("sign-in request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
}

// handleAuthenticate exchanges a one-time token for the database passphrase.
func (g *Gateway) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req authenticateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		denied(w)
		return
	}

	grant, err := g.auth.Exchange(r.Context(), req.Token)
	if errors.Is(err, auth.ErrDenied) {
		denied(w)
		return
	}
	if err != nil {
		g.logger.Error("authenticate request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false})
		return
	}

	writeJSON(w, http.StatusCreated, authenticateResponse{
		OK:         true,
		Email:      grant.Email,
		DBURL:      grant.DBURL,
		Passphrase: grant.Passphrase,
	})
}

// denied writes the uniform denial response. Every credential failure looks
// the same to the client.
func denied(w http.ResponseWriter) {
	writeJSON(w, http.StatusForbidden, map[string]any{"ok": false, "message": "Denied"})
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
