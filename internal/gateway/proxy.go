// ABOUTME: Request authorizer and reverse proxy for the document database
// ABOUTME: Checks X-Auth-Token against the partition passphrase before forwarding

package gateway

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/2389/noted-gateway/internal/auth"
)

// AuthHeader carries the partition passphrase on database requests.
const AuthHeader = "X-Auth-Token"

// newBackendProxy builds the transparent reverse proxy to the document
// database backend. The /db prefix is stripped before this handler runs.
func newBackendProxy(backendURL string, logger *slog.Logger) (*httputil.ReverseProxy, error) {
	target, err := url.Parse(backendURL)
	if err != nil {
		return nil, fmt.Errorf("parsing backend url: %w", err)
	}

	proxyLogger := logger.With("component", "proxy")
	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			proxyLogger.Error("backend request failed", "path", r.URL.Path, "error", err)
			writeJSON(w, http.StatusBadGateway, map[string]any{"ok": false})
		},
	}
	return proxy, nil
}

// authorize guards database requests. The first path segment after /db names
// the target partition; the presented X-Auth-Token header must equal that
// partition's passphrase or the request is denied without reaching the
// backend. The bare database root stays reachable with no credential: the
// sync protocol probes it for replication checkpoints.
func (g *Gateway) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/db")
		if rest == "" || rest == "/" {
			next.ServeHTTP(w, r)
			return
		}

		partition, _, _ := strings.Cut(strings.TrimPrefix(rest, "/"), "/")
		err := g.auth.Authorize(r.Context(), partition, r.Header.Get(AuthHeader))
		if err != nil {
			if !errors.Is(err, auth.ErrDenied) {
				g.logger.Error("authorization check failed", "partition", partition, "error", err)
			}
			denied(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}
