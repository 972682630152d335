package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/noted-gateway/internal/store"
)

// recordingBackend stands in for the document database and records what
// reaches it.
type recordingBackend struct {
	mu    sync.Mutex
	paths []string
}

func (b *recordingBackend) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.paths = append(b.paths, r.URL.Path)
		b.mu.Unlock()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"backend":true}`))
	})
}

func (b *recordingBackend) seen() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.paths...)
}

func setupProxyTest(t *testing.T) (*Gateway, *httptest.Server, *recordingBackend, *store.Record) {
	t.Helper()

	backend := &recordingBackend{}
	backendSrv := httptest.NewServer(backend.handler())
	t.Cleanup(backendSrv.Close)

	gw, srv := setupTestGateway(t, backendSrv.URL)

	rec := &store.Record{
		ID:         "partition-1",
		Email:      "alice@example.com",
		Passphrase: "correct-passphrase",
	}
	require.NoError(t, gw.store.PutRecord(context.Background(), rec))

	return gw, srv, backend, rec
}

func dbRequest(t *testing.T, srvURL, path, passphrase string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, srvURL+path, nil)
	require.NoError(t, err)
	if passphrase != "" {
		req.Header.Set(AuthHeader, passphrase)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestProxy_ForwardsWithCorrectPassphrase(t *testing.T) {
	_, srv, backend, rec := setupProxyTest(t)

	resp := dbRequest(t, srv.URL, "/db/partition-1/_some_doc", rec.Passphrase)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// The /db prefix is stripped before the backend sees the request
	assert.Equal(t, []string{"/partition-1/_some_doc"}, backend.seen())
}

func TestProxy_DeniesMissingHeader(t *testing.T) {
	_, srv, backend, _ := setupProxyTest(t)

	resp := dbRequest(t, srv.URL, "/db/partition-1/_some_doc", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, backend.seen(), "denied requests must not reach the backend")
}

func TestProxy_DeniesWrongPassphrase(t *testing.T) {
	_, srv, backend, _ := setupProxyTest(t)

	resp := dbRequest(t, srv.URL, "/db/partition-1/_some_doc", "wrong")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, backend.seen())
}

func TestProxy_DeniesForeignPassphrase(t *testing.T) {
	gw, srv, backend, _ := setupProxyTest(t)

	other := &store.Record{
		ID:         "partition-2",
		Email:      "bob@example.com",
		Passphrase: "other-passphrase",
	}
	require.NoError(t, gw.store.PutRecord(context.Background(), other))

	resp := dbRequest(t, srv.URL, "/db/partition-1/_some_doc", other.Passphrase)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, backend.seen())
}

func TestProxy_DeniesUnknownPartition(t *testing.T) {
	_, srv, backend, rec := setupProxyTest(t)

	resp := dbRequest(t, srv.URL, "/db/no-such-partition/_some_doc", rec.Passphrase)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, backend.seen())
}

func TestProxy_RootBypassesAuthorization(t *testing.T) {
	_, srv, backend, _ := setupProxyTest(t)

	// Replication checkpoint probes hit the database root with no credential
	resp := dbRequest(t, srv.URL, "/db/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"/"}, backend.seen())
}
