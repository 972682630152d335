// ABOUTME: Gateway orchestrator that wires the store, mailer and HTTP server
// ABOUTME: Manages the API, authorizer/proxy and server lifecycle

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/2389/noted-gateway/internal/auth"
	"github.com/2389/noted-gateway/internal/authcache"
	"github.com/2389/noted-gateway/internal/config"
	"github.com/2389/noted-gateway/internal/mail"
	"github.com/2389/noted-gateway/internal/store"
)

// maxCacheEntries bounds the passphrase cache size.
const maxCacheEntries = 10000

// Gateway orchestrates the noted-gateway server components.
// It owns the credential store, the auth service and the HTTP server that
// fronts the document database backend.
type Gateway struct {
	config     *config.Config
	store      store.RecordStore
	auth       *auth.Service
	cache      *authcache.Cache
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a gateway from configuration. It opens the credential store,
// builds the mail transport and registers all HTTP routes.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	var mailer mail.Mailer
	if cfg.SMTP.Host != "" {
		mailer = mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	} else {
		mailer = mail.NewLogMailer()
	}

	cache := authcache.New(cfg.Auth.CacheTTL, maxCacheEntries)
	authSvc := auth.NewService(s, mailer, cache, cfg.Server.PublicURL)

	proxy, err := newBackendProxy(cfg.Backend.URL, logger)
	if err != nil {
		s.Close()
		return nil, err
	}

	gw := &Gateway{
		config: cfg,
		store:  s,
		auth:   authSvc,
		cache:  cache,
		logger: logger.With("component", "gateway"),
	}

	mux := http.NewServeMux()

	// Health endpoint - no auth required
	mux.HandleFunc("GET /health", gw.handleHealth)

	// Sign-in API
	mux.HandleFunc("POST /api/sign-in", gw.handleSignIn)
	mux.HandleFunc("POST /api/authenticate", gw.handleAuthenticate)

	// Database proxy, authorization checked per request
	dbHandler := gw.authorize(http.StripPrefix("/db", proxy))
	mux.Handle("/db", dbHandler)
	mux.Handle("/db/", dbHandler)

	// Client application bundle
	if cfg.Static.Dir != "" {
		mux.Handle("/", http.FileServer(http.Dir(cfg.Static.Dir)))
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.requestLog(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Run starts the gateway server and blocks until the context is canceled.
// Returns nil on graceful shutdown (context canceled), or an error if the
// server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown stops the HTTP server and releases the store and cache.
func (g *Gateway) Shutdown(ctx context.Context) error {
	err := g.httpServer.Shutdown(ctx)

	g.cache.Close()
	if cerr := g.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// handleHealth reports liveness.
func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
