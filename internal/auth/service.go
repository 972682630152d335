// ABOUTME: Token issuance, exchange and request authorization for noted-gateway
// ABOUTME: Implements the sign-in flow against the credential store and mailer

package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/2389/noted-gateway/internal/authcache"
	"github.com/2389/noted-gateway/internal/mail"
	"github.com/2389/noted-gateway/internal/store"
)

// Service errors
var (
	// ErrDenied is returned for any credential failure: unknown token,
	// unknown partition, missing or mismatched passphrase. Callers must not
	// distinguish the cases in responses.
	ErrDenied = errors.New("denied")

	// ErrDispatch wraps failures of the outbound mail channel. The token is
	// already persisted when dispatch fails; the next sign-in replaces it.
	ErrDispatch = errors.New("dispatch failed")
)

// maxPutAttempts bounds revision-conflict retries on record writes.
const maxPutAttempts = 3

// Grant is the result of a successful token exchange.
type Grant struct {
	Email      string
	DBURL      string
	Passphrase string
}

// Service implements token issuance, exchange and per-request authorization.
type Service struct {
	records store.RecordStore
	mailer  mail.Mailer
	cache   *authcache.Cache
	host    string
	logger  *slog.Logger
}

// NewService creates an auth service. host is the externally reachable base
// URL used for sign-in links and returned database URLs. cache may be nil.
func NewService(records store.RecordStore, mailer mail.Mailer, cache *authcache.Cache, host string) *Service {
	return &Service{
		records: records,
		mailer:  mailer,
		cache:   cache,
		host:    strings.TrimSuffix(host, "/"),
		logger:  slog.Default().With("component", "auth"),
	}
}

// SignIn creates or updates the credential record for an email and emails a
// fresh single-use token. The passphrase is generated on the first sign-in
// and never regenerated; every call mints a new token, silently replacing
// any outstanding one. Safe to call repeatedly for the same address.
func (s *Service) SignIn(ctx context.Context, email string) error {
	id := DeriveID(email)
	s.logger.Info("signing in", "id", id)

	var token string
	for attempt := 0; ; attempt++ {
		rec, err := s.records.GetRecord(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			passphrase, perr := NewPassphrase()
			if perr != nil {
				return perr
			}
			rec = &store.Record{ID: id, Email: email, Passphrase: passphrase}
		} else if err != nil {
			return fmt.Errorf("fetching record: %w", err)
		}

		token, err = NewToken()
		if err != nil {
			return err
		}
		rec.Token = token

		err = s.records.PutRecord(ctx, rec)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrConflict) {
			return fmt.Errorf("persisting record: %w", err)
		}
		if attempt+1 >= maxPutAttempts {
			return fmt.Errorf("persisting record: %w", err)
		}
		// Lost a revision race, re-read and retry
	}

	s.cache.Invalidate(id)

	// Persist-then-send: a dispatch failure leaves the token valid but
	// undelivered. The next sign-in overwrites it.
	url := fmt.Sprintf("%s/?token=%s", s.host, token)
	if err := s.mailer.SendSignInLink(ctx, email, url); err != nil {
		s.logger.Error("token dispatch failed", "id", id, "error", err)
		return fmt.Errorf("%w: %v", ErrDispatch, err)
	}

	return nil
}

// Exchange validates and consumes a single-use token, returning the email,
// database URL and passphrase it guards. A token can be exchanged exactly
// once: the store clears it in the same compare-and-swap that resolves the
// record, so a concurrent exchange of the same token yields one Grant and
// one ErrDenied. Unknown and already-consumed tokens are indistinguishable.
func (s *Service) Exchange(ctx context.Context, token string) (*Grant, error) {
	rec, err := s.records.ConsumeToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrDenied
	}
	if err != nil {
		return nil, fmt.Errorf("consuming token: %w", err)
	}

	s.cache.Invalidate(rec.ID)
	s.logger.Info("token exchanged", "id", rec.ID)

	return &Grant{
		Email:      rec.Email,
		DBURL:      fmt.Sprintf("%s/db/%s/", s.host, rec.ID),
		Passphrase: rec.Passphrase,
	}, nil
}

// Authorize checks a presented credential against the stored passphrase for
// a partition. Returns ErrDenied when the partition is unknown, the
// credential is missing, or it does not match; the cases are not
// distinguishable by the caller.
func (s *Service) Authorize(ctx context.Context, partitionID, presented string) error {
	if presented == "" || partitionID == "" {
		return ErrDenied
	}

	passphrase, ok := s.cache.Get(partitionID)
	if !ok {
		rec, err := s.records.GetRecord(ctx, partitionID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrDenied
		}
		if err != nil {
			return fmt.Errorf("fetching record: %w", err)
		}
		passphrase = rec.Passphrase
		s.cache.Set(partitionID, passphrase)
	}

	if subtle.ConstantTimeCompare([]byte(presented), []byte(passphrase)) != 1 {
		return ErrDenied
	}
	return nil
}
