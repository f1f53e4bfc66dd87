package fitsync

import (
	"context"
	"fmt"
	"time"

	"github.com/pilab-dev/fitsync/domain"
	"github.com/pilab-dev/fitsync/internal/keymutex"
	"github.com/pilab-dev/fitsync/internal/metrics"
)

// Authorizer exchanges a refresh token with the provider's authorization
// server for a new token pair.
type Authorizer interface {
	Refresh(ctx context.Context, cred *domain.Credential) (*domain.TokenPair, error)
}

// TokenService keeps access tokens valid by exchanging refresh tokens ahead
// of expiry. Refreshes for the same client id are serialized: the provider
// permits a refresh token to be exchanged once, so two concurrent refreshes
// would invalidate each other.
type TokenService struct {
	creds      domain.CredentialRepository
	authorizer Authorizer
	locks      *keymutex.KeyMutex
	now        func() time.Time
}

func NewTokenService(creds domain.CredentialRepository, authorizer Authorizer, locks *keymutex.KeyMutex) *TokenService {
	return &TokenService{
		creds:      creds,
		authorizer: authorizer,
		locks:      locks,
		now:        time.Now,
	}
}

// Refresh exchanges the credential's refresh token for a new pair and stores
// the replacement wholesale. It is a no-op for clients that never completed
// authorization. On provider rejection the stale credential is left
// untouched and the error is surfaced; the client then requires full
// re-authorization.
func (s *TokenService) Refresh(ctx context.Context, cred *domain.Credential) error {
	if !cred.Authorized() {
		return nil
	}

	s.locks.Lock(cred.ClientID)
	defer s.locks.Unlock(cred.ClientID)

	pair, err := s.authorizer.Refresh(ctx, cred)
	if err != nil {
		metrics.TokenRefreshFailureTotal.Inc()
		return fmt.Errorf("refresh token for client %s: %w", cred.ClientID, err)
	}

	updated := *cred
	updated.Token = pair
	updated.UpdatedAt = s.now()
	if err := s.creds.Put(ctx, &updated); err != nil {
		return fmt.Errorf("store refreshed token for client %s: %w", cred.ClientID, err)
	}

	metrics.TokenRefreshSuccessTotal.Inc()
	return nil
}
