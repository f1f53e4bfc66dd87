// Package cache provides an in-memory read-through cache in front of a
// credential store. Credential reads dominate during sweeps (every sync and
// refresh loads the credential first); the cache keeps those off the backing
// store while writes invalidate synchronously.
package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog/log"

	"github.com/pilab-dev/fitsync/domain"
)

// DefaultCredentialTTL bounds how stale a cached credential may get when
// another process mutates the backing store.
const DefaultCredentialTTL = 30 * time.Second

// CredentialCache is a domain.CredentialRepository decorator backed by a TTL
// cache. Listing and enumeration always go to the backing store.
type CredentialCache struct {
	inner domain.CredentialRepository
	cache *ttlcache.Cache[string, *domain.Credential]
}

func NewCredentialCache(inner domain.CredentialRepository, ttl time.Duration) *CredentialCache {
	if ttl <= 0 {
		ttl = DefaultCredentialTTL
	}
	c := &CredentialCache{
		inner: inner,
		cache: ttlcache.New[string, *domain.Credential](
			ttlcache.WithTTL[string, *domain.Credential](ttl),
			ttlcache.WithDisableTouchOnHit[string, *domain.Credential](),
		),
	}
	go c.cache.Start()
	return c
}

// Stop terminates the cache's expiration worker.
func (c *CredentialCache) Stop() {
	c.cache.Stop()
}

func (c *CredentialCache) Put(ctx context.Context, cred *domain.Credential) error {
	if err := c.inner.Put(ctx, cred); err != nil {
		return err
	}
	c.cache.Set(cred.ClientID, cred, ttlcache.DefaultTTL)
	return nil
}

func (c *CredentialCache) Get(ctx context.Context, clientID string) (*domain.Credential, error) {
	if item := c.cache.Get(clientID); item != nil {
		log.Debug().Str("client_id", clientID).Msg("credential cache hit")
		return item.Value(), nil
	}

	cred, err := c.inner.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}
	c.cache.Set(clientID, cred, ttlcache.DefaultTTL)
	return cred, nil
}

func (c *CredentialCache) Delete(ctx context.Context, clientID string) error {
	if err := c.inner.Delete(ctx, clientID); err != nil {
		return err
	}
	c.cache.Delete(clientID)
	return nil
}

func (c *CredentialCache) ListClientIDs(ctx context.Context) ([]string, error) {
	return c.inner.ListClientIDs(ctx)
}

func (c *CredentialCache) ForEach(ctx context.Context, fn func(cred *domain.Credential) error) error {
	return c.inner.ForEach(ctx, fn)
}
