package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilab-dev/fitsync/domain"
)

// memStore is a minimal in-memory credential repository that counts reads.
type memStore struct {
	creds map[string]*domain.Credential
	gets  int
}

func newMemStore() *memStore {
	return &memStore{creds: make(map[string]*domain.Credential)}
}

func (m *memStore) Put(_ context.Context, cred *domain.Credential) error {
	m.creds[cred.ClientID] = cred
	return nil
}

func (m *memStore) Get(_ context.Context, clientID string) (*domain.Credential, error) {
	m.gets++
	cred, ok := m.creds[clientID]
	if !ok {
		return nil, domain.ErrCredentialNotFound
	}
	return cred, nil
}

func (m *memStore) Delete(_ context.Context, clientID string) error {
	delete(m.creds, clientID)
	return nil
}

func (m *memStore) ListClientIDs(_ context.Context) ([]string, error) {
	ids := make([]string, 0, len(m.creds))
	for id := range m.creds {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *memStore) ForEach(_ context.Context, fn func(cred *domain.Credential) error) error {
	for _, cred := range m.creds {
		if err := fn(cred); err != nil {
			return err
		}
	}
	return nil
}

func TestCredentialCache_ReadThrough(t *testing.T) {
	inner := newMemStore()
	c := NewCredentialCache(inner, time.Minute)
	defer c.Stop()

	ctx := context.Background()
	require.NoError(t, inner.Put(ctx, &domain.Credential{ClientID: "c1", ClientSecret: "s"}))

	first, err := c.Get(ctx, "c1")
	require.NoError(t, err)
	second, err := c.Get(ctx, "c1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.gets, "second read must be served from cache")
}

func TestCredentialCache_PutUpdatesCache(t *testing.T) {
	inner := newMemStore()
	c := NewCredentialCache(inner, time.Minute)
	defer c.Stop()

	ctx := context.Background()
	require.NoError(t, c.Put(ctx, &domain.Credential{ClientID: "c1", ClientSecret: "old"}))
	require.NoError(t, c.Put(ctx, &domain.Credential{ClientID: "c1", ClientSecret: "new"}))

	cred, err := c.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "new", cred.ClientSecret)
	assert.Equal(t, 0, inner.gets, "writes keep the cache warm")
}

func TestCredentialCache_DeleteInvalidates(t *testing.T) {
	inner := newMemStore()
	c := NewCredentialCache(inner, time.Minute)
	defer c.Stop()

	ctx := context.Background()
	require.NoError(t, c.Put(ctx, &domain.Credential{ClientID: "c1", ClientSecret: "s"}))
	require.NoError(t, c.Delete(ctx, "c1"))

	_, err := c.Get(ctx, "c1")
	assert.ErrorIs(t, err, domain.ErrCredentialNotFound)
}

func TestCredentialCache_MissIsNotCached(t *testing.T) {
	inner := newMemStore()
	c := NewCredentialCache(inner, time.Minute)
	defer c.Stop()

	ctx := context.Background()
	_, err := c.Get(ctx, "ghost")
	require.ErrorIs(t, err, domain.ErrCredentialNotFound)

	require.NoError(t, inner.Put(ctx, &domain.Credential{ClientID: "ghost", ClientSecret: "s"}))
	cred, err := c.Get(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, "s", cred.ClientSecret)
}
