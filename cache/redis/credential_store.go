// Package redis implements the credential store on a Redis-compatible
// key-value server, mirroring the durable KV backend the service was
// originally deployed against.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/pilab-dev/fitsync/domain"
)

// CredentialStore implements domain.CredentialRepository using Redis.
// Credentials are stored as JSON values under <prefix>:credential:<clientId>.
type CredentialStore struct {
	client *redis.Client
	prefix string
}

// NewCredentialStore creates a new [CredentialStore] instance.
func NewCredentialStore(client *redis.Client, prefix string) *CredentialStore {
	if prefix == "" {
		prefix = "fitsync"
	}
	return &CredentialStore{
		client: client,
		prefix: prefix,
	}
}

func (s *CredentialStore) key(clientID string) string {
	return fmt.Sprintf("%s:credential:%s", s.prefix, clientID)
}

func (s *CredentialStore) Put(ctx context.Context, cred *domain.Credential) error {
	payload, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}
	// No expiry: credentials are durable state, not cache entries.
	if err := s.client.Set(ctx, s.key(cred.ClientID), payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to store credential in Redis: %w", err)
	}
	return nil
}

func (s *CredentialStore) Get(ctx context.Context, clientID string) (*domain.Credential, error) {
	payload, err := s.client.Get(ctx, s.key(clientID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCredentialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credential from Redis: %w", err)
	}

	var cred domain.Credential
	if err := json.Unmarshal(payload, &cred); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential: %w", err)
	}
	return &cred, nil
}

func (s *CredentialStore) Delete(ctx context.Context, clientID string) error {
	return s.client.Del(ctx, s.key(clientID)).Err()
}

func (s *CredentialStore) ListClientIDs(ctx context.Context) ([]string, error) {
	keyPrefix := fmt.Sprintf("%s:credential:", s.prefix)

	var ids []string
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan credential keys: %w", err)
	}
	return ids, nil
}

func (s *CredentialStore) ForEach(ctx context.Context, fn func(cred *domain.Credential) error) error {
	ids, err := s.ListClientIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		cred, err := s.Get(ctx, id)
		if err != nil {
			// Deleted between scan and get.
			if errors.Is(err, domain.ErrCredentialNotFound) {
				continue
			}
			return err
		}
		if err := fn(cred); err != nil {
			return err
		}
	}
	return nil
}
