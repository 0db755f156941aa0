// Package redis provides the Redis-backed durable session tier.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/edumanage/edumanage/internal/domain/auth"
	"github.com/edumanage/edumanage/internal/ports"
)

// Key suffixes for the three values a tier persists per context. Clear must
// remove all of them together.
const (
	keySession  = ":userSession"
	keyToken    = ":authToken"
	keyRemember = ":rememberMe"
)

// SessionStore implements the durable session tier on Redis. Entries carry a
// TTL matching the tier ceiling as a safety net; the session manager still
// enforces the exact age boundary from the login timestamp.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
}

var _ ports.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates a Redis-backed durable-tier store.
func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return &SessionStore{client: client, prefix: "session:"}
}

// NewSessionStoreWithPrefix creates a store with a custom key prefix.
func NewSessionStoreWithPrefix(client redis.UniversalClient, prefix string) *SessionStore {
	return &SessionStore{client: client, prefix: prefix}
}

// Tier identifies this store as the durable tier.
func (s *SessionStore) Tier() domainauth.Tier { return domainauth.TierDurable }

func (s *SessionStore) key(contextID, suffix string) string {
	return s.prefix + contextID + suffix
}

// SaveSession writes the session record for its context.
func (s *SessionStore) SaveSession(ctx context.Context, rec domainauth.SessionRecord) error {
	if rec.ContextID == "" {
		return errors.New("session context ID cannot be empty")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	key := s.key(rec.ContextID, keySession)
	return s.client.Set(ctx, key, data, s.Tier().MaxAge()).Err()
}

// Session retrieves the record for the context, or ports.ErrNoSession.
func (s *SessionStore) Session(ctx context.Context, contextID string) (domainauth.SessionRecord, error) {
	if contextID == "" {
		return domainauth.SessionRecord{}, ports.ErrNoSession
	}

	data, err := s.client.Get(ctx, s.key(contextID, keySession)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.SessionRecord{}, ports.ErrNoSession
		}
		return domainauth.SessionRecord{}, fmt.Errorf("redis get: %w", err)
	}

	var rec domainauth.SessionRecord
	if unmarshalErr := json.Unmarshal([]byte(data), &rec); unmarshalErr != nil {
		return domainauth.SessionRecord{}, fmt.Errorf("unmarshal session: %w", unmarshalErr)
	}
	return rec, nil
}

// SaveToken writes the token for the context.
func (s *SessionStore) SaveToken(ctx context.Context, contextID, token string) error {
	if contextID == "" {
		return errors.New("session context ID cannot be empty")
	}
	return s.client.Set(ctx, s.key(contextID, keyToken), token, s.Tier().MaxAge()).Err()
}

// Token retrieves the stored token, or ports.ErrNoSession when absent.
func (s *SessionStore) Token(ctx context.Context, contextID string) (string, error) {
	if contextID == "" {
		return "", ports.ErrNoSession
	}

	token, err := s.client.Get(ctx, s.key(contextID, keyToken)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ports.ErrNoSession
		}
		return "", fmt.Errorf("redis get: %w", err)
	}
	return token, nil
}

// SetRemember records the remember flag for the context.
func (s *SessionStore) SetRemember(ctx context.Context, contextID string) error {
	if contextID == "" {
		return errors.New("session context ID cannot be empty")
	}
	return s.client.Set(ctx, s.key(contextID, keyRemember), "1", s.Tier().MaxAge()).Err()
}

// Remember reports whether the remember flag is present.
func (s *SessionStore) Remember(ctx context.Context, contextID string) (bool, error) {
	if contextID == "" {
		return false, nil
	}

	n, err := s.client.Exists(ctx, s.key(contextID, keyRemember)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// Clear removes every key this system writes for the context in one call, so
// no partial state can survive an invalidation.
func (s *SessionStore) Clear(ctx context.Context, contextID string) error {
	if contextID == "" {
		return nil // Nothing to delete
	}

	keys := []string{
		s.key(contextID, keySession),
		s.key(contextID, keyToken),
		s.key(contextID, keyRemember),
	}
	return s.client.Del(ctx, keys...).Err()
}
