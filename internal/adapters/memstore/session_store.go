package memstore

// Package memstore provides the in-process ephemeral session tier. State is
// held per process and vanishes on restart, which is exactly the tier's
// contract: sessions not marked "remember" do not outlive the browsing
// session.

import (
	"context"
	"sync"

	domainauth "github.com/edumanage/edumanage/internal/domain/auth"
	"github.com/edumanage/edumanage/internal/ports"
)

// SessionStore implements the ephemeral session tier in memory.
type SessionStore struct {
	tier domainauth.Tier

	mu       sync.RWMutex
	sessions map[string]domainauth.SessionRecord
	tokens   map[string]string
	remember map[string]bool
}

var _ ports.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates an ephemeral-tier store.
func NewSessionStore() *SessionStore {
	return NewSessionStoreWithTier(domainauth.TierEphemeral)
}

// NewSessionStoreWithTier creates a store reporting the given tier. Tests use
// this to exercise durable-tier semantics without Redis.
func NewSessionStoreWithTier(tier domainauth.Tier) *SessionStore {
	return &SessionStore{
		tier:     tier,
		sessions: make(map[string]domainauth.SessionRecord),
		tokens:   make(map[string]string),
		remember: make(map[string]bool),
	}
}

// Tier identifies which persistence tier this store implements.
func (s *SessionStore) Tier() domainauth.Tier { return s.tier }

// SaveSession writes the session record for its context.
func (s *SessionStore) SaveSession(_ context.Context, rec domainauth.SessionRecord) error {
	if rec.ContextID == "" {
		return errEmptyContextID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[rec.ContextID] = rec
	return nil
}

// Session retrieves the record for the context, or ports.ErrNoSession.
func (s *SessionStore) Session(_ context.Context, contextID string) (domainauth.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sessions[contextID]
	if !ok {
		return domainauth.SessionRecord{}, ports.ErrNoSession
	}
	return rec, nil
}

// SaveToken writes the token for the context.
func (s *SessionStore) SaveToken(_ context.Context, contextID, token string) error {
	if contextID == "" {
		return errEmptyContextID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[contextID] = token
	return nil
}

// Token retrieves the stored token, or ports.ErrNoSession when absent.
func (s *SessionStore) Token(_ context.Context, contextID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[contextID]
	if !ok {
		return "", ports.ErrNoSession
	}
	return token, nil
}

// SetRemember records the remember flag. The ephemeral tier has no remember
// key, so the call is a no-op unless the store was built with the durable
// tier for tests.
func (s *SessionStore) SetRemember(_ context.Context, contextID string) error {
	if contextID == "" {
		return errEmptyContextID
	}
	if s.tier != domainauth.TierDurable {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remember[contextID] = true
	return nil
}

// Remember reports whether the remember flag is present.
func (s *SessionStore) Remember(_ context.Context, contextID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.remember[contextID], nil
}

// Clear removes every key held for the context.
func (s *SessionStore) Clear(_ context.Context, contextID string) error {
	if contextID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, contextID)
	delete(s.tokens, contextID)
	delete(s.remember, contextID)
	return nil
}

// Empty reports whether the store holds no keys at all for the context.
// Tests use it to assert tier exclusivity and full cleanup.
func (s *SessionStore) Empty(contextID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, hasSession := s.sessions[contextID]
	_, hasToken := s.tokens[contextID]
	return !hasSession && !hasToken && !s.remember[contextID]
}

type contextIDError struct{}

func (contextIDError) Error() string { return "session context ID cannot be empty" }

var errEmptyContextID error = contextIDError{}
