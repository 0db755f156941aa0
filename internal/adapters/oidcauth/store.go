// Package oidcauth implements the credential store against an external OIDC
// identity provider using the resource owner password grant. Account
// management (sign-up, password resets) stays with the provider; this adapter
// only authenticates, verifies, and revokes locally.
package oidcauth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	domainauth "github.com/edumanage/edumanage/internal/domain/auth"
	apperrors "github.com/edumanage/edumanage/internal/errors"
	"github.com/edumanage/edumanage/internal/ports"
)

const msgBadCredentials = "invalid email or password"

// Options configures the OIDC credential store.
type Options struct {
	// DiscoveryURL is the issuer URL or its .well-known discovery document.
	DiscoveryURL string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Claims       ClaimMappings
	HTTPClient   *http.Client
	Logger       *slog.Logger
	Now          func() time.Time
}

// Store is the OIDC implementation of ports.CredentialStore.
type Store struct {
	config   *oauth2.Config
	verifier *gooidc.IDTokenVerifier
	client   *http.Client
	claims   ClaimMappings
	log      *slog.Logger
	now      func() time.Time

	mu sync.Mutex
	// sources refresh tokens per identity; idTokens hold the raw ID token
	// handed out as the session token.
	sources  map[string]oauth2.TokenSource
	idTokens map[string]string
	// revoked records local invalidation times. ID tokens issued before the
	// recorded instant stop verifying even though the IdP still honors them.
	revoked map[string]time.Time
	subs    map[int]chan ports.IdentityChange
	nextID  int
}

var _ ports.CredentialStore = (*Store)(nil)

// New discovers the provider and builds a Store. The single discovery fetch
// happens here, not per request.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.ClientID == "" {
		return nil, fmt.Errorf("oidcauth: client ID is required")
	}
	if opts.ClientSecret == "" {
		return nil, fmt.Errorf("oidcauth: client secret is required")
	}
	if opts.DiscoveryURL == "" {
		return nil, fmt.Errorf("oidcauth: discovery URL is required")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if len(opts.Scopes) == 0 {
		opts.Scopes = []string{gooidc.ScopeOpenID, "profile", "email"}
	}

	issuer := strings.TrimSuffix(opts.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	issuer = strings.TrimSuffix(issuer, ".well-known/openid-configuration")

	discoveryCtx := context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
	provider, err := gooidc.NewProvider(discoveryCtx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}

	return &Store{
		config: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			Scopes:       opts.Scopes,
			Endpoint:     provider.Endpoint(),
		},
		verifier: provider.Verifier(&gooidc.Config{ClientID: opts.ClientID}),
		client:   opts.HTTPClient,
		claims:   opts.Claims.withDefaults(),
		log:      opts.Logger.With("component", "oidcauth"),
		now:      opts.Now,
		sources:  make(map[string]oauth2.TokenSource),
		idTokens: make(map[string]string),
		revoked:  make(map[string]time.Time),
		subs:     make(map[int]chan ports.IdentityChange),
	}, nil
}

// CreateIdentity is not available here; provisioning happens in the IdP.
func (s *Store) CreateIdentity(context.Context, ports.CreateIdentityInput) (domainauth.Identity, error) {
	return domainauth.Identity{}, apperrors.Credential("accounts are managed by the identity provider", nil)
}

// Authenticate runs the password grant and verifies the returned ID token.
// Grant failures of every kind collapse into one credential error.
func (s *Store) Authenticate(ctx context.Context, email, password string) (domainauth.Identity, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)
	tok, err := s.config.PasswordCredentialsToken(ctx, strings.TrimSpace(email), password)
	if err != nil {
		s.log.DebugContext(ctx, "password grant failed", "error", err)
		return domainauth.Identity{}, apperrors.Credential(msgBadCredentials, nil)
	}
	identity, raw, err := s.identityFromToken(ctx, tok)
	if err != nil {
		return domainauth.Identity{}, err
	}
	if identity.Disabled {
		return domainauth.Identity{}, apperrors.Credential(msgBadCredentials, nil)
	}
	s.mu.Lock()
	s.sources[identity.ID] = s.config.TokenSource(context.WithValue(context.Background(), oauth2.HTTPClient, s.client), tok)
	s.idTokens[identity.ID] = raw
	delete(s.revoked, identity.ID)
	s.mu.Unlock()
	return identity, nil
}

// IssueToken returns the identity's current ID token. With forceRefresh the
// refresh token is exercised first; a refresh response without an id_token
// keeps the existing one.
func (s *Store) IssueToken(ctx context.Context, identityID string, forceRefresh bool) (string, error) {
	s.mu.Lock()
	source, ok := s.sources[identityID]
	raw := s.idTokens[identityID]
	s.mu.Unlock()
	if !ok {
		return "", apperrors.Credential("no active credential session", nil)
	}
	if !forceRefresh {
		return raw, nil
	}
	tok, err := source.Token()
	if err != nil {
		return "", apperrors.Credential("refreshing token failed", err)
	}
	if fresh, ok := tok.Extra("id_token").(string); ok && fresh != "" {
		s.mu.Lock()
		s.idTokens[identityID] = fresh
		s.mu.Unlock()
		raw = fresh
	}
	return raw, nil
}

// VerifyToken checks signature, expiry, local revocation, and the disabled
// claim.
func (s *Store) VerifyToken(ctx context.Context, token string) (domainauth.Identity, error) {
	idTok, err := s.verifier.Verify(ctx, token)
	if err != nil {
		return domainauth.Identity{}, apperrors.Credential("invalid or expired token", err)
	}
	var claims map[string]any
	if err := idTok.Claims(&claims); err != nil {
		return domainauth.Identity{}, apperrors.Credential("invalid or expired token", err)
	}
	identity, err := extractIdentity(claims, s.claims)
	if err != nil {
		return domainauth.Identity{}, apperrors.Credential("invalid or expired token", err)
	}
	s.mu.Lock()
	revokedAt, wasRevoked := s.revoked[identity.ID]
	s.mu.Unlock()
	if wasRevoked && idTok.IssuedAt.Before(revokedAt) {
		return domainauth.Identity{}, apperrors.Credential("invalid or expired token", nil)
	}
	if identity.Disabled {
		return domainauth.Identity{}, apperrors.Credential("invalid or expired token", nil)
	}
	return identity, nil
}

// Invalidate drops the local credential session and timestamps the
// revocation so outstanding ID tokens stop verifying here.
func (s *Store) Invalidate(ctx context.Context, identityID string) error {
	s.mu.Lock()
	delete(s.sources, identityID)
	delete(s.idTokens, identityID)
	s.revoked[identityID] = s.now()
	s.mu.Unlock()
	s.broadcast(ports.IdentityChange{Identity: nil})
	s.log.InfoContext(ctx, "credential session invalidated", "identity_id", identityID)
	return nil
}

// SendPasswordReset is not available here; resets happen in the IdP.
func (s *Store) SendPasswordReset(context.Context, string) error {
	return apperrors.Credential("password resets are managed by the identity provider", nil)
}

// CompletePasswordReset is not available here; resets happen in the IdP.
func (s *Store) CompletePasswordReset(context.Context, string, string) error {
	return apperrors.Credential("password resets are managed by the identity provider", nil)
}

// SubscribeIdentityChanges registers a listener for out-of-band credential
// changes. The cancel function removes the subscription and closes the
// channel.
func (s *Store) SubscribeIdentityChanges() (<-chan ports.IdentityChange, func()) {
	ch := make(chan ports.IdentityChange, 8)
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()
	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (s *Store) broadcast(change ports.IdentityChange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- change:
		default:
		}
	}
}

func (s *Store) identityFromToken(ctx context.Context, tok *oauth2.Token) (domainauth.Identity, string, error) {
	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return domainauth.Identity{}, "", apperrors.Credential("token response carried no id_token", nil)
	}
	idTok, err := s.verifier.Verify(ctx, raw)
	if err != nil {
		return domainauth.Identity{}, "", apperrors.Credential("verifying id_token failed", err)
	}
	var claims map[string]any
	if err := idTok.Claims(&claims); err != nil {
		return domainauth.Identity{}, "", fmt.Errorf("decoding id_token claims: %w", err)
	}
	identity, err := extractIdentity(claims, s.claims)
	if err != nil {
		return domainauth.Identity{}, "", apperrors.Credential("id_token is missing required claims", err)
	}
	return identity, raw, nil
}
