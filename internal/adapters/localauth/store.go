// Package localauth implements the credential store against the local
// identity database: bcrypt password hashes, HMAC-signed tokens, and
// mailer-delivered password resets.
package localauth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/edumanage/edumanage/internal/core"
	domainauth "github.com/edumanage/edumanage/internal/domain/auth"
	apperrors "github.com/edumanage/edumanage/internal/errors"
	"github.com/edumanage/edumanage/internal/ports"
)

const (
	minPasswordLen = 8

	// A cached access token this close to expiry is re-minted instead of
	// being handed out again.
	reuseSlack = time.Minute

	defaultAccessTTL = time.Hour
	defaultResetTTL  = 30 * time.Minute
	defaultIssuer    = "edumanage"
)

// msgBadCredentials is the single message for every interactive sign-in
// failure. Unknown email, wrong password, and disabled account are not
// distinguishable from the outside.
const msgBadCredentials = "invalid email or password"

// timingPad is compared against for unknown emails so lookups cost the same
// as a real password check.
var timingPad, _ = bcrypt.GenerateFromPassword([]byte("edumanage.localauth.pad"), bcrypt.DefaultCost)

// Options configures the local credential store.
type Options struct {
	Identities core.IdentityRepository
	Mailer     ports.Mailer
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	ResetTTL   time.Duration
	Logger     *slog.Logger
	Now        func() time.Time
}

type cachedToken struct {
	token   string
	expires time.Time
	version int
}

// Store is the local implementation of ports.CredentialStore.
type Store struct {
	identities core.IdentityRepository
	mailer     ports.Mailer
	tokens     tokenIssuer
	validate   *validator.Validate
	log        *slog.Logger
	now        func() time.Time

	mu     sync.Mutex
	cache  map[string]cachedToken
	subs   map[int]chan ports.IdentityChange
	nextID int
}

var _ ports.CredentialStore = (*Store)(nil)

// New builds a Store from Options. Identities, Mailer, and Secret are
// required; the rest default.
func New(opts Options) (*Store, error) {
	if opts.Identities == nil {
		return nil, fmt.Errorf("localauth: identity repository is required")
	}
	if opts.Mailer == nil {
		return nil, fmt.Errorf("localauth: mailer is required")
	}
	if opts.Secret == "" {
		return nil, fmt.Errorf("localauth: token secret is required")
	}
	if opts.Issuer == "" {
		opts.Issuer = defaultIssuer
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = defaultAccessTTL
	}
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = defaultResetTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		identities: opts.Identities,
		mailer:     opts.Mailer,
		tokens: tokenIssuer{
			secret:    []byte(opts.Secret),
			issuer:    opts.Issuer,
			accessTTL: opts.AccessTTL,
			resetTTL:  opts.ResetTTL,
			now:       opts.Now,
		},
		validate: validator.New(),
		log:      opts.Logger.With("component", "localauth"),
		now:      opts.Now,
		cache:    make(map[string]cachedToken),
		subs:     make(map[int]chan ports.IdentityChange),
	}, nil
}

// CreateIdentity registers a new identity. Unlike sign-in, rejections here
// are specific: the caller is creating the account, not probing for one.
func (s *Store) CreateIdentity(ctx context.Context, in ports.CreateIdentityInput) (domainauth.Identity, error) {
	email := normalizeEmail(in.Email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return domainauth.Identity{}, apperrors.Credential("a valid email address is required", err)
	}
	if len(in.Password) < minPasswordLen {
		return domainauth.Identity{}, apperrors.Credential(
			fmt.Sprintf("password must be at least %d characters", minPasswordLen), nil)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("hashing password: %w", err)
	}
	created, err := s.identities.Create(ctx, core.IdentityRecord{
		Identity: domainauth.Identity{
			ID:          uuid.NewString(),
			Email:       email,
			DisplayName: strings.TrimSpace(in.DisplayName),
		},
		PasswordHash: hash,
	})
	if err != nil {
		if apperrors.IsConflict(err) {
			return domainauth.Identity{}, apperrors.Credential("email address is already in use", err)
		}
		return domainauth.Identity{}, fmt.Errorf("creating identity: %w", err)
	}
	s.log.InfoContext(ctx, "identity created", "identity_id", created.Identity.ID)
	return created.Identity, nil
}

// Authenticate verifies the email/password pair. Every failure mode returns
// the same credential error.
func (s *Store) Authenticate(ctx context.Context, email, password string) (domainauth.Identity, error) {
	rec, err := s.identities.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if apperrors.IsNotFound(err) {
			_ = bcrypt.CompareHashAndPassword(timingPad, []byte(password))
			return domainauth.Identity{}, apperrors.Credential(msgBadCredentials, nil)
		}
		return domainauth.Identity{}, fmt.Errorf("looking up identity: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword(rec.PasswordHash, []byte(password)); err != nil {
		return domainauth.Identity{}, apperrors.Credential(msgBadCredentials, nil)
	}
	if rec.Identity.Disabled {
		return domainauth.Identity{}, apperrors.Credential(msgBadCredentials, nil)
	}
	return rec.Identity, nil
}

// IssueToken returns an access token for the identity, reusing a previously
// minted one when it is still comfortably valid and forceRefresh is false.
func (s *Store) IssueToken(ctx context.Context, identityID string, forceRefresh bool) (string, error) {
	rec, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return "", apperrors.Credential("unknown identity", err)
		}
		return "", fmt.Errorf("looking up identity: %w", err)
	}
	if rec.Identity.Disabled {
		return "", apperrors.Credential("identity is disabled", nil)
	}
	now := s.now()
	if !forceRefresh {
		s.mu.Lock()
		cached, ok := s.cache[identityID]
		s.mu.Unlock()
		if ok && cached.version == rec.TokenVersion && now.Before(cached.expires.Add(-reuseSlack)) {
			return cached.token, nil
		}
	}
	token, err := s.tokens.mint(rec.Identity.ID, rec.Identity.Email, rec.TokenVersion, purposeAccess)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.cache[identityID] = cachedToken{
		token:   token,
		expires: now.Add(s.tokens.accessTTL),
		version: rec.TokenVersion,
	}
	s.mu.Unlock()
	return token, nil
}

// VerifyToken resolves a stored access token back to its identity. The token
// must parse, its version must match the identity's current version, and the
// identity must still be enabled.
func (s *Store) VerifyToken(ctx context.Context, token string) (domainauth.Identity, error) {
	claims, err := s.tokens.parse(token, purposeAccess)
	if err != nil {
		return domainauth.Identity{}, apperrors.Credential("invalid or expired token", err)
	}
	rec, err := s.identities.GetByID(ctx, claims.Subject)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return domainauth.Identity{}, apperrors.Credential("invalid or expired token", err)
		}
		return domainauth.Identity{}, fmt.Errorf("looking up identity: %w", err)
	}
	if rec.TokenVersion != claims.Version || rec.Identity.Disabled {
		return domainauth.Identity{}, apperrors.Credential("invalid or expired token", nil)
	}
	return rec.Identity, nil
}

// Invalidate revokes every outstanding token for the identity and announces
// the sign-out on the identity-change feed.
func (s *Store) Invalidate(ctx context.Context, identityID string) error {
	if _, err := s.identities.BumpTokenVersion(ctx, identityID); err != nil {
		if !apperrors.IsNotFound(err) {
			return fmt.Errorf("revoking tokens: %w", err)
		}
	}
	s.mu.Lock()
	delete(s.cache, identityID)
	s.mu.Unlock()
	s.broadcast(ports.IdentityChange{Identity: nil})
	s.log.InfoContext(ctx, "credential session invalidated", "identity_id", identityID)
	return nil
}

// SendPasswordReset mints a reset token and mails it. An unknown address is
// logged and reported as success so the endpoint cannot be used to probe for
// accounts.
func (s *Store) SendPasswordReset(ctx context.Context, email string) error {
	rec, err := s.identities.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if apperrors.IsNotFound(err) {
			s.log.InfoContext(ctx, "password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("looking up identity: %w", err)
	}
	token, err := s.tokens.mint(rec.Identity.ID, rec.Identity.Email, rec.TokenVersion, purposeReset)
	if err != nil {
		return err
	}
	if err := s.mailer.SendPasswordReset(ctx, rec.Identity.Email, token); err != nil {
		return apperrors.Credential("unable to send password reset email", err)
	}
	s.log.InfoContext(ctx, "password reset sent", "identity_id", rec.Identity.ID)
	return nil
}

// CompletePasswordReset installs a new password after verifying the reset
// token. The token version bump revokes the reset token itself along with
// any access tokens minted before the change.
func (s *Store) CompletePasswordReset(ctx context.Context, token, newPassword string) error {
	claims, err := s.tokens.parse(token, purposeReset)
	if err != nil {
		return apperrors.Credential("invalid or expired reset token", err)
	}
	rec, err := s.identities.GetByID(ctx, claims.Subject)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.Credential("invalid or expired reset token", err)
		}
		return fmt.Errorf("looking up identity: %w", err)
	}
	if rec.TokenVersion != claims.Version {
		return apperrors.Credential("invalid or expired reset token", nil)
	}
	if len(newPassword) < minPasswordLen {
		return apperrors.Credential(
			fmt.Sprintf("password must be at least %d characters", minPasswordLen), nil)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	if err := s.identities.UpdatePassword(ctx, rec.Identity.ID, hash); err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	if _, err := s.identities.BumpTokenVersion(ctx, rec.Identity.ID); err != nil {
		return fmt.Errorf("revoking tokens: %w", err)
	}
	s.mu.Lock()
	delete(s.cache, rec.Identity.ID)
	s.mu.Unlock()
	s.broadcast(ports.IdentityChange{Identity: nil})
	s.log.InfoContext(ctx, "password reset completed", "identity_id", rec.Identity.ID)
	return nil
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
			// slow subscriber, drop rather than block
		}
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
