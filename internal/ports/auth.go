// Package ports defines interfaces (hexagonal ports) for auth-related
// behavior. Implementations live in internal/adapters; orchestration in
// internal/service.
package ports

import (
	"context"

	domainauth "github.com/edumanage/edumanage/internal/domain/auth"
)

// CreateIdentityInput carries inputs for creating an identity.
type CreateIdentityInput struct {
	Email       string
	Password    string
	DisplayName string
}

// IdentityChange is delivered on the credential store's identity-change feed.
// Identity is nil when the principal signed out or its credential session was
// invalidated out of band.
type IdentityChange struct {
	ContextID string
	Identity  *domainauth.Identity
}

// CredentialStore authenticates principals and manages their credential
// lifecycle. It is the system's only authority on passwords and tokens; the
// rest of the application treats it as opaque.
type CredentialStore interface {
	// CreateIdentity registers a new identity. Rejections (email in use,
	// malformed email, weak password) come back as credential errors.
	CreateIdentity(ctx context.Context, in CreateIdentityInput) (domainauth.Identity, error)

	// Authenticate verifies email/password and returns the identity. A wrong
	// password and an unknown email both fail with the same credential error.
	Authenticate(ctx context.Context, email, password string) (domainauth.Identity, error)

	// IssueToken mints a token for the identity. With forceRefresh a new
	// token is minted even if a previously issued one is still valid.
	IssueToken(ctx context.Context, identityID string, forceRefresh bool) (string, error)

	// VerifyToken resolves a previously issued token back to its identity.
	// Expired, revoked, and malformed tokens all fail with a credential
	// error. Boot-time session restoration goes through here.
	VerifyToken(ctx context.Context, token string) (domainauth.Identity, error)

	// Invalidate revokes the identity's credential session.
	Invalidate(ctx context.Context, identityID string) error

	// SendPasswordReset requests a password-reset message for the email.
	SendPasswordReset(ctx context.Context, email string) error

	// CompletePasswordReset verifies the reset token and installs the new
	// password. Outstanding tokens for the identity stop verifying.
	CompletePasswordReset(ctx context.Context, token, newPassword string) error

	// SubscribeIdentityChanges registers for identity-change notifications.
	// The returned cancel function releases the subscription; the channel is
	// closed afterwards.
	SubscribeIdentityChanges() (<-chan IdentityChange, func())
}

// ProfileQuery filters profile listings. Zero values mean "no filter".
type ProfileQuery struct {
	Role   domainauth.Role
	Active *bool
	Search string
	Limit  int
	Offset int
}

// ProfileStore persists the users collection: one profile document per
// identity id.
type ProfileStore interface {
	// Get retrieves the profile by identity id.
	Get(ctx context.Context, id string) (domainauth.Profile, error)

	// Set writes the profile document. With merge, zero-valued fields keep
	// their stored values instead of overwriting them.
	Set(ctx context.Context, profile domainauth.Profile, merge bool) error

	// QueryByEmail returns profiles whose email equals the given value.
	QueryByEmail(ctx context.Context, email string) ([]domainauth.Profile, error)

	// List returns profiles matching the query.
	List(ctx context.Context, q ProfileQuery) ([]domainauth.Profile, error)
}

// SessionStore persists per-context session state for exactly one tier.
// A store owns three keys per context: the session record, the token, and
// (durable tier only) the remember flag. Clear must remove all of them.
type SessionStore interface {
	// Tier identifies which persistence tier this store implements.
	Tier() domainauth.Tier

	// SaveSession writes the session record for its context.
	SaveSession(ctx context.Context, rec domainauth.SessionRecord) error

	// Session retrieves the record for the context, or ErrNoSession.
	Session(ctx context.Context, contextID string) (domainauth.SessionRecord, error)

	// SaveToken writes the token for the context.
	SaveToken(ctx context.Context, contextID, token string) error

	// Token retrieves the stored token, or ErrNoSession when absent.
	Token(ctx context.Context, contextID string) (string, error)

	// SetRemember records the remember flag for the context. Stores backing
	// the ephemeral tier ignore it.
	SetRemember(ctx context.Context, contextID string) error

	// Remember reports whether the remember flag is present.
	Remember(ctx context.Context, contextID string) (bool, error)

	// Clear removes every key this system writes for the context. Leaving
	// any one key behind is a correctness bug (stale-session resurrection).
	Clear(ctx context.Context, contextID string) error
}

// Mailer delivers transactional mail on behalf of the credential store.
type Mailer interface {
	// SendPasswordReset sends the reset message carrying the token to the
	// recipient.
	SendPasswordReset(ctx context.Context, to, token string) error
}

// ErrNoSession is returned when a session store holds no value for the
// requested context and key.
type noSessionError struct{}

func (noSessionError) Error() string { return "no session" }

var ErrNoSession error = noSessionError{}
