package httpx

import (
	"context"

	domainauth "github.com/edumanage/edumanage/internal/domain/auth"
)

// identityKey and profileKey are unexported context key types to avoid
// collisions across packages. Centralized here so all handlers/middleware use
// the same keys.
type identityKey struct{}

type profileKey struct{}

// SetIdentityInContext returns a child context carrying the verified identity.
func SetIdentityInContext(ctx context.Context, identity domainauth.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the verified identity and whether one is present.
func IdentityFromContext(ctx context.Context) (domainauth.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(domainauth.Identity)
	return identity, ok
}

// SetProfileInContext returns a child context carrying the resolved profile.
func SetProfileInContext(ctx context.Context, profile domainauth.Profile) context.Context {
	return context.WithValue(ctx, profileKey{}, profile)
}

// ProfileFromContext returns the resolved profile and whether one is present.
// The profile is only set past the role middleware, so its role has already
// been checked against the route's allowed set.
func ProfileFromContext(ctx context.Context) (domainauth.Profile, bool) {
	profile, ok := ctx.Value(profileKey{}).(domainauth.Profile)
	return profile, ok
}
