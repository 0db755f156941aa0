package service

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edumanage/edumanage/internal/adapters/memstore"
	domainauth "github.com/edumanage/edumanage/internal/domain/auth"
	apperrors "github.com/edumanage/edumanage/internal/errors"
	mockauth "github.com/edumanage/edumanage/internal/mocks/auth"
	"github.com/edumanage/edumanage/internal/ports"
)

const testContextID = "ctx-1"

type authFixture struct {
	creds     *mockauth.MockCredentialStore
	profiles  *mockauth.MemoryProfileStore
	durable   *memstore.SessionStore
	ephemeral *memstore.SessionStore
	sessions  *SessionManager
	clock     *sessionClock
	svc       *AuthService
}

func newAuthFixture(t *testing.T, bootPath string) *authFixture {
	t.Helper()
	f := &authFixture{
		creds:     mockauth.NewMockCredentialStore(),
		profiles:  mockauth.NewMemoryProfileStore(),
		durable:   memstore.NewSessionStoreWithTier(domainauth.TierDurable),
		ephemeral: memstore.NewSessionStore(),
		clock:     &sessionClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)},
	}
	var err error
	f.sessions, err = NewSessionManager(SessionManagerOptions{
		Durable:   f.durable,
		Ephemeral: f.ephemeral,
		Now:       f.clock.Now,
	})
	require.NoError(t, err)
	f.svc, err = NewAuthService(AuthServiceOptions{
		Credentials:     f.creds,
		Profiles:        f.profiles,
		Sessions:        f.sessions,
		ContextID:       testContextID,
		BootPath:        bootPath,
		RefreshInterval: time.Hour,
		Now:             f.clock.Now,
	})
	require.NoError(t, err)
	return f
}

// seedTeacher registers a credential identity with a matching profile.
func (f *authFixture) seedTeacher(t *testing.T) domainauth.Identity {
	t.Helper()
	identity := domainauth.Identity{ID: "id-1", Email: "jane@school.org"}
	f.creds.Seed(identity, "correct-horse")
	require.NoError(t, f.profiles.Set(t.Context(), domainauth.Profile{
		ID:     identity.ID,
		Email:  identity.Email,
		Role:   domainauth.RoleTeacher,
		Active: true,
	}, false))
	return identity
}

// startRun launches the service loop and returns after boot resolution has
// produced its snapshot.
func (f *authFixture) startRun(t *testing.T) <-chan domainauth.Snapshot {
	t.Helper()
	updates, cancelSub := f.svc.Subscribe()
	t.Cleanup(cancelSub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.svc.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	waitSnapshot(t, updates)
	return updates
}

func waitSnapshot(t *testing.T, updates <-chan domainauth.Snapshot) domainauth.Snapshot {
	t.Helper()
	select {
	case snap := <-updates:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return domainauth.Snapshot{}
	}
}

func TestNewAuthServiceValidatesOptions(t *testing.T) {
	f := newAuthFixture(t, domainauth.PathRoot)

	_, err := NewAuthService(AuthServiceOptions{})
	require.Error(t, err)

	_, err = NewAuthService(AuthServiceOptions{
		Credentials: f.creds,
		Profiles:    f.profiles,
		Sessions:    f.sessions,
	})
	require.ErrorContains(t, err, "context ID")
}

func TestAuthServiceStartsLoading(t *testing.T) {
	f := newAuthFixture(t, domainauth.PathRoot)
	assert.Equal(t, domainauth.StateLoading, f.svc.Snapshot().State)
	assert.False(t, f.svc.Busy())
}

func TestSignUp(t *testing.T) {
	f := newAuthFixture(t, domainauth.PathRoot)
	ctx := t.Context()

	err := f.svc.SignUp(ctx, SignUpInput{
		Email:     "jane.doe@school.org",
		Password:  "correct-horse",
		FirstName: "Jane",
		LastName:  "Doe",
		Role:      domainauth.RoleTeacher,
		Subjects:  []string{"maths"},
		Remember:  false,
	})
	require.NoError(t, err)

	snap := f.svc.Snapshot()
	assert.Equal(t, domainauth.StateAuthenticated, snap.State)
	require.NotNil(t, snap.Profile)
	assert.Equal(t, domainauth.RoleTeacher, snap.Profile.Role)
	assert.Equal(t, "Jane", snap.Profile.FirstName)
	assert.Equal(t, []string{"maths"}, snap.Profile.Subjects)
	assert.True(t, snap.FirstLogin)
	assert.Equal(t, "/dashboard/teacher", snap.Destination)

	// No remember: the session lives in the ephemeral tier only.
	rec, err := f.ephemeral.Session(ctx, testContextID)
	require.NoError(t, err)
	assert.Equal(t, domainauth.TierEphemeral, rec.Tier)
	_, err = f.durable.Session(ctx, testContextID)
	assert.ErrorIs(t, err, ports.ErrNoSession)
}

func TestSignUpStoresCallerRoleVerbatim(t *testing.T) {
	f := newAuthFixture(t, domainauth.PathRoot)
	ctx := t.Context()

	// The email would resolve to super_admin under the sign-in heuristic;
	// sign-up must take the caller's role as given instead.
	err := f.svc.SignUp(ctx, SignUpInput{
		Email:    "sam.adminov@school.org",
		Password: "correct-horse",
		Role:     domainauth.RoleStudent,
		Grade:    "7",
	})
	require.NoError(t, err)

	snap := f.svc.Snapshot()
	require.NotNil(t, snap.Profile)
	assert.Equal(t, domainauth.RoleStudent, snap.Profile.Role)
	assert.Equal(t, "7", snap.Profile.Grade)

	stored, err := f.profiles.Get(ctx, snap.Profile.ID)
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleStudent, stored.Role)
}

func TestSignUpWithoutRoleLandsInHoldingState(t *testing.T) {
	f := newAuthFixture(t, domainauth.PathRoot)

	err := f.svc.SignUp(t.Context(), SignUpInput{
		Email:    "new.person@school.org",
		Password: "correct-horse",
	})
	require.NoError(t, err)

	snap := f.svc.Snapshot()
	assert.Equal(t, domainauth.StateNoRole, snap.State)
	require.NotNil(t, snap.Profile)
	assert.Equal(t, domainauth.RoleNone, snap.Profile.Role)
}

func TestSignUpRejectsUnknownRole(t *testing.T) {
	f := newAuthFixture(t, domainauth.PathRoot)

	err := f.svc.SignUp(t.Context(), SignUpInput{
		Email:    "new.person@school.org",
		Password: "correct-horse",
		Role:     domainauth.Role("janitor"),
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestSignUpDuplicateEmailKeepsSpecificError(t *testing.T) {
	f := newAuthFixture(t, domainauth.PathRoot)
	f.seedTeacher(t)

	err := f.svc.SignUp(t.Context(), SignUpInput{
		Email:    "jane@school.org",
		Password: "correct-horse",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCredential(err))
	assert.ErrorContains(t, err, "already in use")
}

func TestSignUpProfileWriteFailureIsOrphanedIdentity(t *testing.T) {
	f := newAuthFixture(t, domainauth.PathRoot)
	f.profiles.SetFunc = func(ctx context.Context, profile domainauth.Profile, merge bool) error {
		return apperrors.Validation("profiles unavailable")
	}

	err := f.svc.SignUp(t.Context(), SignUpInput{
		Email:    "jane@school.org",
		Password: "correct-horse",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsOrphanedIdentity(err))
}

func TestSignUpFailurePreservesExistingSession(t *testing.T) {
	f := newAuthFixture(t, domainauth.PathRoot)
	identity := f.seedTeacher(t)
	ctx := t.Context()
	require.NoError(t, f.svc.SignIn(ctx, SignInInput{Email: identity.Email, Password: "correct-horse", Remember: true}))

	err := f.svc.SignUp(ctx, SignUpInput{
		Email:    identity.Email,
		Password: "correct-horse",
		Role:     domainauth.RoleTeacher,
	})
	require.Error(t, err)

	// The rejected sign-up left the current session in place.
	rec, err := f.sessions.Active(ctx, testContextID)
	require.NoError(t, err)
	assert.Equal(t, identity.ID, rec.IdentityID)
}

func TestSignInExistingProfile(t *testing.T) {
	f := newAuthFixture(t, domainauth.PathRoot)
	identity := f.seedTeacher(t)
	ctx := t.Context()
	setsBefore := f.profiles.SetCalls

	err := f.svc.SignIn(ctx, SignInInput{
		Email:    identity.Email,
		Password: "correct-horse",
		Remember: true,
	})
	require.NoError(t, err)

	snap := f.svc.Snapshot()
	assert.Equal(t, domainauth.StateAuthenticated, snap.State)
	assert.False(t, snap.FirstLogin)
	assert.Equal(t, "/dashboard/teacher", snap.Destination)
	assert.Equal(t, setsBefore, f.profiles.SetCalls, "existing profile must not be rewritten")

	// Remember: durable tier with the remember flag set.
	rec, err := f.durable.Session(ctx, testContextID)
	require.NoError(t, err)
	assert.Equal(t, domainauth.TierDurable, rec.Tier)
	assert.True(t, rec.Remember)
	remembered, err := f.sessions.Remembered(ctx, testContextID)
	require.NoError(t, err)
	assert.True(t, remembered)
}

func TestSignInBadPasswordStaysGeneric(t *testing.T) {
	f := newAuthFixture(t, domainauth.PathRoot)
	identity := f.seedTeacher(t)
	ctx := t.Context()

	err := f.svc.SignIn(ctx, SignInInput{Email: identity.Email, Password: "wrong"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCredential(err))
	assert.EqualError(t, err, "invalid email or password")

	// No session was established anywhere.
	_, err = f.sessions.Active(ctx, testContextID)
	assert.ErrorIs(t, err, ports.ErrNoSession)
}

func TestSignInBadPasswordPreservesExistingSession(t *testing.T) {
	f := newAuthFixture(t, domainauth.PathRoot)
	identity := f.seedTeacher(t)
	ctx := t.Context()
	require.NoError(t, f.svc.SignIn(ctx, SignInInput{Email: identity.Email, Password: "correct-horse", Remember: true}))

	err := f.svc.SignIn(ctx, SignInInput{Email: identity.Email, Password: "wrong"})
	require.Error(t, err)

	// A failed attempt must not tear down the session already in place.
	rec, err := f.sessions.Active(ctx, testContextID)
	require.NoError(t, err)
	assert.Equal(t, domainauth.TierDurable, rec.Tier)
	assert.Equal(t, identity.ID, rec.IdentityID)
	_, err = f.sessions.Token(ctx, testContextID)
	require.NoError(t, err)
}

func TestSignInSynthesizesMissingProfile(t *testing.T) {
	f := newAuthFixture(t, domainauth.PathRoot)
	identity := domainauth.Identity{ID: "id-9", Email: "principal@school.org"}
	f.creds.Seed(identity, "correct-horse")

	err := f.svc.SignIn(t.Context(), SignInInput{
		Email:    identity.Email,
		Password: "correct-horse",
	})
	require.NoError(t, err)

	snap := f.svc.Snapshot()
	assert.True(t, snap.FirstLogin)
	require.NotNil(t, snap.Profile)
	assert.Equal(t, domainauth.RoleSuperAdmin, snap.Profile.Role)
	assert.True(t, snap.Profile.Active)
	assert.Equal(t, "/dashboard/admin", snap.Destination)

	stored, err := f.profiles.Get(t.Context(), identity.ID)
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleSuperAdmin, stored.Role)
}

func TestSignInNoRoleLandsInHoldingState(t *testing.T) {
	f := newAuthFixture(t, domainauth.PathRoot)
	identity := domainauth.Identity{ID: "id-2", Email: "pat@school.org"}
	f.creds.Seed(identity, "correct-horse")
	require.NoError(t, f.profiles.Set(t.Context(), domainauth.Profile{
		ID:     identity.ID,
		Email:  identity.Email,
		Role:   domainauth.RoleNone,
		Active: true,
	}, false))

	err := f.svc.SignIn(t.Context(), SignInInput{Email: identity.Email, Password: "correct-horse"})
	require.NoError(t, err)

	snap := f.svc.Snapshot()
	assert.Equal(t, domainauth.StateNoRole, snap.State)
	assert.Equal(t, domainauth.PathUnauthorized, snap.Destination)
}

func TestSignInWipesStaleSessions(t *testing.T) {
	f := newAuthFixture(t, domainauth.PathRoot)
	identity := f.seedTeacher(t)
	ctx := t.Context()

	// A stale durable session from a previous remembered login.
	require.NoError(t, f.durable.SaveSession(ctx, record(testContextID, domainauth.TierDurable, true, f.clock.Now())))
	require.NoError(t, f.durable.SaveToken(ctx, testContextID, "stale-token"))

	err := f.svc.SignIn(ctx, SignInInput{Email: identity.Email, Password: "correct-horse", Remember: false})
	require.NoError(t, err)

	// The stale durable session is gone; only the ephemeral one remains.
	_, err = f.durable.Session(ctx, testContextID)
	assert.ErrorIs(t, err, ports.ErrNoSession)
	rec, err := f.sessions.Active(ctx, testContextID)
	require.NoError(t, err)
	assert.Equal(t, domainauth.TierEphemeral, rec.Tier)
}

func TestSignOut(t *testing.T) {
	f := newAuthFixture(t, domainauth.PathRoot)
	identity := f.seedTeacher(t)
	ctx := t.Context()
	require.NoError(t, f.svc.SignIn(ctx, SignInInput{Email: identity.Email, Password: "correct-horse", Remember: true}))

	require.NoError(t, f.svc.SignOut(ctx))

	snap := f.svc.Snapshot()
	assert.Equal(t, domainauth.StateUnauthenticated, snap.State)
	assert.Equal(t, domainauth.PathLogin, snap.Destination)
	assert.Equal(t, []string{identity.ID}, f.creds.InvalidateCalls)
	_, err := f.sessions.Active(ctx, testContextID)
	assert.ErrorIs(t, err, ports.ErrNoSession)
}

func TestSignOutWithoutSessionIsQuiet(t *testing.T) {
	f := newAuthFixture(t, domainauth.PathRoot)

	require.NoError(t, f.svc.SignOut(t.Context()))
	assert.Empty(t, f.creds.InvalidateCalls)
	assert.Equal(t, domainauth.StateUnauthenticated, f.svc.Snapshot().State)
}

func TestSignOutDropsSnapshotBeforeInvalidation(t *testing.T) {
	f := newAuthFixture(t, domainauth.PathRoot)
	identity := f.seedTeacher(t)
	ctx := t.Context()
	require.NoError(t, f.svc.SignIn(ctx, SignInInput{Email: identity.Email, Password: "correct-horse"}))

	var stateDuringInvalidate domainauth.State
	f.creds.InvalidateFunc = func(ctx context.Context, identityID string) error {
		stateDuringInvalidate = f.svc.Snapshot().State
		return nil
	}

	require.NoError(t, f.svc.SignOut(ctx))

	// Anyone reading the snapshot mid-teardown already sees a signed-out
	// state; the login destination arrives only once teardown is done.
	assert.Equal(t, domainauth.StateUnauthenticated, stateDuringInvalidate)
	snap := f.svc.Snapshot()
	assert.Equal(t, domainauth.StateUnauthenticated, snap.State)
	assert.Equal(t, domainauth.PathLogin, snap.Destination)
}

func TestSignOutSwallowsRemoteFailure(t *testing.T) {
	f := newAuthFixture(t, domainauth.PathRoot)
	identity := f.seedTeacher(t)
	ctx := t.Context()
	require.NoError(t, f.svc.SignIn(ctx, SignInInput{Email: identity.Email, Password: "correct-horse"}))

	f.creds.InvalidateFunc = func(ctx context.Context, identityID string) error {
		return apperrors.Credential("provider unreachable", nil)
	}

	require.NoError(t, f.svc.SignOut(ctx))
	assert.Equal(t, domainauth.StateUnauthenticated, f.svc.Snapshot().State)
	_, err := f.sessions.Active(ctx, testContextID)
	assert.ErrorIs(t, err, ports.ErrNoSession)
}

func TestConcurrentOperationsConflict(t *testing.T) {
	f := newAuthFixture(t, domainauth.PathRoot)
	identity := f.seedTeacher(t)
	ctx := t.Context()

	entered := make(chan struct{})
	release := make(chan struct{})
	f.creds.AuthenticateFunc = func(ctx context.Context, email, password string) (domainauth.Identity, error) {
		close(entered)
		<-release
		return identity, nil
	}

	signInDone := make(chan error, 1)
	go func() {
		signInDone <- f.svc.SignIn(ctx, SignInInput{Email: identity.Email, Password: "correct-horse"})
	}()
	<-entered

	assert.True(t, f.svc.Busy())
	err := f.svc.SignUp(ctx, SignUpInput{Email: "other@school.org", Password: "correct-horse"})
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))

	close(release)
	require.NoError(t, <-signInDone)
	assert.False(t, f.svc.Busy())
}

func TestResetPasswordUniformOutcome(t *testing.T) {
	f := newAuthFixture(t, domainauth.PathRoot)
	ctx := t.Context()

	require.NoError(t, f.svc.ResetPassword(ctx, "jane@school.org"))
	assert.Equal(t, []string{"jane@school.org"}, f.creds.ResetRequests)

	f.creds.SendPasswordResetFunc = func(ctx context.Context, email string) error {
		return apperrors.Credential("smtp down", nil)
	}
	err := f.svc.ResetPassword(ctx, "jane@school.org")
	require.Error(t, err)
	// The failure reason stays in the log; callers get a uniform message.
	assert.EqualError(t, err, "unable to send password reset email")
}

func TestRefreshTokenWithoutIdentity(t *testing.T) {
	f := newAuthFixture(t, domainauth.PathRoot)

	token, err := f.svc.RefreshToken(t.Context())
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestRefreshTokenStoresInActiveTier(t *testing.T) {
	f := newAuthFixture(t, domainauth.PathRoot)
	identity := f.seedTeacher(t)
	ctx := t.Context()
	require.NoError(t, f.svc.SignIn(ctx, SignInInput{Email: identity.Email, Password: "correct-horse"}))

	before, err := f.ephemeral.Token(ctx, testContextID)
	require.NoError(t, err)

	token, err := f.svc.RefreshToken(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.NotEqual(t, before, token, "forced refresh must mint a new token")

	stored, err := f.ephemeral.Token(ctx, testContextID)
	require.NoError(t, err)
	assert.Equal(t, token, stored)
}

func TestRefreshTokenLosesRaceToSignOut(t *testing.T) {
	f := newAuthFixture(t, domainauth.PathRoot)
	identity := f.seedTeacher(t)
	ctx := t.Context()
	require.NoError(t, f.svc.SignIn(ctx, SignInInput{Email: identity.Email, Password: "correct-horse"}))

	entered := make(chan struct{})
	release := make(chan struct{})
	f.creds.IssueTokenFunc = func(ctx context.Context, identityID string, forceRefresh bool) (string, error) {
		close(entered)
		<-release
		return "late-token", nil
	}

	refreshDone := make(chan struct{})
	var refreshed string
	var refreshErr error
	go func() {
		defer close(refreshDone)
		refreshed, refreshErr = f.svc.RefreshToken(ctx)
	}()
	<-entered

	require.NoError(t, f.svc.SignOut(ctx))
	close(release)
	<-refreshDone

	// Sign-out won: the late token was discarded, not stored.
	require.NoError(t, refreshErr)
	assert.Empty(t, refreshed)
	_, err := f.ephemeral.Token(ctx, testContextID)
	assert.ErrorIs(t, err, ports.ErrNoSession)
}

func TestBootWithoutSession(t *testing.T) {
	f := newAuthFixture(t, domainauth.PathRoot)

	f.startRun(t)

	snap := f.svc.Snapshot()
	assert.Equal(t, domainauth.StateUnauthenticated, snap.State)
	assert.Empty(t, snap.Destination)
}

// seedStoredSession plants a verifiable session directly in a tier, as a
// previous process run would have left it.
func (f *authFixture) seedStoredSession(t *testing.T, identity domainauth.Identity, tier domainauth.Tier) {
	t.Helper()
	ctx := t.Context()
	token, err := f.creds.IssueToken(ctx, identity.ID, false)
	require.NoError(t, err)
	store := f.durable
	if tier == domainauth.TierEphemeral {
		store = f.ephemeral
	}
	require.NoError(t, store.SaveSession(ctx, domainauth.SessionRecord{
		ContextID:  testContextID,
		IdentityID: identity.ID,
		Email:      identity.Email,
		LoginAt:    f.clock.Now(),
		Remember:   tier == domainauth.TierDurable,
		Tier:       tier,
	}))
	require.NoError(t, store.SaveToken(ctx, testContextID, token))
}

func TestBootRestoresStoredSession(t *testing.T) {
	f := newAuthFixture(t, domainauth.PathRoot)
	identity := f.seedTeacher(t)
	f.seedStoredSession(t, identity, domainauth.TierDurable)

	f.startRun(t)

	snap := f.svc.Snapshot()
	assert.Equal(t, domainauth.StateAuthenticated, snap.State)
	require.NotNil(t, snap.Identity)
	assert.Equal(t, identity.ID, snap.Identity.ID)
	// Booting from root gets the one-time role redirect.
	assert.Equal(t, "/dashboard/teacher", snap.Destination)
}

func TestBootDeepLinkKeepsLocation(t *testing.T) {
	f := newAuthFixture(t, "/reports/term")
	identity := f.seedTeacher(t)
	f.seedStoredSession(t, identity, domainauth.TierDurable)

	f.startRun(t)

	snap := f.svc.Snapshot()
	assert.Equal(t, domainauth.StateAuthenticated, snap.State)
	assert.Empty(t, snap.Destination, "deep links survive a restart")
}

func TestBootInvalidTokenTearsDownLocally(t *testing.T) {
	f := newAuthFixture(t, domainauth.PathRoot)
	identity := f.seedTeacher(t)
	f.seedStoredSession(t, identity, domainauth.TierDurable)
	require.NoError(t, f.durable.SaveToken(t.Context(), testContextID, "tampered"))

	f.startRun(t)

	snap := f.svc.Snapshot()
	assert.Equal(t, domainauth.StateUnauthenticated, snap.State)
	_, err := f.sessions.Active(t.Context(), testContextID)
	assert.ErrorIs(t, err, ports.ErrNoSession)
	// A token that fails verification is a local problem, not a revocation.
	assert.Empty(t, f.creds.InvalidateCalls)
}

func TestBootMissingProfileForcesSignOut(t *testing.T) {
	f := newAuthFixture(t, domainauth.PathRoot)
	identity := domainauth.Identity{ID: "id-3", Email: "ghost@school.org"}
	f.creds.Seed(identity, "correct-horse")
	f.seedStoredSession(t, identity, domainauth.TierDurable)

	f.startRun(t)

	snap := f.svc.Snapshot()
	assert.Equal(t, domainauth.StateUnauthenticated, snap.State)
	assert.Equal(t, domainauth.PathLogin, snap.Destination)
	// Boot never synthesizes: the orphaned identity is revoked instead.
	assert.Equal(t, []string{identity.ID}, f.creds.InvalidateCalls)
}

// logCapture records every slog entry the service writes.
type logCapture struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *logCapture) Enabled(context.Context, slog.Level) bool { return true }

func (h *logCapture) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *logCapture) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *logCapture) WithGroup(string) slog.Handler      { return h }

// loggedErrors collects every error attribute across the captured records.
func (h *logCapture) loggedErrors() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var errs []error
	for _, r := range h.records {
		r.Attrs(func(a slog.Attr) bool {
			if err, ok := a.Value.Any().(error); ok {
				errs = append(errs, err)
			}
			return true
		})
	}
	return errs
}

func TestBootMissingProfileClassifiedAsInconsistency(t *testing.T) {
	f := newAuthFixture(t, domainauth.PathRoot)
	capture := &logCapture{}
	svc, err := NewAuthService(AuthServiceOptions{
		Credentials:     f.creds,
		Profiles:        f.profiles,
		Sessions:        f.sessions,
		ContextID:       testContextID,
		BootPath:        domainauth.PathRoot,
		RefreshInterval: time.Hour,
		Logger:          slog.New(capture),
		Now:             f.clock.Now,
	})
	require.NoError(t, err)
	f.svc = svc

	identity := domainauth.Identity{ID: "id-3", Email: "ghost@school.org"}
	f.creds.Seed(identity, "correct-horse")
	f.seedStoredSession(t, identity, domainauth.TierDurable)

	f.startRun(t)

	found := false
	for _, logged := range capture.loggedErrors() {
		if apperrors.IsProfileInconsistency(logged) {
			found = true
		}
	}
	assert.True(t, found, "the forced sign-out must be classified as a profile inconsistency")
}

func TestBootExpiredSession(t *testing.T) {
	f := newAuthFixture(t, domainauth.PathRoot)
	identity := f.seedTeacher(t)
	f.seedStoredSession(t, identity, domainauth.TierEphemeral)
	f.clock.Advance(2 * time.Hour)

	f.startRun(t)

	assert.Equal(t, domainauth.StateUnauthenticated, f.svc.Snapshot().State)
}

func TestBootExpiredSessionLeavesNoKeyInEitherTier(t *testing.T) {
	f := newAuthFixture(t, domainauth.PathRoot)
	identity := f.seedTeacher(t)
	ctx := t.Context()
	f.seedStoredSession(t, identity, domainauth.TierDurable)
	require.NoError(t, f.durable.SetRemember(ctx, testContextID))
	// A token orphaned in the other tier by an earlier unremembered login.
	require.NoError(t, f.ephemeral.SaveToken(ctx, testContextID, "stray-token"))
	f.clock.Advance(30 * time.Hour)

	f.startRun(t)

	assert.Equal(t, domainauth.StateUnauthenticated, f.svc.Snapshot().State)
	assert.True(t, f.durable.Empty(testContextID))
	assert.True(t, f.ephemeral.Empty(testContextID))
}

func TestOutOfBandInvalidationSignsOutLocally(t *testing.T) {
	f := newAuthFixture(t, domainauth.PathRoot)
	identity := f.seedTeacher(t)
	f.seedStoredSession(t, identity, domainauth.TierDurable)

	updates := f.startRun(t)
	require.Equal(t, domainauth.StateAuthenticated, f.svc.Snapshot().State)

	f.creds.EmitChange(ports.IdentityChange{ContextID: testContextID, Identity: nil})

	snap := waitSnapshot(t, updates)
	assert.Equal(t, domainauth.StateUnauthenticated, snap.State)
	assert.Equal(t, domainauth.PathLogin, snap.Destination)
	_, err := f.sessions.Active(t.Context(), testContextID)
	assert.ErrorIs(t, err, ports.ErrNoSession)
}

func TestOutOfBandInvalidationWhileSignedOutIsIgnored(t *testing.T) {
	f := newAuthFixture(t, domainauth.PathRoot)
	updates := f.startRun(t)
	require.Equal(t, domainauth.StateUnauthenticated, f.svc.Snapshot().State)

	f.creds.EmitChange(ports.IdentityChange{Identity: nil})

	select {
	case snap := <-updates:
		t.Fatalf("unexpected snapshot: %+v", snap)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestOutOfBandIdentityUpdateKeepsLocation(t *testing.T) {
	f := newAuthFixture(t, domainauth.PathRoot)
	identity := f.seedTeacher(t)
	f.seedStoredSession(t, identity, domainauth.TierDurable)

	updates := f.startRun(t)

	// The profile's role changed elsewhere; the feed re-announces the identity.
	require.NoError(t, f.profiles.Set(t.Context(), domainauth.Profile{
		ID:     identity.ID,
		Email:  identity.Email,
		Role:   domainauth.RoleSuperAdmin,
		Active: true,
	}, false))
	f.creds.EmitChange(ports.IdentityChange{ContextID: testContextID, Identity: &identity})

	snap := waitSnapshot(t, updates)
	assert.Equal(t, domainauth.StateAuthenticated, snap.State)
	require.NotNil(t, snap.Profile)
	assert.Equal(t, domainauth.RoleSuperAdmin, snap.Profile.Role)
	assert.Empty(t, snap.Destination, "out-of-band changes never navigate")
}

func TestSubscribeDeliversTransitions(t *testing.T) {
	f := newAuthFixture(t, domainauth.PathRoot)
	identity := f.seedTeacher(t)
	updates, cancel := f.svc.Subscribe()
	defer cancel()

	require.NoError(t, f.svc.SignIn(t.Context(), SignInInput{Email: identity.Email, Password: "correct-horse"}))

	snap := waitSnapshot(t, updates)
	assert.Equal(t, domainauth.StateAuthenticated, snap.State)

	cancel()
	_, open := <-updates
	assert.False(t, open)
}
