package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	domainauth "github.com/edumanage/edumanage/internal/domain/auth"
	apperrors "github.com/edumanage/edumanage/internal/errors"
	"github.com/edumanage/edumanage/internal/ports"
)

// DefaultRefreshInterval is how often the active token is re-minted.
const DefaultRefreshInterval = 50 * time.Minute

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Credentials ports.CredentialStore
	Profiles    ports.ProfileStore
	Sessions    *SessionManager
	// ContextID names the browser context this service instance manages.
	ContextID string
	// BootPath is the location at startup; it decides whether boot-time
	// resolution may emit its one-time redirect.
	BootPath        string
	RefreshInterval time.Duration
	Logger          *slog.Logger
	Now             func() time.Time
}

// AuthService owns the auth state machine. It starts in the loading state,
// resolves exactly once at boot, and afterwards moves between authenticated,
// authenticated-without-role, and unauthenticated. Every transition hands
// subscribers a fresh immutable snapshot.
type AuthService struct {
	creds        ports.CredentialStore
	profiles     ports.ProfileStore
	sessions     *SessionManager
	contextID    string
	bootPath     string
	refreshEvery time.Duration
	log          *slog.Logger
	now          func() time.Time

	mu   sync.Mutex
	snap domainauth.Snapshot
	busy bool
	// generation increments on every sign-out. An in-flight refresh compares
	// generations before storing its token, so sign-out always wins the race.
	generation uint64
	subs       map[int]chan domainauth.Snapshot
	nextSub    int
}

// NewAuthService constructs an AuthService.
func NewAuthService(opts AuthServiceOptions) (*AuthService, error) {
	if opts.Credentials == nil {
		return nil, errors.New("credential store is required")
	}
	if opts.Profiles == nil {
		return nil, errors.New("profile store is required")
	}
	if opts.Sessions == nil {
		return nil, errors.New("session manager is required")
	}
	if opts.ContextID == "" {
		return nil, errors.New("context ID is required")
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &AuthService{
		creds:        opts.Credentials,
		profiles:     opts.Profiles,
		sessions:     opts.Sessions,
		contextID:    opts.ContextID,
		bootPath:     opts.BootPath,
		refreshEvery: opts.RefreshInterval,
		log:          opts.Logger.With("component", "auth"),
		now:          opts.Now,
		snap:         domainauth.Snapshot{State: domainauth.StateLoading},
		subs:         make(map[int]chan domainauth.Snapshot),
	}, nil
}

// ContextID returns the browser context this service manages.
func (s *AuthService) ContextID() string { return s.contextID }

// Snapshot returns the current state snapshot.
func (s *AuthService) Snapshot() domainauth.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Busy reports whether an auth operation is in flight.
func (s *AuthService) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Subscribe registers for snapshot updates. The cancel function releases the
// subscription and closes the channel.
func (s *AuthService) Subscribe() (<-chan domainauth.Snapshot, func()) {
	ch := make(chan domainauth.Snapshot, 8)
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
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

// SignUpInput carries inputs for SignUp. The role and the role-specific
// fields are stored verbatim; the email heuristic never runs on sign-up.
type SignUpInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      domainauth.Role

	EmployeeID    string
	StudentID     string
	Department    string
	Subjects      []string
	Grade         string
	Section       string
	ParentContact string

	Remember bool
}

// SignUp creates an identity, writes its profile with the caller's role and
// fields as given, and establishes a session in the tier picked up front.
// Identity creation failures surface with their specific reasons; the caller
// asked for the account, so there is nothing to hide.
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) error {
	if err := s.beginOp(); err != nil {
		return err
	}
	defer s.endOp()

	role := in.Role
	if role == "" {
		role = domainauth.RoleNone
	}
	if !role.Valid() {
		return apperrors.ValidationField("role", fmt.Sprintf("unknown role %q", in.Role))
	}

	tier := tierFor(in.Remember)
	identity, err := s.creds.CreateIdentity(ctx, ports.CreateIdentityInput{
		Email:       in.Email,
		Password:    in.Password,
		DisplayName: joinName(in.FirstName, in.LastName),
	})
	if err != nil {
		// A rejected sign-up leaves any existing session untouched.
		return err
	}

	if err := s.sessions.ClearAll(ctx, s.contextID); err != nil {
		return fmt.Errorf("clear stale sessions: %w", err)
	}

	profile := domainauth.Profile{
		ID:            identity.ID,
		Email:         identity.Email,
		Role:          role,
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		Active:        true,
		EmployeeID:    in.EmployeeID,
		StudentID:     in.StudentID,
		Department:    in.Department,
		Subjects:      in.Subjects,
		Grade:         in.Grade,
		Section:       in.Section,
		ParentContact: in.ParentContact,
	}
	if err := s.profiles.Set(ctx, profile, true); err != nil {
		// The identity exists but its profile does not. There is no rollback
		// path through the credential store, so the gap is surfaced as-is.
		return apperrors.OrphanedIdentity(identity.ID, err)
	}

	if err := s.establish(ctx, identity, profile, tier, in.Remember, true); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "sign-up complete", "identity_id", identity.ID, "role", profile.Role)
	return nil
}

// SignInInput carries inputs for SignIn.
type SignInInput struct {
	Email    string
	Password string
	Remember bool
}

// SignIn authenticates and establishes a session. The persistence tier is
// chosen from the remember flag before the credential call. Both tiers are
// wiped once the credentials check out, so stale state cannot survive into
// the new session while a failed attempt leaves any existing session alone.
// A missing profile is synthesized; sign-in is the flow where the system
// heals that gap.
func (s *AuthService) SignIn(ctx context.Context, in SignInInput) error {
	if err := s.beginOp(); err != nil {
		return err
	}
	defer s.endOp()

	tier := tierFor(in.Remember)
	identity, err := s.creds.Authenticate(ctx, in.Email, in.Password)
	if err != nil {
		// already generic; nothing here may reveal whether the account exists
		return err
	}

	if err := s.sessions.ClearAll(ctx, s.contextID); err != nil {
		return fmt.Errorf("clear stale sessions: %w", err)
	}

	profile, firstLogin, err := s.ensureProfile(ctx, identity)
	if err != nil {
		return err
	}

	if err := s.establish(ctx, identity, profile, tier, in.Remember, firstLogin); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "sign-in complete",
		"identity_id", identity.ID, "role", profile.Role, "tier", tier, "first_login", firstLogin)
	return nil
}

// SignOut tears the session down. Order is fixed: the snapshot drops to
// unauthenticated first so no reader observes an authenticated state during
// teardown, then stored state is cleared, then the credential session is
// invalidated remotely, and only then is the login redirect emitted. Remote
// failure is logged and swallowed; the user is signed out locally either way.
func (s *AuthService) SignOut(ctx context.Context) error {
	s.mu.Lock()
	s.generation++
	identity := s.snap.Identity
	s.mu.Unlock()

	s.setSnapshot(domainauth.Snapshot{State: domainauth.StateUnauthenticated})

	if err := s.sessions.ClearAll(ctx, s.contextID); err != nil {
		s.log.WarnContext(ctx, "clearing session state failed", "error", err)
	}
	if identity != nil {
		if err := s.creds.Invalidate(ctx, identity.ID); err != nil {
			s.log.WarnContext(ctx, "remote invalidation failed, local session already cleared",
				"identity_id", identity.ID, "error", err)
		}
	}
	s.setSnapshot(domainauth.Snapshot{
		State:       domainauth.StateUnauthenticated,
		Destination: domainauth.PathLogin,
	})
	return nil
}

// ResetPassword requests a reset message. The outcome message is uniform;
// failures land in the log, not in the caller's face.
func (s *AuthService) ResetPassword(ctx context.Context, email string) error {
	if err := s.creds.SendPasswordReset(ctx, email); err != nil {
		s.log.WarnContext(ctx, "password reset request failed", "error", err)
		return apperrors.Credential("unable to send password reset email", nil)
	}
	return nil
}

// CompletePasswordReset verifies the token and installs the new password.
func (s *AuthService) CompletePasswordReset(ctx context.Context, token, newPassword string) error {
	return s.creds.CompletePasswordReset(ctx, token, newPassword)
}

// RefreshToken force-mints a token for the active identity and stores it in
// whichever tier holds the session. With no active identity it returns empty
// without error. A sign-out during the mint wins: the fresh token is
// discarded unstored.
func (s *AuthService) RefreshToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.snap.Identity == nil {
		s.mu.Unlock()
		return "", nil
	}
	identityID := s.snap.Identity.ID
	gen := s.generation
	s.mu.Unlock()

	token, err := s.creds.IssueToken(ctx, identityID, true)
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}

	s.mu.Lock()
	stale := s.generation != gen || s.snap.Identity == nil || s.snap.Identity.ID != identityID
	s.mu.Unlock()
	if stale {
		s.log.InfoContext(ctx, "refresh lost race to sign-out, discarding token")
		return "", nil
	}

	if err := s.sessions.SaveToken(ctx, s.contextID, token); err != nil {
		if errors.Is(err, ports.ErrNoSession) {
			return "", nil
		}
		return "", fmt.Errorf("store refreshed token: %w", err)
	}
	return token, nil
}

// Run resolves the boot state, then serves identity-change notifications and
// the refresh ticker until the context ends. Subscription and ticker live
// and die together; there is never a second copy of either.
func (s *AuthService) Run(ctx context.Context) error {
	changes, cancel := s.creds.SubscribeIdentityChanges()
	defer cancel()

	s.resolveBoot(ctx)

	ticker := time.NewTicker(s.refreshEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case change, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			s.handleIdentityChange(ctx, change)
		case <-ticker.C:
			if _, err := s.RefreshToken(ctx); err != nil {
				s.log.WarnContext(ctx, "scheduled token refresh failed", "error", err)
			}
		}
	}
}

// resolveBoot restores a stored session if one verifies. It fails closed:
// a session whose token or profile cannot be confirmed is torn down, never
// half-trusted. The one-time role redirect fires only off the login page or
// root, so deep links survive a restart.
func (s *AuthService) resolveBoot(ctx context.Context) {
	usable, err := s.sessions.InitializeCleanSession(ctx, s.contextID)
	if err != nil {
		s.log.WarnContext(ctx, "inspecting stored session failed", "error", err)
		s.setSnapshot(domainauth.Snapshot{State: domainauth.StateUnauthenticated})
		return
	}
	if !usable {
		s.setSnapshot(domainauth.Snapshot{State: domainauth.StateUnauthenticated})
		return
	}

	rec, err := s.sessions.Active(ctx, s.contextID)
	if err != nil {
		if !errors.Is(err, ports.ErrNoSession) {
			s.log.WarnContext(ctx, "reading stored session failed", "error", err)
		}
		s.setSnapshot(domainauth.Snapshot{State: domainauth.StateUnauthenticated})
		return
	}

	token, err := s.sessions.Token(ctx, s.contextID)
	if err != nil {
		s.log.WarnContext(ctx, "stored session has no token, clearing", "error", err)
		s.teardownLocal(ctx)
		return
	}

	identity, err := s.creds.VerifyToken(ctx, token)
	if err != nil {
		s.log.InfoContext(ctx, "stored token did not verify, clearing", "error", err)
		s.teardownLocal(ctx)
		return
	}

	profile, err := s.profiles.Get(ctx, identity.ID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			// Unlike sign-in, boot never synthesizes a missing profile; the
			// identity is signed out instead.
			s.log.WarnContext(ctx, "identity has no profile at boot, forcing sign-out",
				"identity_id", identity.ID,
				"error", apperrors.ProfileInconsistency(identity.ID))
			s.forceSignOut(ctx, identity.ID)
			return
		}
		s.log.ErrorContext(ctx, "loading profile at boot failed", "error", err)
		s.setSnapshot(domainauth.Snapshot{State: domainauth.StateUnauthenticated})
		return
	}

	dest := ""
	if s.bootPath == domainauth.PathRoot || s.bootPath == domainauth.PathLogin {
		dest = domainauth.DashboardPath(profile.Role)
	}
	s.setSnapshot(domainauth.Snapshot{
		State:       stateFor(profile),
		Identity:    &identity,
		Profile:     &profile,
		Destination: dest,
	})
	s.log.InfoContext(ctx, "session restored",
		"identity_id", identity.ID, "role", profile.Role, "tier", rec.Tier)
}

func (s *AuthService) handleIdentityChange(ctx context.Context, change ports.IdentityChange) {
	if change.Identity == nil {
		s.mu.Lock()
		signedIn := s.snap.Identity != nil
		if signedIn {
			s.generation++
		}
		s.mu.Unlock()
		if !signedIn {
			return
		}
		s.log.InfoContext(ctx, "credential session ended out of band, signing out locally")
		if err := s.sessions.ClearAll(ctx, s.contextID); err != nil {
			s.log.WarnContext(ctx, "clearing session state failed", "error", err)
		}
		s.setSnapshot(domainauth.Snapshot{
			State:       domainauth.StateUnauthenticated,
			Destination: domainauth.PathLogin,
		})
		return
	}

	identity := *change.Identity
	profile, err := s.profiles.Get(ctx, identity.ID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			s.log.WarnContext(ctx, "identity change carries no profile, forcing sign-out",
				"identity_id", identity.ID,
				"error", apperrors.ProfileInconsistency(identity.ID))
			s.forceSignOut(ctx, identity.ID)
			return
		}
		s.log.ErrorContext(ctx, "loading profile after identity change failed", "error", err)
		return
	}
	// no destination: an out-of-band change never drags the user off their page
	s.setSnapshot(domainauth.Snapshot{
		State:    stateFor(profile),
		Identity: &identity,
		Profile:  &profile,
	})
}

// forceSignOut is the fail-closed path: clear local state, revoke the
// credential session, land on the login page.
func (s *AuthService) forceSignOut(ctx context.Context, identityID string) {
	if err := s.sessions.ClearAll(ctx, s.contextID); err != nil {
		s.log.WarnContext(ctx, "clearing session state failed", "error", err)
	}
	if err := s.creds.Invalidate(ctx, identityID); err != nil {
		s.log.WarnContext(ctx, "remote invalidation failed", "error", err)
	}
	s.mu.Lock()
	s.generation++
	s.mu.Unlock()
	s.setSnapshot(domainauth.Snapshot{
		State:       domainauth.StateUnauthenticated,
		Destination: domainauth.PathLogin,
	})
}

// teardownLocal clears both tiers and lands in the unauthenticated state
// without touching the credential store.
func (s *AuthService) teardownLocal(ctx context.Context) {
	if err := s.sessions.ClearAll(ctx, s.contextID); err != nil {
		s.log.WarnContext(ctx, "clearing session state failed", "error", err)
	}
	s.setSnapshot(domainauth.Snapshot{State: domainauth.StateUnauthenticated})
}

func (s *AuthService) establish(ctx context.Context, identity domainauth.Identity, profile domainauth.Profile, tier domainauth.Tier, remember, firstLogin bool) error {
	token, err := s.creds.IssueToken(ctx, identity.ID, false)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	rec := domainauth.SessionRecord{
		ContextID:  s.contextID,
		IdentityID: identity.ID,
		Email:      identity.Email,
		LoginAt:    s.now().UTC(),
		Remember:   remember,
		Tier:       tier,
	}
	if err := s.sessions.Establish(ctx, rec, token); err != nil {
		return fmt.Errorf("establish session: %w", err)
	}
	s.setSnapshot(domainauth.Snapshot{
		State:       stateFor(profile),
		Identity:    &identity,
		Profile:     &profile,
		FirstLogin:  firstLogin,
		Destination: domainauth.DashboardPath(profile.Role),
	})
	return nil
}

// ensureProfile loads the identity's profile, synthesizing one on first
// login. Synthesis goes through a merged write, so racing sign-ins converge
// on the same document instead of clobbering each other.
func (s *AuthService) ensureProfile(ctx context.Context, identity domainauth.Identity) (domainauth.Profile, bool, error) {
	profile, err := s.profiles.Get(ctx, identity.ID)
	if err == nil {
		return profile, false, nil
	}
	if !apperrors.IsNotFound(err) {
		return domainauth.Profile{}, false, fmt.Errorf("load profile: %w", err)
	}

	profile = domainauth.Profile{
		ID:     identity.ID,
		Email:  identity.Email,
		Role:   domainauth.ResolveRole(identity.Email),
		Active: true,
	}
	if err := s.profiles.Set(ctx, profile, true); err != nil {
		return domainauth.Profile{}, false, apperrors.OrphanedIdentity(identity.ID, err)
	}
	s.log.InfoContext(ctx, "profile synthesized on sign-in",
		"identity_id", identity.ID, "role", profile.Role)
	return profile, true, nil
}

func (s *AuthService) setSnapshot(snap domainauth.Snapshot) {
	s.mu.Lock()
	s.snap = snap
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
		}
	}
	s.mu.Unlock()
}

func (s *AuthService) beginOp() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return apperrors.Conflict("an authentication operation is already in progress")
	}
	s.busy = true
	return nil
}

func (s *AuthService) endOp() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

func stateFor(profile domainauth.Profile) domainauth.State {
	if profile.HasRole() {
		return domainauth.StateAuthenticated
	}
	return domainauth.StateNoRole
}

func tierFor(remember bool) domainauth.Tier {
	if remember {
		return domainauth.TierDurable
	}
	return domainauth.TierEphemeral
}

func joinName(first, last string) string {
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	}
	return last
}
