package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domainauth "github.com/edumanage/edumanage/internal/domain/auth"
	"github.com/edumanage/edumanage/internal/ports"
)

// SessionManagerOptions groups dependencies for SessionManager.
type SessionManagerOptions struct {
	Durable   ports.SessionStore
	Ephemeral ports.SessionStore
	Logger    *slog.Logger
	Now       func() time.Time
}

// SessionManager coordinates the two persistence tiers. Exactly one tier
// holds a session per context; the durable tier wins when both are probed.
// The active tier is carried in the session record itself, never inferred.
type SessionManager struct {
	durable   ports.SessionStore
	ephemeral ports.SessionStore
	log       *slog.Logger
	now       func() time.Time
}

// NewSessionManager constructs a SessionManager. Both tiers are required and
// must report the tier they were registered under.
func NewSessionManager(opts SessionManagerOptions) (*SessionManager, error) {
	if opts.Durable == nil || opts.Ephemeral == nil {
		return nil, errors.New("both session tiers are required")
	}
	if opts.Durable.Tier() != domainauth.TierDurable {
		return nil, fmt.Errorf("durable slot holds a %s store", opts.Durable.Tier())
	}
	if opts.Ephemeral.Tier() != domainauth.TierEphemeral {
		return nil, fmt.Errorf("ephemeral slot holds a %s store", opts.Ephemeral.Tier())
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SessionManager{
		durable:   opts.Durable,
		ephemeral: opts.Ephemeral,
		log:       opts.Logger.With("component", "sessions"),
		now:       opts.Now,
	}, nil
}

// Select returns the tier for a new session. Remember-me selects the durable
// tier; the choice happens before any credential call so a slow credential
// store can never flip it mid-flight.
func (m *SessionManager) Select(remember bool) ports.SessionStore {
	if remember {
		return m.durable
	}
	return m.ephemeral
}

// InitializeCleanSession inspects the stored session and decides whether it
// can be trusted. A record within its tier's age ceiling whose token is
// present is left intact and reported usable. Any other finding wipes every
// session key from both tiers, so no partial state survives into the boot
// resolution that follows.
func (m *SessionManager) InitializeCleanSession(ctx context.Context, contextID string) (bool, error) {
	rec, err := m.Active(ctx, contextID)
	if err != nil {
		if errors.Is(err, ports.ErrNoSession) {
			return false, m.ClearAll(ctx, contextID)
		}
		return false, fmt.Errorf("inspect session: %w", err)
	}
	if _, err := m.storeFor(rec.Tier).Token(ctx, contextID); err != nil {
		if !errors.Is(err, ports.ErrNoSession) {
			return false, fmt.Errorf("inspect token: %w", err)
		}
		m.log.InfoContext(ctx, "session record has no token, clearing", "tier", rec.Tier)
		return false, m.ClearAll(ctx, contextID)
	}
	return true, nil
}

// Establish persists the record and token in the record's tier and, for
// remembered durable sessions, sets the remember flag.
func (m *SessionManager) Establish(ctx context.Context, rec domainauth.SessionRecord, token string) error {
	store := m.storeFor(rec.Tier)
	if err := store.SaveSession(ctx, rec); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if err := store.SaveToken(ctx, rec.ContextID, token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	if rec.Remember && rec.Tier == domainauth.TierDurable {
		if err := store.SetRemember(ctx, rec.ContextID); err != nil {
			return fmt.Errorf("set remember flag: %w", err)
		}
	}
	return nil
}

// Active returns the context's live session record. Durable is probed first.
// An expired record invalidates the whole context: both tiers are wiped on
// sight, never just the tier the record was found in, so a stray token in
// the other tier cannot resurrect the session.
func (m *SessionManager) Active(ctx context.Context, contextID string) (domainauth.SessionRecord, error) {
	now := m.now()
	for _, store := range []ports.SessionStore{m.durable, m.ephemeral} {
		rec, err := store.Session(ctx, contextID)
		if err != nil {
			if errors.Is(err, ports.ErrNoSession) {
				continue
			}
			return domainauth.SessionRecord{}, fmt.Errorf("read session: %w", err)
		}
		if rec.Expired(now) {
			m.log.InfoContext(ctx, "session past age ceiling, clearing both tiers",
				"tier", rec.Tier, "age", rec.Age(now).String())
			if clearErr := m.ClearAll(ctx, contextID); clearErr != nil {
				m.log.WarnContext(ctx, "clearing expired session failed", "error", clearErr)
			}
			return domainauth.SessionRecord{}, ports.ErrNoSession
		}
		return rec, nil
	}
	return domainauth.SessionRecord{}, ports.ErrNoSession
}

// Token returns the stored token from the tier holding the active session.
func (m *SessionManager) Token(ctx context.Context, contextID string) (string, error) {
	rec, err := m.Active(ctx, contextID)
	if err != nil {
		return "", err
	}
	return m.storeFor(rec.Tier).Token(ctx, contextID)
}

// SaveToken overwrites the token in whichever tier holds the active session.
// The other tier is never written.
func (m *SessionManager) SaveToken(ctx context.Context, contextID, token string) error {
	rec, err := m.Active(ctx, contextID)
	if err != nil {
		return err
	}
	return m.storeFor(rec.Tier).SaveToken(ctx, contextID, token)
}

// Remembered reports whether the durable tier carries the remember flag for
// the context.
func (m *SessionManager) Remembered(ctx context.Context, contextID string) (bool, error) {
	return m.durable.Remember(ctx, contextID)
}

// ClearAll removes every session key from both tiers. Failures are joined so
// a broken tier never shields the other from cleanup.
func (m *SessionManager) ClearAll(ctx context.Context, contextID string) error {
	var errs []error
	if err := m.durable.Clear(ctx, contextID); err != nil {
		errs = append(errs, fmt.Errorf("clear durable tier: %w", err))
	}
	if err := m.ephemeral.Clear(ctx, contextID); err != nil {
		errs = append(errs, fmt.Errorf("clear ephemeral tier: %w", err))
	}
	return errors.Join(errs...)
}

func (m *SessionManager) storeFor(tier domainauth.Tier) ports.SessionStore {
	if tier == domainauth.TierDurable {
		return m.durable
	}
	return m.ephemeral
}
