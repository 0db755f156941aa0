package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"fmt"
	"strings"
	"sync"

	domainauth "github.com/edumanage/edumanage/internal/domain/auth"
	apperrors "github.com/edumanage/edumanage/internal/errors"
	"github.com/edumanage/edumanage/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.CredentialStore = (*MockCredentialStore)(nil)
	_ ports.ProfileStore    = (*MemoryProfileStore)(nil)
	_ ports.Mailer          = (*MockMailer)(nil)
)

// MockCredentialStore simulates a credential store with an in-memory account
// table and deterministic tokens. Individual methods can be overridden with
// the *Func fields.
type MockCredentialStore struct {
	CreateIdentityFunc        func(ctx context.Context, in ports.CreateIdentityInput) (domainauth.Identity, error)
	AuthenticateFunc          func(ctx context.Context, email, password string) (domainauth.Identity, error)
	IssueTokenFunc            func(ctx context.Context, identityID string, forceRefresh bool) (string, error)
	VerifyTokenFunc           func(ctx context.Context, token string) (domainauth.Identity, error)
	InvalidateFunc            func(ctx context.Context, identityID string) error
	SendPasswordResetFunc     func(ctx context.Context, email string) error
	CompletePasswordResetFunc func(ctx context.Context, token, newPassword string) error

	mu         sync.Mutex
	identities map[string]domainauth.Identity
	passwords  map[string]string
	idsByEmail map[string]string
	tokens     map[string]string
	seq        int

	// ResetRequests records emails passed to SendPasswordReset.
	ResetRequests []string
	// InvalidateCalls records identity ids passed to Invalidate.
	InvalidateCalls []string

	subs   map[int]chan ports.IdentityChange
	nextID int
}

// NewMockCredentialStore creates an empty MockCredentialStore.
func NewMockCredentialStore() *MockCredentialStore {
	return &MockCredentialStore{
		identities: make(map[string]domainauth.Identity),
		passwords:  make(map[string]string),
		idsByEmail: make(map[string]string),
		tokens:     make(map[string]string),
		subs:       make(map[int]chan ports.IdentityChange),
	}
}

// Seed registers an identity with a password.
func (m *MockCredentialStore) Seed(identity domainauth.Identity, password string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identities[identity.ID] = identity
	m.idsByEmail[identity.Email] = identity.ID
	m.passwords[identity.Email] = password
}

func (m *MockCredentialStore) CreateIdentity(ctx context.Context, in ports.CreateIdentityInput) (domainauth.Identity, error) {
	if m.CreateIdentityFunc != nil {
		return m.CreateIdentityFunc(ctx, in)
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.idsByEmail[email]; exists {
		return domainauth.Identity{}, apperrors.Credential("email address is already in use", nil)
	}
	m.seq++
	identity := domainauth.Identity{
		ID:          fmt.Sprintf("mock-id-%d", m.seq),
		Email:       email,
		DisplayName: in.DisplayName,
	}
	m.identities[identity.ID] = identity
	m.idsByEmail[email] = identity.ID
	m.passwords[email] = in.Password
	return identity, nil
}

func (m *MockCredentialStore) Authenticate(ctx context.Context, email, password string) (domainauth.Identity, error) {
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, email, password)
	}
	email = strings.ToLower(strings.TrimSpace(email))
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.idsByEmail[email]
	if !ok || m.passwords[email] != password {
		return domainauth.Identity{}, apperrors.Credential("invalid email or password", nil)
	}
	identity := m.identities[id]
	if identity.Disabled {
		return domainauth.Identity{}, apperrors.Credential("invalid email or password", nil)
	}
	return identity, nil
}

func (m *MockCredentialStore) IssueToken(ctx context.Context, identityID string, forceRefresh bool) (string, error) {
	if m.IssueTokenFunc != nil {
		return m.IssueTokenFunc(ctx, identityID, forceRefresh)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.identities[identityID]; !ok {
		return "", apperrors.Credential("unknown identity", nil)
	}
	if !forceRefresh {
		for token, id := range m.tokens {
			if id == identityID {
				return token, nil
			}
		}
	}
	m.seq++
	token := fmt.Sprintf("token-%s-%d", identityID, m.seq)
	m.tokens[token] = identityID
	return token, nil
}

func (m *MockCredentialStore) VerifyToken(ctx context.Context, token string) (domainauth.Identity, error) {
	if m.VerifyTokenFunc != nil {
		return m.VerifyTokenFunc(ctx, token)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.tokens[token]
	if !ok {
		return domainauth.Identity{}, apperrors.Credential("invalid or expired token", nil)
	}
	return m.identities[id], nil
}

func (m *MockCredentialStore) Invalidate(ctx context.Context, identityID string) error {
	if m.InvalidateFunc != nil {
		return m.InvalidateFunc(ctx, identityID)
	}
	m.mu.Lock()
	m.InvalidateCalls = append(m.InvalidateCalls, identityID)
	for token, id := range m.tokens {
		if id == identityID {
			delete(m.tokens, token)
		}
	}
	m.mu.Unlock()
	m.EmitChange(ports.IdentityChange{Identity: nil})
	return nil
}

func (m *MockCredentialStore) SendPasswordReset(ctx context.Context, email string) error {
	if m.SendPasswordResetFunc != nil {
		return m.SendPasswordResetFunc(ctx, email)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResetRequests = append(m.ResetRequests, email)
	return nil
}

func (m *MockCredentialStore) CompletePasswordReset(ctx context.Context, token, newPassword string) error {
	if m.CompletePasswordResetFunc != nil {
		return m.CompletePasswordResetFunc(ctx, token, newPassword)
	}
	return nil
}

func (m *MockCredentialStore) SubscribeIdentityChanges() (<-chan ports.IdentityChange, func()) {
	ch := make(chan ports.IdentityChange, 8)
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = ch
	m.mu.Unlock()
	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if sub, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// EmitChange delivers a change to every subscriber. Tests use it to simulate
// out-of-band credential events.
func (m *MockCredentialStore) EmitChange(change ports.IdentityChange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- change:
		default:
		}
	}
}

// MemoryProfileStore is an in-memory ports.ProfileStore.
type MemoryProfileStore struct {
	GetFunc func(ctx context.Context, id string) (domainauth.Profile, error)
	SetFunc func(ctx context.Context, profile domainauth.Profile, merge bool) error

	mu       sync.Mutex
	profiles map[string]domainauth.Profile
	// SetCalls counts writes, letting tests assert synthesis happened once.
	SetCalls int
}

// NewMemoryProfileStore creates an empty MemoryProfileStore.
func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{profiles: make(map[string]domainauth.Profile)}
}

func (m *MemoryProfileStore) Get(ctx context.Context, id string) (domainauth.Profile, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return domainauth.Profile{}, apperrors.NotFound("profile not found")
	}
	return p, nil
}

func (m *MemoryProfileStore) Set(ctx context.Context, profile domainauth.Profile, merge bool) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, profile, merge)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetCalls++
	if merge {
		if existing, ok := m.profiles[profile.ID]; ok {
			profile = overlay(existing, profile)
		}
	}
	m.profiles[profile.ID] = profile
	return nil
}

func (m *MemoryProfileStore) QueryByEmail(ctx context.Context, email string) ([]domainauth.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domainauth.Profile
	for _, p := range m.profiles {
		if p.Email == email {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemoryProfileStore) List(ctx context.Context, q ports.ProfileQuery) ([]domainauth.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domainauth.Profile
	for _, p := range m.profiles {
		if q.Role != "" && p.Role != q.Role {
			continue
		}
		if q.Active != nil && p.Active != *q.Active {
			continue
		}
		if q.Search != "" {
			needle := strings.ToLower(q.Search)
			hay := strings.ToLower(p.Email + " " + p.FirstName + " " + p.LastName)
			if !strings.Contains(hay, needle) {
				continue
			}
		}
		out = append(out, p)
	}
	return out, nil
}

func overlay(dst, src domainauth.Profile) domainauth.Profile {
	if src.Email != "" {
		dst.Email = src.Email
	}
	if src.Role != "" {
		dst.Role = src.Role
	}
	if src.FirstName != "" {
		dst.FirstName = src.FirstName
	}
	if src.LastName != "" {
		dst.LastName = src.LastName
	}
	if src.EmployeeID != "" {
		dst.EmployeeID = src.EmployeeID
	}
	if src.StudentID != "" {
		dst.StudentID = src.StudentID
	}
	if src.Department != "" {
		dst.Department = src.Department
	}
	if len(src.Subjects) > 0 {
		dst.Subjects = src.Subjects
	}
	if src.Grade != "" {
		dst.Grade = src.Grade
	}
	if src.Section != "" {
		dst.Section = src.Section
	}
	if src.ParentContact != "" {
		dst.ParentContact = src.ParentContact
	}
	if src.Active {
		dst.Active = true
	}
	return dst
}

// MockMailer records password reset deliveries.
type MockMailer struct {
	SendPasswordResetFunc func(ctx context.Context, to, token string) error

	mu    sync.Mutex
	Sends []string
}

func (m *MockMailer) SendPasswordReset(ctx context.Context, to, token string) error {
	if m.SendPasswordResetFunc != nil {
		return m.SendPasswordResetFunc(ctx, to, token)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sends = append(m.Sends, to)
	return nil
}
