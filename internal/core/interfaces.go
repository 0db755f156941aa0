package core

import (
	"context"
	"time"

	domainauth "github.com/edumanage/edumanage/internal/domain/auth"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the adapter layer and data layer.
// Adapter implementations should depend on these interfaces, not concrete implementations.

// IdentityRecord is the persisted form of an identity. The password hash and
// token version never leave the credential store.
type IdentityRecord struct {
	Identity     domainauth.Identity
	PasswordHash []byte
	TokenVersion int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IdentityRepository defines the interface for identity data operations.
type IdentityRepository interface {
	Create(ctx context.Context, rec IdentityRecord) (IdentityRecord, error)
	GetByID(ctx context.Context, id string) (IdentityRecord, error)
	GetByEmail(ctx context.Context, email string) (IdentityRecord, error)
	UpdatePassword(ctx context.Context, id string, hash []byte) error
	SetDisabled(ctx context.Context, id string, disabled bool) error
	// BumpTokenVersion increments the identity's token version and returns
	// the new value. Tokens minted against older versions stop verifying.
	BumpTokenVersion(ctx context.Context, id string) (int, error)
}
