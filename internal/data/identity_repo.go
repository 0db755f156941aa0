package data

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edumanage/edumanage/internal/core"
	"github.com/edumanage/edumanage/internal/data/pgxutil"
	domainauth "github.com/edumanage/edumanage/internal/domain/auth"
	apperrors "github.com/edumanage/edumanage/internal/errors"
)

// IdentityRepo implements the core.IdentityRepository interface using PostgreSQL.
type IdentityRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewIdentityRepo creates a new IdentityRepo with the real time provider.
func NewIdentityRepo(db *sql.DB) *IdentityRepo {
	return &IdentityRepo{DB: db, timeProvider: RealTimeProvider{}}
}

// NewIdentityRepoWithTimeProvider creates a new IdentityRepo with a custom time provider (useful for tests).
func NewIdentityRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *IdentityRepo {
	return &IdentityRepo{DB: db, timeProvider: tp}
}

var _ core.IdentityRepository = (*IdentityRepo)(nil)

const identityColumns = `id, email, display_name, disabled, password_hash, token_version, created_at, updated_at`

type identityRow struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	DisplayName  string    `db:"display_name"`
	Disabled     bool      `db:"disabled"`
	PasswordHash []byte    `db:"password_hash"`
	TokenVersion int       `db:"token_version"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r identityRow) record() core.IdentityRecord {
	return core.IdentityRecord{
		Identity: domainauth.Identity{
			ID:          r.ID,
			Email:       r.Email,
			DisplayName: r.DisplayName,
			Disabled:    r.Disabled,
		},
		PasswordHash: r.PasswordHash,
		TokenVersion: r.TokenVersion,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// Create inserts a new identity record.
func (r *IdentityRepo) Create(ctx context.Context, rec core.IdentityRecord) (core.IdentityRecord, error) {
	now := r.timeProvider.Now().UTC()
	var out identityRow
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO identities (id, email, display_name, disabled, password_hash, token_version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, 0, $6, $6)
			RETURNING `+identityColumns,
			rec.Identity.ID,
			rec.Identity.Email,
			rec.Identity.DisplayName,
			rec.Identity.Disabled,
			rec.PasswordHash,
			now,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[identityRow])
		return err
	}); err != nil {
		return core.IdentityRecord{}, apperrors.MapDBError(err)
	}
	return out.record(), nil
}

// GetByID retrieves an identity by its id.
func (r *IdentityRepo) GetByID(ctx context.Context, id string) (core.IdentityRecord, error) {
	return r.getByQuery(ctx, `SELECT `+identityColumns+` FROM identities WHERE id = $1`, id)
}

// GetByEmail retrieves an identity by email.
func (r *IdentityRepo) GetByEmail(ctx context.Context, email string) (core.IdentityRecord, error) {
	return r.getByQuery(ctx, `SELECT `+identityColumns+` FROM identities WHERE email = $1`, email)
}

func (r *IdentityRepo) getByQuery(ctx context.Context, query, arg string) (core.IdentityRecord, error) {
	var out identityRow
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, arg)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[identityRow])
		return err
	}); err != nil {
		return core.IdentityRecord{}, apperrors.MapDBError(err)
	}
	return out.record(), nil
}

// UpdatePassword replaces the stored password hash.
func (r *IdentityRepo) UpdatePassword(ctx context.Context, id string, hash []byte) error {
	return r.exec(ctx, `UPDATE identities SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		id, hash, r.timeProvider.Now().UTC())
}

// SetDisabled flips the disabled flag.
func (r *IdentityRepo) SetDisabled(ctx context.Context, id string, disabled bool) error {
	return r.exec(ctx, `UPDATE identities SET disabled = $2, updated_at = $3 WHERE id = $1`,
		id, disabled, r.timeProvider.Now().UTC())
}

// BumpTokenVersion increments the token version and returns the new value.
func (r *IdentityRepo) BumpTokenVersion(ctx context.Context, id string) (int, error) {
	var version int
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, `
			UPDATE identities SET token_version = token_version + 1, updated_at = $2
			WHERE id = $1
			RETURNING token_version`,
			id, r.timeProvider.Now().UTC(),
		).Scan(&version)
	}); err != nil {
		return 0, apperrors.MapDBError(err)
	}
	return version, nil
}

func (r *IdentityRepo) exec(ctx context.Context, query string, args ...any) error {
	return pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		tag, err := conn.Exec(ctx, query, args...)
		if err != nil {
			return apperrors.MapDBError(err)
		}
		if tag.RowsAffected() == 0 {
			return apperrors.NotFound("identity not found")
		}
		return nil
	})
}
