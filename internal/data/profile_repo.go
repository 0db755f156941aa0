package data

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edumanage/edumanage/internal/data/pgxutil"
	domainauth "github.com/edumanage/edumanage/internal/domain/auth"
	apperrors "github.com/edumanage/edumanage/internal/errors"
	"github.com/edumanage/edumanage/internal/ports"
)

// ProfileRepo implements the ports.ProfileStore interface using PostgreSQL.
// One row per identity; the primary key is the identity id.
type ProfileRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewProfileRepo creates a new ProfileRepo with the real time provider.
func NewProfileRepo(db *sql.DB) *ProfileRepo {
	return &ProfileRepo{DB: db, timeProvider: RealTimeProvider{}}
}

// NewProfileRepoWithTimeProvider creates a new ProfileRepo with a custom time provider (useful for tests).
func NewProfileRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *ProfileRepo {
	return &ProfileRepo{DB: db, timeProvider: tp}
}

var _ ports.ProfileStore = (*ProfileRepo)(nil)

const profileColumns = `id, email, role, first_name, last_name, active,
	employee_id, student_id, department, subjects, grade, section, parent_contact,
	created_at, updated_at`

type profileRow struct {
	ID            string    `db:"id"`
	Email         string    `db:"email"`
	Role          string    `db:"role"`
	FirstName     string    `db:"first_name"`
	LastName      string    `db:"last_name"`
	Active        bool      `db:"active"`
	EmployeeID    string    `db:"employee_id"`
	StudentID     string    `db:"student_id"`
	Department    string    `db:"department"`
	Subjects      []string  `db:"subjects"`
	Grade         string    `db:"grade"`
	Section       string    `db:"section"`
	ParentContact string    `db:"parent_contact"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r profileRow) profile() domainauth.Profile {
	return domainauth.Profile{
		ID:            r.ID,
		Email:         r.Email,
		Role:          domainauth.Role(r.Role),
		FirstName:     r.FirstName,
		LastName:      r.LastName,
		Active:        r.Active,
		EmployeeID:    r.EmployeeID,
		StudentID:     r.StudentID,
		Department:    r.Department,
		Subjects:      r.Subjects,
		Grade:         r.Grade,
		Section:       r.Section,
		ParentContact: r.ParentContact,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// Get retrieves a profile by identity id.
func (r *ProfileRepo) Get(ctx context.Context, id string) (domainauth.Profile, error) {
	var out profileRow
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[profileRow])
		return err
	}); err != nil {
		return domainauth.Profile{}, apperrors.MapDBError(err)
	}
	return out.profile(), nil
}

// Set writes the profile document. Without merge the row is replaced
// wholesale; with merge, zero-valued incoming fields keep their stored
// values. Merge reads and writes inside one transaction so concurrent
// writers cannot interleave.
func (r *ProfileRepo) Set(ctx context.Context, profile domainauth.Profile, merge bool) error {
	if profile.ID == "" {
		return apperrors.Validation("profile id is required")
	}
	if profile.Role != "" && !profile.Role.Valid() {
		return apperrors.ValidationField("role", "unknown role")
	}
	now := r.timeProvider.Now().UTC()

	if !merge {
		return r.upsert(ctx, profile, now)
	}

	return pgxutil.WithPgxTx(ctx, r.DB, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1 FOR UPDATE`, profile.ID)
		if err != nil {
			return apperrors.MapDBError(err)
		}
		existing, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[profileRow])
		if err != nil {
			if apperrors.IsNotFound(apperrors.MapDBError(err)) {
				// nothing stored yet, merge degenerates to a plain write
				return r.upsertTx(ctx, tx, profile, now)
			}
			return apperrors.MapDBError(err)
		}
		merged := mergeProfile(existing.profile(), profile)
		return r.upsertTx(ctx, tx, merged, now)
	})
}

// QueryByEmail returns profiles whose email equals the given value.
func (r *ProfileRepo) QueryByEmail(ctx context.Context, email string) ([]domainauth.Profile, error) {
	var rowsOut []profileRow
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT `+profileColumns+` FROM profiles WHERE email = $1`, email)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[profileRow])
		return err
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return toProfiles(rowsOut), nil
}

// List returns profiles matching the query, newest first.
func (r *ProfileRepo) List(ctx context.Context, q ports.ProfileQuery) ([]domainauth.Profile, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	var conditions []string
	var args []any
	if q.Role != "" {
		args = append(args, string(q.Role))
		conditions = append(conditions, "role = $"+strconv.Itoa(len(args)))
	}
	if q.Active != nil {
		args = append(args, *q.Active)
		conditions = append(conditions, "active = $"+strconv.Itoa(len(args)))
	}
	if q.Search != "" {
		args = append(args, "%"+q.Search+"%")
		n := strconv.Itoa(len(args))
		conditions = append(conditions, fmt.Sprintf(
			"(email ILIKE $%s OR first_name ILIKE $%s OR last_name ILIKE $%s)", n, n, n))
	}

	query := `SELECT ` + profileColumns + ` FROM profiles`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, limit)
	query += " ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args))
	args = append(args, offset)
	query += " OFFSET $" + strconv.Itoa(len(args))

	var rowsOut []profileRow
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[profileRow])
		return err
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return toProfiles(rowsOut), nil
}

const profileUpsertQuery = `
	INSERT INTO profiles (id, email, role, first_name, last_name, active,
		employee_id, student_id, department, subjects, grade, section, parent_contact,
		created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
	ON CONFLICT (id) DO UPDATE SET
		email = EXCLUDED.email,
		role = EXCLUDED.role,
		first_name = EXCLUDED.first_name,
		last_name = EXCLUDED.last_name,
		active = EXCLUDED.active,
		employee_id = EXCLUDED.employee_id,
		student_id = EXCLUDED.student_id,
		department = EXCLUDED.department,
		subjects = EXCLUDED.subjects,
		grade = EXCLUDED.grade,
		section = EXCLUDED.section,
		parent_contact = EXCLUDED.parent_contact,
		updated_at = EXCLUDED.updated_at`

func (r *ProfileRepo) upsert(ctx context.Context, p domainauth.Profile, now time.Time) error {
	return pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		if _, err := conn.Exec(ctx, profileUpsertQuery, upsertArgs(p, now)...); err != nil {
			return apperrors.MapDBError(err)
		}
		return nil
	})
}

func (r *ProfileRepo) upsertTx(ctx context.Context, tx pgx.Tx, p domainauth.Profile, now time.Time) error {
	if _, err := tx.Exec(ctx, profileUpsertQuery, upsertArgs(p, now)...); err != nil {
		return apperrors.MapDBError(err)
	}
	return nil
}

func upsertArgs(p domainauth.Profile, now time.Time) []any {
	role := p.Role
	if role == "" {
		role = domainauth.RoleNone
	}
	subjects := p.Subjects
	if subjects == nil {
		subjects = []string{}
	}
	return []any{
		p.ID, p.Email, string(role), p.FirstName, p.LastName, p.Active,
		p.EmployeeID, p.StudentID, p.Department, subjects, p.Grade, p.Section,
		p.ParentContact, now,
	}
}

// mergeProfile overlays non-zero fields of src onto dst. Active cannot be
// cleared through a merge; deactivation is a full Set.
func mergeProfile(dst, src domainauth.Profile) domainauth.Profile {
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
	if src.Active {
		dst.Active = true
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
	return dst
}

func toProfiles(rows []profileRow) []domainauth.Profile {
	out := make([]domainauth.Profile, len(rows))
	for i := range rows {
		out[i] = rows[i].profile()
	}
	return out
}
