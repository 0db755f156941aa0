// Package devseed populates a development database with demo accounts.
// Every seeded identity shares the password below so a developer can sign
// in as any role without digging through fixtures.
package devseed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/edumanage/edumanage/internal/core"
	"github.com/edumanage/edumanage/internal/data"
	domainauth "github.com/edumanage/edumanage/internal/domain/auth"
	apperrors "github.com/edumanage/edumanage/internal/errors"
)

// Password is shared by all seeded accounts.
const Password = "edumanage-dev"

// Services bundles the repositories needed for development seeding.
type Services struct {
	DB         *sql.DB
	identities *data.IdentityRepo
	profiles   *data.ProfileRepo
}

// NewServices constructs the repositories used for seeding from the provided DB.
func NewServices(db *sql.DB) Services {
	return Services{
		DB:         db,
		identities: data.NewIdentityRepo(db),
		profiles:   data.NewProfileRepo(db),
	}
}

type seedAccount struct {
	Email     string
	FirstName string
	LastName  string
	// Extras beyond the role defaults.
	Department string
	Subjects   []string
	Grade      string
	Section    string
	EmployeeID string
	StudentID  string
}

func seedAccounts() []seedAccount {
	return []seedAccount{
		{
			Email:      "principal@admin.edumanage.app",
			FirstName:  "Pat",
			LastName:   "Reyes",
			EmployeeID: "EMP-0001",
		},
		{
			Email:      "jane.doe@faculty.edumanage.app",
			FirstName:  "Jane",
			LastName:   "Doe",
			Department: "Mathematics",
			Subjects:   []string{"Algebra", "Geometry"},
			EmployeeID: "EMP-0101",
		},
		{
			Email:      "sam.lee@faculty.edumanage.app",
			FirstName:  "Sam",
			LastName:   "Lee",
			Department: "Science",
			Subjects:   []string{"Biology"},
			EmployeeID: "EMP-0102",
		},
		{
			Email:     "alex.kim@edumanage.app",
			FirstName: "Alex",
			LastName:  "Kim",
			Grade:     "9",
			Section:   "A",
			StudentID: "STU-2031",
		},
		{
			Email:     "rory.santos@edumanage.app",
			FirstName: "Rory",
			LastName:  "Santos",
			Grade:     "10",
			Section:   "B",
			StudentID: "STU-2032",
		},
	}
}

// Run seeds the demo accounts. Accounts whose email already exists are
// skipped, so repeated runs are safe.
func Run(ctx context.Context, svcs Services, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}

	created := 0
	for _, acct := range seedAccounts() {
		ok, seedErr := seedOne(ctx, svcs, acct, hash)
		if seedErr != nil {
			return fmt.Errorf("seed %s: %w", acct.Email, seedErr)
		}
		if ok {
			created++
		}
	}

	logger.InfoContext(ctx, "development seeding complete",
		"accounts", len(seedAccounts()),
		"created", created,
		"password", Password)
	return nil
}

func seedOne(ctx context.Context, svcs Services, acct seedAccount, hash []byte) (bool, error) {
	role := domainauth.ResolveRole(acct.Email)

	rec, err := svcs.identities.Create(ctx, core.IdentityRecord{
		Identity: domainauth.Identity{
			ID:          uuid.NewString(),
			Email:       acct.Email,
			DisplayName: acct.FirstName + " " + acct.LastName,
		},
		PasswordHash: hash,
	})
	if err != nil {
		if apperrors.IsConflict(err) {
			return false, nil
		}
		return false, err
	}

	profile := domainauth.Profile{
		ID:         rec.Identity.ID,
		Email:      acct.Email,
		Role:       role,
		FirstName:  acct.FirstName,
		LastName:   acct.LastName,
		Active:     true,
		Department: acct.Department,
		Subjects:   acct.Subjects,
		Grade:      acct.Grade,
		Section:    acct.Section,
		EmployeeID: acct.EmployeeID,
		StudentID:  acct.StudentID,
	}
	if err := svcs.profiles.Set(ctx, profile, false); err != nil {
		return false, fmt.Errorf("write profile: %w", err)
	}
	return true, nil
}
