package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/edumanage/edumanage/config"
	"github.com/edumanage/edumanage/internal/adapters/email"
	"github.com/edumanage/edumanage/internal/adapters/localauth"
	"github.com/edumanage/edumanage/internal/data"
	domainauth "github.com/edumanage/edumanage/internal/domain/auth"
	"github.com/edumanage/edumanage/internal/ports"
)

const userCommandTimeout = time.Minute

type addUserOptions struct {
	Email      string
	Password   string
	FirstName  string
	LastName   string
	Role       string
	Department string
	Subjects   string
	Grade      string
	Section    string
	EmployeeID string
	StudentID  string
}

type userSelector struct {
	ID    string
	Email string
}

func (s userSelector) validate() error {
	if s.ID == "" && s.Email == "" {
		return errors.New("one of --id or --email is required")
	}
	if s.ID != "" && s.Email != "" {
		return errors.New("--id and --email are mutually exclusive")
	}
	return nil
}

// localCredentialStore builds the local-mode credential store for user
// management. Account commands write passwords, so they refuse to run when
// credentials live with an external OIDC provider.
func localCredentialStore(cmdCtx *commandContext, db *sql.DB) (*localauth.Store, error) {
	if cmdCtx.Config.Auth.Mode != config.AuthModeLocal {
		return nil, fmt.Errorf("this command manages local credentials; auth mode is %q", cmdCtx.Config.Auth.Mode)
	}
	if cmdCtx.Config.Auth.Local.TokenSecret == "" {
		return nil, errors.New("LOCAL_AUTH_TOKEN_SECRET is required")
	}
	return localauth.New(localauth.Options{
		Identities: data.NewIdentityRepo(db),
		Mailer:     email.NewConsoleMailer(cmdCtx.Logger),
		Secret:     cmdCtx.Config.Auth.Local.TokenSecret,
		Issuer:     cmdCtx.Config.Auth.Local.Issuer,
		Logger:     cmdCtx.Logger,
	})
}

func runAddUser(cmdCtx *commandContext, args []string) error {
	opts, err := parseAddUserFlags(args)
	if err != nil {
		return err
	}

	role := domainauth.Role(opts.Role)
	if opts.Role == "" {
		role = domainauth.ResolveRole(opts.Email)
	} else if !role.Valid() || !role.Assigned() {
		return fmt.Errorf("invalid role %q", opts.Role)
	}

	return withDatabase(cmdCtx, userCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		store, storeErr := localCredentialStore(cmdCtx, db)
		if storeErr != nil {
			return storeErr
		}

		identity, createErr := store.CreateIdentity(ctx, ports.CreateIdentityInput{
			Email:       opts.Email,
			Password:    opts.Password,
			DisplayName: strings.TrimSpace(opts.FirstName + " " + opts.LastName),
		})
		if createErr != nil {
			return fmt.Errorf("create identity: %w", createErr)
		}

		profile := domainauth.Profile{
			ID:         identity.ID,
			Email:      identity.Email,
			Role:       role,
			FirstName:  opts.FirstName,
			LastName:   opts.LastName,
			Active:     true,
			Department: opts.Department,
			Subjects:   splitSubjects(opts.Subjects),
			Grade:      opts.Grade,
			Section:    opts.Section,
			EmployeeID: opts.EmployeeID,
			StudentID:  opts.StudentID,
		}
		if setErr := data.NewProfileRepo(db).Set(ctx, profile, false); setErr != nil {
			return fmt.Errorf("write profile: %w", setErr)
		}

		cmdCtx.Logger.Info("user created", "id", identity.ID, "email", identity.Email, "role", role)
		return nil
	})
}

func runSetRole(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("set-role", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var sel userSelector
	var roleArg string
	fs.StringVar(&sel.ID, "id", "", "Identity id of the user")
	fs.StringVar(&sel.Email, "email", "", "Email of the user")
	fs.StringVar(&roleArg, "role", "", "New role (super_admin, teacher, student)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := sel.validate(); err != nil {
		return err
	}

	role := domainauth.Role(roleArg)
	if !role.Valid() || !role.Assigned() {
		return fmt.Errorf("invalid role %q", roleArg)
	}

	return withDatabase(cmdCtx, userCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		profiles := data.NewProfileRepo(db)
		profile, err := findProfile(ctx, profiles, sel)
		if err != nil {
			return err
		}

		if err := profiles.Set(ctx, domainauth.Profile{ID: profile.ID, Role: role}, true); err != nil {
			return fmt.Errorf("update role: %w", err)
		}

		cmdCtx.Logger.Info("role updated", "id", profile.ID, "email", profile.Email,
			"previous_role", profile.Role, "role", role)
		return nil
	})
}

func runDeactivateUser(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("deactivate-user", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var sel userSelector
	var yes bool
	fs.StringVar(&sel.ID, "id", "", "Identity id of the user")
	fs.StringVar(&sel.Email, "email", "", "Email of the user")
	fs.BoolVar(&yes, "yes", false, "Skip confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := sel.validate(); err != nil {
		return err
	}

	return withDatabase(cmdCtx, userCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		profiles := data.NewProfileRepo(db)
		profile, err := findProfile(ctx, profiles, sel)
		if err != nil {
			return err
		}

		intro := fmt.Sprintf("About to deactivate %s (%s) and revoke their tokens.", profile.Email, profile.ID)
		if confirmErr := confirmAction(yes, intro); confirmErr != nil {
			return confirmErr
		}

		identities := data.NewIdentityRepo(db)
		if err := identities.SetDisabled(ctx, profile.ID, true); err != nil {
			return fmt.Errorf("disable identity: %w", err)
		}
		if _, err := identities.BumpTokenVersion(ctx, profile.ID); err != nil {
			return fmt.Errorf("revoke tokens: %w", err)
		}

		// Full write: the merge path can only turn Active on.
		profile.Active = false
		if err := profiles.Set(ctx, profile, false); err != nil {
			return fmt.Errorf("deactivate profile: %w", err)
		}

		cmdCtx.Logger.Info("user deactivated", "id", profile.ID, "email", profile.Email)
		return nil
	})
}

func runResetPassword(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("reset-password", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var emailArg, password string
	fs.StringVar(&emailArg, "email", "", "Email of the user")
	fs.StringVar(&password, "password", "", "New password")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if emailArg == "" {
		return errors.New("--email is required")
	}
	if len(password) < 8 {
		return errors.New("--password must be at least 8 characters")
	}

	return withDatabase(cmdCtx, userCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		if cmdCtx.Config.Auth.Mode != config.AuthModeLocal {
			return fmt.Errorf("passwords live with the OIDC provider; auth mode is %q", cmdCtx.Config.Auth.Mode)
		}

		identities := data.NewIdentityRepo(db)
		rec, err := identities.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(emailArg)))
		if err != nil {
			return fmt.Errorf("look up identity: %w", err)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		if err := identities.UpdatePassword(ctx, rec.Identity.ID, hash); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if _, err := identities.BumpTokenVersion(ctx, rec.Identity.ID); err != nil {
			return fmt.Errorf("revoke tokens: %w", err)
		}

		cmdCtx.Logger.Info("password reset", "id", rec.Identity.ID, "email", rec.Identity.Email)
		return nil
	})
}

func runListUsers(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("list-users", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var roleArg, activeArg, search string
	var limit, offset int
	fs.StringVar(&roleArg, "role", "", "Filter by role")
	fs.StringVar(&activeArg, "active", "", "Filter by active flag (true/false)")
	fs.StringVar(&search, "search", "", "Substring match on name and email")
	fs.IntVar(&limit, "limit", 50, "Maximum rows to return")
	fs.IntVar(&offset, "offset", 0, "Rows to skip")

	if err := fs.Parse(args); err != nil {
		return err
	}

	q := ports.ProfileQuery{Search: search, Limit: limit, Offset: offset}
	if roleArg != "" {
		role := domainauth.Role(roleArg)
		if !role.Valid() {
			return fmt.Errorf("invalid role %q", roleArg)
		}
		q.Role = role
	}
	if activeArg != "" {
		active, err := strconv.ParseBool(activeArg)
		if err != nil {
			return fmt.Errorf("invalid --active value %q", activeArg)
		}
		q.Active = &active
	}

	return withDatabase(cmdCtx, userCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		profiles, err := data.NewProfileRepo(db).List(ctx, q)
		if err != nil {
			return fmt.Errorf("list profiles: %w", err)
		}
		return printUserTable(os.Stdout, profiles)
	})
}

func findProfile(ctx context.Context, profiles ports.ProfileStore, sel userSelector) (domainauth.Profile, error) {
	if sel.ID != "" {
		profile, err := profiles.Get(ctx, sel.ID)
		if err != nil {
			return domainauth.Profile{}, fmt.Errorf("look up profile: %w", err)
		}
		return profile, nil
	}

	matches, err := profiles.QueryByEmail(ctx, strings.ToLower(strings.TrimSpace(sel.Email)))
	if err != nil {
		return domainauth.Profile{}, fmt.Errorf("look up profile: %w", err)
	}
	if len(matches) == 0 {
		return domainauth.Profile{}, fmt.Errorf("no profile found for %q", sel.Email)
	}
	return matches[0], nil
}

func printUserTable(w io.Writer, profiles []domainauth.Profile) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writef(tw, "ID\tEMAIL\tROLE\tNAME\tACTIVE\n"); err != nil {
		return err
	}
	for _, p := range profiles {
		if err := writef(tw, "%s\t%s\t%s\t%s\t%t\n",
			p.ID, p.Email, p.Role, p.DisplayName(), p.Active); err != nil {
			return err
		}
	}
	if len(profiles) == 0 {
		if err := writef(tw, "(no profiles found)\n"); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush user table: %w", err)
	}
	return nil
}

func parseAddUserFlags(args []string) (addUserOptions, error) {
	fs := flag.NewFlagSet("add-user", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts addUserOptions
	fs.StringVar(&opts.Email, "email", "", "Email address (required)")
	fs.StringVar(&opts.Password, "password", "", "Password (required, minimum 8 characters)")
	fs.StringVar(&opts.FirstName, "first", "", "First name")
	fs.StringVar(&opts.LastName, "last", "", "Last name")
	fs.StringVar(&opts.Role, "role", "", "Role; derived from the email address when omitted")
	fs.StringVar(&opts.Department, "department", "", "Department (teachers)")
	fs.StringVar(&opts.Subjects, "subjects", "", "Comma-separated subjects (teachers)")
	fs.StringVar(&opts.Grade, "grade", "", "Grade (students)")
	fs.StringVar(&opts.Section, "section", "", "Section (students)")
	fs.StringVar(&opts.EmployeeID, "employee-id", "", "Employee id (staff)")
	fs.StringVar(&opts.StudentID, "student-id", "", "Student id (students)")

	if err := fs.Parse(args); err != nil {
		return addUserOptions{}, err
	}

	if opts.Email == "" {
		return addUserOptions{}, errors.New("--email is required")
	}
	if opts.Password == "" {
		return addUserOptions{}, errors.New("--password is required")
	}

	return opts, nil
}

func splitSubjects(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
