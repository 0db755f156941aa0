package auth

// Package auth contains domain-level types for authentication, sessions, and
// role resolution. It is pure and free of framework/adapter concerns.

import "time"

// Role represents an application authorization role.
// Keep string form for easy persistence and cookies.
// Valid values are defined as constants below.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleTeacher    Role = "teacher"
	RoleStudent    Role = "student"
	// RoleNone marks a profile with no role assigned yet. It is a distinct
	// terminal state, not an error: the route guard sends it to a holding page.
	RoleNone Role = "none"
)

// Valid reports whether r is one of the closed role values.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleTeacher, RoleStudent, RoleNone:
		return true
	}
	return false
}

// Assigned reports whether r is a concrete, routable role.
func (r Role) Assigned() bool {
	switch r {
	case RoleSuperAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

// Tier selects which persistence tier holds a session. The active tier is
// tracked explicitly as state; it is never inferred from which store object
// happens to be non-nil.
type Tier string

const (
	// TierDurable survives process and browser restarts.
	TierDurable Tier = "durable"
	// TierEphemeral is cleared at the end of the browsing session.
	TierEphemeral Tier = "ephemeral"
)

// MaxAge returns the fixed ceiling on session age for the tier, measured from
// the login timestamp. The ceilings are per-tier policy, not configurable at
// call time.
func (t Tier) MaxAge() time.Duration {
	if t == TierEphemeral {
		return time.Hour
	}
	return 24 * time.Hour
}

// Identity represents the authenticated principal held by the credential
// store. Adapters map provider-specific records into this shape. The password
// itself is never retrievable through this type.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	Disabled    bool   `json:"disabled,omitempty"`
}

// Profile is the 1:1 extension record for an identity, stored in the users
// collection. Its ID always equals the identity's ID; a profile is never
// created independently of an identity.
type Profile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Active    bool   `json:"active"`

	// Role-specific optional fields.
	EmployeeID    string   `json:"employee_id,omitempty"`
	StudentID     string   `json:"student_id,omitempty"`
	Department    string   `json:"department,omitempty"`
	Subjects      []string `json:"subjects,omitempty"`
	Grade         string   `json:"grade,omitempty"`
	Section       string   `json:"section,omitempty"`
	ParentContact string   `json:"parent_contact,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasRole reports whether the profile carries an assigned role.
func (p Profile) HasRole() bool { return p.Role.Assigned() }

// DisplayName joins the name fields, falling back to the email when both
// names are absent.
func (p Profile) DisplayName() string {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.FirstName != "":
		return p.FirstName
	case p.LastName != "":
		return p.LastName
	}
	return p.Email
}

// SessionRecord is the record a tier persists per browser context under the
// userSession key. The token lives under a separate key in the same tier.
// Invariant: at most one record is active per context at a time.
type SessionRecord struct {
	ContextID  string    `json:"context_id"`
	IdentityID string    `json:"identity_id"`
	Email      string    `json:"email"`
	LoginAt    time.Time `json:"login_at"`
	Remember   bool      `json:"remember"`
	Tier       Tier      `json:"tier"`
}

// Age returns how long ago the session was established.
func (s SessionRecord) Age(now time.Time) time.Duration { return now.Sub(s.LoginAt) }

// Expired reports whether the record has outlived its tier's ceiling.
func (s SessionRecord) Expired(now time.Time) bool { return s.Age(now) > s.Tier.MaxAge() }

// State enumerates the auth context's states. The machine starts in
// StateLoading and resolves exactly once at boot.
type State string

const (
	StateLoading         State = "loading"
	StateAuthenticated   State = "authenticated"
	StateNoRole          State = "authenticated_no_role"
	StateUnauthenticated State = "unauthenticated"
)

// Snapshot is an immutable view of the auth context handed to subscribers.
// Transitions produce a fresh snapshot; readers never observe in-place
// mutation. Destination carries navigation intent only - performing the
// redirect is the navigator's job, decoupled so it can be cancelled.
type Snapshot struct {
	State      State
	Identity   *Identity
	Profile    *Profile
	FirstLogin bool
	// Destination is the intended navigation target for this transition,
	// empty when the current location should be kept.
	Destination string
}

// Role returns the snapshot's effective role, or RoleNone outside the
// authenticated state.
func (s Snapshot) Role() Role {
	if s.State == StateAuthenticated && s.Profile != nil {
		return s.Profile.Role
	}
	return RoleNone
}
