package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTierMaxAge(t *testing.T) {
	assert.Equal(t, 24*time.Hour, TierDurable.MaxAge())
	assert.Equal(t, time.Hour, TierEphemeral.MaxAge())
}

func TestSessionRecordExpired_Boundaries(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		tier    Tier
		age     time.Duration
		expired bool
	}{
		{name: "durable just under ceiling", tier: TierDurable, age: 23*time.Hour + 59*time.Minute, expired: false},
		{name: "durable exactly at ceiling", tier: TierDurable, age: 24 * time.Hour, expired: false},
		{name: "durable one second past ceiling", tier: TierDurable, age: 24*time.Hour + time.Second, expired: true},
		{name: "ephemeral just under ceiling", tier: TierEphemeral, age: 59 * time.Minute, expired: false},
		{name: "ephemeral one second past ceiling", tier: TierEphemeral, age: time.Hour + time.Second, expired: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := SessionRecord{ContextID: "ctx-1", LoginAt: now.Add(-tt.age), Tier: tt.tier}
			assert.Equal(t, tt.expired, rec.Expired(now))
		})
	}
}

func TestRolePredicates(t *testing.T) {
	assert.True(t, RoleSuperAdmin.Valid())
	assert.True(t, RoleNone.Valid())
	assert.False(t, Role("janitor").Valid())

	assert.True(t, RoleTeacher.Assigned())
	assert.False(t, RoleNone.Assigned())
	assert.False(t, Role("").Assigned())
}

func TestProfileDisplayName(t *testing.T) {
	assert.Equal(t, "Jane Doe", Profile{FirstName: "Jane", LastName: "Doe"}.DisplayName())
	assert.Equal(t, "Jane", Profile{FirstName: "Jane"}.DisplayName())
	assert.Equal(t, "jane@school.org", Profile{Email: "jane@school.org"}.DisplayName())
}

func TestAreaPath(t *testing.T) {
	assert.Equal(t, "/admin", AreaPath(RoleSuperAdmin))
	assert.Equal(t, "/teacher", AreaPath(RoleTeacher))
	assert.Equal(t, "/student", AreaPath(RoleStudent))
	// Unrecognized roles have no subtree; they fall back to login.
	assert.Equal(t, PathLogin, AreaPath(RoleNone))
	assert.Equal(t, PathLogin, AreaPath(Role("janitor")))
}

func TestSnapshotRole(t *testing.T) {
	profile := &Profile{Role: RoleTeacher}

	assert.Equal(t, RoleTeacher, Snapshot{State: StateAuthenticated, Profile: profile}.Role())
	assert.Equal(t, RoleNone, Snapshot{State: StateNoRole, Profile: profile}.Role())
	assert.Equal(t, RoleNone, Snapshot{State: StateUnauthenticated}.Role())
}
