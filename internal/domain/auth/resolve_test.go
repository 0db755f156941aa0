package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveRole(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  Role
	}{
		{name: "admin local part", email: "admin@x.edu", want: RoleSuperAdmin},
		{name: "admin embedded", email: "school.admin@district.org", want: RoleSuperAdmin},
		{name: "principal", email: "principal@school.org", want: RoleSuperAdmin},
		{name: "teacher local part", email: "jane.teacher@school.org", want: RoleTeacher},
		{name: "faculty", email: "jsmith@faculty.edumanage.app", want: RoleTeacher},
		{name: "instructor", email: "lead.instructor@school.org", want: RoleTeacher},
		{name: "plain email is a student", email: "jane@school.org", want: RoleStudent},
		{name: "empty email is a student", email: "", want: RoleStudent},
		{name: "upper case is normalized", email: "ADMIN@X.EDU", want: RoleSuperAdmin},
		{name: "surrounding whitespace is ignored", email: "  admin@x.edu  ", want: RoleSuperAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveRole(tt.email))
		})
	}
}

// An email matching both an admin and a teacher pattern resolves to
// super_admin because the admin rule ranks first.
func TestResolveRole_AdminBeatsTeacher(t *testing.T) {
	assert.Equal(t, RoleSuperAdmin, ResolveRole("admin.teacher@school.edu"))
	assert.Equal(t, RoleSuperAdmin, ResolveRole("teacher.admin@school.edu"))
}

func TestResolveRole_Deterministic(t *testing.T) {
	emails := []string{"admin@x.edu", "jane.teacher@school.org", "jane@school.org"}
	for _, email := range emails {
		first := ResolveRole(email)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, ResolveRole(email))
		}
	}
}

func TestDefaultDisplayName(t *testing.T) {
	assert.Equal(t, "Administrator", DefaultDisplayName(RoleSuperAdmin))
	assert.Equal(t, "Teacher", DefaultDisplayName(RoleTeacher))
	assert.Equal(t, "Student", DefaultDisplayName(RoleStudent))
	assert.Equal(t, "User", DefaultDisplayName(RoleNone))
}
