package auth

import "strings"

// roleRule is one heuristic in the default-role table. Rules are ordered by
// Rank; the first matching rule wins, which makes the priority contract
// (admin beats teacher) an explicit ordering rather than incidental code
// order.
type roleRule struct {
	Rank     int
	Role     Role
	Tokens   []string
	Suffixes []string
}

var roleRules = []roleRule{
	{
		Rank:     1,
		Role:     RoleSuperAdmin,
		Tokens:   []string{"admin", "principal", "superuser"},
		Suffixes: []string{"@admin.edumanage.app"},
	},
	{
		Rank:     2,
		Role:     RoleTeacher,
		Tokens:   []string{"teacher", "faculty", "instructor"},
		Suffixes: []string{"@faculty.edumanage.app"},
	},
}

// ResolveRole derives a deterministic default role for an identity that has
// authenticated but has no profile yet. It is pure: the same email always
// yields the same role, with no I/O and no randomness. An email matching both
// an admin and a teacher pattern resolves to super_admin because the admin
// rule ranks first. Everything unmatched is a student.
func ResolveRole(email string) Role {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, rule := range roleRules {
		for _, tok := range rule.Tokens {
			if strings.Contains(email, tok) {
				return rule.Role
			}
		}
		for _, suf := range rule.Suffixes {
			if strings.HasSuffix(email, suf) {
				return rule.Role
			}
		}
	}
	return RoleStudent
}

// DefaultDisplayName returns the placeholder display name used when a profile
// is synthesized on first login.
func DefaultDisplayName(role Role) string {
	switch role {
	case RoleSuperAdmin:
		return "Administrator"
	case RoleTeacher:
		return "Teacher"
	case RoleStudent:
		return "Student"
	default:
		return "User"
	}
}
