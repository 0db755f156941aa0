package auth

// Well-known application paths the auth flow navigates between.
const (
	PathRoot         = "/"
	PathLogin        = "/login"
	PathUnauthorized = "/unauthorized"
	PathDashboard    = "/dashboard"
)

// DashboardPath returns the role's landing page. Unassigned roles land on
// the holding page.
func DashboardPath(r Role) string {
	switch r {
	case RoleSuperAdmin:
		return PathDashboard + "/admin"
	case RoleTeacher:
		return PathDashboard + "/teacher"
	case RoleStudent:
		return PathDashboard + "/student"
	}
	return PathUnauthorized
}

// AreaPath returns the root of the role's own application subtree, the
// target for role-mismatch redirects. A role without a subtree falls back to
// the login page.
func AreaPath(r Role) string {
	switch r {
	case RoleSuperAdmin:
		return "/admin"
	case RoleTeacher:
		return "/teacher"
	case RoleStudent:
		return "/student"
	}
	return PathLogin
}
