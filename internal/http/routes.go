package httpx

import (
	"log/slog"
	"net/http"
	"time"

	domainauth "github.com/edumanage/edumanage/internal/domain/auth"
	"github.com/edumanage/edumanage/internal/ports"
	"github.com/edumanage/edumanage/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth        *service.AuthService
	Credentials ports.CredentialStore
	Profiles    ports.ProfileStore
	Navigator   *service.Navigator
	// Optional: how long the role-mismatch notice stays before redirecting.
	MismatchDelay time.Duration
	Logger        *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	authHandlers := &AuthHandlers{Svc: services.Auth, Logger: logger}
	profileHandlers := &ProfileHandlers{Store: services.Profiles}
	guard := &RouteGuard{
		Auth:          services.Auth,
		Nav:           services.Navigator,
		MismatchDelay: services.MismatchDelay,
	}

	registerAuthRoutes(mux, authHandlers)
	registerProfileRoutes(mux, profileHandlers, services.Credentials, services.Profiles)
	registerGuardedRoutes(mux, guard)

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	return Chain(mux, Recover(logger), Logging(logger))
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("POST /auth/signup", h.SignUp)
	mux.HandleFunc("POST /auth/signin", h.SignIn)
	mux.HandleFunc("POST /auth/signout", h.SignOut)
	mux.HandleFunc("POST /auth/reset-password", h.ResetPassword)
	mux.HandleFunc("POST /auth/reset-password/complete", h.CompletePasswordReset)
	mux.HandleFunc("POST /auth/refresh", h.Refresh)
	mux.HandleFunc("GET /auth/status", h.Status)
}

// registerProfileRoutes wires the admin profile surface behind bearer auth
// and the super_admin role check.
func registerProfileRoutes(mux *http.ServeMux, h *ProfileHandlers, creds ports.CredentialStore, profiles ports.ProfileStore) {
	admin := func(hh http.HandlerFunc) http.Handler {
		return Chain(hh, RequireAuth(creds), RequireRoles(profiles, domainauth.RoleSuperAdmin))
	}
	mux.Handle("GET /api/profiles", admin(h.List))
	mux.Handle("GET /api/profiles/{id}", admin(h.GetByID))
	mux.Handle("PUT /api/profiles/{id}", admin(h.Update))
	mux.Handle("DELETE /api/profiles/{id}", admin(h.Deactivate))
}

// registerGuardedRoutes lays out the page-route surface: the dashboard
// dispatcher, the per-role subtrees, and the no-role holding page.
func registerGuardedRoutes(mux *http.ServeMux, guard *RouteGuard) {
	mux.HandleFunc("GET /dashboard", guard.Dashboard)
	mux.HandleFunc("GET /unauthorized", guard.Unauthorized)

	mux.Handle("GET /dashboard/admin", guard.Protect(pagePlaceholder("admin dashboard"), domainauth.RoleSuperAdmin))
	mux.Handle("GET /admin/", guard.Protect(pagePlaceholder("admin area"), domainauth.RoleSuperAdmin))
	mux.Handle("GET /dashboard/teacher", guard.Protect(pagePlaceholder("teacher dashboard"), domainauth.RoleTeacher))
	mux.Handle("GET /teacher/", guard.Protect(pagePlaceholder("teacher area"), domainauth.RoleTeacher))
	mux.Handle("GET /dashboard/student", guard.Protect(pagePlaceholder("student dashboard"), domainauth.RoleStudent))
	mux.Handle("GET /student/", guard.Protect(pagePlaceholder("student area"), domainauth.RoleStudent))
}

// pagePlaceholder stands in for the rendered pages of the wider application,
// which live outside this module.
func pagePlaceholder(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"page": name})
	})
}
