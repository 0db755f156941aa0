package httpx

import (
	"net/http"
	"time"

	domainauth "github.com/edumanage/edumanage/internal/domain/auth"
	"github.com/edumanage/edumanage/internal/service"
)

// DefaultMismatchDelay is how long the role-mismatch notice stays up before
// the guard redirects the user to their own subtree.
const DefaultMismatchDelay = 2 * time.Second

// SnapshotSource exposes the auth context's current snapshot.
type SnapshotSource interface {
	Snapshot() domainauth.Snapshot
}

// RouteGuard gates the page-route surface on the auth snapshot. Redirect
// intents for role mismatches go through the navigator, so a pending
// redirect is cancelled when a newer transition supersedes it.
type RouteGuard struct {
	Auth          SnapshotSource
	Nav           *service.Navigator
	MismatchDelay time.Duration
}

func (g *RouteGuard) delay() time.Duration {
	if g.MismatchDelay > 0 {
		return g.MismatchDelay
	}
	return DefaultMismatchDelay
}

// Protect wraps next with the guard for the given role set. An empty set
// admits any authenticated role.
func (g *RouteGuard) Protect(next http.Handler, roles ...domainauth.Role) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap := g.Auth.Snapshot()
		switch snap.State {
		case domainauth.StateLoading:
			// Resolution has not finished; no access decision yet.
			w.Header().Set("Retry-After", "1")
			WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"state": string(domainauth.StateLoading)})
			return
		case domainauth.StateUnauthenticated:
			http.Redirect(w, r, domainauth.PathLogin, http.StatusFound)
			return
		case domainauth.StateNoRole:
			http.Redirect(w, r, domainauth.PathUnauthorized, http.StatusFound)
			return
		}

		role := snap.Role()
		if len(roles) > 0 && !roleAllowed(role, roles) {
			// Transient notice now, redirect to the user's own subtree after
			// the delay. The navigator drops it if something newer lands.
			dest := domainauth.AreaPath(role)
			if g.Nav != nil {
				g.Nav.Go(dest, g.delay())
			}
			WriteJSON(w, http.StatusForbidden, map[string]string{
				"message":     "this page is not available for your role",
				"destination": dest,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Dashboard dispatches /dashboard to the role-specific subtree.
func (g *RouteGuard) Dashboard(w http.ResponseWriter, r *http.Request) {
	snap := g.Auth.Snapshot()
	switch snap.State {
	case domainauth.StateLoading:
		w.Header().Set("Retry-After", "1")
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"state": string(domainauth.StateLoading)})
	case domainauth.StateUnauthenticated:
		http.Redirect(w, r, domainauth.PathLogin, http.StatusFound)
	case domainauth.StateNoRole:
		http.Redirect(w, r, domainauth.PathUnauthorized, http.StatusFound)
	default:
		http.Redirect(w, r, domainauth.DashboardPath(snap.Role()), http.StatusFound)
	}
}

// Unauthorized is the terminal holding page for authenticated identities
// with no assigned role. It links home and to sign-out and never re-enters
// the guard.
func (g *RouteGuard) Unauthorized(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"message":  "your account has no role assigned yet; contact an administrator",
		"home":     domainauth.PathRoot,
		"sign_out": "/auth/signout",
	})
}
