package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/edumanage/edumanage/internal/domain/auth"
	"github.com/edumanage/edumanage/internal/service"
)

// stubSnapshots serves a fixed snapshot.
type stubSnapshots struct {
	snap domainauth.Snapshot
}

func (s *stubSnapshots) Snapshot() domainauth.Snapshot { return s.snap }

func snapFor(state domainauth.State, role domainauth.Role) domainauth.Snapshot {
	snap := domainauth.Snapshot{State: state}
	if state == domainauth.StateAuthenticated || state == domainauth.StateNoRole {
		snap.Identity = &domainauth.Identity{ID: "id-1", Email: "jane@school.org"}
		snap.Profile = &domainauth.Profile{ID: "id-1", Role: role, Active: true}
	}
	return snap
}

func newGuard(snap domainauth.Snapshot, spy *navSpy) *RouteGuard {
	g := &RouteGuard{
		Auth:          &stubSnapshots{snap: snap},
		MismatchDelay: 10 * time.Millisecond,
	}
	if spy != nil {
		g.Nav = service.NewNavigator(spy.navigate)
	}
	return g
}

func serveGuarded(g *RouteGuard, roles ...domainauth.Role) *httptest.ResponseRecorder {
	handler := g.Protect(pagePlaceholder("page"), roles...)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/teacher/", nil))
	return rec
}

func TestGuardLoading(t *testing.T) {
	g := newGuard(domainauth.Snapshot{State: domainauth.StateLoading}, nil)

	rec := serveGuarded(g, domainauth.RoleTeacher)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestGuardUnauthenticated(t *testing.T) {
	g := newGuard(domainauth.Snapshot{State: domainauth.StateUnauthenticated}, nil)

	rec := serveGuarded(g, domainauth.RoleTeacher)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, domainauth.PathLogin, rec.Header().Get("Location"))
}

func TestGuardNoRoleGoesToHoldingPage(t *testing.T) {
	g := newGuard(snapFor(domainauth.StateNoRole, domainauth.RoleNone), nil)

	rec := serveGuarded(g, domainauth.RoleTeacher)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, domainauth.PathUnauthorized, rec.Header().Get("Location"))
}

func TestGuardAllowsMatchingRole(t *testing.T) {
	g := newGuard(snapFor(domainauth.StateAuthenticated, domainauth.RoleTeacher), nil)

	rec := serveGuarded(g, domainauth.RoleTeacher)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Empty role set admits any authenticated role.
	rec = serveGuarded(g)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGuardRoleMismatchRedirectsAfterDelay(t *testing.T) {
	spy := &navSpy{}
	g := newGuard(snapFor(domainauth.StateAuthenticated, domainauth.RoleStudent), spy)

	rec := serveGuarded(g, domainauth.RoleTeacher)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), `"/student"`)

	// The redirect to the user's own subtree fires after the notice delay.
	require.Eventually(t, func() bool {
		return len(spy.all()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"/student"}, spy.all())
}

func TestGuardRoleMismatchTargetsOwnSubtree(t *testing.T) {
	spy := &navSpy{}
	g := newGuard(snapFor(domainauth.StateAuthenticated, domainauth.RoleTeacher), spy)

	// A teacher on the admin area is sent to the teacher subtree root.
	handler := g.Protect(pagePlaceholder("admin area"), domainauth.RoleSuperAdmin)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), `"/teacher"`)
	require.Eventually(t, func() bool {
		return len(spy.all()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"/teacher"}, spy.all())
}

func TestGuardRoleMismatchRedirectCancellable(t *testing.T) {
	spy := &navSpy{}
	g := newGuard(snapFor(domainauth.StateAuthenticated, domainauth.RoleStudent), spy)
	g.MismatchDelay = 50 * time.Millisecond

	rec := serveGuarded(g, domainauth.RoleTeacher)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	g.Nav.Cancel()
	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, spy.all())
}

func TestDashboardDispatch(t *testing.T) {
	cases := []struct {
		name     string
		snap     domainauth.Snapshot
		wantCode int
		wantLoc  string
	}{
		{"loading", domainauth.Snapshot{State: domainauth.StateLoading}, http.StatusServiceUnavailable, ""},
		{"unauthenticated", domainauth.Snapshot{State: domainauth.StateUnauthenticated}, http.StatusFound, domainauth.PathLogin},
		{"no role", snapFor(domainauth.StateNoRole, domainauth.RoleNone), http.StatusFound, domainauth.PathUnauthorized},
		{"admin", snapFor(domainauth.StateAuthenticated, domainauth.RoleSuperAdmin), http.StatusFound, "/dashboard/admin"},
		{"teacher", snapFor(domainauth.StateAuthenticated, domainauth.RoleTeacher), http.StatusFound, "/dashboard/teacher"},
		{"student", snapFor(domainauth.StateAuthenticated, domainauth.RoleStudent), http.StatusFound, "/dashboard/student"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := newGuard(tc.snap, nil)
			rec := httptest.NewRecorder()
			g.Dashboard(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
			assert.Equal(t, tc.wantCode, rec.Code)
			assert.Equal(t, tc.wantLoc, rec.Header().Get("Location"))
		})
	}
}

func TestUnauthorizedHoldingPage(t *testing.T) {
	g := newGuard(snapFor(domainauth.StateNoRole, domainauth.RoleNone), nil)
	rec := httptest.NewRecorder()
	g.Unauthorized(rec, httptest.NewRequest(http.MethodGet, "/unauthorized", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sign_out")
}
